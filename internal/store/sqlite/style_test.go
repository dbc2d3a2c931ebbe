// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Videx Contributors

package sqlite_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/videx-dev/videx/internal/store"
	"github.com/videx-dev/videx/internal/store/sqlite"
)

func newStyleStore(t *testing.T, name string) *sqlite.StyleStore {
	t.Helper()
	s, err := sqlite.NewStyleStore(testDBPath(t, name))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStyleStore_CentroidRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newStyleStore(t, "style-centroids")

	centroids, err := s.LoadCentroids(ctx)
	require.NoError(t, err)
	assert.Empty(t, centroids)

	require.NoError(t, s.SaveCentroid(ctx, "ORG", store.Centroid{Vector: []float32{0.5, 0.5, 0}, Count: 2}))
	require.NoError(t, s.SaveCentroid(ctx, "ORG", store.Centroid{Vector: []float32{0.25, 0.75, 0}, Count: 3}))
	require.NoError(t, s.SaveCentroid(ctx, "DATE", store.Centroid{Vector: []float32{0, 0, 1}, Count: 1}))

	centroids, err = s.LoadCentroids(ctx)
	require.NoError(t, err)
	require.Len(t, centroids, 2)

	org := centroids["ORG"]
	assert.Equal(t, 3, org.Count)
	assert.InDeltaSlice(t, []float32{0.25, 0.75, 0}, org.Vector, 1e-6)
}

func TestStyleStore_ObservationsEvictOldestBeyondKeep(t *testing.T) {
	ctx := context.Background()
	s := newStyleStore(t, "style-evict")

	for i := 0; i < 5; i++ {
		obs := store.StyleObservation{
			Embedding: []float32{float32(i), 0, 0},
			Label:     fmt.Sprintf("L%d", i),
		}
		require.NoError(t, s.AppendObservation(ctx, "alice", obs, 3))
	}

	profiles, err := s.LoadProfiles(ctx)
	require.NoError(t, err)
	require.Len(t, profiles["alice"], 3)

	// Oldest first, window holds the three most recent entries.
	assert.Equal(t, "L2", profiles["alice"][0].Label)
	assert.Equal(t, "L4", profiles["alice"][2].Label)
	assert.InDeltaSlice(t, []float32{2, 0, 0}, profiles["alice"][0].Embedding, 1e-6)
}

func TestStyleStore_ProfilesAreSeparatePerAnnotator(t *testing.T) {
	ctx := context.Background()
	s := newStyleStore(t, "style-profiles")

	require.NoError(t, s.AppendObservation(ctx, "alice", store.StyleObservation{Embedding: []float32{1, 0, 0}, Label: "ORG"}, 100))
	require.NoError(t, s.AppendObservation(ctx, "bob", store.StyleObservation{Embedding: []float32{0, 1, 0}, Label: "DATE"}, 100))
	require.NoError(t, s.AppendObservation(ctx, "alice", store.StyleObservation{Embedding: []float32{0, 0, 1}, Label: "OTHER"}, 100))

	profiles, err := s.LoadProfiles(ctx)
	require.NoError(t, err)
	require.Len(t, profiles, 2)
	assert.Len(t, profiles["alice"], 2)
	assert.Len(t, profiles["bob"], 1)
	assert.Equal(t, "ORG", profiles["alice"][0].Label)
	assert.Equal(t, "OTHER", profiles["alice"][1].Label)
}

func TestStyleStore_ReloadPreservesState(t *testing.T) {
	ctx := context.Background()
	path := testDBPath(t, "style-reload")

	s, err := sqlite.NewStyleStore(path)
	require.NoError(t, err)
	require.NoError(t, s.SaveCentroid(ctx, "ORG", store.Centroid{Vector: []float32{1, 0, 0}, Count: 1}))
	require.NoError(t, s.AppendObservation(ctx, "alice", store.StyleObservation{Embedding: []float32{1, 0, 0}, Label: "ORG"}, 100))
	require.NoError(t, s.Close())

	reloaded, err := sqlite.NewStyleStore(path)
	require.NoError(t, err)
	defer func() { _ = reloaded.Close() }()

	centroids, err := reloaded.LoadCentroids(ctx)
	require.NoError(t, err)
	assert.Len(t, centroids, 1)

	profiles, err := reloaded.LoadProfiles(ctx)
	require.NoError(t, err)
	assert.Len(t, profiles["alice"], 1)
}
