// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Videx Contributors

package sqlite_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/videx-dev/videx/internal/store"
	"github.com/videx-dev/videx/internal/store/sqlite"
	videxerr "github.com/videx-dev/videx/pkg/errors"
)

func newExemplarStore(t *testing.T, name string) *sqlite.ExemplarStore {
	t.Helper()
	s, err := sqlite.NewExemplarStore(testDBPath(t, name), 3)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func addExemplar(t *testing.T, s *sqlite.ExemplarStore, embedding []float32, text, label string) int64 {
	t.Helper()
	id, err := s.Add(context.Background(), embedding, store.Exemplar{
		DocumentID: "doc-1",
		Text:       text,
		Label:      label,
		SpanStart:  0,
		SpanEnd:    len(text),
	})
	require.NoError(t, err)
	return id
}

func TestExemplarStore_AddAssignsMonotonicIDs(t *testing.T) {
	ctx := context.Background()
	s := newExemplarStore(t, "exemplars-ids")

	id1 := addExemplar(t, s, unit3(0), "Apple", "ORG")
	id2 := addExemplar(t, s, unit3(1), "Paris", "LOCATION")
	assert.Equal(t, id1+1, id2)

	// Deleting does not free an id for reuse.
	removed, err := s.Remove(ctx, id2)
	require.NoError(t, err)
	assert.True(t, removed)

	id3 := addExemplar(t, s, unit3(2), "Monday", "DATE")
	assert.Equal(t, id2+1, id3)
}

func TestExemplarStore_SearchReturnsMetadata(t *testing.T) {
	ctx := context.Background()
	s := newExemplarStore(t, "exemplars-search")

	id := addExemplar(t, s, unit3(0), "Apple", "ORG")
	addExemplar(t, s, unit3(1), "Paris", "LOCATION")

	matches, err := s.Search(ctx, unit3(0), 1, "")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, id, matches[0].Exemplar.ID)
	assert.Equal(t, "Apple", matches[0].Exemplar.Text)
	assert.Equal(t, "ORG", matches[0].Exemplar.Label)
	assert.Equal(t, "doc-1", matches[0].Exemplar.DocumentID)
	assert.InDelta(t, 1.0, matches[0].Similarity, 1e-4)
}

func TestExemplarStore_SearchEmptyStore(t *testing.T) {
	s := newExemplarStore(t, "exemplars-empty")

	matches, err := s.Search(context.Background(), unit3(0), 5, "")
	require.NoError(t, err)
	assert.Empty(t, matches)

	matches, err = s.Search(context.Background(), unit3(0), 5, "ORG")
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestExemplarStore_LabelFilteredSearch(t *testing.T) {
	ctx := context.Background()
	s := newExemplarStore(t, "exemplars-filter")

	// The nearest neighbors to the query carry the wrong label; over-fetch
	// must still surface the rarer matching label behind them.
	addExemplar(t, s, []float32{1, 0, 0}, "Apple", "ORG")
	addExemplar(t, s, []float32{0.9486833, 0.31622776, 0}, "Cupertino", "LOCATION")
	addExemplar(t, s, []float32{0.31622776, 0.9486833, 0}, "Paris", "LOCATION")
	addExemplar(t, s, []float32{0, 1, 0}, "Monday", "DATE")

	matches, err := s.Search(ctx, []float32{1, 0, 0}, 2, "LOCATION")
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "Cupertino", matches[0].Exemplar.Text)
	assert.Equal(t, "Paris", matches[1].Exemplar.Text)
	for _, m := range matches {
		assert.Equal(t, "LOCATION", m.Exemplar.Label)
	}

	// Fewer matching exemplars than k: return exactly what exists.
	matches, err = s.Search(ctx, []float32{1, 0, 0}, 5, "DATE")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "Monday", matches[0].Exemplar.Text)
}

func TestExemplarStore_RemoveKeepsIndexAndMetadataInLockstep(t *testing.T) {
	ctx := context.Background()
	s := newExemplarStore(t, "exemplars-lockstep")

	id := addExemplar(t, s, unit3(0), "Apple", "ORG")
	addExemplar(t, s, unit3(1), "Paris", "LOCATION")

	removed, err := s.Remove(ctx, id)
	require.NoError(t, err)
	assert.True(t, removed)

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	size, err := s.Index().Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, size)

	matches, err := s.Search(ctx, unit3(0), 5, "")
	require.NoError(t, err)
	for _, m := range matches {
		assert.NotEqual(t, id, m.Exemplar.ID)
	}

	// Removing an absent id is a no-op, not an error.
	removed, err = s.Remove(ctx, id)
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestExemplarStore_RemoveByTextAndLabel(t *testing.T) {
	ctx := context.Background()
	s := newExemplarStore(t, "exemplars-bytext")

	addExemplar(t, s, unit3(0), "Apple", "ORG")
	addExemplar(t, s, unit3(1), "Apple", "ORG")
	addExemplar(t, s, unit3(2), "Apple", "OTHER")

	count, err := s.RemoveByTextAndLabel(ctx, "Apple", "ORG")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	// Exact match only: different label untouched, absent pair removes zero.
	remaining, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, remaining)

	count, err = s.RemoveByTextAndLabel(ctx, "Apple", "ORG")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestExemplarStore_Labels(t *testing.T) {
	ctx := context.Background()
	s := newExemplarStore(t, "exemplars-labels")

	labels, err := s.Labels(ctx)
	require.NoError(t, err)
	assert.Empty(t, labels)

	addExemplar(t, s, unit3(0), "Apple", "ORG")
	addExemplar(t, s, unit3(1), "Paris", "LOCATION")
	addExemplar(t, s, unit3(2), "Microsoft", "ORG")

	labels, err = s.Labels(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"LOCATION", "ORG"}, labels)
}

func TestExemplarStore_AddValidation(t *testing.T) {
	ctx := context.Background()
	s := newExemplarStore(t, "exemplars-validation")

	_, err := s.Add(ctx, []float32{1, 0}, store.Exemplar{Text: "Apple", Label: "ORG", SpanStart: 0, SpanEnd: 5})
	require.Error(t, err)
	assert.True(t, videxerr.IsDimensionMismatch(err))

	_, err = s.Add(ctx, unit3(0), store.Exemplar{Text: "Apple", Label: "ORG", SpanStart: 5, SpanEnd: 5})
	require.Error(t, err)
	assert.True(t, videxerr.IsInvalidInput(err))

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestExemplarStore_ReloadIsConsistent(t *testing.T) {
	ctx := context.Background()
	path := testDBPath(t, "exemplars-reload")

	s, err := sqlite.NewExemplarStore(path, 3)
	require.NoError(t, err)

	id, err := s.Add(ctx, unit3(0), store.Exemplar{
		DocumentID:  "doc-9",
		Text:        "Apple",
		Label:       "ORG",
		SpanStart:   0,
		SpanEnd:     5,
		Context:     "Apple shipped a new phone",
		Rationale:   "company name",
		AnnotatorID: "alice",
	})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	reloaded, err := sqlite.NewExemplarStore(path, 3)
	require.NoError(t, err)
	defer func() { _ = reloaded.Close() }()

	count, err := reloaded.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	size, err := reloaded.Index().Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, size)

	matches, err := reloaded.Search(ctx, unit3(0), 1, "")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, id, matches[0].Exemplar.ID)
	assert.Equal(t, "Apple shipped a new phone", matches[0].Exemplar.Context)
	assert.Equal(t, "company name", matches[0].Exemplar.Rationale)
	assert.Equal(t, "alice", matches[0].Exemplar.AnnotatorID)
	assert.InDelta(t, 1.0, matches[0].Similarity, 1e-4)

	// The id counter survives reload.
	next, err := reloaded.Add(ctx, unit3(1), store.Exemplar{
		DocumentID: "doc-9", Text: "Paris", Label: "LOCATION", SpanStart: 0, SpanEnd: 5,
	})
	require.NoError(t, err)
	assert.Equal(t, id+1, next)
}

func TestExemplarStore_DefaultAnnotatorSentinel(t *testing.T) {
	ctx := context.Background()
	s := newExemplarStore(t, "exemplars-sentinel")

	addExemplar(t, s, unit3(0), "Apple", "ORG")

	matches, err := s.Search(ctx, unit3(0), 1, "")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, store.DefaultAnnotatorID, matches[0].Exemplar.AnnotatorID)
}
