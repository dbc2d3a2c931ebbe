// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Videx Contributors

package store

import "context"

// VectorIndex is a similarity index over fixed-dimension unit vectors
// addressed by stable integer ids. Vectors whose length differs from the
// configured dimension are rejected with a dimension-mismatch error.
type VectorIndex interface {
	// Add inserts a vector under id.
	Add(ctx context.Context, id int64, embedding []float32) error

	// Search returns the k nearest vectors by inner-product similarity,
	// most similar first. Equal similarities tie-break by ascending id.
	// Searching an empty index returns an empty slice.
	Search(ctx context.Context, query []float32, k int) ([]VectorHit, error)

	// Remove deletes the given ids and returns how many were actually
	// present. Removing an absent id is a no-op.
	Remove(ctx context.Context, ids []int64) (int, error)

	// Size returns the number of vectors currently in the index.
	Size(ctx context.Context) (int, error)
}

// VectorHit is a single nearest-neighbor result.
type VectorHit struct {
	ID         int64
	Similarity float64
}
