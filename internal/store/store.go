// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Videx Contributors

package store

import "context"

// ExemplarStore owns exemplar metadata and the vector index behind it. The
// two are written and removed together; implementations guarantee that for
// every stored exemplar there is exactly one vector under the same id, and
// that every mutation is durable before the call returns.
type ExemplarStore interface {
	// Add assigns the next unused id (monotonic, never reused even after
	// deletion), writes the vector and metadata atomically from the
	// caller's point of view, and persists before returning.
	Add(ctx context.Context, embedding []float32, ex Exemplar) (int64, error)

	// Search returns up to k nearest exemplars. When labelFilter is
	// non-empty the index is over-fetched (3k, capped at the index size)
	// and filtered afterwards; filtered search can legitimately return
	// fewer than k results if not enough exemplars carry the label.
	Search(ctx context.Context, query []float32, k int, labelFilter string) ([]Match, error)

	// Remove deletes metadata and vector together. Returns whether
	// anything was removed; removing an absent id is not an error.
	Remove(ctx context.Context, id int64) (bool, error)

	// RemoveByTextAndLabel removes every exemplar whose span text and
	// label match exactly (no fuzzy matching) and returns the count.
	RemoveByTextAndLabel(ctx context.Context, text, label string) (int, error)

	Count(ctx context.Context) (int, error)
	Labels(ctx context.Context) ([]string, error)
	Close() error
}

// StyleStore is the durable backing for StyleScorer state: label centroids
// with observation counts and per-annotator bounded style histories. Absent
// state loads as empty, not as an error.
type StyleStore interface {
	SaveCentroid(ctx context.Context, label string, c Centroid) error
	LoadCentroids(ctx context.Context) (map[string]Centroid, error)

	// AppendObservation appends to an annotator's history and evicts the
	// oldest entries beyond keep, in one durable write.
	AppendObservation(ctx context.Context, annotatorID string, obs StyleObservation, keep int) error
	LoadProfiles(ctx context.Context) (map[string][]StyleObservation, error)

	Close() error
}
