// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Videx Contributors

package store

// DefaultAnnotatorID is the shared sentinel recorded when a caller does not
// identify the annotator.
const DefaultAnnotatorID = "default"

// Exemplar is a confirmed annotated text span stored for future retrieval.
// Records are immutable once created: they are added on commit and removed
// on delete, never updated in place.
type Exemplar struct {
	ID          int64
	DocumentID  string
	Text        string
	Label       string
	SpanStart   int
	SpanEnd     int
	Context     string
	Rationale   string
	AnnotatorID string
}

// Match is a single retrieval hit: an exemplar and its similarity to the
// query vector (inner product on unit vectors, 1.0 = identical).
type Match struct {
	Exemplar   Exemplar
	Similarity float64
}

// Centroid is the running-mean style embedding for a label, together with
// the number of observations folded into it.
type Centroid struct {
	Vector []float32
	Count  int
}

// StyleObservation is one entry of an annotator's bounded style history.
type StyleObservation struct {
	Embedding []float32
	Label     string
}
