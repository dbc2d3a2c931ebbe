// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Videx Contributors

// Package style maintains the online statistics behind annotation
// suggestion re-ranking: per-label centroid vectors and bounded
// per-annotator style histories, plus the scoring functions that compare a
// candidate suggestion against them.
package style

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/videx-dev/videx/internal/provider"
	"github.com/videx-dev/videx/internal/store"
	videxerr "github.com/videx-dev/videx/pkg/errors"
)

const (
	// profileCapacity bounds each annotator's style history; the oldest
	// observation is evicted once a 101st arrives.
	profileCapacity = 100

	// recentOwnWindow is how many of an annotator's own observations feed
	// styleSimilarity when they have history.
	recentOwnWindow = 10

	// recentPoolWindow is how many observations per tracked annotator are
	// pooled when the requested annotator has none.
	recentPoolWindow = 5

	// neutralScore is returned when there is no history to compare
	// against: neither evidence for nor against the candidate.
	neutralScore = 0.5
)

// Weights blends the three similarity signals into a combined score.
type Weights struct {
	Content float64
	Label   float64
	Style   float64
}

// DefaultWeights is the reference blend.
var DefaultWeights = Weights{Content: 0.4, Label: 0.3, Style: 0.3}

func (w Weights) sum() float64 { return w.Content + w.Label + w.Style }

// Breakdown carries the individual similarity signals behind a combined
// score, and the weights that produced it.
type Breakdown struct {
	ContentSimilarity float64
	LabelSimilarity   float64
	StyleSimilarity   float64
	Combined          float64
	Weights           Weights
}

// Candidate is one suggested annotation produced by a generation cycle.
// Candidates are transient; they are never persisted.
type Candidate struct {
	Text       string
	Label      string
	SpanStart  int
	SpanEnd    int
	Confidence float64
	Rationale  string
	Source     string
	Scores     *Breakdown
}

// ScoreRequest describes one candidate to score. A zero Weights value
// selects DefaultWeights.
type ScoreRequest struct {
	Text               string
	Label              string
	Context            string
	Rationale          string
	ExemplarEmbeddings [][]float32
	AnnotatorID        string
	Weights            Weights
}

// Stats summarises tracked scorer state.
type Stats struct {
	LabelsTracked           []string
	LabelCounts             map[string]int
	AnnotatorsTracked       []string
	TotalAnnotationsTracked int
}

// Scorer holds centroid and profile state in memory, mirrored to a
// StyleStore. Updates are serialized; scoring reads run concurrently.
//
// Exemplar deletion deliberately does not touch this state: a removed
// exemplar keeps its contribution to centroids and profiles. Rolling the
// running means back would require per-exemplar bookkeeping the scorer
// intentionally does not have.
type Scorer struct {
	mu       sync.RWMutex
	embedder provider.Embedder
	persist  store.StyleStore
	weights  Weights

	centroids map[string]store.Centroid
	profiles  map[string][]store.StyleObservation
}

// NewScorer loads persisted centroids and profiles and returns a ready
// scorer. An empty store starts empty.
func NewScorer(ctx context.Context, embedder provider.Embedder, persist store.StyleStore) (*Scorer, error) {
	centroids, err := persist.LoadCentroids(ctx)
	if err != nil {
		return nil, err
	}
	profiles, err := persist.LoadProfiles(ctx)
	if err != nil {
		return nil, err
	}

	return &Scorer{
		embedder:  embedder,
		persist:   persist,
		weights:   DefaultWeights,
		centroids: centroids,
		profiles:  profiles,
	}, nil
}

// SetWeights replaces the blend used when a score request does not carry
// its own weights.
func (s *Scorer) SetWeights(w Weights) error {
	if w.sum() <= 0 {
		return videxerr.Errorf(videxerr.CodeStyleInvalidWeights,
			"weights must sum to a positive value, got %v", w)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.weights = w
	return nil
}

// StyleEmbedding embeds the structured string combining label, optional
// context, span text, and optional rationale. This is the representation
// centroids and profiles are built from.
func (s *Scorer) StyleEmbedding(ctx context.Context, text, label, docContext, rationale string) ([]float32, error) {
	var sb strings.Builder
	if docContext != "" {
		sb.WriteString(docContext)
		sb.WriteString(" -> ")
	}
	sb.WriteString("[")
	sb.WriteString(label)
	sb.WriteString("] ")
	sb.WriteString(text)
	if rationale != "" {
		sb.WriteString(" (")
		sb.WriteString(rationale)
		sb.WriteString(")")
	}

	return s.embedder.Embed(ctx, sb.String())
}

// RecordLabelObservation folds one style embedding into the label's
// running-mean centroid: (centroid*n + embedding) / (n+1). The first
// observation sets the centroid directly. The new centroid is persisted
// before the in-memory state moves, so a failed write leaves the scorer
// uncommitted.
func (s *Scorer) RecordLabelObservation(ctx context.Context, label string, embedding []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var next store.Centroid
	cur, ok := s.centroids[label]
	if !ok {
		next = store.Centroid{Vector: append([]float32(nil), embedding...), Count: 1}
	} else {
		n := float64(cur.Count)
		vec := make([]float32, len(cur.Vector))
		for i := range vec {
			vec[i] = float32((float64(cur.Vector[i])*n + float64(embedding[i])) / (n + 1))
		}
		next = store.Centroid{Vector: vec, Count: cur.Count + 1}
	}

	if err := s.persist.SaveCentroid(ctx, label, next); err != nil {
		return err
	}
	s.centroids[label] = next
	return nil
}

// RecordAnnotatorObservation appends to the annotator's bounded history,
// evicting the oldest entry beyond capacity. Persisted before the
// in-memory window moves.
func (s *Scorer) RecordAnnotatorObservation(ctx context.Context, annotatorID string, embedding []float32, label string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	obs := store.StyleObservation{
		Embedding: append([]float32(nil), embedding...),
		Label:     label,
	}
	if err := s.persist.AppendObservation(ctx, annotatorID, obs, profileCapacity); err != nil {
		return err
	}

	window := append(s.profiles[annotatorID], obs)
	if len(window) > profileCapacity {
		window = window[len(window)-profileCapacity:]
	}
	s.profiles[annotatorID] = window
	return nil
}

// ContentSimilarity is the mean cosine similarity between the candidate
// and the retrieved exemplar embeddings; 0 with no exemplars.
func (s *Scorer) ContentSimilarity(candidate []float32, exemplarEmbeddings [][]float32) float64 {
	if len(exemplarEmbeddings) == 0 {
		return 0.0
	}

	var sum float64
	for _, emb := range exemplarEmbeddings {
		sum += dot(candidate, emb)
	}
	return sum / float64(len(exemplarEmbeddings))
}

// LabelSimilarity is the cosine similarity to the label's centroid, or the
// neutral prior for a label with no history.
func (s *Scorer) LabelSimilarity(label string, candidate []float32) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	centroid, ok := s.centroids[label]
	if !ok {
		return neutralScore
	}
	return dot(candidate, centroid.Vector)
}

// StyleSimilarity compares the candidate against the annotator's recent
// observations, falling back to a pool of every tracked annotator's recent
// observations, then to the neutral prior when nobody has history.
func (s *Scorer) StyleSimilarity(candidate []float32, annotatorID string) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if annotatorID != "" {
		if window := tail(s.profiles[annotatorID], recentOwnWindow); len(window) > 0 {
			return meanDot(candidate, window)
		}
	}

	var pooled []store.StyleObservation
	for _, profile := range s.profiles {
		pooled = append(pooled, tail(profile, recentPoolWindow)...)
	}
	if len(pooled) > 0 {
		return meanDot(candidate, pooled)
	}

	return neutralScore
}

// CombinedScore embeds the candidate's structured style string and blends
// the three similarity signals into one score.
func (s *Scorer) CombinedScore(ctx context.Context, req ScoreRequest) (Breakdown, error) {
	weights := req.Weights
	if weights == (Weights{}) {
		s.mu.RLock()
		weights = s.weights
		s.mu.RUnlock()
	}
	if weights.sum() <= 0 {
		return Breakdown{}, videxerr.Errorf(videxerr.CodeStyleInvalidWeights,
			"weights must sum to a positive value, got %v", weights)
	}

	candidate, err := s.StyleEmbedding(ctx, req.Text, req.Label, req.Context, req.Rationale)
	if err != nil {
		return Breakdown{}, err
	}

	breakdown := Breakdown{
		ContentSimilarity: s.ContentSimilarity(candidate, req.ExemplarEmbeddings),
		LabelSimilarity:   s.LabelSimilarity(req.Label, candidate),
		StyleSimilarity:   s.StyleSimilarity(candidate, req.AnnotatorID),
		Weights:           weights,
	}
	breakdown.Combined = breakdown.ContentSimilarity*weights.Content +
		breakdown.LabelSimilarity*weights.Label +
		breakdown.StyleSimilarity*weights.Style
	return breakdown, nil
}

// Rank scores every candidate, overwrites its confidence with the combined
// score, and sorts descending. The sort is stable: candidates with equal
// scores keep their input order.
func (s *Scorer) Rank(ctx context.Context, candidates []Candidate, docContext string, exemplarEmbeddings [][]float32, annotatorID string) ([]Candidate, error) {
	ranked := make([]Candidate, len(candidates))
	for i, cand := range candidates {
		breakdown, err := s.CombinedScore(ctx, ScoreRequest{
			Text:               cand.Text,
			Label:              cand.Label,
			Context:            docContext,
			Rationale:          cand.Rationale,
			ExemplarEmbeddings: exemplarEmbeddings,
			AnnotatorID:        annotatorID,
		})
		if err != nil {
			return nil, err
		}

		cand.Scores = &breakdown
		cand.Confidence = breakdown.Combined
		ranked[i] = cand
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Scores.Combined > ranked[j].Scores.Combined
	})
	return ranked, nil
}

// Stats reports tracked labels, per-label observation counts, and
// annotator history sizes.
func (s *Scorer) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{
		LabelsTracked:     make([]string, 0, len(s.centroids)),
		LabelCounts:       make(map[string]int, len(s.centroids)),
		AnnotatorsTracked: make([]string, 0, len(s.profiles)),
	}
	for label, centroid := range s.centroids {
		stats.LabelsTracked = append(stats.LabelsTracked, label)
		stats.LabelCounts[label] = centroid.Count
	}
	for annotator, profile := range s.profiles {
		stats.AnnotatorsTracked = append(stats.AnnotatorsTracked, annotator)
		stats.TotalAnnotationsTracked += len(profile)
	}
	sort.Strings(stats.LabelsTracked)
	sort.Strings(stats.AnnotatorsTracked)
	return stats
}

// LabelCount returns the observation count for one label.
func (s *Scorer) LabelCount(label string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.centroids[label].Count
}

func tail(obs []store.StyleObservation, n int) []store.StyleObservation {
	if len(obs) <= n {
		return obs
	}
	return obs[len(obs)-n:]
}

func meanDot(candidate []float32, obs []store.StyleObservation) float64 {
	var sum float64
	for _, o := range obs {
		sum += dot(candidate, o.Embedding)
	}
	return sum / float64(len(obs))
}

func dot(a, b []float32) float64 {
	n := min(len(a), len(b))
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
