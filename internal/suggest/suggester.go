// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Videx Contributors

// Package suggest orchestrates the retrieval-augmented suggestion cycle:
// embed the query, retrieve exemplars, prompt the generation provider with
// annotation blocks, parse its output, and re-rank by style.
package suggest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/videx-dev/videx/internal/provider"
	"github.com/videx-dev/videx/internal/store"
	"github.com/videx-dev/videx/internal/style"
	videxerr "github.com/videx-dev/videx/pkg/errors"
	"github.com/videx-dev/videx/pkg/health"
)

// Task selects which prompt family a suggestion cycle uses.
const (
	TaskNER            = "ner"
	TaskClassification = "classification"
)

const defaultTopK = 5

// DefaultLabels is used when a request supplies no label set.
var DefaultLabels = []string{"ORG", "PERSON", "LOCATION", "DATE", "OTHER"}

// Request describes one suggestion cycle. Zero values select defaults:
// TaskNER, DefaultLabels, the configured retrieval depth, style ranking on.
type Request struct {
	Text                string
	Task                string
	Labels              []string
	TopK                int
	AnnotatorID         string
	DisableStyleRanking bool
}

// RetrievedExemplar is the caller-visible slice of a retrieval hit.
type RetrievedExemplar struct {
	Text  string
	Label string
	Score float64
}

// StyleStats aggregates the component scores across a cycle's final
// suggestion list.
type StyleStats struct {
	Enabled              bool
	AnnotatorID          string
	AvgContentSimilarity float64
	AvgLabelSimilarity   float64
	AvgStyleSimilarity   float64
}

// Result is the outcome of one suggestion cycle.
type Result struct {
	Suggestions   []style.Candidate
	ExemplarsUsed int
	Exemplars     []RetrievedExemplar
	StyleRanking  StyleStats
	RawResponse   string
}

// ExemplarInput is a confirmed annotation to commit as an exemplar.
type ExemplarInput struct {
	DocumentID  string
	Text        string
	Label       string
	SpanStart   int
	SpanEnd     int
	Context     string
	Rationale   string
	AnnotatorID string
}

// CommitResult reports a committed exemplar. ProfileSkipped is set when no
// annotator id was supplied, so no annotator profile was updated.
type CommitResult struct {
	ExemplarID     int64
	TotalExemplars int
	LabelCount     int
	ProfileSkipped bool
}

// ScoreInput is a candidate to score in isolation, without a retrieval
// cycle: content similarity has no exemplars to compare against.
type ScoreInput struct {
	Text        string
	Label       string
	Context     string
	Rationale   string
	AnnotatorID string
}

// Stats summarises the store and scorer behind the suggester.
type Stats struct {
	TotalExemplars      int
	LabelsInIndex       []string
	EmbeddingDimensions int
	Style               style.Stats
}

// Suggester wires the exemplar store, style scorer, and providers into the
// suggest / commit / delete flows.
type Suggester struct {
	store     store.ExemplarStore
	scorer    *style.Scorer
	embedder  provider.Embedder
	generator provider.Generator
	logger    *slog.Logger
	topK      int

	embedHealth *health.Tracker
	genHealth   *health.Tracker
}

func NewSuggester(st store.ExemplarStore, scorer *style.Scorer, embedder provider.Embedder, generator provider.Generator, logger *slog.Logger) *Suggester {
	if logger == nil {
		logger = slog.Default()
	}
	return &Suggester{
		store:       st,
		scorer:      scorer,
		embedder:    embedder,
		generator:   generator,
		logger:      logger,
		topK:        defaultTopK,
		embedHealth: health.NewTracker(),
		genHealth:   health.NewTracker(),
	}
}

// SetDefaultTopK sets the retrieval depth used when a request does not
// supply one. Non-positive values are ignored.
func (s *Suggester) SetDefaultTopK(k int) {
	if k > 0 {
		s.topK = k
	}
}

// ProviderHealth reports availability metrics for the embedding and
// generation providers, based on calls made through the suggester.
func (s *Suggester) ProviderHealth() (embedding, generation health.Metrics) {
	return s.embedHealth.Snapshot(), s.genHealth.Snapshot()
}

// embed calls the embedding provider and records the outcome.
func (s *Suggester) embed(ctx context.Context, text string) ([]float32, error) {
	emb, err := s.embedder.Embed(ctx, text)
	if err != nil {
		s.embedHealth.Failure()
		return nil, err
	}
	s.embedHealth.Success()
	return emb, nil
}

// Suggest runs one suggestion cycle. Embedding and generation failures
// propagate; unparseable generation output degrades to zero suggestions
// with retrieval counts still reported.
func (s *Suggester) Suggest(ctx context.Context, req Request) (*Result, error) {
	task := req.Task
	if task == "" {
		task = TaskNER
	}
	labels := req.Labels
	if len(labels) == 0 {
		labels = DefaultLabels
	}
	topK := req.TopK
	if topK <= 0 {
		topK = s.topK
	}

	queryEmbedding, err := s.embed(ctx, req.Text)
	if err != nil {
		return nil, err
	}

	exemplars, exemplarEmbeddings, err := s.retrieve(ctx, queryEmbedding, topK)
	if err != nil {
		return nil, err
	}

	var system, user string
	switch task {
	case TaskClassification:
		system, user = buildClassificationPrompt(req.Text, labels, exemplarMeta(exemplars))
	case TaskNER:
		system, user = buildNERPrompt(req.Text, labels, exemplarMeta(exemplars))
	default:
		return nil, videxerr.Errorf(videxerr.CodeSuggestInvalidInput, "unknown task %q", task)
	}

	raw, err := s.generator.Complete(ctx, system, user)
	if err != nil {
		s.genHealth.Failure()
		return nil, err
	}
	s.genHealth.Success()

	suggestions, err := parseCandidates(raw)
	if err != nil {
		s.logger.Warn("generation output unparseable, returning no suggestions",
			"task", task, "error", err)
		suggestions = nil
	}

	result := &Result{
		Suggestions:   suggestions,
		ExemplarsUsed: len(exemplars),
		Exemplars:     retrievedView(exemplars),
		StyleRanking: StyleStats{
			Enabled:     !req.DisableStyleRanking,
			AnnotatorID: req.AnnotatorID,
		},
		RawResponse: raw,
	}

	if !req.DisableStyleRanking && len(suggestions) > 0 {
		ranked, err := s.scorer.Rank(ctx, suggestions, req.Text, exemplarEmbeddings, req.AnnotatorID)
		if err != nil {
			return nil, err
		}
		result.Suggestions = ranked

		for _, cand := range ranked {
			result.StyleRanking.AvgContentSimilarity += cand.Scores.ContentSimilarity
			result.StyleRanking.AvgLabelSimilarity += cand.Scores.LabelSimilarity
			result.StyleRanking.AvgStyleSimilarity += cand.Scores.StyleSimilarity
		}
		n := float64(len(ranked))
		result.StyleRanking.AvgContentSimilarity /= n
		result.StyleRanking.AvgLabelSimilarity /= n
		result.StyleRanking.AvgStyleSimilarity /= n
	}

	return result, nil
}

// retrieve fetches the nearest exemplars (unfiltered) and computes each
// one's style embedding for later scoring. An empty store retrieves
// nothing and skips the extra embedding calls.
func (s *Suggester) retrieve(ctx context.Context, queryEmbedding []float32, topK int) ([]store.Match, [][]float32, error) {
	count, err := s.store.Count(ctx)
	if err != nil {
		return nil, nil, err
	}
	if count == 0 {
		return nil, nil, nil
	}

	matches, err := s.store.Search(ctx, queryEmbedding, topK, "")
	if err != nil {
		return nil, nil, err
	}

	embeddings := make([][]float32, 0, len(matches))
	for _, m := range matches {
		emb, err := s.embed(ctx, fmt.Sprintf("[%s] %s", m.Exemplar.Label, m.Exemplar.Text))
		if err != nil {
			return nil, nil, err
		}
		embeddings = append(embeddings, emb)
	}
	return matches, embeddings, nil
}

// AddExemplar commits a confirmed annotation: one retrieval embedding into
// the store, one style embedding folded into the label centroid, and,
// when an annotator id is supplied, into that annotator's profile.
func (s *Suggester) AddExemplar(ctx context.Context, in ExemplarInput) (*CommitResult, error) {
	embedText := in.Text
	if in.Context != "" {
		embedText = in.Context + " " + in.Text
	}
	contentEmbedding, err := s.embed(ctx, embedText)
	if err != nil {
		return nil, err
	}

	styleEmbedding, err := s.scorer.StyleEmbedding(ctx, in.Text, in.Label, in.Context, in.Rationale)
	if err != nil {
		return nil, err
	}

	id, err := s.store.Add(ctx, contentEmbedding, store.Exemplar{
		DocumentID:  in.DocumentID,
		Text:        in.Text,
		Label:       in.Label,
		SpanStart:   in.SpanStart,
		SpanEnd:     in.SpanEnd,
		Context:     in.Context,
		Rationale:   in.Rationale,
		AnnotatorID: in.AnnotatorID,
	})
	if err != nil {
		return nil, err
	}

	if err := s.scorer.RecordLabelObservation(ctx, in.Label, styleEmbedding); err != nil {
		return nil, err
	}

	result := &CommitResult{ExemplarID: id}
	if in.AnnotatorID == "" {
		result.ProfileSkipped = true
	} else if err := s.scorer.RecordAnnotatorObservation(ctx, in.AnnotatorID, styleEmbedding, in.Label); err != nil {
		return nil, err
	}

	total, err := s.store.Count(ctx)
	if err != nil {
		return nil, err
	}
	result.TotalExemplars = total
	result.LabelCount = s.scorer.LabelCount(in.Label)
	return result, nil
}

// DeleteByTextAndLabel removes matching exemplars from the store. Centroids
// and profiles keep the deleted exemplars' contributions.
func (s *Suggester) DeleteByTextAndLabel(ctx context.Context, text, label string) (int, error) {
	return s.store.RemoveByTextAndLabel(ctx, text, label)
}

// Search embeds the query text and returns the nearest exemplars,
// optionally restricted to one label.
func (s *Suggester) Search(ctx context.Context, text string, k int, labelFilter string) ([]store.Match, error) {
	if k <= 0 {
		k = s.topK
	}
	queryEmbedding, err := s.embed(ctx, text)
	if err != nil {
		return nil, err
	}
	return s.store.Search(ctx, queryEmbedding, k, labelFilter)
}

// Score computes the combined score for a single candidate outside any
// retrieval cycle; content similarity is 0 with no exemplars to compare to.
func (s *Suggester) Score(ctx context.Context, in ScoreInput) (style.Breakdown, error) {
	return s.scorer.CombinedScore(ctx, style.ScoreRequest{
		Text:        in.Text,
		Label:       in.Label,
		Context:     in.Context,
		Rationale:   in.Rationale,
		AnnotatorID: in.AnnotatorID,
	})
}

// Stats reports store and scorer state.
func (s *Suggester) Stats(ctx context.Context) (*Stats, error) {
	total, err := s.store.Count(ctx)
	if err != nil {
		return nil, err
	}
	labels, err := s.store.Labels(ctx)
	if err != nil {
		return nil, err
	}
	return &Stats{
		TotalExemplars:      total,
		LabelsInIndex:       labels,
		EmbeddingDimensions: s.embedder.Dimensions(),
		Style:               s.scorer.Stats(),
	}, nil
}

func exemplarMeta(matches []store.Match) []store.Exemplar {
	out := make([]store.Exemplar, len(matches))
	for i, m := range matches {
		out[i] = m.Exemplar
	}
	return out
}

func retrievedView(matches []store.Match) []RetrievedExemplar {
	out := make([]RetrievedExemplar, len(matches))
	for i, m := range matches {
		out[i] = RetrievedExemplar{
			Text:  m.Exemplar.Text,
			Label: m.Exemplar.Label,
			Score: m.Similarity,
		}
	}
	return out
}
