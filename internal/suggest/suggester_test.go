// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Videx Contributors

package suggest

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/videx-dev/videx/internal/provider"
	"github.com/videx-dev/videx/internal/provider/stub"
	"github.com/videx-dev/videx/internal/store/sqlite"
	"github.com/videx-dev/videx/internal/style"
	videxerr "github.com/videx-dev/videx/pkg/errors"
)

const testDims = 8

func newTestSuggester(t *testing.T, generator provider.Generator) *Suggester {
	t.Helper()

	dir, err := os.MkdirTemp("", "videx-test-*")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	exemplars, err := sqlite.NewExemplarStore(filepath.Join(dir, "exemplars.db"), testDims)
	require.NoError(t, err)
	t.Cleanup(func() { exemplars.Close() })

	styleState, err := sqlite.NewStyleStore(filepath.Join(dir, "style.db"))
	require.NoError(t, err)
	t.Cleanup(func() { styleState.Close() })

	embedder := stub.NewEmbedder(testDims)
	scorer, err := style.NewScorer(context.Background(), embedder, styleState)
	require.NoError(t, err)

	if generator == nil {
		generator = stub.NewGenerator()
	}
	return NewSuggester(exemplars, scorer, embedder, generator,
		slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})))
}

func addTestExemplar(t *testing.T, s *Suggester, text, label, annotatorID string) *CommitResult {
	t.Helper()
	result, err := s.AddExemplar(context.Background(), ExemplarInput{
		DocumentID:  "doc-1",
		Text:        text,
		Label:       label,
		SpanStart:   0,
		SpanEnd:     len(text),
		AnnotatorID: annotatorID,
	})
	require.NoError(t, err)
	return result
}

func TestSuggester_NERCycleOnEmptyStore(t *testing.T) {
	s := newTestSuggester(t, nil)

	result, err := s.Suggest(context.Background(), Request{
		Text: "The quick Acme Corp shipped boxes.",
	})
	require.NoError(t, err)

	require.Len(t, result.Suggestions, 2)
	assert.Equal(t, "Acme", result.Suggestions[0].Text)
	assert.Equal(t, "Corp", result.Suggestions[1].Text)
	assert.Equal(t, 0, result.ExemplarsUsed)
	assert.Empty(t, result.Exemplars)
	assert.NotEmpty(t, result.RawResponse)

	// No exemplars, no centroids, no profiles: neutral scoring across the
	// board, equal scores keep generation order.
	for _, cand := range result.Suggestions {
		assert.Equal(t, "ORG", cand.Label)
		require.NotNil(t, cand.Scores)
		assert.Equal(t, 0.0, cand.Scores.ContentSimilarity)
		assert.Equal(t, 0.5, cand.Scores.LabelSimilarity)
		assert.Equal(t, 0.5, cand.Scores.StyleSimilarity)
		assert.InDelta(t, 0.3, cand.Confidence, 1e-9)
	}

	assert.True(t, result.StyleRanking.Enabled)
	assert.Equal(t, 0.0, result.StyleRanking.AvgContentSimilarity)
	assert.Equal(t, 0.5, result.StyleRanking.AvgLabelSimilarity)
	assert.Equal(t, 0.5, result.StyleRanking.AvgStyleSimilarity)
}

func TestSuggester_CycleUsesRetrievedExemplars(t *testing.T) {
	s := newTestSuggester(t, nil)
	ctx := context.Background()

	addTestExemplar(t, s, "Acme Corp", "ORG", "alice")

	result, err := s.Suggest(ctx, Request{
		Text:        "The quick Acme Corp shipped boxes.",
		AnnotatorID: "alice",
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.ExemplarsUsed)
	require.Len(t, result.Exemplars, 1)
	assert.Equal(t, "Acme Corp", result.Exemplars[0].Text)
	assert.Equal(t, "ORG", result.Exemplars[0].Label)
	require.NotEmpty(t, result.Suggestions)
	for _, cand := range result.Suggestions {
		require.NotNil(t, cand.Scores)
	}

	// Ranked descending.
	for i := 1; i < len(result.Suggestions); i++ {
		assert.GreaterOrEqual(t, result.Suggestions[i-1].Confidence, result.Suggestions[i].Confidence)
	}
}

func TestSuggester_ClassificationWithoutStyleRanking(t *testing.T) {
	s := newTestSuggester(t, nil)

	result, err := s.Suggest(context.Background(), Request{
		Text:                "A thoroughly forgettable afternoon.",
		Task:                TaskClassification,
		Labels:              []string{"POSITIVE", "NEGATIVE"},
		DisableStyleRanking: true,
	})
	require.NoError(t, err)

	require.Len(t, result.Suggestions, 1)
	assert.Equal(t, "OTHER", result.Suggestions[0].Label)
	assert.Equal(t, 0.7, result.Suggestions[0].Confidence)
	assert.Nil(t, result.Suggestions[0].Scores)

	assert.False(t, result.StyleRanking.Enabled)
	assert.Equal(t, 0.0, result.StyleRanking.AvgContentSimilarity)
}

func TestSuggester_UnknownTask(t *testing.T) {
	s := newTestSuggester(t, nil)

	_, err := s.Suggest(context.Background(), Request{Text: "x", Task: "summarize"})
	require.Error(t, err)
	assert.True(t, videxerr.IsInvalidInput(err))
}

// garbageGenerator returns output no parse stage can salvage.
type garbageGenerator struct{}

func (garbageGenerator) Name() string { return "garbage" }
func (garbageGenerator) Complete(context.Context, string, string) (string, error) {
	return "I could not find any entities, sorry!", nil
}

func TestSuggester_ParseFailureDegradesToEmpty(t *testing.T) {
	s := newTestSuggester(t, garbageGenerator{})

	addTestExemplar(t, s, "Acme Corp", "ORG", "")

	result, err := s.Suggest(context.Background(), Request{Text: "The quick Acme Corp shipped."})
	require.NoError(t, err)

	assert.Empty(t, result.Suggestions)
	assert.Equal(t, 1, result.ExemplarsUsed)
	assert.NotEmpty(t, result.RawResponse)
}

// failingGenerator simulates an upstream generation outage.
type failingGenerator struct{}

func (failingGenerator) Name() string { return "failing" }
func (failingGenerator) Complete(context.Context, string, string) (string, error) {
	return "", videxerr.New(videxerr.CodeProviderGenerationFailure, "generation request failed")
}

func TestSuggester_GenerationFailurePropagates(t *testing.T) {
	s := newTestSuggester(t, failingGenerator{})

	_, err := s.Suggest(context.Background(), Request{Text: "whatever"})
	require.Error(t, err)
	assert.True(t, videxerr.IsGenerationFailure(err))
}

func TestSuggester_AddExemplarCommit(t *testing.T) {
	s := newTestSuggester(t, nil)

	withAnnotator := addTestExemplar(t, s, "Acme Corp", "ORG", "alice")
	assert.Equal(t, int64(0), withAnnotator.ExemplarID)
	assert.Equal(t, 1, withAnnotator.TotalExemplars)
	assert.Equal(t, 1, withAnnotator.LabelCount)
	assert.False(t, withAnnotator.ProfileSkipped)

	anonymous := addTestExemplar(t, s, "Paris", "LOCATION", "")
	assert.Equal(t, int64(1), anonymous.ExemplarID)
	assert.Equal(t, 2, anonymous.TotalExemplars)
	assert.Equal(t, 1, anonymous.LabelCount)
	assert.True(t, anonymous.ProfileSkipped)

	stats, err := s.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, stats.Style.AnnotatorsTracked)
	assert.ElementsMatch(t, []string{"ORG", "LOCATION"}, stats.Style.LabelsTracked)
}

func TestSuggester_DeleteByTextAndLabel(t *testing.T) {
	s := newTestSuggester(t, nil)
	ctx := context.Background()

	addTestExemplar(t, s, "Acme Corp", "ORG", "alice")
	addTestExemplar(t, s, "Acme Corp", "ORG", "bob")
	addTestExemplar(t, s, "Acme Corp", "PERSON", "alice")

	removed, err := s.DeleteByTextAndLabel(ctx, "Acme Corp", "ORG")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	removed, err = s.DeleteByTextAndLabel(ctx, "Acme Corp", "ORG")
	require.NoError(t, err)
	assert.Equal(t, 0, removed)

	// Centroids keep the deleted exemplars' contributions.
	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalExemplars)
	assert.Equal(t, 2, stats.Style.LabelCounts["ORG"])
}

func TestSuggester_Search(t *testing.T) {
	s := newTestSuggester(t, nil)
	ctx := context.Background()

	addTestExemplar(t, s, "Acme Corp", "ORG", "")
	addTestExemplar(t, s, "Paris", "LOCATION", "")

	matches, err := s.Search(ctx, "Acme Corp", 5, "")
	require.NoError(t, err)
	require.Len(t, matches, 2)
	// Identical text embeds identically, so the exact match leads.
	assert.Equal(t, "Acme Corp", matches[0].Exemplar.Text)
	assert.InDelta(t, 1.0, matches[0].Similarity, 1e-5)

	matches, err = s.Search(ctx, "Acme Corp", 5, "LOCATION")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "Paris", matches[0].Exemplar.Text)
}

func TestSuggester_ScoreWithoutRetrieval(t *testing.T) {
	s := newTestSuggester(t, nil)
	ctx := context.Background()

	breakdown, err := s.Score(ctx, ScoreInput{Text: "Acme Corp", Label: "ORG"})
	require.NoError(t, err)
	assert.Equal(t, 0.0, breakdown.ContentSimilarity)
	assert.Equal(t, 0.5, breakdown.LabelSimilarity)
	assert.Equal(t, 0.5, breakdown.StyleSimilarity)
	assert.Equal(t, style.DefaultWeights, breakdown.Weights)

	addTestExemplar(t, s, "Acme Corp", "ORG", "alice")

	breakdown, err = s.Score(ctx, ScoreInput{Text: "Acme Corp", Label: "ORG", AnnotatorID: "alice"})
	require.NoError(t, err)
	// Same text embeds to the same style vector the centroid and profile
	// were built from.
	assert.InDelta(t, 1.0, breakdown.LabelSimilarity, 1e-5)
	assert.InDelta(t, 1.0, breakdown.StyleSimilarity, 1e-5)
}

func TestSuggester_StatsOnEmptyState(t *testing.T) {
	s := newTestSuggester(t, nil)

	stats, err := s.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalExemplars)
	assert.Empty(t, stats.LabelsInIndex)
	assert.Equal(t, testDims, stats.EmbeddingDimensions)
	assert.Empty(t, stats.Style.LabelsTracked)
	assert.Equal(t, 0, stats.Style.TotalAnnotationsTracked)
}

func TestSuggester_ProviderHealthTracking(t *testing.T) {
	s := newTestSuggester(t, failingGenerator{})
	ctx := context.Background()

	emb, gen := s.ProviderHealth()
	assert.True(t, emb.Available)
	assert.True(t, gen.Available)
	assert.Equal(t, int64(0), gen.FailureCount)

	for range 3 {
		_, err := s.Suggest(ctx, Request{Text: "Acme Corp opened."})
		require.Error(t, err)
	}

	emb, gen = s.ProviderHealth()
	assert.True(t, emb.Available, "embedding calls all succeeded")
	assert.False(t, gen.Available, "generator should be in cooldown after consecutive failures")
	assert.Equal(t, int64(3), gen.FailureCount)
	assert.NotNil(t, gen.LastFailureAt)
}

func TestSuggester_ConfiguredRetrievalDepth(t *testing.T) {
	s := newTestSuggester(t, nil)
	s.SetDefaultTopK(1)
	ctx := context.Background()

	addTestExemplar(t, s, "Acme Corp announced earnings.", "ORG", "alice")
	addTestExemplar(t, s, "Globex opened a factory.", "ORG", "alice")
	addTestExemplar(t, s, "Initech shipped a release.", "ORG", "alice")

	// Requests without an explicit top_k use the configured depth.
	result, err := s.Suggest(ctx, Request{Text: "Acme Corp announced earnings."})
	require.NoError(t, err)
	assert.Equal(t, 1, result.ExemplarsUsed)

	matches, err := s.Search(ctx, "Acme Corp announced earnings.", 0, "")
	require.NoError(t, err)
	assert.Len(t, matches, 1)

	// An explicit request value still wins.
	result, err = s.Suggest(ctx, Request{Text: "Acme Corp announced earnings.", TopK: 3})
	require.NoError(t, err)
	assert.Equal(t, 3, result.ExemplarsUsed)

	// Non-positive configured values are ignored.
	s.SetDefaultTopK(0)
	matches, err = s.Search(ctx, "Acme Corp announced earnings.", 0, "")
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}
