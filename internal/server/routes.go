// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Videx Contributors

package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/videx-dev/videx/internal/provider"
	"github.com/videx-dev/videx/internal/style"
	"github.com/videx-dev/videx/internal/suggest"
	videxerr "github.com/videx-dev/videx/pkg/errors"
)

// Services holds the dependencies behind the REST routes.
type Services struct {
	Suggester *suggest.Suggester
	Embedder  provider.Embedder
}

// RegisterServices sets the service dependencies and registers REST routes.
func (s *Server) RegisterServices(svc *Services) {
	s.services = svc
	s.registerRoutes()
}

func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "stats",
		Method:      http.MethodGet,
		Path:        "/api/v1/stats",
		Summary:     "Store and scorer statistics",
		Tags:        []string{"system"},
	}, s.handleStats)

	huma.Register(s.api, huma.Operation{
		OperationID: "suggest",
		Method:      http.MethodPost,
		Path:        "/api/v1/suggest",
		Summary:     "Generate ranked annotation suggestions",
		Tags:        []string{"suggest"},
	}, s.handleSuggest)

	huma.Register(s.api, huma.Operation{
		OperationID: "add-exemplar",
		Method:      http.MethodPost,
		Path:        "/api/v1/exemplars",
		Summary:     "Commit a confirmed annotation as an exemplar",
		Tags:        []string{"exemplars"},
	}, s.handleAddExemplar)

	huma.Register(s.api, huma.Operation{
		OperationID: "delete-exemplars",
		Method:      http.MethodPost,
		Path:        "/api/v1/exemplars/delete",
		Summary:     "Delete exemplars matching text and label",
		Tags:        []string{"exemplars"},
	}, s.handleDeleteExemplars)

	huma.Register(s.api, huma.Operation{
		OperationID: "search",
		Method:      http.MethodPost,
		Path:        "/api/v1/search",
		Summary:     "Nearest-exemplar search",
		Tags:        []string{"exemplars"},
	}, s.handleSearch)

	huma.Register(s.api, huma.Operation{
		OperationID: "score",
		Method:      http.MethodPost,
		Path:        "/api/v1/score",
		Summary:     "Score a single candidate annotation",
		Tags:        []string{"suggest"},
	}, s.handleScore)

	huma.Register(s.api, huma.Operation{
		OperationID: "embed",
		Method:      http.MethodPost,
		Path:        "/api/v1/embed",
		Summary:     "Embed a batch of texts",
		Tags:        []string{"system"},
	}, s.handleEmbed)
}

// --- Wire types ---

type styleScoresWire struct {
	ContentSimilarity float64 `json:"content_similarity"`
	LabelSimilarity   float64 `json:"label_similarity"`
	StyleSimilarity   float64 `json:"style_similarity"`
	Combined          float64 `json:"combined"`
}

type suggestionWire struct {
	Text        string           `json:"text"`
	Label       string           `json:"label"`
	SpanStart   int              `json:"span_start"`
	SpanEnd     int              `json:"span_end"`
	Confidence  float64          `json:"confidence"`
	Rationale   string           `json:"rationale"`
	Source      string           `json:"source"`
	StyleScores *styleScoresWire `json:"style_scores,omitempty"`
}

type exemplarWire struct {
	ID          int64   `json:"id"`
	DocumentID  string  `json:"document_id"`
	Text        string  `json:"text"`
	Label       string  `json:"label"`
	SpanStart   int     `json:"span_start"`
	SpanEnd     int     `json:"span_end"`
	Context     string  `json:"context,omitempty"`
	Rationale   string  `json:"rationale,omitempty"`
	AnnotatorID string  `json:"annotator_id"`
	Similarity  float64 `json:"similarity"`
}

type suggestInput struct {
	Body struct {
		Text               string   `json:"text" minLength:"1" doc:"Text to annotate or classify"`
		Task               string   `json:"task,omitempty" enum:"ner,classification" doc:"Task type, defaults to ner"`
		Labels             []string `json:"labels,omitempty" doc:"Label set, defaults to ORG/PERSON/LOCATION/DATE/OTHER"`
		TopK               int      `json:"top_k,omitempty" minimum:"0" doc:"Exemplars to retrieve, defaults to 5"`
		AnnotatorID        string   `json:"annotator_id,omitempty" doc:"Annotator for style matching"`
		EnableStyleRanking *bool    `json:"enable_style_ranking,omitempty" doc:"Re-rank by style, defaults to true"`
	}
}

type suggestOutput struct {
	Body struct {
		Suggestions   []suggestionWire `json:"suggestions"`
		ExemplarsUsed int              `json:"exemplars_used"`
		Exemplars     []struct {
			Text  string  `json:"text"`
			Label string  `json:"label"`
			Score float64 `json:"score"`
		} `json:"exemplars"`
		StyleRanking struct {
			Enabled              bool    `json:"enabled"`
			AnnotatorID          string  `json:"annotator_id,omitempty"`
			AvgContentSimilarity float64 `json:"avg_content_similarity"`
			AvgLabelSimilarity   float64 `json:"avg_label_similarity"`
			AvgStyleSimilarity   float64 `json:"avg_style_similarity"`
		} `json:"style_ranking"`
		RawResponse string `json:"raw_response"`
	}
}

type addExemplarInput struct {
	Body struct {
		DocumentID  string `json:"document_id,omitempty" doc:"Source document id"`
		Text        string `json:"text" minLength:"1" doc:"Annotated span text"`
		Label       string `json:"label" minLength:"1" doc:"Annotation label"`
		SpanStart   int    `json:"span_start" minimum:"0"`
		SpanEnd     int    `json:"span_end" minimum:"0"`
		Context     string `json:"context,omitempty" doc:"Surrounding document context"`
		Rationale   string `json:"rationale,omitempty" doc:"Annotator's explanation"`
		AnnotatorID string `json:"annotator_id,omitempty"`
	}
}

type addExemplarOutput struct {
	Body struct {
		ExemplarID     int64 `json:"exemplar_id"`
		TotalExemplars int   `json:"total_exemplars"`
		LabelCount     int   `json:"label_count"`
		ProfileSkipped bool  `json:"profile_skipped"`
	}
}

type deleteExemplarsInput struct {
	Body struct {
		Text  string `json:"text" minLength:"1"`
		Label string `json:"label" minLength:"1"`
	}
}

type deleteExemplarsOutput struct {
	Body struct {
		Removed int `json:"removed"`
	}
}

type searchInput struct {
	Body struct {
		Text  string `json:"text" minLength:"1" doc:"Query text"`
		K     int    `json:"k,omitempty" minimum:"0" doc:"Result count, defaults to 5"`
		Label string `json:"label,omitempty" doc:"Restrict results to one label"`
	}
}

type searchOutput struct {
	Body struct {
		Matches []exemplarWire `json:"matches"`
	}
}

type scoreInput struct {
	Body struct {
		Text        string `json:"text" minLength:"1"`
		Label       string `json:"label" minLength:"1"`
		Context     string `json:"context,omitempty"`
		Rationale   string `json:"rationale,omitempty"`
		AnnotatorID string `json:"annotator_id,omitempty"`
	}
}

type scoreOutput struct {
	Body struct {
		ContentSimilarity float64 `json:"content_similarity"`
		LabelSimilarity   float64 `json:"label_similarity"`
		StyleSimilarity   float64 `json:"style_similarity"`
		Combined          float64 `json:"combined"`
		Weights           struct {
			Content float64 `json:"content"`
			Label   float64 `json:"label"`
			Style   float64 `json:"style"`
		} `json:"weights"`
	}
}

type embedInput struct {
	Body struct {
		Texts []string `json:"texts" minItems:"1" doc:"Texts to embed"`
	}
}

type embedOutput struct {
	Body struct {
		Embeddings [][]float32 `json:"embeddings"`
		Dimensions int         `json:"dimensions"`
	}
}

type statsOutput struct {
	Body struct {
		Retriever struct {
			TotalExemplars int      `json:"total_exemplars"`
			LabelsInIndex  []string `json:"labels_in_index"`
		} `json:"retriever"`
		StyleScorer struct {
			LabelsTracked           []string       `json:"labels_tracked"`
			LabelCounts             map[string]int `json:"label_counts"`
			AnnotatorsTracked       []string       `json:"annotators_tracked"`
			TotalAnnotationsTracked int            `json:"total_annotations_tracked"`
		} `json:"style_scorer"`
		EmbeddingDimensions int `json:"embedding_dimensions"`
	}
}

// --- Handlers ---

func (s *Server) handleStats(ctx context.Context, _ *struct{}) (*statsOutput, error) {
	stats, err := s.services.Suggester.Stats(ctx)
	if err != nil {
		return nil, humaError(err)
	}

	out := &statsOutput{}
	out.Body.Retriever.TotalExemplars = stats.TotalExemplars
	out.Body.Retriever.LabelsInIndex = stats.LabelsInIndex
	out.Body.StyleScorer.LabelsTracked = stats.Style.LabelsTracked
	out.Body.StyleScorer.LabelCounts = stats.Style.LabelCounts
	out.Body.StyleScorer.AnnotatorsTracked = stats.Style.AnnotatorsTracked
	out.Body.StyleScorer.TotalAnnotationsTracked = stats.Style.TotalAnnotationsTracked
	out.Body.EmbeddingDimensions = stats.EmbeddingDimensions
	return out, nil
}

func (s *Server) handleSuggest(ctx context.Context, input *suggestInput) (*suggestOutput, error) {
	disableRanking := input.Body.EnableStyleRanking != nil && !*input.Body.EnableStyleRanking

	result, err := s.services.Suggester.Suggest(ctx, suggest.Request{
		Text:                input.Body.Text,
		Task:                input.Body.Task,
		Labels:              input.Body.Labels,
		TopK:                input.Body.TopK,
		AnnotatorID:         input.Body.AnnotatorID,
		DisableStyleRanking: disableRanking,
	})
	if err != nil {
		return nil, humaError(err)
	}

	out := &suggestOutput{}
	out.Body.Suggestions = make([]suggestionWire, len(result.Suggestions))
	for i, cand := range result.Suggestions {
		out.Body.Suggestions[i] = suggestionToWire(cand)
	}
	out.Body.ExemplarsUsed = result.ExemplarsUsed
	for _, ex := range result.Exemplars {
		out.Body.Exemplars = append(out.Body.Exemplars, struct {
			Text  string  `json:"text"`
			Label string  `json:"label"`
			Score float64 `json:"score"`
		}{Text: ex.Text, Label: ex.Label, Score: ex.Score})
	}
	out.Body.StyleRanking.Enabled = result.StyleRanking.Enabled
	out.Body.StyleRanking.AnnotatorID = result.StyleRanking.AnnotatorID
	out.Body.StyleRanking.AvgContentSimilarity = result.StyleRanking.AvgContentSimilarity
	out.Body.StyleRanking.AvgLabelSimilarity = result.StyleRanking.AvgLabelSimilarity
	out.Body.StyleRanking.AvgStyleSimilarity = result.StyleRanking.AvgStyleSimilarity
	out.Body.RawResponse = result.RawResponse
	return out, nil
}

func (s *Server) handleAddExemplar(ctx context.Context, input *addExemplarInput) (*addExemplarOutput, error) {
	result, err := s.services.Suggester.AddExemplar(ctx, suggest.ExemplarInput{
		DocumentID:  input.Body.DocumentID,
		Text:        input.Body.Text,
		Label:       input.Body.Label,
		SpanStart:   input.Body.SpanStart,
		SpanEnd:     input.Body.SpanEnd,
		Context:     input.Body.Context,
		Rationale:   input.Body.Rationale,
		AnnotatorID: input.Body.AnnotatorID,
	})
	if err != nil {
		return nil, humaError(err)
	}

	out := &addExemplarOutput{}
	out.Body.ExemplarID = result.ExemplarID
	out.Body.TotalExemplars = result.TotalExemplars
	out.Body.LabelCount = result.LabelCount
	out.Body.ProfileSkipped = result.ProfileSkipped
	return out, nil
}

func (s *Server) handleDeleteExemplars(ctx context.Context, input *deleteExemplarsInput) (*deleteExemplarsOutput, error) {
	removed, err := s.services.Suggester.DeleteByTextAndLabel(ctx, input.Body.Text, input.Body.Label)
	if err != nil {
		return nil, humaError(err)
	}

	out := &deleteExemplarsOutput{}
	out.Body.Removed = removed
	return out, nil
}

func (s *Server) handleSearch(ctx context.Context, input *searchInput) (*searchOutput, error) {
	matches, err := s.services.Suggester.Search(ctx, input.Body.Text, input.Body.K, input.Body.Label)
	if err != nil {
		return nil, humaError(err)
	}

	out := &searchOutput{}
	out.Body.Matches = make([]exemplarWire, len(matches))
	for i, m := range matches {
		out.Body.Matches[i] = exemplarWire{
			ID:          m.Exemplar.ID,
			DocumentID:  m.Exemplar.DocumentID,
			Text:        m.Exemplar.Text,
			Label:       m.Exemplar.Label,
			SpanStart:   m.Exemplar.SpanStart,
			SpanEnd:     m.Exemplar.SpanEnd,
			Context:     m.Exemplar.Context,
			Rationale:   m.Exemplar.Rationale,
			AnnotatorID: m.Exemplar.AnnotatorID,
			Similarity:  m.Similarity,
		}
	}
	return out, nil
}

func (s *Server) handleScore(ctx context.Context, input *scoreInput) (*scoreOutput, error) {
	breakdown, err := s.services.Suggester.Score(ctx, suggest.ScoreInput{
		Text:        input.Body.Text,
		Label:       input.Body.Label,
		Context:     input.Body.Context,
		Rationale:   input.Body.Rationale,
		AnnotatorID: input.Body.AnnotatorID,
	})
	if err != nil {
		return nil, humaError(err)
	}

	out := &scoreOutput{}
	out.Body.ContentSimilarity = breakdown.ContentSimilarity
	out.Body.LabelSimilarity = breakdown.LabelSimilarity
	out.Body.StyleSimilarity = breakdown.StyleSimilarity
	out.Body.Combined = breakdown.Combined
	out.Body.Weights.Content = breakdown.Weights.Content
	out.Body.Weights.Label = breakdown.Weights.Label
	out.Body.Weights.Style = breakdown.Weights.Style
	return out, nil
}

func (s *Server) handleEmbed(ctx context.Context, input *embedInput) (*embedOutput, error) {
	embeddings, err := s.services.Embedder.EmbedBatch(ctx, input.Body.Texts)
	if err != nil {
		return nil, humaError(err)
	}

	out := &embedOutput{}
	out.Body.Embeddings = embeddings
	out.Body.Dimensions = s.services.Embedder.Dimensions()
	return out, nil
}

func suggestionToWire(cand style.Candidate) suggestionWire {
	wire := suggestionWire{
		Text:       cand.Text,
		Label:      cand.Label,
		SpanStart:  cand.SpanStart,
		SpanEnd:    cand.SpanEnd,
		Confidence: cand.Confidence,
		Rationale:  cand.Rationale,
		Source:     cand.Source,
	}
	if cand.Scores != nil {
		wire.StyleScores = &styleScoresWire{
			ContentSimilarity: cand.Scores.ContentSimilarity,
			LabelSimilarity:   cand.Scores.LabelSimilarity,
			StyleSimilarity:   cand.Scores.StyleSimilarity,
			Combined:          cand.Scores.Combined,
		}
	}
	return wire
}

// humaError maps a coded error onto the matching HTTP error response.
func humaError(err error) error {
	switch videxerr.HTTPStatus(err) {
	case http.StatusBadRequest:
		return huma.Error400BadRequest(err.Error())
	case http.StatusNotFound:
		return huma.Error404NotFound(err.Error())
	case http.StatusBadGateway:
		return huma.Error502BadGateway(err.Error())
	default:
		return huma.Error500InternalServerError("internal error", err)
	}
}
