// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Videx Contributors

package openai

import (
	"context"
	"fmt"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"

	"github.com/videx-dev/videx/internal/provider"
	videxerr "github.com/videx-dev/videx/pkg/errors"
)

// Config holds OpenAI provider configuration.
type Config struct {
	APIKey  string
	BaseURL string // optional, useful for testing against a mock server
}

// Compile-time interface checks.
var (
	_ provider.Embedder  = (*Embedder)(nil)
	_ provider.Generator = (*Generator)(nil)
)

func newClient(cfg Config) (openaisdk.Client, error) {
	if cfg.APIKey == "" {
		return openaisdk.Client{}, fmt.Errorf("openai: missing api_key in config")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return openaisdk.NewClient(opts...), nil
}

// Embedder implements provider.Embedder using the OpenAI Embeddings API.
type Embedder struct {
	client     openaisdk.Client
	model      string
	dimensions int
}

// NewEmbedder creates an OpenAI embedder. Returns an error if the API key
// is missing.
func NewEmbedder(cfg Config, model string, dimensions int) (*Embedder, error) {
	client, err := newClient(cfg)
	if err != nil {
		return nil, err
	}
	if model == "" {
		model = string(openaisdk.EmbeddingModelTextEmbedding3Small)
	}
	return &Embedder{client: client, model: model, dimensions: dimensions}, nil
}

func (e *Embedder) Name() string    { return "openai" }
func (e *Embedder) Dimensions() int { return e.dimensions }

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	params := openaisdk.EmbeddingNewParams{
		Model: openaisdk.EmbeddingModel(e.model),
		Input: openaisdk.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: texts,
		},
		EncodingFormat: openaisdk.EmbeddingNewParamsEncodingFormatFloat,
		Dimensions:     param.NewOpt(int64(e.dimensions)),
	}

	resp, err := e.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, videxerr.Wrapf(err, videxerr.CodeProviderEmbeddingFailure, "openai: embedding %d texts", len(texts))
	}
	if len(resp.Data) != len(texts) {
		return nil, videxerr.Errorf(videxerr.CodeProviderEmbeddingFailure,
			"openai: expected %d embeddings, got %d", len(texts), len(resp.Data))
	}

	vecs := make([][]float32, len(texts))
	for _, item := range resp.Data {
		vec := make([]float32, len(item.Embedding))
		for i, x := range item.Embedding {
			vec[i] = float32(x)
		}
		vecs[item.Index] = provider.Normalize(vec)
	}
	return vecs, nil
}

// Generator implements provider.Generator using the OpenAI Chat
// Completions API (non-streaming; suggestion cycles consume whole
// responses).
type Generator struct {
	client openaisdk.Client
	opts   provider.Options
}

// NewGenerator creates an OpenAI generator. Returns an error if the API
// key is missing.
func NewGenerator(cfg Config, opts provider.Options) (*Generator, error) {
	client, err := newClient(cfg)
	if err != nil {
		return nil, err
	}
	if opts.Model == "" {
		opts.Model = "gpt-4.1-mini"
	}
	return &Generator{client: client, opts: opts}, nil
}

func (g *Generator) Name() string { return "openai" }

func (g *Generator) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	params := openaisdk.ChatCompletionNewParams{
		Model: shared.ChatModel(g.opts.Model),
		Messages: []openaisdk.ChatCompletionMessageParamUnion{
			openaisdk.SystemMessage(systemPrompt),
			openaisdk.UserMessage(userPrompt),
		},
	}
	if g.opts.MaxTokens > 0 {
		params.MaxCompletionTokens = param.NewOpt(int64(g.opts.MaxTokens))
	}
	if g.opts.Temperature > 0 {
		params.Temperature = param.NewOpt(g.opts.Temperature)
	}

	resp, err := g.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", videxerr.Wrapf(err, videxerr.CodeProviderGenerationFailure, "openai: chat completion")
	}
	if len(resp.Choices) == 0 {
		return "", videxerr.Errorf(videxerr.CodeProviderGenerationFailure, "openai: response contained no choices")
	}

	return resp.Choices[0].Message.Content, nil
}
