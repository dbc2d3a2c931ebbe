// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Videx Contributors

package google

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/videx-dev/videx/internal/provider"
	videxerr "github.com/videx-dev/videx/pkg/errors"
)

// Config holds Google Gemini provider configuration.
type Config struct {
	APIKey string
}

// Compile-time interface check.
var _ provider.Generator = (*Generator)(nil)

// Generator implements provider.Generator using the Gemini API.
type Generator struct {
	client *genai.Client
	opts   provider.Options
}

// NewGenerator creates a Gemini generator. Returns an error if the API key
// is missing.
func NewGenerator(cfg Config, opts provider.Options) (*Generator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("google: missing api_key in config")
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("google: creating genai client: %w", err)
	}

	if opts.Model == "" {
		opts.Model = "gemini-2.0-flash"
	}

	return &Generator{client: client, opts: opts}, nil
}

func (g *Generator) Name() string { return "google" }

func (g *Generator) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	config := &genai.GenerateContentConfig{}
	if systemPrompt != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: systemPrompt}},
		}
	}
	if g.opts.Temperature > 0 {
		config.Temperature = genai.Ptr(float32(g.opts.Temperature))
	}
	if g.opts.MaxTokens > 0 {
		config.MaxOutputTokens = int32(g.opts.MaxTokens)
	}

	contents := []*genai.Content{
		{Role: genai.RoleUser, Parts: []*genai.Part{{Text: userPrompt}}},
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.opts.Model, contents, config)
	if err != nil {
		return "", videxerr.Wrapf(err, videxerr.CodeProviderGenerationFailure, "google: generate content")
	}

	var sb strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			sb.WriteString(part.Text)
		}
	}
	if sb.Len() == 0 {
		return "", videxerr.Errorf(videxerr.CodeProviderGenerationFailure, "google: response contained no text parts")
	}

	return sb.String(), nil
}
