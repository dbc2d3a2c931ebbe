// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Videx Contributors

package anthropic

import (
	"context"
	"fmt"
	"strings"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/videx-dev/videx/internal/provider"
	videxerr "github.com/videx-dev/videx/pkg/errors"
)

// Config holds Anthropic provider configuration.
type Config struct {
	APIKey  string
	BaseURL string // optional, useful for testing against a mock server
}

// Compile-time interface check.
var _ provider.Generator = (*Generator)(nil)

// Generator implements provider.Generator using the Anthropic Messages API.
type Generator struct {
	client anthropicsdk.Client
	opts   provider.Options
}

// NewGenerator creates an Anthropic generator. Returns an error if the API
// key is missing.
func NewGenerator(cfg Config, opts provider.Options) (*Generator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic: missing api_key in config")
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.BaseURL))
	}

	if opts.Model == "" {
		opts.Model = "claude-haiku-4-5"
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 4096
	}

	return &Generator{client: anthropicsdk.NewClient(reqOpts...), opts: opts}, nil
}

func (g *Generator) Name() string { return "anthropic" }

func (g *Generator) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	params := anthropicsdk.MessageNewParams{
		Model:     anthropicsdk.Model(g.opts.Model),
		MaxTokens: int64(g.opts.MaxTokens),
		Messages: []anthropicsdk.MessageParam{
			anthropicsdk.NewUserMessage(anthropicsdk.NewTextBlock(userPrompt)),
		},
	}
	if systemPrompt != "" {
		params.System = []anthropicsdk.TextBlockParam{
			{Text: systemPrompt},
		}
	}
	if g.opts.Temperature > 0 {
		params.Temperature = anthropicsdk.Float(g.opts.Temperature)
	}

	resp, err := g.client.Messages.New(ctx, params)
	if err != nil {
		return "", videxerr.Wrapf(err, videxerr.CodeProviderGenerationFailure, "anthropic: message creation")
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if text := block.AsText(); text.Text != "" {
			sb.WriteString(text.Text)
		}
	}
	if sb.Len() == 0 {
		return "", videxerr.Errorf(videxerr.CodeProviderGenerationFailure, "anthropic: response contained no text blocks")
	}

	return sb.String(), nil
}
