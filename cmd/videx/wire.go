// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Videx Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/videx-dev/videx/internal/config"
	"github.com/videx-dev/videx/internal/provider"
	anthropicprov "github.com/videx-dev/videx/internal/provider/anthropic"
	googleprov "github.com/videx-dev/videx/internal/provider/google"
	openaiprov "github.com/videx-dev/videx/internal/provider/openai"
	"github.com/videx-dev/videx/internal/provider/stub"
	"github.com/videx-dev/videx/internal/secrets"
	"github.com/videx-dev/videx/internal/server"
	"github.com/videx-dev/videx/internal/store/sqlite"
	"github.com/videx-dev/videx/internal/style"
	"github.com/videx-dev/videx/internal/suggest"
	videxerr "github.com/videx-dev/videx/pkg/errors"
)

// App holds all wired subsystems and manages their lifecycle.
type App struct {
	Server    *server.Server
	Suggester *suggest.Suggester

	exemplars  *sqlite.ExemplarStore
	styleState *sqlite.StyleStore
}

// secretStoreFactory creates a secrets.Store. Package-level so tests can
// substitute a mock implementation.
var secretStoreFactory = func() secrets.Store {
	return secrets.NewKeyringStore()
}

// WireApp creates all subsystems and wires them together. The storage path
// is created if it does not exist.
func WireApp(ctx context.Context, cfg *config.Config) (*App, error) {
	if err := os.MkdirAll(cfg.Storage.Path, 0o755); err != nil {
		return nil, videxerr.Errorf(videxerr.CodeCLISetupFailure, "creating storage directory: %w", err)
	}

	embedder, err := buildEmbedder(cfg)
	if err != nil {
		return nil, err
	}
	generator, err := buildGenerator(cfg)
	if err != nil {
		return nil, err
	}

	exemplars, err := sqlite.NewExemplarStore(
		filepath.Join(cfg.Storage.Path, "exemplars.db"), embedder.Dimensions())
	if err != nil {
		return nil, videxerr.Wrap(err, videxerr.CodeCLISetupFailure, "opening exemplar store")
	}

	styleState, err := sqlite.NewStyleStore(filepath.Join(cfg.Storage.Path, "style.db"))
	if err != nil {
		_ = exemplars.Close()
		return nil, videxerr.Wrap(err, videxerr.CodeCLISetupFailure, "opening style store")
	}

	scorer, err := style.NewScorer(ctx, embedder, styleState)
	if err != nil {
		_ = exemplars.Close()
		_ = styleState.Close()
		return nil, videxerr.Wrap(err, videxerr.CodeCLISetupFailure, "loading style state")
	}
	if err := scorer.SetWeights(style.Weights{
		Content: cfg.Style.ContentWeight,
		Label:   cfg.Style.LabelWeight,
		Style:   cfg.Style.StyleWeight,
	}); err != nil {
		_ = exemplars.Close()
		_ = styleState.Close()
		return nil, err
	}

	suggester := suggest.NewSuggester(exemplars, scorer, embedder, generator, slog.Default())
	suggester.SetDefaultTopK(cfg.Retrieval.TopK)

	srv, err := server.New(server.Config{
		ListenAddr:   cfg.Server.Listen,
		CORSOrigins:  cfg.Server.CORSOrigins,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	})
	if err != nil {
		_ = exemplars.Close()
		_ = styleState.Close()
		return nil, err
	}
	srv.RegisterServices(&server.Services{
		Suggester: suggester,
		Embedder:  embedder,
	})

	slog.Info("wired subsystems",
		"embedding_provider", embedder.Name(),
		"generation_provider", generator.Name(),
		"dimensions", embedder.Dimensions(),
		"storage", cfg.Storage.Path,
	)

	return &App{
		Server:     srv,
		Suggester:  suggester,
		exemplars:  exemplars,
		styleState: styleState,
	}, nil
}

// Close releases the stores.
func (a *App) Close() error {
	var errs []error
	if err := a.exemplars.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := a.styleState.Close(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return videxerr.Join(errs...)
	}
	return nil
}

func buildEmbedder(cfg *config.Config) (provider.Embedder, error) {
	switch cfg.Embedding.Provider {
	case "stub":
		return stub.NewEmbedder(cfg.Embedding.Dimensions), nil
	case "openai":
		key, err := resolveKey(cfg.Embedding.APIKey, "embedding")
		if err != nil {
			return nil, err
		}
		return openaiprov.NewEmbedder(openaiprov.Config{
			APIKey:  key,
			BaseURL: cfg.Embedding.Endpoint,
		}, cfg.Embedding.Model, cfg.Embedding.Dimensions)
	default:
		return nil, videxerr.Errorf(videxerr.CodeProviderNotFound,
			"unknown embedding provider %q", cfg.Embedding.Provider)
	}
}

func buildGenerator(cfg *config.Config) (provider.Generator, error) {
	opts := provider.Options{
		Model:       cfg.Generation.Model,
		Temperature: cfg.Generation.Temperature,
		MaxTokens:   cfg.Generation.MaxTokens,
	}

	switch cfg.Generation.Provider {
	case "stub":
		return stub.NewGenerator(), nil
	case "openai":
		key, err := resolveKey(cfg.Generation.APIKey, "generation")
		if err != nil {
			return nil, err
		}
		return openaiprov.NewGenerator(openaiprov.Config{
			APIKey:  key,
			BaseURL: cfg.Generation.Endpoint,
		}, opts)
	case "anthropic":
		key, err := resolveKey(cfg.Generation.APIKey, "generation")
		if err != nil {
			return nil, err
		}
		return anthropicprov.NewGenerator(anthropicprov.Config{
			APIKey:  key,
			BaseURL: cfg.Generation.Endpoint,
		}, opts)
	case "google":
		key, err := resolveKey(cfg.Generation.APIKey, "generation")
		if err != nil {
			return nil, err
		}
		return googleprov.NewGenerator(googleprov.Config{APIKey: key}, opts)
	default:
		return nil, videxerr.Errorf(videxerr.CodeProviderNotFound,
			"unknown generation provider %q", cfg.Generation.Provider)
	}
}

// resolveKey turns a configured api_key value (literal, env://, keyring://)
// into the actual key. Hosted providers require one.
func resolveKey(value, role string) (string, error) {
	if value == "" {
		return "", videxerr.Errorf(videxerr.CodeProviderConfigInvalid,
			"%s.api_key is required for hosted providers", role)
	}
	return secrets.Resolve(secretStoreFactory(), value)
}
