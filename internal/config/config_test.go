// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Videx Contributors

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Server:  ServerConfig{Listen: "127.0.0.1:8300"},
		Storage: StorageConfig{Path: "videx-data"},
		Embedding: EmbeddingConfig{
			Provider:   "stub",
			Dimensions: 384,
		},
		Generation: GenerationConfig{
			Provider:    "stub",
			Temperature: 0.2,
			MaxTokens:   1024,
		},
		Retrieval: RetrievalConfig{TopK: 5},
		Style: StyleConfig{
			ContentWeight: 0.4,
			LabelWeight:   0.3,
			StyleWeight:   0.3,
		},
	}
}

func TestLoad_DefaultsOnly(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8300", cfg.Server.Listen)
	assert.Equal(t, "videx-data", cfg.Storage.Path)
	assert.Equal(t, "stub", cfg.Embedding.Provider)
	assert.Equal(t, 384, cfg.Embedding.Dimensions)
	assert.Equal(t, "stub", cfg.Generation.Provider)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 60*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, 5, cfg.Retrieval.TopK)
	assert.Equal(t, 0.4, cfg.Style.ContentWeight)
	assert.Equal(t, 0.3, cfg.Style.LabelWeight)
	assert.Equal(t, 0.3, cfg.Style.StyleWeight)
}

func TestLoad_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "videx.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  listen: 0.0.0.0:9000
  read_timeout: 5s
embedding:
  provider: openai
  model: text-embedding-3-large
  dimensions: 256
retrieval:
  top_k: 10
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9000", cfg.Server.Listen)
	assert.Equal(t, "openai", cfg.Embedding.Provider)
	assert.Equal(t, "text-embedding-3-large", cfg.Embedding.Model)
	assert.Equal(t, 256, cfg.Embedding.Dimensions)
	assert.Equal(t, 10, cfg.Retrieval.TopK)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	// Untouched sections keep defaults.
	assert.Equal(t, "stub", cfg.Generation.Provider)
	assert.Equal(t, 60*time.Second, cfg.Server.WriteTimeout)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("VIDEX_SERVER_LISTEN", "127.0.0.1:9999")
	t.Setenv("VIDEX_RETRIEVAL_TOP_K", "7")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9999", cfg.Server.Listen)
	assert.Equal(t, 7, cfg.Retrieval.TopK)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestValidate_AcceptsValidConfig(t *testing.T) {
	assert.Empty(t, validConfig().Validate())
}

func TestValidate_RejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantMsg string
	}{
		{
			name:    "empty listen",
			mutate:  func(c *Config) { c.Server.Listen = "" },
			wantMsg: "server.listen must not be empty",
		},
		{
			name:    "negative read timeout",
			mutate:  func(c *Config) { c.Server.ReadTimeout = -time.Second },
			wantMsg: "server.read_timeout must not be negative",
		},
		{
			name:    "negative write timeout",
			mutate:  func(c *Config) { c.Server.WriteTimeout = -time.Second },
			wantMsg: "server.write_timeout must not be negative",
		},
		{
			name:    "listen without port",
			mutate:  func(c *Config) { c.Server.Listen = "localhost" },
			wantMsg: "host:port",
		},
		{
			name:    "listen port out of range",
			mutate:  func(c *Config) { c.Server.Listen = "127.0.0.1:70000" },
			wantMsg: "between 1 and 65535",
		},
		{
			name:    "empty storage path",
			mutate:  func(c *Config) { c.Storage.Path = "" },
			wantMsg: "storage.path",
		},
		{
			name:    "unknown embedding provider",
			mutate:  func(c *Config) { c.Embedding.Provider = "cohere" },
			wantMsg: "embedding.provider",
		},
		{
			name:    "zero dimensions",
			mutate:  func(c *Config) { c.Embedding.Dimensions = 0 },
			wantMsg: "embedding.dimensions",
		},
		{
			name:    "unknown generation provider",
			mutate:  func(c *Config) { c.Generation.Provider = "llama" },
			wantMsg: "generation.provider",
		},
		{
			name:    "temperature out of range",
			mutate:  func(c *Config) { c.Generation.Temperature = 3.5 },
			wantMsg: "generation.temperature",
		},
		{
			name:    "zero max tokens",
			mutate:  func(c *Config) { c.Generation.MaxTokens = 0 },
			wantMsg: "generation.max_tokens",
		},
		{
			name:    "zero top_k",
			mutate:  func(c *Config) { c.Retrieval.TopK = 0 },
			wantMsg: "retrieval.top_k",
		},
		{
			name:    "negative weight",
			mutate:  func(c *Config) { c.Style.LabelWeight = -0.3 },
			wantMsg: "style.label_weight",
		},
		{
			name: "weights sum to zero",
			mutate: func(c *Config) {
				c.Style.ContentWeight = 0
				c.Style.LabelWeight = 0
				c.Style.StyleWeight = 0
			},
			wantMsg: "sum to a positive value",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			errs := cfg.Validate()
			require.NotEmpty(t, errs)

			found := false
			for _, err := range errs {
				if strings.Contains(err.Error(), tt.wantMsg) {
					found = true
					break
				}
			}
			assert.True(t, found, "expected an error mentioning %q, got %v", tt.wantMsg, errs)
		})
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Server.Listen = ""
	cfg.Retrieval.TopK = 0
	cfg.Embedding.Dimensions = -1

	errs := cfg.Validate()
	assert.Len(t, errs, 3)
}
