// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Videx Contributors

// Package config loads and validates the service configuration from a YAML
// file, environment variables (prefix VIDEX_), and built-in defaults.
package config

import (
	"errors"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	videxerr "github.com/videx-dev/videx/pkg/errors"
)

// Config is the top-level Videx configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Embedding  EmbeddingConfig  `mapstructure:"embedding"`
	Generation GenerationConfig `mapstructure:"generation"`
	Retrieval  RetrievalConfig  `mapstructure:"retrieval"`
	Style      StyleConfig      `mapstructure:"style"`
}

// ServerConfig controls how Videx listens for connections.
type ServerConfig struct {
	Listen       string        `mapstructure:"listen"`
	CORSOrigins  []string      `mapstructure:"cors_origins"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// StorageConfig locates the on-disk state. Path is a directory; the
// exemplar and style databases live inside it.
type StorageConfig struct {
	Path string `mapstructure:"path"`
}

// EmbeddingConfig selects the embedding provider. APIKey may be a literal,
// an env://NAME reference, or a keyring://service/key URI.
type EmbeddingConfig struct {
	Provider   string `mapstructure:"provider"`
	Model      string `mapstructure:"model"`
	Dimensions int    `mapstructure:"dimensions"`
	APIKey     string `mapstructure:"api_key"`
	Endpoint   string `mapstructure:"endpoint"`
}

// GenerationConfig selects the generation provider.
type GenerationConfig struct {
	Provider    string  `mapstructure:"provider"`
	Model       string  `mapstructure:"model"`
	APIKey      string  `mapstructure:"api_key"`
	Endpoint    string  `mapstructure:"endpoint"`
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// RetrievalConfig controls exemplar retrieval.
type RetrievalConfig struct {
	TopK int `mapstructure:"top_k"`
}

// StyleConfig sets the score blend. The three weights must sum to a
// positive value.
type StyleConfig struct {
	ContentWeight float64 `mapstructure:"content_weight"`
	LabelWeight   float64 `mapstructure:"label_weight"`
	StyleWeight   float64 `mapstructure:"style_weight"`
}

var embeddingProviders = map[string]bool{"stub": true, "openai": true}

var generationProviders = map[string]bool{
	"stub":      true,
	"openai":    true,
	"anthropic": true,
	"google":    true,
}

// SetDefaults installs the default configuration values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.listen", "127.0.0.1:8300")
	v.SetDefault("server.cors_origins", []string{})
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("storage.path", "videx-data")
	v.SetDefault("embedding.provider", "stub")
	v.SetDefault("embedding.model", "text-embedding-3-small")
	v.SetDefault("embedding.dimensions", 384)
	v.SetDefault("generation.provider", "stub")
	v.SetDefault("generation.model", "")
	v.SetDefault("generation.temperature", 0.2)
	v.SetDefault("generation.max_tokens", 1024)
	v.SetDefault("retrieval.top_k", 5)
	v.SetDefault("style.content_weight", 0.4)
	v.SetDefault("style.label_weight", 0.3)
	v.SetDefault("style.style_weight", 0.3)
}

// SetupEnv enables VIDEX_-prefixed environment overrides, with dots in
// config keys mapped to underscores (server.listen -> VIDEX_SERVER_LISTEN).
func SetupEnv(v *viper.Viper) {
	v.SetEnvPrefix("VIDEX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load reads configuration from the given path (or defaults when path is
// empty) with environment variable overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	SetupEnv(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, videxerr.Errorf(videxerr.CodeConfigLoadReadFailure, "reading config %s: %w", path, err)
		}
	}

	return FromViper(v)
}

// FromViper unmarshals and validates a populated Viper instance.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, videxerr.Errorf(videxerr.CodeConfigValidateInvalidValue, "unmarshalling config: %w", err)
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, videxerr.Errorf(videxerr.CodeConfigValidateInvalidValue, "validating config: %w", errors.Join(errs...))
	}

	return &cfg, nil
}

// Validate checks the configuration for logical errors. It returns every
// validation error found rather than stopping at the first one.
func (c *Config) Validate() []error {
	var errs []error

	errs = append(errs, c.validateServer()...)
	errs = append(errs, c.validateStorage()...)
	errs = append(errs, c.validateProviders()...)
	errs = append(errs, c.validateRetrieval()...)
	errs = append(errs, c.validateStyle()...)

	return errs
}

func (c *Config) validateServer() []error {
	var errs []error

	if c.Server.Listen == "" {
		errs = append(errs, videxerr.Errorf(videxerr.CodeConfigValidateInvalidValue, "config: server.listen must not be empty"))
		return errs
	}

	_, portStr, err := net.SplitHostPort(c.Server.Listen)
	if err != nil {
		errs = append(errs, videxerr.Errorf(videxerr.CodeConfigValidateInvalidValue,
			"config: server.listen must be a valid host:port address, got %q: %w",
			c.Server.Listen, err,
		))
		return errs
	}

	// Host may be empty (":8300" listens on all interfaces).
	port, err := strconv.Atoi(portStr)
	if err != nil {
		errs = append(errs, videxerr.Errorf(videxerr.CodeConfigValidateInvalidValue,
			"config: server.listen port must be a number, got %q",
			portStr,
		))
	} else if port < 1 || port > 65535 {
		errs = append(errs, videxerr.Errorf(videxerr.CodeConfigValidateInvalidValue,
			"config: server.listen port must be between 1 and 65535, got %d",
			port,
		))
	}

	if c.Server.ReadTimeout < 0 {
		errs = append(errs, videxerr.Errorf(videxerr.CodeConfigValidateInvalidValue,
			"config: server.read_timeout must not be negative, got %s",
			c.Server.ReadTimeout,
		))
	}
	if c.Server.WriteTimeout < 0 {
		errs = append(errs, videxerr.Errorf(videxerr.CodeConfigValidateInvalidValue,
			"config: server.write_timeout must not be negative, got %s",
			c.Server.WriteTimeout,
		))
	}

	return errs
}

func (c *Config) validateStorage() []error {
	var errs []error

	if c.Storage.Path == "" {
		errs = append(errs, videxerr.Errorf(videxerr.CodeConfigValidateInvalidValue, "config: storage.path must not be empty"))
	}

	return errs
}

func (c *Config) validateProviders() []error {
	var errs []error

	if !embeddingProviders[c.Embedding.Provider] {
		errs = append(errs, videxerr.Errorf(videxerr.CodeConfigValidateInvalidValue,
			"config: embedding.provider must be one of [stub, openai], got %q",
			c.Embedding.Provider,
		))
	}

	if c.Embedding.Dimensions <= 0 {
		errs = append(errs, videxerr.Errorf(videxerr.CodeConfigValidateInvalidValue,
			"config: embedding.dimensions must be greater than 0, got %d",
			c.Embedding.Dimensions,
		))
	}

	if !generationProviders[c.Generation.Provider] {
		errs = append(errs, videxerr.Errorf(videxerr.CodeConfigValidateInvalidValue,
			"config: generation.provider must be one of [stub, openai, anthropic, google], got %q",
			c.Generation.Provider,
		))
	}

	if c.Generation.Temperature < 0 || c.Generation.Temperature > 2 {
		errs = append(errs, videxerr.Errorf(videxerr.CodeConfigValidateInvalidValue,
			"config: generation.temperature must be between 0 and 2, got %g",
			c.Generation.Temperature,
		))
	}

	if c.Generation.MaxTokens <= 0 {
		errs = append(errs, videxerr.Errorf(videxerr.CodeConfigValidateInvalidValue,
			"config: generation.max_tokens must be greater than 0, got %d",
			c.Generation.MaxTokens,
		))
	}

	return errs
}

func (c *Config) validateRetrieval() []error {
	var errs []error

	if c.Retrieval.TopK <= 0 {
		errs = append(errs, videxerr.Errorf(videxerr.CodeConfigValidateInvalidValue,
			"config: retrieval.top_k must be greater than 0, got %d",
			c.Retrieval.TopK,
		))
	}

	return errs
}

func (c *Config) validateStyle() []error {
	var errs []error

	for _, w := range []struct {
		key   string
		value float64
	}{
		{"style.content_weight", c.Style.ContentWeight},
		{"style.label_weight", c.Style.LabelWeight},
		{"style.style_weight", c.Style.StyleWeight},
	} {
		if w.value < 0 {
			errs = append(errs, videxerr.Errorf(videxerr.CodeConfigValidateInvalidValue,
				"config: %s must not be negative, got %g", w.key, w.value))
		}
	}

	if sum := c.Style.ContentWeight + c.Style.LabelWeight + c.Style.StyleWeight; sum <= 0 {
		errs = append(errs, videxerr.Errorf(videxerr.CodeConfigValidateInvalidValue,
			"config: style weights must sum to a positive value, got %g", sum))
	}

	return errs
}
