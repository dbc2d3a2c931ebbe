// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Videx Contributors

package secrets_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/videx-dev/videx/internal/secrets"
	videxerr "github.com/videx-dev/videx/pkg/errors"
)

func TestIsKeyringURI(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  bool
	}{
		{"valid URI", "keyring://videx/openai-api-key", true},
		{"valid URI with dashes", "keyring://my-svc/my-key", true},
		{"env reference", "env://OPENAI_API_KEY", false},
		{"literal value", "sk-abc123", false},
		{"empty string", "", false},
		{"just scheme", "keyring://", true},
		{"other scheme", "vault://secret/key", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, secrets.IsKeyringURI(tt.value))
		})
	}
}

func TestParseKeyringURI(t *testing.T) {
	tests := []struct {
		name        string
		uri         string
		wantService string
		wantKey     string
		wantErr     bool
	}{
		{"valid", "keyring://videx/api-key", "videx", "api-key", false},
		{"dashes", "keyring://my-service/my-key-name", "my-service", "my-key-name", false},
		{"slashes in key", "keyring://videx/path/to/key", "videx", "path/to/key", false},
		{"not a keyring URI", "vault://secret/key", "", "", true},
		{"missing key", "keyring://videx/", "", "", true},
		{"missing service", "keyring:///key", "", "", true},
		{"missing both", "keyring://", "", "", true},
		{"no path", "keyring://videx", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, key, err := secrets.ParseKeyringURI(tt.uri)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, videxerr.HasCode(err, videxerr.CodeSecretInvalidInput))
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantService, svc)
				assert.Equal(t, tt.wantKey, key)
			}
		})
	}
}

func TestResolve(t *testing.T) {
	ks := secrets.NewKeyringStore()
	require.NoError(t, ks.Store("videx", "test-key", "resolved-secret"))

	t.Run("resolves keyring URI", func(t *testing.T) {
		val, err := secrets.Resolve(ks, "keyring://videx/test-key")
		require.NoError(t, err)
		assert.Equal(t, "resolved-secret", val)
	})

	t.Run("resolves env reference", func(t *testing.T) {
		t.Setenv("VIDEX_TEST_SECRET", "from-env")
		val, err := secrets.Resolve(ks, "env://VIDEX_TEST_SECRET")
		require.NoError(t, err)
		assert.Equal(t, "from-env", val)
	})

	t.Run("passes through literals", func(t *testing.T) {
		val, err := secrets.Resolve(ks, "literal-value")
		require.NoError(t, err)
		assert.Equal(t, "literal-value", val)
	})

	t.Run("passes through empty value", func(t *testing.T) {
		val, err := secrets.Resolve(ks, "")
		require.NoError(t, err)
		assert.Equal(t, "", val)
	})

	t.Run("error on unset env variable", func(t *testing.T) {
		_, err := secrets.Resolve(ks, "env://VIDEX_DEFINITELY_UNSET")
		require.Error(t, err)
		assert.True(t, videxerr.HasCode(err, videxerr.CodeSecretResolveFailure))
	})

	t.Run("error on empty env name", func(t *testing.T) {
		_, err := secrets.Resolve(ks, "env://")
		require.Error(t, err)
		assert.True(t, videxerr.HasCode(err, videxerr.CodeSecretInvalidInput))
	})

	t.Run("error on missing keyring secret", func(t *testing.T) {
		_, err := secrets.Resolve(ks, "keyring://videx/nonexistent")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "resolving keyring URI")
	})

	t.Run("error on malformed keyring URI", func(t *testing.T) {
		_, err := secrets.Resolve(ks, "keyring://bad")
		require.Error(t, err)
	})
}
