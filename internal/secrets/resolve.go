// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Videx Contributors

package secrets

import (
	"os"
	"strings"

	videxerr "github.com/videx-dev/videx/pkg/errors"
)

const (
	keyringScheme = "keyring://"
	envScheme     = "env://"
)

// IsKeyringURI reports whether value uses the keyring:// URI scheme.
func IsKeyringURI(value string) bool {
	return strings.HasPrefix(value, keyringScheme)
}

// IsEnvURI reports whether value uses the env:// reference scheme.
func IsEnvURI(value string) bool {
	return strings.HasPrefix(value, envScheme)
}

// ParseKeyringURI extracts service and key from a keyring://service/key URI.
func ParseKeyringURI(uri string) (service, key string, err error) {
	if !IsKeyringURI(uri) {
		return "", "", videxerr.Errorf(videxerr.CodeSecretInvalidInput, "not a keyring URI: %q", uri)
	}

	path := strings.TrimPrefix(uri, keyringScheme)
	parts := strings.SplitN(path, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", videxerr.Errorf(videxerr.CodeSecretInvalidInput,
			"invalid keyring URI %q: expected keyring://service/key", uri)
	}

	return parts[0], parts[1], nil
}

// Resolve turns a configured secret value into its actual value:
//
//	env://NAME            -> value of the NAME environment variable
//	keyring://service/key -> secret from the OS keyring
//	anything else         -> returned unchanged (literal)
//
// An env:// reference to an unset or empty variable and a keyring:// URI
// with no stored secret both fail, so a misconfigured key surfaces at
// startup rather than as an authentication error mid-request.
func Resolve(store Store, value string) (string, error) {
	switch {
	case IsEnvURI(value):
		name := strings.TrimPrefix(value, envScheme)
		if name == "" {
			return "", videxerr.Errorf(videxerr.CodeSecretInvalidInput,
				"invalid env URI %q: expected env://NAME", value)
		}
		v := os.Getenv(name)
		if v == "" {
			return "", videxerr.Errorf(videxerr.CodeSecretResolveFailure,
				"environment variable %s referenced by %q is not set", name, value)
		}
		return v, nil

	case IsKeyringURI(value):
		service, key, err := ParseKeyringURI(value)
		if err != nil {
			return "", err
		}
		secret, err := store.Retrieve(service, key)
		if err != nil {
			return "", videxerr.Wrapf(err, videxerr.CodeSecretResolveFailure,
				"resolving keyring URI %q", value)
		}
		return secret, nil

	default:
		return value, nil
	}
}
