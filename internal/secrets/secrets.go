// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Videx Contributors

// Package secrets resolves provider API keys. A configured key may be a
// literal value, an env://NAME reference, or a keyring://service/key URI
// backed by the OS keyring.
package secrets

// Store provides secure secret storage operations. Implementations may use
// OS keyrings, encrypted files, or other backends.
type Store interface {
	// Store saves a secret value under the given service and key.
	Store(service, key, value string) error

	// Retrieve fetches the secret value for the given service and key.
	// Returns a CodeSecretNotFound error if the key does not exist.
	Retrieve(service, key string) (string, error)

	// Delete removes the secret for the given service and key.
	// Returns a CodeSecretNotFound error if the key does not exist.
	Delete(service, key string) error
}
