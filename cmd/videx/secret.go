// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Videx Contributors

package main

import (
	"fmt"

	videxerr "github.com/videx-dev/videx/pkg/errors"

	"github.com/spf13/cobra"
)

// serviceName is the keyring service name under which Videx stores secrets.
const serviceName = "videx"

func newSecretCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Manage secrets stored in the OS keyring",
		Long:  "Set, read, and delete API keys stored under the Videx service in the operating system keyring.",
	}

	cmd.AddCommand(
		newSecretSetCmd(),
		newSecretGetCmd(),
		newSecretDeleteCmd(),
	)

	return cmd
}

func newSecretSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <name> <value>",
		Short: "Store a secret under the given name",
		Args:  cobra.ExactArgs(2),
		RunE:  runSecretSet,
	}
}

func newSecretGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <name>",
		Short: "Print a secret by name",
		Args:  cobra.ExactArgs(1),
		RunE:  runSecretGet,
	}
}

func newSecretDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a secret by name",
		Args:  cobra.ExactArgs(1),
		RunE:  runSecretDelete,
	}
}

func runSecretSet(cmd *cobra.Command, args []string) error {
	name, value := args[0], args[1]
	store := secretStoreFactory()

	if err := store.Store(serviceName, name, value); err != nil {
		return videxerr.Wrapf(err, videxerr.CodeSecretStoreFailure, "storing secret %q", name)
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Stored secret: %s\n", name)
	return nil
}

func runSecretGet(cmd *cobra.Command, args []string) error {
	name := args[0]
	store := secretStoreFactory()

	value, err := store.Retrieve(serviceName, name)
	if err != nil {
		if videxerr.HasCode(err, videxerr.CodeSecretNotFound) {
			return videxerr.Errorf(videxerr.CodeSecretNotFound, "secret %q not found", name)
		}
		return videxerr.Wrapf(err, videxerr.CodeSecretStoreFailure, "reading secret %q", name)
	}

	_, _ = fmt.Fprintln(cmd.OutOrStdout(), value)
	return nil
}

func runSecretDelete(cmd *cobra.Command, args []string) error {
	name := args[0]
	store := secretStoreFactory()

	if err := store.Delete(serviceName, name); err != nil {
		if videxerr.HasCode(err, videxerr.CodeSecretNotFound) {
			return videxerr.Errorf(videxerr.CodeSecretNotFound, "secret %q not found", name)
		}
		return videxerr.Wrapf(err, videxerr.CodeSecretStoreFailure, "deleting secret %q", name)
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted secret: %s\n", name)
	return nil
}
