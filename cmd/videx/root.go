// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Videx Contributors

package main

import (
	"errors"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/videx-dev/videx/internal/config"
	videxerr "github.com/videx-dev/videx/pkg/errors"
)

// NewRootCmd creates the root videx command with all subcommands registered.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "videx",
		Short:         "Videx — annotation suggestion service",
		Long:          "Videx serves annotation suggestions from an exemplar memory: retrieved precedent, label centroids, and per-annotator style profiles.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return initViper(cmd)
		},
	}

	// Global flags — these map to viper keys via initViper.
	root.PersistentFlags().StringP("config", "c", "", "path to config file")
	root.PersistentFlags().BoolP("verbose", "v", false, "enable verbose output")

	root.AddCommand(
		newStartCmd(),
		newStatusCmd(),
		newVersionCmd(),
		newSecretCmd(),
	)

	return root
}

// initViper sets up the global Viper with defaults, env bindings, flag
// bindings, and optional config file so the standard precedence
// (flag > env > file > defaults) is handled uniformly.
func initViper(cmd *cobra.Command) error {
	v := viper.GetViper()

	config.SetDefaults(v)
	config.SetupEnv(v)

	if cfgFile, _ := cmd.Flags().GetString("config"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return videxerr.Errorf(videxerr.CodeConfigLoadReadFailure, "reading config file: %w", err)
		}
	} else {
		// Auto-discover videx.yaml from standard locations. SetConfigType
		// is intentionally omitted: when set, Viper falls back to trying
		// the bare config name without extension, which collides with the
		// ./videx binary in the project root.
		v.SetConfigName("videx")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/videx")
		v.AddConfigPath("/etc/videx")
		// No config file is fine — defaults and env vars still apply.
		// Parse or permission errors must surface.
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return videxerr.Errorf(videxerr.CodeConfigLoadReadFailure, "reading config: %w", err)
			}
			// No config found anywhere — bootstrap a default to ~/.config/videx/.
			if path := config.BootstrapConfig(); path != "" {
				v.SetConfigFile(path)
				if err := v.ReadInConfig(); err != nil {
					return videxerr.Errorf(videxerr.CodeConfigLoadReadFailure, "reading bootstrapped config: %w", err)
				}
			}
		}
	}

	if err := v.BindPFlag("verbose", cmd.Root().PersistentFlags().Lookup("verbose")); err != nil {
		return videxerr.Errorf(videxerr.CodeCLISetupFailure, "binding verbose flag: %w", err)
	}

	if v.GetBool("verbose") {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	return nil
}
