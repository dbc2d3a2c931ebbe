// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Videx Contributors

package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/videx-dev/videx/internal/config"
)

func newStartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the videx service",
		Long:  "Load configuration, open the exemplar and style stores, and start the HTTP server.",
		RunE:  runStart,
	}

	cmd.Flags().String("listen", "", "override listen address (host:port)")
	_ = viper.BindPFlag("server.listen", cmd.Flags().Lookup("listen"))

	return cmd
}

func runStart(cmd *cobra.Command, _ []string) error {
	cfg, err := config.FromViper(viper.GetViper())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if cfgFile := viper.ConfigFileUsed(); cfgFile != "" {
		config.WarnInsecurePermissions(cfgFile)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := WireApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	return app.Server.Start(ctx)
}
