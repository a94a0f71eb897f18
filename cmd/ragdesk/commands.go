// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
)

// errReported means the command already printed its failure; main only
// sets the exit code.
var errReported = errors.New("operation failed")

// newRootCmd builds the command tree.
func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "ragdesk",
		Short: "Ask questions about your documents and fact-check claims against them",
		Long: `ragdesk is a terminal client for a retrieval-augmented document backend.

Run it without arguments for the interactive page, or use the sub-commands
to ask a question or check a claim from scripts. The last question, answer,
claim and verdict are kept between runs.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd, flags)
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "config file (default ~/.ragdesk/ragdesk.yaml)")
	pf.StringVar(&flags.envFile, "env-file", "", "dotenv file loaded before the environment overlay (default .env)")
	pf.StringVar(&flags.backendURL, "backend-url", "", "backend origin, e.g. http://localhost:8000")
	pf.StringVar(&flags.logLevel, "log-level", "", "debug, info, warn or error")
	pf.StringVar(&flags.traceFile, "trace-file", "", "write OpenTelemetry spans to this file")
	pf.StringVar(&flags.metricsAddr, "metrics-addr", "", "serve Prometheus /metrics on this address")
	pf.StringVar(&flags.personality, "personality", "", "output style: full, minimal or machine")
	pf.BoolVar(&flags.ephemeral, "ephemeral", false, "keep the session in memory only")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "log to stderr")
	pf.BoolVar(&flags.staleGuard, "latest-only", false, "apply only the newest request's result when requests overlap")

	rootCmd.AddCommand(
		newTUICmd(flags),
		newAskCmd(flags),
		newCheckCmd(flags),
		newRunCmd(flags),
		newSessionCmd(flags),
		newStatusCmd(flags),
		newStatsCmd(flags),
		newUploadCmd(flags),
	)
	return rootCmd
}

// withApp opens the app for a non-interactive command, runs fn and closes
// the app.
func withApp(cmd *cobra.Command, flags *globalFlags, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := openApp(ctx, appOptions{
		flags:       flags,
		stdout:      cmd.OutOrStdout(),
		stderr:      cmd.ErrOrStderr(),
		personality: stdoutPersonality(),
	})
	if err != nil {
		return err
	}
	runErr := fn(ctx, a)
	if err := a.close(); err != nil && runErr == nil {
		a.printer.Warning("shutdown: " + err.Error())
	}
	return runErr
}
