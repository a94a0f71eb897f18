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
	"os"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/ragdesk/internal/tui"
	"github.com/AleutianAI/ragdesk/pkg/ux"
)

var errNotATerminal = errors.New("the interactive page needs a terminal; use 'ragdesk ask' or 'ragdesk check' in scripts")

func newTUICmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Open the interactive page (default when no command is given)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd, flags)
		},
	}
}

func runTUI(cmd *cobra.Command, flags *globalFlags) error {
	if !ux.IsTerminal(os.Stdin) || !ux.IsTerminal(os.Stdout) {
		return errNotATerminal
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := openApp(ctx, appOptions{
		flags:       flags,
		stdout:      cmd.OutOrStdout(),
		stderr:      cmd.ErrOrStderr(),
		interactive: true,
		personality: ux.PersonalityFull,
	})
	if err != nil {
		return err
	}
	defer a.close()

	model := tui.New(ctx, a.orch, a.store, a.logger, tui.Config{
		Markdown:       a.cfg.UI.Markdown,
		WordWrap:       a.cfg.UI.WordWrap,
		ClaimMinHeight: a.cfg.UI.ClaimMinHeight,
		ClaimMaxHeight: a.cfg.UI.ClaimMaxHeight,
	})
	return tui.Run(ctx, model)
}
