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
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/ragdesk/internal/session"
	"github.com/AleutianAI/ragdesk/pkg/ux"
)

// confirmFunc asks the user a yes/no question. Tests replace it.
var confirmFunc = confirmWithForm

func newSessionCmd(flags *globalFlags) *cobra.Command {
	sessionCmd := &cobra.Command{
		Use:   "session",
		Short: "Inspect or reset the saved session",
	}

	var asJSON bool
	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the saved question, answer, claim and verdict",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				state := a.store.Snapshot()
				if asJSON {
					data, err := session.Encode(state)
					if err != nil {
						return err
					}
					a.printer.Raw(string(data))
					return nil
				}
				showSession(a, state)
				return nil
			})
		},
	}
	showCmd.Flags().BoolVar(&asJSON, "json", false, "print the stored JSON snapshot")

	var yes bool
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Forget the saved session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				if !yes {
					if !ux.IsTerminal(os.Stdin) {
						return errors.New("refusing to clear without --yes when not attached to a terminal")
					}
					ok, err := confirmFunc("Clear the saved session?")
					if err != nil {
						return err
					}
					if !ok {
						a.printer.Muted("Nothing cleared.")
						return nil
					}
				}
				if err := a.store.Clear(ctx); err != nil {
					return fmt.Errorf("clear session: %w", err)
				}
				a.printer.Success("Session cleared")
				return nil
			})
		},
	}
	clearCmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")

	sessionCmd.AddCommand(showCmd, clearCmd)
	return sessionCmd
}

func showSession(a *app, state session.State) {
	p := a.printer
	p.Title("Saved session")
	p.Field("Question", orNone(state.Question))
	p.Box("Answer", orNone(state.Answer))
	p.Field("Claim", orNone(state.Claim))
	printFactResult(p, state.FactResult)
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

func confirmWithForm(title string) (bool, error) {
	var ok bool
	form := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title(title).
			Affirmative("Yes").
			Negative("No").
			Value(&ok),
	))
	if err := form.Run(); err != nil {
		return false, err
	}
	return ok, nil
}
