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
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/ragdesk/internal/session"
	"github.com/AleutianAI/ragdesk/internal/verdict"
	"github.com/AleutianAI/ragdesk/pkg/ux"
)

func newAskCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "ask <question...>",
		Short: "Ask a question about the indexed documents",
		Example: `  ragdesk ask "What does the contract say about termination?"
  ragdesk ask --personality machine what is the refund policy`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.Join(args, " ")
			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				return ask(ctx, a, question)
			})
		},
	}
}

func newCheckCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:     "check <claim...>",
		Short:   "Fact-check a claim against the indexed documents",
		Example: `  ragdesk check "Water boils at 100C at sea level."`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			claim := strings.Join(args, " ")
			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				return check(ctx, a, claim)
			})
		},
	}
}

func newRunCmd(flags *globalFlags) *cobra.Command {
	var question, claim string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Ask a question and check a claim at the same time",
		Long: `Runs the question and the fact check concurrently. Each settles on its
own: a failure of one does not cancel or hide the other. The exit code is
non-zero if either failed.`,
		Example: `  ragdesk run --question "Who signed?" --claim "The CEO signed on May 1."`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(question) == "" && strings.TrimSpace(claim) == "" {
				return errors.New("nothing to do: pass --question and/or --claim")
			}
			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				return runBoth(ctx, a, question, claim)
			})
		},
	}
	cmd.Flags().StringVarP(&question, "question", "q", "", "question to ask")
	cmd.Flags().StringVarP(&claim, "claim", "c", "", "claim to fact-check")
	return cmd
}

// =============================================================================
// Operations
// =============================================================================

func ask(ctx context.Context, a *app, question string) error {
	_ = a.store.SetQuestion(ctx, question)
	var ok bool
	a.spin("Thinking...", func() { ok = a.orch.SubmitQuery(ctx, question) })
	if !ok {
		return errors.New("question is empty")
	}
	return reportQuery(a)
}

func check(ctx context.Context, a *app, claim string) error {
	_ = a.store.SetClaim(ctx, claim)
	var ok bool
	a.spin("Checking claim...", func() { ok = a.orch.SubmitFactCheck(ctx, claim) })
	if !ok {
		return errors.New("claim is empty")
	}
	return reportFactCheck(a)
}

// runBoth submits both operations concurrently, then reports each.
func runBoth(ctx context.Context, a *app, question, claim string) error {
	var g errgroup.Group
	var asked, checked bool

	if strings.TrimSpace(question) != "" {
		_ = a.store.SetQuestion(ctx, question)
		g.Go(func() error {
			asked = a.orch.SubmitQuery(ctx, question)
			return nil
		})
	}
	if strings.TrimSpace(claim) != "" {
		_ = a.store.SetClaim(ctx, claim)
		g.Go(func() error {
			checked = a.orch.SubmitFactCheck(ctx, claim)
			return nil
		})
	}
	a.spin("Working...", func() { _ = g.Wait() })

	var failed bool
	if asked && reportQuery(a) != nil {
		failed = true
	}
	if checked && reportFactCheck(a) != nil {
		failed = true
	}
	if failed {
		return errReported
	}
	return nil
}

// =============================================================================
// Output
// =============================================================================

// spin runs fn while a spinner animates on stderr in full mode.
func (a *app) spin(message string, fn func()) {
	spin := a.printer.Spinner(message)
	spin.Start()
	defer spin.Stop()
	fn()
}

func reportQuery(a *app) error {
	p := a.orch.Phases().Query
	if p.Err != "" {
		a.printer.Error(p.Err)
		return errReported
	}
	printAnswer(a, p.Result)
	return nil
}

func reportFactCheck(a *app) error {
	p := a.orch.Phases().FactCheck
	if p.Err != "" {
		a.printer.Error(p.Err)
		return errReported
	}
	printFactResult(a.printer, a.store.Snapshot().FactResult)
	return nil
}

func printAnswer(a *app, answer string) {
	if a.printer.Level() != ux.PersonalityFull || !a.cfg.UI.Markdown {
		a.printer.Raw(answer)
		return
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(a.cfg.UI.WordWrap),
	)
	if err != nil {
		a.printer.Raw(answer)
		return
	}
	out, err := r.Render(answer)
	if err != nil {
		a.printer.Raw(answer)
		return
	}
	a.printer.Raw(strings.TrimRight(out, "\n"))
}

func printFactResult(p *ux.Printer, r *session.FactResult) {
	if r == nil {
		p.Muted("No fact check yet.")
		return
	}
	if p.Level() == ux.PersonalityMachine {
		p.Field("Verdict", r.Verdict)
	} else {
		p.Field("Verdict", verdict.Badge(r.Verdict))
	}
	if r.Reason != "" {
		p.Field("Reason", r.Reason)
	}
	if len(r.Evidence) > 0 {
		p.Field("Evidence", "")
		for _, e := range r.Evidence {
			p.Bullet(e)
		}
	}
}
