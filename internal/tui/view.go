// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/AleutianAI/ragdesk/internal/orchestrator"
	"github.com/AleutianAI/ragdesk/internal/session"
	"github.com/AleutianAI/ragdesk/internal/verdict"
	"github.com/AleutianAI/ragdesk/pkg/ux"
)

var styles = struct {
	title   lipgloss.Style
	label   lipgloss.Style
	prompt  lipgloss.Style
	muted   lipgloss.Style
	err     lipgloss.Style
	spinner lipgloss.Style
	box     lipgloss.Style
	focused lipgloss.Style
}{
	title:   ux.Styles.Title.MarginBottom(1),
	label:   ux.Styles.Subtitle.Bold(true),
	prompt:  lipgloss.NewStyle().Foreground(ux.ColorTealBright),
	muted:   ux.Styles.Muted,
	err:     ux.Styles.Error,
	spinner: lipgloss.NewStyle().Foreground(ux.ColorTealPrimary),
	box:     ux.Styles.Box,
	focused: ux.Styles.FocusedBox,
}

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	state := m.store.Snapshot()
	phases := m.orch.Phases()

	sections := []string{
		styles.title.Render("ragdesk"),

		styles.label.Render("Question"),
		m.inputBox(m.question.View(), m.focus == fieldQuestion),
		m.status(phases.Query, m.querySpin.View(), "Thinking... (enter disabled)"),
		styles.box.Width(m.answer.Width + 2).Render(m.answer.View()),

		styles.label.Render("Claim"),
		m.inputBox(m.claim.View(), m.focus == fieldClaim),
		m.status(phases.FactCheck, m.factSpin.View(), "Checking claim... (ctrl+s disabled)"),
		m.factPanel(state.FactResult),

		m.help.View(m.keys.withBusy(phases.Query.Busy, phases.FactCheck.Busy)),
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) inputBox(content string, focused bool) string {
	style := styles.box
	if focused {
		style = styles.focused
	}
	return style.Width(max(m.width-2, 12)).Render(content)
}

// status renders the busy spinner or the phase error. An idle phase without
// an error renders as an empty line so the layout does not jump.
func (m Model) status(p orchestrator.Phase, spin, busyText string) string {
	switch {
	case p.Busy:
		return spin + " " + styles.muted.Render(busyText)
	case p.Err != "":
		return styles.err.Render(string(ux.IconError) + " " + p.Err)
	default:
		return ""
	}
}

// factPanel renders the persisted fact-check result.
func (m Model) factPanel(r *session.FactResult) string {
	width := max(m.width-2, 12)
	if r == nil {
		return styles.box.Width(width).Render(styles.muted.Render("No fact check yet."))
	}

	category := verdict.Classify(r.Verdict)
	lines := []string{verdict.Badge(r.Verdict)}
	if r.Reason != "" {
		lines = append(lines, "", r.Reason)
	}
	if len(r.Evidence) > 0 {
		lines = append(lines, "", styles.label.Render("Evidence"))
		for _, e := range r.Evidence {
			lines = append(lines, styles.muted.Render(string(ux.IconBullet))+" "+e)
		}
	}
	return category.BoxStyle().Width(width).Render(strings.Join(lines, "\n"))
}
