// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package tui is the interactive ragdesk page: a question box with its
// answer panel and a claim box with its verdict panel.
//
// # Description
//
// The model renders from two sources only: the session store snapshot
// (persisted question, answer, claim and fact result) and the orchestrator
// phases (busy, error). Requests run as tea.Cmd goroutines and report back
// with settledMsg; every edit of an input is written through to the store.
//
// # Thread Safety
//
// The model is used only inside the bubbletea event loop. The orchestrator
// and store it holds are safe for the concurrent commands it starts.
package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/AleutianAI/ragdesk/internal/orchestrator"
	"github.com/AleutianAI/ragdesk/internal/session"
	"github.com/AleutianAI/ragdesk/pkg/logging"
)

// =============================================================================
// Messages
// =============================================================================

// settledMsg reports that a request started by the model has settled. The
// outcome itself is read from the orchestrator and store.
type settledMsg struct {
	operation string
}

// =============================================================================
// Config
// =============================================================================

// Config configures the page.
type Config struct {
	// Markdown renders answers with glamour.
	Markdown bool

	// WordWrap is the maximum answer width in columns.
	WordWrap int

	// ClaimMinHeight and ClaimMaxHeight bound the auto-sized claim input.
	ClaimMinHeight int
	ClaimMaxHeight int

	// Width and Height are used until the first WindowSizeMsg.
	Width  int
	Height int
}

// DefaultConfig returns the defaults used by the ragdesk binary.
func DefaultConfig() Config {
	return Config{
		Markdown:       true,
		WordWrap:       80,
		ClaimMinHeight: 3,
		ClaimMaxHeight: 12,
		Width:          100,
		Height:         40,
	}
}

type field int

const (
	fieldQuestion field = iota
	fieldClaim
)

// =============================================================================
// Model
// =============================================================================

// Model is the bubbletea model of the ragdesk page.
type Model struct {
	config Config
	ctx    context.Context
	orch   *orchestrator.Orchestrator
	store  *session.Store
	logger *logging.Logger

	question  textinput.Model
	claim     textarea.Model
	focus     field
	querySpin spinner.Model
	factSpin  spinner.Model
	answer    viewport.Model
	help      help.Model
	keys      keyMap

	renderer     *glamour.TermRenderer
	rendererWrap int

	width    int
	height   int
	quitting bool
}

// New creates the page model.
//
// # Description
//
// The question and claim inputs start from the store snapshot, so a
// restarted client shows the previous session. The store should already be
// hydrated.
//
// # Inputs
//
//   - ctx: Used for store writes and backend calls started by the page.
//   - orch: Runs Query and FactCheck.
//   - store: Session state to render and write input edits to.
//   - logger: Optional; nil discards.
//   - config: See Config.
func New(ctx context.Context, orch *orchestrator.Orchestrator, store *session.Store, logger *logging.Logger, config Config) Model {
	if logger == nil {
		logger = logging.Nop()
	}
	if config.Width <= 0 || config.Height <= 0 {
		d := DefaultConfig()
		config.Width, config.Height = d.Width, d.Height
	}
	if config.WordWrap <= 0 {
		config.WordWrap = DefaultConfig().WordWrap
	}

	state := store.Snapshot()

	q := textinput.New()
	q.Placeholder = "Ask a question about your documents..."
	q.Prompt = "› "
	q.PromptStyle = styles.prompt
	q.CharLimit = 32768
	q.SetValue(state.Question)
	q.Focus()

	c := textarea.New()
	c.Placeholder = "Paste a claim to verify against the documents..."
	c.ShowLineNumbers = false
	c.CharLimit = 32768
	c.SetValue(state.Claim)
	c.Blur()

	m := Model{
		config:    config,
		ctx:       ctx,
		orch:      orch,
		store:     store,
		logger:    logger.With("component", "tui"),
		question:  q,
		claim:     c,
		focus:     fieldQuestion,
		querySpin: newSpinner(),
		factSpin:  newSpinner(),
		answer:    viewport.New(config.Width, 8),
		help:      help.New(),
		keys:      defaultKeyMap(),
	}
	m.resize(config.Width, config.Height)
	m.refreshAnswer()
	return m
}

func newSpinner() spinner.Model {
	return spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(styles.spinner),
	)
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.querySpin.Tick, m.factSpin.Tick)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		m.refreshAnswer()
		return m, nil

	case settledMsg:
		m.refreshAnswer()
		return m, nil

	case spinner.TickMsg:
		var qCmd, fCmd tea.Cmd
		m.querySpin, qCmd = m.querySpin.Update(msg)
		m.factSpin, fCmd = m.factSpin.Update(msg)
		return m, tea.Batch(qCmd, fCmd)

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m.updateFocused(msg)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil

	case key.Matches(msg, m.keys.NextField):
		return m.toggleFocus()

	case key.Matches(msg, m.keys.ScrollUp), key.Matches(msg, m.keys.ScrollDown):
		var cmd tea.Cmd
		m.answer, cmd = m.answer.Update(msg)
		return m, cmd

	case key.Matches(msg, m.keys.Clear):
		return m.clearSession()

	case key.Matches(msg, m.keys.Check):
		return m, m.submitFactCheck()

	case m.focus == fieldQuestion && key.Matches(msg, m.keys.Ask):
		return m, m.submitQuery()
	}

	return m.updateFocused(msg)
}

// updateFocused forwards msg to the focused input and writes any change
// through to the store.
func (m Model) updateFocused(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.focus {
	case fieldQuestion:
		before := m.question.Value()
		m.question, cmd = m.question.Update(msg)
		if after := m.question.Value(); after != before {
			_ = m.store.SetQuestion(m.ctx, after)
		}
	case fieldClaim:
		before := m.claim.Value()
		m.claim, cmd = m.claim.Update(msg)
		if after := m.claim.Value(); after != before {
			_ = m.store.SetClaim(m.ctx, after)
			m.fitClaim()
		}
	}
	return m, cmd
}

func (m Model) toggleFocus() (tea.Model, tea.Cmd) {
	if m.focus == fieldQuestion {
		m.focus = fieldClaim
		m.question.Blur()
		return m, m.claim.Focus()
	}
	m.focus = fieldQuestion
	m.claim.Blur()
	return m, m.question.Focus()
}

func (m Model) clearSession() (tea.Model, tea.Cmd) {
	if err := m.store.Clear(m.ctx); err != nil {
		m.logger.Warn("clear session failed", "error", err.Error())
	}
	m.question.SetValue("")
	m.claim.SetValue("")
	m.fitClaim()
	m.refreshAnswer()
	return m, nil
}

// =============================================================================
// Requests
// =============================================================================

// submitQuery starts a query unless one is already in flight; the trigger
// stays disabled until busy clears.
func (m Model) submitQuery() tea.Cmd {
	if m.orch.Phases().Query.Busy {
		return nil
	}
	run, ok := m.orch.BeginQuery(m.question.Value())
	if !ok {
		return nil
	}
	ctx := m.ctx
	return tea.Batch(m.querySpin.Tick, func() tea.Msg {
		run(ctx)
		return settledMsg{operation: "query"}
	})
}

func (m Model) submitFactCheck() tea.Cmd {
	if m.orch.Phases().FactCheck.Busy {
		return nil
	}
	run, ok := m.orch.BeginFactCheck(m.claim.Value())
	if !ok {
		return nil
	}
	ctx := m.ctx
	return tea.Batch(m.factSpin.Tick, func() tea.Msg {
		run(ctx)
		return settledMsg{operation: "fact_check"}
	})
}

// =============================================================================
// Layout
// =============================================================================

func (m *Model) resize(width, height int) {
	m.width, m.height = width, height
	inner := max(width-4, 10)

	m.question.Width = inner - 2
	m.claim.SetWidth(inner)
	m.fitClaim()
	m.help.Width = width

	m.answer.Width = inner
	m.answer.Height = m.answerHeight()
}

// answerHeight gives the answer panel whatever the fixed chrome and the
// claim input leave over.
func (m *Model) answerHeight() int {
	const chrome = 18
	return max(m.height-chrome-m.claim.Height(), 3)
}

func (m *Model) fitClaim() {
	h := FitHeight(m.claim.Value(), m.claim.Width(), m.config.ClaimMinHeight, m.config.ClaimMaxHeight)
	if h != m.claim.Height() {
		m.claim.SetHeight(h)
		m.answer.Height = m.answerHeight()
	}
}

// refreshAnswer re-renders the persisted answer into the viewport.
func (m *Model) refreshAnswer() {
	answer := m.store.Snapshot().Answer
	if answer == "" {
		m.answer.SetContent(styles.muted.Render("No answer yet."))
		return
	}
	m.answer.SetContent(m.renderMarkdown(answer))
}

func (m *Model) renderMarkdown(text string) string {
	wrap := min(m.config.WordWrap, max(m.answer.Width-2, 20))
	if !m.config.Markdown {
		return lipgloss.NewStyle().Width(wrap).Render(text)
	}
	if m.renderer == nil || m.rendererWrap != wrap {
		r, err := glamour.NewTermRenderer(
			glamour.WithStylePath("dark"),
			glamour.WithWordWrap(wrap),
		)
		if err != nil {
			m.logger.Warn("markdown renderer unavailable", "error", err.Error())
			return lipgloss.NewStyle().Width(wrap).Render(text)
		}
		m.renderer, m.rendererWrap = r, wrap
	}
	out, err := m.renderer.Render(text)
	if err != nil {
		return lipgloss.NewStyle().Width(wrap).Render(text)
	}
	return strings.TrimRight(out, "\n")
}

// Run starts the page on the terminal and blocks until the user quits.
func Run(ctx context.Context, m Model, opts ...tea.ProgramOption) error {
	opts = append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}, opts...)
	_, err := tea.NewProgram(m, opts...).Run()
	return err
}
