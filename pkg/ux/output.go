// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ux provides terminal output styling for the ragdesk CLI and TUI.
package ux

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
)

// ragdesk color palette - deep ocean teals and arctic waters
var (
	// Primary palette (brightest to darkest)
	ColorTealBright  = lipgloss.Color("#2CD7C7") // Bright teal - highlights, success
	ColorTealPrimary = lipgloss.Color("#20B9B4") // Primary teal - main brand color
	ColorTealVibrant = lipgloss.Color("#1D9EA3") // Vibrant teal - focused inputs
	ColorTealDeep    = lipgloss.Color("#16858E") // Deep teal - borders, accents

	// Dark palette (for muted elements)
	ColorSlate = lipgloss.Color("#2C4A54") // Slate - muted text, borders

	// Semantic colors
	ColorSuccess = lipgloss.Color("#2CD7C7") // Bright teal for success
	ColorWarning = lipgloss.Color("#F4D03F") // Gold/amber for warnings
	ColorError   = lipgloss.Color("#E74C3C") // Red for errors
	ColorMuted   = lipgloss.Color("#2C4A54") // Slate for muted text
)

// Styles provides pre-configured lipgloss styles
var Styles = struct {
	// Text styles
	Title     lipgloss.Style
	Subtitle  lipgloss.Style
	Bold      lipgloss.Style
	Muted     lipgloss.Style
	Success   lipgloss.Style
	Warning   lipgloss.Style
	Error     lipgloss.Style
	Highlight lipgloss.Style

	// Box styles
	Box        lipgloss.Style
	FocusedBox lipgloss.Style
	ErrorBox   lipgloss.Style
}{
	Title:     lipgloss.NewStyle().Bold(true).Foreground(ColorTealBright),
	Subtitle:  lipgloss.NewStyle().Foreground(ColorTealPrimary),
	Bold:      lipgloss.NewStyle().Bold(true),
	Muted:     lipgloss.NewStyle().Foreground(ColorSlate),
	Success:   lipgloss.NewStyle().Foreground(ColorSuccess),
	Warning:   lipgloss.NewStyle().Foreground(ColorWarning),
	Error:     lipgloss.NewStyle().Foreground(ColorError),
	Highlight: lipgloss.NewStyle().Foreground(ColorTealBright).Bold(true),

	Box: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorTealDeep).
		Padding(0, 1),
	FocusedBox: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorTealVibrant).
		Padding(0, 1),
	ErrorBox: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorError).
		Padding(0, 1),
}

// Icon provides themed status icons
type Icon string

const (
	IconSuccess Icon = "✓"
	IconWarning Icon = "⚠"
	IconError   Icon = "✗"
	IconPending Icon = "○"
	IconArrow   Icon = "→"
	IconBullet  Icon = "•"
)

// Render returns the icon with appropriate styling
func (i Icon) Render() string {
	switch i {
	case IconSuccess:
		return Styles.Success.Render(string(i))
	case IconWarning:
		return Styles.Warning.Render(string(i))
	case IconError:
		return Styles.Error.Render(string(i))
	case IconPending:
		return Styles.Muted.Render(string(i))
	default:
		return string(i)
	}
}

// =============================================================================
// Printer
// =============================================================================

// Printer writes styled lines for one personality level. Errors and warnings
// go to errOut in machine mode so stdout stays parseable.
type Printer struct {
	out    io.Writer
	errOut io.Writer
	level  PersonalityLevel
}

// NewPrinter creates a Printer.
func NewPrinter(out, errOut io.Writer, level PersonalityLevel) *Printer {
	return &Printer{out: out, errOut: errOut, level: level}
}

// Level returns the printer's personality level.
func (p *Printer) Level() PersonalityLevel {
	return p.level
}

// Title prints a styled title
func (p *Printer) Title(text string) {
	if p.level == PersonalityMachine {
		return
	}
	fmt.Fprintln(p.out, p.style(Styles.Title, text))
}

// Success prints a success message with checkmark
func (p *Printer) Success(text string) {
	switch p.level {
	case PersonalityMachine:
		fmt.Fprintf(p.out, "OK: %s\n", text)
	case PersonalityMinimal:
		fmt.Fprintf(p.out, "%s %s\n", IconSuccess, text)
	default:
		fmt.Fprintf(p.out, "%s %s\n", IconSuccess.Render(), Styles.Success.Render(text))
	}
}

// Warning prints a warning message
func (p *Printer) Warning(text string) {
	switch p.level {
	case PersonalityMachine:
		fmt.Fprintf(p.errOut, "WARN: %s\n", text)
	case PersonalityMinimal:
		fmt.Fprintf(p.out, "%s %s\n", IconWarning, text)
	default:
		fmt.Fprintf(p.out, "%s %s\n", IconWarning.Render(), Styles.Warning.Render(text))
	}
}

// Error prints an error message
func (p *Printer) Error(text string) {
	switch p.level {
	case PersonalityMachine:
		fmt.Fprintf(p.errOut, "ERROR: %s\n", text)
	case PersonalityMinimal:
		fmt.Fprintf(p.errOut, "%s %s\n", IconError, text)
	default:
		fmt.Fprintf(p.errOut, "%s %s\n", IconError.Render(), Styles.Error.Render(text))
	}
}

// Field prints a labelled value.
func (p *Printer) Field(label, value string) {
	if p.level == PersonalityMachine {
		fmt.Fprintf(p.out, "%s: %s\n", label, value)
		return
	}
	fmt.Fprintf(p.out, "%s %s\n", p.style(Styles.Subtitle, label+":"), value)
}

// Bullet prints one list item.
func (p *Printer) Bullet(text string) {
	if p.level == PersonalityMachine {
		fmt.Fprintf(p.out, "- %s\n", text)
		return
	}
	fmt.Fprintf(p.out, "  %s %s\n", p.style(Styles.Muted, string(IconBullet)), text)
}

// Muted prints muted/secondary text
func (p *Printer) Muted(text string) {
	if p.level == PersonalityMachine {
		return
	}
	fmt.Fprintln(p.out, p.style(Styles.Muted, text))
}

// Box prints text in a rounded box
func (p *Printer) Box(title, content string) {
	if p.level != PersonalityFull {
		fmt.Fprintf(p.out, "%s: %s\n", title, content)
		return
	}
	titleLine := Styles.Title.Render(title)
	fmt.Fprintln(p.out, Styles.Box.Width(72).Render(titleLine+"\n"+content))
}

// Raw prints text unchanged.
// Spinner returns a stopped spinner that animates on the error stream.
func (p *Printer) Spinner(message string) *Spinner {
	return NewSpinner(p.errOut, p.level, message)
}

func (p *Printer) Raw(text string) {
	fmt.Fprintln(p.out, text)
}

func (p *Printer) style(s lipgloss.Style, text string) string {
	if p.level != PersonalityFull {
		return text
	}
	return s.Render(text)
}
