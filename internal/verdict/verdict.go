// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package verdict maps fact-check verdict strings to display categories.
package verdict

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/AleutianAI/ragdesk/pkg/ux"
)

// Known verdict strings. The backend may return others.
const (
	Supported     = "SUPPORTED"
	Refuted       = "REFUTED"
	NotEnoughInfo = "NOT_ENOUGH_INFO"
)

// Category is the visual class of a verdict.
type Category int

const (
	// Neutral covers NOT_ENOUGH_INFO, unknown and empty verdicts.
	Neutral Category = iota
	Positive
	Negative
)

func (c Category) String() string {
	switch c {
	case Positive:
		return "positive"
	case Negative:
		return "negative"
	default:
		return "neutral"
	}
}

// Classify returns the category for a verdict. Matching ignores surrounding
// whitespace and case.
func Classify(verdict string) Category {
	switch strings.ToUpper(strings.TrimSpace(verdict)) {
	case Supported:
		return Positive
	case Refuted:
		return Negative
	default:
		return Neutral
	}
}

// Icon returns the status icon for a category.
func (c Category) Icon() ux.Icon {
	switch c {
	case Positive:
		return ux.IconSuccess
	case Negative:
		return ux.IconError
	default:
		return ux.IconWarning
	}
}

// Style returns the text style for a category.
func (c Category) Style() lipgloss.Style {
	switch c {
	case Positive:
		return ux.Styles.Success.Bold(true)
	case Negative:
		return ux.Styles.Error.Bold(true)
	default:
		return ux.Styles.Warning.Bold(true)
	}
}

// BoxStyle returns the bordered panel style for a category.
func (c Category) BoxStyle() lipgloss.Style {
	var border lipgloss.Color
	switch c {
	case Positive:
		border = ux.ColorSuccess
	case Negative:
		border = ux.ColorError
	default:
		border = ux.ColorWarning
	}
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(border).
		Padding(0, 1)
}

// Badge renders the verdict text with its category's icon and style. An
// empty verdict renders as "UNKNOWN".
func Badge(verdict string) string {
	text := strings.TrimSpace(verdict)
	if text == "" {
		text = "UNKNOWN"
	}
	c := Classify(verdict)
	return c.Style().Render(string(c.Icon()) + " " + text)
}
