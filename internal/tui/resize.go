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
)

// FitHeight returns the number of rows an input needs to show content
// wrapped at width, starting from minRows and clamped to maxRows.
//
// # Description
//
// The height is reset to minRows and grown to the wrapped line count, so
// shrinking content shrinks the input again. Each logical line takes at
// least one row; a line of display width w takes ceil(w/width) rows. A
// non-positive width disables wrapping. maxRows below minRows is raised to
// minRows.
//
// The result depends only on the arguments.
//
// # Examples
//
//	FitHeight("", 40, 3, 10)                      // 3
//	FitHeight(strings.Repeat("x", 200), 40, 3, 10) // 5
//	FitHeight(strings.Repeat("a\n", 50), 40, 3, 10) // 10
func FitHeight(content string, width, minRows, maxRows int) int {
	if minRows < 1 {
		minRows = 1
	}
	if maxRows < minRows {
		maxRows = minRows
	}

	rows := 0
	for _, line := range strings.Split(content, "\n") {
		rows += wrappedRows(line, width)
		if rows >= maxRows {
			return maxRows
		}
	}
	return max(rows, minRows)
}

func wrappedRows(line string, width int) int {
	w := lipgloss.Width(line)
	if width <= 0 || w <= width {
		return 1
	}
	return (w + width - 1) / width
}
