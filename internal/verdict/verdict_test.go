// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package verdict

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/AleutianAI/ragdesk/pkg/ux"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		in   string
		want Category
	}{
		{"SUPPORTED", Positive},
		{"supported", Positive},
		{"  Supported\n", Positive},
		{"REFUTED", Negative},
		{"refuted ", Negative},
		{"NOT_ENOUGH_INFO", Neutral},
		{"PARTIALLY_SUPPORTED", Neutral},
		{"", Neutral},
		{"   ", Neutral},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.in))
		})
	}
}

func TestCategory_StringAndIcon(t *testing.T) {
	assert.Equal(t, "positive", Positive.String())
	assert.Equal(t, "negative", Negative.String())
	assert.Equal(t, "neutral", Neutral.String())

	assert.Equal(t, ux.IconSuccess, Positive.Icon())
	assert.Equal(t, ux.IconError, Negative.Icon())
	assert.Equal(t, ux.IconWarning, Neutral.Icon())
}

func TestBadge(t *testing.T) {
	assert.Contains(t, Badge("SUPPORTED"), "SUPPORTED")
	assert.Contains(t, Badge(""), "UNKNOWN")
	assert.Contains(t, Badge(" refuted "), "refuted")
}

func TestStylesDiffer(t *testing.T) {
	assert.NotEqual(t, Positive.BoxStyle().GetBorderTopForeground(), Negative.BoxStyle().GetBorderTopForeground())
	assert.NotEqual(t, Negative.BoxStyle().GetBorderTopForeground(), Neutral.BoxStyle().GetBorderTopForeground())
}
