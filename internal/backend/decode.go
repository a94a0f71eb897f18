// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package backend

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// =============================================================================
// Decode Stages
// =============================================================================

// DecodeStage tags the outcome of decoding a response body.
type DecodeStage int

const (
	// StageOK means every pass succeeded.
	StageOK DecodeStage = iota

	// StageOuter means the HTTP body is not a JSON object.
	StageOuter

	// StageResultMissing means the body has no string `result` field.
	StageResultMissing

	// StageInner means the `result` text is not a JSON verdict object.
	StageInner
)

func (s DecodeStage) String() string {
	switch s {
	case StageOK:
		return "ok"
	case StageOuter:
		return "outer body"
	case StageResultMissing:
		return "result field"
	case StageInner:
		return "inner result"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// Decoded is the tagged outcome of DecodeFactCheck. Result is meaningful
// only when Stage is StageOK; Err is non-nil otherwise.
type Decoded struct {
	Result FactCheckResult
	Stage  DecodeStage
	Err    error
}

// OK reports whether both passes succeeded.
func (d Decoded) OK() bool {
	return d.Stage == StageOK
}

// =============================================================================
// Fact Check Decode
// =============================================================================

// DecodeFactCheck decodes a 2xx /fact_check body.
//
// # Description
//
// The backend returns the model's verdict as JSON text inside a JSON
// envelope:
//
//	{"claim": "...", "result": "{\"verdict\":\"SUPPORTED\",...}"}
//
// The first pass decodes the envelope and extracts `result` as a string;
// the second pass decodes that string into FactCheckResult. Evidence
// defaults to an empty slice when it is absent or null.
//
// # Inputs
//
//   - body: Raw response body.
//
// # Outputs
//
//   - Decoded: StageOK with Result set, or the failing stage with Err set.
//
// # Limitations
//
//   - The inner text must be bare JSON. Markdown code fences around it are
//     reported as StageInner.
func DecodeFactCheck(body []byte) Decoded {
	env, err := parseEnvelope(body)
	if err != nil {
		return Decoded{Stage: StageOuter, Err: err}
	}
	return decodeResult(env)
}

// decodeResult runs the result-field and inner passes on a parsed envelope.
func decodeResult(env envelope) Decoded {
	raw, ok := env["result"]
	if !ok || isNull(raw) {
		return Decoded{Stage: StageResultMissing, Err: errors.New("response has no result field")}
	}
	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		return Decoded{Stage: StageResultMissing, Err: fmt.Errorf("result field is not a string: %w", err)}
	}

	result, err := decodeVerdict([]byte(text))
	if err != nil {
		return Decoded{Stage: StageInner, Err: err}
	}
	return Decoded{Result: result, Stage: StageOK}
}

func decodeVerdict(text []byte) (FactCheckResult, error) {
	trimmed := bytes.TrimSpace(text)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		if err := json.Unmarshal(trimmed, new(any)); err != nil {
			return FactCheckResult{}, err
		}
		return FactCheckResult{}, errors.New("result is not a JSON object")
	}
	var result FactCheckResult
	if err := json.Unmarshal(trimmed, &result); err != nil {
		return FactCheckResult{}, err
	}
	if result.Evidence == nil {
		result.Evidence = []string{}
	}
	return result, nil
}

// =============================================================================
// Envelope
// =============================================================================

// envelope is the top-level JSON object of any backend response.
type envelope map[string]json.RawMessage

// parseEnvelope decodes body as a JSON object.
func parseEnvelope(body []byte) (envelope, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, errors.New("empty response body")
	}
	var env envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, err
	}
	if env == nil {
		return nil, errors.New("response body is null")
	}
	return env, nil
}

// detail returns the `detail` field as display text. A JSON string is
// unquoted; any other value (FastAPI validation errors are arrays) is
// returned as its raw JSON.
func (e envelope) detail() (string, bool) {
	raw, ok := e["detail"]
	if !ok || isNull(raw) {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}
	return string(bytes.TrimSpace(raw)), true
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
