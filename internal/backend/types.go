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
	"github.com/go-playground/validator/v10"
)

// requestValidate checks request bodies before they go on the wire.
var requestValidate = validator.New()

// =============================================================================
// Query
// =============================================================================

// QueryRequest is the body of POST /query.
type QueryRequest struct {
	Question string `json:"question" validate:"required"`
}

// Validate reports whether the request may be sent.
func (r *QueryRequest) Validate() error {
	return requestValidate.Struct(r)
}

// QueryResponse is a successful /query settlement.
//
// # Fields
//
//   - Answer: The backend's answer text. Empty when the payload had no
//     answer (or a null one); callers substitute their own placeholder.
//   - RequestID: The X-Request-ID sent with the call.
type QueryResponse struct {
	Answer    string
	RequestID string
}

// =============================================================================
// Fact Check
// =============================================================================

// FactCheckNamespace is the only namespace this client queries.
const FactCheckNamespace = "documents"

// FactCheckRequest is the body of POST /fact_check.
type FactCheckRequest struct {
	Claim     string `json:"claim" validate:"required"`
	Namespace string `json:"namespace" validate:"required"`
}

// Validate reports whether the request may be sent.
func (r *FactCheckRequest) Validate() error {
	return requestValidate.Struct(r)
}

// FactCheckResult is the inner payload carried as JSON text in the `result`
// field of a /fact_check response. Verdict is an open string.
type FactCheckResult struct {
	Verdict  string   `json:"verdict"`
	Reason   string   `json:"reason"`
	Evidence []string `json:"evidence"`
}

// FactCheckResponse is a successful /fact_check settlement.
type FactCheckResponse struct {
	Result    FactCheckResult
	RequestID string
}

// =============================================================================
// Supplementary Endpoints
// =============================================================================

// HealthResponse is the body of GET /.
type HealthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// UploadResponse is the body of a successful POST /upload-pdf.
type UploadResponse struct {
	Status string `json:"status"`
	Chunks int    `json:"chunks"`
}

// StatsResponse is the body of GET /debug/pinecone-stats.
type StatsResponse struct {
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}
