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
	"errors"
	"fmt"
)

// TransportError means the request never produced an HTTP response:
// connection refused, DNS failure, timeout, or a body that could not be
// read.
type TransportError struct {
	Operation string
	Err       error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Operation, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// APIError is a failure reported by the backend itself: a non-2xx status,
// or a 2xx body that still carries a `detail` field.
type APIError struct {
	Operation  string
	StatusCode int

	// Detail is the backend's `detail` value. Strings are kept verbatim;
	// any other JSON value is kept as its raw text.
	Detail string

	// Body is the raw response body, trimmed.
	Body string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: backend returned %d: %s", e.Operation, e.StatusCode, e.Message())
}

// Message returns the most useful text for a user: the detail when there is
// one, else the raw body, else the status code.
func (e *APIError) Message() string {
	switch {
	case e.Detail != "":
		return e.Detail
	case e.Body != "":
		return e.Body
	default:
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
}

// DecodeError means a 2xx response could not be decoded. Stage says which
// pass failed.
type DecodeError struct {
	Operation string
	Stage     DecodeStage
	Err       error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: decode %s: %v", e.Operation, e.Stage, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Message returns the text shown to users for err.
//
// # Description
//
// Backend failures show the backend's detail (or raw body); decode failures
// show the raw parse error; transport failures show the underlying error.
// Anything else falls back to err.Error().
func Message(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message()
	}
	var decErr *DecodeError
	if errors.As(err, &decErr) {
		return decErr.Err.Error()
	}
	var trErr *TransportError
	if errors.As(err, &trErr) {
		return trErr.Err.Error()
	}
	return err.Error()
}
