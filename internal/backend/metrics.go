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
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for ragdesk_backend_requests_total.
const (
	outcomeOK        = "ok"
	outcomeTransport = "transport_error"
	outcomeAPI       = "api_error"
	outcomeDecode    = "decode_error"
	outcomeInvalid   = "invalid_request"
)

// Metrics holds the client-side request metrics.
type Metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// leaves them unregistered, which is what tests without a registry want.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ragdesk",
			Subsystem: "backend",
			Name:      "requests_total",
			Help:      "Backend requests by operation and outcome.",
		}, []string{"operation", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ragdesk",
			Subsystem: "backend",
			Name:      "request_duration_seconds",
			Help:      "Backend round-trip latency by operation. Model calls are slow, so buckets reach two minutes.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"operation"}),
	}
	if reg != nil {
		reg.MustRegister(m.requests, m.duration)
	}
	return m
}

// observe records one finished call.
func (m *Metrics) observe(operation string, started time.Time, err error) {
	m.requests.WithLabelValues(operation, outcomeOf(err)).Inc()
	m.duration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}

func outcomeOf(err error) string {
	var (
		apiErr *APIError
		decErr *DecodeError
		trErr  *TransportError
	)
	switch {
	case err == nil:
		return outcomeOK
	case errors.As(err, &apiErr):
		return outcomeAPI
	case errors.As(err, &decErr):
		return outcomeDecode
	case errors.As(err, &trErr):
		return outcomeTransport
	default:
		return outcomeInvalid
	}
}
