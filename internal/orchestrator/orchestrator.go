// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package orchestrator runs the Query and FactCheck request flows.
//
// Each flow owns a Phase (busy flag, result text, error text). The two
// phases are guarded by separate locks and never affect each other. Backend
// results reach the session store only on success; failures are reported
// through the phase error alone, so the last good answer and verdict stay
// on screen.
//
// Submissions are split in two so a UI can show the busy state before the
// network call starts:
//
//	run, ok := o.BeginQuery(question) // busy set, synchronous
//	if ok {
//	    go run(ctx)                   // HTTP call and settlement
//	}
//
// SubmitQuery and SubmitFactCheck do both steps in the calling goroutine.
package orchestrator

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/AleutianAI/ragdesk/internal/backend"
	"github.com/AleutianAI/ragdesk/internal/session"
	"github.com/AleutianAI/ragdesk/pkg/logging"
)

// Error prefixes shown in the phase error slot.
const (
	QueryFailedPrefix     = "Query failed: "
	FactCheckFailedPrefix = "Fact check failed: "
)

// NoAnswerPlaceholder replaces an absent or empty answer.
const NoAnswerPlaceholder = "No answer returned."

// Backend is the subset of *backend.Client the orchestrator calls.
type Backend interface {
	Query(ctx context.Context, question string) (*backend.QueryResponse, error)
	FactCheck(ctx context.Context, claim string) (*backend.FactCheckResponse, error)
}

// Phase is the presentable lifecycle of one operation.
//
// # Fields
//
//   - Busy: A request is in flight.
//   - Result: Answer text for Query, verdict for FactCheck. Empty until the
//     latest request succeeds.
//   - Err: The prefixed failure message of the latest failed request.
//   - RequestID: X-Request-ID of the latest settled request, if any.
type Phase struct {
	Busy      bool
	Result    string
	Err       string
	RequestID string
}

// Phases is a point-in-time copy of both phases.
type Phases struct {
	Query     Phase
	FactCheck Phase
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithStaleGuard applies only the settlement of the most recent submission
// per operation. Earlier calls still run to completion but their results are
// dropped and they do not clear the busy flag.
func WithStaleGuard() Option {
	return func(o *Orchestrator) { o.staleGuard = true }
}

// WithClock overrides time.Now for settlement durations.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

type phaseState struct {
	mu    sync.Mutex
	phase Phase
	seq   uint64
}

// Orchestrator owns the Query and FactCheck phases.
//
// # Thread Safety
//
// All methods are safe for concurrent use. Overlapping submissions of the
// same operation are allowed; without WithStaleGuard each applies its own
// settlement in completion order.
type Orchestrator struct {
	store      *session.Store
	client     Backend
	logger     *logging.Logger
	staleGuard bool
	now        func() time.Time

	query     phaseState
	factCheck phaseState
}

// New creates an Orchestrator. A nil logger discards logs.
func New(store *session.Store, client Backend, logger *logging.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = logging.Nop()
	}
	o := &Orchestrator{
		store:  store,
		client: client,
		logger: logger.With("component", "orchestrator"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Phases returns a copy of both phases.
func (o *Orchestrator) Phases() Phases {
	return Phases{
		Query:     o.query.snapshot(),
		FactCheck: o.factCheck.snapshot(),
	}
}

func (p *phaseState) snapshot() Phase {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.phase
}

// begin marks the phase busy and clears the previous outcome. It returns the
// sequence number of this submission.
func (p *phaseState) begin() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seq++
	p.phase = Phase{Busy: true}
	return p.seq
}

// settle applies fn unless the stale guard drops it. fn runs under the
// phase lock.
func (p *phaseState) settle(seq uint64, guard bool, fn func(*Phase)) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if guard && seq != p.seq {
		return false
	}
	fn(&p.phase)
	p.phase.Busy = false
	return true
}

// =============================================================================
// Query
// =============================================================================

// SubmitQuery asks question and waits for the settlement.
//
// # Description
//
// A question that is empty after trimming is a no-op: the phase is not
// touched and no request is sent. Otherwise the phase goes busy, POST /query
// runs, and on success the answer (or NoAnswerPlaceholder) is written to the
// store. On failure the phase error becomes "Query failed: <message>" and
// the store is untouched.
//
// # Outputs
//
//   - bool: false when the question was empty and nothing happened.
func (o *Orchestrator) SubmitQuery(ctx context.Context, question string) bool {
	run, ok := o.BeginQuery(question)
	if !ok {
		return false
	}
	run(ctx)
	return true
}

// BeginQuery validates question and marks the Query phase busy. The returned
// function performs the request and settles the phase; it must be called
// exactly once.
func (o *Orchestrator) BeginQuery(question string) (func(context.Context), bool) {
	if strings.TrimSpace(question) == "" {
		return nil, false
	}
	seq := o.query.begin()
	return func(ctx context.Context) { o.runQuery(ctx, seq, question) }, true
}

func (o *Orchestrator) runQuery(ctx context.Context, seq uint64, question string) {
	started := o.now()
	settled := false
	defer func() {
		// busy must clear even if the backend call panics
		if !settled {
			o.query.settle(seq, o.staleGuard, func(*Phase) {})
		}
	}()

	resp, err := o.client.Query(ctx, question)
	if err != nil {
		msg := QueryFailedPrefix + backend.Message(err)
		applied := o.query.settle(seq, o.staleGuard, func(p *Phase) {
			p.Err = msg
		})
		settled = true
		o.logSettlement(backend.OpQuery, seq, applied, started, err)
		return
	}

	answer := resp.Answer
	if strings.TrimSpace(answer) == "" {
		answer = NoAnswerPlaceholder
	}
	applied := o.query.settle(seq, o.staleGuard, func(p *Phase) {
		p.Result = answer
		p.RequestID = resp.RequestID
		// the store logs its own persist failures
		_ = o.store.SetAnswer(ctx, answer)
	})
	settled = true
	o.logSettlement(backend.OpQuery, seq, applied, started, nil)
}

// =============================================================================
// FactCheck
// =============================================================================

// SubmitFactCheck verifies claim and waits for the settlement.
//
// # Description
//
// A claim that is empty after trimming is a no-op. Otherwise the phase goes
// busy and POST /fact_check runs against the "documents" namespace. On
// success the store's factResult is replaced (evidence defaulted to an empty
// list) and its claim set to the submitted text. Any failure, including a
// malformed inner result, sets "Fact check failed: <message>" and leaves the
// previous factResult in place.
//
// # Outputs
//
//   - bool: false when the claim was empty and nothing happened.
func (o *Orchestrator) SubmitFactCheck(ctx context.Context, claim string) bool {
	run, ok := o.BeginFactCheck(claim)
	if !ok {
		return false
	}
	run(ctx)
	return true
}

// BeginFactCheck validates claim and marks the FactCheck phase busy. The
// returned function performs the request and settles the phase.
func (o *Orchestrator) BeginFactCheck(claim string) (func(context.Context), bool) {
	if strings.TrimSpace(claim) == "" {
		return nil, false
	}
	seq := o.factCheck.begin()
	return func(ctx context.Context) { o.runFactCheck(ctx, seq, claim) }, true
}

func (o *Orchestrator) runFactCheck(ctx context.Context, seq uint64, claim string) {
	started := o.now()
	settled := false
	defer func() {
		if !settled {
			o.factCheck.settle(seq, o.staleGuard, func(*Phase) {})
		}
	}()

	resp, err := o.client.FactCheck(ctx, claim)
	if err != nil {
		msg := FactCheckFailedPrefix + backend.Message(err)
		applied := o.factCheck.settle(seq, o.staleGuard, func(p *Phase) {
			p.Err = msg
		})
		settled = true
		o.logSettlement(backend.OpFactCheck, seq, applied, started, err)
		return
	}

	result := &session.FactResult{
		Verdict:  resp.Result.Verdict,
		Reason:   resp.Result.Reason,
		Evidence: resp.Result.Evidence,
	}
	result.Normalize()

	applied := o.factCheck.settle(seq, o.staleGuard, func(p *Phase) {
		p.Result = result.Verdict
		p.RequestID = resp.RequestID
		_ = o.store.SetFactResult(ctx, result)
		_ = o.store.SetClaim(ctx, claim)
	})
	settled = true
	o.logSettlement(backend.OpFactCheck, seq, applied, started, nil)
}

// =============================================================================
// Logging
// =============================================================================

func (o *Orchestrator) logSettlement(operation string, seq uint64, applied bool, started time.Time, err error) {
	args := []any{
		"operation", operation,
		"seq", seq,
		"duration_ms", o.now().Sub(started).Milliseconds(),
	}
	switch {
	case !applied:
		o.logger.Debug("stale settlement dropped", args...)
	case err != nil:
		o.logger.Warn("operation failed", append(args, "error", err.Error())...)
	default:
		o.logger.Info("operation settled", args...)
	}
}
