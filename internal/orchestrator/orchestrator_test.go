// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package orchestrator

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/AleutianAI/ragdesk/internal/backend"
	"github.com/AleutianAI/ragdesk/internal/session"
	"github.com/AleutianAI/ragdesk/internal/verdict"
	"github.com/AleutianAI/ragdesk/pkg/logging"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
	)
}

// =============================================================================
// Fake Backend
// =============================================================================

type queryReply struct {
	resp *backend.QueryResponse
	err  error
}

type factReply struct {
	resp *backend.FactCheckResponse
	err  error
}

// fakeBackend returns canned replies. A question with an entry in
// queryGates blocks until a reply is sent on its gate.
type fakeBackend struct {
	mu         sync.Mutex
	queries    []string
	claims     []string
	query      queryReply
	fact       factReply
	queryGates map[string]chan queryReply
}

func (f *fakeBackend) Query(ctx context.Context, question string) (*backend.QueryResponse, error) {
	f.mu.Lock()
	f.queries = append(f.queries, question)
	gate, reply := f.queryGates[question], f.query
	f.mu.Unlock()

	if gate != nil {
		reply = <-gate
	}
	return reply.resp, reply.err
}

func (f *fakeBackend) FactCheck(ctx context.Context, claim string) (*backend.FactCheckResponse, error) {
	f.mu.Lock()
	f.claims = append(f.claims, claim)
	reply := f.fact
	f.mu.Unlock()
	return reply.resp, reply.err
}

func (f *fakeBackend) gate(question string) chan queryReply {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.queryGates == nil {
		f.queryGates = make(map[string]chan queryReply)
	}
	ch := make(chan queryReply)
	f.queryGates[question] = ch
	return ch
}

func (f *fakeBackend) calls() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries), len(f.claims)
}

type fixture struct {
	orch     *Orchestrator
	store    *session.Store
	slot     *session.MemorySlot
	backend  *fakeBackend
	exporter *logging.BufferedExporter
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	exporter := logging.NewBufferedExporter()
	logger := logging.New(logging.Config{Quiet: true, Level: logging.LevelDebug, Exporter: exporter})
	slot := session.NewMemorySlot()
	store := session.NewStore(slot, logger)
	store.Hydrate(context.Background())
	fb := &fakeBackend{}
	return &fixture{
		orch:     New(store, fb, logger, opts...),
		store:    store,
		slot:     slot,
		backend:  fb,
		exporter: exporter,
	}
}

func supportedResponse() *backend.FactCheckResponse {
	return &backend.FactCheckResponse{
		Result: backend.FactCheckResult{
			Verdict:  "SUPPORTED",
			Reason:   "Confirmed by doc X",
			Evidence: []string{"doc X, p.2"},
		},
		RequestID: "req-fc",
	}
}

// =============================================================================
// Query
// =============================================================================

func TestSubmitQuery_Success(t *testing.T) {
	f := newFixture(t)
	f.backend.query = queryReply{resp: &backend.QueryResponse{Answer: "X", RequestID: "req-1"}}

	require.True(t, f.orch.SubmitQuery(context.Background(), "What is X?"))

	assert.Equal(t, "X", f.store.Snapshot().Answer)
	got := f.orch.Phases().Query
	assert.Equal(t, Phase{Result: "X", RequestID: "req-1"}, got)
	assert.Contains(t, f.exporter.Messages(logging.LevelInfo), "operation settled")
}

func TestSubmitQuery_EmptyInputIsNoop(t *testing.T) {
	for _, q := range []string{"", "   ", "\n\t"} {
		f := newFixture(t)
		assert.False(t, f.orch.SubmitQuery(context.Background(), q))

		queries, _ := f.backend.calls()
		assert.Equal(t, 0, queries)
		assert.Equal(t, Phase{}, f.orch.Phases().Query)
		assert.Equal(t, 0, f.slot.Writes())
	}
}

func TestSubmitQuery_EmptyAnswerUsesPlaceholder(t *testing.T) {
	f := newFixture(t)
	f.backend.query = queryReply{resp: &backend.QueryResponse{Answer: ""}}

	f.orch.SubmitQuery(context.Background(), "q")
	assert.Equal(t, NoAnswerPlaceholder, f.store.Snapshot().Answer)
	assert.Equal(t, NoAnswerPlaceholder, f.orch.Phases().Query.Result)
}

func TestSubmitQuery_FailureKeepsPreviousAnswer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.SetAnswer(ctx, "previous"))

	f.backend.query = queryReply{err: &backend.APIError{
		Operation:  backend.OpQuery,
		StatusCode: 500,
		Detail:     "index unavailable",
	}}
	f.orch.SubmitQuery(ctx, "q")

	p := f.orch.Phases().Query
	assert.False(t, p.Busy)
	assert.Equal(t, "Query failed: index unavailable", p.Err)
	assert.Empty(t, p.Result)
	assert.Equal(t, "previous", f.store.Snapshot().Answer)
	assert.Contains(t, f.exporter.Messages(logging.LevelWarn), "operation failed")
}

func TestSubmitQuery_ErrorReplacedByNextAttempt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.backend.query = queryReply{err: &backend.TransportError{Operation: backend.OpQuery, Err: errors.New("connection refused")}}
	f.orch.SubmitQuery(ctx, "q")
	assert.Equal(t, "Query failed: connection refused", f.orch.Phases().Query.Err)

	f.backend.query = queryReply{resp: &backend.QueryResponse{Answer: "ok"}}
	f.orch.SubmitQuery(ctx, "q")
	assert.Empty(t, f.orch.Phases().Query.Err)
	assert.Equal(t, "ok", f.store.Snapshot().Answer)
}

func TestBeginQuery_BusyUntilSettled(t *testing.T) {
	f := newFixture(t)
	gate := f.backend.gate("q")

	run, ok := f.orch.BeginQuery("q")
	require.True(t, ok)
	assert.True(t, f.orch.Phases().Query.Busy)
	assert.False(t, f.orch.Phases().FactCheck.Busy)

	done := make(chan struct{})
	go func() {
		defer close(done)
		run(context.Background())
	}()
	gate <- queryReply{resp: &backend.QueryResponse{Answer: "a"}}
	<-done

	assert.False(t, f.orch.Phases().Query.Busy)
}

func TestRunQuery_PanicStillClearsBusy(t *testing.T) {
	f := newFixture(t)
	o := New(f.store, panicBackend{}, nil)

	run, ok := o.BeginQuery("q")
	require.True(t, ok)
	assert.Panics(t, func() { run(context.Background()) })
	assert.False(t, o.Phases().Query.Busy)
}

type panicBackend struct{}

func (panicBackend) Query(context.Context, string) (*backend.QueryResponse, error) {
	panic("boom")
}

func (panicBackend) FactCheck(context.Context, string) (*backend.FactCheckResponse, error) {
	panic("boom")
}

// =============================================================================
// FactCheck
// =============================================================================

func TestSubmitFactCheck_Success(t *testing.T) {
	f := newFixture(t)
	f.backend.fact = factReply{resp: supportedResponse()}
	claim := "Water boils at 100C at sea level."

	require.True(t, f.orch.SubmitFactCheck(context.Background(), claim))

	state := f.store.Snapshot()
	want := &session.FactResult{Verdict: "SUPPORTED", Reason: "Confirmed by doc X", Evidence: []string{"doc X, p.2"}}
	if diff := cmp.Diff(want, state.FactResult); diff != "" {
		t.Errorf("factResult mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, claim, state.Claim)
	assert.Equal(t, verdict.Positive, verdict.Classify(state.FactResult.Verdict))

	p := f.orch.Phases().FactCheck
	assert.Equal(t, "SUPPORTED", p.Result)
	assert.Empty(t, p.Err)
	assert.False(t, p.Busy)
}

func TestSubmitFactCheck_NilEvidenceDefaultsToEmpty(t *testing.T) {
	f := newFixture(t)
	f.backend.fact = factReply{resp: &backend.FactCheckResponse{Result: backend.FactCheckResult{Verdict: "NOT_ENOUGH_INFO"}}}

	f.orch.SubmitFactCheck(context.Background(), "c")
	got := f.store.Snapshot().FactResult
	require.NotNil(t, got)
	assert.NotNil(t, got.Evidence)
	assert.Empty(t, got.Evidence)
}

func TestSubmitFactCheck_FailureKeepsPreviousResult(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.backend.fact = factReply{resp: supportedResponse()}
	f.orch.SubmitFactCheck(ctx, "first claim")

	f.backend.fact = factReply{err: &backend.DecodeError{
		Operation: backend.OpFactCheck,
		Stage:     backend.StageInner,
		Err:       errors.New("invalid character 'n' looking for beginning of value"),
	}}
	f.orch.SubmitFactCheck(ctx, "second claim")

	state := f.store.Snapshot()
	require.NotNil(t, state.FactResult)
	assert.Equal(t, "SUPPORTED", state.FactResult.Verdict)
	assert.Equal(t, "first claim", state.Claim)

	p := f.orch.Phases().FactCheck
	assert.Equal(t, "Fact check failed: invalid character 'n' looking for beginning of value", p.Err)
	assert.False(t, p.Busy)
}

func TestSubmitFactCheck_EmptyClaimIsNoop(t *testing.T) {
	f := newFixture(t)
	assert.False(t, f.orch.SubmitFactCheck(context.Background(), "  "))
	_, claims := f.backend.calls()
	assert.Equal(t, 0, claims)
	assert.Equal(t, Phase{}, f.orch.Phases().FactCheck)
}

// =============================================================================
// Independence and Overlap
// =============================================================================

func TestPhasesAreIndependent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.backend.query = queryReply{err: &backend.APIError{Operation: backend.OpQuery, StatusCode: 503}}
	f.backend.fact = factReply{resp: supportedResponse()}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); f.orch.SubmitQuery(ctx, "q") }()
	go func() { defer wg.Done(); f.orch.SubmitFactCheck(ctx, "c") }()
	wg.Wait()

	p := f.orch.Phases()
	assert.Equal(t, "Query failed: HTTP 503", p.Query.Err)
	assert.Empty(t, p.FactCheck.Err)
	assert.Equal(t, "SUPPORTED", p.FactCheck.Result)
}

// overlap starts two queries and settles the newer one first.
func overlap(t *testing.T, f *fixture) {
	t.Helper()
	firstGate := f.backend.gate("first")
	secondGate := f.backend.gate("second")

	first, ok := f.orch.BeginQuery("first")
	require.True(t, ok)
	second, ok := f.orch.BeginQuery("second")
	require.True(t, ok)

	firstDone := make(chan struct{})
	secondDone := make(chan struct{})
	go func() { defer close(firstDone); first(context.Background()) }()
	go func() { defer close(secondDone); second(context.Background()) }()

	secondGate <- queryReply{resp: &backend.QueryResponse{Answer: "newest"}}
	<-secondDone
	firstGate <- queryReply{resp: &backend.QueryResponse{Answer: "stale"}}
	<-firstDone
}

func TestOverlap_LastSettlementWinsByDefault(t *testing.T) {
	f := newFixture(t)
	overlap(t, f)

	assert.Equal(t, "stale", f.store.Snapshot().Answer, "the later settlement overwrites the newer submission")
	assert.False(t, f.orch.Phases().Query.Busy)
}

func TestOverlap_StaleGuardKeepsNewestSubmission(t *testing.T) {
	f := newFixture(t, WithStaleGuard())
	overlap(t, f)

	assert.Equal(t, "newest", f.store.Snapshot().Answer)
	assert.Equal(t, "newest", f.orch.Phases().Query.Result)
	assert.False(t, f.orch.Phases().Query.Busy)
	assert.Contains(t, f.exporter.Messages(logging.LevelDebug), "stale settlement dropped")
}

func TestStaleGuard_OlderSettlementDoesNotClearBusy(t *testing.T) {
	f := newFixture(t, WithStaleGuard())
	gate := f.backend.gate("first")

	first, _ := f.orch.BeginQuery("first")
	_, _ = f.orch.BeginQuery("second")

	done := make(chan struct{})
	go func() { defer close(done); first(context.Background()) }()
	gate <- queryReply{resp: &backend.QueryResponse{Answer: "stale"}}
	<-done

	assert.True(t, f.orch.Phases().Query.Busy)
	assert.Empty(t, f.store.Snapshot().Answer)
}

// =============================================================================
// End to End
// =============================================================================

func TestEndToEnd_IndexUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"detail":"index unavailable"}`))
	}))
	defer srv.Close()
	defer srv.CloseClientConnections()

	store := session.NewStore(session.NewMemorySlot(), nil)
	store.Hydrate(context.Background())
	require.NoError(t, store.SetAnswer(context.Background(), "kept"))

	client := backend.New(backend.Config{BaseURL: srv.URL})
	o := New(store, client, nil)
	o.SubmitQuery(context.Background(), "anything")

	assert.Contains(t, o.Phases().Query.Err, "index unavailable")
	assert.Equal(t, "kept", store.Snapshot().Answer)
}

func TestEndToEnd_FactCheckSupported(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"claim":"Water boils at 100C at sea level.","result":"{\"verdict\":\"SUPPORTED\",\"reason\":\"ctx\",\"evidence\":[\"doc X, p.2\"]}"}`))
	}))
	defer srv.Close()
	defer srv.CloseClientConnections()

	store := session.NewStore(session.NewMemorySlot(), nil)
	store.Hydrate(context.Background())
	o := New(store, backend.New(backend.Config{BaseURL: srv.URL}), nil)

	o.SubmitFactCheck(context.Background(), "Water boils at 100C at sea level.")
	got := store.Snapshot().FactResult
	require.NotNil(t, got)
	assert.Equal(t, []string{"doc X, p.2"}, got.Evidence)
	assert.Equal(t, verdict.Positive, verdict.Classify(got.Verdict))
}
