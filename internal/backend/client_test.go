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
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/AleutianAI/ragdesk/pkg/logging"
)

// =============================================================================
// Mock HTTP Client
// =============================================================================

// mockHTTPClient implements HTTPClient for testing.
type mockHTTPClient struct {
	// PostFunc allows customizing POST behavior per test
	PostFunc func(ctx context.Context, url, contentType string, body []byte) (*http.Response, error)

	// Simple response/error for basic tests
	response *http.Response
	err      error

	// Capture request details for assertions
	posts           int
	gets            int
	lastURL         string
	lastBody        string
	lastContentType string
	lastHeaders     map[string]string
}

func (m *mockHTTPClient) Post(ctx context.Context, url, contentType string, body io.Reader, headers map[string]string) (*http.Response, error) {
	m.posts++
	m.lastURL = url
	m.lastContentType = contentType
	m.lastHeaders = headers
	var bodyBytes []byte
	if body != nil {
		bodyBytes, _ = io.ReadAll(body)
		m.lastBody = string(bodyBytes)
	}
	if m.PostFunc != nil {
		return m.PostFunc(ctx, url, contentType, bodyBytes)
	}
	return m.response, m.err
}

func (m *mockHTTPClient) Get(_ context.Context, url string, headers map[string]string) (*http.Response, error) {
	m.gets++
	m.lastURL = url
	m.lastHeaders = headers
	return m.response, m.err
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("connection reset") }
func (failingReader) Close() error             { return nil }

func newTestClient(mock *mockHTTPClient) *Client {
	return NewWithHTTPClient(mock, Config{BaseURL: "http://rag.test:8000/"})
}

// =============================================================================
// Construction
// =============================================================================

func TestNewWithHTTPClient_Defaults(t *testing.T) {
	c := NewWithHTTPClient(&mockHTTPClient{}, Config{})
	assert.Equal(t, DefaultBaseURL, c.BaseURL())
}

func TestNewWithHTTPClient_TrimsTrailingSlash(t *testing.T) {
	c := newTestClient(&mockHTTPClient{})
	assert.Equal(t, "http://rag.test:8000", c.BaseURL())
}

// =============================================================================
// Query
// =============================================================================

func TestQuery_Success(t *testing.T) {
	mock := &mockHTTPClient{response: jsonResponse(200, `{"answer":"**42**"}`)}
	c := newTestClient(mock)

	resp, err := c.Query(context.Background(), "What is the answer?")
	require.NoError(t, err)
	assert.Equal(t, "**42**", resp.Answer)

	assert.Equal(t, "http://rag.test:8000/query", mock.lastURL)
	assert.Equal(t, "application/json", mock.lastContentType)
	assert.JSONEq(t, `{"question":"What is the answer?"}`, mock.lastBody)

	_, perr := uuid.Parse(mock.lastHeaders[headerRequestID])
	assert.NoError(t, perr, "request id should be a uuid")
	assert.Equal(t, mock.lastHeaders[headerRequestID], resp.RequestID)
}

func TestQuery_AbsentOrNullAnswerIsEmpty(t *testing.T) {
	for _, body := range []string{`{}`, `{"answer":null}`} {
		c := newTestClient(&mockHTTPClient{response: jsonResponse(200, body)})
		resp, err := c.Query(context.Background(), "q")
		require.NoError(t, err, body)
		assert.Equal(t, "", resp.Answer, body)
	}
}

func TestQuery_Errors(t *testing.T) {
	tests := []struct {
		name    string
		resp    *http.Response
		err     error
		wantMsg string
		check   func(t *testing.T, err error)
	}{
		{
			name:    "500 with detail",
			resp:    jsonResponse(500, `{"detail":"Index unavailable"}`),
			wantMsg: "Index unavailable",
			check: func(t *testing.T, err error) {
				var apiErr *APIError
				require.ErrorAs(t, err, &apiErr)
				assert.Equal(t, 500, apiErr.StatusCode)
			},
		},
		{
			name:    "200 with detail",
			resp:    jsonResponse(200, `{"detail":"quota exceeded"}`),
			wantMsg: "quota exceeded",
			check: func(t *testing.T, err error) {
				var apiErr *APIError
				require.ErrorAs(t, err, &apiErr)
				assert.Equal(t, 200, apiErr.StatusCode)
			},
		},
		{
			name:    "502 html body",
			resp:    jsonResponse(502, "  <h1>Bad Gateway</h1>\n"),
			wantMsg: "<h1>Bad Gateway</h1>",
		},
		{
			name: "200 non json",
			resp: jsonResponse(200, `Internal Server Error`),
			check: func(t *testing.T, err error) {
				var decErr *DecodeError
				require.ErrorAs(t, err, &decErr)
				assert.Equal(t, StageOuter, decErr.Stage)
			},
		},
		{
			name:    "transport",
			err:     errors.New("dial tcp: connection refused"),
			wantMsg: "dial tcp: connection refused",
			check: func(t *testing.T, err error) {
				var trErr *TransportError
				require.ErrorAs(t, err, &trErr)
			},
		},
		{
			name: "body read failure",
			resp: &http.Response{StatusCode: 200, Body: failingReader{}},
			check: func(t *testing.T, err error) {
				var trErr *TransportError
				require.ErrorAs(t, err, &trErr)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(&mockHTTPClient{response: tt.resp, err: tt.err})
			resp, err := c.Query(context.Background(), "q")
			require.Error(t, err)
			assert.Nil(t, resp)
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, Message(err))
			}
			if tt.check != nil {
				tt.check(t, err)
			}
		})
	}
}

func TestQuery_EmptyQuestionNeverSent(t *testing.T) {
	mock := &mockHTTPClient{response: jsonResponse(200, `{"answer":"x"}`)}
	c := newTestClient(mock)

	_, err := c.Query(context.Background(), "")
	require.Error(t, err)
	assert.Equal(t, 0, mock.posts)
}

// =============================================================================
// FactCheck
// =============================================================================

func TestFactCheck_Success(t *testing.T) {
	inner, err := json.Marshal(FactCheckResult{Verdict: "SUPPORTED", Reason: "ctx", Evidence: []string{"e1"}})
	require.NoError(t, err)
	outer, err := json.Marshal(map[string]string{"claim": "Water boils at 100C", "result": string(inner)})
	require.NoError(t, err)

	mock := &mockHTTPClient{response: jsonResponse(200, string(outer))}
	c := newTestClient(mock)

	resp, err := c.FactCheck(context.Background(), "Water boils at 100C")
	require.NoError(t, err)
	assert.Equal(t, FactCheckResult{Verdict: "SUPPORTED", Reason: "ctx", Evidence: []string{"e1"}}, resp.Result)

	assert.Equal(t, "http://rag.test:8000/fact_check", mock.lastURL)
	assert.JSONEq(t, `{"claim":"Water boils at 100C","namespace":"documents"}`, mock.lastBody)
}

func TestFactCheck_DecodeStages(t *testing.T) {
	tests := []struct {
		body  string
		stage DecodeStage
	}{
		{`not json`, StageOuter},
		{`{"claim":"x"}`, StageResultMissing},
		{`{"result":"not json"}`, StageInner},
	}
	for _, tt := range tests {
		c := newTestClient(&mockHTTPClient{response: jsonResponse(200, tt.body)})
		_, err := c.FactCheck(context.Background(), "claim")

		var decErr *DecodeError
		require.ErrorAs(t, err, &decErr, tt.body)
		assert.Equal(t, tt.stage, decErr.Stage, tt.body)
		assert.Equal(t, OpFactCheck, decErr.Operation)
	}
}

func TestFactCheck_DetailWins(t *testing.T) {
	c := newTestClient(&mockHTTPClient{response: jsonResponse(422, `{"detail":[{"msg":"field required"}]}`)})
	_, err := c.FactCheck(context.Background(), "claim")
	assert.Equal(t, `[{"msg":"field required"}]`, Message(err))
}

// =============================================================================
// Supplementary Endpoints
// =============================================================================

func TestHealth(t *testing.T) {
	mock := &mockHTTPClient{response: jsonResponse(200, `{"status":"ok","message":"RAG backend is running"}`)}
	c := newTestClient(mock)

	resp, err := c.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "http://rag.test:8000/", mock.lastURL)
	assert.Equal(t, 1, mock.gets)
}

func TestIndexStats(t *testing.T) {
	c := newTestClient(&mockHTTPClient{response: jsonResponse(200, `{"message":"{'total_vector_count': 12}"}`)})
	resp, err := c.IndexStats(context.Background())
	require.NoError(t, err)
	assert.Contains(t, resp.Message, "total_vector_count")

	c = newTestClient(&mockHTTPClient{response: jsonResponse(200, `{"error":"index not found"}`)})
	_, err = c.IndexStats(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "index not found", Message(err))
}

func TestUploadPDF_RejectsNonPDF(t *testing.T) {
	mock := &mockHTTPClient{}
	c := newTestClient(mock)

	_, err := c.UploadPDF(context.Background(), "notes.txt", strings.NewReader("x"))
	require.Error(t, err)
	assert.Equal(t, 0, mock.posts)
}

func TestUploadPDF_MultipartOverHTTP(t *testing.T) {
	var gotName, gotContent, gotRequestID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/upload-pdf" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		gotRequestID = r.Header.Get(headerRequestID)
		file, header, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		gotName, gotContent = header.Filename, string(data)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"success","chunks":7}`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	resp, err := c.UploadPDF(context.Background(), "/tmp/docs/Report.PDF", strings.NewReader("%PDF-1.4 body"))
	require.NoError(t, err)
	assert.Equal(t, UploadResponse{Status: "success", Chunks: 7}, *resp)
	assert.Equal(t, "Report.PDF", gotName)
	assert.Equal(t, "%PDF-1.4 body", gotContent)
	assert.NotEmpty(t, gotRequestID)
}

func TestQuery_OverHTTPServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"detail":"Index unavailable"}`))
	}))
	defer srv.Close()

	_, err := New(Config{BaseURL: srv.URL}).Query(context.Background(), "q")
	assert.Equal(t, "Index unavailable", Message(err))
}

func TestLongInputsAreSent(t *testing.T) {
	var hits int
	var gotQuestion, gotClaim string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case pathQuery:
			gotQuestion = body["question"]
			_, _ = w.Write([]byte(`{"answer":"ok"}`))
		case pathFactCheck:
			gotClaim = body["claim"]
			_, _ = w.Write([]byte(`{"result":"{\"verdict\":\"SUPPORTED\",\"reason\":\"r\"}"}`))
		}
	}))
	defer srv.Close()
	client := New(Config{BaseURL: srv.URL})
	long := strings.Repeat("é", 40000)

	resp, err := client.Query(context.Background(), long)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Answer)
	assert.Equal(t, long, gotQuestion)

	_, err = client.FactCheck(context.Background(), long)
	require.NoError(t, err)
	assert.Equal(t, long, gotClaim)
	assert.Equal(t, 2, hits)
}

func TestQuery_CancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(Config{BaseURL: srv.URL}).Query(ctx, "q")

	var trErr *TransportError
	require.ErrorAs(t, err, &trErr)
	assert.ErrorIs(t, err, context.Canceled)
}

// =============================================================================
// Instrumentation
// =============================================================================

func TestInstrumentation_MetricsSpansAndLogs(t *testing.T) {
	reg := prometheus.NewRegistry()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	exporter := logging.NewBufferedExporter()
	logger := logging.New(logging.Config{Quiet: true, Level: logging.LevelDebug, Exporter: exporter})

	mock := &mockHTTPClient{}
	c := NewWithHTTPClient(mock, Config{Registerer: reg, TracerProvider: tp, Logger: logger})

	mock.response = jsonResponse(200, `{"answer":"a"}`)
	_, err := c.Query(context.Background(), "q")
	require.NoError(t, err)

	mock.response = jsonResponse(500, `{"detail":"down"}`)
	_, err = c.Query(context.Background(), "q")
	require.Error(t, err)

	_, err = c.Query(context.Background(), "")
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.metrics.requests.WithLabelValues(OpQuery, outcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.metrics.requests.WithLabelValues(OpQuery, outcomeAPI)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.metrics.requests.WithLabelValues(OpQuery, outcomeInvalid)))
	assert.Equal(t, 1, testutil.CollectAndCount(c.metrics.duration))

	spans := recorder.Ended()
	require.Len(t, spans, 3)
	assert.Equal(t, "backend.query", spans[0].Name())
	assert.Equal(t, codes.Ok, spans[0].Status().Code)
	assert.Equal(t, codes.Error, spans[1].Status().Code)

	assert.Contains(t, exporter.Messages(logging.LevelInfo), "backend request settled")
	assert.Contains(t, exporter.Messages(logging.LevelWarn), "backend request failed")
}

func TestNewMetrics_NilRegistererIsSafe(t *testing.T) {
	m := NewMetrics(nil)
	m.observe(OpHealth, time.Now(), nil)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues(OpHealth, outcomeOK)))
}
