// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package backend is the typed HTTP contract of the RAG backend.
//
// # Architecture
//
//	Orchestrator / CLI → Client → HTTPClient interface → http.Client
//	                        ↓
//	           status + detail check → envelope decode → (fact check) inner decode
//
// Every call carries an X-Request-ID, is wrapped in an OpenTelemetry span,
// and is counted in Prometheus by operation and outcome. Failures come back
// as *TransportError, *APIError or *DecodeError; Message turns any of them
// into user-facing text.
//
// # Endpoints
//
//	POST /query                  {question}              → {answer}
//	POST /fact_check             {claim, namespace}      → {claim, result}
//	GET  /                                                → {status, message}
//	POST /upload-pdf             multipart "file"        → {status, chunks}
//	GET  /debug/pinecone-stats                            → {message} | {error}
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/ragdesk/pkg/logging"
)

// DefaultBaseURL is the backend origin used when nothing else is configured.
const DefaultBaseURL = "http://localhost:8000"

// Operation names used in logs, metrics and spans.
const (
	OpQuery     = "query"
	OpFactCheck = "fact_check"
	OpHealth    = "health"
	OpUpload    = "upload_pdf"
	OpStats     = "index_stats"
)

const (
	pathQuery     = "/query"
	pathFactCheck = "/fact_check"
	pathHealth    = "/"
	pathUpload    = "/upload-pdf"
	pathStats     = "/debug/pinecone-stats"

	headerRequestID = "X-Request-ID"
	tracerName      = "github.com/AleutianAI/ragdesk/internal/backend"
)

// =============================================================================
// HTTP Transport
// =============================================================================

// HTTPClient is the transport the Client sends through.
//
// # Description
//
// The production implementation wraps *http.Client. Tests inject mocks that
// capture the URL and body and return canned *http.Response values.
type HTTPClient interface {
	Post(ctx context.Context, url, contentType string, body io.Reader, headers map[string]string) (*http.Response, error)
	Get(ctx context.Context, url string, headers map[string]string) (*http.Response, error)
}

type defaultHTTPClient struct {
	client *http.Client
}

func (c *defaultHTTPClient) Post(ctx context.Context, url, contentType string, body io.Reader, headers map[string]string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return c.client.Do(req)
}

func (c *defaultHTTPClient) Get(ctx context.Context, url string, headers map[string]string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return c.client.Do(req)
}

// =============================================================================
// Client
// =============================================================================

// Config configures a Client. Every field is optional.
type Config struct {
	// BaseURL is the backend origin without trailing slash.
	// Default: DefaultBaseURL.
	BaseURL string

	// Timeout bounds each HTTP call. Zero leaves http.Client's default (none).
	Timeout time.Duration

	// Logger receives request lifecycle logs. Default: discard.
	Logger *logging.Logger

	// Registerer receives the request metrics. Nil leaves them unregistered.
	Registerer prometheus.Registerer

	// TracerProvider creates the client's tracer. Default: otel global.
	TracerProvider trace.TracerProvider
}

// Client calls the backend endpoints.
//
// # Thread Safety
//
// Safe for concurrent use; it holds no per-call state.
type Client struct {
	http    HTTPClient
	baseURL string
	logger  *logging.Logger
	metrics *Metrics
	tracer  trace.Tracer
}

// New creates a Client with a production HTTP transport.
func New(cfg Config) *Client {
	return NewWithHTTPClient(&defaultHTTPClient{client: &http.Client{Timeout: cfg.Timeout}}, cfg)
}

// NewWithHTTPClient creates a Client on an injected transport.
//
// # Examples
//
//	mock := &mockHTTPClient{response: jsonResponse(200, `{"answer":"42"}`)}
//	client := backend.NewWithHTTPClient(mock, backend.Config{})
func NewWithHTTPClient(httpClient HTTPClient, cfg Config) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	tp := cfg.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &Client{
		http:    httpClient,
		baseURL: baseURL,
		logger:  logger.With("component", "backend"),
		metrics: NewMetrics(cfg.Registerer),
		tracer:  tp.Tracer(tracerName),
	}
}

// BaseURL returns the backend origin this client is bound to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Query asks a question against the document corpus.
//
// # Description
//
// POSTs {question} to /query. A 2xx JSON body without a `detail` field is a
// success; its `answer` may be absent, in which case Answer is empty.
//
// # Inputs
//
//   - ctx: Cancels the HTTP call.
//   - question: Must be non-empty.
//
// # Outputs
//
//   - *QueryResponse: The answer on success.
//   - error: *TransportError, *APIError, *DecodeError, or a validation error.
func (c *Client) Query(ctx context.Context, question string) (resp *QueryResponse, err error) {
	ctx, done := c.begin(ctx, OpQuery)
	var rep reply
	defer func() { done(rep, err) }()

	req := QueryRequest{Question: question}
	if err = req.Validate(); err != nil {
		return nil, fmt.Errorf("%s: invalid request: %w", OpQuery, err)
	}
	rep, err = c.postJSON(ctx, OpQuery, pathQuery, req)
	if err != nil {
		return nil, err
	}
	env, err := checkReply(OpQuery, rep)
	if err != nil {
		return nil, err
	}

	var answer string
	if raw, ok := env["answer"]; ok && !isNull(raw) {
		if jerr := json.Unmarshal(raw, &answer); jerr != nil {
			err = &DecodeError{Operation: OpQuery, Stage: StageOuter, Err: fmt.Errorf("answer field: %w", jerr)}
			return nil, err
		}
	}
	return &QueryResponse{Answer: answer, RequestID: rep.requestID}, nil
}

// FactCheck verifies a claim against the "documents" namespace.
//
// # Description
//
// POSTs {claim, namespace} to /fact_check, checks status and `detail`, then
// runs the two-pass decode of DecodeFactCheck. A failure in either pass is
// returned as *DecodeError with the failing stage.
//
// # Inputs
//
//   - ctx: Cancels the HTTP call.
//   - claim: Must be non-empty.
//
// # Outputs
//
//   - *FactCheckResponse: The decoded verdict on success.
//   - error: *TransportError, *APIError, *DecodeError, or a validation error.
func (c *Client) FactCheck(ctx context.Context, claim string) (resp *FactCheckResponse, err error) {
	ctx, done := c.begin(ctx, OpFactCheck)
	var rep reply
	defer func() { done(rep, err) }()

	req := FactCheckRequest{Claim: claim, Namespace: FactCheckNamespace}
	if err = req.Validate(); err != nil {
		return nil, fmt.Errorf("%s: invalid request: %w", OpFactCheck, err)
	}
	rep, err = c.postJSON(ctx, OpFactCheck, pathFactCheck, req)
	if err != nil {
		return nil, err
	}
	env, err := checkReply(OpFactCheck, rep)
	if err != nil {
		return nil, err
	}

	decoded := decodeResult(env)
	if !decoded.OK() {
		err = &DecodeError{Operation: OpFactCheck, Stage: decoded.Stage, Err: decoded.Err}
		return nil, err
	}
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("ragdesk.verdict", decoded.Result.Verdict))
	return &FactCheckResponse{Result: decoded.Result, RequestID: rep.requestID}, nil
}

// Health calls GET / and returns the backend's status line.
func (c *Client) Health(ctx context.Context) (resp *HealthResponse, err error) {
	ctx, done := c.begin(ctx, OpHealth)
	var rep reply
	defer func() { done(rep, err) }()

	rep, err = c.get(ctx, OpHealth, pathHealth)
	if err != nil {
		return nil, err
	}
	if _, err = checkReply(OpHealth, rep); err != nil {
		return nil, err
	}
	var out HealthResponse
	if jerr := json.Unmarshal(rep.body, &out); jerr != nil {
		err = &DecodeError{Operation: OpHealth, Stage: StageOuter, Err: jerr}
		return nil, err
	}
	return &out, nil
}

// IndexStats calls the backend's vector index debug endpoint. The backend
// reports index failures as 200 with an `error` field; those come back as
// *APIError.
func (c *Client) IndexStats(ctx context.Context) (resp *StatsResponse, err error) {
	ctx, done := c.begin(ctx, OpStats)
	var rep reply
	defer func() { done(rep, err) }()

	rep, err = c.get(ctx, OpStats, pathStats)
	if err != nil {
		return nil, err
	}
	if _, err = checkReply(OpStats, rep); err != nil {
		return nil, err
	}
	var out StatsResponse
	if jerr := json.Unmarshal(rep.body, &out); jerr != nil {
		err = &DecodeError{Operation: OpStats, Stage: StageOuter, Err: jerr}
		return nil, err
	}
	if out.Error != "" {
		err = &APIError{Operation: OpStats, StatusCode: rep.status, Detail: out.Error, Body: trimBody(rep.body)}
		return nil, err
	}
	return &out, nil
}

// UploadPDF sends a PDF for ingestion.
//
// # Description
//
// Streams r as the multipart field "file" to /upload-pdf. The backend
// rejects anything whose name does not end in .pdf with a 400; this client
// checks the extension first to save the round trip.
//
// # Inputs
//
//   - ctx: Cancels the upload.
//   - filename: Name sent in the multipart header; only its base is used.
//   - r: PDF contents.
//
// # Outputs
//
//   - *UploadResponse: Status and number of indexed chunks.
//   - error: Validation, transport, API or decode error.
func (c *Client) UploadPDF(ctx context.Context, filename string, r io.Reader) (resp *UploadResponse, err error) {
	ctx, done := c.begin(ctx, OpUpload)
	var rep reply
	defer func() { done(rep, err) }()

	name := filepath.Base(filename)
	if !strings.EqualFold(filepath.Ext(name), ".pdf") {
		err = fmt.Errorf("%s: only PDF files are accepted, got %q", OpUpload, name)
		return nil, err
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		return nil, fmt.Errorf("%s: build form: %w", OpUpload, err)
	}
	if _, err = io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("%s: read %s: %w", OpUpload, name, err)
	}
	if err = mw.Close(); err != nil {
		return nil, fmt.Errorf("%s: build form: %w", OpUpload, err)
	}

	rep, err = c.post(ctx, OpUpload, pathUpload, mw.FormDataContentType(), buf.Bytes())
	if err != nil {
		return nil, err
	}
	if _, err = checkReply(OpUpload, rep); err != nil {
		return nil, err
	}
	var out UploadResponse
	if jerr := json.Unmarshal(rep.body, &out); jerr != nil {
		err = &DecodeError{Operation: OpUpload, Stage: StageOuter, Err: jerr}
		return nil, err
	}
	return &out, nil
}

// =============================================================================
// Round Trip
// =============================================================================

// reply is a fully read HTTP response.
type reply struct {
	status    int
	body      []byte
	requestID string
}

func (c *Client) postJSON(ctx context.Context, operation, path string, payload any) (reply, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return reply{}, fmt.Errorf("%s: marshal request: %w", operation, err)
	}
	return c.post(ctx, operation, path, "application/json", body)
}

func (c *Client) post(ctx context.Context, operation, path, contentType string, body []byte) (reply, error) {
	requestID := uuid.NewString()
	url := c.baseURL + path

	c.logger.Debug("backend request",
		"operation", operation,
		"request_id", requestID,
		"url", url,
		"body_bytes", len(body),
	)
	resp, err := c.http.Post(ctx, url, contentType, bytes.NewReader(body), c.headers(requestID))
	return c.read(operation, requestID, resp, err)
}

func (c *Client) get(ctx context.Context, operation, path string) (reply, error) {
	requestID := uuid.NewString()
	url := c.baseURL + path

	c.logger.Debug("backend request", "operation", operation, "request_id", requestID, "url", url)
	resp, err := c.http.Get(ctx, url, c.headers(requestID))
	return c.read(operation, requestID, resp, err)
}

func (c *Client) headers(requestID string) map[string]string {
	return map[string]string{
		headerRequestID: requestID,
		"Accept":        "application/json",
	}
}

func (c *Client) read(operation, requestID string, resp *http.Response, err error) (reply, error) {
	rep := reply{requestID: requestID}
	if err != nil {
		return rep, &TransportError{Operation: operation, Err: err}
	}
	defer func(body io.ReadCloser) {
		if cerr := body.Close(); cerr != nil {
			c.logger.Warn("failed to close response body", "operation", operation, "error", cerr.Error())
		}
	}(resp.Body)

	rep.status = resp.StatusCode
	rep.body, err = io.ReadAll(resp.Body)
	if err != nil {
		return rep, &TransportError{Operation: operation, Err: fmt.Errorf("read response body: %w", err)}
	}
	return rep, nil
}

// checkReply turns non-2xx statuses and `detail` bodies into *APIError and
// returns the decoded envelope otherwise.
func checkReply(operation string, rep reply) (envelope, error) {
	env, envErr := parseEnvelope(rep.body)

	if rep.status < 200 || rep.status > 299 {
		apiErr := &APIError{Operation: operation, StatusCode: rep.status, Body: trimBody(rep.body)}
		if envErr == nil {
			apiErr.Detail, _ = env.detail()
		}
		return nil, apiErr
	}
	if envErr != nil {
		return nil, &DecodeError{Operation: operation, Stage: StageOuter, Err: envErr}
	}
	if detail, ok := env.detail(); ok {
		return nil, &APIError{Operation: operation, StatusCode: rep.status, Detail: detail, Body: trimBody(rep.body)}
	}
	return env, nil
}

func trimBody(body []byte) string {
	return strings.TrimSpace(string(body))
}

// =============================================================================
// Instrumentation
// =============================================================================

// begin opens a span and returns the function that closes it, logs the
// settlement, and records metrics.
func (c *Client) begin(ctx context.Context, operation string) (context.Context, func(reply, error)) {
	started := time.Now()
	ctx, span := c.tracer.Start(ctx, "backend."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("ragdesk.operation", operation)),
	)

	return ctx, func(rep reply, err error) {
		defer span.End()
		c.metrics.observe(operation, started, err)

		if rep.requestID != "" {
			span.SetAttributes(attribute.String("ragdesk.request_id", rep.requestID))
		}
		if rep.status != 0 {
			span.SetAttributes(attribute.Int("http.response.status_code", rep.status))
		}

		elapsed := time.Since(started)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, outcomeOf(err))
			level := c.logger.Warn
			var trErr *TransportError
			if errors.As(err, &trErr) {
				level = c.logger.Error
			}
			level("backend request failed",
				"operation", operation,
				"request_id", rep.requestID,
				"status_code", rep.status,
				"outcome", outcomeOf(err),
				"duration_ms", elapsed.Milliseconds(),
				"error", err.Error(),
			)
			return
		}
		span.SetStatus(codes.Ok, "")
		c.logger.Info("backend request settled",
			"operation", operation,
			"request_id", rep.requestID,
			"status_code", rep.status,
			"duration_ms", elapsed.Milliseconds(),
		)
	}
}
