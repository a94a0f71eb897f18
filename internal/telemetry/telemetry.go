// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package telemetry sets up tracing and metrics for a ragdesk process.
//
// Traces go to a JSON file through the stdout exporter, so the terminal UI
// is never written to. Metrics live in a private Prometheus registry that
// can be served on /metrics while the process runs.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/AleutianAI/ragdesk/internal/config"
)

// Config controls telemetry behavior.
type Config struct {
	// ServiceName identifies this process in traces.
	ServiceName string

	// ServiceVersion is the version string recorded on spans.
	ServiceVersion string

	// TraceFile receives one JSON span per line. Empty disables tracing.
	TraceFile string

	// MetricsAddr serves /metrics when non-empty.
	MetricsAddr string
}

// Telemetry holds the providers handed to other components.
type Telemetry struct {
	// TracerProvider is a no-op provider when tracing is disabled.
	TracerProvider trace.TracerProvider

	// Registry receives every metric the process registers.
	Registry *prometheus.Registry

	// MetricsURL is the bound /metrics address, empty when not serving.
	MetricsURL string

	shutdownFuncs []func(context.Context) error
}

// Init builds the telemetry stack.
//
// # Description
//
// Opens TraceFile (append mode) and installs a batching TracerProvider on
// it, creates a registry with Go runtime and process collectors, and when
// MetricsAddr is set binds a listener and serves promhttp on /metrics.
//
// # Outputs
//
//   - *Telemetry: Always call Shutdown.
//   - error: The trace file or listener could not be opened.
//
// # Examples
//
//	tel, err := telemetry.Init(ctx, telemetry.Config{TraceFile: "/tmp/t.json"})
//	if err != nil {
//	    return fmt.Errorf("init telemetry: %w", err)
//	}
//	defer tel.Shutdown(context.Background())
func Init(ctx context.Context, cfg Config) (*Telemetry, error) {
	t := &Telemetry{
		TracerProvider: noop.NewTracerProvider(),
		Registry:       prometheus.NewRegistry(),
	}
	t.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	if cfg.TraceFile != "" {
		tp, closeFile, err := initTracer(cfg)
		if err != nil {
			return nil, fmt.Errorf("init tracer: %w", err)
		}
		t.TracerProvider = tp
		t.shutdownFuncs = append(t.shutdownFuncs, tp.Shutdown, closeFile)
	}

	if cfg.MetricsAddr != "" {
		if err := t.serveMetrics(cfg.MetricsAddr); err != nil {
			_ = t.Shutdown(ctx)
			return nil, fmt.Errorf("serve metrics: %w", err)
		}
	}
	return t, nil
}

// Shutdown flushes spans, stops the metrics server and closes the trace
// file, in that order.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var errs []error
	for _, fn := range t.shutdownFuncs {
		if err := fn(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	t.shutdownFuncs = nil
	return errors.Join(errs...)
}

func initTracer(cfg Config) (*sdktrace.TracerProvider, func(context.Context) error, error) {
	path := config.ExpandHome(cfg.TraceFile)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
	if err != nil {
		return nil, nil, fmt.Errorf("open trace file: %w", err)
	}

	exporter, err := stdouttrace.New(stdouttrace.WithWriter(f))
	if err != nil {
		_ = f.Close()
		return nil, nil, fmt.Errorf("create exporter: %w", err)
	}

	name := cfg.ServiceName
	if name == "" {
		name = "ragdesk"
	}
	res := resource.NewWithAttributes(
		"",
		attribute.String("service.name", name),
		attribute.String("service.version", cfg.ServiceVersion),
	)

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	return tp, func(context.Context) error { return f.Close() }, nil
}

func (t *Telemetry) serveMetrics(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(t.Registry, promhttp.HandlerOpts{Registry: t.Registry}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = srv.Serve(ln)
	}()

	t.MetricsURL = "http://" + ln.Addr().String() + "/metrics"
	// prepend so the server stops before the tracer flushes
	t.shutdownFuncs = append([]func(context.Context) error{func(ctx context.Context) error {
		err := srv.Shutdown(ctx)
		<-done
		return err
	}}, t.shutdownFuncs...)
	return nil
}
