// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import "time"

// Config is the ragdesk.yaml layout.
type Config struct {
	Backend   BackendConfig   `yaml:"backend"`
	Store     StoreConfig     `yaml:"store"`
	Logging   LoggingConfig   `yaml:"logging"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	UI        UIConfig        `yaml:"ui"`
}

// BackendConfig locates the RAG backend. The URL is read once at startup.
type BackendConfig struct {
	BaseURL string        `yaml:"base_url" validate:"required,url"`
	Timeout time.Duration `yaml:"timeout" validate:"gte=0"`
}

// StoreConfig locates the persisted session.
type StoreConfig struct {
	// Path is the badger directory. Ignored when InMemory is set.
	Path     string `yaml:"path" validate:"required_without=InMemory"`
	InMemory bool   `yaml:"in_memory"`
}

// LoggingConfig controls pkg/logging.
type LoggingConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
	Dir   string `yaml:"dir"`
	JSON  bool   `yaml:"json"`
}

// TelemetryConfig enables optional trace and metrics output.
type TelemetryConfig struct {
	// TraceFile receives stdouttrace JSON spans. Empty disables tracing.
	TraceFile string `yaml:"trace_file"`

	// MetricsAddr serves /metrics when non-empty, e.g. "127.0.0.1:9464".
	MetricsAddr string `yaml:"metrics_addr" validate:"omitempty,hostname_port"`
}

// UIConfig tunes the terminal UI.
type UIConfig struct {
	Markdown       bool `yaml:"markdown"`
	WordWrap       int  `yaml:"word_wrap" validate:"gte=20,lte=400"`
	ClaimMinHeight int  `yaml:"claim_min_height" validate:"gte=1"`
	ClaimMaxHeight int  `yaml:"claim_max_height" validate:"gtefield=ClaimMinHeight"`
}

// DefaultConfig returns the configuration written on first run.
func DefaultConfig() Config {
	return Config{
		Backend: BackendConfig{
			BaseURL: "http://localhost:8000",
			Timeout: 0,
		},
		Store: StoreConfig{
			Path: "~/.ragdesk/session",
		},
		Logging: LoggingConfig{
			Level: "info",
			Dir:   "~/.ragdesk/logs",
		},
		UI: UIConfig{
			Markdown:       true,
			WordWrap:       80,
			ClaimMinHeight: 3,
			ClaimMaxHeight: 12,
		},
	}
}
