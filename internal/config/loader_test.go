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

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv unsets the overlay variables for the test and restores them after.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{EnvBackendURL, EnvStorePath, EnvLogLevel, EnvTraceFile} {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func testOptions(t *testing.T) Options {
	dir := t.TempDir()
	return Options{
		Path:    filepath.Join(dir, "nested", "ragdesk.yaml"),
		EnvFile: filepath.Join(dir, "missing.env"),
	}
}

func TestLoad_FirstRunCreatesDefaults(t *testing.T) {
	clearEnv(t)
	opts := testOptions(t)

	res, err := Load(opts)
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Equal(t, DefaultConfig(), res.Config)
	assert.FileExists(t, opts.Path)

	again, err := Load(opts)
	require.NoError(t, err)
	assert.False(t, again.Created)
	assert.Equal(t, res.Config, again.Config)
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	clearEnv(t)
	opts := testOptions(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(opts.Path), 0755))
	require.NoError(t, os.WriteFile(opts.Path, []byte("backend:\n  base_url: http://rag.internal:9000\n  timeout: 45s\n"), 0644))

	res, err := Load(opts)
	require.NoError(t, err)
	assert.Equal(t, "http://rag.internal:9000", res.Config.Backend.BaseURL)
	assert.Equal(t, 45*time.Second, res.Config.Backend.Timeout)
	assert.Equal(t, DefaultConfig().UI, res.Config.UI)
	assert.Equal(t, "info", res.Config.Logging.Level)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	clearEnv(t)
	opts := testOptions(t)
	t.Setenv(EnvBackendURL, "http://override:8000")
	t.Setenv(EnvLogLevel, "DEBUG")
	t.Setenv(EnvStorePath, "/var/lib/ragdesk")

	res, err := Load(opts)
	require.NoError(t, err)
	assert.Equal(t, "http://override:8000", res.Config.Backend.BaseURL)
	assert.Equal(t, "debug", res.Config.Logging.Level)
	assert.Equal(t, "/var/lib/ragdesk", res.Config.Store.Path)
}

func TestLoad_DotEnvFile(t *testing.T) {
	clearEnv(t)
	opts := testOptions(t)
	require.NoError(t, os.WriteFile(opts.EnvFile, []byte("RAGDESK_TRACE_FILE=/tmp/ragdesk-trace.json\n"), 0600))

	res, err := Load(opts)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/ragdesk-trace.json", res.Config.Telemetry.TraceFile)
}

func TestLoad_InvalidYAML(t *testing.T) {
	clearEnv(t)
	opts := testOptions(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(opts.Path), 0755))
	require.NoError(t, os.WriteFile(opts.Path, []byte("backend: [not, a, map"), 0644))

	_, err := Load(opts)
	assert.ErrorContains(t, err, "failed to parse")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"bad url", func(c *Config) { c.Backend.BaseURL = "not a url" }, "BaseURL"},
		{"empty url", func(c *Config) { c.Backend.BaseURL = "" }, "BaseURL"},
		{"negative timeout", func(c *Config) { c.Backend.Timeout = -time.Second }, "Timeout"},
		{"bad level", func(c *Config) { c.Logging.Level = "verbose" }, "Level"},
		{"no store path", func(c *Config) { c.Store.Path = "" }, "Path"},
		{"in memory without path", func(c *Config) { c.Store.Path = ""; c.Store.InMemory = true }, ""},
		{"claim heights inverted", func(c *Config) { c.UI.ClaimMinHeight = 8; c.UI.ClaimMaxHeight = 4 }, "ClaimMaxHeight"},
		{"bad metrics addr", func(c *Config) { c.Telemetry.MetricsAddr = "nohost" }, "MetricsAddr"},
		{"metrics addr", func(c *Config) { c.Telemetry.MetricsAddr = "127.0.0.1:9464" }, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".ragdesk"), ExpandHome("~/.ragdesk"))
	assert.Equal(t, "/abs/path", ExpandHome("/abs/path"))
	assert.Equal(t, "relative", ExpandHome("relative"))
}
