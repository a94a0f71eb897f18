// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads ~/.ragdesk/ragdesk.yaml with an environment overlay.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables that override the file.
const (
	EnvBackendURL = "RAGDESK_BACKEND_URL"
	EnvStorePath  = "RAGDESK_STORE_PATH"
	EnvLogLevel   = "RAGDESK_LOG_LEVEL"
	EnvTraceFile  = "RAGDESK_TRACE_FILE"
)

var validate = validator.New()

// Options controls where Load looks.
type Options struct {
	// Path of the YAML file. Default: DefaultPath().
	Path string

	// EnvFile is a dotenv file loaded before the overlay. Variables already
	// set in the process environment win. Missing files are ignored.
	// Default: ".env" in the working directory.
	EnvFile string
}

// Result is a loaded configuration.
type Result struct {
	Config Config
	Path   string

	// Created is true when the file did not exist and defaults were written.
	Created bool
}

// DefaultPath returns ~/.ragdesk/ragdesk.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not find the user's home directory: %w", err)
	}
	return filepath.Join(home, ".ragdesk", "ragdesk.yaml"), nil
}

// Load reads, overlays and validates the configuration.
//
// # Description
//
// On first run the file is created from DefaultConfig. Fields missing from
// an existing file keep their defaults. The dotenv file and then the process
// environment override the file. The merged result is validated.
//
// # Inputs
//
//   - opts: See Options.
//
// # Outputs
//
//   - *Result: The merged configuration and where it came from.
//   - error: Unreadable or unparsable file, or a validation failure.
func Load(opts Options) (*Result, error) {
	path := opts.Path
	if path == "" {
		var err error
		if path, err = DefaultPath(); err != nil {
			return nil, err
		}
	}
	path = ExpandHome(path)

	res := &Result{Config: DefaultConfig(), Path: path}

	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		if err := createDefault(path); err != nil {
			return nil, err
		}
		res.Created = true
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read the config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &res.Config); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
	}
	applyEnv(&res.Config)

	if err := res.Config.Validate(); err != nil {
		return nil, err
	}
	return res, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func applyEnv(c *Config) {
	if v := os.Getenv(EnvBackendURL); v != "" {
		c.Backend.BaseURL = v
	}
	if v := os.Getenv(EnvStorePath); v != "" {
		c.Store.Path = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv(EnvTraceFile); v != "" {
		c.Telemetry.TraceFile = v
	}
}

func createDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create the config directory: %w", err)
	}
	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
