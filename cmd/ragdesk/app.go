// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/AleutianAI/ragdesk/internal/backend"
	"github.com/AleutianAI/ragdesk/internal/config"
	"github.com/AleutianAI/ragdesk/internal/orchestrator"
	"github.com/AleutianAI/ragdesk/internal/session"
	"github.com/AleutianAI/ragdesk/internal/storage/badger"
	"github.com/AleutianAI/ragdesk/internal/telemetry"
	"github.com/AleutianAI/ragdesk/pkg/logging"
	"github.com/AleutianAI/ragdesk/pkg/ux"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	configPath  string
	envFile     string
	backendURL  string
	logLevel    string
	traceFile   string
	metricsAddr string
	personality string
	ephemeral   bool
	verbose     bool
	staleGuard  bool
}

// app is the wired process: config, logging, telemetry, the session store
// and the backend client.
type app struct {
	cfg     config.Config
	logger  *logging.Logger
	printer *ux.Printer
	tel     *telemetry.Telemetry
	db      *badger.DB
	store   *session.Store
	client  *backend.Client
	orch    *orchestrator.Orchestrator
}

// appOptions carries what openApp needs beyond the flags.
type appOptions struct {
	flags  *globalFlags
	stdout io.Writer
	stderr io.Writer

	// interactive keeps log output off the terminal.
	interactive bool

	// personality is used when flags.personality is empty.
	personality ux.PersonalityLevel
}

// openApp loads configuration and wires every component.
//
// # Description
//
// Flags override the config file, which is itself overlaid by the
// environment. The session store opens the badger directory from the
// config; if that fails (for example another ragdesk holds its lock) the
// session falls back to memory for this run and a warning is printed.
//
// # Outputs
//
//   - *app: Call close when done.
//   - error: Config, logging or telemetry setup failed.
func openApp(ctx context.Context, opts appOptions) (*app, error) {
	f := opts.flags
	res, err := config.Load(config.Options{Path: f.configPath, EnvFile: f.envFile})
	if err != nil {
		return nil, err
	}
	cfg := res.Config
	applyFlags(&cfg, f)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	level := opts.personality
	if f.personality != "" {
		level = ux.ParsePersonalityLevel(f.personality)
	}
	printer := ux.NewPrinter(opts.stdout, opts.stderr, level)
	if res.Created {
		printer.Muted(fmt.Sprintf("First run detected, created the config at %s", res.Path))
	}

	logLevel, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	logger := logging.New(logging.Config{
		Level:   logLevel,
		LogDir:  cfg.Logging.Dir,
		Service: "ragdesk",
		JSON:    cfg.Logging.JSON,
		Quiet:   opts.interactive || !f.verbose,
		Output:  opts.stderr,
	})

	tel, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    "ragdesk",
		ServiceVersion: version,
		TraceFile:      cfg.Telemetry.TraceFile,
		MetricsAddr:    cfg.Telemetry.MetricsAddr,
	})
	if err != nil {
		_ = logger.Close()
		return nil, err
	}
	if tel.MetricsURL != "" {
		logger.Info("serving metrics", "url", tel.MetricsURL)
	}

	a := &app{cfg: cfg, logger: logger, printer: printer, tel: tel}

	var slot session.Slot
	bcfg := badger.InMemoryConfig()
	if !cfg.Store.InMemory {
		bcfg = badger.DefaultConfig(config.ExpandHome(cfg.Store.Path))
	}
	bcfg.Logger = logger.Slog()
	db, err := badger.Open(bcfg)
	if err != nil {
		logger.Warn("session store unavailable, using memory", "path", bcfg.Path, "error", err.Error())
		printer.Warning("Session will not be saved: " + err.Error())
		slot = session.NewMemorySlot()
	} else {
		a.db = db
		slot = badger.NewSlotStore(db)
	}
	a.store = session.NewStore(slot, logger)
	a.store.Hydrate(ctx)

	a.client = backend.New(backend.Config{
		BaseURL:        cfg.Backend.BaseURL,
		Timeout:        cfg.Backend.Timeout,
		Logger:         logger,
		Registerer:     tel.Registry,
		TracerProvider: tel.TracerProvider,
	})

	var orchOpts []orchestrator.Option
	if f.staleGuard {
		orchOpts = append(orchOpts, orchestrator.WithStaleGuard())
	}
	a.orch = orchestrator.New(a.store, a.client, logger, orchOpts...)

	storePath, inMemory := "", true
	if a.db != nil {
		storePath, inMemory = a.db.Path(), a.db.InMemory()
	}
	logger.Debug("ragdesk ready",
		"backend", a.client.BaseURL(),
		"store_path", storePath,
		"in_memory", inMemory,
	)
	return a, nil
}

func applyFlags(cfg *config.Config, f *globalFlags) {
	if f.backendURL != "" {
		cfg.Backend.BaseURL = f.backendURL
	}
	if f.logLevel != "" {
		cfg.Logging.Level = f.logLevel
	}
	if f.traceFile != "" {
		cfg.Telemetry.TraceFile = f.traceFile
	}
	if f.metricsAddr != "" {
		cfg.Telemetry.MetricsAddr = f.metricsAddr
	}
	if f.ephemeral {
		cfg.Store.InMemory = true
	}
}

// close releases everything openApp acquired, in reverse order.
func (a *app) close() error {
	var errs []error
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	errs = append(errs, a.tel.Shutdown(context.Background()))
	errs = append(errs, a.logger.Close())
	return errors.Join(errs...)
}

// stdoutPersonality picks the output level for plain commands.
func stdoutPersonality() ux.PersonalityLevel {
	return ux.DetectPersonality(os.Stdout)
}
