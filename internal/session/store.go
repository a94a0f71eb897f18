// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/AleutianAI/ragdesk/pkg/logging"
)

// Store owns the persisted session fields.
//
// # Description
//
// Store is the only writer of the four session fields. Each setter compares
// the new value with the current one and, when it differs, updates memory
// and synchronously overwrites the slot with the full encoded state.
//
// Persist failures are logged and returned so callers can log them too,
// but the in-memory value is kept: the UI keeps showing what the user
// did even when the disk write failed.
//
// # Thread Safety
//
// Safe for concurrent use.
type Store struct {
	slot     Slot
	key      string
	logger   *logging.Logger
	mu       sync.Mutex
	state    State
	hydrated bool
}

// NewStore creates a store bound to slot. A nil logger discards logs.
func NewStore(slot Slot, logger *logging.Logger) *Store {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Store{
		slot:   slot,
		key:    SlotKey,
		logger: logger.With("component", "session"),
	}
}

// Hydrate loads the persisted snapshot into memory.
//
// # Description
//
// Runs at most once per Store; later calls return immediately. An empty
// slot, an unreadable slot, or a payload that does not decode leave the
// defaults in place. Problems are logged at WARN and never returned, so
// startup cannot fail on a corrupt session.
//
// # Inputs
//
//   - ctx: Passed to the slot read.
func (s *Store) Hydrate(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.hydrated {
		return
	}
	s.hydrated = true

	data, err := s.slot.Load(ctx, s.key)
	switch {
	case errors.Is(err, ErrSlotEmpty):
		s.logger.Debug("no persisted session, starting empty")
		return
	case err != nil:
		s.logger.Warn("session slot unreadable, starting empty", "error", err.Error())
		return
	}

	state, err := Decode(data)
	if err != nil {
		s.logger.Warn("persisted session is corrupt, discarding",
			"error", err.Error(),
			"bytes", len(data),
		)
		return
	}
	s.state = state
	s.logger.Debug("session hydrated",
		"has_answer", state.Answer != "",
		"has_fact_result", state.FactResult != nil,
	)
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// SetQuestion records the question input.
func (s *Store) SetQuestion(ctx context.Context, question string) error {
	return s.update(ctx, func(st *State) bool {
		if st.Question == question {
			return false
		}
		st.Question = question
		return true
	})
}

// SetAnswer records the last successful answer.
func (s *Store) SetAnswer(ctx context.Context, answer string) error {
	return s.update(ctx, func(st *State) bool {
		if st.Answer == answer {
			return false
		}
		st.Answer = answer
		return true
	})
}

// SetClaim records the claim input.
func (s *Store) SetClaim(ctx context.Context, claim string) error {
	return s.update(ctx, func(st *State) bool {
		if st.Claim == claim {
			return false
		}
		st.Claim = claim
		return true
	})
}

// SetFactResult replaces the last fact-check result. nil clears it; the
// stored copy is normalised so Evidence is never nil.
func (s *Store) SetFactResult(ctx context.Context, result *FactResult) error {
	next := result.Clone()
	return s.update(ctx, func(st *State) bool {
		if st.FactResult.Equal(next) {
			return false
		}
		st.FactResult = next
		return true
	})
}

// Clear resets every field to its default and persists the empty state.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = State{}
	return s.persistLocked(ctx)
}

// update applies fn and persists when fn reports a change.
func (s *Store) update(ctx context.Context, fn func(*State) bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !fn(&s.state) {
		return nil
	}
	return s.persistLocked(ctx)
}

func (s *Store) persistLocked(ctx context.Context) error {
	data, err := Encode(s.state)
	if err != nil {
		s.logger.Error("encode session", "error", err.Error())
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.slot.Save(ctx, s.key, data); err != nil {
		s.logger.Error("persist session", "error", err.Error())
		return fmt.Errorf("persist session: %w", err)
	}
	return nil
}
