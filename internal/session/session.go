// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package session owns the durable part of ragdesk's UI state.
//
// # Description
//
// The Store holds the last question, last answer, last claim and last
// fact-check result, and keeps a persistent Slot in sync with them. The
// whole state is re-serialised and written on every change; the slot always
// holds a complete snapshot, never a patch.
//
// # Lifecycle
//
//	store := session.NewStore(slot, logger)
//	store.Hydrate(ctx)            // once, at startup
//	store.SetQuestion(ctx, "...") // every setter persists synchronously
//	snap := store.Snapshot()      // render from copies
//
// # Thread Safety
//
// All methods are safe for concurrent use. A setter holds the store lock
// across both the in-memory update and the slot write, so writes land in
// the same order as updates.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
)

// SlotKey names the persisted slot. The version suffix is the only schema
// marker: an incompatible layout change must use a new key.
const SlotKey = "ragdesk.session.v1"

// ErrSlotEmpty is returned by Slot.Load when nothing has been saved yet.
var ErrSlotEmpty = errors.New("session slot is empty")

// FactResult is the decoded outcome of a fact-check.
//
// Verdict is normally SUPPORTED, REFUTED or NOT_ENOUGH_INFO but any string
// the backend produces is kept as-is. Evidence is never nil once a result
// has been normalised.
type FactResult struct {
	Verdict  string   `json:"verdict"`
	Reason   string   `json:"reason"`
	Evidence []string `json:"evidence"`
}

// Normalize replaces a nil Evidence slice with an empty one.
func (r *FactResult) Normalize() {
	if r != nil && r.Evidence == nil {
		r.Evidence = []string{}
	}
}

// Clone returns a deep copy, or nil for a nil receiver.
func (r *FactResult) Clone() *FactResult {
	if r == nil {
		return nil
	}
	out := *r
	out.Evidence = slices.Clone(r.Evidence)
	if out.Evidence == nil {
		out.Evidence = []string{}
	}
	return &out
}

// Equal reports whether two results carry the same verdict, reason and
// evidence. nil equals only nil.
func (r *FactResult) Equal(other *FactResult) bool {
	if r == nil || other == nil {
		return r == other
	}
	return r.Verdict == other.Verdict &&
		r.Reason == other.Reason &&
		slices.Equal(r.Evidence, other.Evidence)
}

// State is the persisted session. The JSON field names are the slot layout.
type State struct {
	Question   string      `json:"question"`
	Answer     string      `json:"answer"`
	Claim      string      `json:"claim"`
	FactResult *FactResult `json:"factResult"`
}

// Clone returns a deep copy of the state.
func (s State) Clone() State {
	s.FactResult = s.FactResult.Clone()
	return s
}

// Encode serialises the full state.
func Encode(s State) ([]byte, error) {
	return json.Marshal(s)
}

// Decode parses a persisted snapshot. Missing keys decode to their zero
// values; a JSON null for factResult decodes to nil.
//
// # Outputs
//
//   - State: The decoded state, zero-valued on error.
//   - error: Non-nil when data is not a JSON object of the expected shape.
func Decode(data []byte) (State, error) {
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return State{}, err
	}
	s.FactResult.Normalize()
	return s, nil
}

// Slot is the persistent single-key storage port behind the Store.
type Slot interface {
	// Load returns the bytes saved under key, or ErrSlotEmpty.
	Load(ctx context.Context, key string) ([]byte, error)

	// Save overwrites the bytes under key.
	Save(ctx context.Context, key string, data []byte) error
}
