// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package badger

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/ragdesk/internal/session"
)

// SlotStore implements session.Slot on a managed DB.
type SlotStore struct {
	db *DB
}

// NewSlotStore wraps db. The caller keeps ownership of db and closes it.
func NewSlotStore(db *DB) *SlotStore {
	return &SlotStore{db: db}
}

// Load returns the value under key, or session.ErrSlotEmpty.
func (s *SlotStore) Load(ctx context.Context, key string) ([]byte, error) {
	var out []byte
	err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, session.ErrSlotEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("load slot %s: %w", key, err)
	}
	return out, nil
}

// Save overwrites the value under key in a single transaction.
func (s *SlotStore) Save(ctx context.Context, key string, data []byte) error {
	err := s.db.WithTxn(ctx, func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
	if err != nil {
		return fmt.Errorf("save slot %s: %w", key, err)
	}
	return nil
}

var _ session.Slot = (*SlotStore)(nil)
