// Rodada - Cycling Event Publishing and Route Capture
// Copyright 2026 The Rodada Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rodada/rodada

// Package mirror keeps a local copy of the last successfully saved draft of
// each editing session, so a reopened form recovers without the network.
package mirror

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/rodada/rodada/internal/config"
	"github.com/rodada/rodada/internal/models"
)

const keyPrefix = "mirror:"

// Entry is one mirrored draft.
type Entry struct {
	Payload   models.FormSnapshot  `json:"payload"`
	RemoteID  *models.DraftID      `json:"remote_id,omitempty"`
	Waypoints []models.Coordinates `json:"waypoints,omitempty"`
	SavedAt   time.Time            `json:"saved_at"`
}

// SessionKey returns the mirror key of the event form of owner.
func SessionKey(owner string) string {
	return "event-form:" + owner
}

// Store is a mirror backend. Get returns (nil, nil) when key is absent.
type Store interface {
	Get(ctx context.Context, key string) (*Entry, error)
	Set(ctx context.Context, key string, e Entry) error
	Clear(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
}

// Open returns the backend selected by cfg.Backend.
func Open(cfg config.MirrorConfig, db *badger.DB) (Store, error) {
	switch cfg.Backend {
	case "badger", "":
		if db == nil {
			return nil, fmt.Errorf("badger mirror backend needs a database")
		}
		return NewBadgerMirror(db, cfg.TTL), nil
	case "memory":
		return NewMemoryMirror(), nil
	default:
		return nil, fmt.Errorf("unknown mirror backend %q", cfg.Backend)
	}
}

// BadgerMirror stores entries under "mirror:<key>" with an optional TTL so
// abandoned forms eventually disappear.
type BadgerMirror struct {
	db  *badger.DB
	ttl time.Duration
}

// NewBadgerMirror creates a badger backed mirror. ttl <= 0 keeps entries
// forever.
func NewBadgerMirror(db *badger.DB, ttl time.Duration) *BadgerMirror {
	return &BadgerMirror{db: db, ttl: ttl}
}

// Get implements Store.
func (m *BadgerMirror) Get(ctx context.Context, key string) (*Entry, error) {
	var entry *Entry
	err := m.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("get mirror entry: %w", err)
		}
		var e Entry
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &e)
		}); err != nil {
			return fmt.Errorf("decode mirror entry: %w", err)
		}
		entry = &e
		return nil
	})
	return entry, err
}

// Set implements Store.
func (m *BadgerMirror) Set(ctx context.Context, key string, e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal mirror entry: %w", err)
	}
	return m.db.Update(func(txn *badger.Txn) error {
		be := badger.NewEntry([]byte(keyPrefix+key), data)
		if m.ttl > 0 {
			be = be.WithTTL(m.ttl)
		}
		return txn.SetEntry(be)
	})
}

// Clear implements Store.
func (m *BadgerMirror) Clear(ctx context.Context, key string) error {
	return m.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(keyPrefix + key))
	})
}

// Keys implements Store.
func (m *BadgerMirror) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	err := m.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, string(it.Item().Key()[len(keyPrefix):]))
		}
		return nil
	})
	return keys, err
}

// MemoryMirror is a process local Store.
type MemoryMirror struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewMemoryMirror creates an empty in-memory mirror.
func NewMemoryMirror() *MemoryMirror {
	return &MemoryMirror{entries: make(map[string]Entry)}
}

// Get implements Store.
func (m *MemoryMirror) Get(ctx context.Context, key string) (*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[key]
	if !ok {
		return nil, nil
	}
	e.Payload = e.Payload.Clone()
	e.Waypoints = append([]models.Coordinates(nil), e.Waypoints...)
	return &e, nil
}

// Set implements Store.
func (m *MemoryMirror) Set(ctx context.Context, key string, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.Payload = e.Payload.Clone()
	e.Waypoints = append([]models.Coordinates(nil), e.Waypoints...)
	m.entries[key] = e
	return nil
}

// Clear implements Store.
func (m *MemoryMirror) Clear(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

// Keys implements Store.
func (m *MemoryMirror) Keys(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.entries))
	for k := range m.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}
