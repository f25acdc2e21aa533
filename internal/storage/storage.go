// Rodada - Cycling Event Publishing and Route Capture
// Copyright 2026 The Rodada Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rodada/rodada

// Package storage opens the BadgerDB instance shared by the local draft
// mirror and the embedded draft store. Each consumer owns a key prefix.
package storage

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/rodada/rodada/internal/config"
	"github.com/rodada/rodada/internal/logging"
	"github.com/rodada/rodada/internal/metrics"
)

// gcDiscardRatio is the fraction of stale data a value log file needs
// before it is rewritten.
const gcDiscardRatio = 0.5

// Open opens (or creates) the database described by cfg.
func Open(cfg config.StorageConfig) (*badger.DB, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, errors.New("storage path is required unless in_memory is set")
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}

	logging.Info().
		Str("path", cfg.Path).
		Bool("in_memory", cfg.InMemory).
		Msg("Storage opened")
	return db, nil
}

// OpenInMemory opens a throwaway in-memory database for tests and tools.
func OpenInMemory() (*badger.DB, error) {
	return Open(config.StorageConfig{InMemory: true})
}

// RunGC rewrites value log files until nothing is left to reclaim.
// In-memory databases have no value log and return nil.
func RunGC(db *badger.DB) error {
	rewrites := 0
	for {
		err := db.RunValueLogGC(gcDiscardRatio)
		switch {
		case err == nil:
			rewrites++
			continue
		case errors.Is(err, badger.ErrNoRewrite), errors.Is(err, badger.ErrGCInMemoryMode):
			metrics.StorageGCRuns.WithLabelValues("success").Inc()
			if rewrites > 0 {
				logging.Debug().Int("rewrites", rewrites).Msg("Value log GC reclaimed space")
			}
			return nil
		default:
			metrics.StorageGCRuns.WithLabelValues("error").Inc()
			return fmt.Errorf("run value log GC: %w", err)
		}
	}
}
