// Rodada - Cycling Event Publishing and Route Capture
// Copyright 2026 The Rodada Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rodada/rodada

package storage

import (
	"testing"

	"github.com/dgraph-io/badger/v4"

	"github.com/rodada/rodada/internal/config"
)

func TestOpen_OnDisk(t *testing.T) {
	t.Parallel()

	db, err := Open(config.StorageConfig{Path: t.TempDir()})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close()

	if err := db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte("k"), []byte("v"))
	}); err != nil {
		t.Fatal(err)
	}
	if err := RunGC(db); err != nil {
		t.Errorf("RunGC() error = %v", err)
	}
}

func TestOpen_InMemory(t *testing.T) {
	t.Parallel()

	db, err := OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	defer db.Close()

	if err := RunGC(db); err != nil {
		t.Errorf("RunGC() on in-memory db error = %v", err)
	}
}

func TestOpen_RequiresPath(t *testing.T) {
	t.Parallel()

	if _, err := Open(config.StorageConfig{}); err == nil {
		t.Fatal("expected error without a path")
	}
}
