// Rodada - Cycling Event Publishing and Route Capture
// Copyright 2026 The Rodada Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rodada/rodada

package drafts

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/rodada/rodada/internal/models"
)

// Key layout
const (
	draftKeyPrefix = "draft:"
	draftSeqKey    = "seq:draft"
)

// errDraftNotFound is reported to users like a backend 404.
var errDraftNotFound = &ServerError{Status: http.StatusNotFound, Message: "Draft not found"}

// BadgerStore keeps drafts in the local BadgerDB.
type BadgerStore struct {
	db  *badger.DB
	seq *badger.Sequence
	now func() time.Time
}

// NewBadgerStore creates a store. Call Close to release the id sequence
// before closing db.
func NewBadgerStore(db *badger.DB) (*BadgerStore, error) {
	seq, err := db.GetSequence([]byte(draftSeqKey), 1)
	if err != nil {
		return nil, fmt.Errorf("draft id sequence: %w", err)
	}
	return &BadgerStore{db: db, seq: seq, now: time.Now}, nil
}

// Close releases the id sequence.
func (s *BadgerStore) Close() error {
	return s.seq.Release()
}

// CreateDraft implements Store.
func (s *BadgerStore) CreateDraft(ctx context.Context, owner string, payload models.FormSnapshot) (models.DraftID, error) {
	n, err := s.seq.Next()
	if err != nil {
		return 0, fmt.Errorf("next draft id: %w", err)
	}
	// Sequences start at 0; ids start at 1.
	id := models.DraftID(n + 1)

	rec := models.DraftRecord{
		RemoteID:          &id,
		Owner:             owner,
		LastSavedSnapshot: payload.Clone(),
		Status:            models.DraftStatusDraft,
		UpdatedAt:         s.now().UTC(),
	}
	if err := s.db.Update(func(txn *badger.Txn) error {
		return putRecord(txn, &rec)
	}); err != nil {
		return 0, err
	}
	return id, nil
}

// UpdateDraft implements Store. Updating a submitted draft overwrites its
// payload; the last write wins.
func (s *BadgerStore) UpdateDraft(ctx context.Context, owner string, id models.DraftID, payload models.FormSnapshot) error {
	return s.db.Update(func(txn *badger.Txn) error {
		rec, err := getRecord(txn, id)
		if err != nil {
			return err
		}
		if rec.Owner != owner {
			return errDraftNotFound
		}
		rec.LastSavedSnapshot = payload.Clone()
		rec.UpdatedAt = s.now().UTC()
		return putRecord(txn, rec)
	})
}

// Finalize implements Store.
func (s *BadgerStore) Finalize(ctx context.Context, owner string, id *models.DraftID, payload models.FormSnapshot) (models.SubmittedEvent, error) {
	if id == nil {
		created, err := s.CreateDraft(ctx, owner, payload)
		if err != nil {
			return models.SubmittedEvent{}, err
		}
		id = &created
	}

	var out models.SubmittedEvent
	err := s.db.Update(func(txn *badger.Txn) error {
		rec, err := getRecord(txn, *id)
		if err != nil {
			return err
		}
		if rec.Owner != owner {
			return errDraftNotFound
		}
		now := s.now().UTC()
		rec.LastSavedSnapshot = payload.Clone()
		rec.Status = models.DraftStatusSubmitted
		rec.UpdatedAt = now
		out = models.SubmittedEvent{ID: *id, Name: payload.Name, Status: rec.Status, SubmittedAt: now}
		return putRecord(txn, rec)
	})
	if err != nil {
		return models.SubmittedEvent{}, err
	}
	return out, nil
}

// Get returns a stored draft record.
func (s *BadgerStore) Get(id models.DraftID) (*models.DraftRecord, error) {
	var rec *models.DraftRecord
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		rec, err = getRecord(txn, id)
		return err
	})
	return rec, err
}

// List returns every stored draft in id order. Used by rodadactl.
func (s *BadgerStore) List() ([]models.DraftRecord, error) {
	var out []models.DraftRecord
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(draftKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var rec models.DraftRecord
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return fmt.Errorf("decode draft %s: %w", it.Item().Key(), err)
			}
			out = append(out, rec)
		}
		return nil
	})
	return out, err
}

// draftKey zero pads ids so that iteration follows id order.
func draftKey(id models.DraftID) []byte {
	return []byte(fmt.Sprintf("%s%020d", draftKeyPrefix, int64(id)))
}

func getRecord(txn *badger.Txn, id models.DraftID) (*models.DraftRecord, error) {
	item, err := txn.Get(draftKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, errDraftNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get draft: %w", err)
	}
	var rec models.DraftRecord
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &rec)
	}); err != nil {
		return nil, fmt.Errorf("decode draft: %w", err)
	}
	return &rec, nil
}

func putRecord(txn *badger.Txn, rec *models.DraftRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal draft: %w", err)
	}
	if err := txn.Set(draftKey(*rec.RemoteID), data); err != nil {
		return fmt.Errorf("set draft: %w", err)
	}
	return nil
}
