// Rodada - Cycling Event Publishing and Route Capture
// Copyright 2026 The Rodada Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rodada/rodada

// Package drafts persists event drafts and finalizes them into submitted
// events. Two backends exist: Client talks to the events REST API and
// BadgerStore keeps drafts locally for standalone deployments.
package drafts

import (
	"context"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/rodada/rodada/internal/config"
	"github.com/rodada/rodada/internal/models"
)

// Store is the draft persistence contract used by the capture engine.
type Store interface {
	// CreateDraft stores a new draft and returns its id.
	CreateDraft(ctx context.Context, owner string, payload models.FormSnapshot) (models.DraftID, error)
	// UpdateDraft overwrites the payload of an existing draft.
	UpdateDraft(ctx context.Context, owner string, id models.DraftID, payload models.FormSnapshot) error
	// Finalize submits the event. A nil id creates and submits in one step;
	// otherwise the draft is updated with payload and submitted.
	Finalize(ctx context.Context, owner string, id *models.DraftID, payload models.FormSnapshot) (models.SubmittedEvent, error)
}

// ServerError is a rejection reported by the draft backend. Message is
// shown to the user as is.
type ServerError struct {
	Status  int
	Message string
}

func (e *ServerError) Error() string {
	return e.Message
}

// Temporary reports whether the backend itself failed, as opposed to
// rejecting the request.
func (e *ServerError) Temporary() bool {
	return e.Status >= 500
}

// Open returns the backend selected by cfg.Backend. db is only used by the
// embedded backend.
func Open(cfg config.DraftsConfig, db *badger.DB) (Store, error) {
	switch cfg.Backend {
	case "remote":
		return NewClient(cfg, nil), nil
	case "embedded", "":
		if db == nil {
			return nil, fmt.Errorf("embedded drafts backend needs a database")
		}
		return NewBadgerStore(db)
	default:
		return nil, fmt.Errorf("unknown drafts backend %q", cfg.Backend)
	}
}
