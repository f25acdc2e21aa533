// Rodada - Cycling Event Publishing and Route Capture
// Copyright 2026 The Rodada Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rodada/rodada

package capture

import (
	"context"

	"github.com/rodada/rodada/internal/mirror"
	"github.com/rodada/rodada/internal/models"
)

// DraftStore persists drafts. Satisfied by drafts.Client and
// drafts.BadgerStore.
type DraftStore interface {
	CreateDraft(ctx context.Context, owner string, payload models.FormSnapshot) (models.DraftID, error)
	UpdateDraft(ctx context.Context, owner string, id models.DraftID, payload models.FormSnapshot) error
	Finalize(ctx context.Context, owner string, id *models.DraftID, payload models.FormSnapshot) (models.SubmittedEvent, error)
}

// Mirror is the local draft copy. Get returns (nil, nil) when absent.
type Mirror interface {
	Get(ctx context.Context, key string) (*mirror.Entry, error)
	Set(ctx context.Context, key string, e mirror.Entry) error
	Clear(ctx context.Context, key string) error
}

// Notifier delivers notices to the browser of a session. Notify is called
// with the session lock held and must not block.
type Notifier interface {
	Notify(sessionID string, n Notice)
}

// Announcer publishes lifecycle events to the rest of the platform. Best
// effort: implementations log their own failures.
type Announcer interface {
	DraftSaved(ctx context.Context, e models.DraftSaved)
	EventSubmitted(ctx context.Context, e models.EventSubmitted)
}

type nopNotifier struct{}

func (nopNotifier) Notify(string, Notice) {}

type nopAnnouncer struct{}

func (nopAnnouncer) DraftSaved(context.Context, models.DraftSaved)         {}
func (nopAnnouncer) EventSubmitted(context.Context, models.EventSubmitted) {}
