// Rodada - Cycling Event Publishing and Route Capture
// Copyright 2026 The Rodada Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rodada/rodada

package capture

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/rodada/rodada/internal/latest"
	"github.com/rodada/rodada/internal/logging"
	"github.com/rodada/rodada/internal/metrics"
	"github.com/rodada/rodada/internal/mirror"
	"github.com/rodada/rodada/internal/models"
)

// RouteSummaryMarker starts the route summary appended to descriptions.
// Its presence means the summary was already added.
const RouteSummaryMarker = "Recorrido estimado:"

// WithRouteSummary returns s with "Recorrido estimado: X km, LABEL"
// appended to the description when a route is present and the marker is
// not. Applying it twice yields the same result.
func WithRouteSummary(s models.FormSnapshot) models.FormSnapshot {
	if !s.HasRoute() || strings.Contains(s.Description, RouteSummaryMarker) {
		return s
	}
	summary := fmt.Sprintf("%s %.2f km, %s", RouteSummaryMarker, *s.DistanceKm, s.DurationLabel)
	if strings.TrimSpace(s.Description) == "" {
		s.Description = summary
	} else {
		s.Description += "\n\n" + summary
	}
	return s
}

// DraftManager autosaves a qualifying form on a re-armed timer, upserting
// one remote draft per session and mirroring each successful save locally.
// Failures are logged and otherwise ignored.
type DraftManager struct {
	ctx       context.Context
	mu        sync.Locker
	sessionID string
	owner     string
	key       string
	form      *FormState
	route     *RouteBuilder
	store     DraftStore
	mirror    Mirror
	announcer Announcer
	clock     clockwork.Clock
	timer     *latest.Debouncer

	remoteID *models.DraftID
	savedAt  time.Time
	saving   bool
	resave   bool
	held     bool
	idle     chan struct{}
	closed   bool
	finished bool
	wg       sync.WaitGroup
}

type draftManagerConfig struct {
	sessionID string
	owner     string
	interval  time.Duration
	clock     clockwork.Clock
	store     DraftStore
	mirror    Mirror
	announcer Announcer
}

func newDraftManager(ctx context.Context, mu sync.Locker, form *FormState, route *RouteBuilder, cfg draftManagerConfig) *DraftManager {
	idle := make(chan struct{})
	close(idle)
	m := &DraftManager{
		// Saves outlive the session so that a save started just before
		// teardown still reaches the mirror.
		ctx:       context.WithoutCancel(ctx),
		mu:        mu,
		sessionID: cfg.sessionID,
		owner:     cfg.owner,
		key:       mirror.SessionKey(cfg.owner),
		form:      form,
		route:     route,
		store:     cfg.store,
		mirror:    cfg.mirror,
		announcer: cfg.announcer,
		clock:     cfg.clock,
		idle:      idle,
	}
	m.timer = latest.NewDebouncer(cfg.clock, cfg.interval, mu, m.save)
	return m
}

// RemoteID returns the draft id, if one was assigned.
func (m *DraftManager) RemoteID() *models.DraftID {
	if m.remoteID == nil {
		return nil
	}
	id := *m.remoteID
	return &id
}

// SavedAt returns when the last successful save happened.
func (m *DraftManager) SavedAt() time.Time {
	return m.savedAt
}

// Touch is called after every mutation. A qualifying form (re)arms the
// single save timer.
func (m *DraftManager) Touch() {
	if m.closed || m.held || !m.form.Qualifies() {
		return
	}
	m.timer.Call()
}

// Pending reports whether a save is armed.
func (m *DraftManager) Pending() bool {
	return m.timer.Pending()
}

// Recover hydrates the form from the local mirror without touching the
// network. It reports whether an entry was found. Lock held.
func (m *DraftManager) Recover() (bool, error) {
	e, err := m.mirror.Get(m.ctx, m.key)
	if err != nil || e == nil {
		return false, err
	}
	m.form.Hydrate(e.Payload)
	m.route.Restore(e.Waypoints, e.Payload.RouteCoordinates)
	if e.RemoteID != nil {
		id := *e.RemoteID
		m.remoteID = &id
	}
	m.savedAt = e.SavedAt
	return true, nil
}

// Hold disarms autosave and returns a channel closed once no save is in
// flight. Used by submission so it never races a draft creation.
func (m *DraftManager) Hold() <-chan struct{} {
	m.held = true
	m.timer.Cancel()
	return m.idle
}

// Release re-enables autosave after a failed submission.
func (m *DraftManager) Release() {
	m.held = false
	m.Touch()
}

// Finish forgets the draft after a successful submission: the mirror
// entry and the remote id are dropped and autosave stops for good.
func (m *DraftManager) Finish() {
	m.timer.Stop()
	m.closed = true
	m.finished = true
	m.remoteID = nil
	if err := m.mirror.Clear(m.ctx, m.key); err != nil {
		logging.Ctx(m.ctx).Warn().Err(err).Msg("Failed to clear draft mirror")
	}
}

// Close stops the timer. An in-flight save still completes and mirrors,
// so a reopened form recovers it.
func (m *DraftManager) Close() {
	m.timer.Stop()
	m.closed = true
}

// Wait blocks until in-flight saves return. Call without the lock.
func (m *DraftManager) Wait() {
	m.wg.Wait()
}

// save runs when the timer fires. Lock held.
func (m *DraftManager) save() {
	if m.held || !m.form.Qualifies() {
		return
	}
	if m.saving {
		// One save at a time, otherwise two creates could race and
		// assign two ids.
		m.resave = true
		return
	}
	m.saving = true
	m.idle = make(chan struct{})

	// The mirror keeps the form as typed; only the backend gets the summary.
	form := m.form.Snapshot()
	payload := WithRouteSummary(form)
	waypoints := m.route.Waypoints()
	id := m.RemoteID()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		saved, created, err := m.upsert(id, payload)

		m.mu.Lock()
		defer m.mu.Unlock()
		m.complete(saved, created, err, form, waypoints)
	}()
}

func (m *DraftManager) upsert(id *models.DraftID, payload models.FormSnapshot) (models.DraftID, bool, error) {
	if id == nil {
		newID, err := m.store.CreateDraft(m.ctx, m.owner, payload)
		metrics.RecordAutosave("create", err)
		return newID, true, err
	}
	err := m.store.UpdateDraft(m.ctx, m.owner, *id, payload)
	metrics.RecordAutosave("update", err)
	return *id, false, err
}

// complete records a finished save. Lock held.
func (m *DraftManager) complete(id models.DraftID, created bool, err error, form models.FormSnapshot, waypoints []models.Coordinates) {
	defer func() {
		m.saving = false
		close(m.idle)
		if m.resave && !m.closed && !m.held {
			m.resave = false
			m.save()
		}
	}()

	if err != nil {
		logging.Ctx(m.ctx).Warn().Err(err).Bool("create", created).Msg("Autosave failed")
		return
	}
	if m.finished {
		return
	}
	if m.remoteID == nil {
		m.remoteID = &id
	}

	m.savedAt = m.clock.Now()
	entry := mirror.Entry{
		Payload:   form,
		RemoteID:  m.RemoteID(),
		Waypoints: waypoints,
		SavedAt:   m.savedAt.UTC(),
	}
	if err := m.mirror.Set(m.ctx, m.key, entry); err != nil {
		logging.Ctx(m.ctx).Warn().Err(err).Msg("Failed to mirror draft")
	}
	logging.Ctx(m.ctx).Debug().Stringer("draft_id", id).Bool("created", created).Msg("Draft autosaved")
	m.announcer.DraftSaved(m.ctx, models.DraftSaved{
		SessionID: m.sessionID,
		Owner:     m.owner,
		DraftID:   id,
		Created:   created,
		SavedAt:   m.savedAt.UTC(),
	})
}
