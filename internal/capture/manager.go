// Rodada - Cycling Event Publishing and Route Capture
// Copyright 2026 The Rodada Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rodada/rodada

// Package capture implements the draft lifecycle and geospatial capture
// engine behind the "create event" form.
//
// A Session holds one form under composition. It resolves typed addresses
// after a debounce window, builds a route from clicked waypoints, autosaves
// the draft on a re-armed timer with a local mirror for recovery, and
// finally validates and submits the event. Network calls never hold the
// session lock, and their results commit only while still current.
//
// The Manager keeps the live sessions, one per owner.
package capture

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/rodada/rodada/internal/geo"
	"github.com/rodada/rodada/internal/logging"
	"github.com/rodada/rodada/internal/metrics"
)

// ErrSessionNotFound is returned for unknown or closed session ids.
var ErrSessionNotFound = errors.New("session not found")

// Default timings.
const (
	DefaultDebounce         = 800 * time.Millisecond
	DefaultAutosaveInterval = 30 * time.Second
)

// Deps are the collaborators shared by all sessions.
type Deps struct {
	Geocoder  geo.Geocoder
	Router    geo.Router
	Drafts    DraftStore
	Mirror    Mirror
	Notifier  Notifier
	Announcer Announcer
	Clock     clockwork.Clock
}

// Options tunes session timing. Zero values take the defaults.
type Options struct {
	Debounce         time.Duration
	AutosaveInterval time.Duration
}

// Manager is the registry of live sessions.
type Manager struct {
	mu       sync.Mutex
	deps     Deps
	opts     Options
	sessions map[string]*Session
	byOwner  map[string]*Session
}

// NewManager creates a manager. Notifier and Announcer may be nil.
func NewManager(deps Deps, opts Options) *Manager {
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if deps.Notifier == nil {
		deps.Notifier = nopNotifier{}
	}
	if deps.Announcer == nil {
		deps.Announcer = nopAnnouncer{}
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.AutosaveInterval <= 0 {
		opts.AutosaveInterval = DefaultAutosaveInterval
	}
	return &Manager{
		deps:     deps,
		opts:     opts,
		sessions: make(map[string]*Session),
		byOwner:  make(map[string]*Session),
	}
}

// Open returns the owner's live session, or mounts a new one. A new
// session is hydrated from the local mirror when an entry exists. created
// reports whether a session was mounted.
func (m *Manager) Open(ctx context.Context, owner string) (s *Session, created bool, err error) {
	if owner == "" {
		return nil, false, errors.New("owner is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.byOwner[owner]; ok {
		if !existing.Finalized() {
			existing.mu.Lock()
			existing.touch()
			existing.mu.Unlock()
			metrics.CaptureSessionsOpened.WithLabelValues("resumed").Inc()
			return existing, false, nil
		}
		m.removeLocked(existing)
	}

	s = newSession(sessionConfig{
		id:        uuid.NewString(),
		owner:     owner,
		clock:     m.deps.Clock,
		debounce:  m.opts.Debounce,
		autosave:  m.opts.AutosaveInterval,
		geocoder:  m.deps.Geocoder,
		router:    m.deps.Router,
		store:     m.deps.Drafts,
		mirror:    m.deps.Mirror,
		notifier:  m.deps.Notifier,
		announcer: m.deps.Announcer,
	})
	s.mount()

	m.sessions[s.id] = s
	m.byOwner[owner] = s
	metrics.CaptureSessionsActive.Inc()

	origin := "fresh"
	if s.View().Recovered {
		origin = "recovered"
	}
	metrics.CaptureSessionsOpened.WithLabelValues(origin).Inc()
	logging.Ctx(ctx).Info().Str("session_id", s.id).Str("owner", owner).Str("origin", origin).Msg("Capture session opened")
	return s, true, nil
}

// Get returns a live session by id.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Close tears a session down and forgets it.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		m.removeLocked(s)
	}
	m.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	return nil
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// ReapIdle closes sessions without user activity for ttl and returns how
// many were closed. Their mirrors survive, so reopening recovers them.
func (m *Manager) ReapIdle(ttl time.Duration) int {
	now := m.deps.Clock.Now()

	m.mu.Lock()
	var idle []*Session
	for _, s := range m.sessions {
		if now.Sub(s.LastActive()) >= ttl {
			idle = append(idle, s)
		}
	}
	for _, s := range idle {
		m.removeLocked(s)
	}
	m.mu.Unlock()

	if len(idle) > 0 {
		metrics.CaptureSessionsReaped.Add(float64(len(idle)))
		logging.Info().Int("count", len(idle)).Dur("idle_ttl", ttl).Msg("Reaped idle capture sessions")
	}
	return len(idle)
}

// CloseAll tears every session down and waits for their goroutines.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	all := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		all = append(all, s)
	}
	for _, s := range all {
		m.removeLocked(s)
	}
	m.mu.Unlock()

	for _, s := range all {
		s.Wait()
	}
}

// removeLocked closes s and drops it from the indexes. m.mu held.
func (m *Manager) removeLocked(s *Session) {
	s.Close()
	delete(m.sessions, s.id)
	if m.byOwner[s.owner] == s {
		delete(m.byOwner, s.owner)
	}
	metrics.CaptureSessionsActive.Dec()
}
