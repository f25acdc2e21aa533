// Rodada - Cycling Event Publishing and Route Capture
// Copyright 2026 The Rodada Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rodada/rodada

package capture

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/paulmach/orb/geojson"

	"github.com/rodada/rodada/internal/geo"
	"github.com/rodada/rodada/internal/logging"
	"github.com/rodada/rodada/internal/models"
)

// ErrSessionClosed is returned by operations on a torn down session.
var ErrSessionClosed = errors.New("session closed")

// SessionState is the coarse state of an editing view.
type SessionState string

const (
	StateEditing    SessionState = "editing"
	StateSubmitting SessionState = "submitting"
	StateSubmitted  SessionState = "submitted"
)

// View is a consistent read of a session.
type View struct {
	SessionID   string                 `json:"session_id"`
	State       SessionState           `json:"state"`
	Form        models.FormSnapshot    `json:"form"`
	Address     AddressState           `json:"address"`
	Waypoints   []models.Coordinates   `json:"waypoints"`
	RemoteID    *models.DraftID        `json:"remote_id,omitempty"`
	SavedAt     *time.Time             `json:"saved_at,omitempty"`
	Recovered   bool                   `json:"recovered"`
	Submitted   *models.SubmittedEvent `json:"submitted,omitempty"`
	AutosaveDue bool                   `json:"autosave_pending"`
}

// Session is one open "create event" view. Every mutation and every
// asynchronous completion is serialized on mu, so the engine behaves as a
// single threaded state machine whatever the goroutine layout.
type Session struct {
	mu     sync.Mutex
	id     string
	owner  string
	ctx    context.Context
	cancel context.CancelFunc
	clock  clockwork.Clock

	form      FormState
	address   *AddressResolver
	route     *RouteBuilder
	drafts    *DraftManager
	submit    SubmissionController
	notifier  Notifier
	announcer Announcer

	recovered  bool
	closed     bool
	lastActive time.Time
}

type sessionConfig struct {
	id        string
	owner     string
	clock     clockwork.Clock
	debounce  time.Duration
	autosave  time.Duration
	geocoder  geo.Geocoder
	router    geo.Router
	store     DraftStore
	mirror    Mirror
	notifier  Notifier
	announcer Announcer
}

func newSession(cfg sessionConfig) *Session {
	ctx := logging.ContextWithSessionID(context.Background(), cfg.id)
	ctx, cancel := context.WithCancel(ctx)

	s := &Session{
		id:         cfg.id,
		owner:      cfg.owner,
		ctx:        ctx,
		cancel:     cancel,
		clock:      cfg.clock,
		notifier:   cfg.notifier,
		announcer:  cfg.announcer,
		lastActive: cfg.clock.Now(),
	}
	s.submit.store = cfg.store
	s.route = newRouteBuilder(ctx, &s.mu, &s.form, cfg.router, cfg.geocoder, RouteHooks{
		Updated:  s.onRouteUpdated,
		Failed:   s.onRouteFailed,
		Labelled: s.onRouteLabelled,
	})
	s.address = newAddressResolver(ctx, &s.mu, cfg.clock, cfg.debounce, &s.form, cfg.geocoder,
		func() bool { return s.route.Len() > 0 }, s.onAddressChanged)
	s.drafts = newDraftManager(ctx, &s.mu, &s.form, s.route, draftManagerConfig{
		sessionID: cfg.id,
		owner:     cfg.owner,
		interval:  cfg.autosave,
		clock:     cfg.clock,
		store:     cfg.store,
		mirror:    cfg.mirror,
		announcer: cfg.announcer,
	})
	return s
}

// mount recovers a mirrored draft, if any. Mirror failures only cost the
// recovery.
func (s *Session) mount() {
	s.mu.Lock()
	defer s.mu.Unlock()

	ok, err := s.drafts.Recover()
	if err != nil {
		logging.Ctx(s.ctx).Warn().Err(err).Msg("Draft mirror unreadable, starting fresh")
		return
	}
	if !ok {
		return
	}
	s.recovered = true
	snap := s.form.Snapshot()
	if snap.Coordinates != nil {
		s.address.Restore(AddressState{Status: AddressFound, Coordinates: snap.Coordinates})
	}
	logging.Ctx(s.ctx).Info().Bool("has_remote_id", s.drafts.RemoteID() != nil).Msg("Draft recovered from mirror")
	s.notify(Notice{Kind: NoticeDraftRecovered, Message: "Recuperamos tu borrador."})
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Owner returns the user that owns the session.
func (s *Session) Owner() string { return s.owner }

// Context returns the session context, canceled at teardown.
func (s *Session) Context() context.Context { return s.ctx }

// View returns a consistent snapshot of the session.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view()
}

// UpdateFields applies user edits of the plain fields.
func (s *Session) UpdateFields(p FieldPatch) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.editable(); err != nil {
		return View{}, err
	}
	s.form.Apply(p)
	s.drafts.Touch()
	return s.view(), nil
}

// SetAddressText records an edit of the address input. Resolution happens
// after the debounce window, unless waypoints already fix the position.
func (s *Session) SetAddressText(text string) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.editable(); err != nil {
		return View{}, err
	}
	s.route.DropPendingLabel()
	s.address.TextChanged(text)
	s.drafts.Touch()
	return s.view(), nil
}

// AddWaypoint appends a clicked map position to the route.
func (s *Session) AddWaypoint(c models.Coordinates) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.editable(); err != nil {
		return View{}, err
	}
	first := s.route.Len() == 0
	if err := s.route.Add(c); err != nil {
		return View{}, err
	}
	if first {
		s.address.Anchor(c, "")
	}
	s.drafts.Touch()
	return s.view(), nil
}

// ClearRoute drops the route together with the position and address text.
func (s *Session) ClearRoute() (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.editable(); err != nil {
		return View{}, err
	}
	s.route.Clear()
	s.address.Reset()
	v := s.view()
	s.notify(Notice{Kind: NoticeRouteCleared, View: &v})
	return v, nil
}

// RouteGeoJSON returns the waypoints and routed path.
func (s *Session) RouteGeoJSON() *geojson.FeatureCollection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.route.GeoJSON()
}

// Submit validates locally and finalizes the event. Validation failures
// return *validation.RequestValidationError without any network call;
// backend failures return *SubmitError and leave the form untouched.
func (s *Session) Submit(ctx context.Context) (models.SubmittedEvent, error) {
	s.mu.Lock()
	if err := s.editable(); err != nil {
		s.mu.Unlock()
		return models.SubmittedEvent{}, err
	}
	if s.submit.inFlight {
		s.mu.Unlock()
		return models.SubmittedEvent{}, ErrSubmitInProgress
	}
	snap := s.form.Snapshot()
	if err := s.submit.Validate(snap); err != nil {
		s.mu.Unlock()
		return models.SubmittedEvent{}, err
	}
	s.submit.inFlight = true
	idle := s.drafts.Hold()
	s.mu.Unlock()

	// A draft creation in flight must finish first so its id is reused.
	select {
	case <-idle:
	case <-ctx.Done():
		s.mu.Lock()
		s.submit.inFlight = false
		s.drafts.Release()
		s.mu.Unlock()
		return models.SubmittedEvent{}, ctx.Err()
	}

	s.mu.Lock()
	id := s.drafts.RemoteID()
	payload := WithRouteSummary(snap)
	s.mu.Unlock()

	ev, err := s.submit.finalize(ctx, s.owner, id, payload)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.submit.inFlight = false
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("Submission failed")
		if !s.closed {
			s.drafts.Release()
			s.notify(Notice{Kind: NoticeSubmissionFailed, Message: err.Error()})
		}
		return models.SubmittedEvent{}, err
	}

	s.submit.submitted = &ev
	s.drafts.Finish()
	s.address.Close()
	s.route.Close()
	logging.Ctx(ctx).Info().Stringer("event_id", ev.ID).Msg("Event submitted")
	v := s.view()
	s.notify(Notice{Kind: NoticeSubmitted, View: &v})
	s.announcer.EventSubmitted(s.ctx, models.EventSubmitted{
		SessionID:  s.id,
		Owner:      s.owner,
		Event:      ev,
		DistanceKm: payload.DistanceKm,
	})
	return ev, nil
}

// Close tears the session down: timers stop, in-flight lookups and
// routing results are discarded and the context is canceled. Close does
// not wait; use Wait for that.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.address.Close()
	s.route.Close()
	s.drafts.Close()
	s.notify(Notice{Kind: NoticeSessionClosed})
	s.mu.Unlock()
	s.cancel()
}

// Wait blocks until every goroutine started by the session returned.
func (s *Session) Wait() {
	s.address.Wait()
	s.route.Wait()
	s.drafts.Wait()
}

// LastActive returns the time of the last user operation.
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// Finalized reports whether the event was submitted.
func (s *Session) Finalized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submit.submitted != nil
}

// editable checks that the session accepts mutations and marks activity.
// Lock held.
func (s *Session) editable() error {
	if s.closed {
		return ErrSessionClosed
	}
	if s.submit.submitted != nil {
		return ErrFinalized
	}
	s.touch()
	return nil
}

func (s *Session) touch() {
	s.lastActive = s.clock.Now()
}

// view builds a View. Lock held.
func (s *Session) view() View {
	v := View{
		SessionID:   s.id,
		State:       StateEditing,
		Form:        s.form.Snapshot(),
		Address:     s.address.State(),
		Waypoints:   s.route.Waypoints(),
		RemoteID:    s.drafts.RemoteID(),
		Recovered:   s.recovered,
		Submitted:   s.submit.Submitted(),
		AutosaveDue: s.drafts.Pending(),
	}
	if t := s.drafts.SavedAt(); !t.IsZero() {
		v.SavedAt = &t
	}
	switch {
	case s.submit.submitted != nil:
		v.State = StateSubmitted
	case s.submit.inFlight:
		v.State = StateSubmitting
	}
	return v
}

func (s *Session) notify(n Notice) {
	s.notifier.Notify(s.id, n)
}

func (s *Session) onAddressChanged(st AddressState) {
	if s.closed {
		return
	}
	s.notify(Notice{Kind: NoticeAddressStatus, Message: string(st.Status)})
	if st.Status == AddressFound {
		s.drafts.Touch()
	}
}

func (s *Session) onRouteUpdated() {
	v := s.view()
	s.notify(Notice{Kind: NoticeRouteUpdated, View: &v})
	s.drafts.Touch()
}

func (s *Session) onRouteFailed(message string) {
	s.notify(Notice{Kind: NoticeRouteError, Message: message, Transient: true})
}

func (s *Session) onRouteLabelled(label string) {
	s.address.Label(label)
	s.notify(Notice{Kind: NoticeAddressLabel, Message: label})
	s.drafts.Touch()
}
