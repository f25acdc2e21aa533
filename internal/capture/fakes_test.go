// Rodada - Cycling Event Publishing and Route Capture
// Copyright 2026 The Rodada Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rodada/rodada

package capture

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/rodada/rodada/internal/geo"
	"github.com/rodada/rodada/internal/mirror"
	"github.com/rodada/rodada/internal/models"
)

var (
	plazaSanMartin  = models.Coordinates{Lat: -31.4135, Lng: -64.1811}
	parqueSarmiento = models.Coordinates{Lat: -31.4280, Lng: -64.1850}
	ciudadUniv      = models.Coordinates{Lat: -31.4380, Lng: -64.1930}
	diqueSanRoque   = models.Coordinates{Lat: -31.3700, Lng: -64.4700}
)

var errUnavailable = errors.New("upstream unavailable")

// waitFor polls cond until it holds. Timer callbacks of the fake clock and
// collaborator completions run on their own goroutines.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

type fakeGeocoder struct {
	mu          sync.Mutex
	places      map[string]geo.Place
	gates       map[string]chan struct{}
	forward     []string
	reverse     []models.Coordinates
	reverseErr  error
	reverseGate chan struct{}
	label       string
}

func newFakeGeocoder() *fakeGeocoder {
	return &fakeGeocoder{
		places: map[string]geo.Place{
			"Parque Sarmiento": {Coordinates: parqueSarmiento, Label: "Parque Sarmiento, Córdoba"},
			"Plaza San Martín": {Coordinates: plazaSanMartin, Label: "Plaza San Martín, Córdoba"},
		},
		gates: make(map[string]chan struct{}),
		label: "Plaza San Martín, Córdoba",
	}
}

// gate makes lookups of query block until the returned func is called.
func (g *fakeGeocoder) gate(query string) (release func()) {
	ch := make(chan struct{})
	g.mu.Lock()
	g.gates[query] = ch
	g.mu.Unlock()
	return func() { close(ch) }
}

func (g *fakeGeocoder) Forward(ctx context.Context, query string) (geo.Place, error) {
	g.mu.Lock()
	g.forward = append(g.forward, query)
	gate := g.gates[query]
	p, ok := g.places[query]
	g.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if !ok {
		return geo.Place{}, geo.ErrNotFound
	}
	return p, nil
}

func (g *fakeGeocoder) Reverse(ctx context.Context, at models.Coordinates) (geo.Place, error) {
	g.mu.Lock()
	g.reverse = append(g.reverse, at)
	gate := g.reverseGate
	err := g.reverseErr
	label := g.label
	g.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err != nil {
		return geo.Place{}, err
	}
	return geo.Place{Coordinates: at, Label: label}, nil
}

func (g *fakeGeocoder) forwardCalls() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.forward...)
}

func (g *fakeGeocoder) reverseCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.reverse)
}

// fakeRouter answers 1000 m and 10 min per waypoint plus a fixed 234 m.
type fakeRouter struct {
	mu    sync.Mutex
	calls [][]models.Coordinates
	fail  map[int]bool
	gates map[int]chan struct{}
}

func newFakeRouter() *fakeRouter {
	return &fakeRouter{fail: make(map[int]bool), gates: make(map[int]chan struct{})}
}

func (r *fakeRouter) gate(call int) (release func()) {
	ch := make(chan struct{})
	r.mu.Lock()
	r.gates[call] = ch
	r.mu.Unlock()
	return func() { close(ch) }
}

func (r *fakeRouter) Route(ctx context.Context, wps []models.Coordinates) (geo.Route, error) {
	r.mu.Lock()
	idx := len(r.calls)
	r.calls = append(r.calls, append([]models.Coordinates(nil), wps...))
	gate := r.gates[idx]
	fail := r.fail[idx]
	r.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if fail {
		return geo.Route{}, errUnavailable
	}
	return geo.Route{
		DistanceMeters:  float64(1000*len(wps) + 234),
		DurationSeconds: float64(600 * len(wps)),
		Path:            geo.PathFromCoordinates(wps),
	}, nil
}

func (r *fakeRouter) callLog() [][]models.Coordinates {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]models.Coordinates(nil), r.calls...)
}

type finalizeCall struct {
	id      *models.DraftID
	payload models.FormSnapshot
}

type fakeStore struct {
	mu          sync.Mutex
	nextID      models.DraftID
	creates     []models.FormSnapshot
	updates     []models.DraftID
	finalizes   []finalizeCall
	createErr   error
	finalizeErr error
	createGate  chan struct{}
}

func newFakeStore() *fakeStore {
	return &fakeStore{nextID: 42}
}

func (s *fakeStore) CreateDraft(ctx context.Context, owner string, payload models.FormSnapshot) (models.DraftID, error) {
	s.mu.Lock()
	s.creates = append(s.creates, payload)
	gate := s.createGate
	err := s.createErr
	id := s.nextID
	if err == nil {
		s.nextID++
	}
	s.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (s *fakeStore) UpdateDraft(ctx context.Context, owner string, id models.DraftID, payload models.FormSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, id)
	return nil
}

func (s *fakeStore) Finalize(ctx context.Context, owner string, id *models.DraftID, payload models.FormSnapshot) (models.SubmittedEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finalizes = append(s.finalizes, finalizeCall{id: id, payload: payload})
	if s.finalizeErr != nil {
		return models.SubmittedEvent{}, s.finalizeErr
	}
	evID := models.DraftID(100)
	if id != nil {
		evID = *id
	}
	return models.SubmittedEvent{ID: evID, Name: payload.Name, Status: models.DraftStatusSubmitted}, nil
}

func (s *fakeStore) counts() (creates, updates, finalizes int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.creates), len(s.updates), len(s.finalizes)
}

type recordingNotifier struct {
	mu      sync.Mutex
	notices []Notice
}

func (n *recordingNotifier) Notify(_ string, notice Notice) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice)
}

func (n *recordingNotifier) kinds() []NoticeKind {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]NoticeKind, len(n.notices))
	for i, notice := range n.notices {
		out[i] = notice.Kind
	}
	return out
}

func (n *recordingNotifier) has(kind NoticeKind) bool {
	for _, k := range n.kinds() {
		if k == kind {
			return true
		}
	}
	return false
}

type recordingAnnouncer struct {
	mu        sync.Mutex
	saved     []models.DraftSaved
	submitted []models.EventSubmitted
}

func (a *recordingAnnouncer) DraftSaved(_ context.Context, e models.DraftSaved) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.saved = append(a.saved, e)
}

func (a *recordingAnnouncer) EventSubmitted(_ context.Context, e models.EventSubmitted) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.submitted = append(a.submitted, e)
}

type harness struct {
	clock     *clockwork.FakeClock
	geocoder  *fakeGeocoder
	router    *fakeRouter
	store     *fakeStore
	mirror    *mirror.MemoryMirror
	notifier  *recordingNotifier
	announcer *recordingAnnouncer
	mgr       *Manager
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		clock:     clockwork.NewFakeClock(),
		geocoder:  newFakeGeocoder(),
		router:    newFakeRouter(),
		store:     newFakeStore(),
		mirror:    mirror.NewMemoryMirror(),
		notifier:  &recordingNotifier{},
		announcer: &recordingAnnouncer{},
	}
	h.mgr = NewManager(Deps{
		Geocoder:  h.geocoder,
		Router:    h.router,
		Drafts:    h.store,
		Mirror:    h.mirror,
		Notifier:  h.notifier,
		Announcer: h.announcer,
		Clock:     h.clock,
	}, Options{})
	t.Cleanup(h.mgr.CloseAll)
	return h
}

func (h *harness) open(t *testing.T) *Session {
	t.Helper()
	s, _, err := h.mgr.Open(context.Background(), "ana")
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func ptr[T any](v T) *T { return &v }

// fillRequired sets every field a submission needs and places the first
// waypoint, waiting for its reverse geocoded label.
func (h *harness) fillRequired(t *testing.T, s *Session) {
	t.Helper()
	if _, err := s.UpdateFields(FieldPatch{
		Name:         ptr("Vuelta al Dique"),
		Date:         ptr("2026-11-14T08:00"),
		Capacity:     ptr(40),
		TypeID:       ptr(int64(1)),
		DifficultyID: ptr(int64(2)),
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.AddWaypoint(plazaSanMartin); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "reverse geocoded address", func() bool {
		return s.View().Form.AddressText == h.geocoder.label
	})
}
