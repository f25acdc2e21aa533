// Rodada - Cycling Event Publishing and Route Capture
// Copyright 2026 The Rodada Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rodada/rodada

package capture

import (
	"errors"
	"reflect"
	"testing"

	"github.com/rodada/rodada/internal/models"
)

func addAndSettle(t *testing.T, s *Session, wps ...models.Coordinates) {
	t.Helper()
	for _, c := range wps {
		if _, err := s.AddWaypoint(c); err != nil {
			t.Fatal(err)
		}
		s.route.Wait()
	}
}

func TestRoute_RecomputesWholeList(t *testing.T) {
	h := newHarness(t)
	s := h.open(t)

	addAndSettle(t, s, plazaSanMartin, parqueSarmiento, ciudadUniv)
	v := s.View()
	if v.Form.DistanceKm == nil || *v.Form.DistanceKm != 3.23 {
		t.Fatalf("distance = %v, want 3.23", v.Form.DistanceKm)
	}
	if v.Form.DurationLabel != "30 min" {
		t.Errorf("duration = %q, want 30 min", v.Form.DurationLabel)
	}

	addAndSettle(t, s, diqueSanRoque)

	want := [][]models.Coordinates{
		{plazaSanMartin, parqueSarmiento},
		{plazaSanMartin, parqueSarmiento, ciudadUniv},
		{plazaSanMartin, parqueSarmiento, ciudadUniv, diqueSanRoque},
	}
	if got := h.router.callLog(); !reflect.DeepEqual(got, want) {
		t.Fatalf("router calls = %v, want %v", got, want)
	}
	v = s.View()
	if *v.Form.DistanceKm != 4.23 || v.Form.DurationLabel != "40 min" {
		t.Errorf("route = %v km %q", *v.Form.DistanceKm, v.Form.DurationLabel)
	}
	if len(v.Form.RouteCoordinates) != 4 {
		t.Errorf("route path has %d points, want 4", len(v.Form.RouteCoordinates))
	}
	if len(v.Waypoints) != 4 {
		t.Errorf("waypoints = %d, want 4", len(v.Waypoints))
	}
}

func TestRoute_FirstWaypointIsReverseGeocodedOnce(t *testing.T) {
	h := newHarness(t)
	s := h.open(t)

	addAndSettle(t, s, plazaSanMartin)
	v := s.View()
	if v.Form.AddressText != "Plaza San Martín, Córdoba" {
		t.Errorf("address text = %q", v.Form.AddressText)
	}
	if v.Form.Coordinates == nil || *v.Form.Coordinates != plazaSanMartin {
		t.Errorf("coordinates = %v", v.Form.Coordinates)
	}
	if v.Address.Status != AddressFound || v.Address.ResolvedLabel != "Plaza San Martín, Córdoba" {
		t.Errorf("address = %+v", v.Address)
	}
	if len(h.router.callLog()) != 0 {
		t.Error("a single waypoint was routed")
	}

	addAndSettle(t, s, parqueSarmiento, ciudadUniv)
	if n := h.geocoder.reverseCalls(); n != 1 {
		t.Errorf("reverse calls = %d, want 1", n)
	}
	if got := s.View().Form.Coordinates; *got != plazaSanMartin {
		t.Errorf("later waypoints moved the event position to %v", got)
	}
}

func TestRoute_ReverseFailureFallsBackToCoordinates(t *testing.T) {
	h := newHarness(t)
	h.geocoder.reverseErr = errUnavailable
	s := h.open(t)

	addAndSettle(t, s, plazaSanMartin)
	if got, want := s.View().Form.AddressText, plazaSanMartin.String(); got != want {
		t.Errorf("address text = %q, want %q", got, want)
	}
}

func TestRoute_TypedAddressWinsOverLateReverseGeocode(t *testing.T) {
	h := newHarness(t)
	gate := make(chan struct{})
	h.geocoder.reverseGate = gate
	s := h.open(t)

	if _, err := s.AddWaypoint(plazaSanMartin); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "reverse geocode started", func() bool { return h.geocoder.reverseCalls() == 1 })

	typed := "Punto de encuentro: puerta norte"
	if _, err := s.SetAddressText(typed); err != nil {
		t.Fatal(err)
	}
	close(gate)
	s.route.Wait()

	v := s.View()
	if v.Form.AddressText != typed {
		t.Errorf("address text = %q, want %q", v.Form.AddressText, typed)
	}
	if v.Form.Coordinates == nil || *v.Form.Coordinates != plazaSanMartin {
		t.Errorf("coordinates = %v, want first waypoint", v.Form.Coordinates)
	}
	if h.notifier.has(NoticeAddressLabel) {
		t.Error("late reverse geocode label was announced")
	}
}

func TestRoute_ErrorKeepsPreviousRoute(t *testing.T) {
	h := newHarness(t)
	h.router.fail[1] = true
	s := h.open(t)

	addAndSettle(t, s, plazaSanMartin, parqueSarmiento)
	before := s.View().Form

	addAndSettle(t, s, ciudadUniv)
	after := s.View()

	if !reflect.DeepEqual(after.Form.DistanceKm, before.DistanceKm) || after.Form.DurationLabel != before.DurationLabel {
		t.Errorf("route changed after a routing error: %v %q", *after.Form.DistanceKm, after.Form.DurationLabel)
	}
	if !reflect.DeepEqual(after.Form.RouteCoordinates, before.RouteCoordinates) {
		t.Error("route path changed after a routing error")
	}
	if len(after.Waypoints) != 3 {
		t.Errorf("waypoints = %d, want 3", len(after.Waypoints))
	}

	var found bool
	h.notifier.mu.Lock()
	for _, n := range h.notifier.notices {
		if n.Kind == NoticeRouteError {
			found = true
			if !n.Transient || n.Message == "" {
				t.Errorf("route error notice = %+v", n)
			}
		}
	}
	h.notifier.mu.Unlock()
	if !found {
		t.Error("no route error notice")
	}
}

func TestRoute_ClearIsAtomicAndDropsInFlightResults(t *testing.T) {
	h := newHarness(t)
	release := h.router.gate(1)
	s := h.open(t)

	addAndSettle(t, s, plazaSanMartin, parqueSarmiento)
	if _, err := s.AddWaypoint(ciudadUniv); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "routing started", func() bool { return len(h.router.callLog()) == 2 })

	v, err := s.ClearRoute()
	if err != nil {
		t.Fatal(err)
	}
	release()
	s.route.Wait()

	for _, got := range []models.FormSnapshot{v.Form, s.View().Form} {
		if got.AddressText != "" || got.Coordinates != nil || got.DistanceKm != nil ||
			got.DurationLabel != "" || got.RouteCoordinates != nil {
			t.Errorf("location fields survived the clear: %+v", got)
		}
	}
	if len(s.View().Waypoints) != 0 {
		t.Error("waypoints survived the clear")
	}
	if s.View().Address.Status != AddressIdle {
		t.Errorf("address status = %q", s.View().Address.Status)
	}
	if !h.notifier.has(NoticeRouteCleared) {
		t.Error("no route cleared notice")
	}
}

func TestRoute_RejectsInvalidWaypoint(t *testing.T) {
	h := newHarness(t)
	s := h.open(t)

	_, err := s.AddWaypoint(models.Coordinates{Lat: 91, Lng: 0})
	if !errors.Is(err, ErrInvalidWaypoint) {
		t.Fatalf("err = %v, want ErrInvalidWaypoint", err)
	}
	if len(s.View().Waypoints) != 0 {
		t.Error("invalid waypoint was stored")
	}
}

func TestRoute_GeoJSON(t *testing.T) {
	h := newHarness(t)
	s := h.open(t)

	addAndSettle(t, s, plazaSanMartin, parqueSarmiento)
	fc := s.RouteGeoJSON()
	if len(fc.Features) != 3 {
		t.Fatalf("features = %d, want route plus two waypoints", len(fc.Features))
	}
	if fc.Features[0].Properties["kind"] != "route" {
		t.Errorf("first feature kind = %v", fc.Features[0].Properties["kind"])
	}
}
