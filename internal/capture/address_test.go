// Rodada - Cycling Event Publishing and Route Capture
// Copyright 2026 The Rodada Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rodada/rodada

package capture

import (
	"testing"
	"time"
)

func TestAddress_BurstCoalescesIntoOneLookup(t *testing.T) {
	h := newHarness(t)
	s := h.open(t)

	query := "Parque Sarmiento"
	for i := 1; i <= len(query); i++ {
		if _, err := s.SetAddressText(query[:i]); err != nil {
			t.Fatal(err)
		}
		h.clock.Advance(50 * time.Millisecond)
	}
	if got := s.View().Address.Status; got != AddressSearching {
		t.Fatalf("status = %q, want searching", got)
	}

	h.clock.Advance(749 * time.Millisecond)
	if calls := h.geocoder.forwardCalls(); len(calls) != 0 {
		t.Fatalf("lookup before the quiet window elapsed: %v", calls)
	}

	h.clock.Advance(time.Millisecond)
	waitFor(t, "address found", func() bool { return s.View().Address.Status == AddressFound })

	calls := h.geocoder.forwardCalls()
	if len(calls) != 1 || calls[0] != query {
		t.Fatalf("forward calls = %v, want exactly [%q]", calls, query)
	}
	v := s.View()
	if v.Form.Coordinates == nil || *v.Form.Coordinates != parqueSarmiento {
		t.Errorf("coordinates = %v, want %v", v.Form.Coordinates, parqueSarmiento)
	}
	if v.Address.ResolvedLabel != "Parque Sarmiento, Córdoba" {
		t.Errorf("resolved label = %q", v.Address.ResolvedLabel)
	}
	if v.Form.AddressText != query {
		t.Errorf("address text rewritten to %q", v.Form.AddressText)
	}
}

func TestAddress_StaleLookupIsDiscarded(t *testing.T) {
	h := newHarness(t)
	s := h.open(t)

	release := h.geocoder.gate("Parque Sarmiento")
	if _, err := s.SetAddressText("Parque Sarmiento"); err != nil {
		t.Fatal(err)
	}
	h.clock.Advance(DefaultDebounce)
	waitFor(t, "first lookup", func() bool { return len(h.geocoder.forwardCalls()) == 1 })

	if _, err := s.SetAddressText("Plaza San Martín"); err != nil {
		t.Fatal(err)
	}
	h.clock.Advance(DefaultDebounce)
	waitFor(t, "second lookup committed", func() bool { return s.View().Address.Status == AddressFound })

	// The older answer arrives last and must not overwrite the newer one.
	release()
	s.address.Wait()

	v := s.View()
	if v.Form.Coordinates == nil || *v.Form.Coordinates != plazaSanMartin {
		t.Fatalf("coordinates = %v, want %v", v.Form.Coordinates, plazaSanMartin)
	}
	if v.Address.ResolvedLabel != "Plaza San Martín, Córdoba" {
		t.Errorf("resolved label = %q", v.Address.ResolvedLabel)
	}
}

func TestAddress_EditInvalidatesInFlightLookup(t *testing.T) {
	h := newHarness(t)
	s := h.open(t)

	release := h.geocoder.gate("Parque Sarmiento")
	if _, err := s.SetAddressText("Parque Sarmiento"); err != nil {
		t.Fatal(err)
	}
	h.clock.Advance(DefaultDebounce)
	waitFor(t, "lookup started", func() bool { return len(h.geocoder.forwardCalls()) == 1 })

	if _, err := s.SetAddressText("Parque Sarm"); err != nil {
		t.Fatal(err)
	}
	release()
	s.address.Wait()

	v := s.View()
	if v.Form.Coordinates != nil {
		t.Errorf("stale lookup committed coordinates %v", v.Form.Coordinates)
	}
	if v.Address.Status != AddressSearching {
		t.Errorf("status = %q, want searching", v.Address.Status)
	}
}

func TestAddress_NotFoundClearsCoordinates(t *testing.T) {
	h := newHarness(t)
	s := h.open(t)

	if _, err := s.SetAddressText("Parque Sarmiento"); err != nil {
		t.Fatal(err)
	}
	h.clock.Advance(DefaultDebounce)
	waitFor(t, "found", func() bool { return s.View().Address.Status == AddressFound })

	if _, err := s.SetAddressText("zzzz nowhere"); err != nil {
		t.Fatal(err)
	}
	if s.View().Form.Coordinates != nil {
		t.Error("edited text kept the old coordinates")
	}
	h.clock.Advance(DefaultDebounce)
	waitFor(t, "not found", func() bool { return s.View().Address.Status == AddressNotFound })

	if s.View().Form.Coordinates != nil {
		t.Error("coordinates set for an unresolvable address")
	}
}

func TestAddress_EmptyTextGoesIdleWithoutLookup(t *testing.T) {
	h := newHarness(t)
	s := h.open(t)

	if _, err := s.SetAddressText("Parque"); err != nil {
		t.Fatal(err)
	}
	v, err := s.SetAddressText("   ")
	if err != nil {
		t.Fatal(err)
	}
	if v.Address.Status != AddressIdle || v.Form.Coordinates != nil {
		t.Fatalf("address = %+v, coordinates = %v", v.Address, v.Form.Coordinates)
	}

	h.clock.Advance(2 * DefaultDebounce)
	time.Sleep(10 * time.Millisecond)
	if calls := h.geocoder.forwardCalls(); len(calls) != 0 {
		t.Errorf("forward calls = %v, want none", calls)
	}
}

func TestAddress_WaypointsOwnThePosition(t *testing.T) {
	h := newHarness(t)
	s := h.open(t)

	if _, err := s.AddWaypoint(diqueSanRoque); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "label", func() bool { return s.View().Form.AddressText != "" })

	v, err := s.SetAddressText("Punto de encuentro: estación de servicio")
	if err != nil {
		t.Fatal(err)
	}
	if v.Form.Coordinates == nil || *v.Form.Coordinates != diqueSanRoque {
		t.Fatalf("coordinates = %v, want the first waypoint", v.Form.Coordinates)
	}

	h.clock.Advance(2 * DefaultDebounce)
	time.Sleep(10 * time.Millisecond)
	if calls := h.geocoder.forwardCalls(); len(calls) != 0 {
		t.Errorf("forward calls = %v, want none while waypoints exist", calls)
	}
}
