// Rodada - Cycling Event Publishing and Route Capture
// Copyright 2026 The Rodada Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rodada/rodada

package models

import "testing"

func TestCoordinatesPointOrder(t *testing.T) {
	t.Parallel()

	c := Coordinates{Lat: -31.4201, Lng: -64.1888}
	p := c.Point()
	if p[0] != -64.1888 || p[1] != -31.4201 {
		t.Fatalf("Point() = %v, want [lng lat]", p)
	}
	if back := CoordinatesFromPoint(p); back != c {
		t.Errorf("CoordinatesFromPoint() = %+v, want %+v", back, c)
	}
	if got := c.String(); got != "-31.42010, -64.18880" {
		t.Errorf("String() = %q", got)
	}
}

func TestCoordinatesValid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		c    Coordinates
		want bool
	}{
		{Coordinates{0, 0}, true},
		{Coordinates{90, 180}, true},
		{Coordinates{90.1, 0}, false},
		{Coordinates{0, -180.5}, false},
	}
	for _, tt := range tests {
		if got := tt.c.Valid(); got != tt.want {
			t.Errorf("%+v.Valid() = %v, want %v", tt.c, got, tt.want)
		}
	}
}

func TestFormSnapshotCloneIsDeep(t *testing.T) {
	t.Parallel()

	km := 12.5
	s := FormSnapshot{
		Name:             "Vuelta al lago",
		Coordinates:      &Coordinates{Lat: 1, Lng: 2},
		DistanceKm:       &km,
		DurationLabel:    "45 min",
		RouteCoordinates: []Coordinates{{1, 2}, {3, 4}},
	}

	c := s.Clone()
	c.Coordinates.Lat = 99
	*c.DistanceKm = 1
	c.RouteCoordinates[0].Lat = 99

	if s.Coordinates.Lat != 1 || *s.DistanceKm != 12.5 || s.RouteCoordinates[0].Lat != 1 {
		t.Fatalf("Clone shares memory with original: %+v", s)
	}
	if !s.HasRoute() {
		t.Error("HasRoute() = false, want true")
	}
}

func TestParseDraftID(t *testing.T) {
	t.Parallel()

	id, err := ParseDraftID("42")
	if err != nil || id != 42 {
		t.Fatalf("ParseDraftID(42) = %v, %v", id, err)
	}
	for _, bad := range []string{"", "abc", "0", "-3"} {
		if _, err := ParseDraftID(bad); err == nil {
			t.Errorf("ParseDraftID(%q) succeeded, want error", bad)
		}
	}
}
