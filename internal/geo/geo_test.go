// Rodada - Cycling Event Publishing and Route Capture
// Copyright 2026 The Rodada Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rodada/rodada

package geo

import (
	"errors"
	"fmt"
	"testing"

	"github.com/goccy/go-json"
	"github.com/paulmach/orb"

	"github.com/rodada/rodada/internal/models"
)

func TestKilometers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		meters float64
		want   float64
	}{
		{0, 0},
		{1234, 1.23},
		{1235, 1.24},
		{12345.6, 12.35},
		{42195, 42.2},
	}
	for _, tt := range tests {
		if got := Kilometers(tt.meters); got != tt.want {
			t.Errorf("Kilometers(%v) = %v, want %v", tt.meters, got, tt.want)
		}
	}
}

func TestDurationLabel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		seconds float64
		want    string
	}{
		{0, "0 min"},
		{29, "0 min"},
		{30, "1 min"},
		{2520, "42 min"},
		{3569, "59 min"},
		{3570, "1 h 0 min"},
		{3600, "1 h 0 min"},
		{5580, "1 h 33 min"},
		{-5, "0 min"},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.seconds), func(t *testing.T) {
			if got := DurationLabel(tt.seconds); got != tt.want {
				t.Errorf("DurationLabel(%v) = %q, want %q", tt.seconds, got, tt.want)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want Outcome
	}{
		{nil, OutcomeFound},
		{ErrNotFound, OutcomeNotFound},
		{fmt.Errorf("nominatim: %w", ErrNotFound), OutcomeNotFound},
		{ErrNoRoute, OutcomeNotFound},
		{errors.New("connection refused"), OutcomeFailed},
	}
	for _, tt := range tests {
		if got := Classify(tt.err); got != tt.want {
			t.Errorf("Classify(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestFeatureCollection(t *testing.T) {
	t.Parallel()

	wps := []models.Coordinates{{Lat: -31.4135, Lng: -64.1811}, {Lat: -31.4280, Lng: -64.1850}}
	fc := FeatureCollection(wps, PathFromCoordinates(wps))
	if len(fc.Features) != 3 {
		t.Fatalf("features = %d, want 3", len(fc.Features))
	}
	if _, ok := fc.Features[0].Geometry.(orb.LineString); !ok {
		t.Errorf("first feature geometry = %T, want LineString", fc.Features[0].Geometry)
	}

	data, err := json.Marshal(fc)
	if err != nil {
		t.Fatal(err)
	}
	var decoded struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.Type != "FeatureCollection" {
		t.Errorf("type = %q", decoded.Type)
	}

	if got := fc.Features[1].Properties["order"]; got != 1 {
		t.Errorf("order = %v, want 1", got)
	}
	p := fc.Features[2].Geometry.(orb.Point)
	if p.Lon() != -64.1850 || p.Lat() != -31.4280 {
		t.Errorf("point = %v, want lng,lat order", p)
	}
}

func TestFeatureCollection_NoPath(t *testing.T) {
	t.Parallel()

	fc := FeatureCollection([]models.Coordinates{{Lat: 1, Lng: 2}}, nil)
	if len(fc.Features) != 1 {
		t.Fatalf("features = %d, want 1", len(fc.Features))
	}
}

func TestPathRoundTrip(t *testing.T) {
	t.Parallel()

	if PathFromCoordinates(nil) != nil || CoordinatesFromPath(nil) != nil {
		t.Error("empty inputs should map to nil")
	}
	cs := []models.Coordinates{{Lat: -31.4, Lng: -64.2}}
	if got := CoordinatesFromPath(PathFromCoordinates(cs)); got[0] != cs[0] {
		t.Errorf("round trip = %v, want %v", got, cs)
	}
}
