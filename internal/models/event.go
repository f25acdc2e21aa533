// Rodada - Cycling Event Publishing and Route Capture
// Copyright 2026 The Rodada Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rodada/rodada

package models

import (
	"fmt"
	"strconv"
	"time"

	"github.com/paulmach/orb"
)

// Coordinates is a WGS84 position. JSON uses the lat/lng naming of the
// browser map widget; orb uses [lng, lat] order, see Point.
type Coordinates struct {
	Lat float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lng float64 `json:"lng" validate:"gte=-180,lte=180"`
}

// Point converts to an orb point (lng, lat).
func (c Coordinates) Point() orb.Point {
	return orb.Point{c.Lng, c.Lat}
}

// CoordinatesFromPoint converts an orb point back.
func CoordinatesFromPoint(p orb.Point) Coordinates {
	return Coordinates{Lat: p.Lat(), Lng: p.Lon()}
}

// Valid reports whether the position lies inside WGS84 bounds.
func (c Coordinates) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}

// String renders "lat, lng" with five decimals (about one metre).
func (c Coordinates) String() string {
	return fmt.Sprintf("%.5f, %.5f", c.Lat, c.Lng)
}

// FormSnapshot is the full set of editable fields of an event under
// composition. It doubles as the draft payload sent to the events backend.
//
// Invariants kept by the capture engine:
//   - Coordinates is nil iff AddressText is empty or unresolved.
//   - RouteCoordinates is non-empty iff two or more waypoints exist and the
//     last routing call succeeded.
//   - DistanceKm and DurationLabel are set together.
type FormSnapshot struct {
	Name             string        `json:"name" validate:"required,max=200"`
	AddressText      string        `json:"address_text" validate:"required,max=500"`
	Coordinates      *Coordinates  `json:"coordinates" validate:"required"`
	Date             string        `json:"date" validate:"required"`
	Description      string        `json:"description" validate:"max=10000"`
	Cost             float64       `json:"cost" validate:"gte=0"`
	Capacity         int           `json:"capacity" validate:"gt=0"`
	TypeID           int64         `json:"type_id" validate:"required"`
	DifficultyID     int64         `json:"difficulty_id" validate:"required"`
	DistanceKm       *float64      `json:"distance_km"`
	DurationLabel    string        `json:"duration_label"`
	RouteCoordinates []Coordinates `json:"route_coordinates"`
}

// Clone returns a deep copy so callers never share pointers or slices with
// the live form.
func (s *FormSnapshot) Clone() FormSnapshot {
	out := *s
	if s.Coordinates != nil {
		c := *s.Coordinates
		out.Coordinates = &c
	}
	if s.DistanceKm != nil {
		d := *s.DistanceKm
		out.DistanceKm = &d
	}
	if s.RouteCoordinates != nil {
		out.RouteCoordinates = append([]Coordinates(nil), s.RouteCoordinates...)
	}
	return out
}

// HasRoute reports whether a routed distance is present.
func (s *FormSnapshot) HasRoute() bool {
	return s.DistanceKm != nil && s.DurationLabel != ""
}

// DraftID identifies a draft record in the events backend.
type DraftID int64

// String implements fmt.Stringer.
func (id DraftID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// ParseDraftID parses a decimal draft id.
func ParseDraftID(s string) (DraftID, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid draft id %q", s)
	}
	return DraftID(n), nil
}

// DraftStatus is the lifecycle status of a draft record.
type DraftStatus string

const (
	DraftStatusDraft     DraftStatus = "draft"
	DraftStatusSubmitted DraftStatus = "submitted"
)

// DraftRecord is the server-side view of a draft.
type DraftRecord struct {
	RemoteID          *DraftID     `json:"remote_id"`
	Owner             string       `json:"owner"`
	LastSavedSnapshot FormSnapshot `json:"last_saved_snapshot"`
	Status            DraftStatus  `json:"status"`
	UpdatedAt         time.Time    `json:"updated_at"`
}

// SubmittedEvent is what the backend returns after finalizing a draft.
type SubmittedEvent struct {
	ID          DraftID     `json:"id"`
	Name        string      `json:"name"`
	Status      DraftStatus `json:"status"`
	SubmittedAt time.Time   `json:"submitted_at"`
}
