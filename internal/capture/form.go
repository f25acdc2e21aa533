// Rodada - Cycling Event Publishing and Route Capture
// Copyright 2026 The Rodada Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rodada/rodada

package capture

import (
	"strings"

	"github.com/rodada/rodada/internal/models"
)

// FieldPatch carries user edits of the plain form fields. nil leaves a
// field unchanged. Location and route fields are changed through the
// address and waypoint operations instead.
type FieldPatch struct {
	Name         *string  `json:"name,omitempty" validate:"omitempty,max=200"`
	Date         *string  `json:"date,omitempty"`
	Description  *string  `json:"description,omitempty" validate:"omitempty,max=10000"`
	Cost         *float64 `json:"cost,omitempty" validate:"omitempty,gte=0"`
	Capacity     *int     `json:"capacity,omitempty"`
	TypeID       *int64   `json:"type_id,omitempty"`
	DifficultyID *int64   `json:"difficulty_id,omitempty"`
}

// FormState owns the snapshot under composition and keeps its
// invariants. It is not safe for concurrent use; the session lock guards it.
type FormState struct {
	snap models.FormSnapshot
}

// Snapshot returns a deep copy of the current snapshot.
func (f *FormState) Snapshot() models.FormSnapshot {
	return f.snap.Clone()
}

// Apply merges a patch.
func (f *FormState) Apply(p FieldPatch) {
	if p.Name != nil {
		f.snap.Name = *p.Name
	}
	if p.Date != nil {
		f.snap.Date = *p.Date
	}
	if p.Description != nil {
		f.snap.Description = *p.Description
	}
	if p.Cost != nil {
		f.snap.Cost = *p.Cost
	}
	if p.Capacity != nil {
		f.snap.Capacity = *p.Capacity
	}
	if p.TypeID != nil {
		f.snap.TypeID = *p.TypeID
	}
	if p.DifficultyID != nil {
		f.snap.DifficultyID = *p.DifficultyID
	}
}

// AddressText returns the current address text.
func (f *FormState) AddressText() string {
	return f.snap.AddressText
}

// SetAddressText stores user typed address text. The text is unresolved
// until the resolver commits, so coordinates are dropped unless keep is
// set (a placed route anchors them). Empty text always drops them.
func (f *FormState) SetAddressText(text string, keep bool) {
	f.snap.AddressText = text
	if !keep || strings.TrimSpace(text) == "" {
		f.snap.Coordinates = nil
	}
}

// SetAddressLabel replaces the address text without touching coordinates.
// Used when a reverse geocode names a clicked position.
func (f *FormState) SetAddressLabel(label string) {
	f.snap.AddressText = label
}

// SetCoordinates marks the address as resolved at c.
func (f *FormState) SetCoordinates(c models.Coordinates) {
	f.snap.Coordinates = &c
}

// ClearCoordinates marks the address as unresolved.
func (f *FormState) ClearCoordinates() {
	f.snap.Coordinates = nil
}

// SetRoute stores a routed distance, label and path together.
func (f *FormState) SetRoute(km float64, label string, path []models.Coordinates) {
	f.snap.DistanceKm = &km
	f.snap.DurationLabel = label
	f.snap.RouteCoordinates = append([]models.Coordinates(nil), path...)
	if len(f.snap.RouteCoordinates) == 0 {
		f.snap.RouteCoordinates = nil
	}
}

// ResetRoute clears every location derived field in one step: address
// text, coordinates, distance, duration and the route path.
func (f *FormState) ResetRoute() {
	f.snap.AddressText = ""
	f.snap.Coordinates = nil
	f.snap.DistanceKm = nil
	f.snap.DurationLabel = ""
	f.snap.RouteCoordinates = nil
}

// Hydrate replaces the whole snapshot, e.g. from the local mirror.
func (f *FormState) Hydrate(s models.FormSnapshot) {
	f.snap = s.Clone()
	if f.snap.DistanceKm == nil || f.snap.DurationLabel == "" {
		f.snap.DistanceKm = nil
		f.snap.DurationLabel = ""
	}
	if strings.TrimSpace(f.snap.AddressText) == "" {
		f.snap.Coordinates = nil
	}
}

// Qualifies reports whether the form holds enough to be worth saving:
// name, address text and date non-empty and a resolved position.
func (f *FormState) Qualifies() bool {
	return strings.TrimSpace(f.snap.Name) != "" &&
		strings.TrimSpace(f.snap.AddressText) != "" &&
		strings.TrimSpace(f.snap.Date) != "" &&
		f.snap.Coordinates != nil
}
