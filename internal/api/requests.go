// Rodada - Cycling Event Publishing and Route Capture
// Copyright 2026 The Rodada Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rodada/rodada

package api

import (
	"github.com/rodada/rodada/internal/capture"
	"github.com/rodada/rodada/internal/models"
)

// FieldsRequest is the body of PATCH /sessions/{id}/fields. Absent fields
// stay unchanged. Bounds here are shape checks only; submission rules
// (capacity > 0, required fields) apply at submit time.
type FieldsRequest struct {
	Name         *string  `json:"name" validate:"omitempty,max=200"`
	Date         *string  `json:"date" validate:"omitempty,max=64"`
	Description  *string  `json:"description" validate:"omitempty,max=10000"`
	Cost         *float64 `json:"cost" validate:"omitempty,gte=0"`
	Capacity     *int     `json:"capacity" validate:"omitempty,gte=0"`
	TypeID       *int64   `json:"type_id" validate:"omitempty,gte=0"`
	DifficultyID *int64   `json:"difficulty_id" validate:"omitempty,gte=0"`
}

// Patch converts the request to a capture patch.
func (r FieldsRequest) Patch() capture.FieldPatch {
	return capture.FieldPatch{
		Name:         r.Name,
		Date:         r.Date,
		Description:  r.Description,
		Cost:         r.Cost,
		Capacity:     r.Capacity,
		TypeID:       r.TypeID,
		DifficultyID: r.DifficultyID,
	}
}

// AddressRequest is the body of PUT /sessions/{id}/address. Empty text is
// allowed and clears the location.
type AddressRequest struct {
	Text *string `json:"text" validate:"required,max=500"`
}

// WaypointRequest is the body of POST /sessions/{id}/waypoints.
type WaypointRequest struct {
	Lat *float64 `json:"lat" validate:"required,gte=-90,lte=90"`
	Lng *float64 `json:"lng" validate:"required,gte=-180,lte=180"`
}

// Coordinates returns the validated position.
func (r WaypointRequest) Coordinates() models.Coordinates {
	return models.Coordinates{Lat: *r.Lat, Lng: *r.Lng}
}
