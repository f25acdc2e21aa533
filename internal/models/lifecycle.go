// Rodada - Cycling Event Publishing and Route Capture
// Copyright 2026 The Rodada Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rodada/rodada

package models

import "time"

// DraftSaved is announced after an autosave reached the draft backend.
type DraftSaved struct {
	SessionID string    `json:"session_id"`
	Owner     string    `json:"owner"`
	DraftID   DraftID   `json:"draft_id"`
	Created   bool      `json:"created"`
	SavedAt   time.Time `json:"saved_at"`
}

// EventSubmitted is announced after an event was finalized.
type EventSubmitted struct {
	SessionID  string         `json:"session_id"`
	Owner      string         `json:"owner"`
	Event      SubmittedEvent `json:"event"`
	DistanceKm *float64       `json:"distance_km,omitempty"`
}
