// Rodada - Cycling Event Publishing and Route Capture
// Copyright 2026 The Rodada Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rodada/rodada

package capture

// NoticeKind identifies a notice sent to the browser.
type NoticeKind string

// Notice kinds. Autosave outcomes are deliberately absent.
const (
	NoticeAddressStatus    NoticeKind = "address_status"
	NoticeAddressLabel     NoticeKind = "address_label"
	NoticeRouteUpdated     NoticeKind = "route_updated"
	NoticeRouteError       NoticeKind = "route_error"
	NoticeRouteCleared     NoticeKind = "route_cleared"
	NoticeDraftRecovered   NoticeKind = "draft_recovered"
	NoticeSubmitted        NoticeKind = "submitted"
	NoticeSubmissionFailed NoticeKind = "submission_failed"
	// NoticeSessionClosed is the last notice of a session: it was closed
	// or reaped, and watchers should disconnect.
	NoticeSessionClosed NoticeKind = "session_closed"
)

// Notice is one asynchronous message for the editing view. Transient
// notices are informational and never block editing.
type Notice struct {
	Kind      NoticeKind `json:"kind"`
	Message   string     `json:"message,omitempty"`
	Transient bool       `json:"transient,omitempty"`
	View      *View      `json:"view,omitempty"`
}
