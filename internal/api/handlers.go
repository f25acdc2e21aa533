// Rodada - Cycling Event Publishing and Route Capture
// Copyright 2026 The Rodada Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rodada/rodada

package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/rodada/rodada/internal/auth"
	"github.com/rodada/rodada/internal/capture"
	"github.com/rodada/rodada/internal/config"
	"github.com/rodada/rodada/internal/logging"
	"github.com/rodada/rodada/internal/models"
	"github.com/rodada/rodada/internal/validation"
	ws "github.com/rodada/rodada/internal/websocket"
)

// messageTypeSnapshot is the first frame on a session websocket.
const messageTypeSnapshot = "snapshot"

// defaultSubscribeTimeout bounds the wait for the notice hub to accept a
// new watcher.
const defaultSubscribeTimeout = 5 * time.Second

// ReadinessCheck is one dependency checked by /health/ready.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Handler serves the session and health endpoints.
type Handler struct {
	manager   *capture.Manager
	hub       *ws.Hub
	config    *config.Config
	checks    []ReadinessCheck
	startTime time.Time

	subscribeTimeout time.Duration
}

// NewHandler creates the handler. hub may be nil, which disables the
// websocket endpoint.
func NewHandler(manager *capture.Manager, hub *ws.Hub, cfg *config.Config, checks ...ReadinessCheck) *Handler {
	return &Handler{
		manager:   manager,
		hub:       hub,
		config:    cfg,
		checks:    checks,
		startTime: time.Now(),

		subscribeTimeout: defaultSubscribeTimeout,
	}
}

// OpenSession opens the caller's session, resuming a live one.
func (h *Handler) OpenSession(w http.ResponseWriter, r *http.Request) {
	owner := auth.OwnerFromContext(r.Context())
	s, created, err := h.manager.Open(r.Context(), owner)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, "SESSION_OPEN_FAILED", "Could not open session", err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	w.Header().Set("Location", "/api/v1/sessions/"+s.ID())
	respondSuccess(w, r, status, s.View())
}

// GetSession returns the current view.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	respondSuccess(w, r, http.StatusOK, s.View())
}

// UpdateFields applies a partial edit of the plain fields.
func (h *Handler) UpdateFields(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req FieldsRequest
	if apiErr := decodeJSON(w, r, &req); apiErr != nil {
		respondAPIError(w, r, statusForDecode(apiErr), apiErr)
		return
	}
	view, err := s.UpdateFields(req.Patch())
	if err != nil {
		h.respondCaptureError(w, r, err)
		return
	}
	respondSuccess(w, r, http.StatusOK, view)
}

// SetAddress records an edit of the address input.
func (h *Handler) SetAddress(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req AddressRequest
	if apiErr := decodeJSON(w, r, &req); apiErr != nil {
		respondAPIError(w, r, statusForDecode(apiErr), apiErr)
		return
	}
	view, err := s.SetAddressText(*req.Text)
	if err != nil {
		h.respondCaptureError(w, r, err)
		return
	}
	respondSuccess(w, r, http.StatusAccepted, view)
}

// AddWaypoint appends a map click to the route.
func (h *Handler) AddWaypoint(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req WaypointRequest
	if apiErr := decodeJSON(w, r, &req); apiErr != nil {
		respondAPIError(w, r, statusForDecode(apiErr), apiErr)
		return
	}
	view, err := s.AddWaypoint(req.Coordinates())
	if err != nil {
		h.respondCaptureError(w, r, err)
		return
	}
	respondSuccess(w, r, http.StatusAccepted, view)
}

// ClearRoute drops every waypoint together with the location.
func (h *Handler) ClearRoute(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	view, err := s.ClearRoute()
	if err != nil {
		h.respondCaptureError(w, r, err)
		return
	}
	respondSuccess(w, r, http.StatusOK, view)
}

// RouteGeoJSON serves the route as a bare GeoJSON FeatureCollection, the
// format map widgets load directly.
func (h *Handler) RouteGeoJSON(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	data, err := json.Marshal(s.RouteGeoJSON())
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, "ENCODING_FAILED", "Could not encode route", err)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("Failed to write GeoJSON response")
	}
}

// Submit finalizes the event. The remote call outlives a client
// disconnect so a submission is never abandoned half way.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	ev, err := s.Submit(context.WithoutCancel(r.Context()))
	if err != nil {
		h.respondCaptureError(w, r, err)
		return
	}
	respondSuccess(w, r, http.StatusOK, ev)
}

// CloseSession tears the session down. Late results are discarded.
func (h *Handler) CloseSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := h.manager.Close(s.ID()); err != nil {
		h.respondCaptureError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// WebSocket upgrades the connection and subscribes it to the session's
// notices. The first frame is the current view.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		respondError(w, r, http.StatusServiceUnavailable, "WEBSOCKET_UNAVAILABLE", "Notices are not available", nil)
		return
	}
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	upgrader := h.getUpgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	// The request context is not canceled once the connection is hijacked.
	ctx, cancel := context.WithTimeout(r.Context(), h.subscribeTimeout)
	defer cancel()

	client := ws.NewClient(h.hub, conn, s.ID())
	if err := h.hub.Subscribe(ctx, client); err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Str("session_id", s.ID()).Msg("Notice hub unavailable, closing websocket")
		deadline := time.Now().Add(time.Second)
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "notices unavailable"), deadline)
		_ = conn.Close()
		return
	}
	client.Start()
	h.hub.Send(s.ID(), messageTypeSnapshot, s.View())

	// A session closed while subscribing already sent its last notice.
	if s.Context().Err() != nil {
		h.hub.Notify(s.ID(), capture.Notice{Kind: capture.NoticeSessionClosed})
	}
}

// session resolves {id} for the authenticated owner. Sessions of other
// owners are reported as missing.
func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*capture.Session, bool) {
	id := chi.URLParam(r, "id")
	s, err := h.manager.Get(id)
	if err != nil || s.Owner() != auth.OwnerFromContext(r.Context()) {
		respondError(w, r, http.StatusNotFound, "SESSION_NOT_FOUND", "Session not found", nil)
		return nil, false
	}
	return s, true
}

// respondCaptureError maps engine errors onto HTTP statuses.
func (h *Handler) respondCaptureError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		verr   *validation.RequestValidationError
		submit *capture.SubmitError
	)
	switch {
	case errors.As(err, &verr):
		respondAPIError(w, r, http.StatusUnprocessableEntity, toModelError(verr))
	case errors.As(err, &submit):
		respondError(w, r, http.StatusBadGateway, "SUBMISSION_FAILED", submit.Message, err)
	case errors.Is(err, capture.ErrSessionNotFound), errors.Is(err, capture.ErrSessionClosed):
		respondError(w, r, http.StatusNotFound, "SESSION_NOT_FOUND", "Session not found", nil)
	case errors.Is(err, capture.ErrFinalized):
		respondError(w, r, http.StatusConflict, "ALREADY_SUBMITTED", "Event already submitted", nil)
	case errors.Is(err, capture.ErrSubmitInProgress):
		respondError(w, r, http.StatusConflict, "SUBMIT_IN_PROGRESS", "Submission already in progress", nil)
	case errors.Is(err, capture.ErrInvalidWaypoint):
		respondError(w, r, http.StatusBadRequest, "INVALID_WAYPOINT", "Waypoint outside valid coordinate range", nil)
	default:
		respondError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal error", err)
	}
}

func statusForDecode(apiErr *models.APIError) int {
	switch apiErr.Code {
	case "VALIDATION_ERROR":
		return http.StatusUnprocessableEntity
	case "BODY_TOO_LARGE":
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusBadRequest
	}
}

func (h *Handler) getUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkWebSocketOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
}

// checkWebSocketOrigin accepts configured origins only. Browsers always
// send Origin on websocket upgrades, so a missing header is refused.
func (h *Handler) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		logging.Warn().Msg("WebSocket connection rejected: missing Origin header")
		return false
	}
	if h.config == nil {
		return true
	}
	for _, allowed := range h.config.Security.CORSOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	logging.Warn().Str("origin", sanitizeLogValue(origin)).Msg("WebSocket connection rejected from unauthorized origin")
	return false
}
