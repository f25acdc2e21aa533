// Rodada - Cycling Event Publishing and Route Capture
// Copyright 2026 The Rodada Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rodada/rodada

/*
Package api exposes the capture engine over HTTP using the chi router.

Every editing view of the browser maps to one capture session. The browser
opens (or resumes) its session, streams edits to it and listens on the
session websocket for asynchronous notices: address resolution, route
updates, recovered drafts and submission outcomes.

# Routes

	POST   /api/v1/sessions                    open or resume, 201
	GET    /api/v1/sessions/{id}               current view
	PATCH  /api/v1/sessions/{id}/fields        plain form fields
	PUT    /api/v1/sessions/{id}/address       {"text": "..."}
	POST   /api/v1/sessions/{id}/waypoints     {"lat": .., "lng": ..}
	DELETE /api/v1/sessions/{id}/route         clear all waypoints
	GET    /api/v1/sessions/{id}/route.geojson waypoints and routed path
	POST   /api/v1/sessions/{id}/submit        200, 422 or 502
	DELETE /api/v1/sessions/{id}               teardown, 204
	GET    /api/v1/sessions/{id}/ws            notice stream

	GET /api/v1/health/live
	GET /api/v1/health/ready
	GET /metrics

All JSON responses use the models.APIResponse envelope. Sessions belonging
to another owner answer 404, never 403, so ids cannot be discovered.

# Middleware

Global: request id, RealIP, Recoverer, CORS, Prometheus metrics, access
log and gzip for JSON bodies. The session routes add per-IP rate limiting
(go-chi/httprate) and bearer token authentication.
*/
package api
