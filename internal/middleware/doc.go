// Rodada - Cycling Event Publishing and Route Capture
// Copyright 2026 The Rodada Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rodada/rodada

/*
Package middleware provides the HTTP middleware of the capture API that chi
does not ship.

  - RequestID: accepts or generates X-Request-ID and puts it in the logging
    context, so every log line of the request carries it.
  - PrometheusMetrics: request count, latency and in-flight gauge, labelled
    by chi route pattern.
  - AccessLog: one structured line per request.

The router stacks them as:

	r.Use(middleware.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.PrometheusMetrics)
	r.Use(middleware.AccessLog)

Both wrappers that record the status code support http.Hijacker, which the
websocket upgrade needs.
*/
package middleware
