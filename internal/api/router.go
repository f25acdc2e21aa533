// Rodada - Cycling Event Publishing and Route Capture
// Copyright 2026 The Rodada Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rodada/rodada

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rodada/rodada/internal/auth"
	"github.com/rodada/rodada/internal/middleware"
)

// Router wires handlers and middleware.
type Router struct {
	handler       *Handler
	auth          *auth.Middleware
	chiMiddleware *ChiMiddleware
}

// NewRouter creates a router. chiConfig nil means defaults.
func NewRouter(handler *Handler, authMiddleware *auth.Middleware, chiConfig *ChiMiddlewareConfig) *Router {
	return &Router{
		handler:       handler,
		auth:          authMiddleware,
		chiMiddleware: NewChiMiddleware(chiConfig),
	}
}

// SetupChi builds the route tree.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chiMiddleware.CORS()) // global, so OPTIONS preflight never hits auth
	r.Use(middleware.PrometheusMetrics)
	r.Use(middleware.AccessLog)
	r.Use(chimiddleware.Compress(5, "application/json", "application/geo+json"))

	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimitHealth())
		r.Get("/live", router.handler.HealthLive)
		r.Get("/ready", router.handler.HealthReady)
	})

	r.Route("/api/v1/sessions", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimit())
		r.Use(router.auth.Authenticate)

		r.Post("/", router.handler.OpenSession)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", router.handler.GetSession)
			r.Delete("/", router.handler.CloseSession)
			r.Patch("/fields", router.handler.UpdateFields)
			r.Put("/address", router.handler.SetAddress)
			r.Post("/waypoints", router.handler.AddWaypoint)
			r.Delete("/route", router.handler.ClearRoute)
			r.Get("/route.geojson", router.handler.RouteGeoJSON)
			r.Post("/submit", router.handler.Submit)
			r.Get("/ws", router.handler.WebSocket)
		})
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}
