// Rodada - Cycling Event Publishing and Route Capture
// Copyright 2026 The Rodada Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rodada/rodada

// Package metrics declares the Prometheus collectors of the capture service.
// Collectors register on the default registry via promauto and are served at
// /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	// Capture sessions
	CaptureSessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "capture_sessions_active",
			Help: "Current number of open editing sessions",
		},
	)

	CaptureSessionsOpened = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "capture_sessions_opened_total",
			Help: "Editing sessions opened, by origin (fresh, recovered, resumed)",
		},
		[]string{"origin"},
	)

	CaptureSessionsReaped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "capture_sessions_reaped_total",
			Help: "Idle editing sessions closed by the reaper",
		},
	)

	CaptureStaleDiscarded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "capture_stale_results_discarded_total",
			Help: "Asynchronous results dropped because a newer request superseded them",
		},
		[]string{"operation"},
	)

	CaptureAutosaves = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "capture_autosaves_total",
			Help: "Autosave attempts by kind (create, update) and result",
		},
		[]string{"kind", "result"},
	)

	CaptureSubmissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "capture_submissions_total",
			Help: "Submission attempts by result (submitted, invalid, rejected)",
		},
		[]string{"result"},
	)

	// Geospatial collaborators
	GeoRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geo_requests_total",
			Help: "Geocoding and routing calls by provider, operation and outcome",
		},
		[]string{"provider", "operation", "outcome"},
	)

	GeoRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "geo_request_duration_seconds",
			Help:    "Latency of geocoding and routing calls",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider", "operation"},
	)

	// Cache
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	// WebSocket
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections",
			Help: "Current number of active WebSocket connections",
		},
	)

	WSMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_sent_total",
			Help: "Total number of WebSocket messages sent",
		},
	)

	WSErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_errors_total",
			Help: "Total number of WebSocket errors",
		},
		[]string{"error_type"},
	)

	// Circuit breakers
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // success, failure, rejected
	)

	CircuitBreakerConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_consecutive_failures",
			Help: "Current number of consecutive failures",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Lifecycle events
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lifecycle_events_published_total",
			Help: "Lifecycle events published by topic and result",
		},
		[]string{"topic", "result"},
	)

	// Storage
	StorageGCRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storage_value_log_gc_runs_total",
			Help: "Badger value log GC passes by result (rewritten, nothing, error)",
		},
		[]string{"result"},
	)

	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_info",
			Help: "Application version and build information",
		},
		[]string{"version", "go_version"},
	)
)

// RecordAPIRequest records one served request.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest adjusts the in-flight gauge.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordGeoRequest records one geocoding or routing call.
func RecordGeoRequest(provider, operation, outcome string, duration time.Duration) {
	GeoRequests.WithLabelValues(provider, operation, outcome).Inc()
	GeoRequestDuration.WithLabelValues(provider, operation).Observe(duration.Seconds())
}

// RecordStaleDiscard counts a superseded async result.
func RecordStaleDiscard(operation string) {
	CaptureStaleDiscarded.WithLabelValues(operation).Inc()
}

// RecordAutosave counts an autosave attempt.
func RecordAutosave(kind string, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	CaptureAutosaves.WithLabelValues(kind, result).Inc()
}

// RecordSubmission counts a submission attempt.
func RecordSubmission(result string) {
	CaptureSubmissions.WithLabelValues(result).Inc()
}

// RecordEventPublished counts a lifecycle event publish.
func RecordEventPublished(topic string, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	EventsPublished.WithLabelValues(topic, result).Inc()
}
