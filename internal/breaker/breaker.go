// Rodada - Cycling Event Publishing and Route Capture
// Copyright 2026 The Rodada Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rodada/rodada

// Package breaker wraps sony/gobreaker with the service's logging and
// Prometheus conventions. Every outbound collaborator (geocoder, router,
// events backend, NATS) calls through one named Breaker.
package breaker

import (
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/rodada/rodada/internal/logging"
	"github.com/rodada/rodada/internal/metrics"
)

// Settings tunes a breaker. Zero values take the defaults below.
type Settings struct {
	// MaxRequests allowed through while half-open. Default 3.
	MaxRequests uint32
	// Interval after which closed-state counts reset. Default 1m.
	Interval time.Duration
	// Timeout spent open before probing. Default 30s.
	Timeout time.Duration
	// MinRequests before the failure ratio is considered. Default 5.
	MinRequests uint32
	// FailureRatio that trips the breaker. Default 0.6.
	FailureRatio float64
	// IsSuccessful classifies errors that must not count as failures, such
	// as a geocoder's "not found". nil counts every error.
	IsSuccessful func(err error) bool
}

// Breaker is a named circuit breaker.
type Breaker struct {
	name       string
	cb         *gobreaker.CircuitBreaker[any]
	successful func(err error) bool
}

// New creates a breaker and initializes its metrics.
func New(name string, s Settings) *Breaker {
	if s.MaxRequests == 0 {
		s.MaxRequests = 3
	}
	if s.Interval == 0 {
		s.Interval = time.Minute
	}
	if s.Timeout == 0 {
		s.Timeout = 30 * time.Second
	}
	if s.MinRequests == 0 {
		s.MinRequests = 5
	}
	if s.FailureRatio == 0 {
		s.FailureRatio = 0.6
	}

	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(name).Set(0)

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: s.MaxRequests,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < s.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			if ratio >= s.FailureRatio {
				logging.Warn().Str("breaker", name).Uint32("failures", counts.TotalFailures).
					Float64("failure_rate", ratio*100).Msg("[CIRCUIT BREAKER] Opening circuit")
				return true
			}
			return false
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().Str("breaker", name).Str("from", StateString(from)).
				Str("to", StateString(to)).Msg("[CIRCUIT BREAKER] State transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, StateString(from), StateString(to)).Inc()
			if to == gobreaker.StateClosed {
				metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(name).Set(0)
			}
		},
		IsSuccessful: s.IsSuccessful,
	}

	return &Breaker{
		name:       name,
		cb:         gobreaker.NewCircuitBreaker[any](settings),
		successful: s.IsSuccessful,
	}
}

// Name returns the breaker name.
func (b *Breaker) Name() string { return b.name }

// State returns the current state.
func (b *Breaker) State() gobreaker.State { return b.cb.State() }

// IsOpen reports whether calls are currently rejected.
func (b *Breaker) IsOpen() bool { return b.cb.State() == gobreaker.StateOpen }

// Rejected reports whether err came from the breaker refusing the call.
func Rejected(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

// Execute runs fn through b and returns its typed result.
func Execute[T any](b *Breaker, fn func() (T, error)) (T, error) {
	var zero T
	result, err := b.cb.Execute(func() (any, error) {
		return fn()
	})

	switch {
	case err == nil || (b.successful != nil && b.successful(err)):
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "success").Inc()
		metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(b.name).Set(0)
	case Rejected(err):
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "rejected").Inc()
		logging.Warn().Err(err).Str("breaker", b.name).Msg("[CIRCUIT BREAKER] Request rejected")
		return zero, err
	default:
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "failure").Inc()
		metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(b.name).
			Set(float64(b.cb.Counts().ConsecutiveFailures))
	}

	// fn's own result is returned alongside its error, e.g. a decoded
	// "not found" body that IsSuccessful let through.
	typed, ok := result.(T)
	if !ok && result != nil {
		return zero, errors.New("circuit breaker: unexpected result type")
	}
	return typed, err
}

// StateString converts a state for logs and metric labels.
func StateString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
