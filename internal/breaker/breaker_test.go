// Rodada - Cycling Event Publishing and Route Capture
// Copyright 2026 The Rodada Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rodada/rodada

package breaker

import (
	"errors"
	"testing"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
)

var errBackend = errors.New("backend down")
var errAbsent = errors.New("absent")

func TestExecute_ReturnsTypedResult(t *testing.T) {
	t.Parallel()

	b := New("test-typed", Settings{})
	got, err := Execute(b, func() (int, error) { return 42, nil })
	if err != nil || got != 42 {
		t.Fatalf("Execute() = %v, %v; want 42, nil", got, err)
	}
}

func TestExecute_TripsAfterFailures(t *testing.T) {
	t.Parallel()

	b := New("test-trip", Settings{MinRequests: 3, FailureRatio: 0.5, Timeout: time.Hour})
	for i := 0; i < 3; i++ {
		if _, err := Execute(b, func() (string, error) { return "", errBackend }); !errors.Is(err, errBackend) {
			t.Fatalf("call %d: err = %v, want backend error", i, err)
		}
	}

	if !b.IsOpen() {
		t.Fatalf("State() = %v, want open", StateString(b.State()))
	}
	_, err := Execute(b, func() (string, error) { return "never", nil })
	if !Rejected(err) {
		t.Fatalf("err = %v, want rejection", err)
	}
}

func TestExecute_IsSuccessfulDoesNotTrip(t *testing.T) {
	t.Parallel()

	b := New("test-notfound", Settings{
		MinRequests:  2,
		IsSuccessful: func(err error) bool { return err == nil || errors.Is(err, errAbsent) },
	})
	for i := 0; i < 10; i++ {
		_, _ = Execute(b, func() (int, error) { return 0, errAbsent })
	}
	if b.State() != gobreaker.StateClosed {
		t.Fatalf("State() = %v, want closed", StateString(b.State()))
	}
}

func TestStateString(t *testing.T) {
	t.Parallel()

	tests := map[gobreaker.State]string{
		gobreaker.StateClosed:   "closed",
		gobreaker.StateHalfOpen: "half-open",
		gobreaker.StateOpen:     "open",
		gobreaker.State(9):      "unknown",
	}
	for in, want := range tests {
		if got := StateString(in); got != want {
			t.Errorf("StateString(%v) = %q, want %q", in, got, want)
		}
	}
}
