// Rodada - Cycling Event Publishing and Route Capture
// Copyright 2026 The Rodada Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rodada/rodada

package capture

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/rodada/rodada/internal/geo"
	"github.com/rodada/rodada/internal/latest"
	"github.com/rodada/rodada/internal/logging"
	"github.com/rodada/rodada/internal/metrics"
	"github.com/rodada/rodada/internal/models"
)

// AddressStatus is the resolver state shown next to the address input.
type AddressStatus string

const (
	AddressIdle      AddressStatus = "idle"
	AddressSearching AddressStatus = "searching"
	AddressFound     AddressStatus = "found"
	AddressNotFound  AddressStatus = "not-found"
)

// AddressState is the resolver output.
type AddressState struct {
	Status        AddressStatus       `json:"status"`
	Coordinates   *models.Coordinates `json:"coordinates,omitempty"`
	ResolvedLabel string              `json:"resolved_label,omitempty"`
}

// AddressResolver turns typed address text into coordinates. Edits inside
// the debounce window collapse into one lookup, and only the latest lookup
// may commit.
type AddressResolver struct {
	ctx      context.Context
	form     *FormState
	geocoder geo.Geocoder
	debounce *latest.Debouncer
	lookup   *latest.Operation[geo.Place]
	state    AddressState

	// suppressed reports whether placed waypoints own the position.
	suppressed func() bool
	changed    func(AddressState)
}

func newAddressResolver(ctx context.Context, mu sync.Locker, clock clockwork.Clock, delay time.Duration,
	form *FormState, geocoder geo.Geocoder, suppressed func() bool, changed func(AddressState)) *AddressResolver {
	r := &AddressResolver{
		ctx:        ctx,
		form:       form,
		geocoder:   geocoder,
		state:      AddressState{Status: AddressIdle},
		suppressed: suppressed,
		changed:    changed,
	}
	r.debounce = latest.NewDebouncer(clock, delay, mu, r.fire)
	r.lookup = latest.NewOperation[geo.Place]("forward-geocode", mu, latest.WithDiscardHook(metrics.RecordStaleDiscard))
	return r
}

// State returns the current resolver output.
func (r *AddressResolver) State() AddressState {
	s := r.state
	if s.Coordinates != nil {
		c := *s.Coordinates
		s.Coordinates = &c
	}
	return s
}

// TextChanged records an edit of the address input and schedules a lookup.
func (r *AddressResolver) TextChanged(text string) {
	anchored := r.suppressed()
	r.form.SetAddressText(text, anchored)

	// Any edit makes an in-flight lookup answer an outdated question.
	r.lookup.Invalidate()

	if strings.TrimSpace(text) == "" {
		r.debounce.Cancel()
		r.set(AddressState{Status: AddressIdle})
		return
	}
	if anchored {
		r.debounce.Cancel()
		return
	}
	r.debounce.Call()
	if r.state.Status != AddressSearching || r.state.Coordinates != nil {
		r.set(AddressState{Status: AddressSearching})
	}
}

// Suspend stops pending and in-flight lookups, e.g. when the first
// waypoint takes over the position.
func (r *AddressResolver) Suspend() {
	r.debounce.Cancel()
	r.lookup.Invalidate()
	if r.state.Status == AddressSearching {
		r.set(AddressState{Status: AddressIdle})
	}
}

// Anchor reports a position fixed by the route.
func (r *AddressResolver) Anchor(c models.Coordinates, label string) {
	r.Suspend()
	r.set(AddressState{Status: AddressFound, Coordinates: &c, ResolvedLabel: label})
}

// Label records the name found for an anchored position.
func (r *AddressResolver) Label(label string) {
	if r.state.Status == AddressFound {
		r.state.ResolvedLabel = label
	}
}

// Reset returns to idle, dropping any pending work.
func (r *AddressResolver) Reset() {
	r.debounce.Cancel()
	r.lookup.Invalidate()
	r.set(AddressState{Status: AddressIdle})
}

// Restore sets the state after hydration without notifying.
func (r *AddressResolver) Restore(s AddressState) {
	r.state = s
}

// Pending reports whether a lookup is armed.
func (r *AddressResolver) Pending() bool {
	return r.debounce.Pending()
}

// Close stops the debouncer and discards in-flight results for good.
func (r *AddressResolver) Close() {
	r.debounce.Stop()
	r.lookup.Close()
}

// Wait blocks until in-flight lookups return. Call without the lock.
func (r *AddressResolver) Wait() {
	r.lookup.Wait()
}

// fire runs when the debounce window elapses. Lock held.
func (r *AddressResolver) fire() {
	if r.suppressed() {
		return
	}
	query := strings.TrimSpace(r.form.AddressText())
	if query == "" {
		return
	}
	r.lookup.Start(r.ctx, func(ctx context.Context) (geo.Place, error) {
		return r.geocoder.Forward(ctx, query)
	}, r.commit)
}

// commit applies the latest lookup result. Lock held.
func (r *AddressResolver) commit(p geo.Place, err error) {
	switch geo.Classify(err) {
	case geo.OutcomeFound:
		r.form.SetCoordinates(p.Coordinates)
		c := p.Coordinates
		r.set(AddressState{Status: AddressFound, Coordinates: &c, ResolvedLabel: p.Label})
	case geo.OutcomeNotFound:
		r.form.ClearCoordinates()
		r.set(AddressState{Status: AddressNotFound})
	default:
		logging.Ctx(r.ctx).Warn().Err(err).Msg("Address lookup failed")
		r.form.ClearCoordinates()
		r.set(AddressState{Status: AddressNotFound})
	}
}

func (r *AddressResolver) set(s AddressState) {
	r.state = s
	if r.changed != nil {
		r.changed(r.State())
	}
}
