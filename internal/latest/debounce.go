// Rodada - Cycling Event Publishing and Route Capture
// Copyright 2026 The Rodada Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rodada/rodada

package latest

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Debouncer groups rapid Calls into one callback that fires after delay has
// elapsed since the last Call. Each Call cancels and re-arms the single
// timer, so a burst of N calls inside the window yields one callback.
//
// Call, Cancel, Pending and Stop must be called with the owner lock held.
// The callback runs with the owner lock held.
type Debouncer struct {
	clock    clockwork.Clock
	delay    time.Duration
	locker   sync.Locker
	callback func()

	timer   clockwork.Timer
	seq     uint64
	pending bool
	stopped bool
}

// NewDebouncer creates a debouncer. A nil clock uses the real clock.
func NewDebouncer(clock clockwork.Clock, delay time.Duration, locker sync.Locker, callback func()) *Debouncer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Debouncer{
		clock:    clock,
		delay:    delay,
		locker:   locker,
		callback: callback,
	}
}

// Call (re)arms the timer. No-op after Stop.
func (d *Debouncer) Call() {
	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.seq++
	d.pending = true
	armed := d.seq

	d.timer = d.clock.AfterFunc(d.delay, func() {
		d.locker.Lock()
		defer d.locker.Unlock()
		// A Stop()'d timer may still fire if it raced with the re-arm.
		if d.stopped || !d.pending || d.seq != armed {
			return
		}
		d.pending = false
		d.timer = nil
		d.callback()
	})
}

// Cancel drops a pending callback. The debouncer stays usable.
func (d *Debouncer) Cancel() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.seq++
	d.pending = false
}

// Pending reports whether a callback is armed.
func (d *Debouncer) Pending() bool {
	return d.pending
}

// Stop cancels any pending callback and disarms the debouncer for good.
func (d *Debouncer) Stop() {
	d.Cancel()
	d.stopped = true
}
