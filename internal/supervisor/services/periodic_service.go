// Rodada - Cycling Event Publishing and Route Capture
// Copyright 2026 The Rodada Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rodada/rodada

package services

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/rodada/rodada/internal/logging"
)

// PeriodicService runs a task on a fixed interval. A failing run is
// logged and retried on the next tick; it never stops the service, so
// suture only restarts it after a panic.
type PeriodicService struct {
	name     string
	interval time.Duration
	task     func(ctx context.Context) error
	clock    clockwork.Clock
}

// NewPeriodicService creates the service. clock nil means the real clock.
func NewPeriodicService(name string, interval time.Duration, clock clockwork.Clock, task func(ctx context.Context) error) *PeriodicService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &PeriodicService{name: name, interval: interval, task: task, clock: clock}
}

// NewSessionReaperService closes capture sessions idle for longer than
// ttl, checking every interval.
func NewSessionReaperService(reaper interface{ ReapIdle(time.Duration) int }, ttl, interval time.Duration, clock clockwork.Clock) *PeriodicService {
	return NewPeriodicService("session-reaper", interval, clock, func(context.Context) error {
		reaper.ReapIdle(ttl)
		return nil
	})
}

// Serve implements suture.Service.
func (p *PeriodicService) Serve(ctx context.Context) error {
	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	logger := logging.WithComponent(p.name)
	ctx = logging.ContextWithLogger(ctx, logger)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
			if err := p.task(ctx); err != nil {
				logger.Warn().Err(err).Msg("Periodic task failed")
			}
		}
	}
}

func (p *PeriodicService) String() string { return p.name }
