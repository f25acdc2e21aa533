// Rodada - Cycling Event Publishing and Route Capture
// Copyright 2026 The Rodada Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rodada/rodada

package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/rodada/rodada/internal/logging"
)

// EmbeddedNATS matches *lifecycle.EmbeddedServer. The server is started
// before the publisher connects, so the service only watches and stops it.
type EmbeddedNATS interface {
	IsRunning() bool
	Shutdown(ctx context.Context) error
}

// ErrNATSStopped is returned when the embedded server stops on its own.
var ErrNATSStopped = errors.New("embedded NATS server stopped")

// EmbeddedNATSService supervises the in-process NATS server.
type EmbeddedNATSService struct {
	server          EmbeddedNATS
	pollInterval    time.Duration
	shutdownTimeout time.Duration
}

// NewEmbeddedNATSService wraps server.
func NewEmbeddedNATSService(server EmbeddedNATS, shutdownTimeout time.Duration) *EmbeddedNATSService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &EmbeddedNATSService{server: server, pollInterval: time.Second, shutdownTimeout: shutdownTimeout}
}

// Serve implements suture.Service. A server found stopped cannot be
// started again in process, so the service ends without restart and the
// publisher keeps trying to reconnect.
func (s *EmbeddedNATSService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
			defer cancel()
			if err := s.server.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("embedded NATS shutdown: %w", err)
			}
			return ctx.Err()
		case <-ticker.C:
			if !s.server.IsRunning() {
				logging.Error().Err(ErrNATSStopped).Msg("Embedded NATS server is not running")
				return suture.ErrDoNotRestart
			}
		}
	}
}

func (s *EmbeddedNATSService) String() string { return "embedded-nats" }
