// Rodada - Cycling Event Publishing and Route Capture
// Copyright 2026 The Rodada Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rodada/rodada

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/thejerf/suture/v4"

	"github.com/rodada/rodada/internal/api"
	"github.com/rodada/rodada/internal/auth"
	"github.com/rodada/rodada/internal/capture"
	"github.com/rodada/rodada/internal/config"
	"github.com/rodada/rodada/internal/drafts"
	"github.com/rodada/rodada/internal/geo/nominatim"
	"github.com/rodada/rodada/internal/geo/osrm"
	"github.com/rodada/rodada/internal/lifecycle"
	"github.com/rodada/rodada/internal/logging"
	"github.com/rodada/rodada/internal/metrics"
	"github.com/rodada/rodada/internal/mirror"
	"github.com/rodada/rodada/internal/storage"
	"github.com/rodada/rodada/internal/supervisor"
	"github.com/rodada/rodada/internal/supervisor/services"
	ws "github.com/rodada/rodada/internal/websocket"
)

const shutdownTimeout = 10 * time.Second

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

//nolint:gocyclo // sequential wiring
func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logging.Info().
		Str("environment", cfg.Server.Environment).
		Str("auth_mode", cfg.Security.AuthMode).
		Str("drafts_backend", cfg.Drafts.Backend).
		Str("events_backend", cfg.Events.Backend).
		Str("version", version).
		Msg("Starting Rodada capture server")
	metrics.AppInfo.WithLabelValues(version, runtime.Version()).Set(1)
	if cfg.ShouldWarnAboutCORS() {
		logging.Warn().Msg("CORS allows any origin; restrict CORS_ORIGINS in production")
	}

	db, err := storage.Open(cfg.Storage)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open storage")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing storage")
		}
	}()

	mirrorStore, err := mirror.Open(cfg.Mirror, db)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open draft mirror")
	}
	draftStore, err := drafts.Open(cfg.Drafts, db)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open draft store")
	}
	if c, ok := draftStore.(io.Closer); ok {
		defer func() {
			if err := c.Close(); err != nil {
				logging.Error().Err(err).Msg("Error closing draft store")
			}
		}()
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: shutdownTimeout,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	publisher, embedded := initEvents(cfg)
	defer func() {
		if err := publisher.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing lifecycle publisher")
		}
	}()
	if embedded != nil {
		supervise(tree, supervisor.LayerMessaging, services.NewEmbeddedNATSService(embedded, shutdownTimeout))
	}

	hub := ws.NewHub()
	supervise(tree, supervisor.LayerMessaging, services.NewWebSocketHubService(hub))

	manager := capture.NewManager(capture.Deps{
		Geocoder:  nominatim.New(cfg.Geocoder),
		Router:    osrm.New(cfg.Router, nil),
		Drafts:    draftStore,
		Mirror:    mirrorStore,
		Notifier:  hub,
		Announcer: publisher,
	}, capture.Options{
		Debounce:         cfg.Capture.Debounce,
		AutosaveInterval: cfg.Capture.AutosaveInterval,
	})
	defer manager.CloseAll()

	supervise(tree, supervisor.LayerData, services.NewSessionReaperService(manager, cfg.Capture.SessionIdleTTL, cfg.Capture.ReapInterval, nil))
	if !cfg.Storage.InMemory && cfg.Storage.GCInterval > 0 {
		supervise(tree, supervisor.LayerData, services.NewPeriodicService("storage-gc", cfg.Storage.GCInterval, nil, func(context.Context) error {
			return storage.RunGC(db)
		}))
	}

	server := &http.Server{
		Handler:           newRouter(cfg, manager, hub, db, publisher).SetupChi(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       60 * time.Second,
	}
	supervise(tree, supervisor.LayerAPI, services.NewHTTPServerService(server, cfg.Server.Addr(), shutdownTimeout))

	layout := tree.Layout()
	for _, l := range supervisor.Layers {
		logging.Info().Str("layer", string(l)).Strs("services", layout[l]).Msg("Supervisor layer ready")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logging.Info().Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Shutdown signal received, waiting for services")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}
	logging.Info().Int("sessions", manager.Len()).Msg("Closing capture sessions")
}

func supervise(tree *supervisor.SupervisorTree, layer supervisor.Layer, svc suture.Service) {
	if _, err := tree.Add(layer, svc); err != nil {
		logging.Fatal().Err(err).Str("service", fmt.Sprint(svc)).Msg("Failed to supervise service")
	}
}

// initEvents builds the lifecycle publisher, starting an embedded NATS
// server first when configured.
func initEvents(cfg *config.Config) (*lifecycle.Publisher, *lifecycle.EmbeddedServer) {
	var (
		embedded *lifecycle.EmbeddedServer
		url      string
		err      error
	)
	if cfg.Events.Backend == "nats" && cfg.Events.EmbeddedServer {
		embedded, err = lifecycle.NewEmbeddedServer(cfg.Events.EmbeddedPort)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to start embedded NATS server")
		}
		url = embedded.ClientURL()
		logging.Info().Str("url", url).Msg("Embedded NATS server started")
	}

	publisher, err := lifecycle.New(cfg.Events, url, logging.NewWatermillLogger("lifecycle"))
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create lifecycle publisher")
	}
	logging.Info().Str("backend", publisher.Backend()).Msg("Lifecycle publisher ready")
	return publisher, embedded
}

func newRouter(cfg *config.Config, manager *capture.Manager, hub *ws.Hub, db *badger.DB, publisher *lifecycle.Publisher) *api.Router {
	var verifier *auth.JWTVerifier
	if cfg.Security.AuthMode != "none" {
		v, err := auth.NewJWTVerifier(cfg.Security.JWTSecret)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to create JWT verifier")
		}
		verifier = v
	} else {
		logging.Warn().Msg("AUTH_MODE=none: every request acts as the local owner")
	}

	handler := api.NewHandler(manager, hub, cfg,
		api.ReadinessCheck{Name: "storage", Check: func(context.Context) error {
			if db.IsClosed() {
				return errors.New("storage closed")
			}
			return nil
		}},
		api.ReadinessCheck{Name: "events", Check: publisher.Check},
	)
	return api.NewRouter(handler, auth.NewMiddleware(verifier, cfg.Security.AuthMode), api.ChiMiddlewareConfigFromSecurity(cfg.Security))
}
