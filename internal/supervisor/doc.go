// Rodada - Cycling Event Publishing and Route Capture
// Copyright 2026 The Rodada Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rodada/rodada

/*
Package supervisor runs the long-lived services of the capture server under
a suture v4 tree.

	RootSupervisor ("rodada")
	├── DataSupervisor ("data-layer")
	│   ├── session-reaper   closes capture sessions idle past the TTL
	│   └── storage-gc       badger value log GC (on-disk storage only)
	├── MessagingSupervisor ("messaging-layer")
	│   ├── websocket-hub
	│   └── embedded-nats    (EVENTS_BACKEND=nats with NATS_EMBEDDED)
	└── APISupervisor ("api-layer")
	    └── http-server

A crashing service is restarted with backoff without touching the other
layers. Supervisor events are logged through sutureslog on top of the
zerolog backed slog handler:

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{})
	_, err = tree.Add(supervisor.LayerMessaging, services.NewWebSocketHubService(hub))
	_, err = tree.Add(supervisor.LayerAPI, services.NewHTTPServerService(server, ":3857", 10*time.Second))
	errCh := tree.ServeBackground(ctx)

Service wrappers live in the services subpackage.
*/
package supervisor
