// Rodada - Cycling Event Publishing and Route Capture
// Copyright 2026 The Rodada Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rodada/rodada

/*
Command server runs the Rodada event capture service.

Organizers compose a cycling event in the browser: name, date, meeting
point and a route drawn by clicking on a map. This server holds one capture
session per open form. It resolves the typed address after a short pause,
routes the clicked waypoints, autosaves the form as a draft every thirty
seconds and finally submits it to the events backend.

# Process layout

	RootSupervisor ("rodada")
	├── data-layer
	│   ├── session-reaper
	│   └── storage-gc
	├── messaging-layer
	│   ├── websocket-hub
	│   └── embedded-nats (optional)
	└── api-layer
	    └── http-server

# Configuration

Koanf v2: built-in defaults, then config.yaml (CONFIG_PATH), then
environment variables. The most relevant ones:

	HTTP_PORT, AUTH_MODE, JWT_SECRET, CORS_ORIGINS
	GEOCODER_URL, GEOCODER_USER_AGENT, ROUTER_URL
	DRAFTS_BACKEND (remote or embedded), DRAFTS_URL, DRAFTS_TOKEN
	STORAGE_PATH, STORAGE_IN_MEMORY, MIRROR_BACKEND
	EVENTS_BACKEND (gochannel or nats), NATS_URL, NATS_EMBEDDED
	LOG_LEVEL, LOG_FORMAT

Local development with the embedded draft store:

	export AUTH_MODE=none DRAFTS_BACKEND=embedded STORAGE_IN_MEMORY=true
	./server

SIGINT and SIGTERM stop the tree; open sessions are closed after the HTTP
server drains, and in-flight draft saves are allowed to finish.
*/
package main
