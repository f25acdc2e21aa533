// Rodada - Cycling Event Publishing and Route Capture
// Copyright 2026 The Rodada Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rodada/rodada

/*
Package config loads the capture service configuration.

Sources are layered with Koanf v2, later layers winning:

 1. Built-in defaults (defaultConfig)
 2. Optional YAML file: $CONFIG_PATH, ./config.yaml, /etc/rodada/config.yaml
 3. Environment variables, mapped explicitly in envTransformFunc

Unmapped environment variables are ignored so the process environment
cannot leak into the config tree.

# Sections

  - server: HTTP listener (HTTP_HOST, HTTP_PORT, HTTP_TIMEOUT, ENVIRONMENT)
  - security: auth mode, JWT secret, CORS, rate limiting
  - geocoder: Nominatim endpoint, user agent, rate and cache
  - router: OSRM endpoint and profile
  - drafts: events backend (remote REST or embedded badger)
  - capture: debounce window, autosave interval, idle session reaping
  - storage, mirror: badger location and mirror retention
  - events: lifecycle event transport (in-process or NATS)
  - logging: level, format, caller

Example config.yaml:

	server:
	  port: 8740
	geocoder:
	  url: https://nominatim.openstreetmap.org
	  country_codes: [ar]
	capture:
	  debounce: 800ms
	  autosave_interval: 30s
*/
package config
