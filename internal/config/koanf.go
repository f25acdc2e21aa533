// Rodada - Cycling Event Publishing and Route Capture
// Copyright 2026 The Rodada Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rodada/rodada

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths are searched in order; the first existing file wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/rodada/config.yaml",
	"/etc/rodada/config.yml",
}

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        8740,
			Host:        "0.0.0.0",
			Timeout:     30 * time.Second,
			Environment: "development",
		},
		Security: SecurityConfig{
			AuthMode:        "jwt",
			RateLimitReqs:   120,
			RateLimitWindow: time.Minute,
			CORSOrigins:     []string{"*"},
		},
		Geocoder: GeocoderConfig{
			URL:           "https://nominatim.openstreetmap.org",
			UserAgent:     "rodada-capture/1.0 (+https://github.com/rodada/rodada)",
			CountryCodes:  []string{},
			Language:      "es",
			RatePerSecond: 1, // Nominatim usage policy
			CacheSize:     1024,
			CacheTTL:      24 * time.Hour,
			Timeout:       10 * time.Second,
		},
		Router: RouterConfig{
			URL:     "https://router.project-osrm.org",
			Profile: "driving",
			Timeout: 15 * time.Second,
		},
		Drafts: DraftsConfig{
			Backend: "embedded",
			Timeout: 15 * time.Second,
		},
		Capture: CaptureConfig{
			Debounce:         800 * time.Millisecond,
			AutosaveInterval: 30 * time.Second,
			SessionIdleTTL:   2 * time.Hour,
			ReapInterval:     5 * time.Minute,
		},
		Storage: StorageConfig{
			Path:       "/data/rodada",
			GCInterval: 10 * time.Minute,
		},
		Mirror: MirrorConfig{
			Backend: "badger",
			TTL:     30 * 24 * time.Hour,
		},
		Events: EventsConfig{
			Backend:       "gochannel",
			NATSURL:       "nats://127.0.0.1:4222",
			EmbeddedPort:  4222,
			MaxReconnects: -1,
			ReconnectWait: 2 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadWithKoanf loads defaults, then the optional YAML file, then mapped
// environment variables, and validates the result.
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths arrive from the environment as comma-separated strings.
var sliceConfigPaths = []string{
	"security.cors_origins",
	"geocoder.country_codes",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		trimmed := splitList(strVal)
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

func splitList(s string) []string {
	out := []string{}
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

var envMappings = map[string]string{
	// Server
	"http_host":    "server.host",
	"http_port":    "server.port",
	"http_timeout": "server.timeout",
	"environment":  "server.environment",

	// Security
	"auth_mode":           "security.auth_mode",
	"jwt_secret":          "security.jwt_secret",
	"rate_limit_requests": "security.rate_limit_reqs",
	"rate_limit_window":   "security.rate_limit_window",
	"disable_rate_limit":  "security.rate_limit_disabled",
	"cors_origins":        "security.cors_origins",

	// Geocoding
	"geocoder_url":             "geocoder.url",
	"geocoder_user_agent":      "geocoder.user_agent",
	"geocoder_country_codes":   "geocoder.country_codes",
	"geocoder_language":        "geocoder.language",
	"geocoder_rate_per_second": "geocoder.rate_per_second",
	"geocoder_cache_size":      "geocoder.cache_size",
	"geocoder_cache_ttl":       "geocoder.cache_ttl",
	"geocoder_timeout":         "geocoder.timeout",

	// Routing
	"router_url":     "router.url",
	"router_profile": "router.profile",
	"router_timeout": "router.timeout",

	// Drafts
	"drafts_backend": "drafts.backend",
	"drafts_url":     "drafts.url",
	"drafts_token":   "drafts.token",
	"drafts_timeout": "drafts.timeout",

	// Capture sessions
	"capture_debounce":          "capture.debounce",
	"capture_autosave_interval": "capture.autosave_interval",
	"capture_session_idle_ttl":  "capture.session_idle_ttl",
	"capture_reap_interval":     "capture.reap_interval",

	// Storage
	"storage_path":        "storage.path",
	"storage_in_memory":   "storage.in_memory",
	"storage_gc_interval": "storage.gc_interval",
	"mirror_backend":      "mirror.backend",
	"mirror_ttl":          "mirror.ttl",

	// Events
	"events_backend":      "events.backend",
	"nats_url":            "events.nats_url",
	"nats_embedded":       "events.embedded_server",
	"nats_embedded_port":  "events.embedded_port",
	"nats_max_reconnects": "events.max_reconnects",
	"nats_reconnect_wait": "events.reconnect_wait",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc maps HTTP_PORT style variables to koanf paths. Unknown
// variables map to "" and are dropped by the provider.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
