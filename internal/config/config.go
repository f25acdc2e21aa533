// Rodada - Cycling Event Publishing and Route Capture
// Copyright 2026 The Rodada Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rodada/rodada

package config

import (
	"fmt"
	"time"
)

// Config holds all capture service configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Security SecurityConfig `koanf:"security"`
	Geocoder GeocoderConfig `koanf:"geocoder"`
	Router   RouterConfig   `koanf:"router"`
	Drafts   DraftsConfig   `koanf:"drafts"`
	Capture  CaptureConfig  `koanf:"capture"`
	Storage  StorageConfig  `koanf:"storage"`
	Mirror   MirrorConfig   `koanf:"mirror"`
	Events   EventsConfig   `koanf:"events"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Port        int           `koanf:"port"`
	Host        string        `koanf:"host"`
	Timeout     time.Duration `koanf:"timeout"`
	Environment string        `koanf:"environment"` // development, staging, production
}

// Addr returns host:port for net/http.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// SecurityConfig holds authentication and request shaping settings.
type SecurityConfig struct {
	AuthMode          string        `koanf:"auth_mode"` // jwt or none
	JWTSecret         string        `koanf:"jwt_secret"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	CORSOrigins       []string      `koanf:"cors_origins"`
}

// GeocoderConfig configures the Nominatim client.
type GeocoderConfig struct {
	URL           string        `koanf:"url"`
	UserAgent     string        `koanf:"user_agent"`
	CountryCodes  []string      `koanf:"country_codes"`
	Language      string        `koanf:"language"`
	RatePerSecond float64       `koanf:"rate_per_second"`
	CacheSize     int           `koanf:"cache_size"`
	CacheTTL      time.Duration `koanf:"cache_ttl"`
	Timeout       time.Duration `koanf:"timeout"`
}

// RouterConfig configures the OSRM client.
type RouterConfig struct {
	URL     string        `koanf:"url"`
	Profile string        `koanf:"profile"` // driving, cycling, foot
	Timeout time.Duration `koanf:"timeout"`
}

// DraftsConfig selects the draft persistence backend.
type DraftsConfig struct {
	// Backend is "remote" (events REST API) or "embedded" (local badger).
	Backend string        `koanf:"backend"`
	URL     string        `koanf:"url"`
	Token   string        `koanf:"token"`
	Timeout time.Duration `koanf:"timeout"`
}

// CaptureConfig holds editing session timing.
type CaptureConfig struct {
	Debounce         time.Duration `koanf:"debounce"`
	AutosaveInterval time.Duration `koanf:"autosave_interval"`
	SessionIdleTTL   time.Duration `koanf:"session_idle_ttl"`
	ReapInterval     time.Duration `koanf:"reap_interval"`
}

// StorageConfig locates the badger database shared by the mirror and the
// embedded draft store.
type StorageConfig struct {
	Path       string        `koanf:"path"`
	InMemory   bool          `koanf:"in_memory"`
	GCInterval time.Duration `koanf:"gc_interval"`
}

// MirrorConfig controls the local draft mirror.
type MirrorConfig struct {
	Backend string        `koanf:"backend"` // badger or memory
	TTL     time.Duration `koanf:"ttl"`     // 0 keeps entries until cleared
}

// EventsConfig selects the lifecycle event transport.
type EventsConfig struct {
	Backend        string        `koanf:"backend"` // gochannel or nats
	NATSURL        string        `koanf:"nats_url"`
	EmbeddedServer bool          `koanf:"embedded_server"`
	EmbeddedPort   int           `koanf:"embedded_port"`
	MaxReconnects  int           `koanf:"max_reconnects"`
	ReconnectWait  time.Duration `koanf:"reconnect_wait"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Load reads configuration from defaults, the optional YAML file and the
// environment.
func Load() (*Config, error) {
	return LoadWithKoanf()
}
