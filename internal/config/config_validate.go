// Rodada - Cycling Event Publishing and Route Capture
// Copyright 2026 The Rodada Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rodada/rodada

package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Validate checks that the configuration is complete and consistent.
func (c *Config) Validate() error {
	validators := []func() error{
		c.validateServer,
		c.validateSecurity,
		c.validateGeocoder,
		c.validateRouter,
		c.validateDrafts,
		c.validateCapture,
		c.validateStorage,
		c.validateEvents,
		c.validateLogging,
	}
	for _, v := range validators {
		if err := v(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535")
	}
	return nil
}

const (
	minRateLimitRequests = 1
	maxRateLimitRequests = 100000
	minRateLimitWindow   = time.Second
	maxRateLimitWindow   = time.Hour
	minJWTSecretLength   = 32
)

func (c *Config) validateSecurity() error {
	switch c.Security.AuthMode {
	case "none":
		if c.IsProduction() {
			return fmt.Errorf("AUTH_MODE=none is not allowed when ENVIRONMENT=production")
		}
	case "jwt":
		if len(c.Security.JWTSecret) < minJWTSecretLength {
			return fmt.Errorf("JWT_SECRET must be at least %d characters when AUTH_MODE=jwt", minJWTSecretLength)
		}
	default:
		return fmt.Errorf("AUTH_MODE must be one of: none, jwt")
	}

	if c.Security.AuthMode != "none" && c.hasWildcardCORS() && c.IsProduction() {
		return fmt.Errorf("CORS_ORIGINS=* (wildcard) is not allowed in production with authentication enabled")
	}

	if c.Security.RateLimitDisabled {
		return nil
	}
	if c.Security.RateLimitReqs < minRateLimitRequests || c.Security.RateLimitReqs > maxRateLimitRequests {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be between %d and %d", minRateLimitRequests, maxRateLimitRequests)
	}
	if c.Security.RateLimitWindow < minRateLimitWindow || c.Security.RateLimitWindow > maxRateLimitWindow {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be between %v and %v", minRateLimitWindow, maxRateLimitWindow)
	}
	return nil
}

func (c *Config) hasWildcardCORS() bool {
	for _, origin := range c.Security.CORSOrigins {
		if origin == "*" {
			return true
		}
	}
	return false
}

// ShouldWarnAboutCORS reports a wildcard CORS policy with authentication on.
func (c *Config) ShouldWarnAboutCORS() bool {
	return c.Security.AuthMode != "none" && c.hasWildcardCORS()
}

// IsProduction returns true for ENVIRONMENT=production (or prod).
func (c *Config) IsProduction() bool {
	env := strings.ToLower(c.Server.Environment)
	return env == "production" || env == "prod"
}

func (c *Config) validateGeocoder() error {
	if err := validateHTTPURL("GEOCODER_URL", c.Geocoder.URL); err != nil {
		return err
	}
	// Nominatim rejects anonymous clients.
	if strings.TrimSpace(c.Geocoder.UserAgent) == "" {
		return fmt.Errorf("GEOCODER_USER_AGENT is required")
	}
	if c.Geocoder.RatePerSecond <= 0 {
		return fmt.Errorf("GEOCODER_RATE_PER_SECOND must be positive")
	}
	if c.Geocoder.CacheSize < 0 {
		return fmt.Errorf("GEOCODER_CACHE_SIZE must not be negative")
	}
	return nil
}

var validRouterProfiles = map[string]bool{
	"driving": true,
	"cycling": true,
	"bike":    true,
	"foot":    true,
}

func (c *Config) validateRouter() error {
	if err := validateHTTPURL("ROUTER_URL", c.Router.URL); err != nil {
		return err
	}
	if !validRouterProfiles[c.Router.Profile] {
		return fmt.Errorf("ROUTER_PROFILE must be one of: driving, cycling, bike, foot")
	}
	return nil
}

func (c *Config) validateDrafts() error {
	switch c.Drafts.Backend {
	case "embedded":
		return nil
	case "remote":
		return validateHTTPURL("DRAFTS_URL", c.Drafts.URL)
	default:
		return fmt.Errorf("DRAFTS_BACKEND must be one of: remote, embedded")
	}
}

func (c *Config) validateCapture() error {
	if c.Capture.Debounce <= 0 {
		return fmt.Errorf("CAPTURE_DEBOUNCE must be positive")
	}
	if c.Capture.AutosaveInterval <= 0 {
		return fmt.Errorf("CAPTURE_AUTOSAVE_INTERVAL must be positive")
	}
	if c.Capture.SessionIdleTTL < c.Capture.AutosaveInterval {
		return fmt.Errorf("CAPTURE_SESSION_IDLE_TTL must not be shorter than CAPTURE_AUTOSAVE_INTERVAL")
	}
	if c.Capture.ReapInterval <= 0 {
		return fmt.Errorf("CAPTURE_REAP_INTERVAL must be positive")
	}
	return nil
}

func (c *Config) validateStorage() error {
	needsBadger := c.Mirror.Backend == "badger" || c.Drafts.Backend == "embedded"
	if needsBadger && !c.Storage.InMemory && c.Storage.Path == "" {
		return fmt.Errorf("STORAGE_PATH is required unless STORAGE_IN_MEMORY=true")
	}
	switch c.Mirror.Backend {
	case "badger", "memory":
	default:
		return fmt.Errorf("MIRROR_BACKEND must be one of: badger, memory")
	}
	if c.Mirror.TTL < 0 {
		return fmt.Errorf("MIRROR_TTL must not be negative")
	}
	return nil
}

func (c *Config) validateEvents() error {
	switch c.Events.Backend {
	case "gochannel":
		return nil
	case "nats":
		if c.Events.EmbeddedServer {
			if c.Events.EmbeddedPort < 1 || c.Events.EmbeddedPort > 65535 {
				return fmt.Errorf("NATS_EMBEDDED_PORT must be between 1 and 65535")
			}
			return nil
		}
		if !strings.HasPrefix(c.Events.NATSURL, "nats://") && !strings.HasPrefix(c.Events.NATSURL, "tls://") {
			return fmt.Errorf("NATS_URL must start with nats:// or tls://")
		}
		return nil
	default:
		return fmt.Errorf("EVENTS_BACKEND must be one of: gochannel, nats")
	}
}

var validLogLevels = map[string]bool{
	"trace": true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validLogFormats = map[string]bool{
	"json":    true,
	"console": true,
}

func (c *Config) validateLogging() error {
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("LOG_LEVEL must be one of: trace, debug, info, warn, error")
	}
	if c.Logging.Format != "" && !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("LOG_FORMAT must be one of: json, console")
	}
	return nil
}

func validateHTTPURL(name, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s is required", name)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s is not a valid URL: %w", name, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must use http or https", name)
	}
	if u.Host == "" {
		return fmt.Errorf("%s must include a host", name)
	}
	return nil
}
