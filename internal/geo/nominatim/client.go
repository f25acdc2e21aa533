// Rodada - Cycling Event Publishing and Route Capture
// Copyright 2026 The Rodada Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rodada/rodada

// Package nominatim implements geo.Geocoder against an OpenStreetMap
// Nominatim server.
//
// The public instance's usage policy allows one request per second and
// requires an identifying User-Agent; both are enforced client side. Forward
// lookups are cached since users retype the same venues.
package nominatim

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"

	"github.com/rodada/rodada/internal/breaker"
	"github.com/rodada/rodada/internal/cache"
	"github.com/rodada/rodada/internal/config"
	"github.com/rodada/rodada/internal/geo"
	"github.com/rodada/rodada/internal/logging"
	"github.com/rodada/rodada/internal/metrics"
	"github.com/rodada/rodada/internal/models"
)

const providerName = "nominatim"

// Client is a rate limited, cached Nominatim client.
type Client struct {
	baseURL      string
	userAgent    string
	countryCodes string
	language     string

	http    *http.Client
	limiter *rate.Limiter
	breaker *breaker.Breaker
	cache   *cache.LRU[string, geo.Place]
	clock   clockwork.Clock
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

// WithClock sets the clock used for cache expiry.
func WithClock(clock clockwork.Clock) Option {
	return func(cl *Client) { cl.clock = clock }
}

// New creates a client from configuration.
func New(cfg config.GeocoderConfig, opts ...Option) *Client {
	rps := cfg.RatePerSecond
	if rps <= 0 {
		rps = 1
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	c := &Client{
		baseURL:      strings.TrimRight(cfg.URL, "/"),
		userAgent:    cfg.UserAgent,
		countryCodes: strings.Join(cfg.CountryCodes, ","),
		language:     cfg.Language,
		http:         &http.Client{Timeout: timeout},
		limiter:      rate.NewLimiter(rate.Limit(rps), 1),
		breaker: breaker.New(providerName, breaker.Settings{
			IsSuccessful: func(err error) bool { return err == nil || errors.Is(err, geo.ErrNotFound) },
		}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.cache = cache.NewLRU[string, geo.Place]("geocode", cfg.CacheSize, cfg.CacheTTL, c.clock)
	return c
}

// place is the subset of a jsonv2 result we use. Nominatim encodes
// coordinates as strings.
type place struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
	Error       string `json:"error"`
}

// Forward resolves free text to the best matching place. An empty result
// returns geo.ErrNotFound.
func (c *Client) Forward(ctx context.Context, query string) (geo.Place, error) {
	key := normalize(query)
	if key == "" {
		return geo.Place{}, geo.ErrNotFound
	}
	if p, ok := c.cache.Get(key); ok {
		return p, nil
	}

	params := url.Values{}
	params.Set("format", "jsonv2")
	params.Set("limit", "1")
	params.Set("q", query)
	if c.countryCodes != "" {
		params.Set("countrycodes", c.countryCodes)
	}

	p, err := c.do(ctx, "forward", "/search", params, func(body []byte) (geo.Place, error) {
		var results []place
		if err := json.Unmarshal(body, &results); err != nil {
			return geo.Place{}, fmt.Errorf("decode search response: %w", err)
		}
		if len(results) == 0 {
			return geo.Place{}, geo.ErrNotFound
		}
		return results[0].toPlace()
	})
	if err != nil {
		return geo.Place{}, err
	}
	c.cache.Add(key, p)
	return p, nil
}

// Reverse returns a human readable label for a position.
func (c *Client) Reverse(ctx context.Context, at models.Coordinates) (geo.Place, error) {
	params := url.Values{}
	params.Set("format", "jsonv2")
	params.Set("lat", strconv.FormatFloat(at.Lat, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(at.Lng, 'f', -1, 64))

	return c.do(ctx, "reverse", "/reverse", params, func(body []byte) (geo.Place, error) {
		var result place
		if err := json.Unmarshal(body, &result); err != nil {
			return geo.Place{}, fmt.Errorf("decode reverse response: %w", err)
		}
		if result.Error != "" || result.DisplayName == "" {
			return geo.Place{}, geo.ErrNotFound
		}
		p, err := result.toPlace()
		if err != nil {
			return geo.Place{}, err
		}
		// Keep the clicked position, not the snapped address node.
		p.Coordinates = at
		return p, nil
	})
}

func (c *Client) do(ctx context.Context, operation, path string, params url.Values, decode func([]byte) (geo.Place, error)) (geo.Place, error) {
	start := time.Now()

	if err := c.limiter.Wait(ctx); err != nil {
		metrics.RecordGeoRequest(providerName, operation, geo.OutcomeFailed.String(), time.Since(start))
		return geo.Place{}, fmt.Errorf("nominatim rate limiter: %w", err)
	}

	p, err := breaker.Execute(c.breaker, func() (geo.Place, error) {
		body, err := c.get(ctx, path, params)
		if err != nil {
			return geo.Place{}, err
		}
		return decode(body)
	})

	outcome := geo.Classify(err)
	metrics.RecordGeoRequest(providerName, operation, outcome.String(), time.Since(start))
	if outcome == geo.OutcomeFailed {
		logging.Ctx(ctx).Warn().Err(err).Str("operation", operation).Msg("Nominatim request failed")
	}
	return p, err
}

func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	if c.language != "" {
		params.Set("accept-language", c.language)
	}
	endpoint := c.baseURL + path + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to query nominatim: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("nominatim returned status %d", resp.StatusCode)
	}

	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to read nominatim response: %w", err)
	}
	return raw, nil
}

func (p place) toPlace() (geo.Place, error) {
	lat, err := strconv.ParseFloat(p.Lat, 64)
	if err != nil {
		return geo.Place{}, fmt.Errorf("invalid latitude %q: %w", p.Lat, err)
	}
	lng, err := strconv.ParseFloat(p.Lon, 64)
	if err != nil {
		return geo.Place{}, fmt.Errorf("invalid longitude %q: %w", p.Lon, err)
	}
	return geo.Place{
		Coordinates: models.Coordinates{Lat: lat, Lng: lng},
		Label:       p.DisplayName,
	}, nil
}

func normalize(q string) string {
	return strings.ToLower(strings.Join(strings.Fields(q), " "))
}
