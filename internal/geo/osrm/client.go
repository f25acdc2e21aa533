// Rodada - Cycling Event Publishing and Route Capture
// Copyright 2026 The Rodada Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rodada/rodada

// Package osrm implements geo.Router against an OSRM route service.
package osrm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/rodada/rodada/internal/breaker"
	"github.com/rodada/rodada/internal/config"
	"github.com/rodada/rodada/internal/geo"
	"github.com/rodada/rodada/internal/logging"
	"github.com/rodada/rodada/internal/metrics"
	"github.com/rodada/rodada/internal/models"
)

const providerName = "osrm"

// Client calls the OSRM route service.
type Client struct {
	baseURL string
	profile string
	http    *http.Client
	breaker *breaker.Breaker
}

// New creates a client from configuration.
func New(cfg config.RouterConfig, httpClient *http.Client) *Client {
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	profile := cfg.Profile
	if profile == "" {
		profile = "driving"
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		profile: profile,
		http:    httpClient,
		breaker: breaker.New(providerName, breaker.Settings{
			IsSuccessful: func(err error) bool { return err == nil || errors.Is(err, geo.ErrNoRoute) },
		}),
	}
}

type routeResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Routes  []struct {
		Distance float64           `json:"distance"`
		Duration float64           `json:"duration"`
		Geometry *geojson.Geometry `json:"geometry"`
	} `json:"routes"`
}

// Route computes the fastest route visiting waypoints in order. At least
// two waypoints are required.
func (c *Client) Route(ctx context.Context, waypoints []models.Coordinates) (geo.Route, error) {
	if len(waypoints) < 2 {
		return geo.Route{}, fmt.Errorf("osrm: need at least 2 waypoints, got %d", len(waypoints))
	}
	start := time.Now()

	route, err := breaker.Execute(c.breaker, func() (geo.Route, error) {
		return c.route(ctx, waypoints)
	})

	outcome := geo.Classify(err)
	metrics.RecordGeoRequest(providerName, "route", outcome.String(), time.Since(start))
	if outcome == geo.OutcomeFailed {
		logging.Ctx(ctx).Warn().Err(err).Int("waypoints", len(waypoints)).Msg("OSRM request failed")
	}
	return route, err
}

func (c *Client) route(ctx context.Context, waypoints []models.Coordinates) (geo.Route, error) {
	endpoint := fmt.Sprintf("%s/route/v1/%s/%s?overview=full&geometries=geojson",
		c.baseURL, c.profile, encodeWaypoints(waypoints))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return geo.Route{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return geo.Route{}, fmt.Errorf("failed to query osrm: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return geo.Route{}, fmt.Errorf("failed to read osrm response: %w", err)
	}

	var result routeResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return geo.Route{}, fmt.Errorf("osrm returned status %d: undecodable body: %w", resp.StatusCode, err)
	}
	return result.toRoute(resp.StatusCode)
}

func (r *routeResponse) toRoute(status int) (geo.Route, error) {
	switch r.Code {
	case "Ok":
	case "NoRoute", "NoSegment":
		return geo.Route{}, fmt.Errorf("osrm %s: %s: %w", r.Code, r.Message, geo.ErrNoRoute)
	default:
		return geo.Route{}, fmt.Errorf("osrm returned status %d (%s): %s", status, r.Code, r.Message)
	}
	if len(r.Routes) == 0 {
		return geo.Route{}, fmt.Errorf("osrm: %w", geo.ErrNoRoute)
	}

	best := r.Routes[0]
	out := geo.Route{
		DistanceMeters:  best.Distance,
		DurationSeconds: best.Duration,
	}
	if best.Geometry != nil {
		ls, ok := best.Geometry.Geometry().(orb.LineString)
		if !ok {
			return geo.Route{}, fmt.Errorf("osrm: unexpected geometry %s", best.Geometry.Type)
		}
		out.Path = ls
	}
	return out, nil
}

// encodeWaypoints renders "lng,lat;lng,lat;..." as OSRM expects.
func encodeWaypoints(waypoints []models.Coordinates) string {
	var b strings.Builder
	for i, w := range waypoints {
		if i > 0 {
			b.WriteByte(';')
		}
		b.WriteString(strconv.FormatFloat(w.Lng, 'f', 6, 64))
		b.WriteByte(',')
		b.WriteString(strconv.FormatFloat(w.Lat, 'f', 6, 64))
	}
	return b.String()
}
