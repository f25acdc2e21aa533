// Rodada - Cycling Event Publishing and Route Capture
// Copyright 2026 The Rodada Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rodada/rodada

// Package geo defines the geospatial collaborators of the capture engine:
// forward/reverse geocoding and multi-waypoint routing, together with the
// formatting rules applied to routed distances and durations.
//
// Concrete providers live in the nominatim and osrm subpackages.
package geo

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/rodada/rodada/internal/models"
)

var (
	// ErrNotFound is returned by a Geocoder when the query matched nothing.
	ErrNotFound = errors.New("geo: no match")

	// ErrNoRoute is returned by a Router when no route connects the waypoints.
	ErrNoRoute = errors.New("geo: no route between waypoints")
)

// Place is a geocoding result.
type Place struct {
	Coordinates models.Coordinates `json:"coordinates"`
	Label       string             `json:"label"`
}

// Route is a routing result over an ordered waypoint list.
type Route struct {
	DistanceMeters  float64
	DurationSeconds float64
	Path            orb.LineString
}

// Geocoder resolves free text to a place and a position back to a label.
type Geocoder interface {
	Forward(ctx context.Context, query string) (Place, error)
	Reverse(ctx context.Context, at models.Coordinates) (Place, error)
}

// Router computes a route visiting every waypoint in order.
type Router interface {
	Route(ctx context.Context, waypoints []models.Coordinates) (Route, error)
}

// Outcome classifies a collaborator result at the ingestion boundary.
type Outcome int

const (
	OutcomeFound Outcome = iota
	OutcomeNotFound
	OutcomeFailed
)

// String implements fmt.Stringer. The values double as metric labels.
func (o Outcome) String() string {
	switch o {
	case OutcomeFound:
		return "found"
	case OutcomeNotFound:
		return "not_found"
	default:
		return "failed"
	}
}

// Classify maps a provider error to an Outcome.
func Classify(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeFound
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrNoRoute):
		return OutcomeNotFound
	default:
		return OutcomeFailed
	}
}

// Kilometers converts meters to kilometers rounded to two decimals.
func Kilometers(meters float64) float64 {
	return math.Round(meters/10) / 100
}

// DurationLabel renders a duration as "H h M min", or "M min" under one
// hour. Seconds are rounded to the nearest whole minute first.
func DurationLabel(seconds float64) string {
	total := int(math.Round(seconds / 60))
	if total < 0 {
		total = 0
	}
	h, m := total/60, total%60
	if h >= 1 {
		return fmt.Sprintf("%d h %d min", h, m)
	}
	return fmt.Sprintf("%d min", m)
}

// FeatureCollection renders waypoints and the routed path as GeoJSON. The
// path feature is omitted when empty. Waypoints carry their 1-based order.
func FeatureCollection(waypoints []models.Coordinates, path orb.LineString) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	if len(path) > 0 {
		f := geojson.NewFeature(path)
		f.Properties["kind"] = "route"
		fc.Append(f)
	}
	for i, w := range waypoints {
		f := geojson.NewFeature(w.Point())
		f.Properties["kind"] = "waypoint"
		f.Properties["order"] = i + 1
		fc.Append(f)
	}
	return fc
}

// PathFromCoordinates converts a coordinate list into an orb line string.
func PathFromCoordinates(cs []models.Coordinates) orb.LineString {
	if len(cs) == 0 {
		return nil
	}
	ls := make(orb.LineString, len(cs))
	for i, c := range cs {
		ls[i] = c.Point()
	}
	return ls
}

// CoordinatesFromPath converts an orb line string to coordinates.
func CoordinatesFromPath(ls orb.LineString) []models.Coordinates {
	if len(ls) == 0 {
		return nil
	}
	out := make([]models.Coordinates, len(ls))
	for i, p := range ls {
		out[i] = models.CoordinatesFromPoint(p)
	}
	return out
}
