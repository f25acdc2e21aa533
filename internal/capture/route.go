// Rodada - Cycling Event Publishing and Route Capture
// Copyright 2026 The Rodada Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rodada/rodada

package capture

import (
	"context"
	"errors"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/rodada/rodada/internal/geo"
	"github.com/rodada/rodada/internal/latest"
	"github.com/rodada/rodada/internal/logging"
	"github.com/rodada/rodada/internal/metrics"
	"github.com/rodada/rodada/internal/models"
)

// ErrInvalidWaypoint is returned for positions outside WGS84 bounds.
var ErrInvalidWaypoint = errors.New("waypoint outside valid coordinate range")

// routeMessage is shown when routing fails; the previous route stays.
const routeMessage = "No se pudo calcular la ruta. Se mantiene el último recorrido."

// RouteHooks receives route builder results. All hooks run with the
// session lock held.
type RouteHooks struct {
	Updated  func()
	Failed   func(message string)
	Labelled func(label string)
}

// RouteBuilder accumulates clicked waypoints and keeps the routed
// distance, duration and path of the whole list.
type RouteBuilder struct {
	ctx       context.Context
	form      *FormState
	router    geo.Router
	geocoder  geo.Geocoder
	waypoints []models.Coordinates
	path      orb.LineString
	routing   *latest.Operation[geo.Route]
	naming    *latest.Operation[geo.Place]
	hooks     RouteHooks
}

func newRouteBuilder(ctx context.Context, mu sync.Locker, form *FormState, router geo.Router,
	geocoder geo.Geocoder, hooks RouteHooks) *RouteBuilder {
	discard := latest.WithDiscardHook(metrics.RecordStaleDiscard)
	return &RouteBuilder{
		ctx:      ctx,
		form:     form,
		router:   router,
		geocoder: geocoder,
		routing:  latest.NewOperation[geo.Route]("route", mu, discard),
		naming:   latest.NewOperation[geo.Place]("reverse-geocode", mu, discard),
		hooks:    hooks,
	}
}

// Waypoints returns a copy of the placed waypoints.
func (b *RouteBuilder) Waypoints() []models.Coordinates {
	return append([]models.Coordinates(nil), b.waypoints...)
}

// Len returns the number of placed waypoints.
func (b *RouteBuilder) Len() int {
	return len(b.waypoints)
}

// Add appends a waypoint. The first one fixes the event position and is
// reverse geocoded into the address text. From the second one on, the
// whole list is routed again.
func (b *RouteBuilder) Add(c models.Coordinates) error {
	if !c.Valid() {
		return ErrInvalidWaypoint
	}
	b.waypoints = append(b.waypoints, c)

	if len(b.waypoints) == 1 {
		b.form.SetCoordinates(c)
		b.naming.Start(b.ctx, func(ctx context.Context) (geo.Place, error) {
			return b.geocoder.Reverse(ctx, c)
		}, func(p geo.Place, err error) {
			label := p.Label
			if err != nil || label == "" {
				if geo.Classify(err) == geo.OutcomeFailed {
					logging.Ctx(b.ctx).Warn().Err(err).Msg("Reverse geocode failed")
				}
				label = c.String()
			}
			b.form.SetAddressLabel(label)
			if b.hooks.Labelled != nil {
				b.hooks.Labelled(label)
			}
		})
		return nil
	}

	all := b.Waypoints()
	b.routing.Start(b.ctx, func(ctx context.Context) (geo.Route, error) {
		return b.router.Route(ctx, all)
	}, b.commit)
	return nil
}

// commit applies the latest routing result. Lock held.
func (b *RouteBuilder) commit(r geo.Route, err error) {
	if err != nil {
		logging.Ctx(b.ctx).Warn().Err(err).Int("waypoints", len(b.waypoints)).Msg("Routing failed, keeping previous route")
		if b.hooks.Failed != nil {
			b.hooks.Failed(routeMessage)
		}
		return
	}
	b.path = r.Path
	b.form.SetRoute(geo.Kilometers(r.DistanceMeters), geo.DurationLabel(r.DurationSeconds), geo.CoordinatesFromPath(r.Path))
	if b.hooks.Updated != nil {
		b.hooks.Updated()
	}
}

// Clear drops every waypoint and every location derived field at once.
// In-flight routing and naming results are discarded.
func (b *RouteBuilder) Clear() {
	b.routing.Invalidate()
	b.naming.Invalidate()
	b.waypoints = nil
	b.path = nil
	b.form.ResetRoute()
}

// DropPendingLabel discards an in-flight reverse geocode, so text typed
// by the user is not overwritten by the name of the first waypoint.
func (b *RouteBuilder) DropPendingLabel() {
	b.naming.Invalidate()
}

// Restore reinstates waypoints and path after hydration.
func (b *RouteBuilder) Restore(waypoints []models.Coordinates, path []models.Coordinates) {
	b.waypoints = append([]models.Coordinates(nil), waypoints...)
	b.path = geo.PathFromCoordinates(path)
}

// GeoJSON renders the waypoints and routed path.
func (b *RouteBuilder) GeoJSON() *geojson.FeatureCollection {
	return geo.FeatureCollection(b.waypoints, b.path)
}

// Close discards in-flight results for good.
func (b *RouteBuilder) Close() {
	b.routing.Close()
	b.naming.Close()
}

// Wait blocks until in-flight calls return. Call without the lock.
func (b *RouteBuilder) Wait() {
	b.routing.Wait()
	b.naming.Wait()
}
