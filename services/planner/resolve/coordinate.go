// Copyright (C) 2025 Wayfarer AI (dev@wayfarer.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package resolve converts proposed coordinates into routable reality.
//
// Two collaborators live here. RoutingResolver turns an ordered point
// list into a measured path via the routing provider, normalizing units
// on the way out. CoordinateResolver repairs points the provider rejects:
// it searches expanding rings of nearby candidates for one the provider
// accepts, falling back to the geocoded city centroid so that resolution
// never fails outright.
package resolve

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/WayfarerAI/WayfarerCore/pkg/geo"
	"github.com/WayfarerAI/WayfarerCore/services/geocode"
	"github.com/WayfarerAI/WayfarerCore/services/routing"
)

// tracer is the OpenTelemetry tracer for coordinate and routing resolution.
var tracer = otel.Tracer("wayfarer.planner.resolve")

// radiusScheduleMeters is the expanding search schedule. Smallest radius
// first: the repair must stay as close to the proposed location as the
// path network allows.
var radiusScheduleMeters = []float64{100, 200, 500, 1000}

// ringSize is the number of evenly spaced candidates per radius, in
// addition to the four cardinal offsets. The even ring is rotated half a
// step off north so the cardinals are not duplicates.
const ringSize = 8

// probeConcurrency bounds parallel probing within one radius tier.
const probeConcurrency = 4

// PointCache remembers successful resolutions across requests, keyed by
// travel profile and the original coordinate. A nil cache disables it.
type PointCache interface {
	// Lookup returns the previously resolved point for original, if any.
	Lookup(ctx context.Context, profile string, original geo.Point) (geo.Point, bool)

	// Remember stores a resolution. Failures are non-fatal; the resolver
	// only logs them.
	Remember(ctx context.Context, profile string, original, resolved geo.Point) error
}

// CoordinateResolverConfig tunes the repair search.
type CoordinateResolverConfig struct {
	// Cache consults and feeds a cross-request point cache. Nil disables.
	Cache PointCache

	// Parallel probes each radius tier's candidates concurrently. The
	// selected candidate is identical either way: smallest radius first,
	// then ring order.
	Parallel bool
}

// CoordinateResolver nudges unroutable points onto the path network.
type CoordinateResolver struct {
	routing  routing.Client
	geocode  geocode.Client
	cache    PointCache
	parallel bool
}

// NewCoordinateResolver wires the resolver to its providers.
func NewCoordinateResolver(routingClient routing.Client, geocodeClient geocode.Client, cfg CoordinateResolverConfig) *CoordinateResolver {
	return &CoordinateResolver{
		routing:  routingClient,
		geocode:  geocodeClient,
		cache:    cfg.Cache,
		parallel: cfg.Parallel,
	}
}

// Resolve returns a routable point for the given one, preserving the
// proposed location as closely as possible. It never fails: after the
// ring search is exhausted it geocodes the city and returns its centroid,
// and if even geocoding is down it hands the original point back so the
// caller's own routing retry produces the authoritative error.
//
// Resolving an already-routable point returns it unchanged.
func (r *CoordinateResolver) Resolve(ctx context.Context, point geo.Point, cityName string, profile routing.Profile) geo.Point {
	ctx, span := tracer.Start(ctx, "CoordinateResolver.Resolve")
	defer span.End()
	span.SetAttributes(
		attribute.String("resolve.point", point.String()),
		attribute.String("resolve.profile", string(profile)),
	)

	if r.cache != nil {
		if hit, ok := r.cache.Lookup(ctx, string(profile), point); ok {
			span.SetAttributes(attribute.String("resolve.outcome", "cache"))
			slog.Debug("Point cache hit", "point", point.String(), "resolved", hit.String())
			return hit
		}
	}

	// Radius 0: the point may already be routable. The resolver is called
	// for every point of a failing day, not just the guilty one.
	if r.probe(ctx, point, profile) {
		span.SetAttributes(attribute.String("resolve.outcome", "already-routable"))
		r.remember(ctx, profile, point, point)
		return point
	}

	for _, radius := range radiusScheduleMeters {
		candidates := ringAround(point, radius)
		idx := r.probeTier(ctx, candidates, profile)
		if idx < 0 {
			continue
		}
		resolved := candidates[idx]
		span.SetAttributes(
			attribute.String("resolve.outcome", "ring"),
			attribute.Float64("resolve.radius_m", radius),
			attribute.Int("resolve.candidate", idx),
		)
		slog.Info("Repaired unroutable point",
			"original", point.String(),
			"resolved", resolved.String(),
			"radius_m", radius,
		)
		r.remember(ctx, profile, point, resolved)
		return resolved
	}

	// Guaranteed last resort: the settlement centroid.
	result, err := r.geocode.Search(ctx, cityName)
	if err != nil {
		span.SetAttributes(attribute.String("resolve.outcome", "degraded"))
		slog.Error("Centroid fallback failed, returning original point",
			"city", cityName,
			"point", point.String(),
			"error", err,
		)
		return point
	}
	centroid := geo.Point{Lat: result.Point.Lat, Lng: result.Point.Lng, Name: cityName}
	span.SetAttributes(attribute.String("resolve.outcome", "centroid"))
	slog.Warn("Ring search exhausted, using city centroid",
		"original", point.String(),
		"centroid", centroid.String(),
	)
	r.remember(ctx, profile, point, centroid)
	return centroid
}

// ringAround builds the candidate ring for one radius: ringSize evenly
// spaced bearings starting half a step off north, then the four cardinal
// offsets. Ring order is part of the resolution contract — callers get
// the first acceptable candidate in exactly this order.
func ringAround(origin geo.Point, radiusMeters float64) []geo.Point {
	const step = 360.0 / ringSize
	candidates := make([]geo.Point, 0, ringSize+4)
	for i := 0; i < ringSize; i++ {
		candidates = append(candidates, geo.Offset(origin, step/2+float64(i)*step, radiusMeters))
	}
	for _, bearing := range []float64{0, 90, 180, 270} {
		candidates = append(candidates, geo.Offset(origin, bearing, radiusMeters))
	}
	return candidates
}

// probe asks the provider for a trivial same-point route. Any error —
// unreachable or otherwise — counts as rejection; the resolver has no
// better option than trying the next candidate.
func (r *CoordinateResolver) probe(ctx context.Context, p geo.Point, profile routing.Profile) bool {
	_, err := r.routing.Directions(ctx, profile, []geo.Point{p, p})
	return err == nil
}

// probeTier returns the index of the first accepted candidate, or -1.
func (r *CoordinateResolver) probeTier(ctx context.Context, candidates []geo.Point, profile routing.Profile) int {
	if !r.parallel {
		for i, c := range candidates {
			if r.probe(ctx, c, profile) {
				return i
			}
		}
		return -1
	}

	// Parallel probing still selects by ring order, not completion order.
	accepted := make([]bool, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(probeConcurrency)
	for i, c := range candidates {
		g.Go(func() error {
			accepted[i] = r.probe(gctx, c, profile)
			return nil
		})
	}
	_ = g.Wait()
	for i, ok := range accepted {
		if ok {
			return i
		}
	}
	return -1
}

// remember feeds the cache, when one is configured.
func (r *CoordinateResolver) remember(ctx context.Context, profile routing.Profile, original, resolved geo.Point) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Remember(ctx, string(profile), original, resolved); err != nil {
		slog.Debug("Point cache write failed", "error", err)
	}
}
