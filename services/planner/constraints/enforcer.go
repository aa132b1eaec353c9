// Copyright (C) 2025 Wayfarer AI (dev@wayfarer.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package constraints forces resolved trips to satisfy their trip-type
// invariants: per-day distance bounds, day-to-day continuity, and the
// overall loop or point-to-point shape.
//
// Repair exists only where the pipeline defines one. A trek day over its
// distance bound is shortened (fewer waypoints, then a direct route), and
// an open trek loop is closed with one extra routed return leg. Cycling
// gets validation only. Anything that cannot be repaired fails the whole
// trip with CONSTRAINT_VIOLATION.
package constraints

import (
	"context"
	"errors"
	"log/slog"
	"math"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/WayfarerAI/WayfarerCore/pkg/geo"
	"github.com/WayfarerAI/WayfarerCore/services/planner/datatypes"
	"github.com/WayfarerAI/WayfarerCore/services/planner/resolve"
	"github.com/WayfarerAI/WayfarerCore/services/routing"
)

var tracer = otel.Tracer("wayfarer.planner.constraints")

// DayResolver re-routes a repaired day proposal. *resolve.RoutingResolver
// satisfies it; tests substitute fakes.
type DayResolver interface {
	ResolveDay(ctx context.Context, proposal datatypes.RouteProposal, profile routing.Profile) (*datatypes.ResolvedRoute, error)
}

// Enforcer applies trip-type constraints to resolved day routes.
type Enforcer struct {
	resolver DayResolver
}

// NewEnforcer wires the enforcer to the resolver it repairs days with.
func NewEnforcer(resolver DayResolver) *Enforcer {
	return &Enforcer{resolver: resolver}
}

// Enforce checks and repairs routes in place and returns the same slice.
// The error, when non-nil, always carries CONSTRAINT_VIOLATION unless the
// context was cancelled; callers discard the routes either way, so no
// attempt is made to leave them untouched on failure.
func (e *Enforcer) Enforce(ctx context.Context, routes []*datatypes.ResolvedRoute, tripType datatypes.TripType) ([]*datatypes.ResolvedRoute, error) {
	ctx, span := tracer.Start(ctx, "Enforcer.Enforce")
	defer span.End()
	span.SetAttributes(
		attribute.String("constraints.trip_type", string(tripType)),
		attribute.Int("constraints.days", len(routes)),
	)

	if len(routes) == 0 {
		span.SetStatus(codes.Error, "no routes")
		return nil, datatypes.NewPipelineError(datatypes.CodeConstraintViolation, "no resolved routes to enforce")
	}

	if !tripType.IsLoop() {
		// Cycling has no repair ladder: every violation is terminal.
		if err := validatePointToPoint(routes, tripType); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "constraint violation")
			return nil, err
		}
		return routes, nil
	}

	profile := routing.ProfileForTripType(string(tripType))
	minKm, maxKm := tripType.DayDistanceBoundsKm()

	for i, day := range routes {
		if day.DistanceKm <= maxKm {
			continue
		}
		shortened, err := e.shortenDay(ctx, day, maxKm, profile)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "day repair failed")
			return nil, err
		}
		routes[i] = shortened
	}

	if rewrites := enforceContinuity(routes); rewrites > 0 {
		span.SetAttributes(attribute.Int("constraints.continuity_rewrites", rewrites))
	}

	if err := e.closeLoop(ctx, routes, maxKm, profile); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "loop closure failed")
		return nil, err
	}

	if err := validateDayDistances(routes, minKm, maxKm); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "constraint violation")
		return nil, err
	}
	return routes, nil
}

// shortenDay walks the repair ladder for one over-bound day: reroute with
// the first two proposed waypoints, then the first one, then a direct
// start-to-end route. The first variant inside the bound wins. Variants
// that fail to route are skipped; the ladder only ends in an error when
// no variant lands inside the bound.
func (e *Enforcer) shortenDay(ctx context.Context, day *datatypes.ResolvedRoute, maxKm float64, profile routing.Profile) (*datatypes.ResolvedRoute, error) {
	ctx, span := tracer.Start(ctx, "Enforcer.shortenDay")
	defer span.End()
	span.SetAttributes(
		attribute.Int("constraints.day", day.Day),
		attribute.Float64("constraints.over_km", day.DistanceKm),
	)

	var lastErr error
	for _, keep := range []int{2, 1, 0} {
		if keep >= len(day.Waypoints) {
			// Rerouting the same point set cannot shorten anything.
			continue
		}
		variant := datatypes.RouteProposal{
			Day:         day.Day,
			StartPoint:  day.StartPoint,
			EndPoint:    day.EndPoint,
			Waypoints:   day.Waypoints[:keep],
			Description: day.Description,
		}
		shortened, err := e.resolver.ResolveDay(ctx, variant, profile)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			slog.Warn("Shortening variant failed to route",
				"day", day.Day, "waypoints_kept", keep, "error", err)
			lastErr = err
			continue
		}
		if shortened.DistanceKm <= maxKm {
			slog.Info("Shortened over-bound day",
				"day", day.Day,
				"from_km", day.DistanceKm,
				"to_km", shortened.DistanceKm,
				"waypoints_kept", keep)
			span.SetAttributes(attribute.Int("constraints.waypoints_kept", keep))
			return shortened, nil
		}
		slog.Debug("Shortening variant still over bound",
			"day", day.Day, "waypoints_kept", keep, "distance_km", shortened.DistanceKm)
	}
	return nil, datatypes.WrapPipelineError(datatypes.CodeConstraintViolation, lastErr,
		"day %d is %.2f km and cannot be shortened below the %.0f km bound", day.Day, day.DistanceKm, maxKm)
}

// enforceContinuity aligns each day's stored start with the previous
// day's resolved end, and reports how many days were rewritten. The day's
// waypoints and geometry are not re-validated against the new start; the
// routed path already carries the authoritative coordinates.
func enforceContinuity(routes []*datatypes.ResolvedRoute) int {
	rewrites := 0
	for i := 1; i < len(routes); i++ {
		prevEnd := routes[i-1].EndPoint
		if routes[i].StartPoint.SameLocation(prevEnd) {
			continue
		}
		slog.Debug("Rewriting day start for continuity",
			"day", routes[i].Day,
			"from", routes[i].StartPoint.String(),
			"to", prevEnd.String())
		routes[i].StartPoint = prevEnd
		rewrites++
	}
	return rewrites
}

// closeLoop routes a return leg from the trip's final point back to its
// overall start and merges it into the last day. When the merged day
// breaks the distance bound — or the leg cannot be routed — the whole
// last day is rerouted directly to the start instead.
func (e *Enforcer) closeLoop(ctx context.Context, routes []*datatypes.ResolvedRoute, maxKm float64, profile routing.Profile) error {
	first := routes[0].StartPoint
	last := routes[len(routes)-1]
	if last.EndPoint.SameLocation(first) {
		return nil
	}

	ctx, span := tracer.Start(ctx, "Enforcer.closeLoop")
	defer span.End()
	span.SetAttributes(
		attribute.Int("constraints.day", last.Day),
		attribute.Float64("constraints.gap_km", geo.HaversineKm(last.EndPoint, first)),
	)

	returnLeg, err := e.resolver.ResolveDay(ctx, datatypes.RouteProposal{
		Day:         last.Day,
		StartPoint:  last.EndPoint,
		EndPoint:    first,
		Description: last.Description,
	}, profile)
	switch {
	case err == nil:
		merged := mergeReturnLeg(last, returnLeg)
		if merged.DistanceKm <= maxKm {
			routes[len(routes)-1] = merged
			span.SetAttributes(attribute.String("constraints.closure", "merged"))
			slog.Info("Closed trek loop with return leg",
				"day", last.Day, "leg_km", returnLeg.DistanceKm, "day_km", merged.DistanceKm)
			return nil
		}
		slog.Warn("Merged return leg breaks the day bound",
			"day", last.Day, "merged_km", merged.DistanceKm, "max_km", maxKm)
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		slog.Warn("Return leg failed to route", "day", last.Day, "error", err)
	}

	direct, err := e.resolver.ResolveDay(ctx, datatypes.RouteProposal{
		Day:         last.Day,
		StartPoint:  last.StartPoint,
		EndPoint:    first,
		Description: last.Description,
	}, profile)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return datatypes.WrapPipelineError(datatypes.CodeConstraintViolation, err,
			"cannot close the loop on day %d", last.Day)
	}
	if direct.DistanceKm > maxKm {
		return datatypes.NewPipelineError(datatypes.CodeConstraintViolation,
			"day %d direct return is %.2f km, above the %.0f km bound", last.Day, direct.DistanceKm, maxKm)
	}
	routes[len(routes)-1] = direct
	span.SetAttributes(attribute.String("constraints.closure", "direct"))
	slog.Info("Closed trek loop with direct return day", "day", last.Day, "day_km", direct.DistanceKm)
	return nil
}

// mergeReturnLeg appends a routed return leg onto a day. Distances
// re-round after summing so stored totals stay 2-decimal; the leg's
// instructions continue the day's segment numbering; the old end point,
// now travelled through, joins the waypoint list.
func mergeReturnLeg(day, leg *datatypes.ResolvedRoute) *datatypes.ResolvedRoute {
	merged := *day
	merged.EndPoint = leg.EndPoint
	merged.Waypoints = append(append([]geo.Point{}, day.Waypoints...), day.EndPoint)
	merged.DistanceKm = math.Round((day.DistanceKm+leg.DistanceKm)*100) / 100
	merged.DurationMin = day.DurationMin + leg.DurationMin
	merged.Elevation = datatypes.Elevation{
		AscentM:  day.Elevation.AscentM + leg.Elevation.AscentM,
		DescentM: day.Elevation.DescentM + leg.Elevation.DescentM,
	}

	legCoords := leg.Coordinates
	if n := len(day.Coordinates); n > 0 && len(legCoords) > 0 && day.Coordinates[n-1] == legCoords[0] {
		legCoords = legCoords[1:]
	}
	merged.Coordinates = append(append([]geo.Coordinate{}, day.Coordinates...), legCoords...)
	merged.Geometry = resolve.EncodeGeometry(merged.Coordinates)

	segOffset := 0
	for _, ins := range day.Instructions {
		if ins.Segment+1 > segOffset {
			segOffset = ins.Segment + 1
		}
	}
	merged.Instructions = append([]datatypes.Instruction{}, day.Instructions...)
	for _, ins := range leg.Instructions {
		ins.Segment += segOffset
		merged.Instructions = append(merged.Instructions, ins)
	}
	return &merged
}

// validateDayDistances rejects any day outside the inclusive bounds.
func validateDayDistances(routes []*datatypes.ResolvedRoute, minKm, maxKm float64) error {
	for _, day := range routes {
		if day.DistanceKm < minKm {
			return datatypes.NewPipelineError(datatypes.CodeConstraintViolation,
				"day %d is %.2f km, below the %.0f km minimum", day.Day, day.DistanceKm, minKm)
		}
		if day.DistanceKm > maxKm {
			return datatypes.NewPipelineError(datatypes.CodeConstraintViolation,
				"day %d is %.2f km, above the %.0f km maximum", day.Day, day.DistanceKm, maxKm)
		}
	}
	return nil
}

// validatePointToPoint checks the cycling invariants: exactly the allowed
// day count, every day inside its distance bounds, days connected in
// order, and an overall start distinct from the overall finish.
func validatePointToPoint(routes []*datatypes.ResolvedRoute, tripType datatypes.TripType) error {
	minDays, maxDays := tripType.DayCountBounds()
	if len(routes) < minDays || len(routes) > maxDays {
		return datatypes.NewPipelineError(datatypes.CodeConstraintViolation,
			"cycling trips run exactly %d days, got %d", maxDays, len(routes))
	}

	minKm, maxKm := tripType.DayDistanceBoundsKm()
	if err := validateDayDistances(routes, minKm, maxKm); err != nil {
		return err
	}

	for i := 1; i < len(routes); i++ {
		if !routes[i].StartPoint.SameLocation(routes[i-1].EndPoint) {
			return datatypes.NewPipelineError(datatypes.CodeConstraintViolation,
				"day %d does not start where day %d ends", routes[i].Day, routes[i-1].Day)
		}
	}

	if routes[0].StartPoint.SameLocation(routes[len(routes)-1].EndPoint) {
		return datatypes.NewPipelineError(datatypes.CodeConstraintViolation,
			"start and finish coincide; cycling trips are point-to-point")
	}
	return nil
}
