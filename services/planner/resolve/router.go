// Copyright (C) 2025 Wayfarer AI (dev@wayfarer.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package resolve

import (
	"context"
	"errors"
	"log/slog"
	"math"

	"github.com/twpayne/go-polyline"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/WayfarerAI/WayfarerCore/pkg/geo"
	"github.com/WayfarerAI/WayfarerCore/services/planner/datatypes"
	"github.com/WayfarerAI/WayfarerCore/services/routing"
)

// RoutingResolver turns proposed days into measured routes.
type RoutingResolver struct {
	routing routing.Client
}

// NewRoutingResolver wires the resolver to a routing provider.
func NewRoutingResolver(client routing.Client) *RoutingResolver {
	return &RoutingResolver{routing: client}
}

// ResolveDay routes one proposed day through its ordered points and
// normalizes the provider's answer into a ResolvedRoute.
//
// Failures are classified for the caller's repair decision:
//
//   - CodeRoutingUnreachable: a point failed pre-validation or the
//     provider could not snap it to the network. Repairable via
//     CoordinateResolver.
//   - CodeRoutingFailed: any other provider failure. Not repairable.
//
// Context cancellation propagates unchanged.
func (r *RoutingResolver) ResolveDay(ctx context.Context, proposal datatypes.RouteProposal, profile routing.Profile) (*datatypes.ResolvedRoute, error) {
	ctx, span := tracer.Start(ctx, "RoutingResolver.ResolveDay")
	defer span.End()
	span.SetAttributes(
		attribute.Int("resolve.day", proposal.Day),
		attribute.String("resolve.profile", string(profile)),
	)

	points := proposal.Points()

	// Cheap geometric checks before a rate-limited network call. A
	// pre-validation failure takes the same repair path as a provider
	// rejection: nudge the points and retry once.
	for _, p := range points {
		if err := geo.Validate(p); err != nil {
			span.SetStatus(codes.Error, "point failed pre-validation")
			return nil, datatypes.WrapPipelineError(datatypes.CodeRoutingUnreachable, err,
				"day %d point %q is not plausibly routable", proposal.Day, p.Name)
		}
	}

	route, err := r.routing.Directions(ctx, profile, points)
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		if errors.Is(err, routing.ErrUnreachable) {
			span.SetStatus(codes.Error, "point not routable")
			return nil, datatypes.WrapPipelineError(datatypes.CodeRoutingUnreachable, err,
				"day %d has a point the routing provider cannot reach", proposal.Day)
		}
		span.SetStatus(codes.Error, "routing failed")
		return nil, datatypes.WrapPipelineError(datatypes.CodeRoutingFailed, err,
			"routing day %d failed", proposal.Day)
	}

	resolved := normalizeRoute(proposal, route)
	span.SetAttributes(
		attribute.Float64("resolve.distance_km", resolved.DistanceKm),
		attribute.Int("resolve.duration_min", resolved.DurationMin),
	)
	slog.Debug("Resolved day route",
		"day", proposal.Day,
		"distance_km", resolved.DistanceKm,
		"duration_min", resolved.DurationMin,
		"points", len(points),
	)
	return resolved, nil
}

// normalizeRoute converts provider units into trip units: kilometers at
// 2 decimals, whole minutes, whole meters of climb, and one flat
// instruction list tagged with the originating segment index.
func normalizeRoute(proposal datatypes.RouteProposal, route *routing.Route) *datatypes.ResolvedRoute {
	resolved := &datatypes.ResolvedRoute{
		Day:         proposal.Day,
		StartPoint:  proposal.StartPoint,
		EndPoint:    proposal.EndPoint,
		Waypoints:   proposal.Waypoints,
		Description: proposal.Description,
		DistanceKm:  math.Round(route.DistanceMeters/1000*100) / 100,
		DurationMin: int(math.Round(route.DurationSeconds / 60)),
		Geometry:    EncodeGeometry(route.Geometry),
		Coordinates: route.Geometry,
		Elevation: datatypes.Elevation{
			AscentM:  int(math.Round(route.AscentMeters)),
			DescentM: int(math.Round(route.DescentMeters)),
		},
	}

	for segIdx, seg := range route.Segments {
		for _, step := range seg.Steps {
			name := step.Name
			if name == "-" {
				// The provider's placeholder for unnamed ways.
				name = ""
			}
			resolved.Instructions = append(resolved.Instructions, datatypes.Instruction{
				Segment:   segIdx,
				Text:      step.Instruction,
				Name:      name,
				DistanceM: step.DistanceMeters,
				DurationS: step.DurationSeconds,
			})
		}
	}
	return resolved
}

// EncodeGeometry renders a coordinate path as a standard encoded polyline
// (latitude first, 1e5 precision). Every stored route uses this one
// encoding, independent of what the provider's wire format was, so map
// clients and the loop-closure merge can treat day geometries uniformly.
func EncodeGeometry(coords []geo.Coordinate) string {
	if len(coords) == 0 {
		return ""
	}
	pairs := make([][]float64, len(coords))
	for i, c := range coords {
		pairs[i] = []float64{c.Lat(), c.Lng()}
	}
	return string(polyline.EncodeCoords(pairs))
}
