// Copyright (C) 2025 Wayfarer AI (dev@wayfarer.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes: text-model wire contract.
//
// The JSON tags here are camelCase because they ARE the schema the prompt
// dictates to the text model; changing a tag silently breaks every prompt
// that spells out the contract. The rest of the planner API uses
// snake_case (see trip.go).
package datatypes

import (
	"fmt"

	"github.com/WayfarerAI/WayfarerCore/pkg/geo"
)

// MaxWaypointsPerDay bounds how many intermediate points a proposed day
// may carry. More waypoints mean more routing-provider load and a higher
// chance of an unreachable coordinate, so the prompt asks for 0-4 and the
// schema rejects anything above.
const MaxWaypointsPerDay = 4

// RouteProposal is one proposed day: where to start, where to end, and
// up to MaxWaypointsPerDay stops in between. Produced once by the
// generator; only constraint repair replaces waypoints or the end point,
// and it does so wholesale.
type RouteProposal struct {
	Day         int         `json:"day" validate:"required,gt=0"`
	StartPoint  geo.Point   `json:"startPoint"`
	EndPoint    geo.Point   `json:"endPoint"`
	Waypoints   []geo.Point `json:"waypoints" validate:"max=4"`
	Description string      `json:"description"`
}

// Points returns the day's full ordered point sequence:
// start, waypoints..., end.
func (r *RouteProposal) Points() []geo.Point {
	points := make([]geo.Point, 0, len(r.Waypoints)+2)
	points = append(points, r.StartPoint)
	points = append(points, r.Waypoints...)
	points = append(points, r.EndPoint)
	return points
}

// TripPlan is the complete structured answer expected from the text
// model: trip metadata plus one RouteProposal per day.
//
// # Schema
//
//	{
//	  "city": "Paris, France",
//	  "tripType": "trek",
//	  "estimatedDays": 3,
//	  "routes": [ { "day": 1, "startPoint": {...}, ... } ],
//	  "highlights": ["..."], "equipment": ["..."], "tips": ["..."]
//	}
//
// ValidateSchema is the authoritative acceptance check; a TripPlan that
// fails it costs the generator one attempt.
type TripPlan struct {
	City          string          `json:"city" validate:"required,city_country"`
	TripType      TripType        `json:"tripType" validate:"required"`
	EstimatedDays int             `json:"estimatedDays" validate:"required,gt=0"`
	Routes        []RouteProposal `json:"routes" validate:"required,min=1,dive"`
	Highlights    []string        `json:"highlights"`
	Equipment     []string        `json:"equipment"`
	Tips          []string        `json:"tips"`
}

// ValidateSchema checks a parsed TripPlan against the generation
// contract:
//
//   - city must be "City, Country" (comma required)
//   - tripType must echo the requested type
//   - estimatedDays must be positive and len(routes) must equal it
//   - day count must satisfy the trip type's bounds
//   - every point must pass the numeric bounds check
//
// Land plausibility is deliberately NOT checked here; the routing
// provider is the authority on reachability, and rejecting a plan for a
// point the provider would have accepted wastes a generation attempt.
func (p *TripPlan) ValidateSchema(requested TripType) error {
	if err := tripValidate.Struct(p); err != nil {
		return fmt.Errorf("plan failed structural validation: %w", err)
	}
	if p.TripType != requested {
		return fmt.Errorf("plan echoes trip type %q, requested %q", p.TripType, requested)
	}
	if len(p.Routes) != p.EstimatedDays {
		return fmt.Errorf("plan has %d routes but estimatedDays=%d", len(p.Routes), p.EstimatedDays)
	}
	minDays, maxDays := requested.DayCountBounds()
	if p.EstimatedDays < minDays || p.EstimatedDays > maxDays {
		return fmt.Errorf("%s trips span %d-%d days, plan has %d", requested, minDays, maxDays, p.EstimatedDays)
	}
	for _, route := range p.Routes {
		for _, point := range route.Points() {
			if err := geo.ValidateBounds(point); err != nil {
				return fmt.Errorf("day %d point %q: %w", route.Day, point.Name, err)
			}
		}
	}
	return nil
}
