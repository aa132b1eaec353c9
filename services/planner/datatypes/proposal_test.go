// Copyright (C) 2025 Wayfarer AI (dev@wayfarer.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import (
	"strings"
	"testing"

	"github.com/WayfarerAI/WayfarerCore/pkg/geo"
)

// validTrekPlan builds a two-day trek plan that passes every schema rule.
func validTrekPlan() *TripPlan {
	return &TripPlan{
		City:          "Paris, France",
		TripType:      TripTypeTrek,
		EstimatedDays: 2,
		Routes: []RouteProposal{
			{
				Day:        1,
				StartPoint: geo.Point{Lat: 48.8530, Lng: 2.3499, Name: "Notre-Dame"},
				EndPoint:   geo.Point{Lat: 48.8606, Lng: 2.3376, Name: "Louvre"},
				Waypoints: []geo.Point{
					{Lat: 48.8566, Lng: 2.3425, Name: "Pont Neuf"},
				},
				Description: "Along the Seine",
			},
			{
				Day:        2,
				StartPoint: geo.Point{Lat: 48.8606, Lng: 2.3376, Name: "Louvre"},
				EndPoint:   geo.Point{Lat: 48.8530, Lng: 2.3499, Name: "Notre-Dame"},
			},
		},
		Highlights: []string{"Seine banks"},
	}
}

// =============================================================================
// TripPlan Schema Validation Tests
// =============================================================================

func TestTripPlan_ValidateSchema_Success(t *testing.T) {
	plan := validTrekPlan()
	if err := plan.ValidateSchema(TripTypeTrek); err != nil {
		t.Errorf("expected valid plan, got error: %v", err)
	}
}

func TestTripPlan_ValidateSchema_CityWithoutComma(t *testing.T) {
	plan := validTrekPlan()
	plan.City = "Paris"
	if err := plan.ValidateSchema(TripTypeTrek); err == nil {
		t.Error("expected error for city without country, got nil")
	}
}

func TestTripPlan_ValidateSchema_TripTypeMismatch(t *testing.T) {
	plan := validTrekPlan()
	plan.TripType = TripTypeCycling
	err := plan.ValidateSchema(TripTypeTrek)
	if err == nil {
		t.Fatal("expected error for trip type mismatch, got nil")
	}
	if !strings.Contains(err.Error(), "echoes") {
		t.Errorf("error should explain the echo requirement, got: %v", err)
	}
}

func TestTripPlan_ValidateSchema_RouteCountMismatch(t *testing.T) {
	plan := validTrekPlan()
	plan.EstimatedDays = 3
	if err := plan.ValidateSchema(TripTypeTrek); err == nil {
		t.Error("expected error when routes do not match estimatedDays, got nil")
	}
}

func TestTripPlan_ValidateSchema_TrekTooManyDays(t *testing.T) {
	plan := validTrekPlan()
	day := plan.Routes[0]
	plan.Routes = nil
	for i := 1; i <= 6; i++ {
		day.Day = i
		plan.Routes = append(plan.Routes, day)
	}
	plan.EstimatedDays = 6

	if err := plan.ValidateSchema(TripTypeTrek); err == nil {
		t.Error("expected error for 6-day trek, got nil")
	}
}

func TestTripPlan_ValidateSchema_CyclingRequiresExactlyTwoDays(t *testing.T) {
	plan := validTrekPlan()
	plan.TripType = TripTypeCycling
	plan.Routes = plan.Routes[:1]
	plan.EstimatedDays = 1

	if err := plan.ValidateSchema(TripTypeCycling); err == nil {
		t.Error("expected error for 1-day cycling trip, got nil")
	}
}

func TestTripPlan_ValidateSchema_PointOutOfBounds(t *testing.T) {
	plan := validTrekPlan()
	plan.Routes[1].EndPoint = geo.Point{Lat: 95.0, Lng: 2.35, Name: "impossible"}
	err := plan.ValidateSchema(TripTypeTrek)
	if err == nil {
		t.Fatal("expected error for out-of-range latitude, got nil")
	}
	if !strings.Contains(err.Error(), "day 2") {
		t.Errorf("error should name the offending day, got: %v", err)
	}
}

func TestTripPlan_ValidateSchema_NullIslandRejected(t *testing.T) {
	plan := validTrekPlan()
	plan.Routes[0].Waypoints = []geo.Point{{Lat: 0, Lng: 0, Name: "nowhere"}}
	if err := plan.ValidateSchema(TripTypeTrek); err == nil {
		t.Error("expected error for (0,0) waypoint, got nil")
	}
}

func TestTripPlan_ValidateSchema_OceanPointAccepted(t *testing.T) {
	// Land plausibility is the routing provider's call, not the schema's.
	// A mid-Atlantic point costs a routing round-trip, not a generation
	// attempt.
	plan := validTrekPlan()
	plan.Routes[0].Waypoints = []geo.Point{{Lat: 35.0, Lng: -45.0, Name: "mid-atlantic"}}
	if err := plan.ValidateSchema(TripTypeTrek); err != nil {
		t.Errorf("schema validation must not reject ocean points, got: %v", err)
	}
}

func TestTripPlan_ValidateSchema_TooManyWaypoints(t *testing.T) {
	plan := validTrekPlan()
	wp := geo.Point{Lat: 48.8566, Lng: 2.3425, Name: "stop"}
	plan.Routes[0].Waypoints = []geo.Point{wp, wp, wp, wp, wp}

	if err := plan.ValidateSchema(TripTypeTrek); err == nil {
		t.Errorf("expected error for %d waypoints (max is %d), got nil",
			len(plan.Routes[0].Waypoints), MaxWaypointsPerDay)
	}
}

func TestTripPlan_ValidateSchema_NonPositiveDay(t *testing.T) {
	plan := validTrekPlan()
	plan.Routes[0].Day = 0
	if err := plan.ValidateSchema(TripTypeTrek); err == nil {
		t.Error("expected error for day 0, got nil")
	}
}

// =============================================================================
// RouteProposal Tests
// =============================================================================

func TestRouteProposal_Points_Order(t *testing.T) {
	route := validTrekPlan().Routes[0]
	points := route.Points()

	if len(points) != 3 {
		t.Fatalf("expected 3 points (start, waypoint, end), got %d", len(points))
	}
	if points[0].Name != "Notre-Dame" || points[1].Name != "Pont Neuf" || points[2].Name != "Louvre" {
		t.Errorf("points out of order: %v", points)
	}
}

func TestRouteProposal_Points_NoWaypoints(t *testing.T) {
	route := validTrekPlan().Routes[1]
	points := route.Points()

	if len(points) != 2 {
		t.Fatalf("expected 2 points, got %d", len(points))
	}
}
