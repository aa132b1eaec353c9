// Copyright (C) 2025 Wayfarer AI (dev@wayfarer.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package geo provides pure geometric primitives for trip planning.
//
// This package contains the coordinate types and stateless validation
// checks shared by every pipeline stage: numeric bounds, land-plausibility
// pre-filtering, tolerance-based point equality, and the spherical-earth
// distance/offset math used by the coordinate repair search. Nothing in
// this package performs I/O; authoritative reachability decisions belong
// to the routing provider.
package geo

import (
	"fmt"
	"math"
)

// CoordinateTolerance is the per-axis delta (in degrees) under which two
// points are considered the same location. Roughly 100 m at mid latitudes.
const CoordinateTolerance = 0.001

// Point is a named geographic coordinate.
//
// # Description
//
// Point is the unit of currency across the whole pipeline: proposal
// waypoints, resolved route anchors, and repair candidates are all Points.
// Latitude and longitude are WGS84 decimal degrees. A Point is treated as
// immutable once a route has been resolved through it; repair steps
// replace Points wholesale rather than mutating them.
//
// # Fields
//
//   - Lat: Latitude in [-90, 90].
//   - Lng: Longitude in [-180, 180].
//   - Name: Human-readable label ("Montmartre trailhead"). Required by the
//     proposal schema; informational everywhere else.
type Point struct {
	Lat  float64 `json:"lat"`
	Lng  float64 `json:"lng"`
	Name string  `json:"name"`
}

// String returns a compact representation for logs and error messages.
func (p Point) String() string {
	if p.Name == "" {
		return fmt.Sprintf("(%.5f, %.5f)", p.Lat, p.Lng)
	}
	return fmt.Sprintf("%s (%.5f, %.5f)", p.Name, p.Lat, p.Lng)
}

// SameLocation reports whether both coordinate deltas between p and o are
// below CoordinateTolerance. Used for day-continuity and loop-closure
// checks; deliberately ignores Name.
func (p Point) SameLocation(o Point) bool {
	return math.Abs(p.Lat-o.Lat) < CoordinateTolerance &&
		math.Abs(p.Lng-o.Lng) < CoordinateTolerance
}

// IsNullIsland reports whether the point is the exact (0,0) coordinate,
// the classic marker for an unset or defaulted location.
func (p Point) IsNullIsland() bool {
	return p.Lat == 0 && p.Lng == 0
}

// Coordinate is a single path vertex in GeoJSON axis order: [lng, lat].
//
// Routing providers return path geometry in this order; keeping the raw
// order avoids a silent axis swap between the provider payload and the
// exported trip record.
type Coordinate [2]float64

// Lng returns the longitude component.
func (c Coordinate) Lng() float64 { return c[0] }

// Lat returns the latitude component.
func (c Coordinate) Lat() float64 { return c[1] }

// Bounds is an axis-aligned bounding box over coordinates.
type Bounds struct {
	MinLat, MaxLat float64
	MinLng, MaxLng float64
}

// BoundsOf computes the tight bounding box of a coordinate path.
// Returns a zero Bounds and false when the path is empty.
func BoundsOf(coords []Coordinate) (Bounds, bool) {
	if len(coords) == 0 {
		return Bounds{}, false
	}
	b := Bounds{
		MinLat: coords[0].Lat(), MaxLat: coords[0].Lat(),
		MinLng: coords[0].Lng(), MaxLng: coords[0].Lng(),
	}
	for _, c := range coords[1:] {
		b.MinLat = math.Min(b.MinLat, c.Lat())
		b.MaxLat = math.Max(b.MaxLat, c.Lat())
		b.MinLng = math.Min(b.MinLng, c.Lng())
		b.MaxLng = math.Max(b.MaxLng, c.Lng())
	}
	return b, true
}

// Expand grows the box by margin degrees on every side.
func (b Bounds) Expand(margin float64) Bounds {
	return Bounds{
		MinLat: b.MinLat - margin, MaxLat: b.MaxLat + margin,
		MinLng: b.MinLng - margin, MaxLng: b.MaxLng + margin,
	}
}

// Contains reports whether the point lies inside the box (inclusive).
func (b Bounds) Contains(p Point) bool {
	return p.Lat >= b.MinLat && p.Lat <= b.MaxLat &&
		p.Lng >= b.MinLng && p.Lng <= b.MaxLng
}
