// Copyright (C) 2025 Wayfarer AI (dev@wayfarer.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package routing provides path computation between ordered coordinates.
//
// The Client interface is the only routing capability the pipeline sees.
// Routes come back decoded but unrounded (meters, seconds); presentation
// rounding belongs to the resolver layer that builds pipeline datatypes.
package routing

import (
	"context"
	"errors"

	"github.com/WayfarerAI/WayfarerCore/pkg/geo"
)

// Profile selects the travel mode the provider optimizes for.
type Profile string

const (
	ProfileFootHiking     Profile = "foot-hiking"
	ProfileCyclingRegular Profile = "cycling-regular"
)

// ProfileForTripType maps the pipeline's trip type onto a provider profile.
func ProfileForTripType(tripType string) Profile {
	if tripType == "cycling" {
		return ProfileCyclingRegular
	}
	return ProfileFootHiking
}

// ErrUnreachable means the provider could not snap one of the requested
// coordinates onto its network within the search radius. This is the only
// routing failure the pipeline recovers from (by moving the point); wrap
// it, never swallow it.
var ErrUnreachable = errors.New("no routable point within search radius")

// Step is a single turn instruction.
type Step struct {
	Instruction     string
	Name            string
	Type            int
	DistanceMeters  float64
	DurationSeconds float64
}

// Segment is the leg between two consecutive request points.
type Segment struct {
	DistanceMeters  float64
	DurationSeconds float64
	Steps           []Step
}

// Route is a decoded provider answer. Geometry is the path in GeoJSON
// axis order; Elevation (when present) carries one value per geometry
// vertex, in meters. Provider wire encodings never leave this package.
type Route struct {
	DistanceMeters  float64
	DurationSeconds float64
	AscentMeters    float64
	DescentMeters   float64
	Geometry        []geo.Coordinate
	Elevation       []float64
	Segments        []Segment
}

// Client computes a route through the given points, in order.
type Client interface {
	// Directions routes through points (at least two) using the given
	// profile. Returns ErrUnreachable (possibly wrapped) when a point
	// cannot be matched to the network.
	Directions(ctx context.Context, profile Profile, points []geo.Point) (*Route, error)
}
