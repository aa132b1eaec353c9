// Copyright (C) 2025 Wayfarer AI (dev@wayfarer.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package geo

import (
	"errors"
	"fmt"
	"math"
)

// Validation sentinels. Callers branch on these with errors.Is to decide
// whether a point is salvageable (out-of-bounds never is; open-water points
// still get a routing attempt when the pre-filter is skipped).
var (
	// ErrOutOfBounds marks a non-finite or out-of-range coordinate.
	ErrOutOfBounds = errors.New("coordinate out of bounds")

	// ErrNullIsland marks the exact (0,0) coordinate.
	ErrNullIsland = errors.New("coordinate is the degenerate (0,0) point")

	// ErrOpenWater marks a coordinate deep inside a known oceanic region.
	ErrOpenWater = errors.New("coordinate lies in open water")
)

// oceanBox is a coarse axis-aligned region known to contain no land.
type oceanBox struct {
	name   string
	bounds Bounds
}

// oceanInteriors lists bounding boxes placed well inside ocean basins.
//
// The boxes are intentionally small and conservative: each one is shrunk
// until the nearest islands fall outside it (noted per box), so a point
// inside a box is essentially guaranteed to be open water. Points outside
// every box may still be unroutable; the routing provider is the
// authoritative check. Do not widen these without checking island atlases.
var oceanInteriors = []oceanBox{
	{
		// Clear of the Azores (lng > -32) and Bermuda (lng < -60).
		name:   "north atlantic core",
		bounds: Bounds{MinLat: 28, MaxLat: 42, MinLng: -55, MaxLng: -38},
	},
	{
		// Clear of Tristan da Cunha (lat < -36), Saint Helena (lng > -6),
		// and Trindade (lng < -29).
		name:   "south atlantic core",
		bounds: Bounds{MinLat: -35, MaxLat: -25, MinLng: -28, MaxLng: -15},
	},
	{
		// Clear of the Hawaiian chain (lat < 29) and the Alaskan island arcs (lat > 50).
		name:   "north pacific core",
		bounds: Bounds{MinLat: 32, MaxLat: 45, MinLng: -172, MaxLng: -152},
	},
	{
		// Clear of Pitcairn (lat > -26) and Easter Island (lng > -110).
		name:   "south pacific core",
		bounds: Bounds{MinLat: -45, MaxLat: -30, MinLng: -135, MaxLng: -115},
	},
	{
		// Clear of Réunion/Mauritius (lng < 58) and the Cocos Islands (lng > 96).
		name:   "indian ocean core",
		bounds: Bounds{MinLat: -28, MaxLat: -12, MinLng: 78, MaxLng: 92},
	},
	{
		// Amundsen Sea approach; Peter I Island sits south of the box.
		name:   "southern ocean core",
		bounds: Bounds{MinLat: -65, MaxLat: -52, MinLng: -120, MaxLng: -92},
	},
}

// ValidateBounds checks the numeric validity of a point: finite values,
// latitude/longitude ranges, and the (0,0) degenerate marker. This is the
// only geometric check applied to freshly generated proposals; open-water
// detection is deferred until a routing call is about to be spent.
func ValidateBounds(p Point) error {
	if math.IsNaN(p.Lat) || math.IsInf(p.Lat, 0) ||
		math.IsNaN(p.Lng) || math.IsInf(p.Lng, 0) {
		return fmt.Errorf("%w: non-finite value in %s", ErrOutOfBounds, p)
	}
	if p.Lat < -90 || p.Lat > 90 {
		return fmt.Errorf("%w: latitude %.5f outside [-90, 90]", ErrOutOfBounds, p.Lat)
	}
	if p.Lng < -180 || p.Lng > 180 {
		return fmt.Errorf("%w: longitude %.5f outside [-180, 180]", ErrOutOfBounds, p.Lng)
	}
	if p.IsNullIsland() {
		return ErrNullIsland
	}
	return nil
}

// ValidatePlausible applies the land-plausibility heuristic: points deep
// inside a known oceanic region are rejected before a routing-provider call
// is spent on them. The check is permissive — false negatives are fine,
// false positives are not — so it must stay a pre-filter, never a
// correctness guarantee.
func ValidatePlausible(p Point) error {
	for _, box := range oceanInteriors {
		if box.bounds.Contains(p) {
			return fmt.Errorf("%w: %s inside %s", ErrOpenWater, p, box.name)
		}
	}
	return nil
}

// Validate runs both the bounds and the land-plausibility checks.
func Validate(p Point) error {
	if err := ValidateBounds(p); err != nil {
		return err
	}
	return ValidatePlausible(p)
}

// ValidateAll validates every point in order and reports the first failure
// with its position.
func ValidateAll(points []Point) error {
	for i, p := range points {
		if err := Validate(p); err != nil {
			return fmt.Errorf("point %d: %w", i, err)
		}
	}
	return nil
}
