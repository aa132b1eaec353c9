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

import "math"

// earthRadiusMeters is the IUGG mean earth radius. Spherical math is
// accurate to ~0.5% at trip scales, far below the coordinate tolerance.
const earthRadiusMeters = 6371000.0

// HaversineMeters returns the great-circle distance between two points.
func HaversineMeters(a, b Point) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusMeters * math.Asin(math.Sqrt(h))
}

// HaversineKm returns the great-circle distance in kilometers.
func HaversineKm(a, b Point) float64 {
	return HaversineMeters(a, b) / 1000
}

// Offset returns the point reached by travelling distanceMeters from origin
// along the given compass bearing (degrees clockwise from north). The
// result keeps the origin's Name so repair candidates stay attributable to
// the location the proposal intended.
func Offset(origin Point, bearingDeg, distanceMeters float64) Point {
	lat1 := origin.Lat * math.Pi / 180
	lng1 := origin.Lng * math.Pi / 180
	bearing := bearingDeg * math.Pi / 180
	angular := distanceMeters / earthRadiusMeters

	lat2 := math.Asin(math.Sin(lat1)*math.Cos(angular) +
		math.Cos(lat1)*math.Sin(angular)*math.Cos(bearing))
	lng2 := lng1 + math.Atan2(
		math.Sin(bearing)*math.Sin(angular)*math.Cos(lat1),
		math.Cos(angular)-math.Sin(lat1)*math.Sin(lat2))

	return Point{
		Lat:  lat2 * 180 / math.Pi,
		Lng:  normalizeLng(lng2 * 180 / math.Pi),
		Name: origin.Name,
	}
}

// PathLengthKm sums the great-circle legs of an ordered point list.
// Used for crow-fly plausibility estimates, not for trip accounting;
// reported trip distances always come from the routing provider.
func PathLengthKm(points []Point) float64 {
	var total float64
	for i := 1; i < len(points); i++ {
		total += HaversineKm(points[i-1], points[i])
	}
	return total
}

// normalizeLng wraps a longitude into [-180, 180].
func normalizeLng(lng float64) float64 {
	for lng > 180 {
		lng -= 360
	}
	for lng < -180 {
		lng += 360
	}
	return lng
}
