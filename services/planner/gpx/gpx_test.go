// Copyright (C) 2025 Wayfarer AI (dev@wayfarer.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package gpx

import (
	"encoding/xml"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WayfarerAI/WayfarerCore/pkg/geo"
	"github.com/WayfarerAI/WayfarerCore/services/planner/datatypes"
)

func exportableTrip() *datatypes.Trip {
	return &datatypes.Trip{
		ID:              "trip-1",
		Destination:     "Paris, France",
		City:            "Paris",
		TripType:        datatypes.TripTypeTrek,
		EstimatedDays:   2,
		TotalDistanceKm: 18.6,
		CreatedAt:       time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
		Routes: []datatypes.ResolvedRoute{
			{
				Day:         1,
				StartPoint:  geo.Point{Lat: 48.8867, Lng: 2.3431, Name: "Montmartre"},
				EndPoint:    geo.Point{Lat: 48.8606, Lng: 2.3376, Name: "Louvre"},
				Description: "Down from the butte through the passages",
				Coordinates: []geo.Coordinate{
					{2.3431, 48.8867},
					{2.3400, 48.8750},
					{2.3376, 48.8606},
				},
			},
			{
				Day:        2,
				StartPoint: geo.Point{Lat: 48.8606, Lng: 2.3376, Name: "Louvre"},
				EndPoint:   geo.Point{Lat: 48.8867, Lng: 2.3431, Name: "Montmartre"},
				Coordinates: []geo.Coordinate{
					{2.3376, 48.8606},
					{2.3431, 48.8867},
				},
			},
		},
	}
}

func TestMarshal(t *testing.T) {
	data, err := Marshal(exportableTrip())
	require.NoError(t, err)

	out := string(data)
	assert.True(t, strings.HasPrefix(out, xml.Header), "document should open with the XML declaration")
	assert.Contains(t, out, `version="1.1"`)
	assert.Contains(t, out, `creator="WayfarerCore"`)
	assert.Contains(t, out, `xmlns="http://www.topografix.com/GPX/1/1"`)
	assert.Contains(t, out, "<name>Paris, France</name>")
	assert.Contains(t, out, "<time>2025-06-01T10:00:00Z</time>")
	assert.Contains(t, out, "<name>Day 1: Montmartre to Louvre</name>")
	assert.Contains(t, out, "<name>Day 2: Louvre to Montmartre</name>")

	assert.Equal(t, 2, strings.Count(out, "<trk>"))
	assert.Equal(t, 2, strings.Count(out, "<trkseg>"))
	assert.Equal(t, 5, strings.Count(out, "<trkpt"))

	// Coordinates come back in lat/lon attribute order, undoing the
	// GeoJSON lng-first storage order.
	assert.Contains(t, out, `lat="48.8867" lon="2.3431"`)
}

func TestMarshal_RoundTripsThroughDecoder(t *testing.T) {
	data, err := Marshal(exportableTrip())
	require.NoError(t, err)

	var doc struct {
		Waypoints []struct {
			Lat  float64 `xml:"lat,attr"`
			Lon  float64 `xml:"lon,attr"`
			Name string  `xml:"name"`
		} `xml:"wpt"`
		Tracks []struct {
			Name     string `xml:"name"`
			Segments []struct {
				Points []struct {
					Lat float64 `xml:"lat,attr"`
					Lon float64 `xml:"lon,attr"`
				} `xml:"trkpt"`
			} `xml:"trkseg"`
		} `xml:"trk"`
	}
	require.NoError(t, xml.Unmarshal(data, &doc))

	require.Len(t, doc.Tracks, 2)
	require.Len(t, doc.Tracks[0].Segments, 1)
	assert.Len(t, doc.Tracks[0].Segments[0].Points, 3)
	assert.InDelta(t, 48.8867, doc.Tracks[0].Segments[0].Points[0].Lat, 1e-9)
	assert.InDelta(t, 2.3431, doc.Tracks[0].Segments[0].Points[0].Lon, 1e-9)

	// One waypoint per day start plus the final end point.
	require.Len(t, doc.Waypoints, 3)
	assert.Equal(t, "Montmartre", doc.Waypoints[0].Name)
	assert.Equal(t, "Louvre", doc.Waypoints[1].Name)
	assert.Equal(t, "Montmartre", doc.Waypoints[2].Name)
}

func TestMarshal_NilTrip(t *testing.T) {
	_, err := Marshal(nil)
	assert.Error(t, err)
}

func TestMarshal_NoRoutes(t *testing.T) {
	trip := exportableTrip()
	trip.Routes = nil

	_, err := Marshal(trip)
	assert.ErrorContains(t, err, "no routes")
}

func TestMarshal_DayWithoutCoordinates(t *testing.T) {
	trip := exportableTrip()
	trip.Routes[1].Coordinates = nil

	_, err := Marshal(trip)
	assert.ErrorContains(t, err, "day 2")
}

func TestTrackName_UnnamedPoints(t *testing.T) {
	route := datatypes.ResolvedRoute{Day: 3}
	assert.Equal(t, "Day 3", trackName(route))
}

func TestFilename(t *testing.T) {
	tests := []struct {
		name string
		city string
		want string
	}{
		{"simple", "Paris", "paris-trek-2d.gpx"},
		{"spaces", "Tel Aviv", "tel-aviv-trek-2d.gpx"},
		{"accents drop", "Besançon", "besan-on-trek-2d.gpx"},
		{"empty city", "", "trip-trek-2d.gpx"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trip := exportableTrip()
			trip.City = tt.city
			assert.Equal(t, tt.want, Filename(trip))
		})
	}
}
