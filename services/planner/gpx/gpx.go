// Copyright (C) 2025 Wayfarer AI (dev@wayfarer.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package gpx serializes trips into GPX 1.1 documents.
//
// Each trip day becomes one <trk> with a single <trkseg> built from the
// day's decoded route coordinates, and each day's start point becomes a
// named <wpt> so mapping apps show the overnight stops. The output is
// plain GPX 1.1 with no extensions; any GPS device or app that reads
// GPX can import it.
package gpx

import (
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/WayfarerAI/WayfarerCore/services/planner/datatypes"
)

const (
	gpxVersion = "1.1"
	gpxCreator = "WayfarerCore"
	gpxXmlns   = "http://www.topografix.com/GPX/1/1"
)

type document struct {
	XMLName   xml.Name   `xml:"gpx"`
	Version   string     `xml:"version,attr"`
	Creator   string     `xml:"creator,attr"`
	Xmlns     string     `xml:"xmlns,attr"`
	Metadata  metadata   `xml:"metadata"`
	Waypoints []waypoint `xml:"wpt"`
	Tracks    []track    `xml:"trk"`
}

type metadata struct {
	Name string `xml:"name"`
	Desc string `xml:"desc,omitempty"`
	Time string `xml:"time,omitempty"`
}

type waypoint struct {
	Lat  float64 `xml:"lat,attr"`
	Lon  float64 `xml:"lon,attr"`
	Name string  `xml:"name,omitempty"`
}

type track struct {
	Name     string    `xml:"name"`
	Desc     string    `xml:"desc,omitempty"`
	Segments []segment `xml:"trkseg"`
}

type segment struct {
	Points []trackPoint `xml:"trkpt"`
}

type trackPoint struct {
	Lat float64 `xml:"lat,attr"`
	Lon float64 `xml:"lon,attr"`
}

// Marshal renders the trip as a GPX 1.1 document, XML declaration
// included. Every day must carry decoded coordinates; a day without
// them cannot be drawn and is an error, not a silent gap.
func Marshal(trip *datatypes.Trip) ([]byte, error) {
	if trip == nil {
		return nil, fmt.Errorf("trip is nil")
	}
	if len(trip.Routes) == 0 {
		return nil, fmt.Errorf("trip has no routes to export")
	}

	doc := document{
		Version: gpxVersion,
		Creator: gpxCreator,
		Xmlns:   gpxXmlns,
		Metadata: metadata{
			Name: trip.Destination,
			Desc: fmt.Sprintf("%s, %d days, %.1f km", trip.TripType, trip.EstimatedDays, trip.TotalDistanceKm),
		},
	}
	if !trip.CreatedAt.IsZero() {
		doc.Metadata.Time = trip.CreatedAt.UTC().Format(time.RFC3339)
	}

	for _, route := range trip.Routes {
		if len(route.Coordinates) == 0 {
			return nil, fmt.Errorf("day %d has no path coordinates", route.Day)
		}

		points := make([]trackPoint, 0, len(route.Coordinates))
		for _, c := range route.Coordinates {
			points = append(points, trackPoint{Lat: c.Lat(), Lon: c.Lng()})
		}

		doc.Tracks = append(doc.Tracks, track{
			Name:     trackName(route),
			Desc:     route.Description,
			Segments: []segment{{Points: points}},
		})

		doc.Waypoints = append(doc.Waypoints, waypoint{
			Lat:  route.StartPoint.Lat,
			Lon:  route.StartPoint.Lng,
			Name: route.StartPoint.Name,
		})
	}

	// Close the marker chain with the final day's end point. For loop
	// trips this lands on the first waypoint, which is what a GPS shows
	// for a loop anyway.
	last := trip.Routes[len(trip.Routes)-1]
	doc.Waypoints = append(doc.Waypoints, waypoint{
		Lat:  last.EndPoint.Lat,
		Lon:  last.EndPoint.Lng,
		Name: last.EndPoint.Name,
	})

	body, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal gpx: %w", err)
	}

	return append([]byte(xml.Header), body...), nil
}

func trackName(route datatypes.ResolvedRoute) string {
	start, end := route.StartPoint.Name, route.EndPoint.Name
	if start != "" && end != "" {
		return fmt.Sprintf("Day %d: %s to %s", route.Day, start, end)
	}
	return fmt.Sprintf("Day %d", route.Day)
}

// Filename suggests a filesystem-safe name for the exported document,
// e.g. "paris-trek-3d.gpx".
func Filename(trip *datatypes.Trip) string {
	city := slugify(trip.City)
	if city == "" {
		city = "trip"
	}
	return fmt.Sprintf("%s-%s-%dd.gpx", city, trip.TripType, trip.EstimatedDays)
}

func slugify(s string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
