// Copyright (C) 2025 Wayfarer AI (dev@wayfarer.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes provides data structures for the planner service.
//
// This file contains the trip domain types: the generation request, the
// resolved per-day routes, and the final Trip aggregate. For the text-model
// wire contract, see proposal.go. For the failure taxonomy, see errors.go.
package datatypes

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/WayfarerAI/WayfarerCore/pkg/geo"
)

// =============================================================================
// Trip Type Invariants
// =============================================================================

// TripType selects the shape and distance envelope of a trip.
type TripType string

const (
	// TripTypeTrek is a 1-5 day walking loop: the overall start and end
	// coincide, each day covers 5-15 km on foot paths.
	TripTypeTrek TripType = "trek"

	// TripTypeCycling is a 2-day point-to-point ride: overall start and end
	// must differ, each day covers 10-60 km on cycle-friendly roads.
	TripTypeCycling TripType = "cycling"
)

// Valid reports whether t is a supported trip type.
func (t TripType) Valid() bool {
	return t == TripTypeTrek || t == TripTypeCycling
}

// DayCountBounds returns the inclusive [min, max] number of days a trip of
// this type may span.
func (t TripType) DayCountBounds() (min, max int) {
	if t == TripTypeCycling {
		return 2, 2
	}
	return 1, 5
}

// DayDistanceBoundsKm returns the inclusive [min, max] distance a single
// day of this type may cover.
func (t TripType) DayDistanceBoundsKm() (min, max float64) {
	if t == TripTypeCycling {
		return 10, 60
	}
	return 5, 15
}

// IsLoop reports whether the trip's overall start and end must coincide.
// Cycling is the opposite: a point-to-point journey whose start and end
// must NOT coincide.
func (t TripType) IsLoop() bool {
	return t != TripTypeCycling
}

// =============================================================================
// Difficulty
// =============================================================================

// Difficulty grades a trip by average daily distance.
type Difficulty string

const (
	DifficultyEasy     Difficulty = "easy"
	DifficultyModerate Difficulty = "moderate"
	DifficultyHard     Difficulty = "hard"
)

// DifficultyFor derives the difficulty grade from the average per-day
// distance. Thresholds are trip-type specific: trek grades easy up to
// 8 km/day and moderate up to 12; cycling up to 30 and 50.
func DifficultyFor(tripType TripType, avgDayKm float64) Difficulty {
	easyMax, moderateMax := 8.0, 12.0
	if tripType == TripTypeCycling {
		easyMax, moderateMax = 30.0, 50.0
	}
	switch {
	case avgDayKm <= easyMax:
		return DifficultyEasy
	case avgDayKm <= moderateMax:
		return DifficultyModerate
	default:
		return DifficultyHard
	}
}

// =============================================================================
// Shared Validator Instance
// =============================================================================

// tripValidate is the validator instance for planner datatypes.
// Initialized in init() with custom validators.
var tripValidate *validator.Validate

func init() {
	tripValidate = validator.New()

	// Register custom validator for "City, Country" formatted strings.
	_ = tripValidate.RegisterValidation("city_country", validateCityCountry)
}

// validateCityCountry checks that a string carries a comma-separated
// city and country ("Paris, France"). The comma requirement keeps the
// text model from answering with a bare city name that the geocoder
// would resolve ambiguously.
func validateCityCountry(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	for i, r := range value {
		if r == ',' && i > 0 && i < len(value)-1 {
			return true
		}
	}
	return false
}

// =============================================================================
// Generation Request
// =============================================================================

// TripRequest represents a trip generation request body.
//
// # Description
//
// TripRequest carries the caller's destination and trip type for the
// POST /v1/trips/generate endpoint. Every request includes a unique ID
// and timestamp for tracing and audit trails.
//
// # Fields
//
//   - RequestID: Unique identifier for this request (UUID v4). Generated
//     server-side when the client omits it.
//   - Timestamp: Unix timestamp in milliseconds (UTC) when the request
//     was created.
//   - Destination: Required. Free-text destination, 2-120 characters
//     ("Paris, France", "the Dolomites").
//   - TripType: Required. One of "trek" or "cycling".
//
// # Validation
//
// Uses go-playground/validator:
//   - Destination: required, 2-120 characters
//   - TripType: required, must be "trek" or "cycling"
type TripRequest struct {
	RequestID   string   `json:"request_id"`
	Timestamp   int64    `json:"timestamp"`
	Destination string   `json:"destination" validate:"required,min=2,max=120"`
	TripType    TripType `json:"trip_type" validate:"required,oneof=trek cycling"`
}

// Validate validates the TripRequest fields.
func (r *TripRequest) Validate() error {
	return tripValidate.Struct(r)
}

// EnsureDefaults populates RequestID and Timestamp if not provided by the
// client, so every request has proper identifiers for tracing.
func (r *TripRequest) EnsureDefaults() {
	if r.RequestID == "" {
		r.RequestID = uuid.NewString()
	}
	if r.Timestamp == 0 {
		r.Timestamp = time.Now().UnixMilli()
	}
}

// =============================================================================
// Resolved Routes
// =============================================================================

// Elevation is the cumulative climb and descent over a day, in meters,
// rounded to whole meters.
type Elevation struct {
	AscentM  int `json:"ascent_m"`
	DescentM int `json:"descent_m"`
}

// Instruction is one turn-by-turn step, flattened out of the provider's
// per-segment nesting. Segment records which leg of the day's point
// sequence the step came from.
type Instruction struct {
	Segment   int     `json:"segment"`
	Text      string  `json:"text"`
	Name      string  `json:"name,omitempty"`
	DistanceM float64 `json:"distance_m"`
	DurationS float64 `json:"duration_s"`
}

// ResolvedRoute is one day of a trip after routing resolution.
//
// # Description
//
// ResolvedRoute pairs the proposal fields for a day (start, end,
// waypoints) with the measured path the routing provider returned.
// Distance is kilometers rounded to 2 decimals; duration is whole
// minutes. Geometry is the path as a standard encoded polyline;
// Coordinates is the same path as [lng, lat] pairs.
//
// A ResolvedRoute is owned by the pipeline run that created it and is
// discarded wholesale if the run fails. Repair steps replace waypoints
// and the end point, then re-resolve; nothing else mutates it.
type ResolvedRoute struct {
	Day          int              `json:"day"`
	StartPoint   geo.Point        `json:"start_point"`
	EndPoint     geo.Point        `json:"end_point"`
	Waypoints    []geo.Point      `json:"waypoints,omitempty"`
	Description  string           `json:"description,omitempty"`
	DistanceKm   float64          `json:"distance_km"`
	DurationMin  int              `json:"duration_min"`
	Geometry     string           `json:"geometry,omitempty"`
	Coordinates  []geo.Coordinate `json:"coordinates,omitempty"`
	Elevation    Elevation        `json:"elevation"`
	Instructions []Instruction    `json:"instructions,omitempty"`
}

// =============================================================================
// Trip Aggregate
// =============================================================================

// GenerationStats records how much work a generation request took.
// Written to analytics; informational only.
type GenerationStats struct {
	Attempts   int   `json:"attempts"`
	Repairs    int   `json:"repairs"`
	DurationMs int64 `json:"duration_ms"`
}

// DayForecast is an optional per-day weather enrichment entry.
type DayForecast struct {
	Date          string  `json:"date"`
	MinTempC      float64 `json:"min_temp_c"`
	MaxTempC      float64 `json:"max_temp_c"`
	Precipitation float64 `json:"precipitation_mm"`
	WeatherCode   int     `json:"weather_code"`
}

// Trip is the final output of the generation pipeline.
//
// # Description
//
// Trip aggregates the resolved day routes with totals, a difficulty
// grade, and the text model's narrative extras. It is constructed once
// per generation request; persistence and enrichment operate on the
// finished value and never feed back into the pipeline.
//
// # Invariants (enforced before a Trip is returned)
//
//   - len(Routes) == EstimatedDays
//   - Trek: 1-5 days, each day 5-15 km, consecutive days connect,
//     overall loop closes within coordinate tolerance.
//   - Cycling: exactly 2 days, each day 10-60 km, days connect, overall
//     start and end do NOT coincide.
//   - TotalDistanceKm equals the day sum within 0.01.
type Trip struct {
	ID               string          `json:"id"`
	RequestID        string          `json:"request_id,omitempty"`
	Destination      string          `json:"destination"`
	City             string          `json:"city"`
	TripType         TripType        `json:"trip_type"`
	EstimatedDays    int             `json:"estimated_days"`
	TotalDistanceKm  float64         `json:"total_distance_km"`
	TotalDurationMin int             `json:"total_duration_min"`
	Difficulty       Difficulty      `json:"difficulty"`
	Routes           []ResolvedRoute `json:"routes"`
	Highlights       []string        `json:"highlights,omitempty"`
	Equipment        []string        `json:"equipment,omitempty"`
	Tips             []string        `json:"tips,omitempty"`
	Weather          []DayForecast   `json:"weather,omitempty"`
	ImageURL         string          `json:"image_url,omitempty"`
	Stats            GenerationStats `json:"stats"`
	CreatedAt        time.Time       `json:"created_at"`
}

// NewTrip creates a Trip shell with a fresh ID and timestamp. The
// assembler fills in routes and totals.
func NewTrip(requestID string) *Trip {
	return &Trip{
		ID:        uuid.NewString(),
		RequestID: requestID,
		CreatedAt: time.Now().UTC(),
	}
}

// ValidateStructure checks that every day of the trip is complete:
// geometry, decoded coordinates, and named start/end points. It is the
// assembler's final gate; a gap here means an upstream bug, not caller
// error, and is never repaired.
func (t *Trip) ValidateStructure() error {
	if len(t.Routes) == 0 {
		return fmt.Errorf("trip has no routes")
	}
	if len(t.Routes) != t.EstimatedDays {
		return fmt.Errorf("trip has %d routes but %d estimated days", len(t.Routes), t.EstimatedDays)
	}
	for i, r := range t.Routes {
		if r.Geometry == "" {
			return fmt.Errorf("day %d has no geometry", i+1)
		}
		if len(r.Coordinates) == 0 {
			return fmt.Errorf("day %d has no coordinates", i+1)
		}
		if r.StartPoint.Name == "" || r.EndPoint.Name == "" {
			return fmt.Errorf("day %d has unnamed start or end point", i+1)
		}
	}
	return nil
}
