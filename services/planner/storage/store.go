// Copyright (C) 2025 Wayfarer AI (dev@wayfarer.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package storage persists assembled trips.
//
// # Description
//
// Trips are written once after a successful pipeline run and read back by
// the HTTP API and the CLI. Two implementations are provided:
//
//   - WeaviateStore: durable storage in a Weaviate instance. The full trip
//     is stored as a JSON payload alongside filterable summary properties.
//   - MemoryStore: process-local storage for lightweight mode and tests.
//
// # Thread Safety
//
// All implementations are safe for concurrent use.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/WayfarerAI/WayfarerCore/services/planner/datatypes"
)

// ErrNotFound is returned when no trip exists for the requested ID.
var ErrNotFound = errors.New("trip not found")

// TripSummary is the listing projection of a stored trip.
//
// It carries only the fields needed to render a trip index; the full
// document is fetched separately via Get.
type TripSummary struct {
	ID              string               `json:"id"`
	Destination     string               `json:"destination"`
	City            string               `json:"city"`
	TripType        datatypes.TripType   `json:"trip_type"`
	EstimatedDays   int                  `json:"estimated_days"`
	TotalDistanceKm float64              `json:"total_distance_km"`
	Difficulty      datatypes.Difficulty `json:"difficulty"`
	CreatedAt       time.Time            `json:"created_at"`
}

// TripStore persists and retrieves assembled trips.
//
// Implementations must be safe for concurrent use by multiple goroutines.
type TripStore interface {
	// Save persists a trip. Saving an ID that already exists replaces the
	// stored document.
	Save(ctx context.Context, trip *datatypes.Trip) error

	// Get returns the trip with the given ID, or ErrNotFound.
	Get(ctx context.Context, id string) (*datatypes.Trip, error)

	// List returns summaries of stored trips, newest first. A non-positive
	// limit applies the implementation default.
	List(ctx context.Context, limit int) ([]TripSummary, error)

	// Delete removes the trip with the given ID. Returns ErrNotFound if no
	// trip matched.
	Delete(ctx context.Context, id string) error
}

// DefaultListLimit bounds List results when the caller does not specify one.
const DefaultListLimit = 50

func summaryOf(trip *datatypes.Trip) TripSummary {
	return TripSummary{
		ID:              trip.ID,
		Destination:     trip.Destination,
		City:            trip.City,
		TripType:        trip.TripType,
		EstimatedDays:   trip.EstimatedDays,
		TotalDistanceKm: trip.TotalDistanceKm,
		Difficulty:      trip.Difficulty,
		CreatedAt:       trip.CreatedAt,
	}
}
