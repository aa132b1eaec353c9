// Copyright (C) 2025 Wayfarer AI (dev@wayfarer.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"
	"go.opentelemetry.io/otel"

	"github.com/WayfarerAI/WayfarerCore/services/planner/datatypes"
)

var tracer = otel.Tracer("wayfarer.planner.storage")

// tripClassName is the Weaviate class holding stored trips.
const tripClassName = "Trip"

// GetTripSchema returns the Weaviate class definition for stored trips.
//
// The full trip document lives in the payload property as JSON; the
// remaining properties exist so listings and deletions can filter without
// unmarshaling every payload.
func GetTripSchema() *models.Class {
	indexFilterable := new(bool)
	*indexFilterable = true

	return &models.Class{
		Class:       tripClassName,
		Description: "A generated multi-day trip with its resolved routes.",
		Vectorizer:  "none",
		InvertedIndexConfig: &models.InvertedIndexConfig{
			Bm25:                   nil,
			CleanupIntervalSeconds: 0,
			IndexNullState:         true,
			IndexPropertyLength:    false,
			IndexTimestamps:        true,
			Stopwords:              nil,
			UsingBlockMaxWAND:      false,
		},
		Properties: []*models.Property{
			{
				Name:            "trip_id",
				DataType:        []string{"text"},
				Description:     "The unique trip identifier.",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:         "destination",
				DataType:     []string{"text"},
				Description:  "The requested destination in City, Country form.",
				Tokenization: "word",
			},
			{
				Name:            "city",
				DataType:        []string{"text"},
				Description:     "The resolved city the trip starts in.",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:            "trip_type",
				DataType:        []string{"text"},
				Description:     "Trip type (trek or cycling).",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:            "estimated_days",
				DataType:        []string{"int"},
				Description:     "Number of days in the trip.",
				IndexFilterable: indexFilterable,
			},
			{
				Name:            "total_distance_km",
				DataType:        []string{"number"},
				Description:     "Total distance across all days in kilometers.",
				IndexFilterable: indexFilterable,
			},
			{
				Name:            "difficulty",
				DataType:        []string{"text"},
				Description:     "Derived difficulty rating (easy, moderate, hard).",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:            "created_at",
				DataType:        []string{"number"},
				Description:     "Timestamp (Unix ms) of when the trip was generated.",
				IndexFilterable: indexFilterable,
			},
			{
				Name:        "payload",
				DataType:    []string{"text"},
				Description: "The full trip document as JSON.",
			},
		},
	}
}

// EnsureSchema creates the Trip class if it does not exist yet.
func EnsureSchema(client *weaviate.Client) error {
	class := GetTripSchema()
	slog.Info("Checking schema", "class", class.Class)

	// Check if the class already exists.
	_, err := client.Schema().ClassGetter().WithClassName(class.Class).Do(context.Background())
	if err != nil {
		// If it doesn't exist, the client returns an error. We can now create it.
		slog.Info("Schema not found, creating it...", "class", class.Class)
		if err := client.Schema().ClassCreator().WithClass(class).Do(context.Background()); err != nil {
			return fmt.Errorf("failed to create schema for class %s: %w", class.Class, err)
		}
		slog.Info("Successfully created schema", "class", class.Class)
	} else {
		slog.Info("Schema already exists", "class", class.Class)
	}

	return nil
}

// TripProperties represents the properties for creating a Trip object.
type TripProperties struct {
	TripID          string  `json:"trip_id"`
	Destination     string  `json:"destination"`
	City            string  `json:"city"`
	TripType        string  `json:"trip_type"`
	EstimatedDays   int     `json:"estimated_days"`
	TotalDistanceKm float64 `json:"total_distance_km"`
	Difficulty      string  `json:"difficulty"`
	CreatedAt       int64   `json:"created_at"`
	Payload         string  `json:"payload"`
}

// ToMap converts TripProperties to map[string]interface{} for Weaviate.
func (p *TripProperties) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"trip_id":           p.TripID,
		"destination":       p.Destination,
		"city":              p.City,
		"trip_type":         p.TripType,
		"estimated_days":    p.EstimatedDays,
		"total_distance_km": p.TotalDistanceKm,
		"difficulty":        p.Difficulty,
		"created_at":        p.CreatedAt,
		"payload":           p.Payload,
	}
}

// TripQueryResponse represents the response from querying the Trip class.
type TripQueryResponse struct {
	Get struct {
		Trip []TripResult `json:"Trip"`
	} `json:"Get"`
}

// TripResult represents a single trip from a query.
type TripResult struct {
	TripID          string  `json:"trip_id"`
	Destination     string  `json:"destination"`
	City            string  `json:"city"`
	TripType        string  `json:"trip_type"`
	EstimatedDays   int     `json:"estimated_days"`
	TotalDistanceKm float64 `json:"total_distance_km"`
	Difficulty      string  `json:"difficulty"`
	CreatedAt       int64   `json:"created_at"`
	Payload         string  `json:"payload"`
	Additional      struct {
		ID string `json:"id"`
	} `json:"_additional"`
}

// ParseGraphQLResponse parses a Weaviate GraphQL response into the target type.
//
// Encapsulates the marshal/unmarshal pattern required to convert Weaviate's
// dynamic response (map[string]models.JSONObject) into a strongly-typed Go
// struct. The target type T must have json tags matching the response shape.
func ParseGraphQLResponse[T any](resp *models.GraphQLResponse) (*T, error) {
	if resp == nil {
		return nil, fmt.Errorf("nil GraphQL response")
	}

	respBytes, err := json.Marshal(resp.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal GraphQL response data: %w", err)
	}

	var result T
	if err := json.Unmarshal(respBytes, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal into target type: %w", err)
	}

	return &result, nil
}

// WeaviateStore persists trips in a Weaviate instance.
type WeaviateStore struct {
	client *weaviate.Client
}

// NewWeaviateStore creates a store backed by the given Weaviate client and
// ensures the Trip schema exists.
func NewWeaviateStore(client *weaviate.Client) (*WeaviateStore, error) {
	if client == nil {
		return nil, fmt.Errorf("weaviate client must not be nil")
	}
	if err := EnsureSchema(client); err != nil {
		return nil, err
	}
	return &WeaviateStore{client: client}, nil
}

// Save persists a trip, replacing any stored document with the same ID.
func (s *WeaviateStore) Save(ctx context.Context, trip *datatypes.Trip) error {
	ctx, span := tracer.Start(ctx, "WeaviateStore.Save")
	defer span.End()

	payload, err := json.Marshal(trip)
	if err != nil {
		return fmt.Errorf("failed to marshal trip %s: %w", trip.ID, err)
	}

	// Replace-by-ID: drop any previous document before creating the new one.
	if err := s.deleteByTripID(ctx, trip.ID); err != nil {
		slog.Warn("Failed to clear previous trip document", "tripId", trip.ID, "error", err)
	}

	props := TripProperties{
		TripID:          trip.ID,
		Destination:     trip.Destination,
		City:            trip.City,
		TripType:        string(trip.TripType),
		EstimatedDays:   trip.EstimatedDays,
		TotalDistanceKm: trip.TotalDistanceKm,
		Difficulty:      string(trip.Difficulty),
		CreatedAt:       trip.CreatedAt.UnixMilli(),
		Payload:         string(payload),
	}

	_, err = s.client.Data().Creator().
		WithClassName(tripClassName).
		WithProperties(props.ToMap()).
		Do(ctx)
	if err != nil {
		return fmt.Errorf("failed to save trip %s to Weaviate: %w", trip.ID, err)
	}

	slog.Info("Saved trip", "tripId", trip.ID, "city", trip.City, "tripType", trip.TripType)
	return nil
}

// Get returns the trip with the given ID, or ErrNotFound.
func (s *WeaviateStore) Get(ctx context.Context, id string) (*datatypes.Trip, error) {
	ctx, span := tracer.Start(ctx, "WeaviateStore.Get")
	defer span.End()

	where := filters.Where().
		WithPath([]string{"trip_id"}).
		WithOperator(filters.Equal).
		WithValueString(id)

	fields := []graphql.Field{
		{Name: "payload"},
	}

	resp, err := s.client.GraphQL().Get().
		WithClassName(tripClassName).
		WithWhere(where).
		WithFields(fields...).
		WithLimit(1).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("weaviate query failed: %w", err)
	}

	parsed, err := ParseGraphQLResponse[TripQueryResponse](resp)
	if err != nil {
		return nil, fmt.Errorf("failed to parse trip query response: %w", err)
	}

	if len(parsed.Get.Trip) == 0 {
		return nil, ErrNotFound
	}

	var trip datatypes.Trip
	if err := json.Unmarshal([]byte(parsed.Get.Trip[0].Payload), &trip); err != nil {
		return nil, fmt.Errorf("failed to unmarshal trip payload: %w", err)
	}

	return &trip, nil
}

// List returns summaries of stored trips, newest first.
func (s *WeaviateStore) List(ctx context.Context, limit int) ([]TripSummary, error) {
	ctx, span := tracer.Start(ctx, "WeaviateStore.List")
	defer span.End()

	if limit <= 0 {
		limit = DefaultListLimit
	}

	sortBy := graphql.Sort{
		Path:  []string{"created_at"},
		Order: graphql.Desc,
	}

	fields := []graphql.Field{
		{Name: "trip_id"},
		{Name: "destination"},
		{Name: "city"},
		{Name: "trip_type"},
		{Name: "estimated_days"},
		{Name: "total_distance_km"},
		{Name: "difficulty"},
		{Name: "created_at"},
	}

	resp, err := s.client.GraphQL().Get().
		WithClassName(tripClassName).
		WithFields(fields...).
		WithSort(sortBy).
		WithLimit(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("weaviate query failed: %w", err)
	}

	parsed, err := ParseGraphQLResponse[TripQueryResponse](resp)
	if err != nil {
		return nil, fmt.Errorf("failed to parse trip list response: %w", err)
	}

	summaries := make([]TripSummary, 0, len(parsed.Get.Trip))
	for _, result := range parsed.Get.Trip {
		summaries = append(summaries, TripSummary{
			ID:              result.TripID,
			Destination:     result.Destination,
			City:            result.City,
			TripType:        datatypes.TripType(result.TripType),
			EstimatedDays:   result.EstimatedDays,
			TotalDistanceKm: result.TotalDistanceKm,
			Difficulty:      datatypes.Difficulty(result.Difficulty),
			CreatedAt:       time.UnixMilli(result.CreatedAt).UTC(),
		})
	}

	return summaries, nil
}

// Delete removes the trip with the given ID. Returns ErrNotFound if no
// trip matched.
func (s *WeaviateStore) Delete(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "WeaviateStore.Delete")
	defer span.End()

	matches, err := s.deleteMatches(ctx, id)
	if err != nil {
		return err
	}
	if matches == 0 {
		return ErrNotFound
	}

	slog.Info("Deleted trip", "tripId", id)
	return nil
}

// deleteByTripID removes stored documents for an ID without caring whether
// any existed.
func (s *WeaviateStore) deleteByTripID(ctx context.Context, id string) error {
	_, err := s.deleteMatches(ctx, id)
	return err
}

func (s *WeaviateStore) deleteMatches(ctx context.Context, id string) (int64, error) {
	where := filters.Where().
		WithPath([]string{"trip_id"}).
		WithOperator(filters.Equal).
		WithValueString(id)

	resp, err := s.client.Batch().ObjectsBatchDeleter().
		WithClassName(tripClassName).
		WithOutput("minimal").
		WithWhere(where).
		Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to delete trip %s from Weaviate: %w", id, err)
	}

	if resp == nil || resp.Results == nil {
		return 0, nil
	}
	return resp.Results.Matches, nil
}

var _ TripStore = (*WeaviateStore)(nil)
