// Copyright (C) 2025 Wayfarer AI (dev@wayfarer.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package analytics records trip generation telemetry in InfluxDB.
//
// Every successful generation is written as one point in the
// trip_generations measurement, tagged by trip type and city so that
// operators can slice generation volume, distance, and retry behavior
// over time. The recorder is optional: when InfluxDB is not configured
// the planner runs without it and generation telemetry is dropped.
package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/WayfarerAI/WayfarerCore/services/planner/datatypes"
)

const measurementGenerations = "trip_generations"

// DefaultQueryDays bounds the lookback window when the caller does not
// specify one.
const DefaultQueryDays = 30

// Config holds the InfluxDB connection settings.
type Config struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

// Recorder writes and reads generation telemetry. The API fields are
// interfaces so tests can inject mocks without a running InfluxDB.
type Recorder struct {
	WriteAPI api.WriteAPIBlocking
	QueryAPI api.QueryAPI
	Bucket   string
}

// NewRecorder connects to InfluxDB and verifies it is healthy. Callers
// should treat an error as "run without analytics" rather than fatal.
func NewRecorder(ctx context.Context, cfg Config) (*Recorder, error) {
	if cfg.URL == "" || cfg.Token == "" {
		return nil, fmt.Errorf("influxdb url and token are required")
	}

	client := influxdb2.NewClient(cfg.URL, cfg.Token)

	health, err := client.Health(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("influxdb health check: %w", err)
	}
	if health.Status != "pass" {
		client.Close()
		msg := "unknown"
		if health.Message != nil {
			msg = *health.Message
		}
		return nil, fmt.Errorf("influxdb not healthy: %s", msg)
	}

	return &Recorder{
		WriteAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		QueryAPI: client.QueryAPI(cfg.Org),
		Bucket:   cfg.Bucket,
	}, nil
}

// RecordGeneration writes one telemetry point for a completed trip.
func (r *Recorder) RecordGeneration(ctx context.Context, trip *datatypes.Trip) error {
	if trip == nil {
		return fmt.Errorf("trip is nil")
	}

	ts := trip.CreatedAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	point := influxdb2.NewPoint(
		measurementGenerations,
		map[string]string{
			"trip_type": string(trip.TripType),
			"city":      trip.City,
		},
		map[string]interface{}{
			"total_km":    trip.TotalDistanceKm,
			"days":        int64(trip.EstimatedDays),
			"duration_ms": trip.Stats.DurationMs,
			"attempts":    int64(trip.Stats.Attempts),
			"repairs":     int64(trip.Stats.Repairs),
		},
		ts,
	)

	if err := r.WriteAPI.WritePoint(ctx, point); err != nil {
		return fmt.Errorf("write generation point: %w", err)
	}
	return nil
}

// GenerationRecord is one row of the recent-generations query.
type GenerationRecord struct {
	Time       time.Time `json:"time"`
	TripType   string    `json:"trip_type"`
	City       string    `json:"city"`
	TotalKm    float64   `json:"total_km"`
	Days       int64     `json:"days"`
	DurationMs int64     `json:"duration_ms"`
	Attempts   int64     `json:"attempts"`
	Repairs    int64     `json:"repairs"`
}

// generationsQuery builds the Flux query for the lookback window. The
// only interpolated value is an integer, so there is no injection
// surface here.
func generationsQuery(bucket string, days int) string {
	return fmt.Sprintf(`
		from(bucket: "%s")
		  |> range(start: -%dd)
		  |> filter(fn: (r) => r._measurement == "%s")
		  |> pivot(rowKey:["_time"], columnKey: ["_field"], valueColumn: "_value")
		  |> sort(columns: ["_time"], desc: true)
	`, bucket, days, measurementGenerations)
}

// RecentGenerations returns generation telemetry from the last N days,
// newest first.
func (r *Recorder) RecentGenerations(ctx context.Context, days int) ([]GenerationRecord, error) {
	if days <= 0 {
		days = DefaultQueryDays
	}

	result, err := r.QueryAPI.Query(ctx, generationsQuery(r.Bucket, days))
	if err != nil {
		return nil, fmt.Errorf("query generations: %w", err)
	}

	// Guard against nil result (can happen with empty query results)
	if result == nil {
		return []GenerationRecord{}, nil
	}

	records := []GenerationRecord{}
	for result.Next() {
		rec := result.Record()

		row := GenerationRecord{Time: rec.Time()}
		if val, ok := rec.ValueByKey("trip_type").(string); ok {
			row.TripType = val
		}
		if val, ok := rec.ValueByKey("city").(string); ok {
			row.City = val
		}
		if val, ok := rec.ValueByKey("total_km").(float64); ok {
			row.TotalKm = val
		}
		if val, ok := rec.ValueByKey("days").(int64); ok {
			row.Days = val
		}
		if val, ok := rec.ValueByKey("duration_ms").(int64); ok {
			row.DurationMs = val
		}
		if val, ok := rec.ValueByKey("attempts").(int64); ok {
			row.Attempts = val
		}
		if val, ok := rec.ValueByKey("repairs").(int64); ok {
			row.Repairs = val
		}
		records = append(records, row)
	}
	if result.Err() != nil {
		slog.Error("Result iteration error", "error", result.Err())
		return nil, fmt.Errorf("iterate generations: %w", result.Err())
	}

	return records, nil
}
