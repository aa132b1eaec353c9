// Copyright (C) 2025 Wayfarer AI (dev@wayfarer.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package geocode provides place-name to coordinate lookup.
//
// The pipeline uses geocoding in exactly one place: the guaranteed
// last-resort centroid fallback when coordinate repair exhausts every
// candidate ring. The Client interface keeps the provider swappable; the
// one implementation speaks the Nominatim search API and enforces its
// usage policy (identifying User-Agent, one request per second).
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"

	"github.com/WayfarerAI/WayfarerCore/pkg/geo"
)

var tracer = otel.Tracer("wayfarer.geocode.nominatim")

// ErrNoResults indicates the provider returned an empty result set for the
// query. Distinct from transport errors so callers can tell "unknown place"
// from "provider down".
var ErrNoResults = errors.New("geocoder returned no results")

// Result is the best-confidence match for a free-text place query.
type Result struct {
	Point       geo.Point
	DisplayName string
	Importance  float64
}

// Client is the geocoding capability consumed by the pipeline.
type Client interface {
	// Search returns the best-confidence coordinate for a free-text query.
	Search(ctx context.Context, query string) (*Result, error)
}

// NominatimConfig configures the Nominatim client.
type NominatimConfig struct {
	// BaseURL defaults to the public OSM instance. Point it at a self-hosted
	// Nominatim to lift the rate limit.
	BaseURL string

	// UserAgent identifies this application, required by the Nominatim
	// usage policy. Defaults to "wayfarer-planner".
	UserAgent string

	// Timeout bounds a single search call. Default: 10 s.
	Timeout time.Duration

	// RequestsPerSecond throttles outbound calls. Default: 1, the public
	// instance's policy ceiling.
	RequestsPerSecond float64
}

type NominatimClient struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	limiter    *rate.Limiter
}

func NewNominatimClient(cfg NominatimConfig) *NominatimClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://nominatim.openstreetmap.org"
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "wayfarer-planner"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 1
	}
	slog.Info("Initializing Nominatim client",
		"base_url", cfg.BaseURL,
		"requests_per_second", cfg.RequestsPerSecond,
	)
	return &NominatimClient{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		userAgent:  cfg.UserAgent,
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
	}
}

// nominatimPlace mirrors the wire shape; lat/lon arrive as strings.
type nominatimPlace struct {
	Lat         string  `json:"lat"`
	Lon         string  `json:"lon"`
	DisplayName string  `json:"display_name"`
	Importance  float64 `json:"importance"`
}

// Search implements the Client interface.
func (c *NominatimClient) Search(ctx context.Context, query string) (*Result, error) {
	ctx, span := tracer.Start(ctx, "NominatimClient.Search")
	defer span.End()
	span.SetAttributes(attribute.String("geocode.query", query))

	if err := c.limiter.Wait(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "rate limiter wait aborted")
		return nil, err
	}

	searchURL := fmt.Sprintf("%s/search?q=%s&format=json&limit=5",
		c.baseURL, url.QueryEscape(query))

	req, err := http.NewRequestWithContext(ctx, "GET", searchURL, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to create geocoding request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.Error("Geocoding call failed", "query", query, "error", err)
		return nil, fmt.Errorf("geocoding call failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to read geocoding response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		slog.Error("Geocoder returned an error",
			"status_code", resp.StatusCode,
			"response", string(body),
		)
		return nil, fmt.Errorf("geocoder failed with status %d: %s", resp.StatusCode, string(body))
	}

	var places []nominatimPlace
	if err := json.Unmarshal(body, &places); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to parse geocoding response: %w", err)
	}
	if len(places) == 0 {
		span.SetStatus(codes.Error, "no results")
		return nil, fmt.Errorf("%w for %q", ErrNoResults, query)
	}

	best := places[0]
	for _, p := range places[1:] {
		if p.Importance > best.Importance {
			best = p
		}
	}

	lat, err := strconv.ParseFloat(best.Lat, 64)
	if err != nil {
		return nil, fmt.Errorf("geocoder returned unparseable latitude %q: %w", best.Lat, err)
	}
	lng, err := strconv.ParseFloat(best.Lon, 64)
	if err != nil {
		return nil, fmt.Errorf("geocoder returned unparseable longitude %q: %w", best.Lon, err)
	}

	span.SetAttributes(
		attribute.Float64("geocode.lat", lat),
		attribute.Float64("geocode.lng", lng),
		attribute.Float64("geocode.importance", best.Importance),
	)
	slog.Debug("Geocoded query",
		"query", query,
		"display_name", best.DisplayName,
		"importance", best.Importance,
	)

	return &Result{
		Point:       geo.Point{Lat: lat, Lng: lng, Name: best.DisplayName},
		DisplayName: best.DisplayName,
		Importance:  best.Importance,
	}, nil
}

var _ Client = (*NominatimClient)(nil)
