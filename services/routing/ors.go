// Copyright (C) 2025 Wayfarer AI (dev@wayfarer.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/twpayne/go-polyline"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"

	"github.com/WayfarerAI/WayfarerCore/pkg/geo"
)

var tracer = otel.Tracer("wayfarer.routing.ors")

// orsCodeUnreachable is the OpenRouteService error code for "could not
// find routable point within a radius of X meters of specified coordinate".
const orsCodeUnreachable = 2010

// ORSConfig configures the OpenRouteService client.
type ORSConfig struct {
	// APIKey authenticates against the public API. Self-hosted instances
	// may leave it empty.
	APIKey string

	// BaseURL defaults to the public API. Point it at a self-hosted
	// instance for unmetered usage.
	BaseURL string

	// Timeout bounds a single directions call. Default: 30 s.
	Timeout time.Duration

	// SearchRadiusMeters is the per-coordinate snap radius sent with every
	// request. Default: 350, matching the provider's own default.
	SearchRadiusMeters float64

	// RequestsPerSecond throttles outbound calls when > 0. The public
	// free tier allows 40/min; self-hosted deployments leave this at 0.
	RequestsPerSecond float64
}

type ORSClient struct {
	httpClient   *http.Client
	baseURL      string
	apiKey       string
	searchRadius float64
	limiter      *rate.Limiter
}

func NewORSClient(cfg ORSConfig) *ORSClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openrouteservice.org"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.SearchRadiusMeters <= 0 {
		cfg.SearchRadiusMeters = 350
	}
	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	slog.Info("Initializing OpenRouteService client",
		"base_url", cfg.BaseURL,
		"search_radius_m", cfg.SearchRadiusMeters,
	)
	return &ORSClient{
		httpClient:   &http.Client{Timeout: cfg.Timeout},
		baseURL:      strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:       cfg.APIKey,
		searchRadius: cfg.SearchRadiusMeters,
		limiter:      limiter,
	}
}

// ============================================================================
// Wire types
// ============================================================================

type orsRequest struct {
	Coordinates  [][2]float64 `json:"coordinates"`
	Elevation    bool         `json:"elevation"`
	Instructions bool         `json:"instructions"`
	Radiuses     []float64    `json:"radiuses,omitempty"`
	Units        string       `json:"units"`
	Language     string       `json:"language"`
}

type orsResponse struct {
	Routes []orsRoute `json:"routes"`
	Error  *orsError  `json:"error"`
}

type orsError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type orsRoute struct {
	Summary  orsSummary   `json:"summary"`
	Geometry string       `json:"geometry"`
	Segments []orsSegment `json:"segments"`
}

type orsSummary struct {
	Distance float64 `json:"distance"`
	Duration float64 `json:"duration"`
	Ascent   float64 `json:"ascent"`
	Descent  float64 `json:"descent"`
}

type orsSegment struct {
	Distance float64   `json:"distance"`
	Duration float64   `json:"duration"`
	Steps    []orsStep `json:"steps"`
}

type orsStep struct {
	Distance    float64 `json:"distance"`
	Duration    float64 `json:"duration"`
	Type        int     `json:"type"`
	Instruction string  `json:"instruction"`
	Name        string  `json:"name"`
}

// ============================================================================
// Directions
// ============================================================================

// Directions implements the Client interface.
func (c *ORSClient) Directions(ctx context.Context, profile Profile, points []geo.Point) (*Route, error) {
	ctx, span := tracer.Start(ctx, "ORSClient.Directions")
	defer span.End()
	span.SetAttributes(
		attribute.String("routing.profile", string(profile)),
		attribute.Int("routing.point_count", len(points)),
	)

	if len(points) < 2 {
		return nil, fmt.Errorf("directions require at least 2 points, got %d", len(points))
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "rate limiter wait aborted")
			return nil, err
		}
	}

	reqBody := orsRequest{
		Coordinates:  make([][2]float64, len(points)),
		Elevation:    true,
		Instructions: true,
		Radiuses:     make([]float64, len(points)),
		Units:        "m",
		Language:     "en",
	}
	for i, p := range points {
		reqBody.Coordinates[i] = [2]float64{p.Lng, p.Lat}
		reqBody.Radiuses[i] = c.searchRadius
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal directions request: %w", err)
	}

	url := fmt.Sprintf("%s/v2/directions/%s", c.baseURL, profile)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(payload))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to create directions request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.Error("Directions call failed", "profile", profile, "error", err)
		return nil, fmt.Errorf("directions call failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to read directions response: %w", err)
	}

	var decoded orsResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("routing service failed with status %d: %s", resp.StatusCode, string(body))
		}
		return nil, fmt.Errorf("failed to parse directions response: %w", err)
	}

	if decoded.Error != nil {
		if decoded.Error.Code == orsCodeUnreachable {
			span.SetStatus(codes.Error, "point not routable")
			slog.Debug("Routing provider rejected point as unreachable",
				"profile", profile,
				"message", decoded.Error.Message,
			)
			return nil, fmt.Errorf("%w: %s", ErrUnreachable, decoded.Error.Message)
		}
		span.SetStatus(codes.Error, decoded.Error.Message)
		return nil, fmt.Errorf("routing service error %d: %s", decoded.Error.Code, decoded.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("routing service failed with status %d: %s", resp.StatusCode, string(body))
	}
	if len(decoded.Routes) == 0 {
		span.SetStatus(codes.Error, "no routes in response")
		return nil, fmt.Errorf("routing service returned no routes")
	}

	route, err := convertRoute(decoded.Routes[0])
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(
		attribute.Float64("routing.distance_m", route.DistanceMeters),
		attribute.Float64("routing.duration_s", route.DurationSeconds),
	)
	return route, nil
}

// convertRoute decodes the provider route into SI-unit values and a
// GeoJSON-ordered coordinate path.
func convertRoute(r orsRoute) (*Route, error) {
	route := &Route{
		DistanceMeters:  r.Summary.Distance,
		DurationSeconds: r.Summary.Duration,
		AscentMeters:    r.Summary.Ascent,
		DescentMeters:   r.Summary.Descent,
		Segments:        make([]Segment, 0, len(r.Segments)),
	}

	if r.Geometry != "" {
		// Elevation-enabled responses carry 3D polylines. The elevation
		// dimension is encoded at 1e2 precision while coordinates use 1e5,
		// so decoding everything at 1e5 leaves elevation a factor of 1000
		// too small.
		codec := polyline.Codec{Dim: 3, Scale: 1e5}
		coords, _, err := codec.DecodeCoords([]byte(r.Geometry))
		if err != nil {
			return nil, fmt.Errorf("failed to decode route geometry: %w", err)
		}
		route.Geometry = make([]geo.Coordinate, len(coords))
		route.Elevation = make([]float64, len(coords))
		for i, c := range coords {
			route.Geometry[i] = geo.Coordinate{c[1], c[0]}
			route.Elevation[i] = c[2] * 1000
		}
	}

	for _, seg := range r.Segments {
		converted := Segment{
			DistanceMeters:  seg.Distance,
			DurationSeconds: seg.Duration,
			Steps:           make([]Step, 0, len(seg.Steps)),
		}
		for _, st := range seg.Steps {
			converted.Steps = append(converted.Steps, Step{
				Instruction:     st.Instruction,
				Name:            st.Name,
				Type:            st.Type,
				DistanceMeters:  st.Distance,
				DurationSeconds: st.Duration,
			})
		}
		route.Segments = append(route.Segments, converted)
	}

	return route, nil
}

var _ Client = (*ORSClient)(nil)
