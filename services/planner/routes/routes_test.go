// Copyright (C) 2025 Wayfarer AI (dev@wayfarer.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/WayfarerAI/WayfarerCore/pkg/extensions"
	"github.com/WayfarerAI/WayfarerCore/services/planner/analytics"
	"github.com/WayfarerAI/WayfarerCore/services/planner/datatypes"
	"github.com/WayfarerAI/WayfarerCore/services/planner/handlers"
	"github.com/WayfarerAI/WayfarerCore/services/planner/services"
	"github.com/WayfarerAI/WayfarerCore/services/planner/storage"
)

// ============================================================================
// Test Setup
// ============================================================================

func init() {
	// Set Gin to test mode to reduce noise in test output
	gin.SetMode(gin.TestMode)
}

// stubGenerator is a minimal TripGenerator that always succeeds.
type stubGenerator struct{}

func (stubGenerator) GenerateTrip(_ context.Context, req *datatypes.TripRequest, _ services.AssembleOptions) (*datatypes.Trip, error) {
	return &datatypes.Trip{ID: "trip-1", RequestID: req.RequestID}, nil
}

// stubQuerier is a minimal GenerationQuerier that returns no records.
type stubQuerier struct{}

func (stubQuerier) RecentGenerations(context.Context, int) ([]analytics.GenerationRecord, error) {
	return []analytics.GenerationRecord{}, nil
}

// denyAuthProvider rejects every token.
type denyAuthProvider struct{}

func (denyAuthProvider) Validate(context.Context, string) (*extensions.AuthInfo, error) {
	return nil, extensions.ErrUnauthorized
}

func setupTestRouter(querier handlers.GenerationQuerier, opts extensions.ServiceOptions) *gin.Engine {
	router := gin.New()
	SetupRoutes(router, stubGenerator{}, storage.NewMemoryStore(), querier, opts, Config{
		Version:       "test",
		GenerateRPS:   100,
		GenerateBurst: 100,
	})
	return router
}

// ============================================================================
// Route Registration Tests
// ============================================================================

func TestSetupRoutes_CoreRoutes(t *testing.T) {
	router := setupTestRouter(nil, extensions.DefaultOptions())

	coreRoutes := []struct {
		method string
		path   string
	}{
		{"GET", "/health"},
		{"GET", "/metrics"},
		{"POST", "/v1/trips/generate"},
		{"GET", "/v1/trips/generate/ws"},
		{"GET", "/v1/trips"},
		{"GET", "/v1/trips/:id"},
		{"DELETE", "/v1/trips/:id"},
		{"GET", "/v1/trips/:id/gpx"},
	}

	routes := router.Routes()
	for _, expected := range coreRoutes {
		found := false
		for _, r := range routes {
			if r.Method == expected.method && r.Path == expected.path {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("Expected route %s %s not found", expected.method, expected.path)
		}
	}
}

func TestSetupRoutes_AnalyticsNotRegisteredWithoutQuerier(t *testing.T) {
	router := setupTestRouter(nil, extensions.DefaultOptions())

	for _, r := range router.Routes() {
		if r.Path == "/v1/analytics/generations" {
			t.Errorf("Route %s should NOT be registered without an analytics querier", r.Path)
		}
	}
}

func TestSetupRoutes_AnalyticsRegisteredWithQuerier(t *testing.T) {
	router := setupTestRouter(stubQuerier{}, extensions.DefaultOptions())

	found := false
	for _, r := range router.Routes() {
		if r.Method == "GET" && r.Path == "/v1/analytics/generations" {
			found = true
			break
		}
	}
	if !found {
		t.Error("Expected GET /v1/analytics/generations when a querier is configured")
	}
}

// ============================================================================
// Route Handler Tests
// ============================================================================

func TestSetupRoutes_HealthEndpoint(t *testing.T) {
	router := setupTestRouter(nil, extensions.DefaultOptions())

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/health", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Health endpoint returned %d, want %d", w.Code, http.StatusOK)
	}
	if !strings.Contains(w.Body.String(), `"version":"test"`) {
		t.Errorf("Health body missing version, got %s", w.Body.String())
	}
}

func TestSetupRoutes_MetricsEndpoint(t *testing.T) {
	router := setupTestRouter(nil, extensions.DefaultOptions())

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/metrics", nil)
	router.ServeHTTP(w, req)

	// Prometheus metrics endpoint should return 200
	if w.Code != http.StatusOK {
		t.Errorf("Metrics endpoint returned %d, want %d", w.Code, http.StatusOK)
	}

	contentType := w.Header().Get("Content-Type")
	if contentType == "" {
		t.Error("Metrics endpoint should return Content-Type header")
	}
}

// ============================================================================
// Middleware Wiring Tests
// ============================================================================

func TestSetupRoutes_AuthGuardsV1Group(t *testing.T) {
	opts := extensions.DefaultOptions().WithAuth(denyAuthProvider{})
	router := setupTestRouter(nil, opts)

	// /v1 routes reject when the provider rejects
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/v1/trips", nil)
	req.Header.Set("Authorization", "Bearer bad-token")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("GET /v1/trips with denying provider returned %d, want %d",
			w.Code, http.StatusUnauthorized)
	}

	// /health stays open
	w = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/health", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("GET /health with denying provider returned %d, want %d",
			w.Code, http.StatusOK)
	}
}

func TestSetupRoutes_GenerateEndpointRateLimited(t *testing.T) {
	router := gin.New()
	SetupRoutes(router, stubGenerator{}, storage.NewMemoryStore(), nil,
		extensions.DefaultOptions(), Config{
			Version:       "test",
			GenerateRPS:   0.1,
			GenerateBurst: 1,
		})

	body := `{"destination": "Paris, France", "trip_type": "trek"}`

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/v1/trips/generate", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("First generate returned %d, want %d", w.Code, http.StatusOK)
	}

	w = httptest.NewRecorder()
	req, _ = http.NewRequest("POST", "/v1/trips/generate", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusTooManyRequests {
		t.Errorf("Second generate returned %d, want %d", w.Code, http.StatusTooManyRequests)
	}
}

// TestSetupRoutes_ListEndpointNotRateLimited verifies the limiter only
// guards the generation endpoints.
func TestSetupRoutes_ListEndpointNotRateLimited(t *testing.T) {
	router := gin.New()
	SetupRoutes(router, stubGenerator{}, storage.NewMemoryStore(), nil,
		extensions.DefaultOptions(), Config{
			Version:       "test",
			GenerateRPS:   0.1,
			GenerateBurst: 1,
		})

	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/v1/trips", nil)
		router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("GET /v1/trips call %d returned %d, want %d", i+1, w.Code, http.StatusOK)
		}
	}
}
