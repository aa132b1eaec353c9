// Copyright (C) 2025 Wayfarer AI (dev@wayfarer.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package e2e

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// TestCLI_HelpListsCommands verifies the command tree is wired up.
func TestCLI_HelpListsCommands(t *testing.T) {
	out, err := runCLI(t, "http://localhost:1", "--help")
	if err != nil {
		t.Fatalf("--help failed: %v\nOutput: %s", err, out)
	}
	for _, cmd := range []string{"plan", "trips", "export", "serve", "health"} {
		if !strings.Contains(out, cmd) {
			t.Errorf("help output is missing the %q command.\nOutput: %s", cmd, out)
		}
	}
}

// TestCLI_PlanRejectsUnknownTripType verifies input validation happens
// before any network call: the planner URL points at a dead port.
func TestCLI_PlanRejectsUnknownTripType(t *testing.T) {
	out, err := runCLI(t, "http://localhost:1", "plan", "Annecy", "--type", "skiing")
	if err == nil {
		t.Fatalf("expected a non-zero exit for an unknown trip type.\nOutput: %s", out)
	}
	if !strings.Contains(out, "Unknown trip type") {
		t.Errorf("expected the trip-type error, got:\n%s", out)
	}
}

// TestCLI_HealthAgainstStubPlanner runs the health check against an
// in-process stub planner.
func TestCLI_HealthAgainstStubPlanner(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{
			"status": "ok", "service": "wayfarer-planner", "version": "1.0.0",
		})
	}))
	defer srv.Close()

	out, err := runCLI(t, srv.URL, "health")
	if err != nil {
		t.Fatalf("health failed: %v\nOutput: %s", err, out)
	}
	if !strings.Contains(out, "is healthy") {
		t.Errorf("expected a healthy report, got:\n%s", out)
	}
}

// TestCLI_PlanJSON generates a trip against a stub planner and checks
// the --json output is the raw trip document.
func TestCLI_PlanJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/trips/generate" {
			http.NotFound(w, r)
			return
		}
		var req map[string]any
		json.NewDecoder(r.Body).Decode(&req)
		if req["destination"] != "Lake Annecy" {
			t.Errorf("stub planner got the wrong destination: %v", req["destination"])
		}
		json.NewEncoder(w).Encode(map[string]any{
			"id": "e2e-trip-1", "city": "Annecy", "trip_type": "trek", "estimated_days": 3,
		})
	}))
	defer srv.Close()

	out, err := runCLI(t, srv.URL, "plan", "Lake Annecy", "--json")
	if err != nil {
		t.Fatalf("plan --json failed: %v\nOutput: %s", err, out)
	}
	if !strings.Contains(out, `"id": "e2e-trip-1"`) {
		t.Errorf("expected the raw trip JSON, got:\n%s", out)
	}
}

// TestCLI_TripsListEmpty checks the empty-state message.
func TestCLI_TripsListEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"trips": []any{}, "count": 0})
	}))
	defer srv.Close()

	out, err := runCLI(t, srv.URL, "trips", "list")
	if err != nil {
		t.Fatalf("trips list failed: %v\nOutput: %s", err, out)
	}
	if !strings.Contains(out, "No saved trips") {
		t.Errorf("expected the empty-state message, got:\n%s", out)
	}
}

// TestCLI_DeleteRequiresForce verifies the destructive command refuses
// to run without --force.
func TestCLI_DeleteRequiresForce(t *testing.T) {
	out, err := runCLI(t, "http://localhost:1", "trips", "delete", "some-id")
	if err == nil {
		t.Fatalf("expected a non-zero exit without --force.\nOutput: %s", out)
	}
	if !strings.Contains(out, "--force") {
		t.Errorf("expected the --force hint, got:\n%s", out)
	}
}
