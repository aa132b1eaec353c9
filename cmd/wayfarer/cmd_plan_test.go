// Copyright (C) 2025 Wayfarer AI (dev@wayfarer.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"

	"github.com/WayfarerAI/WayfarerCore/pkg/ux"
)

// quietUX forces machine personality for the test so no spinner
// goroutines animate stdout while assertions run.
func quietUX(t *testing.T) {
	t.Helper()
	prev := ux.GetPersonality()
	ux.SetPersonalityLevel(ux.PersonalityMachine)
	t.Cleanup(func() { ux.SetPersonality(prev) })
}

func TestGenerateStreaming_HappyPath(t *testing.T) {
	quietUX(t)

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/trips/generate/ws" {
			http.NotFound(w, r)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		defer conn.Close()

		var req wsGenerateRequest
		if err := conn.ReadJSON(&req); err != nil {
			t.Errorf("failed to read the generate request: %v", err)
			return
		}
		if req.Destination != "Lake Annecy" || req.TripType != "trek" {
			t.Errorf("unexpected request: %+v", req)
		}

		conn.WriteJSON(map[string]any{"type": "progress", "stage": "validating", "message": "Checking the destination"})
		conn.WriteJSON(map[string]any{"type": "progress", "stage": "resolving", "day": 1, "days": 3})
		conn.WriteJSON(map[string]any{"type": "complete", "trip": map[string]any{
			"id":             "t-stream-1",
			"city":           "Annecy",
			"trip_type":      "trek",
			"estimated_days": 3,
		}})
	}))
	defer srv.Close()

	t.Setenv("WAYFARER_PLANNER_URL", srv.URL)

	trip, err := generateStreaming("Lake Annecy", "trek")
	if err != nil {
		t.Fatalf("generateStreaming failed: %v", err)
	}
	if trip.ID != "t-stream-1" {
		t.Errorf("expected trip t-stream-1, got %q", trip.ID)
	}
	if trip.EstimatedDays != 3 {
		t.Errorf("expected 3 days, got %d", trip.EstimatedDays)
	}
}

func TestGenerateStreaming_ErrorFrame(t *testing.T) {
	quietUX(t)

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var req wsGenerateRequest
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		conn.WriteJSON(map[string]any{"type": "error", "error": "destination could not be geocoded", "code": "GEOCODE_FAILED"})
	}))
	defer srv.Close()

	t.Setenv("WAYFARER_PLANNER_URL", srv.URL)

	_, err := generateStreaming("Nowhereville", "trek")
	if err == nil {
		t.Fatal("expected the error frame to surface as an error")
	}
	if !strings.Contains(err.Error(), "GEOCODE_FAILED") {
		t.Errorf("error should carry the planner code, got: %v", err)
	}
}

func TestGenerateStreaming_FallsBackWhenDialFails(t *testing.T) {
	quietUX(t)

	// Plain HTTP server: the websocket dial gets a bad handshake, so the
	// client should retry via the synchronous endpoint.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && r.URL.Path == "/v1/trips/generate" {
			json.NewEncoder(w).Encode(map[string]any{"id": "t-blocking-1", "city": "Annecy", "estimated_days": 2})
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	t.Setenv("WAYFARER_PLANNER_URL", srv.URL)

	trip, err := generateStreaming("Lake Annecy", "trek")
	if err != nil {
		t.Fatalf("expected the blocking fallback to succeed, got: %v", err)
	}
	if trip.ID != "t-blocking-1" {
		t.Errorf("expected the fallback trip, got %q", trip.ID)
	}
}

func TestGenerateBlocking_PostsTripRequest(t *testing.T) {
	quietUX(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode the request: %v", err)
		}
		if req["destination"] != "Tel Aviv" || req["trip_type"] != "cycling" {
			t.Errorf("unexpected request payload: %v", req)
		}
		json.NewEncoder(w).Encode(map[string]any{"id": "t-cy-1", "trip_type": "cycling", "estimated_days": 2})
	}))
	defer srv.Close()

	t.Setenv("WAYFARER_PLANNER_URL", srv.URL)

	trip, err := generateBlocking("Tel Aviv", "cycling", false)
	if err != nil {
		t.Fatalf("generateBlocking failed: %v", err)
	}
	if trip.ID != "t-cy-1" {
		t.Errorf("unexpected trip ID %q", trip.ID)
	}
}

func TestGenerateBlocking_SurfacesPlannerError(t *testing.T) {
	quietUX(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"error":"no roads near the destination","code":"RESOLUTION_FAILED"}`))
	}))
	defer srv.Close()

	t.Setenv("WAYFARER_PLANNER_URL", srv.URL)

	_, err := generateBlocking("Mid-Atlantic Ridge", "trek", false)
	if err == nil {
		t.Fatal("expected a planner error")
	}
	if !strings.Contains(err.Error(), "RESOLUTION_FAILED") {
		t.Errorf("error should carry the planner code, got: %v", err)
	}
}

func TestWsFrame_ProgressFieldsPromote(t *testing.T) {
	raw := `{"type":"progress","stage":"enforcing","message":"Repairing day 2","day":2,"days":3,"attempt":4}`

	var frame wsFrame
	if err := json.Unmarshal([]byte(raw), &frame); err != nil {
		t.Fatalf("failed to decode the frame: %v", err)
	}
	if frame.Type != "progress" {
		t.Errorf("expected type progress, got %q", frame.Type)
	}
	if frame.Stage != "enforcing" || frame.Day != 2 || frame.Days != 3 || frame.Attempt != 4 {
		t.Errorf("progress fields did not promote from the embedded event: %+v", frame)
	}
}

func TestPromptPlanForm_RefusesNonInteractive(t *testing.T) {
	quietUX(t) // machine personality makes IsInteractive return false

	_, _, err := promptPlanForm("trek")
	if err == nil {
		t.Fatal("expected an error when stdin is not interactive")
	}
	if !strings.Contains(err.Error(), "wayfarer plan") {
		t.Errorf("error should tell the user how to pass a destination, got: %v", err)
	}
}
