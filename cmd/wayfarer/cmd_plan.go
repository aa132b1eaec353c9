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
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/WayfarerAI/WayfarerCore/cmd/wayfarer/config"
	"github.com/WayfarerAI/WayfarerCore/pkg/ux"
	"github.com/WayfarerAI/WayfarerCore/pkg/validation"
	"github.com/WayfarerAI/WayfarerCore/services/planner/datatypes"
)

var (
	planType     string
	planNoStream bool
	planJSON     bool
	planTimeout  time.Duration
)

func init() {
	planCmd.Flags().StringVarP(&planType, "type", "t", "",
		"Trip type: trek or cycling (default: defaults.trip_type from the config)")
	planCmd.Flags().BoolVar(&planNoStream, "no-stream", false,
		"Skip live progress and block until the trip is ready")
	planCmd.Flags().BoolVar(&planJSON, "json", false,
		"Print the raw trip JSON instead of the summary")
	planCmd.Flags().DurationVar(&planTimeout, "timeout", 5*time.Minute,
		"How long to wait for generation before giving up")
}

// wsGenerateRequest is the single message sent after connecting to the
// streaming generation endpoint. The planner fills in a request ID.
type wsGenerateRequest struct {
	Destination string `json:"destination"`
	TripType    string `json:"trip_type"`
}

// wsFrame mirrors the planner's websocket frames. Progress fields
// promote from the embedded event so frames decode flat.
type wsFrame struct {
	Type string `json:"type"`
	ux.GenerationEvent
	Trip  *datatypes.Trip `json:"trip,omitempty"`
	Error string          `json:"error,omitempty"`
	Code  string          `json:"code,omitempty"`
}

func runPlanCommand(cmd *cobra.Command, args []string) {
	destination := strings.TrimSpace(strings.Join(args, " "))
	tripType := planType
	if tripType == "" {
		tripType = config.Snapshot().Defaults.TripType
	}

	if destination == "" {
		var err error
		destination, tripType, err = promptPlanForm(tripType)
		if err != nil {
			if errors.Is(err, huh.ErrUserAborted) {
				ux.Muted("Cancelled.")
				return
			}
			ux.Error(fmt.Sprintf("Could not read the trip details: %v", err))
			os.Exit(1)
		}
	}

	if err := validation.ValidateDestination(destination); err != nil {
		ux.Error(fmt.Sprintf("Invalid destination: %v", err))
		os.Exit(1)
	}
	if !datatypes.TripType(tripType).Valid() {
		ux.Error(fmt.Sprintf("Unknown trip type %q; use trek or cycling", tripType))
		os.Exit(1)
	}

	var trip *datatypes.Trip
	var err error
	switch {
	case planJSON:
		// Keep stdout clean for piping; no spinner, no progress frames.
		trip, err = generateBlocking(destination, tripType, false)
	case planNoStream || !ux.ShouldShowProgress():
		trip, err = generateBlocking(destination, tripType, true)
	default:
		trip, err = generateStreaming(destination, tripType)
	}
	if err != nil {
		ux.Error(fmt.Sprintf("Trip generation failed: %v", err))
		os.Exit(1)
	}

	if planJSON {
		encoded, marshalErr := json.MarshalIndent(trip, "", "  ")
		if marshalErr != nil {
			ux.Error(fmt.Sprintf("Failed to encode the trip: %v", marshalErr))
			os.Exit(1)
		}
		fmt.Println(string(encoded))
		return
	}

	renderTripSummary(trip)
}

// promptPlanForm asks for the destination and trip type interactively.
// Returns huh.ErrUserAborted when the user backs out.
func promptPlanForm(defaultType string) (string, string, error) {
	if !ux.IsInteractive() {
		return "", "", fmt.Errorf("no destination given and stdin is not a terminal; pass one, e.g. wayfarer plan \"Lake Annecy\"")
	}

	destination := ""
	tripType := defaultType
	if !datatypes.TripType(tripType).Valid() {
		tripType = string(datatypes.TripTypeTrek)
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Where to?").
				Placeholder("Lake Annecy, France").
				Validate(validation.ValidateDestination).
				Value(&destination),
			huh.NewSelect[string]().
				Title("Trip type").
				Options(
					huh.NewOption("Trek — walking loop, 1-5 days", string(datatypes.TripTypeTrek)),
					huh.NewOption("Cycling — 2-day point-to-point tour", string(datatypes.TripTypeCycling)),
				).
				Value(&tripType),
		),
	)
	if err := form.Run(); err != nil {
		return "", "", err
	}
	return strings.TrimSpace(destination), tripType, nil
}

// generateStreaming runs generation over the websocket endpoint,
// rendering progress frames as they arrive. If the dial fails (older
// planner, proxy stripping upgrades) it falls back to the blocking path.
func generateStreaming(destination, tripType string) (*datatypes.Trip, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	conn, _, err := dialer.Dial(wsEndpoint(getPlannerBaseURL()), nil)
	if err != nil {
		ux.Muted("Live progress unavailable, falling back to plain request.")
		return generateBlocking(destination, tripType, true)
	}
	defer conn.Close()

	if err := conn.SetReadDeadline(time.Now().Add(planTimeout)); err != nil {
		return nil, fmt.Errorf("failed to arm the generation timeout: %w", err)
	}
	if err := conn.WriteJSON(wsGenerateRequest{Destination: destination, TripType: tripType}); err != nil {
		return nil, fmt.Errorf("failed to send the generation request: %w", err)
	}

	renderer := ux.NewProgressRenderer()
	defer renderer.Finish()

	for {
		var frame wsFrame
		if err := conn.ReadJSON(&frame); err != nil {
			renderer.Fail("Lost the planner connection")
			return nil, fmt.Errorf("stream ended before the trip was ready: %w", err)
		}

		switch frame.Type {
		case "progress":
			renderer.Update(frame.GenerationEvent)
		case "complete":
			if frame.Trip == nil {
				renderer.Fail("Planner sent an empty result")
				return nil, fmt.Errorf("planner reported completion without a trip")
			}
			renderer.Complete("Trip ready")
			return frame.Trip, nil
		case "error":
			renderer.Fail(frame.Error)
			if frame.Code != "" {
				return nil, fmt.Errorf("%s (code %s)", frame.Error, frame.Code)
			}
			return nil, fmt.Errorf("%s", frame.Error)
		default:
			// Ignore frame types this build does not know about.
		}
	}
}

// generateBlocking posts to the synchronous generation endpoint and
// waits for the whole trip.
func generateBlocking(destination, tripType string, spin bool) (*datatypes.Trip, error) {
	url := getPlannerBaseURL() + "/v1/trips/generate"
	payload := datatypes.TripRequest{
		Timestamp:   time.Now().UnixMilli(),
		Destination: destination,
		TripType:    datatypes.TripType(tripType),
	}

	var body []byte
	call := func() error {
		var postErr error
		body, postErr = apiPost(url, payload, planTimeout)
		return postErr
	}

	var err error
	if spin {
		err = ux.WithSpinner(fmt.Sprintf("Planning a %s around %s...", tripType, destination), call)
	} else {
		err = call()
	}
	if err != nil {
		return nil, err
	}

	var trip datatypes.Trip
	if err := json.Unmarshal(body, &trip); err != nil {
		return nil, fmt.Errorf("failed to decode the trip response: %w", err)
	}
	return &trip, nil
}

// renderTripSummary prints the day-by-day overview of a generated trip.
// Shared by plan and trips show.
func renderTripSummary(trip *datatypes.Trip) {
	ux.Title(fmt.Sprintf("%s — %s, %d day(s)", trip.City, trip.TripType, trip.EstimatedDays))

	for _, route := range trip.Routes {
		detail := fmt.Sprintf("%.1f km, %s", route.DistanceKm, ux.FormatDuration(route.DurationMin))
		if route.Description != "" {
			detail = fmt.Sprintf("%s — %s", detail, route.Description)
		}
		ux.StageStatus(fmt.Sprintf("Day %d", route.Day), ux.IconFlag, detail)
	}

	ux.Summary(trip.EstimatedDays, trip.TotalDistanceKm, trip.TotalDurationMin)

	if len(trip.Highlights) > 0 {
		ux.Info("Highlights:")
		for _, h := range trip.Highlights {
			ux.Muted(fmt.Sprintf("  %s %s", ux.IconBullet, h))
		}
	}
	if trip.Difficulty != "" {
		ux.Muted(fmt.Sprintf("Difficulty: %s", trip.Difficulty))
	}

	ux.Muted(fmt.Sprintf("Saved as %s — export with: wayfarer export %s", trip.ID, trip.ID))
}
