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
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/WayfarerAI/WayfarerCore/pkg/ux"
	"github.com/WayfarerAI/WayfarerCore/services/planner/datatypes"
	"github.com/WayfarerAI/WayfarerCore/services/planner/storage"
)

var (
	tripsListLimit int
	tripsListJSON  bool
	tripsShowJSON  bool
	tripsDelForce  bool
)

func init() {
	tripsListCmd.Flags().IntVar(&tripsListLimit, "limit", 20, "Maximum number of trips to list")
	tripsListCmd.Flags().BoolVar(&tripsListJSON, "json", false, "Print the raw listing JSON")
	tripsShowCmd.Flags().BoolVar(&tripsShowJSON, "json", false, "Print the raw trip JSON")
	tripsDeleteCmd.Flags().BoolVar(&tripsDelForce, "force", false, "Required to actually delete; prompts for confirmation")
}

// tripListResponse mirrors the planner's GET /v1/trips body.
type tripListResponse struct {
	Trips []storage.TripSummary `json:"trips"`
	Count int                   `json:"count"`
}

func runTripsList(cmd *cobra.Command, args []string) {
	url := fmt.Sprintf("%s/v1/trips?limit=%d", getPlannerBaseURL(), tripsListLimit)
	body, err := apiGet(url)
	if err != nil {
		ux.Error(fmt.Sprintf("Failed to list trips: %v", err))
		os.Exit(1)
	}

	if tripsListJSON {
		fmt.Println(string(body))
		return
	}

	var listing tripListResponse
	if err := json.Unmarshal(body, &listing); err != nil {
		ux.Error(fmt.Sprintf("Failed to decode the trip listing: %v", err))
		os.Exit(1)
	}

	if listing.Count == 0 {
		ux.Info("No saved trips yet. Generate one with: wayfarer plan \"<destination>\"")
		return
	}

	ux.Title(fmt.Sprintf("Saved trips (%d)", listing.Count))
	for _, t := range listing.Trips {
		detail := fmt.Sprintf("%s, %d day(s), %.1f km, %s",
			t.TripType, t.EstimatedDays, t.TotalDistanceKm, t.CreatedAt.Local().Format("2006-01-02 15:04"))
		ux.StageStatus(t.City, ux.IconFlag, detail)
		ux.Muted(fmt.Sprintf("    id: %s", t.ID))
	}
}

func runTripsShow(cmd *cobra.Command, args []string) {
	id := args[0]
	body, err := apiGet(fmt.Sprintf("%s/v1/trips/%s", getPlannerBaseURL(), id))
	if err != nil {
		ux.Error(fmt.Sprintf("Failed to fetch trip %s: %v", id, err))
		os.Exit(1)
	}

	if tripsShowJSON {
		fmt.Println(string(body))
		return
	}

	var trip datatypes.Trip
	if err := json.Unmarshal(body, &trip); err != nil {
		ux.Error(fmt.Sprintf("Failed to decode trip %s: %v", id, err))
		os.Exit(1)
	}
	renderTripSummary(&trip)

	if len(trip.Equipment) > 0 {
		ux.Info("Bring:")
		for _, item := range trip.Equipment {
			ux.Muted(fmt.Sprintf("  %s %s", ux.IconBullet, item))
		}
	}
	if len(trip.Tips) > 0 {
		ux.Info("Tips:")
		for _, tip := range trip.Tips {
			ux.Muted(fmt.Sprintf("  %s %s", ux.IconBullet, tip))
		}
	}
}

func runTripsDelete(cmd *cobra.Command, args []string) {
	id := args[0]

	if !tripsDelForce {
		ux.Warning("Deleting a trip is unrecoverable. Re-run with --force to proceed.")
		os.Exit(1)
	}

	fmt.Printf("Delete trip %s permanently? (yes/no): ", id)
	reader := bufio.NewReader(os.Stdin)
	answer, err := reader.ReadString('\n')
	if err != nil {
		ux.Error(fmt.Sprintf("Failed to read the confirmation: %v", err))
		os.Exit(1)
	}
	if strings.TrimSpace(strings.ToLower(answer)) != "yes" {
		ux.Muted("Aborted. Nothing was deleted.")
		return
	}

	body, err := apiDelete(fmt.Sprintf("%s/v1/trips/%s", getPlannerBaseURL(), id))
	if err != nil {
		ux.Error(fmt.Sprintf("Failed to delete trip %s: %v", id, err))
		os.Exit(1)
	}

	var result struct {
		Status        string `json:"status"`
		DeletedTripID string `json:"deleted_trip_id"`
	}
	if err := json.Unmarshal(body, &result); err != nil || result.Status != "success" {
		ux.Warning(fmt.Sprintf("Planner answered but the response was unexpected: %s", strings.TrimSpace(string(body))))
		return
	}
	ux.Success(fmt.Sprintf("Deleted trip %s", result.DeletedTripID))
}
