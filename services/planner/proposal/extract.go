// Copyright (C) 2025 Wayfarer AI (dev@wayfarer.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package proposal

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/WayfarerAI/WayfarerCore/services/planner/datatypes"
)

// extractJSON pulls the JSON object out of a raw model response.
//
// Models wrap JSON in markdown fences or chat filler no matter how firmly
// the prompt forbids it. Cleanup order: strip fences, then slice from the
// first '{' to the last '}'.
func extractJSON(response string) (string, error) {
	// Clean up the response - remove markdown code blocks if present
	response = strings.TrimSpace(response)
	response = strings.TrimPrefix(response, "```json")
	response = strings.TrimPrefix(response, "```")
	response = strings.TrimSuffix(response, "```")
	response = strings.TrimSpace(response)

	startIdx := strings.Index(response, "{")
	endIdx := strings.LastIndex(response, "}")
	if startIdx == -1 || endIdx == -1 || endIdx <= startIdx {
		return "", fmt.Errorf("no JSON object found in response: %s", truncate(response, 120))
	}

	return response[startIdx : endIdx+1], nil
}

// parsePlan turns a raw model response into a schema-valid TripPlan.
// Any failure here costs one generation attempt; parse failures and
// schema violations are treated identically.
func parsePlan(response string, requested datatypes.TripType) (*datatypes.TripPlan, error) {
	jsonStr, err := extractJSON(response)
	if err != nil {
		return nil, err
	}

	var plan datatypes.TripPlan
	if err := json.Unmarshal([]byte(jsonStr), &plan); err != nil {
		return nil, fmt.Errorf("failed to parse plan JSON: %v, response: %s", err, truncate(jsonStr, 120))
	}

	if err := plan.ValidateSchema(requested); err != nil {
		return nil, err
	}
	return &plan, nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
