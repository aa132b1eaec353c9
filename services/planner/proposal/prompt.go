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
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/prompts"

	"github.com/WayfarerAI/WayfarerCore/services/planner/datatypes"
)

// systemPrompt pins the model's role and the response contract. The JSON
// skeleton below IS the contract: datatypes.TripPlan's json tags must
// match it field for field.
const systemPrompt = `You are an expert outdoor trip planner. You design multi-day trekking and cycling itineraries with precise GPS coordinates.

RESPONSE FORMAT (MANDATORY):
Respond with a single JSON object, exactly this structure:
{
  "city": "City, Country",
  "tripType": "trek",
  "estimatedDays": 3,
  "routes": [
    {
      "day": 1,
      "startPoint": {"lat": 48.8530, "lng": 2.3499, "name": "Notre-Dame Cathedral"},
      "endPoint": {"lat": 48.8606, "lng": 2.3376, "name": "Louvre Museum"},
      "waypoints": [
        {"lat": 48.8566, "lng": 2.3425, "name": "Pont Neuf"}
      ],
      "description": "One sentence about the day"
    }
  ],
  "highlights": ["..."],
  "equipment": ["..."],
  "tips": ["..."]
}

HARD RULES:
- "city" must contain a comma separating city and country, like "Paris, France".
- "tripType" must repeat the requested trip type exactly.
- "estimatedDays" must equal the number of entries in "routes".
- Each day has 0 to 4 waypoints.
- Every latitude is between -90 and 90, every longitude between -180 and 180.
- Every point has a short descriptive "name".`

// userPromptTemplate is the per-request instruction. Variables are filled
// from the request and the trip type's invariants.
var userPromptTemplate = prompts.NewPromptTemplate(
	`Plan a {{.tripType}} trip in {{.destination}}.

Requirements:
- The trip must span {{.dayRequirement}}.
- Each day must cover between {{.minKm}} and {{.maxKm}} km of actual route distance.
- {{.shapeRequirement}}
- Consecutive days must connect: each day starts where the previous day ended.
- Choose start points, waypoints and end points at recognizable locations (landmarks, villages, trailheads).`,
	[]string{"tripType", "destination", "dayRequirement", "minKm", "maxKm", "shapeRequirement"},
)

// strengthenSuffix is appended from the second attempt on, once the model
// has already produced at least one unusable response.
const strengthenSuffix = `

IMPORTANT: Output ONLY the JSON object. No prose, no explanations, no markdown code fences. The response must start with { and end with }.`

// routabilitySuffix is appended after a previous plan died on an
// unreachable coordinate. It steers the model toward the path network
// instead of scenic-but-unroutable spots.
const routabilitySuffix = `

COORDINATE GUIDANCE: A previous plan failed because a point was not reachable by the path network. Place every coordinate directly ON an established road, marked trail, or trailhead. Prefer village centers, car parks and signposted trail junctions. Avoid lakes, rivers, cliffs, summits without trails, and open water.`

// buildUserPrompt renders the instruction for one generation attempt.
//
// The prompt is strengthened from attempt 2 on; routability guidance is
// injected only when the previous failure was an unreachable coordinate,
// regardless of attempt number.
func buildUserPrompt(destination string, tripType datatypes.TripType, attempt int, priorFailure error) (string, error) {
	minDays, maxDays := tripType.DayCountBounds()
	minKm, maxKm := tripType.DayDistanceBoundsKm()

	dayRequirement := fmt.Sprintf("between %d and %d days", minDays, maxDays)
	if minDays == maxDays {
		dayRequirement = fmt.Sprintf("exactly %d days", minDays)
	}

	shapeRequirement := "The overall route must form a loop: the last day ends where day 1 starts."
	if !tripType.IsLoop() {
		shapeRequirement = "The route is point-to-point: the overall end must be a different location than the overall start."
	}

	rendered, err := userPromptTemplate.Format(map[string]any{
		"tripType":         string(tripType),
		"destination":      destination,
		"dayRequirement":   dayRequirement,
		"minKm":            fmt.Sprintf("%.0f", minKm),
		"maxKm":            fmt.Sprintf("%.0f", maxKm),
		"shapeRequirement": shapeRequirement,
	})
	if err != nil {
		return "", fmt.Errorf("failed to render prompt template: %w", err)
	}

	var b strings.Builder
	b.WriteString(rendered)
	if attempt >= 2 {
		b.WriteString(strengthenSuffix)
	}
	if datatypes.IsRoutingUnreachable(priorFailure) {
		b.WriteString(routabilitySuffix)
	}
	return b.String(), nil
}
