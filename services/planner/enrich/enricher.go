// Copyright (C) 2025 Wayfarer AI (dev@wayfarer.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package enrich

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/WayfarerAI/WayfarerCore/services/planner/datatypes"
)

// Enricher decorates trips with weather and imagery. Either client may be
// nil, which disables that enrichment.
type Enricher struct {
	weather WeatherClient
	image   ImageClient
}

// NewEnricher creates an enricher. Nil clients disable the corresponding
// enrichment.
func NewEnricher(weather WeatherClient, image ImageClient) *Enricher {
	return &Enricher{weather: weather, image: image}
}

// Apply fills trip.Weather and trip.ImageURL in place.
//
// Both lookups run concurrently and are best-effort: failures are logged
// and the corresponding field is left empty. Apply never returns an error.
func (e *Enricher) Apply(ctx context.Context, trip *datatypes.Trip) {
	ctx, span := tracer.Start(ctx, "Enricher.Apply")
	defer span.End()
	span.SetAttributes(attribute.String("city", trip.City))

	g, gctx := errgroup.WithContext(ctx)

	if e.weather != nil && len(trip.Routes) > 0 && trip.EstimatedDays > 0 {
		g.Go(func() error {
			start := trip.Routes[0].StartPoint
			forecasts, err := e.weather.Forecast(gctx, start, trip.EstimatedDays)
			if err != nil {
				slog.Warn("Weather enrichment failed", "city", trip.City, "error", err)
				return nil
			}
			trip.Weather = forecasts
			return nil
		})
	}

	if e.image != nil && trip.City != "" {
		g.Go(func() error {
			imageURL, err := e.image.Thumbnail(gctx, trip.City)
			if err != nil {
				slog.Warn("Image enrichment failed", "city", trip.City, "error", err)
				return nil
			}
			trip.ImageURL = imageURL
			return nil
		})
	}

	// Workers swallow their own errors, so Wait only propagates context
	// cancellation.
	_ = g.Wait()
}
