// Copyright (C) 2025 Wayfarer AI (dev@wayfarer.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package enrich decorates assembled trips with optional extras: a weather
// forecast for the trip days and a destination image.
//
// Enrichment is strictly best-effort. Every failure is logged and swallowed;
// a trip without weather or an image is still a complete trip.
package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/WayfarerAI/WayfarerCore/pkg/geo"
	"github.com/WayfarerAI/WayfarerCore/services/planner/datatypes"
)

var tracer = otel.Tracer("wayfarer.planner.enrich")

// HTTPClient interface allows injecting mock HTTP clients for testing.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// WeatherClient fetches a daily forecast for a coordinate.
type WeatherClient interface {
	Forecast(ctx context.Context, point geo.Point, days int) ([]datatypes.DayForecast, error)
}

// OpenMeteoConfig configures the Open-Meteo forecast client.
type OpenMeteoConfig struct {
	// BaseURL of the Open-Meteo API. Defaults to the public instance.
	BaseURL string

	// Timeout per request. Defaults to 10 seconds.
	Timeout time.Duration

	// HTTPClient overrides the default client. Used in tests.
	HTTPClient HTTPClient
}

// OpenMeteoClient fetches daily forecasts from the Open-Meteo API.
//
// Open-Meteo requires no API key for non-commercial use, which keeps the
// default deployment free of forecast credentials.
type OpenMeteoClient struct {
	baseURL string
	client  HTTPClient
}

// NewOpenMeteoClient creates a forecast client.
func NewOpenMeteoClient(cfg OpenMeteoConfig) *OpenMeteoClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.open-meteo.com"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &OpenMeteoClient{baseURL: cfg.BaseURL, client: client}
}

// openMeteoResponse mirrors the daily block of the forecast API.
type openMeteoResponse struct {
	Daily struct {
		Time             []string  `json:"time"`
		TemperatureMax   []float64 `json:"temperature_2m_max"`
		TemperatureMin   []float64 `json:"temperature_2m_min"`
		PrecipitationSum []float64 `json:"precipitation_sum"`
		WeatherCode      []int     `json:"weathercode"`
	} `json:"daily"`
}

// Forecast returns up to days daily forecast entries for the point,
// starting today.
func (c *OpenMeteoClient) Forecast(ctx context.Context, point geo.Point, days int) ([]datatypes.DayForecast, error) {
	ctx, span := tracer.Start(ctx, "OpenMeteoClient.Forecast")
	defer span.End()

	if days <= 0 {
		return nil, nil
	}

	params := url.Values{}
	params.Set("latitude", fmt.Sprintf("%.4f", point.Lat))
	params.Set("longitude", fmt.Sprintf("%.4f", point.Lng))
	params.Set("daily", "temperature_2m_max,temperature_2m_min,precipitation_sum,weathercode")
	params.Set("forecast_days", fmt.Sprintf("%d", days))
	params.Set("timezone", "auto")

	endpoint := fmt.Sprintf("%s/v1/forecast?%s", c.baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call Open-Meteo API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Open-Meteo API returned status %s", resp.Status)
	}

	var payload openMeteoResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode Open-Meteo JSON: %w", err)
	}

	daily := payload.Daily
	forecasts := make([]datatypes.DayForecast, 0, len(daily.Time))
	for i, date := range daily.Time {
		if len(daily.TemperatureMax) <= i ||
			len(daily.TemperatureMin) <= i ||
			len(daily.PrecipitationSum) <= i ||
			len(daily.WeatherCode) <= i {
			continue
		}
		forecasts = append(forecasts, datatypes.DayForecast{
			Date:          date,
			MinTempC:      daily.TemperatureMin[i],
			MaxTempC:      daily.TemperatureMax[i],
			Precipitation: daily.PrecipitationSum[i],
			WeatherCode:   daily.WeatherCode[i],
		})
	}

	if len(forecasts) > days {
		forecasts = forecasts[:days]
	}
	return forecasts, nil
}

var _ WeatherClient = (*OpenMeteoClient)(nil)
