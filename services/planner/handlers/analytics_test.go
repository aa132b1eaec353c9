// Copyright (C) 2025 Wayfarer AI (dev@wayfarer.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WayfarerAI/WayfarerCore/services/planner/analytics"
)

// MockGenerationQuerier implements GenerationQuerier for handler testing.
type MockGenerationQuerier struct {
	Records []analytics.GenerationRecord
	Err     error

	LastDays int
}

func (m *MockGenerationQuerier) RecentGenerations(ctx context.Context, days int) ([]analytics.GenerationRecord, error) {
	m.LastDays = days
	return m.Records, m.Err
}

func TestRecentGenerations_Success(t *testing.T) {
	mock := &MockGenerationQuerier{
		Records: []analytics.GenerationRecord{
			{
				Time:     time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
				TripType: "trek",
				City:     "Paris",
				TotalKm:  7.8,
				Days:     1,
				Attempts: 1,
			},
			{
				Time:     time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC),
				TripType: "cycling",
				City:     "Ghent",
				TotalKm:  84.2,
				Days:     2,
				Attempts: 2,
				Repairs:  1,
			},
		},
	}
	router := createTestRouter("GET", "/v1/analytics/generations", RecentGenerations(mock))

	w := performRequest(router, "GET", "/v1/analytics/generations", nil)

	assert.Equal(t, http.StatusOK, w.Code)

	var response struct {
		Generations []analytics.GenerationRecord `json:"generations"`
		Count       int                          `json:"count"`
	}
	err := json.Unmarshal(w.Body.Bytes(), &response)
	require.NoError(t, err)
	assert.Equal(t, 2, response.Count)
	require.Len(t, response.Generations, 2)
	assert.Equal(t, "Paris", response.Generations[0].City)
	assert.Equal(t, int64(1), response.Generations[1].Repairs)
}

// TestRecentGenerations_DaysParameter verifies the window parameter is
// forwarded to the querier, with zero meaning "use the default window".
func TestRecentGenerations_DaysParameter(t *testing.T) {
	mock := &MockGenerationQuerier{}
	router := createTestRouter("GET", "/v1/analytics/generations", RecentGenerations(mock))

	w := performRequest(router, "GET", "/v1/analytics/generations?days=7", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 7, mock.LastDays)

	w = performRequest(router, "GET", "/v1/analytics/generations", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, mock.LastDays)
}

func TestRecentGenerations_InvalidDays(t *testing.T) {
	mock := &MockGenerationQuerier{}
	router := createTestRouter("GET", "/v1/analytics/generations", RecentGenerations(mock))

	for _, days := range []string{"abc", "-3"} {
		w := performRequest(router, "GET", "/v1/analytics/generations?days="+days, nil)

		assert.Equal(t, http.StatusBadRequest, w.Code, "days=%s", days)
		assert.JSONEq(t, `{"error": "invalid days parameter"}`, w.Body.String())
	}
}

func TestRecentGenerations_QuerierError(t *testing.T) {
	mock := &MockGenerationQuerier{Err: errors.New("influx: bucket not found")}
	router := createTestRouter("GET", "/v1/analytics/generations", RecentGenerations(mock))

	w := performRequest(router, "GET", "/v1/analytics/generations", nil)

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.JSONEq(t, `{"error": "failed to query analytics"}`, w.Body.String())
}

func TestRecentGenerations_NotConfigured(t *testing.T) {
	router := createTestRouter("GET", "/v1/analytics/generations", RecentGenerations(nil))

	w := performRequest(router, "GET", "/v1/analytics/generations", nil)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"error": "analytics not configured"}`, w.Body.String())
}
