// Copyright (C) 2025 Wayfarer AI (dev@wayfarer.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package geocode

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testClient points a NominatimClient at a httptest server with the rate
// limiter effectively disabled.
func testClient(t *testing.T, handler http.HandlerFunc) *NominatimClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewNominatimClient(NominatimConfig{
		BaseURL:           server.URL,
		UserAgent:         "wayfarer-test",
		RequestsPerSecond: 1000,
	})
}

func TestNominatimSearchPicksHighestImportance(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"lat": "48.2082", "lon": "16.3738", "display_name": "Vienna, Austria", "importance": 0.89},
			{"lat": "38.9012", "lon": "-77.2653", "display_name": "Vienna, Virginia, USA", "importance": 0.61}
		]`))
	})

	result, err := client.Search(context.Background(), "Vienna")
	require.NoError(t, err, "search should succeed")

	assert.Equal(t, "Vienna, Austria", result.DisplayName, "should pick the highest-importance match")
	assert.InDelta(t, 48.2082, result.Point.Lat, 1e-9)
	assert.InDelta(t, 16.3738, result.Point.Lng, 1e-9)
}

func TestNominatimSearchUnordered(t *testing.T) {
	// The public instance usually sorts by importance, but the contract
	// does not promise it.
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"lat": "1.0", "lon": "1.0", "display_name": "minor", "importance": 0.2},
			{"lat": "2.0", "lon": "2.0", "display_name": "major", "importance": 0.9},
			{"lat": "3.0", "lon": "3.0", "display_name": "middling", "importance": 0.5}
		]`))
	})

	result, err := client.Search(context.Background(), "somewhere")
	require.NoError(t, err)
	assert.Equal(t, "major", result.DisplayName)
}

func TestNominatimSearchNoResults(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})

	_, err := client.Search(context.Background(), "xzzyqq nowhere")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoResults), "empty result set should map to ErrNoResults")
}

func TestNominatimSearchServerError(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("overloaded"))
	})

	_, err := client.Search(context.Background(), "Paris")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNoResults), "transport failure must not look like an empty result")
	assert.Contains(t, err.Error(), "503")
}

func TestNominatimSearchSendsUserAgent(t *testing.T) {
	var gotAgent string
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAgent = r.Header.Get("User-Agent")
		w.Write([]byte(`[{"lat": "0.5", "lon": "0.5", "display_name": "x", "importance": 0.1}]`))
	})

	_, err := client.Search(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, "wayfarer-test", gotAgent, "usage policy requires an identifying User-Agent")
}

func TestNominatimSearchBadCoordinates(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"lat": "not-a-number", "lon": "0.5", "display_name": "x", "importance": 0.1}]`))
	})

	_, err := client.Search(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unparseable latitude")
}
