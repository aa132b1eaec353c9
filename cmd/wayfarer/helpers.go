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
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/WayfarerAI/WayfarerCore/cmd/wayfarer/config"
)

const (
	// DefaultPlannerHost is the host the CLI targets when neither the
	// environment nor the config file names a planner.
	DefaultPlannerHost = "localhost"

	// DefaultPlannerPort matches the planner binary's default listen port.
	DefaultPlannerPort = 12220
)

// getPlannerBaseURL resolves the planner address. Order of precedence:
// WAYFARER_PLANNER_URL, then server.url from wayfarer.yaml, then the
// localhost default. A trailing slash is stripped so callers can append
// paths without double slashes.
func getPlannerBaseURL() string {
	if envURL := os.Getenv("WAYFARER_PLANNER_URL"); envURL != "" {
		return strings.TrimRight(envURL, "/")
	}
	if cfgURL := config.Snapshot().Server.URL; cfgURL != "" {
		return strings.TrimRight(cfgURL, "/")
	}
	return fmt.Sprintf("http://%s:%d", DefaultPlannerHost, DefaultPlannerPort)
}

// adminClient returns an http.Client for the quick administrative calls
// (list, show, delete, health, GPX download). Generation goes over the
// websocket or through apiPost with its own, much longer timeout.
func adminClient() *http.Client {
	timeout := time.Duration(config.Snapshot().Server.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

// apiGet fetches url and returns the response body. Non-2xx responses
// are turned into an error via apiError.
func apiGet(url string) ([]byte, error) {
	resp, err := adminClient().Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to reach the planner at %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read the planner response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apiError(resp.StatusCode, body)
	}
	return body, nil
}

// apiPost sends a JSON payload and returns the response body. The
// timeout is per call because trip generation legitimately runs for
// minutes while administrative posts should fail fast.
func apiPost(url string, payload any, timeout time.Duration) ([]byte, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode the request payload: %w", err)
	}

	client := &http.Client{Timeout: timeout}
	resp, err := client.Post(url, "application/json", bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("failed to reach the planner at %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read the planner response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apiError(resp.StatusCode, body)
	}
	return body, nil
}

// apiDelete issues a DELETE and returns the response body.
func apiDelete(url string) ([]byte, error) {
	req, err := http.NewRequest(http.MethodDelete, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build the delete request: %w", err)
	}

	resp, err := adminClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach the planner at %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read the planner response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apiError(resp.StatusCode, body)
	}
	return body, nil
}

// apiError shapes a planner error response into something readable.
// The planner answers failures with {"error": "...", "code": "..."};
// anything else (proxy pages, panics) falls back to the raw body.
func apiError(status int, body []byte) error {
	var parsed struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error != "" {
		if parsed.Code != "" {
			return fmt.Errorf("%s (status %d, code %s)", parsed.Error, status, parsed.Code)
		}
		return fmt.Errorf("%s (status %d)", parsed.Error, status)
	}
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return fmt.Errorf("planner returned status %d with an empty body", status)
	}
	return fmt.Errorf("planner returned status %d: %s", status, trimmed)
}

// configHint names the config file for error messages. Falls back to
// the documented location when the home directory cannot be resolved.
func configHint() string {
	path, err := config.Path()
	if err != nil {
		return "~/.wayfarer/wayfarer.yaml"
	}
	return path
}

// wsEndpoint converts the planner base URL into the websocket address
// of the streaming generation endpoint.
func wsEndpoint(baseURL string) string {
	ws := baseURL
	switch {
	case strings.HasPrefix(ws, "https://"):
		ws = "wss://" + strings.TrimPrefix(ws, "https://")
	case strings.HasPrefix(ws, "http://"):
		ws = "ws://" + strings.TrimPrefix(ws, "http://")
	}
	return ws + "/v1/trips/generate/ws"
}
