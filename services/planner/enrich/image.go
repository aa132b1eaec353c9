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
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// ImageClient fetches a representative image URL for a destination.
type ImageClient interface {
	Thumbnail(ctx context.Context, title string) (string, error)
}

// WikipediaConfig configures the Wikipedia summary client.
type WikipediaConfig struct {
	// BaseURL of the Wikipedia REST API. Defaults to the English instance.
	BaseURL string

	// UserAgent identifies us to the Wikimedia API, which requires one.
	UserAgent string

	// Timeout per request. Defaults to 10 seconds.
	Timeout time.Duration

	// HTTPClient overrides the default client. Used in tests.
	HTTPClient HTTPClient
}

// WikipediaClient resolves a city to its page thumbnail via the Wikipedia
// REST page-summary endpoint.
type WikipediaClient struct {
	baseURL   string
	userAgent string
	client    HTTPClient
}

// NewWikipediaClient creates an image client.
func NewWikipediaClient(cfg WikipediaConfig) *WikipediaClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://en.wikipedia.org/api/rest_v1"
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "wayfarer-planner"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &WikipediaClient{baseURL: cfg.BaseURL, userAgent: cfg.UserAgent, client: client}
}

// pageSummary mirrors the fields we use from the page-summary response.
type pageSummary struct {
	Thumbnail struct {
		Source string `json:"source"`
	} `json:"thumbnail"`
	OriginalImage struct {
		Source string `json:"source"`
	} `json:"originalimage"`
}

// Thumbnail returns the page thumbnail URL for the title, preferring the
// original image when present. An empty string with nil error means the
// page exists but carries no image.
func (c *WikipediaClient) Thumbnail(ctx context.Context, title string) (string, error) {
	ctx, span := tracer.Start(ctx, "WikipediaClient.Thumbnail")
	defer span.End()

	endpoint := fmt.Sprintf("%s/page/summary/%s", c.baseURL, url.PathEscape(title))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to call Wikipedia API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", nil
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("Wikipedia API returned status %s", resp.Status)
	}

	var summary pageSummary
	if err := json.NewDecoder(resp.Body).Decode(&summary); err != nil {
		return "", fmt.Errorf("failed to decode Wikipedia JSON: %w", err)
	}

	if summary.OriginalImage.Source != "" {
		return summary.OriginalImage.Source, nil
	}
	return summary.Thumbnail.Source, nil
}

var _ ImageClient = (*WikipediaClient)(nil)
