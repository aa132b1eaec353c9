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
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/WayfarerAI/WayfarerCore/services/planner/analytics"
)

// GenerationQuerier reads back recorded generation telemetry. It is
// satisfied by *analytics.Recorder.
type GenerationQuerier interface {
	RecentGenerations(ctx context.Context, days int) ([]analytics.GenerationRecord, error)
}

// RecentGenerations handles GET /v1/analytics/generations. An optional
// ?days=N query parameter widens or narrows the window (default 30).
//
// The route is only registered when analytics is configured, but the
// handler still guards against a nil querier for direct use.
func RecentGenerations(querier GenerationQuerier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if querier == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "analytics not configured"})
			return
		}

		days := 0
		if raw := c.Query("days"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid days parameter"})
				return
			}
			days = parsed
		}

		records, err := querier.RecentGenerations(c.Request.Context(), days)
		if err != nil {
			slog.Error("Failed to query generation analytics", "error", err)
			c.JSON(http.StatusBadGateway, gin.H{"error": "failed to query analytics"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"generations": records,
			"count":       len(records),
		})
	}
}
