// Copyright (C) 2025 Wayfarer AI (dev@wayfarer.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/WayfarerAI/WayfarerCore/pkg/extensions"
	"github.com/WayfarerAI/WayfarerCore/services/planner/handlers"
	"github.com/WayfarerAI/WayfarerCore/services/planner/middleware"
	"github.com/WayfarerAI/WayfarerCore/services/planner/storage"
)

// Config carries the route-level knobs that belong to no single handler.
type Config struct {
	// Version is reported by GET /health for the CLI handshake.
	Version string

	// GenerateRPS and GenerateBurst bound each client's rate on the
	// generation endpoints, which spend text-model and routing budget.
	GenerateRPS   float64
	GenerateBurst int
}

// SetupRoutes registers every HTTP route on the router. Analytics routes
// are registered only when a telemetry querier is configured; everything
// else is always available. The /v1 group requires a bearer token, which
// the open source NopAuthProvider accepts unconditionally.
func SetupRoutes(router *gin.Engine, generator handlers.TripGenerator, store storage.TripStore,
	querier handlers.GenerationQuerier, opts extensions.ServiceOptions, cfg Config) {

	router.GET("/health", handlers.HealthCheck(cfg.Version))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API version 1 group
	v1 := router.Group("/v1")
	v1.Use(middleware.AuthMiddleware(opts.AuthProvider))
	{
		generateLimit := middleware.RateLimitMiddleware(cfg.GenerateRPS, cfg.GenerateBurst)
		v1.POST("/trips/generate", generateLimit, handlers.GenerateTrip(generator))
		v1.GET("/trips/generate/ws", generateLimit, handlers.HandleGenerateTripWS(generator))

		// Saved trip administration routes
		v1.GET("/trips", handlers.ListTrips(store))
		v1.GET("/trips/:id", handlers.GetTrip(store))
		v1.DELETE("/trips/:id", handlers.DeleteTrip(store))
		v1.GET("/trips/:id/gpx", handlers.ExportTripGPX(store))

		if querier != nil {
			v1.GET("/analytics/generations", handlers.RecentGenerations(querier))
		}
	}
}
