// Copyright (C) 2025 Wayfarer AI (dev@wayfarer.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers provides HTTP handlers for the planner service.
//
// Handlers are thin: they bind and validate the wire format, call into the
// pipeline or the trip store, and map pipeline error codes onto HTTP
// statuses. All business rules live in services and below.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"github.com/WayfarerAI/WayfarerCore/services/planner/datatypes"
	"github.com/WayfarerAI/WayfarerCore/services/planner/gpx"
	"github.com/WayfarerAI/WayfarerCore/services/planner/services"
	"github.com/WayfarerAI/WayfarerCore/services/planner/storage"
)

var tripsTracer = otel.Tracer("wayfarer.planner.handlers")

// TripGenerator runs the generation pipeline for one request. It is
// satisfied by *services.TripAssembler; tests substitute fakes.
type TripGenerator interface {
	GenerateTrip(ctx context.Context, req *datatypes.TripRequest, opts services.AssembleOptions) (*datatypes.Trip, error)
}

// GenerateTrip handles POST /v1/trips/generate: the synchronous generation
// endpoint. The request blocks until the pipeline finishes; clients that
// want stage-by-stage progress use the websocket variant instead.
func GenerateTrip(generator TripGenerator) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tripsTracer.Start(c.Request.Context(), "GenerateTrip")
		defer span.End()

		var req datatypes.TripRequest
		if err := c.BindJSON(&req); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			slog.Error("Failed to parse the trip request", "error", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		trip, err := generator.GenerateTrip(ctx, &req, services.AssembleOptions{})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, string(datatypes.CodeOf(err)))
			slog.Error("Trip generation failed",
				"request_id", req.RequestID,
				"destination", req.Destination,
				"code", datatypes.CodeOf(err),
				"error", err,
			)
			status, body := errorResponse(err)
			c.JSON(status, body)
			return
		}

		c.JSON(http.StatusOK, trip)
	}
}

// GetTrip handles GET /v1/trips/:id.
func GetTrip(store storage.TripStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")

		trip, err := store.Get(c.Request.Context(), id)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "trip not found"})
				return
			}
			slog.Error("Failed to load trip", "trip_id", id, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load trip"})
			return
		}

		c.JSON(http.StatusOK, trip)
	}
}

// ListTrips handles GET /v1/trips. An optional ?limit=N query parameter
// bounds the result; the store default applies otherwise.
func ListTrips(store storage.TripStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := 0
		if raw := c.Query("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit parameter"})
				return
			}
			limit = parsed
		}

		summaries, err := store.List(c.Request.Context(), limit)
		if err != nil {
			slog.Error("Failed to list trips", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list trips"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"trips": summaries,
			"count": len(summaries),
		})
	}
}

// DeleteTrip handles DELETE /v1/trips/:id.
func DeleteTrip(store storage.TripStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		slog.Info("Received a request to delete a trip", "trip_id", id)

		if err := store.Delete(c.Request.Context(), id); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "trip not found"})
				return
			}
			slog.Error("Failed to delete trip", "trip_id", id, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete trip"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"status": "success", "deleted_trip_id": id})
	}
}

// ExportTripGPX handles GET /v1/trips/:id/gpx, serving the trip's day
// routes as a downloadable GPX 1.1 document.
func ExportTripGPX(store storage.TripStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")

		trip, err := store.Get(c.Request.Context(), id)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "trip not found"})
				return
			}
			slog.Error("Failed to load trip for export", "trip_id", id, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load trip"})
			return
		}

		data, err := gpx.Marshal(trip)
		if err != nil {
			slog.Error("Failed to serialize trip as GPX", "trip_id", id, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to export trip"})
			return
		}

		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", gpx.Filename(trip)))
		c.Data(http.StatusOK, "application/gpx+xml", data)
	}
}

// errorResponse maps a pipeline failure onto an HTTP status and body.
//
// Codes map by who can fix the problem: caller input is 400, a valid
// request the providers cannot satisfy is 422, a misbehaving downstream
// dependency is 502, and a pipeline bug is 500.
func errorResponse(err error) (int, gin.H) {
	var pe *datatypes.PipelineError
	if !errors.As(err, &pe) {
		return http.StatusBadGateway, gin.H{
			"error": err.Error(),
			"code":  string(datatypes.CodeExternalService),
		}
	}

	status := http.StatusInternalServerError
	switch pe.Code {
	case datatypes.CodeValidation:
		status = http.StatusBadRequest
	case datatypes.CodeRoutingUnreachable, datatypes.CodeConstraintViolation:
		status = http.StatusUnprocessableEntity
	case datatypes.CodeGenerationFailed, datatypes.CodeRoutingFailed, datatypes.CodeExternalService:
		status = http.StatusBadGateway
	case datatypes.CodeAssemblyFailed:
		status = http.StatusInternalServerError
	}
	return status, gin.H{"error": pe.Message, "code": string(pe.Code)}
}
