// Copyright (C) 2025 Wayfarer AI (dev@wayfarer.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package services provides business logic services for the planner.
//
// This package contains service structs that encapsulate the generation
// pipeline, separating it from HTTP handlers. Services are responsible for:
//   - Orchestrating calls to external services (text model, routing, geocoding)
//   - Applying the trip-type business rules and repairs
//   - Persisting and enriching finished trips
//
// Services are designed to be:
//   - Testable: Dependencies are injected via constructors
//   - Composable: Services can call other services
//   - Traceable: All methods accept context for distributed tracing
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/WayfarerAI/WayfarerCore/pkg/geo"
	"github.com/WayfarerAI/WayfarerCore/services/planner/analytics"
	"github.com/WayfarerAI/WayfarerCore/services/planner/datatypes"
	"github.com/WayfarerAI/WayfarerCore/services/planner/enrich"
	"github.com/WayfarerAI/WayfarerCore/services/planner/observability"
	"github.com/WayfarerAI/WayfarerCore/services/planner/proposal"
	"github.com/WayfarerAI/WayfarerCore/services/planner/storage"
	"github.com/WayfarerAI/WayfarerCore/services/routing"
)

// assemblerTracer is the OpenTelemetry tracer for TripAssembler operations.
var assemblerTracer = otel.Tracer("wayfarer.planner.services.trip_assembler")

// =============================================================================
// Interfaces
// =============================================================================

// PlanGenerator produces a structured trip plan from a destination. It is
// satisfied by *proposal.Generator; tests substitute fakes.
//
// Generate reports how many model calls it consumed even on failure, so
// the assembler can split the request's shared attempt budget across
// several invocations.
type PlanGenerator interface {
	Generate(ctx context.Context, destination string, tripType datatypes.TripType, opts proposal.GenerateOptions) (*datatypes.TripPlan, int, error)
}

// DayRouter resolves one proposed day into a measured route. It is
// satisfied by *resolve.RoutingResolver.
type DayRouter interface {
	ResolveDay(ctx context.Context, proposal datatypes.RouteProposal, profile routing.Profile) (*datatypes.ResolvedRoute, error)
}

// PointRepairer nudges an unreachable point onto the routing network. It
// never fails: the geocoded city centroid is its guaranteed fallback. It
// is satisfied by *resolve.CoordinateResolver.
type PointRepairer interface {
	Resolve(ctx context.Context, point geo.Point, cityName string, profile routing.Profile) geo.Point
}

// RouteEnforcer applies trip-type constraints to resolved routes,
// repairing where a repair is defined. It is satisfied by
// *constraints.Enforcer.
type RouteEnforcer interface {
	Enforce(ctx context.Context, routes []*datatypes.ResolvedRoute, tripType datatypes.TripType) ([]*datatypes.ResolvedRoute, error)
}

// =============================================================================
// Progress Events
// =============================================================================

// ProgressStage labels a phase of the generation pipeline for streaming
// progress updates.
type ProgressStage string

const (
	ProgressValidating ProgressStage = "validating"
	ProgressGenerating ProgressStage = "generating"
	ProgressResolving  ProgressStage = "resolving"
	ProgressEnforcing  ProgressStage = "enforcing"
	ProgressAssembling ProgressStage = "assembling"
	ProgressFinalizing ProgressStage = "finalizing"
)

// ProgressEvent is one streamed pipeline status update. Day and Days are
// set only during per-day resolution; Attempt is set when a fresh plan is
// being requested from the text model.
type ProgressEvent struct {
	Stage   ProgressStage `json:"stage"`
	Message string        `json:"message"`
	Day     int           `json:"day,omitempty"`
	Days    int           `json:"days,omitempty"`
	Attempt int           `json:"attempt,omitempty"`
}

// ProgressFunc receives pipeline progress events. Implementations must be
// fast and must not block: the pipeline calls them inline.
type ProgressFunc func(event ProgressEvent)

// =============================================================================
// TripAssembler
// =============================================================================

// TripAssembler runs the full trip generation pipeline. It orchestrates
// the flow between:
//   - Text model: proposes a day-by-day plan (via PlanGenerator)
//   - Routing provider: measures each day (via DayRouter)
//   - Coordinate repair: rescues unreachable points (via PointRepairer)
//   - Constraint enforcement: distance bounds, continuity, loop closure
//
// The pipeline is all-or-nothing per request: an error means no Trip,
// never a partial one. The assembler is stateless across requests; all
// working data belongs to one GenerateTrip call.
//
// Usage:
//
//	assembler, err := NewTripAssembler(AssemblerConfig{
//	    Generator: generator,
//	    Days:      dayRouter,
//	    Repair:    repairer,
//	    Enforcer:  enforcer,
//	})
//	trip, err := assembler.GenerateTrip(ctx, &req, AssembleOptions{})
type TripAssembler struct {
	generator PlanGenerator
	days      DayRouter
	repair    PointRepairer
	enforcer  RouteEnforcer

	// Optional collaborators; nil disables each.
	store     storage.TripStore
	enricher  *enrich.Enricher
	analytics *analytics.Recorder
	metrics   *observability.PipelineMetrics
}

// AssemblerConfig carries the assembler's dependencies. Generator, Days,
// Repair and Enforcer are required; the rest are optional collaborators
// that the planner runs without in lightweight mode.
type AssemblerConfig struct {
	Generator PlanGenerator
	Days      DayRouter
	Repair    PointRepairer
	Enforcer  RouteEnforcer

	Store     storage.TripStore
	Enricher  *enrich.Enricher
	Analytics *analytics.Recorder
	Metrics   *observability.PipelineMetrics
}

// NewTripAssembler wires the pipeline together from its stage
// implementations.
func NewTripAssembler(cfg AssemblerConfig) (*TripAssembler, error) {
	if cfg.Generator == nil {
		return nil, fmt.Errorf("plan generator is required")
	}
	if cfg.Days == nil {
		return nil, fmt.Errorf("day router is required")
	}
	if cfg.Repair == nil {
		return nil, fmt.Errorf("point repairer is required")
	}
	if cfg.Enforcer == nil {
		return nil, fmt.Errorf("route enforcer is required")
	}
	return &TripAssembler{
		generator: cfg.Generator,
		days:      cfg.Days,
		repair:    cfg.Repair,
		enforcer:  cfg.Enforcer,
		store:     cfg.Store,
		enricher:  cfg.Enricher,
		analytics: cfg.Analytics,
		metrics:   cfg.Metrics,
	}, nil
}

// AssembleOptions tunes one GenerateTrip call.
type AssembleOptions struct {
	// OnProgress, when set, receives pipeline status events as the
	// request advances. Events are delivered inline; keep handlers fast.
	OnProgress ProgressFunc
}

// =============================================================================
// Core Processing Methods
// =============================================================================

// GenerateTrip handles a trip generation request end-to-end.
//
// The processing flow is:
//  1. Ensure request defaults (ID, timestamp) and validate caller input
//  2. Ask the text model for a structured plan (shared 3-attempt budget)
//  3. Resolve each day sequentially; on an unreachable coordinate, repair
//     every point once via the PointRepairer and retry routing exactly once
//  4. If a day stays unreachable and budget remains, request a fresh plan
//     with routability guidance injected into the prompt; otherwise fail
//  5. Enforce trip-type constraints (distance bounds, continuity, shape)
//  6. Total distances/durations, grade difficulty, validate structure
//  7. Enrich (best-effort), persist, and record analytics
//
// The returned error always carries a stable pipeline code (datatypes
// CodeOf); context cancellation propagates unchanged. No partial Trip is
// ever returned.
func (a *TripAssembler) GenerateTrip(ctx context.Context, req *datatypes.TripRequest, opts AssembleOptions) (*datatypes.Trip, error) {
	ctx, span := assemblerTracer.Start(ctx, "TripAssembler.GenerateTrip")
	defer span.End()

	started := time.Now()
	if a.metrics != nil {
		a.metrics.GenerationStarted()
		defer a.metrics.GenerationEnded()
	}

	// Step 1: defaults and caller-input validation.
	req.EnsureDefaults()
	span.SetAttributes(
		attribute.String("request.id", req.RequestID),
		attribute.String("request.destination", req.Destination),
		attribute.String("request.trip_type", string(req.TripType)),
	)
	a.notify(opts, ProgressEvent{Stage: ProgressValidating, Message: "validating request"})

	if err := req.Validate(); err != nil {
		err = datatypes.WrapPipelineError(datatypes.CodeValidation, err, "invalid trip request")
		a.fail(span, started, req.TripType, observability.StageValidate, err)
		return nil, err
	}

	trip, stats, err := a.runPipeline(ctx, req, opts)
	if err != nil {
		stage := stageForCode(datatypes.CodeOf(err))
		a.fail(span, started, req.TripType, stage, err)
		if a.metrics != nil {
			a.metrics.RecordProposalAttempts(string(req.TripType), stats.Attempts)
			a.metrics.RecordRepairs(string(req.TripType), stats.Repairs)
		}
		return nil, err
	}

	stats.DurationMs = time.Since(started).Milliseconds()
	trip.Stats = stats

	// Step 7: best-effort decoration and persistence of the finished trip.
	a.notify(opts, ProgressEvent{Stage: ProgressFinalizing, Message: "saving trip"})
	if a.enricher != nil {
		a.enricher.Apply(ctx, trip)
	}
	if a.store != nil {
		if err := a.store.Save(ctx, trip); err != nil {
			// The caller still gets their trip; it just won't be listed.
			slog.Warn("Failed to persist trip", "trip_id", trip.ID, "error", err)
		}
	}
	if a.analytics != nil {
		if err := a.analytics.RecordGeneration(ctx, trip); err != nil {
			slog.Warn("Failed to record generation analytics", "trip_id", trip.ID, "error", err)
		}
	}

	if a.metrics != nil {
		a.metrics.RecordGeneration(string(req.TripType), true)
		a.metrics.RecordGenerationDuration(string(req.TripType), time.Since(started).Seconds(), true)
		a.metrics.RecordProposalAttempts(string(req.TripType), stats.Attempts)
		a.metrics.RecordRepairs(string(req.TripType), stats.Repairs)
	}
	span.SetAttributes(
		attribute.String("trip.id", trip.ID),
		attribute.Int("trip.days", trip.EstimatedDays),
		attribute.Float64("trip.total_km", trip.TotalDistanceKm),
		attribute.Int("trip.attempts", stats.Attempts),
		attribute.Int("trip.repairs", stats.Repairs),
	)
	slog.Info("Generated trip",
		"trip_id", trip.ID,
		"request_id", req.RequestID,
		"destination", req.Destination,
		"trip_type", req.TripType,
		"days", trip.EstimatedDays,
		"total_km", trip.TotalDistanceKm,
		"difficulty", trip.Difficulty,
		"attempts", stats.Attempts,
		"repairs", stats.Repairs,
		"duration_ms", stats.DurationMs,
	)
	return trip, nil
}

// runPipeline executes plan generation, day resolution, and constraint
// enforcement, re-planning on unreachable days while the shared model
// budget lasts. It returns the assembled trip and the work statistics.
func (a *TripAssembler) runPipeline(ctx context.Context, req *datatypes.TripRequest, opts AssembleOptions) (*datatypes.Trip, datatypes.GenerationStats, error) {
	profile := routing.ProfileForTripType(string(req.TripType))
	stats := datatypes.GenerationStats{}

	var priorFailure error
	for stats.Attempts < proposal.MaxAttempts {
		// Step 2: structured plan from the text model.
		a.notify(opts, ProgressEvent{
			Stage:   ProgressGenerating,
			Message: fmt.Sprintf("planning %s in %s", req.TripType, req.Destination),
			Attempt: stats.Attempts + 1,
		})
		plan, used, err := a.generator.Generate(ctx, req.Destination, req.TripType, proposal.GenerateOptions{
			StartAttempt: stats.Attempts + 1,
			Budget:       proposal.MaxAttempts,
			PriorFailure: priorFailure,
		})
		stats.Attempts += used
		if err != nil {
			return nil, stats, err
		}

		// Steps 3-4: sequential day resolution with one repair retry.
		routes, repairs, err := a.resolveDays(ctx, plan, profile, opts)
		stats.Repairs += repairs
		if err != nil {
			if datatypes.IsRoutingUnreachable(err) && stats.Attempts < proposal.MaxAttempts {
				slog.Warn("Plan has an unreachable day even after repair, requesting a fresh plan",
					"request_id", req.RequestID,
					"attempts_used", stats.Attempts,
					"error", err,
				)
				priorFailure = err
				continue
			}
			return nil, stats, err
		}

		// Step 5: trip-type constraints.
		a.notify(opts, ProgressEvent{Stage: ProgressEnforcing, Message: "checking trip constraints"})
		routes, err = a.enforcer.Enforce(ctx, routes, req.TripType)
		if err != nil {
			return nil, stats, err
		}

		// Step 6: totals, difficulty, final structural gate.
		a.notify(opts, ProgressEvent{Stage: ProgressAssembling, Message: "assembling trip"})
		trip, err := a.buildTrip(req, plan, routes)
		if err != nil {
			return nil, stats, err
		}
		return trip, stats, nil
	}

	// The budget ran out between pipeline stages. Surface what spent it.
	if priorFailure != nil {
		return nil, stats, priorFailure
	}
	return nil, stats, datatypes.NewPipelineError(datatypes.CodeGenerationFailed,
		"generation budget of %d attempts spent without a routable plan", proposal.MaxAttempts)
}

// resolveDays routes every proposed day in order, repairing unreachable
// points at most once per day. Days are strictly sequential: continuity
// and loop-closure repairs depend on already-resolved neighbors.
func (a *TripAssembler) resolveDays(ctx context.Context, plan *datatypes.TripPlan, profile routing.Profile, opts AssembleOptions) ([]*datatypes.ResolvedRoute, int, error) {
	ctx, span := assemblerTracer.Start(ctx, "TripAssembler.resolveDays")
	defer span.End()
	span.SetAttributes(attribute.Int("resolve.days", len(plan.Routes)))

	routes := make([]*datatypes.ResolvedRoute, 0, len(plan.Routes))
	repairs := 0
	for i, day := range plan.Routes {
		a.notify(opts, ProgressEvent{
			Stage:   ProgressResolving,
			Message: fmt.Sprintf("routing day %d of %d", i+1, len(plan.Routes)),
			Day:     i + 1,
			Days:    len(plan.Routes),
		})

		dayStart := time.Now()
		resolved, repaired, err := a.resolveDayWithRepair(ctx, day, plan.City, profile)
		if a.metrics != nil {
			a.metrics.RecordDayResolution(string(profile), time.Since(dayStart).Seconds())
		}
		if repaired {
			repairs++
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "day resolution failed")
			return nil, repairs, err
		}
		routes = append(routes, resolved)
	}
	span.SetAttributes(attribute.Int("resolve.repairs", repairs))
	return routes, repairs, nil
}

// resolveDayWithRepair routes one day, and on an unreachable coordinate
// nudges every point of the day onto the network and retries exactly
// once. A second unreachable answer is final for this plan.
func (a *TripAssembler) resolveDayWithRepair(ctx context.Context, day datatypes.RouteProposal, city string, profile routing.Profile) (*datatypes.ResolvedRoute, bool, error) {
	resolved, err := a.days.ResolveDay(ctx, day, profile)
	if err == nil {
		return resolved, false, nil
	}
	if !datatypes.IsRoutingUnreachable(err) {
		return nil, false, err
	}

	slog.Info("Repairing unreachable day", "day", day.Day, "city", city, "error", err)
	repaired := datatypes.RouteProposal{
		Day:         day.Day,
		StartPoint:  a.repair.Resolve(ctx, day.StartPoint, city, profile),
		EndPoint:    a.repair.Resolve(ctx, day.EndPoint, city, profile),
		Description: day.Description,
	}
	if len(day.Waypoints) > 0 {
		repaired.Waypoints = make([]geo.Point, len(day.Waypoints))
		for i, wp := range day.Waypoints {
			repaired.Waypoints[i] = a.repair.Resolve(ctx, wp, city, profile)
		}
	}

	resolved, retryErr := a.days.ResolveDay(ctx, repaired, profile)
	if retryErr != nil {
		return nil, true, retryErr
	}
	slog.Info("Repaired day routed", "day", day.Day, "distance_km", resolved.DistanceKm)
	return resolved, true, nil
}

// buildTrip aggregates enforced routes into the final Trip and runs the
// last structural gate. A gap here is a pipeline bug (AssemblyFailed),
// never repaired.
func (a *TripAssembler) buildTrip(req *datatypes.TripRequest, plan *datatypes.TripPlan, routes []*datatypes.ResolvedRoute) (*datatypes.Trip, error) {
	trip := datatypes.NewTrip(req.RequestID)
	trip.Destination = req.Destination
	trip.City = plan.City
	trip.TripType = req.TripType
	trip.EstimatedDays = len(routes)
	trip.Highlights = plan.Highlights
	trip.Equipment = plan.Equipment
	trip.Tips = plan.Tips

	totalKm := 0.0
	totalMin := 0
	trip.Routes = make([]datatypes.ResolvedRoute, len(routes))
	for i, r := range routes {
		trip.Routes[i] = *r
		totalKm += r.DistanceKm
		totalMin += r.DurationMin
	}
	trip.TotalDistanceKm = math.Round(totalKm*100) / 100
	trip.TotalDurationMin = totalMin
	trip.Difficulty = datatypes.DifficultyFor(req.TripType, totalKm/float64(len(routes)))

	if err := trip.ValidateStructure(); err != nil {
		return nil, datatypes.WrapPipelineError(datatypes.CodeAssemblyFailed, err,
			"assembled trip failed structural validation")
	}
	return trip, nil
}

// =============================================================================
// Helpers
// =============================================================================

// notify delivers a progress event when the caller asked for them.
func (a *TripAssembler) notify(opts AssembleOptions, event ProgressEvent) {
	if opts.OnProgress != nil {
		opts.OnProgress(event)
	}
}

// fail records a failed generation consistently: span status, the error
// counter, and the generation counters. Cancellation is not counted as a
// pipeline error; the caller simply went away.
func (a *TripAssembler) fail(span trace.Span, started time.Time, tripType datatypes.TripType, stage observability.Stage, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, string(datatypes.CodeOf(err)))
	if a.metrics == nil {
		return
	}
	if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		a.metrics.RecordError(stage, string(datatypes.CodeOf(err)))
	}
	a.metrics.RecordGeneration(string(tripType), false)
	a.metrics.RecordGenerationDuration(string(tripType), time.Since(started).Seconds(), false)
}

// stageForCode maps a pipeline error code onto the metrics stage that
// produced it.
func stageForCode(code datatypes.ErrorCode) observability.Stage {
	switch code {
	case datatypes.CodeValidation:
		return observability.StageValidate
	case datatypes.CodeGenerationFailed:
		return observability.StageGenerate
	case datatypes.CodeRoutingUnreachable, datatypes.CodeRoutingFailed:
		return observability.StageResolve
	case datatypes.CodeConstraintViolation:
		return observability.StageEnforce
	default:
		return observability.StageAssemble
	}
}
