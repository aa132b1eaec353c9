// Copyright (C) 2025 Wayfarer AI (dev@wayfarer.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package proposal turns a destination string into a structured day-by-day
// trip plan via a text-generation model.
//
// The model is treated as an unreliable collaborator: its output is
// extracted defensively (see extract.go), schema-checked, and retried on
// any failure with a progressively stricter prompt. The whole request
// shares a hard budget of MaxAttempts model calls; the assembler may split
// that budget across several Generate invocations when a plan dies further
// down the pipeline.
package proposal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/WayfarerAI/WayfarerCore/pkg/retry"
	"github.com/WayfarerAI/WayfarerCore/services/llm"
	"github.com/WayfarerAI/WayfarerCore/services/planner/datatypes"
)

// tracer is the OpenTelemetry tracer for proposal generation.
var tracer = otel.Tracer("wayfarer.planner.proposal")

// MaxAttempts is the hard cap on text-generation calls per trip request,
// across every Generate invocation the request makes.
const MaxAttempts = 3

// Config tunes the generation call. Zero values pick defaults suited to
// structured output.
type Config struct {
	// Temperature for sampling. Default: 0.3 — low, structured output
	// breaks down fast with creative sampling.
	Temperature float32

	// MaxTokens caps the response length. Default: 4096, enough for a
	// 5-day plan with full waypoint lists.
	MaxTokens int
}

// Generator produces schema-valid trip plans from a text model.
type Generator struct {
	llm         llm.Client
	temperature float32
	maxTokens   int
}

// NewGenerator wires a Generator to a text-generation backend.
func NewGenerator(client llm.Client, cfg Config) *Generator {
	if cfg.Temperature <= 0 {
		cfg.Temperature = 0.3
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4096
	}
	return &Generator{
		llm:         client,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}
}

// GenerateOptions positions one Generate call within the request's shared
// attempt budget.
type GenerateOptions struct {
	// StartAttempt is the 1-based index of the next model call within the
	// request. The prompt is strengthened from attempt 2 on, so a second
	// Generate invocation must not restart at 1. Zero means 1.
	StartAttempt int

	// Budget is the total number of model calls the request may spend.
	// Zero means MaxAttempts.
	Budget int

	// PriorFailure is the downstream error that invalidated the previous
	// plan, if any. An unreachable-coordinate failure injects routability
	// guidance into the prompt.
	PriorFailure error
}

// Generate asks the model for a plan, retrying on malformed output until
// the budget runs out.
//
// It returns the plan, the number of model calls consumed (meaningful on
// failure too, so the caller can keep the shared budget honest), and an
// error carrying CodeGenerationFailed when the budget is exhausted.
// Context cancellation propagates unchanged.
func (g *Generator) Generate(ctx context.Context, destination string, tripType datatypes.TripType, opts GenerateOptions) (*datatypes.TripPlan, int, error) {
	ctx, span := tracer.Start(ctx, "Generator.Generate")
	defer span.End()
	span.SetAttributes(
		attribute.String("proposal.destination", destination),
		attribute.String("proposal.trip_type", string(tripType)),
	)

	if opts.StartAttempt < 1 {
		opts.StartAttempt = 1
	}
	if opts.Budget < 1 {
		opts.Budget = MaxAttempts
	}
	if opts.StartAttempt > opts.Budget {
		err := datatypes.NewPipelineError(datatypes.CodeGenerationFailed,
			"generation budget of %d attempts already spent", opts.Budget)
		span.SetStatus(codes.Error, "budget exhausted")
		return nil, 0, err
	}

	used := 0
	plan, err := retry.DoValue(ctx,
		retry.Config{MaxAttempts: opts.Budget - opts.StartAttempt + 1},
		classifyAttempt,
		func(ctx context.Context, attempt int) (*datatypes.TripPlan, error) {
			globalAttempt := opts.StartAttempt + attempt - 1
			used++
			return g.attemptPlan(ctx, destination, tripType, globalAttempt, opts.PriorFailure)
		},
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "generation failed")
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, used, err
		}
		return nil, used, datatypes.WrapPipelineError(datatypes.CodeGenerationFailed, err,
			"no valid plan for %q after %d attempts", destination, used)
	}

	span.SetAttributes(attribute.Int("proposal.attempts", used))
	slog.Info("Generated trip plan",
		"destination", destination,
		"trip_type", tripType,
		"days", plan.EstimatedDays,
		"attempts", used,
	)
	return plan, used, nil
}

// attemptPlan performs exactly one model call and validates the result.
func (g *Generator) attemptPlan(ctx context.Context, destination string, tripType datatypes.TripType, attempt int, priorFailure error) (*datatypes.TripPlan, error) {
	ctx, span := tracer.Start(ctx, "Generator.attemptPlan")
	defer span.End()
	span.SetAttributes(attribute.Int("proposal.attempt", attempt))

	userPrompt, err := buildUserPrompt(destination, tripType, attempt, priorFailure)
	if err != nil {
		return nil, err
	}

	temperature := g.temperature
	maxTokens := g.maxTokens
	response, err := g.llm.Complete(ctx, systemPrompt, userPrompt, llm.Params{
		Temperature: &temperature,
		MaxTokens:   &maxTokens,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("text generation call failed: %w", err)
	}

	plan, err := parsePlan(response, tripType)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "unusable plan")
		slog.Warn("Discarding unusable plan",
			"destination", destination,
			"attempt", attempt,
			"error", err,
		)
		return nil, err
	}
	return plan, nil
}

// classifyAttempt retries every failure except context cancellation. A
// parse failure and a schema violation cost the same as a transport
// error: one attempt.
func classifyAttempt(err error) retry.Decision {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return retry.Fail
	}
	return retry.Retry
}
