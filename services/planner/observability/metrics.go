// Copyright (C) 2025 Wayfarer AI (dev@wayfarer.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides metrics and instrumentation for the planner.
//
// # Description
//
// This package implements Prometheus metrics for monitoring trip generation
// operations. Metrics include:
//   - Generation counters (by trip type, status, error code)
//   - LLM proposal attempt counters
//   - Latency histograms (full pipeline, per-day routing, external providers)
//   - Active generation gauges
//
// # Integration
//
// Metrics are exposed via /metrics endpoint. Use with Prometheus + Grafana
// for dashboards and alerting.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Metric Definitions
// =============================================================================

// Namespace for all metrics
const metricsNamespace = "wayfarer"

// Subsystem for trip pipeline metrics
const pipelineSubsystem = "pipeline"

// PipelineMetrics holds all Prometheus metrics for trip generation operations.
//
// # Description
//
// Provides counters, histograms, and gauges for monitoring pipeline throughput
// and external provider health. Initialize once at startup via InitMetrics().
//
// # Fields
//
//   - GenerationsTotal: Counter of trip generations by trip type and status
//   - ProposalAttemptsTotal: Counter of LLM proposal attempts by trip type
//   - RepairsTotal: Counter of coordinate repair retries by trip type
//   - GenerationDurationSeconds: Histogram of full pipeline duration
//   - DayResolutionSeconds: Histogram of per-day routing resolution latency
//   - ProviderRequestSeconds: Histogram of external provider call latency
//   - ActiveGenerations: Gauge of currently running generations
//   - ErrorsTotal: Counter of pipeline errors by stage and error code
//
// # Thread Safety
//
// All operations are thread-safe.
type PipelineMetrics struct {
	// GenerationsTotal counts trip generations by trip type and status.
	// Labels: trip_type (trek, cycling), status (success, error)
	GenerationsTotal *prometheus.CounterVec

	// ProposalAttemptsTotal counts LLM proposal attempts.
	// Labels: trip_type (trek, cycling)
	ProposalAttemptsTotal *prometheus.CounterVec

	// RepairsTotal counts coordinate repair retries after unreachable points.
	// Labels: trip_type (trek, cycling)
	RepairsTotal *prometheus.CounterVec

	// GenerationDurationSeconds measures end-to-end pipeline duration.
	// Labels: trip_type, status (success, error)
	GenerationDurationSeconds *prometheus.HistogramVec

	// DayResolutionSeconds measures per-day routing resolution latency.
	// Labels: profile (foot-hiking, cycling-regular)
	DayResolutionSeconds *prometheus.HistogramVec

	// ProviderRequestSeconds measures external provider call latency.
	// Labels: provider (openrouteservice, nominatim, llm, open-meteo, wikipedia)
	ProviderRequestSeconds *prometheus.HistogramVec

	// ActiveGenerations tracks currently running trip generations.
	ActiveGenerations prometheus.Gauge

	// ErrorsTotal counts pipeline errors by stage and stable error code.
	// Labels: stage (generate, resolve, enforce, assemble), error_code
	ErrorsTotal *prometheus.CounterVec
}

// DefaultMetrics is the singleton instance of PipelineMetrics.
// Initialized by InitMetrics().
var DefaultMetrics *PipelineMetrics

// InitMetrics initializes the default metrics instance.
//
// # Description
//
// Creates and registers all Prometheus metrics. Should be called once
// at application startup, after Prometheus registry is available.
//
// # Outputs
//
//   - *PipelineMetrics: The initialized metrics instance.
//
// # Examples
//
//	func main() {
//	    observability.InitMetrics()
//	    // ... start server ...
//	}
//
// # Limitations
//
//   - Panics if called twice (duplicate registration).
//
// # Assumptions
//
//   - Prometheus default registry is available.
func InitMetrics() *PipelineMetrics {
	DefaultMetrics = &PipelineMetrics{
		GenerationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: pipelineSubsystem,
				Name:      "generations_total",
				Help:      "Total number of trip generations by trip type and status",
			},
			[]string{"trip_type", "status"},
		),

		ProposalAttemptsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: pipelineSubsystem,
				Name:      "proposal_attempts_total",
				Help:      "Total LLM proposal attempts by trip type",
			},
			[]string{"trip_type"},
		),

		RepairsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: pipelineSubsystem,
				Name:      "repairs_total",
				Help:      "Total coordinate repair retries by trip type",
			},
			[]string{"trip_type"},
		),

		GenerationDurationSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: pipelineSubsystem,
				Name:      "generation_duration_seconds",
				Help:      "End-to-end trip generation duration in seconds",
				Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
			},
			[]string{"trip_type", "status"},
		),

		DayResolutionSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: pipelineSubsystem,
				Name:      "day_resolution_seconds",
				Help:      "Per-day routing resolution latency in seconds",
				Buckets:   []float64{0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
			},
			[]string{"profile"},
		),

		ProviderRequestSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: pipelineSubsystem,
				Name:      "provider_request_seconds",
				Help:      "External provider request latency in seconds",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 15.0, 60.0},
			},
			[]string{"provider"},
		),

		ActiveGenerations: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: pipelineSubsystem,
				Name:      "active_generations",
				Help:      "Number of currently running trip generations",
			},
		),

		ErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: pipelineSubsystem,
				Name:      "errors_total",
				Help:      "Total pipeline errors by stage and error code",
			},
			[]string{"stage", "error_code"},
		),
	}

	return DefaultMetrics
}

// =============================================================================
// Stage Names
// =============================================================================

// Stage identifies a pipeline stage for metrics labeling.
type Stage string

const (
	// StageValidate is request and point validation.
	StageValidate Stage = "validate"

	// StageGenerate is LLM proposal generation.
	StageGenerate Stage = "generate"

	// StageResolve is coordinate and route resolution.
	StageResolve Stage = "resolve"

	// StageEnforce is geometric constraint enforcement.
	StageEnforce Stage = "enforce"

	// StageAssemble is final trip assembly.
	StageAssemble Stage = "assemble"
)

// =============================================================================
// Provider Names
// =============================================================================

// Provider identifies an external provider for metrics labeling.
type Provider string

const (
	// ProviderRouting is the OpenRouteService directions API.
	ProviderRouting Provider = "openrouteservice"

	// ProviderGeocode is the Nominatim geocoding API.
	ProviderGeocode Provider = "nominatim"

	// ProviderLLM is the configured LLM backend.
	ProviderLLM Provider = "llm"

	// ProviderWeather is the Open-Meteo forecast API.
	ProviderWeather Provider = "open-meteo"

	// ProviderWikipedia is the Wikipedia page summary API.
	ProviderWikipedia Provider = "wikipedia"
)

// =============================================================================
// Helper Methods
// =============================================================================

// RecordGeneration records a completed trip generation.
//
// # Inputs
//
//   - tripType: The requested trip type.
//   - success: Whether the pipeline completed successfully.
func (m *PipelineMetrics) RecordGeneration(tripType string, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	m.GenerationsTotal.WithLabelValues(tripType, status).Inc()
}

// RecordProposalAttempts adds LLM attempts consumed by a generation.
//
// # Inputs
//
//   - tripType: The requested trip type.
//   - attempts: Number of LLM attempts consumed.
func (m *PipelineMetrics) RecordProposalAttempts(tripType string, attempts int) {
	if attempts <= 0 {
		return
	}
	m.ProposalAttemptsTotal.WithLabelValues(tripType).Add(float64(attempts))
}

// RecordRepairs adds coordinate repair retries performed by a generation.
//
// # Inputs
//
//   - tripType: The requested trip type.
//   - repairs: Number of repair retries performed.
func (m *PipelineMetrics) RecordRepairs(tripType string, repairs int) {
	if repairs <= 0 {
		return
	}
	m.RepairsTotal.WithLabelValues(tripType).Add(float64(repairs))
}

// RecordError records a pipeline error.
//
// # Inputs
//
//   - stage: The pipeline stage where the error occurred.
//   - errorCode: The stable pipeline error code.
func (m *PipelineMetrics) RecordError(stage Stage, errorCode string) {
	m.ErrorsTotal.WithLabelValues(string(stage), errorCode).Inc()
}

// GenerationStarted increments the active generations gauge.
func (m *PipelineMetrics) GenerationStarted() {
	m.ActiveGenerations.Inc()
}

// GenerationEnded decrements the active generations gauge.
func (m *PipelineMetrics) GenerationEnded() {
	m.ActiveGenerations.Dec()
}

// RecordGenerationDuration records the end-to-end pipeline duration.
//
// # Inputs
//
//   - tripType: The requested trip type.
//   - seconds: Total duration in seconds.
//   - success: Whether the pipeline completed successfully.
func (m *PipelineMetrics) RecordGenerationDuration(tripType string, seconds float64, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	m.GenerationDurationSeconds.WithLabelValues(tripType, status).Observe(seconds)
}

// RecordDayResolution records a per-day routing resolution latency.
//
// # Inputs
//
//   - profile: The routing profile used.
//   - seconds: Resolution duration in seconds.
func (m *PipelineMetrics) RecordDayResolution(profile string, seconds float64) {
	m.DayResolutionSeconds.WithLabelValues(profile).Observe(seconds)
}

// RecordProviderRequest records an external provider call latency.
//
// # Inputs
//
//   - provider: The external provider called.
//   - seconds: Request duration in seconds.
func (m *PipelineMetrics) RecordProviderRequest(provider Provider, seconds float64) {
	m.ProviderRequestSeconds.WithLabelValues(string(provider)).Observe(seconds)
}
