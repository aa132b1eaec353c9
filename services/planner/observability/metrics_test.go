// Copyright (C) 2025 Wayfarer AI (dev@wayfarer.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// ============================================================================
// Test Helper: Create isolated metrics for testing
// ============================================================================

// newTestMetrics creates a PipelineMetrics instance with a custom registry.
// This avoids conflicts with the global Prometheus registry and allows
// parallel testing.
func newTestMetrics(t *testing.T) *PipelineMetrics {
	t.Helper()

	reg := prometheus.NewRegistry()

	generationsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: pipelineSubsystem,
			Name:      "generations_total",
			Help:      "Total number of trip generations by trip type and status",
		},
		[]string{"trip_type", "status"},
	)

	proposalAttemptsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: pipelineSubsystem,
			Name:      "proposal_attempts_total",
			Help:      "Total LLM proposal attempts by trip type",
		},
		[]string{"trip_type"},
	)

	repairsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: pipelineSubsystem,
			Name:      "repairs_total",
			Help:      "Total coordinate repair retries by trip type",
		},
		[]string{"trip_type"},
	)

	generationDurationSeconds := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: pipelineSubsystem,
			Name:      "generation_duration_seconds",
			Help:      "End-to-end trip generation duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
		},
		[]string{"trip_type", "status"},
	)

	dayResolutionSeconds := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: pipelineSubsystem,
			Name:      "day_resolution_seconds",
			Help:      "Per-day routing resolution latency in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
		},
		[]string{"profile"},
	)

	providerRequestSeconds := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: pipelineSubsystem,
			Name:      "provider_request_seconds",
			Help:      "External provider request latency in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 15.0, 60.0},
		},
		[]string{"provider"},
	)

	activeGenerations := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: pipelineSubsystem,
			Name:      "active_generations",
			Help:      "Number of currently running trip generations",
		},
	)

	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: pipelineSubsystem,
			Name:      "errors_total",
			Help:      "Total pipeline errors by stage and error code",
		},
		[]string{"stage", "error_code"},
	)

	// Register all metrics with the test registry
	reg.MustRegister(
		generationsTotal,
		proposalAttemptsTotal,
		repairsTotal,
		generationDurationSeconds,
		dayResolutionSeconds,
		providerRequestSeconds,
		activeGenerations,
		errorsTotal,
	)

	return &PipelineMetrics{
		GenerationsTotal:          generationsTotal,
		ProposalAttemptsTotal:     proposalAttemptsTotal,
		RepairsTotal:              repairsTotal,
		GenerationDurationSeconds: generationDurationSeconds,
		DayResolutionSeconds:      dayResolutionSeconds,
		ProviderRequestSeconds:    providerRequestSeconds,
		ActiveGenerations:         activeGenerations,
		ErrorsTotal:               errorsTotal,
	}
}

// ============================================================================
// InitMetrics Tests
// ============================================================================

// Note: InitMetrics uses promauto which registers with the default Prometheus
// registry. This test must only run once per test binary execution since
// duplicate registration will panic.
var initMetricsTestOnce bool

func TestInitMetrics(t *testing.T) {
	if initMetricsTestOnce {
		t.Skip("InitMetrics can only be called once per test run (promauto restriction)")
	}
	initMetricsTestOnce = true

	result := InitMetrics()

	if result == nil {
		t.Fatal("InitMetrics() returned nil")
	}

	if DefaultMetrics == nil {
		t.Fatal("DefaultMetrics should be set after InitMetrics()")
	}

	if DefaultMetrics != result {
		t.Error("DefaultMetrics should equal the returned value")
	}

	if result.GenerationsTotal == nil {
		t.Error("GenerationsTotal should not be nil")
	}
	if result.ProposalAttemptsTotal == nil {
		t.Error("ProposalAttemptsTotal should not be nil")
	}
	if result.RepairsTotal == nil {
		t.Error("RepairsTotal should not be nil")
	}
	if result.GenerationDurationSeconds == nil {
		t.Error("GenerationDurationSeconds should not be nil")
	}
	if result.DayResolutionSeconds == nil {
		t.Error("DayResolutionSeconds should not be nil")
	}
	if result.ProviderRequestSeconds == nil {
		t.Error("ProviderRequestSeconds should not be nil")
	}
	if result.ActiveGenerations == nil {
		t.Error("ActiveGenerations should not be nil")
	}
	if result.ErrorsTotal == nil {
		t.Error("ErrorsTotal should not be nil")
	}

	// Verify metrics can be used
	result.RecordGeneration("trek", true)
	result.RecordError(StageResolve, "ROUTING_UNREACHABLE")
	result.RecordProposalAttempts("trek", 2)
	result.GenerationStarted()
	result.GenerationEnded()
}

// ============================================================================
// Constants Tests
// ============================================================================

func TestConstants(t *testing.T) {
	if metricsNamespace != "wayfarer" {
		t.Errorf("metricsNamespace = %q, want %q", metricsNamespace, "wayfarer")
	}
	if pipelineSubsystem != "pipeline" {
		t.Errorf("pipelineSubsystem = %q, want %q", pipelineSubsystem, "pipeline")
	}
}

func TestStageConstants(t *testing.T) {
	tests := []struct {
		stage Stage
		want  string
	}{
		{StageValidate, "validate"},
		{StageGenerate, "generate"},
		{StageResolve, "resolve"},
		{StageEnforce, "enforce"},
		{StageAssemble, "assemble"},
	}

	for _, tt := range tests {
		if string(tt.stage) != tt.want {
			t.Errorf("Stage = %q, want %q", tt.stage, tt.want)
		}
	}
}

func TestProviderConstants(t *testing.T) {
	tests := []struct {
		provider Provider
		want     string
	}{
		{ProviderRouting, "openrouteservice"},
		{ProviderGeocode, "nominatim"},
		{ProviderLLM, "llm"},
		{ProviderWeather, "open-meteo"},
		{ProviderWikipedia, "wikipedia"},
	}

	for _, tt := range tests {
		if string(tt.provider) != tt.want {
			t.Errorf("Provider = %q, want %q", tt.provider, tt.want)
		}
	}
}

// ============================================================================
// RecordGeneration Tests
// ============================================================================

func TestPipelineMetrics_RecordGeneration_Success(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordGeneration("trek", true)

	val := testutil.ToFloat64(m.GenerationsTotal.WithLabelValues("trek", "success"))
	if val != 1 {
		t.Errorf("GenerationsTotal[trek,success] = %f, want 1", val)
	}
}

func TestPipelineMetrics_RecordGeneration_Error(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordGeneration("cycling", false)

	val := testutil.ToFloat64(m.GenerationsTotal.WithLabelValues("cycling", "error"))
	if val != 1 {
		t.Errorf("GenerationsTotal[cycling,error] = %f, want 1", val)
	}
}

func TestPipelineMetrics_RecordGeneration_Multiple(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordGeneration("trek", true)
	m.RecordGeneration("trek", true)
	m.RecordGeneration("trek", false)
	m.RecordGeneration("cycling", true)

	successVal := testutil.ToFloat64(m.GenerationsTotal.WithLabelValues("trek", "success"))
	if successVal != 2 {
		t.Errorf("GenerationsTotal[trek,success] = %f, want 2", successVal)
	}

	errorVal := testutil.ToFloat64(m.GenerationsTotal.WithLabelValues("trek", "error"))
	if errorVal != 1 {
		t.Errorf("GenerationsTotal[trek,error] = %f, want 1", errorVal)
	}

	cyclingVal := testutil.ToFloat64(m.GenerationsTotal.WithLabelValues("cycling", "success"))
	if cyclingVal != 1 {
		t.Errorf("GenerationsTotal[cycling,success] = %f, want 1", cyclingVal)
	}
}

// ============================================================================
// RecordError Tests
// ============================================================================

func TestPipelineMetrics_RecordError(t *testing.T) {
	m := newTestMetrics(t)

	tests := []struct {
		stage Stage
		code  string
	}{
		{StageValidate, "VALIDATION_ERROR"},
		{StageGenerate, "GENERATION_FAILED"},
		{StageResolve, "ROUTING_UNREACHABLE"},
		{StageResolve, "ROUTING_FAILED"},
		{StageEnforce, "CONSTRAINT_VIOLATION"},
		{StageAssemble, "ASSEMBLY_FAILED"},
	}

	for _, tt := range tests {
		m.RecordError(tt.stage, tt.code)

		val := testutil.ToFloat64(m.ErrorsTotal.WithLabelValues(string(tt.stage), tt.code))
		if val != 1 {
			t.Errorf("ErrorsTotal[%s,%s] = %f, want 1", tt.stage, tt.code, val)
		}
	}
}

// ============================================================================
// RecordProposalAttempts / RecordRepairs Tests
// ============================================================================

func TestPipelineMetrics_RecordProposalAttempts(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordProposalAttempts("trek", 2)
	m.RecordProposalAttempts("trek", 1)

	val := testutil.ToFloat64(m.ProposalAttemptsTotal.WithLabelValues("trek"))
	if val != 3 {
		t.Errorf("ProposalAttemptsTotal[trek] = %f, want 3", val)
	}
}

func TestPipelineMetrics_RecordProposalAttempts_NonPositive(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordProposalAttempts("trek", 0)
	m.RecordProposalAttempts("trek", -1)

	val := testutil.ToFloat64(m.ProposalAttemptsTotal.WithLabelValues("trek"))
	if val != 0 {
		t.Errorf("ProposalAttemptsTotal[trek] = %f, want 0", val)
	}
}

func TestPipelineMetrics_RecordRepairs(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordRepairs("cycling", 1)
	m.RecordRepairs("cycling", 2)

	val := testutil.ToFloat64(m.RepairsTotal.WithLabelValues("cycling"))
	if val != 3 {
		t.Errorf("RepairsTotal[cycling] = %f, want 3", val)
	}
}

func TestPipelineMetrics_RecordRepairs_NonPositive(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordRepairs("trek", 0)

	val := testutil.ToFloat64(m.RepairsTotal.WithLabelValues("trek"))
	if val != 0 {
		t.Errorf("RepairsTotal[trek] = %f, want 0", val)
	}
}

// ============================================================================
// GenerationStarted/GenerationEnded Tests
// ============================================================================

func TestPipelineMetrics_GenerationLifecycle(t *testing.T) {
	m := newTestMetrics(t)

	m.GenerationStarted()
	m.GenerationStarted()
	m.GenerationStarted()

	val := testutil.ToFloat64(m.ActiveGenerations)
	if val != 3 {
		t.Errorf("After 3 starts: ActiveGenerations = %f, want 3", val)
	}

	m.GenerationEnded()

	val = testutil.ToFloat64(m.ActiveGenerations)
	if val != 2 {
		t.Errorf("After 1 end: ActiveGenerations = %f, want 2", val)
	}

	m.GenerationEnded()
	m.GenerationEnded()

	val = testutil.ToFloat64(m.ActiveGenerations)
	if val != 0 {
		t.Errorf("After all ends: ActiveGenerations = %f, want 0", val)
	}
}

// ============================================================================
// Histogram Tests
// ============================================================================

func TestPipelineMetrics_RecordGenerationDuration(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordGenerationDuration("trek", 42.0, true)
	m.RecordGenerationDuration("trek", 8.0, false)

	count := testutil.CollectAndCount(m.GenerationDurationSeconds)
	if count == 0 {
		t.Error("Expected at least one metric to be collected")
	}
}

func TestPipelineMetrics_RecordDayResolution(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordDayResolution("foot-hiking", 0.8)
	m.RecordDayResolution("cycling-regular", 1.4)

	count := testutil.CollectAndCount(m.DayResolutionSeconds)
	if count == 0 {
		t.Error("Expected at least one metric to be collected")
	}
}

func TestPipelineMetrics_RecordProviderRequest(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordProviderRequest(ProviderRouting, 0.3)
	m.RecordProviderRequest(ProviderGeocode, 0.9)
	m.RecordProviderRequest(ProviderLLM, 12.0)

	count := testutil.CollectAndCount(m.ProviderRequestSeconds)
	if count == 0 {
		t.Error("Expected at least one metric to be collected")
	}
}

// ============================================================================
// Integration / Scenario Tests
// ============================================================================

func TestPipelineMetrics_CompleteGenerationScenario(t *testing.T) {
	m := newTestMetrics(t)

	// Simulate a complete successful generation
	m.GenerationStarted()
	m.RecordProviderRequest(ProviderLLM, 6.0)
	m.RecordProposalAttempts("trek", 1)
	m.RecordDayResolution("foot-hiking", 0.7)
	m.RecordDayResolution("foot-hiking", 0.9)
	m.RecordDayResolution("foot-hiking", 0.6)
	m.RecordGenerationDuration("trek", 15.0, true)
	m.GenerationEnded()
	m.RecordGeneration("trek", true)

	activeVal := testutil.ToFloat64(m.ActiveGenerations)
	if activeVal != 0 {
		t.Errorf("ActiveGenerations should be 0 after generation ended, got %f", activeVal)
	}

	genVal := testutil.ToFloat64(m.GenerationsTotal.WithLabelValues("trek", "success"))
	if genVal != 1 {
		t.Errorf("GenerationsTotal[success] should be 1, got %f", genVal)
	}

	attemptsVal := testutil.ToFloat64(m.ProposalAttemptsTotal.WithLabelValues("trek"))
	if attemptsVal != 1 {
		t.Errorf("ProposalAttemptsTotal should be 1, got %f", attemptsVal)
	}
}

func TestPipelineMetrics_FailedGenerationScenario(t *testing.T) {
	m := newTestMetrics(t)

	// Simulate an unreachable-route failure after exhausting attempts
	m.GenerationStarted()
	m.RecordProposalAttempts("cycling", 3)
	m.RecordRepairs("cycling", 2)
	m.RecordError(StageResolve, "ROUTING_UNREACHABLE")
	m.RecordGenerationDuration("cycling", 60.0, false)
	m.GenerationEnded()
	m.RecordGeneration("cycling", false)

	genVal := testutil.ToFloat64(m.GenerationsTotal.WithLabelValues("cycling", "error"))
	if genVal != 1 {
		t.Errorf("GenerationsTotal[error] should be 1, got %f", genVal)
	}

	errVal := testutil.ToFloat64(m.ErrorsTotal.WithLabelValues("resolve", "ROUTING_UNREACHABLE"))
	if errVal != 1 {
		t.Errorf("ErrorsTotal[resolve,ROUTING_UNREACHABLE] should be 1, got %f", errVal)
	}

	repairVal := testutil.ToFloat64(m.RepairsTotal.WithLabelValues("cycling"))
	if repairVal != 2 {
		t.Errorf("RepairsTotal should be 2, got %f", repairVal)
	}
}

// ============================================================================
// Concurrent Safety Tests
// ============================================================================

func TestPipelineMetrics_ConcurrentSafety(t *testing.T) {
	m := newTestMetrics(t)

	done := make(chan bool, 80)

	for i := 0; i < 20; i++ {
		go func() {
			m.RecordGeneration("trek", true)
			done <- true
		}()
	}

	for i := 0; i < 20; i++ {
		go func() {
			m.RecordError(StageResolve, "ROUTING_FAILED")
			done <- true
		}()
	}

	for i := 0; i < 20; i++ {
		go func() {
			m.GenerationStarted()
			m.GenerationEnded()
			done <- true
		}()
	}

	for i := 0; i < 20; i++ {
		go func() {
			m.RecordDayResolution("foot-hiking", 0.5)
			m.RecordProviderRequest(ProviderRouting, 0.2)
			done <- true
		}()
	}

	for i := 0; i < 80; i++ {
		<-done
	}

	genVal := testutil.ToFloat64(m.GenerationsTotal.WithLabelValues("trek", "success"))
	if genVal != 20 {
		t.Errorf("GenerationsTotal[trek,success] = %f, want 20", genVal)
	}

	errVal := testutil.ToFloat64(m.ErrorsTotal.WithLabelValues("resolve", "ROUTING_FAILED"))
	if errVal != 20 {
		t.Errorf("ErrorsTotal[resolve,ROUTING_FAILED] = %f, want 20", errVal)
	}
}
