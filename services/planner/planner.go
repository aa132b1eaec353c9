// Copyright (C) 2025 Wayfarer AI (dev@wayfarer.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package planner provides the core trip generation service for WayfarerCore.
//
// This package contains the main Service type that coordinates all
// components of the planner: HTTP routing, the text-model client, the
// routing and geocoding providers, trip persistence, and observability
// infrastructure.
//
// # Enterprise Integration
//
// The planner supports dependency injection via extensions.ServiceOptions,
// enabling WayfarerEnterprise to provide custom implementations of:
//   - AuthProvider: Custom authentication (JWT, API keys)
//   - AuthzProvider: Role-based access control
//   - AuditLogger: Compliance audit logging
//
// # Usage
//
// Open source (uses no-op defaults):
//
//	cfg := planner.Config{Port: 12220}
//	svc, err := planner.New(cfg, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	svc.Run()
//
// Enterprise (with custom implementations):
//
//	opts := &extensions.ServiceOptions{
//	    AuthProvider: enterpriseAuth,
//	    AuditLogger:  enterpriseAudit,
//	}
//	svc, err := planner.New(cfg, opts)
//
// # Import Path
//
// Enterprise imports this package as:
//
//	import "github.com/WayfarerAI/WayfarerCore/services/planner"
package planner

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/WayfarerAI/WayfarerCore/pkg/extensions"
	"github.com/WayfarerAI/WayfarerCore/pkg/secrets"
	"github.com/WayfarerAI/WayfarerCore/services/geocode"
	"github.com/WayfarerAI/WayfarerCore/services/llm"
	"github.com/WayfarerAI/WayfarerCore/services/planner/analytics"
	"github.com/WayfarerAI/WayfarerCore/services/planner/constraints"
	"github.com/WayfarerAI/WayfarerCore/services/planner/enrich"
	"github.com/WayfarerAI/WayfarerCore/services/planner/handlers"
	"github.com/WayfarerAI/WayfarerCore/services/planner/observability"
	"github.com/WayfarerAI/WayfarerCore/services/planner/pointcache"
	"github.com/WayfarerAI/WayfarerCore/services/planner/proposal"
	"github.com/WayfarerAI/WayfarerCore/services/planner/resolve"
	"github.com/WayfarerAI/WayfarerCore/services/planner/routes"
	"github.com/WayfarerAI/WayfarerCore/services/planner/services"
	"github.com/WayfarerAI/WayfarerCore/services/planner/storage"
	"github.com/WayfarerAI/WayfarerCore/services/routing"
)

// =============================================================================
// Interface Definition
// =============================================================================

// Service defines the contract for the planner service.
//
// # Description
//
// Service abstracts the planner lifecycle, enabling testing and
// alternative implementations. Only essential lifecycle methods are
// exposed.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use. Run() blocks and should
// only be called once per instance.
//
// # Assumptions
//
//   - Service is fully initialized before Run() is called
//   - Run() is called at most once per Service instance
type Service interface {
	// Run starts the HTTP server and blocks until shutdown or error.
	Run() error

	// Router returns the underlying Gin engine for testing. Callers must
	// not modify routes after construction.
	Router() *gin.Engine
}

// =============================================================================
// Configuration
// =============================================================================

// Config holds planner configuration options.
//
// # Description
//
// Config centralizes all configuration for the planner service. Values
// can be populated from environment variables, config files, or
// programmatically for testing.
//
// # Required Fields
//
// None - all fields have sensible defaults. A text-model backend must be
// reachable for generation to succeed, but construction does not verify
// reachability.
//
// # Examples
//
//	// Minimal config (uses all defaults; Ollama on localhost)
//	cfg := Config{}
//
//	// OpenAI backend with persistence
//	cfg := Config{
//	    LLMBackend:  "openai",
//	    WeaviateURL: "http://localhost:8080",
//	}
type Config struct {
	// Port is the HTTP server port. Default: 12220
	Port int

	// Version is the release identifier reported by GET /health.
	// Default: "dev"
	Version string

	// LLMBackend specifies the text-model provider.
	// Valid values: "openai", "ollama"
	// Default: "ollama"
	LLMBackend string

	// LLMModel overrides the backend's default model name.
	LLMModel string

	// OllamaURL is the Ollama server URL for the "ollama" backend.
	// Default: "http://localhost:11434"
	OllamaURL string

	// ORSBaseURL overrides the OpenRouteService endpoint. Empty uses the
	// public API; the ORS_API_KEY environment variable authenticates it.
	ORSBaseURL string

	// NominatimURL overrides the geocoder endpoint. Empty uses the public
	// OSM instance with its 1 rps policy limit.
	NominatimURL string

	// WeaviateURL is the trip persistence database URL.
	// If empty, trips are stored in process memory only.
	WeaviateURL string

	// InfluxURL, InfluxToken, InfluxOrg and InfluxBucket configure
	// generation analytics. Analytics is disabled unless URL and token
	// are both set.
	InfluxURL    string
	InfluxToken  string
	InfluxOrg    string
	InfluxBucket string

	// PointCachePath is the directory for the coordinate-repair cache.
	// If empty, repairs are not cached across restarts.
	PointCachePath string

	// OTelEndpoint is the OpenTelemetry collector endpoint.
	// Default: "wayfarer-otel-collector:4317"
	OTelEndpoint string

	// DisableMetrics turns off Prometheus pipeline metrics registration.
	// Metrics are on by default.
	DisableMetrics bool

	// DisableEnrichment turns off weather and imagery lookups on
	// generated trips. Enrichment is on by default and is always
	// best-effort.
	DisableEnrichment bool

	// GenerateRPS and GenerateBurst bound each client's rate on the
	// generation endpoints. Defaults: 0.5 rps, burst 3.
	GenerateRPS   float64
	GenerateBurst int
}

// =============================================================================
// Implementation
// =============================================================================

// service implements Service for production use.
//
// # Description
//
// service is the main implementation that coordinates:
//   - HTTP routing via Gin
//   - Text-model client management
//   - Routing and geocoding provider clients
//   - Trip persistence (Weaviate or in-memory)
//   - Coordinate-repair point cache (BadgerDB, optional)
//   - Generation analytics (InfluxDB, optional)
//   - OpenTelemetry tracing and Prometheus metrics
//
// # Thread Safety
//
// Thread-safe after construction. All fields are read-only after New()
// returns.
type service struct {
	config Config
	opts   extensions.ServiceOptions

	router     *gin.Engine
	secrets    *secrets.Store
	llmClient  llm.Client
	store      storage.TripStore
	pointCache *pointcache.Cache
	analytics  *analytics.Recorder
	metrics    *observability.PipelineMetrics
	assembler  *services.TripAssembler

	tracerCleanup func(context.Context)
}

var _ Service = (*service)(nil)

// =============================================================================
// Constructor
// =============================================================================

// New creates a new planner Service with the given configuration.
//
// # Description
//
// New initializes all planner components:
//  1. Applies default configuration for missing values
//  2. Initializes OpenTelemetry tracing
//  3. Initializes Prometheus metrics
//  4. Seals provider credentials from the environment
//  5. Creates the trip store (Weaviate if configured, memory otherwise)
//  6. Opens the point cache and analytics recorder if configured
//  7. Creates the text-model client based on backend type
//  8. Wires the generation pipeline and HTTP routes
//
// If opts is nil, DefaultOptions() is used (no-op implementations).
//
// Optional collaborators degrade rather than fail: an unreachable
// Weaviate, point cache or InfluxDB logs a warning and the planner runs
// in lightweight mode without it.
//
// # Inputs
//
//   - cfg: Service configuration. Zero values use defaults.
//   - opts: Extension options for enterprise features. May be nil.
//
// # Outputs
//
//   - Service: Ready-to-run planner service
//   - error: Non-nil if initialization fails
func New(cfg Config, opts *extensions.ServiceOptions) (Service, error) {
	s := &service{
		config: applyConfigDefaults(cfg),
	}

	// Apply extension options (use defaults if nil)
	if opts != nil {
		s.opts = *opts
	} else {
		s.opts = extensions.DefaultOptions()
	}

	// Initialize OpenTelemetry tracer
	cleanup, err := s.initTracer()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}
	s.tracerCleanup = cleanup

	// Initialize Prometheus metrics
	if !s.config.DisableMetrics {
		s.metrics = observability.InitMetrics()
		slog.Info("Initialized Prometheus pipeline metrics")
	}

	// Seal provider credentials before anything touches the network
	s.secrets, err = secrets.NewStore()
	if err != nil {
		s.cleanupResources()
		return nil, fmt.Errorf("failed to initialize secret store: %w", err)
	}
	s.secrets.FromEnv(map[string]string{
		"openai_api_key": "OPENAI_API_KEY",
		"ors_api_key":    "ORS_API_KEY",
	})

	// Initialize trip persistence (optional Weaviate)
	if err := s.initStore(); err != nil {
		slog.Warn("Weaviate initialization failed, storing trips in memory",
			"error", err)
		s.store = storage.NewMemoryStore()
	}

	// Initialize point cache (optional)
	if err := s.initPointCache(); err != nil {
		slog.Warn("Point cache initialization failed, repairs will not persist",
			"error", err)
		// Not fatal - continue without cache
	}

	// Initialize analytics recorder (optional)
	if err := s.initAnalytics(); err != nil {
		slog.Warn("Analytics initialization failed, running without telemetry",
			"error", err)
		// Not fatal - continue without analytics
	}

	// Initialize text-model client
	if err := s.initLLMClient(); err != nil {
		s.cleanupResources()
		return nil, fmt.Errorf("failed to initialize text-model client: %w", err)
	}

	// Wire the generation pipeline
	if err := s.initPipeline(); err != nil {
		s.cleanupResources()
		return nil, fmt.Errorf("failed to wire pipeline: %w", err)
	}

	// Setup HTTP router
	s.initRouter()

	return s, nil
}

// =============================================================================
// Service Interface Methods
// =============================================================================

// Run starts the HTTP server and blocks until shutdown or error.
func (s *service) Run() error {
	defer s.cleanupResources()

	addr := fmt.Sprintf(":%d", s.config.Port)
	slog.Info("Starting planner server",
		"port", s.config.Port,
		"version", s.config.Version,
	)

	return s.router.Run(addr)
}

// Router returns the underlying Gin engine for testing.
func (s *service) Router() *gin.Engine {
	return s.router
}

// =============================================================================
// Private Initialization Methods
// =============================================================================

// applyConfigDefaults fills in missing configuration values.
func applyConfigDefaults(cfg Config) Config {
	if cfg.Port == 0 {
		cfg.Port = 12220
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	if cfg.LLMBackend == "" {
		cfg.LLMBackend = "ollama"
	}
	if cfg.OllamaURL == "" {
		cfg.OllamaURL = "http://localhost:11434"
	}
	if cfg.OTelEndpoint == "" {
		cfg.OTelEndpoint = "wayfarer-otel-collector:4317"
	}
	if cfg.GenerateRPS == 0 {
		cfg.GenerateRPS = 0.5
	}
	if cfg.GenerateBurst == 0 {
		cfg.GenerateBurst = 3
	}
	return cfg
}

// initTracer initializes OpenTelemetry distributed tracing.
//
// Sets up an OTLP trace exporter against the configured collector. Uses
// an insecure gRPC connection, appropriate for internal networks. The
// literal endpoint "stdout" swaps in a pretty-printing local exporter
// so spans can be inspected without a collector.
func (s *service) initTracer() (func(context.Context), error) {
	ctx := context.Background()

	var traceExporter sdktrace.SpanExporter
	if s.config.OTelEndpoint == "stdout" {
		exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("failed to create stdout trace exporter: %w", err)
		}
		traceExporter = exporter
	} else {
		conn, err := grpc.NewClient(s.config.OTelEndpoint,
			grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			return nil, fmt.Errorf("failed to create gRPC connection: %w", err)
		}
		exporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
		if err != nil {
			return nil, fmt.Errorf("failed to create trace exporter: %w", err)
		}
		traceExporter = exporter
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("wayfarer-planner")))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))

	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	cleanup := func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}

	return cleanup, nil
}

// initStore initializes trip persistence.
//
// Creates a Weaviate-backed store if WeaviateURL is configured and
// reachable. Returns an error for the caller to downgrade to the memory
// store; an empty URL is lightweight mode, not an error.
func (s *service) initStore() error {
	weaviateURL := strings.Trim(s.config.WeaviateURL, "\"' ")

	if weaviateURL == "" || !strings.Contains(weaviateURL, "http") {
		slog.Info("Weaviate URL not configured, storing trips in memory")
		s.store = storage.NewMemoryStore()
		return nil
	}

	parsedURL, err := url.Parse(weaviateURL)
	if err != nil || parsedURL.Scheme == "" || parsedURL.Host == "" {
		return fmt.Errorf("invalid Weaviate URL: %s", weaviateURL)
	}

	client, err := weaviate.NewClient(weaviate.Config{
		Host:   parsedURL.Host,
		Scheme: parsedURL.Scheme,
	})
	if err != nil {
		return fmt.Errorf("failed to create Weaviate client: %w", err)
	}

	store, err := storage.NewWeaviateStore(client)
	if err != nil {
		return fmt.Errorf("failed to ensure trip schema: %w", err)
	}

	s.store = store
	slog.Info("Weaviate trip store initialized", "url", weaviateURL)
	return nil
}

// initPointCache opens the coordinate-repair cache when a path is
// configured. An empty path disables caching silently.
func (s *service) initPointCache() error {
	if s.config.PointCachePath == "" {
		return nil
	}

	cache, err := pointcache.Open(pointcache.Config{
		Path:   s.config.PointCachePath,
		Logger: slog.Default(),
	})
	if err != nil {
		return err
	}

	s.pointCache = cache
	slog.Info("Point cache opened", "path", s.config.PointCachePath)
	return nil
}

// initAnalytics connects the generation telemetry recorder when InfluxDB
// is configured. Missing configuration disables analytics silently.
func (s *service) initAnalytics() error {
	if s.config.InfluxURL == "" || s.config.InfluxToken == "" {
		slog.Info("InfluxDB not configured, running without generation analytics")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	recorder, err := analytics.NewRecorder(ctx, analytics.Config{
		URL:    s.config.InfluxURL,
		Token:  s.config.InfluxToken,
		Org:    s.config.InfluxOrg,
		Bucket: s.config.InfluxBucket,
	})
	if err != nil {
		return err
	}

	s.analytics = recorder
	slog.Info("Generation analytics initialized", "url", s.config.InfluxURL)
	return nil
}

// initLLMClient initializes the text-model client.
//
// Creates the appropriate client based on the configured backend type.
// The OpenAI key is opened from the secret store only for the duration
// of client construction.
func (s *service) initLLMClient() error {
	switch s.config.LLMBackend {
	case "openai":
		return s.secrets.Use("openai_api_key", func(key string) error {
			client, err := llm.NewOpenAIClient(llm.OpenAIConfig{
				APIKey: key,
				Model:  s.config.LLMModel,
			})
			if err != nil {
				return err
			}
			s.llmClient = client
			slog.Info("Using OpenAI text-model backend", "model", s.config.LLMModel)
			return nil
		})
	case "ollama":
		client, err := llm.NewOllamaClient(llm.OllamaConfig{
			BaseURL: s.config.OllamaURL,
			Model:   s.config.LLMModel,
		})
		if err != nil {
			return err
		}
		s.llmClient = client
		slog.Info("Using Ollama text-model backend", "url", s.config.OllamaURL)
		return nil
	default:
		slog.Warn("Unknown text-model backend, defaulting to ollama",
			"backend", s.config.LLMBackend)
		client, err := llm.NewOllamaClient(llm.OllamaConfig{
			BaseURL: s.config.OllamaURL,
			Model:   s.config.LLMModel,
		})
		if err != nil {
			return err
		}
		s.llmClient = client
		return nil
	}
}

// initPipeline wires the generation pipeline from its stages.
func (s *service) initPipeline() error {
	orsCfg := routing.ORSConfig{BaseURL: s.config.ORSBaseURL}
	if s.secrets.Has("ors_api_key") {
		if err := s.secrets.Use("ors_api_key", func(key string) error {
			orsCfg.APIKey = key
			return nil
		}); err != nil {
			return err
		}
	}
	routingClient := routing.NewORSClient(orsCfg)

	geocodeClient := geocode.NewNominatimClient(geocode.NominatimConfig{
		BaseURL: s.config.NominatimURL,
	})

	resolverCfg := resolve.CoordinateResolverConfig{}
	if s.pointCache != nil {
		resolverCfg.Cache = s.pointCache
	}
	repairer := resolve.NewCoordinateResolver(routingClient, geocodeClient, resolverCfg)

	dayRouter := resolve.NewRoutingResolver(routingClient)
	enforcer := constraints.NewEnforcer(dayRouter)
	generator := proposal.NewGenerator(s.llmClient, proposal.Config{})

	var enricher *enrich.Enricher
	if !s.config.DisableEnrichment {
		enricher = enrich.NewEnricher(
			enrich.NewOpenMeteoClient(enrich.OpenMeteoConfig{}),
			enrich.NewWikipediaClient(enrich.WikipediaConfig{}),
		)
	}

	assembler, err := services.NewTripAssembler(services.AssemblerConfig{
		Generator: generator,
		Days:      dayRouter,
		Repair:    repairer,
		Enforcer:  enforcer,
		Store:     s.store,
		Enricher:  enricher,
		Analytics: s.analytics,
		Metrics:   s.metrics,
	})
	if err != nil {
		return err
	}

	s.assembler = assembler
	return nil
}

// initRouter sets up the Gin HTTP router with all routes.
func (s *service) initRouter() {
	s.router = gin.Default()
	s.router.Use(otelgin.Middleware("wayfarer-planner"))

	var querier handlers.GenerationQuerier
	if s.analytics != nil {
		querier = s.analytics
	}

	routes.SetupRoutes(s.router, s.assembler, s.store, querier, s.opts, routes.Config{
		Version:       s.config.Version,
		GenerateRPS:   s.config.GenerateRPS,
		GenerateBurst: s.config.GenerateBurst,
	})
}

// cleanupResources releases all resources held by the service.
//
// Called when Run() exits or on initialization failure.
func (s *service) cleanupResources() {
	if s.pointCache != nil {
		if err := s.pointCache.Close(); err != nil {
			slog.Warn("Point cache close error", "error", err)
		}
	}

	if s.tracerCleanup != nil {
		s.tracerCleanup(context.Background())
	}

	secrets.Purge()
}
