// Copyright (C) 2025 Wayfarer AI (dev@wayfarer.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command planner starts the WayfarerCore trip generation HTTP server.
//
// This is the main entry point for the containerized planner service.
// It reads configuration from environment variables and starts the server.
//
// # Environment Variables
//
//   - WAYFARER_PLANNER_PORT: HTTP server port (default: 12220)
//   - WAYFARER_VERSION: release identifier reported by /health (default: dev)
//   - LLM_BACKEND_TYPE: text-model provider - openai, ollama (default: ollama)
//   - LLM_MODEL: model name override (backend default if unset)
//   - OLLAMA_URL: Ollama server URL (default: http://localhost:11434)
//   - OPENAI_API_KEY: key for the openai backend
//   - ORS_BASE_URL: OpenRouteService endpoint (public API if unset)
//   - ORS_API_KEY: key for the public OpenRouteService API
//   - NOMINATIM_URL: geocoder endpoint (public OSM instance if unset)
//   - WEAVIATE_SERVICE_URL: trip persistence DB URL (optional)
//   - INFLUXDB_URL, INFLUXDB_TOKEN, INFLUXDB_ORG, INFLUXDB_BUCKET:
//     generation analytics (optional, URL and token required together)
//   - POINT_CACHE_PATH: directory for the coordinate-repair cache (optional)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OpenTelemetry collector (default: wayfarer-otel-collector:4317);
//     the literal value "stdout" prints spans locally instead
//
// # Usage
//
//	# Build
//	go build -o planner ./cmd/planner
//
//	# Run
//	./planner
//
//	# Or via container
//	podman-compose up planner
package main

import (
	"log"
	"log/slog"
	"os"
	"strconv"

	"github.com/WayfarerAI/WayfarerCore/services/planner"
)

func main() {
	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Build configuration from environment variables
	cfg := planner.Config{
		Port:           getEnvInt("WAYFARER_PLANNER_PORT", 12220),
		Version:        getEnvString("WAYFARER_VERSION", "dev"),
		LLMBackend:     getEnvString("LLM_BACKEND_TYPE", "ollama"),
		LLMModel:       os.Getenv("LLM_MODEL"),
		OllamaURL:      getEnvString("OLLAMA_URL", "http://localhost:11434"),
		ORSBaseURL:     os.Getenv("ORS_BASE_URL"),
		NominatimURL:   os.Getenv("NOMINATIM_URL"),
		WeaviateURL:    os.Getenv("WEAVIATE_SERVICE_URL"),
		InfluxURL:      os.Getenv("INFLUXDB_URL"),
		InfluxToken:    os.Getenv("INFLUXDB_TOKEN"),
		InfluxOrg:      os.Getenv("INFLUXDB_ORG"),
		InfluxBucket:   os.Getenv("INFLUXDB_BUCKET"),
		PointCachePath: os.Getenv("POINT_CACHE_PATH"),
		OTelEndpoint:   getEnvString("OTEL_EXPORTER_OTLP_ENDPOINT", "wayfarer-otel-collector:4317"),
	}

	slog.Info("Starting planner",
		"port", cfg.Port,
		"llm_backend", cfg.LLMBackend,
		"weaviate_url", cfg.WeaviateURL,
	)

	// Create planner with default (no-op) extension options
	// Enterprise builds will pass custom ServiceOptions here
	svc, err := planner.New(cfg, nil)
	if err != nil {
		log.Fatalf("Failed to create planner: %v", err)
	}

	// Run the server (blocks until shutdown)
	if err := svc.Run(); err != nil {
		log.Fatalf("Planner error: %v", err)
	}
}

// getEnvString returns the environment variable value or a default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as int or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
