// Copyright (C) 2025 Wayfarer AI (dev@wayfarer.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/WayfarerAI/WayfarerCore/cmd/wayfarer/config"
	"github.com/WayfarerAI/WayfarerCore/pkg/ux"
	"github.com/WayfarerAI/WayfarerCore/services/planner"
)

var servePort int

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0,
		"Listen port (overrides WAYFARER_PLANNER_PORT, default 12220)")
}

// runServeCommand runs the planner service in the foreground. Provider
// wiring matches the standalone planner binary so a compose file and a
// laptop run the same way; only the port can be overridden by flag.
func runServeCommand(cmd *cobra.Command, args []string) {
	cfg := plannerConfigFromEnv()
	if servePort > 0 {
		cfg.Port = servePort
	}
	if cfg.Version == "dev" && Version != "dev" {
		cfg.Version = Version
	}

	svc, err := planner.New(cfg, nil)
	if err != nil {
		log.Fatalf("Failed to create the planner: %v", err)
	}

	startConfigWatcher()

	ux.Info(fmt.Sprintf("Planner listening on port %d (backend %s). Ctrl-C to stop.", cfg.Port, cfg.LLMBackend))
	if err := svc.Run(); err != nil {
		log.Fatalf("Planner error: %v", err)
	}
}

// startConfigWatcher reloads ~/.wayfarer/wayfarer.yaml while serving so
// a later CLI invocation in another terminal sees fresh defaults.
// Provider clients are constructed once at startup; changing those
// still needs a restart, which the reload log line says outright.
func startConfigWatcher() {
	configPath, err := config.Path()
	if err != nil {
		ux.Warning(fmt.Sprintf("Config watching disabled: %v", err))
		return
	}
	watcher, err := config.NewWatcher(configPath, func(config.WayfarerConfig) {
		ux.Muted("Config file reloaded. Restart serve to apply server-side settings.")
	})
	if err != nil {
		ux.Warning(fmt.Sprintf("Config watching disabled: %v", err))
		return
	}
	go watcher.Start(context.Background())
}

// plannerConfigFromEnv builds the planner service config the same way
// the standalone binary does.
func plannerConfigFromEnv() planner.Config {
	return planner.Config{
		Port:           envInt("WAYFARER_PLANNER_PORT", DefaultPlannerPort),
		Version:        envString("WAYFARER_VERSION", "dev"),
		LLMBackend:     envString("LLM_BACKEND_TYPE", "ollama"),
		LLMModel:       os.Getenv("LLM_MODEL"),
		OllamaURL:      envString("OLLAMA_URL", "http://localhost:11434"),
		ORSBaseURL:     os.Getenv("ORS_BASE_URL"),
		NominatimURL:   os.Getenv("NOMINATIM_URL"),
		WeaviateURL:    os.Getenv("WEAVIATE_SERVICE_URL"),
		InfluxURL:      os.Getenv("INFLUXDB_URL"),
		InfluxToken:    os.Getenv("INFLUXDB_TOKEN"),
		InfluxOrg:      os.Getenv("INFLUXDB_ORG"),
		InfluxBucket:   os.Getenv("INFLUXDB_BUCKET"),
		PointCachePath: os.Getenv("POINT_CACHE_PATH"),
		OTelEndpoint:   envString("OTEL_EXPORTER_OTLP_ENDPOINT", "wayfarer-otel-collector:4317"),
	}
}

func envString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func envInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
