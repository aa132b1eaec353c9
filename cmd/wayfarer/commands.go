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
	"log"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/WayfarerAI/WayfarerCore/cmd/wayfarer/config"
	"github.com/WayfarerAI/WayfarerCore/pkg/logging"
	"github.com/WayfarerAI/WayfarerCore/pkg/ux"
)

// Version is stamped by the release build via
// -ldflags "-X main.Version=x.y.z"; "dev" means a local build.
var Version = "dev"

var (
	// Persistent flags
	personalityLevel string // --personality: full, standard, minimal, machine
	verboseLogging   bool   // --verbose: debug logging to stderr

	// planCmd generates a trip. Defined in cmd_plan.go
	planCmd = &cobra.Command{
		Use:   "plan [destination]",
		Short: "Generate a trek or cycling trip for a destination",
		Long: `Generates a day-by-day trip for a destination.

With no arguments, an interactive form asks for the destination and the
trip type. Progress streams live from the planner while the pipeline
proposes waypoints, resolves them onto the road and trail network, and
repairs any day that breaks the distance or continuity rules.

Examples:
  wayfarer plan                          # interactive form
  wayfarer plan "Lake Annecy"            # trek by default
  wayfarer plan "Tel Aviv" --type cycling
  wayfarer plan "Black Forest" --json    # raw trip JSON for scripting`,
		Args: cobra.ArbitraryArgs,
		Run:  runPlanCommand,
	}

	// tripsCmd groups the saved-trip administration commands.
	tripsCmd = &cobra.Command{
		Use:   "trips",
		Short: "List, inspect, and delete saved trips",
	}

	// Defined in cmd_trips.go
	tripsListCmd = &cobra.Command{
		Use:   "list",
		Short: "List saved trips",
		Run:   runTripsList,
	}

	// Defined in cmd_trips.go
	tripsShowCmd = &cobra.Command{
		Use:   "show <trip-id>",
		Short: "Show one saved trip in full",
		Args:  cobra.ExactArgs(1),
		Run:   runTripsShow,
	}

	// Defined in cmd_trips.go
	tripsDeleteCmd = &cobra.Command{
		Use:   "delete <trip-id>",
		Short: "Delete a saved trip",
		Args:  cobra.ExactArgs(1),
		Run:   runTripsDelete,
	}

	// Defined in cmd_export.go
	exportCmd = &cobra.Command{
		Use:   "export [trip-id]",
		Short: "Export saved trips as GPX",
		Long: `Exports a saved trip as a GPX 1.1 file, one track per day.

With --all, every saved trip is exported into the output directory.
With --bucket, the exported files are also uploaded to a GCS bucket
(credentials and defaults come from the cloud section of
~/.wayfarer/wayfarer.yaml).

Examples:
  wayfarer export 4f7c...                # single trip to ./<city>-<type>-<days>d.gpx
  wayfarer export 4f7c... -o loop.gpx
  wayfarer export --all -o ./tracks
  wayfarer export --all --bucket my-archive`,
		Args: cobra.MaximumNArgs(1),
		Run:  runExportCommand,
	}

	// Defined in cmd_serve.go
	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the planner service in the foreground",
		Long: `Runs the planner HTTP service in the foreground.

Provider endpoints (routing, geocoding, text generation) are read from
the environment, same as the standalone planner binary. The CLI config
file is watched while serving; edits are picked up without a restart
where possible.`,
		Run: runServeCommand,
	}

	// Defined in cmd_health.go
	healthCmd = &cobra.Command{
		Use:   "health",
		Short: "Check the planner service and compare versions",
		Run:   runHealthCommand,
	}
)

var rootCmd = &cobra.Command{
	Use:   "wayfarer",
	Short: "Wayfarer plans multi-day treks and cycling tours",
	Long: `Wayfarer turns a destination into a day-by-day trek or cycling tour
with coordinates that are actually reachable on the road and trail
network, not just plausible-sounding points.

The CLI talks to a running planner service (local or remote) and can
also run one itself with 'wayfarer serve'. Generated trips are saved
server-side; list them, export GPX tracks, or archive them to GCS.`,
	Version: Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if err := config.Load(); err != nil {
			log.Fatalf("Failed to load the CLI config: %v", err)
		}
		if personalityLevel != "" {
			ux.SetPersonalityLevel(ux.ParsePersonalityLevel(personalityLevel))
		} else {
			ux.InitPersonality()
		}
		initCLILogging()
	},
}

// initCLILogging routes slog through pkg/logging. The CLI keeps stderr
// quiet below warning level unless --verbose is set; WAYFARER_LOG_DIR
// additionally mirrors entries to a JSON file for later inspection.
func initCLILogging() {
	level := logging.LevelWarn
	if verboseLogging {
		level = logging.LevelDebug
	}
	logger := logging.New(logging.Config{
		Level:   level,
		LogDir:  os.Getenv("WAYFARER_LOG_DIR"),
		Service: "cli",
	})
	slog.SetDefault(logger.Slog())
}

func init() {
	rootCmd.PersistentFlags().StringVar(&personalityLevel, "personality", "",
		"Output personality: full, standard, minimal, or machine (default: auto-detect)")
	rootCmd.PersistentFlags().BoolVarP(&verboseLogging, "verbose", "v", false,
		"Enable debug logging to stderr")

	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(tripsCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(healthCmd)

	tripsCmd.AddCommand(tripsListCmd)
	tripsCmd.AddCommand(tripsShowCmd)
	tripsCmd.AddCommand(tripsDeleteCmd)
}
