// Copyright (C) 2025 Wayfarer AI (dev@wayfarer.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command wayfarer is the operator CLI for the Wayfarer trip planner.
//
// It plans trips against a running planner service, administers the
// saved-trip store, exports GPX tracks (optionally archiving them to a
// GCS bucket), and can run the planner itself in the foreground.
//
// # Configuration
//
// Settings live in ~/.wayfarer/wayfarer.yaml, created on first run.
// Three environment variables override it:
//
//	WAYFARER_PLANNER_URL   planner address (e.g. http://localhost:12220)
//	WAYFARER_LOG_DIR       mirror CLI logs to a JSON file in this directory
//	WAYFARER_PERSONALITY   force an output personality (full/standard/minimal/machine)
//
// # Usage
//
//	wayfarer plan "Lake Annecy" --type trek
//	wayfarer trips list
//	wayfarer export <trip-id> --bucket my-archive
//	wayfarer serve
package main

import (
	"log"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("There was an error executing the CLI '%s'", err)
	}
}
