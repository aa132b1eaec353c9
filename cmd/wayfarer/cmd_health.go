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
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/mod/semver"

	"github.com/WayfarerAI/WayfarerCore/pkg/ux"
)

var healthJSON bool

func init() {
	healthCmd.Flags().BoolVar(&healthJSON, "json", false, "Print the raw health JSON")
}

type healthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version"`
}

func runHealthCommand(cmd *cobra.Command, args []string) {
	base := getPlannerBaseURL()
	body, err := apiGet(base + "/health")
	if err != nil {
		ux.Error(fmt.Sprintf("Planner at %s is unreachable: %v", base, err))
		os.Exit(1)
	}

	if healthJSON {
		fmt.Println(string(body))
		return
	}

	var health healthResponse
	if err := json.Unmarshal(body, &health); err != nil {
		ux.Error(fmt.Sprintf("Failed to decode the health response: %v", err))
		os.Exit(1)
	}
	if health.Status != "ok" {
		ux.Error(fmt.Sprintf("Planner at %s reports status %q", base, health.Status))
		os.Exit(1)
	}

	ux.Success(fmt.Sprintf("%s at %s is healthy (version %s)", health.Service, base, health.Version))
	warnOnVersionSkew(Version, health.Version)
}

// versionSkew reports whether two release identifiers differ in major
// version. Non-semver identifiers like "dev" never skew, so local
// builds talking to local builds stay quiet.
func versionSkew(cli, server string) bool {
	cliV := "v" + strings.TrimPrefix(cli, "v")
	serverV := "v" + strings.TrimPrefix(server, "v")
	if !semver.IsValid(cliV) || !semver.IsValid(serverV) {
		return false
	}
	return semver.Major(cliV) != semver.Major(serverV)
}

func warnOnVersionSkew(cli, server string) {
	if !versionSkew(cli, server) {
		return
	}
	ux.WarningBox("Version skew",
		fmt.Sprintf("CLI %s and planner %s differ in major version; generation and export should work but new fields may be missing. Upgrade whichever is older.", cli, server))
}
