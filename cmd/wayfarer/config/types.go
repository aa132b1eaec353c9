// Copyright (C) 2025 Wayfarer AI (dev@wayfarer.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

type WayfarerConfig struct {
	// Server points the CLI at a running planner instance.
	Server ServerConfig `yaml:"server"`

	// Defaults seed the interactive plan form.
	Defaults DefaultsConfig `yaml:"defaults"`

	// Cloud configures the optional GPX archive upload target.
	Cloud CloudConfig `yaml:"cloud"`
}

type ServerConfig struct {
	URL string `yaml:"url"` // e.g. http://localhost:12220

	// TimeoutSeconds bounds the plain REST calls (list, show, delete,
	// health). Generation has its own budget via the plan --timeout flag.
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

type DefaultsConfig struct {
	TripType string `yaml:"trip_type"` // "trek" or "cycling"
}

type CloudConfig struct {
	Project         string `yaml:"project"`
	Bucket          string `yaml:"bucket"`
	CredentialsFile string `yaml:"credentials_file"`
	Prefix          string `yaml:"prefix"` // object prefix inside the bucket
}

func DefaultConfig() WayfarerConfig {
	return WayfarerConfig{
		Server: ServerConfig{
			URL:            "http://localhost:12220",
			TimeoutSeconds: 30,
		},
		Defaults: DefaultsConfig{
			TripType: "trek",
		},
		Cloud: CloudConfig{
			Prefix: "trips",
		},
	}
}
