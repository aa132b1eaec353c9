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

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

var (
	// Global is a singleton instance
	Global WayfarerConfig
	once   sync.Once
	mu     sync.RWMutex
)

// Load ensures the config is loaded into the Global variable
func Load() error {
	var err error
	once.Do(func() {
		err = loadInternal()
	})
	return err
}

// Reload re-reads the config file into Global, bypassing the once guard.
// The file watcher calls this when the file changes on disk.
func Reload() error {
	return loadInternal()
}

// Snapshot returns a copy of the current config, safe to read while the
// watcher reloads Global in the background.
func Snapshot() WayfarerConfig {
	mu.RLock()
	defer mu.RUnlock()
	return Global
}

// Path returns the location of the CLI config file.
func Path() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not find the user's home directory: %w", err)
	}
	return filepath.Join(home, ".wayfarer", "wayfarer.yaml"), nil
}

func loadInternal() error {
	configPath, err := Path()
	if err != nil {
		return err
	}
	// create it if it doesn't exist
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		fmt.Printf(" First run detected, creating the config at %s\n", configPath)
		if err := createDefault(configPath); err != nil {
			return err
		}
	}
	return loadFrom(configPath)
}

// loadFrom parses the file at path into Global. Unknown keys are ignored;
// keys absent from the file keep their default values.
func loadFrom(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read the config file %w", err)
	}
	// parse into a scratch struct so a half-written file never clobbers Global
	cfg := DefaultConfig()
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("failed to parse the config file: %w", err)
	}
	mu.Lock()
	Global = cfg
	mu.Unlock()
	return nil
}

func createDefault(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create the config directory %w", err)
	}
	defaultCfg := DefaultConfig()
	data, err := yaml.Marshal(defaultCfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
