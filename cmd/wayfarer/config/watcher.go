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
	"context"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads the CLI config when the file changes on disk.
//
// # Description
//
// Long-running commands (serve) keep their view of wayfarer.yaml current
// without a restart. Editors usually replace the file via rename rather
// than writing in place, so the watcher monitors the containing directory
// and filters events by file name.
//
// # Thread Safety
//
// Safe for concurrent use. Start should only be called once.
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	onReload func(WayfarerConfig)
}

// NewWatcher creates a watcher for the config file at path.
//
// The callback receives the freshly loaded config after every successful
// reload. It runs on the watcher goroutine; callbacks must not block.
func NewWatcher(path string, onReload func(WayfarerConfig)) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		path:     path,
		watcher:  watcher,
		onReload: onReload,
	}, nil
}

// Start begins watching for config changes. Blocks until the context is
// cancelled; run it in a goroutine.
//
// # Example
//
//	w, _ := config.NewWatcher(path, func(cfg config.WayfarerConfig) { ... })
//	go w.Start(ctx)
func (w *Watcher) Start(ctx context.Context) {
	dir := filepath.Dir(w.path)
	if err := w.watcher.Add(dir); err != nil {
		slog.Warn("Failed to watch config directory",
			"dir", dir,
			"error", err)
		return
	}

	slog.Debug("Started watching config file", "path", w.path)

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("Config watcher error", "error", err)

		case <-ctx.Done():
			slog.Debug("Config watcher stopping")
			return
		}
	}
}

// handleEvent processes a single fsnotify event.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	if filepath.Base(event.Name) != filepath.Base(w.path) {
		return
	}
	// Write for in-place edits, Create for the rename-replace editors do.
	if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return
	}

	if err := loadFrom(w.path); err != nil {
		slog.Warn("Config file changed but could not be reloaded",
			"path", w.path,
			"error", err)
		return
	}

	slog.Info("Config file reloaded", "path", w.path)

	if w.onReload != nil {
		w.onReload(Snapshot())
	}
}

// Stop stops the watcher. Safe to call multiple times.
func (w *Watcher) Stop() error {
	return w.watcher.Close()
}
