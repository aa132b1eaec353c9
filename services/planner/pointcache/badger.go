// Copyright (C) 2025 Wayfarer AI (dev@wayfarer.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package pointcache provides a BadgerDB-backed cache of coordinate
// resolutions.
//
// Repairing an unroutable point costs up to dozens of routing probes; the
// same landmark coordinates come back from the LLM across requests, so
// remembering profile-scoped resolutions makes repeat generations cheap.
//
// BadgerDB is used for local embedded storage with low-latency access.
// Entries expire via Badger's native TTL support.
//
// License: BadgerDB is Apache 2.0 licensed (github.com/dgraph-io/badger).
package pointcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/WayfarerAI/WayfarerCore/pkg/geo"
	"github.com/WayfarerAI/WayfarerCore/services/planner/resolve"
)

// DefaultTTL is how long a remembered resolution stays valid. Road and
// trail networks change slowly; a week keeps the cache useful without
// pinning stale repairs forever.
const DefaultTTL = 7 * 24 * time.Hour

// keyPrecision is the number of coordinate decimals carried in cache keys.
// Four decimals (~11 m) is well inside the resolver's coordinate tolerance,
// so near-identical LLM outputs collapse onto one entry.
const keyPrecision = 4

// Config holds configuration for the point cache.
type Config struct {
	// Path is the directory for BadgerDB files.
	// Required unless InMemory is true.
	Path string

	// InMemory enables in-memory mode (no disk persistence).
	// Useful for testing.
	InMemory bool

	// TTL is the lifetime of each entry. Zero applies DefaultTTL.
	TTL time.Duration

	// Logger is the logger for BadgerDB operations.
	// If nil, BadgerDB's internal logging is disabled.
	Logger *slog.Logger
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Cache is a BadgerDB-backed resolve.PointCache.
//
// Thread Safety: safe for concurrent use; BadgerDB transactions provide
// isolation.
type Cache struct {
	db  *badger.DB
	ttl time.Duration
}

// entry is the stored value: the resolved point plus the original name so
// cache hits keep their labels.
type entry struct {
	Lat  float64 `json:"lat"`
	Lng  float64 `json:"lng"`
	Name string  `json:"name,omitempty"`
}

// Open creates a point cache with the given configuration.
//
// The returned cache owns the underlying database; call Close when done.
func Open(cfg Config) (*Cache, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent cache")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create cache directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithNumVersionsToKeep(1)

	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger cache: %w", err)
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &Cache{db: db, ttl: ttl}, nil
}

// OpenInMemory opens an in-memory point cache for testing.
func OpenInMemory() (*Cache, error) {
	return Open(Config{InMemory: true})
}

// Close releases the underlying database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Lookup returns the previously resolved point for original, if any.
func (c *Cache) Lookup(ctx context.Context, profile string, original geo.Point) (geo.Point, bool) {
	if err := ctx.Err(); err != nil {
		return geo.Point{}, false
	}

	var stored entry
	found := false

	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(c.key(profile, original))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if err := json.Unmarshal(val, &stored); err != nil {
				return err
			}
			found = true
			return nil
		})
	})
	if err != nil {
		slog.Warn("Point cache lookup failed", "profile", profile, "error", err)
		return geo.Point{}, false
	}
	if !found {
		return geo.Point{}, false
	}

	resolved := geo.Point{Lat: stored.Lat, Lng: stored.Lng, Name: stored.Name}
	// The stored name may predate a rename upstream; the caller's name wins.
	if original.Name != "" {
		resolved.Name = original.Name
	}
	return resolved, true
}

// Remember stores a resolution with the configured TTL.
func (c *Cache) Remember(ctx context.Context, profile string, original, resolved geo.Point) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}

	val, err := json.Marshal(entry{Lat: resolved.Lat, Lng: resolved.Lng, Name: resolved.Name})
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	return c.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry(c.key(profile, original), val).WithTTL(c.ttl)
		return txn.SetEntry(e)
	})
}

// key builds the cache key from profile and rounded coordinates. Rounding
// to keyPrecision decimals collapses near-identical coordinates onto one
// entry; Name deliberately stays out of the key so renamed duplicates of
// the same point still hit.
func (c *Cache) key(profile string, p geo.Point) []byte {
	return []byte(fmt.Sprintf("%s/%.*f,%.*f", profile, keyPrecision, p.Lat, keyPrecision, p.Lng))
}

var _ resolve.PointCache = (*Cache)(nil)
