// Copyright (C) 2025 Wayfarer AI (dev@wayfarer.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pointcache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WayfarerAI/WayfarerCore/pkg/geo"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	cache, err := OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })
	return cache
}

func TestCache_RememberAndLookup(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	original := geo.Point{Lat: 48.8867, Lng: 2.3431, Name: "Montmartre"}
	resolved := geo.Point{Lat: 48.8870, Lng: 2.3440, Name: "Montmartre"}

	require.NoError(t, cache.Remember(ctx, "foot-hiking", original, resolved))

	got, ok := cache.Lookup(ctx, "foot-hiking", original)
	require.True(t, ok)
	assert.InDelta(t, resolved.Lat, got.Lat, 1e-9)
	assert.InDelta(t, resolved.Lng, got.Lng, 1e-9)
	assert.Equal(t, "Montmartre", got.Name)
}

func TestCache_LookupMiss(t *testing.T) {
	cache := newTestCache(t)

	_, ok := cache.Lookup(context.Background(), "foot-hiking", geo.Point{Lat: 1, Lng: 2})
	assert.False(t, ok)
}

func TestCache_ProfilesAreIsolated(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	original := geo.Point{Lat: 48.8867, Lng: 2.3431}
	resolved := geo.Point{Lat: 48.8870, Lng: 2.3440}

	require.NoError(t, cache.Remember(ctx, "foot-hiking", original, resolved))

	// A hiking repair says nothing about cycling reachability.
	_, ok := cache.Lookup(ctx, "cycling-regular", original)
	assert.False(t, ok)

	_, ok = cache.Lookup(ctx, "foot-hiking", original)
	assert.True(t, ok)
}

func TestCache_NearIdenticalCoordinatesShareEntry(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	original := geo.Point{Lat: 48.88670, Lng: 2.34310}
	resolved := geo.Point{Lat: 48.8870, Lng: 2.3440}
	require.NoError(t, cache.Remember(ctx, "foot-hiking", original, resolved))

	// Differs only past the fourth decimal (~5 m), so it rounds onto the
	// same key.
	nearby := geo.Point{Lat: 48.88672, Lng: 2.34308}
	got, ok := cache.Lookup(ctx, "foot-hiking", nearby)
	require.True(t, ok)
	assert.InDelta(t, resolved.Lat, got.Lat, 1e-9)

	// A genuinely different coordinate misses.
	far := geo.Point{Lat: 48.8880, Lng: 2.3431}
	_, ok = cache.Lookup(ctx, "foot-hiking", far)
	assert.False(t, ok)
}

func TestCache_LookupKeepsCallerName(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	original := geo.Point{Lat: 48.8867, Lng: 2.3431, Name: "Montmartre"}
	resolved := geo.Point{Lat: 48.8870, Lng: 2.3440, Name: "Montmartre"}
	require.NoError(t, cache.Remember(ctx, "foot-hiking", original, resolved))

	// Same point, different label in a later proposal.
	renamed := geo.Point{Lat: 48.8867, Lng: 2.3431, Name: "Butte Montmartre"}
	got, ok := cache.Lookup(ctx, "foot-hiking", renamed)
	require.True(t, ok)
	assert.Equal(t, "Butte Montmartre", got.Name)
}

func TestCache_EntriesExpire(t *testing.T) {
	cache, err := Open(Config{InMemory: true, TTL: 50 * time.Millisecond})
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })
	ctx := context.Background()

	original := geo.Point{Lat: 48.8867, Lng: 2.3431}
	require.NoError(t, cache.Remember(ctx, "foot-hiking", original, geo.Point{Lat: 48.8870, Lng: 2.3440}))

	_, ok := cache.Lookup(ctx, "foot-hiking", original)
	require.True(t, ok)

	time.Sleep(120 * time.Millisecond)

	_, ok = cache.Lookup(ctx, "foot-hiking", original)
	assert.False(t, ok, "entry should expire after its TTL")
}

func TestCache_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	original := geo.Point{Lat: 48.8867, Lng: 2.3431}
	resolved := geo.Point{Lat: 48.8870, Lng: 2.3440}

	cache, err := Open(Config{Path: dir})
	require.NoError(t, err)
	require.NoError(t, cache.Remember(ctx, "foot-hiking", original, resolved))
	require.NoError(t, cache.Close())

	reopened, err := Open(Config{Path: dir})
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })

	got, ok := reopened.Lookup(ctx, "foot-hiking", original)
	require.True(t, ok)
	assert.InDelta(t, resolved.Lat, got.Lat, 1e-9)
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open(Config{})
	assert.Error(t, err)
}

func TestCache_CancelledContext(t *testing.T) {
	cache := newTestCache(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	original := geo.Point{Lat: 48.8867, Lng: 2.3431}
	_, ok := cache.Lookup(ctx, "foot-hiking", original)
	assert.False(t, ok)

	err := cache.Remember(ctx, "foot-hiking", original, geo.Point{Lat: 1, Lng: 2})
	assert.Error(t, err)
}

func TestCache_ConcurrentAccess(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			p := geo.Point{Lat: 48.0 + float64(n)*0.01, Lng: 2.0}
			_ = cache.Remember(ctx, "foot-hiking", p, geo.Point{Lat: p.Lat, Lng: p.Lng + 0.001})
			_, _ = cache.Lookup(ctx, "foot-hiking", p)
		}(i)
	}
	wg.Wait()

	got, ok := cache.Lookup(ctx, "foot-hiking", geo.Point{Lat: 48.05, Lng: 2.0})
	require.True(t, ok)
	assert.InDelta(t, 2.001, got.Lng, 1e-9)
}
