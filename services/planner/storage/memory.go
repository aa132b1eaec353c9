// Copyright (C) 2025 Wayfarer AI (dev@wayfarer.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/WayfarerAI/WayfarerCore/services/planner/datatypes"
)

// MemoryStore keeps trips in process memory. Used in lightweight mode when
// no Weaviate instance is configured, and in tests.
//
// Trips are stored as JSON snapshots so callers cannot mutate stored state
// through retained pointers.
type MemoryStore struct {
	mu    sync.RWMutex
	trips map[string][]byte
}

// NewMemoryStore creates an empty in-memory trip store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{trips: make(map[string][]byte)}
}

// Save persists a snapshot of the trip.
func (s *MemoryStore) Save(_ context.Context, trip *datatypes.Trip) error {
	payload, err := json.Marshal(trip)
	if err != nil {
		return fmt.Errorf("failed to marshal trip %s: %w", trip.ID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.trips[trip.ID] = payload
	return nil
}

// Get returns the trip with the given ID, or ErrNotFound.
func (s *MemoryStore) Get(_ context.Context, id string) (*datatypes.Trip, error) {
	s.mu.RLock()
	payload, ok := s.trips[id]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}

	var trip datatypes.Trip
	if err := json.Unmarshal(payload, &trip); err != nil {
		return nil, fmt.Errorf("failed to unmarshal trip payload: %w", err)
	}
	return &trip, nil
}

// List returns summaries of stored trips, newest first.
func (s *MemoryStore) List(_ context.Context, limit int) ([]TripSummary, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	s.mu.RLock()
	summaries := make([]TripSummary, 0, len(s.trips))
	for _, payload := range s.trips {
		var trip datatypes.Trip
		if err := json.Unmarshal(payload, &trip); err != nil {
			s.mu.RUnlock()
			return nil, fmt.Errorf("failed to unmarshal trip payload: %w", err)
		}
		summaries = append(summaries, summaryOf(&trip))
	}
	s.mu.RUnlock()

	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].CreatedAt.Equal(summaries[j].CreatedAt) {
			return summaries[i].ID < summaries[j].ID
		}
		return summaries[i].CreatedAt.After(summaries[j].CreatedAt)
	})

	if len(summaries) > limit {
		summaries = summaries[:limit]
	}
	return summaries, nil
}

// Delete removes the trip with the given ID. Returns ErrNotFound if no
// trip matched.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.trips[id]; !ok {
		return ErrNotFound
	}
	delete(s.trips, id)
	return nil
}

// Len reports the number of stored trips.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.trips)
}

var _ TripStore = (*MemoryStore)(nil)
