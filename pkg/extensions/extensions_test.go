// Copyright (C) 2025 Wayfarer AI (dev@wayfarer.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package extensions

import (
	"context"
	"errors"
	"testing"
	"time"
)

// ============================================================================
// Test Mocks
// ============================================================================

type mockAuthProvider struct {
	userID string
}

func (p *mockAuthProvider) Validate(_ context.Context, _ string) (*AuthInfo, error) {
	return &AuthInfo{UserID: p.userID}, nil
}

type mockAuthzProvider struct {
	denied bool
}

func (p *mockAuthzProvider) Authorize(_ context.Context, _ AuthzRequest) error {
	if p.denied {
		return ErrUnauthorized
	}
	return nil
}

type mockAuditLogger struct {
	events []AuditEvent
}

func (l *mockAuditLogger) Log(_ context.Context, event AuditEvent) error {
	l.events = append(l.events, event)
	return nil
}

func (l *mockAuditLogger) Query(_ context.Context, _ AuditFilter) ([]AuditEvent, error) {
	return l.events, nil
}

func (l *mockAuditLogger) Flush(_ context.Context) error {
	return nil
}

// ============================================================================
// ServiceOptions Tests
// ============================================================================

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()

	// Verify all fields are set to non-nil nop implementations
	if opts.AuthProvider == nil {
		t.Error("DefaultOptions().AuthProvider should not be nil")
	}
	if opts.AuthzProvider == nil {
		t.Error("DefaultOptions().AuthzProvider should not be nil")
	}
	if opts.AuditLogger == nil {
		t.Error("DefaultOptions().AuditLogger should not be nil")
	}

	// Verify they are the correct nop types
	if _, ok := opts.AuthProvider.(*NopAuthProvider); !ok {
		t.Error("DefaultOptions().AuthProvider should be *NopAuthProvider")
	}
	if _, ok := opts.AuthzProvider.(*NopAuthzProvider); !ok {
		t.Error("DefaultOptions().AuthzProvider should be *NopAuthzProvider")
	}
	if _, ok := opts.AuditLogger.(*NopAuditLogger); !ok {
		t.Error("DefaultOptions().AuditLogger should be *NopAuditLogger")
	}
}

func TestServiceOptions_WithAuth(t *testing.T) {
	original := DefaultOptions()
	customAuth := &mockAuthProvider{userID: "custom-user"}

	// WithAuth should return a new options with the custom auth provider
	newOpts := original.WithAuth(customAuth)

	// New options should have the custom provider
	if newOpts.AuthProvider != customAuth {
		t.Error("WithAuth should set the custom AuthProvider")
	}

	// Original should be unchanged (immutable copy)
	if _, ok := original.AuthProvider.(*NopAuthProvider); !ok {
		t.Error("Original options should be unchanged after WithAuth")
	}

	// Other fields should be preserved
	if newOpts.AuthzProvider == nil {
		t.Error("WithAuth should preserve AuthzProvider")
	}
	if newOpts.AuditLogger == nil {
		t.Error("WithAuth should preserve AuditLogger")
	}
}

func TestServiceOptions_WithAuthz(t *testing.T) {
	original := DefaultOptions()
	customAuthz := &mockAuthzProvider{}

	newOpts := original.WithAuthz(customAuthz)

	if newOpts.AuthzProvider != customAuthz {
		t.Error("WithAuthz should set the custom AuthzProvider")
	}

	// Original should be unchanged
	if _, ok := original.AuthzProvider.(*NopAuthzProvider); !ok {
		t.Error("Original options should be unchanged after WithAuthz")
	}
}

func TestServiceOptions_WithAudit(t *testing.T) {
	original := DefaultOptions()
	customAudit := &mockAuditLogger{}

	newOpts := original.WithAudit(customAudit)

	if newOpts.AuditLogger != customAudit {
		t.Error("WithAudit should set the custom AuditLogger")
	}

	// Original should be unchanged
	if _, ok := original.AuditLogger.(*NopAuditLogger); !ok {
		t.Error("Original options should be unchanged after WithAudit")
	}
}

func TestServiceOptions_FluentChaining(t *testing.T) {
	// Test that all With* methods can be chained
	customAuth := &mockAuthProvider{userID: "chained-user"}
	customAuthz := &mockAuthzProvider{}
	customAudit := &mockAuditLogger{}

	opts := DefaultOptions().
		WithAuth(customAuth).
		WithAuthz(customAuthz).
		WithAudit(customAudit)

	if opts.AuthProvider != customAuth {
		t.Error("Chained WithAuth should set AuthProvider")
	}
	if opts.AuthzProvider != customAuthz {
		t.Error("Chained WithAuthz should set AuthzProvider")
	}
	if opts.AuditLogger != customAudit {
		t.Error("Chained WithAudit should set AuditLogger")
	}
}

// ============================================================================
// AuthProvider Tests
// ============================================================================

func TestNopAuthProvider_Validate(t *testing.T) {
	provider := &NopAuthProvider{}

	tests := []struct {
		name  string
		token string
	}{
		{"empty token", ""},
		{"arbitrary token", "any-token"},
		{"jwt-looking token", "eyJhbGciOiJSUzI1NiIs"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := provider.Validate(context.Background(), tt.token)
			if err != nil {
				t.Fatalf("Validate(%q) returned error: %v", tt.token, err)
			}
			if info.UserID != "local-user" {
				t.Errorf("UserID = %q, want %q", info.UserID, "local-user")
			}
			if !info.HasRole("admin") {
				t.Error("local user should have the admin role")
			}
		})
	}
}

func TestAuthInfo_HasRole(t *testing.T) {
	info := &AuthInfo{
		UserID: "user-123",
		Roles:  []string{"planner", "viewer"},
	}

	if !info.HasRole("planner") {
		t.Error("HasRole(planner) should be true")
	}
	if !info.HasRole("viewer") {
		t.Error("HasRole(viewer) should be true")
	}
	if info.HasRole("admin") {
		t.Error("HasRole(admin) should be false")
	}
	if info.HasRole("") {
		t.Error("HasRole(\"\") should be false")
	}
}

func TestAuthInfo_HasRole_NoRoles(t *testing.T) {
	info := &AuthInfo{UserID: "user-123"}

	if info.HasRole("admin") {
		t.Error("HasRole should be false when Roles is nil")
	}
}

// ============================================================================
// AuthzProvider Tests
// ============================================================================

func TestNopAuthzProvider_Authorize(t *testing.T) {
	provider := &NopAuthzProvider{}

	// Even destructive actions on arbitrary resources are allowed
	err := provider.Authorize(context.Background(), AuthzRequest{
		User:         &AuthInfo{UserID: "anyone"},
		Action:       "delete",
		ResourceType: "trip",
		ResourceID:   "trip-456",
	})
	if err != nil {
		t.Errorf("NopAuthzProvider should allow all actions, got %v", err)
	}
}

func TestMockAuthzProvider_Denied(t *testing.T) {
	provider := &mockAuthzProvider{denied: true}

	err := provider.Authorize(context.Background(), AuthzRequest{
		User:   &AuthInfo{UserID: "user-123"},
		Action: "delete",
	})
	if !errors.Is(err, ErrUnauthorized) {
		t.Errorf("denied authorization should wrap ErrUnauthorized, got %v", err)
	}
}

// ============================================================================
// AuditLogger Tests
// ============================================================================

func TestNopAuditLogger(t *testing.T) {
	logger := &NopAuditLogger{}
	ctx := context.Background()

	err := logger.Log(ctx, AuditEvent{
		EventType: "trip.generate",
		UserID:    "local-user",
	})
	if err != nil {
		t.Errorf("NopAuditLogger.Log should not fail, got %v", err)
	}

	events, err := logger.Query(ctx, AuditFilter{})
	if err != nil {
		t.Errorf("NopAuditLogger.Query should not fail, got %v", err)
	}
	if len(events) != 0 {
		t.Errorf("NopAuditLogger should store no events, got %d", len(events))
	}

	if err := logger.Flush(ctx); err != nil {
		t.Errorf("NopAuditLogger.Flush should not fail, got %v", err)
	}
}

func TestAuditEvent_Fields(t *testing.T) {
	now := time.Now().UTC()
	event := AuditEvent{
		EventType:    "trip.generate",
		Timestamp:    now,
		UserID:       "user-123",
		Action:       "generate",
		ResourceType: "trip",
		ResourceID:   "trip-456",
		Outcome:      "success",
		Metadata: map[string]any{
			"city":      "Paris",
			"trip_type": "trek",
		},
	}

	if event.EventType != "trip.generate" {
		t.Errorf("EventType = %q, want %q", event.EventType, "trip.generate")
	}
	if event.Timestamp != now {
		t.Errorf("Timestamp = %v, want %v", event.Timestamp, now)
	}
	if event.Metadata["city"] != "Paris" {
		t.Errorf("Metadata[city] = %v, want %q", event.Metadata["city"], "Paris")
	}
}

func TestMockAuditLogger_RecordsEvents(t *testing.T) {
	logger := &mockAuditLogger{}
	ctx := context.Background()

	for _, eventType := range []string{"trip.generate", "trip.delete"} {
		err := logger.Log(ctx, AuditEvent{EventType: eventType, UserID: "user-123"})
		if err != nil {
			t.Fatalf("Log(%q) failed: %v", eventType, err)
		}
	}

	events, err := logger.Query(ctx, AuditFilter{})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].EventType != "trip.generate" {
		t.Errorf("events[0].EventType = %q, want %q", events[0].EventType, "trip.generate")
	}
}

// ============================================================================
// Metadata Tests
// ============================================================================

func TestMetadata_SetAndGet(t *testing.T) {
	meta := NewMetadata().
		Set("trip_id", "trip-123").
		Set("duration_ms", int64(8200))

	value, ok := meta.Get("trip_id")
	if !ok {
		t.Fatal("Get(trip_id) should find the key")
	}
	if value != "trip-123" {
		t.Errorf("Get(trip_id) = %v, want %q", value, "trip-123")
	}

	if _, ok := meta.Get("missing"); ok {
		t.Error("Get(missing) should return ok=false")
	}
}

func TestMetadata_TypedAccessors(t *testing.T) {
	now := time.Now().UTC()
	meta := NewMetadata().
		Set("city", "Paris").
		Set("days", 3).
		Set("duration_ms", int64(8200)).
		Set("total_km", 27.4).
		Set("mfa_verified", true).
		Set("created_at", now)

	if s, ok := meta.GetString("city"); !ok || s != "Paris" {
		t.Errorf("GetString(city) = %q, %v; want Paris, true", s, ok)
	}
	if i, ok := meta.GetInt("days"); !ok || i != 3 {
		t.Errorf("GetInt(days) = %d, %v; want 3, true", i, ok)
	}
	if i, ok := meta.GetInt64("duration_ms"); !ok || i != 8200 {
		t.Errorf("GetInt64(duration_ms) = %d, %v; want 8200, true", i, ok)
	}
	if f, ok := meta.GetFloat64("total_km"); !ok || f != 27.4 {
		t.Errorf("GetFloat64(total_km) = %f, %v; want 27.4, true", f, ok)
	}
	if b, ok := meta.GetBool("mfa_verified"); !ok || !b {
		t.Errorf("GetBool(mfa_verified) = %v, %v; want true, true", b, ok)
	}
	if ts, ok := meta.GetTime("created_at"); !ok || !ts.Equal(now) {
		t.Errorf("GetTime(created_at) = %v, %v; want %v, true", ts, ok, now)
	}
}

func TestMetadata_TypedAccessors_WrongType(t *testing.T) {
	meta := NewMetadata().Set("days", "three")

	// Key exists but holds the wrong type
	if _, ok := meta.GetInt("days"); ok {
		t.Error("GetInt should return false for a string value")
	}
	if s, ok := meta.GetString("days"); !ok || s != "three" {
		t.Errorf("GetString(days) = %q, %v; want three, true", s, ok)
	}
}

func TestMetadata_HasAndDelete(t *testing.T) {
	meta := NewMetadata().Set("error", nil)

	// Has reports presence even for nil values
	if !meta.Has("error") {
		t.Error("Has(error) should be true for a nil value")
	}

	meta.Delete("error")
	if meta.Has("error") {
		t.Error("Has(error) should be false after Delete")
	}

	// Deleting a missing key is safe
	meta.Delete("never-set")
}

func TestMetadata_Clone(t *testing.T) {
	original := NewMetadata().Set("city", "Paris")
	clone := original.Clone()

	clone.Set("city", "Lyon")

	if city, _ := original.GetString("city"); city != "Paris" {
		t.Errorf("original should be unchanged after mutating clone, got %q", city)
	}
	if city, _ := clone.GetString("city"); city != "Lyon" {
		t.Errorf("clone should hold the new value, got %q", city)
	}
}

func TestMetadata_Merge(t *testing.T) {
	base := NewMetadata().Set("env", "prod").Set("city", "Paris")
	extra := NewMetadata().Set("city", "Lyon").Set("version", "1.0")

	base.Merge(extra)

	if city, _ := base.GetString("city"); city != "Lyon" {
		t.Errorf("Merge should overwrite existing keys, got %q", city)
	}
	if v, _ := base.GetString("version"); v != "1.0" {
		t.Errorf("Merge should add new keys, got %q", v)
	}

	// Merging nil is a no-op
	base.Merge(nil)
	if base.Len() != 3 {
		t.Errorf("Len after nil merge = %d, want 3", base.Len())
	}
}

func TestMetadata_KeysAndLen(t *testing.T) {
	meta := NewMetadata()
	if meta.Len() != 0 {
		t.Errorf("empty Metadata Len = %d, want 0", meta.Len())
	}
	if len(meta.Keys()) != 0 {
		t.Errorf("empty Metadata Keys = %v, want none", meta.Keys())
	}

	meta.Set("a", 1).Set("b", 2)
	if meta.Len() != 2 {
		t.Errorf("Len = %d, want 2", meta.Len())
	}

	keys := meta.Keys()
	found := map[string]bool{}
	for _, k := range keys {
		found[k] = true
	}
	if !found["a"] || !found["b"] {
		t.Errorf("Keys = %v, want a and b", keys)
	}
}
