// Copyright (C) 2025 Wayfarer AI (dev@wayfarer.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package gcs

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// ============================================================================
// NewClient Tests
// ============================================================================

func TestNewClient_NonExistentSAKeyPath(t *testing.T) {
	ctx := context.Background()

	_, err := NewClient(ctx, "test-project", "test-bucket", "/nonexistent/path/to/key.json")
	if err == nil {
		t.Fatal("NewClient with non-existent SA key should return error")
	}
	if !strings.Contains(err.Error(), "service account key not found") {
		t.Errorf("Error should mention SA key not found, got: %v", err)
	}
	if !strings.Contains(err.Error(), "/nonexistent/path/to/key.json") {
		t.Errorf("Error should contain the path, got: %v", err)
	}
}

func TestNewClient_EmptyPath(t *testing.T) {
	ctx := context.Background()

	_, err := NewClient(ctx, "test-project", "test-bucket", "")
	if err == nil {
		t.Fatal("NewClient with empty SA key path should return error")
	}
}

func TestNewClient_InvalidCredentialsFile(t *testing.T) {
	ctx := context.Background()

	tmpDir := t.TempDir()
	invalidKeyPath := filepath.Join(tmpDir, "invalid_key.json")
	err := os.WriteFile(invalidKeyPath, []byte("not valid json"), 0644)
	if err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}

	_, err = NewClient(ctx, "test-project", "test-bucket", invalidKeyPath)
	if err == nil {
		t.Fatal("NewClient with invalid credentials file should return error")
	}
	if !strings.Contains(err.Error(), "failed to create GCS storage client") {
		t.Errorf("Error should mention failed to create client, got: %v", err)
	}
}

// ============================================================================
// UploadFile Tests (error paths that don't require GCS connection)
// ============================================================================

func TestClient_UploadFile_NonExistentLocalFile(t *testing.T) {
	// The local file check happens before any GCS operation, so a nil
	// storage client never gets touched.
	client := &Client{
		storageClient: nil,
		Project:       "test-project",
		Bucket:        "test-bucket",
	}

	ctx := context.Background()
	err := client.UploadFile(ctx, "/nonexistent/track.gpx", "trips/track.gpx")
	if err == nil {
		t.Fatal("UploadFile with non-existent local file should return error")
	}
	if !strings.Contains(err.Error(), "failed to open the local file") {
		t.Errorf("Error should mention failed to open file, got: %v", err)
	}
}

func TestClient_UploadFile_EmptyPath(t *testing.T) {
	client := &Client{
		storageClient: nil,
		Project:       "test-project",
		Bucket:        "test-bucket",
	}

	ctx := context.Background()
	err := client.UploadFile(ctx, "", "trips/track.gpx")
	if err == nil {
		t.Fatal("UploadFile with empty local path should return error")
	}
}

// ============================================================================
// UploadDir Tests (error paths)
// ============================================================================

func TestClient_UploadDir_NonExistentDirectory(t *testing.T) {
	client := &Client{
		storageClient: nil,
		Project:       "test-project",
		Bucket:        "test-bucket",
	}

	ctx := context.Background()
	err := client.UploadDir(ctx, "/nonexistent/directory/path", "trips")
	if err == nil {
		t.Fatal("UploadDir with non-existent directory should return error")
	}
}

func TestClient_UploadDir_SkipsNonExportFiles(t *testing.T) {
	client := &Client{
		storageClient: nil,
		Project:       "test-project",
		Bucket:        "test-bucket",
	}

	// A directory holding only files the archive does not accept should
	// walk cleanly without ever touching the nil storage client.
	tmpDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(tmpDir, "notes.txt"), []byte("keep out"), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}
	if err := os.WriteFile(filepath.Join(tmpDir, "track.gpx.bak"), []byte("old"), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	ctx := context.Background()
	if err := client.UploadDir(ctx, tmpDir, "trips"); err != nil {
		t.Errorf("UploadDir over non-export files should be a no-op, got: %v", err)
	}
}

// ============================================================================
// Upload format helpers
// ============================================================================

func TestUploadable(t *testing.T) {
	cases := []struct {
		name string
		want bool
	}{
		{"annecy-trek-3d.gpx", true},
		{"annecy-trek-3d.GPX", true},
		{"trip.json", true},
		{"notes.txt", false},
		{"track.gpx.bak", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := Uploadable(tc.name); got != tc.want {
			t.Errorf("Uploadable(%q) = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestContentTypeFor(t *testing.T) {
	if got := ContentTypeFor("loop.gpx"); got != "application/gpx+xml" {
		t.Errorf("ContentTypeFor(loop.gpx) = %q", got)
	}
	if got := ContentTypeFor("trip.json"); got != "application/json" {
		t.Errorf("ContentTypeFor(trip.json) = %q", got)
	}
	if got := ContentTypeFor("readme"); got != "application/octet-stream" {
		t.Errorf("ContentTypeFor(readme) = %q", got)
	}
}

// ============================================================================
// Client Fields Tests
// ============================================================================

func TestClient_Fields(t *testing.T) {
	client := &Client{
		storageClient: nil,
		Project:       "my-project-123",
		Bucket:        "my-bucket-456",
	}

	if client.Project != "my-project-123" {
		t.Errorf("Project = %q, want %q", client.Project, "my-project-123")
	}
	if client.Bucket != "my-bucket-456" {
		t.Errorf("Bucket = %q, want %q", client.Bucket, "my-bucket-456")
	}
}

// ============================================================================
// Integration Tests (require real GCS credentials)
// ============================================================================

func TestClient_UploadFile_Integration(t *testing.T) {
	keyPath := os.Getenv("GCS_TEST_SA_KEY_PATH")
	projectID := os.Getenv("GCS_TEST_PROJECT_ID")
	bucketName := os.Getenv("GCS_TEST_BUCKET_NAME")

	if keyPath == "" || projectID == "" || bucketName == "" {
		t.Skip("Skipping integration test: GCS_TEST_SA_KEY_PATH, GCS_TEST_PROJECT_ID, and GCS_TEST_BUCKET_NAME not set")
	}

	ctx := context.Background()
	client, err := NewClient(ctx, projectID, bucketName, keyPath)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	tmpDir := t.TempDir()
	testFile := filepath.Join(tmpDir, "test_upload.gpx")
	err = os.WriteFile(testFile, []byte(`<?xml version="1.0"?><gpx version="1.1"></gpx>`), 0644)
	if err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	err = client.UploadFile(ctx, testFile, "test/integration_test_upload.gpx")
	if err != nil {
		t.Errorf("UploadFile failed: %v", err)
	}
}
