// Copyright (C) 2025 Wayfarer AI (dev@wayfarer.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package e2e

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const stubGPX = `<?xml version="1.0" encoding="UTF-8"?>
<gpx version="1.1" creator="wayfarer-planner"><trk><name>Day 1</name></trk></gpx>`

// TestCLI_ExportWritesGPX downloads a trip's GPX from a stub planner
// and checks the file lands under --output with the server's filename.
func TestCLI_ExportWritesGPX(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/trips/e2e-trip-1/gpx" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/gpx+xml")
		w.Header().Set("Content-Disposition", `attachment; filename="annecy-trek-3d.gpx"`)
		w.Write([]byte(stubGPX))
	}))
	defer srv.Close()

	outDir := t.TempDir()
	out, err := runCLI(t, srv.URL, "export", "e2e-trip-1", "-o", outDir)
	if err != nil {
		t.Fatalf("export failed: %v\nOutput: %s", err, out)
	}

	exported := filepath.Join(outDir, "annecy-trek-3d.gpx")
	data, err := os.ReadFile(exported)
	if err != nil {
		t.Fatalf("expected %s to exist: %v\nOutput: %s", exported, err, out)
	}
	if string(data) != stubGPX {
		t.Errorf("exported GPX does not match the planner response:\n%s", data)
	}
}

// TestCLI_ExportMissingTrip surfaces the planner's not-found error.
func TestCLI_ExportMissingTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"trip not found","code":"NOT_FOUND"}`))
	}))
	defer srv.Close()

	out, err := runCLI(t, srv.URL, "export", "nope")
	if err == nil {
		t.Fatalf("expected a non-zero exit for a missing trip.\nOutput: %s", out)
	}
	if !strings.Contains(out, "trip not found") {
		t.Errorf("expected the planner error to surface, got:\n%s", out)
	}
}
