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
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"os"
	"path"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/WayfarerAI/WayfarerCore/cmd/wayfarer/config"
	"github.com/WayfarerAI/WayfarerCore/cmd/wayfarer/gcs"
	"github.com/WayfarerAI/WayfarerCore/pkg/ux"
)

var (
	exportOutput string
	exportAll    bool
	exportUpload bool
	exportBucket string
)

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "",
		"Output file (single trip) or directory (--all); defaults to the working directory")
	exportCmd.Flags().BoolVar(&exportAll, "all", false,
		"Export every saved trip")
	exportCmd.Flags().BoolVar(&exportUpload, "upload", false,
		"Upload exports to the configured GCS bucket (cloud.bucket)")
	exportCmd.Flags().StringVar(&exportBucket, "bucket", "",
		"Upload exports to this GCS bucket (overrides cloud.bucket)")
}

func runExportCommand(cmd *cobra.Command, args []string) {
	bucket, err := resolveExportBucket()
	if err != nil {
		ux.Error(err.Error())
		os.Exit(1)
	}

	if exportAll {
		runExportAll(bucket)
		return
	}
	if len(args) == 0 {
		ux.Error("Pass a trip ID or use --all. List IDs with: wayfarer trips list")
		os.Exit(1)
	}

	id := args[0]
	filename, data, err := downloadGPX(id)
	if err != nil {
		ux.Error(fmt.Sprintf("Failed to export trip %s: %v", id, err))
		os.Exit(1)
	}

	dest := exportDestination(filename)
	if err := os.WriteFile(dest, data, 0644); err != nil {
		ux.Error(fmt.Sprintf("Failed to write %s: %v", dest, err))
		os.Exit(1)
	}
	ux.Success(fmt.Sprintf("Wrote %s (%d bytes)", dest, len(data)))

	if bucket != "" {
		uploadSingle(bucket, dest)
	}
}

// resolveExportBucket decides whether (and where) to upload. --bucket
// wins; --upload falls back to cloud.bucket from the config file.
func resolveExportBucket() (string, error) {
	if exportBucket != "" {
		return exportBucket, nil
	}
	if exportUpload {
		bucket := config.Snapshot().Cloud.Bucket
		if bucket == "" {
			configPath, _ := config.Path()
			return "", fmt.Errorf("no bucket configured: set cloud.bucket in %s or pass --bucket", configPath)
		}
		return bucket, nil
	}
	return "", nil
}

// exportDestination maps --output onto a concrete file path for a
// single-trip export. An existing directory gets the server-suggested
// filename appended; anything else is taken as the file path itself.
func exportDestination(filename string) string {
	if exportOutput == "" {
		return filename
	}
	if info, err := os.Stat(exportOutput); err == nil && info.IsDir() {
		return filepath.Join(exportOutput, filename)
	}
	return exportOutput
}

func runExportAll(bucket string) {
	outDir := exportOutput
	if outDir == "" {
		outDir = "."
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		ux.Error(fmt.Sprintf("Failed to create the output directory %s: %v", outDir, err))
		os.Exit(1)
	}

	body, err := apiGet(fmt.Sprintf("%s/v1/trips?limit=%d", getPlannerBaseURL(), 500))
	if err != nil {
		ux.Error(fmt.Sprintf("Failed to list trips: %v", err))
		os.Exit(1)
	}
	var listing tripListResponse
	if err := json.Unmarshal(body, &listing); err != nil {
		ux.Error(fmt.Sprintf("Failed to decode the trip listing: %v", err))
		os.Exit(1)
	}
	if listing.Count == 0 {
		ux.Info("No saved trips to export.")
		return
	}

	exported := 0
	for _, t := range listing.Trips {
		filename, data, err := downloadGPX(t.ID)
		if err != nil {
			ux.Warning(fmt.Sprintf("Skipping %s (%s): %v", t.City, t.ID, err))
			continue
		}
		dest := filepath.Join(outDir, filename)
		if err := os.WriteFile(dest, data, 0644); err != nil {
			ux.Warning(fmt.Sprintf("Skipping %s: %v", t.ID, err))
			continue
		}
		ux.StageStatus(filename, ux.IconSuccess, fmt.Sprintf("%.1f km", t.TotalDistanceKm))
		exported++
	}
	if exported == 0 {
		ux.Error("No trips could be exported.")
		os.Exit(1)
	}
	ux.Success(fmt.Sprintf("Exported %d trip(s) to %s", exported, outDir))

	if bucket != "" {
		uploadDirectory(bucket, outDir)
	}
}

// downloadGPX fetches one trip's GPX document. The filename comes from
// the planner's Content-Disposition header so exports keep the
// city-type-days naming the server chose.
func downloadGPX(id string) (string, []byte, error) {
	url := fmt.Sprintf("%s/v1/trips/%s/gpx", getPlannerBaseURL(), id)
	resp, err := adminClient().Get(url)
	if err != nil {
		return "", nil, fmt.Errorf("failed to reach the planner at %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", nil, fmt.Errorf("failed to read the planner response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", nil, apiError(resp.StatusCode, body)
	}

	fallback := fmt.Sprintf("trip-%s.gpx", id)
	return filenameFromDisposition(resp.Header.Get("Content-Disposition"), fallback), body, nil
}

// filenameFromDisposition extracts the filename parameter from a
// Content-Disposition header. filepath.Base strips any path components
// a misbehaving server might smuggle in.
func filenameFromDisposition(header, fallback string) string {
	if header == "" {
		return fallback
	}
	_, params, err := mime.ParseMediaType(header)
	if err != nil {
		return fallback
	}
	if name := params["filename"]; name != "" {
		return filepath.Base(name)
	}
	return fallback
}

func newGCSClient(ctx context.Context, bucket string) (*gcs.Client, error) {
	cloud := config.Snapshot().Cloud
	if cloud.CredentialsFile == "" {
		configPath, _ := config.Path()
		return nil, fmt.Errorf("no service account key configured: set cloud.credentials_file in %s", configPath)
	}
	return gcs.NewClient(ctx, cloud.Project, bucket, cloud.CredentialsFile)
}

func uploadSingle(bucket, localPath string) {
	ctx := context.Background()
	client, err := newGCSClient(ctx, bucket)
	if err != nil {
		ux.Error(fmt.Sprintf("Upload skipped: %v", err))
		os.Exit(1)
	}

	objectPath := path.Join(config.Snapshot().Cloud.Prefix, filepath.Base(localPath))
	err = ux.WithSpinner(fmt.Sprintf("Uploading to gs://%s/%s...", bucket, objectPath), func() error {
		return client.UploadFile(ctx, localPath, objectPath)
	})
	if err != nil {
		ux.Error(fmt.Sprintf("Upload failed: %v", err))
		os.Exit(1)
	}
	ux.Success(fmt.Sprintf("Uploaded to gs://%s/%s", bucket, objectPath))
}

func uploadDirectory(bucket, localDir string) {
	ctx := context.Background()
	client, err := newGCSClient(ctx, bucket)
	if err != nil {
		ux.Error(fmt.Sprintf("Upload skipped: %v", err))
		os.Exit(1)
	}

	prefix := config.Snapshot().Cloud.Prefix
	err = ux.WithSpinner(fmt.Sprintf("Uploading %s to gs://%s/%s...", localDir, bucket, prefix), func() error {
		return client.UploadDir(ctx, localDir, prefix)
	})
	if err != nil {
		ux.Error(fmt.Sprintf("Upload failed: %v", err))
		os.Exit(1)
	}
	ux.Success(fmt.Sprintf("Uploaded exports to gs://%s/%s", bucket, prefix))
}
