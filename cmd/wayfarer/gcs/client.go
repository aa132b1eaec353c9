// Copyright (C) 2025 Wayfarer AI (dev@wayfarer.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package gcs uploads exported trip files to a Google Cloud Storage
// bucket, for riders who keep a shared archive of their planned routes.
package gcs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

type Client struct {
	storageClient *storage.Client
	Project       string
	Bucket        string
}

func NewClient(ctx context.Context, project, bucket, saKeyPath string) (*Client, error) {
	if _, err := os.Stat(saKeyPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("service account key not found at path: %s. Please ensure you have the correct key and it is accessible", saKeyPath)
	}

	storageClient, err := storage.NewClient(ctx, option.WithCredentialsFile(saKeyPath))
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS storage client: %w", err)
	}

	return &Client{
		storageClient: storageClient,
		Project:       project,
		Bucket:        bucket,
	}, nil
}

// UploadFile copies one local file into the bucket under objectPath.
// The content type follows the file extension so GPX tracks open
// directly in mapping tools that read from the bucket.
func (c *Client) UploadFile(ctx context.Context, localPath, objectPath string) error {
	localFile, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open the local file: %s: %w", localPath, err)
	}
	defer localFile.Close()

	obj := c.storageClient.Bucket(c.Bucket).Object(objectPath)
	writer := obj.NewWriter(ctx)
	writer.ContentType = ContentTypeFor(localPath)
	writer.CacheControl = "no-cache, no-store, must-revalidate"

	if _, err := io.Copy(writer, localFile); err != nil {
		return fmt.Errorf("failed to copy local file %s to GCS object %s: %w", localPath, objectPath, err)
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close GCS writer for %s: %w", objectPath, err)
	}
	fmt.Printf("Successfully uploaded %s to gs://%s/%s\n", localPath, c.Bucket, objectPath)
	return nil
}

// UploadDir uploads every exported track in localDir under prefix.
// Only .gpx and .json files are considered; anything else in the
// directory is left alone.
func (c *Client) UploadDir(ctx context.Context, localDir, prefix string) error {
	return filepath.Walk(localDir, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !Uploadable(info.Name()) {
			return nil
		}
		return c.UploadFile(ctx, p, path.Join(prefix, info.Name()))
	})
}

// Uploadable reports whether name is one of the export formats the
// archive accepts.
func Uploadable(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".gpx", ".json":
		return true
	}
	return false
}

// ContentTypeFor maps an export file to its MIME type.
func ContentTypeFor(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".gpx":
		return "application/gpx+xml"
	case ".json":
		return "application/json"
	default:
		return "application/octet-stream"
	}
}
