// Package storage abstracts where uploads, cached chapter texts and book
// manifests live. Finished MP3s are written straight to the local output
// directory; everything else goes through an Adapter so deployments can
// point the cache at S3.
package storage

import (
	"context"
	"io"
)

// Adapter defines the interface for storage backends
type Adapter interface {
	// Put stores data at the given path
	Put(ctx context.Context, path string, data io.Reader) error

	// Get retrieves data from the given path
	Get(ctx context.Context, path string) (io.ReadCloser, error)

	// Delete removes data at the given path
	Delete(ctx context.Context, path string) error

	// Exists checks if data exists at the given path
	Exists(ctx context.Context, path string) (bool, error)

	// Stat returns metadata for the given path. The idle cleaner uses
	// LastModified to age out stale uploads.
	Stat(ctx context.Context, path string) (Metadata, error)

	// List returns paths matching the given prefix
	List(ctx context.Context, prefix string) ([]string, error)

	// Close cleans up any resources
	Close() error
}

// Metadata represents file metadata
type Metadata struct {
	Path         string
	Size         int64
	LastModified int64 // unix seconds
	ContentType  string
}
