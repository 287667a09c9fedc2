// Package storage archives raw statements on the local filesystem.
package storage

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"
)

// FileInfo contains metadata about a stored file
type FileInfo struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type"`
	SHA256      string    `json:"sha256"`
	Path        string    `json:"path"` // relative to the namespace directory
	CreatedAt   time.Time `json:"created_at"`
}

// Storage defines the interface for file storage operations
type Storage interface {
	// Upload stores a file under namespace and returns its metadata
	Upload(ctx context.Context, namespace string, filename string, contentType string, r io.Reader) (*FileInfo, error)

	// Download retrieves a file by its ID
	Download(ctx context.Context, namespace string, fileID uuid.UUID) (io.ReadCloser, *FileInfo, error)

	// Delete removes a file by its ID
	Delete(ctx context.Context, namespace string, fileID uuid.UUID) error

	// List returns all files in a namespace
	List(ctx context.Context, namespace string) ([]*FileInfo, error)

	// GetInfo returns metadata for a file without downloading
	GetInfo(ctx context.Context, namespace string, fileID uuid.UUID) (*FileInfo, error)
}

// Config holds storage configuration
type Config struct {
	Enabled   bool
	LocalPath string
}

// New returns the archive described by cfg, or nil when archiving is off.
func New(cfg Config) (Storage, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	return NewLocalStorage(cfg.LocalPath)
}

// ErrNotFound is returned when a file ID has no metadata in the namespace.
var ErrNotFound = errors.New("file not found")

// ErrInvalidNamespace rejects namespaces that would escape the base path.
var ErrInvalidNamespace = errors.New("invalid storage namespace")
