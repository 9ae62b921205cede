// Package storage gives the direct transfer engine uniform access to sync roots.
package storage

import (
	"context"
	"io"
	"iter"
	"time"

	"github.com/sdejongh/robinhood/pkg/models"
)

// Backend defines the interface for storage operations.
// Implementations include the local filesystem and S3.
type Backend interface {
	// List streams every entry below the root, paths relative to it
	List(ctx context.Context) iter.Seq2[models.RawEntry, error]

	// Read opens a file for reading
	Read(ctx context.Context, path string) (io.ReadCloser, error)

	// Write creates or overwrites a file with the given content and, when
	// modTime is not zero, preserves the modification time
	Write(ctx context.Context, path string, reader io.Reader, size int64, modTime time.Time) error

	// Delete removes a file or an empty directory. A missing path is not an error.
	Delete(ctx context.Context, path string, isDir bool) error

	// MkdirAll creates a directory and all necessary parents
	MkdirAll(ctx context.Context, path string) error

	// Close releases any resources held by the backend
	Close() error

	// String describes the root
	String() string
}
