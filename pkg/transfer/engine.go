// Package transfer defines the engine that lists, copies and deletes
// entries on sync roots, with an rclone-backed and a built-in implementation.
package transfer

import (
	"context"
	"time"

	"github.com/sdejongh/robinhood/internal/platform"
	"github.com/sdejongh/robinhood/pkg/models"
	"github.com/sdejongh/robinhood/pkg/tree"
)

// ProgressFunc receives the number of bytes copied so far for one request
type ProgressFunc func(bytes int64)

// CopyRequest copies Path from one root to the same path on another
type CopyRequest struct {
	From  platform.Root
	To    platform.Root
	Path  models.RelPath
	IsDir bool

	// Size is -1 when unknown
	Size    int64
	ModTime time.Time
}

// DeleteRequest removes Path from Root. Directories are empty by the time
// they are deleted.
type DeleteRequest struct {
	Root  platform.Root
	Path  models.RelPath
	IsDir bool
}

// Engine moves bytes and entries between roots
type Engine interface {
	// List returns a lazy listing of root. Each range over it queries the root again.
	List(ctx context.Context, root platform.Root) tree.Listing

	// Copy creates or overwrites the target. A directory copy only creates it.
	Copy(ctx context.Context, req CopyRequest, progress ProgressFunc) error

	// Delete removes the target
	Delete(ctx context.Context, req DeleteRequest) error

	// Name identifies the engine in logs and reports
	Name() string
}
