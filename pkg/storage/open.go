package storage

import (
	"context"
	"fmt"

	"github.com/spf13/afero"

	"github.com/sdejongh/robinhood/internal/platform"
)

// OpenOptions selects backend settings shared by both roots
type OpenOptions struct {
	// Checksum is computed by the local backend while listing
	Checksum string

	// Fs overrides the local filesystem
	Fs afero.Fs

	S3 S3Options
}

// Open returns the backend serving root. rclone remotes have no built-in
// backend and need the rclone engine.
func Open(ctx context.Context, root platform.Root, opts OpenOptions) (Backend, error) {
	switch root.Kind {
	case platform.RootLocal:
		return NewLocal(root.Path, LocalOptions{Fs: opts.Fs, Checksum: opts.Checksum})
	case platform.RootS3:
		return NewS3(ctx, root.Bucket, root.Prefix, opts.S3)
	case platform.RootRemote:
		return nil, fmt.Errorf("remote %q requires the rclone engine", root.Remote)
	}
	return nil, fmt.Errorf("unsupported root kind %q", root.Kind)
}
