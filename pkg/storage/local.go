package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"github.com/sdejongh/robinhood/pkg/models"
)

var errStopWalk = errors.New("stop walk")

// LocalOptions configures a Local backend
type LocalOptions struct {
	// Fs is the filesystem to use, the OS filesystem when nil
	Fs afero.Fs

	// Checksum selects the digest computed while listing, none when empty
	Checksum string
}

// Local is a filesystem-based storage backend
type Local struct {
	fs       afero.Fs
	rootPath string
	checksum string
}

// NewLocal creates a new local filesystem backend rooted at rootPath,
// which must be an existing directory
func NewLocal(rootPath string, opts LocalOptions) (*Local, error) {
	if err := ValidateChecksum(opts.Checksum); err != nil {
		return nil, err
	}

	fs := opts.Fs
	if fs == nil {
		fs = afero.NewOsFs()
		abs, err := filepath.Abs(rootPath)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve path: %w", err)
		}
		rootPath = abs
	}

	info, err := fs.Stat(rootPath)
	if err != nil {
		return nil, fmt.Errorf("failed to access path: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", rootPath)
	}

	return &Local{fs: fs, rootPath: rootPath, checksum: opts.Checksum}, nil
}

func (l *Local) full(path string) string {
	return filepath.Join(l.rootPath, filepath.FromSlash(path))
}

// List walks the root lazily; stopping the iteration stops the walk
func (l *Local) List(ctx context.Context) iter.Seq2[models.RawEntry, error] {
	return func(yield func(models.RawEntry, error) bool) {
		err := afero.Walk(l.fs, l.rootPath, func(p string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if err := ctx.Err(); err != nil {
				return err
			}

			rel, err := filepath.Rel(l.rootPath, p)
			if err != nil {
				return err
			}
			if rel == "." {
				return nil
			}

			// A link is listed as what it resolves to, which is what a copy
			// transfers. Linked directories are not descended into.
			if info.Mode()&os.ModeSymlink != 0 {
				if target, err := l.fs.Stat(p); err == nil {
					info = target
				}
			}

			entry := models.RawEntry{
				Path:      filepath.ToSlash(rel),
				Size:      info.Size(),
				ModTime:   info.ModTime(),
				IsDir:     info.IsDir(),
				IsSymlink: info.Mode()&os.ModeSymlink != 0,
			}
			if entry.IsDir {
				entry.Size = 0
			}

			if l.checksum != ChecksumNone && info.Mode().IsRegular() {
				sum, err := l.sum(p)
				if err != nil {
					return err
				}
				entry.Checksum = sum
			}

			if !yield(entry, nil) {
				return errStopWalk
			}
			return nil
		})

		if err != nil && !errors.Is(err, errStopWalk) {
			yield(models.RawEntry{}, fmt.Errorf("failed to list files: %w", err))
		}
	}
}

func (l *Local) sum(path string) (models.Checksum, error) {
	f, err := l.fs.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()
	return Sum(l.checksum, f)
}

// Read opens a file for reading
func (l *Local) Read(ctx context.Context, path string) (io.ReadCloser, error) {
	file, err := l.fs.Open(l.full(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return file, nil
}

// Write creates or overwrites a file
func (l *Local) Write(ctx context.Context, path string, reader io.Reader, size int64, modTime time.Time) error {
	fullPath := l.full(path)

	if err := l.fs.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := l.fs.Create(fullPath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	written, err := io.Copy(file, reader)
	closeErr := file.Close()
	if err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	if closeErr != nil {
		return fmt.Errorf("failed to close file: %w", closeErr)
	}

	if size >= 0 && written != size {
		return fmt.Errorf("incomplete write: expected %d bytes, wrote %d", size, written)
	}

	if !modTime.IsZero() {
		if err := l.fs.Chtimes(fullPath, modTime, modTime); err != nil {
			return fmt.Errorf("failed to set modification time: %w", err)
		}
	}
	return nil
}

// Delete removes a file or an empty directory
func (l *Local) Delete(ctx context.Context, path string, isDir bool) error {
	err := l.fs.Remove(l.full(path))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete: %w", err)
	}
	return nil
}

// MkdirAll creates a directory and all necessary parents
func (l *Local) MkdirAll(ctx context.Context, path string) error {
	if err := l.fs.MkdirAll(l.full(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	return nil
}

// Close releases resources (no-op for local filesystem)
func (l *Local) Close() error {
	return nil
}

func (l *Local) String() string {
	return l.rootPath
}
