package transfer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sdejongh/robinhood/internal/platform"
	"github.com/sdejongh/robinhood/pkg/models"
	"github.com/sdejongh/robinhood/pkg/ratelimit"
	"github.com/sdejongh/robinhood/pkg/storage"
	"github.com/sdejongh/robinhood/pkg/tree"
)

// DirectOptions configures the built-in engine
type DirectOptions struct {
	Storage storage.OpenOptions

	// BandwidthLimit in bytes per second shared by all copies, 0 = unlimited
	BandwidthLimit int64
}

// Direct streams files between storage backends without an external tool
type Direct struct {
	opts    DirectOptions
	limiter *ratelimit.Limiter

	mu       sync.Mutex
	backends map[string]storage.Backend
}

// NewDirect creates the built-in engine. Backends are opened on first use.
func NewDirect(opts DirectOptions) *Direct {
	return &Direct{
		opts:     opts,
		limiter:  ratelimit.NewLimiter(opts.BandwidthLimit),
		backends: make(map[string]storage.Backend),
	}
}

// Name returns the engine name
func (d *Direct) Name() string {
	return "direct"
}

func (d *Direct) backend(ctx context.Context, root platform.Root) (storage.Backend, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	key := root.String()
	if b, ok := d.backends[key]; ok {
		return b, nil
	}
	b, err := storage.Open(ctx, root, d.opts.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", root, err)
	}
	d.backends[key] = b
	return b, nil
}

// List streams the backend listing of root
func (d *Direct) List(ctx context.Context, root platform.Root) tree.Listing {
	return func(yield func(models.RawEntry, error) bool) {
		b, err := d.backend(ctx, root)
		if err != nil {
			yield(models.RawEntry{}, err)
			return
		}
		for entry, err := range b.List(ctx) {
			if !yield(entry, err) {
				return
			}
		}
	}
}

// Copy streams a file from req.From to req.To, preserving its modification time
func (d *Direct) Copy(ctx context.Context, req CopyRequest, progress ProgressFunc) error {
	to, err := d.backend(ctx, req.To)
	if err != nil {
		return err
	}
	if req.IsDir {
		return to.MkdirAll(ctx, req.Path.String())
	}

	from, err := d.backend(ctx, req.From)
	if err != nil {
		return err
	}

	reader, err := from.Read(ctx, req.Path.String())
	if err != nil {
		return fmt.Errorf("failed to open source: %w", err)
	}
	defer reader.Close()

	src := ratelimit.NewReader(ctx, reader, d.limiter)
	src = newProgressReader(src, progress)

	if err := to.Write(ctx, req.Path.String(), src, req.Size, req.ModTime); err != nil {
		return fmt.Errorf("failed to write destination: %w", err)
	}
	return nil
}

// Delete removes a file or an empty directory
func (d *Direct) Delete(ctx context.Context, req DeleteRequest) error {
	b, err := d.backend(ctx, req.Root)
	if err != nil {
		return err
	}
	return b.Delete(ctx, req.Path.String(), req.IsDir)
}

// Close releases every opened backend
func (d *Direct) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var errs []error
	for key, b := range d.backends {
		if err := b.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(d.backends, key)
	}
	return errors.Join(errs...)
}
