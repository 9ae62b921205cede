package transfer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"

	"github.com/hashicorp/go-version"

	"github.com/sdejongh/robinhood/internal/platform"
	"github.com/sdejongh/robinhood/pkg/models"
	"github.com/sdejongh/robinhood/pkg/tree"
)

// MinRcloneVersion is the oldest rclone supporting every flag used here
const MinRcloneVersion = "1.58.0"

// RcloneOptions configures the rclone engine
type RcloneOptions struct {
	// Runner executes rclone, an ExecRunner for Binary when nil
	Runner Runner
	Binary string

	// Checksum is the hash type requested from lsjson, none when empty
	Checksum string

	// BandwidthLimit in bytes per second, 0 = unlimited
	BandwidthLimit int64

	// ExtraFlags are appended to every transfer command
	ExtraFlags []string
}

// Rclone drives the rclone command line tool
type Rclone struct {
	runner Runner
	opts   RcloneOptions
}

// NewRclone creates an rclone engine
func NewRclone(opts RcloneOptions) *Rclone {
	runner := opts.Runner
	if runner == nil {
		runner = NewExecRunner(opts.Binary)
	}
	return &Rclone{runner: runner, opts: opts}
}

// Name returns the engine name
func (r *Rclone) Name() string {
	return "rclone"
}

// CheckVersion fails when the installed rclone is older than MinRcloneVersion
func (r *Rclone) CheckVersion(ctx context.Context) (*version.Version, error) {
	var out bytes.Buffer
	if err := r.runner.Run(ctx, &out, "version"); err != nil {
		return nil, fmt.Errorf("failed to run rclone: %w", err)
	}

	v, err := parseRcloneVersion(out.String())
	if err != nil {
		return nil, err
	}
	if v.LessThan(version.Must(version.NewVersion(MinRcloneVersion))) {
		return v, fmt.Errorf("rclone %s is too old, %s or newer is required", v, MinRcloneVersion)
	}
	return v, nil
}

// parseRcloneVersion reads the first line of "rclone version", e.g. "rclone v1.66.0"
func parseRcloneVersion(out string) (*version.Version, error) {
	line, _, _ := strings.Cut(strings.TrimSpace(out), "\n")
	fields := strings.Fields(line)
	if len(fields) < 2 || fields[0] != "rclone" {
		return nil, fmt.Errorf("unexpected rclone version output %q", line)
	}
	v, err := version.NewVersion(strings.TrimPrefix(fields[1], "v"))
	if err != nil {
		return nil, fmt.Errorf("invalid rclone version %q: %w", fields[1], err)
	}
	return v, nil
}

// remotePath renders a root and relative path in rclone syntax. S3 roots
// use an on-the-fly remote with credentials from the environment.
func remotePath(root platform.Root, rel models.RelPath) string {
	if root.Kind == platform.RootS3 {
		return ":s3,env_auth=true:" + path.Join(root.Bucket, root.Prefix, rel.String())
	}
	return root.Join(rel.String())
}

func (r *Rclone) transferFlags() []string {
	var flags []string
	if r.opts.BandwidthLimit > 0 {
		flags = append(flags, "--bwlimit", strconv.FormatInt(r.opts.BandwidthLimit, 10)+"B")
	}
	return append(flags, r.opts.ExtraFlags...)
}

// List streams "rclone lsjson -R" output as it is produced
func (r *Rclone) List(ctx context.Context, root platform.Root) tree.Listing {
	args := []string{"lsjson", "-R", "--no-mimetype"}
	if r.opts.Checksum != "" {
		args = append(args, "--hash", "--hash-type", r.opts.Checksum)
	}
	args = append(args, remotePath(root, nil))

	return func(yield func(models.RawEntry, error) bool) {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		pr, pw := io.Pipe()
		done := make(chan error, 1)
		go func() {
			err := r.runner.Run(ctx, pw, args...)
			pw.CloseWithError(err)
			done <- err
		}()

		stopped := false
		decodeErr := decodeListing(pr, func(entry models.RawEntry) bool {
			if !yield(entry, nil) {
				stopped = true
				return false
			}
			return true
		})
		if stopped || decodeErr != nil {
			cancel()
		}
		pr.Close()
		runErr := <-done

		switch {
		case stopped:
		case runErr != nil && (decodeErr == nil || errors.Is(decodeErr, runErr)):
			yield(models.RawEntry{}, fmt.Errorf("failed to list %s: %w", root, runErr))
		case decodeErr != nil:
			yield(models.RawEntry{}, fmt.Errorf("failed to list %s: %w", root, decodeErr))
		}
	}
}

// Copy runs "rclone copyto" for files and "rclone mkdir" for directories.
// Progress is reported once the copy completes.
func (r *Rclone) Copy(ctx context.Context, req CopyRequest, progress ProgressFunc) error {
	dst := remotePath(req.To, req.Path)
	if req.IsDir {
		return r.runner.Run(ctx, io.Discard, "mkdir", dst)
	}

	args := append([]string{"copyto", remotePath(req.From, req.Path), dst}, r.transferFlags()...)
	if err := r.runner.Run(ctx, io.Discard, args...); err != nil {
		return err
	}
	if progress != nil && req.Size > 0 {
		progress(req.Size)
	}
	return nil
}

// Delete runs "rclone deletefile" for files and "rclone rmdir" for directories
func (r *Rclone) Delete(ctx context.Context, req DeleteRequest) error {
	target := remotePath(req.Root, req.Path)
	if req.IsDir {
		return r.runner.Run(ctx, io.Discard, "rmdir", target)
	}
	return r.runner.Run(ctx, io.Discard, "deletefile", target)
}
