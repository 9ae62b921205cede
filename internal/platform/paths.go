package platform

import (
	"path"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/mitchellh/go-homedir"
)

// RootKind tells which backend a root string addresses
type RootKind string

const (
	// RootLocal is a directory on a mounted filesystem
	RootLocal RootKind = "local"
	// RootRemote is an rclone remote, written "remote:path"
	RootRemote RootKind = "remote"
	// RootS3 is an S3 bucket and prefix, written "s3://bucket/prefix"
	RootS3 RootKind = "s3"
)

// Root is a parsed sync root
type Root struct {
	Raw  string
	Kind RootKind

	// Path is the absolute local path, or the path inside the remote
	Path string

	// Remote is the rclone remote name, without the trailing colon
	Remote string

	Bucket string
	Prefix string
}

// ParseRoot classifies a root string. Local paths are made absolute
// and "~" is expanded.
func ParseRoot(raw string) (Root, error) {
	if raw == "" {
		return Root{}, &PathError{Path: raw, Message: "path is empty"}
	}

	if rest, ok := strings.CutPrefix(raw, "s3://"); ok {
		bucket, prefix, _ := strings.Cut(rest, "/")
		if bucket == "" {
			return Root{}, &PathError{Path: raw, Message: "bucket name is empty"}
		}
		return Root{Raw: raw, Kind: RootS3, Bucket: bucket, Prefix: strings.Trim(prefix, "/")}, nil
	}

	if remote, p, ok := splitRemote(raw); ok {
		return Root{Raw: raw, Kind: RootRemote, Remote: remote, Path: p}, nil
	}

	expanded, err := homedir.Expand(raw)
	if err != nil {
		return Root{}, &PathError{Path: raw, Message: err.Error()}
	}
	abs, err := filepath.Abs(NormalizePath(expanded))
	if err != nil {
		return Root{}, &PathError{Path: raw, Message: err.Error()}
	}
	return Root{Raw: raw, Kind: RootLocal, Path: abs}, nil
}

// splitRemote recognises rclone's "name:path" syntax. A colon after a
// path separator, a Windows drive letter or a UNC path is not a remote.
func splitRemote(raw string) (string, string, bool) {
	i := strings.IndexByte(raw, ':')
	if i <= 0 {
		return "", "", false
	}
	if strings.ContainsAny(raw[:i], `/\`) || IsUNCPath(raw) {
		return "", "", false
	}
	if i == 1 && runtime.GOOS == "windows" {
		return "", "", false
	}
	return raw[:i], raw[i+1:], true
}

// Join appends a slash-separated relative path to the root, in the
// syntax the root's backend expects
func (r Root) Join(rel string) string {
	rel = strings.Trim(rel, "/")
	switch r.Kind {
	case RootS3:
		return "s3://" + r.Bucket + "/" + path.Join(r.Prefix, rel)
	case RootRemote:
		if rel == "" {
			return r.Remote + ":" + r.Path
		}
		if r.Path == "" {
			return r.Remote + ":" + rel
		}
		return r.Remote + ":" + path.Join(r.Path, rel)
	default:
		if rel == "" {
			return r.Path
		}
		return filepath.Join(r.Path, filepath.FromSlash(rel))
	}
}

// String returns the root in its canonical form
func (r Root) String() string {
	return r.Join("")
}

// Overlaps reports whether one local root contains the other
func (r Root) Overlaps(other Root) bool {
	if r.Kind != RootLocal || other.Kind != RootLocal {
		return r.String() == other.String()
	}
	sep := string(filepath.Separator)
	return r.Path == other.Path ||
		strings.HasPrefix(other.Path, r.Path+sep) ||
		strings.HasPrefix(r.Path, other.Path+sep)
}

// NormalizePath normalizes a path for the current platform
func NormalizePath(p string) string {
	normalized := filepath.Clean(p)

	// On Windows, ensure UNC paths are preserved
	if runtime.GOOS == "windows" {
		if strings.HasPrefix(p, "\\\\") && !strings.HasPrefix(normalized, "\\\\") {
			normalized = "\\\\" + normalized
		}
	}

	return normalized
}

// IsUNCPath checks if a path is a UNC path (Windows network share)
func IsUNCPath(p string) bool {
	if runtime.GOOS != "windows" {
		return false
	}
	return strings.HasPrefix(p, "\\\\") || strings.HasPrefix(p, "//")
}

// PathError represents a path validation error
type PathError struct {
	Path    string
	Message string
}

func (e *PathError) Error() string {
	return "invalid path '" + e.Path + "': " + e.Message
}
