package models

import (
	"fmt"
	"strings"
	"time"
)

// Kind is the type of a tree entry
type Kind string

const (
	// KindFile is a regular file
	KindFile Kind = "file"
	// KindDir is a directory
	KindDir Kind = "directory"
	// KindSymlink is a symbolic link, compared by its own metadata
	KindSymlink Kind = "symlink"
)

// Side identifies one of the two trees being reconciled
type Side string

const (
	// SideSource is the source tree
	SideSource Side = "source"
	// SideDestination is the destination tree
	SideDestination Side = "destination"
)

// Opposite returns the other side
func (s Side) Opposite() Side {
	if s == SideSource {
		return SideDestination
	}
	return SideSource
}

// RelPath is a path relative to a tree root, stored as segments.
// The root is the empty path.
type RelPath []string

// ParseRelPath normalises a raw listing path into segments.
// Backslashes are treated as separators, leading "/" and "./" are dropped,
// and "." segments are ignored. A ".." segment or a volume prefix is an
// escape from the root and returns an error.
func ParseRelPath(raw string) (RelPath, error) {
	s := strings.ReplaceAll(raw, "\\", "/")
	if len(s) >= 2 && s[1] == ':' && isLetter(s[0]) {
		return nil, fmt.Errorf("path %q carries a volume name", raw)
	}

	var segs RelPath
	for _, seg := range strings.Split(s, "/") {
		switch seg {
		case "", ".":
			continue
		case "..":
			return nil, fmt.Errorf("path %q escapes the root", raw)
		}
		segs = append(segs, seg)
	}
	return segs, nil
}

// MustRelPath parses a path and panics on error. Intended for tests and literals.
func MustRelPath(raw string) RelPath {
	p, err := ParseRelPath(raw)
	if err != nil {
		panic(err)
	}
	return p
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// String joins the segments with "/"
func (p RelPath) String() string {
	return strings.Join(p, "/")
}

// MarshalText encodes the path in its string form
func (p RelPath) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText parses a path written by MarshalText
func (p *RelPath) UnmarshalText(text []byte) error {
	parsed, err := ParseRelPath(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// IsRoot reports whether p is the tree root
func (p RelPath) IsRoot() bool {
	return len(p) == 0
}

// Depth is the number of segments
func (p RelPath) Depth() int {
	return len(p)
}

// Name returns the last segment
func (p RelPath) Name() string {
	if len(p) == 0 {
		return ""
	}
	return p[len(p)-1]
}

// Parent returns the containing directory path. The root's parent is the root.
func (p RelPath) Parent() RelPath {
	if len(p) == 0 {
		return p
	}
	return p[: len(p)-1 : len(p)-1]
}

// Child returns p extended by one segment
func (p RelPath) Child(name string) RelPath {
	out := make(RelPath, len(p), len(p)+1)
	copy(out, p)
	return append(out, name)
}

// HasAncestor reports whether a is a strict ancestor of p
func (p RelPath) HasAncestor(a RelPath) bool {
	if len(a) >= len(p) {
		return false
	}
	for i := range a {
		if a[i] != p[i] {
			return false
		}
	}
	return true
}

// Fold returns the lower-cased path used for case-insensitive matching
func (p RelPath) Fold() RelPath {
	out := make(RelPath, len(p))
	for i, s := range p {
		out[i] = strings.ToLower(s)
	}
	return out
}

// CompareRelPath orders paths segment by segment, so a directory sorts
// immediately before all of its descendants.
func CompareRelPath(a, b RelPath) int {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		if c := strings.Compare(a[i], b[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	}
	return 0
}

// Checksum is an optional content digest of the form "algorithm:digest"
type Checksum string

// NewChecksum builds a checksum from an algorithm name and a hex digest
func NewChecksum(algorithm, digest string) Checksum {
	if digest == "" {
		return ""
	}
	return Checksum(strings.ToLower(algorithm) + ":" + strings.ToLower(digest))
}

// Algorithm returns the algorithm part
func (c Checksum) Algorithm() string {
	algo, _, ok := strings.Cut(string(c), ":")
	if !ok {
		return ""
	}
	return algo
}

// Digest returns the digest part
func (c Checksum) Digest() string {
	_, digest, ok := strings.Cut(string(c), ":")
	if !ok {
		return string(c)
	}
	return digest
}

// Comparable reports whether both checksums are present and use the same algorithm
func (c Checksum) Comparable(other Checksum) bool {
	return c != "" && other != "" && c.Algorithm() == other.Algorithm()
}

// Entry is one node of a loaded tree. Entries are immutable once loaded.
type Entry struct {
	Path RelPath
	Kind Kind

	// Size in bytes, 0 for directories
	Size int64

	// ModTime is the last modification time, zero when the listing has none
	ModTime time.Time

	Checksum Checksum

	// Implicit marks directories synthesized for listings that omit parents
	Implicit bool
}

// IsDir reports whether the entry is a directory
func (e Entry) IsDir() bool {
	return e.Kind == KindDir
}

// HasModTime reports whether a modification time was listed
func (e Entry) HasModTime() bool {
	return !e.ModTime.IsZero()
}

// RawEntry is one record of an engine listing before normalisation
type RawEntry struct {
	Path      string
	Size      int64
	ModTime   time.Time
	IsDir     bool
	IsSymlink bool
	Checksum  Checksum
}
