// Package filter decides which tree entries take part in a comparison.
package filter

import (
	"fmt"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/sdejongh/robinhood/pkg/models"
)

// Options configures a filter Set
type Options struct {
	// Exclude patterns. Supported forms:
	//   - basename globs: *.tmp, *.log
	//   - directory patterns: .git/, node_modules/
	//   - path globs: build/*, **/test/*
	Exclude []string

	// Include patterns restrict files to those matching at least one pattern.
	// Directories are never dropped by include patterns.
	Include []string

	// ExcludeHidden drops any entry with a segment starting with "."
	ExcludeHidden bool

	// CaseInsensitive matches patterns without regard to case
	CaseInsensitive bool
}

type pattern struct {
	glob    string
	dirOnly bool
	// anchored patterns contain a "/" and match the full relative path
	anchored bool
}

// Set is a compiled, immutable filter. The zero value and a nil *Set
// exclude nothing.
type Set struct {
	excludes        []pattern
	includes        []pattern
	excludeHidden   bool
	caseInsensitive bool
}

// New compiles the options into a Set
func New(opts Options) (*Set, error) {
	s := &Set{
		excludeHidden:   opts.ExcludeHidden,
		caseInsensitive: opts.CaseInsensitive,
	}

	var err error
	if s.excludes, err = s.compile(opts.Exclude); err != nil {
		return nil, err
	}
	if s.includes, err = s.compile(opts.Include); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Set) compile(raw []string) ([]pattern, error) {
	var out []pattern
	for _, p := range raw {
		p = strings.TrimSpace(strings.ReplaceAll(p, "\\", "/"))
		if p == "" {
			continue
		}
		if s.caseInsensitive {
			p = strings.ToLower(p)
		}

		cp := pattern{}
		if strings.HasSuffix(p, "/") {
			cp.dirOnly = true
			p = strings.TrimSuffix(p, "/")
		}
		p = strings.TrimPrefix(p, "/")
		cp.anchored = strings.Contains(p, "/")
		cp.glob = p

		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid filter pattern %q", p)
		}
		out = append(out, cp)
	}
	return out, nil
}

// Empty reports whether the set excludes nothing
func (s *Set) Empty() bool {
	return s == nil || (len(s.excludes) == 0 && len(s.includes) == 0 && !s.excludeHidden)
}

// Excluded reports whether the entry at p should be left out of the
// comparison. Callers exclude the whole subtree of an excluded directory.
func (s *Set) Excluded(p models.RelPath, isDir bool) bool {
	if s.Empty() || p.IsRoot() {
		return false
	}

	if s.excludeHidden && IsHidden(p) {
		return true
	}

	rel := p.String()
	if s.caseInsensitive {
		rel = strings.ToLower(rel)
	}

	for _, pat := range s.excludes {
		if pat.match(rel, isDir) {
			return true
		}
	}

	if len(s.includes) > 0 && !isDir {
		for _, pat := range s.includes {
			if pat.match(rel, false) {
				return false
			}
		}
		return true
	}

	return false
}

func (p pattern) match(rel string, isDir bool) bool {
	if p.dirOnly && !isDir {
		return false
	}
	target := rel
	if !p.anchored {
		target = path.Base(rel)
	}
	matched, _ := doublestar.Match(p.glob, target)
	return matched
}

// IsHidden reports whether any segment of p is a dot-file name
func IsHidden(p models.RelPath) bool {
	for _, seg := range p {
		if strings.HasPrefix(seg, ".") {
			return true
		}
	}
	return false
}
