// Package compare matches two loaded trees and classifies every path.
package compare

import (
	"fmt"
	"slices"
	"time"

	"github.com/sdejongh/robinhood/pkg/filter"
	"github.com/sdejongh/robinhood/pkg/models"
	"github.com/sdejongh/robinhood/pkg/tree"
)

// DefaultModifyWindow is the modification time tolerance of the default configuration
const DefaultModifyWindow = time.Second

// Options configures a diff
type Options struct {
	// Filter drops excluded paths from both sides before matching
	Filter *filter.Set

	// CaseInsensitive matches paths after case folding
	CaseInsensitive bool

	// ModifyWindow is the modification time tolerance, zero for exact matching
	ModifyWindow time.Duration

	// IgnoreChecksum compares by size and modification time only
	IgnoreChecksum bool

	// Baseline, when set, turns singletons that existed on both sides at the
	// previous run into deletions
	Baseline *Baseline

	// Comparator overrides the default metadata comparator
	Comparator Comparator
}

type keyed struct {
	key   models.RelPath
	entry models.Entry
}

// Diff matches source and destination by relative path and returns the
// classified result. Both sides are sorted by key and merged in one pass.
func Diff(source, dest *tree.Tree, opts Options) (*DiffTree, error) {
	cmp := opts.Comparator
	if cmp == nil {
		cmp = NewMetadataComparator(opts.ModifyWindow, !opts.IgnoreChecksum)
	}

	src, err := prepare(source, opts)
	if err != nil {
		return nil, err
	}
	dst, err := prepare(dest, opts)
	if err != nil {
		return nil, err
	}

	var baseline map[string]bool
	if opts.Baseline != nil {
		baseline = opts.Baseline.keySet(opts.CaseInsensitive)
	}

	nodes := make([]models.DiffNode, 0, max(len(src), len(dst)))
	keys := make([]models.RelPath, 0, cap(nodes))
	i, j := 0, 0
	for i < len(src) || j < len(dst) {
		var c int
		switch {
		case i == len(src):
			c = 1
		case j == len(dst):
			c = -1
		default:
			c = models.CompareRelPath(src[i].key, dst[j].key)
		}

		switch {
		case c < 0:
			s := src[i].entry
			status := models.StatusNewInSource
			if baseline[src[i].key.String()] {
				status = models.StatusDeletedInDestination
			}
			nodes = append(nodes, models.DiffNode{Path: s.Path, Status: status, Source: &s})
			keys = append(keys, src[i].key)
			i++
		case c > 0:
			d := dst[j].entry
			status := models.StatusNewInDestination
			if baseline[dst[j].key.String()] {
				status = models.StatusDeletedInSource
			}
			nodes = append(nodes, models.DiffNode{Path: d.Path, Status: status, Dest: &d})
			keys = append(keys, dst[j].key)
			j++
		default:
			s, d := src[i].entry, dst[j].entry
			status, reason := classify(s, d, cmp)
			nodes = append(nodes, models.DiffNode{Path: s.Path, Status: status, Source: &s, Dest: &d, Reason: reason})
			keys = append(keys, src[i].key)
			i++
			j++
		}
	}

	return newDiffTree(nodes, keys, opts.CaseInsensitive), nil
}

func classify(s, d models.Entry, cmp Comparator) (models.DiffStatus, string) {
	if s.Kind != d.Kind {
		return models.StatusConflict, fmt.Sprintf("kind differs: %s vs %s", s.Kind, d.Kind)
	}
	if s.IsDir() {
		return models.StatusIdentical, ""
	}
	if same, reason := cmp.Compare(s, d); !same {
		return models.StatusModified, reason
	}
	return models.StatusIdentical, ""
}

// prepare filters one side and returns it sorted by matching key
func prepare(t *tree.Tree, opts Options) ([]keyed, error) {
	out := make([]keyed, 0, t.Len())
	excludedDirs := make(map[string]bool)
	var folded map[string]string
	if opts.CaseInsensitive {
		folded = make(map[string]string, t.Len())
	}

	// Pre-order guarantees a parent is seen before its children
	for e := range t.Walk() {
		if excludedDirs[e.Path.Parent().String()] || opts.Filter.Excluded(e.Path, e.IsDir()) {
			if e.IsDir() {
				excludedDirs[e.Path.String()] = true
			}
			continue
		}

		key := e.Path
		if opts.CaseInsensitive {
			key = e.Path.Fold()
			ks := key.String()
			if other, dup := folded[ks]; dup {
				return nil, &models.ComparisonError{
					Path:   e.Path.String(),
					Reason: fmt.Sprintf("collides with %q in %s when case is ignored", other, t.Root()),
				}
			}
			folded[ks] = e.Path.String()
		}
		out = append(out, keyed{key: key, entry: e})
	}

	if opts.CaseInsensitive {
		slices.SortStableFunc(out, func(a, b keyed) int {
			return models.CompareRelPath(a.key, b.key)
		})
	}
	return out, nil
}
