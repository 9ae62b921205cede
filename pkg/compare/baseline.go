package compare

import (
	"strings"
	"time"

	"github.com/sdejongh/robinhood/pkg/models"
)

// BaselineEntry is the state of a path the last time both sides agreed on it
type BaselineEntry struct {
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
	IsDir   bool      `json:"is_dir,omitempty"`
}

// Baseline records the paths present on both sides after the previous run
type Baseline struct {
	Paths map[string]BaselineEntry `json:"paths"`
}

// NewBaseline creates an empty baseline
func NewBaseline() *Baseline {
	return &Baseline{Paths: make(map[string]BaselineEntry)}
}

// Add records p
func (b *Baseline) Add(p models.RelPath, e models.Entry) {
	b.Paths[p.String()] = BaselineEntry{Size: e.Size, ModTime: e.ModTime, IsDir: e.IsDir()}
}

// Remove forgets p
func (b *Baseline) Remove(p models.RelPath) {
	delete(b.Paths, p.String())
}

// Contains reports whether p was recorded
func (b *Baseline) Contains(p models.RelPath) bool {
	_, ok := b.Paths[p.String()]
	return ok
}

// Len is the number of recorded paths
func (b *Baseline) Len() int {
	return len(b.Paths)
}

func (b *Baseline) keySet(fold bool) map[string]bool {
	out := make(map[string]bool, len(b.Paths))
	for k := range b.Paths {
		if fold {
			k = strings.ToLower(k)
		}
		out[k] = true
	}
	return out
}

// BaselineFromDiff records every path the diff found identical on both sides
func BaselineFromDiff(d *DiffTree) *Baseline {
	b := NewBaseline()
	for n := range d.All() {
		if n.Status == models.StatusIdentical {
			b.Add(n.Path, *n.Source)
		}
	}
	return b
}
