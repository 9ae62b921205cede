package compare

import (
	"iter"

	"github.com/sdejongh/robinhood/pkg/models"
)

// DiffTree holds the classified paths of a comparison in pre-order.
// It is immutable once built.
type DiffTree struct {
	nodes    []models.DiffNode
	index    map[string]int
	children map[int][]int
	counts   models.DiffCounts
	fold     bool
}

func newDiffTree(nodes []models.DiffNode, keys []models.RelPath, fold bool) *DiffTree {
	d := &DiffTree{
		nodes:    nodes,
		index:    make(map[string]int, len(nodes)),
		children: make(map[int][]int),
		counts:   make(models.DiffCounts),
		fold:     fold,
	}
	for i, n := range nodes {
		d.index[keys[i].String()] = i
		d.counts[n.Status]++

		parent := -1
		if p, ok := d.index[keys[i].Parent().String()]; ok && keys[i].Depth() > 1 {
			parent = p
		}
		d.children[parent] = append(d.children[parent], i)
	}
	return d
}

// Len is the number of classified paths
func (d *DiffTree) Len() int {
	return len(d.nodes)
}

// Nodes returns all nodes in pre-order
func (d *DiffTree) Nodes() []models.DiffNode {
	return d.nodes
}

// All iterates nodes in pre-order
func (d *DiffTree) All() iter.Seq[*models.DiffNode] {
	return func(yield func(*models.DiffNode) bool) {
		for i := range d.nodes {
			if !yield(&d.nodes[i]) {
				return
			}
		}
	}
}

// Key returns the matching key of p, case-folded when the diff is
// case-insensitive
func (d *DiffTree) Key(p models.RelPath) models.RelPath {
	if d.fold {
		return p.Fold()
	}
	return p
}

// Lookup returns the node at p
func (d *DiffTree) Lookup(p models.RelPath) (*models.DiffNode, bool) {
	if d.fold {
		p = p.Fold()
	}
	i, ok := d.index[p.String()]
	if !ok {
		return nil, false
	}
	return &d.nodes[i], true
}

// Children returns the direct children of p. The root is the empty path.
func (d *DiffTree) Children(p models.RelPath) []*models.DiffNode {
	parent := -1
	if !p.IsRoot() {
		if d.fold {
			p = p.Fold()
		}
		i, ok := d.index[p.String()]
		if !ok {
			return nil
		}
		parent = i
	}
	var out []*models.DiffNode
	for _, c := range d.children[parent] {
		out = append(out, &d.nodes[c])
	}
	return out
}

// Counts tallies nodes per status
func (d *DiffTree) Counts() models.DiffCounts {
	out := make(models.DiffCounts, len(d.counts))
	for k, v := range d.counts {
		out[k] = v
	}
	return out
}

// Changed returns every node that is not identical
func (d *DiffTree) Changed() []models.DiffNode {
	var out []models.DiffNode
	for _, n := range d.nodes {
		if n.Status != models.StatusIdentical {
			out = append(out, n)
		}
	}
	return out
}

// InSync reports whether the two trees match
func (d *DiffTree) InSync() bool {
	return d.counts.Changed() == 0
}
