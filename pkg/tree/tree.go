// Package tree builds random-access file trees from engine listings.
package tree

import (
	"iter"
	"slices"

	"github.com/sdejongh/robinhood/pkg/models"
)

// Listing is a lazy sequence of raw entries. Ranging over it again
// re-queries the engine.
type Listing = iter.Seq2[models.RawEntry, error]

const rootIndex = 0

type node struct {
	entry    models.Entry
	parent   int
	children []int
}

// Tree is an arena of entries indexed by relative path. A loaded Tree is
// immutable and safe for concurrent readers.
type Tree struct {
	root  string
	nodes []node
	index map[string]int

	files int
	dirs  int
	bytes int64
}

func newTree(root string) *Tree {
	t := &Tree{
		root:  root,
		index: make(map[string]int),
	}
	t.nodes = append(t.nodes, node{
		entry:  models.Entry{Kind: models.KindDir},
		parent: -1,
	})
	t.index[""] = rootIndex
	return t
}

// Root returns the location the tree was listed from
func (t *Tree) Root() string {
	return t.root
}

// Len is the number of entries, excluding the root
func (t *Tree) Len() int {
	return len(t.nodes) - 1
}

// Files is the number of non-directory entries
func (t *Tree) Files() int { return t.files }

// Dirs is the number of directories, excluding the root
func (t *Tree) Dirs() int { return t.dirs }

// Bytes is the total size of non-directory entries
func (t *Tree) Bytes() int64 { return t.bytes }

// Lookup returns the entry at p
func (t *Tree) Lookup(p models.RelPath) (models.Entry, bool) {
	i, ok := t.index[p.String()]
	if !ok {
		return models.Entry{}, false
	}
	return t.nodes[i].entry, true
}

// Children returns the direct children of p in name order
func (t *Tree) Children(p models.RelPath) []models.Entry {
	i, ok := t.index[p.String()]
	if !ok {
		return nil
	}
	out := make([]models.Entry, 0, len(t.nodes[i].children))
	for _, c := range t.nodes[i].children {
		out = append(out, t.nodes[c].entry)
	}
	return out
}

// Walk visits every entry in pre-order (parents before children, siblings
// by name). The root is not visited.
func (t *Tree) Walk() iter.Seq[models.Entry] {
	return func(yield func(models.Entry) bool) {
		stack := []int{rootIndex}
		for len(stack) > 0 {
			i := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if i != rootIndex && !yield(t.nodes[i].entry) {
				return
			}
			children := t.nodes[i].children
			for c := len(children) - 1; c >= 0; c-- {
				stack = append(stack, children[c])
			}
		}
	}
}

// WalkPostOrder visits every entry with children before their parent
func (t *Tree) WalkPostOrder() iter.Seq[models.Entry] {
	return func(yield func(models.Entry) bool) {
		type frame struct {
			idx  int
			next int
		}
		stack := []frame{{idx: rootIndex}}
		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			children := t.nodes[top.idx].children
			if top.next < len(children) {
				c := children[top.next]
				top.next++
				stack = append(stack, frame{idx: c})
				continue
			}
			i := top.idx
			stack = stack[:len(stack)-1]
			if i != rootIndex && !yield(t.nodes[i].entry) {
				return
			}
		}
	}
}

// Entries returns all entries in pre-order
func (t *Tree) Entries() []models.Entry {
	out := make([]models.Entry, 0, t.Len())
	for e := range t.Walk() {
		out = append(out, e)
	}
	return out
}

// sortChildren orders every child list by name so traversals are deterministic
func (t *Tree) sortChildren() {
	for i := range t.nodes {
		slices.SortFunc(t.nodes[i].children, func(a, b int) int {
			return models.CompareRelPath(t.nodes[a].entry.Path, t.nodes[b].entry.Path)
		})
	}
}
