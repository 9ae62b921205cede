package tree

import (
	"github.com/sdejongh/robinhood/pkg/models"
)

// Load consumes a listing and builds a Tree. Entries may arrive in any
// order; parents missing from the listing are synthesized as implicit
// directories. Paths escaping the root, duplicate paths and files with
// children return a *models.MalformedListingError. An error yielded by the
// listing aborts the load.
func Load(root string, listing Listing) (*Tree, error) {
	t := newTree(root)

	for raw, err := range listing {
		if err != nil {
			return nil, &models.MalformedListingError{Root: root, Reason: "listing failed", Err: err}
		}
		if err := t.add(raw); err != nil {
			return nil, err
		}
	}

	t.sortChildren()
	return t, nil
}

func (t *Tree) add(raw models.RawEntry) error {
	p, err := models.ParseRelPath(raw.Path)
	if err != nil {
		return t.malformed(raw.Path, err.Error())
	}
	if p.IsRoot() {
		return nil
	}

	entry := models.Entry{
		Path:     p,
		Kind:     models.KindFile,
		Size:     max(raw.Size, 0),
		ModTime:  raw.ModTime,
		Checksum: raw.Checksum,
	}
	switch {
	case raw.IsDir:
		entry.Kind = models.KindDir
		entry.Size = 0
		entry.Checksum = ""
	case raw.IsSymlink:
		entry.Kind = models.KindSymlink
	}

	key := p.String()
	if i, exists := t.index[key]; exists {
		existing := t.nodes[i].entry
		if !existing.Implicit {
			return t.malformed(raw.Path, "duplicate path")
		}
		if !entry.IsDir() {
			return t.malformed(raw.Path, "non-directory entry has children")
		}
		t.nodes[i].entry = entry
		return nil
	}

	parent, err := t.ensureDir(p.Parent(), raw.Path)
	if err != nil {
		return err
	}
	t.insert(parent, entry)
	return nil
}

// ensureDir returns the index of the directory at p, synthesizing any
// missing directories on the way down from the nearest existing ancestor.
func (t *Tree) ensureDir(p models.RelPath, raw string) (int, error) {
	depth := len(p)
	for depth > 0 {
		if _, ok := t.index[p[:depth].String()]; ok {
			break
		}
		depth--
	}

	idx := t.index[p[:depth].String()]
	if !t.nodes[idx].entry.IsDir() {
		return 0, t.malformed(raw, "parent "+p[:depth].String()+" is not a directory")
	}

	for d := depth + 1; d <= len(p); d++ {
		implicit := models.Entry{
			Path:     append(models.RelPath(nil), p[:d]...),
			Kind:     models.KindDir,
			Implicit: true,
		}
		idx = t.insert(idx, implicit)
	}
	return idx, nil
}

func (t *Tree) insert(parent int, entry models.Entry) int {
	idx := len(t.nodes)
	t.nodes = append(t.nodes, node{entry: entry, parent: parent})
	t.nodes[parent].children = append(t.nodes[parent].children, idx)
	t.index[entry.Path.String()] = idx

	if entry.IsDir() {
		t.dirs++
	} else {
		t.files++
		t.bytes += entry.Size
	}
	return idx
}

func (t *Tree) malformed(path, reason string) error {
	return &models.MalformedListingError{Root: t.root, Path: path, Reason: reason}
}

// FromEntries builds a listing from an in-memory slice
func FromEntries(entries []models.RawEntry) Listing {
	return func(yield func(models.RawEntry, error) bool) {
		for _, e := range entries {
			if !yield(e, nil) {
				return
			}
		}
	}
}
