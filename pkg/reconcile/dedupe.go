package reconcile

import (
	"cmp"
	"slices"

	"github.com/sdejongh/robinhood/pkg/compare"
	"github.com/sdejongh/robinhood/pkg/models"
)

type groupKey struct {
	checksum models.Checksum
	size     int64
	// path is set for identical pairs that carry no checksum
	path string
}

// findDuplicates groups files holding the same content across both trees.
// Files are grouped by checksum; identical pairs without a checksum form a
// group of their own. Empty files are never grouped.
func findDuplicates(diff *compare.DiffTree) []models.DuplicateGroup {
	groups := make(map[groupKey][]models.DuplicateMember)

	add := func(key groupKey, side models.Side, e *models.Entry) {
		groups[key] = append(groups[key], models.DuplicateMember{
			Side:    side,
			Path:    e.Path,
			Size:    e.Size,
			ModTime: e.ModTime,
		})
	}

	for n := range diff.All() {
		if n.Status == models.StatusIdentical && !n.IsDir() &&
			n.Source.Size > 0 && (n.Source.Checksum == "" || n.Dest.Checksum == "") {
			key := groupKey{size: n.Source.Size, path: n.Path.String()}
			add(key, models.SideSource, n.Source)
			add(key, models.SideDestination, n.Dest)
			continue
		}

		for side, e := range map[models.Side]*models.Entry{models.SideSource: n.Source, models.SideDestination: n.Dest} {
			if e == nil || e.Kind != models.KindFile || e.Size == 0 || e.Checksum == "" {
				continue
			}
			add(groupKey{checksum: e.Checksum, size: e.Size}, side, e)
		}
	}

	var out []models.DuplicateGroup
	for key, members := range groups {
		if len(members) < 2 {
			continue
		}
		slices.SortFunc(members, compareMembers)
		out = append(out, models.DuplicateGroup{Checksum: key.checksum, Size: key.size, Members: members})
	}

	slices.SortFunc(out, func(a, b models.DuplicateGroup) int {
		if c := cmp.Compare(a.Checksum, b.Checksum); c != 0 {
			return c
		}
		return compareMembers(a.Members[0], b.Members[0])
	})
	return out
}

// compareMembers orders newest first, then source before destination, then by path
func compareMembers(a, b models.DuplicateMember) int {
	if c := b.ModTime.Compare(a.ModTime); c != 0 {
		return c
	}
	if a.Side != b.Side {
		if a.Side == models.SideSource {
			return -1
		}
		return 1
	}
	return models.CompareRelPath(a.Path, b.Path)
}
