package reconcile

import (
	"cmp"
	"slices"

	"github.com/sdejongh/robinhood/pkg/models"
)

// order assigns ranks and sorts ops in place. Deletes come first, deepest
// paths first, so a directory is removed after everything beneath it. Copies
// follow, shallowest first, so a directory is created before its children.
func order(ops []models.Operation) {
	maxDepth := 0
	for _, op := range ops {
		maxDepth = max(maxDepth, op.Path.Depth())
	}

	for i := range ops {
		depth := ops[i].Path.Depth()
		if ops[i].Kind.IsDelete() {
			ops[i].Rank = maxDepth - depth
		} else {
			ops[i].Rank = maxDepth + depth
		}
	}

	slices.SortStableFunc(ops, func(a, b models.Operation) int {
		if c := cmp.Compare(a.Rank, b.Rank); c != 0 {
			return c
		}
		if c := models.CompareRelPath(a.Path, b.Path); c != 0 {
			return c
		}
		return cmp.Compare(a.Kind, b.Kind)
	})
}
