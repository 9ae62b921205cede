package sync

import (
	"strings"

	"github.com/sdejongh/robinhood/pkg/models"
)

// graph holds the ordering constraints between plan operations.
// deps[i] are the operations i waits for; dependents is the reverse.
type graph struct {
	deps       [][]int
	dependents [][]int
}

type opKey struct {
	side models.Side
	path string
}

// buildGraph derives dependencies from the plan:
//   - a copy waits for the nearest ancestor copy to the same side
//   - a copy waits for a delete of the same path on the same side
//   - a directory delete waits for the deletes below it on the same side
func buildGraph(ops []models.Operation, fold bool) *graph {
	key := func(side models.Side, p models.RelPath) opKey {
		s := p.String()
		if fold {
			s = strings.ToLower(s)
		}
		return opKey{side: side, path: s}
	}

	copies := make(map[opKey]int)
	deletes := make(map[opKey]int)
	for i, op := range ops {
		k := key(op.Kind.Target(), op.Path)
		switch {
		case op.Kind.IsCopy():
			copies[k] = i
		case op.Kind.IsDelete():
			deletes[k] = i
		}
	}

	g := &graph{
		deps:       make([][]int, len(ops)),
		dependents: make([][]int, len(ops)),
	}
	for i, op := range ops {
		side := op.Kind.Target()
		switch {
		case op.Kind.IsCopy():
			if j, ok := deletes[key(side, op.Path)]; ok {
				g.add(i, j)
			}
			for p := op.Path.Parent(); ; p = p.Parent() {
				if j, ok := copies[key(side, p)]; ok && j != i {
					g.add(i, j)
					break
				}
				if p.IsRoot() {
					break
				}
			}
		case op.Kind.IsDelete():
			if op.Path.IsRoot() {
				continue
			}
			for p := op.Path.Parent(); ; p = p.Parent() {
				if j, ok := deletes[key(side, p)]; ok && j != i {
					g.add(j, i)
					break
				}
				if p.IsRoot() {
					break
				}
			}
		}
	}
	return g
}

// add records that i depends on j
func (g *graph) add(i, j int) {
	g.deps[i] = append(g.deps[i], j)
	g.dependents[j] = append(g.dependents[j], i)
}

// transitiveDependents returns every operation reachable from i, in
// breadth-first order
func (g *graph) transitiveDependents(i int) []int {
	seen := map[int]bool{i: true}
	queue := []int{i}
	var out []int
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, d := range g.dependents[cur] {
			if !seen[d] {
				seen[d] = true
				out = append(out, d)
				queue = append(queue, d)
			}
		}
	}
	return out
}
