package sync

import (
	"reflect"
	"testing"

	"github.com/sdejongh/robinhood/pkg/models"
)

func TestBuildGraph(t *testing.T) {
	ops := planOf(
		op(models.OpDeleteFromDestination, "old/x", false, -1), // 0
		op(models.OpDeleteFromDestination, "old", true, -1),    // 1
		op(models.OpDeleteFromDestination, "conf", true, -1),   // 2
		op(models.OpCopyToDestination, "conf", false, 1),       // 3
		op(models.OpCopyToDestination, "d", true, -1),          // 4
		op(models.OpCopyToDestination, "d/e/f.txt", false, 1),  // 5
		op(models.OpCopyToSource, "d/g.txt", false, 1),         // 6
		op(models.OpCopyToDestination, "top.txt", false, 1),    // 7
	).Operations

	g := buildGraph(ops, false)

	want := [][]int{
		nil,
		{0},
		nil,
		{2},
		nil,
		{4}, // nearest ancestor copy, d/e is not copied
		nil, // other side
		nil,
	}
	for i := range ops {
		if !reflect.DeepEqual(g.deps[i], want[i]) {
			t.Errorf("deps[%d] (%s) = %v, want %v", i, ops[i], g.deps[i], want[i])
		}
	}

	if got := g.transitiveDependents(0); !reflect.DeepEqual(got, []int{1}) {
		t.Errorf("transitiveDependents(0) = %v, want [1]", got)
	}
	if got := g.transitiveDependents(2); !reflect.DeepEqual(got, []int{3}) {
		t.Errorf("transitiveDependents(2) = %v, want [3]", got)
	}
}

func TestBuildGraph_CaseInsensitive(t *testing.T) {
	ops := planOf(
		op(models.OpCopyToDestination, "Docs", true, -1),
		op(models.OpCopyToDestination, "docs/a.txt", false, 1),
	).Operations

	if g := buildGraph(ops, false); len(g.deps[1]) != 0 {
		t.Errorf("case-sensitive deps = %v, want none", g.deps[1])
	}
	if g := buildGraph(ops, true); !reflect.DeepEqual(g.deps[1], []int{0}) {
		t.Errorf("case-insensitive deps = %v, want [0]", g.deps[1])
	}
}

func TestBuildGraph_Transitive(t *testing.T) {
	ops := planOf(
		op(models.OpCopyToDestination, "a", true, -1),
		op(models.OpCopyToDestination, "a/b", true, -1),
		op(models.OpCopyToDestination, "a/b/c", true, -1),
		op(models.OpCopyToDestination, "a/b/c/d.txt", false, 1),
		op(models.OpCopyToDestination, "z.txt", false, 1),
	).Operations

	g := buildGraph(ops, false)
	if got := g.transitiveDependents(0); !reflect.DeepEqual(got, []int{1, 2, 3}) {
		t.Errorf("transitiveDependents(0) = %v, want [1 2 3]", got)
	}
}
