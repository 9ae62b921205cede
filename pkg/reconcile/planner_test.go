package reconcile

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/sdejongh/robinhood/pkg/compare"
	"github.com/sdejongh/robinhood/pkg/models"
	"github.com/sdejongh/robinhood/pkg/tree"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func f(path string, size int64, mtime time.Time) models.RawEntry {
	return models.RawEntry{Path: path, Size: size, ModTime: mtime}
}

func fsum(path string, size int64, mtime time.Time, sum string) models.RawEntry {
	return models.RawEntry{Path: path, Size: size, ModTime: mtime, Checksum: models.NewChecksum("md5", sum)}
}

func d(path string) models.RawEntry {
	return models.RawEntry{Path: path, IsDir: true}
}

func diffOf(t *testing.T, src, dst []models.RawEntry) *compare.DiffTree {
	t.Helper()
	a, err := tree.Load("A", tree.FromEntries(src))
	if err != nil {
		t.Fatalf("tree.Load(A) error = %v", err)
	}
	b, err := tree.Load("B", tree.FromEntries(dst))
	if err != nil {
		t.Fatalf("tree.Load(B) error = %v", err)
	}
	dt, err := compare.Diff(a, b, compare.Options{})
	if err != nil {
		t.Fatalf("Diff() error = %v", err)
	}
	return dt
}

func mustPlan(t *testing.T, dt *compare.DiffTree, mode models.SyncMode) *models.Plan {
	t.Helper()
	p, err := Plan(dt, mode)
	if err != nil {
		t.Fatalf("Plan(%s) error = %v", mode, err)
	}
	return p
}

func opsString(ops []models.Operation) []string {
	out := make([]string, len(ops))
	for i, op := range ops {
		out[i] = op.String()
	}
	return out
}

func TestPlan_Scenarios(t *testing.T) {
	t.Run("NewInSourceUpdate", func(t *testing.T) {
		dt := diffOf(t, []models.RawEntry{f("a.txt", 10, t0)}, nil)
		p := mustPlan(t, dt, models.ModeUpdate)
		want := []string{"copy_to_destination a.txt"}
		if got := opsString(p.Operations); !reflect.DeepEqual(got, want) {
			t.Errorf("Operations = %v, want %v", got, want)
		}
		if p.Operations[0].Size != 10 {
			t.Errorf("Size = %d, want 10", p.Operations[0].Size)
		}
	})

	t.Run("NewInDestination", func(t *testing.T) {
		dt := diffOf(t, nil, []models.RawEntry{f("b.txt", 1, t0)})

		mirror := mustPlan(t, dt, models.ModeMirror)
		if got := opsString(mirror.Operations); !reflect.DeepEqual(got, []string{"delete_from_destination b.txt"}) {
			t.Errorf("mirror Operations = %v", got)
		}

		update := mustPlan(t, dt, models.ModeUpdate)
		if len(update.Operations) != 0 {
			t.Errorf("update Operations = %v, want none", opsString(update.Operations))
		}
		if len(update.Skipped) != 1 {
			t.Errorf("update Skipped = %d, want 1", len(update.Skipped))
		}

		sync := mustPlan(t, dt, models.ModeSync)
		if got := opsString(sync.Operations); !reflect.DeepEqual(got, []string{"copy_to_source b.txt"}) {
			t.Errorf("sync Operations = %v", got)
		}
	})

	t.Run("IdenticalNoOps", func(t *testing.T) {
		dt := diffOf(t, []models.RawEntry{f("c.txt", 5, t0)}, []models.RawEntry{f("c.txt", 5, t0)})
		for _, mode := range []models.SyncMode{models.ModeUpdate, models.ModeMirror, models.ModeSync, models.ModeDedupe} {
			if p := mustPlan(t, dt, mode); len(p.Operations) != 0 {
				t.Errorf("%s Operations = %v, want none", mode, opsString(p.Operations))
			}
		}
	})

	t.Run("DirectoryBeforeChildren", func(t *testing.T) {
		dt := diffOf(t, []models.RawEntry{d("d"), f("d/e.txt", 3, t0)}, nil)
		p := mustPlan(t, dt, models.ModeMirror)
		want := []string{"copy_to_destination d", "copy_to_destination d/e.txt"}
		if got := opsString(p.Operations); !reflect.DeepEqual(got, want) {
			t.Errorf("Operations = %v, want %v", got, want)
		}
		if !p.Operations[0].IsDir || p.Operations[0].Size != -1 {
			t.Errorf("directory op = %+v, want IsDir and unknown size", p.Operations[0])
		}
	})

	t.Run("NestedDeletesPostOrder", func(t *testing.T) {
		dt := diffOf(t, nil, []models.RawEntry{f("old/a", 1, t0), f("old/sub/b", 1, t0)})
		p := mustPlan(t, dt, models.ModeMirror)
		want := []string{
			"delete_from_destination old/sub/b",
			"delete_from_destination old/a",
			"delete_from_destination old/sub",
			"delete_from_destination old",
		}
		if got := opsString(p.Operations); !reflect.DeepEqual(got, want) {
			t.Errorf("Operations = %v, want %v", got, want)
		}
	})
}

func TestPlan_ModeTable(t *testing.T) {
	later := t0.Add(time.Hour)
	base := compare.NewBaseline()
	base.Add(models.MustRelPath("del-src"), models.Entry{})
	base.Add(models.MustRelPath("del-dst"), models.Entry{})

	a, _ := tree.Load("A", tree.FromEntries([]models.RawEntry{
		f("new-src", 1, t0),
		f("mod", 2, later),
		f("kind", 1, t0),
		f("del-dst", 1, t0),
	}))
	b, _ := tree.Load("B", tree.FromEntries([]models.RawEntry{
		f("new-dst", 1, t0),
		f("mod", 1, t0),
		d("kind"),
		f("del-src", 1, t0),
	}))
	dt, err := compare.Diff(a, b, compare.Options{Baseline: base})
	if err != nil {
		t.Fatalf("Diff() error = %v", err)
	}

	tests := []struct {
		mode      models.SyncMode
		want      []string
		conflicts int
	}{
		{models.ModeUpdate, []string{
			"copy_to_destination mod",
			"copy_to_destination new-src",
		}, 1},
		{models.ModeMirror, []string{
			"delete_from_destination del-src",
			"delete_from_destination kind",
			"delete_from_destination new-dst",
			"copy_to_destination del-dst",
			"copy_to_destination kind",
			"copy_to_destination mod",
			"copy_to_destination new-src",
		}, 0},
		{models.ModeSync, []string{
			"delete_from_source del-dst",
			"delete_from_destination del-src",
			"copy_to_destination mod",
			"copy_to_destination new-src",
			"copy_to_source new-dst",
		}, 1},
		{models.ModeDedupe, nil, 1},
	}

	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			p := mustPlan(t, dt, tt.mode)
			got := opsString(p.Operations)
			if len(got) == 0 {
				got = nil
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Operations =\n%v\nwant\n%v", got, tt.want)
			}
			if len(p.Conflicts) != tt.conflicts {
				t.Errorf("Conflicts = %d, want %d", len(p.Conflicts), tt.conflicts)
			}
		})
	}
}

func TestPlan_SyncDirection(t *testing.T) {
	tests := []struct {
		name    string
		srcT    time.Time
		dstT    time.Time
		srcSum  string
		dstSum  string
		wantOps []string
		reason  string
	}{
		{"SourceNewer", t0.Add(time.Hour), t0, "a", "b", []string{"copy_to_destination x"}, ""},
		{"DestNewer", t0, t0.Add(time.Hour), "a", "b", []string{"copy_to_source x"}, ""},
		{"EqualTimeTie", t0, t0, "c1", "c2", nil, reasonEqualModTime},
		{"NoTimes", time.Time{}, time.Time{}, "c1", "c2", nil, reasonNoModTime},
		{"OnlySourceTime", t0, time.Time{}, "c1", "c2", []string{"copy_to_destination x"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dt := diffOf(t, []models.RawEntry{fsum("x", 4, tt.srcT, tt.srcSum)}, []models.RawEntry{fsum("x", 4, tt.dstT, tt.dstSum)})
			n, _ := dt.Lookup(models.MustRelPath("x"))
			if n.Status != models.StatusModified {
				t.Fatalf("status = %s, want modified", n.Status)
			}

			p := mustPlan(t, dt, models.ModeSync)
			got := opsString(p.Operations)
			if len(got) == 0 {
				got = nil
			}
			if !reflect.DeepEqual(got, tt.wantOps) {
				t.Errorf("Operations = %v, want %v", got, tt.wantOps)
			}
			if tt.reason != "" {
				if len(p.Skipped) != 1 || p.Skipped[0].Reason != tt.reason {
					t.Errorf("Skipped = %+v, want one with reason %q", p.Skipped, tt.reason)
				}
			}
		})
	}
}

func TestPlan_MirrorConflictDirectoryOverFile(t *testing.T) {
	// Destination holds a directory where the source holds a file
	dt := diffOf(t,
		[]models.RawEntry{f("x", 3, t0)},
		[]models.RawEntry{d("x"), f("x/inner", 1, t0)},
	)
	p := mustPlan(t, dt, models.ModeMirror)
	want := []string{
		"delete_from_destination x/inner",
		"delete_from_destination x",
		"copy_to_destination x",
	}
	if got := opsString(p.Operations); !reflect.DeepEqual(got, want) {
		t.Errorf("Operations = %v, want %v", got, want)
	}
	if p.Operations[1].IsDir != true {
		t.Error("delete of destination directory should be marked IsDir")
	}
	if p.Operations[2].IsDir != false {
		t.Error("copy of source file should not be marked IsDir")
	}
}

func TestPlan_ConflictSkipsSubtree(t *testing.T) {
	tests := []struct {
		name string
		src  []models.RawEntry
		dst  []models.RawEntry
		mode models.SyncMode
	}{
		{"UpdateDirOverFile", []models.RawEntry{d("x"), f("x/y", 1, t0)}, []models.RawEntry{f("x", 1, t0)}, models.ModeUpdate},
		{"SyncDirOverFile", []models.RawEntry{d("x"), f("x/y", 1, t0)}, []models.RawEntry{f("x", 1, t0)}, models.ModeSync},
		{"SyncFileOverDir", []models.RawEntry{f("x", 1, t0)}, []models.RawEntry{d("x"), f("x/y", 1, t0)}, models.ModeSync},
		{"UpdateFileOverDir", []models.RawEntry{f("x", 1, t0)}, []models.RawEntry{d("x"), f("x/y", 1, t0)}, models.ModeUpdate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dt := diffOf(t, append(tt.src, f("z", 1, t0)), tt.dst)
			p := mustPlan(t, dt, tt.mode)

			want := []string{"copy_to_destination z"}
			if got := opsString(p.Operations); !reflect.DeepEqual(got, want) {
				t.Errorf("Operations = %v, want %v", got, want)
			}
			if len(p.Conflicts) != 1 {
				t.Errorf("Conflicts = %d, want 1", len(p.Conflicts))
			}

			var under []string
			for _, op := range p.Skipped {
				if op.Reason == reasonUnderConflict {
					under = append(under, op.Path.String())
				}
			}
			if !reflect.DeepEqual(under, []string{"x/y"}) {
				t.Errorf("skipped under conflict = %v, want [x/y]", under)
			}
		})
	}

	t.Run("CaseInsensitive", func(t *testing.T) {
		a, _ := tree.Load("A", tree.FromEntries([]models.RawEntry{d("X"), f("X/y", 1, t0)}))
		b, _ := tree.Load("B", tree.FromEntries([]models.RawEntry{f("x", 1, t0)}))
		dt, err := compare.Diff(a, b, compare.Options{CaseInsensitive: true})
		if err != nil {
			t.Fatalf("Diff() error = %v", err)
		}
		if p := mustPlan(t, dt, models.ModeSync); len(p.Operations) != 0 {
			t.Errorf("Operations = %v, want none", opsString(p.Operations))
		}
	})
}

func TestPlan_Deterministic(t *testing.T) {
	src := []models.RawEntry{f("a", 1, t0), f("b/c", 2, t0), f("b/d", 3, t0), f("z", 1, t0)}
	dst := []models.RawEntry{f("a", 2, t0), f("q/r", 1, t0), f("q/s/t", 1, t0)}

	first := mustPlan(t, diffOf(t, src, dst), models.ModeMirror)
	for i := 0; i < 5; i++ {
		again := mustPlan(t, diffOf(t, src, dst), models.ModeMirror)
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("plan #%d differs:\n%v\n%v", i, opsString(first.Operations), opsString(again.Operations))
		}
	}
}

func TestPlan_OrderingInvariants(t *testing.T) {
	src := []models.RawEntry{f("n/a/b/c", 1, t0), f("n/x", 1, t0), f("m", 1, t0)}
	dst := []models.RawEntry{f("o/a/b", 1, t0), f("o/c", 1, t0), f("p/q/r/s", 1, t0)}
	p := mustPlan(t, diffOf(t, src, dst), models.ModeMirror)

	index := map[string]int{}
	for i, op := range p.Operations {
		index[op.String()] = i
		if op.ID != i {
			t.Errorf("op %s has ID %d, want %d", op, op.ID, i)
		}
	}

	for i, op := range p.Operations {
		for _, other := range p.Operations[i+1:] {
			if op.Kind.IsCopy() && other.Kind.IsCopy() && op.Path.HasAncestor(other.Path) {
				t.Errorf("copy %s precedes its ancestor %s", op.Path, other.Path)
			}
			if op.Kind.IsDelete() && other.Kind.IsDelete() && other.Path.HasAncestor(op.Path) {
				t.Errorf("delete %s precedes its descendant %s", op.Path, other.Path)
			}
		}
	}
}

// apply simulates a plan against in-memory copies of both trees
func apply(src, dst map[string]models.RawEntry, ops []models.Operation) {
	for _, op := range ops {
		key := op.Path.String()
		switch op.Kind {
		case models.OpCopyToDestination:
			dst[key] = src[key]
		case models.OpCopyToSource:
			src[key] = dst[key]
		case models.OpDeleteFromDestination:
			delete(dst, key)
		case models.OpDeleteFromSource:
			delete(src, key)
		}
	}
}

func toMap(t *testing.T, entries []models.RawEntry) map[string]models.RawEntry {
	t.Helper()
	tr, err := tree.Load("", tree.FromEntries(entries))
	if err != nil {
		t.Fatalf("tree.Load() error = %v", err)
	}
	out := map[string]models.RawEntry{}
	for _, e := range tr.Entries() {
		out[e.Path.String()] = models.RawEntry{
			Path: e.Path.String(), Size: e.Size, ModTime: e.ModTime, IsDir: e.IsDir(), Checksum: e.Checksum,
		}
	}
	return out
}

func values(m map[string]models.RawEntry) []models.RawEntry {
	out := make([]models.RawEntry, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	return out
}

func TestPlan_MirrorRoundTrip(t *testing.T) {
	src := []models.RawEntry{f("a", 1, t0), f("b/c", 2, t0), f("conf", 1, t0), d("dirconf"), f("dirconf/x", 1, t0)}
	dst := []models.RawEntry{f("a", 9, t0), d("conf"), f("conf/y", 1, t0), f("dirconf", 1, t0), f("stale/z", 1, t0)}

	p := mustPlan(t, diffOf(t, src, dst), models.ModeMirror)

	srcMap, dstMap := toMap(t, src), toMap(t, dst)
	apply(srcMap, dstMap, p.Operations)

	after := diffOf(t, values(srcMap), values(dstMap))
	counts := after.Counts()
	for _, s := range []models.DiffStatus{models.StatusNewInDestination, models.StatusModified, models.StatusConflict, models.StatusNewInSource} {
		if counts[s] != 0 {
			t.Errorf("after mirror, %s = %d, want 0", s, counts[s])
		}
	}
}

func TestPlan_Dedupe(t *testing.T) {
	older := t0.Add(-time.Hour)
	dt := diffOf(t,
		[]models.RawEntry{
			fsum("photo.jpg", 100, t0, "aa"),
			fsum("backup/photo-copy.jpg", 100, older, "aa"),
			fsum("unique.jpg", 50, t0, "bb"),
			fsum("empty", 0, t0, "d41d8cd98f00b204e9800998ecf8427e"),
			fsum("empty2", 0, t0, "d41d8cd98f00b204e9800998ecf8427e"),
			f("plain.txt", 7, t0),
			f("changed.txt", 7, t0),
		},
		[]models.RawEntry{
			fsum("elsewhere.jpg", 100, older, "aa"),
			f("plain.txt", 7, t0),
			f("changed.txt", 8, t0),
		},
	)

	p := mustPlan(t, dt, models.ModeDedupe)
	if len(p.Operations) != 0 {
		t.Fatalf("dedupe emitted operations: %v", opsString(p.Operations))
	}

	if len(p.Duplicates) != 2 {
		t.Fatalf("Duplicates = %+v, want 2 groups", p.Duplicates)
	}

	var byChecksum, byPath models.DuplicateGroup
	for _, g := range p.Duplicates {
		if g.Checksum == "" {
			byPath = g
		} else {
			byChecksum = g
		}
	}

	if len(byChecksum.Members) != 3 {
		t.Errorf("checksum group has %d members, want 3", len(byChecksum.Members))
	}
	if keep := byChecksum.Members[0]; keep.Path.String() != "photo.jpg" {
		t.Errorf("newest member = %s, want photo.jpg", keep.Path)
	}
	if byChecksum.WastedBytes() != 200 {
		t.Errorf("WastedBytes() = %d, want 200", byChecksum.WastedBytes())
	}

	if len(byPath.Members) != 2 || byPath.Members[0].Path.String() != "plain.txt" {
		t.Errorf("identical-pair group = %+v, want plain.txt on both sides", byPath.Members)
	}

	if len(p.DuplicateCandidates) != 1 || p.DuplicateCandidates[0].String() != "changed.txt" {
		t.Errorf("DuplicateCandidates = %v, want [changed.txt]", p.DuplicateCandidates)
	}
}

func TestPlan_UnknownMode(t *testing.T) {
	dt := diffOf(t, nil, nil)
	_, err := Plan(dt, "bidirectional")
	var verr *models.ValidationError
	if !errors.As(err, &verr) {
		t.Errorf("Plan() error = %v, want *ValidationError", err)
	}
}
