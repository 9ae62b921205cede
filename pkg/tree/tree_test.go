package tree

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/sdejongh/robinhood/pkg/models"
)

func file(path string, size int64) models.RawEntry {
	return models.RawEntry{Path: path, Size: size, ModTime: time.Unix(1700000000, 0)}
}

func dir(path string) models.RawEntry {
	return models.RawEntry{Path: path, IsDir: true}
}

func paths(entries []models.Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Path.String()
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestLoad(t *testing.T) {
	t.Run("AnyOrder", func(t *testing.T) {
		tr, err := Load("/src", FromEntries([]models.RawEntry{
			file("b/z.txt", 3),
			dir("b"),
			file("a.txt", 1),
			file("b/y.txt", 2),
		}))
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}

		if tr.Len() != 4 {
			t.Errorf("Len() = %d, want 4", tr.Len())
		}
		want := []string{"a.txt", "b", "b/y.txt", "b/z.txt"}
		if got := paths(tr.Entries()); !equal(got, want) {
			t.Errorf("Entries() = %v, want %v", got, want)
		}
		if tr.Files() != 3 || tr.Dirs() != 1 || tr.Bytes() != 6 {
			t.Errorf("counts = %d files, %d dirs, %d bytes", tr.Files(), tr.Dirs(), tr.Bytes())
		}
	})

	t.Run("ImplicitParents", func(t *testing.T) {
		tr, err := Load("s3://bucket", FromEntries([]models.RawEntry{
			file("x/y/z.bin", 10),
		}))
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}

		e, ok := tr.Lookup(models.MustRelPath("x/y"))
		if !ok {
			t.Fatal("implicit parent x/y not synthesized")
		}
		if !e.IsDir() || !e.Implicit {
			t.Errorf("x/y = %+v, want implicit directory", e)
		}
	})

	t.Run("ExplicitReplacesImplicit", func(t *testing.T) {
		mtime := time.Unix(1600000000, 0)
		tr, err := Load("/src", FromEntries([]models.RawEntry{
			file("d/f", 1),
			{Path: "d", IsDir: true, ModTime: mtime},
		}))
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		e, _ := tr.Lookup(models.MustRelPath("d"))
		if e.Implicit || !e.ModTime.Equal(mtime) {
			t.Errorf("d = %+v, want explicit entry", e)
		}
		if tr.Dirs() != 1 {
			t.Errorf("Dirs() = %d, want 1", tr.Dirs())
		}
	})

	t.Run("RootRecordIgnored", func(t *testing.T) {
		tr, err := Load("/src", FromEntries([]models.RawEntry{dir("."), file("a", 1)}))
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if tr.Len() != 1 {
			t.Errorf("Len() = %d, want 1", tr.Len())
		}
	})

	t.Run("Symlink", func(t *testing.T) {
		tr, err := Load("/src", FromEntries([]models.RawEntry{{Path: "link", IsSymlink: true, Size: 4}}))
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		e, _ := tr.Lookup(models.MustRelPath("link"))
		if e.Kind != models.KindSymlink {
			t.Errorf("Kind = %s, want symlink", e.Kind)
		}
	})
}

func TestLoad_Malformed(t *testing.T) {
	tests := []struct {
		name    string
		entries []models.RawEntry
	}{
		{"Escape", []models.RawEntry{file("../etc/passwd", 1)}},
		{"EscapeMidPath", []models.RawEntry{file("a/../../b", 1)}},
		{"Duplicate", []models.RawEntry{file("a", 1), file("a", 2)}},
		{"DuplicateDir", []models.RawEntry{dir("a"), dir("a")}},
		{"FileWithChildren", []models.RawEntry{file("a", 1), file("a/b", 1)}},
		{"ChildrenThenFile", []models.RawEntry{file("a/b", 1), file("a", 1)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load("/src", FromEntries(tt.entries))
			if !errors.Is(err, models.ErrMalformedListing) {
				t.Errorf("Load() error = %v, want malformed listing", err)
			}
		})
	}
}

func TestLoad_ListingError(t *testing.T) {
	boom := fmt.Errorf("connection reset")
	listing := func(yield func(models.RawEntry, error) bool) {
		if !yield(file("a", 1), nil) {
			return
		}
		yield(models.RawEntry{}, boom)
	}

	_, err := Load("remote:", listing)
	if !errors.Is(err, models.ErrMalformedListing) {
		t.Errorf("Load() error = %v, want malformed listing", err)
	}
	if !errors.Is(err, boom) {
		t.Errorf("Load() error = %v, want to wrap %v", err, boom)
	}
}

func TestLoad_Restartable(t *testing.T) {
	calls := 0
	listing := func(yield func(models.RawEntry, error) bool) {
		calls++
		yield(file("a", 1), nil)
	}

	for i := 0; i < 2; i++ {
		tr, err := Load("/src", listing)
		if err != nil || tr.Len() != 1 {
			t.Fatalf("Load() #%d = %v, %v", i, tr, err)
		}
	}
	if calls != 2 {
		t.Errorf("listing queried %d times, want 2", calls)
	}
}

func TestTree_Walk(t *testing.T) {
	tr, err := Load("/src", FromEntries([]models.RawEntry{
		file("b/2", 1),
		file("a", 1),
		file("b/1", 1),
		file("b/c/3", 1),
	}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	t.Run("PreOrder", func(t *testing.T) {
		var got []string
		for e := range tr.Walk() {
			got = append(got, e.Path.String())
		}
		want := []string{"a", "b", "b/1", "b/2", "b/c", "b/c/3"}
		if !equal(got, want) {
			t.Errorf("Walk() = %v, want %v", got, want)
		}
	})

	t.Run("PostOrder", func(t *testing.T) {
		var got []string
		for e := range tr.WalkPostOrder() {
			got = append(got, e.Path.String())
		}
		want := []string{"a", "b/1", "b/2", "b/c/3", "b/c", "b"}
		if !equal(got, want) {
			t.Errorf("WalkPostOrder() = %v, want %v", got, want)
		}
	})

	t.Run("EarlyStop", func(t *testing.T) {
		n := 0
		for range tr.Walk() {
			n++
			if n == 2 {
				break
			}
		}
		if n != 2 {
			t.Errorf("visited %d entries, want 2", n)
		}
	})

	t.Run("Children", func(t *testing.T) {
		got := paths(tr.Children(models.MustRelPath("b")))
		want := []string{"b/1", "b/2", "b/c"}
		if !equal(got, want) {
			t.Errorf("Children(b) = %v, want %v", got, want)
		}
	})
}
