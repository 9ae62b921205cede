package filter

import (
	"testing"

	"github.com/sdejongh/robinhood/pkg/models"
)

func TestSet_Excluded(t *testing.T) {
	tests := []struct {
		name  string
		opts  Options
		path  string
		isDir bool
		want  bool
	}{
		// Basename globs
		{"GlobMatch", Options{Exclude: []string{"*.tmp"}}, "dir/file.tmp", false, true},
		{"GlobNoMatch", Options{Exclude: []string{"*.tmp"}}, "dir/file.txt", false, false},

		// Directory patterns only hit directories
		{"DirPatternOnDir", Options{Exclude: []string{"node_modules/"}}, "app/node_modules", true, true},
		{"DirPatternOnFile", Options{Exclude: []string{"node_modules/"}}, "app/node_modules", false, false},

		// Anchored path globs
		{"PathGlob", Options{Exclude: []string{"build/*"}}, "build/out.bin", false, true},
		{"PathGlobOtherDir", Options{Exclude: []string{"build/*"}}, "src/build/out.bin", false, false},
		{"DoubleStar", Options{Exclude: []string{"**/test/*.go"}}, "a/b/test/x.go", false, true},

		// Hidden files
		{"HiddenFile", Options{ExcludeHidden: true}, "dir/.DS_Store", false, true},
		{"HiddenDir", Options{ExcludeHidden: true}, ".git", true, true},
		{"NotHidden", Options{ExcludeHidden: true}, "dir/file", false, false},

		// Includes restrict files but keep directories
		{"IncludeMatch", Options{Include: []string{"*.jpg"}}, "photos/a.jpg", false, false},
		{"IncludeMiss", Options{Include: []string{"*.jpg"}}, "photos/a.png", false, true},
		{"IncludeKeepsDirs", Options{Include: []string{"*.jpg"}}, "photos", true, false},

		// Case sensitivity
		{"CaseSensitive", Options{Exclude: []string{"*.TMP"}}, "a.tmp", false, false},
		{"CaseInsensitive", Options{Exclude: []string{"*.TMP"}, CaseInsensitive: true}, "a.tmp", false, true},

		{"EmptySet", Options{}, "anything", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(tt.opts)
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			if got := s.Excluded(models.MustRelPath(tt.path), tt.isDir); got != tt.want {
				t.Errorf("Excluded(%q, %v) = %v, want %v", tt.path, tt.isDir, got, tt.want)
			}
		})
	}
}

func TestNew_InvalidPattern(t *testing.T) {
	if _, err := New(Options{Exclude: []string{"[unclosed"}}); err == nil {
		t.Error("New() should reject an invalid pattern")
	}
}

func TestNilSet(t *testing.T) {
	var s *Set
	if !s.Empty() {
		t.Error("nil set should be empty")
	}
	if s.Excluded(models.MustRelPath("a"), false) {
		t.Error("nil set should exclude nothing")
	}
}
