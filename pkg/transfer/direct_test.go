package transfer

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/sdejongh/robinhood/internal/platform"
	"github.com/sdejongh/robinhood/pkg/models"
	"github.com/sdejongh/robinhood/pkg/storage"
)

func newMemDirect(t *testing.T, bandwidth int64) (*Direct, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	fs.MkdirAll("/src", 0755)
	fs.MkdirAll("/dst", 0755)
	d := NewDirect(DirectOptions{
		Storage:        storage.OpenOptions{Fs: fs, Checksum: storage.ChecksumMD5},
		BandwidthLimit: bandwidth,
	})
	t.Cleanup(func() { d.Close() })
	return d, fs
}

func TestDirectList(t *testing.T) {
	d, fs := newMemDirect(t, 0)
	afero.WriteFile(fs, "/src/a/b.txt", []byte("hello"), 0644)

	got := make(map[string]models.RawEntry)
	for entry, err := range d.List(context.Background(), localRoot("/src")) {
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		got[entry.Path] = entry
	}
	if !got["a"].IsDir || got["a/b.txt"].Checksum != "md5:5d41402abc4b2a76b9719d911017c592" {
		t.Errorf("List() = %+v", got)
	}
}

func TestDirectListUnsupportedRoot(t *testing.T) {
	d, _ := newMemDirect(t, 0)
	root := platform.Root{Kind: platform.RootRemote, Remote: "gdrive"}

	var gotErr error
	for _, err := range d.List(context.Background(), root) {
		gotErr = err
	}
	if gotErr == nil || !strings.Contains(gotErr.Error(), "rclone") {
		t.Errorf("List() error = %v, want rclone engine hint", gotErr)
	}
}

func TestDirectCopy(t *testing.T) {
	d, fs := newMemDirect(t, 0)
	ctx := context.Background()
	content := bytes.Repeat([]byte("x"), 200*1024)
	afero.WriteFile(fs, "/src/big.bin", content, 0644)
	mtime := time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC)

	var last int64
	calls := 0
	req := CopyRequest{
		From:    localRoot("/src"),
		To:      localRoot("/dst"),
		Path:    models.MustRelPath("big.bin"),
		Size:    int64(len(content)),
		ModTime: mtime,
	}
	if err := d.Copy(ctx, req, func(n int64) { last = n; calls++ }); err != nil {
		t.Fatalf("Copy() error = %v", err)
	}

	got, err := afero.ReadFile(fs, "/dst/big.bin")
	if err != nil || !bytes.Equal(got, content) {
		t.Fatalf("destination content mismatch (err=%v, len=%d)", err, len(got))
	}
	if info, _ := fs.Stat("/dst/big.bin"); !info.ModTime().Equal(mtime) {
		t.Errorf("ModTime = %v, want %v", info.ModTime(), mtime)
	}
	if last != int64(len(content)) {
		t.Errorf("last progress = %d, want %d", last, len(content))
	}
	if calls < 2 {
		t.Errorf("progress called %d times, want several", calls)
	}

	t.Run("Directory", func(t *testing.T) {
		req := CopyRequest{From: localRoot("/src"), To: localRoot("/dst"), Path: models.MustRelPath("new/dir"), IsDir: true}
		if err := d.Copy(ctx, req, nil); err != nil {
			t.Fatalf("Copy(dir) error = %v", err)
		}
		if ok, _ := afero.DirExists(fs, "/dst/new/dir"); !ok {
			t.Error("directory not created")
		}
	})

	t.Run("MissingSource", func(t *testing.T) {
		req := CopyRequest{From: localRoot("/src"), To: localRoot("/dst"), Path: models.MustRelPath("nope"), Size: 1}
		if err := d.Copy(ctx, req, nil); err == nil {
			t.Error("Copy() of a missing file should fail")
		}
	})
}

func TestDirectCopyCancelledWhileThrottled(t *testing.T) {
	d, fs := newMemDirect(t, 1024)
	afero.WriteFile(fs, "/src/slow.bin", bytes.Repeat([]byte("y"), 256*1024), 0644)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	req := CopyRequest{From: localRoot("/src"), To: localRoot("/dst"), Path: models.MustRelPath("slow.bin"), Size: 256 * 1024}
	if err := d.Copy(ctx, req, nil); err == nil {
		t.Error("Copy() should fail when the context expires during throttling")
	}
}

func TestDirectDelete(t *testing.T) {
	d, fs := newMemDirect(t, 0)
	ctx := context.Background()
	afero.WriteFile(fs, "/dst/d/f.txt", []byte("x"), 0644)

	if err := d.Delete(ctx, DeleteRequest{Root: localRoot("/dst"), Path: models.MustRelPath("d/f.txt")}); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := d.Delete(ctx, DeleteRequest{Root: localRoot("/dst"), Path: models.MustRelPath("d"), IsDir: true}); err != nil {
		t.Fatalf("Delete(dir) error = %v", err)
	}
	if ok, _ := afero.Exists(fs, "/dst/d"); ok {
		t.Error("d should be removed")
	}
}

func TestProgressReader(t *testing.T) {
	var reports []int64
	r := newProgressReader(strings.NewReader(strings.Repeat("z", 100)), func(n int64) { reports = append(reports, n) })

	if _, err := io.Copy(io.Discard, r); err != nil {
		t.Fatalf("Copy() error = %v", err)
	}
	if len(reports) == 0 || reports[len(reports)-1] != 100 {
		t.Errorf("reports = %v, want final report of 100", reports)
	}

	if got := newProgressReader(strings.NewReader("a"), nil); got == nil {
		t.Error("nil callback should return the reader unchanged")
	}
}
