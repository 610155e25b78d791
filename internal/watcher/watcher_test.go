package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"
)

type collector struct {
	mu    sync.Mutex
	paths []string
}

func (c *collector) add(path string) {
	c.mu.Lock()
	c.paths = append(c.paths, path)
	c.mu.Unlock()
}

func (c *collector) snapshot() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := append([]string(nil), c.paths...)
	sort.Strings(out)
	return out
}

func txtOnly(path string) bool { return strings.HasSuffix(path, ".txt") }

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
}

func TestWatcher_DebounceAndFilter(t *testing.T) {
	dir := t.TempDir()
	var got collector
	w := New([]string{dir}, txtOnly, got.add, WithDebounce(100*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	path := filepath.Join(dir, "memo.txt")
	writeFile(t, path, "first")
	writeFile(t, path, "second")
	writeFile(t, filepath.Join(dir, "slides.pptx"), "ignored")

	waitFor(t, func() bool { return len(got.snapshot()) >= 1 })
	time.Sleep(300 * time.Millisecond)
	if paths := got.snapshot(); len(paths) != 1 || paths[0] != path {
		t.Errorf("onFile calls = %v, want one call for %s", paths, path)
	}
}

func TestWatcher_NewDirectoryIsWatched(t *testing.T) {
	dir := t.TempDir()
	var got collector
	w := New([]string{dir}, txtOnly, got.add, WithDebounce(50*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	sub := filepath.Join(dir, "q3")
	if err := os.Mkdir(sub, 0755); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)
	nested := filepath.Join(sub, "report.txt")
	writeFile(t, nested, "quarterly report")

	waitFor(t, func() bool {
		for _, p := range got.snapshot() {
			if p == nested {
				return true
			}
		}
		return false
	})
}

func TestWatcher_StartCreatesMissingRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "inbox")
	w := New([]string{root}, nil, func(string) {})
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		t.Errorf("root not created: %v", err)
	}
}

func TestWatcher_SyncFeedsExistingFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "a"), 0755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(dir, "one.txt"), "1")
	writeFile(t, filepath.Join(dir, "a", "two.txt"), "2")
	writeFile(t, filepath.Join(dir, "a", "skip.bin"), "x")

	var got collector
	New([]string{dir}, txtOnly, got.add).Sync()
	want := []string{filepath.Join(dir, "a", "two.txt"), filepath.Join(dir, "one.txt")}
	sort.Strings(want)
	paths := got.snapshot()
	if len(paths) != 2 || paths[0] != want[0] || paths[1] != want[1] {
		t.Errorf("Sync fed %v, want %v", paths, want)
	}
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	w := New([]string{t.TempDir()}, nil, func(string) {})
	ctx, cancel := context.WithCancel(context.Background())
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	w.Stop()
	w.Stop()
	cancel()
}
