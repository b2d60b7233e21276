package ingest

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestListMedia(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "a.PNG"))
	touch(t, filepath.Join(root, "notes.txt"))
	touch(t, filepath.Join(root, "sub", "memo.m4a"))
	touch(t, filepath.Join(root, ".hidden", "b.jpg"))

	paths, stats, err := ListMedia(root, true)
	if err != nil {
		t.Fatalf("ListMedia error = %v", err)
	}
	sort.Strings(paths)
	want := []string{filepath.Join(root, "a.PNG"), filepath.Join(root, "sub", "memo.m4a")}
	if len(paths) != len(want) || paths[0] != want[0] || paths[1] != want[1] {
		t.Fatalf("ListMedia = %v, want %v", paths, want)
	}
	if stats.Matched != 2 {
		t.Fatalf("Matched = %d, want 2", stats.Matched)
	}
}

func TestWatcherEmitsInitialAndNewFiles(t *testing.T) {
	root := t.TempDir()
	existing := filepath.Join(root, "old.jpg")
	touch(t, existing)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, _, err := StartWatcher(ctx, WatchConfig{
		Roots:       []string{root},
		InitialScan: true,
		Debounce:    20 * time.Millisecond,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("StartWatcher error = %v", err)
	}

	next := func() string {
		select {
		case p := <-events:
			return p
		case <-time.After(3 * time.Second):
			t.Fatal("timed out waiting for watcher event")
			return ""
		}
	}
	if got := next(); got != existing {
		t.Fatalf("initial event = %s, want %s", got, existing)
	}

	touch(t, filepath.Join(root, "ignored.txt"))
	fresh := filepath.Join(root, "new.wav")
	touch(t, fresh)
	if got := next(); got != fresh {
		t.Fatalf("event = %s, want %s", got, fresh)
	}

	cancel()
	for range events {
	}
}

func TestWatcherRequiresRoots(t *testing.T) {
	if _, _, err := StartWatcher(context.Background(), WatchConfig{}, nil); err == nil {
		t.Fatal("StartWatcher without roots should fail")
	}
}
