package server

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/fieldsite/fieldsite/internal/config"
)

func startWatcher(t *testing.T, dir string, quiet, maxWait time.Duration) *Watcher {
	t.Helper()
	w, err := NewWatcher([]string{dir})
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	w.quiet = quiet
	w.maxWait = maxWait
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go w.Run(ctx)
	// Give the watcher a moment to settle before the test writes files.
	time.Sleep(20 * time.Millisecond)
	return w
}

func TestWatcher_CoalescesEventBurst(t *testing.T) {
	dir := t.TempDir()
	w := startWatcher(t, dir, 50*time.Millisecond, time.Second)

	for i := 0; i < 3; i++ {
		name := filepath.Join(dir, fmt.Sprintf("note%d.md", i))
		if err := os.WriteFile(name, []byte("x"), 0644); err != nil {
			t.Fatalf("write: %v", err)
		}
		time.Sleep(5 * time.Millisecond)
	}

	select {
	case <-w.Changed():
	case <-time.After(2 * time.Second):
		t.Fatal("no change signal for burst")
	}
	select {
	case <-w.Changed():
		t.Fatal("burst produced a second signal")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcher_MaxDelayBoundsSteadyStream(t *testing.T) {
	dir := t.TempDir()
	w := startWatcher(t, dir, 100*time.Millisecond, 250*time.Millisecond)

	// A write every 30ms keeps resetting the quiet window, so only the max
	// delay can deliver a signal while the stream is still running.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 30; i++ {
			_ = os.WriteFile(filepath.Join(dir, "note.md"), []byte(strconv.Itoa(i)), 0644)
			time.Sleep(30 * time.Millisecond)
		}
	}()

	select {
	case <-w.Changed():
	case <-done:
		t.Fatal("no signal while events kept streaming")
	}
}

func TestWatcher_PicksUpNewDirectories(t *testing.T) {
	dir := t.TempDir()
	w := startWatcher(t, dir, 30*time.Millisecond, time.Second)

	sub := filepath.Join(dir, "notes")
	if err := os.Mkdir(sub, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	select {
	case <-w.Changed():
	case <-time.After(2 * time.Second):
		t.Fatal("no signal for new directory")
	}

	// The new directory must now be watched itself.
	time.Sleep(50 * time.Millisecond)
	if err := os.WriteFile(filepath.Join(sub, "inner.md"), []byte("x"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	select {
	case <-w.Changed():
	case <-time.After(2 * time.Second):
		t.Fatal("no signal for file inside new directory")
	}
}

func TestShouldIgnoreEvent(t *testing.T) {
	cases := []struct {
		name string
		op   fsnotify.Op
		want bool
	}{
		{"docs/post.md", fsnotify.Write, false},
		{"docs/new-dir", fsnotify.Create, false},
		{"docs/.post.md.swp", fsnotify.Write, true},
		{"docs/post.md~", fsnotify.Write, true},
		{"docs/#post.md#", fsnotify.Create, true},
		{"docs/.DS_Store", fsnotify.Create, true},
		{"docs/Thumbs.db", fsnotify.Create, true},
		{"docs/.hidden.md", fsnotify.Write, true},
		{"docs/post.md", fsnotify.Chmod, true},
	}
	for _, tc := range cases {
		ev := fsnotify.Event{Name: tc.name, Op: tc.op}
		if got := shouldIgnoreEvent(ev); got != tc.want {
			t.Errorf("shouldIgnoreEvent(%q, %v) = %v, want %v", tc.name, tc.op, got, tc.want)
		}
	}
}

func TestWatchPaths(t *testing.T) {
	cfg := &config.Config{}
	cfg.Content.Dir = "docs"

	got := WatchPaths(cfg, "fieldsite.yaml")
	if len(got) != 2 || got[0] != "docs" || got[1] != "fieldsite.yaml" {
		t.Fatalf("WatchPaths = %v", got)
	}

	cfg.Theme.TemplatesDir = "templates"
	cfg.Theme.Stylesheet = "site.css"
	got = WatchPaths(cfg, "fieldsite.yaml")
	if len(got) != 4 || got[2] != "templates" || got[3] != "site.css" {
		t.Fatalf("WatchPaths with theme overrides = %v", got)
	}
}
