package server

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/fieldsite/fieldsite/internal/config"
	"github.com/fieldsite/fieldsite/internal/logfields"
)

const (
	// defaultQuietWindow is how long the watcher waits after the last event
	// before signaling a change. Editors tend to emit bursts.
	defaultQuietWindow = 300 * time.Millisecond
	// defaultMaxDelay caps how long a steady stream of events can postpone
	// the signal.
	defaultMaxDelay = 2 * time.Second
)

// WatchPaths lists the source paths a running server watches: the content
// dir, the config file, and the theme override paths when set.
func WatchPaths(cfg *config.Config, configPath string) []string {
	paths := []string{cfg.Content.Dir, configPath}
	if cfg.Theme.TemplatesDir != "" {
		paths = append(paths, cfg.Theme.TemplatesDir)
	}
	if cfg.Theme.Stylesheet != "" {
		paths = append(paths, cfg.Theme.Stylesheet)
	}
	return paths
}

// Watcher turns raw filesystem events into coalesced change signals: one
// signal per burst, after a quiet window, never later than the max delay.
// The signal channel has capacity one, so changes arriving while a consumer
// is busy rebuilding collapse into a single follow-up.
type Watcher struct {
	fsw     *fsnotify.Watcher
	quiet   time.Duration
	maxWait time.Duration
	events  chan struct{}
}

func NewWatcher(paths []string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	w := &Watcher{
		fsw:     fsw,
		quiet:   defaultQuietWindow,
		maxWait: defaultMaxDelay,
		events:  make(chan struct{}, 1),
	}
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := w.add(p); err != nil {
			slog.Warn("watch path", logfields.Path(p), logfields.Error(err))
		}
	}
	return w, nil
}

// add registers a file, or a directory tree recursively.
func (w *Watcher) add(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return w.fsw.Add(path)
	}
	return filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != path && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return w.fsw.Add(p)
	})
}

// Changed delivers one signal per coalesced burst of filesystem events.
func (w *Watcher) Changed() <-chan struct{} { return w.events }

// Run consumes filesystem events until ctx is canceled. New directories are
// picked up so files created under them keep triggering rebuilds.
func (w *Watcher) Run(ctx context.Context) {
	defer w.fsw.Close()

	quiet := time.NewTimer(time.Hour)
	quiet.Stop()
	maxWait := time.NewTimer(time.Hour)
	maxWait.Stop()
	pending := false

	fire := func() {
		pending = false
		quiet.Stop()
		maxWait.Stop()
		select {
		case w.events <- struct{}{}:
		default:
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if shouldIgnoreEvent(ev) {
				continue
			}
			if ev.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					_ = w.add(ev.Name)
				}
			}
			slog.Debug("source change", logfields.Path(ev.Name), "op", ev.Op.String())
			if !pending {
				pending = true
				maxWait.Reset(w.maxWait)
			}
			quiet.Reset(w.quiet)
		case <-quiet.C:
			fire()
		case <-maxWait.C:
			fire()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			slog.Warn("watch error", logfields.Error(err))
		}
	}
}

// shouldIgnoreEvent filters chmod-only noise and editor droppings.
func shouldIgnoreEvent(ev fsnotify.Event) bool {
	if ev.Op == fsnotify.Chmod {
		return true
	}
	name := filepath.Base(ev.Name)
	switch {
	case name == ".DS_Store" || name == "Thumbs.db":
		return true
	case strings.HasPrefix(name, "."):
		// Hidden files, including .#lockfiles and .swp swap files.
		return true
	case strings.HasSuffix(name, "~") || strings.HasSuffix(name, ".swp") || strings.HasSuffix(name, ".swx"):
		return true
	case strings.HasPrefix(name, "#") && strings.HasSuffix(name, "#"):
		return true
	}
	return false
}
