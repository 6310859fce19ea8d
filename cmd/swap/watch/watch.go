// Package watch reports debounced changes to replacement and settings files.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/samber/lo"
)

const DefaultDebounce = 100 * time.Millisecond

// Target is a directory to watch and what to do when it changes.
type Target struct {
	Name string
	Dir  string
	// Recursive also watches subdirectories, including ones created later.
	Recursive bool
	// Files limits events to these base names (case-insensitive). Empty
	// means any file.
	Files []string
	// OnChange runs on the Run goroutine after changes settle.
	OnChange func()
}

func (t Target) matches(path string) bool {
	dir := filepath.Clean(filepath.Dir(path))
	root := filepath.Clean(t.Dir)
	if dir != root {
		if !t.Recursive {
			return false
		}
		rel, err := filepath.Rel(root, dir)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return false
		}
	}
	if len(t.Files) == 0 {
		return true
	}
	base := filepath.Base(path)
	return lo.ContainsBy(t.Files, func(name string) bool {
		return strings.EqualFold(name, base)
	})
}

type Watcher struct {
	fsw      *fsnotify.Watcher
	targets  []Target
	debounce time.Duration
	log      *slog.Logger
}

// New creates a watcher over targets. Directories that don't exist are
// skipped.
func New(targets []Target, debounce time.Duration, log *slog.Logger) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if log == nil {
		log = slog.Default()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	w := &Watcher{fsw: fsw, targets: targets, debounce: debounce, log: log}
	for _, t := range targets {
		w.addDir(t.Dir, t.Recursive)
	}
	return w, nil
}

func (w *Watcher) addDir(dir string, recursive bool) {
	if !recursive {
		if err := w.fsw.Add(dir); err != nil {
			w.log.Debug("not watching directory", "dir", dir, "error", err)
		}
		return
	}
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			w.log.Debug("not watching directory", "dir", path, "error", err)
			return nil
		}
		if d.IsDir() {
			if err := w.fsw.Add(path); err != nil {
				w.log.Debug("not watching directory", "dir", path, "error", err)
			}
		}
		return nil
	})
}

// Watched returns the directories currently watched.
func (w *Watcher) Watched() []string {
	return w.fsw.WatchList()
}

// Run delivers changes until ctx is done, then closes the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer func() { _ = w.fsw.Close() }()

	fired := make(chan int, len(w.targets))
	timers := make([]*time.Timer, len(w.targets))
	defer func() {
		for _, t := range timers {
			if t != nil {
				t.Stop()
			}
		}
	}()

	schedule := func(i int) {
		if timers[i] != nil {
			timers[i].Stop()
		}
		timers[i] = time.AfterFunc(w.debounce, func() {
			select {
			case fired <- i:
			default:
			}
		})
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if event.Op&fsnotify.Create == fsnotify.Create {
				w.watchNewDir(event.Name)
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			for i, t := range w.targets {
				if t.matches(event.Name) {
					schedule(i)
				}
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("file watcher error", "error", err)

		case i := <-fired:
			t := w.targets[i]
			w.log.Debug("files changed", "target", t.Name, "dir", t.Dir)
			if t.OnChange != nil {
				t.OnChange()
			}
		}
	}
}

func (w *Watcher) watchNewDir(path string) {
	for _, t := range w.targets {
		if t.Recursive && t.matchesDir(path) {
			w.addDir(path, true)
			return
		}
	}
}

func (t Target) matchesDir(path string) bool {
	rel, err := filepath.Rel(filepath.Clean(t.Dir), filepath.Clean(path))
	return err == nil && rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
