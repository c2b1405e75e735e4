// Package watch keeps a project's file graph current by feeding file system
// changes, debounced into batches, to UpdateFiles.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/HendryAvila/etgraph/internal/backend"
	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period used when Options.Debounce is zero.
const DefaultDebounce = 250 * time.Millisecond

// Updater re-records changed files. backend.Backend satisfies it.
type Updater interface {
	UpdateFiles(ctx context.Context, root string, paths []string) (backend.UpdateResult, error)
}

// Options configures a Watcher.
type Options struct {
	// Debounce is how long the tree must stay quiet before a batch is sent.
	Debounce time.Duration
	// ExcludeDirs are directory names that are neither watched nor reported.
	ExcludeDirs []string
	// SkipPaths are directories skipped by location, such as a data
	// directory that lives inside the root.
	SkipPaths []string
}

// Watcher watches every non-excluded directory under a root.
type Watcher struct {
	root     string
	updater  Updater
	debounce time.Duration
	exclude  map[string]bool
	skip     []string
	fsw      *fsnotify.Watcher
}

// New creates a Watcher for root. Call Run to start it.
func New(root string, u Updater, opts Options) (*Watcher, error) {
	abs, err := backend.AbsRoot(root)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("watch: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("watch: %s is not a directory", abs)
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: %w", err)
	}

	exclude := make(map[string]bool, len(opts.ExcludeDirs))
	for _, d := range opts.ExcludeDirs {
		exclude[d] = true
	}
	var skip []string
	for _, p := range opts.SkipPaths {
		if p == "" {
			continue
		}
		if abs, err := filepath.Abs(p); err == nil {
			skip = append(skip, abs)
		}
	}
	return &Watcher{
		root:     abs,
		updater:  u,
		debounce: opts.Debounce,
		exclude:  exclude,
		skip:     skip,
		fsw:      fsw,
	}, nil
}

// Root returns the absolute root being watched.
func (w *Watcher) Root() string { return w.root }

// Run watches until ctx is canceled. Changed files are collected until
// the tree has been quiet for the debounce period, then sent to the
// updater in one call. Update failures are logged and watching goes on.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()
	if err := w.addTree(w.root); err != nil {
		return err
	}
	slog.Info("Watching project", "root", w.root, "debounce", w.debounce)

	pending := make(map[string]bool)
	timer := time.NewTimer(w.debounce)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if w.excluded(ev.Name) || !(ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write)) {
				continue
			}
			info, err := os.Stat(ev.Name)
			if err != nil {
				continue
			}
			if info.IsDir() {
				if ev.Has(fsnotify.Create) {
					if err := w.addTree(ev.Name); err != nil {
						slog.Warn("Watching new directory", "path", ev.Name, "error", err)
					}
				}
				continue
			}
			pending[ev.Name] = true
			timer.Reset(w.debounce)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			slog.Warn("Watcher error", "root", w.root, "error", err)

		case <-timer.C:
			w.flush(ctx, pending)
			pending = make(map[string]bool)
		}
	}
}

func (w *Watcher) flush(ctx context.Context, pending map[string]bool) {
	if len(pending) == 0 {
		return
	}
	paths := make([]string, 0, len(pending))
	for p := range pending {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	res, err := w.updater.UpdateFiles(ctx, w.root, paths)
	if err != nil {
		slog.Error("Updating changed files", "root", w.root, "files", len(paths), "error", err)
		return
	}
	slog.Info("Updated changed files", "root", w.root, "files", res.FilesUpdated, "duration_ms", res.DurationMS)
}

// addTree watches dir and every non-excluded directory below it.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root && (w.exclude[d.Name()] || w.skipped(path)) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

// excluded reports whether path lies under an excluded directory.
func (w *Watcher) excluded(path string) bool {
	rel, err := filepath.Rel(w.root, path)
	if err != nil || strings.HasPrefix(rel, "..") || w.skipped(path) {
		return true
	}
	parts := strings.Split(rel, string(filepath.Separator))
	for _, part := range parts[:len(parts)-1] {
		if w.exclude[part] {
			return true
		}
	}
	return false
}

// skipped reports whether path is, or lies under, one of the skip paths.
func (w *Watcher) skipped(path string) bool {
	path = filepath.Clean(path)
	for _, s := range w.skip {
		if path == s || strings.HasPrefix(path, s+string(filepath.Separator)) {
			return true
		}
	}
	return false
}
