// Package watch rebuilds the documentation when its sources change.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	derrors "github.com/substra/docpipeline/internal/errors"
	"github.com/substra/docpipeline/internal/logfields"
)

// DefaultDebounce groups bursts of editor writes into one rebuild.
const DefaultDebounce = 300 * time.Millisecond

// RebuildFunc performs one rebuild. Errors are logged; watching continues.
type RebuildFunc func(ctx context.Context) error

// Watcher triggers debounced rebuilds on changes below its roots. Rebuilds
// run on a single goroutine and never overlap.
type Watcher struct {
	roots    []string
	skip     []string
	debounce time.Duration
	rebuild  RebuildFunc
	ready    chan struct{}
}

// New creates a watcher over roots (watched recursively).
func New(rebuild RebuildFunc, roots ...string) *Watcher {
	return &Watcher{roots: roots, debounce: DefaultDebounce, rebuild: rebuild, ready: make(chan struct{})}
}

// WithDebounce sets the quiet period before a rebuild starts.
func (w *Watcher) WithDebounce(d time.Duration) *Watcher {
	if d > 0 {
		w.debounce = d
	}
	return w
}

// Skip excludes directories (e.g. the build output) from watching.
func (w *Watcher) Skip(paths ...string) *Watcher {
	for _, p := range paths {
		w.skip = append(w.skip, filepath.Clean(p))
	}
	return w
}

// Ready is closed once every root is being watched.
func (w *Watcher) Ready() <-chan struct{} { return w.ready }

// Run watches until ctx is canceled. It returns nil on cancellation.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return derrors.Wrap(err, derrors.CategoryRuntime, derrors.SeverityFatal, "fsnotify")
	}
	defer func() { _ = fsw.Close() }()

	for _, root := range w.roots {
		if info, err := os.Stat(root); err != nil || !info.IsDir() {
			if err == nil {
				err = fmt.Errorf("%s is not a directory", root)
			}
			return derrors.PathMissing(root, err)
		}
		w.addDirsRecursive(fsw, root)
	}

	requests := make(chan struct{}, 1)
	var (
		mu    sync.Mutex
		timer *time.Timer
	)
	trigger := func() {
		mu.Lock()
		defer mu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(w.debounce, func() {
			select {
			case requests <- struct{}{}:
			default: // a rebuild is already pending
			}
		})
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case <-requests:
				w.process(ctx)
			}
		}
	}()

	slog.Info("Watching documentation sources", slog.Any("roots", w.roots))
	close(w.ready)
	for {
		select {
		case <-ctx.Done():
			mu.Lock()
			if timer != nil {
				timer.Stop()
			}
			mu.Unlock()
			wg.Wait()
			return nil
		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(fsw, ev, trigger)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watcher error", logfields.Error(err))
		}
	}
}

func (w *Watcher) process(ctx context.Context) {
	slog.Info("Change detected; rebuilding")
	start := time.Now()
	if err := w.rebuild(ctx); err != nil {
		slog.Warn("rebuild failed", logfields.Error(err), logfields.Duration(time.Since(start)))
		return
	}
	slog.Info("Rebuild finished", logfields.Duration(time.Since(start)))
}

func (w *Watcher) handleEvent(fsw *fsnotify.Watcher, ev fsnotify.Event, trigger func()) {
	if shouldIgnoreEvent(ev.Name) || w.skipped(ev.Name) {
		return
	}
	if ev.Has(fsnotify.Create) {
		if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
			w.addDirsRecursive(fsw, ev.Name)
		}
	}
	slog.Debug("File change detected", logfields.Path(ev.Name), slog.String("op", ev.Op.String()))
	trigger()
}

func (w *Watcher) addDirsRecursive(fsw *fsnotify.Watcher, root string) {
	_ = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if w.skipped(path) || (path != root && strings.HasPrefix(d.Name(), ".")) {
			return filepath.SkipDir
		}
		if err := fsw.Add(path); err != nil {
			slog.Warn("watch add failed", logfields.Path(path), logfields.Error(err))
		}
		return nil
	})
}

func (w *Watcher) skipped(path string) bool {
	path = filepath.Clean(path)
	for _, s := range w.skip {
		if path == s || strings.HasPrefix(path, s+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// shouldIgnoreEvent returns true for hidden, editor swap and OS metadata files.
func shouldIgnoreEvent(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return true
	}
	if strings.HasSuffix(base, "~") ||
		strings.HasSuffix(base, ".swp") ||
		strings.HasSuffix(base, ".swx") ||
		(strings.HasPrefix(base, "#") && strings.HasSuffix(base, "#")) {
		return true
	}
	return base == "Thumbs.db"
}
