package cache

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchDebounce coalesces a burst of cache writes (e.g. a per-calendar
// batch swap during a pull) into a single UI refresh notification.
const watchDebounce = 150 * time.Millisecond

// Watcher notifies a callback, debounced, whenever one of the directories
// NewWatcher watches changes — used by a long-running UI to refresh its
// view after a sync driven by another process shares the same cache.
//
// Grounded on twiced-technology-gmbh-agentwatch/internal/watcher, adapted
// from watching kanban board directories to watching this cache's
// directories.
type Watcher struct {
	fsw      *fsnotify.Watcher
	mu       sync.Mutex
	timer    *time.Timer
	callback func()
}

// NewWatcher watches the cache root (where meta.json lives), the directory
// holding the per-calendar directories, and the local resource directory,
// invoking callback (debounced) on each change. The watch is not recursive:
// a write inside an existing per-calendar directory is not reported.
func NewWatcher(c *Cache, callback func()) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	paths := []string{c.baseDir, filepath.Join(c.baseDir, calendarsDir), filepath.Join(c.baseDir, localsDirName)}
	for _, p := range paths {
		if err := fsw.Add(p); err != nil {
			_ = fsw.Close()
			return nil, err
		}
	}

	return &Watcher{fsw: fsw, callback: callback}, nil
}

// Run blocks, dispatching debounced callbacks, until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context, errFn func(error)) {
	for {
		select {
		case <-ctx.Done():
			w.mu.Lock()
			if w.timer != nil {
				w.timer.Stop()
			}
			w.mu.Unlock()
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			w.debounce()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			if errFn != nil {
				errFn(err)
			}
		}
	}
}

// Close stops the underlying filesystem watch.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

func (w *Watcher) debounce() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(watchDebounce, w.callback)
}
