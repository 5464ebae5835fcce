// Package store is the facade every UI surface (CLI, and eventually a TUI)
// talks to: it owns the in-memory task index, journals every mutation
// durably before applying it, and drives the synchronizer in the
// background. No other package is allowed to mutate a *task.Task in place
// once it is indexed here.
package store

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/cfait/cfait/internal/cache"
	"github.com/cfait/cfait/internal/caldav"
	"github.com/cfait/cfait/internal/cferr"
	"github.com/cfait/cfait/internal/config"
	"github.com/cfait/cfait/internal/journal"
	syncengine "github.com/cfait/cfait/internal/sync"
	"github.com/cfait/cfait/internal/task"
)

// UncategorizedTag is the synthetic tag bucket for tasks with no tags at
// all, per original_source/src/store.rs's UNCATEGORIZED_ID sentinel.
const UncategorizedTag = ":::uncategorized:::"

// Store owns the in-memory index of every task across every calendar, plus
// handles on the cache, journal, and (when online) the CalDAV client and
// synchronizer. All mutator methods follow the same four-step contract:
// apply the change to the in-memory index, append it to the journal,
// signal the background sync loop, and return without waiting on the
// network (spec.md §5).
type Store struct {
	cfg *config.Config
	log *slog.Logger

	cache   *cache.Cache
	journal *journal.Journal
	client  *caldav.Client
	sync    *syncengine.Synchronizer

	mu        sync.Mutex
	index     task.MapIndex
	calendars map[string]*task.Calendar

	syncMu  sync.Mutex
	syncing bool

	syncSignal chan struct{}
}

// Bootstrap loads config, opens the cache and journal, and attempts CalDAV
// discovery. A missing config URL, or a discovery failure against a
// reachable-but-misconfigured server, degrades to offline mode rather than
// failing outright: the Local calendar always works, and whatever
// accumulates in the journal is flushed the next time Sync succeeds
// against a real server (original_source/src/mobile.rs's engine
// construction tolerates the same "no network yet" startup state).
func Bootstrap(configPath string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	dataDir, err := config.DefaultDataDir()
	if err != nil {
		return nil, err
	}

	c, err := cache.Open(filepath.Join(dataDir, "cache"))
	if err != nil {
		return nil, err
	}
	j, err := journal.Open(filepath.Join(dataDir, "journal.log"))
	if err != nil {
		_ = c.Close()
		return nil, err
	}

	s := &Store{
		cfg:        cfg,
		log:        logger,
		cache:      c,
		journal:    j,
		index:      make(task.MapIndex),
		calendars:  map[string]*task.Calendar{},
		syncSignal: make(chan struct{}, 1),
	}

	local := task.NewLocalCalendar()
	s.calendars[local.Href] = &local

	if cfg.URL != "" {
		client, cerr := caldav.New(caldav.Config{
			URL:                cfg.URL,
			Username:           cfg.Username,
			Password:           cfg.Password,
			AllowInsecureCerts: cfg.AllowInsecureCerts,
		})
		if cerr != nil {
			logger.Warn("caldav client init failed, staying offline", slog.String("op", "bootstrap"), slog.Any("err", cerr))
		} else if infos, derr := client.Discover(context.Background()); derr != nil {
			logger.Warn("calendar discovery failed, staying offline", slog.String("op", "bootstrap"), slog.Any("err", derr))
		} else {
			s.client = client
			s.sync = syncengine.New(client, c, j)
			for _, info := range infos {
				cal := &task.Calendar{
					Href:        info.Href,
					DisplayName: info.DisplayName,
					Color:       info.Color,
					CTag:        info.CTag,
					Disabled:    cfg.IsCalendarDisabled(info.Href),
					Visible:     true,
				}
				s.calendars[cal.Href] = cal
			}
		}
	}

	if err := s.LoadFromCache(); err != nil {
		_ = j.Close()
		_ = c.Close()
		return nil, err
	}

	return s, nil
}

// Close releases the cache lock and journal file handle.
func (s *Store) Close() error {
	jerr := s.journal.Close()
	cerr := s.cache.Close()
	if jerr != nil {
		return jerr
	}
	return cerr
}

// Config returns the loaded configuration, for callers that need
// view-preference fields (HideCompleted, SortCutoffMonths, ...).
func (s *Store) Config() *config.Config { return s.cfg }

// Online reports whether Bootstrap successfully reached a CalDAV server.
func (s *Store) Online() bool { return s.sync != nil }

// Calendars returns every known calendar, Local first.
func (s *Store) Calendars() []*task.Calendar {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*task.Calendar, 0, len(s.calendars))
	if local, ok := s.calendars[task.LocalCalendarHref]; ok {
		out = append(out, local)
	}
	for href, cal := range s.calendars {
		if href == task.LocalCalendarHref {
			continue
		}
		out = append(out, cal)
	}
	return out
}

// LoadFromCache repopulates the in-memory index from every calendar's
// cached resources and recomputes derived fields (Depth, Blocked). Called
// once at startup and safe to call again to recover from a corrupted
// in-memory state.
func (s *Store) LoadFromCache() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	index := make(task.MapIndex)
	for href := range s.calendars {
		tasks, err := s.cache.ListTasks(href)
		if err != nil {
			return err
		}
		for _, t := range tasks {
			index[t.UID] = t
		}
	}
	s.index = index
	s.rebuildDerivedLocked()
	return nil
}

func (s *Store) rebuildDerivedLocked() {
	all := make([]*task.Task, 0, len(s.index))
	for _, t := range s.index {
		all = append(all, t)
	}
	task.RebuildDerived(all, s.index)
}

// ByUID returns the task with the given UID, if indexed.
func (s *Store) ByUID(uid string) (*task.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.index[uid]
	if !ok {
		return nil, false
	}
	return t, true
}

// metasLocked builds the cache.CalendarMeta map the synchronizer needs,
// from the current calendar set. Caller must hold s.mu.
func (s *Store) metasLocked() map[string]cache.CalendarMeta {
	metas := make(map[string]cache.CalendarMeta, len(s.calendars))
	for href, cal := range s.calendars {
		metas[href] = cache.CalendarMeta{
			DisplayName: cal.DisplayName,
			Color:       cal.Color,
			CTag:        cal.CTag,
			Disabled:    cal.Disabled || !cal.Visible,
			LastSyncAt:  cal.LastSyncAt,
		}
	}
	return metas
}

// SignalSync requests a background sync without blocking the caller. If a
// sync is already pending (signalled but not yet started), the request is
// coalesced into it — the channel is buffered 1 and a full buffer means a
// sync is already queued, so the extra signal is dropped rather than
// blocking.
func (s *Store) SignalSync() {
	select {
	case s.syncSignal <- struct{}{}:
	default:
	}
}

// RunSyncLoop blocks, calling Sync every time SignalSync fires, until ctx
// is cancelled. Callers run this in its own goroutine; it is the
// asynchronous half of the mutator contract's "sync-signal" step.
func (s *Store) RunSyncLoop(ctx context.Context, onResult func(*syncengine.Result, error)) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.syncSignal:
			result, err := s.Sync(ctx)
			if onResult != nil {
				onResult(result, err)
			}
		}
	}
}

// WatchCache watches the on-disk cache for changes made by another cfait
// process sharing the same data directory (a second CLI invocation, or a
// mobile bridge) and reloads the in-memory index whenever one is seen.
// Blocks until ctx is cancelled; callers run it in its own goroutine.
func (s *Store) WatchCache(ctx context.Context) error {
	w, err := cache.NewWatcher(s.cache, func() {
		if err := s.LoadFromCache(); err != nil && s.log != nil {
			s.log.Error("cache reload after external change failed", slog.String("op", "watch_cache"), slog.Any("err", err))
		}
	})
	if err != nil {
		return err
	}
	defer w.Close()

	w.Run(ctx, func(err error) {
		if s.log != nil {
			s.log.Error("cache watch error", slog.String("op", "watch_cache"), slog.Any("err", err))
		}
	})
	return nil
}

// Sync runs one synchronization pass. A call made while one is already in
// flight does not join it or wait for it: it returns immediately with a
// LockBusy "already syncing" error (spec.md §4.8), so callers such as the
// --watch loop's ticker never pile up waiting on a slow pull.
func (s *Store) Sync(ctx context.Context) (*syncengine.Result, error) {
	if s.sync == nil {
		return nil, cferr.New(cferr.Transport, "no CalDAV connection configured")
	}

	s.syncMu.Lock()
	if s.syncing {
		s.syncMu.Unlock()
		return nil, cferr.New(cferr.LockBusy, "already syncing")
	}
	s.syncing = true
	s.syncMu.Unlock()

	s.mu.Lock()
	metas := s.metasLocked()
	s.mu.Unlock()

	result, err := s.sync.Sync(ctx, metas)
	if err != nil && s.log != nil {
		s.log.Error("sync failed", slog.String("op", "sync"), slog.Any("err", err))
	} else if result != nil && s.log != nil && (len(result.Upserted) > 0 || len(result.Removed) > 0) {
		s.log.Info("sync applied",
			slog.String("op", "sync"),
			slog.Int("upserted", len(result.Upserted)),
			slog.Int("removed", len(result.Removed)),
		)
	}

	s.mu.Lock()
	if result != nil {
		s.applySyncResultLocked(result)
	}
	for href, m := range metas {
		if cal, ok := s.calendars[href]; ok {
			cal.CTag = m.CTag
			cal.LastSyncAt = m.LastSyncAt
		}
	}
	s.mu.Unlock()

	s.syncMu.Lock()
	s.syncing = false
	s.syncMu.Unlock()

	return result, err
}

func (s *Store) applySyncResultLocked(result *syncengine.Result) {
	for _, t := range result.Upserted {
		s.index[t.UID] = t
	}
	for _, t := range result.Conflicts {
		s.index[t.UID] = t
	}
	for _, rm := range result.Removed {
		delete(s.index, rm.UID)
	}
	s.rebuildDerivedLocked()
}
