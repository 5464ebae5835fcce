// Package cache implements the on-disk store of last-known-server VTODO
// bodies and calendar bookkeeping described in spec.md §4.5: one .ics file
// per resource under cache/<calendar-id>/ (or local/ for the synthetic
// Local calendar), a meta.json of per-calendar CTag/display data, an
// exclusive sentinel lock for the whole cache directory, and atomic writes
// throughout.
package cache

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/cfait/cfait/internal/cferr"
	"github.com/cfait/cfait/internal/filelock"
	"github.com/cfait/cfait/internal/task"
	"github.com/cfait/cfait/internal/vtodo"
)

const (
	metaFileName  = "meta.json"
	lockFileName  = ".lock"
	localsDirName = "local"
	calendarsDir  = "cache"
	icsExtension  = ".ics"
)

// Cache is a locked handle on one cache directory. Callers must Close it
// on every exit path to release the sentinel lock.
type Cache struct {
	baseDir string
	unlock  func() error
}

// Open acquires the exclusive sentinel lock (blocking) and ensures the
// cache directory layout exists.
func Open(baseDir string) (*Cache, error) {
	if err := os.MkdirAll(baseDir, 0o700); err != nil {
		return nil, cferr.Wrap(cferr.CacheIO, err, "create cache directory "+baseDir)
	}
	unlock, err := filelock.Lock(filepath.Join(baseDir, lockFileName))
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Join(baseDir, calendarsDir), 0o700); err != nil {
		_ = unlock()
		return nil, cferr.Wrap(cferr.CacheIO, err, "create calendars directory")
	}
	if err := os.MkdirAll(filepath.Join(baseDir, localsDirName), 0o700); err != nil {
		_ = unlock()
		return nil, cferr.Wrap(cferr.CacheIO, err, "create local directory")
	}
	return &Cache{baseDir: baseDir, unlock: unlock}, nil
}

// Close releases the sentinel lock.
func (c *Cache) Close() error {
	return c.unlock()
}

func (c *Cache) metaPath() string {
	return filepath.Join(c.baseDir, metaFileName)
}

// LoadMeta reads the calendar bookkeeping file.
func (c *Cache) LoadMeta() (*Meta, error) {
	return loadMeta(c.metaPath())
}

// SaveMeta atomically writes the calendar bookkeeping file.
func (c *Cache) SaveMeta(m *Meta) error {
	return saveMeta(c.metaPath(), m)
}

// resourceDir returns the directory a calendar's resources live under:
// local/ for task.LocalCalendarHref, cache/<hash of href>/ otherwise.
func (c *Cache) resourceDir(calendarHref string) string {
	if task.IsLocalHref(calendarHref) {
		return filepath.Join(c.baseDir, localsDirName)
	}
	return filepath.Join(c.baseDir, calendarsDir, calendarDirName(calendarHref))
}

func (c *Cache) resourcePath(calendarHref, uid string) string {
	return filepath.Join(c.resourceDir(calendarHref), uid+icsExtension)
}

// hrefEtagHeader and etagHeader frame a two-line prefix carrying the
// resource's Href and ETag ahead of the VCALENDAR body. Neither has a home
// inside an iCalendar document (they're HTTP resource metadata, not task
// data), so they're stored out-of-band in the same file rather than in a
// second sidecar file per resource.
const hrefEtagHeader = "X-CFAIT-HREF:"
const etagHeader = "X-CFAIT-ETAG:"

// PutTask atomically writes t's encoded VTODO body into the cache,
// prefixed with its Href/ETag so a later GetTask can restore them.
func (c *Cache) PutTask(calendarHref string, t *task.Task) error {
	body := hrefEtagHeader + t.Href + "\n" + etagHeader + t.ETag + "\n" + vtodo.Encode(t)
	return writeFileAtomically(c.resourcePath(calendarHref, t.UID), []byte(body))
}

// GetTask reads and decodes one cached resource.
func (c *Cache) GetTask(calendarHref, uid string) (*task.Task, error) {
	path := c.resourcePath(calendarHref, uid)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, cferr.Newf(cferr.NotFound, "no cached task %s in %s", uid, calendarHref)
		}
		return nil, cferr.Wrap(cferr.CacheIO, err, "read "+path)
	}
	href, etag, body := splitHrefEtagHeader(string(data))
	t, err := vtodo.Decode(body, etag, href, calendarHref)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// splitHrefEtagHeader strips the X-CFAIT-HREF/X-CFAIT-ETAG prefix PutTask
// writes ahead of the VCALENDAR body, tolerating a file that predates the
// prefix (no leading X-CFAIT-HREF line) by treating the whole thing as body.
func splitHrefEtagHeader(data string) (href, etag, body string) {
	rest := data
	if strings.HasPrefix(rest, hrefEtagHeader) {
		nl := strings.IndexByte(rest, '\n')
		if nl < 0 {
			return "", "", data
		}
		href = strings.TrimPrefix(rest[:nl], hrefEtagHeader)
		rest = rest[nl+1:]
	}
	if strings.HasPrefix(rest, etagHeader) {
		nl := strings.IndexByte(rest, '\n')
		if nl < 0 {
			return href, "", data
		}
		etag = strings.TrimPrefix(rest[:nl], etagHeader)
		rest = rest[nl+1:]
	}
	return href, etag, rest
}

// DeleteTask removes one cached resource. Deleting an already-absent
// resource is not an error, since callers may race a pull against a
// journal-driven delete of the same uid.
func (c *Cache) DeleteTask(calendarHref, uid string) error {
	err := os.Remove(c.resourcePath(calendarHref, uid))
	if err != nil && !os.IsNotExist(err) {
		return cferr.Wrap(cferr.CacheIO, err, "delete "+c.resourcePath(calendarHref, uid))
	}
	return nil
}

// ListTasks decodes every cached resource for a calendar. A resource that
// fails to decode is skipped rather than failing the whole listing, since
// the fast-path load from cache must never block on one corrupt file
// (spec.md §4.5: "cache is loaded first" as an optimistic fast path).
func (c *Cache) ListTasks(calendarHref string) ([]*task.Task, error) {
	dir := c.resourceDir(calendarHref)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, cferr.Wrap(cferr.CacheIO, err, "read directory "+dir)
	}

	var out []*task.Task
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), icsExtension) {
			continue
		}
		uid := strings.TrimSuffix(e.Name(), icsExtension)
		t, err := c.GetTask(calendarHref, uid)
		if err != nil {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

// BaseDir returns the cache root, e.g. so the journal can be colocated
// with it.
func (c *Cache) BaseDir() string { return c.baseDir }
