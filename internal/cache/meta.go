package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"

	"github.com/cfait/cfait/internal/cferr"
)

// CalendarMeta is the per-calendar bookkeeping the cache tracks alongside
// its resources (spec.md §4.5).
type CalendarMeta struct {
	DisplayName string `json:"display_name"`
	Color       string `json:"color,omitempty"`
	CTag        string `json:"ctag"`
	Disabled    bool   `json:"disabled"`
	LastSyncAt  int64  `json:"last_sync_at"`
}

// Meta is the full contents of cache/meta.json, keyed by calendar href.
type Meta struct {
	Calendars map[string]CalendarMeta `json:"calendars"`
}

func newMeta() *Meta {
	return &Meta{Calendars: make(map[string]CalendarMeta)}
}

// loadMeta reads meta.json, returning an empty Meta if it does not exist
// yet (first run against a fresh cache directory).
func loadMeta(path string) (*Meta, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return newMeta(), nil
	}
	if err != nil {
		return nil, cferr.Wrap(cferr.CacheIO, err, "read "+path)
	}
	var m Meta
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, cferr.Wrap(cferr.CacheIO, err, "parse "+path)
	}
	if m.Calendars == nil {
		m.Calendars = make(map[string]CalendarMeta)
	}
	return &m, nil
}

func saveMeta(path string, m *Meta) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return cferr.Wrap(cferr.CacheIO, err, "marshal meta.json")
	}
	return writeFileAtomically(path, data)
}

// calendarDirName derives a filesystem-safe directory name for a calendar
// href, since an href is a URL path and may contain characters no
// filesystem accepts unescaped.
func calendarDirName(href string) string {
	sum := sha256.Sum256([]byte(href))
	return hex.EncodeToString(sum[:])[:16]
}
