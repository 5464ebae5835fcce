// Package config loads and saves Cfait's TOML configuration file
// (spec.md §6): CalDAV connection details, calendar visibility, view
// preferences, sort tuning, and tag aliases.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/cfait/cfait/internal/cferr"
	"github.com/cfait/cfait/internal/filelock"
)

// Config is the on-disk shape of cfait.toml.
type Config struct {
	URL                    string   `mapstructure:"url"`
	Username               string   `mapstructure:"username"`
	Password               string   `mapstructure:"password"`
	AllowInsecureCerts     bool     `mapstructure:"allow_insecure_certs"`
	DefaultCalendar        string   `mapstructure:"default_calendar"`
	DisabledCalendars      []string `mapstructure:"disabled_calendars"`
	HideCompleted          bool     `mapstructure:"hide_completed"`
	HideFullyCompletedTags bool     `mapstructure:"hide_fully_completed_tags"`
	SortCutoffMonths       int      `mapstructure:"sort_cutoff_months"`

	TagAliases map[string][]string `mapstructure:"tag_aliases"`

	path string
}

const defaultSortCutoffMonths = 6

func defaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", cferr.Wrap(cferr.CacheIO, err, "resolve home directory")
	}
	xdgConfig := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME"))
	if xdgConfig == "" {
		xdgConfig = filepath.Join(home, ".config")
	}
	return filepath.Join(xdgConfig, "cfait"), nil
}

// DefaultPath returns the conventional location of cfait.toml, honoring
// XDG_CONFIG_HOME the way the rest of the pack's config loaders do.
func DefaultPath() (string, error) {
	dir, err := defaultDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "cfait.toml"), nil
}

// DefaultDataDir returns the conventional cache/journal root,
// `<data_dir>/cfait` per spec.md §6, honoring XDG_DATA_HOME.
func DefaultDataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", cferr.Wrap(cferr.CacheIO, err, "resolve home directory")
	}
	xdgData := strings.TrimSpace(os.Getenv("XDG_DATA_HOME"))
	if xdgData == "" {
		xdgData = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(xdgData, "cfait"), nil
}

// Load reads path (creating no file if absent — an absent config is valid,
// meaning "offline, Local calendar only"), applying defaults for anything
// unset.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")

	v.SetDefault("allow_insecure_certs", false)
	v.SetDefault("hide_completed", false)
	v.SetDefault("hide_fully_completed_tags", false)
	v.SetDefault("sort_cutoff_months", defaultSortCutoffMonths)
	v.SetDefault("disabled_calendars", []string{})
	v.SetDefault("tag_aliases", map[string][]string{})

	if err := v.ReadInConfig(); err != nil {
		if !os.IsNotExist(err) {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, cferr.Wrap(cferr.InvalidFormat, err, "parse config "+path)
			}
		}
	}

	cfg := &Config{path: path}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, cferr.Wrap(cferr.InvalidFormat, err, "unmarshal config "+path)
	}
	if cfg.SortCutoffMonths <= 0 {
		cfg.SortCutoffMonths = defaultSortCutoffMonths
	}
	if cfg.TagAliases == nil {
		cfg.TagAliases = make(map[string][]string)
	}
	return cfg, nil
}

// Save writes cfg back to its source path through the same atomic-write +
// advisory-lock discipline the cache uses for its own files (spec.md §4.5):
// an exclusive lock on a sentinel file serializes concurrent savers, and
// viper's WriteConfigAs targets a temp file in the same directory that is
// fsynced and renamed into place, so a crash mid-write never leaves a torn
// cfait.toml behind.
func (c *Config) Save() error {
	v := viper.New()
	v.SetConfigType("toml")
	v.Set("url", c.URL)
	v.Set("username", c.Username)
	v.Set("password", c.Password)
	v.Set("allow_insecure_certs", c.AllowInsecureCerts)
	v.Set("default_calendar", c.DefaultCalendar)
	v.Set("disabled_calendars", c.DisabledCalendars)
	v.Set("hide_completed", c.HideCompleted)
	v.Set("hide_fully_completed_tags", c.HideFullyCompletedTags)
	v.Set("sort_cutoff_months", c.SortCutoffMonths)
	v.Set("tag_aliases", c.TagAliases)

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return cferr.Wrap(cferr.CacheIO, err, "create config directory")
	}

	unlock, err := filelock.Lock(c.path + ".lock")
	if err != nil {
		return err
	}
	defer unlock()

	tmp, err := os.CreateTemp(dir, ".cfait-config-*.toml")
	if err != nil {
		return cferr.Wrap(cferr.CacheIO, err, "create temp config file in "+dir)
	}
	tmpPath := tmp.Name()
	tmp.Close()

	if err := v.WriteConfigAs(tmpPath); err != nil {
		os.Remove(tmpPath)
		return cferr.Wrap(cferr.CacheIO, err, "write config "+tmpPath)
	}

	f, err := os.OpenFile(tmpPath, os.O_RDWR, 0o600)
	if err != nil {
		os.Remove(tmpPath)
		return cferr.Wrap(cferr.CacheIO, err, "reopen temp config "+tmpPath)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return cferr.Wrap(cferr.CacheIO, err, "fsync temp config "+tmpPath)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return cferr.Wrap(cferr.CacheIO, err, "close temp config "+tmpPath)
	}
	if err := os.Chmod(tmpPath, 0o600); err != nil {
		os.Remove(tmpPath)
		return cferr.Wrap(cferr.CacheIO, err, "chmod temp config "+tmpPath)
	}
	if err := os.Rename(tmpPath, c.path); err != nil {
		os.Remove(tmpPath)
		return cferr.Wrap(cferr.CacheIO, err, "rename config into place "+c.path)
	}
	return nil
}

// Path returns the file this Config was loaded from or will save to.
func (c *Config) Path() string { return c.path }

// IsCalendarDisabled reports whether href is in DisabledCalendars.
func (c *Config) IsCalendarDisabled(href string) bool {
	for _, d := range c.DisabledCalendars {
		if d == href {
			return true
		}
	}
	return false
}
