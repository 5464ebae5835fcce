// Package logging builds the *slog.Logger every other package receives by
// injection (spec.md's ambient logging concern — Cfait has no
// package-level global logger, matching how
// Mschirtzinger-jj-beads/internal/turso/daemon takes a logger on its
// Config rather than reaching for a package-global). Records are emitted as
// structured key-value pairs rather than freeform text, so a long-lived
// sync loop's log can be grepped or shipped the way the CLI-error taxonomy
// in internal/cferr is meant to be switched on.
package logging

import (
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures where log output goes and how it rotates.
type Options struct {
	// Path is the log file to write to. Empty means stderr — the CLI's
	// default, since a foreground `cfait sync` run should print straight
	// to the terminal.
	Path string

	MaxSizeMB  int // default 10
	MaxBackups int // default 3
	MaxAgeDays int // default 28

	// JSON switches from a human-readable text handler to slog's JSON
	// handler, for callers that ship logs to something that parses them
	// (a rotated file destined for log aggregation) rather than a
	// terminal a person is watching.
	JSON bool
}

const (
	defaultMaxSizeMB  = 10
	defaultMaxBackups = 3
	defaultMaxAgeDays = 28
)

// New builds a *slog.Logger per opts. A non-empty Path routes through a
// lumberjack.Logger so a long-lived background sync loop doesn't grow an
// unbounded log file; an empty Path writes directly to stderr with no
// rotation, since there's nothing to rotate for a one-shot CLI invocation.
func New(opts Options) *slog.Logger {
	var w io.Writer = os.Stderr
	if opts.Path != "" {
		w = &lumberjack.Logger{
			Filename:   opts.Path,
			MaxSize:    orDefault(opts.MaxSizeMB, defaultMaxSizeMB),
			MaxBackups: orDefault(opts.MaxBackups, defaultMaxBackups),
			MaxAge:     orDefault(opts.MaxAgeDays, defaultMaxAgeDays),
			Compress:   true,
		}
	}

	var handler slog.Handler
	if opts.JSON {
		handler = slog.NewJSONHandler(w, nil)
	} else {
		handler = slog.NewTextHandler(w, nil)
	}
	return slog.New(handler).With(slog.String("app", "cfait"))
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
