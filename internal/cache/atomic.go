package cache

import (
	"os"
	"path/filepath"

	"github.com/cfait/cfait/internal/cferr"
)

const fileMode = 0o600

// writeFileAtomically writes data to path via a temp file in the same
// directory, fsynced and renamed into place, so a crash mid-write never
// leaves a torn file behind (spec.md §4.5's write discipline).
func writeFileAtomically(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return cferr.Wrap(cferr.CacheIO, err, "create directory "+dir)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return cferr.Wrap(cferr.CacheIO, err, "create temp file in "+dir)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return cferr.Wrap(cferr.CacheIO, err, "write temp file "+tmpPath)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return cferr.Wrap(cferr.CacheIO, err, "fsync temp file "+tmpPath)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return cferr.Wrap(cferr.CacheIO, err, "close temp file "+tmpPath)
	}
	if err := os.Chmod(tmpPath, fileMode); err != nil {
		os.Remove(tmpPath)
		return cferr.Wrap(cferr.CacheIO, err, "chmod temp file "+tmpPath)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return cferr.Wrap(cferr.CacheIO, err, "rename into place "+path)
	}
	return nil
}
