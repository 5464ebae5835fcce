// Package filelock provides the exclusive advisory lock the cache and
// journal take on a sentinel file for the whole process, so two processes
// pointed at the same cache directory serialize instead of corrupting each
// other's writes (spec.md §4.5).
package filelock

import (
	"os"

	"github.com/cfait/cfait/internal/cferr"
)

const lockFileMode = 0o600

// Lock acquires an exclusive advisory lock on the file at path, creating it
// if it does not exist, blocking until it is available. The returned
// function releases the lock and must be called on every exit path.
func Lock(path string) (unlock func() error, err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, lockFileMode)
	if err != nil {
		return nil, cferr.Wrap(cferr.CacheIO, err, "open lock file "+path)
	}

	if err := lockFile(f, true); err != nil {
		_ = f.Close()
		return nil, cferr.Wrap(cferr.CacheIO, err, "acquire lock "+path)
	}

	return func() error {
		unlockErr := unlockFile(f)
		closeErr := f.Close()
		if unlockErr != nil {
			return unlockErr
		}
		return closeErr
	}, nil
}

// TryLock acquires the lock without blocking, returning a *cferr.Error with
// code LockBusy if another process already holds it. The cache's startup
// path (cache.Open) does not use it; it takes the blocking Lock.
func TryLock(path string) (unlock func() error, err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, lockFileMode)
	if err != nil {
		return nil, cferr.Wrap(cferr.CacheIO, err, "open lock file "+path)
	}

	if err := lockFile(f, false); err != nil {
		_ = f.Close()
		if isLockBusy(err) {
			return nil, cferr.Wrap(cferr.LockBusy, err, "another process holds "+path)
		}
		return nil, cferr.Wrap(cferr.CacheIO, err, "acquire lock "+path)
	}

	return func() error {
		unlockErr := unlockFile(f)
		closeErr := f.Close()
		if unlockErr != nil {
			return unlockErr
		}
		return closeErr
	}, nil
}
