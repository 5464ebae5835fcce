//go:build windows

package filelock

import (
	"errors"
	"os"
	"time"

	"golang.org/x/sys/windows"
)

const (
	lockfileExclusiveLock   = 0x00000002
	lockfileFailImmediately = 0x00000001
	lockRetryInterval       = time.Millisecond
)

func lockFile(f *os.File, blocking bool) error {
	flags := uint32(lockfileExclusiveLock)
	if !blocking {
		flags |= lockfileFailImmediately
	}
	ol := new(windows.Overlapped)
	for {
		err := windows.LockFileEx(windows.Handle(f.Fd()), flags, 0, 1, 0, ol)
		if err == nil {
			return nil
		}
		if !blocking {
			return err
		}
		// ERROR_LOCK_VIOLATION means another handle holds the lock. Sleep
		// briefly to yield to the Go scheduler and retry: LockFileEx without
		// LOCKFILE_FAIL_IMMEDIATELY blocks the OS thread, which would starve
		// other goroutines.
		if !errors.Is(err, windows.ERROR_LOCK_VIOLATION) {
			return err
		}
		time.Sleep(lockRetryInterval)
	}
}

func unlockFile(f *os.File) error {
	ol := new(windows.Overlapped)
	return windows.UnlockFileEx(windows.Handle(f.Fd()), 0, 1, 0, ol)
}

func isLockBusy(err error) bool {
	return errors.Is(err, windows.ERROR_LOCK_VIOLATION)
}
