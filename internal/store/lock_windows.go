//go:build windows

package store

import (
	"errors"
	"os"

	"golang.org/x/sys/windows"
)

// windowsLocker uses LockFileEx on the first byte of the lock file.
type windowsLocker struct{}

func (windowsLocker) Lock(f *os.File) error {
	err := windows.LockFileEx(
		windows.Handle(f.Fd()),
		windows.LOCKFILE_EXCLUSIVE_LOCK|windows.LOCKFILE_FAIL_IMMEDIATELY,
		0, 1, 0, &windows.Overlapped{},
	)
	if errors.Is(err, windows.ERROR_LOCK_VIOLATION) {
		return errWouldBlock
	}
	return err
}

func (windowsLocker) Unlock(f *os.File) error {
	return windows.UnlockFileEx(windows.Handle(f.Fd()), 0, 1, 0, &windows.Overlapped{})
}

func newPlatformLocker() fileLocker {
	return windowsLocker{}
}
