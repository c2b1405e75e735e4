//go:build unix

package store

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

// unixLocker uses flock(2). Locks belong to the open file description, so
// two handles in the same process exclude each other as well.
type unixLocker struct{}

func (unixLocker) Lock(f *os.File) error {
	err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
	if errors.Is(err, unix.EWOULDBLOCK) {
		return errWouldBlock
	}
	return err
}

func (unixLocker) Unlock(f *os.File) error {
	return unix.Flock(int(f.Fd()), unix.LOCK_UN)
}

func newPlatformLocker() fileLocker {
	return unixLocker{}
}
