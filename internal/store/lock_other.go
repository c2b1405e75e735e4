//go:build !unix && !windows

package store

import "os"

// noopLocker is used where no advisory lock primitive is available.
type noopLocker struct{}

func (noopLocker) Lock(*os.File) error   { return nil }
func (noopLocker) Unlock(*os.File) error { return nil }

func newPlatformLocker() fileLocker {
	return noopLocker{}
}
