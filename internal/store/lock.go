package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"
)

// errWouldBlock is returned by a fileLocker when the lock is held elsewhere.
var errWouldBlock = errors.New("lock held")

// lockPollInterval is how often a contended lock is retried.
const lockPollInterval = 20 * time.Millisecond

// fileLocker abstracts the platform advisory lock. Lock must not block.
type fileLocker interface {
	Lock(f *os.File) error
	Unlock(f *os.File) error
}

type fileLock struct {
	f      *os.File
	locker fileLocker
}

// acquireLock opens (creating if needed) the lock file at path and polls a
// non-blocking exclusive lock until it succeeds, the timeout elapses, or ctx
// is done.
func acquireLock(ctx context.Context, locker fileLocker, path string, timeout time.Duration) (*fileLock, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening lock file: %w", err)
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(lockPollInterval)
	defer ticker.Stop()

	for {
		err := locker.Lock(f)
		if err == nil {
			return &fileLock{f: f, locker: locker}, nil
		}
		if !errors.Is(err, errWouldBlock) {
			f.Close()
			return nil, fmt.Errorf("locking %s: %w", path, err)
		}

		slog.Debug("Project lock contended, waiting", "path", path)
		select {
		case <-ctx.Done():
			f.Close()
			return nil, fmt.Errorf("%w: %w", ErrLocked, ctx.Err())
		case <-deadline.C:
			f.Close()
			return nil, fmt.Errorf("%w: gave up after %s", ErrLocked, timeout)
		case <-ticker.C:
		}
	}
}

func (l *fileLock) release() error {
	unlockErr := l.locker.Unlock(l.f)
	closeErr := l.f.Close()
	if unlockErr != nil {
		return unlockErr
	}
	return closeErr
}
