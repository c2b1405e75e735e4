package store

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/HendryAvila/etgraph/internal/project"
)

const (
	// DocumentFile is the filename of a persisted project document.
	DocumentFile = "project.json"
	// LockFile is the filename of the per-root writer lock.
	LockFile = "project.lock"
	// DefaultLockTimeout bounds how long Update waits for the lock.
	DefaultLockTimeout = 10 * time.Second
)

// FileStore implements DocumentStore on the local filesystem:
//
//	<baseDir>/<sha1(root)>/project.json
//	<baseDir>/<sha1(root)>/project.lock
type FileStore struct {
	baseDir     string
	lockTimeout time.Duration
	locker      fileLocker
}

// NewFileStore creates a filesystem-backed store rooted at baseDir.
// A non-positive lockTimeout selects DefaultLockTimeout.
func NewFileStore(baseDir string, lockTimeout time.Duration) (*FileStore, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("store: base directory is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("store: creating base directory: %w", err)
	}
	if lockTimeout <= 0 {
		lockTimeout = DefaultLockTimeout
	}
	return &FileStore{
		baseDir:     baseDir,
		lockTimeout: lockTimeout,
		locker:      newPlatformLocker(),
	}, nil
}

// BaseDir returns the directory all documents live under.
func (s *FileStore) BaseDir() string {
	return s.baseDir
}

// ProjectDir returns the directory holding root's document and lock.
func (s *FileStore) ProjectDir(root string) string {
	return filepath.Join(s.baseDir, ProjectHash(root))
}

// DocumentPath returns the absolute path of root's project.json.
func (s *FileStore) DocumentPath(root string) string {
	return filepath.Join(s.ProjectDir(root), DocumentFile)
}

// Load reads root's document. A missing document is not an error: a fresh
// empty document is returned instead.
func (s *FileStore) Load(ctx context.Context, root string) (*project.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.DocumentPath(root))
	if err != nil {
		if os.IsNotExist(err) {
			return project.NewDocument(root), nil
		}
		return nil, fmt.Errorf("reading project document: %w", err)
	}

	doc, err := project.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("parsing project document for %q: %w", root, err)
	}
	if doc.ProjectRoot == "" {
		doc.ProjectRoot = root
	}
	return doc, nil
}

// Save overwrites the stored document. The write goes to a temporary file
// that is synced and renamed into place, so a crash never leaves a
// half-written document behind.
func (s *FileStore) Save(ctx context.Context, doc *project.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := doc.Encode()
	if err != nil {
		return fmt.Errorf("marshaling project document: %w", err)
	}
	if err := writeFileAtomic(s.DocumentPath(doc.ProjectRoot), data, 0o644); err != nil {
		return fmt.Errorf("writing project document: %w", err)
	}
	return nil
}

// Update holds root's lock for the whole load -> mutate -> save cycle.
func (s *FileStore) Update(ctx context.Context, root string, fn MutateFunc) error {
	dir := s.ProjectDir(root)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating project directory: %w", err)
	}

	lock, err := acquireLock(ctx, s.locker, filepath.Join(dir, LockFile), s.lockTimeout)
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.release(); err != nil {
			slog.Warn("Failed to release project lock", "root", root, "error", err)
		}
	}()

	doc, err := s.Load(ctx, root)
	if err != nil {
		return err
	}
	if err := fn(doc); err != nil {
		return err
	}
	return s.Save(ctx, doc)
}

// Close is a no-op; FileStore holds no long-lived resources.
func (s *FileStore) Close() error {
	return nil
}

// writeFileAtomic writes data to a temp file in the target directory, syncs
// it, and renames it over path.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		_ = tmp.Close()
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := io.Copy(tmp, bytes.NewReader(data)); err != nil {
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}
	committed = true
	return nil
}
