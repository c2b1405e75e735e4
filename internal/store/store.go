// Package store persists project documents.
//
// Two implementations share the DocumentStore contract:
//   - FileStore writes one JSON document per project root under a
//     hash-addressed directory and serializes writers with a lock file.
//   - SQLiteStore keeps the same JSON document in a SQLite table and
//     serializes writers with an optimistic version check.
//
// Every mutation goes through Update, which is a complete
// load -> mutate -> save cycle: if the mutation fails nothing is written.
package store

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"

	"github.com/HendryAvila/etgraph/internal/project"
)

var (
	// ErrLocked is returned when the per-root lock could not be acquired
	// before the lock timeout or context deadline.
	ErrLocked = errors.New("project document is locked by another writer")

	// ErrStaleDocument is returned when an optimistic save kept losing to
	// concurrent writers.
	ErrStaleDocument = errors.New("project document changed concurrently")
)

// MutateFunc applies one operation to a loaded document. Returning an
// error aborts the operation without persisting anything.
type MutateFunc func(doc *project.Document) error

// DocumentStore loads and saves project documents keyed by root path.
type DocumentStore interface {
	// Load returns the stored document for root, or a fresh empty one.
	Load(ctx context.Context, root string) (*project.Document, error)
	// Save overwrites the stored document for doc.ProjectRoot.
	Save(ctx context.Context, doc *project.Document) error
	// Update runs fn against the current document with at most one
	// concurrent mutation per root, then saves the result.
	Update(ctx context.Context, root string, fn MutateFunc) error
	// Close releases any resources held by the store.
	Close() error
}

// ProjectHash maps a root path to its storage key. The mapping is the
// hex SHA-1 of the root string, which keeps existing data directories
// addressable.
func ProjectHash(root string) string {
	sum := sha1.Sum([]byte(root))
	return hex.EncodeToString(sum[:])
}
