package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/HendryAvila/etgraph/internal/project"

	_ "modernc.org/sqlite"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// SQLiteFile is the database filename created under the data directory.
const SQLiteFile = "graphs.db"

// maxUpdateAttempts bounds optimistic retries in SQLiteStore.Update.
const maxUpdateAttempts = 3

// SQLiteStore implements DocumentStore on a single SQLite database. Each
// project row carries a version that Update compares on save, so a writer
// that loaded a stale document retries instead of overwriting.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
	seed   DocumentStore
	mirror DocumentStore
}

// NewSQLiteStore opens (creating if needed) the database under dataDir.
func NewSQLiteStore(dataDir string) (*SQLiteStore, error) {
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("sqlite store: create data dir: %w", err)
	}

	dbPath := filepath.Join(dataDir, SQLiteFile)
	db, err := openDB("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite store: open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite store: pragma %q: %w", p, err)
		}
	}

	s := &SQLiteStore{db: db, dbPath: dbPath}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite store: migration: %w", err)
	}
	return s, nil
}

// DBPath returns the path of the database file.
func (s *SQLiteStore) DBPath() string {
	return s.dbPath
}

// SetImportSource makes the store fall back to src for roots that have no
// row yet, so documents written by a FileStore carry over on first access.
// The imported document is persisted by the next Update or Save.
func (s *SQLiteStore) SetImportSource(src DocumentStore) {
	s.seed = src
}

// SetMirror makes every committed write also go to dst, so the JSON
// layout under the data directory stays current while SQLite is primary.
// A failed mirror write is logged and does not fail the operation.
func (s *SQLiteStore) SetMirror(dst DocumentStore) {
	s.mirror = dst
}

func (s *SQLiteStore) writeMirror(ctx context.Context, doc *project.Document) {
	if s.mirror == nil {
		return
	}
	if err := s.mirror.Save(ctx, doc); err != nil {
		slog.Warn("Failed to mirror project document", "root", doc.ProjectRoot, "error", err)
	}
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS projects (
			project_hash TEXT    PRIMARY KEY,
			project_root TEXT    NOT NULL,
			document     TEXT    NOT NULL,
			version      INTEGER NOT NULL DEFAULT 1,
			updated_at   TEXT    NOT NULL DEFAULT (datetime('now'))
		);

		CREATE INDEX IF NOT EXISTS idx_projects_root ON projects(project_root);
	`)
	return err
}

// Load returns the stored document for root, or a fresh empty one.
func (s *SQLiteStore) Load(ctx context.Context, root string) (*project.Document, error) {
	doc, _, err := s.load(ctx, s.db, root)
	return doc, err
}

// load returns the document and its version; version 0 means no row yet.
func (s *SQLiteStore) load(ctx context.Context, q queryRower, root string) (*project.Document, int64, error) {
	var (
		data    string
		version int64
	)
	err := q.QueryRowContext(ctx,
		`SELECT document, version FROM projects WHERE project_hash = ?`,
		ProjectHash(root),
	).Scan(&data, &version)
	if errors.Is(err, sql.ErrNoRows) {
		if s.seed != nil {
			doc, err := s.seed.Load(ctx, root)
			if err != nil {
				return nil, 0, fmt.Errorf("sqlite store: importing %q: %w", root, err)
			}
			return doc, 0, nil
		}
		return project.NewDocument(root), 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("sqlite store: load %q: %w", root, err)
	}

	doc, err := project.Decode([]byte(data))
	if err != nil {
		return nil, 0, fmt.Errorf("sqlite store: parsing document for %q: %w", root, err)
	}
	if doc.ProjectRoot == "" {
		doc.ProjectRoot = root
	}
	return doc, version, nil
}

// Save unconditionally overwrites the stored document.
func (s *SQLiteStore) Save(ctx context.Context, doc *project.Document) error {
	data, err := doc.Encode()
	if err != nil {
		return fmt.Errorf("sqlite store: marshaling document: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO projects (project_hash, project_root, document, version, updated_at)
		VALUES (?, ?, ?, 1, datetime('now'))
		ON CONFLICT(project_hash) DO UPDATE SET
			document   = excluded.document,
			version    = projects.version + 1,
			updated_at = excluded.updated_at
	`, ProjectHash(doc.ProjectRoot), doc.ProjectRoot, string(data))
	if err != nil {
		return fmt.Errorf("sqlite store: save %q: %w", doc.ProjectRoot, err)
	}
	s.writeMirror(ctx, doc)
	return nil
}

// Update loads, mutates and saves with a version check, retrying the whole
// cycle when another writer saved in between.
func (s *SQLiteStore) Update(ctx context.Context, root string, fn MutateFunc) error {
	for attempt := 1; attempt <= maxUpdateAttempts; attempt++ {
		doc, version, err := s.load(ctx, s.db, root)
		if err != nil {
			return err
		}
		if err := fn(doc); err != nil {
			return err
		}

		saved, err := s.compareAndSave(ctx, doc, version)
		if err != nil {
			return err
		}
		if saved {
			s.writeMirror(ctx, doc)
			return nil
		}
	}
	return fmt.Errorf("%w: %s after %d attempts", ErrStaleDocument, root, maxUpdateAttempts)
}

// compareAndSave writes doc only if the stored version still equals base.
func (s *SQLiteStore) compareAndSave(ctx context.Context, doc *project.Document, base int64) (bool, error) {
	data, err := doc.Encode()
	if err != nil {
		return false, fmt.Errorf("sqlite store: marshaling document: %w", err)
	}

	var res sql.Result
	if base == 0 {
		res, err = s.db.ExecContext(ctx, `
			INSERT INTO projects (project_hash, project_root, document, version)
			VALUES (?, ?, ?, 1)
			ON CONFLICT(project_hash) DO NOTHING
		`, ProjectHash(doc.ProjectRoot), doc.ProjectRoot, string(data))
	} else {
		res, err = s.db.ExecContext(ctx, `
			UPDATE projects
			SET document = ?, version = version + 1, updated_at = datetime('now')
			WHERE project_hash = ? AND version = ?
		`, string(data), ProjectHash(doc.ProjectRoot), base)
	}
	if err != nil {
		return false, fmt.Errorf("sqlite store: save %q: %w", doc.ProjectRoot, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite store: rows affected: %w", err)
	}
	return n == 1, nil
}

// Version reports the stored version of root's document (0 if absent).
func (s *SQLiteStore) Version(ctx context.Context, root string) (int64, error) {
	_, v, err := s.load(ctx, s.db, root)
	return v, err
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
