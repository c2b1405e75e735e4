package backend

import (
	"log/slog"
	"strings"

	"github.com/HendryAvila/etgraph/internal/config"
	"github.com/HendryAvila/etgraph/internal/indexer"
	"github.com/HendryAvila/etgraph/internal/store"
)

// Preference chooses the backend at startup.
type Preference string

const (
	// PreferAuto tries SQLite and falls back to JSON storage.
	PreferAuto Preference = "auto"
	// PreferSQLite requires SQLite and fails if it cannot start.
	PreferSQLite Preference = "sqlite"
	// PreferStorage uses JSON storage only.
	PreferStorage Preference = "storage"
)

// Backend names reported by Name.
const (
	NameSQLite  = "sqlite"
	NameStorage = "storage"
)

// newSQLiteStore is a package-level var to allow test injection.
var newSQLiteStore = store.NewSQLiteStore

// ParsePreference maps a configured value to a Preference. "jac" is kept as
// an alias of sqlite for existing environments. Unknown values select
// storage and are logged.
func ParsePreference(s string) Preference {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return PreferAuto
	case "sqlite", "jac":
		return PreferSQLite
	case "storage", "json":
		return PreferStorage
	default:
		slog.Warn("Unknown backend preference, using storage", "backend", s)
		return PreferStorage
	}
}

// Select builds the backend for pref from cfg. A forced sqlite preference
// returns an UnavailableError when SQLite cannot start; auto falls back to
// JSON storage and only logs. A SQLite backend imports from and mirrors to
// the JSON layout under cfg.DataDir. The data directory itself is never
// indexed.
func Select(cfg *config.Config, pref Preference) (Backend, error) {
	opts := EngineOptions{
		Indexer: indexer.Options{
			ExcludeDirs: cfg.ExcludeDirs,
			Strict:      cfg.StrictIndex,
			Workers:     cfg.HashWorkers,
			SkipPaths:   []string{cfg.DataDir},
		},
		Timeout: cfg.OperationTimeout,
	}

	files, err := store.NewFileStore(cfg.DataDir, cfg.LockTimeout)
	if err != nil {
		if pref == PreferStorage || pref == PreferAuto {
			return nil, err
		}
		slog.Warn("JSON store unavailable, SQLite will not import existing documents", "error", err)
	}

	if pref == PreferStorage {
		return NewEngine(NameStorage, files, opts), nil
	}

	db, err := newSQLiteStore(cfg.DataDir)
	if err != nil {
		if pref == PreferSQLite {
			return nil, &UnavailableError{Backend: NameSQLite, Err: err}
		}
		slog.Info("SQLite backend unavailable, falling back to storage", "error", err)
		return NewEngine(NameStorage, files, opts), nil
	}
	if files != nil {
		db.SetImportSource(files)
		db.SetMirror(files)
	}
	opts.ReportUnavailable = true
	return NewEngine(NameSQLite, db, opts), nil
}
