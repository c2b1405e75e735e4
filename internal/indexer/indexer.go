// Package indexer builds the file graph of a project: it walks a root,
// computes per-file metadata (size, content hash, language, mtime) and
// upserts FileRecords into a document's graph.
package indexer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/HendryAvila/etgraph/internal/project"
	"golang.org/x/sync/errgroup"
)

// DefaultExcludeDirs are directory names never descended into.
var DefaultExcludeDirs = []string{".git", "node_modules", "dist", "__pycache__", ".qwen"}

// openFile is a package-level var to allow test injection.
var openFile = os.Open

// DefaultWorkers is the hashing parallelism used when Options.Workers is unset.
const DefaultWorkers = 8

// Options configures an Indexer.
type Options struct {
	// ExcludeDirs are directory base names skipped during a walk.
	ExcludeDirs []string
	// SkipPaths are directories skipped by location, whatever their name.
	// The store's data directory goes here when it lives inside a project.
	SkipPaths []string
	// Strict makes any unreadable file abort the operation instead of
	// being skipped and logged.
	Strict bool
	// Workers bounds how many files are hashed concurrently.
	Workers int
}

// Stats reports what a walk or update did.
type Stats struct {
	Processed int
	Skipped   int
}

// Indexer computes FileRecords. It holds no state between calls.
type Indexer struct {
	exclude map[string]bool
	skip    []string
	strict  bool
	workers int
}

// New creates an Indexer from opts, applying defaults for unset fields.
func New(opts Options) *Indexer {
	dirs := opts.ExcludeDirs
	if dirs == nil {
		dirs = DefaultExcludeDirs
	}
	exclude := make(map[string]bool, len(dirs))
	for _, d := range dirs {
		exclude[d] = true
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	var skip []string
	for _, p := range opts.SkipPaths {
		if p == "" {
			continue
		}
		if abs, err := filepath.Abs(p); err == nil {
			skip = append(skip, abs)
		}
	}
	return &Indexer{exclude: exclude, skip: skip, strict: opts.Strict, workers: workers}
}

// IsExcludedDir reports whether a directory with this base name is skipped.
func (ix *Indexer) IsExcludedDir(name string) bool {
	return ix.exclude[name]
}

// IsSkippedPath reports whether path is, or lies under, one of the
// SkipPaths.
func (ix *Indexer) IsSkippedPath(path string) bool {
	for _, s := range ix.skip {
		if path == s || strings.HasPrefix(path, s+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// IndexTree walks root and upserts a record for every file into files.
// Every file is read and hashed; records for files no longer present are
// left to the caller.
func (ix *Indexer) IndexTree(ctx context.Context, root string, files map[string]project.FileRecord) (Stats, error) {
	var stats Stats

	paths, err := ix.collect(ctx, root, &stats)
	if err != nil {
		return stats, err
	}

	records := make([]*project.FileRecord, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.workers)
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rec, err := FileMetadata(path)
			if err != nil {
				if ix.strict {
					return fmt.Errorf("indexing %s: %w", path, err)
				}
				slog.Warn("Skipping unreadable file", "path", path, "error", err)
				return nil
			}
			records[i] = &rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return stats, err
	}

	for _, rec := range records {
		if rec == nil {
			stats.Skipped++
			continue
		}
		files[rec.Path] = *rec
		stats.Processed++
	}
	return stats, nil
}

// collect lists every file under root outside excluded directories.
func (ix *Indexer) collect(ctx context.Context, root string, stats *Stats) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if path == root || ix.strict {
				return fmt.Errorf("walking %s: %w", path, err)
			}
			slog.Warn("Skipping unreadable path", "path", path, "error", err)
			stats.Skipped++
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if path != root && (ix.exclude[d.Name()] || ix.IsSkippedPath(filepath.Clean(path))) {
				return filepath.SkipDir
			}
			return nil
		}
		if !isRegularFile(path, d) {
			return nil
		}
		paths = append(paths, filepath.Clean(path))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return paths, nil
}

// isRegularFile follows symlinks; links to directories, devices, sockets
// and pipes are not indexed.
func isRegularFile(path string, d fs.DirEntry) bool {
	if d.Type()&fs.ModeSymlink == 0 {
		return d.Type().IsRegular()
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// UpdatePaths recomputes records for an explicit list of paths, resolved
// against root when relative. Paths that are not currently regular files,
// or that lie under a SkipPaths entry, are skipped silently and left in the
// graph as they were.
func (ix *Indexer) UpdatePaths(ctx context.Context, root string, paths []string, files map[string]project.FileRecord) (Stats, error) {
	var stats Stats
	for _, path := range project.NormalizePaths(root, paths) {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if ix.IsSkippedPath(path) {
			stats.Skipped++
			continue
		}
		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			stats.Skipped++
			continue
		}
		rec, err := FileMetadata(path)
		if err != nil {
			if ix.strict {
				return stats, fmt.Errorf("indexing %s: %w", path, err)
			}
			slog.Warn("Skipping unreadable file", "path", path, "error", err)
			stats.Skipped++
			continue
		}
		files[path] = rec
		stats.Processed++
	}
	return stats, nil
}

// FileMetadata computes the record for a single file, hashing its full
// contents.
func FileMetadata(path string) (project.FileRecord, error) {
	info, err := os.Stat(path)
	if err != nil {
		return project.FileRecord{}, err
	}
	if info.IsDir() {
		return project.FileRecord{}, errors.New("is a directory")
	}

	rec := project.FileRecord{
		Path:         path,
		Language:     LanguageFor(path),
		SizeBytes:    info.Size(),
		LastModified: project.FormatTime(info.ModTime()),
	}
	rec.Hash, err = HashFile(path)
	if err != nil {
		return project.FileRecord{}, err
	}
	return rec, nil
}

// HashFile returns the hex SHA-256 of the file's full contents.
func HashFile(path string) (string, error) {
	f, err := openFile(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
