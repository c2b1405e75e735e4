// Package backend exposes the five project operations (index, update, log
// event, query similar, context for files) behind one interface, and picks
// the storage that serves them at startup.
package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/HendryAvila/etgraph/internal/etg"
	"github.com/HendryAvila/etgraph/internal/query"
)

// Mode selects how IndexProject treats the existing file graph.
type Mode string

const (
	// ModeFull clears the file graph and rebuilds it from a walk.
	ModeFull Mode = "full"
	// ModeIncremental walks without clearing the file graph. Every file is
	// hashed again.
	ModeIncremental Mode = "incremental"
)

// ParseMode accepts "full", "incremental" or "" (full).
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeFull:
		return ModeFull, nil
	case ModeIncremental:
		return ModeIncremental, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
	}
}

// --- Errors ---

var (
	// ErrInvalidMode is returned for an index mode other than full or
	// incremental.
	ErrInvalidMode = errors.New("invalid index mode")

	// ErrBackendUnavailable is matched by every UnavailableError.
	ErrBackendUnavailable = errors.New("backend unavailable")

	// ErrRootRequired is returned when an operation gets no project root.
	ErrRootRequired = errors.New("project root is required")
)

// UnavailableError reports a backend that could not be initialized or
// failed while running.
type UnavailableError struct {
	Backend string
	Err     error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("backend %s unavailable: %v", e.Backend, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrBackendUnavailable) hold.
func (e *UnavailableError) Is(target error) bool {
	return target == ErrBackendUnavailable
}

// --- Results ---

// IndexResult is returned by IndexProject.
type IndexResult struct {
	FilesIndexed    int     `json:"files_indexed"`
	SymbolsIndexed  int     `json:"symbols_indexed"`
	ConceptsIndexed int     `json:"concepts_indexed"`
	DurationMS      float64 `json:"duration_ms"`
}

// UpdateResult is returned by UpdateFiles.
type UpdateResult struct {
	FilesUpdated   int     `json:"files_updated"`
	SymbolsUpdated int     `json:"symbols_updated"`
	DurationMS     float64 `json:"duration_ms"`
}

// QueryResult is returned by QuerySimilar.
type QueryResult struct {
	Results         []query.Candidate `json:"results"`
	SummaryMarkdown string            `json:"summary_markdown"`
}

// ContextResult is returned by ContextForFiles.
type ContextResult struct {
	ContextPack   *query.ContextPack `json:"context_pack"`
	ReturnDisplay string             `json:"returnDisplay"`
}

// StatusResult is returned by Status.
type StatusResult struct {
	Backend string `json:"backend"`
	query.Summary
	ReturnDisplay string `json:"returnDisplay"`
}

// Backend is the set of operations every caller (MCP tools, CLI, watcher)
// goes through. root is the project root; implementations make it absolute.
type Backend interface {
	// Name identifies the backend in logs and results.
	Name() string
	IndexProject(ctx context.Context, root string, mode Mode) (IndexResult, error)
	UpdateFiles(ctx context.Context, root string, paths []string) (UpdateResult, error)
	// LogEvent applies one ETG event. An unknown kind fails with
	// etg.ErrUnsupportedEventKind and nothing is persisted.
	LogEvent(ctx context.Context, root, taskID, kind string, payload json.RawMessage) (etg.Result, error)
	QuerySimilar(ctx context.Context, root, text string, filePaths []string, limit int) (QueryResult, error)
	ContextForFiles(ctx context.Context, root string, filePaths []string, radius int) (ContextResult, error)
	// Status summarizes what is recorded for root without writing.
	Status(ctx context.Context, root string) (StatusResult, error)
	Close() error
}
