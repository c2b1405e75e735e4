package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/HendryAvila/etgraph/internal/etg"
	"github.com/HendryAvila/etgraph/internal/indexer"
	"github.com/HendryAvila/etgraph/internal/project"
	"github.com/HendryAvila/etgraph/internal/query"
	"github.com/HendryAvila/etgraph/internal/store"
	"github.com/HendryAvila/etgraph/internal/telemetry"
	"github.com/google/uuid"
)

// Operation names used for metrics and logs.
const (
	OpIndexProject    = "index_project"
	OpUpdateFiles     = "update_files"
	OpLogEvent        = "log_event"
	OpQuerySimilar    = "query_similar"
	OpContextForFiles = "context_for_files"
	OpStatus          = "status"
)

var _ Backend = (*Engine)(nil)

// Engine implements Backend over a DocumentStore. Every mutating operation
// is one store Update, so a failure leaves the stored document untouched.
type Engine struct {
	name      string
	store     store.DocumentStore
	indexer   *indexer.Indexer
	processor *etg.Processor
	timeout   time.Duration

	// reportUnavailable marks store failures as UnavailableError.
	reportUnavailable bool
}

// EngineOptions tunes an Engine. Zero values select defaults.
type EngineOptions struct {
	Indexer indexer.Options
	// Timeout bounds each operation; 0 means no bound beyond the caller's
	// context.
	Timeout time.Duration
	// ReportUnavailable makes failures of the store itself (not of the
	// operation) surface as UnavailableError.
	ReportUnavailable bool
}

// NewEngine creates an Engine named name over st.
func NewEngine(name string, st store.DocumentStore, opts EngineOptions) *Engine {
	return &Engine{
		name:      name,
		store:     st,
		indexer:   indexer.New(opts.Indexer),
		processor: etg.NewProcessor(),
		timeout:   opts.Timeout,

		reportUnavailable: opts.ReportUnavailable,
	}
}

// Name returns the backend name.
func (e *Engine) Name() string { return e.name }

// Store returns the underlying document store.
func (e *Engine) Store() store.DocumentStore { return e.store }

// Close closes the store.
func (e *Engine) Close() error { return e.store.Close() }

// IndexProject walks root and records every file. Full mode starts from an
// empty file graph; the ETG is never touched.
func (e *Engine) IndexProject(ctx context.Context, root string, mode Mode) (IndexResult, error) {
	var res IndexResult
	if _, err := ParseMode(string(mode)); err != nil {
		return res, err
	}
	err := e.run(ctx, OpIndexProject, root, func(ctx context.Context, root string) error {
		started := time.Now()
		err := e.update(ctx, root, func(doc *project.Document) error {
			if mode != ModeIncremental {
				doc.Graph.Files = make(map[string]project.FileRecord)
			}
			stats, err := e.indexer.IndexTree(ctx, root, doc.Graph.Files)
			if err != nil {
				return err
			}
			res = IndexResult{
				FilesIndexed:    stats.Processed,
				SymbolsIndexed:  len(doc.Graph.Symbols),
				ConceptsIndexed: len(doc.Graph.Concepts),
			}
			if stats.Skipped > 0 {
				slog.Warn("Index skipped files", "root", root, "skipped", stats.Skipped)
			}
			return nil
		})
		res.DurationMS = elapsedMS(started)
		if err == nil {
			telemetry.AddFilesIndexed(res.FilesIndexed)
		}
		return err
	})
	return res, err
}

// UpdateFiles re-records each path that is currently a regular file.
// Missing paths are skipped and stay in the graph as they were.
func (e *Engine) UpdateFiles(ctx context.Context, root string, paths []string) (UpdateResult, error) {
	var res UpdateResult
	err := e.run(ctx, OpUpdateFiles, root, func(ctx context.Context, root string) error {
		started := time.Now()
		err := e.update(ctx, root, func(doc *project.Document) error {
			stats, err := e.indexer.UpdatePaths(ctx, root, paths, doc.Graph.Files)
			if err != nil {
				return err
			}
			res = UpdateResult{FilesUpdated: stats.Processed, SymbolsUpdated: len(doc.Graph.Symbols)}
			return nil
		})
		res.DurationMS = elapsedMS(started)
		if err == nil {
			telemetry.AddFilesIndexed(res.FilesUpdated)
		}
		return err
	})
	return res, err
}

// LogEvent decodes and applies one event. The task id is fixed before the
// store update so that a retried update produces the same id.
func (e *Engine) LogEvent(ctx context.Context, root, taskID, kind string, payload json.RawMessage) (etg.Result, error) {
	var res etg.Result
	ev, err := etg.ParseEvent(kind, payload)
	if err != nil {
		telemetry.ObserveOperation(OpLogEvent, time.Now(), err)
		return res, err
	}
	if taskID == "" {
		taskID = uuid.NewString()
	}
	err = e.run(ctx, OpLogEvent, root, func(ctx context.Context, root string) error {
		return e.update(ctx, root, func(doc *project.Document) error {
			r, err := e.processor.Apply(doc, taskID, ev)
			if err != nil {
				return err
			}
			res = r
			return nil
		})
	})
	if err == nil {
		telemetry.RecordEvent(kind)
		slog.Debug("Logged event", "root", root, "kind", kind, "result", res.String())
	}
	return res, err
}

// QuerySimilar ranks past steps against text. It never writes.
func (e *Engine) QuerySimilar(ctx context.Context, root, text string, filePaths []string, limit int) (QueryResult, error) {
	var res QueryResult
	err := e.run(ctx, OpQuerySimilar, root, func(ctx context.Context, root string) error {
		doc, err := e.load(ctx, root)
		if err != nil {
			return err
		}
		results, err := query.Similar(doc, root, text, filePaths, limit)
		if err != nil {
			return err
		}
		res = QueryResult{Results: results, SummaryMarkdown: query.SummaryMarkdown(results)}
		return nil
	})
	return res, err
}

// ContextForFiles assembles file records and related steps. It never writes.
func (e *Engine) ContextForFiles(ctx context.Context, root string, filePaths []string, radius int) (ContextResult, error) {
	var res ContextResult
	err := e.run(ctx, OpContextForFiles, root, func(ctx context.Context, root string) error {
		doc, err := e.load(ctx, root)
		if err != nil {
			return err
		}
		pack := query.ContextForFiles(doc, root, filePaths, radius)
		res = ContextResult{ContextPack: pack, ReturnDisplay: pack.Display()}
		return nil
	})
	return res, err
}

// Status counts the records stored for root. It never writes.
func (e *Engine) Status(ctx context.Context, root string) (StatusResult, error) {
	var res StatusResult
	err := e.run(ctx, OpStatus, root, func(ctx context.Context, root string) error {
		doc, err := e.load(ctx, root)
		if err != nil {
			return err
		}
		summary := query.Summarize(doc, 0)
		summary.ProjectRoot = root
		res = StatusResult{Backend: e.name, Summary: summary, ReturnDisplay: summary.Markdown()}
		return nil
	})
	return res, err
}

// run resolves root, applies the operation timeout and records metrics.
func (e *Engine) run(ctx context.Context, op, root string, fn func(ctx context.Context, root string) error) (err error) {
	started := time.Now()
	defer func() { telemetry.ObserveOperation(op, started, err) }()

	abs, err := AbsRoot(root)
	if err != nil {
		return err
	}
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	if err := fn(ctx, abs); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// update runs fn inside one store update.
func (e *Engine) update(ctx context.Context, root string, fn store.MutateFunc) error {
	var fnErr error
	err := e.store.Update(ctx, root, func(doc *project.Document) error {
		fnErr = fn(doc)
		return fnErr
	})
	if err != nil && fnErr == nil {
		return e.storeFailure(err)
	}
	return err
}

func (e *Engine) load(ctx context.Context, root string) (*project.Document, error) {
	doc, err := e.store.Load(ctx, root)
	if err != nil {
		return nil, e.storeFailure(err)
	}
	return doc, nil
}

// storeFailure wraps a store error as UnavailableError when the engine
// reports them. Contention and cancellation pass through unchanged.
func (e *Engine) storeFailure(err error) error {
	if !e.reportUnavailable ||
		errors.Is(err, store.ErrLocked) ||
		errors.Is(err, store.ErrStaleDocument) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &UnavailableError{Backend: e.name, Err: err}
}

// AbsRoot makes root absolute and clean. Documents are keyed by this form.
func AbsRoot(root string) (string, error) {
	if root == "" {
		return "", ErrRootRequired
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolving project root: %w", err)
	}
	return abs, nil
}

func elapsedMS(since time.Time) float64 {
	return float64(time.Since(since).Microseconds()) / 1000
}
