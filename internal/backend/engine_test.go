package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/HendryAvila/etgraph/internal/etg"
	"github.com/HendryAvila/etgraph/internal/project"
	"github.com/HendryAvila/etgraph/internal/query"
	"github.com/HendryAvila/etgraph/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// engines returns one engine per store implementation, each over its own
// data directory.
func engines(t *testing.T) map[string]*Engine {
	t.Helper()
	files, err := store.NewFileStore(t.TempDir(), 0)
	require.NoError(t, err)
	db, err := store.NewSQLiteStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return map[string]*Engine{
		NameStorage: NewEngine(NameStorage, files, EngineOptions{}),
		NameSQLite:  NewEngine(NameSQLite, db, EngineOptions{ReportUnavailable: true}),
	}
}

// projectTree creates a small project and returns its root.
func projectTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	for rel, body := range map[string]string{
		"a.py":              "print('a')",
		"src/b.ts":          "export const b = 1",
		"node_modules/x.js": "ignored",
	} {
		path := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	}
	return root
}

func logEvent(t *testing.T, e *Engine, root, taskID string, kind etg.Kind, payload string) etg.Result {
	t.Helper()
	res, err := e.LogEvent(context.Background(), root, taskID, string(kind), json.RawMessage(payload))
	require.NoError(t, err)
	return res
}

func encoded(t *testing.T, e *Engine, root string) string {
	t.Helper()
	doc, err := e.Store().Load(context.Background(), root)
	require.NoError(t, err)
	data, err := doc.Encode()
	require.NoError(t, err)
	return string(data)
}

func TestEngine_IndexProjectIdempotent(t *testing.T) {
	for name, e := range engines(t) {
		t.Run(name, func(t *testing.T) {
			root := projectTree(t)
			ctx := context.Background()

			first, err := e.IndexProject(ctx, root, ModeFull)
			require.NoError(t, err)
			before := encoded(t, e, root)
			second, err := e.IndexProject(ctx, root, ModeFull)
			require.NoError(t, err)

			assert.Equal(t, 2, first.FilesIndexed)
			assert.Equal(t, first.FilesIndexed, second.FilesIndexed)
			assert.Zero(t, first.SymbolsIndexed)
			assert.Zero(t, first.ConceptsIndexed)
			assert.GreaterOrEqual(t, first.DurationMS, 0.0)
			assert.Equal(t, before, encoded(t, e, root))
		})
	}
}

func TestEngine_FullIndexClearsOnlyFileGraph(t *testing.T) {
	for name, e := range engines(t) {
		t.Run(name, func(t *testing.T) {
			root := projectTree(t)
			ctx := context.Background()
			_, err := e.IndexProject(ctx, root, ModeFull)
			require.NoError(t, err)
			logEvent(t, e, root, "t1", etg.KindTaskStart, `{"user_prompt":"keep me"}`)

			require.NoError(t, os.Remove(filepath.Join(root, "a.py")))
			res, err := e.IndexProject(ctx, root, ModeFull)
			require.NoError(t, err)
			assert.Equal(t, 1, res.FilesIndexed)

			doc, err := e.Store().Load(ctx, root)
			require.NoError(t, err)
			assert.NotContains(t, doc.Graph.Files, filepath.Join(root, "a.py"))
			_, ok := doc.Task("t1")
			assert.True(t, ok, "re-index must not touch the ETG")
		})
	}
}

func TestEngine_IncrementalIndexKeepsExistingRecords(t *testing.T) {
	e := engines(t)[NameStorage]
	root := projectTree(t)
	ctx := context.Background()
	_, err := e.IndexProject(ctx, root, ModeFull)
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(root, "a.py")))

	res, err := e.IndexProject(ctx, root, ModeIncremental)
	require.NoError(t, err)
	assert.Equal(t, 1, res.FilesIndexed)

	doc, err := e.Store().Load(ctx, root)
	require.NoError(t, err)
	assert.Contains(t, doc.Graph.Files, filepath.Join(root, "a.py"))
}

func TestEngine_IndexProjectInvalidMode(t *testing.T) {
	e := engines(t)[NameStorage]
	_, err := e.IndexProject(context.Background(), t.TempDir(), Mode("partial"))
	require.ErrorIs(t, err, ErrInvalidMode)
}

func TestEngine_IndexProjectMissingRootNotPersisted(t *testing.T) {
	e := engines(t)[NameStorage]
	root := filepath.Join(t.TempDir(), "gone")
	_, err := e.IndexProject(context.Background(), root, ModeFull)
	require.Error(t, err)

	fs := e.Store().(*store.FileStore)
	_, statErr := os.Stat(fs.DocumentPath(root))
	assert.True(t, os.IsNotExist(statErr))
}

func TestEngine_UpdateFiles(t *testing.T) {
	for name, e := range engines(t) {
		t.Run(name, func(t *testing.T) {
			root := projectTree(t)
			res, err := e.UpdateFiles(context.Background(), root, []string{"a.py", "missing.py", filepath.Join(root, "src", "b.ts")})
			require.NoError(t, err)
			assert.Equal(t, 2, res.FilesUpdated)
			assert.Zero(t, res.SymbolsUpdated)

			doc, err := e.Store().Load(context.Background(), root)
			require.NoError(t, err)
			assert.Equal(t, "typescript", doc.Graph.Files[filepath.Join(root, "src", "b.ts")].Language)
		})
	}
}

func TestEngine_ToolStartPropagation(t *testing.T) {
	for name, e := range engines(t) {
		t.Run(name, func(t *testing.T) {
			root := t.TempDir()
			start := logEvent(t, e, root, "", etg.KindTaskStart, `{"user_prompt":"fix a"}`)
			require.NotEmpty(t, start.TaskID)

			res := logEvent(t, e, root, start.TaskID, etg.KindToolStart, `{"tool_name":"edit","files_touched":["a.py"]}`)
			assert.Equal(t, start.TaskID, res.TaskID)

			doc, err := e.Store().Load(context.Background(), root)
			require.NoError(t, err)
			task, _ := doc.Task(start.TaskID)
			step, _ := doc.Step(*res.StepID)
			assert.Contains(t, task.FilesTouched, "a.py")
			assert.Contains(t, step.FilesTouched, "a.py")
		})
	}
}

func TestEngine_AutoStepShared(t *testing.T) {
	e := engines(t)[NameSQLite]
	root := t.TempDir()
	a := logEvent(t, e, root, "t1", etg.KindToolStart, `{}`)
	b := logEvent(t, e, root, "t1", etg.KindToolStart, `{}`)
	assert.Equal(t, *a.StepID, *b.StepID)
}

func TestEngine_UnknownKindLeavesDocumentUnchanged(t *testing.T) {
	for name, e := range engines(t) {
		t.Run(name, func(t *testing.T) {
			root := t.TempDir()
			logEvent(t, e, root, "t1", etg.KindTaskStart, `{}`)
			before := encoded(t, e, root)

			_, err := e.LogEvent(context.Background(), root, "t1", "bogus", json.RawMessage(`{}`))
			require.ErrorIs(t, err, etg.ErrUnsupportedEventKind)
			assert.Equal(t, before, encoded(t, e, root))
		})
	}
}

func TestEngine_ToolEndUnknownTool(t *testing.T) {
	for name, e := range engines(t) {
		t.Run(name, func(t *testing.T) {
			root := t.TempDir()
			started := logEvent(t, e, root, "t1", etg.KindToolStart, `{"tool_name":"run"}`)

			res := logEvent(t, e, root, "t1", etg.KindToolEnd, `{"tool_id":"does-not-exist","success":true}`)
			assert.Nil(t, res.ToolID)

			doc, err := e.Store().Load(context.Background(), root)
			require.NoError(t, err)
			tool, _ := doc.Tool(*started.ToolID)
			assert.Nil(t, tool.Success)
		})
	}
}

func TestEngine_QuerySimilar(t *testing.T) {
	for name, e := range engines(t) {
		t.Run(name, func(t *testing.T) {
			root := t.TempDir()
			logEvent(t, e, root, "t1", etg.KindTaskStart, `{"user_prompt":"repair the parser"}`)
			for i, summary := range []string{"foo", "foo foo foo", "fix foo bug foo again", "nothing"} {
				logEvent(t, e, root, "t1", etg.KindStep, fmt.Sprintf(`{"llm_summary":%q,"order":%d}`, summary, i+1))
			}

			res, err := e.QuerySimilar(context.Background(), root, "foo", nil, 1)
			require.NoError(t, err)
			require.Len(t, res.Results, 1)
			assert.Equal(t, 3, res.Results[0].Score)
			assert.Equal(t, "repair the parser", res.Results[0].UserPrompt)
			assert.Equal(t, "- Step 1 (task t1): score=3 files=", res.SummaryMarkdown)

			res, err = e.QuerySimilar(context.Background(), root, "zebra", nil, 5)
			require.NoError(t, err)
			assert.Empty(t, res.Results)
			assert.Equal(t, query.NoResults, res.SummaryMarkdown)
		})
	}
}

func TestEngine_QuerySimilarEmptyQuery(t *testing.T) {
	e := engines(t)[NameStorage]
	_, err := e.QuerySimilar(context.Background(), t.TempDir(), "", nil, 5)
	require.ErrorIs(t, err, query.ErrEmptyQuery)
}

func TestEngine_ContextForFiles(t *testing.T) {
	for name, e := range engines(t) {
		t.Run(name, func(t *testing.T) {
			root := projectTree(t)
			ctx := context.Background()
			_, err := e.IndexProject(ctx, root, ModeFull)
			require.NoError(t, err)
			logEvent(t, e, root, "t1", etg.KindStep, `{"llm_summary":"touch a"}`)
			logEvent(t, e, root, "t1", etg.KindToolStart, fmt.Sprintf(`{"files_touched":[%q]}`, filepath.Join(root, "a.py")))

			res, err := e.ContextForFiles(ctx, root, []string{"a.py", "nope.py"}, 1)
			require.NoError(t, err)
			require.NotNil(t, res.ContextPack.Files[filepath.Join(root, "a.py")])
			assert.Nil(t, res.ContextPack.Files[filepath.Join(root, "nope.py")])
			require.Len(t, res.ContextPack.ETGSteps, 1)
			assert.Equal(t, 1, res.ContextPack.Radius)
			assert.Contains(t, res.ReturnDisplay, "lang=python")
			assert.Contains(t, res.ReturnDisplay, "Task t1 step")
		})
	}
}

func TestEngine_RelativeRootIsAbsolutized(t *testing.T) {
	e := engines(t)[NameStorage]
	root := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	rel, err := filepath.Rel(wd, root)
	require.NoError(t, err)

	logEvent(t, e, rel, "t1", etg.KindTaskStart, `{}`)

	doc, err := e.Store().Load(context.Background(), root)
	require.NoError(t, err)
	_, ok := doc.Task("t1")
	assert.True(t, ok)
	assert.Equal(t, root, doc.ProjectRoot)
}

func TestEngine_EmptyRoot(t *testing.T) {
	e := engines(t)[NameStorage]
	_, err := e.UpdateFiles(context.Background(), "", nil)
	require.ErrorIs(t, err, ErrRootRequired)
}

func TestEngine_StoreFailureIsUnavailable(t *testing.T) {
	db, err := store.NewSQLiteStore(t.TempDir())
	require.NoError(t, err)
	e := NewEngine(NameSQLite, db, EngineOptions{ReportUnavailable: true})
	require.NoError(t, db.Close())

	_, err = e.QuerySimilar(context.Background(), t.TempDir(), "x", nil, 5)
	require.ErrorIs(t, err, ErrBackendUnavailable)

	_, err = e.LogEvent(context.Background(), t.TempDir(), "t1", "task_start", nil)
	require.ErrorIs(t, err, ErrBackendUnavailable)
}

func TestEngine_OperationFailureIsNotUnavailable(t *testing.T) {
	e := engines(t)[NameSQLite]
	_, err := e.IndexProject(context.Background(), filepath.Join(t.TempDir(), "gone"), ModeFull)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrBackendUnavailable)
}

func TestEngine_CanceledContext(t *testing.T) {
	e := engines(t)[NameStorage]
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.IndexProject(ctx, projectTree(t), ModeFull)
	require.ErrorIs(t, err, context.Canceled)
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeFull, m)
	m, err = ParseMode("incremental")
	require.NoError(t, err)
	assert.Equal(t, ModeIncremental, m)
	_, err = ParseMode("FULL")
	require.ErrorIs(t, err, ErrInvalidMode)
}

func TestEngine_DocumentShapeOnDisk(t *testing.T) {
	e := engines(t)[NameStorage]
	root := t.TempDir()
	logEvent(t, e, root, "t1", etg.KindTaskStart, `{}`)

	data, err := os.ReadFile(e.Store().(*store.FileStore).DocumentPath(root))
	require.NoError(t, err)
	var top map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &top))
	assert.Len(t, top, 3)
	for _, k := range []string{"project_root", "graph", "etg"} {
		assert.Contains(t, top, k)
	}

	doc, err := project.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, root, doc.ProjectRoot)
}

func TestEngine_Status(t *testing.T) {
	for name, e := range engines(t) {
		t.Run(name, func(t *testing.T) {
			root := projectTree(t)
			ctx := context.Background()
			_, err := e.IndexProject(ctx, root, ModeFull)
			require.NoError(t, err)
			logEvent(t, e, root, "t1", etg.KindTaskStart, `{"user_prompt":"fix it"}`)
			logEvent(t, e, root, "t1", etg.KindError, `{"message":"boom"}`)

			res, err := e.Status(ctx, root)
			require.NoError(t, err)
			assert.Equal(t, name, res.Backend)
			assert.Equal(t, root, res.ProjectRoot)
			assert.Equal(t, 2, res.Files)
			assert.Equal(t, 1, res.Tasks)
			assert.Equal(t, 1, res.Steps, "error auto-creates a step")
			assert.Equal(t, 1, res.Errors)
			assert.Contains(t, res.ReturnDisplay, "fix it")
		})
	}
}
