package backend

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/HendryAvila/etgraph/internal/config"
	"github.com/HendryAvila/etgraph/internal/project"
	"github.com/HendryAvila/etgraph/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	return cfg
}

// failSQLite makes every SQLite store construction fail.
func failSQLite(t *testing.T) {
	t.Helper()
	orig := newSQLiteStore
	t.Cleanup(func() { newSQLiteStore = orig })
	newSQLiteStore = func(string) (*store.SQLiteStore, error) {
		return nil, errors.New("sqlite driver missing")
	}
}

func TestParsePreference(t *testing.T) {
	cases := map[string]Preference{
		"":        PreferAuto,
		"auto":    PreferAuto,
		"AUTO":    PreferAuto,
		"sqlite":  PreferSQLite,
		"jac":     PreferSQLite,
		"storage": PreferStorage,
		"json":    PreferStorage,
		"bogus":   PreferStorage,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParsePreference(in), in)
	}
}

func TestSelect_Storage(t *testing.T) {
	b, err := Select(testConfig(t), PreferStorage)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	assert.Equal(t, NameStorage, b.Name())
}

func TestSelect_AutoPrefersSQLite(t *testing.T) {
	b, err := Select(testConfig(t), PreferAuto)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	assert.Equal(t, NameSQLite, b.Name())
}

func TestSelect_AutoFallsBackSilently(t *testing.T) {
	failSQLite(t)
	b, err := Select(testConfig(t), PreferAuto)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	assert.Equal(t, NameStorage, b.Name())
}

func TestSelect_ForcedSQLiteFailsLoudly(t *testing.T) {
	failSQLite(t)
	_, err := Select(testConfig(t), PreferSQLite)
	require.ErrorIs(t, err, ErrBackendUnavailable)

	var unavailable *UnavailableError
	require.True(t, errors.As(err, &unavailable))
	assert.Equal(t, NameSQLite, unavailable.Backend)
	assert.Contains(t, err.Error(), "sqlite driver missing")
}

func TestSelect_SQLiteImportsJSONDocuments(t *testing.T) {
	cfg := testConfig(t)
	root := t.TempDir()

	legacy, err := Select(cfg, PreferStorage)
	require.NoError(t, err)
	_, err = legacy.LogEvent(context.Background(), root, "t1", "task_start", []byte(`{"user_prompt":"old"}`))
	require.NoError(t, err)

	b, err := Select(cfg, PreferSQLite)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	res, err := b.QuerySimilar(context.Background(), root, "old", nil, 5)
	require.NoError(t, err)
	assert.Empty(t, res.Results, "a task without steps has nothing to rank")

	_, err = b.LogEvent(context.Background(), root, "t1", "step", []byte(`{"llm_summary":"continue the old work"}`))
	require.NoError(t, err)
	res, err = b.QuerySimilar(context.Background(), root, "old", nil, 5)
	require.NoError(t, err)
	require.Len(t, res.Results, 1)
	assert.Equal(t, "old", res.Results[0].UserPrompt)
}

func TestSelect_AutoWritesProjectJSON(t *testing.T) {
	cfg := testConfig(t)
	root := t.TempDir()

	b, err := Select(cfg, PreferAuto)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	require.Equal(t, NameSQLite, b.Name())

	_, err = b.LogEvent(context.Background(), root, "t1", "task_start", []byte(`{"user_prompt":"mirror me"}`))
	require.NoError(t, err)

	abs, err := AbsRoot(root)
	require.NoError(t, err)
	path := filepath.Join(cfg.DataDir, store.ProjectHash(abs), store.DocumentFile)
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	doc, err := project.Decode(data)
	require.NoError(t, err)
	task, ok := doc.Task("t1")
	require.True(t, ok)
	assert.Equal(t, "mirror me", task.UserPrompt)
}

func TestSelect_DataDirInsideRootIsNotIndexed(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.py"), []byte("x = 1\n"), 0o644))
	cfg := config.Default()
	cfg.DataDir = filepath.Join(root, "state")

	b, err := Select(cfg, PreferAuto)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	_, err = b.LogEvent(context.Background(), root, "t1", "task_start", []byte(`{"user_prompt":"p"}`))
	require.NoError(t, err)
	res, err := b.IndexProject(context.Background(), root, ModeFull)
	require.NoError(t, err)
	assert.Equal(t, 1, res.FilesIndexed)

	st, err := b.Status(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Files)
}
