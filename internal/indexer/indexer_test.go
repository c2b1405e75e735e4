package indexer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/HendryAvila/etgraph/internal/project"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTree creates files (relative path -> content) under a temp root.
func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

// failOpenFor makes HashFile fail for one base name.
func failOpenFor(t *testing.T, name string) {
	t.Helper()
	orig := openFile
	t.Cleanup(func() { openFile = orig })
	openFile = func(path string) (*os.File, error) {
		if filepath.Base(path) == name {
			return nil, errors.New("permission denied")
		}
		return orig(path)
	}
}

func TestLanguageFor(t *testing.T) {
	cases := map[string]string{
		"a.py":         "python",
		"A.PY":         "python",
		"x/y.ts":       "typescript",
		"c.tsx":        "tsx",
		"d.jsx":        "jsx",
		"README.md":    "markdown",
		"pkg.json":     "json",
		"main.go":      "go",
		"Makefile":     UnknownLanguage,
		"archive.tar":  UnknownLanguage,
		"walker.jac":   "jac",
		"settings.yml": "yaml",
	}
	for path, want := range cases {
		assert.Equal(t, want, LanguageFor(path), path)
	}
}

func TestHashFile_SHA256(t *testing.T) {
	root := writeTree(t, map[string]string{"a.txt": "hello"})
	got, err := HashFile(filepath.Join(root, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824", got)
}

func TestIndexTree_SkipsNoiseDirectories(t *testing.T) {
	root := writeTree(t, map[string]string{
		"main.py":                 "print(1)",
		"src/util.ts":             "export {}",
		".git/HEAD":               "ref",
		"node_modules/x/index.js": "x",
		"dist/bundle.js":          "b",
		"__pycache__/m.pyc":       "c",
		".qwen/graphs/p.json":     "{}",
	})
	files := map[string]project.FileRecord{}

	stats, err := New(Options{}).IndexTree(context.Background(), root, files)
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Processed)
	assert.Len(t, files, 2)
	rec, ok := files[filepath.Join(root, "main.py")]
	require.True(t, ok)
	assert.Equal(t, "python", rec.Language)
	assert.Equal(t, int64(len("print(1)")), rec.SizeBytes)
	assert.Len(t, rec.Hash, 64)
	assert.Regexp(t, `^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}Z$`, rec.LastModified)
}

func TestIndexTree_CustomExcludes(t *testing.T) {
	root := writeTree(t, map[string]string{"keep/a.py": "a", "vendor/b.py": "b"})
	files := map[string]project.FileRecord{}

	_, err := New(Options{ExcludeDirs: []string{"vendor"}}).IndexTree(context.Background(), root, files)
	require.NoError(t, err)

	assert.Contains(t, files, filepath.Join(root, "keep", "a.py"))
	assert.NotContains(t, files, filepath.Join(root, "vendor", "b.py"))
}

func TestIndexTree_Idempotent(t *testing.T) {
	root := writeTree(t, map[string]string{"a.py": "a", "b/c.md": "# c"})
	ix := New(Options{Workers: 2})

	first := map[string]project.FileRecord{}
	s1, err := ix.IndexTree(context.Background(), root, first)
	require.NoError(t, err)
	second := map[string]project.FileRecord{}
	s2, err := ix.IndexTree(context.Background(), root, second)
	require.NoError(t, err)

	assert.Equal(t, s1.Processed, s2.Processed)
	assert.Equal(t, first, second)
}

func TestIndexTree_RehashesSameSizeSameSecondRewrite(t *testing.T) {
	root := writeTree(t, map[string]string{"a.py": "foo"})
	path := filepath.Join(root, "a.py")
	stamp := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, os.Chtimes(path, stamp, stamp))

	files := map[string]project.FileRecord{}
	ix := New(Options{})
	_, err := ix.IndexTree(context.Background(), root, files)
	require.NoError(t, err)
	before := files[path]

	// Same size, same second: only the content differs.
	require.NoError(t, os.WriteFile(path, []byte("bar"), 0o644))
	later := stamp.Add(500 * time.Millisecond)
	require.NoError(t, os.Chtimes(path, later, later))

	_, err = ix.IndexTree(context.Background(), root, files)
	require.NoError(t, err)
	after := files[path]

	assert.Equal(t, before.SizeBytes, after.SizeBytes)
	assert.Equal(t, before.LastModified, after.LastModified)
	want, err := HashFile(path)
	require.NoError(t, err)
	assert.Equal(t, want, after.Hash)
	assert.NotEqual(t, before.Hash, after.Hash)
}

func TestIndexTree_SkipsDataDirByPath(t *testing.T) {
	root := writeTree(t, map[string]string{
		"a.py":                        "a",
		"state/graphs/x/project.json": "{}",
	})
	files := map[string]project.FileRecord{}

	stats, err := New(Options{SkipPaths: []string{filepath.Join(root, "state", "graphs")}}).IndexTree(context.Background(), root, files)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Processed)
	assert.NotContains(t, files, filepath.Join(root, "state", "graphs", "x", "project.json"))
}

func TestUpdatePaths_SkipsDataDirByPath(t *testing.T) {
	root := writeTree(t, map[string]string{"data/project.json": "{}", "a.py": "a"})
	files := map[string]project.FileRecord{}

	stats, err := New(Options{SkipPaths: []string{filepath.Join(root, "data")}}).UpdatePaths(context.Background(), root,
		[]string{"data/project.json", "a.py"}, files)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Processed)
	assert.Equal(t, 1, stats.Skipped)
	assert.NotContains(t, files, filepath.Join(root, "data", "project.json"))
}

func TestIndexTree_UnreadableFileSkippedByDefault(t *testing.T) {
	root := writeTree(t, map[string]string{"ok.py": "ok", "bad.py": "bad"})
	failOpenFor(t, "bad.py")
	files := map[string]project.FileRecord{}

	stats, err := New(Options{}).IndexTree(context.Background(), root, files)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Processed)
	assert.Equal(t, 1, stats.Skipped)
	assert.NotContains(t, files, filepath.Join(root, "bad.py"))
}

func TestIndexTree_StrictModeFails(t *testing.T) {
	root := writeTree(t, map[string]string{"ok.py": "ok", "bad.py": "bad"})
	failOpenFor(t, "bad.py")

	_, err := New(Options{Strict: true}).IndexTree(context.Background(), root, map[string]project.FileRecord{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.py")
}

func TestIndexTree_MissingRoot(t *testing.T) {
	_, err := New(Options{}).IndexTree(context.Background(), filepath.Join(t.TempDir(), "gone"), map[string]project.FileRecord{})
	require.Error(t, err)
}

func TestIndexTree_CanceledContext(t *testing.T) {
	root := writeTree(t, map[string]string{"a.py": "a"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(Options{}).IndexTree(ctx, root, map[string]project.FileRecord{})
	require.ErrorIs(t, err, context.Canceled)
}

func TestIndexTree_SkipsSymlinkedDirectories(t *testing.T) {
	root := writeTree(t, map[string]string{"real/a.py": "a"})
	if err := os.Symlink(filepath.Join(root, "real"), filepath.Join(root, "link")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}
	files := map[string]project.FileRecord{}

	_, err := New(Options{Strict: true}).IndexTree(context.Background(), root, files)
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestUpdatePaths_RelativeAndAbsolute(t *testing.T) {
	root := writeTree(t, map[string]string{"a.py": "a", "b/c.js": "c"})
	files := map[string]project.FileRecord{}

	stats, err := New(Options{}).UpdatePaths(context.Background(), root,
		[]string{"a.py", filepath.Join(root, "b", "c.js")}, files)
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Processed)
	assert.Contains(t, files, filepath.Join(root, "a.py"))
	assert.Equal(t, "javascript", files[filepath.Join(root, "b", "c.js")].Language)
}

func TestUpdatePaths_MissingFilesSkippedNotRemoved(t *testing.T) {
	root := writeTree(t, map[string]string{"a.py": "a"})
	stale := filepath.Join(root, "gone.py")
	files := map[string]project.FileRecord{stale: {Path: stale, Hash: "old"}}

	stats, err := New(Options{}).UpdatePaths(context.Background(), root, []string{"gone.py", "b"}, files)
	require.NoError(t, err)

	assert.Zero(t, stats.Processed)
	assert.Equal(t, 2, stats.Skipped)
	assert.Equal(t, "old", files[stale].Hash)
}

func TestUpdatePaths_DirectoryIsSkipped(t *testing.T) {
	root := writeTree(t, map[string]string{"sub/a.py": "a"})
	files := map[string]project.FileRecord{}

	stats, err := New(Options{}).UpdatePaths(context.Background(), root, []string{"sub"}, files)
	require.NoError(t, err)
	assert.Zero(t, stats.Processed)
	assert.Empty(t, files)
}

func TestUpdatePaths_StrictUnreadable(t *testing.T) {
	root := writeTree(t, map[string]string{"bad.py": "x"})
	failOpenFor(t, "bad.py")

	_, err := New(Options{Strict: true}).UpdatePaths(context.Background(), root, []string{"bad.py"}, map[string]project.FileRecord{})
	require.Error(t, err)

	stats, err := New(Options{}).UpdatePaths(context.Background(), root, []string{"bad.py"}, map[string]project.FileRecord{})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Skipped)
}
