package indexer

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

type mockIndexer struct {
	mu           sync.Mutex
	indexedFiles map[string]int
	rootKinds    map[string]string
}

func newMockIndexer() *mockIndexer {
	return &mockIndexer{
		indexedFiles: make(map[string]int),
		rootKinds:    make(map[string]string),
	}
}

func (m *mockIndexer) ID() string { return "mock" }

func (m *mockIndexer) Index(path string, node *tree_sitter.Node, content []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.indexedFiles[path]++
	m.rootKinds[path] = node.Kind()
	return nil
}

func (m *mockIndexer) RemovedFiles(paths []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, path := range paths {
		delete(m.rootKinds, path)
	}
	return nil
}

func (m *mockIndexer) Close() error { return nil }

func (m *mockIndexer) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rootKinds = make(map[string]string)
	return nil
}

func (m *mockIndexer) count(path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.indexedFiles[path]
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func newTestScanner(t *testing.T, root string) (*FileScanner, *mockIndexer) {
	t.Helper()
	fs, err := NewFileScanner(root, filepath.Join(t.TempDir(), "files.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = fs.Close() })

	mock := newMockIndexer()
	fs.AddIndexer(mock)
	return fs, mock
}

func TestFileScanner_IndexAll_SkipDirs(t *testing.T) {
	root := t.TempDir()
	for _, dir := range []string{"src", "node_modules", "vendor-bin", "tests", filepath.Join("nested", "node_modules")} {
		writeFile(t, filepath.Join(root, dir, "file.php"), "<?php\n")
	}
	writeFile(t, filepath.Join(root, "src", "readme.md"), "# not php")
	writeFile(t, filepath.Join(root, "src", "tool.phar.php"), "<?php\n")

	fs, mock := newTestScanner(t, root)
	require.NoError(t, fs.IndexAll(context.Background()))

	assert.Equal(t, 1, mock.count(filepath.Join(root, "src", "file.php")))
	assert.Equal(t, "program", mock.rootKinds[filepath.Join(root, "src", "file.php")])

	for _, skipped := range []string{
		filepath.Join(root, "node_modules", "file.php"),
		filepath.Join(root, "vendor-bin", "file.php"),
		filepath.Join(root, "tests", "file.php"),
		filepath.Join(root, "nested", "node_modules", "file.php"),
		filepath.Join(root, "src", "tool.phar.php"),
	} {
		assert.Zero(t, mock.count(skipped), "indexed %s", skipped)
	}
}

func TestFileScanner_UnchangedFilesAreSkipped(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "src", "Foo.php")
	writeFile(t, path, "<?php class Foo {}\n")

	fs, mock := newTestScanner(t, root)
	require.NoError(t, fs.IndexAll(context.Background()))
	require.NoError(t, fs.IndexAll(context.Background()))
	assert.Equal(t, 1, mock.count(path))

	writeFile(t, path, "<?php class Foo { public int $bar; }\n")
	require.NoError(t, fs.IndexFiles(context.Background(), []string{path}))
	assert.Equal(t, 2, mock.count(path))

	require.NoError(t, fs.ClearHashes())
	require.NoError(t, fs.IndexAll(context.Background()))
	assert.Equal(t, 3, mock.count(path))
}

func TestFileScanner_RemoveFiles(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "Foo.php")
	writeFile(t, path, "<?php\n")

	fs, mock := newTestScanner(t, root)
	updates := 0
	fs.SetOnUpdate(func() { updates++ })

	require.NoError(t, fs.IndexAll(context.Background()))
	require.Contains(t, mock.rootKinds, path)

	require.NoError(t, fs.RemoveFiles(context.Background(), []string{path}))
	assert.NotContains(t, mock.rootKinds, path)
	assert.Equal(t, 2, updates)

	// forgotten state means the file is indexed again
	require.NoError(t, fs.IndexAll(context.Background()))
	assert.Equal(t, 2, mock.count(path))
}

func TestFileScanner_SetRoots(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "src", "A.php"), "<?php\n")
	writeFile(t, filepath.Join(root, "vendor", "acme", "lib", "B.php"), "<?php\n")
	writeFile(t, filepath.Join(root, "other", "C.php"), "<?php\n")

	fs, _ := newTestScanner(t, root)
	fs.SetRoots([]string{"src", filepath.Join(root, "vendor")})

	files, err := fs.Files()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		filepath.Join(root, "src", "A.php"),
		filepath.Join(root, "vendor", "acme", "lib", "B.php"),
	}, files)
}

func TestFileScanner_CancelledContext(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "A.php"), "<?php\n")

	fs, _ := newTestScanner(t, root)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := fs.IndexAll(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
