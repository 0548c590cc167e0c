package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestScan_FindsGoFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "main.go", "package main\n\nfunc main() {}\n")
	writeFile(t, root, "pkg/util.go", "package pkg\n\nfunc Util() {}\n")
	writeFile(t, root, "README.md", "# readme\n")
	writeFile(t, root, "vendor/dep/dep.go", "package dep\n")
	writeFile(t, root, ".hidden/x.go", "package hidden\n")

	c := NewCache(root, nil)
	defer c.Close()
	require.NoError(t, c.Scan(context.Background()))

	files := c.Files()
	require.Len(t, files, 2)
	assert.Equal(t, "main.go", files[0].Path)
	assert.Equal(t, "pkg/util.go", files[1].Path)

	f := c.File("main.go")
	require.NotNil(t, f)
	assert.Equal(t, "main", f.Syntax.Package)
	assert.NotEmpty(t, f.Hash)
}

func TestScan_AppliesExcludes(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "keep.go", "package a\n")
	writeFile(t, root, "gen/out.go", "package gen\n")

	c := NewCache(root, []string{"gen/**"})
	defer c.Close()
	require.NoError(t, c.Scan(context.Background()))

	assert.Equal(t, 1, c.Len())
	assert.Nil(t, c.File("gen/out.go"))
}

func TestScan_HonorsGitignore(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ".gitignore", "gen/\n*.gen.go\n")
	writeFile(t, root, "keep.go", "package a\n")
	writeFile(t, root, "types.gen.go", "package a\n")
	writeFile(t, root, "gen/out.go", "package gen\n")

	c := NewCache(root, nil)
	defer c.Close()
	require.NoError(t, c.Scan(context.Background()))

	assert.Equal(t, 1, c.Len())
	assert.NotNil(t, c.File("keep.go"))
	assert.Nil(t, c.File("types.gen.go"))
	assert.Nil(t, c.File("gen/out.go"))

	// Watcher events for ignored paths are dropped too.
	writeFile(t, root, "types.gen.go", "package a\n\nfunc Regen() {}\n")
	assert.Empty(t, c.Update(context.Background(), []string{"types.gen.go"}))
}

func TestScan_DropsDeletedFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.go", "package a\n")
	writeFile(t, root, "b.go", "package a\n")

	c := NewCache(root, nil)
	defer c.Close()
	require.NoError(t, c.Scan(context.Background()))
	require.Equal(t, 2, c.Len())

	require.NoError(t, os.Remove(filepath.Join(root, "b.go")))
	require.NoError(t, c.Scan(context.Background()))

	assert.Equal(t, 1, c.Len())
	assert.Nil(t, c.File("b.go"))
}

func TestUpdate_DetectsContentChange(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.go", "package a\n\nfunc One() {}\n")

	c := NewCache(root, nil)
	defer c.Close()
	require.NoError(t, c.Scan(context.Background()))
	oldHash := c.File("a.go").Hash

	writeFile(t, root, "a.go", "package a\n\nfunc Two() {}\n")
	changed := c.Update(context.Background(), []string{"a.go"})

	assert.Equal(t, []string{"a.go"}, changed)
	assert.NotEqual(t, oldHash, c.File("a.go").Hash)
}

func TestUpdate_SuppressesNoOpEvents(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.go", "package a\n")

	c := NewCache(root, nil)
	defer c.Close()
	require.NoError(t, c.Scan(context.Background()))

	// Touch without changing content.
	writeFile(t, root, "a.go", "package a\n")
	changed := c.Update(context.Background(), []string{"a.go"})

	assert.Empty(t, changed)
}

func TestUpdate_ReportsDeletions(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.go", "package a\n")

	c := NewCache(root, nil)
	defer c.Close()
	require.NoError(t, c.Scan(context.Background()))

	require.NoError(t, os.Remove(filepath.Join(root, "a.go")))
	changed := c.Update(context.Background(), []string{"a.go"})

	assert.Equal(t, []string{"a.go"}, changed)
	assert.Equal(t, 0, c.Len())
}

func TestHashes_SnapshotsAllFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.go", "package a\n")
	writeFile(t, root, "b.go", "package a\n\nfunc B() {}\n")

	c := NewCache(root, nil)
	defer c.Close()
	require.NoError(t, c.Scan(context.Background()))

	hashes := c.Hashes()
	require.Len(t, hashes, 2)
	assert.Equal(t, c.File("a.go").Hash, hashes["a.go"])
	assert.NotEqual(t, hashes["a.go"], hashes["b.go"])
}
