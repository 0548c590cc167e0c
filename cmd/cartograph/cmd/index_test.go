package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const demoSource = `package demo

import "fmt"

func Hello(name string) string {
	return fmt.Sprintf("hello %s", name)
}
`

func setupProject(t *testing.T) string {
	t.Helper()
	isolate(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "go.mod"), []byte("module example.com/demo\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "demo.go"), []byte(demoSource), 0o644))
	t.Chdir(dir)
	return dir
}

func TestIndexCmd_OfflineBuildsIndex(t *testing.T) {
	setupProject(t)

	out, err := runCommand(t, "index", "--offline")
	require.NoError(t, err)
	assert.Contains(t, out, "Indexing")
	assert.Contains(t, out, "indexed")

	// Status now reports a complete index.
	out, err = runCommand(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "index is complete")
}

func TestIndexCmd_SecondRunIsUpToDate(t *testing.T) {
	setupProject(t)

	_, err := runCommand(t, "index", "--offline")
	require.NoError(t, err)

	out, err := runCommand(t, "index", "--offline")
	require.NoError(t, err)
	assert.Contains(t, out, "indexed")
}

func TestSearchCmd_FindsFunction(t *testing.T) {
	setupProject(t)

	out, err := runCommand(t, "search", "--offline", "say hello to someone")
	require.NoError(t, err)
	assert.Contains(t, out, "demo.go")
}

func TestSearchCmd_JSONOutput(t *testing.T) {
	setupProject(t)

	out, err := runCommand(t, "search", "--offline", "--json", "--limit", "3", "hello")
	require.NoError(t, err)
	assert.Contains(t, out, `"Chunk"`)
	assert.Contains(t, out, `"Score"`)
}

func TestSearchCmd_SimilarUnknownChunkFails(t *testing.T) {
	setupProject(t)

	_, err := runCommand(t, "index", "--offline")
	require.NoError(t, err)

	_, err = runCommand(t, "search", "--offline", "--similar", "missing.go:1")
	assert.Error(t, err)
}
