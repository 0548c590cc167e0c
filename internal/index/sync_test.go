package index

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaybeReload_PicksUpSiblingWrite(t *testing.T) {
	dir := newProject(t)
	cp := filepath.Join(t.TempDir(), "index.json")

	writer := newFixture(t, dir, cp)
	require.NoError(t, writer.orch.fullPass(context.Background()))

	reader := newFixture(t, dir, cp)
	require.Zero(t, reader.idx.Len())

	reader.orch.maybeReload()

	assert.Equal(t, writer.idx.Len(), reader.idx.Len())
	assert.Equal(t, writer.idx.IDs(), reader.idx.IDs())
}

func TestMaybeReload_IgnoresOwnWrite(t *testing.T) {
	dir := newProject(t)
	cp := filepath.Join(t.TempDir(), "index.json")

	f := newFixture(t, dir, cp)
	require.NoError(t, f.orch.fullPass(context.Background()))

	// Wipe the in-memory index; a reload would repopulate it.
	f.idx.RemoveFiles([]string{"alpha.go", "beta.go"})
	f.idx.RemoveVirtual()
	require.Zero(t, f.idx.Len())

	f.orch.maybeReload()

	assert.Zero(t, f.idx.Len(), "own checkpoint write must not trigger a reload")
}

func TestMaybeReload_IgnoresAlreadyConsumedVersion(t *testing.T) {
	dir := newProject(t)
	cp := filepath.Join(t.TempDir(), "index.json")

	writer := newFixture(t, dir, cp)
	require.NoError(t, writer.orch.fullPass(context.Background()))

	reader := newFixture(t, dir, cp)
	reader.orch.maybeReload()
	require.Greater(t, reader.idx.Len(), 0)

	// Same file version again: no reload.
	reader.idx.RemoveVirtual()
	sizeAfterWipe := reader.idx.Len()
	reader.orch.maybeReload()
	assert.Equal(t, sizeAfterWipe, reader.idx.Len())
}

func TestMaybeReload_SkipsWhileRunning(t *testing.T) {
	dir := newProject(t)
	cp := filepath.Join(t.TempDir(), "index.json")

	writer := newFixture(t, dir, cp)
	require.NoError(t, writer.orch.fullPass(context.Background()))

	reader := newFixture(t, dir, cp)
	reader.orch.mu.Lock()
	reader.orch.running = true
	reader.orch.mu.Unlock()

	reader.orch.maybeReload()
	assert.Zero(t, reader.idx.Len())
}

func TestWatchCheckpoint_ReloadsOnWrite(t *testing.T) {
	dir := newProject(t)
	cp := filepath.Join(t.TempDir(), "index.json")

	reader := newFixture(t, dir, cp)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	watchErr := make(chan error, 1)
	go func() { watchErr <- reader.orch.WatchCheckpoint(ctx) }()

	// Let the watcher establish itself before the write lands.
	time.Sleep(100 * time.Millisecond)

	writer := newFixture(t, dir, cp)
	require.NoError(t, writer.orch.fullPass(context.Background()))

	require.Eventually(t, func() bool {
		return reader.idx.Len() == writer.idx.Len()
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	require.ErrorIs(t, <-watchErr, context.Canceled)
}

func TestWatchCheckpoint_MissingDirIsCreated(t *testing.T) {
	dir := newProject(t)
	cp := filepath.Join(t.TempDir(), "nested", "cache", "index.json")

	f := newFixture(t, dir, cp)

	ctx, cancel := context.WithCancel(context.Background())
	watchErr := make(chan error, 1)
	go func() { watchErr <- f.orch.WatchCheckpoint(ctx) }()

	time.Sleep(100 * time.Millisecond)
	info, err := os.Stat(filepath.Dir(cp))
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	cancel()
	require.ErrorIs(t, <-watchErr, context.Canceled)
}
