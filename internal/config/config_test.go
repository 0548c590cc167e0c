package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, DefaultEmbedServerURL, cfg.Embed.ServerURL)
	assert.Equal(t, DefaultCheckpointInterval, cfg.Indexing.CheckpointInterval)
	assert.Equal(t, DefaultJobPollInterval, cfg.Indexing.JobPollInterval)
	assert.Equal(t, DefaultWatchDebounce, cfg.Watcher.Debounce)
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	content := []byte("embed:\n  server_url: http://dgx-spark:8080\n")
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, ConfigFileName), content, 0o644))

	cfg, err := Load(tmpDir)
	require.NoError(t, err)

	assert.Equal(t, "http://dgx-spark:8080", cfg.Embed.ServerURL)
	// Unspecified fields keep defaults.
	assert.Equal(t, DefaultEmbedMaxRetries, cfg.Embed.MaxRetries)
	assert.Equal(t, DefaultJobActivationWait, cfg.Indexing.JobActivationTimeout)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	tmpDir := t.TempDir()
	content := []byte("embed:\n  server_url: http://from-file:8080\n")
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, ConfigFileName), content, 0o644))

	t.Setenv("CARTOGRAPH_EMBED_SERVER", "http://from-env:8080")
	t.Setenv("CARTOGRAPH_BATCH_SIZE", "16")

	cfg, err := Load(tmpDir)
	require.NoError(t, err)

	assert.Equal(t, "http://from-env:8080", cfg.Embed.ServerURL)
	assert.Equal(t, 16, cfg.Embed.BatchSize)
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, ConfigFileName), []byte("embed: ["), 0o644))

	_, err := Load(tmpDir)
	assert.Error(t, err)
}

func TestValidate_RejectsBadValues(t *testing.T) {
	cfg := New()
	cfg.Indexing.CheckpointInterval = 0
	assert.Error(t, cfg.Validate())

	cfg = New()
	cfg.Indexing.JobPollInterval = -time.Second
	assert.Error(t, cfg.Validate())

	cfg = New()
	cfg.Embed.BatchSize = -1
	assert.Error(t, cfg.Validate())
}
