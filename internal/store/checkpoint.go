package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/gofrs/flock"

	carterrors "github.com/cartograph-dev/cartograph/internal/errors"
)

// SchemaVersion is the current checkpoint format version. A checkpoint
// written with an older version is stale and disposable.
const SchemaVersion = 1

// checkpointFile is the persisted form of the index.
type checkpointFile struct {
	SchemaVersion       int               `json:"schemaVersion"`
	IsComplete          bool              `json:"isComplete"`
	TotalExpectedChunks int               `json:"totalExpectedChunks"`
	DgxJobID            string            `json:"dgxJobId,omitempty"`
	FileHashes          map[string]string `json:"fileHashes"`
	Entries             []*Entry          `json:"entries"`
}

// LoadResult describes what a checkpoint load found.
type LoadResult struct {
	// Changed lists files whose hash differs from the checkpoint, files
	// the checkpoint has never seen, and files the checkpoint knows that
	// no longer exist.
	Changed []string

	// IsComplete is the checkpoint's completeness flag. Incomplete means
	// a resumable partial build.
	IsComplete bool

	// TotalExpected is the chunk count the interrupted run was aiming for.
	TotalExpected int

	// JobID is the in-flight job id, if the writing run had one.
	JobID string
}

// CheckpointPath returns the deterministic checkpoint location for a
// project root: <user cache dir>/cartograph/index-<hash>.json.
func CheckpointPath(projectRoot string) (string, error) {
	abs, err := filepath.Abs(projectRoot)
	if err != nil {
		return "", err
	}

	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve user cache dir: %w", err)
	}

	sum := sha256.Sum256([]byte(abs))
	key := hex.EncodeToString(sum[:])[:16]
	return filepath.Join(cacheDir, "cartograph", "index-"+key+".json"), nil
}

// Save writes the full index to path atomically (temp file + rename)
// under a file lock so sibling instances never interleave writes.
func (x *EmbeddingIndex) Save(path string, complete bool, totalExpected int, jobID string) error {
	x.mu.RLock()
	cp := checkpointFile{
		SchemaVersion:       SchemaVersion,
		IsComplete:          complete,
		TotalExpectedChunks: totalExpected,
		DgxJobID:            jobID,
		FileHashes:          make(map[string]string, len(x.fileHashes)),
		Entries:             make([]*Entry, 0, len(x.entries)),
	}
	for k, v := range x.fileHashes {
		cp.FileHashes[k] = v
	}
	for _, e := range x.entries {
		cp.Entries = append(cp.Entries, e)
	}
	x.mu.RUnlock()

	sort.Slice(cp.Entries, func(i, j int) bool {
		return cp.Entries[i].Chunk.ID < cp.Entries[j].Chunk.ID
	})

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return carterrors.New(carterrors.ErrCodeCheckpointSave, "failed to create checkpoint dir", err)
	}

	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return carterrors.New(carterrors.ErrCodeCheckpointSave, "failed to lock checkpoint", err)
	}
	defer func() { _ = lock.Unlock() }()

	data, err := json.Marshal(&cp)
	if err != nil {
		return carterrors.New(carterrors.ErrCodeCheckpointSave, "failed to encode checkpoint", err)
	}

	tmp, err := os.CreateTemp(dir, ".checkpoint-*")
	if err != nil {
		return carterrors.New(carterrors.ErrCodeCheckpointSave, "failed to create temp file", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return carterrors.New(carterrors.ErrCodeCheckpointSave, "failed to write checkpoint", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return carterrors.New(carterrors.ErrCodeCheckpointSave, "failed to close temp file", err)
	}

	// Atomic on the same filesystem.
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return carterrors.New(carterrors.ErrCodeCheckpointSave, "failed to replace checkpoint", err)
	}

	slog.Debug("checkpoint saved",
		slog.String("path", path),
		slog.Bool("complete", complete),
		slog.Int("entries", len(cp.Entries)),
	)
	return nil
}

// Load reads a checkpoint and reconciles it against the caller's current
// file hashes. A missing file returns (nil, nil). A checkpoint that fails
// to parse or carries an old schema version is deleted and treated as
// absent. Entries of changed files stay loaded, stale but present, until
// superseded.
func (x *EmbeddingIndex) Load(path string, currentHashes map[string]string) (*LoadResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var cp checkpointFile
	if err := json.Unmarshal(data, &cp); err != nil {
		slog.Warn("checkpoint unparsable, discarding",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		_ = os.Remove(path)
		return nil, nil
	}
	if cp.SchemaVersion < SchemaVersion {
		slog.Warn("checkpoint schema is stale, discarding",
			slog.String("path", path),
			slog.Int("found", cp.SchemaVersion),
			slog.Int("current", SchemaVersion),
		)
		_ = os.Remove(path)
		return nil, nil
	}

	x.mu.Lock()
	x.entries = make(map[string]*Entry, len(cp.Entries))
	x.fileHashes = cp.FileHashes
	if x.fileHashes == nil {
		x.fileHashes = make(map[string]string)
	}
	x.dims = 0
	for _, e := range cp.Entries {
		x.entries[e.Chunk.ID] = e
		if x.dims == 0 {
			x.dims = len(e.Vector)
		}
	}
	x.mu.Unlock()

	result := &LoadResult{
		IsComplete:    cp.IsComplete,
		TotalExpected: cp.TotalExpectedChunks,
		JobID:         cp.DgxJobID,
	}

	for file, hash := range currentHashes {
		if cp.FileHashes[file] != hash {
			result.Changed = append(result.Changed, file)
		}
	}
	for file := range cp.FileHashes {
		if _, ok := currentHashes[file]; !ok {
			result.Changed = append(result.Changed, file)
		}
	}
	sort.Strings(result.Changed)

	slog.Info("checkpoint loaded",
		slog.String("path", path),
		slog.Bool("complete", cp.IsComplete),
		slog.Int("entries", len(cp.Entries)),
		slog.Int("changed_files", len(result.Changed)),
	)
	return result, nil
}
