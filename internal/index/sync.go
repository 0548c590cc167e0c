package index

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// WatchCheckpoint watches the checkpoint file for writes by sibling
// instances and reloads the index when one lands. Blocks until ctx is
// cancelled. Own writes are recognized by mtime and never reloaded.
func (o *Orchestrator) WatchCheckpoint(ctx context.Context) error {
	dir := filepath.Dir(o.cfg.CheckpointPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(dir); err != nil {
		return err
	}
	slog.Debug("watching checkpoint for sibling writes", slog.String("path", o.cfg.CheckpointPath))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Name != o.cfg.CheckpointPath {
				continue
			}
			if !ev.Op.Has(fsnotify.Create) && !ev.Op.Has(fsnotify.Write) && !ev.Op.Has(fsnotify.Rename) {
				continue
			}
			o.maybeReload()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("checkpoint watcher error", slog.String("error", err.Error()))
		}
	}
}

// maybeReload loads the checkpoint if it is strictly newer than anything
// this instance wrote or consumed, and no run is active. A run in flight
// wins: its finalize will overwrite the sibling's state anyway.
func (o *Orchestrator) maybeReload() {
	info, err := os.Stat(o.cfg.CheckpointPath)
	if err != nil {
		return
	}

	o.mu.Lock()
	busy := o.running
	latest := o.lastSelfWrite
	if o.lastConsumed.After(latest) {
		latest = o.lastConsumed
	}
	o.mu.Unlock()

	if busy || !info.ModTime().After(latest) {
		return
	}

	if _, err := o.index.Load(o.cfg.CheckpointPath, o.cache.Hashes()); err != nil {
		slog.Warn("failed to reload sibling checkpoint", slog.String("error", err.Error()))
		return
	}

	o.mu.Lock()
	o.lastConsumed = info.ModTime()
	o.mu.Unlock()

	slog.Info("reloaded checkpoint written by sibling instance",
		slog.Int("chunks", o.index.Len()),
	)
}
