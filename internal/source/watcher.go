package source

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Operation represents a file system operation type.
type Operation int

const (
	OpCreate Operation = iota
	OpModify
	OpDelete
)

// FileEvent is a single file change seen by the watcher.
type FileEvent struct {
	Path      string // relative to the project root
	Operation Operation
}

// Watch runs an fsnotify watcher over the project tree until ctx is
// cancelled. Change batches are debounced, reloaded through the cache,
// and hash-changed paths are handed to onChange. Events that do not
// survive hash comparison are dropped silently.
func (c *Cache) Watch(ctx context.Context, debounce time.Duration, onChange func(changed []string)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = w.Close() }()

	if err := c.watchTree(w, c.root); err != nil {
		return err
	}

	d := NewDebouncer(debounce)
	defer d.Stop()

	slog.Debug("source watcher started", slog.String("root", c.root))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			c.handleEvent(w, d, ev)

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watcher error", slog.String("error", err.Error()))

		case batch := <-d.Output():
			paths := make([]string, 0, len(batch))
			for _, ev := range batch {
				paths = append(paths, ev.Path)
			}
			if changed := c.Update(ctx, paths); len(changed) > 0 {
				onChange(changed)
			}
		}
	}
}

func (c *Cache) handleEvent(w *fsnotify.Watcher, d *Debouncer, ev fsnotify.Event) {
	rel, err := filepath.Rel(c.root, ev.Name)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)

	// New directories need their own watch; fsnotify is not recursive.
	if ev.Op.Has(fsnotify.Create) {
		if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
			if !c.skipDir(filepath.Base(ev.Name), rel) {
				_ = c.watchTree(w, ev.Name)
			}
			return
		}
	}

	if !isGoFile(rel) || c.excluded(rel) {
		return
	}

	var op Operation
	switch {
	case ev.Op.Has(fsnotify.Create):
		op = OpCreate
	case ev.Op.Has(fsnotify.Write):
		op = OpModify
	case ev.Op.Has(fsnotify.Remove), ev.Op.Has(fsnotify.Rename):
		op = OpDelete
	default:
		return
	}

	d.Add(FileEvent{Path: rel, Operation: op})
}

// watchTree adds path and every non-excluded subdirectory to the watcher.
func (c *Cache) watchTree(w *fsnotify.Watcher, path string) error {
	return filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return err
		}
		rel, relErr := filepath.Rel(c.root, p)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)
		if rel != "." && c.skipDir(d.Name(), rel) {
			return filepath.SkipDir
		}
		return w.Add(p)
	})
}
