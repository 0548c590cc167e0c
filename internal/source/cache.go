package source

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/cartograph-dev/cartograph/internal/gitignore"
	"github.com/cartograph-dev/cartograph/internal/parser"
)

// Cache scans a project root for Go files and keeps them parsed.
type Cache struct {
	root     string
	excludes []string
	ignore   *gitignore.Matcher
	parser   *parser.Parser

	mu    sync.RWMutex
	files map[string]*ParsedFile
}

// NewCache creates a cache for the given project root.
// Exclude patterns use slash-separated relative paths; a trailing "/**"
// excludes a whole subtree. The root's .gitignore, if present, is
// honored on top of the configured excludes.
func NewCache(root string, excludes []string) *Cache {
	ignore, err := gitignore.Load(filepath.Join(root, ".gitignore"))
	if err != nil {
		slog.Warn("failed to read .gitignore, continuing without it",
			slog.String("root", root),
			slog.String("error", err.Error()),
		)
		ignore = gitignore.New()
	}

	return &Cache{
		root:     root,
		excludes: excludes,
		ignore:   ignore,
		parser:   parser.NewParser(),
		files:    make(map[string]*ParsedFile),
	}
}

// Close releases parser resources.
func (c *Cache) Close() {
	c.parser.Close()
}

// Root returns the project root the cache was created with.
func (c *Cache) Root() string {
	return c.root
}

// Scan walks the root and (re)loads every Go file.
// Files that disappeared since the last scan are dropped.
func (c *Cache) Scan(ctx context.Context) error {
	seen := make(map[string]struct{})

	err := filepath.WalkDir(c.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		rel, relErr := filepath.Rel(c.root, path)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if rel == "." {
				return nil
			}
			if c.skipDir(d.Name(), rel) {
				return filepath.SkipDir
			}
			return nil
		}

		if !isGoFile(d.Name()) || c.excluded(rel) || c.ignore.Match(rel, false) {
			return nil
		}

		seen[rel] = struct{}{}
		if _, err := c.loadFile(ctx, rel); err != nil {
			slog.Warn("skipping unreadable file",
				slog.String("path", rel),
				slog.String("error", err.Error()),
			)
		}
		return nil
	})
	if err != nil {
		return err
	}

	c.mu.Lock()
	for path := range c.files {
		if _, ok := seen[path]; !ok {
			delete(c.files, path)
		}
	}
	total := len(c.files)
	c.mu.Unlock()

	slog.Debug("source scan complete",
		slog.String("root", c.root),
		slog.Int("files", total),
	)
	return nil
}

// Update re-reads the given relative paths and returns those whose content
// hash actually changed, including files that were deleted. No-op events
// are suppressed here so downstream never re-indexes identical content.
func (c *Cache) Update(ctx context.Context, paths []string) []string {
	var changed []string
	for _, rel := range paths {
		if !isGoFile(rel) || c.excluded(rel) || c.ignore.Match(rel, false) {
			continue
		}

		abs := filepath.Join(c.root, filepath.FromSlash(rel))
		if _, err := os.Stat(abs); err != nil {
			c.mu.Lock()
			_, existed := c.files[rel]
			delete(c.files, rel)
			c.mu.Unlock()
			if existed {
				changed = append(changed, rel)
			}
			continue
		}

		changedFile, err := c.loadFile(ctx, rel)
		if err != nil {
			slog.Warn("failed to reload file",
				slog.String("path", rel),
				slog.String("error", err.Error()),
			)
			continue
		}
		if changedFile {
			changed = append(changed, rel)
		}
	}
	sort.Strings(changed)
	return changed
}

// loadFile reads, hashes, and parses one file. Returns whether the cache
// entry changed.
func (c *Cache) loadFile(ctx context.Context, rel string) (bool, error) {
	abs := filepath.Join(c.root, filepath.FromSlash(rel))
	src, err := os.ReadFile(abs)
	if err != nil {
		return false, err
	}

	hash := HashBytes(src)

	c.mu.RLock()
	prev, ok := c.files[rel]
	c.mu.RUnlock()
	if ok && prev.Hash == hash {
		return false, nil
	}

	syntax, err := c.parser.Parse(ctx, rel, src)
	if err != nil {
		return false, err
	}

	c.mu.Lock()
	c.files[rel] = &ParsedFile{
		Path:   rel,
		Source: src,
		Syntax: syntax,
		Hash:   hash,
	}
	c.mu.Unlock()
	return true, nil
}

// Files returns all cached files sorted by path.
func (c *Cache) Files() []*ParsedFile {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]*ParsedFile, 0, len(c.files))
	for _, f := range c.files {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// File returns the cached file for a relative path, or nil.
func (c *Cache) File(path string) *ParsedFile {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.files[path]
}

// Hashes returns a path -> content hash snapshot.
func (c *Cache) Hashes() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]string, len(c.files))
	for path, f := range c.files {
		out[path] = f.Hash
	}
	return out
}

// Len returns the number of cached files.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.files)
}

func (c *Cache) skipDir(name, rel string) bool {
	if strings.HasPrefix(name, ".") || name == "vendor" || name == "testdata" || name == "node_modules" {
		return true
	}
	return c.excluded(rel) || c.ignore.Match(rel, true)
}

// excluded reports whether a relative path matches a configured exclude.
func (c *Cache) excluded(rel string) bool {
	for _, pat := range c.excludes {
		if prefix, ok := strings.CutSuffix(pat, "/**"); ok {
			if rel == prefix || strings.HasPrefix(rel, prefix+"/") {
				return true
			}
			continue
		}
		if match, _ := filepath.Match(pat, rel); match {
			return true
		}
	}
	return false
}

func isGoFile(name string) bool {
	return strings.HasSuffix(name, ".go")
}
