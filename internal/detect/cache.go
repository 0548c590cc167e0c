package detect

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/cartograph-dev/cartograph/internal/source"
)

// DefaultCacheSize bounds the findings cache in long-running processes.
const DefaultCacheSize = 4096

// Cache memoizes Analyze results by content hash.
// A hash hit returns the previously computed Findings without rescanning.
type Cache struct {
	entries *lru.Cache[string, *Findings]
}

// NewCache creates a findings cache. size <= 0 uses DefaultCacheSize.
func NewCache(size int) (*Cache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	entries, err := lru.New[string, *Findings](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create findings cache: %w", err)
	}
	return &Cache{entries: entries}, nil
}

// Analyze returns findings for the file, computing them on a cache miss.
func (c *Cache) Analyze(f *source.ParsedFile) *Findings {
	if cached, ok := c.entries.Get(f.Hash); ok {
		return cached
	}
	findings := Analyze(f)
	c.entries.Add(f.Hash, findings)
	return findings
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	return c.entries.Len()
}
