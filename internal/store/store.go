// Package store holds the in-memory embedding index and its JSON
// checkpoint persistence. One entry per chunk id; vectors share a fixed
// dimensionality per provider. The single RWMutex is held only for map
// mutation, never across network or disk I/O.
package store

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/cartograph-dev/cartograph/internal/chunk"
	"github.com/cartograph-dev/cartograph/internal/embed"
	carterrors "github.com/cartograph-dev/cartograph/internal/errors"
)

// Entry is one indexed chunk with its embedding vector.
type Entry struct {
	Chunk  chunk.Chunk `json:"chunk"`
	Vector []float32   `json:"vector"`
}

// SearchResult is one search hit.
type SearchResult struct {
	Chunk chunk.Chunk
	Score float64
}

// EmbeddingIndex maps chunk ids to entries and serves exact brute-force
// cosine search over them.
type EmbeddingIndex struct {
	embedder embed.Embedder

	mu         sync.RWMutex
	entries    map[string]*Entry
	fileHashes map[string]string
	dims       int
}

// NewEmbeddingIndex creates an empty index using the given embedder for
// query embedding.
func NewEmbeddingIndex(embedder embed.Embedder) *EmbeddingIndex {
	return &EmbeddingIndex{
		embedder:   embedder,
		entries:    make(map[string]*Entry),
		fileHashes: make(map[string]string),
	}
}

// Put stores vectors for exactly the given chunks, replacing existing
// entries with the same id.
func (x *EmbeddingIndex) Put(chunks []chunk.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return carterrors.New(carterrors.ErrCodeInvalidInput,
			fmt.Sprintf("%d chunks but %d vectors", len(chunks), len(vectors)), nil)
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	for i, c := range chunks {
		vec := vectors[i]
		if x.dims == 0 {
			x.dims = len(vec)
		} else if len(vec) != x.dims {
			return carterrors.New(carterrors.ErrCodeDimensionMismatch,
				fmt.Sprintf("vector for %s has %d dimensions, index has %d", c.ID, len(vec), x.dims), nil)
		}
		x.entries[c.ID] = &Entry{Chunk: c, Vector: vec}
	}
	return nil
}

// Remove drops the given chunk ids. Missing ids are ignored.
func (x *EmbeddingIndex) Remove(ids []string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	for _, id := range ids {
		delete(x.entries, id)
	}
}

// RemoveFiles drops every chunk belonging to the given files.
func (x *EmbeddingIndex) RemoveFiles(paths []string) {
	set := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		set[p] = struct{}{}
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	for id, e := range x.entries {
		if _, ok := set[e.Chunk.File]; ok {
			delete(x.entries, id)
		}
	}
	for _, p := range paths {
		delete(x.fileHashes, p)
	}
}

// RemoveVirtual drops all virtual chunks. Virtual chunks derive from the
// full file set, so any file change invalidates every one of them.
func (x *EmbeddingIndex) RemoveVirtual() {
	x.mu.Lock()
	defer x.mu.Unlock()
	for id, e := range x.entries {
		if e.Chunk.Kind.IsVirtual() {
			delete(x.entries, id)
		}
	}
}

// Contains reports whether a chunk id is indexed.
func (x *EmbeddingIndex) Contains(id string) bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	_, ok := x.entries[id]
	return ok
}

// Len returns the number of indexed chunks.
func (x *EmbeddingIndex) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.entries)
}

// IDs returns all indexed chunk ids, sorted.
func (x *EmbeddingIndex) IDs() []string {
	x.mu.RLock()
	defer x.mu.RUnlock()

	out := make([]string, 0, len(x.entries))
	for id := range x.entries {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// FileChunks returns snapshots of every file-level chunk, sorted by id.
// Incremental passes combine them with freshly extracted chunks instead
// of re-parsing unchanged files.
func (x *EmbeddingIndex) FileChunks() []chunk.Chunk {
	x.mu.RLock()
	out := make([]chunk.Chunk, 0, len(x.entries))
	for _, e := range x.entries {
		if !e.Chunk.Kind.IsVirtual() {
			out = append(out, e.Chunk)
		}
	}
	x.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Chunk returns the stored chunk for an id.
func (x *EmbeddingIndex) Chunk(id string) (chunk.Chunk, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	e, ok := x.entries[id]
	if !ok {
		return chunk.Chunk{}, false
	}
	return e.Chunk, true
}

// SetFileHashes replaces the file-hash map used for staleness detection.
func (x *EmbeddingIndex) SetFileHashes(hashes map[string]string) {
	copied := make(map[string]string, len(hashes))
	for k, v := range hashes {
		copied[k] = v
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	x.fileHashes = copied
}

// FileHashes returns a copy of the file-hash map.
func (x *EmbeddingIndex) FileHashes() map[string]string {
	x.mu.RLock()
	defer x.mu.RUnlock()

	out := make(map[string]string, len(x.fileHashes))
	for k, v := range x.fileHashes {
		out[k] = v
	}
	return out
}

// Search embeds the query and returns the topK chunks by descending
// cosine similarity.
func (x *EmbeddingIndex) Search(ctx context.Context, queryText string, topK int) ([]SearchResult, error) {
	if strings.TrimSpace(queryText) == "" {
		return nil, carterrors.New(carterrors.ErrCodeQueryEmpty, "query text is empty", nil)
	}

	queryVec, err := x.embedder.Embed(ctx, queryText)
	if err != nil {
		return nil, err
	}

	return x.nearest(queryVec, topK, ""), nil
}

// SimilarTo uses a stored chunk's own vector as the query, excluding the
// chunk itself from results.
func (x *EmbeddingIndex) SimilarTo(chunkID string, topK int) ([]SearchResult, error) {
	x.mu.RLock()
	e, ok := x.entries[chunkID]
	x.mu.RUnlock()
	if !ok {
		return nil, carterrors.New(carterrors.ErrCodeChunkNotFound,
			fmt.Sprintf("chunk %s is not indexed", chunkID), nil)
	}

	return x.nearest(e.Vector, topK, chunkID), nil
}

// nearest scans all entries exactly; no approximate structure is used.
func (x *EmbeddingIndex) nearest(queryVec []float32, topK int, excludeID string) []SearchResult {
	x.mu.RLock()
	results := make([]SearchResult, 0, len(x.entries))
	for id, e := range x.entries {
		if id == excludeID {
			continue
		}
		results = append(results, SearchResult{
			Chunk: e.Chunk,
			Score: cosineSimilarity(queryVec, e.Vector),
		})
	}
	x.mu.RUnlock()

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Chunk.ID < results[j].Chunk.ID
	})

	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
