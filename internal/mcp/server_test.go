package mcp

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cartograph-dev/cartograph/internal/chunk"
	"github.com/cartograph-dev/cartograph/internal/detect"
	"github.com/cartograph-dev/cartograph/internal/embed"
	"github.com/cartograph-dev/cartograph/internal/index"
	"github.com/cartograph-dev/cartograph/internal/source"
	"github.com/cartograph-dev/cartograph/internal/store"
)

const sampleSource = `package demo

import "fmt"

// Greeter says hello.
type Greeter struct {
	name string
}

func NewGreeter(name string) *Greeter {
	return &Greeter{name: name}
}

func (g *Greeter) Greet() string {
	return fmt.Sprintf("hello %s", g.name)
}
`

func newTestServer(t *testing.T) *Server {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "demo.go"), []byte(sampleSource), 0o644))

	cache := source.NewCache(dir, nil)
	require.NoError(t, cache.Scan(context.Background()))
	t.Cleanup(cache.Close)

	findings, err := detect.NewCache(64)
	require.NoError(t, err)

	embedder := embed.NewStaticEmbedder()
	idx := store.NewEmbeddingIndex(embedder)

	orch := index.New(index.Config{
		ProjectName:    "demo",
		InstanceID:     "mcp-test",
		CheckpointPath: filepath.Join(t.TempDir(), "index.json"),
	}, cache, chunk.NewExtractor(findings), embedder, idx, nil)

	s, err := NewServer(orch)
	require.NoError(t, err)
	return s
}

func waitForIndex(t *testing.T, s *Server) {
	t.Helper()
	require.Eventually(t, func() bool {
		st := s.orch.Status()
		return !st.Running && st.IndexSize > 0
	}, 10*time.Second, 20*time.Millisecond)
}

func TestNewServer_RequiresOrchestrator(t *testing.T) {
	_, err := NewServer(nil)
	assert.Error(t, err)
}

func TestSearchHandler_EmptyQueryRejected(t *testing.T) {
	s := newTestServer(t)

	_, _, err := s.searchHandler(context.Background(), nil, SearchInput{})
	require.Error(t, err)

	mcpErr, ok := err.(*MCPError)
	require.True(t, ok)
	assert.Equal(t, ErrCodeInvalidParams, mcpErr.Code)
}

func TestSearchHandler_StartsIndexingOnColdIndex(t *testing.T) {
	s := newTestServer(t)

	_, out, err := s.searchHandler(context.Background(), nil, SearchInput{Query: "greet someone"})
	require.NoError(t, err)

	assert.Empty(t, out.Results)
	require.NotNil(t, out.Indexing)
	assert.True(t, out.Indexing.Running)
	assert.Contains(t, out.Message, "Indexing started")

	waitForIndex(t, s)
}

func TestSearchHandler_ReturnsRankedResults(t *testing.T) {
	s := newTestServer(t)
	s.orch.Build(context.Background())
	waitForIndex(t, s)

	_, out, err := s.searchHandler(context.Background(), nil, SearchInput{Query: "greet by name", Limit: 3})
	require.NoError(t, err)

	require.NotEmpty(t, out.Results)
	assert.Nil(t, out.Indexing)
	assert.LessOrEqual(t, len(out.Results), 3)
	first := out.Results[0]
	assert.NotEmpty(t, first.ChunkID)
	assert.NotEmpty(t, first.Kind)
}

func TestSimilarHandler_UnknownChunkMapsToChunkNotFound(t *testing.T) {
	s := newTestServer(t)
	s.orch.Build(context.Background())
	waitForIndex(t, s)

	_, _, err := s.similarHandler(context.Background(), nil, SimilarInput{ChunkID: "nope.go:1"})
	require.Error(t, err)

	mcpErr, ok := err.(*MCPError)
	require.True(t, ok)
	assert.Equal(t, ErrCodeChunkNotFound, mcpErr.Code)
}

func TestSimilarHandler_ExcludesSelf(t *testing.T) {
	s := newTestServer(t)
	s.orch.Build(context.Background())
	waitForIndex(t, s)

	_, out, err := s.similarHandler(context.Background(), nil, SimilarInput{ChunkID: "summary:demo.go"})
	require.NoError(t, err)

	require.NotEmpty(t, out.Results)
	for _, r := range out.Results {
		assert.NotEqual(t, "summary:demo.go", r.ChunkID)
	}
}

func TestStatusHandler_ReportsVersionAndSize(t *testing.T) {
	s := newTestServer(t)
	s.orch.Build(context.Background())
	waitForIndex(t, s)

	_, out, err := s.statusHandler(context.Background(), nil, struct{}{})
	require.NoError(t, err)

	assert.NotEmpty(t, out.ServerVersion)
	assert.Greater(t, out.IndexSize, 0)
	assert.Equal(t, index.PhaseIdle, out.Phase)
}

func TestBuildHandler_IsIdempotentWhileRunning(t *testing.T) {
	s := newTestServer(t)

	_, first, err := s.buildHandler(context.Background(), nil, struct{}{})
	require.NoError(t, err)
	assert.True(t, first.Running)

	_, second, err := s.buildHandler(context.Background(), nil, struct{}{})
	require.NoError(t, err)
	assert.True(t, second.Running)

	waitForIndex(t, s)
}

func TestReadChunk_ReturnsEmbeddingText(t *testing.T) {
	s := newTestServer(t)
	s.orch.Build(context.Background())
	waitForIndex(t, s)

	text, err := s.ReadChunk("chunk://summary:demo.go")
	require.NoError(t, err)
	assert.Contains(t, text, "demo.go")

	_, err = s.ReadChunk("file://demo.go")
	assert.Error(t, err)
}
