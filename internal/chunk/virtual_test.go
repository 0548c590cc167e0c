package chunk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cartograph-dev/cartograph/internal/detect"
	"github.com/cartograph-dev/cartograph/internal/parser"
)

func virtualOf(t *testing.T, fileChunks []Chunk) []Chunk {
	t.Helper()
	return newExtractor(t).Virtual(fileChunks, nil)
}

func TestVirtual_HotspotForGodFunction(t *testing.T) {
	chunks := []Chunk{
		{ID: "big.go:3", File: "big.go", Kind: KindFunction, Name: "doEverything",
			Smells: []string{parser.SmellGodFunction, parser.SmellLongFunction}},
		{ID: "ok.go:3", File: "ok.go", Kind: KindFunction, Name: "small"},
	}

	out := virtualOf(t, chunks)

	hotspot := chunkByID(out, "hotspot:big.go")
	require.NotNil(t, hotspot)
	assert.Contains(t, hotspot.Summary, "doEverything")
	assert.Contains(t, hotspot.Summary, parser.SmellGodFunction)

	assert.Nil(t, chunkByID(out, "hotspot:ok.go"))
}

func TestVirtual_HotspotForSmellTotal(t *testing.T) {
	// Five smells spread over two declarations, no god function.
	chunks := []Chunk{
		{ID: "f.go:3", File: "f.go", Kind: KindFunction, Name: "a",
			Smells: []string{parser.SmellLongFunction, parser.SmellDeepNesting, parser.SmellLongParamList}},
		{ID: "f.go:40", File: "f.go", Kind: KindFunction, Name: "b",
			Smells: []string{parser.SmellLongFunction, parser.SmellDeepNesting}},
	}

	out := virtualOf(t, chunks)
	require.NotNil(t, chunkByID(out, "hotspot:f.go"))
}

func TestVirtual_HotspotForSingletonPattern(t *testing.T) {
	chunks := []Chunk{
		{ID: "s.go:3", File: "s.go", Kind: KindFunction, Name: "instance",
			Patterns: []string{detect.PatternSingleton}},
	}

	out := virtualOf(t, chunks)

	hotspot := chunkByID(out, "hotspot:s.go")
	require.NotNil(t, hotspot)
	assert.Contains(t, hotspot.Summary, "instance")
}

func TestVirtual_FileSummaryCounts(t *testing.T) {
	chunks := []Chunk{
		{ID: "f.go:3", File: "f.go", Kind: KindTypeDecl, Name: "Widget",
			Visibility: VisibilityPublic, Interfaces: []string{"Renderer"}},
		{ID: "f.go:10", File: "f.go", Kind: KindMethod, Name: "Render",
			EnclosingType: "Widget", Visibility: VisibilityPublic,
			Patterns: []string{detect.PatternReactive}},
		{ID: "f.go:20", File: "f.go", Kind: KindFunction, Name: "helper",
			Visibility: VisibilityPrivate},
	}

	out := virtualOf(t, chunks)

	summary := chunkByID(out, "summary:f.go")
	require.NotNil(t, summary)
	assert.Equal(t, KindFileSummary, summary.Kind)
	assert.Contains(t, summary.Summary, "1 types, 1 methods, 1 functions, 2 public declarations")
	assert.Contains(t, summary.Summary, "Conforms to: Renderer")
	assert.Contains(t, summary.Summary, "Behavioral: reactive")
}

func TestVirtual_DirClusters(t *testing.T) {
	chunks := []Chunk{
		{ID: "svc/a.go:1", File: "svc/a.go", Kind: KindFunction, Name: "a",
			Imports: []string{"fmt", "net/http"}},
		{ID: "svc/b.go:1", File: "svc/b.go", Kind: KindFunction, Name: "b",
			Imports: []string{"net/http", "strings"}},
		{ID: "lone/c.go:1", File: "lone/c.go", Kind: KindFunction, Name: "c"},
	}

	out := virtualOf(t, chunks)

	cluster := chunkByID(out, "cluster:dir:svc")
	require.NotNil(t, cluster)
	assert.Equal(t, []string{"svc/a.go", "svc/b.go"}, cluster.Members)
	assert.Contains(t, cluster.Summary, "Shared imports: net/http")

	// Single-file directories never cluster.
	assert.Nil(t, chunkByID(out, "cluster:dir:lone"))
}

func TestVirtual_TypeSummaryAggregatesAcrossFiles(t *testing.T) {
	chunks := []Chunk{
		{ID: "a.go:3", File: "a.go", Kind: KindTypeDecl, Name: "Store",
			Interfaces: []string{"Closer"}},
		{ID: "a.go:10", File: "a.go", Kind: KindMethod, Name: "Get",
			EnclosingType: "Store", Visibility: VisibilityPublic},
		{ID: "b.go:5", File: "b.go", Kind: KindMethod, Name: "prune",
			EnclosingType: "Store", Visibility: VisibilityPrivate},
	}

	out := virtualOf(t, chunks)

	ts := chunkByID(out, "typeSummary:Store")
	require.NotNil(t, ts)
	assert.Equal(t, []string{"a.go", "b.go"}, ts.Members)
	assert.Contains(t, ts.Summary, "1 public methods, 1 private methods across 2 files")
	assert.Contains(t, ts.Summary, "Conforms to: Closer")
}

func TestVirtual_TypeSummaryExcludesInterfaces(t *testing.T) {
	chunks := []Chunk{
		{ID: "p.go:3", File: "p.go", Kind: KindTypeDecl, Name: "Renderer", IsInterface: true},
	}

	out := virtualOf(t, chunks)
	assert.Nil(t, chunkByID(out, "typeSummary:Renderer"))
}

func TestVirtual_OverlappingClustersAreAdditive(t *testing.T) {
	// The same pair of files clusters both by directory and by protocol;
	// neither view suppresses the other.
	chunks := []Chunk{
		{ID: "svc/a.go:3", File: "svc/a.go", Kind: KindTypeDecl, Name: "A",
			Interfaces: []string{"P"}},
		{ID: "svc/b.go:3", File: "svc/b.go", Kind: KindTypeDecl, Name: "B",
			Interfaces: []string{"P"}},
	}

	out := virtualOf(t, chunks)

	require.NotNil(t, chunkByID(out, "cluster:protocol:P"))
	require.NotNil(t, chunkByID(out, "cluster:dir:svc"))
}
