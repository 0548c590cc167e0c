package detect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cartograph-dev/cartograph/internal/source"
)

func fileOf(src string) *source.ParsedFile {
	return &source.ParsedFile{
		Path:   "example.go",
		Source: []byte(src),
		Hash:   source.HashBytes([]byte(src)),
	}
}

func TestAnalyze_FlagsPatternLines(t *testing.T) {
	src := `package a

var once sync.Once

func fetch() {
	resp, err := http.Get(url)
	_ = resp
	_ = err
}

func wire(h *Hub) {
	h.bus.Subscribe(topic, onMsg)
	h.Handler = onMsg
}
`

	f := Analyze(fileOf(src))

	assert.True(t, f.Singleton.Contains(3))
	assert.True(t, f.Network.Contains(6))
	assert.True(t, f.Reactive.Contains(12))
	assert.True(t, f.Delegate.Contains(13))
	assert.Equal(t, 4, f.Total())
}

func TestAnalyze_CleanFileHasNoFindings(t *testing.T) {
	f := Analyze(fileOf("package a\n\nfunc pure(x int) int { return x * 2 }\n"))
	assert.Equal(t, 0, f.Total())
}

func TestPatternsInRange(t *testing.T) {
	f := &Findings{
		Singleton: LineSet{3: {}},
		Reactive:  LineSet{},
		Network:   LineSet{10: {}},
		Delegate:  LineSet{},
	}

	assert.Equal(t, []string{PatternSingleton}, f.PatternsInRange(1, 5))
	assert.Equal(t, []string{PatternSingleton, PatternNetwork}, f.PatternsInRange(1, 20))
	assert.Empty(t, f.PatternsInRange(4, 9))
}

func TestCache_MemoizesByContentHash(t *testing.T) {
	c, err := NewCache(8)
	require.NoError(t, err)

	f := fileOf("package a\n\nvar once sync.Once\n")

	first := c.Analyze(f)
	second := c.Analyze(f)

	// A hash hit returns the same Findings value.
	assert.Same(t, first, second)
	assert.Equal(t, 1, c.Len())
}

func TestCache_DistinctContentDistinctEntries(t *testing.T) {
	c, err := NewCache(8)
	require.NoError(t, err)

	a := c.Analyze(fileOf("package a\n"))
	b := c.Analyze(fileOf("package b\n"))

	assert.NotSame(t, a, b)
	assert.Equal(t, 2, c.Len())
}
