package source

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatch_ReportsChangedFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.go", "package a\n")

	c := NewCache(root, nil)
	defer c.Close()
	require.NoError(t, c.Scan(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changedCh := make(chan []string, 1)
	go func() {
		_ = c.Watch(ctx, 50*time.Millisecond, func(changed []string) {
			select {
			case changedCh <- changed:
			default:
			}
		})
	}()

	// Give the watcher a moment to register before writing.
	time.Sleep(100 * time.Millisecond)
	writeFile(t, root, "a.go", "package a\n\nfunc Added() {}\n")

	select {
	case changed := <-changedCh:
		assert.Equal(t, []string{"a.go"}, changed)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for change notification")
	}

	f := c.File("a.go")
	require.NotNil(t, f)
	assert.Len(t, f.Syntax.Decls, 1)
}
