package cmd

import (
	"context"
	"errors"
	"log/slog"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/cartograph-dev/cartograph/internal/mcp"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the index over MCP stdio",
		Long: `Start the MCP server on stdio and keep the index current:
an initial indexing pass runs in the background, the file watcher feeds
incremental passes, and checkpoint writes from sibling instances are
picked up automatically.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	rt, err := newRuntime(ctx, ".", flagOffline)
	if err != nil {
		return err
	}
	defer rt.close()

	srv, err := mcp.NewServer(rt.orch)
	if err != nil {
		return err
	}
	srv.RegisterResources()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return rt.cache.Watch(gctx, rt.cfg.Watcher.Debounce, rt.orch.NotifyChanged)
	})
	g.Go(func() error {
		return rt.orch.WatchCheckpoint(gctx)
	})
	g.Go(func() error {
		// The MCP client owns the session; when stdio closes, stop the
		// watchers too.
		defer cancel()
		return srv.Serve(gctx)
	})

	rt.orch.Build(ctx)
	slog.Info("cartograph serving",
		slog.String("root", rt.root),
		slog.Int("files", rt.cache.Len()),
	)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
