package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cartograph-dev/cartograph/internal/index"
	"github.com/cartograph-dev/cartograph/internal/output"
)

const statusPollInterval = 200 * time.Millisecond

func newIndexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "index",
		Short: "Build or update the index and exit",
		Long: `Run one full indexing pass in the foreground. Resumes from an
interrupted checkpoint when one exists; with an up-to-date index this
completes without embedding anything.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runIndex(cmd.Context(), cmd)
		},
	}
}

func runIndex(ctx context.Context, cmd *cobra.Command) error {
	rt, err := newRuntime(ctx, ".", flagOffline)
	if err != nil {
		return err
	}
	defer rt.close()

	out := output.New(cmd.OutOrStdout())
	out.Printf("Indexing %s (%d files)", rt.root, rt.cache.Len())

	rt.orch.Build(ctx)
	st, err := waitForRun(ctx, rt.orch, out)
	if err != nil {
		return err
	}

	out.ProgressDone()
	out.Success("indexed %d chunks in %s", st.IndexSize, st.Elapsed.Round(time.Millisecond))
	return nil
}

// waitForRun polls orchestrator status until the run finishes, rendering
// progress along the way.
func waitForRun(ctx context.Context, orch *index.Orchestrator, out *output.Writer) (index.Status, error) {
	ticker := time.NewTicker(statusPollInterval)
	defer ticker.Stop()

	lastPos := -1
	for {
		select {
		case <-ctx.Done():
			return index.Status{}, ctx.Err()
		case <-ticker.C:
			st := orch.Status()
			if st.Running {
				switch st.Phase {
				case index.PhaseQueued:
					if st.QueuePosition != lastPos {
						lastPos = st.QueuePosition
						out.Printf("Queued on embed server (position %d)", st.QueuePosition)
					}
				case index.PhaseEmbedding, index.PhaseCheckpointing:
					out.Progress(st.Processed, st.Total, st.ChunksPerSec, st.ETA)
				}
				continue
			}
			if st.LastError != "" {
				return st, fmt.Errorf("indexing failed: %s", st.LastError)
			}
			return st, nil
		}
	}
}
