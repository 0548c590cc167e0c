package cmd

import (
	"context"
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/cartograph-dev/cartograph/internal/config"
	"github.com/cartograph-dev/cartograph/internal/embed"
	"github.com/cartograph-dev/cartograph/internal/output"
	"github.com/cartograph-dev/cartograph/internal/store"
)

// statusInfo is the checkpoint summary shown by the status command.
type statusInfo struct {
	Root           string `json:"root"`
	CheckpointPath string `json:"checkpointPath"`
	Exists         bool   `json:"exists"`
	Complete       bool   `json:"complete"`
	Chunks         int    `json:"chunks"`
	Files          int    `json:"files"`
	TotalExpected  int    `json:"totalExpected,omitempty"`
	JobID          string `json:"jobId,omitempty"`
}

func newStatusCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show index checkpoint status",
		Long: `Inspect the on-disk checkpoint for this project: whether it exists,
whether it is complete or a resumable partial build, and how many chunks
and files it covers. Does not contact the embed server.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd.Context(), cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runStatus(_ context.Context, cmd *cobra.Command, jsonOutput bool) error {
	root, err := config.FindProjectRoot(".")
	if err != nil {
		root, _ = os.Getwd()
	}

	path, err := store.CheckpointPath(root)
	if err != nil {
		return err
	}

	info := statusInfo{Root: root, CheckpointPath: path}

	// A throwaway index is enough to read the checkpoint.
	idx := store.NewEmbeddingIndex(embed.NewStaticEmbedder())
	result, err := idx.Load(path, nil)
	if err != nil {
		return err
	}
	if result != nil {
		info.Exists = true
		info.Complete = result.IsComplete
		info.Chunks = idx.Len()
		info.Files = len(idx.FileHashes())
		info.TotalExpected = result.TotalExpected
		info.JobID = result.JobID
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}

	out := output.New(cmd.OutOrStdout())
	out.Header("Cartograph index")
	out.Field("project", info.Root)
	out.Field("checkpoint", info.CheckpointPath)
	if !info.Exists {
		out.Warning("no index found; run 'cartograph index' to create one")
		return nil
	}

	out.Field("chunks", info.Chunks)
	out.Field("files", info.Files)
	if info.Complete {
		out.Success("index is complete")
	} else {
		out.Warning("index is a partial build; the next run resumes it")
		out.Field("expected", info.TotalExpected)
		if info.JobID != "" {
			out.Field("job", info.JobID)
		}
	}
	return nil
}
