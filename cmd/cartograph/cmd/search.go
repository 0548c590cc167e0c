package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cartograph-dev/cartograph/internal/output"
	"github.com/cartograph-dev/cartograph/internal/store"
)

func newSearchCmd() *cobra.Command {
	var limit int
	var jsonOutput bool
	var similar bool

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the semantic index from the command line",
		Long: `Run a one-shot semantic query. Builds or updates the index first if
needed. With --similar the argument is a chunk id instead of a query and
results are the chunks nearest to it.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), cmd, strings.Join(args, " "), limit, jsonOutput, similar)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum number of results")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output results as JSON")
	cmd.Flags().BoolVar(&similar, "similar", false, "Treat the argument as a chunk id and find similar chunks")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, query string, limit int, jsonOutput, similar bool) error {
	rt, err := newRuntime(ctx, ".", flagOffline)
	if err != nil {
		return err
	}
	defer rt.close()

	out := output.New(cmd.OutOrStdout())

	// One-shot mode indexes synchronously before querying.
	if rt.orch.Status().IndexSize == 0 {
		rt.orch.Build(ctx)
		if _, err := waitForRun(ctx, rt.orch, output.NewPlain(cmd.ErrOrStderr())); err != nil {
			return err
		}
	}

	var results []store.SearchResult
	if similar {
		res, err := rt.orch.Similar(ctx, query, limit)
		if err != nil {
			return err
		}
		results = res.Results
	} else {
		res, err := rt.orch.Search(ctx, query, limit)
		if err != nil {
			return err
		}
		results = res.Results
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	if len(results) == 0 {
		out.Println("No results.")
		return nil
	}
	for i, r := range results {
		printResult(out, i+1, r)
	}
	return nil
}

func printResult(out *output.Writer, rank int, r store.SearchResult) {
	c := r.Chunk
	out.Printf("%2d. %.3f  %s", rank, r.Score, c.ID)

	var desc string
	switch {
	case c.Signature != "":
		desc = c.Signature
	case c.Summary != "":
		desc = c.Summary
	default:
		desc = fmt.Sprintf("%s %s", c.Kind, c.Name)
	}
	if len(desc) > 100 {
		desc = desc[:97] + "..."
	}
	out.Printf("    %s", desc)
}
