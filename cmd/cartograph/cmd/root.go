// Package cmd provides the CLI commands for Cartograph.
package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/cartograph-dev/cartograph/internal/logging"
	"github.com/cartograph-dev/cartograph/internal/profiling"
	"github.com/cartograph-dev/cartograph/pkg/version"
)

var (
	flagOffline  bool
	flagLogLevel string

	flagProfileCPU   string
	flagProfileMem   string
	flagProfileTrace string
	profiler         profiling.Profiler

	loggingCleanup func()
)

// NewRootCmd creates the root command for the cartograph CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cartograph",
		Short: "Semantic code index MCP server",
		Long: `Cartograph maintains an incremental semantic index of a Go codebase
and serves it to AI coding assistants over the Model Context Protocol.

Embeddings come from a shared GPU embedding server with job-queue
coordination across instances; --offline switches to deterministic
local embeddings.

Run 'cartograph' in a project directory to index it and start serving.`,
		Version: version.Version,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return cmd.Help()
			}
			// Default action: serve over stdio, indexing on demand.
			return runServe(cmd.Context())
		},
	}

	cmd.SetVersionTemplate("cartograph version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&flagOffline, "offline", false, "Use deterministic local embeddings instead of the embed server")
	cmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn, error")
	cmd.PersistentFlags().StringVar(&flagProfileCPU, "profile-cpu", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&flagProfileMem, "profile-mem", "", "Write heap profile to file on exit")
	cmd.PersistentFlags().StringVar(&flagProfileTrace, "profile-trace", "", "Write execution trace to file")

	cmd.PersistentPreRunE = setupRun
	cmd.PersistentPostRunE = teardownRun

	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// setupRun routes logs to the rotating log file and stderr, and starts
// any requested profiles. Stdout is reserved for command output and the
// MCP protocol.
func setupRun(_ *cobra.Command, _ []string) error {
	cleanup, err := logging.SetupDefault(flagLogLevel)
	if err != nil {
		return err
	}
	loggingCleanup = cleanup

	if flagProfileCPU != "" {
		if err := profiler.StartCPU(flagProfileCPU); err != nil {
			return err
		}
	}
	if flagProfileTrace != "" {
		if err := profiler.StartTrace(flagProfileTrace); err != nil {
			return err
		}
	}
	return nil
}

func teardownRun(_ *cobra.Command, _ []string) error {
	if flagProfileMem != "" {
		if err := profiler.WriteHeap(flagProfileMem); err != nil {
			slog.Warn("failed to write heap profile", slog.String("error", err.Error()))
		}
	}
	profiler.Stop()

	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
