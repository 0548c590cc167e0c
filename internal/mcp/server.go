package mcp

import (
	"context"
	"errors"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/cartograph-dev/cartograph/internal/index"
	"github.com/cartograph-dev/cartograph/internal/store"
	"github.com/cartograph-dev/cartograph/pkg/version"
)

// DefaultTopK is the result count used when a tool call omits limit.
const DefaultTopK = 10

// Server is the MCP server for Cartograph. It bridges AI clients with
// the semantic code index owned by the orchestrator.
type Server struct {
	mcp    *mcp.Server
	orch   *index.Orchestrator
	logger *slog.Logger
}

// SearchInput defines the input schema for the search tool.
type SearchInput struct {
	Query string `json:"query" jsonschema:"natural language description of the code to find"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of results, default 10"`
}

// SimilarInput defines the input schema for the similar tool.
type SimilarInput struct {
	ChunkID string `json:"chunk_id" jsonschema:"id of an indexed chunk, e.g. internal/store/store.go:55"`
	Limit   int    `json:"limit,omitempty" jsonschema:"maximum number of results, default 10"`
}

// SearchOutput defines the output schema shared by search and similar.
type SearchOutput struct {
	Results  []ResultOutput `json:"results" jsonschema:"ranked results, best first"`
	Indexing *index.Status  `json:"indexing,omitempty" jsonschema:"set when results are unavailable because indexing is in progress"`
	Message  string         `json:"message,omitempty" jsonschema:"human-readable note about result availability"`
}

// ResultOutput is a single ranked hit.
type ResultOutput struct {
	ChunkID       string   `json:"chunk_id" jsonschema:"stable chunk identifier"`
	File          string   `json:"file,omitempty" jsonschema:"file path relative to project root, empty for cross-file chunks"`
	StartLine     int      `json:"start_line,omitempty" jsonschema:"first line of the chunk"`
	EndLine       int      `json:"end_line,omitempty" jsonschema:"last line of the chunk"`
	Kind          string   `json:"kind" jsonschema:"chunk kind: function, method, typeDecl, fileSummary, hotspot, cluster, typeSummary"`
	Name          string   `json:"name,omitempty" jsonschema:"declaration or cluster name"`
	EnclosingType string   `json:"enclosing_type,omitempty" jsonschema:"receiver type for methods"`
	Signature     string   `json:"signature,omitempty" jsonschema:"declaration signature"`
	Summary       string   `json:"summary,omitempty" jsonschema:"generated description for virtual chunks"`
	Layer         string   `json:"layer,omitempty" jsonschema:"architectural layer: entrypoint, ui, network, persistence, domain"`
	Patterns      []string `json:"patterns,omitempty" jsonschema:"behavioral patterns detected in the chunk"`
	Score         float64  `json:"score" jsonschema:"cosine similarity to the query"`
}

// StatusOutput defines the output schema for the index_status tool.
type StatusOutput struct {
	index.Status

	ServerVersion string `json:"server_version" jsonschema:"cartograph version"`
}

// NewServer creates the MCP server and registers all tools.
func NewServer(orch *index.Orchestrator) (*Server, error) {
	if orch == nil {
		return nil, errors.New("orchestrator is required")
	}

	s := &Server{
		orch:   orch,
		logger: slog.Default(),
	}
	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    "Cartograph",
			Version: version.Version,
		},
		nil,
	)
	s.registerTools()
	return s, nil
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Serve runs the server over stdio until the client disconnects or ctx
// is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("starting MCP server", slog.String("transport", "stdio"))

	err := s.mcp.Run(ctx, &mcp.StdioTransport{})
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("MCP server stopped with error", slog.String("error", err.Error()))
		return err
	}
	s.logger.Info("MCP server stopped")
	return nil
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search",
		Description: "Semantic code search over the indexed project. Describe what the code does in natural language; returns functions, types, file summaries, hotspots, and architectural clusters ranked by meaning, not keywords.",
	}, s.searchHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "similar",
		Description: "Find code similar to an already-indexed chunk. Give a chunk_id from an earlier search result to discover related implementations, duplicated logic, and parallel structures.",
	}, s.similarHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "index_status",
		Description: "Report index readiness: current phase, progress, throughput, ETA, queue position on the shared embedding server, and index size.",
	}, s.statusHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "build_index",
		Description: "Start a background indexing run. Returns immediately with the run status; a run already in flight is left alone.",
	}, s.buildHandler)

	s.logger.Debug("MCP tools registered", slog.Int("count", 4))
}

func (s *Server) searchHandler(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (
	*mcp.CallToolResult,
	SearchOutput,
	error,
) {
	if input.Query == "" {
		return nil, SearchOutput{}, NewInvalidParamsError("query parameter is required")
	}
	limit := input.Limit
	if limit <= 0 {
		limit = DefaultTopK
	}

	res, err := s.orch.Search(ctx, input.Query, limit)
	if err != nil {
		return nil, SearchOutput{}, MapError(err)
	}
	return nil, toSearchOutput(res), nil
}

func (s *Server) similarHandler(ctx context.Context, _ *mcp.CallToolRequest, input SimilarInput) (
	*mcp.CallToolResult,
	SearchOutput,
	error,
) {
	if input.ChunkID == "" {
		return nil, SearchOutput{}, NewInvalidParamsError("chunk_id parameter is required")
	}
	limit := input.Limit
	if limit <= 0 {
		limit = DefaultTopK
	}

	res, err := s.orch.Similar(ctx, input.ChunkID, limit)
	if err != nil {
		return nil, SearchOutput{}, MapError(err)
	}
	return nil, toSearchOutput(res), nil
}

func (s *Server) statusHandler(_ context.Context, _ *mcp.CallToolRequest, _ struct{}) (
	*mcp.CallToolResult,
	StatusOutput,
	error,
) {
	return nil, StatusOutput{
		Status:        s.orch.Status(),
		ServerVersion: version.Version,
	}, nil
}

func (s *Server) buildHandler(ctx context.Context, _ *mcp.CallToolRequest, _ struct{}) (
	*mcp.CallToolResult,
	StatusOutput,
	error,
) {
	return nil, StatusOutput{
		Status:        s.orch.Build(ctx),
		ServerVersion: version.Version,
	}, nil
}

func toSearchOutput(res *index.QueryResult) SearchOutput {
	if !res.IndexReady {
		st := res.Status
		return SearchOutput{
			Results:  []ResultOutput{},
			Indexing: &st,
			Message:  "Indexing started. Results are unavailable until the first pass completes; check index_status and retry.",
		}
	}

	out := SearchOutput{Results: make([]ResultOutput, 0, len(res.Results))}
	for _, r := range res.Results {
		out.Results = append(out.Results, toResultOutput(r))
	}
	if res.Status.Running {
		out.Message = "Indexing is in progress; results reflect the last completed pass and may be stale."
	}
	return out
}

func toResultOutput(r store.SearchResult) ResultOutput {
	c := r.Chunk
	return ResultOutput{
		ChunkID:       c.ID,
		File:          c.File,
		StartLine:     c.StartLine,
		EndLine:       c.EndLine,
		Kind:          c.Kind.String(),
		Name:          c.Name,
		EnclosingType: c.EnclosingType,
		Signature:     c.Signature,
		Summary:       c.Summary,
		Layer:         c.Layer,
		Patterns:      c.Patterns,
		Score:         r.Score,
	}
}
