package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// StatusResourceURI identifies the live index-status resource.
const StatusResourceURI = "cartograph://index/status"

// RegisterResources registers the server's MCP resources. Chunk content
// is not enumerable up front; clients reach it through tool results and
// ReadChunk.
func (s *Server) RegisterResources() {
	s.mcp.AddResource(
		&mcp.Resource{
			Name:        "index_status",
			URI:         StatusResourceURI,
			Description: "Live indexing status: phase, progress, throughput, and index size as JSON.",
			MIMEType:    "application/json",
		},
		s.handleStatusResource,
	)
}

func (s *Server) handleStatusResource(_ context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(s.orch.Status(), "", "  ")
	if err != nil {
		return nil, MapError(err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{
				URI:      StatusResourceURI,
				MIMEType: "application/json",
				Text:     string(data),
			},
		},
	}, nil
}

// ReadChunk resolves a chunk:// URI against the index and returns the
// chunk's embedding text, the same rendering the index searches over.
func (s *Server) ReadChunk(uri string) (string, error) {
	id := strings.TrimPrefix(uri, "chunk://")
	if id == uri || id == "" {
		return "", NewInvalidParamsError(fmt.Sprintf("unsupported resource URI: %s", uri))
	}

	c, ok := s.orch.Index().Chunk(id)
	if !ok {
		return "", &MCPError{
			Code:    ErrCodeChunkNotFound,
			Message: fmt.Sprintf("chunk %q is not indexed", id),
		}
	}
	return c.EmbeddingText(), nil
}
