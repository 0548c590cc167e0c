// Package mcp implements the Model Context Protocol server for
// Cartograph. It exposes the semantic index to AI clients as tools.
package mcp

import (
	"context"
	"errors"
	"fmt"

	carterrors "github.com/cartograph-dev/cartograph/internal/errors"
)

// Custom MCP error codes for Cartograph.
const (
	// ErrCodeIndexNotReady indicates the index is still being built.
	ErrCodeIndexNotReady = -32001

	// ErrCodeEmbeddingFailed indicates embedding generation failed.
	ErrCodeEmbeddingFailed = -32002

	// ErrCodeTimeout indicates the request timed out.
	ErrCodeTimeout = -32003

	// ErrCodeChunkNotFound indicates the referenced chunk is not indexed.
	ErrCodeChunkNotFound = -32004

	// Standard JSON-RPC error codes.
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// MCPError represents an MCP protocol error with code and message.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// NewInvalidParamsError creates an error for invalid parameters.
func NewInvalidParamsError(msg string) *MCPError {
	return &MCPError{Code: ErrCodeInvalidParams, Message: msg}
}

// MapError converts internal errors to MCP errors.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}

	var cerr *carterrors.CartoError
	if errors.As(err, &cerr) {
		return mapCartoError(cerr)
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request timed out."}
	case errors.Is(err, context.Canceled):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request was canceled."}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: "Internal server error."}
	}
}

// mapCartoError translates structured error codes onto the protocol.
func mapCartoError(ce *carterrors.CartoError) *MCPError {
	switch ce.Code {
	case carterrors.ErrCodeQueryEmpty, carterrors.ErrCodeInvalidInput:
		return &MCPError{Code: ErrCodeInvalidParams, Message: ce.Message}
	case carterrors.ErrCodeChunkNotFound:
		return &MCPError{Code: ErrCodeChunkNotFound, Message: ce.Message}
	case carterrors.ErrCodeEmbedFailed:
		return &MCPError{Code: ErrCodeEmbeddingFailed, Message: ce.Message}
	}

	switch ce.Category {
	case carterrors.CategoryNetwork:
		return &MCPError{Code: ErrCodeTimeout, Message: ce.Message}
	case carterrors.CategoryValidation:
		return &MCPError{Code: ErrCodeInvalidParams, Message: ce.Message}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: ce.Message}
	}
}
