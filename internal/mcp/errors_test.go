package mcp

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	carterrors "github.com/cartograph-dev/cartograph/internal/errors"
)

func TestMapError_NilIsNil(t *testing.T) {
	assert.Nil(t, MapError(nil))
}

func TestMapError_CartoErrorCodes(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{carterrors.ErrCodeQueryEmpty, ErrCodeInvalidParams},
		{carterrors.ErrCodeInvalidInput, ErrCodeInvalidParams},
		{carterrors.ErrCodeChunkNotFound, ErrCodeChunkNotFound},
		{carterrors.ErrCodeEmbedFailed, ErrCodeEmbeddingFailed},
		{carterrors.ErrCodeNetworkTimeout, ErrCodeTimeout},
		{carterrors.ErrCodeJobTimeout, ErrCodeTimeout},
		{carterrors.ErrCodeDimensionMismatch, ErrCodeInvalidParams},
		{carterrors.ErrCodeInternal, ErrCodeInternalError},
		{carterrors.ErrCodeCheckpointSave, ErrCodeInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			got := MapError(carterrors.New(tt.code, "boom", nil))
			assert.Equal(t, tt.want, got.Code)
			assert.Equal(t, "boom", got.Message)
		})
	}
}

func TestMapError_WrappedCartoError(t *testing.T) {
	inner := carterrors.New(carterrors.ErrCodeChunkNotFound, "missing", nil)
	wrapped := errors.Join(errors.New("outer"), inner)

	got := MapError(wrapped)
	assert.Equal(t, ErrCodeChunkNotFound, got.Code)
}

func TestMapError_ContextErrors(t *testing.T) {
	assert.Equal(t, ErrCodeTimeout, MapError(context.DeadlineExceeded).Code)
	assert.Equal(t, ErrCodeTimeout, MapError(context.Canceled).Code)
}

func TestMapError_UnknownError(t *testing.T) {
	got := MapError(errors.New("mystery"))
	assert.Equal(t, ErrCodeInternalError, got.Code)
	assert.Equal(t, "Internal server error.", got.Message)
}

func TestMCPError_ErrorString(t *testing.T) {
	err := NewInvalidParamsError("query is required")
	assert.Contains(t, err.Error(), "-32602")
	assert.Contains(t, err.Error(), "query is required")
}
