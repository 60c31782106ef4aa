package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Is(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		kind error
	}{
		{"ingestion", NewIngestionError("extract", "doc-1", errors.New("bad pdf")), ErrIngestion},
		{"embedding", NewEmbeddingError("embed", "chunk-1", errors.New("down")), ErrEmbedding},
		{"retrieval timeout", NewRetrievalTimeout("query", context.DeadlineExceeded), ErrRetrievalTimeout},
		{"generation", NewGenerationError("generate", errors.New("503")), ErrGeneration},
		{"configuration", NewConfigurationError("MinChunkSize", errors.New("too big")), ErrConfiguration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("outer: %w", tt.err)
			assert.ErrorIs(t, wrapped, tt.kind)
			assert.Equal(t, tt.kind, ErrorKind(wrapped))
			for _, other := range []error{ErrIngestion, ErrEmbedding, ErrRetrievalTimeout, ErrGeneration, ErrConfiguration} {
				if other != tt.kind {
					assert.NotErrorIs(t, wrapped, other)
				}
			}
		})
	}
}

func TestError_UnwrapsCause(t *testing.T) {
	err := NewRetrievalTimeout("query", context.DeadlineExceeded)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.ErrorIs(t, err, ErrRetrievalTimeout)
}

func TestError_Message(t *testing.T) {
	err := NewEmbeddingError("embed", "chunk-7", errors.New("connection refused"))

	assert.Equal(t, "embed: embedding failed (chunk-7): connection refused", err.Error())
}

func TestErrorKind_PlainError(t *testing.T) {
	assert.Nil(t, ErrorKind(errors.New("plain")))
	assert.Nil(t, ErrorKind(nil))
}

func TestError_As(t *testing.T) {
	err := fmt.Errorf("ask: %w", NewGenerationError("generate", errors.New("boom")))

	var de *Error
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "generate", de.Stage)
}
