// Package hashing provides an offline embedding service based on
// feature hashing of word unigrams and bigrams.
package hashing

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/custodia-labs/paperlens/internal/core/domain"
	"github.com/custodia-labs/paperlens/internal/core/ports/driven"
)

// DefaultDimensions matches the default embedding dimension.
const DefaultDimensions = 384

// Ensure EmbeddingService implements the interface.
var _ driven.EmbeddingService = (*EmbeddingService)(nil)

// EmbeddingService maps text to an L2-normalised signed hash histogram.
// Identical text always yields identical vectors, and texts that share
// most of their words land close together, which is enough to exercise
// retrieval and duplicate detection without a model server.
type EmbeddingService struct {
	dims int
}

// NewEmbeddingService creates a hashing embedder.
func NewEmbeddingService(dims int) (*EmbeddingService, error) {
	if dims <= 0 {
		return nil, fmt.Errorf("%w: dimensions must be positive, got %d", domain.ErrInvalidInput, dims)
	}
	return &EmbeddingService{dims: dims}, nil
}

// Embed generates a vector for text.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	acc := make([]float64, s.dims)
	words := tokenize(text)
	for i, w := range words {
		s.add(acc, w, 1)
		if i > 0 {
			s.add(acc, words[i-1]+" "+w, 0.5)
		}
	}

	var norm2 float64
	for _, v := range acc {
		norm2 += v * v
	}
	vec := make([]float32, s.dims)
	if norm2 == 0 {
		return vec, nil
	}
	inv := 1 / math.Sqrt(norm2)
	for i, v := range acc {
		vec[i] = float32(v * inv)
	}
	return vec, nil
}

// EmbedBatch generates vectors for multiple texts.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec, err := s.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

// Dimensions returns the vector size.
func (s *EmbeddingService) Dimensions() int {
	return s.dims
}

// ModelName returns the model identifier.
func (s *EmbeddingService) ModelName() string {
	return fmt.Sprintf("hashing-%d", s.dims)
}

// Ping always succeeds.
func (s *EmbeddingService) Ping(_ context.Context) error {
	return nil
}

// Close is a no-op.
func (s *EmbeddingService) Close() error {
	return nil
}

func (s *EmbeddingService) add(acc []float64, feature string, weight float64) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64()
	idx := int(sum % uint64(s.dims))
	if sum>>63 == 1 {
		weight = -weight
	}
	acc[idx] += weight
}

// tokenize folds text to NFKC lower case and splits on anything that is
// not a letter or digit.
func tokenize(text string) []string {
	folded := strings.ToLower(norm.NFKC.String(text))
	return strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
