// Package memory provides an exact in-process vector index.
package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/custodia-labs/paperlens/internal/core/domain"
	"github.com/custodia-labs/paperlens/internal/core/ports/driven"
)

// Ensure VectorStore implements the interface.
var _ driven.VectorStore = (*VectorStore)(nil)

type entry struct {
	vector   []float32
	norm     float64
	metadata driven.VectorMetadata
}

// VectorStore answers queries by scanning every stored vector.
// Results are exact, which keeps retrieval deterministic.
type VectorStore struct {
	mu      sync.RWMutex
	dims    int
	entries map[string]entry
}

// NewVectorStore creates an index for vectors of dims dimensions.
// A dims of zero accepts the first vector's size.
func NewVectorStore(dims int) *VectorStore {
	return &VectorStore{
		dims:    dims,
		entries: make(map[string]entry),
	}
}

// Upsert inserts or replaces vectors. Either every record is stored or,
// on a validation error, none is.
func (s *VectorStore) Upsert(_ context.Context, records []driven.VectorRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	dims := s.dims
	for _, r := range records {
		if r.ChunkID == "" {
			return fmt.Errorf("%w: empty chunk id", domain.ErrInvalidInput)
		}
		if dims == 0 {
			dims = len(r.Vector)
		}
		if len(r.Vector) != dims {
			return fmt.Errorf("%w: chunk %s has %d dimensions, index has %d",
				domain.ErrDimensionMismatch, r.ChunkID, len(r.Vector), dims)
		}
	}
	s.dims = dims
	for _, r := range records {
		vec := make([]float32, len(r.Vector))
		copy(vec, r.Vector)
		md := r.Metadata
		md.ChunkID = r.ChunkID
		s.entries[r.ChunkID] = entry{vector: vec, norm: l2(vec), metadata: md}
	}
	return nil
}

// Query returns up to k hits by descending cosine similarity.
// Ties are broken by chunk ID.
func (s *VectorStore) Query(ctx context.Context, vector []float32, k int, filter *driven.VectorFilter) ([]driven.VectorHit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.dims != 0 && len(vector) != s.dims {
		return nil, fmt.Errorf("%w: query has %d dimensions, index has %d",
			domain.ErrDimensionMismatch, len(vector), s.dims)
	}

	qnorm := l2(vector)
	hits := make([]driven.VectorHit, 0, len(s.entries))
	for id, e := range s.entries {
		if !filter.Matches(e.metadata) {
			continue
		}
		hits = append(hits, driven.VectorHit{
			ChunkID:    id,
			Similarity: cosine(vector, e.vector, qnorm, e.norm),
			Metadata:   e.metadata,
		})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Similarity != hits[j].Similarity {
			return hits[i].Similarity > hits[j].Similarity
		}
		return hits[i].ChunkID < hits[j].ChunkID
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Delete removes every vector of a document.
func (s *VectorStore) Delete(_ context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, e := range s.entries {
		if e.metadata.DocumentID == documentID {
			delete(s.entries, id)
		}
	}
	return nil
}

// Remove removes specific vectors. Unknown IDs are ignored.
func (s *VectorStore) Remove(_ context.Context, chunkIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range chunkIDs {
		delete(s.entries, id)
	}
	return nil
}

// Count returns the number of stored vectors.
func (s *VectorStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries), nil
}

// Close is a no-op.
func (s *VectorStore) Close() error {
	return nil
}

func l2(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func cosine(a, b []float32, na, nb float64) float64 {
	if na == 0 || nb == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / (na * nb)
}
