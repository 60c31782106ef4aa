package driven

import (
	"context"

	"github.com/custodia-labs/paperlens/internal/core/domain"
)

// VectorStore stores chunk vectors with structural metadata and answers
// nearest-neighbour queries. Metadata must round-trip exactly.
type VectorStore interface {
	// Upsert inserts or replaces vectors keyed by chunk ID.
	Upsert(ctx context.Context, records []VectorRecord) error

	// Query returns up to k hits ordered by descending similarity.
	// A nil filter matches everything.
	Query(ctx context.Context, vector []float32, k int, filter *VectorFilter) ([]VectorHit, error)

	// Delete removes every vector of a document.
	Delete(ctx context.Context, documentID string) error

	// Remove removes specific chunk vectors.
	Remove(ctx context.Context, chunkIDs []string) error

	// Count returns the number of stored vectors.
	Count(ctx context.Context) (int, error)

	// Close releases resources.
	Close() error
}

// VectorMetadata is stored alongside each vector.
type VectorMetadata struct {
	DocumentID string
	Section    domain.SectionLabel
	ChunkID    string
	Generation int64
}

// VectorRecord is one vector to upsert.
type VectorRecord struct {
	ChunkID  string
	Vector   []float32
	Metadata VectorMetadata
}

// VectorFilter restricts a query by metadata. Empty fields match everything.
type VectorFilter struct {
	DocumentIDs []string
	Sections    []domain.SectionLabel
}

// Matches reports whether metadata passes the filter.
func (f *VectorFilter) Matches(m VectorMetadata) bool {
	if f == nil {
		return true
	}
	if len(f.DocumentIDs) > 0 && !containsString(f.DocumentIDs, m.DocumentID) {
		return false
	}
	if len(f.Sections) > 0 {
		found := false
		for _, s := range f.Sections {
			if s == m.Section {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// VectorHit represents a similarity search result.
type VectorHit struct {
	// ChunkID is the matched chunk.
	ChunkID string

	// Similarity is the cosine similarity. Negative values are possible;
	// callers clamp to [0, 1].
	Similarity float64

	// Metadata is the stored metadata.
	Metadata VectorMetadata
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
