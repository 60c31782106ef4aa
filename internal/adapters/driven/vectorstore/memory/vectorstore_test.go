package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/paperlens/internal/core/domain"
	"github.com/custodia-labs/paperlens/internal/core/ports/driven"
)

func record(id, docID string, section domain.SectionLabel, vec ...float32) driven.VectorRecord {
	return driven.VectorRecord{
		ChunkID: id,
		Vector:  vec,
		Metadata: driven.VectorMetadata{
			DocumentID: docID,
			Section:    section,
			Generation: 1,
		},
	}
}

func seeded(t *testing.T) *VectorStore {
	t.Helper()
	s := NewVectorStore(2)
	require.NoError(t, s.Upsert(context.Background(), []driven.VectorRecord{
		record("a", "doc-1", domain.SectionMethods, 1, 0),
		record("b", "doc-1", domain.SectionResults, 0.8, 0.6),
		record("c", "doc-2", domain.SectionMethods, 0, 1),
		record("d", "doc-2", domain.SectionResults, -1, 0),
	}))
	return s
}

func TestVectorStore_QueryOrder(t *testing.T) {
	s := seeded(t)
	hits, err := s.Query(context.Background(), []float32{1, 0}, 10, nil)
	require.NoError(t, err)
	require.Len(t, hits, 4)

	assert.Equal(t, "a", hits[0].ChunkID)
	assert.InDelta(t, 1.0, hits[0].Similarity, 1e-9)
	assert.Equal(t, "b", hits[1].ChunkID)
	assert.InDelta(t, 0.8, hits[1].Similarity, 1e-6)
	assert.Equal(t, "c", hits[2].ChunkID)
	assert.Equal(t, "d", hits[3].ChunkID)
	assert.InDelta(t, -1.0, hits[3].Similarity, 1e-9)
}

func TestVectorStore_QueryTopK(t *testing.T) {
	s := seeded(t)
	hits, err := s.Query(context.Background(), []float32{1, 0}, 2, nil)
	require.NoError(t, err)
	assert.Len(t, hits, 2)

	hits, err = s.Query(context.Background(), []float32{1, 0}, 0, nil)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestVectorStore_QueryFilter(t *testing.T) {
	s := seeded(t)

	hits, err := s.Query(context.Background(), []float32{1, 0}, 10, &driven.VectorFilter{DocumentIDs: []string{"doc-2"}})
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "c", hits[0].ChunkID)

	hits, err = s.Query(context.Background(), []float32{1, 0}, 10, &driven.VectorFilter{
		Sections: []domain.SectionLabel{domain.SectionResults},
	})
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "b", hits[0].ChunkID)
	assert.Equal(t, domain.SectionResults, hits[0].Metadata.Section)
}

func TestVectorStore_MetadataRoundTrip(t *testing.T) {
	s := NewVectorStore(0)
	rec := record("a", "doc-1", domain.SectionFigureCaption, 0.5, 0.5, 0.5)
	rec.Metadata.Generation = 42
	require.NoError(t, s.Upsert(context.Background(), []driven.VectorRecord{rec}))

	hits, err := s.Query(context.Background(), []float32{1, 1, 1}, 1, nil)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, driven.VectorMetadata{
		DocumentID: "doc-1",
		Section:    domain.SectionFigureCaption,
		ChunkID:    "a",
		Generation: 42,
	}, hits[0].Metadata)
}

func TestVectorStore_DimensionMismatch(t *testing.T) {
	s := NewVectorStore(2)
	err := s.Upsert(context.Background(), []driven.VectorRecord{record("a", "doc-1", domain.SectionMethods, 1, 2, 3)})
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)

	_, err = s.Query(context.Background(), []float32{1}, 1, nil)
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestVectorStore_EmptyChunkID(t *testing.T) {
	s := NewVectorStore(2)
	err := s.Upsert(context.Background(), []driven.VectorRecord{record("", "doc-1", domain.SectionMethods, 1, 0)})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestVectorStore_DeleteAndRemove(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()

	require.NoError(t, s.Delete(ctx, "doc-1"))
	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, s.Remove(ctx, []string{"c", "missing"}))
	n, err = s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestVectorStore_UpsertReplaces(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()
	require.NoError(t, s.Upsert(ctx, []driven.VectorRecord{record("d", "doc-2", domain.SectionResults, 1, 0)}))

	hits, err := s.Query(ctx, []float32{1, 0}, 2, nil)
	require.NoError(t, err)
	assert.Equal(t, "a", hits[0].ChunkID)
	assert.Equal(t, "d", hits[1].ChunkID)

	n, _ := s.Count(ctx)
	assert.Equal(t, 4, n)
}

func TestVectorStore_CancelledContext(t *testing.T) {
	s := seeded(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Query(ctx, []float32{1, 0}, 1, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
