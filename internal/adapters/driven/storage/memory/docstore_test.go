package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/paperlens/internal/core/domain"
)

func testChunk(id, docID string, gen int64, ordinal int) domain.Chunk {
	return domain.Chunk{
		ID:         id,
		DocumentID: docID,
		Section:    domain.SectionMethods,
		Ordinal:    ordinal,
		Text:       "chunk " + id,
		Generation: gen,
	}
}

func TestNewDocumentStore(t *testing.T) {
	store := NewDocumentStore()
	require.NotNil(t, store)
	assert.NotNil(t, store.documents)
	assert.NotNil(t, store.chunks)
	assert.NotNil(t, store.status)
}

func TestDocumentStore_SaveDocument(t *testing.T) {
	store := NewDocumentStore()
	ctx := context.Background()

	doc := &domain.Document{
		ID:         "doc-1",
		URI:        "/papers/attention.pdf",
		Title:      "Attention Is All You Need",
		ArxivID:    "1706.03762",
		Authors:    []string{"Vaswani"},
		Generation: 1,
		IngestedAt: time.Now(),
	}
	require.NoError(t, store.SaveDocument(ctx, doc))

	got, err := store.GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, doc.Title, got.Title)
	assert.Equal(t, int64(1), got.Generation)
}

func TestDocumentStore_SaveDocument_Invalid(t *testing.T) {
	store := NewDocumentStore()
	assert.ErrorIs(t, store.SaveDocument(context.Background(), nil), domain.ErrInvalidInput)
	assert.ErrorIs(t, store.SaveDocument(context.Background(), &domain.Document{}), domain.ErrInvalidInput)
}

func TestDocumentStore_GetDocument_NotFound(t *testing.T) {
	store := NewDocumentStore()
	_, err := store.GetDocument(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDocumentStore_GetChunks_OrderedByGenerationThenOrdinal(t *testing.T) {
	store := NewDocumentStore()
	ctx := context.Background()

	require.NoError(t, store.SaveChunks(ctx, []domain.Chunk{
		testChunk("b", "doc-1", 2, 0),
		testChunk("a", "doc-1", 1, 1),
		testChunk("c", "doc-1", 1, 0),
		testChunk("x", "doc-2", 1, 0),
	}))

	chunks, err := store.GetChunks(ctx, "doc-1")
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assert.Equal(t, "c", chunks[0].ID)
	assert.Equal(t, "a", chunks[1].ID)
	assert.Equal(t, "b", chunks[2].ID)
}

func TestDocumentStore_SaveChunks_Invalid(t *testing.T) {
	store := NewDocumentStore()
	err := store.SaveChunks(context.Background(), []domain.Chunk{{ID: "a"}})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestDocumentStore_GetChunk(t *testing.T) {
	store := NewDocumentStore()
	ctx := context.Background()
	require.NoError(t, store.SaveChunks(ctx, []domain.Chunk{testChunk("a", "doc-1", 1, 0)}))

	chunk, err := store.GetChunk(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "chunk a", chunk.Text)

	_, err = store.GetChunk(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDocumentStore_DeleteChunks(t *testing.T) {
	store := NewDocumentStore()
	ctx := context.Background()
	require.NoError(t, store.SaveChunks(ctx, []domain.Chunk{
		testChunk("a", "doc-1", 1, 0),
		testChunk("b", "doc-1", 2, 0),
	}))

	require.NoError(t, store.DeleteChunks(ctx, []string{"a", "unknown"}))

	chunks, err := store.GetChunks(ctx, "doc-1")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "b", chunks[0].ID)
}

func TestDocumentStore_DeleteDocument_Cascades(t *testing.T) {
	store := NewDocumentStore()
	ctx := context.Background()
	require.NoError(t, store.SaveDocument(ctx, &domain.Document{ID: "doc-1"}))
	require.NoError(t, store.SaveChunks(ctx, []domain.Chunk{testChunk("a", "doc-1", 1, 0)}))

	require.NoError(t, store.DeleteDocument(ctx, "doc-1"))

	_, err := store.GetChunk(ctx, "a")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	chunks, err := store.GetChunks(ctx, "doc-1")
	require.NoError(t, err)
	assert.Empty(t, chunks)

	assert.ErrorIs(t, store.DeleteDocument(ctx, "doc-1"), domain.ErrNotFound)
}

func TestDocumentStore_ListDocuments(t *testing.T) {
	store := NewDocumentStore()
	ctx := context.Background()
	require.NoError(t, store.SaveDocument(ctx, &domain.Document{ID: "b"}))
	require.NoError(t, store.SaveDocument(ctx, &domain.Document{ID: "a"}))

	docs, err := store.ListDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "a", docs[0].ID)
	assert.Equal(t, "b", docs[1].ID)
}

func TestDocumentStore_Status(t *testing.T) {
	store := NewDocumentStore()
	ctx := context.Background()

	st := &domain.IngestionStatus{
		DocumentID:    "doc-1",
		State:         domain.IngestionPartial,
		ChunksTotal:   3,
		ChunksIndexed: 2,
		ChunkFailures: []domain.ChunkFailure{{ChunkID: "c", Ordinal: 2, Error: "boom"}},
	}
	require.NoError(t, store.SaveStatus(ctx, st))
	st.ChunkFailures[0].Error = "mutated"

	got, err := store.GetStatus(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, domain.IngestionPartial, got.State)
	assert.Equal(t, "boom", got.ChunkFailures[0].Error)

	_, err = store.GetStatus(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.ErrorIs(t, store.SaveStatus(ctx, &domain.IngestionStatus{}), domain.ErrInvalidInput)

	list, err := store.ListStatus(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestDocumentStore_ConcurrentAccess(t *testing.T) {
	store := NewDocumentStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := string(rune('a' + i))
			_ = store.SaveDocument(ctx, &domain.Document{ID: id})
			_ = store.SaveChunks(ctx, []domain.Chunk{testChunk(id+"-0", id, 1, 0)})
			_, _ = store.ListDocuments(ctx)
		}(i)
	}
	wg.Wait()

	docs, err := store.ListDocuments(ctx)
	require.NoError(t, err)
	assert.Len(t, docs, 20)
}
