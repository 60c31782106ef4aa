package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/paperlens/internal/core/domain"
	"github.com/custodia-labs/paperlens/internal/core/ports/driven"
)

// setupTestStore creates a temporary SQLite store for testing.
func setupTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, store.Close()) })
	return store
}

func testDocument(id string, gen int64) *domain.Document {
	return &domain.Document{
		ID:         id,
		URI:        "/papers/" + id + ".pdf",
		Title:      "Paper " + id,
		DOI:        "10.1000/" + id,
		Authors:    []string{"Ada Lovelace", "Alan Turing"},
		Generation: gen,
		IngestedAt: time.Unix(1700000000, 123).UTC(),
		Sections: []domain.Section{
			{
				Label: domain.SectionAbstract,
				Text:  "Abstract. We study things.",
				Start: 0,
				End:   26,
				Spans: []domain.Span{{Page: 1, Start: 0, End: 26}},
			},
			{
				Label:   domain.SectionMethods,
				Heading: "2 Methods",
				Text:    "2 Methods\nWe did things.",
				Start:   26,
				End:     50,
				Spans:   []domain.Span{{Page: 1, Start: 26, End: 40}, {Page: 2, Start: 40, End: 50}},
			},
		},
	}
}

func testChunk(id, docID string, gen int64, ordinal int) domain.Chunk {
	return domain.Chunk{
		ID:           id,
		DocumentID:   docID,
		Section:      domain.SectionMethods,
		SectionIndex: 1,
		Ordinal:      ordinal,
		Text:         "We did things " + id,
		Start:        26,
		End:          50,
		Page:         2,
		Embedding:    []float32{0.25, -0.5, 1},
		Generation:   gen,
	}
}

func TestNewStore_Success(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)
	defer store.Close()

	assert.Equal(t, filepath.Join(dir, "metadata.db"), store.Path())
	_, err = os.Stat(store.Path())
	assert.NoError(t, err)
}

func TestNewStore_DirectoryCreation(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")
	store, err := NewStore(dir)
	require.NoError(t, err)
	defer store.Close()

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestNewStore_MigrationsIdempotent(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	store, err = NewStore(dir)
	require.NoError(t, err)
	defer store.Close()

	var version int
	require.NoError(t, store.db.QueryRow("SELECT MAX(version) FROM schema_migrations").Scan(&version))
	assert.Equal(t, 1, version)
}

func TestDocumentStore_SaveAndGetDocument(t *testing.T) {
	store := setupTestStore(t)
	docs := store.DocumentStore()
	ctx := context.Background()

	doc := testDocument("doc-1", 7)
	require.NoError(t, docs.SaveDocument(ctx, doc))

	got, err := docs.GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, doc.URI, got.URI)
	assert.Equal(t, doc.Title, got.Title)
	assert.Equal(t, doc.DOI, got.DOI)
	assert.Equal(t, doc.Authors, got.Authors)
	assert.Equal(t, int64(7), got.Generation)
	assert.True(t, doc.IngestedAt.Equal(got.IngestedAt))
	assert.Equal(t, doc.Sections, got.Sections)
}

func TestDocumentStore_SaveDocument_ReplacesSections(t *testing.T) {
	store := setupTestStore(t)
	docs := store.DocumentStore()
	ctx := context.Background()

	doc := testDocument("doc-1", 1)
	require.NoError(t, docs.SaveDocument(ctx, doc))

	doc.Generation = 2
	doc.Sections = doc.Sections[:1]
	require.NoError(t, docs.SaveDocument(ctx, doc))

	got, err := docs.GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Generation)
	assert.Len(t, got.Sections, 1)
}

func TestDocumentStore_SaveDocument_Invalid(t *testing.T) {
	store := setupTestStore(t)
	err := store.DocumentStore().SaveDocument(context.Background(), &domain.Document{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestDocumentStore_GetDocument_NotFound(t *testing.T) {
	store := setupTestStore(t)
	_, err := store.DocumentStore().GetDocument(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDocumentStore_Chunks(t *testing.T) {
	store := setupTestStore(t)
	docs := store.DocumentStore()
	ctx := context.Background()

	anchored := testChunk("c-cap", "doc-1", 1, 2)
	anchored.Section = domain.SectionFigureCaption
	anchored.Anchor = &domain.FigureAnchor{
		Kind:       domain.AnchorFigure,
		Label:      "Figure 1",
		Caption:    "Figure 1: Accuracy.",
		Context:    "Accuracy improves.",
		HasContext: true,
	}
	require.NoError(t, docs.SaveChunks(ctx, []domain.Chunk{
		testChunk("c-2", "doc-1", 2, 0),
		testChunk("c-1", "doc-1", 1, 1),
		testChunk("c-0", "doc-1", 1, 0),
		anchored,
	}))

	chunks, err := docs.GetChunks(ctx, "doc-1")
	require.NoError(t, err)
	require.Len(t, chunks, 4)
	assert.Equal(t, []string{"c-0", "c-1", "c-cap", "c-2"},
		[]string{chunks[0].ID, chunks[1].ID, chunks[2].ID, chunks[3].ID})

	got, err := docs.GetChunk(ctx, "c-cap")
	require.NoError(t, err)
	assert.Equal(t, anchored, *got)

	plain, err := docs.GetChunk(ctx, "c-0")
	require.NoError(t, err)
	assert.Nil(t, plain.Anchor)
	assert.Equal(t, []float32{0.25, -0.5, 1}, plain.Embedding)
}

func TestDocumentStore_GetChunk_NotFound(t *testing.T) {
	store := setupTestStore(t)
	_, err := store.DocumentStore().GetChunk(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDocumentStore_DeleteChunks(t *testing.T) {
	store := setupTestStore(t)
	docs := store.DocumentStore()
	ctx := context.Background()

	require.NoError(t, docs.SaveChunks(ctx, []domain.Chunk{
		testChunk("a", "doc-1", 1, 0),
		testChunk("b", "doc-1", 1, 1),
		testChunk("c", "doc-1", 2, 0),
	}))
	require.NoError(t, docs.DeleteChunks(ctx, []string{"a", "b", "unknown"}))
	require.NoError(t, docs.DeleteChunks(ctx, nil))

	chunks, err := docs.GetChunks(ctx, "doc-1")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "c", chunks[0].ID)
}

func TestDocumentStore_DeleteDocument(t *testing.T) {
	store := setupTestStore(t)
	docs := store.DocumentStore()
	ctx := context.Background()

	require.NoError(t, docs.SaveDocument(ctx, testDocument("doc-1", 1)))
	require.NoError(t, docs.SaveChunks(ctx, []domain.Chunk{testChunk("a", "doc-1", 1, 0)}))

	require.NoError(t, docs.DeleteDocument(ctx, "doc-1"))

	_, err := docs.GetDocument(ctx, "doc-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	chunks, err := docs.GetChunks(ctx, "doc-1")
	require.NoError(t, err)
	assert.Empty(t, chunks)

	var sections int
	require.NoError(t, store.db.QueryRow("SELECT COUNT(*) FROM sections").Scan(&sections))
	assert.Zero(t, sections)

	assert.ErrorIs(t, docs.DeleteDocument(ctx, "doc-1"), domain.ErrNotFound)
}

func TestDocumentStore_ListDocuments(t *testing.T) {
	store := setupTestStore(t)
	docs := store.DocumentStore()
	ctx := context.Background()

	b := testDocument("b", 1)
	b.Title = "Beta"
	a := testDocument("a", 1)
	a.Title = "Alpha"
	a.Authors = nil
	require.NoError(t, docs.SaveDocument(ctx, b))
	require.NoError(t, docs.SaveDocument(ctx, a))

	list, err := docs.ListDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Alpha", list[0].Title)
	assert.Nil(t, list[0].Authors)
	assert.Equal(t, "Beta", list[1].Title)
}

func TestDocumentStore_Status(t *testing.T) {
	store := setupTestStore(t)
	docs := store.DocumentStore()
	ctx := context.Background()

	older := &domain.IngestionStatus{
		DocumentID: "doc-1",
		URI:        "/papers/doc-1.pdf",
		State:      domain.IngestionIndexed,
		UpdatedAt:  time.Unix(100, 0).UTC(),
	}
	newer := &domain.IngestionStatus{
		DocumentID:    "doc-2",
		State:         domain.IngestionPartial,
		Sections:      4,
		ChunksTotal:   3,
		ChunksIndexed: 2,
		ChunkFailures: []domain.ChunkFailure{{ChunkID: "c", Ordinal: 2, Error: "timeout"}},
		UpdatedAt:     time.Unix(200, 0).UTC(),
	}
	require.NoError(t, docs.SaveStatus(ctx, older))
	require.NoError(t, docs.SaveStatus(ctx, newer))

	got, err := docs.GetStatus(ctx, "doc-2")
	require.NoError(t, err)
	assert.Equal(t, *newer, *got)

	list, err := docs.ListStatus(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "doc-2", list[0].DocumentID)
	assert.Nil(t, list[1].ChunkFailures)

	older.State = domain.IngestionRemoved
	require.NoError(t, docs.SaveStatus(ctx, older))
	got, err = docs.GetStatus(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, domain.IngestionRemoved, got.State)

	_, err = docs.GetStatus(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestVectorStore_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := NewStore(dir)
	require.NoError(t, err)
	vectors, err := store.VectorStore(ctx, 2)
	require.NoError(t, err)

	require.NoError(t, vectors.Upsert(ctx, []driven.VectorRecord{
		{ChunkID: "a", Vector: []float32{1, 0}, Metadata: driven.VectorMetadata{DocumentID: "doc-1", Section: domain.SectionResults, Generation: 3}},
		{ChunkID: "b", Vector: []float32{0, 1}, Metadata: driven.VectorMetadata{DocumentID: "doc-2", Section: domain.SectionMethods, Generation: 1}},
		{ChunkID: "c", Vector: []float32{1, 1}, Metadata: driven.VectorMetadata{DocumentID: "doc-2", Section: domain.SectionMethods, Generation: 1}},
	}))
	require.NoError(t, vectors.Remove(ctx, []string{"c"}))
	require.NoError(t, vectors.Close())
	require.NoError(t, store.Close())

	store, err = NewStore(dir)
	require.NoError(t, err)
	defer store.Close()
	vectors, err = store.VectorStore(ctx, 2)
	require.NoError(t, err)

	n, err := vectors.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	hits, err := vectors.Query(ctx, []float32{1, 0}, 1, nil)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "a", hits[0].ChunkID)
	assert.Equal(t, driven.VectorMetadata{
		DocumentID: "doc-1",
		Section:    domain.SectionResults,
		ChunkID:    "a",
		Generation: 3,
	}, hits[0].Metadata)

	require.NoError(t, vectors.Delete(ctx, "doc-1"))
	n, err = vectors.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestVectorStore_DimensionMismatchLeavesDatabaseUntouched(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	vectors, err := store.VectorStore(ctx, 2)
	require.NoError(t, err)

	err = vectors.Upsert(ctx, []driven.VectorRecord{{ChunkID: "a", Vector: []float32{1, 2, 3}}})
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)

	var rows int
	require.NoError(t, store.db.QueryRow("SELECT COUNT(*) FROM vectors").Scan(&rows))
	assert.Zero(t, rows)
}

func TestFloat32Conversion(t *testing.T) {
	in := []float32{0, 1.5, -2.25, 3.4e38}
	assert.Equal(t, in, bytesToFloat32Slice(float32SliceToBytes(in)))
	assert.Nil(t, float32SliceToBytes(nil))
	assert.Nil(t, bytesToFloat32Slice(nil))
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "", placeholders(0))
	assert.Equal(t, "?", placeholders(1))
	assert.Equal(t, "?, ?, ?", placeholders(3))
}
