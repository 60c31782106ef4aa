package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/paperlens/internal/core/domain"
)

var generic = domain.Classification{Intent: domain.IntentGeneric}

func TestRetriever_RanksAboveThreshold(t *testing.T) {
	f := newFixture(t)
	seedCorpus(t, f)

	results, err := f.retriever().Retrieve(context.Background(), "transformer attention", generic, domain.RetrieveOptions{})
	require.NoError(t, err)

	// attention#2 scores 0.41 and falls under the 0.5 threshold.
	require.Len(t, results, 2)
	assert.Equal(t, "abstract: The transformer relies on attention.", results[0].Chunk.Text)
	assert.Equal(t, domain.SectionMethods, results[1].Chunk.Section)
	for i, r := range results {
		assert.Equal(t, i+1, r.Rank)
		assert.GreaterOrEqual(t, r.Similarity, f.tun.SimilarityThreshold)
		assert.Equal(t, "attention", r.Document.ID)
		assert.Zero(t, r.StructuralBonus)
		assert.Equal(t, -1, r.ClusterID)
	}
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
	assert.InDelta(t, 0.7071, results[1].Score, 1e-3)
}

func TestRetriever_SectionBonusReorders(t *testing.T) {
	tun := testTunables()
	tun.SectionBonus = 0.5
	f := newFixtureWith(t, tun)
	seedCorpus(t, f)

	method := domain.Classification{Intent: domain.IntentMethod}
	results, err := f.retriever().Retrieve(context.Background(), "transformer attention", method, domain.RetrieveOptions{})
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, domain.SectionMethods, results[0].Chunk.Section)
	assert.InDelta(t, 0.5, results[0].StructuralBonus, 1e-9)
	assert.InDelta(t, results[0].Similarity+0.5, results[0].Score, 1e-9)
	assert.Greater(t, results[1].Similarity, results[0].Similarity)
}

func TestRetriever_TopKOverride(t *testing.T) {
	f := newFixture(t)
	seedCorpus(t, f)

	results, err := f.retriever().Retrieve(context.Background(), "transformer attention", generic,
		domain.RetrieveOptions{TopK: 1})
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestRetriever_Filters(t *testing.T) {
	f := newFixture(t)
	seedCorpus(t, f)
	r := f.retriever()
	ctx := context.Background()

	results, err := r.Retrieve(ctx, "residual image", generic, domain.RetrieveOptions{DocumentIDs: []string{"attention"}})
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)

	results, err = r.Retrieve(ctx, "residual image", generic,
		domain.RetrieveOptions{Sections: []domain.SectionLabel{domain.SectionResults}})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "resnet", results[0].Document.ID)
	assert.Equal(t, domain.SectionResults, results[0].Chunk.Section)
}

func TestRetriever_EmptyStore(t *testing.T) {
	f := newFixture(t)

	results, err := f.retriever().Retrieve(context.Background(), "anything at all", generic, domain.RetrieveOptions{})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestRetriever_EmptyQuestion(t *testing.T) {
	f := newFixture(t)

	_, err := f.retriever().Retrieve(context.Background(), "  ", generic, domain.RetrieveOptions{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestRetriever_EmbeddingFailure(t *testing.T) {
	f := newFixture(t)
	seedCorpus(t, f)
	f.embedder.fail["explode"] = errors.New("model crashed")

	_, err := f.retriever().Retrieve(context.Background(), "explode transformer", generic, domain.RetrieveOptions{})

	assert.ErrorIs(t, err, domain.ErrEmbedding)
}

func TestRetriever_SkipsNearDuplicates(t *testing.T) {
	f := newFixture(t)
	seedCorpus(t, f)
	f.ingest(t, "paper://copy", "A Copy", "abstract: The transformer relies on attention.")

	results, err := f.retriever().Retrieve(context.Background(), "transformer attention", generic, domain.RetrieveOptions{})
	require.NoError(t, err)

	require.Len(t, results, 2)
	exact := 0
	for _, r := range results {
		if r.Similarity > 0.999 {
			exact++
			assert.GreaterOrEqual(t, r.ClusterID, 0)
		}
	}
	assert.Equal(t, 1, exact)
	assert.Equal(t, domain.SectionMethods, results[1].Chunk.Section)
}

func TestRetriever_ComparisonCoversEveryDocument(t *testing.T) {
	tun := testTunables()
	tun.SimilarityThreshold = 0
	f := newFixtureWith(t, tun)
	seedCorpus(t, f)
	r := f.retriever()
	ctx := context.Background()

	plain, err := r.Retrieve(ctx, "transformer attention", generic, domain.RetrieveOptions{TopK: 2})
	require.NoError(t, err)
	require.Len(t, plain, 2)
	assert.Equal(t, "attention", plain[0].Document.ID)
	assert.Equal(t, "attention", plain[1].Document.ID)

	comparison := domain.Classification{
		Intent:      domain.IntentComparison,
		DocumentIDs: []string{"attention", "resnet"},
	}
	results, err := r.Retrieve(ctx, "transformer attention", comparison, domain.RetrieveOptions{TopK: 2})
	require.NoError(t, err)
	require.Len(t, results, 2)

	docs := map[string]bool{}
	for _, res := range results {
		docs[res.Document.ID] = true
	}
	assert.True(t, docs["attention"])
	assert.True(t, docs["resnet"])
}

func TestRetriever_IgnoresInactiveGenerations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.ingest(t, "paper://attention", "Attention", "abstract: The transformer relies on attention.")

	doc, err := f.docs.GetDocument(ctx, "attention")
	require.NoError(t, err)

	// A newer generation written but not committed stays invisible.
	pending := paragraphChunk(t, "attention", doc.Generation+1, "abstract: attention transformer attention transformer")
	require.NoError(t, f.docs.SaveChunks(ctx, pending))
	require.NoError(t, f.indexer.upsert(ctx, pending))

	results, err := f.retriever().Retrieve(ctx, "transformer attention", generic, domain.RetrieveOptions{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, doc.Generation, results[0].Chunk.Generation)
}

func paragraphChunk(t *testing.T, docID string, gen int64, text string) []domain.Chunk {
	t.Helper()
	_, chunks, err := paragraphSegmenter{}.Segment(&domain.RawDocument{Pages: []domain.Page{{Number: 1, Text: text}}}, docID, gen)
	require.NoError(t, err)
	for i := range chunks {
		chunks[i].Embedding = keywordVector(chunks[i].Text)
	}
	return chunks
}
