package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/paperlens/internal/core/domain"
)

func dupChunk(id, docID string, section domain.SectionLabel, vec ...float32) domain.Chunk {
	return domain.Chunk{ID: id, DocumentID: docID, Section: section, Embedding: vec}
}

func TestDuplicateDetector_ClustersAcrossDocuments(t *testing.T) {
	d := NewDuplicateDetector(0.95, 8)

	skipped := d.Add([]domain.Chunk{
		dupChunk("a#0", "a", domain.SectionAbstract, 1, 0, 0),
		dupChunk("a#1", "a", domain.SectionMethods, 0, 1, 0),
		dupChunk("b#0", "b", domain.SectionAbstract, 0.99, 0.05, 0),
		dupChunk("b#1", "b", domain.SectionResults, 0, 0, 1),
	})
	require.Zero(t, skipped)

	clusters := d.Clusters()
	require.Len(t, clusters, 1)
	assert.Equal(t, "a#0", clusters[0].Representative)
	assert.Equal(t, 2, clusters[0].Size())
	assert.GreaterOrEqual(t, clusters[0].AverageSimilarity(), 0.95)

	id, ok := d.ClusterOf("b#0")
	assert.True(t, ok)
	assert.Equal(t, clusters[0].ID, id)

	_, ok = d.ClusterOf("a#1")
	assert.False(t, ok, "singletons are not reported as clustered")

	reports := d.Report(nil)
	require.Len(t, reports, 1)
	assert.Equal(t, []string{"a", "b"}, reports[0].DocumentIDs)
	assert.True(t, reports[0].SpansDocuments())
}

func TestDuplicateDetector_SkipsChunksWithoutEmbedding(t *testing.T) {
	d := NewDuplicateDetector(0.95, 8)

	skipped := d.Add([]domain.Chunk{{ID: "x", DocumentID: "a"}, dupChunk("y", "a", domain.SectionAbstract, 1)})

	assert.Equal(t, 1, skipped)
	assert.Equal(t, 1, d.Len())
}

func TestDuplicateDetector_RemoveRepresentative(t *testing.T) {
	d := NewDuplicateDetector(0.9, 8)
	d.Add([]domain.Chunk{
		dupChunk("a#0", "a", domain.SectionAbstract, 1, 0),
		dupChunk("b#0", "b", domain.SectionAbstract, 1, 0.1),
		dupChunk("c#0", "c", domain.SectionAbstract, 1, 0.2),
	})
	require.Len(t, d.Clusters(), 1)

	d.Remove([]string{"a#0"})

	clusters := d.Clusters()
	require.Len(t, clusters, 1)
	assert.NotEqual(t, "a#0", clusters[0].Representative)
	assert.Equal(t, 2, clusters[0].Size())

	d.RemoveDocument("b")
	assert.Empty(t, d.Clusters())
	assert.Equal(t, 1, d.Len())
}

func TestDuplicateDetector_ReportRestrictedToDocuments(t *testing.T) {
	d := NewDuplicateDetector(0.95, 8)
	d.Add([]domain.Chunk{
		dupChunk("a#0", "a", domain.SectionMethods, 1, 0),
		dupChunk("b#0", "b", domain.SectionMethods, 1, 0),
		dupChunk("c#0", "c", domain.SectionMethods, 1, 0),
	})

	reports := d.Report([]string{"b", "c"})
	require.Len(t, reports, 1)
	assert.Equal(t, []string{"b", "c"}, reports[0].DocumentIDs)
	assert.Equal(t, "b#0", reports[0].Cluster.Representative)

	assert.Empty(t, d.Report([]string{"c"}))
}

func TestDuplicateDetector_RebuildIsOrderIndependent(t *testing.T) {
	chunks := []domain.Chunk{
		dupChunk("c#0", "c", domain.SectionResults, 0.97, 0.2),
		dupChunk("a#0", "a", domain.SectionResults, 1, 0),
		dupChunk("b#0", "b", domain.SectionResults, 1, 0.05),
		dupChunk("d#0", "d", domain.SectionMethods, 0, 1),
	}
	reversed := []domain.Chunk{chunks[3], chunks[2], chunks[1], chunks[0]}

	d1 := NewDuplicateDetector(0.95, 8)
	d2 := NewDuplicateDetector(0.95, 8)
	d1.Rebuild(chunks)
	d2.Rebuild(reversed)

	assert.Equal(t, d1.Clusters(), d2.Clusters())
}

func TestDuplicateDetector_Stats(t *testing.T) {
	d := NewDuplicateDetector(0.95, 8)
	d.Add([]domain.Chunk{
		dupChunk("a#0", "a", domain.SectionMethods, 1, 0),
		dupChunk("b#0", "b", domain.SectionMethods, 1, 0),
		dupChunk("a#1", "a", domain.SectionResults, 0, 1),
		dupChunk("b#1", "b", domain.SectionResults, 0, 1),
	})

	stats := d.Stats()

	assert.Equal(t, 2, stats.TotalClusters)
	assert.Equal(t, 4, stats.TotalDuplicateChunks)
	assert.Equal(t, 2, stats.AffectedDocuments)
	assert.InDelta(t, 100.0, stats.DuplicatePercentage, 1e-9)
	assert.Equal(t, domain.SectionDuplicates{Clusters: 1, Chunks: 2}, stats.SectionBreakdown[domain.SectionMethods])
}

func TestDuplicateDetector_RecomputeKeepsThreshold(t *testing.T) {
	d := NewDuplicateDetector(0.9, 2)
	d.Add([]domain.Chunk{
		dupChunk("a", "a", domain.SectionAbstract, 1, 0),
		dupChunk("b", "b", domain.SectionAbstract, 1, 0.45),
		dupChunk("c", "c", domain.SectionAbstract, 1, -0.45),
		dupChunk("e", "e", domain.SectionAbstract, 1, 0.4),
	})

	for _, c := range d.Clusters() {
		for _, m := range c.Members {
			assert.GreaterOrEqual(t, m.Similarity, 0.9, "member %s of cluster %d", m.ChunkID, c.ID)
		}
	}
	assert.Equal(t, 4, d.Len())
}

func TestDuplicateDetector_Replace(t *testing.T) {
	d := NewDuplicateDetector(0.95, 8)
	d.Add([]domain.Chunk{dupChunk("b#0", "b", domain.SectionMethods, 1, 0)})

	skipped, current := d.Replace("a", 1, []domain.Chunk{
		dupChunk("a@1#0", "a", domain.SectionMethods, 1, 0),
		dupChunk("a@1#1", "a", domain.SectionResults, 0, 1),
	})
	require.True(t, current)
	require.Zero(t, skipped)
	assert.Equal(t, 3, d.Len())

	t.Run("newer generation drops the old chunks", func(t *testing.T) {
		_, current := d.Replace("a", 3, []domain.Chunk{dupChunk("a@3#0", "a", domain.SectionResults, 0, 1)})

		require.True(t, current)
		assert.Equal(t, 2, d.Len())
		_, ok := d.ClusterOf("a@1#0")
		assert.False(t, ok)
		_, ok = d.ClusterOf("a@3#0")
		assert.True(t, ok)
	})

	t.Run("late older generation is ignored", func(t *testing.T) {
		_, current := d.Replace("a", 2, []domain.Chunk{dupChunk("a@2#0", "a", domain.SectionMethods, 1, 0)})

		assert.False(t, current)
		assert.Equal(t, 2, d.Len())
		_, ok := d.ClusterOf("a@2#0")
		assert.False(t, ok)
		_, ok = d.ClusterOf("a@3#0")
		assert.True(t, ok)
		assert.Zero(t, d.Stats().TotalClusters)
	})
}

func TestDuplicateDetector_RebuildTracksGenerations(t *testing.T) {
	d := NewDuplicateDetector(0.95, 8)
	chunk := dupChunk("a@5#0", "a", domain.SectionMethods, 1, 0)
	chunk.Generation = 5
	d.Rebuild([]domain.Chunk{chunk})

	_, current := d.Replace("a", 4, []domain.Chunk{dupChunk("a@4#0", "a", domain.SectionMethods, 1, 0)})

	assert.False(t, current)
	_, ok := d.ClusterOf("a@5#0")
	assert.True(t, ok)
}
