package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/custodia-labs/paperlens/internal/core/domain"
	"github.com/custodia-labs/paperlens/internal/core/ports/driven"
	"github.com/custodia-labs/paperlens/internal/logger"
)

// candidate is a hydrated, scored hit before selection.
type candidate struct {
	chunk      domain.Chunk
	document   *domain.Document
	similarity float64
	bonus      float64
	cluster    int
}

func (c *candidate) score() float64 {
	return c.similarity + c.bonus
}

// Retriever fuses dense similarity with structural bonuses, filters by
// threshold and removes near-duplicate evidence.
type Retriever struct {
	embedder driven.EmbeddingService
	vectors  driven.VectorStore
	docStore driven.DocumentStore
	detector *DuplicateDetector
	tun      domain.Tunables
}

// NewRetriever creates a retriever. The detector is optional.
func NewRetriever(
	embedder driven.EmbeddingService,
	vectors driven.VectorStore,
	docStore driven.DocumentStore,
	detector *DuplicateDetector,
	tun domain.Tunables,
) *Retriever {
	return &Retriever{
		embedder: embedder,
		vectors:  vectors,
		docStore: docStore,
		detector: detector,
		tun:      tun,
	}
}

// Retrieve returns at most TopK results whose dense similarity reaches
// the similarity threshold, ranked by fused score.
func (r *Retriever) Retrieve(
	ctx context.Context, question string, cls domain.Classification, opts domain.RetrieveOptions,
) ([]domain.RetrievalResult, error) {
	logger.Section("Retrieval")
	defer logger.Timed("retrieval")()

	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("retrieve: %w: empty question", domain.ErrInvalidInput)
	}

	topK := opts.TopK
	if topK <= 0 {
		topK = r.tun.TopKResults
	}
	fetch := topK * max(r.tun.OverFetchFactor, 1)
	logger.Debug("Intent: %s, topK: %d, over-fetch: %d", cls.Intent, topK, fetch)

	vec, err := r.embedQuery(ctx, question)
	if err != nil {
		return nil, err
	}

	hits, err := r.gather(ctx, vec, fetch, cls, opts)
	if err != nil {
		return nil, err
	}
	logger.Debug("Dense candidates: %d", len(hits))
	if len(hits) == 0 {
		return []domain.RetrievalResult{}, nil
	}

	pool, err := r.hydrate(ctx, hits, cls.Intent)
	if err != nil {
		return nil, err
	}
	logger.Debug("Candidates above threshold %.2f: %d", r.tun.SimilarityThreshold, len(pool))

	sortCandidates(pool)
	selected := r.selectResults(pool, topK, comparisonDocuments(cls, opts))

	results := make([]domain.RetrievalResult, len(selected))
	for i, c := range selected {
		results[i] = domain.RetrievalResult{
			Chunk:           c.chunk,
			Document:        *c.document,
			Score:           c.score(),
			Similarity:      c.similarity,
			StructuralBonus: c.bonus,
			Rank:            i + 1,
			ClusterID:       c.cluster,
		}
	}
	logger.Info("Retrieved %d results", len(results))
	return results, nil
}

func (r *Retriever) embedQuery(ctx context.Context, question string) ([]float32, error) {
	if r.embedder == nil {
		return nil, domain.NewEmbeddingError("retrieve", "query", errors.New("embedding service unavailable"))
	}
	var vec []float32
	err := withRetry(ctx, r.tun.EmbeddingRetry, r.tun.EmbeddingTimeout, "embed query",
		func(ctx context.Context) error {
			v, err := r.embedder.Embed(ctx, question)
			if err != nil {
				return err
			}
			if len(v) == 0 {
				return fmt.Errorf("%w: empty query vector", domain.ErrDimensionMismatch)
			}
			vec = v
			return nil
		})
	if err != nil {
		logger.Warn("Query embedding failed: %v", err)
		return nil, domain.NewEmbeddingError("retrieve", "query", err)
	}
	return vec, nil
}

// gather issues the dense query plus, for comparisons, one filtered query
// per referenced document, and merges hits by chunk.
func (r *Retriever) gather(
	ctx context.Context, vec []float32, fetch int, cls domain.Classification, opts domain.RetrieveOptions,
) ([]driven.VectorHit, error) {
	var filter *driven.VectorFilter
	if len(opts.DocumentIDs) > 0 || len(opts.Sections) > 0 {
		filter = &driven.VectorFilter{DocumentIDs: opts.DocumentIDs, Sections: opts.Sections}
	}

	hits, err := r.query(ctx, vec, fetch, filter)
	if err != nil {
		return nil, err
	}

	docs := comparisonDocuments(cls, opts)
	if len(docs) == 0 {
		return hits, nil
	}

	merged := make(map[string]driven.VectorHit, len(hits))
	for _, h := range hits {
		merged[h.ChunkID] = h
	}
	perDoc := max(r.tun.OverFetchFactor, 1)
	for _, docID := range docs {
		docHits, err := r.query(ctx, vec, perDoc, &driven.VectorFilter{
			DocumentIDs: []string{docID},
			Sections:    opts.Sections,
		})
		if err != nil {
			return nil, err
		}
		logger.Debug("Comparison document %s: %d candidates", docID, len(docHits))
		for _, h := range docHits {
			if prev, ok := merged[h.ChunkID]; !ok || h.Similarity > prev.Similarity {
				merged[h.ChunkID] = h
			}
		}
	}

	out := make([]driven.VectorHit, 0, len(merged))
	for _, h := range merged {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Similarity != out[j].Similarity {
			return out[i].Similarity > out[j].Similarity
		}
		return out[i].ChunkID < out[j].ChunkID
	})
	return out, nil
}

func (r *Retriever) query(
	ctx context.Context, vec []float32, k int, filter *driven.VectorFilter,
) ([]driven.VectorHit, error) {
	var hits []driven.VectorHit
	err := withRetry(ctx, r.tun.VectorStoreRetry, r.tun.VectorStoreTimeout, "vector query",
		func(ctx context.Context) error {
			h, err := r.vectors.Query(ctx, vec, k, filter)
			if err != nil {
				return err
			}
			hits = h
			return nil
		})
	if err != nil {
		logger.Warn("Vector query failed: %v", err)
		if isTimeout(err) {
			return nil, domain.NewRetrievalTimeout("vector query", err)
		}
		return nil, fmt.Errorf("vector query: %w", err)
	}
	return hits, nil
}

// hydrate loads chunks and documents for hits, drops hits below the
// threshold or from an inactive generation, and applies the structural
// bonus.
func (r *Retriever) hydrate(
	ctx context.Context, hits []driven.VectorHit, intent domain.Intent,
) ([]*candidate, error) {
	docs := map[string]*domain.Document{}
	seen := map[string]bool{}
	pool := make([]*candidate, 0, len(hits))

	for _, h := range hits {
		sim := clamp01(h.Similarity)
		if sim < r.tun.SimilarityThreshold || seen[h.ChunkID] {
			continue
		}
		seen[h.ChunkID] = true

		doc, ok := docs[h.Metadata.DocumentID]
		if !ok {
			d, err := r.docStore.GetDocument(ctx, h.Metadata.DocumentID)
			switch {
			case errors.Is(err, domain.ErrNotFound):
				d = nil
			case err != nil:
				return nil, fmt.Errorf("hydrate document %s: %w", h.Metadata.DocumentID, err)
			}
			docs[h.Metadata.DocumentID] = d
			doc = d
		}
		if doc == nil || (h.Metadata.Generation != 0 && h.Metadata.Generation != doc.Generation) {
			continue
		}

		chunk, err := r.docStore.GetChunk(ctx, h.ChunkID)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("hydrate chunk %s: %w", h.ChunkID, err)
		}
		if chunk.Generation != doc.Generation {
			continue
		}

		c := &candidate{chunk: *chunk, document: doc, similarity: sim, cluster: -1}
		if intent.Prefers(chunk.Section) {
			c.bonus = r.tun.SectionBonus
		}
		if r.detector != nil {
			if id, ok := r.detector.ClusterOf(chunk.ID); ok {
				c.cluster = id
			}
		}
		pool = append(pool, c)
	}
	return pool, nil
}

// sortCandidates orders by fused score, then section priority, then
// newer documents, then chunk ID.
func sortCandidates(pool []*candidate) {
	sort.SliceStable(pool, func(i, j int) bool {
		a, b := pool[i], pool[j]
		if a.score() != b.score() {
			return a.score() > b.score()
		}
		if pa, pb := a.chunk.Section.Priority(), b.chunk.Section.Priority(); pa != pb {
			return pa < pb
		}
		if !a.document.IngestedAt.Equal(b.document.IngestedAt) {
			return a.document.IngestedAt.After(b.document.IngestedAt)
		}
		return a.chunk.ID < b.chunk.ID
	})
}

// selectResults picks up to topK candidates from the sorted pool. Each
// referenced document first gets its best candidate, then the rest fill
// by score. At most one candidate per duplicate cluster survives; later
// pool entries backfill skipped ones.
func (r *Retriever) selectResults(pool []*candidate, topK int, referenced []string) []*candidate {
	picked := make([]*candidate, 0, topK)
	taken := map[string]bool{}
	clusters := map[int]bool{}

	take := func(c *candidate) bool {
		if len(picked) >= topK || taken[c.chunk.ID] {
			return false
		}
		if c.cluster >= 0 && clusters[c.cluster] {
			logger.Debug("Skipping %s: duplicate of cluster %d", c.chunk.ID, c.cluster)
			return false
		}
		taken[c.chunk.ID] = true
		if c.cluster >= 0 {
			clusters[c.cluster] = true
		}
		picked = append(picked, c)
		return true
	}

	for _, docID := range referenced {
		for _, c := range pool {
			if c.chunk.DocumentID == docID && take(c) {
				break
			}
		}
	}
	for _, c := range pool {
		if len(picked) >= topK {
			break
		}
		take(c)
	}

	sortCandidates(picked)
	return picked
}

// comparisonDocuments returns the referenced documents of a comparison,
// limited to the caller's document filter when one is set.
func comparisonDocuments(cls domain.Classification, opts domain.RetrieveOptions) []string {
	if cls.Intent != domain.IntentComparison || len(cls.DocumentIDs) == 0 {
		return nil
	}
	if len(opts.DocumentIDs) == 0 {
		return cls.DocumentIDs
	}
	var out []string
	for _, id := range cls.DocumentIDs {
		if containsID(opts.DocumentIDs, id) {
			out = append(out, id)
		}
	}
	return out
}
