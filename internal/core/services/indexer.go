package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/paperlens/internal/core/domain"
	"github.com/custodia-labs/paperlens/internal/core/ports/driven"
	"github.com/custodia-labs/paperlens/internal/core/ports/driving"
	"github.com/custodia-labs/paperlens/internal/logger"
)

// Ensure Indexer implements the interface.
var _ driving.IngestService = (*Indexer)(nil)

// Indexer segments documents, embeds their chunks and registers them
// with the vector store. Re-ingestion writes a new generation and
// switches to it with a single document commit, so the query path never
// sees a half-replaced document.
type Indexer struct {
	docStore  driven.DocumentStore
	vectors   driven.VectorStore
	embedder  driven.EmbeddingService
	segmenter driven.Segmenter
	detector  *DuplicateDetector
	tun       domain.Tunables
	idFor     func(uri string) string
	extractor driven.Extractor

	// commitMu guards the generation check and document commit only.
	commitMu sync.Mutex
	now      func() time.Time
}

// NewIndexer creates an indexer. idFor derives document IDs from URIs.
// The detector is optional.
func NewIndexer(
	docStore driven.DocumentStore,
	vectors driven.VectorStore,
	embedder driven.EmbeddingService,
	segmenter driven.Segmenter,
	detector *DuplicateDetector,
	tun domain.Tunables,
	idFor func(uri string) string,
) *Indexer {
	return &Indexer{
		docStore:  docStore,
		vectors:   vectors,
		embedder:  embedder,
		segmenter: segmenter,
		detector:  detector,
		tun:       tun,
		idFor:     idFor,
		now:       time.Now,
	}
}

// SetExtractor configures the extractor used by IngestFile.
func (i *Indexer) SetExtractor(ex driven.Extractor) {
	i.extractor = ex
}

// IngestFile extracts a paper file and ingests it.
func (i *Indexer) IngestFile(ctx context.Context, path string) (*domain.IngestionStatus, error) {
	if i.extractor == nil || !i.extractor.Supports(path) {
		return nil, domain.NewIngestionError("extract", path, domain.ErrUnsupportedType)
	}
	raw, err := i.extractor.Extract(ctx, path)
	if err != nil {
		return nil, domain.NewIngestionError("extract", path, err)
	}
	return i.Ingest(ctx, raw)
}

// Ingest indexes one document. Per-chunk embedding failures are recorded
// in the returned status and do not fail the document. A document with
// no indexable chunks fails with an IngestionError and leaves any
// previous generation in place. Cancelling ctx fails with ctx's error.
func (i *Indexer) Ingest(ctx context.Context, raw *domain.RawDocument) (*domain.IngestionStatus, error) {
	if raw == nil || raw.URI == "" {
		return nil, fmt.Errorf("ingest: %w: document URI is required", domain.ErrInvalidInput)
	}

	docID := i.idFor(raw.URI)
	logger.Section("Ingest " + raw.URI)
	defer logger.Timed("ingest " + docID)()

	status := &domain.IngestionStatus{
		DocumentID: docID,
		URI:        raw.URI,
		Title:      raw.Title,
		State:      domain.IngestionPending,
	}
	i.saveStatus(ctx, status)

	gen, err := i.nextGeneration(ctx, docID)
	if err != nil {
		return i.fail(ctx, status, domain.NewIngestionError("generation", docID, err))
	}

	sections, chunks, err := i.segmenter.Segment(raw, docID, gen)
	if err != nil {
		return i.fail(ctx, status, domain.NewIngestionError("segment", docID, err))
	}
	status.Sections = len(sections)
	status.ChunksTotal = len(chunks)
	logger.Debug("Segmented into %d sections, %d chunks", len(sections), len(chunks))
	if len(chunks) == 0 {
		return i.fail(ctx, status, domain.NewIngestionError("segment", docID, errors.New("no extractable text")))
	}

	indexed, failures, err := i.embedChunks(ctx, chunks)
	if err != nil {
		return i.fail(context.WithoutCancel(ctx), status, fmt.Errorf("ingest %s: %w", docID, err))
	}
	status.ChunksIndexed = len(indexed)
	status.ChunkFailures = failures
	if len(indexed) == 0 {
		errs := make([]error, 0, len(failures))
		for _, f := range failures {
			errs = append(errs, errors.New(f.Error))
		}
		return i.fail(ctx, status, domain.NewIngestionError("embed", docID, errors.Join(errs...)))
	}

	if err := i.docStore.SaveChunks(ctx, indexed); err != nil {
		return i.fail(ctx, status, domain.NewIngestionError("store chunks", docID, err))
	}
	if err := i.upsert(ctx, indexed); err != nil {
		i.discard(ctx, chunkIDs(indexed))
		return i.fail(ctx, status, domain.NewIngestionError("upsert vectors", docID, err))
	}

	doc := &domain.Document{
		ID:         docID,
		URI:        raw.URI,
		Title:      raw.Title,
		DOI:        raw.DOI,
		ArxivID:    raw.ArxivID,
		Authors:    raw.Authors,
		Sections:   sections,
		Generation: gen,
		IngestedAt: i.now(),
	}
	won, err := i.commit(ctx, doc)
	if err != nil {
		i.discard(ctx, chunkIDs(indexed))
		return i.fail(ctx, status, domain.NewIngestionError("commit", docID, err))
	}
	if !won {
		logger.Warn("Ingest %s: superseded by a newer generation", raw.URI)
		i.discard(ctx, chunkIDs(indexed))
		status.State = domain.IngestionIndexed
		status.UpdatedAt = i.now()
		return status, nil
	}

	i.removeStale(ctx, docID, gen)
	if i.detector != nil {
		skipped, current := i.detector.Replace(docID, gen, indexed)
		switch {
		case !current:
			logger.Debug("Duplicate detector already holds a newer generation of %s", docID)
		case skipped > 0:
			logger.Debug("Duplicate detector skipped %d chunks", skipped)
		}
	}

	status.State = domain.IngestionIndexed
	if len(failures) > 0 {
		status.State = domain.IngestionPartial
	}
	i.saveStatus(ctx, status)
	logger.Info("Indexed %s: %d/%d chunks", raw.URI, len(indexed), len(chunks))
	return status, nil
}

// nextGeneration returns a generation newer than the stored one.
func (i *Indexer) nextGeneration(ctx context.Context, docID string) (int64, error) {
	gen := i.now().UnixNano()
	cur, err := i.docStore.GetDocument(ctx, docID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return gen, nil
	case err != nil:
		return 0, err
	}
	if cur.Generation >= gen {
		gen = cur.Generation + 1
	}
	return gen, nil
}

// embedChunks embeds chunks with bounded concurrency. Chunks that fail
// after retries are reported and left out. Cancelling ctx stops new
// chunks from starting and is returned as the error.
func (i *Indexer) embedChunks(
	ctx context.Context, chunks []domain.Chunk,
) ([]domain.Chunk, []domain.ChunkFailure, error) {
	errs := make([]error, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(i.tun.EmbedConcurrency, 1))

	for n := range chunks {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			// Per-chunk failures are recorded, not returned, so one bad
			// chunk does not cancel the rest.
			errs[n] = i.embedChunk(gctx, &chunks[n])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	var indexed []domain.Chunk
	var failures []domain.ChunkFailure
	for n, err := range errs {
		if err != nil {
			logger.Warn("Chunk %d of %s not indexed: %v", chunks[n].Ordinal, chunks[n].DocumentID, err)
			failures = append(failures, domain.ChunkFailure{
				ChunkID: chunks[n].ID,
				Ordinal: chunks[n].Ordinal,
				Error:   err.Error(),
			})
			continue
		}
		indexed = append(indexed, chunks[n])
	}
	return indexed, failures, nil
}

func (i *Indexer) embedChunk(ctx context.Context, chunk *domain.Chunk) error {
	err := withRetry(ctx, i.tun.EmbeddingRetry, i.tun.EmbeddingTimeout, "embed chunk",
		func(ctx context.Context) error {
			vec, err := i.embedder.Embed(ctx, chunk.Text)
			if err != nil {
				return err
			}
			if want := i.tun.EmbeddingDimension; want > 0 && len(vec) != want {
				return fmt.Errorf("%w: got %d, want %d", domain.ErrDimensionMismatch, len(vec), want)
			}
			chunk.Embedding = vec
			return nil
		})
	if err != nil {
		return domain.NewEmbeddingError("index", chunk.ID, err)
	}
	return nil
}

func (i *Indexer) upsert(ctx context.Context, chunks []domain.Chunk) error {
	records := make([]driven.VectorRecord, len(chunks))
	for n, c := range chunks {
		records[n] = driven.VectorRecord{
			ChunkID: c.ID,
			Vector:  c.Embedding,
			Metadata: driven.VectorMetadata{
				DocumentID: c.DocumentID,
				Section:    c.Section,
				ChunkID:    c.ID,
				Generation: c.Generation,
			},
		}
	}
	return withRetry(ctx, i.tun.VectorStoreRetry, i.tun.VectorStoreTimeout, "upsert",
		func(ctx context.Context) error {
			return i.vectors.Upsert(ctx, records)
		})
}

// commit switches the document to doc.Generation unless a newer
// generation was committed concurrently.
func (i *Indexer) commit(ctx context.Context, doc *domain.Document) (bool, error) {
	i.commitMu.Lock()
	defer i.commitMu.Unlock()

	cur, err := i.docStore.GetDocument(ctx, doc.ID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return false, err
	}
	if cur != nil && cur.Generation > doc.Generation {
		return false, nil
	}
	return true, i.docStore.SaveDocument(ctx, doc)
}

// removeStale deletes chunks and vectors of generations older than gen.
// Failures are logged; stale data is invisible to queries either way.
func (i *Indexer) removeStale(ctx context.Context, docID string, gen int64) {
	chunks, err := i.docStore.GetChunks(ctx, docID)
	if err != nil {
		logger.Warn("List chunks of %s for cleanup: %v", docID, err)
		return
	}
	var stale []string
	for _, c := range chunks {
		if c.Generation < gen {
			stale = append(stale, c.ID)
		}
	}
	if len(stale) > 0 {
		logger.Debug("Removing %d stale chunks of %s", len(stale), docID)
		i.discard(ctx, stale)
	}
}

// discard best-effort deletes chunks from both stores.
func (i *Indexer) discard(ctx context.Context, ids []string) {
	if len(ids) == 0 {
		return
	}
	err := withRetry(ctx, i.tun.VectorStoreRetry, i.tun.VectorStoreTimeout, "remove vectors",
		func(ctx context.Context) error {
			return i.vectors.Remove(ctx, ids)
		})
	if err != nil {
		logger.Warn("Remove %d vectors: %v", len(ids), err)
	}
	if err := i.docStore.DeleteChunks(ctx, ids); err != nil {
		logger.Warn("Delete %d chunks: %v", len(ids), err)
	}
}

// Remove deletes a document, its vectors and its cluster membership.
func (i *Indexer) Remove(ctx context.Context, documentID string) error {
	doc, err := i.docStore.GetDocument(ctx, documentID)
	if err != nil {
		return fmt.Errorf("remove %s: %w", documentID, err)
	}

	err = withRetry(ctx, i.tun.VectorStoreRetry, i.tun.VectorStoreTimeout, "delete vectors",
		func(ctx context.Context) error {
			return i.vectors.Delete(ctx, documentID)
		})
	if err != nil {
		if isTimeout(err) {
			return domain.NewRetrievalTimeout("delete vectors", err)
		}
		return fmt.Errorf("remove %s: delete vectors: %w", documentID, err)
	}
	if err := i.docStore.DeleteDocument(ctx, documentID); err != nil {
		return fmt.Errorf("remove %s: %w", documentID, err)
	}
	if i.detector != nil {
		i.detector.RemoveDocument(documentID)
	}

	i.saveStatus(ctx, &domain.IngestionStatus{
		DocumentID: documentID,
		URI:        doc.URI,
		Title:      doc.Title,
		State:      domain.IngestionRemoved,
	})
	logger.Info("Removed %s", doc.URI)
	return nil
}

// Status returns the ingestion status of a document.
func (i *Indexer) Status(ctx context.Context, documentID string) (*domain.IngestionStatus, error) {
	return i.docStore.GetStatus(ctx, documentID)
}

// ListStatus returns every recorded ingestion status, newest first.
func (i *Indexer) ListStatus(ctx context.Context) ([]domain.IngestionStatus, error) {
	list, err := i.docStore.ListStatus(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(list, func(a, b int) bool {
		return list[a].UpdatedAt.After(list[b].UpdatedAt)
	})
	return list, nil
}

// RebuildDuplicates re-clusters the active chunks of every document.
func (i *Indexer) RebuildDuplicates(ctx context.Context) error {
	if i.detector == nil {
		return nil
	}
	docs, err := i.docStore.ListDocuments(ctx)
	if err != nil {
		return fmt.Errorf("rebuild duplicates: %w", err)
	}
	var active []domain.Chunk
	for _, d := range docs {
		chunks, err := i.docStore.GetChunks(ctx, d.ID)
		if err != nil {
			return fmt.Errorf("rebuild duplicates: %w", err)
		}
		for _, c := range chunks {
			if c.Generation == d.Generation {
				active = append(active, c)
			}
		}
	}
	skipped := i.detector.Rebuild(active)
	logger.Debug("Rebuilt duplicate clusters over %d chunks (%d skipped)", len(active), skipped)
	return nil
}

func (i *Indexer) fail(
	ctx context.Context, status *domain.IngestionStatus, err error,
) (*domain.IngestionStatus, error) {
	logger.Warn("Ingest %s failed: %v", status.URI, err)
	status.State = domain.IngestionFailed
	status.Error = err.Error()
	i.saveStatus(ctx, status)
	return status, err
}

func (i *Indexer) saveStatus(ctx context.Context, status *domain.IngestionStatus) {
	status.UpdatedAt = i.now()
	if err := i.docStore.SaveStatus(ctx, status); err != nil {
		logger.Warn("Save status of %s: %v", status.DocumentID, err)
	}
}

func chunkIDs(chunks []domain.Chunk) []string {
	ids := make([]string, len(chunks))
	for n, c := range chunks {
		ids[n] = c.ID
	}
	return ids
}
