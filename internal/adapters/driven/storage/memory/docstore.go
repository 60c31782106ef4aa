package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-labs/paperlens/internal/core/domain"
	"github.com/custodia-labs/paperlens/internal/core/ports/driven"
)

// Ensure DocumentStore implements the interface.
var _ driven.DocumentStore = (*DocumentStore)(nil)

// DocumentStore is an in-memory implementation of driven.DocumentStore.
// Chunks of every generation are kept until deleted.
type DocumentStore struct {
	mu        sync.RWMutex
	documents map[string]domain.Document
	chunks    map[string]domain.Chunk
	byDoc     map[string]map[string]struct{}
	status    map[string]domain.IngestionStatus
}

// NewDocumentStore creates a new in-memory document store.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		documents: make(map[string]domain.Document),
		chunks:    make(map[string]domain.Chunk),
		byDoc:     make(map[string]map[string]struct{}),
		status:    make(map[string]domain.IngestionStatus),
	}
}

// SaveDocument stores or replaces a document.
func (s *DocumentStore) SaveDocument(_ context.Context, doc *domain.Document) error {
	if doc == nil || doc.ID == "" {
		return domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.documents[doc.ID] = *doc
	return nil
}

// SaveChunks stores chunks, replacing any with the same ID.
func (s *DocumentStore) SaveChunks(_ context.Context, chunks []domain.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range chunks {
		if c.ID == "" || c.DocumentID == "" {
			return domain.ErrInvalidInput
		}
		s.chunks[c.ID] = c
		ids, ok := s.byDoc[c.DocumentID]
		if !ok {
			ids = make(map[string]struct{})
			s.byDoc[c.DocumentID] = ids
		}
		ids[c.ID] = struct{}{}
	}
	return nil
}

// GetDocument retrieves a document by ID.
func (s *DocumentStore) GetDocument(_ context.Context, id string) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &doc, nil
}

// GetChunks returns every stored chunk of a document, ordered by
// generation then ordinal.
func (s *DocumentStore) GetChunks(_ context.Context, documentID string) ([]domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.byDoc[documentID]
	chunks := make([]domain.Chunk, 0, len(ids))
	for id := range ids {
		chunks = append(chunks, s.chunks[id])
	}
	sort.Slice(chunks, func(i, j int) bool {
		if chunks[i].Generation != chunks[j].Generation {
			return chunks[i].Generation < chunks[j].Generation
		}
		return chunks[i].Ordinal < chunks[j].Ordinal
	})
	return chunks, nil
}

// GetChunk retrieves a chunk by ID.
func (s *DocumentStore) GetChunk(_ context.Context, id string) (*domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chunk, ok := s.chunks[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &chunk, nil
}

// DeleteChunks removes chunks by ID. Unknown IDs are ignored.
func (s *DocumentStore) DeleteChunks(_ context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		c, ok := s.chunks[id]
		if !ok {
			continue
		}
		delete(s.chunks, id)
		delete(s.byDoc[c.DocumentID], id)
	}
	return nil
}

// DeleteDocument removes a document and its chunks.
func (s *DocumentStore) DeleteDocument(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.documents[id]; !ok {
		return domain.ErrNotFound
	}
	for chunkID := range s.byDoc[id] {
		delete(s.chunks, chunkID)
	}
	delete(s.byDoc, id)
	delete(s.documents, id)
	return nil
}

// ListDocuments returns every document ordered by ID.
func (s *DocumentStore) ListDocuments(_ context.Context) ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	docs := make([]domain.Document, 0, len(s.documents))
	for _, d := range s.documents {
		docs = append(docs, d)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, nil
}

// SaveStatus stores the latest ingestion status of a document.
func (s *DocumentStore) SaveStatus(_ context.Context, status *domain.IngestionStatus) error {
	if status == nil || status.DocumentID == "" {
		return domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *status
	cp.ChunkFailures = append([]domain.ChunkFailure(nil), status.ChunkFailures...)
	s.status[status.DocumentID] = cp
	return nil
}

// GetStatus returns the ingestion status of a document.
func (s *DocumentStore) GetStatus(_ context.Context, documentID string) (*domain.IngestionStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.status[documentID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &st, nil
}

// ListStatus returns every status ordered by document ID.
func (s *DocumentStore) ListStatus(_ context.Context) ([]domain.IngestionStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := make([]domain.IngestionStatus, 0, len(s.status))
	for _, st := range s.status {
		list = append(list, st)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].DocumentID < list[j].DocumentID })
	return list, nil
}
