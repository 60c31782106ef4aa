package driven

import (
	"context"

	"github.com/custodia-labs/paperlens/internal/core/domain"
)

// DocumentStore persists documents, chunks and ingestion status.
// Backed by SQLite for metadata storage.
type DocumentStore interface {
	// SaveDocument stores or replaces a document. Saving a document with a
	// new Generation is the commit point of a re-ingestion.
	SaveDocument(ctx context.Context, doc *domain.Document) error

	// SaveChunks stores chunks.
	SaveChunks(ctx context.Context, chunks []domain.Chunk) error

	// GetDocument retrieves a document by ID.
	GetDocument(ctx context.Context, id string) (*domain.Document, error)

	// GetChunks retrieves all chunks of a document, all generations, by ordinal.
	GetChunks(ctx context.Context, documentID string) ([]domain.Chunk, error)

	// GetChunk retrieves a specific chunk by ID.
	GetChunk(ctx context.Context, id string) (*domain.Chunk, error)

	// DeleteChunks removes chunks by ID.
	DeleteChunks(ctx context.Context, ids []string) error

	// DeleteDocument removes a document and its chunks.
	DeleteDocument(ctx context.Context, id string) error

	// ListDocuments returns all documents.
	ListDocuments(ctx context.Context) ([]domain.Document, error)

	// SaveStatus stores the ingestion status of a document.
	SaveStatus(ctx context.Context, status *domain.IngestionStatus) error

	// GetStatus retrieves the ingestion status of a document.
	GetStatus(ctx context.Context, documentID string) (*domain.IngestionStatus, error)

	// ListStatus returns every ingestion status.
	ListStatus(ctx context.Context) ([]domain.IngestionStatus, error)
}
