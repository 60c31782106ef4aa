package driving

import (
	"context"

	"github.com/custodia-labs/paperlens/internal/core/domain"
)

// IngestService runs the ingestion path: segment, embed, index, cluster.
type IngestService interface {
	// Ingest indexes a document, replacing any previous version atomically.
	// Per-chunk embedding failures are reported in the status, not returned.
	Ingest(ctx context.Context, raw *domain.RawDocument) (*domain.IngestionStatus, error)

	// IngestFile extracts a paper file and ingests it.
	IngestFile(ctx context.Context, path string) (*domain.IngestionStatus, error)

	// Remove deletes a document from every index.
	Remove(ctx context.Context, documentID string) error

	// Status returns the ingestion status of a document.
	Status(ctx context.Context, documentID string) (*domain.IngestionStatus, error)

	// ListStatus returns every known ingestion status.
	ListStatus(ctx context.Context) ([]domain.IngestionStatus, error)
}
