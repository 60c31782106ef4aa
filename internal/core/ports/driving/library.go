package driving

import (
	"context"

	"github.com/custodia-labs/paperlens/internal/core/domain"
)

// LibraryService exposes the corpus and its duplication analytics.
type LibraryService interface {
	// Documents lists ingested documents.
	Documents(ctx context.Context) ([]domain.Document, error)

	// Stats summarises the corpus.
	Stats(ctx context.Context) (*domain.CollectionStats, error)

	// Duplicates returns clusters restricted to the given documents.
	// An empty set means every document.
	Duplicates(ctx context.Context, documentIDs []string) ([]domain.ClusterReport, error)

	// DuplicateStats summarises duplication across the corpus.
	DuplicateStats(ctx context.Context) (*domain.DuplicateStats, error)
}
