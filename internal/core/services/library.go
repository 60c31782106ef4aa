package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/custodia-labs/paperlens/internal/core/domain"
	"github.com/custodia-labs/paperlens/internal/core/ports/driven"
	"github.com/custodia-labs/paperlens/internal/core/ports/driving"
)

// Ensure LibraryService implements the interface.
var _ driving.LibraryService = (*LibraryService)(nil)

// LibraryService reports on the indexed collection.
type LibraryService struct {
	docStore driven.DocumentStore
	detector *DuplicateDetector
}

// NewLibraryService creates a library service. The detector is optional.
func NewLibraryService(docStore driven.DocumentStore, detector *DuplicateDetector) *LibraryService {
	return &LibraryService{docStore: docStore, detector: detector}
}

// Documents lists indexed documents by title.
func (s *LibraryService) Documents(ctx context.Context) ([]domain.Document, error) {
	docs, err := s.docStore.ListDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	sort.SliceStable(docs, func(i, j int) bool {
		if docs[i].Title != docs[j].Title {
			return docs[i].Title < docs[j].Title
		}
		return docs[i].ID < docs[j].ID
	})
	return docs, nil
}

// Stats counts documents and active chunks per section.
func (s *LibraryService) Stats(ctx context.Context) (*domain.CollectionStats, error) {
	docs, err := s.docStore.ListDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("collection stats: %w", err)
	}

	stats := &domain.CollectionStats{
		UniqueDocuments:     len(docs),
		SectionDistribution: map[domain.SectionLabel]int{},
	}
	for _, d := range docs {
		chunks, err := s.docStore.GetChunks(ctx, d.ID)
		if err != nil {
			return nil, fmt.Errorf("collection stats: %w", err)
		}
		for _, c := range chunks {
			if c.Generation != d.Generation {
				continue
			}
			stats.TotalChunks++
			stats.SectionDistribution[c.Section]++
		}
	}
	return stats, nil
}

// Duplicates reports clusters restricted to documentIDs, or across the
// whole collection when empty.
func (s *LibraryService) Duplicates(ctx context.Context, documentIDs []string) ([]domain.ClusterReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.detector == nil {
		return []domain.ClusterReport{}, nil
	}
	reports := s.detector.Report(documentIDs)
	if reports == nil {
		reports = []domain.ClusterReport{}
	}
	return reports, nil
}

// DuplicateStats summarises duplication across the collection.
func (s *LibraryService) DuplicateStats(ctx context.Context) (*domain.DuplicateStats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.detector == nil {
		return &domain.DuplicateStats{SectionBreakdown: map[domain.SectionLabel]domain.SectionDuplicates{}}, nil
	}
	stats := s.detector.Stats()
	return &stats, nil
}
