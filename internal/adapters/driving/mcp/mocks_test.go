package mcp

import (
	"context"

	"github.com/custodia-labs/paperlens/internal/core/domain"
)

// mockQueryService is a mock implementation of driving.QueryService.
type mockQueryService struct {
	results  []domain.RetrievalResult
	cls      domain.Classification
	answer   *domain.Answer
	err      error
	lastOpts domain.RetrieveOptions
}

func (m *mockQueryService) Classify(_ context.Context, _ string) (domain.Classification, error) {
	return m.cls, m.err
}

func (m *mockQueryService) Retrieve(
	_ context.Context,
	_ string,
	opts domain.RetrieveOptions,
) ([]domain.RetrievalResult, domain.Classification, error) {
	m.lastOpts = opts
	return m.results, m.cls, m.err
}

func (m *mockQueryService) Ask(_ context.Context, _ string, opts domain.RetrieveOptions) (*domain.Answer, error) {
	m.lastOpts = opts
	return m.answer, m.err
}

// mockLibraryService is a mock implementation of driving.LibraryService.
type mockLibraryService struct {
	documents []domain.Document
	stats     *domain.CollectionStats
	dupStats  *domain.DuplicateStats
	reports   []domain.ClusterReport
	err       error
}

func (m *mockLibraryService) Documents(_ context.Context) ([]domain.Document, error) {
	return m.documents, m.err
}

func (m *mockLibraryService) Stats(_ context.Context) (*domain.CollectionStats, error) {
	return m.stats, m.err
}

func (m *mockLibraryService) Duplicates(_ context.Context, _ []string) ([]domain.ClusterReport, error) {
	return m.reports, m.err
}

func (m *mockLibraryService) DuplicateStats(_ context.Context) (*domain.DuplicateStats, error) {
	return m.dupStats, m.err
}

// mockIngestService is a mock implementation of driving.IngestService.
type mockIngestService struct {
	status *domain.IngestionStatus
	err    error
}

func (m *mockIngestService) Ingest(_ context.Context, _ *domain.RawDocument) (*domain.IngestionStatus, error) {
	return m.status, m.err
}

func (m *mockIngestService) IngestFile(_ context.Context, _ string) (*domain.IngestionStatus, error) {
	return m.status, m.err
}

func (m *mockIngestService) Remove(_ context.Context, _ string) error {
	return m.err
}

func (m *mockIngestService) Status(_ context.Context, _ string) (*domain.IngestionStatus, error) {
	return m.status, m.err
}

func (m *mockIngestService) ListStatus(_ context.Context) ([]domain.IngestionStatus, error) {
	if m.status == nil {
		return nil, m.err
	}
	return []domain.IngestionStatus{*m.status}, m.err
}
