package domain

import "time"

// IngestionState is the lifecycle state of a document ingestion.
type IngestionState string

// Ingestion states.
const (
	IngestionPending IngestionState = "pending"
	IngestionIndexed IngestionState = "indexed"
	IngestionPartial IngestionState = "partial"
	IngestionFailed  IngestionState = "failed"
	IngestionRemoved IngestionState = "removed"
)

// IsValid returns true if the state is recognised.
func (s IngestionState) IsValid() bool {
	switch s {
	case IngestionPending, IngestionIndexed, IngestionPartial, IngestionFailed, IngestionRemoved:
		return true
	default:
		return false
	}
}

// ChunkFailure records a chunk that could not be indexed.
type ChunkFailure struct {
	ChunkID string `json:"chunk_id"`
	Ordinal int    `json:"ordinal"`
	Error   string `json:"error"`
}

// IngestionStatus reports the outcome of ingesting one document.
type IngestionStatus struct {
	DocumentID    string         `json:"document_id"`
	URI           string         `json:"uri"`
	Title         string         `json:"title"`
	State         IngestionState `json:"state"`
	Sections      int            `json:"sections"`
	ChunksTotal   int            `json:"chunks_total"`
	ChunksIndexed int            `json:"chunks_indexed"`
	ChunkFailures []ChunkFailure `json:"chunk_failures,omitempty"`
	Error         string         `json:"error,omitempty"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// CollectionStats summarises the indexed corpus.
type CollectionStats struct {
	UniqueDocuments     int                  `json:"unique_documents"`
	TotalChunks         int                  `json:"total_chunks"`
	SectionDistribution map[SectionLabel]int `json:"section_distribution"`
}
