package driven

import (
	"context"

	"github.com/custodia-labs/paperlens/internal/core/domain"
)

// Extractor turns a paper file into page text. OCR is out of scope:
// extractors assume the file carries extractable text.
type Extractor interface {
	// Name identifies the extractor.
	Name() string

	// Supports reports whether the extractor handles the path.
	Supports(path string) bool

	// Extract reads the file and returns its pages.
	Extract(ctx context.Context, path string) (*domain.RawDocument, error)
}

// Segmenter splits a raw document into labelled sections and chunks.
type Segmenter interface {
	// Segment returns the sections covering the whole text and the chunks
	// cut from them, tagged with documentID and generation.
	Segment(raw *domain.RawDocument, documentID string, generation int64) ([]domain.Section, []domain.Chunk, error)
}

// TokenCounter counts model tokens for prompt budgeting.
type TokenCounter interface {
	Count(text string) int
}
