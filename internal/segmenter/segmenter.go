// Package segmenter splits extracted paper text into labelled sections and
// size-bounded, sentence-aware chunks.
package segmenter

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/custodia-labs/paperlens/internal/core/domain"
	"github.com/custodia-labs/paperlens/internal/core/ports/driven"
)

// Ensure Segmenter implements the interface.
var _ driven.Segmenter = (*Segmenter)(nil)

// Default chunk geometry in runes.
const (
	DefaultMaxChunkSize = 1000
	DefaultMinChunkSize = 300
	DefaultChunkOverlap = 150
)

// chunkNamespace scopes deterministic chunk IDs.
var chunkNamespace = uuid.MustParse("8f0e5a7c-3c1d-4e59-9a2b-6d1f0c7b4e21")

// Segmenter implements driven.Segmenter.
type Segmenter struct {
	maxSize int
	minSize int
	overlap int
}

// Option configures the segmenter.
type Option func(*Segmenter)

// WithMaxChunkSize sets the maximum chunk length in runes.
func WithMaxChunkSize(size int) Option {
	return func(s *Segmenter) {
		if size > 0 {
			s.maxSize = size
		}
	}
}

// WithMinChunkSize sets the minimum chunk length in runes.
func WithMinChunkSize(size int) Option {
	return func(s *Segmenter) {
		if size > 0 {
			s.minSize = size
		}
	}
}

// WithOverlap sets the minimum overlap between neighbouring chunks.
func WithOverlap(overlap int) Option {
	return func(s *Segmenter) {
		if overlap >= 0 {
			s.overlap = overlap
		}
	}
}

// FromTunables maps validated tunables to options.
func FromTunables(t domain.Tunables) []Option {
	return []Option{
		WithMaxChunkSize(t.MaxChunkSize),
		WithMinChunkSize(t.MinChunkSize),
		WithOverlap(t.ChunkOverlap),
	}
}

// New creates a segmenter with the given options.
func New(opts ...Option) *Segmenter {
	s := &Segmenter{
		maxSize: DefaultMaxChunkSize,
		minSize: DefaultMinChunkSize,
		overlap: DefaultChunkOverlap,
	}
	for _, opt := range opts {
		opt(s)
	}

	// Keep geometry usable when options were not validated upstream.
	if s.minSize >= s.maxSize {
		s.minSize = s.maxSize / 2
	}
	if s.minSize+s.overlap > s.maxSize {
		s.overlap = (s.maxSize - s.minSize) / 2
	}
	if s.overlap >= s.minSize {
		s.overlap = s.minSize / 2
	}
	return s
}

// Segment implements driven.Segmenter.
func (s *Segmenter) Segment(
	raw *domain.RawDocument, documentID string, generation int64,
) ([]domain.Section, []domain.Chunk, error) {
	if raw == nil {
		return nil, nil, fmt.Errorf("segment: %w: nil document", domain.ErrInvalidInput)
	}

	runes := []rune(raw.Text())
	pages := pageOffsets(raw.Pages)
	sections, anchors := detectSections(runes, pages)

	var chunks []domain.Chunk
	for i := range sections {
		sec := &sections[i]
		if strings.TrimSpace(sec.Text) == "" {
			continue
		}
		secRunes := runes[sec.Start:sec.End]
		for _, sp := range splitSection(secRunes, s.minSize, s.maxSize, s.overlap) {
			ordinal := len(chunks)
			start := sec.Start + sp.start
			chunk := domain.Chunk{
				ID:           ChunkID(documentID, generation, ordinal),
				DocumentID:   documentID,
				Section:      sec.Label,
				SectionIndex: i,
				Ordinal:      ordinal,
				Text:         string(secRunes[sp.start:sp.end]),
				Start:        start,
				End:          sec.Start + sp.end,
				Page:         pageAt(pages, start),
				Generation:   generation,
			}
			if anchors[i] != nil {
				a := *anchors[i]
				chunk.Anchor = &a
			}
			chunks = append(chunks, chunk)
		}
	}

	return sections, chunks, nil
}

// ChunkID derives a stable chunk ID from its document, generation and ordinal.
func ChunkID(documentID string, generation int64, ordinal int) string {
	name := fmt.Sprintf("%s/%d/%d", documentID, generation, ordinal)
	return uuid.NewSHA1(chunkNamespace, []byte(name)).String()
}

// DocumentID derives a stable document ID from its URI, so re-ingesting the
// same file replaces the previous version.
func DocumentID(uri string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(uri)).String()
}
