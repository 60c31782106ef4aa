package extractor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/paperlens/internal/core/domain"
)

// TextExtractor reads plain text files. Form feeds separate pages.
type TextExtractor struct{}

// NewTextExtractor creates a text extractor.
func NewTextExtractor() *TextExtractor {
	return &TextExtractor{}
}

// Name identifies the extractor.
func (e *TextExtractor) Name() string {
	return "text"
}

// Supports reports whether path has a text extension.
func (e *TextExtractor) Supports(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".text":
		return true
	default:
		return false
	}
}

// Extract reads the file.
func (e *TextExtractor) Extract(ctx context.Context, path string) (*domain.RawDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("%w: %s is not valid UTF-8", domain.ErrUnsupportedType, path)
	}
	return &domain.RawDocument{
		URI:   path,
		Pages: SplitPages(string(data)),
	}, nil
}

// SplitPages splits text on form feeds. Each page keeps a trailing
// newline where the form feed was, so page texts concatenate back into
// readable text.
func SplitPages(text string) []domain.Page {
	parts := strings.Split(text, "\f")
	pages := make([]domain.Page, 0, len(parts))
	for i, p := range parts {
		if i < len(parts)-1 && !strings.HasSuffix(p, "\n") {
			p += "\n"
		}
		pages = append(pages, domain.Page{Number: i + 1, Text: p})
	}
	return pages
}
