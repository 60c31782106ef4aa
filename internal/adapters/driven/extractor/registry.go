// Package extractor turns paper files into page text.
//
// The Registry picks an extractor by file extension and fills in DOI,
// arXiv id and title from the first page when the extractor could not
// supply them.
package extractor

import (
	"context"
	"fmt"

	"github.com/custodia-labs/paperlens/internal/core/domain"
	"github.com/custodia-labs/paperlens/internal/core/ports/driven"
)

// Ensure Registry implements the interface.
var _ driven.Extractor = (*Registry)(nil)

// Registry dispatches to the first extractor supporting a path.
type Registry struct {
	extractors []driven.Extractor
}

// NewRegistry creates a registry over extractors, tried in order.
func NewRegistry(extractors ...driven.Extractor) *Registry {
	return &Registry{extractors: extractors}
}

// Default returns a registry with every built-in extractor.
func Default() *Registry {
	return NewRegistry(
		NewPDFExtractor(),
		NewTextExtractor(),
		NewMarkdownExtractor(),
		NewHTMLExtractor(),
		NewDOCXExtractor(),
	)
}

// Name identifies the registry.
func (r *Registry) Name() string {
	return "registry"
}

// Supports reports whether any extractor handles path.
func (r *Registry) Supports(path string) bool {
	return r.find(path) != nil
}

// Extract runs the matching extractor and enriches the metadata.
func (r *Registry) Extract(ctx context.Context, path string) (*domain.RawDocument, error) {
	ex := r.find(path)
	if ex == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedType, path)
	}
	raw, err := ex.Extract(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ex.Name(), err)
	}
	Enrich(raw)
	return raw, nil
}

func (r *Registry) find(path string) driven.Extractor {
	for _, ex := range r.extractors {
		if ex.Supports(path) {
			return ex
		}
	}
	return nil
}
