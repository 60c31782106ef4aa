package extractor

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/custodia-labs/paperlens/internal/core/domain"
	"github.com/custodia-labs/paperlens/internal/logger"
)

// PDFExtractor validates a PDF with pdfcpu and reads per-page text with
// ledongthuc/pdf. Scanned PDFs without a text layer yield empty pages.
type PDFExtractor struct {
	conf *model.Configuration
}

// NewPDFExtractor creates a PDF extractor with relaxed validation.
func NewPDFExtractor() *PDFExtractor {
	// Keep pdfcpu from creating a config directory under the user's home.
	model.ConfigPath = "disable"
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &PDFExtractor{conf: conf}
}

// Name identifies the extractor.
func (e *PDFExtractor) Name() string {
	return "pdf"
}

// Supports reports whether path is a PDF.
func (e *PDFExtractor) Supports(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf")
}

// Extract validates the file and returns one Page per PDF page.
func (e *PDFExtractor) Extract(ctx context.Context, path string) (*domain.RawDocument, error) {
	if err := api.ValidateFile(path, e.conf); err != nil {
		return nil, fmt.Errorf("invalid PDF: %w", err)
	}
	expected, err := api.PageCountFile(path)
	if err != nil {
		return nil, fmt.Errorf("counting pages: %w", err)
	}

	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	total := r.NumPage()
	if total != expected {
		logger.Debug("PDF %s: reader sees %d pages, validator %d", path, total, expected)
	}

	pages := make([]domain.Page, 0, total)
	for n := 1; n <= total; n++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p := r.Page(n)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", n, err)
		}
		if text != "" && !strings.HasSuffix(text, "\n") {
			text += "\n"
		}
		pages = append(pages, domain.Page{Number: n, Text: text})
	}
	return &domain.RawDocument{URI: path, Pages: pages}, nil
}
