package extractor

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/custodia-labs/paperlens/internal/core/domain"
)

// DOCXExtractor reads Word manuscripts. Explicit page breaks split pages.
type DOCXExtractor struct{}

// NewDOCXExtractor creates a DOCX extractor.
func NewDOCXExtractor() *DOCXExtractor {
	return &DOCXExtractor{}
}

// Name identifies the extractor.
func (e *DOCXExtractor) Name() string {
	return "docx"
}

// Supports reports whether path has a .docx extension.
func (e *DOCXExtractor) Supports(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".docx")
}

// Extract reads word/document.xml and the core properties title.
func (e *DOCXExtractor) Extract(ctx context.Context, path string) (*domain.RawDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s is not a DOCX file: %w", domain.ErrUnsupportedType, path, err)
	}
	defer zr.Close()

	body := findZipFile(&zr.Reader, "word/document.xml")
	if body == nil {
		return nil, fmt.Errorf("%w: %s has no document body", domain.ErrUnsupportedType, path)
	}
	rc, err := body.Open()
	if err != nil {
		return nil, fmt.Errorf("opening document body: %w", err)
	}
	defer rc.Close()

	pages, err := parseDocumentXML(rc)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %w", domain.ErrUnsupportedType, path, err)
	}

	return &domain.RawDocument{
		URI:   path,
		Title: docxTitle(&zr.Reader),
		Pages: pages,
	}, nil
}

// parseDocumentXML walks the body tokens. Paragraphs end lines; tabs
// become spaces; <w:br w:type="page"/> starts a new page.
func parseDocumentXML(r io.Reader) ([]domain.Page, error) {
	dec := xml.NewDecoder(r)
	var (
		pages  []domain.Page
		page   strings.Builder
		inText bool
	)
	flush := func() {
		pages = append(pages, domain.Page{Number: len(pages) + 1, Text: page.String()})
		page.Reset()
	}

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				page.WriteByte(' ')
			case "br":
				if attr(t, "type") == "page" {
					flush()
				} else {
					page.WriteByte('\n')
				}
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				page.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				page.Write(t)
			}
		}
	}
	flush()
	return pages, nil
}

func attr(el xml.StartElement, local string) string {
	for _, a := range el.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

func docxTitle(zr *zip.Reader) string {
	f := findZipFile(zr, "docProps/core.xml")
	if f == nil {
		return ""
	}
	rc, err := f.Open()
	if err != nil {
		return ""
	}
	defer rc.Close()

	var core struct {
		Title string `xml:"title"`
	}
	if err := xml.NewDecoder(rc).Decode(&core); err != nil {
		return ""
	}
	return strings.TrimSpace(core.Title)
}

func findZipFile(zr *zip.Reader, name string) *zip.File {
	for _, f := range zr.File {
		if f.Name == name {
			return f
		}
	}
	return nil
}
