package domain

import "time"

// Page is the extracted text of one page of a paper.
type Page struct {
	// Number is the 1-based page number.
	Number int

	// Text is the extracted page text.
	Text string
}

// RawDocument is the extraction output handed to the segmenter.
// The document text is the concatenation of all page texts in order.
type RawDocument struct {
	// URI is the original location (file path, URL, etc).
	URI string

	// Title is the human-readable title, if known.
	Title string

	// DOI is the digital object identifier, if known.
	DOI string

	// ArxivID is the arXiv identifier, if known.
	ArxivID string

	// Authors lists author names, if known.
	Authors []string

	// Pages holds the page texts in reading order.
	Pages []Page
}

// Text returns the full document text.
func (r *RawDocument) Text() string {
	n := 0
	for _, p := range r.Pages {
		n += len(p.Text)
	}
	buf := make([]byte, 0, n)
	for _, p := range r.Pages {
		buf = append(buf, p.Text...)
	}
	return string(buf)
}

// Document represents an ingested paper.
// It is immutable once ingested and replaced wholesale on re-ingestion.
type Document struct {
	// ID is the unique identifier for the document.
	ID string

	// URI is the original location.
	URI string

	// Title is the human-readable title.
	Title string

	// DOI is the digital object identifier (optional).
	DOI string

	// ArxivID is the arXiv identifier (optional).
	ArxivID string

	// Authors lists author names.
	Authors []string

	// Sections are the labelled spans of the document in order.
	Sections []Section

	// Generation identifies the active set of chunks. Chunks from any
	// other generation are invisible to the query path.
	Generation int64

	// IngestedAt is when this generation was committed.
	IngestedAt time.Time
}

// Reference returns the most specific citation reference for the document:
// DOI, then arXiv id, then title.
func (d *Document) Reference() string {
	switch {
	case d.DOI != "":
		return "doi:" + d.DOI
	case d.ArxivID != "":
		return "arXiv:" + d.ArxivID
	default:
		return d.Title
	}
}

// Span is a run of section text that lies on a single page.
// Offsets are rune offsets into the document text, End exclusive.
type Span struct {
	Page  int
	Start int
	End   int
}

// Section is a labelled span of a document.
type Section struct {
	// Label is the structural label.
	Label SectionLabel

	// Heading is the heading line that opened the section, if any.
	Heading string

	// Text is the exact section text including its heading line.
	Text string

	// Start and End are rune offsets into the document text, End exclusive.
	Start int
	End   int

	// Spans splits the section at page boundaries.
	Spans []Span
}

// AnchorKind distinguishes figure and table anchors.
type AnchorKind string

// Anchor kinds.
const (
	AnchorFigure AnchorKind = "figure"
	AnchorTable  AnchorKind = "table"
)

// FigureAnchor links a caption chunk to the text that discusses it.
type FigureAnchor struct {
	// Kind is figure or table.
	Kind AnchorKind

	// Label is the caption label, e.g. "Figure 3" or "Table 2".
	Label string

	// Caption is the full caption text.
	Caption string

	// Context is the nearest preceding non-caption paragraph.
	Context string

	// HasContext is false when no paragraph precedes the caption.
	HasContext bool
}

// Chunk is the atomic retrieval unit.
// Every chunk belongs to exactly one Section and one Document.
type Chunk struct {
	// ID is the unique identifier for the chunk.
	ID string

	// DocumentID links to the owning Document.
	DocumentID string

	// Section is the label of the owning Section.
	Section SectionLabel

	// SectionIndex is the position of the owning Section in the document.
	SectionIndex int

	// Ordinal is the chunk position within the document.
	Ordinal int

	// Text is the chunk text.
	Text string

	// Start and End are rune offsets into the document text.
	Start int
	End   int

	// Page is the page the chunk starts on.
	Page int

	// Embedding is the dense vector. Nil until indexed.
	Embedding []float32

	// Anchor is set for figure/table caption chunks.
	Anchor *FigureAnchor

	// Generation matches Document.Generation while the chunk is live.
	Generation int64
}
