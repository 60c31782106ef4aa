package domain

// RetrievalResult is one ranked evidence chunk.
type RetrievalResult struct {
	// Chunk is the evidence chunk.
	Chunk Chunk

	// Document is the owning document.
	Document Document

	// Score is the fused relevance score (Similarity + StructuralBonus).
	Score float64

	// Similarity is the dense similarity reported by the vector store.
	Similarity float64

	// StructuralBonus is the additive section-match bonus.
	StructuralBonus float64

	// Rank is the 1-based position in the result list.
	Rank int

	// ClusterID is the duplicate cluster of the chunk, or -1 if unclustered.
	ClusterID int
}

// RetrieveOptions adjusts a single retrieval.
type RetrieveOptions struct {
	// TopK overrides the configured result count when positive.
	TopK int

	// DocumentIDs restricts retrieval to these documents when non-empty.
	DocumentIDs []string

	// Sections restricts retrieval to these sections when non-empty.
	Sections []SectionLabel
}

// Citation points a reader at the source text of a piece of evidence.
type Citation struct {
	// Marker is the evidence number used in the answer text ([n]).
	Marker int

	// ChunkID is the cited chunk.
	ChunkID string

	// DocumentID is the owning document.
	DocumentID string

	// Reference is DOI, arXiv id or title.
	Reference string

	// Title is the document title.
	Title string

	// Section is the section label of the chunk.
	Section SectionLabel

	// Page is the page the chunk starts on (0 when unknown).
	Page int

	// Ordinal is the chunk ordinal within the document.
	Ordinal int
}

// Answer is the synthesised, grounded response to a query.
type Answer struct {
	// Query is the question as asked.
	Query string

	// Text is the generated answer text.
	Text string

	// Citations lists the evidence referenced by Text in order of first reference.
	Citations []Citation

	// Confidence is in [0, 1].
	Confidence float64

	// Intent is the classified intent of the query.
	Intent Intent

	// Evidence is the retrieval output the answer was grounded on.
	Evidence []RetrievalResult

	// Degraded is set when generation was truncated or the answer cites nothing.
	Degraded bool

	// Truncated is set when the language model stopped before completing.
	Truncated bool

	// NoEvidence is set when retrieval returned nothing.
	NoEvidence bool
}

// NoEvidenceText is the answer text returned when nothing could be retrieved.
const NoEvidenceText = "No grounded evidence was found in the indexed papers for this question."
