package api

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/custodia-labs/paperlens/internal/core/domain"
)

var validate = validator.New()

// QueryParams is the body of /query and /retrieve.
type QueryParams struct {
	Question    string   `json:"question" validate:"required,max=4000"`
	TopK        int      `json:"top_k" validate:"gte=0,lte=100"`
	DocumentIDs []string `json:"document_ids" validate:"omitempty,dive,required"`
	Sections    []string `json:"sections" validate:"omitempty,dive,oneof=abstract introduction methods results discussion conclusion references figure_caption table_caption unknown"`
}

// Options converts the params into retrieval options.
func (p *QueryParams) Options() domain.RetrieveOptions {
	opts := domain.RetrieveOptions{TopK: p.TopK, DocumentIDs: p.DocumentIDs}
	for _, s := range p.Sections {
		opts.Sections = append(opts.Sections, domain.ParseSectionLabel(s))
	}
	return opts
}

// PageParams is one page of an inline document.
type PageParams struct {
	Number int    `json:"number" validate:"gte=1"`
	Text   string `json:"text"`
}

// IngestParams is the JSON body of /ingest. Either Path names a paper
// file readable by the server, or URI and Pages carry the text inline.
type IngestParams struct {
	Path    string       `json:"path" validate:"required_without=URI"`
	URI     string       `json:"uri" validate:"required_without=Path,excluded_with=Path"`
	Title   string       `json:"title"`
	DOI     string       `json:"doi"`
	ArxivID string       `json:"arxiv_id"`
	Authors []string     `json:"authors"`
	Pages   []PageParams `json:"pages" validate:"required_with=URI,dive"`
}

// Raw converts inline params into a RawDocument.
func (p *IngestParams) Raw() *domain.RawDocument {
	raw := &domain.RawDocument{
		URI:     p.URI,
		Title:   p.Title,
		DOI:     p.DOI,
		ArxivID: p.ArxivID,
		Authors: p.Authors,
		Pages:   make([]domain.Page, len(p.Pages)),
	}
	for i, pg := range p.Pages {
		raw.Pages[i] = domain.Page{Number: pg.Number, Text: pg.Text}
	}
	return raw
}

// Validate returns field failures keyed by field name, or nil.
func Validate(params any) map[string]string {
	err := validate.Struct(params)
	if err == nil {
		return nil
	}
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return map[string]string{"body": err.Error()}
	}
	out := make(map[string]string, len(errs))
	for _, e := range errs {
		out[e.Field()] = fmt.Sprintf("failed on '%s' tag", e.Tag())
	}
	return out
}

// Evidence is one ranked chunk in a response.
type Evidence struct {
	Rank       int     `json:"rank"`
	ChunkID    string  `json:"chunk_id"`
	DocumentID string  `json:"document_id"`
	Title      string  `json:"title"`
	Reference  string  `json:"reference"`
	Section    string  `json:"section"`
	Page       int     `json:"page,omitempty"`
	Score      float64 `json:"score"`
	Similarity float64 `json:"similarity"`
	ClusterID  int     `json:"cluster_id"`
	Text       string  `json:"text"`
}

// Citation is one cited source in an answer.
type Citation struct {
	Marker     int    `json:"marker"`
	ChunkID    string `json:"chunk_id"`
	DocumentID string `json:"document_id"`
	Reference  string `json:"reference"`
	Title      string `json:"title"`
	Section    string `json:"section"`
	Page       int    `json:"page,omitempty"`
}

// QueryResponse is the body returned by /query.
type QueryResponse struct {
	Answer     string     `json:"answer"`
	Intent     string     `json:"intent"`
	Confidence float64    `json:"confidence"`
	Degraded   bool       `json:"degraded"`
	Truncated  bool       `json:"truncated"`
	NoEvidence bool       `json:"no_evidence"`
	Citations  []Citation `json:"citations"`
	Sources    []Evidence `json:"sources"`
	Timestamp  time.Time  `json:"timestamp"`
}

// RetrieveResponse is the body returned by /retrieve.
type RetrieveResponse struct {
	Intent      string     `json:"intent"`
	DocumentIDs []string   `json:"referenced_documents,omitempty"`
	Results     []Evidence `json:"results"`
}

// Cluster is one duplicate cluster in a response.
type Cluster struct {
	ID                int                    `json:"id"`
	Representative    string                 `json:"representative"`
	Members           []domain.ClusterMember `json:"members"`
	DocumentIDs       []string               `json:"document_ids"`
	AverageSimilarity float64                `json:"average_similarity"`
}

// DocumentInfo is one document in a listing.
type DocumentInfo struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	URI        string    `json:"uri"`
	Reference  string    `json:"reference"`
	Authors    []string  `json:"authors,omitempty"`
	Sections   int       `json:"sections"`
	IngestedAt time.Time `json:"ingested_at"`
}

func toEvidence(results []domain.RetrievalResult) []Evidence {
	out := make([]Evidence, len(results))
	for i := range results {
		r := &results[i]
		out[i] = Evidence{
			Rank:       r.Rank,
			ChunkID:    r.Chunk.ID,
			DocumentID: r.Document.ID,
			Title:      r.Document.Title,
			Reference:  r.Document.Reference(),
			Section:    r.Chunk.Section.String(),
			Page:       r.Chunk.Page,
			Score:      r.Score,
			Similarity: r.Similarity,
			ClusterID:  r.ClusterID,
			Text:       r.Chunk.Text,
		}
	}
	return out
}

func toCitations(citations []domain.Citation) []Citation {
	out := make([]Citation, len(citations))
	for i, c := range citations {
		out[i] = Citation{
			Marker:     c.Marker,
			ChunkID:    c.ChunkID,
			DocumentID: c.DocumentID,
			Reference:  c.Reference,
			Title:      c.Title,
			Section:    c.Section.String(),
			Page:       c.Page,
		}
	}
	return out
}
