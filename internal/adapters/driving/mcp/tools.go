package mcp

import (
	"context"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/paperlens/internal/core/domain"
)

// errLibraryUnavailable is returned by tools that need the library port.
var errLibraryUnavailable = errors.New("library service not configured")

// RetrieveInput is the input schema for the retrieve and ask tools.
type RetrieveInput struct {
	Question    string   `json:"question" jsonschema:"the question to answer from the indexed papers"`
	TopK        int      `json:"top_k,omitempty" jsonschema:"maximum number of evidence chunks (default from configuration)"`
	DocumentIDs []string `json:"document_ids,omitempty" jsonschema:"restrict evidence to these documents"`
	Sections    []string `json:"sections,omitempty" jsonschema:"restrict evidence to these section labels"`
}

// EvidenceOutput is one ranked evidence chunk.
type EvidenceOutput struct {
	Rank       int     `json:"rank"`
	ChunkID    string  `json:"chunk_id"`
	DocumentID string  `json:"document_id"`
	Title      string  `json:"title"`
	Reference  string  `json:"reference"`
	Section    string  `json:"section"`
	Page       int     `json:"page,omitempty"`
	Score      float64 `json:"score"`
	Similarity float64 `json:"similarity"`
	Text       string  `json:"text"`
}

// RetrieveOutput is the output schema for the retrieve tool.
type RetrieveOutput struct {
	Intent   string           `json:"intent"`
	Evidence []EvidenceOutput `json:"evidence"`
	Count    int              `json:"count"`
}

// CitationOutput points at the evidence behind an answer marker.
type CitationOutput struct {
	Marker     int    `json:"marker"`
	ChunkID    string `json:"chunk_id"`
	DocumentID string `json:"document_id"`
	Reference  string `json:"reference"`
	Section    string `json:"section"`
	Page       int    `json:"page,omitempty"`
}

// AskOutput is the output schema for the ask tool.
type AskOutput struct {
	Answer     string           `json:"answer"`
	Intent     string           `json:"intent"`
	Confidence float64          `json:"confidence"`
	Degraded   bool             `json:"degraded,omitempty"`
	NoEvidence bool             `json:"no_evidence,omitempty"`
	Citations  []CitationOutput `json:"citations"`
}

// DuplicatesInput is the input schema for the duplicates tool.
type DuplicatesInput struct {
	DocumentIDs []string `json:"document_ids,omitempty" jsonschema:"restrict clusters to these documents (default all)"`
}

// ClusterOutput is one duplicate cluster.
type ClusterOutput struct {
	ID                int      `json:"id"`
	Representative    string   `json:"representative"`
	ChunkIDs          []string `json:"chunk_ids"`
	DocumentIDs       []string `json:"document_ids"`
	AverageSimilarity float64  `json:"average_similarity"`
}

// DuplicatesOutput is the output schema for the duplicates tool.
type DuplicatesOutput struct {
	Clusters []ClusterOutput `json:"clusters"`
	Count    int             `json:"count"`
}

// StatsInput is empty; the stats tool takes no arguments.
type StatsInput struct{}

// StatsOutput is the output schema for the stats tool.
type StatsOutput struct {
	Collection domain.CollectionStats `json:"collection"`
	Duplicates domain.DuplicateStats  `json:"duplicates"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ask",
		Description: "Answer a question from the indexed papers with numbered citations",
	}, s.handleAsk)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "retrieve",
		Description: "Return ranked evidence passages for a question without generating an answer",
	}, s.handleRetrieve)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "duplicates",
		Description: "List clusters of near-duplicate passages across papers",
	}, s.handleDuplicates)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "stats",
		Description: "Summarise the indexed collection and its duplication",
	}, s.handleStats)
}

func (s *Server) handleAsk(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input RetrieveInput,
) (*mcp.CallToolResult, AskOutput, error) {
	answer, err := s.ports.Query.Ask(ctx, input.Question, retrieveOptions(input))
	if err != nil {
		return nil, AskOutput{}, err
	}

	output := AskOutput{
		Answer:     answer.Text,
		Intent:     answer.Intent.String(),
		Confidence: answer.Confidence,
		Degraded:   answer.Degraded,
		NoEvidence: answer.NoEvidence,
		Citations:  make([]CitationOutput, len(answer.Citations)),
	}
	for i, c := range answer.Citations {
		output.Citations[i] = CitationOutput{
			Marker:     c.Marker,
			ChunkID:    c.ChunkID,
			DocumentID: c.DocumentID,
			Reference:  c.Reference,
			Section:    c.Section.String(),
			Page:       c.Page,
		}
	}
	return nil, output, nil
}

func (s *Server) handleRetrieve(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input RetrieveInput,
) (*mcp.CallToolResult, RetrieveOutput, error) {
	results, cls, err := s.ports.Query.Retrieve(ctx, input.Question, retrieveOptions(input))
	if err != nil {
		return nil, RetrieveOutput{}, err
	}

	output := RetrieveOutput{
		Intent:   cls.Intent.String(),
		Evidence: make([]EvidenceOutput, len(results)),
		Count:    len(results),
	}
	for i := range results {
		r := &results[i]
		output.Evidence[i] = EvidenceOutput{
			Rank:       r.Rank,
			ChunkID:    r.Chunk.ID,
			DocumentID: r.Document.ID,
			Title:      r.Document.Title,
			Reference:  r.Document.Reference(),
			Section:    r.Chunk.Section.String(),
			Page:       r.Chunk.Page,
			Score:      r.Score,
			Similarity: r.Similarity,
			Text:       r.Chunk.Text,
		}
	}
	return nil, output, nil
}

func (s *Server) handleDuplicates(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input DuplicatesInput,
) (*mcp.CallToolResult, DuplicatesOutput, error) {
	if s.ports.Library == nil {
		return nil, DuplicatesOutput{}, errLibraryUnavailable
	}

	reports, err := s.ports.Library.Duplicates(ctx, input.DocumentIDs)
	if err != nil {
		return nil, DuplicatesOutput{}, err
	}

	output := DuplicatesOutput{
		Clusters: make([]ClusterOutput, len(reports)),
		Count:    len(reports),
	}
	for i := range reports {
		c := &reports[i].Cluster
		ids := make([]string, len(c.Members))
		for j, m := range c.Members {
			ids[j] = m.ChunkID
		}
		output.Clusters[i] = ClusterOutput{
			ID:                c.ID,
			Representative:    c.Representative,
			ChunkIDs:          ids,
			DocumentIDs:       reports[i].DocumentIDs,
			AverageSimilarity: c.AverageSimilarity(),
		}
	}
	return nil, output, nil
}

func (s *Server) handleStats(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ StatsInput,
) (*mcp.CallToolResult, StatsOutput, error) {
	if s.ports.Library == nil {
		return nil, StatsOutput{}, errLibraryUnavailable
	}

	collection, err := s.ports.Library.Stats(ctx)
	if err != nil {
		return nil, StatsOutput{}, err
	}
	dups, err := s.ports.Library.DuplicateStats(ctx)
	if err != nil {
		return nil, StatsOutput{}, err
	}
	return nil, StatsOutput{Collection: *collection, Duplicates: *dups}, nil
}

func retrieveOptions(input RetrieveInput) domain.RetrieveOptions {
	opts := domain.RetrieveOptions{
		TopK:        input.TopK,
		DocumentIDs: input.DocumentIDs,
	}
	for _, s := range input.Sections {
		opts.Sections = append(opts.Sections, domain.ParseSectionLabel(s))
	}
	return opts
}
