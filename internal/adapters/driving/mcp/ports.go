package mcp

import (
	"github.com/custodia-labs/paperlens/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
type Ports struct {
	// Query answers and retrieves.
	Query driving.QueryService

	// Library exposes corpus statistics and duplicates.
	Library driving.LibraryService

	// Ingest exposes ingestion status.
	Ingest driving.IngestService
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Query == nil {
		return ErrMissingQueryService
	}
	// Library and Ingest are optional; their tools and resources report
	// an error when absent.
	return nil
}
