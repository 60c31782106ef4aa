// Package domain defines the core business entities for PaperLens.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Document: An ingested paper with its ordered Sections
//   - Section: A labelled span of a paper (abstract, methods, ...)
//   - Chunk: The atomic retrieval unit
//   - DuplicateCluster: A group of near-identical chunks across the corpus
//   - RetrievalResult, Citation, Answer: The query path outputs
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
