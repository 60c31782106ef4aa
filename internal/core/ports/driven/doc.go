// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - Extractor: Supplies page text for a paper file
//   - Segmenter: Splits extracted text into Sections and Chunks
//   - EmbeddingService: Computes dense vectors
//   - VectorStore: Stores vectors with metadata and answers similarity queries
//   - DocumentStore: Document, chunk and ingestion status persistence
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - LLMService: Text generation. Without it, retrieval still works but Ask fails.
//   - TokenCounter: Prompt budgeting. Without it, a rune-based estimate is used.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven
