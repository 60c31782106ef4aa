package driven

import "context"

// EmbeddingService generates vector embeddings from text.
// Implementations must be deterministic for identical input and return
// vectors of Dimensions() length.
//
// Implementations include:
//   - Ollama (nomic-embed-text, all-minilm)
//   - A local feature-hashing embedder for offline use
type EmbeddingService interface {
	// Embed generates a vector embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding vector size (e.g., 384).
	Dimensions() int

	// ModelName returns the name of the embedding model being used.
	ModelName() string

	// Ping validates the service is reachable by making a lightweight test request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}
