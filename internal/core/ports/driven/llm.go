package driven

import "context"

// LLMService generates grounded answer text.
// Calls may fail or be rate-limited; callers wrap them in a retry policy.
type LLMService interface {
	// Generate produces text completion from a prompt.
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (Generation, error)

	// ModelName returns the name of the LLM model being used.
	ModelName() string

	// Ping validates the service is reachable by making a lightweight test request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// GenerateOptions configures text generation behaviour.
type GenerateOptions struct {
	// System is the system instruction.
	System string

	// MaxTokens is the maximum number of tokens to generate.
	MaxTokens int

	// Temperature controls randomness (0.0 = deterministic, 1.0 = creative).
	Temperature float64

	// StopWords are sequences that stop generation when encountered.
	StopWords []string
}

// Generation is the result of a Generate call.
type Generation struct {
	// Text is the generated text.
	Text string

	// Truncated is true when generation stopped on the token limit
	// or the stream ended before completion.
	Truncated bool
}
