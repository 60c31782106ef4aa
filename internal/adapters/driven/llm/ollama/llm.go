// Package ollama provides an LLM service adapter using Ollama.
package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
	"github.com/ollama/ollama/envconfig"

	"github.com/custodia-labs/paperlens/internal/core/ports/driven"
)

// Ensure LLMService implements the interface.
var _ driven.LLMService = (*LLMService)(nil)

// Default configuration values.
const (
	DefaultLLMModel   = "llama3.2"
	DefaultLLMTimeout = 120 * time.Second

	// doneReasonLength is reported when generation hit the token limit.
	doneReasonLength = "length"
)

// LLMConfig holds configuration for the Ollama LLM service.
type LLMConfig struct {
	// BaseURL is the Ollama API base URL. Empty uses OLLAMA_HOST or the
	// local default.
	BaseURL string

	// Model is the LLM model to use (default: llama3.2).
	Model string

	// Timeout is the HTTP client timeout (default: 120s).
	Timeout time.Duration

	// MaxTokens bounds the answer length when the call does not (0 = model default).
	MaxTokens int

	// Temperature is used when the call does not set one.
	Temperature float64
}

// LLMService provides text generation using Ollama.
type LLMService struct {
	client      *api.Client
	model       string
	maxTokens   int
	temperature float64
}

// NewLLMService creates a new Ollama LLM service.
func NewLLMService(cfg LLMConfig) (*LLMService, error) {
	if cfg.Model == "" {
		cfg.Model = DefaultLLMModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultLLMTimeout
	}

	host := envconfig.Host()
	if cfg.BaseURL != "" {
		u, err := url.Parse(cfg.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("ollama: invalid base URL %q: %w", cfg.BaseURL, err)
		}
		host = u
	}

	return &LLMService{
		client:      api.NewClient(host, &http.Client{Timeout: cfg.Timeout}),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
	}, nil
}

// Generate produces a completion. Output cut off by the token limit is
// returned with Truncated set.
func (s *LLMService) Generate(
	ctx context.Context, prompt string, opts driven.GenerateOptions,
) (driven.Generation, error) {
	options := map[string]any{}
	if n := firstPositive(opts.MaxTokens, s.maxTokens); n > 0 {
		options["num_predict"] = n
	}
	if t := firstPositiveFloat(opts.Temperature, s.temperature); t > 0 {
		options["temperature"] = t
	}
	if len(opts.StopWords) > 0 {
		options["stop"] = opts.StopWords
	}

	stream := false
	req := api.GenerateRequest{
		Model:   s.model,
		Prompt:  prompt,
		System:  opts.System,
		Stream:  &stream,
		Options: options,
	}

	var text strings.Builder
	var doneReason string
	err := s.client.Generate(ctx, &req, func(resp api.GenerateResponse) error {
		text.WriteString(resp.Response)
		if resp.Done {
			doneReason = resp.DoneReason
		}
		return nil
	})
	if err != nil {
		return driven.Generation{}, fmt.Errorf("ollama generate: %w", err)
	}

	return driven.Generation{
		Text:      text.String(),
		Truncated: doneReason == doneReasonLength,
	}, nil
}

// ModelName returns the name of the LLM model being used.
func (s *LLMService) ModelName() string {
	return s.model
}

// Ping checks that the Ollama server answers.
func (s *LLMService) Ping(ctx context.Context) error {
	if err := s.client.Heartbeat(ctx); err != nil {
		return fmt.Errorf("ollama: ping failed: %w", err)
	}
	return nil
}

// Close releases resources.
func (s *LLMService) Close() error {
	return nil
}

func firstPositive(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}

func firstPositiveFloat(values ...float64) float64 {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}
