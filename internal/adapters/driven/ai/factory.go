// Package ai builds the embedding and generation adapters from settings.
package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/paperlens/internal/adapters/driven/embedding/hashing"
	ollamaembed "github.com/custodia-labs/paperlens/internal/adapters/driven/embedding/ollama"
	ollamallm "github.com/custodia-labs/paperlens/internal/adapters/driven/llm/ollama"
	"github.com/custodia-labs/paperlens/internal/adapters/driven/ratelimit"
	"github.com/custodia-labs/paperlens/internal/core/domain"
	"github.com/custodia-labs/paperlens/internal/core/ports/driven"
	"github.com/custodia-labs/paperlens/internal/logger"
)

// pingTimeout is the maximum time to wait for service connectivity validation.
const pingTimeout = 5 * time.Second

// InitResult contains the result of AI service initialisation.
type InitResult struct {
	EmbeddingService driven.EmbeddingService
	LLMService       driven.LLMService
	Warnings         []string // Non-fatal issues that caused fallback.
}

// Close releases all resources held by InitResult.
func (r *InitResult) Close() {
	if r.EmbeddingService != nil {
		r.EmbeddingService.Close()
	}
	if r.LLMService != nil {
		r.LLMService.Close()
	}
}

// Initialise creates both services. The embedder is required and its
// failure is returned. An unreachable LLM is recorded as a warning and left
// nil so retrieval keeps working and answers fail with a generation error.
func Initialise(settings domain.AppSettings) (*InitResult, error) {
	embedder, err := CreateAndValidateEmbeddingService(&settings.Embedding)
	if err != nil {
		return nil, err
	}
	if embedder == nil {
		return nil, domain.NewConfigurationError("embedding.provider",
			fmt.Errorf("an embedding provider is required"))
	}

	result := &InitResult{EmbeddingService: embedder}

	llm, err := CreateAndValidateLLMService(&settings.LLM)
	if err != nil {
		logger.Warn("generation disabled: %v", err)
		result.Warnings = append(result.Warnings, err.Error())
		return result, nil
	}
	result.LLMService = llm
	return result, nil
}

// CreateAndValidateEmbeddingService creates an embedding service and validates connectivity.
func CreateAndValidateEmbeddingService(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	svc, err := CreateEmbeddingService(settings)
	if err != nil {
		return nil, domain.NewEmbeddingError("create", settings.Provider.String(), err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := svc.Ping(ctx); err != nil {
		svc.Close()
		return nil, domain.NewEmbeddingError("ping", svc.ModelName(),
			fmt.Errorf("service unreachable: %w", err))
	}

	return svc, nil
}

// CreateAndValidateLLMService creates an LLM service and validates connectivity.
// It returns nil without error when generation is disabled.
func CreateAndValidateLLMService(settings *domain.LLMSettings) (driven.LLMService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	svc, err := CreateLLMService(settings)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrLLMUnavailable, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := svc.Ping(ctx); err != nil {
		svc.Close()
		return nil, fmt.Errorf("%w: service unreachable (%w)", domain.ErrLLMUnavailable, err)
	}

	return svc, nil
}

// ValidateEmbeddingConfig validates an embedding configuration by creating a service and pinging it.
func ValidateEmbeddingConfig(settings *domain.EmbeddingSettings) error {
	svc, err := CreateAndValidateEmbeddingService(settings)
	if svc != nil {
		svc.Close()
	}
	return err
}

// ValidateLLMConfig validates an LLM configuration by creating a service and pinging it.
func ValidateLLMConfig(settings *domain.LLMSettings) error {
	svc, err := CreateAndValidateLLMService(settings)
	if svc != nil {
		svc.Close()
	}
	return err
}

// CreateEmbeddingService creates the embedding service selected by settings,
// throttled when a request rate is configured.
func CreateEmbeddingService(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, fmt.Errorf("embedding provider not configured")
	}

	var (
		svc driven.EmbeddingService
		err error
	)
	switch settings.Provider {
	case domain.AIProviderHashing:
		dims := settings.Dimensions
		if dims == 0 {
			dims = hashing.DefaultDimensions
		}
		svc, err = hashing.NewEmbeddingService(dims)
	case domain.AIProviderOllama:
		svc, err = createOllamaEmbedding(settings)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", settings.Provider)
	}
	if err != nil {
		return nil, err
	}

	if settings.RequestsPerSecond > 0 {
		limiter := ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerSecond: settings.RequestsPerSecond,
			BurstSize:         settings.Burst,
		})
		return ratelimit.WrapEmbedder(svc, limiter), nil
	}
	return svc, nil
}

// CreateLLMService creates the LLM service selected by settings,
// throttled when a request rate is configured.
func CreateLLMService(settings *domain.LLMSettings) (driven.LLMService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, fmt.Errorf("LLM provider not configured")
	}

	if settings.Provider != domain.AIProviderOllama {
		return nil, fmt.Errorf("unsupported LLM provider: %s", settings.Provider)
	}

	svc, err := ollamallm.NewLLMService(ollamallm.LLMConfig{
		BaseURL:     settings.BaseURL,
		Model:       settings.Model,
		Timeout:     settings.Timeout,
		MaxTokens:   settings.MaxTokens,
		Temperature: settings.Temperature,
	})
	if err != nil {
		return nil, err
	}

	if settings.RequestsPerSecond > 0 {
		limiter := ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerSecond: settings.RequestsPerSecond,
			BurstSize:         settings.Burst,
		})
		return ratelimit.WrapLLM(svc, limiter), nil
	}
	return svc, nil
}

// createOllamaEmbedding takes the dimension from the known-model table,
// falling back to settings for unlisted models.
func createOllamaEmbedding(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	model := settings.Model
	if model == "" {
		model = domain.DefaultOllamaEmbedModel
	}
	dimensions := domain.EmbeddingDimensions()[model]
	if dimensions == 0 {
		dimensions = settings.Dimensions
	}

	return ollamaembed.NewEmbeddingService(ollamaembed.Config{
		BaseURL:    settings.BaseURL,
		Model:      model,
		Timeout:    settings.Timeout,
		Dimensions: dimensions,
	})
}
