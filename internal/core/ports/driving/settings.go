package driving

import "github.com/custodia-labs/paperlens/internal/core/domain"

// SettingsService manages provider and storage settings.
type SettingsService interface {
	// Get retrieves current settings, filling gaps with defaults.
	Get() (*domain.AppSettings, error)

	// Save persists settings.
	Save(settings *domain.AppSettings) error

	// SetEmbeddingProvider selects the embedding provider and model.
	SetEmbeddingProvider(provider domain.AIProvider, model string) error

	// SetLLMProvider selects the generation provider and model.
	SetLLMProvider(provider domain.AIProvider, model string) error

	// Validate checks settings without contacting any service.
	Validate() error

	// ValidateEmbeddingConfig validates the embedding configuration by pinging the provider.
	ValidateEmbeddingConfig() error

	// ValidateLLMConfig validates the LLM configuration by pinging the provider.
	ValidateLLMConfig() error
}
