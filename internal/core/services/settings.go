package services

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/custodia-labs/paperlens/internal/core/domain"
	"github.com/custodia-labs/paperlens/internal/core/ports/driven"
	"github.com/custodia-labs/paperlens/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
const (
	keyEmbedProvider = "embedding.provider"
	keyEmbedModel    = "embedding.model"
	keyEmbedBaseURL  = "embedding.base_url"
	keyEmbedDims     = "embedding.dimensions"
	keyEmbedTimeout  = "embedding.timeout"
	keyEmbedRPS      = "embedding.requests_per_second"
	keyEmbedBurst    = "embedding.burst"

	keyLLMProvider    = "llm.provider"
	keyLLMModel       = "llm.model"
	keyLLMBaseURL     = "llm.base_url"
	keyLLMMaxTokens   = "llm.max_tokens"
	keyLLMTemperature = "llm.temperature"
	keyLLMTimeout     = "llm.timeout"
	keyLLMRPS         = "llm.requests_per_second"
	keyLLMBurst       = "llm.burst"

	keyDataDir       = "storage.data_dir"
	keyVectorBackend = "storage.vector_backend"
	keyPostgresDSN   = "storage.postgres_dsn"
	keyPostgresTable = "storage.postgres_table"
)

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
	aiValidator driven.AIConfigValidator
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore, aiValidator driven.AIConfigValidator) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		aiValidator: aiValidator,
	}
}

// Get retrieves current application settings.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	d := domain.DefaultAppSettings()

	settings := &domain.AppSettings{
		Embedding: domain.EmbeddingSettings{
			Provider:          s.getProvider(keyEmbedProvider, d.Embedding.Provider),
			Model:             s.getString(keyEmbedModel, d.Embedding.Model),
			BaseURL:           s.getString(keyEmbedBaseURL, d.Embedding.BaseURL),
			Dimensions:        s.getInt(keyEmbedDims, d.Embedding.Dimensions),
			Timeout:           s.getDuration(keyEmbedTimeout, d.Embedding.Timeout),
			RequestsPerSecond: s.getFloat(keyEmbedRPS, d.Embedding.RequestsPerSecond),
			Burst:             s.getInt(keyEmbedBurst, d.Embedding.Burst),
		},
		LLM: domain.LLMSettings{
			Provider:          s.getProvider(keyLLMProvider, d.LLM.Provider),
			Model:             s.getString(keyLLMModel, d.LLM.Model),
			BaseURL:           s.getString(keyLLMBaseURL, d.LLM.BaseURL),
			MaxTokens:         s.getInt(keyLLMMaxTokens, d.LLM.MaxTokens),
			Temperature:       s.getFloat(keyLLMTemperature, d.LLM.Temperature),
			Timeout:           s.getDuration(keyLLMTimeout, d.LLM.Timeout),
			RequestsPerSecond: s.getFloat(keyLLMRPS, d.LLM.RequestsPerSecond),
			Burst:             s.getInt(keyLLMBurst, d.LLM.Burst),
		},
		Storage: domain.StorageSettings{
			DataDir:       s.getString(keyDataDir, d.Storage.DataDir),
			VectorBackend: s.getBackend(d.Storage.VectorBackend),
			PostgresDSN:   s.getString(keyPostgresDSN, d.Storage.PostgresDSN),
			PostgresTable: s.getString(keyPostgresTable, d.Storage.PostgresTable),
		},
	}

	return settings, nil
}

// Save persists application settings.
func (s *SettingsService) Save(settings *domain.AppSettings) error {
	values := []struct {
		key   string
		value any
	}{
		{keyEmbedProvider, settings.Embedding.Provider.String()},
		{keyEmbedModel, settings.Embedding.Model},
		{keyEmbedBaseURL, settings.Embedding.BaseURL},
		{keyEmbedDims, int64(settings.Embedding.Dimensions)},
		{keyEmbedTimeout, settings.Embedding.Timeout.String()},
		{keyEmbedRPS, settings.Embedding.RequestsPerSecond},
		{keyEmbedBurst, int64(settings.Embedding.Burst)},
		{keyLLMProvider, settings.LLM.Provider.String()},
		{keyLLMModel, settings.LLM.Model},
		{keyLLMBaseURL, settings.LLM.BaseURL},
		{keyLLMMaxTokens, int64(settings.LLM.MaxTokens)},
		{keyLLMTemperature, settings.LLM.Temperature},
		{keyLLMTimeout, settings.LLM.Timeout.String()},
		{keyLLMRPS, settings.LLM.RequestsPerSecond},
		{keyLLMBurst, int64(settings.LLM.Burst)},
		{keyDataDir, settings.Storage.DataDir},
		{keyVectorBackend, string(settings.Storage.VectorBackend)},
		{keyPostgresDSN, settings.Storage.PostgresDSN},
		{keyPostgresTable, settings.Storage.PostgresTable},
	}
	for _, v := range values {
		if err := s.configStore.Set(v.key, v.value); err != nil {
			return fmt.Errorf("save %s: %w", v.key, err)
		}
	}
	return s.configStore.Save()
}

// SetEmbeddingProvider configures the embedding provider.
func (s *SettingsService) SetEmbeddingProvider(provider domain.AIProvider, model string) error {
	if !provider.IsValid() {
		return fmt.Errorf("%w: invalid embedding provider: %s", domain.ErrInvalidInput, provider)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	settings.Embedding.Provider = provider
	settings.Embedding.Model = model
	if provider == domain.AIProviderOllama {
		if model == "" {
			settings.Embedding.Model = domain.DefaultOllamaEmbedModel
		}
		if settings.Embedding.BaseURL == "" {
			settings.Embedding.BaseURL = domain.DefaultOllamaBaseURL
		}
	}
	if d, ok := domain.EmbeddingDimensions()[settings.Embedding.Model]; ok {
		settings.Embedding.Dimensions = d
	}

	return s.Save(settings)
}

// SetLLMProvider configures the LLM provider.
func (s *SettingsService) SetLLMProvider(provider domain.AIProvider, model string) error {
	if provider != domain.AIProviderOllama && provider != domain.AIProviderNone {
		return fmt.Errorf("%w: invalid LLM provider: %s", domain.ErrInvalidInput, provider)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	settings.LLM.Provider = provider
	if model != "" {
		settings.LLM.Model = model
	}
	if provider == domain.AIProviderOllama && settings.LLM.BaseURL == "" {
		settings.LLM.BaseURL = domain.DefaultOllamaBaseURL
	}

	return s.Save(settings)
}

// Validate checks the settings for values no adapter could accept.
func (s *SettingsService) Validate() error {
	settings, err := s.Get()
	if err != nil {
		return err
	}

	var errs []error
	if !settings.Embedding.IsConfigured() {
		errs = append(errs, domain.NewConfigurationError(keyEmbedProvider,
			errors.New("an embedding provider is required")))
	}
	if !settings.Embedding.Provider.IsValid() {
		errs = append(errs, domain.NewConfigurationError(keyEmbedProvider,
			fmt.Errorf("unknown provider %q", settings.Embedding.Provider)))
	}
	if settings.LLM.Provider == domain.AIProviderHashing || !settings.LLM.Provider.IsValid() {
		errs = append(errs, domain.NewConfigurationError(keyLLMProvider,
			fmt.Errorf("unsupported provider %q", settings.LLM.Provider)))
	}
	if !settings.Storage.VectorBackend.IsValid() {
		errs = append(errs, domain.NewConfigurationError(keyVectorBackend,
			fmt.Errorf("unknown backend %q", settings.Storage.VectorBackend)))
	}
	if settings.Storage.VectorBackend == domain.VectorBackendPostgres && settings.Storage.PostgresDSN == "" {
		errs = append(errs, domain.NewConfigurationError(keyPostgresDSN,
			errors.New("required for the postgres backend")))
	}
	if settings.Embedding.RequestsPerSecond < 0 || settings.LLM.RequestsPerSecond < 0 {
		errs = append(errs, domain.NewConfigurationError("requests_per_second",
			errors.New("must not be negative")))
	}

	return errors.Join(errs...)
}

// ValidateEmbeddingConfig validates the current embedding configuration by pinging the provider.
func (s *SettingsService) ValidateEmbeddingConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateEmbedding(&settings.Embedding)
}

// ValidateLLMConfig validates the current LLM configuration by pinging the provider.
func (s *SettingsService) ValidateLLMConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateLLM(&settings.LLM)
}

func (s *SettingsService) getString(key, defaultVal string) string {
	if v := s.configStore.GetString(key); v != "" {
		return v
	}
	return defaultVal
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	if _, ok := s.configStore.Get(key); !ok {
		return defaultVal
	}
	if v := s.configStore.GetInt(key); v != 0 {
		return v
	}
	return defaultVal
}

func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	if _, ok := s.configStore.Get(key); !ok {
		return defaultVal
	}
	return s.configStore.GetFloat(key)
}

// getDuration accepts Go duration strings or whole seconds.
func (s *SettingsService) getDuration(key string, defaultVal time.Duration) time.Duration {
	raw, ok := s.configStore.Get(key)
	if !ok {
		return defaultVal
	}
	switch v := raw.(type) {
	case string:
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		if n, err := strconv.Atoi(v); err == nil {
			return time.Duration(n) * time.Second
		}
	case int:
		return time.Duration(v) * time.Second
	case int64:
		return time.Duration(v) * time.Second
	}
	return defaultVal
}

func (s *SettingsService) getProvider(key string, defaultVal domain.AIProvider) domain.AIProvider {
	if v := s.configStore.GetString(key); v != "" {
		return domain.AIProvider(v)
	}
	return defaultVal
}

func (s *SettingsService) getBackend(defaultVal domain.VectorBackend) domain.VectorBackend {
	if v := s.configStore.GetString(keyVectorBackend); v != "" {
		return domain.VectorBackend(v)
	}
	return defaultVal
}
