package services

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/paperlens/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/paperlens/internal/core/domain"
)

type stubAIValidator struct {
	embedding *domain.EmbeddingSettings
	llm       *domain.LLMSettings
	err       error
}

func (v *stubAIValidator) ValidateEmbedding(config *domain.EmbeddingSettings) error {
	v.embedding = config
	return v.err
}

func (v *stubAIValidator) ValidateLLM(config *domain.LLMSettings) error {
	v.llm = config
	return v.err
}

func TestSettingsService_Get_ReturnsDefaults(t *testing.T) {
	service := NewSettingsService(memory.NewConfigStore(nil), nil)

	settings, err := service.Get()
	require.NoError(t, err)

	assert.Equal(t, domain.DefaultAppSettings(), *settings)
}

func TestSettingsService_Get_ReturnsStoredValues(t *testing.T) {
	store := memory.NewConfigStore(map[string]any{
		"embedding.provider":            "ollama",
		"embedding.model":               "all-minilm",
		"embedding.dimensions":          int64(384),
		"embedding.timeout":             "15s",
		"embedding.requests_per_second": 2.5,
		"llm.model":                     "mistral",
		"llm.timeout":                   int64(90),
		"llm.temperature":               int64(0),
		"storage.vector_backend":        "postgres",
		"storage.postgres_dsn":          "postgres://localhost/papers",
	})
	service := NewSettingsService(store, nil)

	settings, err := service.Get()
	require.NoError(t, err)

	assert.Equal(t, domain.AIProviderOllama, settings.Embedding.Provider)
	assert.Equal(t, "all-minilm", settings.Embedding.Model)
	assert.Equal(t, 384, settings.Embedding.Dimensions)
	assert.Equal(t, 15*time.Second, settings.Embedding.Timeout)
	assert.InDelta(t, 2.5, settings.Embedding.RequestsPerSecond, 1e-9)
	assert.Equal(t, "mistral", settings.LLM.Model)
	assert.Equal(t, 90*time.Second, settings.LLM.Timeout)
	assert.Zero(t, settings.LLM.Temperature)
	assert.Equal(t, domain.VectorBackendPostgres, settings.Storage.VectorBackend)
	assert.Equal(t, domain.DefaultPostgresTable, settings.Storage.PostgresTable)
}

func TestSettingsService_Get_BadDurationFallsBack(t *testing.T) {
	store := memory.NewConfigStore(map[string]any{"llm.timeout": "soon"})
	service := NewSettingsService(store, nil)

	settings, err := service.Get()
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultServiceTimeout, settings.LLM.Timeout)
}

func TestSettingsService_SaveRoundTrip(t *testing.T) {
	store := memory.NewConfigStore(nil)
	service := NewSettingsService(store, nil)

	want := domain.DefaultAppSettings()
	want.Embedding.Provider = domain.AIProviderOllama
	want.Embedding.Model = "mxbai-embed-large"
	want.Embedding.Dimensions = 1024
	want.LLM.RequestsPerSecond = 0.5
	want.LLM.Burst = 2
	want.Storage.DataDir = "/var/lib/paperlens"

	require.NoError(t, service.Save(&want))

	got, err := service.Get()
	require.NoError(t, err)
	assert.Equal(t, want, *got)
	assert.Equal(t, "mxbai-embed-large", store.GetString("embedding.model"))
}

func TestSettingsService_SetEmbeddingProvider(t *testing.T) {
	service := NewSettingsService(memory.NewConfigStore(nil), nil)

	require.NoError(t, service.SetEmbeddingProvider(domain.AIProviderOllama, ""))

	settings, err := service.Get()
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultOllamaEmbedModel, settings.Embedding.Model)
	assert.Equal(t, domain.DefaultOllamaBaseURL, settings.Embedding.BaseURL)
	assert.Equal(t, 768, settings.Embedding.Dimensions)
}

func TestSettingsService_SetEmbeddingProvider_Invalid(t *testing.T) {
	service := NewSettingsService(memory.NewConfigStore(nil), nil)

	err := service.SetEmbeddingProvider("openai", "text-embedding-3-small")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSettingsService_SetLLMProvider(t *testing.T) {
	service := NewSettingsService(memory.NewConfigStore(nil), nil)

	require.NoError(t, service.SetLLMProvider(domain.AIProviderNone, ""))
	settings, err := service.Get()
	require.NoError(t, err)
	assert.False(t, settings.LLM.IsConfigured())

	assert.ErrorIs(t, service.SetLLMProvider(domain.AIProviderHashing, ""), domain.ErrInvalidInput)
}

func TestSettingsService_Validate(t *testing.T) {
	tests := []struct {
		name    string
		values  map[string]any
		wantErr bool
	}{
		{"defaults", nil, false},
		{"no embedder", map[string]any{"embedding.provider": "none"}, true},
		{"unknown embedder", map[string]any{"embedding.provider": "openai"}, true},
		{"hashing cannot generate", map[string]any{"llm.provider": "hashing"}, true},
		{"unknown backend", map[string]any{"storage.vector_backend": "faiss"}, true},
		{"postgres without dsn", map[string]any{"storage.vector_backend": "postgres"}, true},
		{"negative rate", map[string]any{"llm.requests_per_second": -1.0}, true},
		{"generation disabled", map[string]any{"llm.provider": "none"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := NewSettingsService(memory.NewConfigStore(tt.values), nil)
			err := service.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrConfiguration)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSettingsService_ValidateProviders(t *testing.T) {
	validator := &stubAIValidator{}
	service := NewSettingsService(memory.NewConfigStore(nil), validator)

	require.NoError(t, service.ValidateEmbeddingConfig())
	require.NoError(t, service.ValidateLLMConfig())
	assert.Equal(t, domain.AIProviderHashing, validator.embedding.Provider)
	assert.Equal(t, domain.AIProviderOllama, validator.llm.Provider)

	validator.err = errors.New("unreachable")
	assert.Error(t, service.ValidateLLMConfig())
}

func TestSettingsService_ValidateProviders_NoValidator(t *testing.T) {
	service := NewSettingsService(memory.NewConfigStore(nil), nil)

	assert.NoError(t, service.ValidateEmbeddingConfig())
	assert.NoError(t, service.ValidateLLMConfig())
}
