package ai

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/paperlens/internal/adapters/driven/embedding/hashing"
	"github.com/custodia-labs/paperlens/internal/adapters/driven/ratelimit"
	"github.com/custodia-labs/paperlens/internal/core/domain"
)

// deadURL returns the address of a server that is no longer listening.
func deadURL(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	return url
}

func TestInitResult_Close(t *testing.T) {
	result := &InitResult{}
	result.Close()
}

func TestCreateEmbeddingService_Hashing(t *testing.T) {
	svc, err := CreateEmbeddingService(&domain.EmbeddingSettings{
		Provider:   domain.AIProviderHashing,
		Dimensions: 64,
	})
	require.NoError(t, err)

	assert.IsType(t, &hashing.EmbeddingService{}, svc)
	assert.Equal(t, 64, svc.Dimensions())
}

func TestCreateEmbeddingService_Throttled(t *testing.T) {
	svc, err := CreateEmbeddingService(&domain.EmbeddingSettings{
		Provider:          domain.AIProviderHashing,
		Dimensions:        32,
		RequestsPerSecond: 5,
		Burst:             2,
	})
	require.NoError(t, err)

	assert.IsType(t, &ratelimit.Embedder{}, svc)
	assert.Equal(t, 32, svc.Dimensions())
}

func TestCreateEmbeddingService_OllamaUsesKnownDimensions(t *testing.T) {
	svc, err := CreateEmbeddingService(&domain.EmbeddingSettings{
		Provider: domain.AIProviderOllama,
		Model:    "nomic-embed-text",
		BaseURL:  "http://localhost:11434",
	})
	require.NoError(t, err)

	assert.Equal(t, 768, svc.Dimensions())
	assert.Equal(t, "nomic-embed-text", svc.ModelName())
}

func TestCreateEmbeddingService_Errors(t *testing.T) {
	tests := []struct {
		name     string
		settings *domain.EmbeddingSettings
	}{
		{"nil settings", nil},
		{"no provider", &domain.EmbeddingSettings{}},
		{"disabled", &domain.EmbeddingSettings{Provider: domain.AIProviderNone}},
		{"unknown provider", &domain.EmbeddingSettings{Provider: "openai"}},
		{"bad dimensions", &domain.EmbeddingSettings{Provider: domain.AIProviderHashing, Dimensions: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := CreateEmbeddingService(tt.settings)
			assert.Error(t, err)
			assert.Nil(t, svc)
		})
	}
}

func TestCreateLLMService(t *testing.T) {
	svc, err := CreateLLMService(&domain.LLMSettings{
		Provider: domain.AIProviderOllama,
		Model:    "llama3.2",
	})
	require.NoError(t, err)
	assert.Equal(t, "llama3.2", svc.ModelName())

	_, err = CreateLLMService(&domain.LLMSettings{Provider: domain.AIProviderHashing})
	assert.ErrorContains(t, err, "unsupported LLM provider")

	_, err = CreateLLMService(&domain.LLMSettings{Provider: domain.AIProviderNone})
	assert.Error(t, err)
}

func TestCreateLLMService_Throttled(t *testing.T) {
	svc, err := CreateLLMService(&domain.LLMSettings{
		Provider:          domain.AIProviderOllama,
		RequestsPerSecond: 1,
	})
	require.NoError(t, err)
	assert.IsType(t, &ratelimit.LLM{}, svc)
}

func TestCreateAndValidateLLMService_Disabled(t *testing.T) {
	svc, err := CreateAndValidateLLMService(&domain.LLMSettings{Provider: domain.AIProviderNone})
	assert.NoError(t, err)
	assert.Nil(t, svc)
}

func TestCreateAndValidateLLMService_Unreachable(t *testing.T) {
	svc, err := CreateAndValidateLLMService(&domain.LLMSettings{
		Provider: domain.AIProviderOllama,
		BaseURL:  deadURL(t),
	})
	assert.Nil(t, svc)
	assert.True(t, errors.Is(err, domain.ErrLLMUnavailable))
}

func TestCreateAndValidateEmbeddingService_Unreachable(t *testing.T) {
	svc, err := CreateAndValidateEmbeddingService(&domain.EmbeddingSettings{
		Provider: domain.AIProviderOllama,
		BaseURL:  deadURL(t),
	})
	assert.Nil(t, svc)
	assert.ErrorIs(t, err, domain.ErrEmbedding)
}

func TestInitialise_FallsBackWithoutLLM(t *testing.T) {
	settings := domain.DefaultAppSettings()
	settings.LLM.BaseURL = deadURL(t)

	result, err := Initialise(settings)
	require.NoError(t, err)
	defer result.Close()

	assert.NotNil(t, result.EmbeddingService)
	assert.Nil(t, result.LLMService)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "LLM service unavailable")
}

func TestInitialise_RequiresEmbedder(t *testing.T) {
	settings := domain.DefaultAppSettings()
	settings.Embedding.Provider = domain.AIProviderNone

	_, err := Initialise(settings)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}
