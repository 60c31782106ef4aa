package cli

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/paperlens/internal/core/domain"
)

func TestMaskDSN(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "empty", input: "", expected: "(not set)"},
		{name: "with password", input: "postgres://user:secret@db:5432/papers", expected: "postgres://user:xxxxx@db:5432/papers"},
		{name: "without password", input: "postgres://user@db/papers", expected: "postgres://user@db/papers"},
		{name: "no userinfo", input: "postgres://db/papers", expected: "postgres://db/papers"},
		{name: "keyword form", input: "host=db dbname=papers", expected: "host=db dbname=papers"},
		{name: "keyword password", input: "host=db password=secret user=u", expected: "host=db password=xxxxx user=u"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, maskDSN(tt.input))
		})
	}
}

func TestParseChoice(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		maxVal     int
		defaultVal int
		expected   int
	}{
		{name: "Empty input returns default", input: "", maxVal: 3, defaultVal: 1, expected: 1},
		{name: "Valid choice", input: "2", maxVal: 3, defaultVal: 1, expected: 2},
		{name: "Choice above maximum returns default", input: "6", maxVal: 5, defaultVal: 1, expected: 1},
		{name: "Invalid input returns default", input: "abc", maxVal: 5, defaultVal: 2, expected: 2},
		{name: "Negative number returns default", input: "-1", maxVal: 5, defaultVal: 1, expected: 1},
		{name: "Zero returns default", input: "0", maxVal: 5, defaultVal: 3, expected: 3},
		{name: "Maximum value is valid", input: "5", maxVal: 5, defaultVal: 1, expected: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseChoice(tt.input, tt.maxVal, tt.defaultVal))
		})
	}
}

func TestConfigShow(t *testing.T) {
	m := setupConfigPorts(t, "")
	m.settings.Storage.VectorBackend = domain.VectorBackendPostgres
	m.settings.Storage.PostgresDSN = "postgres://u:pw@db/papers"

	out, err := run(t, "config", "show")

	require.NoError(t, err)
	requireContains(t, out,
		"Config file: /tmp/paperlens/config.toml",
		"[Embedding]",
		"[LLM]",
		"Vector backend: postgres",
		"postgres://u:xxxxx@db/papers",
		"[Tunables]",
		"Configuration is valid.",
	)
	assert.NotContains(t, out, "pw@")
}

func TestConfigShow_WarnsOnInvalid(t *testing.T) {
	m := setupConfigPorts(t, "")
	m.validateErr = errors.New("embedding model is required")

	out, err := run(t, "config")

	require.NoError(t, err)
	assert.Contains(t, out, "Warning: embedding model is required")
}

func TestConfigShow_NotConfigured(t *testing.T) {
	_, err := run(t, "config", "show")
	assert.ErrorIs(t, err, errConfigNotConfigured)
}

func TestConfigValidate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		setupConfigPorts(t, "")
		out, err := run(t, "config", "validate")
		require.NoError(t, err)
		assert.Contains(t, out, "Configuration is valid.")
	})

	t.Run("invalid tunables", func(t *testing.T) {
		setupConfigPorts(t, "")
		configPorts.Tunables = func() (domain.Tunables, error) {
			return domain.Tunables{}, domain.NewConfigurationError("tunables", domain.ErrInvalidInput)
		}
		_, err := run(t, "config", "validate")
		assert.ErrorIs(t, err, domain.ErrConfiguration)
	})

	t.Run("ping failure", func(t *testing.T) {
		m := setupConfigPorts(t, "")
		m.pingErr = domain.ErrLLMUnavailable
		out, err := run(t, "config", "validate", "--ping")
		assert.ErrorIs(t, err, domain.ErrLLMUnavailable)
		assert.Contains(t, out, "FAILED")
	})
}

func TestConfigEmbedding(t *testing.T) {
	m := setupConfigPorts(t, "2\nmxbai-embed-large\n")

	out, err := run(t, "config", "embedding")

	require.NoError(t, err)
	assert.Equal(t, domain.AIProviderOllama, m.embedding)
	assert.Equal(t, "mxbai-embed-large", m.model)
	assert.Contains(t, out, "Re-ingest")
}

func TestConfigLLM_Disable(t *testing.T) {
	m := setupConfigPorts(t, "2\n")

	out, err := run(t, "config", "llm")

	require.NoError(t, err)
	assert.Equal(t, domain.AIProviderNone, m.llm)
	assert.Contains(t, out, "Answer generation disabled")
}

func TestConfigStorage(t *testing.T) {
	t.Run("memory", func(t *testing.T) {
		m := setupConfigPorts(t, "3\n")
		_, err := run(t, "config", "storage")
		require.NoError(t, err)
		assert.True(t, m.saved)
		assert.Equal(t, domain.VectorBackendMemory, m.settings.Storage.VectorBackend)
	})

	t.Run("postgres reads dsn", func(t *testing.T) {
		m := setupConfigPorts(t, "2\npostgres://u:p@db/papers\n")
		_, err := run(t, "config", "storage")
		require.NoError(t, err)
		assert.Equal(t, "postgres://u:p@db/papers", m.settings.Storage.PostgresDSN)
	})

	t.Run("postgres requires dsn", func(t *testing.T) {
		m := setupConfigPorts(t, "2\n\n")
		_, err := run(t, "config", "storage")
		assert.Error(t, err)
		assert.False(t, m.saved)
	})
}
