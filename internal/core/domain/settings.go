package domain

import "time"

// AIProvider identifies a service provider for embeddings or generation.
type AIProvider string

// Available AI providers.
const (
	// AIProviderOllama is a local or remote Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderHashing is the offline feature-hashing embedder.
	// It serves embeddings only.
	AIProviderHashing AIProvider = "hashing"

	// AIProviderNone disables the service.
	AIProviderNone AIProvider = "none"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOllama, AIProviderHashing, AIProviderNone:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderOllama:
		return "Ollama"
	case AIProviderHashing:
		return "Feature hashing (offline)"
	case AIProviderNone:
		return "Disabled"
	default:
		return unknownDescription
	}
}

// VectorBackend selects where chunk embeddings are stored.
type VectorBackend string

// Available vector backends.
const (
	// VectorBackendSQLite persists vectors next to the metadata and
	// serves queries from memory.
	VectorBackendSQLite VectorBackend = "sqlite"

	// VectorBackendMemory keeps vectors in process only.
	VectorBackendMemory VectorBackend = "memory"

	// VectorBackendPostgres uses PostgreSQL with pgvector.
	VectorBackendPostgres VectorBackend = "postgres"
)

// IsValid returns true if the backend is recognised.
func (b VectorBackend) IsValid() bool {
	switch b {
	case VectorBackendSQLite, VectorBackendMemory, VectorBackendPostgres:
		return true
	default:
		return false
	}
}

// Default model and endpoint values.
const (
	DefaultOllamaBaseURL      = "http://localhost:11434"
	DefaultOllamaEmbedModel   = "nomic-embed-text"
	DefaultOllamaLLMModel     = "llama3.2"
	DefaultPostgresTable      = "paperlens_vectors"
	DefaultServiceTimeout     = 60 * time.Second
	DefaultGenerationMaxToken = 512
)

// EmbeddingDimensions returns the known vector size of common embedding models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		"nomic-embed-text":       768,
		"mxbai-embed-large":      1024,
		"all-minilm":             384,
		"snowflake-arctic-embed": 1024,
		"bge-m3":                 1024,
	}
}

// EmbeddingSettings configures the embedding provider.
type EmbeddingSettings struct {
	Provider   AIProvider
	Model      string
	BaseURL    string
	Dimensions int
	Timeout    time.Duration

	// RequestsPerSecond throttles calls. Zero disables throttling.
	RequestsPerSecond float64
	Burst             int
}

// IsConfigured returns true if an embedding provider is selected.
func (e EmbeddingSettings) IsConfigured() bool {
	return e.Provider != "" && e.Provider != AIProviderNone
}

// LLMSettings configures the answer generator.
type LLMSettings struct {
	Provider    AIProvider
	Model       string
	BaseURL     string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration

	RequestsPerSecond float64
	Burst             int
}

// IsConfigured returns true if an LLM provider is selected.
func (l LLMSettings) IsConfigured() bool {
	return l.Provider != "" && l.Provider != AIProviderNone
}

// StorageSettings configures persistence.
type StorageSettings struct {
	// DataDir holds the metadata database. Empty means ~/.paperlens/data.
	DataDir       string
	VectorBackend VectorBackend
	PostgresDSN   string
	PostgresTable string
}

// AppSettings is the full runtime configuration outside the core tunables.
type AppSettings struct {
	Embedding EmbeddingSettings
	LLM       LLMSettings
	Storage   StorageSettings
}

// DefaultAppSettings returns settings that work offline: hashing embeddings,
// sqlite storage and a local Ollama for generation.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		Embedding: EmbeddingSettings{
			Provider:   AIProviderHashing,
			Dimensions: DefaultTunables().EmbeddingDimension,
			Timeout:    DefaultServiceTimeout,
		},
		LLM: LLMSettings{
			Provider:    AIProviderOllama,
			Model:       DefaultOllamaLLMModel,
			BaseURL:     DefaultOllamaBaseURL,
			MaxTokens:   DefaultGenerationMaxToken,
			Temperature: 0.1,
			Timeout:     DefaultServiceTimeout,
		},
		Storage: StorageSettings{
			VectorBackend: VectorBackendSQLite,
			PostgresTable: DefaultPostgresTable,
		},
	}
}
