package domain

import "time"

// RetryPolicy bounds retries around a remote collaborator.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts including the first.
	MaxAttempts int `toml:"max_attempts" validate:"gte=1,lte=10"`

	// InitialBackoff is the wait before the second attempt.
	InitialBackoff time.Duration `toml:"initial_backoff" validate:"gte=0"`

	// MaxBackoff caps the wait between attempts.
	MaxBackoff time.Duration `toml:"max_backoff" validate:"gtefield=InitialBackoff"`

	// Multiplier grows the backoff after each failed attempt.
	Multiplier float64 `toml:"multiplier" validate:"gte=1"`

	// Deadline bounds the whole retry sequence. Zero means no deadline.
	Deadline time.Duration `toml:"deadline" validate:"gte=0"`
}

// Backoff returns the wait before attempt n (1-based; attempt 1 never waits).
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt <= 1 || p.InitialBackoff <= 0 {
		return 0
	}
	d := float64(p.InitialBackoff)
	for i := 2; i < attempt; i++ {
		d *= p.Multiplier
		if p.MaxBackoff > 0 && d >= float64(p.MaxBackoff) {
			return p.MaxBackoff
		}
	}
	if p.MaxBackoff > 0 && d > float64(p.MaxBackoff) {
		return p.MaxBackoff
	}
	return time.Duration(d)
}

// ConfidenceWeights weights the sub-scores of the answer confidence.
// They are normalised by their sum, so only ratios matter.
type ConfidenceWeights struct {
	TopScore      float64 `toml:"top_score" validate:"gte=0,lte=1"`
	Corroboration float64 `toml:"corroboration" validate:"gte=0,lte=1"`
	Coverage      float64 `toml:"coverage" validate:"gte=0,lte=1"`
}

// Sum returns the total weight.
func (w ConfidenceWeights) Sum() float64 {
	return w.TopScore + w.Corroboration + w.Coverage
}

// Tunables are the configuration values consumed by the core.
// They are validated once at startup.
type Tunables struct {
	MaxChunkSize int `toml:"max_chunk_size" validate:"gt=0"`
	MinChunkSize int `toml:"min_chunk_size" validate:"gt=0,ltfield=MaxChunkSize"`
	ChunkOverlap int `toml:"chunk_overlap" validate:"gte=0,ltfield=MinChunkSize"`

	TopKResults         int     `toml:"top_k_results" validate:"gte=1,lte=100"`
	SimilarityThreshold float64 `toml:"similarity_threshold" validate:"gte=0,lte=1"`
	DuplicateThreshold  float64 `toml:"duplicate_threshold" validate:"gt=0,lte=1"`
	EmbeddingDimension  int     `toml:"embedding_dimension" validate:"gt=0"`

	// OverFetchFactor multiplies TopKResults for the dense candidate request.
	OverFetchFactor int `toml:"over_fetch_factor" validate:"gte=1,lte=20"`

	// SectionBonus is added to candidates in the intent's preferred sections.
	SectionBonus float64 `toml:"section_bonus" validate:"gte=0,lte=1"`

	// RepresentativeRecomputeSize triggers representative recomputation
	// each time a cluster grows by this many members.
	RepresentativeRecomputeSize int `toml:"representative_recompute_size" validate:"gte=2"`

	ConfidenceWeights ConfidenceWeights `toml:"confidence_weights"`

	// CorroborationTarget is the number of independent documents at
	// which corroboration saturates.
	CorroborationTarget int `toml:"corroboration_target" validate:"gte=1"`

	// MaxContextTokens bounds the grounding context handed to the model.
	MaxContextTokens int `toml:"max_context_tokens" validate:"gte=100"`

	// EmbedConcurrency bounds parallel embedding calls per document.
	EmbedConcurrency int `toml:"embed_concurrency" validate:"gte=1,lte=64"`

	EmbeddingTimeout   time.Duration `toml:"embedding_timeout" validate:"gt=0"`
	VectorStoreTimeout time.Duration `toml:"vector_store_timeout" validate:"gt=0"`
	GenerationTimeout  time.Duration `toml:"generation_timeout" validate:"gt=0"`

	EmbeddingRetry   RetryPolicy `toml:"embedding_retry"`
	VectorStoreRetry RetryPolicy `toml:"vector_store_retry"`
	GenerationRetry  RetryPolicy `toml:"generation_retry"`
}

// DefaultTunables returns the system defaults.
func DefaultTunables() Tunables {
	return Tunables{
		MaxChunkSize:                1000,
		MinChunkSize:                300,
		ChunkOverlap:                150,
		TopKResults:                 5,
		SimilarityThreshold:         0.5,
		DuplicateThreshold:          0.95,
		EmbeddingDimension:          384,
		OverFetchFactor:             3,
		SectionBonus:                0.1,
		RepresentativeRecomputeSize: 8,
		ConfidenceWeights: ConfidenceWeights{
			TopScore:      0.5,
			Corroboration: 0.3,
			Coverage:      0.2,
		},
		CorroborationTarget: 3,
		MaxContextTokens:    3000,
		EmbedConcurrency:    4,
		EmbeddingTimeout:    30 * time.Second,
		VectorStoreTimeout:  10 * time.Second,
		GenerationTimeout:   2 * time.Minute,
		EmbeddingRetry: RetryPolicy{
			MaxAttempts:    3,
			InitialBackoff: 500 * time.Millisecond,
			MaxBackoff:     5 * time.Second,
			Multiplier:     2,
			Deadline:       time.Minute,
		},
		VectorStoreRetry: RetryPolicy{
			MaxAttempts:    2,
			InitialBackoff: 200 * time.Millisecond,
			MaxBackoff:     time.Second,
			Multiplier:     2,
			Deadline:       20 * time.Second,
		},
		GenerationRetry: RetryPolicy{
			MaxAttempts:    3,
			InitialBackoff: time.Second,
			MaxBackoff:     10 * time.Second,
			Multiplier:     2,
			Deadline:       5 * time.Minute,
		},
	}
}

// CheckChunkGeometry verifies the cross-field rule that a chunk can hold
// the minimum size plus the overlap.
func (t Tunables) CheckChunkGeometry() error {
	if t.MinChunkSize+t.ChunkOverlap > t.MaxChunkSize {
		return NewConfigurationError("ChunkOverlap",
			errorf("min_chunk_size (%d) + chunk_overlap (%d) exceeds max_chunk_size (%d)",
				t.MinChunkSize, t.ChunkOverlap, t.MaxChunkSize))
	}
	if t.ConfidenceWeights.Sum() <= 0 {
		return NewConfigurationError("ConfidenceWeights", errorf("weights must not all be zero"))
	}
	return nil
}
