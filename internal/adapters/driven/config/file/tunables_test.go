package file

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/paperlens/internal/core/domain"
)

func storeWith(t *testing.T, content string) *ConfigStore {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0600))
	store, err := NewConfigStore(dir)
	require.NoError(t, err)
	return store
}

func TestLoadTunables_Defaults(t *testing.T) {
	store := storeWith(t, "")
	tun, err := LoadTunables(store)
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultTunables(), tun)

	tun, err = LoadTunables(nil)
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultTunables(), tun)
}

func TestLoadTunables_Overrides(t *testing.T) {
	store := storeWith(t, `
[tunables]
top_k_results = 8
similarity_threshold = 0.6
section_bonus = 0
embedding_timeout = "45s"
vector_store_timeout = 3

[tunables.confidence_weights]
top_score = 1

[tunables.generation_retry]
max_attempts = 5
initial_backoff = "250ms"
multiplier = 3
`)
	tun, err := LoadTunables(store)
	require.NoError(t, err)

	assert.Equal(t, 8, tun.TopKResults)
	assert.InDelta(t, 0.6, tun.SimilarityThreshold, 1e-9)
	assert.Zero(t, tun.SectionBonus)
	assert.Equal(t, 45*time.Second, tun.EmbeddingTimeout)
	assert.Equal(t, 3*time.Second, tun.VectorStoreTimeout)
	assert.InDelta(t, 1.0, tun.ConfidenceWeights.TopScore, 1e-9)
	assert.Equal(t, 5, tun.GenerationRetry.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, tun.GenerationRetry.InitialBackoff)
	assert.InDelta(t, 3.0, tun.GenerationRetry.Multiplier, 1e-9)

	defaults := domain.DefaultTunables()
	assert.Equal(t, defaults.MaxChunkSize, tun.MaxChunkSize)
	assert.Equal(t, defaults.EmbeddingRetry, tun.EmbeddingRetry)
}

func TestLoadTunables_BadValues(t *testing.T) {
	store := storeWith(t, `
[tunables]
top_k_results = "many"
generation_timeout = "soon"
`)
	_, err := LoadTunables(store)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
	assert.Contains(t, err.Error(), "top_k_results")
	assert.Contains(t, err.Error(), "generation_timeout")
}

func TestValidateTunables_Defaults(t *testing.T) {
	assert.NoError(t, ValidateTunables(domain.DefaultTunables()))
}

func TestValidateTunables_ReportsEachField(t *testing.T) {
	tun := domain.DefaultTunables()
	tun.TopKResults = 0
	tun.SimilarityThreshold = 1.5
	tun.GenerationRetry.MaxAttempts = 0

	err := ValidateTunables(tun)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConfiguration)

	msg := err.Error()
	assert.Contains(t, msg, "TopKResults")
	assert.Contains(t, msg, "SimilarityThreshold")
	assert.Contains(t, msg, "GenerationRetry.MaxAttempts")

	var joined interface{ Unwrap() []error }
	require.True(t, errors.As(err, &joined))
	assert.Len(t, joined.Unwrap(), 3)
}

func TestValidateTunables_ChunkGeometry(t *testing.T) {
	tun := domain.DefaultTunables()
	tun.MaxChunkSize = 400
	tun.MinChunkSize = 300
	tun.ChunkOverlap = 150

	err := ValidateTunables(tun)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
	assert.Contains(t, err.Error(), "exceeds max_chunk_size")
}

func TestValidateTunables_RetryOrdering(t *testing.T) {
	tun := domain.DefaultTunables()
	tun.EmbeddingRetry.MaxBackoff = time.Millisecond

	err := ValidateTunables(tun)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EmbeddingRetry.MaxBackoff")
}
