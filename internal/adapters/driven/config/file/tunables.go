package file

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/custodia-labs/paperlens/internal/core/domain"
	"github.com/custodia-labs/paperlens/internal/core/ports/driven"
)

// TunablesPrefix is the config table holding tunables, e.g.
//
//	[tunables]
//	top_k_results = 8
//	[tunables.generation_retry]
//	max_attempts = 5
const TunablesPrefix = "tunables."

type intField struct {
	key string
	ptr *int
}

type floatField struct {
	key string
	ptr *float64
}

type durationField struct {
	key string
	ptr *time.Duration
}

// LoadTunables overlays configured tunables onto the defaults. Keys that
// are absent keep their default. Durations are strings such as "30s";
// bare integers are read as seconds.
func LoadTunables(store driven.ConfigStore) (domain.Tunables, error) {
	t := domain.DefaultTunables()
	if store == nil {
		return t, nil
	}

	ints := []intField{
		{"max_chunk_size", &t.MaxChunkSize},
		{"min_chunk_size", &t.MinChunkSize},
		{"chunk_overlap", &t.ChunkOverlap},
		{"top_k_results", &t.TopKResults},
		{"embedding_dimension", &t.EmbeddingDimension},
		{"over_fetch_factor", &t.OverFetchFactor},
		{"representative_recompute_size", &t.RepresentativeRecomputeSize},
		{"corroboration_target", &t.CorroborationTarget},
		{"max_context_tokens", &t.MaxContextTokens},
		{"embed_concurrency", &t.EmbedConcurrency},
	}
	floats := []floatField{
		{"similarity_threshold", &t.SimilarityThreshold},
		{"duplicate_threshold", &t.DuplicateThreshold},
		{"section_bonus", &t.SectionBonus},
		{"confidence_weights.top_score", &t.ConfidenceWeights.TopScore},
		{"confidence_weights.corroboration", &t.ConfidenceWeights.Corroboration},
		{"confidence_weights.coverage", &t.ConfidenceWeights.Coverage},
	}
	durations := []durationField{
		{"embedding_timeout", &t.EmbeddingTimeout},
		{"vector_store_timeout", &t.VectorStoreTimeout},
		{"generation_timeout", &t.GenerationTimeout},
	}
	policies := map[string]*domain.RetryPolicy{
		"embedding_retry":    &t.EmbeddingRetry,
		"vector_store_retry": &t.VectorStoreRetry,
		"generation_retry":   &t.GenerationRetry,
	}
	for name, p := range policies {
		ints = append(ints, intField{name + ".max_attempts", &p.MaxAttempts})
		floats = append(floats, floatField{name + ".multiplier", &p.Multiplier})
		durations = append(durations,
			durationField{name + ".initial_backoff", &p.InitialBackoff},
			durationField{name + ".max_backoff", &p.MaxBackoff},
			durationField{name + ".deadline", &p.Deadline},
		)
	}

	var errs []error
	for _, f := range ints {
		if raw, ok := store.Get(TunablesPrefix + f.key); ok {
			v, isInt := raw.(int64)
			if !isInt {
				errs = append(errs, domain.NewConfigurationError(f.key, fmt.Errorf("expected integer, got %T", raw)))
				continue
			}
			*f.ptr = int(v)
		}
	}
	for _, f := range floats {
		if _, ok := store.Get(TunablesPrefix + f.key); ok {
			*f.ptr = store.GetFloat(TunablesPrefix + f.key)
		}
	}
	for _, f := range durations {
		raw, ok := store.Get(TunablesPrefix + f.key)
		if !ok {
			continue
		}
		d, err := parseDuration(raw)
		if err != nil {
			errs = append(errs, domain.NewConfigurationError(f.key, err))
			continue
		}
		*f.ptr = d
	}

	return t, errors.Join(errs...)
}

func parseDuration(raw any) (time.Duration, error) {
	switch v := raw.(type) {
	case string:
		return time.ParseDuration(v)
	case int64:
		return time.Duration(v) * time.Second, nil
	case time.Duration:
		return v, nil
	default:
		return 0, fmt.Errorf("expected duration string, got %T", raw)
	}
}

// ValidateTunables checks every field constraint and the chunk geometry.
// Each failed field becomes one ConfigurationError; they are joined.
func ValidateTunables(t domain.Tunables) error {
	var errs []error

	validate := validator.New()
	if err := validate.Struct(t); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return domain.NewConfigurationError("tunables", err)
		}
		for _, e := range verrs {
			errs = append(errs, domain.NewConfigurationError(e.Namespace(),
				fmt.Errorf("failed on '%s' tag (value %v)", tagWithParam(e), e.Value())))
		}
	}
	if err := t.CheckChunkGeometry(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func tagWithParam(e validator.FieldError) string {
	if e.Param() == "" {
		return e.Tag()
	}
	return e.Tag() + "=" + e.Param()
}
