// Package ratelimit wraps remote model services with a token-bucket
// limiter and a cool-down after rate-limit rejections.
package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/paperlens/internal/core/domain"
	"github.com/custodia-labs/paperlens/internal/core/ports/driven"
)

// DefaultCooldown is the pause after a rate-limit rejection.
const DefaultCooldown = 30 * time.Second

// Config holds rate limiting configuration.
type Config struct {
	// RequestsPerSecond is the sustained rate. Zero or less disables limiting.
	RequestsPerSecond float64

	// BurstSize is the maximum burst size (default 1).
	BurstSize int

	// Cooldown is the pause after a rejection (default 30s).
	Cooldown time.Duration
}

// Limiter is a token bucket with a backoff window.
type Limiter struct {
	mu       sync.Mutex
	limiter  *rate.Limiter
	retryAt  time.Time
	cooldown time.Duration
}

// NewLimiter creates a limiter from cfg.
func NewLimiter(cfg Config) *Limiter {
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	if cfg.BurstSize <= 0 {
		cfg.BurstSize = 1
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultCooldown
	}
	return &Limiter{
		limiter:  rate.NewLimiter(limit, cfg.BurstSize),
		cooldown: cfg.Cooldown,
	}
}

// Wait blocks until a request may be made, honouring any cool-down.
func (l *Limiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	retryAt := l.retryAt
	l.mu.Unlock()

	if wait := time.Until(retryAt); wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	return l.limiter.Wait(ctx)
}

// Allow reports whether a request may be made now without waiting.
func (l *Limiter) Allow() bool {
	l.mu.Lock()
	retryAt := l.retryAt
	l.mu.Unlock()
	if time.Now().Before(retryAt) {
		return false
	}
	return l.limiter.Allow()
}

// observe starts a cool-down when err reports a rate-limit rejection.
func (l *Limiter) observe(err error) {
	if err == nil || !errors.Is(err, domain.ErrRateLimited) {
		return
	}
	l.mu.Lock()
	l.retryAt = time.Now().Add(l.cooldown)
	l.mu.Unlock()
}

// LLM limits calls to a language model.
type LLM struct {
	driven.LLMService
	limiter *Limiter
}

// Ensure LLM implements the interface.
var _ driven.LLMService = (*LLM)(nil)

// WrapLLM returns inner behind limiter.
func WrapLLM(inner driven.LLMService, limiter *Limiter) *LLM {
	return &LLM{LLMService: inner, limiter: limiter}
}

// Generate waits for the limiter before delegating.
func (l *LLM) Generate(ctx context.Context, prompt string, opts driven.GenerateOptions) (driven.Generation, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return driven.Generation{}, err
	}
	gen, err := l.LLMService.Generate(ctx, prompt, opts)
	l.limiter.observe(err)
	return gen, err
}

// Embedder limits calls to an embedding model.
type Embedder struct {
	driven.EmbeddingService
	limiter *Limiter
}

// Ensure Embedder implements the interface.
var _ driven.EmbeddingService = (*Embedder)(nil)

// WrapEmbedder returns inner behind limiter.
func WrapEmbedder(inner driven.EmbeddingService, limiter *Limiter) *Embedder {
	return &Embedder{EmbeddingService: inner, limiter: limiter}
}

// Embed waits for the limiter before delegating.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	vec, err := e.EmbeddingService.Embed(ctx, text)
	e.limiter.observe(err)
	return vec, err
}

// EmbedBatch waits for one token per text before delegating.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	for range texts {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	vecs, err := e.EmbeddingService.EmbedBatch(ctx, texts)
	e.limiter.observe(err)
	return vecs, err
}
