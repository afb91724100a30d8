package embedding

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/Veraticus/coa-classifier/internal/common"
	"github.com/Veraticus/coa-classifier/internal/model"
	"github.com/Veraticus/coa-classifier/internal/telemetry"
)

// GeneratorConfig tunes the Generator.
type GeneratorConfig struct {
	// CacheTTL bounds how long an embedding is served from cache.
	CacheTTL time.Duration
	// Timeout bounds a single backend call.
	Timeout time.Duration
	// RequestsPerSecond limits backend calls; zero disables limiting.
	RequestsPerSecond float64
	// Burst is the limiter burst size.
	Burst int
}

// DefaultGeneratorConfig returns sensible defaults.
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		CacheTTL:          DefaultCacheTTL,
		Timeout:           5 * time.Second,
		RequestsPerSecond: 50,
		Burst:             10,
	}
}

// Generator embeds text through a Provider with a content-addressed cache.
// It holds no lock across backend calls; concurrent misses for one key may
// each reach the backend.
type Generator struct {
	provider Provider
	cache    Cache
	limiter  *rate.Limiter
	metrics  *telemetry.Metrics
	config   GeneratorConfig
}

// NewGenerator creates a Generator. A nil cache disables caching.
func NewGenerator(provider Provider, cache Cache, cfg GeneratorConfig, metrics *telemetry.Metrics) *Generator {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	return &Generator{
		provider: provider,
		cache:    cache,
		limiter:  limiter,
		metrics:  metrics,
		config:   cfg,
	}
}

// ModelName identifies the backing provider and model.
func (g *Generator) ModelName() string {
	return g.provider.Name()
}

// Dimension returns the vector dimension produced.
func (g *Generator) Dimension() int {
	return g.provider.Dimension()
}

// Embed returns the vector for text. Backend failures are reported as
// common.ErrModelUnavailable.
func (g *Generator) Embed(ctx context.Context, text string) (model.Vector, error) {
	vecs, err := g.EmbedMany(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedTransaction embeds the canonical text of txn.
func (g *Generator) EmbedTransaction(ctx context.Context, txn *model.Transaction) (model.Vector, error) {
	return g.Embed(ctx, TransactionText(txn))
}

// EmbedMany embeds texts, serving what it can from cache and sending the
// rest to the backend in one call.
func (g *Generator) EmbedMany(ctx context.Context, texts []string) ([]model.Vector, error) {
	if len(texts) == 0 {
		return nil, common.InvalidInput("no texts to embed")
	}

	out := make([]model.Vector, len(texts))
	var missIdx []int
	var missTexts []string
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			return nil, common.InvalidInput("text to embed is empty")
		}
		if g.cache != nil {
			if vec, ok := g.cache.Get(CacheKey(g.provider.Name(), text)); ok {
				g.metrics.CacheLookup(true)
				out[i] = vec
				continue
			}
			g.metrics.CacheLookup(false)
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}
	if len(missTexts) == 0 {
		return out, nil
	}

	vecs, err := g.call(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	for j, i := range missIdx {
		out[i] = vecs[j]
		if g.cache != nil {
			g.cache.Set(CacheKey(g.provider.Name(), missTexts[j]), vecs[j], g.config.CacheTTL)
		}
	}
	return out, nil
}

// Invalidate drops the cached vector for text.
func (g *Generator) Invalidate(text string) {
	if g.cache != nil {
		g.cache.Invalidate(CacheKey(g.provider.Name(), text))
	}
}

func (g *Generator) call(ctx context.Context, texts []string) ([]model.Vector, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("%w: %w", common.ErrModelUnavailable, err)
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, g.config.Timeout)
	defer cancel()

	start := time.Now()
	vecs, err := g.provider.Embed(callCtx, texts)
	if err == nil {
		err = g.check(vecs, len(texts))
	}
	g.metrics.Embedding(g.provider.Name(), time.Since(start), err)

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %w", common.ErrModelUnavailable, err)
	}
	return vecs, nil
}

func (g *Generator) check(vecs []model.Vector, want int) error {
	if len(vecs) != want {
		return fmt.Errorf("%w: got %d vectors for %d texts", ErrEmbeddingFailed, len(vecs), want)
	}
	for _, v := range vecs {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrEmbeddingFailed, err)
		}
		if v.Norm() == 0 {
			return fmt.Errorf("%w: zero vector", ErrEmbeddingFailed)
		}
	}
	return nil
}
