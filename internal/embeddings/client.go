package embeddings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/searchd/internal/config"
	"github.com/fyrsmithlabs/searchd/internal/retry"
)

var (
	// ErrEmptyInput indicates empty or whitespace-only input text
	ErrEmptyInput = errors.New("empty input text")

	// ErrInvalidConfig indicates invalid provider configuration
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrMissingCredential indicates a provider credential is required but absent
	ErrMissingCredential = errors.New("missing API credential")

	// ErrEmbeddingFailed indicates embedding generation failure
	ErrEmbeddingFailed = errors.New("embedding generation failed")
)

// maxInputChars is the per-request input cap. Longer texts are truncated
// before cache lookup so cached and fresh results agree.
const maxInputChars = 8000

// defaultCacheTTL applies when configuration leaves the TTL unset.
const defaultCacheTTL = 24 * time.Hour

// generateFunc performs one provider API call for a single text.
type generateFunc func(ctx context.Context, text string) ([]float32, error)

// client is the shared provider core: truncation, cache, rate limit, retry.
// Each provider supplies its own generate function.
type client struct {
	name      string
	model     string
	dimension int

	cache    Cache
	cacheTTL time.Duration
	limiter  *rate.Limiter
	retrier  *retry.Executor
	metrics  *Metrics
	logger   *zap.Logger
	generate generateFunc
}

func newClient(name, model string, dimension int, cfg config.ProviderConfig, logger *zap.Logger, o *options, generate generateFunc) *client {
	c := &client{
		name:      name,
		model:     model,
		dimension: dimension,
		cacheTTL:  cfg.CacheTTL,
		retrier:   retry.New(cfg.RetryAttempts, cfg.RetryBaseDelay),
		metrics:   NewMetrics(logger),
		logger:    logger,
		generate:  generate,
	}
	if c.cacheTTL <= 0 {
		c.cacheTTL = defaultCacheTTL
	}
	switch {
	case o.cache != nil:
		c.cache = o.cache
	case cfg.CacheEnabled:
		c.cache = NewMemoryCache()
	}
	if cfg.RateLimitRPS > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), 1)
	}
	return c
}

// GetEmbedding returns the embedding vector for text, serving from cache
// when possible.
func (c *client) GetEmbedding(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()
	var genErr error
	defer func() {
		c.metrics.RecordGeneration(ctx, c.name, c.model, time.Since(start), genErr)
	}()

	if strings.TrimSpace(text) == "" {
		genErr = ErrEmptyInput
		return nil, genErr
	}
	text = truncate(text, maxInputChars)

	key := cacheKey(text, c.model, c.name)
	if c.cache != nil {
		if vector, ok := c.cache.Get(key); ok {
			c.metrics.RecordCacheHit(ctx, c.name)
			return vector, nil
		}
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			genErr = fmt.Errorf("waiting for rate limiter: %w", err)
			return nil, genErr
		}
	}

	var vector []float32
	genErr = c.retrier.Do(ctx, func() error {
		v, err := c.generate(ctx, text)
		if err != nil {
			return err
		}
		vector = v
		return nil
	})
	if genErr != nil {
		c.logger.Warn("embedding generation failed",
			zap.String("provider", c.name),
			zap.String("model", c.model),
			zap.Error(genErr))
		return nil, genErr
	}

	if c.cache != nil {
		c.cache.Set(key, vector, c.cacheTTL)
	}
	return vector, nil
}

// Dimension returns the embedding dimension for the configured model.
func (c *client) Dimension() int { return c.dimension }

// Model returns the configured model name.
func (c *client) Model() string { return c.model }

// Name returns the provider name.
func (c *client) Name() string { return c.name }

// Close releases resources held by the provider.
func (c *client) Close() error { return nil }

// truncate caps s at n runes.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
