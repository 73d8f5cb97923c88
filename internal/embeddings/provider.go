package embeddings

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/searchd/internal/config"
)

// Provider is the interface for embedding providers.
type Provider interface {
	// GetEmbedding returns the embedding vector for a single text.
	GetEmbedding(ctx context.Context, text string) ([]float32, error)
	// Dimension returns the embedding dimension for the current model.
	Dimension() int
	// Model returns the active model name.
	Model() string
	// Name returns the provider name.
	Name() string
	// Close releases resources held by the provider.
	Close() error
}

type options struct {
	baseURL    string
	httpClient *http.Client
	cache      Cache
}

// Option customizes provider construction.
type Option func(*options)

// WithBaseURL overrides the provider API base URL.
func WithBaseURL(url string) Option {
	return func(o *options) { o.baseURL = url }
}

// WithHTTPClient overrides the HTTP client used for provider API calls.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) { o.httpClient = client }
}

// WithCache injects a Cache implementation, overriding the built-in
// in-memory cache.
func WithCache(cache Cache) Option {
	return func(o *options) { o.cache = cache }
}

// NewProvider creates an embedding provider based on the configuration.
// An empty provider name selects openai.
func NewProvider(cfg config.ProviderConfig, logger *zap.Logger, opts ...Option) (Provider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	switch cfg.Provider {
	case "openai", "":
		return newOpenAI(cfg, logger, o)
	case "anthropic":
		return newVoyage(cfg, logger, o)
	case "gemini":
		return newGemini(cfg, logger, o)
	case "ollama":
		return newOllama(cfg, logger, o)
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, cfg.Provider)
	}
}
