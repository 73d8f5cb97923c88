// Package config provides configuration loading for searchd.
//
// Configuration is loaded from a YAML file, then overridden by environment
// variables. See Load for precedence rules and variable naming.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Config holds the complete searchd configuration.
type Config struct {
	// SiteName labels search results with the originating site.
	SiteName string `koanf:"site_name"`

	// ChatbotInstructions is passed through unmodified to API consumers.
	ChatbotInstructions string `koanf:"chatbot_instructions"`

	Server      ServerConfig      `koanf:"server"`
	Repository  RepositoryConfig  `koanf:"repository"`
	Embedding   ProviderConfig    `koanf:"embedding"`
	VectorStore VectorStoreConfig `koanf:"vectorstore"`
	Logging     LoggingConfig     `koanf:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// RepositoryConfig holds the content repository endpoint.
type RepositoryConfig struct {
	// BaseURL is the root of the content repository REST API,
	// e.g. https://example.com
	BaseURL string `koanf:"base_url"`

	// Timeout is the per-request timeout for repository calls.
	Timeout time.Duration `koanf:"timeout"`
}

// ProviderConfig holds embedding provider configuration.
type ProviderConfig struct {
	// Provider selects the embedding API: openai, anthropic, gemini, ollama.
	Provider string `koanf:"provider"`

	// Model is the embedding model name. Empty selects the provider default.
	Model string `koanf:"model"`

	// APIKey is the provider credential. Not used by ollama.
	APIKey Secret `koanf:"api_key"`

	// ServerURL is the local server endpoint (ollama only).
	ServerURL string `koanf:"server_url"`

	CacheEnabled   bool          `koanf:"cache_enabled"`
	CacheTTL       time.Duration `koanf:"cache_ttl"`
	RetryAttempts  int           `koanf:"retry_attempts"`
	RetryBaseDelay time.Duration `koanf:"retry_base_delay"`

	// RateLimitRPS caps provider API calls per second. Zero disables limiting.
	RateLimitRPS float64 `koanf:"rate_limit_rps"`
}

// VectorStoreConfig holds vector store backend configuration.
type VectorStoreConfig struct {
	// Backend selects the engine: milvus, chroma, qdrant, pinecone,
	// weaviate, chromem.
	Backend string `koanf:"backend"`

	// Collection is the collection/index/class name.
	Collection string `koanf:"collection"`

	Host   string `koanf:"host"`
	Port   int    `koanf:"port"`
	APIKey Secret `koanf:"api_key"`

	// Environment is the serverless region (pinecone only).
	Environment string `koanf:"environment"`

	// Path is the persistence directory (chromem only). Empty keeps the
	// store in memory.
	Path string `koanf:"path"`
}

// LoggingConfig holds logger construction parameters.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `koanf:"level"`

	// Format is json or console.
	Format string `koanf:"format"`
}

// ApplyDefaults sets default values for missing configuration fields.
func (c *Config) ApplyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "localhost"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 9090
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}

	if c.Repository.Timeout == 0 {
		c.Repository.Timeout = 30 * time.Second
	}

	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "openai"
	}
	if c.Embedding.CacheTTL == 0 {
		c.Embedding.CacheTTL = 24 * time.Hour
	}
	if c.Embedding.RetryAttempts == 0 {
		c.Embedding.RetryAttempts = 3
	}
	if c.Embedding.RetryBaseDelay == 0 {
		c.Embedding.RetryBaseDelay = time.Second
	}
	if c.Embedding.Provider == "ollama" && c.Embedding.ServerURL == "" {
		c.Embedding.ServerURL = "http://localhost:11434"
	}

	if c.VectorStore.Backend == "" {
		c.VectorStore.Backend = "milvus"
	}
	if c.VectorStore.Collection == "" {
		c.VectorStore.Collection = "content"
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("shutdown timeout must be positive")
	}

	switch c.Embedding.Provider {
	case "openai", "anthropic", "gemini", "ollama":
	default:
		return fmt.Errorf("unknown embedding provider: %q (supported: openai, anthropic, gemini, ollama)", c.Embedding.Provider)
	}
	if c.Embedding.RetryAttempts < 1 {
		return errors.New("retry attempts must be at least 1")
	}

	switch c.VectorStore.Backend {
	case "milvus", "chroma", "qdrant", "pinecone", "weaviate", "chromem":
	default:
		return fmt.Errorf("unknown vectorstore backend: %q (supported: milvus, chroma, qdrant, pinecone, weaviate, chromem)", c.VectorStore.Backend)
	}
	if c.VectorStore.Collection == "" {
		return errors.New("vectorstore collection name required")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level: %q", c.Logging.Level)
	}

	return nil
}
