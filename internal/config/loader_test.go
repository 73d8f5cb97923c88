package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_FromYAML(t *testing.T) {
	path := writeConfigFile(t, `
site_name: Example Blog
server:
  port: 8088
embedding:
  provider: gemini
  model: embedding-001
  cache_ttl: 1h
vectorstore:
  backend: qdrant
  collection: blog_content
  host: qdrant.internal
  port: 6334
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "Example Blog", cfg.SiteName)
	assert.Equal(t, 8088, cfg.Server.Port)
	assert.Equal(t, "gemini", cfg.Embedding.Provider)
	assert.Equal(t, "embedding-001", cfg.Embedding.Model)
	assert.Equal(t, time.Hour, cfg.Embedding.CacheTTL)
	assert.Equal(t, "qdrant", cfg.VectorStore.Backend)
	assert.Equal(t, "blog_content", cfg.VectorStore.Collection)
	assert.Equal(t, "qdrant.internal", cfg.VectorStore.Host)
	// Defaults still fill the gaps.
	assert.Equal(t, 3, cfg.Embedding.RetryAttempts)
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	path := writeConfigFile(t, `
vectorstore:
  backend: milvus
`)

	t.Setenv("VECTORSTORE_BACKEND", "weaviate")
	t.Setenv("EMBEDDING_API_KEY", "sk-from-env")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "weaviate", cfg.VectorStore.Backend)
	assert.Equal(t, "sk-from-env", cfg.Embedding.APIKey.Value())
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "milvus", cfg.VectorStore.Backend)
}

func TestLoad_RejectsWorldReadableFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("site_name: x"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permissions")
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfigFile(t, "::: not yaml :::")

	_, err := Load(path)
	assert.Error(t, err)
}
