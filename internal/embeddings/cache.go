package embeddings

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

// Cache stores computed embedding vectors keyed by input fingerprint.
// Implementations must be safe for concurrent use.
type Cache interface {
	// Get returns the cached vector for key, if present and unexpired.
	Get(key string) ([]float32, bool)
	// Set stores vector under key for ttl.
	Set(key string, vector []float32, ttl time.Duration)
}

// cacheKey fingerprints an embedding request. The same text embedded with a
// different model or provider must never collide.
func cacheKey(text, model, provider string) string {
	sum := sha256.Sum256([]byte(text + "|" + model + "|" + provider))
	return hex.EncodeToString(sum[:])
}

type cacheEntry struct {
	vector    []float32
	expiresAt time.Time
}

// MemoryCache is an in-process Cache with lazy expiry: stale entries are
// dropped on the next Get rather than by a background sweeper.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
}

// NewMemoryCache creates an empty in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]cacheEntry)}
}

// Get returns the vector stored under key. Expired entries are removed.
func (c *MemoryCache) Get(key string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if time.Now().After(entry.expiresAt) {
		delete(c.entries, key)
		return nil, false
	}
	return entry.vector, true
}

// Set stores vector under key for ttl. A non-positive ttl stores nothing.
func (c *MemoryCache) Set(key string, vector []float32, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = cacheEntry{
		vector:    vector,
		expiresAt: time.Now().Add(ttl),
	}
}

// Len reports the number of entries currently held, including any not yet
// lazily expired.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
