// Package embeddings provides embedding generation via multiple providers.
//
// Providers share a common core that handles input truncation, caching,
// rate limiting and retry. Each provider owns its HTTP wire format, its
// model dimension table and its credential requirements.
package embeddings
