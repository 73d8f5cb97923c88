package vectorstore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/searchd/internal/config"
	"github.com/fyrsmithlabs/searchd/internal/vectorstore"
)

func newChromemStore(t *testing.T) *vectorstore.ChromemStore {
	t.Helper()
	store, err := vectorstore.NewChromemStore(config.VectorStoreConfig{
		Backend:    "chromem",
		Collection: "content",
	}, zap.NewNop())
	require.NoError(t, err)
	return store
}

func chromemRecords() []vectorstore.Record {
	return []vectorstore.Record{
		{
			DocumentID:  1,
			ContentType: "post",
			Title:       "Getting Started",
			Content:     "A guide to getting started with the platform.",
			URL:         "https://example.com/getting-started",
			SchemaType:  "Article",
			Vector:      []float32{1, 0, 0},
		},
		{
			DocumentID:  2,
			ContentType: "page",
			Title:       "About Us",
			Content:     "Who we are and what we do.",
			URL:         "https://example.com/about",
			SchemaType:  "WebPage",
			Vector:      []float32{0, 1, 0},
		},
		{
			DocumentID:  3,
			ContentType: "post",
			Title:       "Release Notes",
			Content:     "Changes in the latest release.",
			URL:         "https://example.com/release-notes",
			SchemaType:  "Article",
			Vector:      []float32{0, 0, 1},
		},
	}
}

func TestChromemStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newChromemStore(t)

	require.NoError(t, store.EnsureCollection(ctx, 3))
	require.NoError(t, store.Upsert(ctx, chromemRecords()))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	hits, err := store.Search(ctx, []float32{1, 0, 0}, vectorstore.SearchParams{Limit: 2})
	require.NoError(t, err)
	require.Len(t, hits, 2)

	top := hits[0]
	assert.Equal(t, int64(1), top.DocumentID)
	assert.Equal(t, "post", top.ContentType)
	assert.Equal(t, "Getting Started", top.Title)
	assert.Equal(t, "https://example.com/getting-started", top.URL)
	assert.InDelta(t, 1.0, top.Score, 0.001)
}

func TestChromemStoreContentTypeFilter(t *testing.T) {
	ctx := context.Background()
	store := newChromemStore(t)

	require.NoError(t, store.EnsureCollection(ctx, 3))
	require.NoError(t, store.Upsert(ctx, chromemRecords()))

	hits, err := store.Search(ctx, []float32{1, 0, 0}, vectorstore.SearchParams{ContentType: "page"})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, int64(2), hits[0].DocumentID)
}

func TestChromemStoreLimitCappedAtCount(t *testing.T) {
	ctx := context.Background()
	store := newChromemStore(t)

	require.NoError(t, store.EnsureCollection(ctx, 3))
	require.NoError(t, store.Upsert(ctx, chromemRecords()[:1]))

	// Default limit is larger than the stored count; the store must not
	// fail on it.
	hits, err := store.Search(ctx, []float32{1, 0, 0}, vectorstore.SearchParams{})
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func TestChromemStoreSearchEmptyCollection(t *testing.T) {
	ctx := context.Background()
	store := newChromemStore(t)

	require.NoError(t, store.EnsureCollection(ctx, 3))
	hits, err := store.Search(ctx, []float32{1, 0, 0}, vectorstore.SearchParams{})
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestChromemStoreDimensionMismatchRecreates(t *testing.T) {
	ctx := context.Background()
	store := newChromemStore(t)

	require.NoError(t, store.EnsureCollection(ctx, 3))
	require.NoError(t, store.Upsert(ctx, chromemRecords()))

	// Re-ensuring with a different dimension drops the stale data.
	require.NoError(t, store.EnsureCollection(ctx, 4))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestChromemStoreClear(t *testing.T) {
	ctx := context.Background()
	store := newChromemStore(t)

	require.NoError(t, store.EnsureCollection(ctx, 3))
	require.NoError(t, store.Upsert(ctx, chromemRecords()))

	result, err := store.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Removed)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	// Clearing an already empty store is not an error.
	result, err = store.Clear(ctx)
	require.NoError(t, err)
	assert.Zero(t, result.Removed)
}

func TestNewChromemStoreRejectsBadCollectionName(t *testing.T) {
	_, err := vectorstore.NewChromemStore(config.VectorStoreConfig{
		Collection: "Bad Name",
	}, zap.NewNop())
	require.ErrorIs(t, err, vectorstore.ErrInvalidCollectionName)
}
