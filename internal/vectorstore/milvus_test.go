package vectorstore_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/searchd/internal/config"
	"github.com/fyrsmithlabs/searchd/internal/vectorstore"
)

// milvusServer fakes the Milvus v2 REST API with an in-memory collection.
type milvusServer struct {
	has        bool
	dimension  string
	rows       []map[string]any
	lastSearch map[string]any
}

func (m *milvusServer) handler() http.Handler {
	ok := func(w http.ResponseWriter, data any) {
		_ = json.NewEncoder(w).Encode(map[string]any{"code": 0, "data": data})
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/v2/vectordb/collections/has", func(w http.ResponseWriter, r *http.Request) {
		ok(w, map[string]any{"has": m.has})
	})
	mux.HandleFunc("/v2/vectordb/collections/describe", func(w http.ResponseWriter, r *http.Request) {
		ok(w, map[string]any{
			"fields": []map[string]any{
				{"name": "id"},
				{"name": "vector", "params": []map[string]string{{"key": "dim", "value": m.dimension}}},
			},
		})
	})
	mux.HandleFunc("/v2/vectordb/collections/create", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		schema := body["schema"].(map[string]any)
		fields := schema["fields"].([]any)
		for _, f := range fields {
			field := f.(map[string]any)
			if field["fieldName"] == "vector" {
				params := field["elementTypeParams"].(map[string]any)
				m.dimension = params["dim"].(string)
			}
		}
		m.has = true
		m.rows = nil
		ok(w, nil)
	})
	mux.HandleFunc("/v2/vectordb/collections/drop", func(w http.ResponseWriter, r *http.Request) {
		m.has = false
		m.rows = nil
		ok(w, nil)
	})
	mux.HandleFunc("/v2/vectordb/entities/upsert", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Data []map[string]any `json:"data"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		m.rows = append(m.rows, body.Data...)
		ok(w, nil)
	})
	mux.HandleFunc("/v2/vectordb/entities/search", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&m.lastSearch)
		ok(w, []map[string]any{
			{"id": 1, "distance": 0.0, "content_type": "post", "title": "First", "content": "first body", "url": "https://example.com/1"},
			{"id": 2, "distance": 10.0, "content_type": "post", "title": "Second", "content": "second body", "url": "https://example.com/2"},
		})
	})
	mux.HandleFunc("/v2/vectordb/entities/query", func(w http.ResponseWriter, r *http.Request) {
		ok(w, []map[string]any{{"count(*)": float64(len(m.rows))}})
	})
	return mux
}

func newMilvusStore(t *testing.T, baseURL string) *vectorstore.MilvusStore {
	t.Helper()
	store, err := vectorstore.NewMilvusStore(config.VectorStoreConfig{
		Backend:    "milvus",
		Collection: "content",
	}, zap.NewNop(), vectorstore.WithBaseURL(baseURL))
	require.NoError(t, err)
	return store
}

func TestMilvusStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	fake := &milvusServer{}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	store := newMilvusStore(t, srv.URL)
	require.NoError(t, store.EnsureCollection(ctx, 3))
	assert.Equal(t, "3", fake.dimension)

	require.NoError(t, store.Upsert(ctx, []vectorstore.Record{
		{DocumentID: 1, ContentType: "post", Title: "First", Content: "first body", URL: "https://example.com/1", Vector: []float32{1, 0, 0}},
		{DocumentID: 2, ContentType: "post", Title: "Second", Content: "second body", URL: "https://example.com/2", Vector: []float32{0, 1, 0}},
	}))
	assert.Len(t, fake.rows, 2)
	assert.Equal(t, "first body", fake.rows[0]["content"])

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	hits, err := store.Search(ctx, []float32{1, 0, 0}, vectorstore.SearchParams{Limit: 5, ContentType: "post"})
	require.NoError(t, err)
	require.Len(t, hits, 2)

	// L2 distances map linearly into similarity.
	assert.InDelta(t, 1.0, hits[0].Score, 1e-9)
	assert.InDelta(t, 0.5, hits[1].Score, 1e-9)
	assert.Equal(t, int64(1), hits[0].DocumentID)
	assert.Equal(t, "First", hits[0].Title)

	assert.Equal(t, `content_type == "post"`, fake.lastSearch["filter"])
	assert.Equal(t, float64(5), fake.lastSearch["limit"])
}

func TestMilvusStoreDimensionMismatchRecreates(t *testing.T) {
	ctx := context.Background()
	fake := &milvusServer{}
	fake.has = true
	fake.dimension = "4"
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	store := newMilvusStore(t, srv.URL)
	require.NoError(t, store.EnsureCollection(ctx, 3))
	assert.Equal(t, "3", fake.dimension, "collection must be recreated with the new dimension")
}

func TestMilvusStoreEnsureIsIdempotent(t *testing.T) {
	ctx := context.Background()
	fake := &milvusServer{}
	fake.has = true
	fake.dimension = "3"
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	store := newMilvusStore(t, srv.URL)
	require.NoError(t, store.EnsureCollection(ctx, 3))
	assert.True(t, fake.has)
}

func TestMilvusStoreClear(t *testing.T) {
	ctx := context.Background()
	fake := &milvusServer{}
	fake.has = true
	fake.dimension = "3"
	fake.rows = []map[string]any{{"id": 1}, {"id": 2}}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	store := newMilvusStore(t, srv.URL)
	result, err := store.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Removed)
	assert.False(t, fake.has)
}
