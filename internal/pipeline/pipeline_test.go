package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/searchd/internal/pipeline"
	"github.com/fyrsmithlabs/searchd/internal/repository"
	"github.com/fyrsmithlabs/searchd/internal/vectorstore"
)

// fakeProvider returns a fixed-dimension vector, failing for texts listed
// in failFor.
type fakeProvider struct {
	dimension int
	failFor   map[string]bool
	err       error
}

func (p *fakeProvider) GetEmbedding(ctx context.Context, text string) ([]float32, error) {
	if p.err != nil {
		return nil, p.err
	}
	if p.failFor[text] {
		return nil, errors.New("embedding rejected")
	}
	return make([]float32, p.dimension), nil
}

func (p *fakeProvider) Dimension() int { return p.dimension }
func (p *fakeProvider) Model() string  { return "fake-model" }
func (p *fakeProvider) Name() string   { return "fake" }
func (p *fakeProvider) Close() error   { return nil }

// fakeStore records calls and serves canned hits.
type fakeStore struct {
	ensuredDim int
	upserted   []vectorstore.Record
	hits       []vectorstore.Hit
	searchErr  error
}

func (s *fakeStore) EnsureCollection(ctx context.Context, dimension int) error {
	s.ensuredDim = dimension
	return nil
}

func (s *fakeStore) Upsert(ctx context.Context, records []vectorstore.Record) error {
	s.upserted = append(s.upserted, records...)
	return nil
}

func (s *fakeStore) Search(ctx context.Context, vector []float32, params vectorstore.SearchParams) ([]vectorstore.Hit, error) {
	if s.searchErr != nil {
		return nil, s.searchErr
	}
	return s.hits, nil
}

func (s *fakeStore) Count(ctx context.Context) (int, error) { return len(s.upserted), nil }
func (s *fakeStore) Clear(ctx context.Context) (vectorstore.ClearResult, error) {
	removed := len(s.upserted)
	s.upserted = nil
	return vectorstore.ClearResult{Removed: removed}, nil
}
func (s *fakeStore) Name() string { return "fake" }
func (s *fakeStore) Close() error { return nil }

// fakeRepo serves a fixed document set.
type fakeRepo struct {
	docs []repository.Document
	gone map[int64]bool
}

func (r *fakeRepo) ListDocuments(ctx context.Context, opts repository.ListOptions) ([]repository.Document, int, error) {
	return r.docs, len(r.docs), nil
}

func (r *fakeRepo) GetDocument(ctx context.Context, contentType string, id int64) (*repository.Document, error) {
	if r.gone[id] {
		return nil, repository.ErrNotFound
	}
	for i := range r.docs {
		if r.docs[i].ID == id {
			return &r.docs[i], nil
		}
	}
	return nil, repository.ErrNotFound
}

func testDocs() []repository.Document {
	docs := make([]repository.Document, 3)
	for i := range docs {
		id := int64(i + 1)
		docs[i] = repository.Document{
			ID:          id,
			ContentType: "post",
			Title:       fmt.Sprintf("Post %d", id),
			Content:     fmt.Sprintf("Body of post %d mentions gardening tips.", id),
			URL:         fmt.Sprintf("https://example.com/%d", id),
			Author:      "Alex",
		}
	}
	return docs
}

func TestIngestorProcessesBatch(t *testing.T) {
	ctx := context.Background()
	repo := &fakeRepo{docs: testDocs()}
	provider := &fakeProvider{dimension: 8}
	store := &fakeStore{}

	ing := pipeline.NewIngestor(repo, provider, store, zap.NewNop())
	result, err := ing.Ingest(ctx, "post", 100, 0)
	require.NoError(t, err)

	assert.Equal(t, "success", result.Status)
	assert.Equal(t, 3, result.Total)
	assert.Equal(t, 3, result.Processed)
	assert.Equal(t, 8, store.ensuredDim)
	require.Len(t, store.upserted, 3)

	// Records keep repository order and carry the mapped schema type.
	assert.Equal(t, int64(1), store.upserted[0].DocumentID)
	assert.Equal(t, "Article", store.upserted[0].SchemaType)
	assert.Len(t, store.upserted[0].Vector, 8)
}

func TestIngestorSkipsFailedEmbeddings(t *testing.T) {
	ctx := context.Background()
	docs := testDocs()
	repo := &fakeRepo{docs: docs}
	provider := &fakeProvider{
		dimension: 8,
		failFor:   map[string]bool{docs[1].Title + "\n\n" + docs[1].Content: true},
	}
	store := &fakeStore{}

	ing := pipeline.NewIngestor(repo, provider, store, zap.NewNop())
	result, err := ing.Ingest(ctx, "post", 100, 0)
	require.NoError(t, err)

	assert.Equal(t, "success", result.Status)
	assert.Equal(t, 3, result.Total)
	assert.Equal(t, 2, result.Processed)
	require.Len(t, store.upserted, 2)
	assert.Equal(t, int64(1), store.upserted[0].DocumentID)
	assert.Equal(t, int64(3), store.upserted[1].DocumentID)
}

func TestIngestorEmptyRepository(t *testing.T) {
	ctx := context.Background()
	ing := pipeline.NewIngestor(&fakeRepo{}, &fakeProvider{dimension: 8}, &fakeStore{}, zap.NewNop())

	result, err := ing.Ingest(ctx, "post", 100, 0)
	require.NoError(t, err)
	assert.Equal(t, "error", result.Status)
	assert.Zero(t, result.Total)
	assert.Zero(t, result.Processed)
}

func TestIngestorAllEmbeddingsFail(t *testing.T) {
	ctx := context.Background()
	repo := &fakeRepo{docs: testDocs()}
	store := &fakeStore{}
	ing := pipeline.NewIngestor(repo, &fakeProvider{dimension: 8, err: errors.New("provider down")}, store, zap.NewNop())

	result, err := ing.Ingest(ctx, "post", 100, 0)
	require.NoError(t, err)
	assert.Equal(t, "error", result.Status)
	assert.Equal(t, 3, result.Total)
	assert.Zero(t, result.Processed)
	assert.Empty(t, store.upserted)
}

func searchHits() []vectorstore.Hit {
	return []vectorstore.Hit{
		{DocumentID: 2, ContentType: "post", Score: 0.91},
		{DocumentID: 1, ContentType: "post", Score: 0.74},
		{DocumentID: 3, ContentType: "post", Score: 0.52},
	}
}

func TestQuerierSearch(t *testing.T) {
	ctx := context.Background()
	repo := &fakeRepo{docs: testDocs()}
	store := &fakeStore{hits: searchHits()}
	q := pipeline.NewQuerier(&fakeProvider{dimension: 8}, store, repo, "Example Site", zap.NewNop())

	results, err := q.Search(ctx, "gardening", pipeline.QueryParams{})
	require.NoError(t, err)
	require.Len(t, results, 3)

	// Backend order is preserved, no client-side re-sort.
	assert.Equal(t, "Post 2", results[0].Name)
	assert.Equal(t, "https://example.com/2", results[0].URL)
	assert.InDelta(t, 0.91, results[0].Score, 1e-9)
	assert.Equal(t, "Example Site", results[0].Site)
	assert.Contains(t, results[0].Description, "gardening")

	obj := results[0].SchemaObject
	assert.Equal(t, "Article", obj["@type"])
	assert.Equal(t, "Post 2", obj["headline"])
}

func TestQuerierDropsUnresolvableHits(t *testing.T) {
	ctx := context.Background()
	repo := &fakeRepo{docs: testDocs(), gone: map[int64]bool{1: true}}
	store := &fakeStore{hits: searchHits()}
	q := pipeline.NewQuerier(&fakeProvider{dimension: 8}, store, repo, "Example Site", zap.NewNop())

	results, err := q.Search(ctx, "gardening", pipeline.QueryParams{})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "Post 2", results[0].Name)
	assert.Equal(t, "Post 3", results[1].Name)
}

func TestQuerierSiteOverride(t *testing.T) {
	ctx := context.Background()
	repo := &fakeRepo{docs: testDocs()}
	store := &fakeStore{hits: searchHits()[:1]}
	q := pipeline.NewQuerier(&fakeProvider{dimension: 8}, store, repo, "Example Site", zap.NewNop())

	results, err := q.Search(ctx, "gardening", pipeline.QueryParams{Site: "Other Site"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Other Site", results[0].Site)
}

func TestQuerierFailSoft(t *testing.T) {
	ctx := context.Background()
	repo := &fakeRepo{docs: testDocs()}

	t.Run("embedding failure", func(t *testing.T) {
		q := pipeline.NewQuerier(&fakeProvider{dimension: 8, err: errors.New("provider down")}, &fakeStore{}, repo, "Example Site", zap.NewNop())
		results, err := q.Search(ctx, "gardening", pipeline.QueryParams{})
		require.NoError(t, err)
		assert.NotNil(t, results)
		assert.Empty(t, results)
	})

	t.Run("backend failure", func(t *testing.T) {
		q := pipeline.NewQuerier(&fakeProvider{dimension: 8}, &fakeStore{searchErr: errors.New("backend down")}, repo, "Example Site", zap.NewNop())
		results, err := q.Search(ctx, "gardening", pipeline.QueryParams{})
		require.NoError(t, err)
		assert.Empty(t, results)
	})

	t.Run("blank query", func(t *testing.T) {
		q := pipeline.NewQuerier(&fakeProvider{dimension: 8}, &fakeStore{}, repo, "Example Site", zap.NewNop())
		results, err := q.Search(ctx, "   ", pipeline.QueryParams{})
		require.NoError(t, err)
		assert.Empty(t, results)
	})
}
