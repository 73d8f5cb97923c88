package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	chromem "github.com/philippgille/chromem-go"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/searchd/internal/config"
)

// ChromemStore is an embedded Store backed by chromem-go. It needs no
// external service, which makes it the backend of choice for local
// development and tests. Native similarity is already cosine in [0,1] and
// passes through unchanged.
type ChromemStore struct {
	db         *chromem.DB
	collection string
	dimension  int
	logger     *zap.Logger
	metrics    *Metrics
}

// NewChromemStore creates an embedded store. An empty path keeps all data
// in memory; otherwise data persists under the given directory.
func NewChromemStore(cfg config.VectorStoreConfig, logger *zap.Logger) (*ChromemStore, error) {
	if err := ValidateCollectionName(cfg.Collection); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var db *chromem.DB
	if cfg.Path == "" {
		db = chromem.NewDB()
	} else {
		if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
			return nil, fmt.Errorf("creating directory %s: %w", cfg.Path, err)
		}
		var err error
		db, err = chromem.NewPersistentDB(cfg.Path, false)
		if err != nil {
			return nil, fmt.Errorf("opening chromem DB: %w", err)
		}
	}

	return &ChromemStore{
		db:         db,
		collection: cfg.Collection,
		logger:     logger,
		metrics:    NewMetrics(logger),
	}, nil
}

// embeddingFunc satisfies chromem's required callback. All vectors are
// computed upstream, so being called is a bug.
func externalEmbeddingFunc(context.Context, string) ([]float32, error) {
	return nil, errors.New("embeddings are provided externally")
}

func (s *ChromemStore) Name() string { return "chromem" }

// EnsureCollection creates the collection, or drops and recreates it when
// its stored vectors have a different dimension.
func (s *ChromemStore) EnsureCollection(ctx context.Context, dimension int) error {
	start := time.Now()
	var opErr error
	defer func() { s.metrics.RecordOperation(ctx, s.Name(), "ensure", time.Since(start), opErr) }()

	if dimension <= 0 {
		opErr = fmt.Errorf("%w: dimension must be positive", ErrInvalidConfig)
		return opErr
	}

	col := s.db.GetCollection(s.collection, externalEmbeddingFunc)
	if col != nil && col.Count() > 0 {
		// Probe with a unit vector of the expected dimension. chromem
		// rejects queries whose dimension differs from stored vectors.
		probe := make([]float32, dimension)
		probe[0] = 1
		if _, err := col.QueryEmbedding(ctx, probe, 1, nil, nil); err != nil {
			s.logger.Warn("dimension mismatch, dropping and recreating collection",
				zap.String("collection", s.collection),
				zap.Int("new_dimension", dimension))
			if err := s.db.DeleteCollection(s.collection); err != nil {
				opErr = fmt.Errorf("dropping collection %s: %w", s.collection, err)
				return opErr
			}
			col = nil
		}
	}

	if col == nil {
		if _, err := s.db.GetOrCreateCollection(s.collection, nil, externalEmbeddingFunc); err != nil {
			opErr = fmt.Errorf("creating collection %s: %w", s.collection, err)
			return opErr
		}
		s.logger.Info("collection ready",
			zap.String("backend", s.Name()),
			zap.String("collection", s.collection),
			zap.Int("dimension", dimension))
	}
	s.dimension = dimension
	return nil
}

// Upsert writes records in batches.
func (s *ChromemStore) Upsert(ctx context.Context, records []Record) error {
	start := time.Now()
	var opErr error
	defer func() { s.metrics.RecordOperation(ctx, s.Name(), "upsert", time.Since(start), opErr) }()

	if len(records) == 0 {
		return nil
	}
	col, err := s.db.GetOrCreateCollection(s.collection, nil, externalEmbeddingFunc)
	if err != nil {
		opErr = fmt.Errorf("getting collection %s: %w", s.collection, err)
		return opErr
	}

	opErr = inBatches(ctx, records, upsertBatchSize, func(batch []Record) error {
		s.metrics.RecordBatch(ctx, s.Name(), len(batch))
		docs := make([]chromem.Document, len(batch))
		for i, rec := range batch {
			docs[i] = chromem.Document{
				ID:        strconv.FormatInt(rec.DocumentID, 10),
				Content:   rec.Content,
				Embedding: rec.Vector,
				Metadata: map[string]string{
					"document_id":  strconv.FormatInt(rec.DocumentID, 10),
					"content_type": rec.ContentType,
					"title":        rec.Title,
					"url":          rec.URL,
					"schema_type":  rec.SchemaType,
				},
			}
		}
		if err := col.AddDocuments(ctx, docs, 1); err != nil {
			s.logger.Error("batch upsert failed",
				zap.String("backend", s.Name()),
				zap.Int("batch_size", len(batch)),
				zap.Error(err))
			return fmt.Errorf("adding documents: %w", err)
		}
		return nil
	})
	return opErr
}

// Search returns the nearest records. chromem reports cosine similarity
// already in [0,1].
func (s *ChromemStore) Search(ctx context.Context, vector []float32, params SearchParams) ([]Hit, error) {
	start := time.Now()
	var opErr error
	defer func() { s.metrics.RecordOperation(ctx, s.Name(), "search", time.Since(start), opErr) }()

	col := s.db.GetCollection(s.collection, externalEmbeddingFunc)
	if col == nil {
		opErr = fmt.Errorf("%w: %s", ErrCollectionNotFound, s.collection)
		return nil, opErr
	}

	limit := params.limit()
	// chromem requires nResults <= stored document count.
	if count := col.Count(); count == 0 {
		return []Hit{}, nil
	} else if limit > count {
		limit = count
	}

	var where map[string]string
	if params.ContentType != "" {
		where = map[string]string{"content_type": params.ContentType}
	}

	results, err := col.QueryEmbedding(ctx, vector, limit, where, nil)
	if err != nil {
		opErr = fmt.Errorf("querying collection %s: %w", s.collection, err)
		return nil, opErr
	}

	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		id, _ := strconv.ParseInt(r.Metadata["document_id"], 10, 64)
		hits = append(hits, Hit{
			DocumentID:  id,
			ContentType: r.Metadata["content_type"],
			Title:       r.Metadata["title"],
			Content:     r.Content,
			URL:         r.Metadata["url"],
			Score:       float64(r.Similarity),
		})
	}
	return hits, nil
}

// Count returns the number of stored documents.
func (s *ChromemStore) Count(ctx context.Context) (int, error) {
	col := s.db.GetCollection(s.collection, externalEmbeddingFunc)
	if col == nil {
		return 0, nil
	}
	return col.Count(), nil
}

// Clear drops the collection and reports its prior document count.
func (s *ChromemStore) Clear(ctx context.Context) (ClearResult, error) {
	start := time.Now()
	var opErr error
	defer func() { s.metrics.RecordOperation(ctx, s.Name(), "clear", time.Since(start), opErr) }()

	col := s.db.GetCollection(s.collection, externalEmbeddingFunc)
	if col == nil {
		return ClearResult{}, nil
	}
	removed := col.Count()
	if err := s.db.DeleteCollection(s.collection); err != nil {
		opErr = fmt.Errorf("deleting collection %s: %w", s.collection, err)
		return ClearResult{}, opErr
	}
	s.logger.Info("collection cleared",
		zap.String("backend", s.Name()),
		zap.String("collection", s.collection),
		zap.Int("removed", removed))
	return ClearResult{Removed: removed}, nil
}

// Close is a no-op; chromem persists writes as they happen.
func (s *ChromemStore) Close() error { return nil }

var _ Store = (*ChromemStore)(nil)
