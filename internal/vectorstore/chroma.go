package vectorstore

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/searchd/internal/config"
)

const (
	chromaDefaultHost = "localhost"
	chromaDefaultPort = 8000
)

// ChromaStore is a Store implementation speaking the Chroma v1 REST API.
// Chroma reports cosine distance; similarity = 1 - d/2, a calibration
// heuristic kept for compatibility with existing deployments.
type ChromaStore struct {
	rest       *restClient
	collection string
	// collectionID caches the server-assigned UUID used by entity routes.
	collectionID string
	logger       *zap.Logger
	metrics      *Metrics
}

// NewChromaStore creates a client for a Chroma server.
func NewChromaStore(cfg config.VectorStoreConfig, logger *zap.Logger, opts ...StoreOption) (*ChromaStore, error) {
	if err := ValidateCollectionName(cfg.Collection); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	o := newStoreOptions(opts)

	host := cfg.Host
	if host == "" {
		host = chromaDefaultHost
	}
	port := cfg.Port
	if port == 0 {
		port = chromaDefaultPort
	}

	headers := map[string]string{}
	if cfg.APIKey.IsSet() {
		headers["Authorization"] = "Bearer " + cfg.APIKey.Value()
	}

	base := o.baseURL
	if base == "" {
		base = fmt.Sprintf("http://%s:%d", host, port)
	}

	return &ChromaStore{
		rest: &restClient{
			base:    base,
			client:  o.httpClientOr(&http.Client{Timeout: 30 * time.Second}),
			headers: headers,
		},
		collection: cfg.Collection,
		logger:     logger,
		metrics:    NewMetrics(logger),
	}, nil
}

func (s *ChromaStore) Name() string { return "chroma" }

// chromaNormalize converts a cosine distance to the canonical similarity.
func chromaNormalize(distance float64) float64 {
	return 1 - distance/2
}

type chromaCollection struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Metadata map[string]any `json:"metadata"`
}

// getCollection fetches the collection by name. A nil result with nil
// error means the collection is absent.
func (s *ChromaStore) getCollection(ctx context.Context) (*chromaCollection, error) {
	var col chromaCollection
	err := s.rest.doJSON(ctx, http.MethodGet, "/api/v1/collections/"+s.collection, nil, &col)
	if err != nil {
		switch httpStatus(err) {
		// Chroma versions disagree on the status for a missing
		// collection.
		case http.StatusBadRequest, http.StatusNotFound, http.StatusInternalServerError:
			return nil, nil
		}
		return nil, fmt.Errorf("fetching collection %s: %w", s.collection, err)
	}
	return &col, nil
}

// EnsureCollection creates the collection with cosine space and a recorded
// dimension, recreating it when the recorded dimension differs.
func (s *ChromaStore) EnsureCollection(ctx context.Context, dimension int) error {
	start := time.Now()
	var opErr error
	defer func() { s.metrics.RecordOperation(ctx, s.Name(), "ensure", time.Since(start), opErr) }()

	if dimension <= 0 {
		opErr = fmt.Errorf("%w: dimension must be positive", ErrInvalidConfig)
		return opErr
	}

	col, err := s.getCollection(ctx)
	if err != nil {
		opErr = err
		return opErr
	}

	if col != nil {
		current := 0
		if v, ok := col.Metadata["dimension"].(float64); ok {
			current = int(v)
		}
		if current == dimension {
			s.collectionID = col.ID
			return nil
		}
		s.logger.Warn("dimension mismatch, dropping and recreating collection",
			zap.String("collection", s.collection),
			zap.Int("stored_dimension", current),
			zap.Int("new_dimension", dimension))
		if err := s.rest.doJSON(ctx, http.MethodDelete, "/api/v1/collections/"+s.collection, nil, nil); err != nil {
			opErr = fmt.Errorf("dropping collection %s: %w", s.collection, err)
			return opErr
		}
	}

	var created chromaCollection
	if err := s.rest.doJSON(ctx, http.MethodPost, "/api/v1/collections", map[string]any{
		"name": s.collection,
		"metadata": map[string]any{
			"hnsw:space": "cosine",
			"dimension":  dimension,
		},
	}, &created); err != nil {
		opErr = fmt.Errorf("creating collection %s: %w", s.collection, err)
		return opErr
	}
	s.collectionID = created.ID
	s.logger.Info("collection ready",
		zap.String("backend", s.Name()),
		zap.String("collection", s.collection),
		zap.Int("dimension", dimension))
	return nil
}

// resolveID returns the collection UUID, fetching it when not cached.
func (s *ChromaStore) resolveID(ctx context.Context) (string, error) {
	if s.collectionID != "" {
		return s.collectionID, nil
	}
	col, err := s.getCollection(ctx)
	if err != nil {
		return "", err
	}
	if col == nil {
		return "", fmt.Errorf("%w: %s", ErrCollectionNotFound, s.collection)
	}
	s.collectionID = col.ID
	return col.ID, nil
}

// Upsert writes records in batches.
func (s *ChromaStore) Upsert(ctx context.Context, records []Record) error {
	start := time.Now()
	var opErr error
	defer func() { s.metrics.RecordOperation(ctx, s.Name(), "upsert", time.Since(start), opErr) }()

	if len(records) == 0 {
		return nil
	}
	id, err := s.resolveID(ctx)
	if err != nil {
		opErr = err
		return opErr
	}

	opErr = inBatches(ctx, records, upsertBatchSize, func(batch []Record) error {
		s.metrics.RecordBatch(ctx, s.Name(), len(batch))
		ids := make([]string, len(batch))
		embeddings := make([][]float32, len(batch))
		metadatas := make([]map[string]any, len(batch))
		documents := make([]string, len(batch))
		for i, rec := range batch {
			ids[i] = strconv.FormatInt(rec.DocumentID, 10)
			embeddings[i] = rec.Vector
			documents[i] = rec.Content
			metadatas[i] = map[string]any{
				"document_id":  rec.DocumentID,
				"content_type": rec.ContentType,
				"title":        rec.Title,
				"url":          rec.URL,
				"schema_type":  rec.SchemaType,
			}
		}
		if err := s.rest.doJSON(ctx, http.MethodPost, "/api/v1/collections/"+id+"/upsert", map[string]any{
			"ids":        ids,
			"embeddings": embeddings,
			"metadatas":  metadatas,
			"documents":  documents,
		}, nil); err != nil {
			s.logger.Error("batch upsert failed",
				zap.String("backend", s.Name()),
				zap.Int("batch_size", len(batch)),
				zap.Error(err))
			return fmt.Errorf("upserting documents: %w", err)
		}
		return nil
	})
	return opErr
}

// Search queries the collection and normalizes cosine distances.
func (s *ChromaStore) Search(ctx context.Context, vector []float32, params SearchParams) ([]Hit, error) {
	start := time.Now()
	var opErr error
	defer func() { s.metrics.RecordOperation(ctx, s.Name(), "search", time.Since(start), opErr) }()

	id, err := s.resolveID(ctx)
	if err != nil {
		opErr = err
		return nil, opErr
	}

	body := map[string]any{
		"query_embeddings": [][]float32{vector},
		"n_results":        params.limit(),
		"include":          []string{"metadatas", "documents", "distances"},
	}
	if params.ContentType != "" {
		body["where"] = map[string]any{"content_type": params.ContentType}
	}

	var resp struct {
		IDs       [][]string         `json:"ids"`
		Distances [][]float64        `json:"distances"`
		Metadatas [][]map[string]any `json:"metadatas"`
		Documents [][]string         `json:"documents"`
	}
	if err := s.rest.doJSON(ctx, http.MethodPost, "/api/v1/collections/"+id+"/query", body, &resp); err != nil {
		opErr = fmt.Errorf("querying collection %s: %w", s.collection, err)
		return nil, opErr
	}
	if len(resp.IDs) == 0 {
		return []Hit{}, nil
	}

	hits := make([]Hit, 0, len(resp.IDs[0]))
	for i := range resp.IDs[0] {
		hit := Hit{}
		if len(resp.Distances) > 0 && i < len(resp.Distances[0]) {
			hit.Score = chromaNormalize(resp.Distances[0][i])
		}
		if len(resp.Documents) > 0 && i < len(resp.Documents[0]) {
			hit.Content = resp.Documents[0][i]
		}
		if len(resp.Metadatas) > 0 && i < len(resp.Metadatas[0]) {
			meta := resp.Metadatas[0][i]
			if v, ok := meta["document_id"].(float64); ok {
				hit.DocumentID = int64(v)
			}
			hit.ContentType, _ = meta["content_type"].(string)
			hit.Title, _ = meta["title"].(string)
			hit.URL, _ = meta["url"].(string)
		}
		if hit.DocumentID == 0 {
			hit.DocumentID, _ = strconv.ParseInt(resp.IDs[0][i], 10, 64)
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// Count returns the number of stored documents.
func (s *ChromaStore) Count(ctx context.Context) (int, error) {
	id, err := s.resolveID(ctx)
	if err != nil {
		return 0, err
	}
	var count int
	if err := s.rest.doJSON(ctx, http.MethodGet, "/api/v1/collections/"+id+"/count", nil, &count); err != nil {
		return 0, fmt.Errorf("counting documents in %s: %w", s.collection, err)
	}
	return count, nil
}

// Clear drops the collection and reports its prior document count.
func (s *ChromaStore) Clear(ctx context.Context) (ClearResult, error) {
	start := time.Now()
	var opErr error
	defer func() { s.metrics.RecordOperation(ctx, s.Name(), "clear", time.Since(start), opErr) }()

	removed, err := s.Count(ctx)
	if err != nil {
		removed = 0
	}
	if err := s.rest.doJSON(ctx, http.MethodDelete, "/api/v1/collections/"+s.collection, nil, nil); err != nil {
		opErr = fmt.Errorf("dropping collection %s: %w", s.collection, err)
		return ClearResult{}, opErr
	}
	s.collectionID = ""
	s.logger.Info("collection cleared",
		zap.String("backend", s.Name()),
		zap.String("collection", s.collection),
		zap.Int("removed", removed))
	return ClearResult{Removed: removed}, nil
}

// Close is a no-op; the adapter holds no persistent connection.
func (s *ChromaStore) Close() error { return nil }

var _ Store = (*ChromaStore)(nil)
