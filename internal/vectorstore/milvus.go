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
	milvusDefaultHost = "localhost"
	milvusDefaultPort = 19530
)

// MilvusStore is a Store implementation speaking the Milvus v2 REST API.
// Milvus reports L2 distance; similarity = 1 - d/20, a calibration
// heuristic kept for compatibility with existing deployments.
type MilvusStore struct {
	rest       *restClient
	collection string
	logger     *zap.Logger
	metrics    *Metrics
}

// NewMilvusStore creates a client for a Milvus server.
func NewMilvusStore(cfg config.VectorStoreConfig, logger *zap.Logger, opts ...StoreOption) (*MilvusStore, error) {
	if err := ValidateCollectionName(cfg.Collection); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	o := newStoreOptions(opts)

	host := cfg.Host
	if host == "" {
		host = milvusDefaultHost
	}
	port := cfg.Port
	if port == 0 {
		port = milvusDefaultPort
	}

	headers := map[string]string{}
	if cfg.APIKey.IsSet() {
		headers["Authorization"] = "Bearer " + cfg.APIKey.Value()
	}

	base := o.baseURL
	if base == "" {
		base = fmt.Sprintf("http://%s:%d", host, port)
	}

	return &MilvusStore{
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

func (s *MilvusStore) Name() string { return "milvus" }

// milvusNormalize converts an L2 distance to the canonical similarity.
func milvusNormalize(distance float64) float64 {
	return 1 - distance/20
}

type milvusEnvelope struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e milvusEnvelope) ok() bool {
	// Older servers report 200 for success, newer ones 0.
	return e.Code == 0 || e.Code == 200
}

func (s *MilvusStore) post(ctx context.Context, path string, body, out any) error {
	if err := s.rest.doJSON(ctx, http.MethodPost, path, body, out); err != nil {
		return err
	}
	return nil
}

// EnsureCollection creates the collection with an HNSW L2 index and a
// filterable content_type field, recreating it on dimension mismatch.
func (s *MilvusStore) EnsureCollection(ctx context.Context, dimension int) error {
	start := time.Now()
	var opErr error
	defer func() { s.metrics.RecordOperation(ctx, s.Name(), "ensure", time.Since(start), opErr) }()

	if dimension <= 0 {
		opErr = fmt.Errorf("%w: dimension must be positive", ErrInvalidConfig)
		return opErr
	}

	var hasResp struct {
		milvusEnvelope
		Data struct {
			Has bool `json:"has"`
		} `json:"data"`
	}
	if err := s.post(ctx, "/v2/vectordb/collections/has", map[string]string{"collectionName": s.collection}, &hasResp); err != nil {
		opErr = fmt.Errorf("checking collection %s: %w", s.collection, err)
		return opErr
	}
	if !hasResp.ok() {
		opErr = fmt.Errorf("checking collection %s: %s", s.collection, hasResp.Message)
		return opErr
	}

	if hasResp.Data.Has {
		current, err := s.describeDimension(ctx)
		if err != nil {
			opErr = err
			return opErr
		}
		if current == dimension {
			return nil
		}
		s.logger.Warn("dimension mismatch, dropping and recreating collection",
			zap.String("collection", s.collection),
			zap.Int("stored_dimension", current),
			zap.Int("new_dimension", dimension))
		if err := s.drop(ctx); err != nil {
			opErr = err
			return opErr
		}
	}

	opErr = s.create(ctx, dimension)
	return opErr
}

func (s *MilvusStore) describeDimension(ctx context.Context) (int, error) {
	var resp struct {
		milvusEnvelope
		Data struct {
			Fields []struct {
				Name   string `json:"name"`
				Params []struct {
					Key   string `json:"key"`
					Value string `json:"value"`
				} `json:"params"`
			} `json:"fields"`
		} `json:"data"`
	}
	if err := s.post(ctx, "/v2/vectordb/collections/describe", map[string]string{"collectionName": s.collection}, &resp); err != nil {
		return 0, fmt.Errorf("describing collection %s: %w", s.collection, err)
	}
	if !resp.ok() {
		return 0, fmt.Errorf("describing collection %s: %s", s.collection, resp.Message)
	}
	for _, f := range resp.Data.Fields {
		if f.Name != "vector" {
			continue
		}
		for _, p := range f.Params {
			if p.Key == "dim" {
				dim, err := strconv.Atoi(p.Value)
				if err != nil {
					return 0, fmt.Errorf("parsing dimension %q: %w", p.Value, err)
				}
				return dim, nil
			}
		}
	}
	return 0, fmt.Errorf("collection %s has no vector field", s.collection)
}

func (s *MilvusStore) create(ctx context.Context, dimension int) error {
	body := map[string]any{
		"collectionName": s.collection,
		"schema": map[string]any{
			"fields": []map[string]any{
				{"fieldName": "id", "dataType": "Int64", "isPrimary": true},
				{"fieldName": "vector", "dataType": "FloatVector", "elementTypeParams": map[string]string{"dim": strconv.Itoa(dimension)}},
				{"fieldName": "content_type", "dataType": "VarChar", "elementTypeParams": map[string]string{"max_length": "64"}},
				{"fieldName": "title", "dataType": "VarChar", "elementTypeParams": map[string]string{"max_length": "1024"}},
				{"fieldName": "content", "dataType": "VarChar", "elementTypeParams": map[string]string{"max_length": "65535"}},
				{"fieldName": "url", "dataType": "VarChar", "elementTypeParams": map[string]string{"max_length": "2048"}},
				{"fieldName": "schema_type", "dataType": "VarChar", "elementTypeParams": map[string]string{"max_length": "64"}},
			},
		},
		"indexParams": []map[string]any{
			{
				"fieldName":  "vector",
				"indexName":  "vector_idx",
				"metricType": "L2",
				"params":     map[string]any{"index_type": "HNSW", "M": "8", "efConstruction": "64"},
			},
		},
	}
	var resp milvusEnvelope
	if err := s.post(ctx, "/v2/vectordb/collections/create", body, &resp); err != nil {
		return fmt.Errorf("creating collection %s: %w", s.collection, err)
	}
	if !resp.ok() {
		return fmt.Errorf("creating collection %s: %s", s.collection, resp.Message)
	}
	s.logger.Info("collection ready",
		zap.String("backend", s.Name()),
		zap.String("collection", s.collection),
		zap.Int("dimension", dimension))
	return nil
}

func (s *MilvusStore) drop(ctx context.Context) error {
	var resp milvusEnvelope
	if err := s.post(ctx, "/v2/vectordb/collections/drop", map[string]string{"collectionName": s.collection}, &resp); err != nil {
		return fmt.Errorf("dropping collection %s: %w", s.collection, err)
	}
	if !resp.ok() {
		return fmt.Errorf("dropping collection %s: %s", s.collection, resp.Message)
	}
	return nil
}

// Upsert writes records in batches.
func (s *MilvusStore) Upsert(ctx context.Context, records []Record) error {
	start := time.Now()
	var opErr error
	defer func() { s.metrics.RecordOperation(ctx, s.Name(), "upsert", time.Since(start), opErr) }()

	if len(records) == 0 {
		return nil
	}

	opErr = inBatches(ctx, records, upsertBatchSize, func(batch []Record) error {
		s.metrics.RecordBatch(ctx, s.Name(), len(batch))
		rows := make([]map[string]any, len(batch))
		for i, rec := range batch {
			rows[i] = map[string]any{
				"id":           rec.DocumentID,
				"vector":       rec.Vector,
				"content_type": rec.ContentType,
				"title":        rec.Title,
				"content":      rec.Content,
				"url":          rec.URL,
				"schema_type":  rec.SchemaType,
			}
		}
		var resp milvusEnvelope
		if err := s.post(ctx, "/v2/vectordb/entities/upsert", map[string]any{
			"collectionName": s.collection,
			"data":           rows,
		}, &resp); err != nil {
			s.logger.Error("batch upsert failed",
				zap.String("backend", s.Name()),
				zap.Int("batch_size", len(batch)),
				zap.Error(err))
			return fmt.Errorf("upserting entities: %w", err)
		}
		if !resp.ok() {
			s.logger.Error("batch upsert rejected",
				zap.String("backend", s.Name()),
				zap.String("message", resp.Message))
			return fmt.Errorf("upserting entities: %s", resp.Message)
		}
		return nil
	})
	return opErr
}

// Search queries the collection and normalizes L2 distances.
func (s *MilvusStore) Search(ctx context.Context, vector []float32, params SearchParams) ([]Hit, error) {
	start := time.Now()
	var opErr error
	defer func() { s.metrics.RecordOperation(ctx, s.Name(), "search", time.Since(start), opErr) }()

	body := map[string]any{
		"collectionName": s.collection,
		"data":           [][]float32{vector},
		"annsField":      "vector",
		"limit":          params.limit(),
		"outputFields":   []string{"id", "content_type", "title", "content", "url"},
	}
	if params.ContentType != "" {
		body["filter"] = fmt.Sprintf("content_type == %q", params.ContentType)
	}

	var resp struct {
		milvusEnvelope
		Data []struct {
			ID          int64   `json:"id"`
			Distance    float64 `json:"distance"`
			ContentType string  `json:"content_type"`
			Title       string  `json:"title"`
			Content     string  `json:"content"`
			URL         string  `json:"url"`
		} `json:"data"`
	}
	if err := s.post(ctx, "/v2/vectordb/entities/search", body, &resp); err != nil {
		opErr = fmt.Errorf("searching collection %s: %w", s.collection, err)
		return nil, opErr
	}
	if !resp.ok() {
		opErr = fmt.Errorf("searching collection %s: %s", s.collection, resp.Message)
		return nil, opErr
	}

	hits := make([]Hit, 0, len(resp.Data))
	for _, d := range resp.Data {
		hits = append(hits, Hit{
			DocumentID:  d.ID,
			ContentType: d.ContentType,
			Title:       d.Title,
			Content:     d.Content,
			URL:         d.URL,
			Score:       milvusNormalize(d.Distance),
		})
	}
	return hits, nil
}

// Count returns the number of stored entities via a count(*) query.
func (s *MilvusStore) Count(ctx context.Context) (int, error) {
	var resp struct {
		milvusEnvelope
		Data []map[string]any `json:"data"`
	}
	if err := s.post(ctx, "/v2/vectordb/entities/query", map[string]any{
		"collectionName": s.collection,
		"filter":         "",
		"outputFields":   []string{"count(*)"},
	}, &resp); err != nil {
		return 0, fmt.Errorf("counting entities in %s: %w", s.collection, err)
	}
	if !resp.ok() {
		return 0, fmt.Errorf("counting entities in %s: %s", s.collection, resp.Message)
	}
	if len(resp.Data) == 0 {
		return 0, nil
	}
	if n, ok := resp.Data[0]["count(*)"].(float64); ok {
		return int(n), nil
	}
	return 0, nil
}

// Clear drops the collection and reports its prior entity count.
func (s *MilvusStore) Clear(ctx context.Context) (ClearResult, error) {
	start := time.Now()
	var opErr error
	defer func() { s.metrics.RecordOperation(ctx, s.Name(), "clear", time.Since(start), opErr) }()

	removed, err := s.Count(ctx)
	if err != nil {
		// Absent collections clear to nothing.
		removed = 0
	}
	if err := s.drop(ctx); err != nil {
		opErr = err
		return ClearResult{}, opErr
	}
	s.logger.Info("collection cleared",
		zap.String("backend", s.Name()),
		zap.String("collection", s.collection),
		zap.Int("removed", removed))
	return ClearResult{Removed: removed}, nil
}

// Close is a no-op; the adapter holds no persistent connection.
func (s *MilvusStore) Close() error { return nil }

var _ Store = (*MilvusStore)(nil)
