package vectorstore

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/searchd/internal/config"
)

const pineconeControlPlaneURL = "https://api.pinecone.io"

// PineconeStore is a Store implementation for Pinecone serverless indexes.
// Index lifecycle goes through the control plane; vector operations hit the
// per-index data-plane host. Pinecone returns cosine similarity on [0,1],
// passed through unchanged.
type PineconeStore struct {
	control *restClient
	data    *restClient
	index   string
	// region is the serverless region used when creating the index.
	region  string
	logger  *zap.Logger
	metrics *Metrics
}

// NewPineconeStore creates a client for a Pinecone project. The API key is
// required; the index host is resolved lazily from the control plane.
func NewPineconeStore(cfg config.VectorStoreConfig, logger *zap.Logger, opts ...StoreOption) (*PineconeStore, error) {
	if err := ValidateCollectionName(cfg.Collection); err != nil {
		return nil, err
	}
	if !cfg.APIKey.IsSet() {
		return nil, fmt.Errorf("%w: pinecone requires an API key", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	o := newStoreOptions(opts)

	controlURL := o.controlURL
	if controlURL == "" {
		controlURL = pineconeControlPlaneURL
	}
	region := cfg.Environment
	if region == "" {
		region = "us-east-1"
	}

	headers := map[string]string{"Api-Key": cfg.APIKey.Value()}
	client := o.httpClientOr(&http.Client{Timeout: 30 * time.Second})

	return &PineconeStore{
		control: &restClient{base: controlURL, client: client, headers: headers},
		data:    &restClient{client: client, headers: headers},
		index:   cfg.Collection,
		region:  region,
		logger:  logger,
		metrics: NewMetrics(logger),
	}, nil
}

func (s *PineconeStore) Name() string { return "pinecone" }

type pineconeIndex struct {
	Name      string `json:"name"`
	Dimension int    `json:"dimension"`
	Host      string `json:"host"`
}

// describeIndex fetches index metadata. A nil result with nil error means
// the index is absent.
func (s *PineconeStore) describeIndex(ctx context.Context) (*pineconeIndex, error) {
	var idx pineconeIndex
	err := s.control.doJSON(ctx, http.MethodGet, "/indexes/"+s.index, nil, &idx)
	if err != nil {
		if httpStatus(err) == http.StatusNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("describing index %s: %w", s.index, err)
	}
	return &idx, nil
}

// hostURL normalizes a data-plane host to a full URL.
func hostURL(host string) string {
	if strings.Contains(host, "://") {
		return host
	}
	return "https://" + host
}

// EnsureCollection creates the serverless index with cosine metric,
// recreating it when the stored dimension no longer matches.
func (s *PineconeStore) EnsureCollection(ctx context.Context, dimension int) error {
	start := time.Now()
	var opErr error
	defer func() { s.metrics.RecordOperation(ctx, s.Name(), "ensure", time.Since(start), opErr) }()

	if dimension <= 0 {
		opErr = fmt.Errorf("%w: dimension must be positive", ErrInvalidConfig)
		return opErr
	}

	idx, err := s.describeIndex(ctx)
	if err != nil {
		opErr = err
		return opErr
	}

	if idx != nil {
		if idx.Dimension == dimension {
			s.data.base = hostURL(idx.Host)
			return nil
		}
		s.logger.Warn("dimension mismatch, dropping and recreating index",
			zap.String("index", s.index),
			zap.Int("stored_dimension", idx.Dimension),
			zap.Int("new_dimension", dimension))
		if err := s.control.doJSON(ctx, http.MethodDelete, "/indexes/"+s.index, nil, nil); err != nil {
			opErr = fmt.Errorf("dropping index %s: %w", s.index, err)
			return opErr
		}
	}

	var created pineconeIndex
	if err := s.control.doJSON(ctx, http.MethodPost, "/indexes", map[string]any{
		"name":      s.index,
		"dimension": dimension,
		"metric":    "cosine",
		"spec": map[string]any{
			"serverless": map[string]string{
				"cloud":  "aws",
				"region": s.region,
			},
		},
	}, &created); err != nil {
		opErr = fmt.Errorf("creating index %s: %w", s.index, err)
		return opErr
	}
	s.data.base = hostURL(created.Host)
	s.logger.Info("index ready",
		zap.String("backend", s.Name()),
		zap.String("index", s.index),
		zap.Int("dimension", dimension))
	return nil
}

// resolveHost ensures the data-plane base URL is known.
func (s *PineconeStore) resolveHost(ctx context.Context) error {
	if s.data.base != "" {
		return nil
	}
	idx, err := s.describeIndex(ctx)
	if err != nil {
		return err
	}
	if idx == nil {
		return fmt.Errorf("%w: %s", ErrCollectionNotFound, s.index)
	}
	s.data.base = hostURL(idx.Host)
	return nil
}

// Upsert writes records in batches.
func (s *PineconeStore) Upsert(ctx context.Context, records []Record) error {
	start := time.Now()
	var opErr error
	defer func() { s.metrics.RecordOperation(ctx, s.Name(), "upsert", time.Since(start), opErr) }()

	if len(records) == 0 {
		return nil
	}
	if err := s.resolveHost(ctx); err != nil {
		opErr = err
		return opErr
	}

	opErr = inBatches(ctx, records, upsertBatchSize, func(batch []Record) error {
		s.metrics.RecordBatch(ctx, s.Name(), len(batch))
		vectors := make([]map[string]any, len(batch))
		for i, rec := range batch {
			vectors[i] = map[string]any{
				"id":     strconv.FormatInt(rec.DocumentID, 10),
				"values": rec.Vector,
				"metadata": map[string]any{
					"document_id":  rec.DocumentID,
					"content_type": rec.ContentType,
					"title":        rec.Title,
					"content":      rec.Content,
					"url":          rec.URL,
					"schema_type":  rec.SchemaType,
				},
			}
		}
		if err := s.data.doJSON(ctx, http.MethodPost, "/vectors/upsert", map[string]any{
			"vectors": vectors,
		}, nil); err != nil {
			s.logger.Error("batch upsert failed",
				zap.String("backend", s.Name()),
				zap.Int("batch_size", len(batch)),
				zap.Error(err))
			return fmt.Errorf("upserting vectors: %w", err)
		}
		return nil
	})
	return opErr
}

// Search queries the index. Scores pass through unchanged.
func (s *PineconeStore) Search(ctx context.Context, vector []float32, params SearchParams) ([]Hit, error) {
	start := time.Now()
	var opErr error
	defer func() { s.metrics.RecordOperation(ctx, s.Name(), "search", time.Since(start), opErr) }()

	if err := s.resolveHost(ctx); err != nil {
		opErr = err
		return nil, opErr
	}

	body := map[string]any{
		"vector":          vector,
		"topK":            params.limit(),
		"includeMetadata": true,
	}
	if params.ContentType != "" {
		body["filter"] = map[string]any{
			"content_type": map[string]string{"$eq": params.ContentType},
		}
	}

	var resp struct {
		Matches []struct {
			ID       string         `json:"id"`
			Score    float64        `json:"score"`
			Metadata map[string]any `json:"metadata"`
		} `json:"matches"`
	}
	if err := s.data.doJSON(ctx, http.MethodPost, "/query", body, &resp); err != nil {
		opErr = fmt.Errorf("querying index %s: %w", s.index, err)
		return nil, opErr
	}

	hits := make([]Hit, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		hit := Hit{Score: m.Score}
		if v, ok := m.Metadata["document_id"].(float64); ok {
			hit.DocumentID = int64(v)
		} else {
			hit.DocumentID, _ = strconv.ParseInt(m.ID, 10, 64)
		}
		hit.ContentType, _ = m.Metadata["content_type"].(string)
		hit.Title, _ = m.Metadata["title"].(string)
		hit.Content, _ = m.Metadata["content"].(string)
		hit.URL, _ = m.Metadata["url"].(string)
		hits = append(hits, hit)
	}
	return hits, nil
}

// Count returns the total vector count from index stats.
func (s *PineconeStore) Count(ctx context.Context) (int, error) {
	if err := s.resolveHost(ctx); err != nil {
		return 0, err
	}
	var resp struct {
		TotalVectorCount int `json:"totalVectorCount"`
	}
	if err := s.data.doJSON(ctx, http.MethodPost, "/describe_index_stats", map[string]any{}, &resp); err != nil {
		return 0, fmt.Errorf("describing index stats for %s: %w", s.index, err)
	}
	return resp.TotalVectorCount, nil
}

// Clear deletes the index and reports its prior vector count.
func (s *PineconeStore) Clear(ctx context.Context) (ClearResult, error) {
	start := time.Now()
	var opErr error
	defer func() { s.metrics.RecordOperation(ctx, s.Name(), "clear", time.Since(start), opErr) }()

	removed, err := s.Count(ctx)
	if err != nil {
		removed = 0
	}
	if err := s.control.doJSON(ctx, http.MethodDelete, "/indexes/"+s.index, nil, nil); err != nil {
		opErr = fmt.Errorf("dropping index %s: %w", s.index, err)
		return ClearResult{}, opErr
	}
	s.data.base = ""
	s.logger.Info("index cleared",
		zap.String("backend", s.Name()),
		zap.String("index", s.index),
		zap.Int("removed", removed))
	return ClearResult{Removed: removed}, nil
}

// Close is a no-op; the adapter holds no persistent connection.
func (s *PineconeStore) Close() error { return nil }

var _ Store = (*PineconeStore)(nil)
