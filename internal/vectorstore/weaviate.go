package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/searchd/internal/config"
)

const (
	weaviateDefaultHost = "localhost"
	weaviateDefaultPort = 8080
)

// WeaviateStore is a Store implementation speaking the Weaviate REST and
// GraphQL APIs with externally provided vectors. Weaviate's certainty is
// already on [0,1] and passes through unchanged.
type WeaviateStore struct {
	rest    *restClient
	class   string
	logger  *zap.Logger
	metrics *Metrics
}

// NewWeaviateStore creates a client for a Weaviate server.
func NewWeaviateStore(cfg config.VectorStoreConfig, logger *zap.Logger, opts ...StoreOption) (*WeaviateStore, error) {
	if err := ValidateCollectionName(cfg.Collection); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	o := newStoreOptions(opts)

	host := cfg.Host
	if host == "" {
		host = weaviateDefaultHost
	}
	port := cfg.Port
	if port == 0 {
		port = weaviateDefaultPort
	}

	headers := map[string]string{}
	if cfg.APIKey.IsSet() {
		headers["Authorization"] = "Bearer " + cfg.APIKey.Value()
	}

	base := o.baseURL
	if base == "" {
		base = fmt.Sprintf("http://%s:%d", host, port)
	}

	return &WeaviateStore{
		rest: &restClient{
			base:    base,
			client:  o.httpClientOr(&http.Client{Timeout: 30 * time.Second}),
			headers: headers,
		},
		class:   weaviateClassName(cfg.Collection),
		logger:  logger,
		metrics: NewMetrics(logger),
	}, nil
}

func (s *WeaviateStore) Name() string { return "weaviate" }

// weaviateClassName derives a Weaviate class from a collection name:
// separators stripped, first letter capitalized.
func weaviateClassName(collection string) string {
	cleaned := strings.NewReplacer("-", "", "_", "").Replace(collection)
	if cleaned == "" {
		return ""
	}
	return strings.ToUpper(cleaned[:1]) + cleaned[1:]
}

// weaviateObjectID derives a stable UUIDv5 object ID from a document ID.
func weaviateObjectID(documentID int64) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("doc-%d", documentID))).String()
}

type weaviateClass struct {
	Class       string `json:"class"`
	Description string `json:"description"`
}

// getClass fetches the class definition. A nil result with nil error means
// the class is absent.
func (s *WeaviateStore) getClass(ctx context.Context) (*weaviateClass, error) {
	var cls weaviateClass
	err := s.rest.doJSON(ctx, http.MethodGet, "/v1/schema/"+s.class, nil, &cls)
	if err != nil {
		if httpStatus(err) == http.StatusNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("fetching class %s: %w", s.class, err)
	}
	return &cls, nil
}

// classDimension parses the dimension recorded in the class description.
func classDimension(description string) int {
	const prefix = "dim="
	if i := strings.Index(description, prefix); i >= 0 {
		if n, err := strconv.Atoi(strings.TrimSpace(description[i+len(prefix):])); err == nil {
			return n
		}
	}
	return 0
}

// EnsureCollection creates the class with vectorizer disabled, recording
// the dimension in its description, and recreates it on mismatch.
func (s *WeaviateStore) EnsureCollection(ctx context.Context, dimension int) error {
	start := time.Now()
	var opErr error
	defer func() { s.metrics.RecordOperation(ctx, s.Name(), "ensure", time.Since(start), opErr) }()

	if dimension <= 0 {
		opErr = fmt.Errorf("%w: dimension must be positive", ErrInvalidConfig)
		return opErr
	}

	cls, err := s.getClass(ctx)
	if err != nil {
		opErr = err
		return opErr
	}

	if cls != nil {
		if classDimension(cls.Description) == dimension {
			return nil
		}
		s.logger.Warn("dimension mismatch, dropping and recreating class",
			zap.String("class", s.class),
			zap.Int("stored_dimension", classDimension(cls.Description)),
			zap.Int("new_dimension", dimension))
		if err := s.rest.doJSON(ctx, http.MethodDelete, "/v1/schema/"+s.class, nil, nil); err != nil {
			opErr = fmt.Errorf("dropping class %s: %w", s.class, err)
			return opErr
		}
	}

	textProp := func(name string) map[string]any {
		return map[string]any{"name": name, "dataType": []string{"text"}}
	}
	if err := s.rest.doJSON(ctx, http.MethodPost, "/v1/schema", map[string]any{
		"class":       s.class,
		"description": fmt.Sprintf("dim=%d", dimension),
		"vectorizer":  "none",
		"properties": []map[string]any{
			{"name": "document_id", "dataType": []string{"int"}},
			textProp("content_type"),
			textProp("title"),
			textProp("content"),
			textProp("url"),
			textProp("schema_type"),
		},
	}, nil); err != nil {
		opErr = fmt.Errorf("creating class %s: %w", s.class, err)
		return opErr
	}
	s.logger.Info("class ready",
		zap.String("backend", s.Name()),
		zap.String("class", s.class),
		zap.Int("dimension", dimension))
	return nil
}

// Upsert writes records in batches through the batch objects endpoint.
func (s *WeaviateStore) Upsert(ctx context.Context, records []Record) error {
	start := time.Now()
	var opErr error
	defer func() { s.metrics.RecordOperation(ctx, s.Name(), "upsert", time.Since(start), opErr) }()

	if len(records) == 0 {
		return nil
	}

	opErr = inBatches(ctx, records, upsertBatchSize, func(batch []Record) error {
		s.metrics.RecordBatch(ctx, s.Name(), len(batch))
		objects := make([]map[string]any, len(batch))
		for i, rec := range batch {
			objects[i] = map[string]any{
				"class":  s.class,
				"id":     weaviateObjectID(rec.DocumentID),
				"vector": rec.Vector,
				"properties": map[string]any{
					"document_id":  rec.DocumentID,
					"content_type": rec.ContentType,
					"title":        rec.Title,
					"content":      rec.Content,
					"url":          rec.URL,
					"schema_type":  rec.SchemaType,
				},
			}
		}
		if err := s.rest.doJSON(ctx, http.MethodPost, "/v1/batch/objects", map[string]any{
			"objects": objects,
		}, nil); err != nil {
			s.logger.Error("batch upsert failed",
				zap.String("backend", s.Name()),
				zap.Int("batch_size", len(batch)),
				zap.Error(err))
			return fmt.Errorf("batching objects: %w", err)
		}
		return nil
	})
	return opErr
}

// Search issues a GraphQL nearVector query. Certainty passes through as
// the similarity score.
func (s *WeaviateStore) Search(ctx context.Context, vector []float32, params SearchParams) ([]Hit, error) {
	start := time.Now()
	var opErr error
	defer func() { s.metrics.RecordOperation(ctx, s.Name(), "search", time.Since(start), opErr) }()

	vec, err := json.Marshal(vector)
	if err != nil {
		opErr = fmt.Errorf("marshaling vector: %w", err)
		return nil, opErr
	}

	where := ""
	if params.ContentType != "" {
		where = fmt.Sprintf(`, where: {path: ["content_type"], operator: Equal, valueText: %q}`, params.ContentType)
	}
	query := fmt.Sprintf(
		`{ Get { %s(nearVector: {vector: %s}, limit: %d%s) { document_id content_type title content url _additional { certainty } } } }`,
		s.class, vec, params.limit(), where)

	var resp struct {
		Data struct {
			Get map[string][]struct {
				DocumentID  int64  `json:"document_id"`
				ContentType string `json:"content_type"`
				Title       string `json:"title"`
				Content     string `json:"content"`
				URL         string `json:"url"`
				Additional  struct {
					Certainty float64 `json:"certainty"`
				} `json:"_additional"`
			} `json:"Get"`
		} `json:"data"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := s.rest.doJSON(ctx, http.MethodPost, "/v1/graphql", map[string]string{"query": query}, &resp); err != nil {
		opErr = fmt.Errorf("querying class %s: %w", s.class, err)
		return nil, opErr
	}
	if len(resp.Errors) > 0 {
		opErr = fmt.Errorf("querying class %s: %s", s.class, resp.Errors[0].Message)
		return nil, opErr
	}

	objects := resp.Data.Get[s.class]
	hits := make([]Hit, 0, len(objects))
	for _, o := range objects {
		hits = append(hits, Hit{
			DocumentID:  o.DocumentID,
			ContentType: o.ContentType,
			Title:       o.Title,
			Content:     o.Content,
			URL:         o.URL,
			Score:       o.Additional.Certainty,
		})
	}
	return hits, nil
}

// Count returns the object count via a GraphQL aggregate query.
func (s *WeaviateStore) Count(ctx context.Context) (int, error) {
	query := fmt.Sprintf(`{ Aggregate { %s { meta { count } } } }`, s.class)

	var resp struct {
		Data struct {
			Aggregate map[string][]struct {
				Meta struct {
					Count int `json:"count"`
				} `json:"meta"`
			} `json:"Aggregate"`
		} `json:"data"`
	}
	if err := s.rest.doJSON(ctx, http.MethodPost, "/v1/graphql", map[string]string{"query": query}, &resp); err != nil {
		return 0, fmt.Errorf("counting objects in %s: %w", s.class, err)
	}
	if rows := resp.Data.Aggregate[s.class]; len(rows) > 0 {
		return rows[0].Meta.Count, nil
	}
	return 0, nil
}

// Clear drops the class and reports its prior object count.
func (s *WeaviateStore) Clear(ctx context.Context) (ClearResult, error) {
	start := time.Now()
	var opErr error
	defer func() { s.metrics.RecordOperation(ctx, s.Name(), "clear", time.Since(start), opErr) }()

	removed, err := s.Count(ctx)
	if err != nil {
		removed = 0
	}
	if err := s.rest.doJSON(ctx, http.MethodDelete, "/v1/schema/"+s.class, nil, nil); err != nil {
		opErr = fmt.Errorf("dropping class %s: %w", s.class, err)
		return ClearResult{}, opErr
	}
	s.logger.Info("class cleared",
		zap.String("backend", s.Name()),
		zap.String("class", s.class),
		zap.Int("removed", removed))
	return ClearResult{Removed: removed}, nil
}

// Close is a no-op; the adapter holds no persistent connection.
func (s *WeaviateStore) Close() error { return nil }

var _ Store = (*WeaviateStore)(nil)
