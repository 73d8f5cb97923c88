package vectorstore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/searchd/internal/config"
)

const (
	qdrantDefaultHost = "localhost"

	// qdrantDefaultPort is the gRPC port, not the HTTP REST port 6333.
	qdrantDefaultPort = 6334
)

// QdrantStore is a Store implementation using Qdrant's native gRPC client.
// Qdrant returns cosine similarity scores already on [0,1], passed through
// unchanged.
type QdrantStore struct {
	client     *qdrant.Client
	collection string
	logger     *zap.Logger
	metrics    *Metrics
}

// NewQdrantStore connects to a Qdrant server over gRPC.
func NewQdrantStore(cfg config.VectorStoreConfig, logger *zap.Logger) (*QdrantStore, error) {
	if err := ValidateCollectionName(cfg.Collection); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	host := cfg.Host
	if host == "" {
		host = qdrantDefaultHost
	}
	port := cfg.Port
	if port == 0 {
		port = qdrantDefaultPort
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: cfg.APIKey.Value(),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	return &QdrantStore{
		client:     client,
		collection: cfg.Collection,
		logger:     logger,
		metrics:    NewMetrics(logger),
	}, nil
}

func (s *QdrantStore) Name() string { return "qdrant" }

// qdrantPointID derives a stable UUIDv5 point ID from a document ID, so
// re-ingesting a document overwrites its previous point.
func qdrantPointID(documentID int64) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("doc-%d", documentID))).String()
}

// EnsureCollection creates the collection with cosine distance and a
// keyword payload index on content_type, recreating it when the stored
// dimension no longer matches.
func (s *QdrantStore) EnsureCollection(ctx context.Context, dimension int) error {
	start := time.Now()
	var opErr error
	defer func() { s.metrics.RecordOperation(ctx, s.Name(), "ensure", time.Since(start), opErr) }()

	if dimension <= 0 {
		opErr = fmt.Errorf("%w: dimension must be positive", ErrInvalidConfig)
		return opErr
	}

	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		opErr = fmt.Errorf("checking collection %s: %w", s.collection, err)
		return opErr
	}

	if exists {
		info, err := s.client.GetCollectionInfo(ctx, s.collection)
		if err != nil {
			opErr = fmt.Errorf("describing collection %s: %w", s.collection, err)
			return opErr
		}
		current := int(info.GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize())
		if current == dimension {
			return nil
		}
		s.logger.Warn("dimension mismatch, dropping and recreating collection",
			zap.String("collection", s.collection),
			zap.Int("stored_dimension", current),
			zap.Int("new_dimension", dimension))
		if err := s.client.DeleteCollection(ctx, s.collection); err != nil {
			opErr = fmt.Errorf("dropping collection %s: %w", s.collection, err)
			return opErr
		}
	}

	if err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	}); err != nil {
		opErr = fmt.Errorf("creating collection %s: %w", s.collection, err)
		return opErr
	}

	if _, err := s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
		CollectionName: s.collection,
		FieldName:      "content_type",
		FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
	}); err != nil {
		opErr = fmt.Errorf("indexing content_type on %s: %w", s.collection, err)
		return opErr
	}

	s.logger.Info("collection ready",
		zap.String("backend", s.Name()),
		zap.String("collection", s.collection),
		zap.Int("dimension", dimension))
	return nil
}

// Upsert writes records in batches.
func (s *QdrantStore) Upsert(ctx context.Context, records []Record) error {
	start := time.Now()
	var opErr error
	defer func() { s.metrics.RecordOperation(ctx, s.Name(), "upsert", time.Since(start), opErr) }()

	if len(records) == 0 {
		return nil
	}

	opErr = inBatches(ctx, records, upsertBatchSize, func(batch []Record) error {
		s.metrics.RecordBatch(ctx, s.Name(), len(batch))
		points := make([]*qdrant.PointStruct, len(batch))
		for i, rec := range batch {
			points[i] = &qdrant.PointStruct{
				Id:      qdrant.NewIDUUID(qdrantPointID(rec.DocumentID)),
				Vectors: qdrant.NewVectors(rec.Vector...),
				Payload: map[string]*qdrant.Value{
					"document_id":  {Kind: &qdrant.Value_IntegerValue{IntegerValue: rec.DocumentID}},
					"content_type": {Kind: &qdrant.Value_StringValue{StringValue: rec.ContentType}},
					"title":        {Kind: &qdrant.Value_StringValue{StringValue: rec.Title}},
					"content":      {Kind: &qdrant.Value_StringValue{StringValue: rec.Content}},
					"url":          {Kind: &qdrant.Value_StringValue{StringValue: rec.URL}},
					"schema_type":  {Kind: &qdrant.Value_StringValue{StringValue: rec.SchemaType}},
				},
			}
		}
		if _, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: s.collection,
			Points:         points,
			Wait:           qdrant.PtrOf(true),
		}); err != nil {
			s.logger.Error("batch upsert failed",
				zap.String("backend", s.Name()),
				zap.Int("batch_size", len(batch)),
				zap.Error(err))
			return fmt.Errorf("upserting points: %w", err)
		}
		return nil
	})
	return opErr
}

// Search queries the collection, optionally filtered by content type.
func (s *QdrantStore) Search(ctx context.Context, vector []float32, params SearchParams) ([]Hit, error) {
	start := time.Now()
	var opErr error
	defer func() { s.metrics.RecordOperation(ctx, s.Name(), "search", time.Since(start), opErr) }()

	var filter *qdrant.Filter
	if params.ContentType != "" {
		filter = &qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch("content_type", params.ContentType),
			},
		}
	}

	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(params.limit())),
		WithPayload:    qdrant.NewWithPayload(true),
		Filter:         filter,
	})
	if err != nil {
		opErr = fmt.Errorf("searching collection %s: %w", s.collection, err)
		return nil, opErr
	}

	hits := make([]Hit, 0, len(points))
	for _, p := range points {
		payload := p.GetPayload()
		hits = append(hits, Hit{
			DocumentID:  payload["document_id"].GetIntegerValue(),
			ContentType: payload["content_type"].GetStringValue(),
			Title:       payload["title"].GetStringValue(),
			Content:     payload["content"].GetStringValue(),
			URL:         payload["url"].GetStringValue(),
			Score:       float64(p.GetScore()),
		})
	}
	return hits, nil
}

// Count returns the exact number of stored points.
func (s *QdrantStore) Count(ctx context.Context) (int, error) {
	count, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("counting points in %s: %w", s.collection, err)
	}
	return int(count), nil
}

// Clear drops the collection and reports its prior point count.
func (s *QdrantStore) Clear(ctx context.Context) (ClearResult, error) {
	start := time.Now()
	var opErr error
	defer func() { s.metrics.RecordOperation(ctx, s.Name(), "clear", time.Since(start), opErr) }()

	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		opErr = fmt.Errorf("checking collection %s: %w", s.collection, err)
		return ClearResult{}, opErr
	}
	if !exists {
		return ClearResult{}, nil
	}

	removed, err := s.Count(ctx)
	if err != nil {
		opErr = err
		return ClearResult{}, opErr
	}
	if err := s.client.DeleteCollection(ctx, s.collection); err != nil {
		opErr = fmt.Errorf("dropping collection %s: %w", s.collection, err)
		return ClearResult{}, opErr
	}
	s.logger.Info("collection cleared",
		zap.String("backend", s.Name()),
		zap.String("collection", s.collection),
		zap.Int("removed", removed))
	return ClearResult{Removed: removed}, nil
}

// Close closes the gRPC connection.
func (s *QdrantStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

var _ Store = (*QdrantStore)(nil)
