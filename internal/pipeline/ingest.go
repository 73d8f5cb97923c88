package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/searchd/internal/embeddings"
	"github.com/fyrsmithlabs/searchd/internal/repository"
	"github.com/fyrsmithlabs/searchd/internal/schema"
	"github.com/fyrsmithlabs/searchd/internal/vectorstore"
)

const defaultEmbedConcurrency = 4

// Ingestor loads documents from the repository, embeds them and writes
// them to the vector store.
type Ingestor struct {
	repo        repository.Repository
	provider    embeddings.Provider
	store       vectorstore.Store
	concurrency int
	logger      *zap.Logger
	tracer      trace.Tracer
	metrics     *Metrics
}

// IngestorOption customizes an Ingestor.
type IngestorOption func(*Ingestor)

// WithEmbedConcurrency bounds the number of documents embedded in parallel
// within one batch. Size it to the provider's rate limit.
func WithEmbedConcurrency(n int) IngestorOption {
	return func(i *Ingestor) {
		if n > 0 {
			i.concurrency = n
		}
	}
}

// NewIngestor creates an ingestion pipeline over the given collaborators.
func NewIngestor(repo repository.Repository, provider embeddings.Provider, store vectorstore.Store, logger *zap.Logger, opts ...IngestorOption) *Ingestor {
	if logger == nil {
		logger = zap.NewNop()
	}
	ing := &Ingestor{
		repo:        repo,
		provider:    provider,
		store:       store,
		concurrency: defaultEmbedConcurrency,
		logger:      logger,
		tracer:      otel.Tracer(pipelineInstrumentationName),
		metrics:     NewMetrics(logger),
	}
	for _, opt := range opts {
		opt(ing)
	}
	return ing
}

// Ingest embeds up to limit documents of the given content type starting at
// offset and upserts them into the vector store. A document whose embedding
// fails is logged and skipped; the rest of the batch continues. Only
// repository and collection-lifecycle failures abort the whole operation.
func (ing *Ingestor) Ingest(ctx context.Context, contentType string, limit, offset int) (*IngestResult, error) {
	ctx, span := ing.tracer.Start(ctx, "pipeline.ingest")
	defer span.End()
	span.SetAttributes(
		attribute.String("content_type", contentType),
		attribute.Int("limit", limit),
		attribute.Int("offset", offset),
	)

	start := time.Now()

	if err := ing.store.EnsureCollection(ctx, ing.provider.Dimension()); err != nil {
		return nil, fmt.Errorf("ensuring collection: %w", err)
	}

	docs, total, err := ing.repo.ListDocuments(ctx, repository.ListOptions{
		ContentType: contentType,
		Limit:       limit,
		Offset:      offset,
	})
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	if len(docs) == 0 {
		// An empty batch is a valid terminal outcome for pagination.
		return &IngestResult{
			Status:  "error",
			Message: "no documents found",
		}, nil
	}

	ing.logger.Info("ingesting documents",
		zap.String("content_type", contentType),
		zap.Int("batch", len(docs)),
		zap.Int("total", total),
		zap.Int("offset", offset))

	// Embed in parallel but keep repository order: slot i belongs to
	// docs[i], nil marks a skipped document.
	vectors := make([][]float32, len(docs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ing.concurrency)
	for i, doc := range docs {
		g.Go(func() error {
			input := doc.Title + "\n\n" + doc.Content
			vec, err := ing.provider.GetEmbedding(gctx, input)
			if err != nil {
				ing.logger.Warn("skipping document, embedding failed",
					zap.Int64("document_id", doc.ID),
					zap.String("content_type", doc.ContentType),
					zap.Error(err))
				return nil
			}
			vectors[i] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	records := make([]vectorstore.Record, 0, len(docs))
	for i, doc := range docs {
		if vectors[i] == nil {
			continue
		}
		records = append(records, vectorstore.Record{
			DocumentID:  doc.ID,
			ContentType: doc.ContentType,
			Title:       doc.Title,
			Content:     doc.Content,
			URL:         doc.URL,
			SchemaType:  schema.MapType(doc.ContentType),
			Vector:      vectors[i],
		})
	}
	skipped := len(docs) - len(records)
	ing.metrics.RecordIngest(ctx, contentType, len(records), skipped, time.Since(start))

	if len(records) == 0 {
		return &IngestResult{
			Status:  "error",
			Message: "all document embeddings failed",
			Total:   total,
		}, nil
	}

	if err := ing.store.Upsert(ctx, records); err != nil {
		return &IngestResult{
			Status:    "error",
			Message:   "upserting documents failed",
			Total:     total,
			Processed: len(records),
			Output:    err.Error(),
		}, fmt.Errorf("upserting documents: %w", err)
	}

	return &IngestResult{
		Status:    "success",
		Message:   "content ingested successfully",
		Total:     total,
		Processed: len(records),
		Output:    fmt.Sprintf("upserted %d of %d documents into %s", len(records), len(docs), ing.store.Name()),
	}, nil
}
