package pipeline

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/searchd/internal/embeddings"
	"github.com/fyrsmithlabs/searchd/internal/repository"
	"github.com/fyrsmithlabs/searchd/internal/schema"
	"github.com/fyrsmithlabs/searchd/internal/snippet"
	"github.com/fyrsmithlabs/searchd/internal/vectorstore"
)

// Querier answers semantic search queries. It is fail-soft: embedding or
// backend failures return an empty result list, never an error, so one bad
// query cannot take down the serving path.
type Querier struct {
	provider embeddings.Provider
	store    vectorstore.Store
	repo     repository.Repository
	siteName string
	logger   *zap.Logger
	tracer   trace.Tracer
	metrics  *Metrics
}

// NewQuerier creates a query pipeline over the given collaborators. The
// site name labels every result.
func NewQuerier(provider embeddings.Provider, store vectorstore.Store, repo repository.Repository, siteName string, logger *zap.Logger) *Querier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Querier{
		provider: provider,
		store:    store,
		repo:     repo,
		siteName: siteName,
		logger:   logger,
		tracer:   otel.Tracer(pipelineInstrumentationName),
		metrics:  NewMetrics(logger),
	}
}

// Search embeds the query, finds the nearest documents and assembles
// results in the order the backend returned them. Hits whose document can
// no longer be fetched from the repository are dropped.
func (q *Querier) Search(ctx context.Context, query string, params QueryParams) ([]SearchResult, error) {
	ctx, span := q.tracer.Start(ctx, "pipeline.search")
	defer span.End()
	span.SetAttributes(
		attribute.String("content_type", params.ContentType),
		attribute.Int("limit", params.Limit),
	)

	start := time.Now()

	results := []SearchResult{}
	if strings.TrimSpace(query) == "" {
		return results, nil
	}

	vector, err := q.provider.GetEmbedding(ctx, query)
	if err != nil {
		q.logger.Warn("search degraded, query embedding failed", zap.Error(err))
		return results, nil
	}

	hits, err := q.store.Search(ctx, vector, vectorstore.SearchParams{
		Limit:       params.Limit,
		ContentType: params.ContentType,
	})
	if err != nil {
		q.logger.Warn("search degraded, vector store failed",
			zap.String("backend", q.store.Name()),
			zap.Error(err))
		return results, nil
	}

	site := params.Site
	if site == "" {
		site = q.siteName
	}

	for _, hit := range hits {
		doc, err := q.repo.GetDocument(ctx, hit.ContentType, hit.DocumentID)
		if err != nil {
			if !errors.Is(err, repository.ErrNotFound) {
				q.logger.Warn("dropping hit, document fetch failed",
					zap.Int64("document_id", hit.DocumentID),
					zap.Error(err))
			}
			// Deleted or unpublished since ingestion.
			continue
		}
		results = append(results, SearchResult{
			URL:          doc.URL,
			Name:         doc.Title,
			Site:         site,
			Score:        hit.Score,
			Description:  snippet.Generate(doc.Content, query),
			SchemaObject: schema.ObjectFor(*doc),
		})
	}

	q.metrics.RecordSearch(ctx, len(results), time.Since(start))
	q.logger.Debug("search completed",
		zap.Int("hits", len(hits)),
		zap.Int("results", len(results)),
		zap.Duration("duration", time.Since(start)))
	return results, nil
}
