package pipeline

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const pipelineInstrumentationName = "github.com/fyrsmithlabs/searchd/internal/pipeline"

// Metrics holds ingest and query pipeline metrics.
type Metrics struct {
	meter          metric.Meter
	logger         *zap.Logger
	ingestDuration metric.Float64Histogram
	ingested       metric.Int64Counter
	skipped        metric.Int64Counter
	searchDuration metric.Float64Histogram
	searchResults  metric.Int64Histogram
}

// NewMetrics creates a new Metrics instance for the pipelines.
func NewMetrics(logger *zap.Logger) *Metrics {
	m := &Metrics{
		meter:  otel.Meter(pipelineInstrumentationName),
		logger: logger,
	}
	m.init()
	return m
}

func (m *Metrics) init() {
	var err error

	m.ingestDuration, err = m.meter.Float64Histogram(
		"searchd.pipeline.ingest_duration_seconds",
		metric.WithDescription("Duration of one ingestion batch in seconds, labeled by content type"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0, 120.0),
	)
	if err != nil {
		m.logger.Warn("failed to create ingest duration histogram", zap.Error(err))
	}

	m.ingested, err = m.meter.Int64Counter(
		"searchd.pipeline.documents_ingested_total",
		metric.WithDescription("Total documents embedded and upserted, labeled by content type"),
		metric.WithUnit("{document}"),
	)
	if err != nil {
		m.logger.Warn("failed to create ingested counter", zap.Error(err))
	}

	m.skipped, err = m.meter.Int64Counter(
		"searchd.pipeline.documents_skipped_total",
		metric.WithDescription("Total documents skipped because their embedding failed, labeled by content type"),
		metric.WithUnit("{document}"),
	)
	if err != nil {
		m.logger.Warn("failed to create skipped counter", zap.Error(err))
	}

	m.searchDuration, err = m.meter.Float64Histogram(
		"searchd.pipeline.search_duration_seconds",
		metric.WithDescription("Duration of one search in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0),
	)
	if err != nil {
		m.logger.Warn("failed to create search duration histogram", zap.Error(err))
	}

	m.searchResults, err = m.meter.Int64Histogram(
		"searchd.pipeline.search_results",
		metric.WithDescription("Number of results returned per search"),
		metric.WithUnit("{result}"),
	)
	if err != nil {
		m.logger.Warn("failed to create search results histogram", zap.Error(err))
	}
}

// RecordIngest records one ingestion batch.
func (m *Metrics) RecordIngest(ctx context.Context, contentType string, processed, skipped int, duration time.Duration) {
	attrs := metric.WithAttributes(attribute.String("content_type", contentType))
	if m.ingestDuration != nil {
		m.ingestDuration.Record(ctx, duration.Seconds(), attrs)
	}
	if m.ingested != nil {
		m.ingested.Add(ctx, int64(processed), attrs)
	}
	if m.skipped != nil && skipped > 0 {
		m.skipped.Add(ctx, int64(skipped), attrs)
	}
}

// RecordSearch records one completed search.
func (m *Metrics) RecordSearch(ctx context.Context, results int, duration time.Duration) {
	if m.searchDuration != nil {
		m.searchDuration.Record(ctx, duration.Seconds())
	}
	if m.searchResults != nil {
		m.searchResults.Record(ctx, int64(results))
	}
}
