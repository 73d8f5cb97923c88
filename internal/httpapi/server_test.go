package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/searchd/internal/config"
	"github.com/fyrsmithlabs/searchd/internal/pipeline"
	"github.com/fyrsmithlabs/searchd/internal/schema"
	"github.com/fyrsmithlabs/searchd/internal/vectorstore"
)

type stubSearcher struct {
	results   []pipeline.SearchResult
	lastQuery string
	lastParam pipeline.QueryParams
}

func (s *stubSearcher) Search(ctx context.Context, query string, params pipeline.QueryParams) ([]pipeline.SearchResult, error) {
	s.lastQuery = query
	s.lastParam = params
	return s.results, nil
}

type stubIngestor struct {
	result          *pipeline.IngestResult
	lastContentType string
	lastLimit       int
	lastOffset      int
}

func (s *stubIngestor) Ingest(ctx context.Context, contentType string, limit, offset int) (*pipeline.IngestResult, error) {
	s.lastContentType = contentType
	s.lastLimit = limit
	s.lastOffset = offset
	return s.result, nil
}

type stubClearer struct {
	removed int
}

func (s *stubClearer) Clear(ctx context.Context) (vectorstore.ClearResult, error) {
	return vectorstore.ClearResult{Removed: s.removed}, nil
}

func testResults() []pipeline.SearchResult {
	return []pipeline.SearchResult{
		{
			URL:         "https://example.com/getting-started",
			Name:        "Getting Started",
			Site:        "Example Site",
			Score:       0.93,
			Description: "A guide to getting started.",
			SchemaObject: schema.Object{
				"@type":    "Article",
				"headline": "Getting Started",
			},
		},
		{
			URL:         "https://example.com/about",
			Name:        "About Us",
			Site:        "Example Site",
			Score:       0.61,
			Description: "Who we are.",
			SchemaObject: schema.Object{
				"@type":    "WebPage",
				"headline": "About Us",
			},
		},
	}
}

func setupTestServer(t *testing.T) (*Server, *stubSearcher, *stubIngestor, *stubClearer) {
	t.Helper()
	searcher := &stubSearcher{results: testResults()}
	ingestor := &stubIngestor{result: &pipeline.IngestResult{
		Status: "success", Message: "content ingested successfully", Total: 5, Processed: 5,
	}}
	clearer := &stubClearer{removed: 5}

	cfg := &config.Config{
		SiteName:            "Example Site",
		ChatbotInstructions: "Answer from the search results only.",
	}
	cfg.Server.Host = "localhost"
	cfg.Server.Port = 9090

	server, err := NewServer(searcher, ingestor, clearer, cfg, zap.NewNop())
	require.NoError(t, err)
	return server, searcher, ingestor, clearer
}

func TestNewServer(t *testing.T) {
	t.Run("creates server with valid dependencies", func(t *testing.T) {
		server, _, _, _ := setupTestServer(t)
		assert.NotNil(t, server)
		assert.NotNil(t, server.echo)
	})

	t.Run("returns error when logger is nil", func(t *testing.T) {
		_, err := NewServer(&stubSearcher{}, &stubIngestor{}, &stubClearer{}, &config.Config{}, nil)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "logger is required")
	})

	t.Run("returns error when collaborators are nil", func(t *testing.T) {
		_, err := NewServer(nil, nil, nil, &config.Config{}, zap.NewNop())
		assert.Error(t, err)
	})
}

func TestHandleHealth(t *testing.T) {
	server, _, _, _ := setupTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	server.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestHandleMetrics(t *testing.T) {
	server, _, _, _ := setupTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	server.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleAskJSON(t *testing.T) {
	server, searcher, _, _ := setupTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/ask?query=getting+started&streaming=false&limit=5&content_type=post", nil)
	rec := httptest.NewRecorder()
	server.echo.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "getting started", searcher.lastQuery)
	assert.Equal(t, 5, searcher.lastParam.Limit)
	assert.Equal(t, "post", searcher.lastParam.ContentType)

	var resp AskResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.QueryID)
	assert.Equal(t, "getting started", resp.Query)
	assert.Equal(t, "Answer from the search results only.", resp.ChatbotInstructions)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "Getting Started", resp.Results[0].Name)
	assert.InDelta(t, 0.93, resp.Results[0].Score, 1e-9)
}

func TestHandleAskPostBody(t *testing.T) {
	server, searcher, _, _ := setupTestServer(t)

	body := `{"query":"getting started","streaming":false,"site":"Other Site","query_id":"q-123"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/ask", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	server.echo.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Other Site", searcher.lastParam.Site)

	var resp AskResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "q-123", resp.QueryID)
}

func TestHandleAskMissingQuery(t *testing.T) {
	server, _, _, _ := setupTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/ask", nil)
	rec := httptest.NewRecorder()
	server.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleAskStreaming(t *testing.T) {
	server, _, _, _ := setupTestServer(t)

	// Streaming is the default.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/ask?query=getting+started", nil)
	rec := httptest.NewRecorder()
	server.echo.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get(echo.HeaderContentType))

	body := rec.Body.String()
	assert.True(t, strings.HasPrefix(body, ": keep-alive\n\n"))
	assert.Equal(t, 2, strings.Count(body, "event: result\n"))
	assert.Equal(t, 1, strings.Count(body, "event: done\n"))

	// Each result event carries one serialized SearchResult.
	frames := strings.Split(strings.TrimSpace(body), "\n\n")
	require.GreaterOrEqual(t, len(frames), 4)
	first := frames[1]
	require.True(t, strings.HasPrefix(first, "event: result\ndata: "))
	var result pipeline.SearchResult
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(first, "event: result\ndata: ")), &result))
	assert.Equal(t, "Getting Started", result.Name)

	// The done event carries the envelope without the result list.
	last := frames[len(frames)-1]
	require.True(t, strings.HasPrefix(last, "event: done\ndata: "))
	var done AskResponse
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(last, "event: done\ndata: ")), &done))
	assert.NotEmpty(t, done.QueryID)
	assert.Empty(t, done.Results)
	assert.Equal(t, "Answer from the search results only.", done.ChatbotInstructions)
}

func TestHandleIngest(t *testing.T) {
	server, _, ingestor, _ := setupTestServer(t)

	body := `{"content_type":"page","limit":50,"offset":10}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/ingest", bytes.NewReader([]byte(body)))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	server.echo.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "page", ingestor.lastContentType)
	assert.Equal(t, 50, ingestor.lastLimit)
	assert.Equal(t, 10, ingestor.lastOffset)

	var result pipeline.IngestResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "success", result.Status)
	assert.Equal(t, 5, result.Processed)
}

func TestHandleIngestDefaults(t *testing.T) {
	server, _, ingestor, _ := setupTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/ingest", strings.NewReader(`{}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	server.echo.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "post", ingestor.lastContentType)
	assert.Equal(t, 100, ingestor.lastLimit)
	assert.Zero(t, ingestor.lastOffset)
}

func TestHandleClear(t *testing.T) {
	server, _, _, _ := setupTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/clear", nil)
	rec := httptest.NewRecorder()
	server.echo.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp ClearResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, 5, resp.Removed)
}
