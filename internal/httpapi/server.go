// Package httpapi provides the HTTP API for searchd.
package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/searchd/internal/config"
	"github.com/fyrsmithlabs/searchd/internal/pipeline"
	"github.com/fyrsmithlabs/searchd/internal/vectorstore"
)

// Searcher answers semantic search queries.
type Searcher interface {
	Search(ctx context.Context, query string, params pipeline.QueryParams) ([]pipeline.SearchResult, error)
}

// Ingestor loads one batch of documents into the index.
type Ingestor interface {
	Ingest(ctx context.Context, contentType string, limit, offset int) (*pipeline.IngestResult, error)
}

// Clearer drops the index.
type Clearer interface {
	Clear(ctx context.Context) (vectorstore.ClearResult, error)
}

// Server provides HTTP endpoints for searchd.
type Server struct {
	echo     *echo.Echo
	searcher Searcher
	ingestor Ingestor
	clearer  Clearer
	cfg      *config.Config
	logger   *zap.Logger
}

// NewServer creates a new HTTP server.
func NewServer(searcher Searcher, ingestor Ingestor, clearer Clearer, cfg *config.Config, logger *zap.Logger) (*Server, error) {
	if searcher == nil || ingestor == nil || clearer == nil {
		return nil, fmt.Errorf("searcher, ingestor and clearer are required")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})

	s := &Server{
		echo:     e,
		searcher: searcher,
		ingestor: ingestor,
		clearer:  clearer,
		cfg:      cfg,
		logger:   logger,
	}

	// Register routes
	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	// Health check and metrics
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// API v1 routes
	v1 := s.echo.Group("/api/v1")
	v1.GET("/ask", s.handleAsk)
	v1.POST("/ask", s.handleAsk)
	v1.POST("/ingest", s.handleIngest)
	v1.POST("/clear", s.handleClear)
}

// AskRequest is the request for GET/POST /api/v1/ask. GET carries it in
// query parameters, POST in the JSON body.
type AskRequest struct {
	Query       string `json:"query" query:"query"`
	QueryID     string `json:"query_id" query:"query_id"`
	Site        string `json:"site" query:"site"`
	ContentType string `json:"content_type" query:"content_type"`
	Limit       int    `json:"limit" query:"limit"`
	// Streaming defaults to true when absent.
	Streaming *bool  `json:"streaming" query:"streaming"`
	Prev      string `json:"prev" query:"prev"`
	Mode      string `json:"mode" query:"mode"`
}

// AskResponse is the non-streaming response body for /api/v1/ask.
type AskResponse struct {
	QueryID             string                  `json:"query_id"`
	Query               string                  `json:"query"`
	Results             []pipeline.SearchResult `json:"results"`
	ChatbotInstructions string                  `json:"chatbot_instructions,omitempty"`
	Prev                string                  `json:"prev,omitempty"`
	Mode                string                  `json:"mode,omitempty"`
}

// IngestRequest is the request body for POST /api/v1/ingest.
type IngestRequest struct {
	ContentType string `json:"content_type"`
	Limit       int    `json:"limit"`
	Offset      int    `json:"offset"`
}

// ClearResponse is the response body for POST /api/v1/clear.
type ClearResponse struct {
	Status  string `json:"status"`
	Removed int    `json:"removed"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// handleAsk runs a search and returns results as JSON or as a
// server-sent-event stream.
func (s *Server) handleAsk(c echo.Context) error {
	var req AskRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid ask request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request")
	}
	if req.Query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query parameter is required")
	}

	results, err := s.searcher.Search(c.Request().Context(), req.Query, pipeline.QueryParams{
		Limit:       req.Limit,
		ContentType: req.ContentType,
		Site:        req.Site,
	})
	if err != nil {
		s.logger.Error("search failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "search failed")
	}

	resp := AskResponse{
		QueryID:             req.QueryID,
		Query:               req.Query,
		Results:             results,
		ChatbotInstructions: s.cfg.ChatbotInstructions,
		Prev:                req.Prev,
		Mode:                req.Mode,
	}
	if resp.QueryID == "" {
		resp.QueryID = uuid.NewString()
	}

	if req.Streaming == nil || *req.Streaming {
		return s.streamResults(c, resp)
	}
	return c.JSON(http.StatusOK, resp)
}

// handleIngest runs one ingestion batch.
func (s *Server) handleIngest(c echo.Context) error {
	var req IngestRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid ingest request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.ContentType == "" {
		req.ContentType = "post"
	}
	if req.Limit <= 0 {
		req.Limit = 100
	}

	result, err := s.ingestor.Ingest(c.Request().Context(), req.ContentType, req.Limit, req.Offset)
	if err != nil {
		s.logger.Error("ingest failed",
			zap.String("content_type", req.ContentType),
			zap.Error(err))
		if result != nil {
			return c.JSON(http.StatusInternalServerError, result)
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "ingest failed")
	}
	return c.JSON(http.StatusOK, result)
}

// handleClear drops the search index.
func (s *Server) handleClear(c echo.Context) error {
	result, err := s.clearer.Clear(c.Request().Context())
	if err != nil {
		s.logger.Error("clear failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "clear failed")
	}
	return c.JSON(http.StatusOK, ClearResponse{Status: "success", Removed: result.Removed})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
