// Searchd is a semantic content search daemon.
//
// It ingests documents from a content repository into a vector store and
// answers natural-language search queries over HTTP.
//
// Configuration is loaded from an optional YAML file and SEARCHD_*
// environment variables. See internal/config for details.
//
// Usage:
//
//	# Start server with defaults
//	searchd
//
//	# Start with a config file
//	searchd -config /etc/searchd/config.yaml
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/searchd/internal/config"
	"github.com/fyrsmithlabs/searchd/internal/embeddings"
	"github.com/fyrsmithlabs/searchd/internal/httpapi"
	"github.com/fyrsmithlabs/searchd/internal/logging"
	"github.com/fyrsmithlabs/searchd/internal/pipeline"
	"github.com/fyrsmithlabs/searchd/internal/repository"
	"github.com/fyrsmithlabs/searchd/internal/vectorstore"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("searchd by Fyrsmith Labs\n")
		fmt.Printf("Version:    %s\n", version)
		fmt.Printf("Commit:     %s\n", gitCommit)
		fmt.Printf("Build Date: %s\n", buildDate)
		os.Exit(0)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("Received signal %v, shutting down gracefully...", sig)
		cancel()
	}()

	if err := run(ctx, *configPath); err != nil {
		log.Fatalf("Server error: %v", err)
	}

	log.Println("Server shutdown complete")
}

// run wires all collaborators together and blocks until the context is
// cancelled or the server fails.
func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	logger.Info("starting searchd",
		zap.String("version", version),
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("backend", cfg.VectorStore.Backend))

	provider, err := embeddings.NewProvider(cfg.Embedding, logger)
	if err != nil {
		return fmt.Errorf("creating embedding provider: %w", err)
	}
	defer provider.Close()

	// Local providers can pull the model up front instead of failing the
	// first embedding request.
	if ensurer, ok := provider.(interface{ EnsureModel(context.Context) error }); ok {
		if err := ensurer.EnsureModel(ctx); err != nil {
			logger.Warn("embedding model not ready yet", zap.Error(err))
		}
	}

	store, err := vectorstore.NewStore(cfg.VectorStore, logger)
	if err != nil {
		return fmt.Errorf("creating vector store: %w", err)
	}
	defer store.Close()

	repo, err := repository.NewClient(cfg.Repository, logger)
	if err != nil {
		return fmt.Errorf("creating repository client: %w", err)
	}

	ingestor := pipeline.NewIngestor(repo, provider, store, logger)
	querier := pipeline.NewQuerier(provider, store, repo, cfg.SiteName, logger)

	server, err := httpapi.NewServer(querier, ingestor, store, cfg, logger)
	if err != nil {
		return fmt.Errorf("creating http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
