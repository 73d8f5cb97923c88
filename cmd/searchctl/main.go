// Package main implements the searchctl CLI for manual operations against
// a running searchd server.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

var (
	// serverURL is the base URL for the searchd HTTP server
	serverURL string
	// version information
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "searchctl",
	Short: "CLI for searchd server operations",
	Long: `searchctl is a command-line interface for interacting with a searchd server.
It provides commands for ingesting content, running searches and clearing the index.`,
	Version: version,
}

var (
	ingestContentType string
	ingestLimit       int
	ingestOffset      int
	searchLimit       int
	searchContentType string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:9090", "searchd server URL")

	ingestCmd.Flags().StringVar(&ingestContentType, "type", "post", "content type to ingest")
	ingestCmd.Flags().IntVar(&ingestLimit, "limit", 100, "maximum documents per batch")
	ingestCmd.Flags().IntVar(&ingestOffset, "offset", 0, "offset into the document listing")

	searchCmd.Flags().IntVar(&searchLimit, "limit", 10, "maximum results")
	searchCmd.Flags().StringVar(&searchContentType, "type", "", "restrict results to one content type")

	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(healthCmd)
}

// ingestCmd runs one ingestion batch
var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest a batch of documents into the search index",
	Long: `Ingest a batch of documents into the search index.

Examples:
  # Ingest the first hundred posts
  searchctl ingest

  # Ingest pages, fifty at a time, second batch
  searchctl ingest --type page --limit 50 --offset 50`,
	RunE: runIngest,
}

// searchCmd runs a query
var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Run a semantic search query",
	Long: `Run a semantic search query against the index.

Examples:
  # Search everything
  searchctl search "gardening tips"

  # Search only posts, top 5
  searchctl search --type post --limit 5 "gardening tips"`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

// clearCmd drops the index
var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear the search index",
	RunE:  runClear,
}

// healthCmd checks server health
var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check searchd server health",
	RunE:  runHealth,
}

// IngestRequest matches internal/httpapi/server.go IngestRequest
type IngestRequest struct {
	ContentType string `json:"content_type"`
	Limit       int    `json:"limit"`
	Offset      int    `json:"offset"`
}

// IngestResult matches internal/pipeline/types.go IngestResult
type IngestResult struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	Total     int    `json:"total"`
	Processed int    `json:"processed"`
	Output    string `json:"output"`
}

// SearchResult matches internal/pipeline/types.go SearchResult
type SearchResult struct {
	URL         string  `json:"url"`
	Name        string  `json:"name"`
	Score       float64 `json:"score"`
	Description string  `json:"description"`
}

// AskResponse matches internal/httpapi/server.go AskResponse
type AskResponse struct {
	QueryID string         `json:"query_id"`
	Query   string         `json:"query"`
	Results []SearchResult `json:"results"`
}

// ClearResponse matches internal/httpapi/server.go ClearResponse
type ClearResponse struct {
	Status  string `json:"status"`
	Removed int    `json:"removed"`
}

// HealthResponse matches internal/httpapi/server.go HealthResponse
type HealthResponse struct {
	Status string `json:"status"`
}

func httpClient() *http.Client {
	return &http.Client{Timeout: 5 * time.Minute}
}

// runIngest handles the ingest command
func runIngest(cmd *cobra.Command, args []string) error {
	body, err := json.Marshal(IngestRequest{
		ContentType: ingestContentType,
		Limit:       ingestLimit,
		Offset:      ingestOffset,
	})
	if err != nil {
		return err
	}

	resp, err := httpClient().Post(serverURL+"/api/v1/ingest", "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("connecting to server: %w", err)
	}
	defer resp.Body.Close()

	var result IngestResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	if result.Status != "success" {
		fmt.Printf("Ingest failed: %s\n", result.Message)
		os.Exit(1)
	}

	fmt.Printf("Processed %d of %d documents\n", result.Processed, result.Total)
	if result.Output != "" {
		fmt.Println(result.Output)
	}
	return nil
}

// runSearch handles the search command
func runSearch(cmd *cobra.Command, args []string) error {
	params := url.Values{}
	params.Set("query", args[0])
	params.Set("streaming", "false")
	params.Set("limit", strconv.Itoa(searchLimit))
	if searchContentType != "" {
		params.Set("content_type", searchContentType)
	}

	resp, err := httpClient().Get(serverURL + "/api/v1/ask?" + params.Encode())
	if err != nil {
		return fmt.Errorf("connecting to server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, msg)
	}

	var result AskResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}

	if len(result.Results) == 0 {
		fmt.Println("No results.")
		return nil
	}
	for i, r := range result.Results {
		fmt.Printf("%d. %s (%.2f)\n   %s\n   %s\n", i+1, r.Name, r.Score, r.URL, r.Description)
	}
	return nil
}

// runClear handles the clear command
func runClear(cmd *cobra.Command, args []string) error {
	resp, err := httpClient().Post(serverURL+"/api/v1/clear", "application/json", nil)
	if err != nil {
		return fmt.Errorf("connecting to server: %w", err)
	}
	defer resp.Body.Close()

	var result ClearResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	fmt.Printf("Cleared %d documents\n", result.Removed)
	return nil
}

// runHealth handles the health command
func runHealth(cmd *cobra.Command, args []string) error {
	resp, err := httpClient().Get(serverURL + "/health")
	if err != nil {
		return fmt.Errorf("connecting to server: %w", err)
	}
	defer resp.Body.Close()

	var health HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	fmt.Printf("Server status: %s\n", health.Status)
	return nil
}
