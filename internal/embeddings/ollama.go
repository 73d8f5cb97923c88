package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/searchd/internal/config"
)

// ErrModelPulling indicates the model is not yet available locally and a
// pull has been started. Callers should retry once the download completes.
var ErrModelPulling = errors.New("model pulling in progress")

const (
	ollamaDefaultBaseURL = "http://localhost:11434"
	ollamaDefaultModel   = "nomic-embed-text"
	ollamaEmbedTimeout   = 60 * time.Second
	ollamaPullTimeout    = 180 * time.Second
)

var ollamaDimensions = map[string]int{
	"nomic-embed-text":        768,
	"snowflake-arctic-embed2": 1024,
	"granite-embedding":       1536,
}

type ollamaProvider struct {
	*client
	httpClient *http.Client
	baseURL    string
	pulling    atomic.Bool
}

func newOllama(cfg config.ProviderConfig, logger *zap.Logger, o *options) (*ollamaProvider, error) {
	model := cfg.Model
	if model == "" {
		model = ollamaDefaultModel
	}
	dimension, ok := ollamaDimensions[model]
	if !ok {
		dimension = 2048
	}

	baseURL := o.baseURL
	if baseURL == "" {
		baseURL = cfg.ServerURL
	}
	if baseURL == "" {
		baseURL = ollamaDefaultBaseURL
	}

	p := &ollamaProvider{
		httpClient: o.httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
	if p.httpClient == nil {
		p.httpClient = &http.Client{Timeout: ollamaEmbedTimeout}
	}
	p.client = newClient("ollama", model, dimension, cfg, logger, o, p.embed)
	return p, nil
}

type ollamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResponse struct {
	Embedding []float32 `json:"embedding"`
}

func (p *ollamaProvider) embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(ollamaEmbedRequest{Model: p.model, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		if strings.Contains(strings.ToLower(string(respBody)), "not found") {
			p.startPull()
			return nil, fmt.Errorf("%w: %s", ErrModelPulling, p.model)
		}
		return nil, fmt.Errorf("%w: status %d: %s", ErrEmbeddingFailed, resp.StatusCode, string(respBody))
	}

	var parsed ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if len(parsed.Embedding) == 0 {
		return nil, fmt.Errorf("%w: empty response", ErrEmbeddingFailed)
	}
	return parsed.Embedding, nil
}

// EnsureModel verifies the configured model is available locally, pulling
// it synchronously when missing.
func (p *ollamaProvider) EnsureModel(ctx context.Context) error {
	present, err := p.hasModel(ctx)
	if err != nil {
		return err
	}
	if present {
		return nil
	}
	p.logger.Info("pulling ollama model", zap.String("model", p.model))
	return p.pull(ctx)
}

type ollamaTagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

func (p *ollamaProvider) hasModel(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/api/tags", nil)
	if err != nil {
		return false, fmt.Errorf("creating request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("listing models: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("listing models: status %d", resp.StatusCode)
	}

	var parsed ollamaTagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return false, fmt.Errorf("decoding response: %w", err)
	}
	for _, m := range parsed.Models {
		// Tags listings report "name:tag"; an unqualified model matches
		// its latest tag.
		if m.Name == p.model || strings.TrimSuffix(m.Name, ":latest") == p.model {
			return true, nil
		}
	}
	return false, nil
}

type ollamaPullRequest struct {
	Name   string `json:"name"`
	Stream bool   `json:"stream"`
}

func (p *ollamaProvider) pull(ctx context.Context) error {
	body, err := json.Marshal(ollamaPullRequest{Name: p.model, Stream: false})
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/pull", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	// Pulls can take far longer than embed calls.
	pullClient := &http.Client{Timeout: ollamaPullTimeout}
	resp, err := pullClient.Do(req)
	if err != nil {
		return fmt.Errorf("pulling model %q: %w", p.model, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("pulling model %q: status %d: %s", p.model, resp.StatusCode, string(respBody))
	}
	return nil
}

// startPull begins a background pull of the model, at most one at a time.
func (p *ollamaProvider) startPull() {
	if !p.pulling.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer p.pulling.Store(false)
		ctx, cancel := context.WithTimeout(context.Background(), ollamaPullTimeout)
		defer cancel()
		if err := p.pull(ctx); err != nil {
			p.logger.Warn("background model pull failed", zap.String("model", p.model), zap.Error(err))
			return
		}
		p.logger.Info("model pull complete", zap.String("model", p.model))
	}()
}
