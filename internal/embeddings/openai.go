package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/searchd/internal/config"
)

const (
	openAIDefaultBaseURL = "https://api.openai.com/v1"
	openAIDefaultModel   = "text-embedding-3-small"
	openAITimeout        = 30 * time.Second
)

// openAIDimensions maps model names to their fixed output dimensions.
// Unknown models fall back to 1536.
var openAIDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

type openAIProvider struct {
	*client
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

func newOpenAI(cfg config.ProviderConfig, logger *zap.Logger, o *options) (*openAIProvider, error) {
	if !cfg.APIKey.IsSet() {
		return nil, fmt.Errorf("%w: openai requires an API key", ErrMissingCredential)
	}
	model := cfg.Model
	if model == "" {
		model = openAIDefaultModel
	}
	dimension, ok := openAIDimensions[model]
	if !ok {
		dimension = 1536
	}

	p := &openAIProvider{
		httpClient: o.httpClient,
		baseURL:    o.baseURL,
		apiKey:     cfg.APIKey.Value(),
	}
	if p.httpClient == nil {
		p.httpClient = &http.Client{Timeout: openAITimeout}
	}
	if p.baseURL == "" {
		p.baseURL = openAIDefaultBaseURL
	}
	p.client = newClient("openai", model, dimension, cfg, logger, o, p.embed)
	return p, nil
}

type openAIRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type openAIResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func (p *openAIProvider) embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(openAIRequest{Model: p.model, Input: text})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: status %d: %s", ErrEmbeddingFailed, resp.StatusCode, string(respBody))
	}

	var parsed openAIResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if len(parsed.Data) == 0 {
		return nil, fmt.Errorf("%w: empty response", ErrEmbeddingFailed)
	}
	return parsed.Data[0].Embedding, nil
}
