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
	geminiDefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	geminiDefaultModel   = "embedding-001"
	geminiTimeout        = 30 * time.Second
)

var geminiDimensions = map[string]int{
	"embedding-001":      768,
	"text-embedding-004": 768,
}

type geminiProvider struct {
	*client
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

func newGemini(cfg config.ProviderConfig, logger *zap.Logger, o *options) (*geminiProvider, error) {
	if !cfg.APIKey.IsSet() {
		return nil, fmt.Errorf("%w: gemini requires an API key", ErrMissingCredential)
	}
	model := cfg.Model
	if model == "" {
		model = geminiDefaultModel
	}
	dimension, ok := geminiDimensions[model]
	if !ok {
		dimension = 768
	}

	p := &geminiProvider{
		httpClient: o.httpClient,
		baseURL:    o.baseURL,
		apiKey:     cfg.APIKey.Value(),
	}
	if p.httpClient == nil {
		p.httpClient = &http.Client{Timeout: geminiTimeout}
	}
	if p.baseURL == "" {
		p.baseURL = geminiDefaultBaseURL
	}
	p.client = newClient("gemini", model, dimension, cfg, logger, o, p.embed)
	return p, nil
}

type geminiRequest struct {
	Model   string `json:"model"`
	Content struct {
		Parts []struct {
			Text string `json:"text"`
		} `json:"parts"`
	} `json:"content"`
}

type geminiResponse struct {
	Embedding struct {
		Values []float32 `json:"values"`
	} `json:"embedding"`
}

func (p *geminiProvider) embed(ctx context.Context, text string) ([]float32, error) {
	reqBody := geminiRequest{Model: "models/" + p.model}
	reqBody.Content.Parts = []struct {
		Text string `json:"text"`
	}{{Text: text}}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:embedContent?key=%s", p.baseURL, p.model, p.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
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
		return nil, fmt.Errorf("%w: status %d: %s", ErrEmbeddingFailed, resp.StatusCode, string(respBody))
	}

	var parsed geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if len(parsed.Embedding.Values) == 0 {
		return nil, fmt.Errorf("%w: empty response", ErrEmbeddingFailed)
	}
	return parsed.Embedding.Values, nil
}
