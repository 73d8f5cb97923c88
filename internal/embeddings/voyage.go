package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/searchd/internal/config"
)

// The anthropic provider speaks the Voyage AI embeddings API, the embedding
// service Anthropic directs its users to.
const (
	voyageDefaultBaseURL = "https://api.voyageai.com/v1"
	voyageDefaultModel   = "voyage-3"
	voyageTimeout        = 30 * time.Second
)

var voyageDimensions = map[string]int{
	"voyage-3-large":   1024,
	"voyage-3":         1024,
	"voyage-3-lite":    512,
	"voyage-code-3":    1024,
	"voyage-finance-2": 1024,
	"voyage-law-2":     1024,
}

// voyageFlexibleDims are the output dimensions voyage-3-large and
// voyage-code-3 can be asked to produce via a "model:dim" suffix.
var voyageFlexibleDims = map[int]bool{256: true, 512: true, 1024: true, 2048: true}

type voyageProvider struct {
	*client
	httpClient *http.Client
	baseURL    string
	apiKey     string
	requestDim int
}

func newVoyage(cfg config.ProviderConfig, logger *zap.Logger, o *options) (*voyageProvider, error) {
	if !cfg.APIKey.IsSet() {
		return nil, fmt.Errorf("%w: anthropic requires a Voyage API key", ErrMissingCredential)
	}
	model := cfg.Model
	if model == "" {
		model = voyageDefaultModel
	}
	model, dimension, requestDim := parseVoyageModel(model)

	p := &voyageProvider{
		httpClient: o.httpClient,
		baseURL:    o.baseURL,
		apiKey:     cfg.APIKey.Value(),
		requestDim: requestDim,
	}
	if p.httpClient == nil {
		p.httpClient = &http.Client{Timeout: voyageTimeout}
	}
	if p.baseURL == "" {
		p.baseURL = voyageDefaultBaseURL
	}
	p.client = newClient("anthropic", model, dimension, cfg, logger, o, p.embed)
	return p, nil
}

// parseVoyageModel resolves a model name to its base name and dimension.
// A "model:dim" suffix selects a custom output dimension for the models
// that support one; requestDim is zero when the API default applies.
func parseVoyageModel(model string) (base string, dimension, requestDim int) {
	base = model
	if i := strings.IndexByte(model, ':'); i >= 0 {
		name, suffix := model[:i], model[i+1:]
		if name == "voyage-3-large" || name == "voyage-code-3" {
			if n, err := strconv.Atoi(suffix); err == nil && voyageFlexibleDims[n] {
				return name, n, n
			}
		}
	}
	if d, ok := voyageDimensions[base]; ok {
		return base, d, 0
	}
	return base, 1536, 0
}

type voyageRequest struct {
	Model           string   `json:"model"`
	Input           []string `json:"input"`
	OutputDimension int      `json:"output_dimension,omitempty"`
}

type voyageResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func (p *voyageProvider) embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(voyageRequest{
		Model:           p.model,
		Input:           []string{text},
		OutputDimension: p.requestDim,
	})
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

	var parsed voyageResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if len(parsed.Data) == 0 {
		return nil, fmt.Errorf("%w: empty response", ErrEmbeddingFailed)
	}
	return parsed.Data[0].Embedding, nil
}
