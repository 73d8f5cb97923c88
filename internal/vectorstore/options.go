package vectorstore

import "net/http"

type storeOptions struct {
	baseURL    string
	controlURL string
	httpClient *http.Client
}

// StoreOption customizes backend adapter construction.
type StoreOption func(*storeOptions)

// WithBaseURL overrides the backend endpoint derived from host and port.
func WithBaseURL(url string) StoreOption {
	return func(o *storeOptions) { o.baseURL = url }
}

// WithControlPlaneURL overrides the management-plane endpoint for backends
// that separate control and data planes (pinecone).
func WithControlPlaneURL(url string) StoreOption {
	return func(o *storeOptions) { o.controlURL = url }
}

// WithHTTPClient overrides the HTTP client used by REST adapters.
func WithHTTPClient(client *http.Client) StoreOption {
	return func(o *storeOptions) { o.httpClient = client }
}

func newStoreOptions(opts []StoreOption) *storeOptions {
	o := &storeOptions{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *storeOptions) httpClientOr(fallback *http.Client) *http.Client {
	if o.httpClient != nil {
		return o.httpClient
	}
	return fallback
}
