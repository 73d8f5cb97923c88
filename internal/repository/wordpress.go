package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/searchd/internal/config"
)

const (
	defaultTimeout = 30 * time.Second

	// maxPageSize is the largest page the WordPress REST API serves.
	maxPageSize = 100
)

// wpTimeLayout is the REST API's GMT timestamp format.
const wpTimeLayout = "2006-01-02T15:04:05"

// Client is a Repository backed by a WordPress-style REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a repository client for the configured endpoint.
func NewClient(cfg config.RepositoryConfig, logger *zap.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("repository base URL required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}, nil
}

// restBase maps a content type to its REST collection route.
func restBase(contentType string) string {
	switch contentType {
	case "", "post":
		return "posts"
	case "page":
		return "pages"
	default:
		return contentType + "s"
	}
}

type wpRendered struct {
	Rendered string `json:"rendered"`
}

type wpDocument struct {
	ID          int64      `json:"id"`
	Link        string     `json:"link"`
	DateGMT     string     `json:"date_gmt"`
	ModifiedGMT string     `json:"modified_gmt"`
	Title       wpRendered `json:"title"`
	Content     wpRendered `json:"content"`
	Excerpt     wpRendered `json:"excerpt"`
	Embedded    struct {
		Author []struct {
			Name string `json:"name"`
		} `json:"author"`
		FeaturedMedia []struct {
			SourceURL string `json:"source_url"`
		} `json:"wp:featuredmedia"`
	} `json:"_embedded"`
}

func (d wpDocument) toDocument(contentType string) Document {
	if contentType == "" {
		contentType = "post"
	}
	doc := Document{
		ID:          d.ID,
		ContentType: contentType,
		Title:       StripMarkup(d.Title.Rendered),
		Content:     StripMarkup(d.Content.Rendered),
		Excerpt:     StripMarkup(d.Excerpt.Rendered),
		URL:         d.Link,
	}
	if t, err := time.Parse(wpTimeLayout, d.DateGMT); err == nil {
		doc.PublishedAt = t
	}
	if t, err := time.Parse(wpTimeLayout, d.ModifiedGMT); err == nil {
		doc.ModifiedAt = t
	}
	if len(d.Embedded.Author) > 0 {
		doc.Author = d.Embedded.Author[0].Name
	}
	if len(d.Embedded.FeaturedMedia) > 0 {
		doc.ThumbnailURL = d.Embedded.FeaturedMedia[0].SourceURL
	}
	return doc
}

// ListDocuments returns published documents newest first, paging through
// the API until the requested limit (or everything) is collected.
func (c *Client) ListDocuments(ctx context.Context, opts ListOptions) ([]Document, int, error) {
	var (
		docs   []Document
		total  int
		offset = opts.Offset
	)
	for {
		pageSize := maxPageSize
		if opts.Limit > 0 {
			remaining := opts.Limit - len(docs)
			if remaining <= 0 {
				break
			}
			if remaining < pageSize {
				pageSize = remaining
			}
		}

		page, t, err := c.fetchPage(ctx, opts.ContentType, pageSize, offset)
		if err != nil {
			return nil, 0, err
		}
		total = t
		docs = append(docs, page...)
		offset += len(page)

		if len(page) < pageSize {
			break
		}
		if opts.Limit <= 0 && offset-opts.Offset >= total {
			break
		}
	}
	return docs, total, nil
}

func (c *Client) fetchPage(ctx context.Context, contentType string, pageSize, offset int) ([]Document, int, error) {
	q := url.Values{}
	q.Set("per_page", strconv.Itoa(pageSize))
	q.Set("offset", strconv.Itoa(offset))
	q.Set("orderby", "date")
	q.Set("order", "desc")
	q.Set("status", "publish")
	q.Set("_embed", "1")

	endpoint := fmt.Sprintf("%s/wp-json/wp/v2/%s?%s", c.baseURL, restBase(contentType), q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("listing documents: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, 0, fmt.Errorf("listing documents: status %d", resp.StatusCode)
	}

	total, _ := strconv.Atoi(resp.Header.Get("X-WP-Total"))

	var raw []wpDocument
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, 0, fmt.Errorf("decoding response: %w", err)
	}

	docs := make([]Document, 0, len(raw))
	for _, d := range raw {
		docs = append(docs, d.toDocument(contentType))
	}
	return docs, total, nil
}

// GetDocument fetches one published document by content type and ID.
func (c *Client) GetDocument(ctx context.Context, contentType string, id int64) (*Document, error) {
	endpoint := fmt.Sprintf("%s/wp-json/wp/v2/%s/%d?_embed=1", c.baseURL, restBase(contentType), id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching document %d: %w", id, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound, http.StatusUnauthorized, http.StatusForbidden:
		return nil, fmt.Errorf("%w: %s/%d", ErrNotFound, restBase(contentType), id)
	default:
		return nil, fmt.Errorf("fetching document %d: status %d", id, resp.StatusCode)
	}

	var raw wpDocument
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	doc := raw.toDocument(contentType)
	return &doc, nil
}
