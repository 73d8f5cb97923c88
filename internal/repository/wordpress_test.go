package repository_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/searchd/internal/config"
	"github.com/fyrsmithlabs/searchd/internal/repository"
)

func wpDoc(id int, title, content string) map[string]any {
	return map[string]any{
		"id":           id,
		"link":         fmt.Sprintf("https://example.com/?p=%d", id),
		"date_gmt":     "2024-03-01T10:00:00",
		"modified_gmt": "2024-03-02T11:30:00",
		"title":        map[string]string{"rendered": title},
		"content":      map[string]string{"rendered": content},
		"excerpt":      map[string]string{"rendered": "<p>excerpt</p>"},
		"_embedded": map[string]any{
			"author":           []map[string]string{{"name": "Alex Writer"}},
			"wp:featuredmedia": []map[string]string{{"source_url": "https://example.com/img.jpg"}},
		},
	}
}

func newWPServer(t *testing.T, docs []map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/wp-json/wp/v2/posts":
			perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
			offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
			end := offset + perPage
			if end > len(docs) {
				end = len(docs)
			}
			page := []map[string]any{}
			if offset < len(docs) {
				page = docs[offset:end]
			}
			w.Header().Set("X-WP-Total", strconv.Itoa(len(docs)))
			require.NoError(t, json.NewEncoder(w).Encode(page))
		case "/wp-json/wp/v2/posts/1":
			require.NoError(t, json.NewEncoder(w).Encode(docs[0]))
		default:
			http.Error(w, `{"code":"rest_post_invalid_id"}`, http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T, baseURL string) *repository.Client {
	t.Helper()
	c, err := repository.NewClient(config.RepositoryConfig{BaseURL: baseURL}, zap.NewNop())
	require.NoError(t, err)
	return c
}

func TestNewClient_RequiresBaseURL(t *testing.T) {
	_, err := repository.NewClient(config.RepositoryConfig{}, zap.NewNop())
	require.Error(t, err)
}

func TestListDocuments(t *testing.T) {
	srv := newWPServer(t, []map[string]any{
		wpDoc(1, "First <em>Post</em>", "<p>Body one</p>"),
		wpDoc(2, "Second Post", "<p>Body two</p><script>alert(1)</script>"),
	})
	c := newTestClient(t, srv.URL)

	docs, total, err := c.ListDocuments(context.Background(), repository.ListOptions{ContentType: "post"})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, docs, 2)

	first := docs[0]
	assert.Equal(t, int64(1), first.ID)
	assert.Equal(t, "post", first.ContentType)
	assert.Equal(t, "First Post", first.Title)
	assert.Equal(t, "Body one", first.Content)
	assert.Equal(t, "excerpt", first.Excerpt)
	assert.Equal(t, "https://example.com/?p=1", first.URL)
	assert.Equal(t, "Alex Writer", first.Author)
	assert.Equal(t, "https://example.com/img.jpg", first.ThumbnailURL)
	assert.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), first.PublishedAt)
	assert.Equal(t, time.Date(2024, 3, 2, 11, 30, 0, 0, time.UTC), first.ModifiedAt)

	assert.Equal(t, "Body two", docs[1].Content, "script content must be stripped")
}

func TestListDocuments_LimitAndOffset(t *testing.T) {
	var docs []map[string]any
	for i := 1; i <= 5; i++ {
		docs = append(docs, wpDoc(i, fmt.Sprintf("Post %d", i), "body"))
	}
	srv := newWPServer(t, docs)
	c := newTestClient(t, srv.URL)

	got, total, err := c.ListDocuments(context.Background(), repository.ListOptions{Limit: 2, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, got, 2)
	assert.Equal(t, int64(2), got[0].ID)
	assert.Equal(t, int64(3), got[1].ID)
}

func TestGetDocument(t *testing.T) {
	srv := newWPServer(t, []map[string]any{wpDoc(1, "First Post", "<p>Body</p>")})
	c := newTestClient(t, srv.URL)

	doc, err := c.GetDocument(context.Background(), "post", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), doc.ID)
	assert.Equal(t, "First Post", doc.Title)
}

func TestGetDocument_NotFound(t *testing.T) {
	srv := newWPServer(t, nil)
	c := newTestClient(t, srv.URL)

	_, err := c.GetDocument(context.Background(), "post", 99)
	require.Error(t, err)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
