package schema_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/searchd/internal/repository"
	"github.com/fyrsmithlabs/searchd/internal/schema"
)

func TestMapType(t *testing.T) {
	tests := []struct {
		contentType string
		want        string
	}{
		{"post", "Article"},
		{"page", "WebPage"},
		{"product", "Product"},
		{"event", "Event"},
		{"recipe", "Recipe"},
		{"course", "Course"},
		{"book", "Book"},
		{"movie", "Movie"},
		{"restaurant", "Restaurant"},
		{"service", "Service"},
		{"podcast", "Article"},
		{"", "Article"},
	}

	for _, tt := range tests {
		t.Run(tt.contentType, func(t *testing.T) {
			assert.Equal(t, tt.want, schema.MapType(tt.contentType))
		})
	}
}

func TestObjectFor(t *testing.T) {
	doc := repository.Document{
		ID:           7,
		ContentType:  "recipe",
		Title:        "Sourdough Basics",
		Content:      "Flour, water, salt.",
		Excerpt:      "A starter guide.",
		URL:          "https://example.com/sourdough",
		Author:       "Alex Writer",
		PublishedAt:  time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		ModifiedAt:   time.Date(2024, 3, 2, 11, 30, 0, 0, time.UTC),
		ThumbnailURL: "https://example.com/bread.jpg",
	}

	obj := schema.ObjectFor(doc)

	assert.Equal(t, "https://schema.org", obj["@context"])
	assert.Equal(t, "Recipe", obj["@type"])
	assert.Equal(t, "Sourdough Basics", obj["headline"])
	assert.Equal(t, "https://example.com/sourdough", obj["url"])
	assert.Equal(t, "https://example.com/sourdough", obj["mainEntityOfPage"])
	assert.Equal(t, "A starter guide.", obj["description"])
	assert.Equal(t, "2024-03-01T10:00:00Z", obj["datePublished"])
	assert.Equal(t, "2024-03-02T11:30:00Z", obj["dateModified"])
	assert.Equal(t, "https://example.com/bread.jpg", obj["image"])

	author, ok := obj["author"].(schema.Object)
	require.True(t, ok)
	assert.Equal(t, "Person", author["@type"])
	assert.Equal(t, "Alex Writer", author["name"])
}

func TestObjectFor_Minimal(t *testing.T) {
	obj := schema.ObjectFor(repository.Document{
		ContentType: "post",
		Title:       "Untitled",
		URL:         "https://example.com/?p=9",
	})

	assert.Equal(t, "Article", obj["@type"])
	assert.NotContains(t, obj, "description")
	assert.NotContains(t, obj, "datePublished")
	assert.NotContains(t, obj, "author")
	assert.NotContains(t, obj, "image")
}
