// Package schema maps repository content types to schema.org records.
package schema

import (
	"time"

	"github.com/fyrsmithlabs/searchd/internal/repository"
)

// Object is a schema.org-style record serialized into search results.
type Object map[string]any

// typeMap maps repository content types to schema.org types. Unknown types
// fall back to Article.
var typeMap = map[string]string{
	"post":       "Article",
	"page":       "WebPage",
	"product":    "Product",
	"event":      "Event",
	"recipe":     "Recipe",
	"course":     "Course",
	"book":       "Book",
	"movie":      "Movie",
	"restaurant": "Restaurant",
	"service":    "Service",
}

// MapType returns the schema.org type for a content type.
func MapType(contentType string) string {
	if t, ok := typeMap[contentType]; ok {
		return t
	}
	return "Article"
}

// descriptionLimit caps the description carried in the schema object.
const descriptionLimit = 300

// ObjectFor builds the schema.org record for a document.
func ObjectFor(doc repository.Document) Object {
	obj := Object{
		"@context":         "https://schema.org",
		"@type":            MapType(doc.ContentType),
		"mainEntityOfPage": doc.URL,
		"headline":         doc.Title,
		"url":              doc.URL,
	}

	description := doc.Excerpt
	if description == "" {
		description = doc.Content
	}
	if len(description) > descriptionLimit {
		description = description[:descriptionLimit]
	}
	if description != "" {
		obj["description"] = description
	}

	if !doc.PublishedAt.IsZero() {
		obj["datePublished"] = doc.PublishedAt.Format(time.RFC3339)
	}
	if !doc.ModifiedAt.IsZero() {
		obj["dateModified"] = doc.ModifiedAt.Format(time.RFC3339)
	}
	if doc.Author != "" {
		obj["author"] = Object{"@type": "Person", "name": doc.Author}
	}
	if doc.ThumbnailURL != "" {
		obj["image"] = doc.ThumbnailURL
	}
	return obj
}
