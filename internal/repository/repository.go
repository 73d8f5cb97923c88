// Package repository provides read access to the content repository that
// feeds the search index.
package repository

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound indicates the requested document does not exist or is not
// published.
var ErrNotFound = errors.New("document not found")

// Document is a point-in-time snapshot of a repository item. Content is
// plain text with markup stripped.
type Document struct {
	ID           int64
	ContentType  string
	Title        string
	Content      string
	Excerpt      string
	URL          string
	Author       string
	PublishedAt  time.Time
	ModifiedAt   time.Time
	ThumbnailURL string
}

// ListOptions controls document listing.
type ListOptions struct {
	// ContentType selects the document type, e.g. "post" or "page".
	// Empty defaults to "post".
	ContentType string

	// Limit caps the number of documents returned. Zero or negative
	// fetches all published documents.
	Limit int

	// Offset skips the given number of documents.
	Offset int
}

// Repository lists and fetches published documents, newest first.
type Repository interface {
	// ListDocuments returns documents and the repository's total count
	// for the content type.
	ListDocuments(ctx context.Context, opts ListOptions) ([]Document, int, error)

	// GetDocument fetches a single published document by content type
	// and ID. Missing or unpublished documents return ErrNotFound.
	GetDocument(ctx context.Context, contentType string, id int64) (*Document, error)
}
