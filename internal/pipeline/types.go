package pipeline

import "github.com/fyrsmithlabs/searchd/internal/schema"

// IngestResult reports the outcome of one ingestion batch.
type IngestResult struct {
	// Status is "success" or "error".
	Status string `json:"status"`

	// Message is a human-readable summary.
	Message string `json:"message"`

	// Total is the number of matching documents the repository reported.
	Total int `json:"total"`

	// Processed is the number of documents embedded and handed to the
	// vector store in this batch.
	Processed int `json:"processed"`

	// Output describes the backend outcome, shown verbatim to operators.
	Output string `json:"output,omitempty"`
}

// QueryParams controls a search.
type QueryParams struct {
	// Limit caps returned results. Zero uses the store default of 10.
	Limit int

	// ContentType restricts results to one content type when set.
	ContentType string

	// Site overrides the configured site label on results when set.
	Site string
}

// SearchResult is one answer record, shaped for external chat consumers.
type SearchResult struct {
	URL          string        `json:"url"`
	Name         string        `json:"name"`
	Site         string        `json:"site"`
	Score        float64       `json:"score"`
	Description  string        `json:"description"`
	SchemaObject schema.Object `json:"schema_object"`
}
