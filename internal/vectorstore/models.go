package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

var (
	// ErrInvalidConfig indicates invalid backend configuration
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInvalidCollectionName indicates a collection name failing validation
	ErrInvalidCollectionName = errors.New("invalid collection name")

	// ErrCollectionNotFound indicates the collection does not exist
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrConnectionFailed indicates the backend engine is unreachable
	ErrConnectionFailed = errors.New("connection failed")
)

const (
	// upsertBatchSize bounds memory and request size per upsert call.
	upsertBatchSize = 100

	// defaultSearchLimit applies when SearchParams.Limit is unset.
	defaultSearchLimit = 10
)

// collectionNamePattern validates collection names: lowercase letters,
// numbers, underscores and hyphens, 1-64 characters.
var collectionNamePattern = regexp.MustCompile(`^[a-z0-9_-]{1,64}$`)

// ValidateCollectionName checks a collection name against naming rules
// shared by all backends.
func ValidateCollectionName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: collection name cannot be empty", ErrInvalidCollectionName)
	}
	if !collectionNamePattern.MatchString(name) {
		return fmt.Errorf("%w: must match ^[a-z0-9_-]{1,64}$, got %q", ErrInvalidCollectionName, name)
	}
	return nil
}

// Record is one document prepared for indexing.
type Record struct {
	DocumentID  int64
	ContentType string
	Title       string
	Content     string
	URL         string
	SchemaType  string
	Vector      []float32
}

// Hit is one similarity search result. Score is on the canonical [0,1]
// scale, higher is more relevant.
type Hit struct {
	DocumentID  int64
	ContentType string
	Title       string
	Content     string
	URL         string
	Score       float64
}

// SearchParams controls a similarity search.
type SearchParams struct {
	// Limit caps returned hits. Zero or negative uses the default of 10.
	Limit int

	// ContentType restricts hits to one content type when set.
	ContentType string
}

func (p SearchParams) limit() int {
	if p.Limit <= 0 {
		return defaultSearchLimit
	}
	return p.Limit
}

// ClearResult reports the outcome of clearing a collection.
type ClearResult struct {
	// Removed is the number of entities the collection held before it
	// was dropped.
	Removed int
}

// inBatches invokes fn for fixed-size slices of records. A failed batch is
// recorded but does not abort the remaining batches.
func inBatches(ctx context.Context, records []Record, size int, fn func(batch []Record) error) error {
	var failed int
	var lastErr error
	for start := 0; start < len(records); start += size {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := start + size
		if end > len(records) {
			end = len(records)
		}
		if err := fn(records[start:end]); err != nil {
			failed++
			lastErr = err
		}
	}
	if lastErr != nil {
		return fmt.Errorf("%d batch(es) failed, last error: %w", failed, lastErr)
	}
	return nil
}
