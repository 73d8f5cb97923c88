package vectorstore

import "context"

// Store is the contract every backend adapter implements. Implementations
// normalize their native scores to the canonical [0,1] similarity scale
// before returning hits.
type Store interface {
	// EnsureCollection makes the collection exist with the given vector
	// dimension. A present collection with a different dimension is
	// dropped and recreated; this is the only automatic destructive
	// operation and is always logged.
	EnsureCollection(ctx context.Context, dimension int) error

	// Upsert writes records in fixed-size batches. A failed batch does
	// not abort the remaining batches.
	Upsert(ctx context.Context, records []Record) error

	// Search returns the nearest records to vector, highest similarity
	// first, as ordered by the backend.
	Search(ctx context.Context, vector []float32, params SearchParams) ([]Hit, error)

	// Clear drops the collection and reports how many entities it held.
	Clear(ctx context.Context) (ClearResult, error)

	// Count returns the number of stored entities.
	Count(ctx context.Context) (int, error)

	// Name returns the backend name.
	Name() string

	// Close releases backend connections.
	Close() error
}
