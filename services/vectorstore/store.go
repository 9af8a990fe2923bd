package vectorstore

import (
	"context"
	"fmt"
)

// Entry is one (id, vector, metadata) triple stored in a namespace
type Entry struct {
	ID       string            `json:"id"`
	Values   []float32         `json:"values"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Match is one nearest-neighbor result. Results are ordered by similarity,
// descending.
type Match struct {
	ID       string            `json:"id"`
	Score    float64           `json:"score"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Store is a remote vector database partitioned by namespace
type Store interface {
	// Upsert inserts or replaces entries in the namespace
	Upsert(ctx context.Context, namespace string, entries []Entry) error

	// Query returns the topK nearest neighbors of vector in the namespace,
	// ordered by similarity descending
	Query(ctx context.Context, namespace string, vector []float32, topK int) ([]Match, error)

	// DeleteAll removes every entry in the namespace
	DeleteAll(ctx context.Context, namespace string) error
}

// StoreError represents an error from the vector store
type StoreError struct {
	// Op is the failed operation ("upsert", "query", "delete")
	Op string

	// StatusCode is the HTTP status code, if applicable
	StatusCode int

	// Message is the error message
	Message string

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface
func (e *StoreError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("vector store %s: %s: %v", e.Op, e.Message, e.Cause)
	}
	return fmt.Sprintf("vector store %s: %s", e.Op, e.Message)
}

// Unwrap implements error unwrapping
func (e *StoreError) Unwrap() error {
	return e.Cause
}
