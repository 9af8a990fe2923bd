package llm

import (
	"context"
	"errors"
	"fmt"
)

// ErrBackendUnavailable is returned when the text generation backend cannot
// produce a completion (transport error, timeout, malformed response).
// Callers must not confuse it with retrieval failures; the two surface
// through different taxonomy branches.
var ErrBackendUnavailable = errors.New("text generation backend unavailable")

// StreamFunc receives one incremental fragment of a streamed completion.
// Returning an error stops the stream.
type StreamFunc func(ctx context.Context, fragment string) error

// Backend is an opaque remote text generation collaborator. Implementations
// must respect context cancellation at every network boundary.
type Backend interface {
	// Invoke performs a blocking completion for the rendered prompt
	Invoke(ctx context.Context, prompt string) (string, error)

	// Stream produces the completion incrementally, calling fn once per
	// fragment in the order the backend emits them
	Stream(ctx context.Context, prompt string, fn StreamFunc) error
}

// BackendError wraps a provider-level failure with the provider name so the
// boundary layer can log it without unwrapping provider internals.
type BackendError struct {
	Provider string
	Op       string
	Cause    error
}

// Error implements the error interface
func (e *BackendError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Cause)
}

// Unwrap exposes the provider-level cause
func (e *BackendError) Unwrap() error {
	return e.Cause
}

// Is matches ErrBackendUnavailable so errors.Is works across layers
func (e *BackendError) Is(target error) bool {
	return target == ErrBackendUnavailable
}

// NewBackendError creates a BackendError for the given provider and operation
func NewBackendError(provider, op string, cause error) *BackendError {
	return &BackendError{Provider: provider, Op: op, Cause: cause}
}
