package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBackendError(t *testing.T) {
	t.Run("matches ErrBackendUnavailable", func(t *testing.T) {
		cause := errors.New("connection refused")
		err := NewBackendError("openai", "invoke", cause)

		assert.ErrorIs(t, err, ErrBackendUnavailable)
		assert.ErrorIs(t, err, cause)
		assert.Contains(t, err.Error(), "openai")
		assert.Contains(t, err.Error(), "invoke")
	})

	t.Run("context cancellation is not a backend error", func(t *testing.T) {
		assert.NotErrorIs(t, context.Canceled, ErrBackendUnavailable)
	})
}
