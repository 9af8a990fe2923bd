package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestHandleLiveness(t *testing.T) {
	h := NewHealthHandler(nil, zap.NewNop())

	rec := httptest.NewRecorder()
	h.HandleLiveness(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestHandleReadiness(t *testing.T) {
	t.Run("all checks pass", func(t *testing.T) {
		h := NewHealthHandler(map[string]ReadinessCheck{
			"llm":         func(ctx context.Context) error { return nil },
			"vectorstore": func(ctx context.Context) error { return nil },
		}, zap.NewNop())

		rec := httptest.NewRecorder()
		h.HandleReadiness(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"status":"ready"`)
	})

	t.Run("failing check reports not ready", func(t *testing.T) {
		h := NewHealthHandler(map[string]ReadinessCheck{
			"llm":         func(ctx context.Context) error { return nil },
			"vectorstore": func(ctx context.Context) error { return errors.New("unreachable") },
		}, zap.NewNop())

		rec := httptest.NewRecorder()
		h.HandleReadiness(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Contains(t, rec.Body.String(), `"status":"not_ready"`)
		assert.Contains(t, rec.Body.String(), `"vectorstore":"unhealthy"`)
		assert.Contains(t, rec.Body.String(), `"llm":"healthy"`)
	})
}
