package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
)

func TestRequestIDRoundTrip(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-123")
	assert.Equal(t, "req-123", GetRequestIDFromContext(ctx))
}

func TestRequestIDFromChiContext(t *testing.T) {
	ctx := context.WithValue(context.Background(), chimiddleware.RequestIDKey, "chi-456")
	assert.Equal(t, "chi-456", GetRequestIDFromContext(ctx))
}

func TestRequestIDMissing(t *testing.T) {
	assert.Empty(t, GetRequestIDFromContext(context.Background()))
}

func TestRequestIDHeader(t *testing.T) {
	handler := RequestIDHeader(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithRequestID(req.Context(), "req-789"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "req-789", rec.Header().Get("X-Request-ID"))
}
