package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"go.uber.org/zap"
)

// ReadinessCheck probes one dependency. A nil return means healthy.
type ReadinessCheck func(ctx context.Context) error

// HealthHandler serves the liveness and readiness endpoints
type HealthHandler struct {
	checks map[string]ReadinessCheck
	logger *zap.Logger
}

// NewHealthHandler creates a HealthHandler with named dependency checks
func NewHealthHandler(checks map[string]ReadinessCheck, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{checks: checks, logger: logger}
}

// HandleLiveness handles GET /healthz
func (h *HealthHandler) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// HandleReadiness handles GET /readyz: every registered check must pass
func (h *HealthHandler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := "ready"
	results := make(map[string]string, len(h.checks))

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			status = "not_ready"
			results[name] = "unhealthy"
			h.logger.Error("readiness check failed",
				zap.String("check", name),
				zap.Error(err))
			continue
		}
		results[name] = "healthy"
	}

	w.Header().Set("Content-Type", "application/json")
	if status == "ready" {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status": status,
		"checks": results,
	})
}
