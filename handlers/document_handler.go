package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/chainbridge-ai/chainbridge/services/pipeline"
	"github.com/chainbridge-ai/chainbridge/services/retrieval"
	"github.com/chainbridge-ai/chainbridge/utils"
)

// IngestRequest is the request body for POST /api/v1/documents
type IngestRequest struct {
	Content   string `json:"content" validate:"required"`
	Source    string `json:"source,omitempty"`
	Namespace string `json:"namespace,omitempty"`
}

// IngestResponse reports how many chunks a document produced
type IngestResponse struct {
	Chunks    int    `json:"chunks"`
	Namespace string `json:"namespace"`
}

// QueryRequest is the request body for POST /api/v1/documents/query
type QueryRequest struct {
	Query     string `json:"query" validate:"required"`
	Namespace string `json:"namespace,omitempty"`
}

// QueryResponse carries a grounded answer and the snippets behind it
type QueryResponse struct {
	Answer  string              `json:"answer"`
	Sources []retrieval.Snippet `json:"sources"`
}

// PurgeRequest is the optional request body for DELETE /api/v1/documents
type PurgeRequest struct {
	Namespace string `json:"namespace,omitempty"`
}

// DocumentService defines the document operations the handler depends on
type DocumentService interface {
	Ingest(ctx context.Context, text, source, namespace string) (int, error)
	Query(ctx context.Context, question, namespace string) (*pipeline.Result, error)
	Purge(ctx context.Context, namespace string) error
}

// DocumentHandler handles document ingestion and grounded query requests
type DocumentHandler struct {
	service DocumentService
	logger  *zap.Logger
}

// NewDocumentHandler creates a new DocumentHandler
func NewDocumentHandler(service DocumentService, logger *zap.Logger) *DocumentHandler {
	return &DocumentHandler{service: service, logger: logger}
}

// HandleIngest handles POST /api/v1/documents
func (h *DocumentHandler) HandleIngest(w http.ResponseWriter, r *http.Request) {
	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to parse request body", zap.Error(err))
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	namespace := req.Namespace
	if namespace == "" {
		namespace = retrieval.DefaultNamespace
	}

	chunks, err := h.service.Ingest(r.Context(), req.Content, req.Source, namespace)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	if err := utils.WriteCreated(w, IngestResponse{
		Chunks:    chunks,
		Namespace: namespace,
	}); err != nil {
		h.logger.Error("failed to write ingest response", zap.Error(err))
	}
}

// HandleQuery handles POST /api/v1/documents/query
func (h *DocumentHandler) HandleQuery(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to parse request body", zap.Error(err))
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	res, err := h.service.Query(r.Context(), req.Query, req.Namespace)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	response := QueryResponse{Answer: res.Output}
	if res.Context != nil {
		response.Sources = res.Context.Snippets
	}

	if err := utils.WriteOK(w, response); err != nil {
		h.logger.Error("failed to write query response", zap.Error(err))
	}
}

// HandlePurge handles DELETE /api/v1/documents. The body is optional; an
// absent or empty namespace purges the default one.
func (h *DocumentHandler) HandlePurge(w http.ResponseWriter, r *http.Request) {
	var req PurgeRequest
	if r.Body != nil {
		// Ignore decode errors for an empty body
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	if err := h.service.Purge(r.Context(), req.Namespace); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	utils.WriteNoContent(w)
}
