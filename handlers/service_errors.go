package handlers

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/chainbridge-ai/chainbridge/services/llm"
	"github.com/chainbridge-ai/chainbridge/services/prompt"
	"github.com/chainbridge-ai/chainbridge/services/retrieval"
	"github.com/chainbridge-ai/chainbridge/utils"
)

// HandleServiceError maps domain errors to HTTP responses. Client mistakes
// become 400s, upstream failures 502s; anything unrecognized is logged and
// answered with a generic 500 so internals never leak to the client.
func HandleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if err == nil {
		return
	}

	var missing *prompt.MissingVariableError
	switch {
	case errors.As(err, &missing):
		if werr := utils.WriteBadRequest(w, missing.Error(), map[string]interface{}{
			"variable": missing.Variable,
		}); werr != nil {
			logger.Error("failed to write bad request response", zap.Error(werr))
		}

	case utils.IsValidationError(err):
		HandleValidationError(w, err, logger)

	case errors.Is(err, llm.ErrBackendUnavailable):
		logger.Error("llm backend unavailable", zap.Error(err))
		if werr := utils.WriteBadGateway(w, "Language model backend unavailable"); werr != nil {
			logger.Error("failed to write bad gateway response", zap.Error(werr))
		}

	case errors.Is(err, retrieval.ErrRetrievalFailed):
		logger.Error("retrieval failed", zap.Error(err))
		if werr := utils.WriteBadGateway(w, "Context retrieval unavailable"); werr != nil {
			logger.Error("failed to write bad gateway response", zap.Error(werr))
		}

	case errors.Is(err, context.DeadlineExceeded):
		if werr := utils.WriteJSON(w, http.StatusGatewayTimeout, utils.ErrorResponse{
			Error:   "gateway_timeout",
			Message: "Upstream call timed out",
		}); werr != nil {
			logger.Error("failed to write gateway timeout response", zap.Error(werr))
		}

	default:
		logger.Error("unhandled service error", zap.Error(err))
		if werr := utils.WriteInternalServerError(w, "An internal error occurred"); werr != nil {
			logger.Error("failed to write internal error response", zap.Error(werr))
		}
	}
}

// HandleValidationError handles validation errors from request parsing
func HandleValidationError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if utils.IsValidationError(err) {
		fields := utils.GetValidationFields(err)
		details := make(map[string]interface{})
		for k, v := range fields {
			details[k] = v
		}
		if werr := utils.WriteBadRequest(w, "Validation failed", details); werr != nil {
			logger.Error("failed to write validation error response", zap.Error(werr))
		}
		return
	}

	if werr := utils.WriteBadRequest(w, err.Error(), nil); werr != nil {
		logger.Error("failed to write validation error response", zap.Error(werr))
	}
}
