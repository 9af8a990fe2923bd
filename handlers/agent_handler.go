package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/chainbridge-ai/chainbridge/middleware"
	"github.com/chainbridge-ai/chainbridge/services/agent"
	"github.com/chainbridge-ai/chainbridge/utils"
)

// AgentService is the agent surface the handler depends on
type AgentService interface {
	Run(ctx context.Context, query string) (string, error)
	Analyze(ctx context.Context, scenario string) (*agent.Analysis, error)
}

// AgentRequest is the request body for POST /api/v1/agent
type AgentRequest struct {
	Query string `json:"query" validate:"required"`
}

// AgentResponse is the response body for POST /api/v1/agent
type AgentResponse struct {
	Response string `json:"response"`
}

// ScenarioRequest is the request body for POST /api/v1/agent/analyze
type ScenarioRequest struct {
	Scenario string `json:"scenario" validate:"required"`
}

// ScenarioMetadata summarizes the tool activity behind an analysis
type ScenarioMetadata struct {
	ToolsUsed  []string `json:"tools_used"`
	Iterations int      `json:"iterations"`
}

// ScenarioResponse is the response body for POST /api/v1/agent/analyze
type ScenarioResponse struct {
	Analysis string           `json:"analysis"`
	Steps    []agent.Step     `json:"steps"`
	Metadata ScenarioMetadata `json:"metadata"`
}

// AgentHandler handles tool-calling agent HTTP requests
type AgentHandler struct {
	agents AgentService
	logger *zap.Logger
}

// NewAgentHandler creates a new AgentHandler
func NewAgentHandler(agents AgentService, logger *zap.Logger) *AgentHandler {
	return &AgentHandler{agents: agents, logger: logger}
}

// HandleRun handles POST /api/v1/agent: the query is answered by the agent,
// which may call tools along the way.
func (h *AgentHandler) HandleRun(w http.ResponseWriter, r *http.Request) {
	var req AgentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to parse request body", zap.Error(err))
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	output, err := h.agents.Run(r.Context(), req.Query)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("agent run completed",
		zap.String("request_id", middleware.GetRequestIDFromContext(r.Context())))

	if err := utils.WriteOK(w, AgentResponse{Response: output}); err != nil {
		h.logger.Error("failed to write agent response", zap.Error(err))
	}
}

// HandleAnalyze handles POST /api/v1/agent/analyze: the scenario is worked
// through step by step and the tool trail is returned with the answer.
func (h *AgentHandler) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req ScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to parse request body", zap.Error(err))
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	analysis, err := h.agents.Analyze(r.Context(), req.Scenario)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("scenario analysis completed",
		zap.String("request_id", middleware.GetRequestIDFromContext(r.Context())),
		zap.Int("steps", len(analysis.Steps)))

	if err := utils.WriteOK(w, ScenarioResponse{
		Analysis: analysis.Output,
		Steps:    analysis.Steps,
		Metadata: scenarioMetadata(analysis.Steps),
	}); err != nil {
		h.logger.Error("failed to write analysis response", zap.Error(err))
	}
}

// scenarioMetadata derives the distinct tools used and the iteration count
// from the step trail.
func scenarioMetadata(steps []agent.Step) ScenarioMetadata {
	meta := ScenarioMetadata{
		ToolsUsed:  make([]string, 0, len(steps)),
		Iterations: len(steps),
	}
	seen := make(map[string]struct{}, len(steps))
	for _, step := range steps {
		if _, ok := seen[step.Tool]; ok {
			continue
		}
		seen[step.Tool] = struct{}{}
		meta.ToolsUsed = append(meta.ToolsUsed, step.Tool)
	}
	return meta
}
