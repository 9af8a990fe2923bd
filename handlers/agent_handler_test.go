package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chainbridge-ai/chainbridge/services/agent"
	"github.com/chainbridge-ai/chainbridge/services/llm"
)

type fakeAgentService struct {
	runOutput  string
	runErr     error
	analysis   *agent.Analysis
	analyzeErr error

	lastQuery    string
	lastScenario string
}

func (f *fakeAgentService) Run(ctx context.Context, query string) (string, error) {
	f.lastQuery = query
	return f.runOutput, f.runErr
}

func (f *fakeAgentService) Analyze(ctx context.Context, scenario string) (*agent.Analysis, error) {
	f.lastScenario = scenario
	return f.analysis, f.analyzeErr
}

func TestHandleAgentRun(t *testing.T) {
	svc := &fakeAgentService{runOutput: "3 times 4 is 12."}
	h := NewAgentHandler(svc, zap.NewNop())

	rec := doJSON(t, h.HandleRun, http.MethodPost, `{"query":"what is 3 times 4?"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "what is 3 times 4?", svc.lastQuery)

	var env struct {
		Data AgentResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	resp := env.Data
	assert.Equal(t, "3 times 4 is 12.", resp.Response)
}

func TestHandleAgentRunMissingQuery(t *testing.T) {
	svc := &fakeAgentService{}
	h := NewAgentHandler(svc, zap.NewNop())

	rec := doJSON(t, h.HandleRun, http.MethodPost, `{}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, svc.lastQuery)
}

func TestHandleAgentRunBackendDown(t *testing.T) {
	svc := &fakeAgentService{runErr: llm.NewBackendError("openai", "agent", assert.AnError)}
	h := NewAgentHandler(svc, zap.NewNop())

	rec := doJSON(t, h.HandleRun, http.MethodPost, `{"query":"anything"}`)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestHandleAgentAnalyze(t *testing.T) {
	svc := &fakeAgentService{analysis: &agent.Analysis{
		Output: "The discount is 180.",
		Steps: []agent.Step{
			{Tool: "calculator", Input: "12*15", Observation: "180"},
			{Tool: "calculator", Input: "180*2", Observation: "360"},
		},
	}}
	h := NewAgentHandler(svc, zap.NewNop())

	rec := doJSON(t, h.HandleAnalyze, http.MethodPost, `{"scenario":"discount math"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "discount math", svc.lastScenario)

	var env struct {
		Data ScenarioResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	resp := env.Data
	assert.Equal(t, "The discount is 180.", resp.Analysis)
	assert.Len(t, resp.Steps, 2)
	// Two calculator steps collapse to one distinct tool
	assert.Equal(t, []string{"calculator"}, resp.Metadata.ToolsUsed)
	assert.Equal(t, 2, resp.Metadata.Iterations)
}

func TestHandleAgentAnalyzeMissingScenario(t *testing.T) {
	svc := &fakeAgentService{}
	h := NewAgentHandler(svc, zap.NewNop())

	rec := doJSON(t, h.HandleAnalyze, http.MethodPost, `{"scenario":""}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, svc.lastScenario)
}
