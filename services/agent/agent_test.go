package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"
	"go.uber.org/zap"

	"github.com/chainbridge-ai/chainbridge/services/llm"
)

// scriptedModel replays a fixed sequence of model responses
type scriptedModel struct {
	responses []*llms.ContentResponse
	err       error
	calls     int
}

func (m *scriptedModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.calls >= len(m.responses) {
		return nil, errors.New("model called more often than scripted")
	}
	resp := m.responses[m.calls]
	m.calls++
	return resp, nil
}

func (m *scriptedModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return "", errors.New("not implemented")
}

func textResponse(content string) *llms.ContentResponse {
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: content}}}
}

func toolCallResponse(tool, arg string) *llms.ContentResponse {
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{
		FuncCall: &schema.FunctionCall{
			Name:      tool,
			Arguments: `{"__arg1":"` + arg + `"}`,
		},
	}}}
}

func TestRunDirectAnswer(t *testing.T) {
	model := &scriptedModel{responses: []*llms.ContentResponse{
		textResponse("Paris is the capital of France."),
	}}
	svc := NewService(model, zap.NewNop())

	out, err := svc.Run(context.Background(), "what is the capital of France?")
	require.NoError(t, err)
	assert.Equal(t, "Paris is the capital of France.", out)
	assert.Equal(t, 1, model.calls)
}

func TestRunWithCalculatorTool(t *testing.T) {
	model := &scriptedModel{responses: []*llms.ContentResponse{
		toolCallResponse("calculator", "3*4"),
		textResponse("3 times 4 is 12."),
	}}
	svc := NewService(model, zap.NewNop())

	out, err := svc.Run(context.Background(), "what is 3 times 4?")
	require.NoError(t, err)
	assert.Equal(t, "3 times 4 is 12.", out)
	// One planning call, one final answer after the tool observation
	assert.Equal(t, 2, model.calls)
}

func TestAnalyzeCollectsSteps(t *testing.T) {
	model := &scriptedModel{responses: []*llms.ContentResponse{
		toolCallResponse("calculator", "12*15"),
		textResponse("The discount is 180."),
	}}
	svc := NewService(model, zap.NewNop())

	analysis, err := svc.Analyze(context.Background(), "what is a 15% discount on 1200?")
	require.NoError(t, err)
	assert.Equal(t, "The discount is 180.", analysis.Output)

	require.Len(t, analysis.Steps, 1)
	assert.Equal(t, "calculator", analysis.Steps[0].Tool)
	assert.Equal(t, "12*15", analysis.Steps[0].Input)
	assert.Equal(t, "180", analysis.Steps[0].Observation)
}

func TestRunModelFailure(t *testing.T) {
	model := &scriptedModel{err: errors.New("503 from provider")}
	svc := NewService(model, zap.NewNop())

	_, err := svc.Run(context.Background(), "anything")
	assert.ErrorIs(t, err, llm.ErrBackendUnavailable)
}

func TestRunCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	model := &scriptedModel{err: context.Canceled}
	svc := NewService(model, zap.NewNop())

	_, err := svc.Run(ctx, "anything")
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, llm.ErrBackendUnavailable)
}
