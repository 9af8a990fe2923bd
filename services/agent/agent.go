package agent

import (
	"context"
	"strings"

	"github.com/tmc/langchaingo/agents"
	"github.com/tmc/langchaingo/chains"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/tools"
	"go.uber.org/zap"

	"github.com/chainbridge-ai/chainbridge/services/llm"
)

// maxIterations bounds the plan/act loop so a confused model cannot spin
// tool calls forever.
const maxIterations = 5

const assistantSystemMessage = "You are a helpful AI assistant that can use tools to answer questions."

const analystSystemMessage = `You are an advanced AI business analyst assistant. Your capabilities include:
- Breaking down complex business problems into smaller steps
- Performing numerical calculations and analysis
- Providing detailed explanations of your reasoning
- Making data-driven recommendations

Always structure your response in this format:
1. First, analyze the problem and break it down
2. Show your calculations clearly
3. Explain your reasoning
4. Provide actionable recommendations`

// Step is one tool invocation taken while answering
type Step struct {
	Tool        string `json:"tool"`
	Input       string `json:"input"`
	Observation string `json:"observation"`
}

// Analysis is the result of a scenario analysis: the final answer plus the
// tool trail that produced it.
type Analysis struct {
	Output string `json:"output"`
	Steps  []Step `json:"steps"`
}

// Service runs tool-calling agents over the text generation model. The
// agent plans with OpenAI function calling and currently carries a single
// calculator tool; each request gets a fresh executor, so the service is
// stateless and safe for concurrent use.
type Service struct {
	model  llms.Model
	logger *zap.Logger
}

// NewService creates a new agent service on top of the given model
func NewService(model llms.Model, logger *zap.Logger) *Service {
	return &Service{model: model, logger: logger}
}

// Run answers a free-form query, letting the agent call tools as needed,
// and returns the final answer text.
func (s *Service) Run(ctx context.Context, query string) (string, error) {
	executor := s.newExecutor(assistantSystemMessage)

	output, err := chains.Run(ctx, executor, query)
	if err != nil {
		return "", s.wrapErr(ctx, err)
	}

	s.logger.Debug("agent run completed", zap.Int("output_len", len(output)))
	return strings.TrimSpace(output), nil
}

// Analyze works through a business scenario with the analyst prompt and
// returns the answer together with the intermediate tool steps.
func (s *Service) Analyze(ctx context.Context, scenario string) (*Analysis, error) {
	executor := s.newExecutor(analystSystemMessage, agents.WithReturnIntermediateSteps())

	result, err := chains.Call(ctx, executor, map[string]any{"input": scenario})
	if err != nil {
		return nil, s.wrapErr(ctx, err)
	}

	output, _ := result["output"].(string)
	analysis := &Analysis{Output: strings.TrimSpace(output)}

	if raw, ok := result["intermediateSteps"].([]schema.AgentStep); ok {
		analysis.Steps = make([]Step, 0, len(raw))
		for _, step := range raw {
			analysis.Steps = append(analysis.Steps, Step{
				Tool:        step.Action.Tool,
				Input:       step.Action.ToolInput,
				Observation: step.Observation,
			})
		}
	}

	s.logger.Debug("scenario analysis completed",
		zap.Int("steps", len(analysis.Steps)))
	return analysis, nil
}

func (s *Service) newExecutor(systemMessage string, opts ...agents.CreationOption) agents.Executor {
	agentTools := []tools.Tool{tools.Calculator{}}
	a := agents.NewOpenAIFunctionsAgent(s.model, agentTools,
		agents.NewOpenAIOption().WithSystemMessage(systemMessage))

	opts = append(opts, agents.WithMaxIterations(maxIterations))
	return agents.NewExecutor(a, agentTools, opts...)
}

// wrapErr mirrors the backend adapter: caller cancellation passes through,
// everything else counts as an unavailable backend.
func (s *Service) wrapErr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return llm.NewBackendError("openai", "agent", err)
}
