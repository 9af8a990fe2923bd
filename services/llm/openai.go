package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/chainbridge-ai/chainbridge/config"
)

// OpenAIBackend implements Backend on top of the OpenAI chat completion API
type OpenAIBackend struct {
	model       llms.Model
	temperature float64
}

// NewOpenAIBackend creates a new OpenAI-backed text generation backend
func NewOpenAIBackend(cfg config.OpenAIConfig) (*OpenAIBackend, error) {
	opts := []openai.Option{
		openai.WithToken(cfg.APIKey),
		openai.WithModel(cfg.Model),
		openai.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}

	model, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OpenAI client: %w", err)
	}

	return &OpenAIBackend{model: model, temperature: cfg.Temperature}, nil
}

// Model exposes the underlying langchaingo model for components that drive
// it directly, such as the tool-calling agent.
func (b *OpenAIBackend) Model() llms.Model {
	return b.model
}

// Invoke performs a blocking completion
func (b *OpenAIBackend) Invoke(ctx context.Context, prompt string) (string, error) {
	out, err := llms.GenerateFromSinglePrompt(ctx, b.model, prompt,
		llms.WithTemperature(b.temperature))
	if err != nil {
		return "", b.wrapErr(ctx, "invoke", err)
	}
	return strings.TrimSpace(out), nil
}

// Stream produces the completion incrementally. Fragments are forwarded to fn
// in arrival order; a fn error or context cancellation stops the stream.
func (b *OpenAIBackend) Stream(ctx context.Context, prompt string, fn StreamFunc) error {
	_, err := llms.GenerateFromSinglePrompt(ctx, b.model, prompt,
		llms.WithTemperature(b.temperature),
		llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
			return fn(ctx, string(chunk))
		}))
	if err != nil {
		return b.wrapErr(ctx, "stream", err)
	}
	return nil
}

// wrapErr classifies a provider error. Context cancellation is the caller's
// own doing and passes through untouched; everything else is a backend
// availability problem.
func (b *OpenAIBackend) wrapErr(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return NewBackendError("openai", op, err)
}
