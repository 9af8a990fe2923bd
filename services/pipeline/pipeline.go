package pipeline

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/chainbridge-ai/chainbridge/services/llm"
	"github.com/chainbridge-ai/chainbridge/services/prompt"
	"github.com/chainbridge-ai/chainbridge/services/retrieval"
)

// Outcome is the terminal state of one pipeline run
type Outcome string

const (
	// OutcomeCompleted means the backend produced its full completion
	OutcomeCompleted Outcome = "completed"

	// OutcomeCancelled means the cancellation token fired first. This is a
	// normal terminal outcome, not an error.
	OutcomeCancelled Outcome = "cancelled"
)

// RetrievalErrorPolicy decides what a pipeline does when retrieval fails
type RetrievalErrorPolicy int

const (
	// AbortOnRetrievalError propagates retrieval failures to the caller
	AbortOnRetrievalError RetrievalErrorPolicy = iota

	// DegradeOnRetrievalError continues with an empty context block
	DegradeOnRetrievalError
)

// Selector resolves free-form input to the pipeline that should handle it
// (the classify-then-route step). Implementations typically wrap a
// classifier and a router.
type Selector func(ctx context.Context, input string) (*Pipeline, error)

// Request is the unit of work submitted to a pipeline. It is owned by one
// request lifecycle and discarded after completion or cancellation.
type Request struct {
	// Input is the raw user input bound to the pipeline's input variable
	Input string

	// Namespace optionally overrides the retrieval namespace. Empty means
	// the configured default partition.
	Namespace string

	// Token optionally carries the request's cancellation signal
	Token *Token
}

// Result is the outcome of a blocking pipeline run
type Result struct {
	// Output is the completion text (empty when cancelled)
	Output string

	// Context is the retrieval context used, when retrieval ran
	Context *retrieval.Context

	// Outcome distinguishes completion from cancellation
	Outcome Outcome
}

// Config configures a Pipeline
type Config struct {
	// Backend invokes text generation. Required unless Selector is set.
	Backend llm.Backend

	// Template is the generation prompt. Required unless Selector is set.
	Template *prompt.Template

	// InputVar is the template variable the request input binds to
	// (e.g. "message", "question", "topic")
	InputVar string

	// Selector, when set, makes this pipeline a pure dispatcher: input is
	// classified and the run delegates to the selected pipeline.
	Selector Selector

	// Retrieval, when set, grounds generation with retrieved context bound
	// to ContextVar before rendering.
	Retrieval *retrieval.Stage

	// ContextVar is the template variable the context block binds to.
	// Defaults to "context".
	ContextVar string

	// TopK is the number of snippets fetched when Retrieval is set
	TopK int

	// OnRetrievalError selects abort or degrade-to-empty-context behavior
	OnRetrievalError RetrievalErrorPolicy

	Logger *zap.Logger
}

// Pipeline ties prompt rendering, optional classification/routing, optional
// retrieval and backend invocation into one request/response cycle.
//
// Stages within a single run execute strictly in sequence; only whole
// pipelines run concurrently with each other (see RunParallel). The
// cancellation token is checked at stage boundaries: before invoking the
// backend, and between streamed fragments. Cancellation is cooperative; the
// pipeline never interrupts backend-internal work.
type Pipeline struct {
	backend          llm.Backend
	template         *prompt.Template
	inputVar         string
	selector         Selector
	retrieval        *retrieval.Stage
	contextVar       string
	topK             int
	onRetrievalError RetrievalErrorPolicy
	logger           *zap.Logger
}

// New creates a Pipeline from cfg
func New(cfg Config) (*Pipeline, error) {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Selector == nil {
		if cfg.Backend == nil {
			return nil, errors.New("pipeline requires a backend")
		}
		if cfg.Template == nil {
			return nil, errors.New("pipeline requires a template")
		}
		if cfg.InputVar == "" {
			return nil, errors.New("pipeline requires an input variable name")
		}
	}
	if cfg.Retrieval != nil && cfg.TopK < 0 {
		return nil, errors.New("pipeline topK must be >= 0")
	}
	if cfg.ContextVar == "" {
		cfg.ContextVar = "context"
	}
	return &Pipeline{
		backend:          cfg.Backend,
		template:         cfg.Template,
		inputVar:         cfg.InputVar,
		selector:         cfg.Selector,
		retrieval:        cfg.Retrieval,
		contextVar:       cfg.ContextVar,
		topK:             cfg.TopK,
		onRetrievalError: cfg.OnRetrievalError,
		logger:           cfg.Logger,
	}, nil
}

// Run executes the pipeline in blocking mode: render, classify/route and
// retrieve as configured, then invoke the backend and wait for the full
// completion. A token cancelled before backend invocation yields an
// OutcomeCancelled result with zero backend calls.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	if req.Token.cancelledOrNil() {
		return &Result{Outcome: OutcomeCancelled}, nil
	}

	if p.selector != nil {
		sub, err := p.selector(ctx, req.Input)
		if err != nil {
			return nil, err
		}
		return sub.Run(ctx, req)
	}

	rendered, retrieved, err := p.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	// Suspension point: last token check before the backend call
	if req.Token.cancelledOrNil() {
		return &Result{Context: retrieved, Outcome: OutcomeCancelled}, nil
	}

	ictx, cancel := bindToken(ctx, req.Token)
	defer cancel()

	output, err := p.backend.Invoke(ictx, rendered)
	if err != nil {
		if req.Token.cancelledOrNil() {
			return &Result{Context: retrieved, Outcome: OutcomeCancelled}, nil
		}
		return nil, err
	}

	return &Result{Output: output, Context: retrieved, Outcome: OutcomeCompleted}, nil
}

// prepare runs the retrieval stage (when configured) and renders the final
// prompt. The context block is a template variable, so rendering happens
// after retrieval.
func (p *Pipeline) prepare(ctx context.Context, req Request) (string, *retrieval.Context, error) {
	vars := map[string]string{p.inputVar: req.Input}

	var retrieved *retrieval.Context
	if p.retrieval != nil {
		rc, err := p.retrieval.Retrieve(ctx, req.Input, req.Namespace, p.topK)
		if err != nil {
			if p.onRetrievalError == AbortOnRetrievalError {
				return "", nil, err
			}
			p.logger.Warn("retrieval failed, continuing with empty context",
				zap.Error(err))
			rc = &retrieval.Context{}
		}
		retrieved = rc
		vars[p.contextVar] = rc.Block()
	}

	rendered, err := p.template.Render(vars)
	if err != nil {
		return "", nil, fmt.Errorf("render prompt: %w", err)
	}
	return rendered, retrieved, nil
}

// bindToken derives a context cancelled when the token fires, so blocking
// backend calls return promptly instead of waiting for the backend to flush.
func bindToken(ctx context.Context, tok *Token) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	if tok == nil {
		return ctx, cancel
	}
	go func() {
		select {
		case <-tok.Done():
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// cancelledOrNil reports token state, treating a nil token as never set
func (t *Token) cancelledOrNil() bool {
	return t != nil && t.Cancelled()
}
