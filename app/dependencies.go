package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/chainbridge-ai/chainbridge/config"
	"github.com/chainbridge-ai/chainbridge/handlers"
	"github.com/chainbridge-ai/chainbridge/services/agent"
	"github.com/chainbridge-ai/chainbridge/services/classify"
	"github.com/chainbridge-ai/chainbridge/services/documents"
	"github.com/chainbridge-ai/chainbridge/services/embedding"
	"github.com/chainbridge-ai/chainbridge/services/llm"
	"github.com/chainbridge-ai/chainbridge/services/pipeline"
	"github.com/chainbridge-ai/chainbridge/services/prompt"
	"github.com/chainbridge-ai/chainbridge/services/retrieval"
	"github.com/chainbridge-ai/chainbridge/services/route"
	"github.com/chainbridge-ai/chainbridge/services/vectorstore"
)

// Support categories for the routed chat endpoint. TechSupport is declared
// before Billing so that an answer naming both resolves to TechSupport.
const (
	LabelTechSupport classify.Label = "TechSupport"
	LabelBilling     classify.Label = "Billing"
	LabelGeneral     classify.Label = "General"
)

// Prompt templates backing the preconfigured pipelines
const (
	chatTemplate = `You are a helpful assistant. Answer the user's question clearly and concisely.

User: {message}
Assistant:`

	billingTemplate = `You are a billing support specialist. Help the customer with payments, invoices, refunds and subscription questions.

Customer: {message}
Specialist:`

	techSupportTemplate = `You are a technical support engineer. Diagnose the customer's problem and walk them through a fix step by step.

Customer: {message}
Engineer:`

	essayTemplate = `Write a detailed, well-structured essay about the following topic.

Topic: {topic}

Essay:`

	jokeTemplate = `Tell me a short, clever joke about {topic}.`

	poemTemplate = `Write a short poem about {topic}.`
)

// Dependencies holds all initialized application dependencies
type Dependencies struct {
	Config *config.Config
	Logger *zap.Logger

	Backend   llm.Backend
	Embedder  embedding.Embedder
	Store     vectorstore.Store
	Retrieval *retrieval.Stage
	Documents *documents.Service
	Agents    *agent.Service

	ChatHandler     *handlers.ChatHandler
	AgentHandler    *handlers.AgentHandler
	DocumentHandler *handlers.DocumentHandler
	HealthHandler   *handlers.HealthHandler
}

// NewDependencies initializes the dependency graph: config, logger, provider
// adapters, pipelines and handlers, in that order.
func NewDependencies(cfg *config.Config) (*Dependencies, error) {
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	backend, err := llm.NewOpenAIBackend(cfg.OpenAI)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize llm backend: %w", err)
	}

	embedder, err := embedding.NewOpenAIEmbedder(cfg.OpenAI)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	store := vectorstore.NewPineconeStore(cfg.Pinecone, logger)
	stage := retrieval.NewStage(embedder, store, cfg.Pipeline.DefaultNamespace, logger)

	chat, err := pipeline.New(pipeline.Config{
		Backend:  backend,
		Template: prompt.New(chatTemplate),
		InputVar: "message",
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build chat pipeline: %w", err)
	}

	routed, err := buildRoutedPipeline(backend, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build routed pipeline: %w", err)
	}

	essay, err := pipeline.New(pipeline.Config{
		Backend:  backend,
		Template: prompt.New(essayTemplate),
		InputVar: "topic",
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build essay pipeline: %w", err)
	}

	joke, err := pipeline.New(pipeline.Config{
		Backend:  backend,
		Template: prompt.New(jokeTemplate),
		InputVar: "topic",
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build joke pipeline: %w", err)
	}

	poem, err := pipeline.New(pipeline.Config{
		Backend:  backend,
		Template: prompt.New(poemTemplate),
		InputVar: "topic",
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build poem pipeline: %w", err)
	}

	docs, err := documents.NewService(documents.Config{
		Embedder:     embedder,
		Store:        store,
		Backend:      backend,
		Stage:        stage,
		ChunkSize:    cfg.Pipeline.ChunkSize,
		ChunkOverlap: cfg.Pipeline.ChunkOverlap,
		TopK:         cfg.Pipeline.TopK,
		Logger:       logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build document service: %w", err)
	}

	agents := agent.NewService(backend.Model(), logger)

	deps := &Dependencies{
		Config:    cfg,
		Logger:    logger,
		Backend:   backend,
		Embedder:  embedder,
		Store:     store,
		Retrieval: stage,
		Documents: docs,
		Agents:    agents,
	}

	deps.ChatHandler = handlers.NewChatHandler(chat, routed, essay, joke, poem,
		cfg.Pipeline.StreamTimeout, logger)
	deps.AgentHandler = handlers.NewAgentHandler(agents, logger)
	deps.DocumentHandler = handlers.NewDocumentHandler(docs, logger)
	deps.HealthHandler = handlers.NewHealthHandler(deps.readinessChecks(), logger)

	logger.Info("dependencies initialized",
		zap.String("environment", cfg.Environment),
		zap.String("model", cfg.OpenAI.Model),
		zap.String("embedding_model", cfg.OpenAI.EmbeddingModel))

	return deps, nil
}

// buildRoutedPipeline assembles the classification dispatcher: a classifier
// picks a label, the router maps it to an expert pipeline, and the dispatcher
// delegates the whole run to it.
func buildRoutedPipeline(backend llm.Backend, logger *zap.Logger) (*pipeline.Pipeline, error) {
	billing, err := pipeline.New(pipeline.Config{
		Backend:  backend,
		Template: prompt.New(billingTemplate),
		InputVar: "message",
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}

	techSupport, err := pipeline.New(pipeline.Config{
		Backend:  backend,
		Template: prompt.New(techSupportTemplate),
		InputVar: "message",
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}

	general, err := pipeline.New(pipeline.Config{
		Backend:  backend,
		Template: prompt.New(chatTemplate),
		InputVar: "message",
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}

	router, err := route.NewRouter(
		route.Rule{Match: route.LabelIs(LabelBilling), Pipeline: billing},
		route.Rule{Match: route.LabelIs(LabelTechSupport), Pipeline: techSupport},
		route.Default(general),
	)
	if err != nil {
		return nil, err
	}

	classifier := classify.NewClassifier(backend, logger)
	labelSet := []classify.Label{LabelTechSupport, LabelBilling, LabelGeneral}

	return pipeline.New(pipeline.Config{
		Selector: func(ctx context.Context, input string) (*pipeline.Pipeline, error) {
			label, err := classifier.Classify(ctx, input, labelSet, LabelGeneral)
			if err != nil {
				return nil, err
			}
			logger.Debug("question classified", zap.String("label", string(label)))
			return router.Route(label), nil
		},
		Logger: logger,
	})
}

// readinessChecks verifies the configuration of the external collaborators.
// The checks are configuration-level on purpose: probing the real OpenAI and
// Pinecone APIs on every readyz scrape would burn quota.
func (d *Dependencies) readinessChecks() map[string]handlers.ReadinessCheck {
	return map[string]handlers.ReadinessCheck{
		"llm": func(ctx context.Context) error {
			if d.Config.OpenAI.APIKey == "" {
				return fmt.Errorf("openai api key not configured")
			}
			return nil
		},
		"vectorstore": func(ctx context.Context) error {
			if d.Config.Pinecone.IndexHost == "" {
				return fmt.Errorf("pinecone index host not configured")
			}
			return nil
		},
	}
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Observability.LogLevel)
	if err != nil {
		level = zapcore.InfoLevel
	}

	var zcfg zap.Config
	if cfg.Environment == "production" {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
	}
	if cfg.Observability.LogFormat == "text" {
		zcfg.Encoding = "console"
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)

	return zcfg.Build()
}

// Close flushes buffered log entries
func (d *Dependencies) Close() {
	if d.Logger != nil {
		_ = d.Logger.Sync()
	}
}
