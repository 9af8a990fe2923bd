package documents

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/textsplitter"
	"go.uber.org/zap"

	"github.com/chainbridge-ai/chainbridge/services/embedding"
	"github.com/chainbridge-ai/chainbridge/services/llm"
	"github.com/chainbridge-ai/chainbridge/services/pipeline"
	"github.com/chainbridge-ai/chainbridge/services/prompt"
	"github.com/chainbridge-ai/chainbridge/services/retrieval"
	"github.com/chainbridge-ai/chainbridge/services/vectorstore"
)

// groundedTemplate forces answers to come from retrieved context only
const groundedTemplate = `Answer the question using only the context below. If the answer is not in the context, say "I don't know."

Context:
{context}

Question: {question}
Answer:`

// Service manages the document side of retrieval-augmented generation:
// ingesting raw text into the vector store and answering questions grounded
// in what was ingested.
type Service struct {
	splitter textsplitter.TextSplitter
	embedder embedding.Embedder
	store    vectorstore.Store
	grounded *pipeline.Pipeline
	logger   *zap.Logger
}

// Config wires a document Service
type Config struct {
	Embedder     embedding.Embedder
	Store        vectorstore.Store
	Backend      llm.Backend
	Stage        *retrieval.Stage
	ChunkSize    int
	ChunkOverlap int
	TopK         int
	Logger       *zap.Logger
}

// NewService creates a document service. Chunking parameters come from
// configuration; the grounded query pipeline aborts on retrieval failure
// because an ungrounded answer would defeat its purpose.
func NewService(cfg Config) (*Service, error) {
	grounded, err := pipeline.New(pipeline.Config{
		Backend:          cfg.Backend,
		Template:         prompt.New(groundedTemplate),
		InputVar:         "question",
		Retrieval:        cfg.Stage,
		TopK:             cfg.TopK,
		OnRetrievalError: pipeline.AbortOnRetrievalError,
		Logger:           cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build grounded pipeline: %w", err)
	}

	return &Service{
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(cfg.ChunkSize),
			textsplitter.WithChunkOverlap(cfg.ChunkOverlap),
		),
		embedder: cfg.Embedder,
		store:    cfg.Store,
		grounded: grounded,
		logger:   cfg.Logger,
	}, nil
}

// Ingest splits text into overlapping chunks, embeds them and upserts the
// vectors into the namespace. Each chunk carries its own text and the caller
// supplied source tag as metadata so retrieval can reconstruct it later.
// Returns the number of chunks stored.
func (s *Service) Ingest(ctx context.Context, text, source, namespace string) (int, error) {
	if strings.TrimSpace(text) == "" {
		return 0, fmt.Errorf("document text must not be empty")
	}
	if namespace == "" {
		namespace = retrieval.DefaultNamespace
	}

	chunks, err := s.splitter.SplitText(text)
	if err != nil {
		return 0, fmt.Errorf("failed to split document: %w", err)
	}
	if len(chunks) == 0 {
		return 0, nil
	}

	vectors, err := s.embedder.EmbedDocuments(ctx, chunks)
	if err != nil {
		return 0, fmt.Errorf("failed to embed document chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return 0, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
	}

	entries := make([]vectorstore.Entry, len(chunks))
	for i, chunk := range chunks {
		metadata := map[string]string{"text": chunk}
		if source != "" {
			metadata["source"] = source
		}
		entries[i] = vectorstore.Entry{
			ID:       uuid.NewString(),
			Values:   vectors[i],
			Metadata: metadata,
		}
	}

	if err := s.store.Upsert(ctx, namespace, entries); err != nil {
		return 0, fmt.Errorf("failed to upsert document chunks: %w", err)
	}

	s.logger.Info("document ingested",
		zap.String("namespace", namespace),
		zap.String("source", source),
		zap.Int("chunks", len(entries)))
	return len(entries), nil
}

// Query answers a question grounded in previously ingested documents. The
// returned result carries both the answer and the retrieved context that
// produced it.
func (s *Service) Query(ctx context.Context, question, namespace string) (*pipeline.Result, error) {
	return s.grounded.Run(ctx, pipeline.Request{Input: question, Namespace: namespace})
}

// Purge removes every vector in the namespace
func (s *Service) Purge(ctx context.Context, namespace string) error {
	if namespace == "" {
		namespace = retrieval.DefaultNamespace
	}
	if err := s.store.DeleteAll(ctx, namespace); err != nil {
		return fmt.Errorf("failed to purge namespace %q: %w", namespace, err)
	}
	s.logger.Info("namespace purged", zap.String("namespace", namespace))
	return nil
}
