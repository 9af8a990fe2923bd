package embedding

import (
	"context"
	"fmt"
	"net/http"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/chainbridge-ai/chainbridge/config"
)

// Embedder turns text into fixed-length vectors. Dimensionality is defined by
// the backing model.
type Embedder interface {
	// EmbedQuery embeds a single query string
	EmbedQuery(ctx context.Context, text string) ([]float32, error)

	// EmbedDocuments embeds a batch of document chunks
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

// OpenAIEmbedder implements Embedder on top of the OpenAI embeddings API
type OpenAIEmbedder struct {
	impl embeddings.Embedder
}

// NewOpenAIEmbedder creates a new OpenAI-backed embedder
func NewOpenAIEmbedder(cfg config.OpenAIConfig) (*OpenAIEmbedder, error) {
	opts := []openai.Option{
		openai.WithToken(cfg.APIKey),
		openai.WithEmbeddingModel(cfg.EmbeddingModel),
		openai.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}

	client, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OpenAI client: %w", err)
	}
	impl, err := embeddings.NewEmbedder(client)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}

	return &OpenAIEmbedder{impl: impl}, nil
}

// EmbedQuery embeds a single query string
func (e *OpenAIEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vec, err := e.impl.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return vec, nil
}

// EmbedDocuments embeds a batch of document chunks
func (e *OpenAIEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	vecs, err := e.impl.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed documents: %w", err)
	}
	return vecs, nil
}
