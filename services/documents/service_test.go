package documents

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chainbridge-ai/chainbridge/services/llm"
	"github.com/chainbridge-ai/chainbridge/services/pipeline"
	"github.com/chainbridge-ai/chainbridge/services/retrieval"
	"github.com/chainbridge-ai/chainbridge/services/vectorstore"
)

type fakeEmbedder struct {
	batches [][]string
}

func (f *fakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return []float32{0.5}, nil
}

func (f *fakeEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	f.batches = append(f.batches, texts)
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(i)}
	}
	return out, nil
}

type memoryStore struct {
	entries map[string][]vectorstore.Entry
	deleted []string
	err     error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{entries: make(map[string][]vectorstore.Entry)}
}

func (m *memoryStore) Upsert(ctx context.Context, ns string, entries []vectorstore.Entry) error {
	if m.err != nil {
		return m.err
	}
	m.entries[ns] = append(m.entries[ns], entries...)
	return nil
}

func (m *memoryStore) Query(ctx context.Context, ns string, vector []float32, topK int) ([]vectorstore.Match, error) {
	if m.err != nil {
		return nil, m.err
	}
	stored := m.entries[ns]
	if len(stored) > topK {
		stored = stored[:topK]
	}
	matches := make([]vectorstore.Match, len(stored))
	for i, e := range stored {
		matches[i] = vectorstore.Match{ID: e.ID, Score: 0.9, Metadata: e.Metadata}
	}
	return matches, nil
}

func (m *memoryStore) DeleteAll(ctx context.Context, ns string) error {
	if m.err != nil {
		return m.err
	}
	m.deleted = append(m.deleted, ns)
	delete(m.entries, ns)
	return nil
}

type echoBackend struct {
	prompts []string
}

func (e *echoBackend) Invoke(ctx context.Context, prompt string) (string, error) {
	e.prompts = append(e.prompts, prompt)
	return "grounded answer", nil
}

func (e *echoBackend) Stream(ctx context.Context, prompt string, fn llm.StreamFunc) error {
	return fn(ctx, "grounded answer")
}

func newTestService(t *testing.T, embedder *fakeEmbedder, store *memoryStore, backend llm.Backend) *Service {
	t.Helper()
	stage := retrieval.NewStage(embedder, store, "", zap.NewNop())
	svc, err := NewService(Config{
		Embedder:     embedder,
		Store:        store,
		Backend:      backend,
		Stage:        stage,
		ChunkSize:    200,
		ChunkOverlap: 50,
		TopK:         3,
		Logger:       zap.NewNop(),
	})
	require.NoError(t, err)
	return svc
}

func TestIngest(t *testing.T) {
	embedder := &fakeEmbedder{}
	store := newMemoryStore()
	svc := newTestService(t, embedder, store, &echoBackend{})

	text := strings.Repeat("Pinecone indexes store dense vectors for similarity search. ", 12)
	count, err := svc.Ingest(context.Background(), text, "notes.txt", "kb")
	require.NoError(t, err)
	assert.Greater(t, count, 1, "long text should split into multiple chunks")
	assert.Len(t, store.entries["kb"], count)

	for _, entry := range store.entries["kb"] {
		assert.NotEmpty(t, entry.ID)
		assert.NotEmpty(t, entry.Metadata["text"])
		assert.Equal(t, "notes.txt", entry.Metadata["source"])
	}
}

func TestIngestDefaultsNamespace(t *testing.T) {
	store := newMemoryStore()
	svc := newTestService(t, &fakeEmbedder{}, store, &echoBackend{})

	_, err := svc.Ingest(context.Background(), "a short fact", "", "")
	require.NoError(t, err)
	assert.NotEmpty(t, store.entries[retrieval.DefaultNamespace])
}

func TestIngestEmptyText(t *testing.T) {
	svc := newTestService(t, &fakeEmbedder{}, newMemoryStore(), &echoBackend{})

	_, err := svc.Ingest(context.Background(), "   \n ", "notes.txt", "kb")
	assert.Error(t, err)
}

func TestIngestStoreFailure(t *testing.T) {
	store := newMemoryStore()
	store.err = errors.New("store down")
	svc := newTestService(t, &fakeEmbedder{}, store, &echoBackend{})

	_, err := svc.Ingest(context.Background(), "a fact", "notes.txt", "kb")
	assert.Error(t, err)
}

func TestQueryGroundsPromptInContext(t *testing.T) {
	embedder := &fakeEmbedder{}
	store := newMemoryStore()
	backend := &echoBackend{}
	svc := newTestService(t, embedder, store, backend)

	_, err := svc.Ingest(context.Background(), "The index lives in us-east-1.", "notes.txt", "kb")
	require.NoError(t, err)

	res, err := svc.Query(context.Background(), "where does the index live?", "kb")
	require.NoError(t, err)
	assert.Equal(t, pipeline.OutcomeCompleted, res.Outcome)
	assert.Equal(t, "grounded answer", res.Output)
	assert.False(t, res.Context.Empty())

	require.Len(t, backend.prompts, 1)
	assert.Contains(t, backend.prompts[0], "The index lives in us-east-1.")
	assert.Contains(t, backend.prompts[0], "where does the index live?")
}

func TestQueryStoreFailureAborts(t *testing.T) {
	store := newMemoryStore()
	store.err = errors.New("store down")
	svc := newTestService(t, &fakeEmbedder{}, store, &echoBackend{})

	_, err := svc.Query(context.Background(), "anything", "kb")
	assert.ErrorIs(t, err, retrieval.ErrRetrievalFailed)
}

func TestPurge(t *testing.T) {
	store := newMemoryStore()
	svc := newTestService(t, &fakeEmbedder{}, store, &echoBackend{})

	require.NoError(t, svc.Purge(context.Background(), "kb"))
	require.NoError(t, svc.Purge(context.Background(), ""))
	assert.Equal(t, []string{"kb", retrieval.DefaultNamespace}, store.deleted)
}
