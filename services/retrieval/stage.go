package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/chainbridge-ai/chainbridge/services/embedding"
	"github.com/chainbridge-ai/chainbridge/services/vectorstore"
)

// DefaultNamespace is the vector store partition used when a caller leaves
// the namespace empty. This is a deliberate convention shared by every
// optional-namespace surface, not an accidental literal.
const DefaultNamespace = "default"

// ErrRetrievalFailed is returned when embedding or the vector store query
// fails. It is distinct from llm.ErrBackendUnavailable so callers can choose
// to degrade to ungrounded generation instead of aborting.
var ErrRetrievalFailed = errors.New("retrieval failed")

// Snippet is one retrieved text chunk tagged with its similarity score and
// source identifier.
type Snippet struct {
	Text   string  `json:"text"`
	Score  float64 `json:"score"`
	Source string  `json:"source"`
}

// Context is the ordered retrieval result for one query. Insertion order is
// similarity rank, descending. Empty is valid and yields an empty block.
type Context struct {
	Snippets []Snippet `json:"snippets"`
}

// Block joins the snippet texts into a single context block with newline
// separators, for interpolation into a generation prompt.
func (c *Context) Block() string {
	if c == nil || len(c.Snippets) == 0 {
		return ""
	}
	texts := make([]string, len(c.Snippets))
	for i, s := range c.Snippets {
		texts[i] = s.Text
	}
	return strings.Join(texts, "\n")
}

// Empty reports whether no snippets were retrieved
func (c *Context) Empty() bool {
	return c == nil || len(c.Snippets) == 0
}

// Stage fetches grounding context for a query from the vector store
type Stage struct {
	embedder         embedding.Embedder
	store            vectorstore.Store
	defaultNamespace string
	logger           *zap.Logger
}

// NewStage creates a retrieval stage. defaultNamespace is substituted for
// empty namespaces; when itself empty, DefaultNamespace applies.
func NewStage(embedder embedding.Embedder, store vectorstore.Store, defaultNamespace string, logger *zap.Logger) *Stage {
	if defaultNamespace == "" {
		defaultNamespace = DefaultNamespace
	}
	return &Stage{
		embedder:         embedder,
		store:            store,
		defaultNamespace: defaultNamespace,
		logger:           logger,
	}
}

// Retrieve embeds the query, fetches the k nearest vectors in the namespace
// and maps each match to its stored text, preserving similarity-descending
// order. Zero matches yield an empty Context, not an error.
//
// All top-k matches are included regardless of absolute score. A threshold
// filter was considered and rejected for now; see DESIGN.md before changing
// this contract.
func (s *Stage) Retrieve(ctx context.Context, query, namespace string, k int) (*Context, error) {
	if k < 0 {
		return nil, fmt.Errorf("%w: k must be >= 0, got %d", ErrRetrievalFailed, k)
	}
	if namespace == "" {
		namespace = s.defaultNamespace
	}
	if k == 0 {
		return &Context{}, nil
	}

	vector, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: embed query: %v", ErrRetrievalFailed, err)
	}

	matches, err := s.store.Query(ctx, namespace, vector, k)
	if err != nil {
		return nil, fmt.Errorf("%w: vector query: %v", ErrRetrievalFailed, err)
	}

	snippets := make([]Snippet, 0, len(matches))
	for _, m := range matches {
		snippets = append(snippets, Snippet{
			Text:   m.Metadata["text"],
			Score:  m.Score,
			Source: m.ID,
		})
	}

	s.logger.Debug("context retrieved",
		zap.String("namespace", namespace),
		zap.Int("requested", k),
		zap.Int("matched", len(snippets)))

	return &Context{Snippets: snippets}, nil
}
