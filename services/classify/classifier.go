package classify

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/chainbridge-ai/chainbridge/services/llm"
	"github.com/chainbridge-ai/chainbridge/services/prompt"
)

// Label is one member of a closed classification label set
type Label string

// classificationTemplate is the fixed prompt used to classify an input
// against a label set. The backend is asked for exactly one word, but the
// matching below tolerates surrounding phrasing regardless.
var classificationTemplate = prompt.New(
	`Given the user question below, classify it into exactly one category: {categories}.
If the question mentions multiple topics, choose the most dominant one.
Respond with exactly one word from the categories above.

Question: {question}

Classification:`)

// Classifier maps free-form input to a label from a fixed set using the text
// generation backend.
type Classifier struct {
	backend llm.Backend
	logger  *zap.Logger
}

// NewClassifier creates a new Classifier
func NewClassifier(backend llm.Backend, logger *zap.Logger) *Classifier {
	return &Classifier{backend: backend, logger: logger}
}

// Classify renders the classification prompt for input, invokes the backend
// in blocking mode and resolves the result to one label. The raw result is
// lower-cased and scanned against the label set in declaration order; the
// first label whose lower-cased form is a substring of the result wins. When
// no label matches, defaultLabel is returned. Declaration order, not model
// confidence, is the tie-break: the backend gives no calibrated probability.
//
// A backend failure propagates as llm.ErrBackendUnavailable; the classifier
// never silently falls back to the default on error.
func (c *Classifier) Classify(ctx context.Context, input string, labelSet []Label, defaultLabel Label) (Label, error) {
	rendered, err := classificationTemplate.Render(map[string]string{
		"categories": joinLabels(labelSet),
		"question":   input,
	})
	if err != nil {
		return "", fmt.Errorf("render classification prompt: %w", err)
	}

	raw, err := c.backend.Invoke(ctx, rendered)
	if err != nil {
		return "", err
	}

	normalized := strings.ToLower(raw)
	for _, label := range labelSet {
		if strings.Contains(normalized, strings.ToLower(string(label))) {
			c.logger.Debug("input classified",
				zap.String("label", string(label)),
				zap.String("raw", raw))
			return label, nil
		}
	}

	c.logger.Debug("no label matched, using default",
		zap.String("default", string(defaultLabel)),
		zap.String("raw", raw))
	return defaultLabel, nil
}

// joinLabels renders a label set as 'A', 'B', or 'C' for the prompt
func joinLabels(labels []Label) string {
	quoted := make([]string, len(labels))
	for i, l := range labels {
		quoted[i] = "'" + string(l) + "'"
	}
	if len(quoted) > 1 {
		return strings.Join(quoted[:len(quoted)-1], ", ") + ", or " + quoted[len(quoted)-1]
	}
	return strings.Join(quoted, ", ")
}
