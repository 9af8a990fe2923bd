package route

import (
	"errors"

	"github.com/chainbridge-ai/chainbridge/services/classify"
	"github.com/chainbridge-ai/chainbridge/services/pipeline"
)

// ErrNoDefaultRule is returned when a Router is constructed without a
// trailing unconditional default rule.
var ErrNoDefaultRule = errors.New("router requires a trailing default rule")

// Predicate decides whether a rule applies to a classification label
type Predicate func(label classify.Label) bool

// Rule binds a predicate to the pipeline selected when it matches
type Rule struct {
	Match    Predicate
	Pipeline *pipeline.Pipeline
}

// LabelIs returns a predicate matching exactly the given label
func LabelIs(want classify.Label) Predicate {
	return func(label classify.Label) bool {
		return label == want
	}
}

// Default marks a rule as the unconditional fallback
func Default(p *pipeline.Pipeline) Rule {
	return Rule{Match: nil, Pipeline: p}
}

// Router selects a pipeline for a classification label from an ordered rule
// list. Routing is pure and deterministic: rules are evaluated in order and
// the first match wins.
type Router struct {
	rules []Rule
}

// NewRouter creates a Router from an ordered rule list. The list must end
// with an unconditional default rule (nil predicate); anything else is a
// configuration error surfaced at construction, not at request time.
func NewRouter(rules ...Rule) (*Router, error) {
	if len(rules) == 0 {
		return nil, ErrNoDefaultRule
	}
	last := rules[len(rules)-1]
	if last.Match != nil || last.Pipeline == nil {
		return nil, ErrNoDefaultRule
	}
	for _, r := range rules[:len(rules)-1] {
		if r.Match == nil {
			return nil, errors.New("only the trailing rule may be unconditional")
		}
		if r.Pipeline == nil {
			return nil, errors.New("rule pipeline must not be nil")
		}
	}
	return &Router{rules: rules}, nil
}

// Route returns the pipeline of the first rule whose predicate matches the
// label, falling back to the trailing default.
func (r *Router) Route(label classify.Label) *pipeline.Pipeline {
	for _, rule := range r.rules[:len(r.rules)-1] {
		if rule.Match(label) {
			return rule.Pipeline
		}
	}
	return r.rules[len(r.rules)-1].Pipeline
}
