package prompt

import (
	"fmt"
	"regexp"
	"strings"
)

// placeholderPattern matches {name} placeholders in a template string
var placeholderPattern = regexp.MustCompile(`\{([a-zA-Z_][a-zA-Z0-9_]*)\}`)

// MissingVariableError is returned when a template references a placeholder
// that was not supplied at render time.
type MissingVariableError struct {
	Variable string
}

// Error implements the error interface
func (e *MissingVariableError) Error() string {
	return fmt.Sprintf("missing template variable: %s", e.Variable)
}

// Template is an immutable prompt template with {name} placeholders.
// Placeholders are discovered once at construction; a Template is safe for
// concurrent and repeated rendering.
type Template struct {
	text      string
	variables []string
}

// New creates a Template from the given text
func New(text string) *Template {
	matches := placeholderPattern.FindAllStringSubmatch(text, -1)
	seen := make(map[string]struct{}, len(matches))
	variables := make([]string, 0, len(matches))
	for _, m := range matches {
		name := m[1]
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		variables = append(variables, name)
	}
	return &Template{text: text, variables: variables}
}

// Variables returns the placeholder names referenced by the template, in
// first-appearance order.
func (t *Template) Variables() []string {
	out := make([]string, len(t.variables))
	copy(out, t.variables)
	return out
}

// Render substitutes the supplied variables into the template. Every
// referenced placeholder must be present in vars; unused entries are ignored.
func (t *Template) Render(vars map[string]string) (string, error) {
	for _, name := range t.variables {
		if _, ok := vars[name]; !ok {
			return "", &MissingVariableError{Variable: name}
		}
	}

	rendered := placeholderPattern.ReplaceAllStringFunc(t.text, func(match string) string {
		name := strings.Trim(match, "{}")
		return vars[name]
	})
	return rendered, nil
}
