package template

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Well-known context keys. These are the only variables a unit file or
// configuration-map value may reference; the engine does not grow into a
// general-purpose template language.
const (
	PackageRoot = "packageroot"
	ConfigRoot  = "configroot"
	LogRoot     = "logroot"
)

// Engine renders `{{packageroot}}`-style placeholders against a small,
// fixed context. Substitution is purely textual: no loops, no
// conditionals, no functions. An unknown key is always an error.
type Engine struct {
	pattern *regexp.Regexp
}

// New creates a template engine.
func New() *Engine {
	return &Engine{
		pattern: regexp.MustCompile(`\{\{\s*([a-zA-Z_][a-zA-Z0-9_]*)\s*\}\}`),
	}
}

// Render substitutes every `{{key}}` placeholder in value using context.
// A placeholder whose key is absent from context fails the whole render;
// the caller surfaces this as a TemplateError.
func (e *Engine) Render(value string, context map[string]string) (string, error) {
	matches := e.pattern.FindAllStringSubmatchIndex(value, -1)
	if matches == nil {
		return value, nil
	}

	var missing []string
	seenMissing := make(map[string]bool)
	var b strings.Builder
	last := 0
	for _, m := range matches {
		start, end := m[0], m[1]
		keyStart, keyEnd := m[2], m[3]
		key := value[keyStart:keyEnd]

		replacement, ok := context[key]
		if !ok {
			if !seenMissing[key] {
				missing = append(missing, key)
				seenMissing[key] = true
			}
			continue
		}

		b.WriteString(value[last:start])
		b.WriteString(replacement)
		last = end
	}

	if len(missing) > 0 {
		sort.Strings(missing)
		return "", fmt.Errorf("unknown template variable(s): %s", strings.Join(missing, ", "))
	}

	b.WriteString(value[last:])
	return b.String(), nil
}

// RenderAll renders every element of values, stopping at the first error.
func (e *Engine) RenderAll(values []string, context map[string]string) ([]string, error) {
	out := make([]string, len(values))
	for i, v := range values {
		rendered, err := e.Render(v, context)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out[i] = rendered
	}
	return out, nil
}

// HasPrefix reports whether value begins with the literal placeholder for
// key, e.g. HasPrefix("{{packageroot}}/bin/kafka", PackageRoot).
func HasPrefix(value, key string) bool {
	return strings.HasPrefix(value, "{{"+key+"}}") || strings.HasPrefix(strings.TrimSpace(value), "{{ "+key+" }}")
}
