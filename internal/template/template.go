// Package template provides the rendering collaborator handed to route
// handlers. The server only carries a Renderer; it never interprets template
// syntax itself.
package template

import (
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// Renderer renders templates with a flat string context
type Renderer interface {
	// Render loads the named template file and renders it
	Render(name string, context map[string]string) (string, error)
	// RenderString renders a template given inline
	RenderString(tmpl string, context map[string]string) string
}

// Engine substitutes {{key}} and {{ key }} for every key in the context. Keys
// are matched literally, so they may contain any character. Placeholders for
// keys missing from the context are left in place.
type Engine struct {
	dir string
}

// NewEngine creates an engine loading template files relative to dir
func NewEngine(dir string) *Engine {
	return &Engine{dir: dir}
}

func (e *Engine) Render(name string, context map[string]string) (string, error) {
	raw, err := os.ReadFile(filepath.Join(e.dir, filepath.FromSlash(name)))
	if err != nil {
		return "", fmt.Errorf("load template %s: %w", name, err)
	}
	return e.RenderString(string(raw), context), nil
}

// RenderString substitutes in a single pass; values are not rescanned
func (e *Engine) RenderString(tmpl string, context map[string]string) string {
	if len(context) == 0 {
		return tmpl
	}

	// Longer keys first: at any position the first matching pair wins
	keys := slices.Collect(maps.Keys(context))
	slices.SortFunc(keys, func(a, b string) int {
		if len(a) != len(b) {
			return len(b) - len(a)
		}
		return strings.Compare(a, b)
	})

	pairs := make([]string, 0, 4*len(keys))
	for _, key := range keys {
		v := context[key]
		pairs = append(pairs, "{{"+key+"}}", v, "{{ "+key+" }}", v)
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}
