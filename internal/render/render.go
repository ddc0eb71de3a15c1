// Package render evaluates the user-configurable text templates used
// for knowledge base pages.
package render

import (
	"fmt"
	"sort"
	"strings"
	"text/template"
	"time"
)

// Renderer turns a named template plus a context into text. A failure
// names the unresolved key or the offending template.
type Renderer interface {
	Render(name string, ctx map[string]any) (string, error)
}

// Engine is a text/template-backed Renderer. Missing context keys are
// hard errors, not silent empty output.
type Engine struct {
	root *template.Template
}

// New parses the given named templates into an Engine. Template names
// are registered in sorted order so parse errors are reported
// deterministically.
func New(templates map[string]string) (*Engine, error) {
	root := template.New("").Option("missingkey=error").Funcs(funcMap())

	names := make([]string, 0, len(templates))
	for name := range templates {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if _, err := root.New(name).Parse(templates[name]); err != nil {
			return nil, fmt.Errorf("render: parse template %q: %w", name, err)
		}
	}
	return &Engine{root: root}, nil
}

// Render executes the named template against ctx.
func (e *Engine) Render(name string, ctx map[string]any) (string, error) {
	var b strings.Builder
	if err := e.root.ExecuteTemplate(&b, name, ctx); err != nil {
		return "", fmt.Errorf("render: template %q: %w", name, err)
	}
	return b.String(), nil
}

func funcMap() template.FuncMap {
	return template.FuncMap{
		"date": func(layout string, t time.Time) string {
			return t.Format(layout)
		},
		"join": func(sep string, items []string) string {
			return strings.Join(items, sep)
		},
		"urlencodeSpaces": func(s string) string {
			return strings.ReplaceAll(s, " ", "%20")
		},
	}
}
