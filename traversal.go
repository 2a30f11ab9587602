package cosmosgremlin

import (
	"fmt"
	"maps"
	"reflect"
)

// Statement is rendered query text plus its parameter bindings.
type Statement struct {
	Text     string
	Bindings map[string]any
}

// Renderer is implemented by traversal builders. Render must not mutate the
// builder.
type Renderer interface {
	Render() (Statement, error)
}

// RendererFunc adapts a function to the Renderer interface.
type RendererFunc func() (Statement, error)

// Render calls f.
func (f RendererFunc) Render() (Statement, error) { return f() }

// Script is a literal query with optional bindings.
type Script struct {
	Text     string
	Bindings map[string]any
}

// Render returns the script text and a copy of its bindings.
func (s Script) Render() (Statement, error) {
	return Statement{Text: s.Text, Bindings: maps.Clone(s.Bindings)}, nil
}

// Traversal is a traversal expression bound to a source schema type S and a
// result type E. Both type parameters are phantom: they carry no data and
// only decide which operations accept the traversal and what type its
// results are materialized into.
//
// A Traversal is immutable. Step helpers such as Out or Has return a new
// Traversal that renders the parent followed by the step.
type Traversal[S, E any] struct {
	expr Renderer
}

// Bind attaches source and result types to an untyped expression.
func Bind[S, E any](expr Renderer) Traversal[S, E] {
	return Traversal[S, E]{expr: expr}
}

// Gremlin binds a literal Gremlin script.
func Gremlin[S, E any](text string, bindings map[string]any) Traversal[S, E] {
	return Bind[S, E](Script{Text: text, Bindings: bindings})
}

// Translate renders t into query text. It fails with an *ArgumentError when
// t has no expression.
func (t Traversal[S, E]) Translate() (Statement, error) {
	if isNilRenderer(t.expr) {
		return Statement{}, &ArgumentError{Name: "traversal"}
	}
	q, err := t.expr.Render()
	if err != nil {
		return Statement{}, fmt.Errorf("render traversal: %w", err)
	}
	return q, nil
}

// String returns the rendered text, or a placeholder when rendering fails.
func (t Traversal[S, E]) String() string {
	q, err := t.Translate()
	if err != nil {
		return fmt.Sprintf("<invalid traversal: %v>", err)
	}
	return q.Text
}

func isNilRenderer(r Renderer) bool {
	if r == nil {
		return true
	}
	rv := reflect.ValueOf(r)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Func, reflect.Map, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
