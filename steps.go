package cosmosgremlin

import (
	"fmt"
	"maps"
	"strings"
)

// binder hands out binding names that do not collide with bindings already
// present on the parent query.
type binder struct {
	bindings map[string]any
	next     int
}

func (b *binder) bind(v any) string {
	for ; ; b.next++ {
		name := fmt.Sprintf("_p%d", b.next)
		if _, taken := b.bindings[name]; !taken {
			b.bindings[name] = v
			b.next++
			return name
		}
	}
}

type step func(b *binder) (string, error)

// chained renders its parent followed by one step.
type chained struct {
	parent Renderer
	step   step
}

func (c chained) Render() (Statement, error) {
	if isNilRenderer(c.parent) {
		return Statement{}, &ArgumentError{Name: "traversal"}
	}
	q, err := c.parent.Render()
	if err != nil {
		return Statement{}, err
	}
	b := &binder{bindings: maps.Clone(q.Bindings)}
	if b.bindings == nil {
		b.bindings = make(map[string]any)
	}
	s, err := c.step(b)
	if err != nil {
		return Statement{}, err
	}
	q.Text += "." + s
	q.Bindings = b.bindings
	if len(q.Bindings) == 0 {
		q.Bindings = nil
	}
	return q, nil
}

func extend[S, E, R any](t Traversal[S, E], s step) Traversal[S, R] {
	return Bind[S, R](chained{parent: t.expr, step: s})
}

func literalStep(text string) step {
	return func(*binder) (string, error) { return text, nil }
}

var graphSource = Script{Text: "g"}

// V starts a traversal at the vertices labelled with S's label, optionally
// restricted to the given ids.
func V[S VertexCapable](ids ...any) Traversal[S, S] {
	return extend[S, S, S](Bind[S, S](graphSource), func(b *binder) (string, error) {
		label, err := labelOf[S]()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("V(%s).hasLabel(%s)", bindAll(b, ids), quote(label)), nil
	})
}

// E starts a traversal at the edges labelled with S's label.
func E[S EdgeCapable](ids ...any) Traversal[S, S] {
	return extend[S, S, S](Bind[S, S](graphSource), func(b *binder) (string, error) {
		label, err := labelOf[S]()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("E(%s).hasLabel(%s)", bindAll(b, ids), quote(label)), nil
	})
}

// Out walks outgoing edges from a vertex result to vertices of type R.
func Out[R VertexCapable, S any, E VertexCapable](t Traversal[S, E], edgeLabels ...string) Traversal[S, R] {
	return extend[S, E, R](t, adjacentStep[R]("out", edgeLabels))
}

// In walks incoming edges from a vertex result to vertices of type R.
func In[R VertexCapable, S any, E VertexCapable](t Traversal[S, E], edgeLabels ...string) Traversal[S, R] {
	return extend[S, E, R](t, adjacentStep[R]("in", edgeLabels))
}

// OutE moves from a vertex result to its outgoing edges of type R.
func OutE[R EdgeCapable, S any, E VertexCapable](t Traversal[S, E]) Traversal[S, R] {
	return extend[S, E, R](t, edgeStep[R]("outE"))
}

// InE moves from a vertex result to its incoming edges of type R.
func InE[R EdgeCapable, S any, E VertexCapable](t Traversal[S, E]) Traversal[S, R] {
	return extend[S, E, R](t, edgeStep[R]("inE"))
}

// OutV moves from an edge result to its source vertex.
func OutV[R VertexCapable, S any, E EdgeCapable](t Traversal[S, E]) Traversal[S, R] {
	return extend[S, E, R](t, literalStep("outV()"))
}

// InV moves from an edge result to its target vertex.
func InV[R VertexCapable, S any, E EdgeCapable](t Traversal[S, E]) Traversal[S, R] {
	return extend[S, E, R](t, literalStep("inV()"))
}

// Has filters results by a property value.
func Has[S, E any](t Traversal[S, E], key string, value any) Traversal[S, E] {
	return extend[S, E, E](t, func(b *binder) (string, error) {
		return fmt.Sprintf("has(%s, %s)", quote(key), b.bind(value)), nil
	})
}

// Values projects the values of a property.
func Values[R, S, E any](t Traversal[S, E], key string) Traversal[S, R] {
	return extend[S, E, R](t, literalStep(fmt.Sprintf("values(%s)", quote(key))))
}

// Limit keeps at most n results.
func Limit[S, E any](t Traversal[S, E], n int) Traversal[S, E] {
	return extend[S, E, E](t, literalStep(fmt.Sprintf("limit(%d)", n)))
}

// Count replaces the results with their count.
func Count[S, E any](t Traversal[S, E]) Traversal[S, int64] {
	return extend[S, E, int64](t, literalStep("count()"))
}

// Drop removes every traversed element. It yields no results.
func Drop[S, E any](t Traversal[S, E]) Traversal[S, E] {
	return extend[S, E, E](t, literalStep("drop()"))
}

// AsTree collects the traversed paths into a tree.
func AsTree[S, E any](t Traversal[S, E]) Traversal[S, Tree[E]] {
	return extend[S, E, Tree[E]](t, literalStep("tree()"))
}

func adjacentStep[R any](direction string, edgeLabels []string) step {
	return func(*binder) (string, error) {
		label, err := labelOf[R]()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s(%s).hasLabel(%s)", direction, quoteAll(edgeLabels), quote(label)), nil
	}
}

func edgeStep[R any](direction string) step {
	return func(*binder) (string, error) {
		label, err := labelOf[R]()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s(%s)", direction, quote(label)), nil
	}
}

func bindAll(b *binder, values []any) string {
	names := make([]string, 0, len(values))
	for _, v := range values {
		names = append(names, b.bind(v))
	}
	return strings.Join(names, ", ")
}

var quoter = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

// quote renders s as a single-quoted Gremlin string literal.
func quote(s string) string {
	return "'" + quoter.Replace(s) + "'"
}

func quoteAll(values []string) string {
	quoted := make([]string, 0, len(values))
	for _, v := range values {
		quoted = append(quoted, quote(v))
	}
	return strings.Join(quoted, ", ")
}
