// Package wire models the shapes a raw graph query result element can take.
//
// Gremlin-compatible services return self-describing payloads: a result item
// may be a bare scalar, a vertex, an edge, a vertex property, a multi-valued
// property or the nested object produced by a tree() step. Classify turns a
// raw node into exactly one of those shapes so downstream code switches over
// a closed set instead of probing maps.
package wire

import (
	"encoding/json"
)

// Kind identifies the shape of an Element.
type Kind int

const (
	KindScalar Kind = iota
	KindVertex
	KindEdge
	KindProperty
	KindMultiProperty
	KindTree
)

func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindVertex:
		return "vertex"
	case KindEdge:
		return "edge"
	case KindProperty:
		return "property"
	case KindMultiProperty:
		return "multi-property"
	case KindTree:
		return "tree"
	default:
		return "unknown"
	}
}

// Element is one classified result item. The set of implementations is
// closed: Scalar, Vertex, Edge, Property, MultiProperty and Tree.
type Element interface {
	Kind() Kind
	element()
}

// Properties maps a property key to its values in payload order. Vertex
// properties may carry several values per key; edge properties carry one.
type Properties map[string][]any

// First returns the first value stored under key.
func (p Properties) First(key string) (any, bool) {
	vals := p[key]
	if len(vals) == 0 {
		return nil, false
	}
	return vals[0], true
}

// Scalar is a bare value: string, bool, number, time or null.
type Scalar struct {
	Value any
}

// Vertex is a graph node.
type Vertex struct {
	ID         any        `json:"id"`
	Label      string     `json:"label"`
	Properties Properties `json:"properties,omitempty"`
}

// Edge is a directed relationship from OutV to InV.
type Edge struct {
	ID         any        `json:"id"`
	Label      string     `json:"label"`
	OutV       any        `json:"outV"`
	InV        any        `json:"inV"`
	OutVLabel  string     `json:"outVLabel,omitempty"`
	InVLabel   string     `json:"inVLabel,omitempty"`
	Properties Properties `json:"properties,omitempty"`
}

// Property is a single named value.
type Property struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// MultiProperty is a named, ordered set of values.
type MultiProperty struct {
	Key    string `json:"key"`
	Values []any  `json:"values"`
}

// Tree is one node of a tree() result. The top-level tree object is a forest
// and is represented with a nil Node whose Children are the roots.
type Tree struct {
	Node     Element `json:"node,omitempty"`
	Children []Tree  `json:"children"`
}

func (Scalar) Kind() Kind        { return KindScalar }
func (Vertex) Kind() Kind        { return KindVertex }
func (Edge) Kind() Kind          { return KindEdge }
func (Property) Kind() Kind      { return KindProperty }
func (MultiProperty) Kind() Kind { return KindMultiProperty }
func (Tree) Kind() Kind          { return KindTree }

func (Scalar) element()        {}
func (Vertex) element()        {}
func (Edge) element()          {}
func (Property) element()      {}
func (MultiProperty) element() {}
func (Tree) element()          {}

// MarshalJSON writes the scalar's value directly.
func (s Scalar) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Value)
}

// MarshalJSON adds the "type" discriminator used by Cosmos DB payloads.
func (v Vertex) MarshalJSON() ([]byte, error) {
	type plain Vertex
	return json.Marshal(struct {
		Type string `json:"type"`
		plain
	}{Type: "vertex", plain: plain(v)})
}

// MarshalJSON adds the "type" discriminator used by Cosmos DB payloads.
func (e Edge) MarshalJSON() ([]byte, error) {
	type plain Edge
	return json.Marshal(struct {
		Type string `json:"type"`
		plain
	}{Type: "edge", plain: plain(e)})
}
