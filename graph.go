package cosmosgremlin

import (
	"context"
	"fmt"

	"github.com/saulfrancisco-ruizacevedo/go-cosmosgremlin/wire"
)

// GraphNode is a label-agnostic vertex, ready to be serialized for
// visualization clients.
type GraphNode struct {
	// ID is the vertex id rendered as a string.
	ID string `json:"id"`

	// Label is the vertex label (e.g. "person").
	Label string `json:"label"`

	// Properties holds single-valued properties as their value and
	// multi-valued properties as a list, in database order.
	Properties map[string]any `json:"properties"`
}

// GraphEdge is a label-agnostic edge between two GraphNodes.
type GraphEdge struct {
	ID string `json:"id"`

	// Source is the id of the vertex the edge leaves from (outV).
	Source string `json:"source"`

	// Target is the id of the vertex the edge points to (inV).
	Target string `json:"target"`

	Label      string         `json:"label"`
	Properties map[string]any `json:"properties"`
}

// Graph is a de-duplicated set of vertices and edges. It is the format most
// graph visualization libraries (D3.js, Cytoscape.js) consume.
type Graph struct {
	Nodes []*GraphNode `json:"nodes"`
	Edges []*GraphEdge `json:"edges"`
}

// CollectGraph gathers the vertices and edges found in elements, including
// those nested in trees, into a Graph. Each vertex and edge appears once, at
// the position it was first seen. Scalars and properties are ignored.
func CollectGraph(elements []wire.Element) (*Graph, error) {
	g := &Graph{
		Nodes: make([]*GraphNode, 0),
		Edges: make([]*GraphEdge, 0),
	}
	seenNodes := make(map[string]bool)
	seenEdges := make(map[string]bool)
	ids := NewMaterializer(nil)

	var visit func(el wire.Element, path string) error
	visit = func(el wire.Element, path string) error {
		switch v := el.(type) {
		case wire.Vertex:
			id, err := ids.idString(v.ID, joinPath(path, "id"))
			if err != nil {
				return err
			}
			if !seenNodes[id] {
				g.Nodes = append(g.Nodes, &GraphNode{ID: id, Label: v.Label, Properties: flattenProperties(v.Properties)})
				seenNodes[id] = true
			}
		case wire.Edge:
			base, err := ids.edgeBase(v, path)
			if err != nil {
				return err
			}
			if !seenEdges[base.ID] {
				g.Edges = append(g.Edges, &GraphEdge{
					ID:         base.ID,
					Source:     base.OutV,
					Target:     base.InV,
					Label:      v.Label,
					Properties: flattenProperties(v.Properties),
				})
				seenEdges[base.ID] = true
			}
		case wire.Tree:
			if v.Node != nil {
				if err := visit(v.Node, path); err != nil {
					return err
				}
			}
			for _, child := range v.Children {
				if err := visit(child, path); err != nil {
					return err
				}
			}
		}
		return nil
	}

	for i, el := range elements {
		if err := visit(el, fmt.Sprintf("[%d]", i)); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// QueryGraph runs t and collects every returned vertex and edge into a Graph.
//
// The traversal decides what the graph contains, for example
//
//	g.V().hasLabel('person').union(identity(), outE('knows'))
//
// returns people and the edges leaving them side by side. Trees are walked.
// Duplicates across results are removed.
//
// Parameters:
//   - ctx: The context for the query execution.
//   - c: The client to submit through.
//   - t: Any traversal. Its result type is ignored.
//
// Returns:
//   - The de-duplicated graph.
//   - ErrEmptyResult if the query succeeds but returns nothing.
//   - Any error from translation, transport or classification.
func QueryGraph[S, E any](ctx context.Context, c *Client, t Traversal[S, E], opts ...CallOption) (*Graph, error) {
	cfg := newCallConfig(opts, 1)
	q, err := t.Translate()
	if err != nil {
		c.rejected(ctx, cfg, err)
		return nil, err
	}
	elements, err := execute[wire.Element](ctx, c, q, cfg)
	if err != nil {
		return nil, err
	}
	if len(elements) == 0 {
		return nil, ErrEmptyResult
	}
	return CollectGraph(elements)
}

func flattenProperties(props wire.Properties) map[string]any {
	out := make(map[string]any, len(props))
	for key, values := range props {
		switch len(values) {
		case 0:
		case 1:
			out[key] = values[0]
		default:
			out[key] = append([]any(nil), values...)
		}
	}
	return out
}
