package cosmosgremlin

// VertexBase gives a struct the vertex capability. Embed it in a domain type
// to receive the vertex id and label when a vertex is materialized into it:
//
//	type Person struct {
//		cosmosgremlin.VertexBase `gremlin:"person"`
//		Name string              `gremlin:"name"`
//	}
//
// The tag on the embedded field overrides the label, which otherwise
// defaults to the struct's name.
type VertexBase struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

func (VertexBase) vertexCapability() {}

// EdgeBase gives a struct the edge capability.
type EdgeBase struct {
	ID        string `json:"id"`
	Label     string `json:"label"`
	OutV      string `json:"outV"`
	InV       string `json:"inV"`
	OutVLabel string `json:"outVLabel,omitempty"`
	InVLabel  string `json:"inVLabel,omitempty"`
}

func (EdgeBase) edgeCapability() {}

// VertexCapable is satisfied by types that embed VertexBase.
type VertexCapable interface {
	vertexCapability()
}

// EdgeCapable is satisfied by types that embed EdgeBase.
type EdgeCapable interface {
	edgeCapability()
}
