package cosmosgremlin

import (
	"fmt"

	"github.com/saulfrancisco-ruizacevedo/gocypher"
)

// cypherRenderer renders a gocypher query builder. It is used with the Neo4j
// transport, which speaks Cypher rather than Gremlin.
type cypherRenderer struct {
	qb *gocypher.QueryBuilder
}

func (c cypherRenderer) Render() (Statement, error) {
	text, params, err := c.qb.Build()
	if err != nil {
		return Statement{}, fmt.Errorf("could not build cypher query: %w", err)
	}
	return Statement{Text: text, Bindings: params}, nil
}

// FromCypher binds a gocypher query to source type S and result type E.
// A nil builder yields a traversal that fails translation with an
// *ArgumentError.
//
// Example:
//
//	qb := gocypher.NewQueryBuilder().
//		Match(gocypher.N("p", "person")).
//		Return("p")
//	people, err := cosmosgremlin.QueryTraversal(ctx, client, cosmosgremlin.FromCypher[Person, Person](qb))
func FromCypher[S, E any](qb *gocypher.QueryBuilder) Traversal[S, E] {
	if qb == nil {
		return Traversal[S, E]{}
	}
	return Bind[S, E](cypherRenderer{qb: qb})
}
