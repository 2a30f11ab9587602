package cosmosgremlin

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/saulfrancisco-ruizacevedo/go-cosmosgremlin/wire"
)

// DBRunner defines the interface for a Cypher query executor.
// It abstracts the execution of a query, allowing for different implementations
// or mocking in tests.
type DBRunner interface {
	// Run executes a given Cypher query with parameters and returns a fully-buffered result.
	Run(ctx context.Context, query string, params map[string]any) (*neo4j.EagerResult, error)
}

//---

// Neo4jExecutor is a concrete implementation of the DBRunner interface that uses the
// official Neo4j Go driver. It manages the driver instance and the target database name.
type Neo4jExecutor struct {
	Driver neo4j.DriverWithContext
	DBName string
}

// NewNeo4jExecutor creates and initializes a new Neo4jExecutor.
//
// Parameters:
//   - uri: The connection URI for the Neo4j instance (e.g., "neo4j://localhost:7687").
//   - username: The username for authentication.
//   - password: The password for authentication.
//   - dbName: The name of the database to connect to (e.g., "neo4j").
//
// Returns:
//
//	A pointer to the newly created Neo4jExecutor or an error if the driver creation fails.
func NewNeo4jExecutor(uri, username, password, dbName string) (*Neo4jExecutor, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("could not create Neo4j driver: %w", err)
	}
	return &Neo4jExecutor{Driver: driver, DBName: dbName}, nil
}

// Verify checks the connectivity to the Neo4j database.
func (e *Neo4jExecutor) Verify(ctx context.Context) error {
	return e.Driver.VerifyConnectivity(ctx)
}

// Close releases the driver's connections.
func (e *Neo4jExecutor) Close(ctx context.Context) error {
	return e.Driver.Close(ctx)
}

// Run executes a Cypher query with ExecuteQuery, which handles session and
// transaction management. It is suitable for both read and write operations.
func (e *Neo4jExecutor) Run(ctx context.Context, query string, params map[string]any) (*neo4j.EagerResult, error) {
	result, err := neo4j.ExecuteQuery(
		ctx,
		e.Driver,
		query,
		params,
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(e.DBName),
	)
	if err != nil {
		return nil, fmt.Errorf("error executing neo4j query: %w", err)
	}
	return result, nil
}

// Neo4jTransport is a Runner that submits Cypher statements through a DBRunner
// and reshapes the records into the self-describing payload the Client
// classifies.
//
// Every value of every record becomes one raw item, row by row and in column
// order. Nodes become vertices (first label wins), relationships become
// edges, maps become objects and Neo4j temporal values become time.Time.
// Paths are not supported.
type Neo4jTransport struct {
	runner DBRunner
}

// NewNeo4jTransport wraps runner as a Runner.
func NewNeo4jTransport(runner DBRunner) *Neo4jTransport {
	return &Neo4jTransport{runner: runner}
}

// Submit runs q and converts the buffered records.
func (t *Neo4jTransport) Submit(ctx context.Context, q Statement) ([]any, error) {
	result, err := t.runner.Run(ctx, q.Text, q.Bindings)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return []any{}, nil
	}

	items := make([]any, 0, len(result.Records))
	for i, record := range result.Records {
		for j, value := range record.Values {
			raw, err := neo4jRaw(value)
			if err != nil {
				return nil, fmt.Errorf("record %d column %d: %w", i, j, err)
			}
			items = append(items, raw)
		}
	}
	return items, nil
}

func neo4jRaw(value any) (any, error) {
	switch v := value.(type) {
	case nil, bool, int64, float64, string, []byte:
		return v, nil
	case neo4j.Node:
		label := ""
		if len(v.Labels) > 0 {
			label = v.Labels[0]
		}
		props, err := neo4jProperties(v.Props)
		if err != nil {
			return nil, err
		}
		return wire.NewObject(
			wire.Member{Key: "id", Value: v.ElementId},
			wire.Member{Key: "label", Value: label},
			wire.Member{Key: "type", Value: "vertex"},
			wire.Member{Key: "properties", Value: props},
		), nil
	case neo4j.Relationship:
		props, err := neo4jProperties(v.Props)
		if err != nil {
			return nil, err
		}
		return wire.NewObject(
			wire.Member{Key: "id", Value: v.ElementId},
			wire.Member{Key: "label", Value: v.Type},
			wire.Member{Key: "type", Value: "edge"},
			wire.Member{Key: "outV", Value: v.StartElementId},
			wire.Member{Key: "inV", Value: v.EndElementId},
			wire.Member{Key: "properties", Value: props},
		), nil
	case neo4j.Path:
		return nil, fmt.Errorf("neo4j paths are not supported; return its nodes and relationships instead")
	case []any:
		out := make([]any, 0, len(v))
		for _, item := range v {
			raw, err := neo4jRaw(item)
			if err != nil {
				return nil, err
			}
			out = append(out, raw)
		}
		return out, nil
	case map[string]any:
		members := make([]wire.Member, 0, len(v))
		for _, key := range sortedKeys(v) {
			raw, err := neo4jRaw(v[key])
			if err != nil {
				return nil, err
			}
			members = append(members, wire.Member{Key: key, Value: raw})
		}
		return wire.NewObject(members...), nil
	case interface{ Time() time.Time }:
		return v.Time(), nil
	case fmt.Stringer:
		return v.String(), nil
	}
	return value, nil
}

// neo4jProperties renders a property map in the vertex property shape, one
// {"value": v} entry per value. List properties contribute one entry per
// element. Keys are sorted so the output is deterministic.
func neo4jProperties(props map[string]any) (*wire.Object, error) {
	members := make([]wire.Member, 0, len(props))
	for _, key := range sortedKeys(props) {
		values, ok := props[key].([]any)
		if !ok {
			values = []any{props[key]}
		}
		entries := make([]any, 0, len(values))
		for _, value := range values {
			raw, err := neo4jRaw(value)
			if err != nil {
				return nil, fmt.Errorf("property %q: %w", key, err)
			}
			entries = append(entries, wire.NewObject(wire.Member{Key: "value", Value: raw}))
		}
		members = append(members, wire.Member{Key: key, Value: entries})
	}
	return wire.NewObject(members...), nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
