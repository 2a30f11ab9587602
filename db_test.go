package cosmosgremlin

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/saulfrancisco-ruizacevedo/gocypher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/saulfrancisco-ruizacevedo/go-cosmosgremlin/wire"
)

// mockDBRunner is a mock implementation of the DBRunner interface.
type mockDBRunner struct {
	mock.Mock
}

func (m *mockDBRunner) Run(ctx context.Context, query string, params map[string]any) (*neo4j.EagerResult, error) {
	args := m.Called(ctx, query, params)
	result, _ := args.Get(0).(*neo4j.EagerResult)
	return result, args.Error(1)
}

func eagerResult(keys []string, rows ...[]any) *neo4j.EagerResult {
	records := make([]*neo4j.Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, &neo4j.Record{Keys: keys, Values: row})
	}
	return &neo4j.EagerResult{Keys: keys, Records: records}
}

var (
	annNode = neo4j.Node{
		ElementId: "4:db:1",
		Labels:    []string{"person", "employee"},
		Props:     map[string]any{"name": "Ann", "age": int64(30), "tags": []any{"a", "b"}},
	}
	bobNode = neo4j.Node{
		ElementId: "4:db:2",
		Labels:    []string{"person"},
		Props:     map[string]any{"name": "Bob"},
	}
	knowsRel = neo4j.Relationship{
		ElementId:      "5:db:1",
		StartElementId: "4:db:1",
		EndElementId:   "4:db:2",
		Type:           "knows",
		Props:          map[string]any{"since": int64(2019)},
	}
)

func newPersonQuery() *gocypher.QueryBuilder {
	return gocypher.NewQueryBuilder().
		Match(gocypher.N("p", "person").WithProperties(map[string]interface{}{"name": "Ann"})).
		Return("p")
}

func TestNeo4jTransport_MaterializesNodes(t *testing.T) {
	runner := &mockDBRunner{}
	runner.On("Run", mock.Anything, "MATCH (p:person) RETURN p", map[string]any{"name": "Ann"}).
		Return(eagerResult([]string{"p"}, []any{annNode}, []any{bobNode}), nil)
	client := NewClient(NewNeo4jTransport(runner))

	people, err := QueryWithBindings[person](context.Background(), client, "MATCH (p:person) RETURN p", map[string]any{"name": "Ann"})
	require.NoError(t, err)
	require.Len(t, people, 2)

	assert.Equal(t, "4:db:1", people[0].ID)
	assert.Equal(t, "person", people[0].Label)
	assert.Equal(t, "Ann", people[0].Name)
	assert.Equal(t, 30, people[0].Age)
	assert.Equal(t, []string{"a", "b"}, people[0].Tags)
	assert.Equal(t, "Bob", people[1].Name)
	runner.AssertExpectations(t)
}

func TestNeo4jTransport_MaterializesRelationships(t *testing.T) {
	runner := &mockDBRunner{}
	runner.On("Run", mock.Anything, mock.Anything, mock.Anything).
		Return(eagerResult([]string{"r"}, []any{knowsRel}), nil)
	client := NewClient(NewNeo4jTransport(runner))

	k, err := QuerySingle[knows](context.Background(), client, "MATCH ()-[r:knows]->() RETURN r")
	require.NoError(t, err)
	assert.Equal(t, "5:db:1", k.ID)
	assert.Equal(t, "4:db:1", k.OutV)
	assert.Equal(t, "4:db:2", k.InV)
	assert.Equal(t, 2019, k.Since)
}

func TestNeo4jTransport_RowMajorOrder(t *testing.T) {
	runner := &mockDBRunner{}
	runner.On("Run", mock.Anything, mock.Anything, mock.Anything).
		Return(eagerResult([]string{"a", "b"}, []any{"r0c0", "r0c1"}, []any{"r1c0", "r1c1"}), nil)

	raw, err := NewNeo4jTransport(runner).Submit(context.Background(), Statement{Text: "RETURN 1"})
	require.NoError(t, err)
	assert.Equal(t, []any{"r0c0", "r0c1", "r1c0", "r1c1"}, raw)
}

func TestNeo4jTransport_FromCypher(t *testing.T) {
	runner := &mockDBRunner{}
	runner.On("Run", mock.Anything, mock.Anything, mock.Anything).
		Return(eagerResult([]string{"p"}, []any{annNode}), nil)
	client := NewClient(NewNeo4jTransport(runner))

	qb := newPersonQuery()
	wantText, wantParams, err := newPersonQuery().Build()
	require.NoError(t, err)

	p, err := QueryTraversalSingle(context.Background(), client, FromCypher[person, person](qb))
	require.NoError(t, err)
	assert.Equal(t, "Ann", p.Name)
	runner.AssertCalled(t, "Run", mock.Anything, wantText, wantParams)
}

func TestNeo4jTransport_Values(t *testing.T) {
	day := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	runner := &mockDBRunner{}
	runner.On("Run", mock.Anything, mock.Anything, mock.Anything).
		Return(eagerResult([]string{"v"},
			[]any{nil},
			[]any{true},
			[]any{neo4j.Date(day)},
			[]any{[]any{int64(1), int64(2)}},
			[]any{map[string]any{"b": "x", "a": annNode}},
		), nil)

	raw, err := NewNeo4jTransport(runner).Submit(context.Background(), Statement{Text: "RETURN v"})
	require.NoError(t, err)
	require.Len(t, raw, 5)

	assert.Nil(t, raw[0])
	assert.Equal(t, true, raw[1])
	assert.Equal(t, day, raw[2])
	assert.Equal(t, []any{int64(1), int64(2)}, raw[3])

	obj, ok := raw[4].(*wire.Object)
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, obj.Keys())
	nested, _ := obj.Get("a")
	el, err := wire.Classify(nested)
	require.NoError(t, err)
	assert.Equal(t, wire.KindVertex, el.Kind())
}

func TestNeo4jTransport_Errors(t *testing.T) {
	cause := errors.New("connection refused")
	runner := &mockDBRunner{}
	runner.On("Run", mock.Anything, "bad", mock.Anything).Return(nil, cause)
	runner.On("Run", mock.Anything, "path", mock.Anything).
		Return(eagerResult([]string{"p"}, []any{"ok"}, []any{neo4j.Path{Nodes: []neo4j.Node{annNode}}}), nil)
	runner.On("Run", mock.Anything, "none", mock.Anything).Return(nil, nil)
	transport := NewNeo4jTransport(runner)

	_, err := transport.Submit(context.Background(), Statement{Text: "bad"})
	assert.ErrorIs(t, err, cause)

	_, err = transport.Submit(context.Background(), Statement{Text: "path"})
	assert.ErrorContains(t, err, "record 1 column 0")
	assert.ErrorContains(t, err, "paths are not supported")

	raw, err := transport.Submit(context.Background(), Statement{Text: "none"})
	require.NoError(t, err)
	assert.Empty(t, raw)
}
