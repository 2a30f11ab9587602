package cosmosgremlin

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saulfrancisco-ruizacevedo/go-cosmosgremlin/wire"
)

type person struct {
	VertexBase `gremlin:"person"`
	Name       string   `gremlin:"name"`
	Age        int      `gremlin:"age"`
	Tags       []string `gremlin:"tags"`
}

type knows struct {
	EdgeBase `gremlin:"knows"`
	Since    int `gremlin:"since"`
}

func element(t *testing.T, payload string) wire.Element {
	t.Helper()
	raw, err := wire.Decode([]byte(payload))
	require.NoError(t, err)
	el, err := wire.Classify(raw)
	require.NoError(t, err)
	return el
}

const annVertex = `{
	"id": "v1",
	"label": "person",
	"type": "vertex",
	"properties": {
		"name": [{"id": "p1", "value": "Ann"}],
		"age": [{"id": "p2", "value": 30}],
		"tags": [{"id": "p3", "value": "a"}, {"id": "p4", "value": "b"}, {"id": "p5", "value": "c"}]
	}
}`

const knowsEdge = `{
	"id": "e1",
	"label": "knows",
	"type": "edge",
	"inVLabel": "person",
	"outVLabel": "person",
	"outV": "v1",
	"inV": "v2",
	"properties": {"since": 2019}
}`

func TestMaterialize_Vertex(t *testing.T) {
	m := NewMaterializer(nil)

	p, err := Materialize[person](m, element(t, annVertex))
	require.NoError(t, err)

	assert.Equal(t, "v1", p.ID)
	assert.Equal(t, "person", p.Label)
	assert.Equal(t, "Ann", p.Name)
	assert.Equal(t, 30, p.Age)
	assert.Equal(t, []string{"a", "b", "c"}, p.Tags)
}

func TestMaterialize_Edge(t *testing.T) {
	e, err := Materialize[knows](NewMaterializer(nil), element(t, knowsEdge))
	require.NoError(t, err)

	assert.Equal(t, "e1", e.ID)
	assert.Equal(t, "knows", e.Label)
	assert.Equal(t, "v1", e.OutV)
	assert.Equal(t, "v2", e.InV)
	assert.Equal(t, "person", e.OutVLabel)
	assert.Equal(t, 2019, e.Since)
}

func TestMaterialize_CapabilityMismatch(t *testing.T) {
	m := NewMaterializer(nil)

	_, err := Materialize[knows](m, element(t, annVertex))
	var decodeErr *wire.DecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.Equal(t, "edge", decodeErr.Expected)
	assert.Equal(t, "vertex", decodeErr.Actual)

	_, err = Materialize[person](m, element(t, knowsEdge))
	require.ErrorAs(t, err, &decodeErr)
	assert.Equal(t, "vertex", decodeErr.Expected)
	assert.Equal(t, "edge", decodeErr.Actual)

	_, err = Materialize[person](m, element(t, `"Ann"`))
	require.ErrorAs(t, err, &decodeErr)
	assert.Equal(t, "scalar", decodeErr.Actual)
}

func TestMaterialize_MissingPropertiesKeepZeroValues(t *testing.T) {
	p, err := Materialize[person](NewMaterializer(nil), element(t, `{"id":"v9","label":"person","type":"vertex"}`))
	require.NoError(t, err)
	assert.Equal(t, "v9", p.ID)
	assert.Empty(t, p.Name)
	assert.Zero(t, p.Age)
	assert.Nil(t, p.Tags)
}

func TestMaterialize_NumericIDs(t *testing.T) {
	p, err := Materialize[person](NewMaterializer(nil), element(t, `{"id":42,"label":"person","type":"vertex","properties":{}}`))
	require.NoError(t, err)
	assert.Equal(t, "42", p.ID)
}

func TestMaterialize_Tree(t *testing.T) {
	payload := `{
		"v1": {
			"key": {"id":"v1","label":"person","type":"vertex","properties":{"name":[{"value":"Ann"}]}},
			"value": {
				"v3": {"key": {"id":"v3","label":"person","type":"vertex","properties":{"name":[{"value":"Cid"}]}}, "value": {}},
				"v2": {"key": {"id":"v2","label":"person","type":"vertex","properties":{"name":[{"value":"Bob"}]}}, "value": {}}
			}
		}
	}`

	tree, err := Materialize[Tree[person]](NewMaterializer(nil), element(t, payload))
	require.NoError(t, err)

	require.Len(t, tree.Children, 1)
	root := tree.Children[0]
	assert.Equal(t, "Ann", root.Value.Name)
	require.Len(t, root.Children, 2)
	assert.Equal(t, "Cid", root.Children[0].Value.Name)
	assert.Equal(t, "Bob", root.Children[1].Value.Name)

	var names []string
	for _, p := range tree.Flatten() {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"Ann", "Cid", "Bob"}, names)
}

func TestMaterialize_EmptyTree(t *testing.T) {
	tree, err := Materialize[Tree[person]](NewMaterializer(nil), element(t, `{}`))
	require.NoError(t, err)
	assert.Empty(t, tree.Children)
}

func TestMaterialize_TreeChildErrorPath(t *testing.T) {
	payload := `{"v1": {"key": {"id":"e1","label":"knows","outV":"v1","inV":"v2"}, "value": {}}}`

	_, err := Materialize[Tree[person]](NewMaterializer(nil), element(t, payload))
	var decodeErr *wire.DecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.Equal(t, "children[0]", decodeErr.Path)
}

func TestMaterialize_TreeIntoNonTreeFails(t *testing.T) {
	_, err := Materialize[string](NewMaterializer(nil), element(t, `{}`))
	var decodeErr *wire.DecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.Equal(t, "tree", decodeErr.Actual)
}

func TestMaterialize_Untyped(t *testing.T) {
	m := NewMaterializer(nil)

	v, err := Materialize[any](m, element(t, `30`))
	require.NoError(t, err)
	assert.Equal(t, json.Number("30"), v)

	v, err = Materialize[any](m, element(t, annVertex))
	require.NoError(t, err)
	vertex, ok := v.(wire.Vertex)
	require.True(t, ok, "got %T", v)
	assert.Equal(t, "person", vertex.Label)

	v, err = Materialize[any](m, element(t, `{"key":"tags","value":["a","b"]}`))
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "b"}, v)

	v, err = Materialize[any](m, element(t, `null`))
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestMaterialize_WireTargets(t *testing.T) {
	m := NewMaterializer(nil)

	v, err := Materialize[wire.Vertex](m, element(t, annVertex))
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "b", "c"}, v.Properties["tags"])

	el, err := Materialize[wire.Element](m, element(t, knowsEdge))
	require.NoError(t, err)
	assert.Equal(t, wire.KindEdge, el.Kind())

	_, err = Materialize[wire.Edge](m, element(t, annVertex))
	var decodeErr *wire.DecodeError
	require.ErrorAs(t, err, &decodeErr)
}

func TestMaterialize_Properties(t *testing.T) {
	m := NewMaterializer(nil)

	name, err := Materialize[string](m, element(t, `{"key":"name","value":"Ann"}`))
	require.NoError(t, err)
	assert.Equal(t, "Ann", name)

	name, err = Materialize[string](m, element(t, `{"id":"p1","label":"name","value":"Ann","properties":{"since":2020}}`))
	require.NoError(t, err)
	assert.Equal(t, "Ann", name)

	tags, err := Materialize[[]string](m, element(t, `{"label":"tags","value":["a","b","c"]}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, tags)

	_, err = Materialize[int](m, element(t, `{"key":"age","value":"old"}`))
	var decodeErr *wire.DecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.Equal(t, "age", decodeErr.Path)
}

func TestMaterialize_Pointers(t *testing.T) {
	m := NewMaterializer(nil)

	p, err := Materialize[*person](m, element(t, annVertex))
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "Ann", p.Name)

	n, err := Materialize[*int](m, element(t, `null`))
	require.NoError(t, err)
	assert.Nil(t, n)

	n, err = Materialize[*int](m, element(t, `7`))
	require.NoError(t, err)
	require.NotNil(t, n)
	assert.Equal(t, 7, *n)
}

func TestMaterialize_Scalars(t *testing.T) {
	type account struct {
		VertexBase `gremlin:"account"`
		ExternalID uuid.UUID  `gremlin:"externalId"`
		Created    time.Time  `gremlin:"created"`
		Closed     *time.Time `gremlin:"closed"`
		Balance    float64    `gremlin:"balance"`
		Active     bool       `gremlin:"active"`
		Score      uint8      `gremlin:"score"`
	}
	payload := `{"id":"a1","label":"account","type":"vertex","properties":{
		"externalId": [{"value": "0b6b2a0c-7a3e-4a4b-9f35-2d1d3cb0a1f1"}],
		"created": [{"value": "2024-03-01T10:00:00+02:00"}],
		"balance": [{"value": 12.5}],
		"active": [{"value": true}],
		"score": [{"value": 200}]
	}}`

	a, err := Materialize[account](NewMaterializer(nil), element(t, payload))
	require.NoError(t, err)

	assert.Equal(t, uuid.MustParse("0b6b2a0c-7a3e-4a4b-9f35-2d1d3cb0a1f1"), a.ExternalID)
	assert.Equal(t, time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC), a.Created)
	assert.Equal(t, time.UTC, a.Created.Location())
	assert.Nil(t, a.Closed)
	assert.Equal(t, 12.5, a.Balance)
	assert.True(t, a.Active)
	assert.Equal(t, uint8(200), a.Score)
}

func TestMaterialize_ScalarFailures(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		target  func(m *Materializer, el wire.Element) error
	}{
		{"int8 overflow", `300`, func(m *Materializer, el wire.Element) error {
			_, err := Materialize[int8](m, el)
			return err
		}},
		{"negative unsigned", `-1`, func(m *Materializer, el wire.Element) error {
			_, err := Materialize[uint](m, el)
			return err
		}},
		{"fractional int", `1.5`, func(m *Materializer, el wire.Element) error {
			_, err := Materialize[int](m, el)
			return err
		}},
		{"bad time", `"yesterday"`, func(m *Materializer, el wire.Element) error {
			_, err := Materialize[time.Time](m, el)
			return err
		}},
		{"bad uuid", `"not-a-uuid"`, func(m *Materializer, el wire.Element) error {
			_, err := Materialize[uuid.UUID](m, el)
			return err
		}},
		{"bool from number", `1`, func(m *Materializer, el wire.Element) error {
			_, err := Materialize[bool](m, el)
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.target(NewMaterializer(nil), element(t, tt.payload))
			var decodeErr *wire.DecodeError
			require.ErrorAs(t, err, &decodeErr)
			assert.NotEmpty(t, decodeErr.Expected)
		})
	}
}

func TestMaterialize_FullRangeUnsigned(t *testing.T) {
	m := NewMaterializer(nil)

	n, err := Materialize[uint64](m, element(t, `18446744073709551615`))
	require.NoError(t, err)
	assert.Equal(t, uint64(math.MaxUint64), n)

	n, err = Materialize[uint64](m, wire.Scalar{Value: uint64(math.MaxUint64)})
	require.NoError(t, err)
	assert.Equal(t, uint64(math.MaxUint64), n)

	_, err = Materialize[uint8](m, element(t, `256`))
	assert.ErrorContains(t, err, "256 overflows uint8")
}

func TestMaterialize_IntegralFloats(t *testing.T) {
	n, err := Materialize[int64](NewMaterializer(nil), element(t, `30.0`))
	require.NoError(t, err)
	assert.Equal(t, int64(30), n)
}

type celsius float64

func TestMaterialize_CustomConverter(t *testing.T) {
	policy := DefaultConversionPolicy()
	RegisterConverter(policy, func(raw any) (celsius, error) {
		s, ok := raw.(string)
		if !ok || !strings.HasSuffix(s, "C") {
			return 0, fmt.Errorf("not a temperature: %v", raw)
		}
		var f float64
		_, err := fmt.Sscanf(strings.TrimSuffix(s, "C"), "%g", &f)
		return celsius(f), err
	})
	m := NewMaterializer(policy)

	c, err := Materialize[celsius](m, element(t, `"21.5C"`))
	require.NoError(t, err)
	assert.Equal(t, celsius(21.5), c)

	_, err = Materialize[celsius](m, element(t, `"hot"`))
	var decodeErr *wire.DecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.Error(t, errors.Unwrap(decodeErr))
}

func TestMaterialize_PlainStructAcceptsVertexOrEdge(t *testing.T) {
	type named struct {
		Name  string `json:"name"`
		Since int    `gremlin:"since"`
	}
	m := NewMaterializer(nil)

	fromVertex, err := Materialize[named](m, element(t, annVertex))
	require.NoError(t, err)
	assert.Equal(t, "Ann", fromVertex.Name)

	fromEdge, err := Materialize[named](m, element(t, knowsEdge))
	require.NoError(t, err)
	assert.Equal(t, 2019, fromEdge.Since)
}

func TestMaterialize_FieldErrorPath(t *testing.T) {
	_, err := Materialize[person](NewMaterializer(nil), element(t,
		`{"id":"v1","label":"person","type":"vertex","properties":{"age":[{"value":"thirty"}]}}`))
	var decodeErr *wire.DecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.Equal(t, "age", decodeErr.Path)
	assert.Equal(t, "int", decodeErr.Expected)
}

func TestMaterializer_Into(t *testing.T) {
	m := NewMaterializer(nil)

	var p person
	require.NoError(t, m.Into(element(t, annVertex), &p))
	assert.Equal(t, "Ann", p.Name)

	assert.Error(t, m.Into(element(t, annVertex), p))
	assert.Error(t, m.Into(element(t, annVertex), (*person)(nil)))
}

func TestMaterialize_IsDeterministic(t *testing.T) {
	m := NewMaterializer(nil)
	el := element(t, annVertex)

	first, err := Materialize[person](m, el)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := Materialize[person](m, el)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}
