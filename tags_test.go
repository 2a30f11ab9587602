package cosmosgremlin

import (
	"reflect"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Audit struct {
	CreatedBy string `gremlin:"createdBy"`
}

type company struct {
	VertexBase `gremlin:"company"`
	*Audit
	Name     string `json:"name"`
	Founded  int
	Ignored  string `gremlin:"-"`
	JSONSkip string `json:"-"`
	internal string
}

type untagged struct {
	VertexBase
	Name string
}

func TestDescriptor_KeysAndLabel(t *testing.T) {
	desc, err := describe[company]()
	require.NoError(t, err)

	assert.Equal(t, kindVertex, desc.Kind)
	assert.Equal(t, "company", desc.Label)

	var keys []string
	for _, f := range desc.Fields {
		keys = append(keys, f.Key)
	}
	assert.Equal(t, []string{"createdBy", "name", "Founded"}, keys)
}

func TestDescriptor_LabelDefaultsToTypeName(t *testing.T) {
	label, err := labelOf[untagged]()
	require.NoError(t, err)
	assert.Equal(t, "untagged", label)

	label, err = labelOf[knows]()
	require.NoError(t, err)
	assert.Equal(t, "knows", label)
}

func TestDescriptor_MultiFields(t *testing.T) {
	type blob struct {
		VertexBase
		Tags []string `gremlin:"tags"`
		Data []byte   `gremlin:"data"`
	}
	desc, err := describe[blob]()
	require.NoError(t, err)
	require.Len(t, desc.Fields, 2)
	assert.True(t, desc.Fields[0].Multi)
	assert.False(t, desc.Fields[1].Multi)
}

func TestDescriptor_Errors(t *testing.T) {
	type duplicate struct {
		VertexBase
		A string `gremlin:"name"`
		B string `json:"name"`
	}
	_, err := describe[duplicate]()
	assert.ErrorContains(t, err, `both map to property "name"`)

	type both struct {
		VertexBase
		EdgeBase
	}
	_, err = describe[both]()
	assert.ErrorContains(t, err, "embeds both VertexBase and EdgeBase")

	_, err = describe[int]()
	assert.ErrorContains(t, err, "is not a struct")
}

func TestDescriptor_EmbeddedPointerIsAllocated(t *testing.T) {
	c, err := Materialize[company](NewMaterializer(nil), element(t,
		`{"id":"c1","label":"company","type":"vertex","properties":{"createdBy":[{"value":"ann"}],"name":[{"value":"Acme"}]}}`))
	require.NoError(t, err)
	require.NotNil(t, c.Audit)
	assert.Equal(t, "ann", c.CreatedBy)
	assert.Equal(t, "Acme", c.Name)
}

func TestDescriptorFor_CachesConcurrently(t *testing.T) {
	typ := reflect.TypeOf(company{})
	descriptorCache.Delete(typ)

	const workers = 16
	results := make([]*descriptor, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			desc, err := descriptorFor(typ)
			assert.NoError(t, err)
			results[i] = desc
		}(i)
	}
	wg.Wait()

	for _, desc := range results {
		assert.Same(t, results[0], desc)
	}

	viaPointer, err := descriptorFor(reflect.TypeOf(&company{}))
	require.NoError(t, err)
	assert.Same(t, results[0], viaPointer)
}

type nickname struct {
	Nick string `gremlin:"nick"`
}

type handle struct {
	Handle string `gremlin:"handle"`
}

func TestDescriptor_EmbeddedPointerToUnexportedStruct(t *testing.T) {
	type aliased struct {
		VertexBase `gremlin:"person"`
		*nickname
		Name string `gremlin:"name"`
	}

	_, err := describe[aliased]()
	assert.ErrorContains(t, err, "embedded pointer to unexported struct")

	var p aliased
	assert.NotPanics(t, func() {
		p, err = Materialize[aliased](NewMaterializer(nil), element(t,
			`{"id":"v1","label":"person","type":"vertex","properties":{"nick":[{"value":"Annie"}],"name":[{"value":"Ann"}]}}`))
	})
	var decodeErr *DecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.Empty(t, p.Name)
}

func TestDescriptor_EmbeddedUnexportedStructValue(t *testing.T) {
	type account struct {
		VertexBase `gremlin:"account"`
		handle
		Name string `gremlin:"name"`
	}

	a, err := Materialize[account](NewMaterializer(nil), element(t,
		`{"id":"a1","label":"account","type":"vertex","properties":{"handle":[{"value":"@ann"}],"name":[{"value":"Ann"}]}}`))
	require.NoError(t, err)
	assert.Equal(t, "@ann", a.Handle)
	assert.Equal(t, "Ann", a.Name)
}

func TestFieldByIndexAlloc_UnsettablePointer(t *testing.T) {
	type outer struct {
		*nickname
	}
	var o outer
	_, err := fieldByIndexAlloc(reflect.ValueOf(&o).Elem(), []int{0, 0})
	assert.ErrorContains(t, err, "cannot set embedded pointer")
	assert.Nil(t, o.nickname)
}
