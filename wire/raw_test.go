package wire

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_KeepsMemberOrder(t *testing.T) {
	raw, err := Decode([]byte(`{"z": 1, "a": 2, "m": {"y": true, "b": null}}`))
	require.NoError(t, err)

	obj, ok := raw.(*Object)
	require.True(t, ok)
	assert.Equal(t, []string{"z", "a", "m"}, obj.Keys())

	inner, _ := obj.Get("m")
	assert.Equal(t, []string{"y", "b"}, inner.(*Object).Keys())

	out, err := json.Marshal(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"z":1,"a":2,"m":{"y":true,"b":null}}`, string(out))
}

func TestDecode_NumbersStayExact(t *testing.T) {
	raw, err := Decode([]byte(`9007199254740993`))
	require.NoError(t, err)
	assert.Equal(t, json.Number("9007199254740993"), raw)
}

func TestDecode_RejectsTrailingData(t *testing.T) {
	_, err := Decode([]byte(`{} {}`))
	assert.Error(t, err)

	_, err = Decode([]byte(`{"a": `))
	assert.Error(t, err)
}

func TestDecodeResults(t *testing.T) {
	items, err := DecodeResults([]byte(`null`))
	require.NoError(t, err)
	assert.Empty(t, items)

	items, err = DecodeResults([]byte(`[1, "two"]`))
	require.NoError(t, err)
	assert.Equal(t, []any{json.Number("1"), "two"}, items)

	items, err = DecodeResults([]byte(`"solo"`))
	require.NoError(t, err)
	assert.Equal(t, []any{"solo"}, items)
}

func TestObject_NilSafe(t *testing.T) {
	var obj *Object
	_, ok := obj.Get("x")
	assert.False(t, ok)
	assert.Equal(t, 0, obj.Len())
}
