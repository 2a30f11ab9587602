package cosmosgremlin

import (
	"fmt"
	"reflect"

	"github.com/saulfrancisco-ruizacevedo/go-cosmosgremlin/wire"
)

var (
	elementType       = reflect.TypeOf((*wire.Element)(nil)).Elem()
	wireVertexType    = reflect.TypeOf(wire.Vertex{})
	wireEdgeType      = reflect.TypeOf(wire.Edge{})
	wirePropertyType  = reflect.TypeOf(wire.Property{})
	wireMultiPropType = reflect.TypeOf(wire.MultiProperty{})
	wireTreeType      = reflect.TypeOf(wire.Tree{})
	stringType        = reflect.TypeOf("")
)

// Materializer converts classified wire elements into application types.
// It holds no mutable state and is safe for concurrent use.
type Materializer struct {
	policy *ConversionPolicy
}

// NewMaterializer creates a Materializer. A nil policy selects
// DefaultConversionPolicy.
func NewMaterializer(policy *ConversionPolicy) *Materializer {
	if policy == nil {
		policy = DefaultConversionPolicy()
	}
	return &Materializer{policy: policy}
}

// Materialize converts el into a T.
//
// Supported targets:
//   - any: the element's natural value (the scalar itself, a property's
//     value, a multi-property's values, or the wire element for vertices,
//     edges and trees)
//   - wire.Element and the concrete wire types, when the shapes match
//   - structs embedding VertexBase or EdgeBase, from a vertex or edge
//   - other structs, from either a vertex or an edge
//   - Tree[X], from a tree
//   - slices, from a multi-property
//   - scalars (strings, numbers, bools, time.Time, TextUnmarshalers), from a
//     scalar or a property
//   - pointers to any of the above
//
// A shape mismatch fails with a *wire.DecodeError and no partially populated
// value is returned.
func Materialize[T any](m *Materializer, el wire.Element) (T, error) {
	var out T
	if err := m.Into(el, &out); err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

// Into materializes el into the value target points to.
func (m *Materializer) Into(el wire.Element, target any) error {
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return fmt.Errorf("materialize target must be a non-nil pointer, got %T", target)
	}
	v, err := m.value(el, rv.Elem().Type(), "")
	if err != nil {
		return err
	}
	rv.Elem().Set(v)
	return nil
}

// value builds a fresh value of type t from el.
func (m *Materializer) value(el wire.Element, t reflect.Type, path string) (reflect.Value, error) {
	if el == nil {
		return reflect.Zero(t), nil
	}

	switch {
	case t.Kind() == reflect.Interface:
		return m.interfaceValue(el, t, path)
	case t.Kind() == reflect.Ptr:
		if s, ok := el.(wire.Scalar); ok && s.Value == nil {
			return reflect.Zero(t), nil
		}
		inner, err := m.value(el, t.Elem(), path)
		if err != nil {
			return reflect.Value{}, err
		}
		p := reflect.New(t.Elem())
		p.Elem().Set(inner)
		return p, nil
	case isWireType(t):
		if reflect.TypeOf(el) != t {
			return reflect.Value{}, mismatch(el, t.Name(), path)
		}
		return reflect.ValueOf(el), nil
	case t.Implements(treeShapedType):
		tree, ok := el.(wire.Tree)
		if !ok {
			return reflect.Value{}, mismatch(el, "tree", path)
		}
		return m.treeValue(tree, t, path)
	}

	if _, ok := el.(wire.Tree); ok {
		return reflect.Value{}, mismatch(el, t.String(), path)
	}

	if t.Kind() == reflect.Struct && !m.policy.handles(t) {
		return m.structValue(el, t, path)
	}
	if t.Kind() == reflect.Slice && t.Elem().Kind() != reflect.Uint8 {
		switch e := el.(type) {
		case wire.MultiProperty:
			return m.rawSlice(e.Values, t, path)
		case wire.Property:
			return m.rawValue(e.Value, t, path)
		case wire.Scalar:
			return m.rawValue(e.Value, t, path)
		}
		return reflect.Value{}, mismatch(el, t.String(), path)
	}

	switch e := el.(type) {
	case wire.Scalar:
		return m.rawValue(e.Value, t, path)
	case wire.Property:
		return m.rawValue(e.Value, t, joinPath(path, e.Key))
	case wire.MultiProperty:
		if len(e.Values) == 0 {
			return reflect.Zero(t), nil
		}
		return m.rawValue(e.Values[0], t, joinPath(path, e.Key))
	}
	return reflect.Value{}, mismatch(el, t.String(), path)
}

func (m *Materializer) interfaceValue(el wire.Element, t reflect.Type, path string) (reflect.Value, error) {
	out := reflect.New(t).Elem()
	if t == elementType || t.NumMethod() > 0 {
		if !reflect.TypeOf(el).Implements(t) {
			return reflect.Value{}, mismatch(el, t.String(), path)
		}
		out.Set(reflect.ValueOf(el))
		return out, nil
	}
	if natural := naturalValue(el); natural != nil {
		out.Set(reflect.ValueOf(natural))
	}
	return out, nil
}

// naturalValue is what an untyped caller sees for el.
func naturalValue(el wire.Element) any {
	switch e := el.(type) {
	case wire.Scalar:
		return e.Value
	case wire.Property:
		return e.Value
	case wire.MultiProperty:
		return e.Values
	}
	return el
}

func (m *Materializer) structValue(el wire.Element, t reflect.Type, path string) (reflect.Value, error) {
	desc, err := descriptorFor(t)
	if err != nil {
		return reflect.Value{}, &DecodeError{Path: path, Expected: t.String(), Actual: wire.Describe(el), Err: err}
	}

	var props wire.Properties
	out := reflect.New(t).Elem()

	switch e := el.(type) {
	case wire.Vertex:
		if desc.Kind == kindEdge {
			return reflect.Value{}, mismatch(el, "edge", path)
		}
		if desc.Kind == kindVertex {
			id, err := m.idString(e.ID, joinPath(path, "id"))
			if err != nil {
				return reflect.Value{}, err
			}
			base := VertexBase{ID: id, Label: e.Label}
			if err := setField(out, desc.BaseIndex, reflect.ValueOf(base), path); err != nil {
				return reflect.Value{}, err
			}
		}
		props = e.Properties
	case wire.Edge:
		if desc.Kind == kindVertex {
			return reflect.Value{}, mismatch(el, "vertex", path)
		}
		if desc.Kind == kindEdge {
			base, err := m.edgeBase(e, path)
			if err != nil {
				return reflect.Value{}, err
			}
			if err := setField(out, desc.BaseIndex, reflect.ValueOf(base), path); err != nil {
				return reflect.Value{}, err
			}
		}
		props = e.Properties
	default:
		return reflect.Value{}, mismatch(el, desc.Kind.String(), path)
	}

	for _, f := range desc.Fields {
		values, ok := props[f.Key]
		if !ok || len(values) == 0 {
			continue // absent properties leave the zero value
		}
		fieldPath := joinPath(path, f.Key)
		var v reflect.Value
		if f.Multi {
			v, err = m.rawSlice(values, f.Type, fieldPath)
		} else {
			v, err = m.rawValue(values[0], f.Type, fieldPath)
		}
		if err != nil {
			return reflect.Value{}, err
		}
		if err := setField(out, f.Index, v, joinPath(path, f.Key)); err != nil {
			return reflect.Value{}, err
		}
	}
	return out, nil
}

func setField(out reflect.Value, index []int, v reflect.Value, path string) error {
	field, err := fieldByIndexAlloc(out, index)
	if err != nil {
		return &DecodeError{Path: path, Expected: "settable field", Actual: out.Type().String(), Err: err}
	}
	field.Set(v)
	return nil
}

func (m *Materializer) edgeBase(e wire.Edge, path string) (EdgeBase, error) {
	id, err := m.idString(e.ID, joinPath(path, "id"))
	if err != nil {
		return EdgeBase{}, err
	}
	outV, err := m.idString(e.OutV, joinPath(path, "outV"))
	if err != nil {
		return EdgeBase{}, err
	}
	inV, err := m.idString(e.InV, joinPath(path, "inV"))
	if err != nil {
		return EdgeBase{}, err
	}
	return EdgeBase{
		ID:        id,
		Label:     e.Label,
		OutV:      outV,
		InV:       inV,
		OutVLabel: e.OutVLabel,
		InVLabel:  e.InVLabel,
	}, nil
}

func (m *Materializer) idString(raw any, path string) (string, error) {
	v, err := m.policy.convert(raw, stringType, path)
	if err != nil {
		return "", err
	}
	return v.String(), nil
}

func (m *Materializer) treeValue(tree wire.Tree, t reflect.Type, path string) (reflect.Value, error) {
	out := reflect.New(t).Elem()
	if tree.Node != nil {
		v, err := m.value(tree.Node, t.Field(0).Type, path)
		if err != nil {
			return reflect.Value{}, err
		}
		out.Field(0).Set(v)
	}
	children := reflect.MakeSlice(t.Field(1).Type, 0, len(tree.Children))
	for i, child := range tree.Children {
		cv, err := m.treeValue(child, t, joinPath(path, fmt.Sprintf("children[%d]", i)))
		if err != nil {
			return reflect.Value{}, err
		}
		children = reflect.Append(children, cv)
	}
	out.Field(1).Set(children)
	return out, nil
}

// rawValue decodes a raw value found inside an element (a property value).
func (m *Materializer) rawValue(raw any, t reflect.Type, path string) (reflect.Value, error) {
	switch v := raw.(type) {
	case []any:
		if t.Kind() == reflect.Slice {
			return m.rawSlice(v, t, path)
		}
		if t.Kind() == reflect.Interface && t.NumMethod() == 0 {
			out := reflect.New(t).Elem()
			out.Set(reflect.ValueOf(v))
			return out, nil
		}
		return reflect.Value{}, &wire.DecodeError{Path: path, Expected: t.String(), Actual: "list", Raw: raw}
	case *wire.Object:
		el, err := wire.Classify(v)
		if err != nil {
			return reflect.Value{}, err
		}
		return m.value(el, t, path)
	}

	if t.Kind() == reflect.Ptr {
		if raw == nil {
			return reflect.Zero(t), nil
		}
		inner, err := m.rawValue(raw, t.Elem(), path)
		if err != nil {
			return reflect.Value{}, err
		}
		p := reflect.New(t.Elem())
		p.Elem().Set(inner)
		return p, nil
	}
	return m.policy.convert(raw, t, path)
}

// rawSlice decodes every value, in order, into a slice of type t. A single
// list value (as produced by stores with array-typed properties) is
// expanded.
func (m *Materializer) rawSlice(values []any, t reflect.Type, path string) (reflect.Value, error) {
	if t.Kind() != reflect.Slice {
		return reflect.Value{}, &wire.DecodeError{Path: path, Expected: t.String(), Actual: "list", Raw: values}
	}
	if len(values) == 1 {
		if inner, ok := values[0].([]any); ok {
			values = inner
		}
	}
	out := reflect.MakeSlice(t, 0, len(values))
	for i, raw := range values {
		v, err := m.rawValue(raw, t.Elem(), fmt.Sprintf("%s[%d]", path, i))
		if err != nil {
			return reflect.Value{}, err
		}
		out = reflect.Append(out, v)
	}
	return out, nil
}

func isWireType(t reflect.Type) bool {
	switch t {
	case wireVertexType, wireEdgeType, wirePropertyType, wireMultiPropType, wireTreeType:
		return true
	}
	return false
}

func mismatch(el wire.Element, expected, path string) error {
	return &wire.DecodeError{
		Path:     path,
		Expected: expected,
		Actual:   el.Kind().String(),
		Raw:      el,
	}
}

func joinPath(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}
