package cosmosgremlin

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
)

type targetKind int

const (
	kindValue targetKind = iota
	kindVertex
	kindEdge
)

func (k targetKind) String() string {
	switch k {
	case kindVertex:
		return "vertex"
	case kindEdge:
		return "edge"
	default:
		return "vertex or edge"
	}
}

var (
	vertexBaseType = reflect.TypeOf(VertexBase{})
	edgeBaseType   = reflect.TypeOf(EdgeBase{})
)

// fieldMapping binds one struct field to a graph property key.
type fieldMapping struct {
	// Name is the Go field name.
	Name string
	// Key is the graph property key.
	Key string
	// Index is the field's index path, suitable for FieldByIndex.
	Index []int
	Type  reflect.Type
	// Multi is set for slice fields, which receive every value of a
	// multi-valued property in order.
	Multi bool
}

// descriptor holds the parsed `gremlin` tag information for a struct type.
// Descriptors are built once per type and cached for the process lifetime.
type descriptor struct {
	Type reflect.Type
	Kind targetKind
	// Label is the vertex or edge label, defaulting to the struct's name.
	Label string
	// BaseIndex locates the embedded VertexBase or EdgeBase.
	BaseIndex []int
	Fields    []fieldMapping
}

// descriptorCache maps reflect.Type to *descriptor. Two goroutines racing on
// the same type may both parse it; LoadOrStore keeps whichever lands first.
var descriptorCache sync.Map

// descriptorFor returns the cached descriptor for typ, parsing it on first use.
func descriptorFor(typ reflect.Type) (*descriptor, error) {
	for typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	if cached, ok := descriptorCache.Load(typ); ok {
		return cached.(*descriptor), nil
	}
	desc, err := parseDescriptor(typ)
	if err != nil {
		return nil, err
	}
	actual, _ := descriptorCache.LoadOrStore(typ, desc)
	return actual.(*descriptor), nil
}

// describe is a generic convenience wrapper around descriptorFor.
func describe[T any]() (*descriptor, error) {
	return descriptorFor(reflect.TypeOf((*T)(nil)).Elem())
}

// labelOf returns the graph label declared by T.
func labelOf[T any]() (string, error) {
	desc, err := describe[T]()
	if err != nil {
		return "", err
	}
	return desc.Label, nil
}

// parseDescriptor inspects a struct type and extracts its graph mapping.
//
// Property keys come from the `gremlin` tag, then the `json` tag, then the
// field name. A `gremlin:"-"` tag (or `json:"-"` without a gremlin tag)
// excludes the field. Promoted fields of embedded structs are included.
func parseDescriptor(typ reflect.Type) (*descriptor, error) {
	if typ.Kind() != reflect.Struct {
		return nil, fmt.Errorf("type %s is not a struct", typ)
	}

	desc := &descriptor{
		Type:  typ,
		Kind:  kindValue,
		Label: typ.Name(),
	}
	seen := make(map[string]string)

	for _, field := range reflect.VisibleFields(typ) {
		if desc.BaseIndex != nil && hasPrefix(field.Index, desc.BaseIndex) {
			continue // promoted from VertexBase/EdgeBase
		}
		if field.Anonymous {
			switch field.Type {
			case vertexBaseType, edgeBaseType:
				if desc.Kind != kindValue {
					return nil, fmt.Errorf("type %s embeds both VertexBase and EdgeBase", typ)
				}
				desc.Kind = kindVertex
				if field.Type == edgeBaseType {
					desc.Kind = kindEdge
				}
				desc.BaseIndex = field.Index
				if label, _ := splitTag(field.Tag.Get("gremlin")); label != "" {
					desc.Label = label
				}
				continue
			}
			if indirect(field.Type).Kind() == reflect.Struct {
				if field.Type.Kind() == reflect.Ptr && !field.IsExported() {
					// reflect cannot allocate a nil pointer reached through an
					// unexported field.
					return nil, fmt.Errorf("type %s: cannot map fields of embedded pointer to unexported struct %s",
						typ, field.Type.Elem())
				}
				continue // its promoted fields follow
			}
		}
		if !field.IsExported() {
			continue
		}

		key, skip := propertyKey(field)
		if skip {
			continue
		}
		if other, dup := seen[key]; dup {
			return nil, fmt.Errorf("type %s: fields %s and %s both map to property %q", typ, other, field.Name, key)
		}
		seen[key] = field.Name

		desc.Fields = append(desc.Fields, fieldMapping{
			Name:  field.Name,
			Key:   key,
			Index: field.Index,
			Type:  field.Type,
			Multi: field.Type.Kind() == reflect.Slice && field.Type.Elem().Kind() != reflect.Uint8,
		})
	}

	return desc, nil
}

func propertyKey(field reflect.StructField) (string, bool) {
	if tag, ok := field.Tag.Lookup("gremlin"); ok {
		name, _ := splitTag(tag)
		if name == "-" {
			return "", true
		}
		if name != "" {
			return name, false
		}
		return field.Name, false
	}
	if tag, ok := field.Tag.Lookup("json"); ok {
		name, _ := splitTag(tag)
		if name == "-" {
			return "", true
		}
		if name != "" {
			return name, false
		}
	}
	return field.Name, false
}

func splitTag(tag string) (string, []string) {
	parts := strings.Split(tag, ",")
	return strings.TrimSpace(parts[0]), parts[1:]
}

func hasPrefix(index, prefix []int) bool {
	if len(index) <= len(prefix) {
		return false
	}
	for i := range prefix {
		if index[i] != prefix[i] {
			return false
		}
	}
	return true
}

func indirect(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t
}

// fieldByIndexAlloc walks index like FieldByIndex, allocating nil embedded
// pointers on the way. It fails instead of panicking when a nil pointer
// cannot be set.
func fieldByIndexAlloc(v reflect.Value, index []int) (reflect.Value, error) {
	for i, x := range index {
		if i > 0 && v.Kind() == reflect.Ptr {
			if v.IsNil() {
				if !v.CanSet() {
					return reflect.Value{}, fmt.Errorf("cannot set embedded pointer to unexported struct %s", v.Type().Elem())
				}
				v.Set(reflect.New(v.Type().Elem()))
			}
			v = v.Elem()
		}
		v = v.Field(x)
	}
	return v, nil
}
