package wire

import (
	"encoding/json"
	"fmt"
	"reflect"
	"time"
)

// Classify turns a raw node into an Element. It is a pure function of its
// input. Rules are tried in this order and the first match wins:
//
//  1. primitives (null, string, bool, number, time) are a Scalar
//  2. an object with both "outV" and "inV" is an Edge
//  3. an object with "label" and either "properties" or type "vertex", and no
//     "value", is a Vertex
//  4. an object whose members are all {"key": ..., "value": {...}} pairs is a Tree
//  5. an object with "value" and "key" (or "label") is a Property, or a
//     MultiProperty when "value" is a list
//
// Anything else fails with a *DecodeError; unknown shapes are never coerced
// into a Scalar.
func Classify(raw any) (Element, error) {
	return classify(raw, "")
}

// ClassifyAll classifies every raw node in order and stops at the first
// failure.
func ClassifyAll(raws []any) ([]Element, error) {
	out := make([]Element, 0, len(raws))
	for i, raw := range raws {
		el, err := classify(raw, fmt.Sprintf("[%d]", i))
		if err != nil {
			return nil, err
		}
		out = append(out, el)
	}
	return out, nil
}

func classify(raw any, path string) (Element, error) {
	if IsPrimitive(raw) {
		return Scalar{Value: raw}, nil
	}
	obj, ok := raw.(*Object)
	if !ok {
		return nil, &DecodeError{Path: path, Actual: Describe(raw), Raw: raw}
	}

	switch {
	case obj.Has("outV") && obj.Has("inV"):
		return parseEdge(obj, path)
	case isVertex(obj):
		return parseVertex(obj, path)
	case isTree(obj):
		return parseTree(obj, path)
	case obj.Has("value") && (obj.Has("key") || obj.Has("label")):
		return parseProperty(obj, path)
	}
	return nil, &DecodeError{Path: path, Actual: Describe(raw), Raw: raw}
}

// IsPrimitive reports whether v is a scalar raw value.
func IsPrimitive(v any) bool {
	switch v.(type) {
	case nil, string, bool, json.Number, time.Time:
		return true
	}
	switch reflect.TypeOf(v).Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64, reflect.String, reflect.Bool:
		return true
	}
	return false
}

func isVertex(obj *Object) bool {
	// Vertex properties with meta-properties also carry label and
	// properties, but only they have a value.
	if !obj.Has("label") || obj.Has("value") {
		return false
	}
	if obj.Has("properties") {
		return true
	}
	typ, _ := obj.Get("type")
	return typ == "vertex"
}

func isTree(obj *Object) bool {
	for _, m := range obj.Members {
		inner, ok := m.Value.(*Object)
		if !ok || inner.Len() != 2 || !inner.Has("key") {
			return false
		}
		children, _ := inner.Get("value")
		if _, ok := children.(*Object); !ok {
			return false
		}
	}
	return true
}

func parseEdge(obj *Object, path string) (Element, error) {
	id, _ := obj.Get("id")
	outV, _ := obj.Get("outV")
	inV, _ := obj.Get("inV")
	if isEmptyID(outV) || isEmptyID(inV) {
		return nil, &DecodeError{
			Path:     path,
			Expected: "edge with outV and inV",
			Actual:   Describe(obj),
			Raw:      obj,
		}
	}
	label, err := optionalString(obj, "label", path)
	if err != nil {
		return nil, err
	}
	outLabel, err := optionalString(obj, "outVLabel", path)
	if err != nil {
		return nil, err
	}
	inLabel, err := optionalString(obj, "inVLabel", path)
	if err != nil {
		return nil, err
	}
	rawProps, _ := obj.Get("properties")
	props, err := parseProperties(rawProps, path+".properties")
	if err != nil {
		return nil, err
	}
	return Edge{
		ID:         id,
		Label:      label,
		OutV:       outV,
		InV:        inV,
		OutVLabel:  outLabel,
		InVLabel:   inLabel,
		Properties: props,
	}, nil
}

func parseVertex(obj *Object, path string) (Element, error) {
	id, _ := obj.Get("id")
	label, err := optionalString(obj, "label", path)
	if err != nil {
		return nil, err
	}
	rawProps, _ := obj.Get("properties")
	props, err := parseProperties(rawProps, path+".properties")
	if err != nil {
		return nil, err
	}
	return Vertex{ID: id, Label: label, Properties: props}, nil
}

func parseTree(obj *Object, path string) (Element, error) {
	children := make([]Tree, 0, obj.Len())
	for _, m := range obj.Members {
		inner := m.Value.(*Object)
		childPath := path + "." + m.Key
		key, _ := inner.Get("key")
		node, err := classify(key, childPath+".key")
		if err != nil {
			return nil, err
		}
		value, _ := inner.Get("value")
		sub, err := parseTree(value.(*Object), childPath+".value")
		if err != nil {
			return nil, err
		}
		children = append(children, Tree{Node: node, Children: sub.(Tree).Children})
	}
	return Tree{Children: children}, nil
}

func parseProperty(obj *Object, path string) (Element, error) {
	key, err := optionalString(obj, "key", path)
	if err != nil {
		return nil, err
	}
	if key == "" {
		// Cosmos DB vertex properties carry their name under "label".
		if key, err = optionalString(obj, "label", path); err != nil {
			return nil, err
		}
	}
	value, _ := obj.Get("value")
	if values, ok := value.([]any); ok {
		return MultiProperty{Key: key, Values: values}, nil
	}
	return Property{Key: key, Value: value}, nil
}

// parseProperties normalizes a properties bag. Each member may be a list of
// vertex property objects ({"id", "value"}), a single property object, or a
// bare value.
func parseProperties(raw any, path string) (Properties, error) {
	if raw == nil {
		return Properties{}, nil
	}
	obj, ok := raw.(*Object)
	if !ok {
		return nil, &DecodeError{Path: path, Expected: "properties object", Actual: Describe(raw), Raw: raw}
	}
	props := make(Properties, obj.Len())
	for _, m := range obj.Members {
		switch v := m.Value.(type) {
		case []any:
			vals := make([]any, 0, len(v))
			for _, item := range v {
				vals = append(vals, propertyValue(item))
			}
			props[m.Key] = vals
		default:
			props[m.Key] = []any{propertyValue(v)}
		}
	}
	return props, nil
}

func propertyValue(item any) any {
	if obj, ok := item.(*Object); ok {
		if v, ok := obj.Get("value"); ok {
			return v
		}
	}
	return item
}

func optionalString(obj *Object, key, path string) (string, error) {
	v, ok := obj.Get(key)
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", &DecodeError{Path: path + "." + key, Expected: "string", Actual: Describe(v), Raw: v}
	}
	return s, nil
}

func isEmptyID(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	}
	return false
}
