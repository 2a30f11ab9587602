package wire

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"
)

const maxRawExcerpt = 200

// DecodeError reports a raw node that could not be classified, or an element
// whose shape does not match the requested target.
type DecodeError struct {
	// Path locates the node inside the result set, e.g. "[2].properties.age".
	Path string
	// Expected names the shape or type that was required. Empty when the
	// node matched no known shape at all.
	Expected string
	// Actual names the shape that was found.
	Actual string
	// Raw is the offending node.
	Raw any
	// Err is the underlying parse failure, if any.
	Err error
}

func (e *DecodeError) Error() string {
	var b strings.Builder
	b.WriteString("decode")
	if e.Path != "" {
		b.WriteString(" ")
		b.WriteString(e.Path)
	}
	if e.Expected != "" {
		fmt.Fprintf(&b, ": expected %s, got %s", e.Expected, e.Actual)
	} else {
		fmt.Fprintf(&b, ": unrecognized %s", e.Actual)
	}
	if excerpt := rawExcerpt(e.Raw); excerpt != "" {
		fmt.Fprintf(&b, " (raw: %s)", excerpt)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Describe returns a short name for the shape of a raw node or element.
func Describe(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case Element:
		return t.Kind().String()
	case *Object:
		return "object{" + strings.Join(t.Keys(), ",") + "}"
	case []any:
		return "list"
	case string:
		return "string"
	case bool:
		return "bool"
	case json.Number:
		return "number"
	case time.Time:
		return "time"
	}
	return reflect.TypeOf(v).String()
}

func rawExcerpt(v any) string {
	if v == nil {
		return ""
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	if len(data) > maxRawExcerpt {
		return string(data[:maxRawExcerpt]) + "..."
	}
	return string(data)
}
