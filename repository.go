package cosmosgremlin

import (
	"context"
	"encoding"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"
)

// ErrNotFound is a sentinel error returned by Find operations when no vertex
// matching the criteria exists.
var ErrNotFound = errors.New("vertex not found")

// Repository provides CRUD operations for one vertex type T. It relies on the
// label and property keys declared by T's struct tags.
type Repository[T VertexCapable] struct {
	client *Client
	desc   *descriptor
}

// NewRepository creates a repository for the vertex type T.
//
// Parameters:
//   - client: The client every query is submitted through.
//
// Returns:
//
//	A new Repository instance or an error if T's struct tags are invalid.
func NewRepository[T VertexCapable](client *Client) (*Repository[T], error) {
	if client == nil {
		return nil, &ArgumentError{Name: "client"}
	}
	desc, err := describe[T]()
	if err != nil {
		return nil, err
	}
	return &Repository[T]{client: client, desc: desc}, nil
}

// Label returns the vertex label the repository reads and writes.
func (r *Repository[T]) Label() string { return r.desc.Label }

// Save creates the vertex or updates an existing one with the same id.
// Every mapped field is written. Scalar fields use single cardinality so
// they replace the stored value even when the server defaults to list
// cardinality. Slice fields replace all values of the property and nil
// pointers remove it.
//
// Parameters:
//   - ctx: The context for the query execution.
//   - entity: The vertex to save. Its VertexBase.ID must be set.
//
// Returns:
//
//	An *ArgumentError if the entity or its id is missing, or an error if
//	the query fails.
func (r *Repository[T]) Save(ctx context.Context, entity *T) error {
	if entity == nil {
		return &ArgumentError{Name: "entity"}
	}
	script, err := r.upsert(reflect.ValueOf(entity).Elem())
	if err != nil {
		return err
	}
	return ExecuteTraversal(ctx, r.client, Gremlin[T, T](script.Text, script.Bindings), r.site())
}

// upsert renders the coalesce-based upsert for one entity.
func (r *Repository[T]) upsert(val reflect.Value) (Script, error) {
	baseField, err := val.FieldByIndexErr(r.desc.BaseIndex)
	if err != nil || baseField.Interface().(VertexBase).ID == "" {
		return Script{}, &ArgumentError{Name: "id"}
	}

	b := &binder{bindings: map[string]any{"_id": baseField.Interface().(VertexBase).ID}}
	var sb strings.Builder
	fmt.Fprintf(&sb, "g.V(_id).hasLabel(%s).fold().coalesce(unfold(), addV(%s).property('id', _id))",
		quote(r.desc.Label), quote(r.desc.Label))

	for _, f := range r.desc.Fields {
		field, err := val.FieldByIndexErr(f.Index)
		if err != nil {
			continue // nil embedded pointer; nothing to write
		}
		key := quote(f.Key)
		if f.Multi || (field.Kind() == reflect.Ptr && field.IsNil()) {
			fmt.Fprintf(&sb, ".sideEffect(properties(%s).drop())", key)
		}
		switch {
		case f.Multi:
			for i := 0; i < field.Len(); i++ {
				fmt.Fprintf(&sb, ".property(list, %s, %s)", key, b.bind(propertyValue(field.Index(i))))
			}
		case field.Kind() == reflect.Ptr && field.IsNil():
		default:
			fmt.Fprintf(&sb, ".property(single, %s, %s)", key, b.bind(propertyValue(field)))
		}
	}
	return Script{Text: sb.String(), Bindings: b.bindings}, nil
}

// FindByID retrieves a single vertex by id.
//
// Parameters:
//   - ctx: The context for the query execution.
//   - id: The vertex id.
//
// Returns:
//
//	A pointer to the found entity, ErrNotFound if there is none, or another
//	error if the query or mapping fails. A lookup that matches several
//	vertices fails with a *CardinalityError.
func (r *Repository[T]) FindByID(ctx context.Context, id string) (*T, error) {
	if id == "" {
		return nil, &ArgumentError{Name: "id"}
	}
	return r.single(QueryTraversalSingle(ctx, r.client, V[T](id), r.site()))
}

// FindOne runs t and returns its only result, or ErrNotFound.
func (r *Repository[T]) FindOne(ctx context.Context, t Traversal[T, T]) (*T, error) {
	return r.single(QueryTraversalSingle(ctx, r.client, t, r.site()))
}

// Find runs t and returns every result.
func (r *Repository[T]) Find(ctx context.Context, t Traversal[T, T]) (Result[T], error) {
	return QueryTraversal(ctx, r.client, t, r.site())
}

// FindAll returns every vertex with T's label.
func (r *Repository[T]) FindAll(ctx context.Context) (Result[T], error) {
	return QueryTraversal(ctx, r.client, V[T](), r.site())
}

// Count returns the number of vertices with T's label.
func (r *Repository[T]) Count(ctx context.Context) (int64, error) {
	return QueryTraversalSingle(ctx, r.client, Count(V[T]()), r.site())
}

// Delete removes a vertex and its incident edges by id. Deleting a vertex
// that does not exist is not an error.
func (r *Repository[T]) Delete(ctx context.Context, id string) error {
	if id == "" {
		return &ArgumentError{Name: "id"}
	}
	return ExecuteTraversal(ctx, r.client, Drop(V[T](id)), r.site())
}

func (r *Repository[T]) single(v T, err error) (*T, error) {
	var card *CardinalityError
	if errors.As(err, &card) && card.Count == 0 {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// site records the repository caller rather than the repository method.
func (r *Repository[T]) site() CallOption {
	return WithCallSite(callerSite(3))
}

// Relate creates a directed edge of type E from the vertex fromID to the
// vertex toID. The edge label comes from E and its mapped fields become edge
// properties; E's EdgeBase is ignored.
//
// Parameters:
//   - ctx: The context for the query execution.
//   - c: The client to submit through.
//   - fromID: The id of the vertex the edge leaves from.
//   - toID: The id of the vertex the edge points to.
//   - edge: The edge properties.
//
// Returns:
//
//	An *ArgumentError if either id is missing, or an error if the query fails.
func Relate[E EdgeCapable](ctx context.Context, c *Client, fromID, toID string, edge E) error {
	switch {
	case fromID == "":
		return &ArgumentError{Name: "fromID"}
	case toID == "":
		return &ArgumentError{Name: "toID"}
	}
	desc, err := describe[E]()
	if err != nil {
		return err
	}

	b := &binder{bindings: map[string]any{"_from": fromID, "_to": toID}}
	var sb strings.Builder
	fmt.Fprintf(&sb, "g.V(_from).addE(%s).to(g.V(_to))", quote(desc.Label))
	val := reflect.ValueOf(edge)
	for _, f := range desc.Fields {
		field, err := val.FieldByIndexErr(f.Index)
		if err != nil || (field.Kind() == reflect.Ptr && field.IsNil()) {
			continue
		}
		if f.Multi {
			continue // edge properties are single-valued
		}
		fmt.Fprintf(&sb, ".property(%s, %s)", quote(f.Key), b.bind(propertyValue(field)))
	}
	return ExecuteTraversal(ctx, c, Gremlin[E, E](sb.String(), b.bindings), WithCallSite(callerSite(2)))
}

// propertyValue converts a field value into something every transport can
// serialize: times become UTC ISO-8601 text and TextMarshalers their text.
func propertyValue(v reflect.Value) any {
	for v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}
	iface := v.Interface()
	switch x := iface.(type) {
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	case encoding.TextMarshaler:
		if text, err := x.MarshalText(); err == nil {
			return string(text)
		}
	}
	return iface
}
