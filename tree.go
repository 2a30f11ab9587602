package cosmosgremlin

import "reflect"

// Tree is the typed form of a tree() result. The top-level result of a
// tree() step is a forest, so the outermost Tree has a zero Value and one
// child per root. Children keep the order the database visited them in.
type Tree[T any] struct {
	Value    T         `json:"value"`
	Children []Tree[T] `json:"children"`
}

func (Tree[T]) treeShape() {}

// Walk visits every node depth first, parents before children. Returning
// false from fn stops the walk.
func (t Tree[T]) Walk(fn func(depth int, value T) bool) {
	t.walk(0, fn)
}

func (t Tree[T]) walk(depth int, fn func(int, T) bool) bool {
	for _, child := range t.Children {
		if !fn(depth, child.Value) || !child.walk(depth+1, fn) {
			return false
		}
	}
	return true
}

// Flatten returns the values of every node below t in depth-first order.
func (t Tree[T]) Flatten() []T {
	var out []T
	t.Walk(func(_ int, v T) bool {
		out = append(out, v)
		return true
	})
	return out
}

type treeShaped interface {
	treeShape()
}

var treeShapedType = reflect.TypeOf((*treeShaped)(nil)).Elem()
