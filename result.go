package cosmosgremlin

// Result is a fully materialized, ordered query result. Items appear in the
// order the database returned them.
type Result[T any] []T

// First returns the first item or ErrEmptyResult.
func (r Result[T]) First() (T, error) { return pick([]T(r), firstPolicy) }

// FirstOrDefault returns the first item, or the zero value when r is empty.
func (r Result[T]) FirstOrDefault() T {
	v, _ := pick([]T(r), firstOrDefaultPolicy)
	return v
}

// Single returns the only item, or a *CardinalityError when r does not hold
// exactly one.
func (r Result[T]) Single() (T, error) { return pick([]T(r), singlePolicy) }

// SingleOrDefault returns the only item, the zero value when r is empty, or a
// *CardinalityError when r holds more than one.
func (r Result[T]) SingleOrDefault() (T, error) { return pick([]T(r), singleOrDefaultPolicy) }

type onEmpty int

const (
	emptyIsError onEmpty = iota
	emptyIsCardinalityError
	emptyIsZero
)

type onMany int

const (
	manyTakesFirst onMany = iota
	manyIsCardinalityError
)

type cardinality struct {
	empty onEmpty
	many  onMany
}

var (
	firstPolicy           = cardinality{empty: emptyIsError, many: manyTakesFirst}
	firstOrDefaultPolicy  = cardinality{empty: emptyIsZero, many: manyTakesFirst}
	singlePolicy          = cardinality{empty: emptyIsCardinalityError, many: manyIsCardinalityError}
	singleOrDefaultPolicy = cardinality{empty: emptyIsZero, many: manyIsCardinalityError}
)

// pick applies a cardinality policy to items.
func pick[T any](items []T, policy cardinality) (T, error) {
	var zero T
	switch {
	case len(items) == 0:
		switch policy.empty {
		case emptyIsZero:
			return zero, nil
		case emptyIsCardinalityError:
			return zero, &CardinalityError{Count: 0}
		default:
			return zero, ErrEmptyResult
		}
	case len(items) > 1 && policy.many == manyIsCardinalityError:
		return zero, &CardinalityError{Count: len(items)}
	}
	return items[0], nil
}
