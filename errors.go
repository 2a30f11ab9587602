package cosmosgremlin

import (
	"errors"
	"fmt"

	"github.com/saulfrancisco-ruizacevedo/go-cosmosgremlin/wire"
)

// ErrEmptyResult is returned by the First variants when a query yields no
// results.
var ErrEmptyResult = errors.New("query returned no results")

// DecodeError reports a payload that could not be classified or materialized.
type DecodeError = wire.DecodeError

// ArgumentError reports a missing required argument, such as an absent
// traversal or empty query text.
type ArgumentError struct {
	Name string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("argument %q is required", e.Name)
}

// CardinalityError is returned by the Single variants when a query does not
// yield exactly one result.
type CardinalityError struct {
	Count int
}

func (e *CardinalityError) Error() string {
	if e.Count == 0 {
		return "expected exactly 1 result but found none"
	}
	return fmt.Sprintf("expected exactly 1 result but found %d", e.Count)
}

// TransportError wraps a failure reported by the Runner. The original error
// is available through errors.Is and errors.As.
type TransportError struct {
	Query string
	Err   error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("submit query: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
