package cosmosgremlin

import (
	"encoding"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"time"

	"github.com/saulfrancisco-ruizacevedo/go-cosmosgremlin/wire"
)

// ConvertFunc decodes a raw scalar into a value of a registered target type.
type ConvertFunc func(raw any) (any, error)

// ConversionPolicy decides how raw scalars become typed field values.
//
// The default policy parses ISO-8601 / RFC 3339 timestamps and normalizes them
// to UTC, parses numbers without locale rules, and falls back to
// encoding.TextUnmarshaler for types such as uuid.UUID. Register custom
// converters before the policy is shared between goroutines.
type ConversionPolicy struct {
	// TimeLayouts are tried in order when a string is decoded into time.Time.
	TimeLayouts []string
	// Location is applied to every decoded time.Time.
	Location *time.Location

	converters map[reflect.Type]ConvertFunc
}

// DefaultConversionPolicy returns the UTC / ISO-8601 / invariant-number policy.
func DefaultConversionPolicy() *ConversionPolicy {
	return &ConversionPolicy{
		TimeLayouts: []string{
			time.RFC3339Nano,
			"2006-01-02T15:04:05.999999999",
			"2006-01-02 15:04:05",
			"2006-01-02",
		},
		Location:   time.UTC,
		converters: make(map[reflect.Type]ConvertFunc),
	}
}

// RegisterConverter installs fn for every target of type T, taking precedence
// over the built-in rules.
func RegisterConverter[T any](p *ConversionPolicy, fn func(raw any) (T, error)) {
	if p.converters == nil {
		p.converters = make(map[reflect.Type]ConvertFunc)
	}
	p.converters[reflect.TypeOf((*T)(nil)).Elem()] = func(raw any) (any, error) {
		return fn(raw)
	}
}

var (
	timeType            = reflect.TypeOf(time.Time{})
	textUnmarshalerType = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()
)

// handles reports whether t is decoded from a scalar even though it is a
// struct (time.Time, TextUnmarshalers, registered types).
func (p *ConversionPolicy) handles(t reflect.Type) bool {
	if _, ok := p.converters[t]; ok {
		return true
	}
	return t == timeType || reflect.PointerTo(t).Implements(textUnmarshalerType)
}

// convert decodes raw into a new value of type t.
func (p *ConversionPolicy) convert(raw any, t reflect.Type, path string) (reflect.Value, error) {
	fail := func(err error) (reflect.Value, error) {
		return reflect.Value{}, &wire.DecodeError{
			Path:     path,
			Expected: t.String(),
			Actual:   wire.Describe(raw),
			Raw:      raw,
			Err:      err,
		}
	}

	if fn, ok := p.converters[t]; ok {
		v, err := fn(raw)
		if err != nil {
			return fail(err)
		}
		if v == nil {
			return reflect.Zero(t), nil
		}
		return reflect.ValueOf(v), nil
	}
	if raw == nil {
		return reflect.Zero(t), nil
	}
	if t == timeType {
		ts, err := p.toTime(raw)
		if err != nil {
			return fail(err)
		}
		return reflect.ValueOf(ts), nil
	}
	if s, ok := raw.(string); ok && reflect.PointerTo(t).Implements(textUnmarshalerType) {
		out := reflect.New(t)
		if err := out.Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(s)); err != nil {
			return fail(err)
		}
		return out.Elem(), nil
	}

	out := reflect.New(t).Elem()
	switch t.Kind() {
	case reflect.Interface:
		rv := reflect.ValueOf(raw)
		if !rv.Type().AssignableTo(t) {
			return fail(nil)
		}
		out.Set(rv)
	case reflect.String:
		s, err := toString(raw)
		if err != nil {
			return fail(err)
		}
		out.SetString(s)
	case reflect.Bool:
		b, err := toBool(raw)
		if err != nil {
			return fail(err)
		}
		out.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := toInt(raw)
		if err != nil {
			return fail(err)
		}
		if out.OverflowInt(n) {
			return fail(fmt.Errorf("%d overflows %s", n, t))
		}
		out.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := toUint(raw)
		if err != nil {
			return fail(err)
		}
		if out.OverflowUint(n) {
			return fail(fmt.Errorf("%d overflows %s", n, t))
		}
		out.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, err := toFloat(raw)
		if err != nil {
			return fail(err)
		}
		if out.OverflowFloat(f) {
			return fail(fmt.Errorf("%g overflows %s", f, t))
		}
		out.SetFloat(f)
	default:
		rv := reflect.ValueOf(raw)
		if !rv.Type().AssignableTo(t) {
			return fail(nil)
		}
		out.Set(rv)
	}
	return out, nil
}

func (p *ConversionPolicy) toTime(raw any) (time.Time, error) {
	loc := p.Location
	if loc == nil {
		loc = time.UTC
	}
	switch v := raw.(type) {
	case time.Time:
		return v.In(loc), nil
	case string:
		var lastErr error
		for _, layout := range p.TimeLayouts {
			ts, err := time.ParseInLocation(layout, v, time.UTC)
			if err == nil {
				return ts.In(loc), nil
			}
			lastErr = err
		}
		if lastErr == nil {
			lastErr = fmt.Errorf("no time layouts configured")
		}
		return time.Time{}, lastErr
	}
	return time.Time{}, fmt.Errorf("cannot decode %T as time", raw)
}

func toString(raw any) (string, error) {
	switch v := raw.(type) {
	case string:
		return v, nil
	case json.Number:
		return v.String(), nil
	case bool:
		return strconv.FormatBool(v), nil
	case time.Time:
		return v.UTC().Format(time.RFC3339Nano), nil
	case fmt.Stringer:
		return v.String(), nil
	}
	rv := reflect.ValueOf(raw)
	switch rv.Kind() {
	case reflect.String:
		return rv.String(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10), nil
	case reflect.Float32, reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'g', -1, 64), nil
	}
	return "", fmt.Errorf("cannot decode %T as string", raw)
}

func toBool(raw any) (bool, error) {
	switch v := raw.(type) {
	case bool:
		return v, nil
	case string:
		return strconv.ParseBool(v)
	}
	return false, fmt.Errorf("cannot decode %T as bool", raw)
}

func toInt(raw any) (int64, error) {
	switch v := raw.(type) {
	case json.Number:
		return parseInt(v.String())
	case string:
		return parseInt(v)
	}
	rv := reflect.ValueOf(raw)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return 0, fmt.Errorf("%d overflows int64", u)
		}
		return int64(u), nil
	case reflect.Float32, reflect.Float64:
		return integral(rv.Float())
	}
	return 0, fmt.Errorf("cannot decode %T as integer", raw)
}

func toUint(raw any) (uint64, error) {
	switch v := raw.(type) {
	case json.Number:
		return parseUint(v.String())
	case string:
		return parseUint(v)
	}
	rv := reflect.ValueOf(raw)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if n := rv.Int(); n < 0 {
			return 0, fmt.Errorf("%d is negative", n)
		}
		return uint64(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint(), nil
	case reflect.Float32, reflect.Float64:
		return integralUint(rv.Float())
	}
	return 0, fmt.Errorf("cannot decode %T as unsigned integer", raw)
}

func parseUint(s string) (uint64, error) {
	if n, err := strconv.ParseUint(s, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	return integralUint(f)
}

func integralUint(f float64) (uint64, error) {
	if f != math.Trunc(f) || f < 0 || f >= float64(math.MaxUint64) {
		return 0, fmt.Errorf("%g is not an unsigned integer", f)
	}
	return uint64(f), nil
}

// parseInt accepts integer literals and integral floats such as "30.0" or
// "1e3", which some services emit for whole numbers.
func parseInt(s string) (int64, error) {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	return integral(f)
}

func integral(f float64) (int64, error) {
	if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, fmt.Errorf("%g is not an integer", f)
	}
	return int64(f), nil
}

func toFloat(raw any) (float64, error) {
	switch v := raw.(type) {
	case json.Number:
		return strconv.ParseFloat(v.String(), 64)
	case string:
		return strconv.ParseFloat(v, 64)
	}
	rv := reflect.ValueOf(raw)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return rv.Float(), nil
	}
	return 0, fmt.Errorf("cannot decode %T as number", raw)
}
