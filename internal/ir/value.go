package ir

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"slices"
	"unicode/utf16"
)

// IRValue is a sealed interface over the values an event may carry.
// Only IRNull, IRString, IRInt, IRFloat, IRBool, IRArray and IRObject
// implement it.
type IRValue interface {
	irValue()
}

// IRNull is an explicit null. It may appear after decoding foreign JSON but
// is rejected by MarshalCanonical.
type IRNull struct{}

func (IRNull) irValue() {}

// MarshalJSON implements json.Marshaler for IRNull.
func (IRNull) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// IRString is a string value.
type IRString string

func (IRString) irValue() {}

// IRInt is an integer value. Always int64, never float64.
type IRInt int64

func (IRInt) irValue() {}

// IRFloat is a finite floating-point value. Canonical JSON writes it in
// its shortest round-trip form, so an integral IRFloat reads back as IRInt.
type IRFloat float64

func (IRFloat) irValue() {}

// IRBool is a boolean value.
type IRBool bool

func (IRBool) irValue() {}

// IRArray is an ordered list of values. Used for positional event arguments.
type IRArray []IRValue

func (IRArray) irValue() {}

// IRObject maps string keys to values. Used for keyword event arguments.
// Use SortedKeys() for deterministic iteration.
type IRObject map[string]IRValue

func (IRObject) irValue() {}

// FromGo converts a plain Go value into an IRValue.
//
// Accepted inputs are IRValue, string, bool, any integer kind that fits in
// int64, finite floats, slices and string-keyed maps of those, and nil
// (IRNull). NaN and infinities are rejected.
func FromGo(v any) (IRValue, error) {
	switch val := v.(type) {
	case nil:
		return IRNull{}, nil
	case IRValue:
		return val, nil
	case string:
		return IRString(val), nil
	case bool:
		return IRBool(val), nil
	case []any:
		return arrayFrom(len(val), func(i int) any { return val[i] })
	case map[string]any:
		return objectFrom(val)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return IRInt(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		if rv.Uint() > math.MaxInt64 {
			return nil, fmt.Errorf("integer %d overflows int64", rv.Uint())
		}
		return IRInt(rv.Uint()), nil
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("non-finite float in event value: %v", f)
		}
		return IRFloat(f), nil
	case reflect.String:
		return IRString(rv.String()), nil
	case reflect.Bool:
		return IRBool(rv.Bool()), nil
	case reflect.Slice, reflect.Array:
		return arrayFrom(rv.Len(), func(i int) any { return rv.Index(i).Interface() })
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, fmt.Errorf("map keys must be strings, got %s", rv.Type().Key())
		}
		m := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			m[iter.Key().String()] = iter.Value().Interface()
		}
		return objectFrom(m)
	}
	return nil, fmt.Errorf("unsupported type: %T", v)
}

func arrayFrom(n int, at func(int) any) (IRArray, error) {
	arr := make(IRArray, n)
	for i := range arr {
		elem, err := FromGo(at(i))
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		arr[i] = elem
	}
	return arr, nil
}

func objectFrom(m map[string]any) (IRObject, error) {
	obj := make(IRObject, len(m))
	for k, elem := range m {
		v, err := FromGo(elem)
		if err != nil {
			return nil, fmt.Errorf("[%q]: %w", k, err)
		}
		obj[k] = v
	}
	return obj, nil
}

// String returns the i-th element as a string.
func (arr IRArray) String(i int) (string, bool) {
	if i < 0 || i >= len(arr) {
		return "", false
	}
	s, ok := arr[i].(IRString)
	return string(s), ok
}

// Int returns the i-th element as an int64.
func (arr IRArray) Int(i int) (int64, bool) {
	if i < 0 || i >= len(arr) {
		return 0, false
	}
	n, ok := arr[i].(IRInt)
	return int64(n), ok
}

// Float returns the i-th element as a float64. Integers convert.
func (arr IRArray) Float(i int) (float64, bool) {
	if i < 0 || i >= len(arr) {
		return 0, false
	}
	return numberOf(arr[i])
}

// String returns the value under key as a string.
func (obj IRObject) String(key string) (string, bool) {
	s, ok := obj[key].(IRString)
	return string(s), ok
}

// Int returns the value under key as an int64.
func (obj IRObject) Int(key string) (int64, bool) {
	n, ok := obj[key].(IRInt)
	return int64(n), ok
}

// Float returns the value under key as a float64. Integers convert.
func (obj IRObject) Float(key string) (float64, bool) {
	return numberOf(obj[key])
}

func numberOf(v IRValue) (float64, bool) {
	switch n := v.(type) {
	case IRInt:
		return float64(n), true
	case IRFloat:
		return float64(n), true
	}
	return 0, false
}

// ErrNull is returned for a null anywhere inside an event value.
var ErrNull = errors.New("null is not allowed in event values")

// RejectNull returns ErrNull, naming the offending element, when v is or
// contains a null.
func RejectNull(v IRValue) error {
	return rejectNull(v, "")
}

func rejectNull(v IRValue, path string) error {
	switch val := v.(type) {
	case nil, IRNull:
		if path == "" {
			return ErrNull
		}
		return fmt.Errorf("%s: %w", path, ErrNull)
	case IRArray:
		for i, elem := range val {
			if err := rejectNull(elem, fmt.Sprintf("%s[%d]", path, i)); err != nil {
				return err
			}
		}
	case IRObject:
		for _, k := range val.SortedKeys() {
			if err := rejectNull(val[k], fmt.Sprintf("%s[%q]", path, k)); err != nil {
				return err
			}
		}
	}
	return nil
}

// SortedKeys returns keys in RFC 8785 canonical order (UTF-16 code units).
func (obj IRObject) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

// compareKeysRFC8785 compares strings by UTF-16 code units. Go's native
// string comparison works on UTF-8 bytes and orders supplementary-plane
// characters differently.
func compareKeysRFC8785(a, b string) int {
	return slices.Compare(utf16.Encode([]rune(a)), utf16.Encode([]rune(b)))
}

// UnmarshalJSON implements json.Unmarshaler for IRObject.
func (obj *IRObject) UnmarshalJSON(data []byte) error {
	v, err := UnmarshalIRValue(data)
	if err != nil {
		return err
	}
	o, ok := v.(IRObject)
	if !ok {
		return fmt.Errorf("expected a JSON object, got %T", v)
	}
	*obj = o
	return nil
}

// UnmarshalJSON implements json.Unmarshaler for IRArray.
func (arr *IRArray) UnmarshalJSON(data []byte) error {
	v, err := UnmarshalIRValue(data)
	if err != nil {
		return err
	}
	a, ok := v.(IRArray)
	if !ok {
		return fmt.Errorf("expected a JSON array, got %T", v)
	}
	*arr = a
	return nil
}

// UnmarshalIRValue decodes one JSON value. Numbers are read as json.Number
// so integers beyond 2^53 keep every digit; anything with a fraction or
// exponent that is not an exact int64 becomes IRFloat.
func UnmarshalIRValue(data []byte) (IRValue, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("trailing data after JSON value")
	}
	return fromDecoded(raw)
}

// fromDecoded converts the output of a UseNumber decoder.
func fromDecoded(raw any) (IRValue, error) {
	switch val := raw.(type) {
	case nil:
		return IRNull{}, nil
	case string:
		return IRString(val), nil
	case bool:
		return IRBool(val), nil
	case json.Number:
		if n, err := val.Int64(); err == nil {
			return IRInt(n), nil
		}
		f, err := val.Float64()
		if err != nil {
			return nil, fmt.Errorf("number %s: %w", val, err)
		}
		return IRFloat(f), nil
	case []any:
		arr := make(IRArray, len(val))
		for i, elem := range val {
			v, err := fromDecoded(elem)
			if err != nil {
				return nil, fmt.Errorf("IRArray index %d: %w", i, err)
			}
			arr[i] = v
		}
		return arr, nil
	case map[string]any:
		obj := make(IRObject, len(val))
		for k, elem := range val {
			v, err := fromDecoded(elem)
			if err != nil {
				return nil, fmt.Errorf("IRObject key %q: %w", k, err)
			}
			obj[k] = v
		}
		return obj, nil
	}
	return nil, fmt.Errorf("unexpected JSON value %T", raw)
}

// MarshalJSON implements json.Marshaler for IRObject with sorted keys.
func (obj IRObject) MarshalJSON() ([]byte, error) {
	return MarshalCanonical(obj)
}

// MarshalJSON implements json.Marshaler for IRArray.
func (arr IRArray) MarshalJSON() ([]byte, error) {
	return MarshalCanonical(arr)
}
