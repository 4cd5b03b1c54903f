package core

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind identifies the type carried by a Value.
type Kind int

// Value kinds.
const (
	KindMissing Kind = iota
	KindString
	KindInt
	KindFloat
	KindBool
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindMissing:
		return "missing"
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	default:
		return "unknown"
	}
}

// Value is a single cell of a record: a categorical string, an integer,
// a decimal, a boolean, or missing.
type Value struct {
	kind Kind
	str  string
	num  float64
	b    bool
}

// Missing returns the missing value.
func Missing() Value { return Value{} }

// String returns a categorical value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Int returns an integer value.
func Int(i int64) Value { return Value{kind: KindInt, num: float64(i)} }

// Float returns a decimal value. NaN is treated as missing.
func Float(f float64) Value {
	if math.IsNaN(f) {
		return Missing()
	}
	return Value{kind: KindFloat, num: f}
}

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Kind returns the kind of the value.
func (v Value) Kind() Kind { return v.kind }

// IsMissing reports whether the value is missing.
func (v Value) IsMissing() bool { return v.kind == KindMissing }

// IsNumeric reports whether the value is an integer or a decimal.
func (v Value) IsNumeric() bool { return v.kind == KindInt || v.kind == KindFloat }

// Number returns the numeric payload of Int and Float values.
func (v Value) Number() (float64, bool) {
	if !v.IsNumeric() {
		return 0, false
	}
	return v.num, true
}

// Truth returns the payload of a Bool value.
func (v Value) Truth() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.b, true
}

// ToFloat coerces the value to a float. Strings are parsed after trimming,
// booleans become 0 or 1. It reports false for missing and unparsable values.
func (v Value) ToFloat() (float64, bool) {
	switch v.kind {
	case KindInt, KindFloat:
		return v.num, true
	case KindBool:
		if v.b {
			return 1, true
		}
		return 0, true
	case KindString:
		return ParseNumber(v.str)
	default:
		return 0, false
	}
}

// String returns the categorical form of the value. Missing values are empty.
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindInt:
		return strconv.FormatInt(int64(v.num), 10)
	case KindFloat:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindBool:
		if v.b {
			return "True"
		}
		return "False"
	default:
		return ""
	}
}

// Equal reports whether two values have the same kind and payload.
func (v Value) Equal(o Value) bool {
	return v == o
}

// ParseNumber parses a trimmed decimal string. Empty, non-finite and
// malformed input is rejected.
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// ValueOf converts a decoded Go value (for example from JSON) into a Value.
// Nested values such as maps and slices are rejected with ErrInvalidInput.
func ValueOf(x any) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Missing(), nil
	case Value:
		return t, nil
	case string:
		return String(t), nil
	case bool:
		return Bool(t), nil
	case int:
		return Int(int64(t)), nil
	case int8:
		return Int(int64(t)), nil
	case int16:
		return Int(int64(t)), nil
	case int32:
		return Int(int64(t)), nil
	case int64:
		return Int(t), nil
	case uint:
		return Int(int64(t)), nil
	case uint8:
		return Int(int64(t)), nil
	case uint16:
		return Int(int64(t)), nil
	case uint32:
		return Int(int64(t)), nil
	case uint64:
		if t > math.MaxInt64 {
			return Float(float64(t)), nil
		}
		return Int(int64(t)), nil
	case float32:
		return Float(float64(t)), nil
	case float64:
		return Float(t), nil
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return Int(i), nil
		}
		if f, err := t.Float64(); err == nil {
			return Float(f), nil
		}
		return String(t.String()), nil
	default:
		return Missing(), fmt.Errorf("%w: unsupported value type %T", ErrInvalidInput, x)
	}
}
