package expression

import (
	"encoding/json"
	"math"
	"strconv"

	"github.com/cockroachdb/errors"
)

// Kind is the runtime type of a Value.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindNumber
	KindString
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindBool:
		return "boolean"
	default:
		return "invalid"
	}
}

// ParseKind maps "number", "string" and "boolean" to their Kind.
func ParseKind(s string) (Kind, bool) {
	switch s {
	case "number":
		return KindNumber, true
	case "string":
		return KindString, true
	case "boolean", "bool":
		return KindBool, true
	}
	return KindInvalid, false
}

// Value is a runtime value. Implementations are Number, String and Bool.
type Value interface {
	Kind() Kind
	// Interface returns the value as float64, string or bool.
	Interface() any
	String() string
	value()
}

type Number float64

type String string

type Bool bool

func (Number) Kind() Kind { return KindNumber }
func (String) Kind() Kind { return KindString }
func (Bool) Kind() Kind   { return KindBool }

func (n Number) Interface() any { return float64(n) }
func (s String) Interface() any { return string(s) }
func (b Bool) Interface() any   { return bool(b) }

func (n Number) String() string { return strconv.FormatFloat(float64(n), 'f', -1, 64) }
func (s String) String() string { return string(s) }
func (b Bool) String() string   { return strconv.FormatBool(bool(b)) }

func (Number) value() {}
func (String) value() {}
func (Bool) value()   {}

// Equal reports whether a and b have the same kind and value.
// Values of different kinds are never equal.
func Equal(a, b Value) bool {
	if a == nil || b == nil || a.Kind() != b.Kind() {
		return false
	}
	switch a := a.(type) {
	case Number:
		return a == b.(Number)
	case String:
		return a == b.(String)
	case Bool:
		return a == b.(Bool)
	}
	return false
}

// FromGo converts a Go value taken from an evaluation context.
// Integers and floats become Number; non-finite numbers are rejected.
func FromGo(v any) (Value, error) {
	switch v := v.(type) {
	case Value:
		return v, nil
	case float64:
		return finite(v)
	case float32:
		return finite(float64(v))
	case int:
		return Number(v), nil
	case int8:
		return Number(v), nil
	case int16:
		return Number(v), nil
	case int32:
		return Number(v), nil
	case int64:
		return Number(v), nil
	case uint:
		return Number(v), nil
	case uint8:
		return Number(v), nil
	case uint16:
		return Number(v), nil
	case uint32:
		return Number(v), nil
	case uint64:
		return Number(v), nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return nil, errors.Newf("invalid number %q", v.String())
		}
		return finite(f)
	case string:
		return String(v), nil
	case bool:
		return Bool(v), nil
	case nil:
		return nil, errors.Newf("null is not a supported value")
	default:
		return nil, errors.Newf("unsupported value of type %T", v)
	}
}

func finite(f float64) (Value, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, errors.Newf("number %v is not finite", f)
	}
	return Number(f), nil
}
