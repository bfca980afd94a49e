package expression

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/shopspring/decimal"
)

// Builtin identifies a registry function. The set is closed; there is no
// way to register functions at runtime.
type Builtin uint8

const (
	BuiltinUnknown Builtin = iota
	BuiltinMarkup
	BuiltinDiscount
	BuiltinRatio
	BuiltinClamp
	BuiltinMin
	BuiltinMax
	BuiltinAbs
	BuiltinRound
	BuiltinFloor
	BuiltinCeil
	builtinCount
)

// MaxRoundPlaces is the largest precision accepted by round.
const MaxRoundPlaces = 10

type Param struct {
	Name string
	Kind Kind
}

// Signature describes a builtin for documentation and static checking.
type Signature struct {
	Name        string
	Params      []Param
	Returns     Kind
	Description string
	Example     string
}

func (s Signature) String() string {
	params := make([]string, len(s.Params))
	for i, p := range s.Params {
		params[i] = p.Name + ": " + p.Kind.String()
	}
	return fmt.Sprintf("%s(%s) -> %s", s.Name, strings.Join(params, ", "), s.Returns)
}

func num(name string) Param { return Param{Name: name, Kind: KindNumber} }

var signatures = [builtinCount]Signature{
	BuiltinMarkup: {
		Name: "markup", Params: []Param{num("value"), num("rate")}, Returns: KindNumber,
		Description: "Increases value by rate: value * (1 + rate).",
		Example:     "markup(100, 0.2) = 120",
	},
	BuiltinDiscount: {
		Name: "discount", Params: []Param{num("value"), num("rate")}, Returns: KindNumber,
		Description: "Reduces value by rate: value * (1 - rate).",
		Example:     "discount(100, 0.1) = 90",
	},
	BuiltinRatio: {
		Name: "ratio", Params: []Param{num("value"), num("rate")}, Returns: KindNumber,
		Description: "Applies rate as a proportion of value: value * rate.",
		Example:     "ratio(200, 0.05) = 10",
	},
	BuiltinClamp: {
		Name: "clamp", Params: []Param{num("value"), num("min"), num("max")}, Returns: KindNumber,
		Description: "Limits value to the closed range [min, max]. Fails when min > max.",
		Example:     "clamp(150, 0, 100) = 100",
	},
	BuiltinMin: {
		Name: "min", Params: []Param{num("a"), num("b")}, Returns: KindNumber,
		Description: "Returns the smaller of a and b.",
		Example:     "min(3, 7) = 3",
	},
	BuiltinMax: {
		Name: "max", Params: []Param{num("a"), num("b")}, Returns: KindNumber,
		Description: "Returns the larger of a and b.",
		Example:     "max(3, 7) = 7",
	},
	BuiltinAbs: {
		Name: "abs", Params: []Param{num("x")}, Returns: KindNumber,
		Description: "Returns the absolute value of x.",
		Example:     "abs(-4.5) = 4.5",
	},
	BuiltinRound: {
		Name: "round", Params: []Param{num("x"), num("places")}, Returns: KindNumber,
		Description: "Rounds x half away from zero to places decimals (integer 0..10).",
		Example:     "round(2.345, 2) = 2.35",
	},
	BuiltinFloor: {
		Name: "floor", Params: []Param{num("x")}, Returns: KindNumber,
		Description: "Rounds x down to the nearest integer.",
		Example:     "floor(2.7) = 2",
	},
	BuiltinCeil: {
		Name: "ceil", Params: []Param{num("x")}, Returns: KindNumber,
		Description: "Rounds x up to the nearest integer.",
		Example:     "ceil(2.1) = 3",
	},
}

var builtinsByName = func() map[string]Builtin {
	m := make(map[string]Builtin, builtinCount)
	for b := BuiltinUnknown + 1; b < builtinCount; b++ {
		m[signatures[b].Name] = b
	}
	return m
}()

// LookupBuiltin resolves a function name.
func LookupBuiltin(name string) (Builtin, bool) {
	b, ok := builtinsByName[name]
	return b, ok
}

// Builtins returns every registry function in declaration order.
func Builtins() []Builtin {
	out := make([]Builtin, 0, builtinCount-1)
	for b := BuiltinUnknown + 1; b < builtinCount; b++ {
		out = append(out, b)
	}
	return out
}

func (b Builtin) Valid() bool { return b > BuiltinUnknown && b < builtinCount }

func (b Builtin) String() string {
	if !b.Valid() {
		return "unknown"
	}
	return signatures[b].Name
}

// Signature returns a copy of b's signature.
func (b Builtin) Signature() Signature {
	if !b.Valid() {
		return Signature{}
	}
	s := signatures[b]
	s.Params = slices.Clone(s.Params)
	return s
}

// Apply runs b on already evaluated arguments. Arity and argument kinds are
// checked here so Apply is safe to call on unvalidated input.
func (b Builtin) Apply(args []Value) (Value, error) {
	if !b.Valid() {
		return nil, &EvalError{Kind: UnknownFunction, Message: "unknown function"}
	}
	sig := &signatures[b]
	if len(args) != len(sig.Params) {
		return nil, &EvalError{Kind: ArgumentError, Name: sig.Name,
			Message: fmt.Sprintf("%s expects %d argument(s), got %d", sig.Name, len(sig.Params), len(args))}
	}
	x := make([]float64, len(args))
	for i, a := range args {
		n, ok := a.(Number)
		if !ok {
			got := "null"
			if a != nil {
				got = a.Kind().String()
			}
			return nil, &EvalError{Kind: ArgumentError, Name: sig.Name,
				Message: fmt.Sprintf("argument %d (%s) of %s must be number, got %s", i+1, sig.Params[i].Name, sig.Name, got)}
		}
		x[i] = float64(n)
	}

	var out float64
	switch b {
	case BuiltinMarkup:
		out = x[0] * (1 + x[1])
	case BuiltinDiscount:
		out = x[0] * (1 - x[1])
	case BuiltinRatio:
		out = x[0] * x[1]
	case BuiltinClamp:
		if x[1] > x[2] {
			return nil, &EvalError{Kind: ArgumentError, Name: sig.Name,
				Message: fmt.Sprintf("clamp: min %v is greater than max %v", x[1], x[2])}
		}
		out = math.Min(math.Max(x[0], x[1]), x[2])
	case BuiltinMin:
		out = math.Min(x[0], x[1])
	case BuiltinMax:
		out = math.Max(x[0], x[1])
	case BuiltinAbs:
		out = math.Abs(x[0])
	case BuiltinRound:
		places := x[1]
		if places != math.Trunc(places) || places < 0 || places > MaxRoundPlaces {
			return nil, &EvalError{Kind: ArgumentError, Name: sig.Name,
				Message: fmt.Sprintf("round: places must be an integer between 0 and %d, got %v", MaxRoundPlaces, places)}
		}
		out = roundHalfAway(x[0], int32(places))
	case BuiltinFloor:
		out = math.Floor(x[0])
	case BuiltinCeil:
		out = math.Ceil(x[0])
	}
	if math.IsNaN(out) || math.IsInf(out, 0) {
		return nil, &EvalError{Kind: ArithmeticError, Name: sig.Name, Message: sig.Name + ": result is not finite"}
	}
	return Number(out), nil
}

func roundHalfAway(x float64, places int32) float64 {
	f, _ := decimal.NewFromFloat(x).Round(places).Float64()
	return f
}
