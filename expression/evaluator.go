package expression

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// ResultPrecision is the number of decimals a numeric result is rounded to,
// so 150 * 1.1 yields 165 rather than 165.00000000000003.
const ResultPrecision = 10

// Context maps variable names to values. Accepted value types are the ones
// FromGo understands. Evaluate never modifies it.
type Context map[string]any

// Evaluate computes node against ctx. && and || short-circuit, so a
// variable on the skipped side is never looked up.
func Evaluate(node Node, ctx Context) (Value, error) {
	if node == nil {
		return nil, evalErrorf(TypeError, 0, "nil expression")
	}
	if d := Depth(node); d > MaxDepth {
		return nil, evalErrorf(DepthExceeded, node.Pos(), "expression depth %d exceeds %d", d, MaxDepth)
	}
	v, err := eval(node, ctx)
	if err != nil {
		return nil, err
	}
	if n, ok := v.(Number); ok {
		return Number(Normalize(float64(n))), nil
	}
	return v, nil
}

// EvaluateSource parses and evaluates in one step.
func EvaluateSource(source string, ctx Context) (Value, error) {
	n, err := Parse(source)
	if err != nil {
		return nil, err
	}
	return Evaluate(n, ctx)
}

// Normalize rounds f to ResultPrecision decimals.
func Normalize(f float64) float64 {
	out, _ := decimal.NewFromFloat(f).Round(ResultPrecision).Float64()
	return out
}

func eval(n Node, ctx Context) (Value, error) {
	switch n := n.(type) {
	case *NumberLit:
		return Number(n.Value), nil
	case *StringLit:
		return String(n.Value), nil
	case *BoolLit:
		return Bool(n.Value), nil
	case *Ident:
		return lookup(n, ctx)
	case *Unary:
		return evalUnary(n, ctx)
	case *Binary:
		return evalBinary(n, ctx)
	case *Call:
		return evalCall(n, ctx)
	default:
		return nil, evalErrorf(TypeError, 0, "unsupported node %T", n)
	}
}

func lookup(n *Ident, ctx Context) (Value, error) {
	raw, ok := ctx[n.Name]
	if !ok {
		return nil, &EvalError{Kind: UnknownVariable, Name: n.Name, Offset: n.Offset,
			Message: fmt.Sprintf("unknown variable '%s'", n.Name)}
	}
	v, err := FromGo(raw)
	if err != nil {
		return nil, &EvalError{Kind: TypeError, Name: n.Name, Offset: n.Offset,
			Message: fmt.Sprintf("variable '%s': %v", n.Name, err)}
	}
	return v, nil
}

func evalUnary(n *Unary, ctx Context) (Value, error) {
	x, err := eval(n.X, ctx)
	if err != nil {
		return nil, err
	}
	switch n.Op {
	case OpNeg:
		if v, ok := x.(Number); ok {
			return -v, nil
		}
	case OpNot:
		if v, ok := x.(Bool); ok {
			return !v, nil
		}
	}
	return nil, evalErrorf(TypeError, n.Offset, "operator %s cannot be applied to %s", n.Op, x.Kind())
}

func evalBinary(n *Binary, ctx Context) (Value, error) {
	left, err := eval(n.Left, ctx)
	if err != nil {
		return nil, err
	}
	if n.Op == OpAnd || n.Op == OpOr {
		lb, ok := left.(Bool)
		if !ok {
			return nil, evalErrorf(TypeError, n.Offset, "operator %s requires boolean operands, got %s", n.Op, left.Kind())
		}
		if (n.Op == OpAnd && !bool(lb)) || (n.Op == OpOr && bool(lb)) {
			return lb, nil
		}
		right, err := eval(n.Right, ctx)
		if err != nil {
			return nil, err
		}
		rb, ok := right.(Bool)
		if !ok {
			return nil, evalErrorf(TypeError, n.Offset, "operator %s requires boolean operands, got %s", n.Op, right.Kind())
		}
		return rb, nil
	}

	right, err := eval(n.Right, ctx)
	if err != nil {
		return nil, err
	}
	switch n.Op {
	case OpEq:
		return Bool(Equal(left, right)), nil
	case OpNe:
		return Bool(!Equal(left, right)), nil
	case OpLt, OpLe, OpGt, OpGe:
		return compare(n, left, right)
	}

	if n.Op == OpAdd {
		if ls, ok := left.(String); ok {
			if rs, ok := right.(String); ok {
				return ls + rs, nil
			}
		}
	}
	ln, lok := left.(Number)
	rn, rok := right.(Number)
	if !lok || !rok {
		return nil, evalErrorf(TypeError, n.Offset, "operator %s cannot be applied to %s and %s", n.Op, left.Kind(), right.Kind())
	}
	var out float64
	switch n.Op {
	case OpAdd:
		out = float64(ln + rn)
	case OpSub:
		out = float64(ln - rn)
	case OpMul:
		out = float64(ln * rn)
	case OpDiv:
		if rn == 0 {
			return nil, evalErrorf(ArithmeticError, n.Offset, "division by zero")
		}
		out = float64(ln / rn)
	case OpMod:
		if rn == 0 {
			return nil, evalErrorf(ArithmeticError, n.Offset, "modulo by zero")
		}
		out = math.Mod(float64(ln), float64(rn))
	default:
		return nil, evalErrorf(TypeError, n.Offset, "unsupported operator %s", n.Op)
	}
	if math.IsInf(out, 0) || math.IsNaN(out) {
		return nil, evalErrorf(ArithmeticError, n.Offset, "result of %s is not finite", n.Op)
	}
	return Number(out), nil
}

func compare(n *Binary, left, right Value) (Value, error) {
	switch l := left.(type) {
	case Number:
		if r, ok := right.(Number); ok {
			return Bool(holds(n.Op, cmpOrdered(l, r))), nil
		}
	case String:
		if r, ok := right.(String); ok {
			return Bool(holds(n.Op, cmpOrdered(l, r))), nil
		}
	}
	return nil, evalErrorf(TypeError, n.Offset, "operator %s cannot compare %s and %s", n.Op, left.Kind(), right.Kind())
}

func cmpOrdered[T Number | String](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func holds(op Op, c int) bool {
	switch op {
	case OpLt:
		return c < 0
	case OpLe:
		return c <= 0
	case OpGt:
		return c > 0
	case OpGe:
		return c >= 0
	}
	return false
}

func evalCall(n *Call, ctx Context) (Value, error) {
	fn := n.Func
	if !fn.Valid() {
		fn, _ = LookupBuiltin(n.Name)
	}
	if !fn.Valid() {
		return nil, &EvalError{Kind: UnknownFunction, Name: n.Name, Offset: n.Offset,
			Message: fmt.Sprintf("unknown function '%s'", n.Name)}
	}
	args := make([]Value, len(n.Args))
	for i, a := range n.Args {
		v, err := eval(a, ctx)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	v, err := fn.Apply(args)
	if err != nil {
		if ee, ok := err.(*EvalError); ok {
			ee.Offset = n.Offset
		}
		return nil, err
	}
	return v, nil
}
