package expression

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

// IssueKind classifies why an expression was rejected. Syntax issues reuse
// the ParseErrorKind names.
type IssueKind string

const (
	IssueEmpty           IssueKind = "Empty"
	IssueUnknownVariable IssueKind = "UnknownVariable"
	IssueUnknownFunction IssueKind = "UnknownFunction"
	IssueArityMismatch   IssueKind = "ArityMismatch"
	IssueTypeMismatch    IssueKind = "TypeMismatch"
	IssueResultType      IssueKind = "ResultType"
)

var emptyContract = MustContract(nil, nil)

// Result is the outcome of a static check.
type Result struct {
	Valid  bool      `json:"valid"`
	Error  string    `json:"error,omitempty"`
	Kind   IssueKind `json:"kind,omitempty"`
	Offset *int      `json:"offset,omitempty"`
}

func invalid(kind IssueKind, offset int, format string, args ...any) Result {
	return Result{Kind: kind, Offset: &offset, Error: fmt.Sprintf(format, args...)}
}

// Validate parses source and checks it against contract without evaluating.
// want is the required result kind; KindInvalid accepts any kind.
// An accepted expression evaluates without UnknownVariable, UnknownFunction
// or TypeError for any context that supplies every contract variable with
// its declared kind.
func Validate(source string, contract *Contract, want Kind) Result {
	if strings.TrimSpace(source) == "" {
		return invalid(IssueEmpty, 0, "expression is empty")
	}
	n, err := Parse(source)
	if err != nil {
		var pe *ParseError
		if errors.As(err, &pe) {
			return invalid(IssueKind(pe.Kind), pe.Offset, "%s", pe.Message)
		}
		return Result{Error: err.Error()}
	}
	return Check(n, contract, want)
}

// Check is Validate for an already parsed expression.
func Check(n Node, contract *Contract, want Kind) Result {
	if n == nil {
		return invalid(IssueEmpty, 0, "expression is empty")
	}
	if contract == nil {
		contract = emptyContract
	}
	if d := Depth(n); d > MaxDepth {
		return invalid(IssueKind(NestingTooDeep), n.Pos(), "%s", treeTooDeep())
	}
	got, res := infer(n, contract)
	if res != nil {
		return *res
	}
	if want != KindInvalid && got != want {
		return invalid(IssueResultType, n.Pos(), "expression must evaluate to %s, got %s", want, got)
	}
	return Result{Valid: true}
}

func infer(n Node, c *Contract) (Kind, *Result) {
	fail := func(kind IssueKind, offset int, format string, args ...any) (Kind, *Result) {
		r := invalid(kind, offset, format, args...)
		return KindInvalid, &r
	}
	switch n := n.(type) {
	case *NumberLit:
		return KindNumber, nil
	case *StringLit:
		return KindString, nil
	case *BoolLit:
		return KindBool, nil
	case *Ident:
		v, ok := c.Variable(n.Name)
		if !ok {
			return fail(IssueUnknownVariable, n.Offset, "unknown variable '%s'", n.Name)
		}
		return v.Kind, nil
	case *Unary:
		x, res := infer(n.X, c)
		if res != nil {
			return KindInvalid, res
		}
		want := KindNumber
		if n.Op == OpNot {
			want = KindBool
		}
		if x != want {
			return fail(IssueTypeMismatch, n.Offset, "operator %s cannot be applied to %s", n.Op, x)
		}
		return want, nil
	case *Binary:
		l, res := infer(n.Left, c)
		if res != nil {
			return KindInvalid, res
		}
		r, res := infer(n.Right, c)
		if res != nil {
			return KindInvalid, res
		}
		switch n.Op {
		case OpAnd, OpOr:
			if l != KindBool || r != KindBool {
				return fail(IssueTypeMismatch, n.Offset, "operator %s requires boolean operands, got %s and %s", n.Op, l, r)
			}
			return KindBool, nil
		case OpEq, OpNe:
			return KindBool, nil
		case OpLt, OpLe, OpGt, OpGe:
			if l != r || l == KindBool {
				return fail(IssueTypeMismatch, n.Offset, "operator %s cannot compare %s and %s", n.Op, l, r)
			}
			return KindBool, nil
		case OpAdd:
			if l == KindString && r == KindString {
				return KindString, nil
			}
		}
		if l != KindNumber || r != KindNumber {
			return fail(IssueTypeMismatch, n.Offset, "operator %s cannot be applied to %s and %s", n.Op, l, r)
		}
		return KindNumber, nil
	case *Call:
		fn := n.Func
		if !fn.Valid() {
			fn, _ = LookupBuiltin(n.Name)
		}
		if !fn.Valid() {
			return fail(IssueUnknownFunction, n.Offset, "unknown function '%s'", n.Name)
		}
		if !c.HasFunction(fn) {
			return fail(IssueUnknownFunction, n.Offset, "function '%s' is not available here", n.Name)
		}
		sig := &signatures[fn]
		if len(n.Args) != len(sig.Params) {
			return fail(IssueArityMismatch, n.Offset, "%s expects %d argument(s), got %d", sig.Name, len(sig.Params), len(n.Args))
		}
		for i, a := range n.Args {
			k, res := infer(a, c)
			if res != nil {
				return KindInvalid, res
			}
			if k != sig.Params[i].Kind {
				return fail(IssueTypeMismatch, a.Pos(), "argument %d (%s) of %s must be %s, got %s", i+1, sig.Params[i].Name, sig.Name, sig.Params[i].Kind, k)
			}
		}
		return sig.Returns, nil
	default:
		return fail(IssueTypeMismatch, 0, "unsupported node %T", n)
	}
}
