// Package celbridge translates rule expressions into CEL and evaluates them
// with cel-go. It is used as an independent oracle for the native evaluator
// and by tooling that wants to hand rules to CEL-speaking systems.
package celbridge

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"

	"github.com/scau009/dwlite-sub002/expression"
)

// costLimit caps CEL runtime cost for a single evaluation.
const costLimit = 1000000

var celReserved = map[string]bool{
	"as": true, "break": true, "const": true, "continue": true, "else": true,
	"for": true, "function": true, "if": true, "import": true, "in": true,
	"let": true, "loop": true, "package": true, "namespace": true, "null": true,
	"return": true, "var": true, "void": true, "while": true,
}

// Transpile renders n as a CEL expression. Numbers become doubles and
// the modulo operator becomes a call to fmod, since CEL has no double modulo.
func Transpile(n expression.Node) (string, error) {
	var sb strings.Builder
	if err := write(&sb, n); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// TranspileSource parses and transpiles source.
func TranspileSource(source string) (string, error) {
	n, err := expression.Parse(source)
	if err != nil {
		return "", err
	}
	return Transpile(n)
}

func write(sb *strings.Builder, n expression.Node) error {
	switch n := n.(type) {
	case *expression.NumberLit:
		s := strconv.FormatFloat(n.Value, 'f', -1, 64)
		if !strings.Contains(s, ".") {
			s += ".0"
		}
		sb.WriteString(s)
	case *expression.StringLit:
		sb.WriteString(strconv.Quote(n.Value))
	case *expression.BoolLit:
		sb.WriteString(strconv.FormatBool(n.Value))
	case *expression.Ident:
		if celReserved[n.Name] {
			return fmt.Errorf("identifier %q is reserved in CEL", n.Name)
		}
		sb.WriteString(n.Name)
	case *expression.Unary:
		sb.WriteString(n.Op.String())
		sb.WriteByte('(')
		if err := write(sb, n.X); err != nil {
			return err
		}
		sb.WriteByte(')')
	case *expression.Binary:
		if n.Op == expression.OpMod {
			return writeCall(sb, fmodName, []expression.Node{n.Left, n.Right})
		}
		sb.WriteByte('(')
		if err := write(sb, n.Left); err != nil {
			return err
		}
		sb.WriteString(" " + n.Op.String() + " ")
		if err := write(sb, n.Right); err != nil {
			return err
		}
		sb.WriteByte(')')
	case *expression.Call:
		if _, ok := expression.LookupBuiltin(n.Name); !ok {
			return fmt.Errorf("unknown function %q", n.Name)
		}
		return writeCall(sb, n.Name, n.Args)
	default:
		return fmt.Errorf("unsupported node %T", n)
	}
	return nil
}

func writeCall(sb *strings.Builder, name string, args []expression.Node) error {
	sb.WriteString(name)
	sb.WriteByte('(')
	for i, a := range args {
		if i > 0 {
			sb.WriteString(", ")
		}
		if err := write(sb, a); err != nil {
			return err
		}
	}
	sb.WriteByte(')')
	return nil
}

const fmodName = "fmod"

// Env is a CEL environment declaring a contract's variables and builtins.
type Env struct {
	env *cel.Env
}

// NewEnv builds a CEL environment for contract.
func NewEnv(contract *expression.Contract) (*Env, error) {
	opts := []cel.EnvOption{
		cel.Function(fmodName, cel.Overload("fmod_double_double",
			[]*cel.Type{cel.DoubleType, cel.DoubleType}, cel.DoubleType,
			cel.BinaryBinding(func(lhs, rhs ref.Val) ref.Val {
				l, r := lhs.(types.Double), rhs.(types.Double)
				if r == 0 {
					return types.NewErr("modulo by zero")
				}
				return types.Double(math.Mod(float64(l), float64(r)))
			}))),
	}
	for _, v := range contract.Variables() {
		opts = append(opts, cel.Variable(v.Name, celType(v.Kind)))
	}
	for _, b := range contract.Functions() {
		opts = append(opts, builtinFunction(b))
	}
	env, err := cel.NewEnv(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	return &Env{env: env}, nil
}

func celType(k expression.Kind) *cel.Type {
	switch k {
	case expression.KindString:
		return cel.StringType
	case expression.KindBool:
		return cel.BoolType
	default:
		return cel.DoubleType
	}
}

func builtinFunction(b expression.Builtin) cel.EnvOption {
	sig := b.Signature()
	params := make([]*cel.Type, len(sig.Params))
	for i, p := range sig.Params {
		params[i] = celType(p.Kind)
	}
	call := func(args ...ref.Val) ref.Val {
		vals := make([]expression.Value, len(args))
		for i, a := range args {
			d, ok := a.(types.Double)
			if !ok {
				return types.NewErr("%s: argument %d is not a double", sig.Name, i+1)
			}
			vals[i] = expression.Number(d)
		}
		out, err := b.Apply(vals)
		if err != nil {
			return types.NewErr("%s", err.Error())
		}
		return types.Double(out.(expression.Number))
	}
	var binding cel.OverloadOpt
	switch len(params) {
	case 1:
		binding = cel.UnaryBinding(func(arg ref.Val) ref.Val { return call(arg) })
	case 2:
		binding = cel.BinaryBinding(func(lhs, rhs ref.Val) ref.Val { return call(lhs, rhs) })
	default:
		binding = cel.FunctionBinding(call)
	}
	id := sig.Name + "_" + strings.Repeat("double_", len(params)) + "double"
	return cel.Function(sig.Name, cel.Overload(id, params, celType(sig.Returns), binding))
}

// Program is a compiled CEL program together with its CEL source.
type Program struct {
	Source string
	prg    cel.Program
}

// Compile parses source with the rule expression parser, transpiles it and
// type-checks the result with CEL.
func (e *Env) Compile(source string) (*Program, error) {
	celSource, err := TranspileSource(source)
	if err != nil {
		return nil, err
	}
	ast, issues := e.env.Compile(celSource)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile error: %w", issues.Err())
	}
	prg, err := e.env.Program(ast, cel.CostLimit(costLimit))
	if err != nil {
		return nil, fmt.Errorf("program creation error: %w", err)
	}
	return &Program{Source: celSource, prg: prg}, nil
}

// Eval runs the program. Context values are converted the same way the
// native evaluator converts them, so integers arrive as doubles.
func (p *Program) Eval(ctx expression.Context) (expression.Value, error) {
	activation := make(map[string]any, len(ctx))
	for k, raw := range ctx {
		v, err := expression.FromGo(raw)
		if err != nil {
			return nil, fmt.Errorf("variable %q: %w", k, err)
		}
		activation[k] = v.Interface()
	}
	out, _, err := p.prg.Eval(activation)
	if err != nil {
		return nil, err
	}
	switch v := out.(type) {
	case types.Double:
		return expression.Number(v), nil
	case types.Int:
		return expression.Number(v), nil
	case types.String:
		return expression.String(v), nil
	case types.Bool:
		return expression.Bool(v), nil
	default:
		return nil, fmt.Errorf("unsupported CEL result type %s", out.Type().TypeName())
	}
}
