package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/scau009/dwlite-sub002/expression"
	"github.com/scau009/dwlite-sub002/expression/celbridge"
	"github.com/scau009/dwlite-sub002/rules"
)

// TranspileResult holds the CEL rendering of an expression and, with
// --eval, the value computed by each evaluator.
type TranspileResult struct {
	Expression string `json:"expression"`
	Canonical  string `json:"canonical"`
	CEL        string `json:"cel"`
	Native     any    `json:"native,omitempty"`
	CELValue   any    `json:"celValue,omitempty"`
	Agree      *bool  `json:"agree,omitempty"`
}

// NewTranspileCommand creates the transpile command.
func NewTranspileCommand(rootOpts *RootOptions) *cobra.Command {
	var ruleType string
	var eval bool
	var ctxFlags contextFlags

	cmd := &cobra.Command{
		Use:           "transpile <expression>",
		Short:         "Render an expression as CEL and optionally cross-check both evaluators",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd)
			var vars expression.Context
			if eval {
				var err error
				if vars, err = ctxFlags.load(); err != nil {
					return f.Fail(ExitCommandError, ErrCodeInput, err.Error(), nil)
				}
			}
			return runTranspile(f, rules.Type(ruleType), args[0], eval, vars)
		},
	}

	cmd.Flags().StringVarP(&ruleType, "type", "t", string(rules.TypePricing), "rule type whose contract declares the CEL variables")
	cmd.Flags().BoolVar(&eval, "eval", false, "evaluate with both the native evaluator and CEL")
	ctxFlags.register(cmd)
	return cmd
}

func runTranspile(f *OutputFormatter, t rules.Type, source string, eval bool, vars expression.Context) error {
	n, err := expression.Parse(source)
	if err != nil {
		return f.Fail(ExitFailure, ErrCodeValidation, err.Error(), nil)
	}
	celSource, err := celbridge.Transpile(n)
	if err != nil {
		return f.Fail(ExitFailure, ErrCodeTranspile, err.Error(), nil)
	}
	res := TranspileResult{Expression: source, Canonical: expression.Format(n), CEL: celSource}

	if eval {
		contract, ok := rules.Contract(t)
		if !ok {
			return f.Fail(ExitCommandError, ErrCodeInput, fmt.Sprintf("unknown rule type %q", t), nil)
		}
		env, err := celbridge.NewEnv(contract)
		if err != nil {
			return f.Fail(ExitFailure, ErrCodeTranspile, err.Error(), nil)
		}
		prg, err := env.Compile(source)
		if err != nil {
			return f.Fail(ExitFailure, ErrCodeTranspile, err.Error(), res)
		}
		native, err := expression.Evaluate(n, vars)
		if err != nil {
			return f.Fail(ExitFailure, ErrCodeEvaluation, "native: "+err.Error(), res)
		}
		viaCEL, err := prg.Eval(vars)
		if err != nil {
			return f.Fail(ExitFailure, ErrCodeEvaluation, "cel: "+err.Error(), res)
		}
		agree := sameResult(native, viaCEL)
		res.Native, res.CELValue, res.Agree = native.Interface(), viaCEL.Interface(), &agree
		f.VerboseLog("native=%v cel=%v", res.Native, res.CELValue)
	}

	return f.Success(res, func(w io.Writer) {
		fmt.Fprintf(w, "canonical: %s\ncel:       %s\n", res.Canonical, res.CEL)
		if res.Agree != nil {
			fmt.Fprintf(w, "native:    %v\ncel value: %v\nagree:     %t\n", res.Native, res.CELValue, *res.Agree)
		}
	})
}

// sameResult compares numbers after the native result precision is applied.
func sameResult(native, viaCEL expression.Value) bool {
	if n, ok := viaCEL.(expression.Number); ok {
		viaCEL = expression.Number(expression.Normalize(float64(n)))
	}
	return expression.Equal(native, viaCEL)
}
