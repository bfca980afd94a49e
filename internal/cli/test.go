package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/scau009/dwlite-sub002/rules"
)

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	var ruleType, condition string
	var ctxFlags contextFlags

	cmd := &cobra.Command{
		Use:   "test <expression>",
		Short: "Evaluate an expression against a sample context",
		Long: `Test validates the expression (and condition) for a rule type and then
evaluates them against the given context. The expression is skipped when the
condition is false.`,
		Example:       `  rulectl test 'value * 1.1' --condition 'value > 100' -c '{"value": 150}'`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd)
			vars, err := ctxFlags.load()
			if err != nil {
				return f.Fail(ExitCommandError, ErrCodeInput, err.Error(), nil)
			}
			f.VerboseLog("context: %v", vars)
			return runTest(f, rules.TestRequest{
				Expression:          args[0],
				ConditionExpression: condition,
				Type:                rules.Type(ruleType),
				Context:             vars,
			})
		},
	}

	cmd.Flags().StringVarP(&ruleType, "type", "t", string(rules.TypePricing), "rule type")
	cmd.Flags().StringVar(&condition, "condition", "", "optional condition expression")
	ctxFlags.register(cmd)
	return cmd
}

func runTest(f *OutputFormatter, req rules.TestRequest) error {
	res := rules.NewTester(nil).Test(req)
	if res.Error != "" {
		return f.Fail(ExitFailure, ErrCodeEvaluation, res.Error, res)
	}
	return f.Success(res, func(w io.Writer) {
		if res.ConditionResult != nil {
			fmt.Fprintf(w, "condition: %t\n", *res.ConditionResult)
		}
		if res.Result == nil {
			fmt.Fprintln(w, "result: (skipped)")
			return
		}
		fmt.Fprintf(w, "result: %v\n", res.Result)
	})
}
