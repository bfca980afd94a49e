package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/scau009/dwlite-sub002/expression"
	"github.com/scau009/dwlite-sub002/rules"
)

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	var ruleType string
	var condition bool

	cmd := &cobra.Command{
		Use:   "validate <expression>",
		Short: "Check an expression without evaluating it",
		Long: `Validate parses an expression and checks it against the variable and
function contract of a rule type. Value expressions must produce a number;
with --condition the expression must produce a boolean.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(newFormatter(rootOpts, cmd), rules.Type(ruleType), args[0], condition)
		},
	}

	cmd.Flags().StringVarP(&ruleType, "type", "t", string(rules.TypePricing), "rule type")
	cmd.Flags().BoolVar(&condition, "condition", false, "validate as a condition (boolean result)")
	return cmd
}

func runValidate(f *OutputFormatter, t rules.Type, source string, condition bool) error {
	if !t.Valid() {
		return f.Fail(ExitCommandError, ErrCodeInput, fmt.Sprintf("unknown rule type %q", t), nil)
	}
	var res expression.Result
	if condition {
		res = rules.ValidateCondition(source, t)
	} else {
		res = rules.Validate(source, t)
	}
	if !res.Valid {
		return f.Fail(ExitFailure, ErrCodeValidation, res.Error, res)
	}
	return f.Success(res, func(w io.Writer) {
		fmt.Fprintln(w, "✓ expression is valid")
	})
}
