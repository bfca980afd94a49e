package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/scau009/dwlite-sub002/rules"
)

// NewReferenceCommand creates the reference command.
func NewReferenceCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "reference <type>",
		Short:         "List the variables and functions available to a rule type",
		Args:          cobra.ExactArgs(1),
		ValidArgs:     []string{string(rules.TypePricing), string(rules.TypeStockPriority), string(rules.TypeSettlementFee)},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReference(newFormatter(rootOpts, cmd), rules.Type(args[0]))
		},
	}
	return cmd
}

func runReference(f *OutputFormatter, t rules.Type) error {
	doc, err := rules.Reference(t)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeInput, err.Error(), nil)
	}
	return f.Success(doc, func(w io.Writer) {
		fmt.Fprintf(w, "Rule type %s (categories: %v)\n\nVariables:\n", doc.Type, doc.Categories)
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		for _, v := range doc.Variables {
			fmt.Fprintf(tw, "  %s\t%s\t%s\n", v.Name, v.Type, v.Description)
		}
		_ = tw.Flush()

		fmt.Fprintln(w, "\nFunctions:")
		for _, fn := range doc.Functions {
			fmt.Fprintf(w, "  %s\n      %s e.g. %s\n", fn.Signature, fn.Description, fn.Example)
		}
	})
}
