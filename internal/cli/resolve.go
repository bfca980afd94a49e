package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/scau009/dwlite-sub002/expression"
	ierr "github.com/scau009/dwlite-sub002/internal/errors"
	"github.com/scau009/dwlite-sub002/internal/logger"
	"github.com/scau009/dwlite-sub002/rules"
)

type resolveOptions struct {
	fixtures  string
	ruleType  string
	scopeType string
	scopeIDs  []string
	def       float64
	strict    bool
	typed     bool
	ctx       contextFlags
}

// NewResolveCommand creates the resolve command.
func NewResolveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &resolveOptions{}

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve the winning rule for a scope from a fixtures file",
		Long: `Resolve loads rules and assignments from a YAML fixtures file into an
in-memory store and runs priority-ordered resolution for one scope, printing
the outcome and the per-candidate trace. Several scopes, given as a
comma-separated --scope-id, are resolved concurrently against the same context.`,
		Example:       `  rulectl resolve --fixtures rules.yaml --scope-type merchant --scope-id M1 -c '{"value": 100, "brand": "Nike"}'`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(cmd, newFormatter(rootOpts, cmd), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.fixtures, "fixtures", "f", "", "YAML fixtures file (required)")
	cmd.Flags().StringVarP(&opts.ruleType, "type", "t", string(rules.TypePricing), "rule type")
	cmd.Flags().StringVar(&opts.scopeType, "scope-type", string(rules.ScopeMerchant), "scope type (merchant|channel_product)")
	cmd.Flags().StringSliceVar(&opts.scopeIDs, "scope-id", nil, "scope id, or a comma-separated list (required)")
	cmd.Flags().Float64Var(&opts.def, "default", 0, "value reported when no rule matches")
	cmd.Flags().BoolVar(&opts.strict, "strict", false, "exit with failure when no rule matches")
	cmd.Flags().BoolVar(&opts.typed, "typed-context", false, "reject context keys and kinds outside the rule type's variables")
	opts.ctx.register(cmd)
	_ = cmd.MarkFlagRequired("fixtures")
	_ = cmd.MarkFlagRequired("scope-id")
	return cmd
}

// ResolveOutput is the resolution outcome plus the value after the default is applied.
type ResolveOutput struct {
	*rules.ResolutionResult
	Effective float64 `json:"effective"`
}

// ScopeOutcome is one entry of a multi-scope resolution.
type ScopeOutcome struct {
	ScopeID string         `json:"scopeId"`
	Output  *ResolveOutput `json:"output,omitempty"`
	Error   string         `json:"error,omitempty"`
}

func runResolve(cmd *cobra.Command, f *OutputFormatter, opts *resolveOptions) error {
	load := opts.ctx.load
	if opts.typed {
		load = func() (expression.Context, error) { return opts.ctx.loadTyped(rules.Type(opts.ruleType)) }
	}
	vars, err := load()
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeInput, err.Error(), nil)
	}

	log := logger.NewNop()
	if f.Verbose {
		log = logger.L
	}
	en := rules.NewEngine(rules.NewInMemoryStore(), rules.WithLogger(log))
	if err := rules.LoadFixturesFile(cmd.Context(), en, opts.fixtures); err != nil {
		return f.Fail(ExitCommandError, ErrCodeFixtures, err.Error(), nil)
	}
	f.VerboseLog("loaded fixtures from %s", opts.fixtures)

	if len(opts.scopeIDs) > 1 {
		return resolveScopes(cmd, f, en, opts, vars)
	}
	if len(opts.scopeIDs) == 0 || opts.scopeIDs[0] == "" {
		return f.Fail(ExitCommandError, ErrCodeInput, "--scope-id is empty", nil)
	}

	res, err := en.Resolve(cmd.Context(), rules.ScopeType(opts.scopeType), opts.scopeIDs[0], rules.Type(opts.ruleType), vars)
	if err != nil {
		var failure *rules.EvaluationFailure
		if ierr.As(err, &failure) {
			return f.Fail(ExitFailure, ErrCodeEvaluation, err.Error(),
				map[string]any{"ruleCode": failure.RuleCode, "phase": failure.Phase})
		}
		return f.Fail(ExitCommandError, ErrCodeInput, err.Error(), nil)
	}

	out := ResolveOutput{ResolutionResult: res, Effective: res.ValueOr(opts.def)}
	if !res.Matched && opts.strict {
		return f.Fail(ExitFailure, ErrCodeNoMatch, "no rule matched: "+res.Reason, out)
	}
	return f.Success(out, func(w io.Writer) {
		for _, e := range res.Trace {
			fmt.Fprintf(w, "  [%d] %-24s %s", e.EffectivePriority, e.RuleCode, e.Outcome)
			if e.Detail != "" {
				fmt.Fprintf(w, " (%s)", e.Detail)
			}
			fmt.Fprintln(w)
		}
		writeOutcome(w, out)
	})
}

func resolveScopes(cmd *cobra.Command, f *OutputFormatter, en *rules.Engine, opts *resolveOptions, vars expression.Context) error {
	reqs := make([]rules.ResolveRequest, len(opts.scopeIDs))
	for i, id := range opts.scopeIDs {
		reqs[i] = rules.ResolveRequest{
			ScopeType: rules.ScopeType(opts.scopeType), ScopeID: id,
			RuleType: rules.Type(opts.ruleType), Context: vars,
		}
	}

	outcomes := en.ResolveMany(cmd.Context(), reqs)
	entries := make([]ScopeOutcome, len(outcomes))
	failed, unmatched := 0, 0
	for i, o := range outcomes {
		entries[i].ScopeID = o.Request.ScopeID
		if o.Err != nil {
			entries[i].Error = o.Err.Error()
			failed++
			continue
		}
		entries[i].Output = &ResolveOutput{ResolutionResult: o.Result, Effective: o.Result.ValueOr(opts.def)}
		if !o.Result.Matched {
			unmatched++
		}
	}

	switch {
	case failed > 0:
		return f.Fail(ExitFailure, ErrCodeEvaluation, fmt.Sprintf("%d of %d scopes failed to resolve", failed, len(entries)), entries)
	case unmatched > 0 && opts.strict:
		return f.Fail(ExitFailure, ErrCodeNoMatch, fmt.Sprintf("%d of %d scopes matched no rule", unmatched, len(entries)), entries)
	}
	return f.Success(entries, func(w io.Writer) {
		for _, e := range entries {
			fmt.Fprintf(w, "%s: ", e.ScopeID)
			writeOutcome(w, *e.Output)
		}
	})
}

func writeOutcome(w io.Writer, out ResolveOutput) {
	if out.Matched {
		fmt.Fprintf(w, "matched %s (%s): %v\n", out.RuleCode, out.Category, out.Value)
		return
	}
	fmt.Fprintf(w, "no match (%s), using default: %v\n", out.Reason, out.Effective)
}
