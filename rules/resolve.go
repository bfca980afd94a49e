package rules

import (
	"context"
	"fmt"

	"github.com/samber/lo"
	"github.com/sourcegraph/conc/pool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/scau009/dwlite-sub002/expression"
	ierr "github.com/scau009/dwlite-sub002/internal/errors"
	"github.com/scau009/dwlite-sub002/internal/logger"
)

// Reasons reported when nothing matched.
const (
	ReasonNoCandidates = "no_candidates"
	ReasonNoMatch      = "no_match"
)

// Outcome records what happened to one candidate.
type Outcome string

const (
	OutcomeMatched                Outcome = "matched"
	OutcomeSkippedConditionFalse  Outcome = "skipped_condition_false"
	OutcomeSkippedUnknownVariable Outcome = "skipped_unknown_variable"
)

type TraceEntry struct {
	RuleCode          string  `json:"ruleCode"`
	EffectivePriority int     `json:"effectivePriority"`
	Outcome           Outcome `json:"outcome"`
	Detail            string  `json:"detail,omitempty"`
}

// ResolutionResult is the outcome of Resolve. When Matched is false Value is
// meaningless and Reason says why.
type ResolutionResult struct {
	Matched           bool         `json:"matched"`
	RuleCode          string       `json:"ruleCode,omitempty"`
	Category          Category     `json:"category,omitempty"`
	EffectivePriority int          `json:"effectivePriority,omitempty"`
	Value             float64      `json:"value"`
	Reason            string       `json:"reason,omitempty"`
	Trace             []TraceEntry `json:"trace"`
}

// ValueOr returns the matched value, or def when nothing matched.
func (r *ResolutionResult) ValueOr(def float64) float64 {
	if r == nil || !r.Matched {
		return def
	}
	return r.Value
}

// Resolve picks the rule that applies to a scope and evaluates it.
//
// Candidates are the evaluable rules of ruleType with an active assignment
// to the scope, ordered by effective priority (highest first) and then by
// creation order. The first candidate whose condition is absent or true
// wins. A condition that is false, or that references a variable missing
// from vars, skips the candidate. Any other failure of a consulted rule is
// returned as an *EvaluationFailure.
func (en *Engine) Resolve(ctx context.Context, scopeType ScopeType, scopeID string, ruleType Type, vars expression.Context) (*ResolutionResult, error) {
	ctx, span := en.tracer.Start(ctx, "rules.Resolve", trace.WithAttributes(
		attribute.String("rules.scope_type", string(scopeType)),
		attribute.String("rules.scope_id", scopeID),
		attribute.String("rules.type", string(ruleType)),
	))
	defer span.End()
	logger.TotalResolutions.Add(1)

	if !ruleType.Valid() {
		return nil, ierr.NewErrorf("unknown rule type %q", ruleType).Mark(ierr.ErrValidation)
	}
	if !scopeType.Valid() {
		return nil, ierr.NewErrorf("unknown scope type %q", scopeType).Mark(ierr.ErrValidation)
	}

	candidates, err := en.candidates(ctx, CandidateKey{ScopeType: scopeType, ScopeID: scopeID, RuleType: ruleType})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "candidate lookup failed")
		return nil, err
	}
	span.SetAttributes(attribute.Int("rules.candidates", len(candidates)))

	res := &ResolutionResult{Trace: make([]TraceEntry, 0, len(candidates))}
	if len(candidates) == 0 {
		res.Reason = ReasonNoCandidates
		logger.TotalUnmatchedResult.Add(1)
		return res, nil
	}

	for _, c := range candidates {
		prio := c.EffectivePriority()
		if c.Rule.HasCondition() {
			pass, err := en.evalCondition(c.Rule, vars)
			if err != nil {
				if expression.IsUnknownVariable(err) {
					res.Trace = append(res.Trace, TraceEntry{RuleCode: c.Rule.Code, EffectivePriority: prio,
						Outcome: OutcomeSkippedUnknownVariable, Detail: err.Error()})
					continue
				}
				return nil, en.failure(span, c.Rule, PhaseCondition, err)
			}
			if !pass {
				res.Trace = append(res.Trace, TraceEntry{RuleCode: c.Rule.Code, EffectivePriority: prio,
					Outcome: OutcomeSkippedConditionFalse})
				continue
			}
		}

		v, err := en.evalExpression(c.Rule, vars)
		if err != nil {
			return nil, en.failure(span, c.Rule, PhaseExpression, err)
		}
		res.Trace = append(res.Trace, TraceEntry{RuleCode: c.Rule.Code, EffectivePriority: prio, Outcome: OutcomeMatched})
		res.Matched = true
		res.RuleCode = c.Rule.Code
		res.Category = c.Rule.Category
		res.EffectivePriority = prio
		res.Value = v
		span.SetAttributes(attribute.String("rules.matched", c.Rule.Code))
		return res, nil
	}

	res.Reason = ReasonNoMatch
	logger.TotalUnmatchedResult.Add(1)
	return res, nil
}

func (en *Engine) candidates(ctx context.Context, key CandidateKey) ([]Candidate, error) {
	if cached, ok := en.cache.Get(key); ok {
		return cached, nil
	}
	gen := en.generation.Load()
	all, err := en.store.Candidates(ctx, key.ScopeType, key.ScopeID, key.RuleType)
	if err != nil {
		return nil, err
	}
	out := lo.Filter(all, func(c Candidate, _ int) bool {
		return c.Rule.Type == key.RuleType && c.Rule.IsEvaluable() && c.Assignment.Active
	})
	SortCandidates(out)
	if en.generation.Load() == gen {
		en.cache.Set(key, out)
		// A mutation that landed between the check and Set may have flushed
		// before our entry was written.
		if en.generation.Load() != gen {
			en.cache.Invalidate()
		}
	}
	return out, nil
}

func (en *Engine) evalCondition(r *Rule, vars expression.Context) (bool, error) {
	v, err := en.programs.Evaluate(r.ConditionExpression, vars)
	if err != nil {
		return false, err
	}
	b, ok := v.(expression.Bool)
	if !ok {
		return false, &expression.EvalError{Kind: expression.TypeError,
			Message: fmt.Sprintf("condition must evaluate to boolean, got %s", v.Kind())}
	}
	return bool(b), nil
}

func (en *Engine) evalExpression(r *Rule, vars expression.Context) (float64, error) {
	v, err := en.programs.Evaluate(r.Expression, vars)
	if err != nil {
		return 0, err
	}
	n, ok := v.(expression.Number)
	if !ok {
		return 0, &expression.EvalError{Kind: expression.TypeError,
			Message: fmt.Sprintf("expression must evaluate to number, got %s", v.Kind())}
	}
	return float64(n), nil
}

func (en *Engine) failure(span trace.Span, r *Rule, phase Phase, err error) error {
	logger.TotalRuleFailures.Add(1)
	f := &EvaluationFailure{RuleCode: r.Code, Phase: phase, Err: err}
	span.RecordError(f)
	span.SetStatus(codes.Error, "rule evaluation failed")
	en.log.Warnw("rule evaluation failed", "rule_code", r.Code, "phase", phase, "error", err)
	return f
}

// ResolveRequest is one input to ResolveMany.
type ResolveRequest struct {
	ScopeType ScopeType
	ScopeID   string
	RuleType  Type
	Context   expression.Context
}

// ResolveOutcome pairs a request with its result or error.
type ResolveOutcome struct {
	Request ResolveRequest
	Result  *ResolutionResult
	Err     error
}

// ResolveMany resolves independent requests concurrently. Outcomes are in
// request order.
func (en *Engine) ResolveMany(ctx context.Context, reqs []ResolveRequest) []ResolveOutcome {
	out := make([]ResolveOutcome, len(reqs))
	p := pool.New().WithMaxGoroutines(en.batchConcurrency)
	for i, req := range reqs {
		p.Go(func() {
			res, err := en.Resolve(ctx, req.ScopeType, req.ScopeID, req.RuleType, req.Context)
			out[i] = ResolveOutcome{Request: req, Result: res, Err: err}
		})
	}
	p.Wait()
	return out
}
