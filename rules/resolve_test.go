package rules

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scau009/dwlite-sub002/expression"
	ierr "github.com/scau009/dwlite-sub002/internal/errors"
	"github.com/scau009/dwlite-sub002/internal/logger"
)

func assign(t *testing.T, en *Engine, code, scopeID string, override *int) *Assignment {
	t.Helper()
	a := &Assignment{RuleCode: code, ScopeType: ScopeMerchant, ScopeID: scopeID, PriorityOverride: override, Active: true}
	require.NoError(t, en.Assign(context.Background(), a))
	return a
}

func TestResolveScenario(t *testing.T) {
	ctx := context.Background()
	en, _ := newTestEngine(t)
	require.NoError(t, en.AddRule(ctx, pricingRule("r1", "markup(value,0.2)", "brand=='Nike'", 5)))
	require.NoError(t, en.AddRule(ctx, pricingRule("r2", "markup(value,0.1)", "", 1)))
	assign(t, en, "r1", "M1", nil)
	assign(t, en, "r2", "M1", nil)

	res, err := en.Resolve(ctx, ScopeMerchant, "M1", TypePricing, expression.Context{"value": 100, "brand": "Nike"})
	require.NoError(t, err)
	assert.True(t, res.Matched)
	assert.Equal(t, "r1", res.RuleCode)
	assert.Equal(t, 120.0, res.Value)
	assert.Equal(t, 5, res.EffectivePriority)
	assert.Equal(t, CategoryMarkup, res.Category)

	res, err = en.Resolve(ctx, ScopeMerchant, "M1", TypePricing, expression.Context{"value": 100, "brand": "Adidas"})
	require.NoError(t, err)
	assert.Equal(t, "r2", res.RuleCode)
	assert.Equal(t, 110.0, res.Value)
	require.Len(t, res.Trace, 2)
	assert.Equal(t, TraceEntry{RuleCode: "r1", EffectivePriority: 5, Outcome: OutcomeSkippedConditionFalse}, res.Trace[0])
	assert.Equal(t, OutcomeMatched, res.Trace[1].Outcome)
}

func TestResolvePriorityOrdering(t *testing.T) {
	ctx := context.Background()
	en, store := newTestEngine(t)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	store.now = func() time.Time { tick++; return base.Add(time.Duration(tick) * time.Second) }

	// effective priorities [10, 5, 5, 1]; every condition is false so the
	// trace records the full consideration order.
	ten := 10
	for _, r := range []struct {
		code string
		prio int
	}{{"p1", 1}, {"p5a", 5}, {"p10", 0}, {"p5b", 5}} {
		require.NoError(t, en.AddRule(ctx, pricingRule(r.code, "value", "value < 0", r.prio)))
	}
	assign(t, en, "p1", "M1", nil)
	assign(t, en, "p5b", "M1", nil)
	assign(t, en, "p10", "M1", &ten)
	assign(t, en, "p5a", "M1", nil)

	res, err := en.Resolve(ctx, ScopeMerchant, "M1", TypePricing, expression.Context{"value": 1})
	require.NoError(t, err)
	assert.False(t, res.Matched)
	assert.Equal(t, ReasonNoMatch, res.Reason)
	order := make([]string, len(res.Trace))
	prios := make([]int, len(res.Trace))
	for i, e := range res.Trace {
		order[i], prios[i] = e.RuleCode, e.EffectivePriority
	}
	assert.Equal(t, []string{"p10", "p5a", "p5b", "p1"}, order)
	assert.Equal(t, []int{10, 5, 5, 1}, prios)
}

func TestResolveUnknownVariableInConditionSkips(t *testing.T) {
	ctx := context.Background()
	en, _ := newTestEngine(t)
	require.NoError(t, en.AddRule(ctx, pricingRule("needs-channel", "value * 2", "channel == 'web'", 9)))
	require.NoError(t, en.AddRule(ctx, pricingRule("fallback", "value + 1", "", 1)))
	assign(t, en, "needs-channel", "M1", nil)
	assign(t, en, "fallback", "M1", nil)

	res, err := en.Resolve(ctx, ScopeMerchant, "M1", TypePricing, expression.Context{"value": 10})
	require.NoError(t, err)
	assert.Equal(t, "fallback", res.RuleCode)
	assert.Equal(t, 11.0, res.Value)
	assert.Equal(t, OutcomeSkippedUnknownVariable, res.Trace[0].Outcome)
	assert.Contains(t, res.Trace[0].Detail, "channel")
}

func TestResolveBrokenMatchedRuleIsFatal(t *testing.T) {
	ctx := context.Background()
	en, _ := newTestEngine(t)
	require.NoError(t, en.AddRule(ctx, pricingRule("div", "value / 0", "true", 5)))
	require.NoError(t, en.AddRule(ctx, pricingRule("fallback", "value", "", 1)))
	assign(t, en, "div", "M1", nil)
	assign(t, en, "fallback", "M1", nil)

	res, err := en.Resolve(ctx, ScopeMerchant, "M1", TypePricing, expression.Context{"value": 10})
	assert.Nil(t, res)
	var failure *EvaluationFailure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, "div", failure.RuleCode)
	assert.Equal(t, PhaseExpression, failure.Phase)
	kind, ok := expression.EvalErrorKindOf(err)
	require.True(t, ok)
	assert.Equal(t, expression.ArithmeticError, kind)
}

func TestResolveConditionErrorIsFatal(t *testing.T) {
	ctx := context.Background()
	en, _ := newTestEngine(t)
	require.NoError(t, en.AddRule(ctx, pricingRule("typed", "value", "brand > 'A'", 5)))
	assign(t, en, "typed", "M1", nil)

	_, err := en.Resolve(ctx, ScopeMerchant, "M1", TypePricing, expression.Context{"value": 1, "brand": 42})
	var failure *EvaluationFailure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, PhaseCondition, failure.Phase)

	// a variable holding the wrong kind makes a bare condition non-boolean
	require.NoError(t, en.AddRule(ctx, pricingRule("flag", "value", "isNewProduct", 9)))
	assign(t, en, "flag", "M1", nil)
	_, err = en.Resolve(ctx, ScopeMerchant, "M1", TypePricing, expression.Context{"value": 1, "isNewProduct": 1})
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, "flag", failure.RuleCode)
}

func TestResolveNoCandidates(t *testing.T) {
	ctx := context.Background()
	en, _ := newTestEngine(t)
	require.NoError(t, en.AddRule(ctx, pricingRule("r1", "value", "", 1)))
	assign(t, en, "r1", "M1", nil)

	res, err := en.Resolve(ctx, ScopeMerchant, "M2", TypePricing, expression.Context{"value": 1})
	require.NoError(t, err)
	assert.False(t, res.Matched)
	assert.Equal(t, ReasonNoCandidates, res.Reason)
	assert.Equal(t, 42.0, res.ValueOr(42))

	res, err = en.Resolve(ctx, ScopeMerchant, "M1", TypeSettlementFee, expression.Context{"value": 1})
	require.NoError(t, err)
	assert.Equal(t, ReasonNoCandidates, res.Reason)

	_, err = en.Resolve(ctx, ScopeMerchant, "M1", Type("shipping"), nil)
	assert.True(t, ierr.IsValidation(err))
	_, err = en.Resolve(ctx, ScopeType("shop"), "M1", TypePricing, nil)
	assert.True(t, ierr.IsValidation(err))
}

func TestResolveSkipsInactiveAndInvalid(t *testing.T) {
	ctx := context.Background()
	en, _ := newTestEngine(t)
	require.NoError(t, en.AddRule(ctx, pricingRule("live", "value", "", 1)))
	draft := pricingRule("draft", "value * missingVar", "", 9)
	draft.Active = false
	require.NoError(t, en.AddRule(ctx, draft))
	require.NoError(t, en.AddRule(ctx, pricingRule("retired", "value * 3", "", 8)))
	assign(t, en, "live", "M1", nil)
	assign(t, en, "draft", "M1", nil)
	paused := assign(t, en, "retired", "M1", nil)

	res, err := en.Resolve(ctx, ScopeMerchant, "M1", TypePricing, expression.Context{"value": 2})
	require.NoError(t, err)
	assert.Equal(t, "retired", res.RuleCode)

	off := false
	_, err = en.UpdateAssignment(ctx, paused.ID, AssignmentUpdate{Active: &off})
	require.NoError(t, err)

	res, err = en.Resolve(ctx, ScopeMerchant, "M1", TypePricing, expression.Context{"value": 2})
	require.NoError(t, err)
	assert.Equal(t, "live", res.RuleCode)
	assert.Len(t, res.Trace, 1)
}

func TestResolveSeesMutationsThroughCache(t *testing.T) {
	ctx := context.Background()
	en, _ := newTestEngine(t)
	require.NoError(t, en.AddRule(ctx, pricingRule("r1", "value + 1", "", 1)))
	assign(t, en, "r1", "M1", nil)

	vars := expression.Context{"value": 1}
	res, err := en.Resolve(ctx, ScopeMerchant, "M1", TypePricing, vars)
	require.NoError(t, err)
	assert.Equal(t, 2.0, res.Value)

	expr := "value + 100"
	_, err = en.UpdateRule(ctx, "r1", RuleUpdate{Expression: &expr})
	require.NoError(t, err)
	res, err = en.Resolve(ctx, ScopeMerchant, "M1", TypePricing, vars)
	require.NoError(t, err)
	assert.Equal(t, 101.0, res.Value)

	_, err = en.SetRuleActive(ctx, "r1", false)
	require.NoError(t, err)
	res, err = en.Resolve(ctx, ScopeMerchant, "M1", TypePricing, vars)
	require.NoError(t, err)
	assert.Equal(t, ReasonNoCandidates, res.Reason)
}

// racingCache runs beforeSet once, right before the first store into the
// wrapped cache.
type racingCache struct {
	*InMemoryCandidateCache
	beforeSet func()
}

func (c *racingCache) Set(key CandidateKey, candidates []Candidate) {
	if hook := c.beforeSet; hook != nil {
		c.beforeSet = nil
		hook()
	}
	c.InMemoryCandidateCache.Set(key, candidates)
}

func TestResolveDropsFillRacingMutation(t *testing.T) {
	ctx := context.Background()
	cache := &racingCache{InMemoryCandidateCache: NewInMemoryCandidateCache(DefaultCacheConfig())}
	en := NewEngine(NewInMemoryStore(), WithLogger(logger.NewNop()), WithCache(cache))
	require.NoError(t, en.AddRule(ctx, pricingRule("r1", "value * 2", "", 1)))
	assign(t, en, "r1", "M1", nil)

	cache.beforeSet = func() {
		_, err := en.SetRuleActive(ctx, "r1", false)
		require.NoError(t, err)
	}
	vars := expression.Context{"value": 10}
	res, err := en.Resolve(ctx, ScopeMerchant, "M1", TypePricing, vars)
	require.NoError(t, err)
	assert.Equal(t, "r1", res.RuleCode)
	assert.Equal(t, 0, cache.Len())

	res, err = en.Resolve(ctx, ScopeMerchant, "M1", TypePricing, vars)
	require.NoError(t, err)
	assert.False(t, res.Matched)
	assert.Equal(t, ReasonNoCandidates, res.Reason)
}

func TestResolveDeterministic(t *testing.T) {
	ctx := context.Background()
	en, _ := newTestEngine(t)
	require.NoError(t, en.AddRule(ctx, pricingRule("r1", "round(value * 1.1, 2) + cost % 3", "", 1)))
	assign(t, en, "r1", "M1", nil)

	vars := expression.Context{"value": 19.99, "cost": 7}
	first, err := en.Resolve(ctx, ScopeMerchant, "M1", TypePricing, vars)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, err := en.Resolve(ctx, ScopeMerchant, "M1", TypePricing, vars)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	assert.Equal(t, expression.Context{"value": 19.99, "cost": 7}, vars)
}

func TestResolveMany(t *testing.T) {
	ctx := context.Background()
	en, _ := newTestEngine(t)
	require.NoError(t, en.AddRule(ctx, pricingRule("double", "value * 2", "", 1)))
	require.NoError(t, en.AddRule(ctx, pricingRule("broken", "value / 0", "", 1)))
	for i := 0; i < 10; i++ {
		assign(t, en, "double", fmt.Sprintf("M%d", i), nil)
	}
	assign(t, en, "broken", "BAD", nil)

	var reqs []ResolveRequest
	for i := 0; i < 10; i++ {
		reqs = append(reqs, ResolveRequest{ScopeType: ScopeMerchant, ScopeID: fmt.Sprintf("M%d", i), RuleType: TypePricing,
			Context: expression.Context{"value": i}})
	}
	reqs = append(reqs, ResolveRequest{ScopeType: ScopeMerchant, ScopeID: "BAD", RuleType: TypePricing,
		Context: expression.Context{"value": 1}})

	out := en.ResolveMany(ctx, reqs)
	require.Len(t, out, len(reqs))
	for i := 0; i < 10; i++ {
		require.NoError(t, out[i].Err)
		assert.Equal(t, reqs[i].ScopeID, out[i].Request.ScopeID)
		assert.Equal(t, float64(i*2), out[i].Result.Value)
	}
	var failure *EvaluationFailure
	assert.ErrorAs(t, out[10].Err, &failure)
}

func TestCandidateCache(t *testing.T) {
	c := NewInMemoryCandidateCache(DefaultCacheConfig())
	key := CandidateKey{ScopeType: ScopeMerchant, ScopeID: "M1", RuleType: TypePricing}
	_, ok := c.Get(key)
	assert.False(t, ok)

	cs := []Candidate{{Rule: &Rule{Code: "a"}}, {Rule: &Rule{Code: "b"}}}
	c.Set(key, cs)
	cs[0] = Candidate{Rule: &Rule{Code: "z"}}
	got, ok := c.Get(key)
	require.True(t, ok)
	assert.Equal(t, "a", got[0].Rule.Code)
	assert.Equal(t, 1, c.Len())

	c.Invalidate()
	_, ok = c.Get(key)
	assert.False(t, ok)

	ttl := NewInMemoryCandidateCache(CacheConfig{TTL: 10 * time.Millisecond})
	ttl.Set(key, cs)
	time.Sleep(30 * time.Millisecond)
	_, ok = ttl.Get(key)
	assert.False(t, ok)
}
