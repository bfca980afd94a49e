package rules

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scau009/dwlite-sub002/expression"
	ierr "github.com/scau009/dwlite-sub002/internal/errors"
	"github.com/scau009/dwlite-sub002/internal/logger"
)

func newTestEngine(t *testing.T) (*Engine, *InMemoryStore) {
	t.Helper()
	store := NewInMemoryStore()
	return NewEngine(store, WithLogger(logger.NewNop())), store
}

func pricingRule(code, expr, cond string, prio int) *Rule {
	return &Rule{
		Code: code, Name: code, Type: TypePricing, Category: CategoryMarkup,
		Expression: expr, ConditionExpression: cond, Priority: prio, Active: true,
	}
}

func TestEngineAddRule(t *testing.T) {
	ctx := context.Background()
	en, _ := newTestEngine(t)

	r := pricingRule("r1", "markup(value, 0.2)", "brand == 'Nike'", 5)
	require.NoError(t, en.AddRule(ctx, r))
	assert.True(t, r.Valid)

	got, err := en.GetRule(ctx, "r1")
	require.NoError(t, err)
	assert.True(t, got.IsEvaluable())

	err = en.AddRule(ctx, pricingRule("r1", "value", "", 0))
	assert.True(t, ierr.IsAlreadyExists(err))
}

func TestNewEngineDefaults(t *testing.T) {
	en := NewEngine(NewInMemoryStore())
	assert.Equal(t, expression.DefaultProgramTTL, en.programs.TTL())
	assert.Equal(t, DefaultBatchConcurrency, en.batchConcurrency)

	shared := expression.NewProgramCache(time.Minute)
	en = NewEngine(NewInMemoryStore(), WithProgramCache(shared))
	assert.Same(t, shared, en.programs)
}

func TestEngineInvalidRuleLifecycle(t *testing.T) {
	ctx := context.Background()
	en, _ := newTestEngine(t)

	// An invalid rule cannot be created active
	err := en.AddRule(ctx, pricingRule("broken", "markup(value)", "", 1))
	require.Error(t, err)
	assert.True(t, ierr.IsValidation(err))
	assert.NotEmpty(t, ierr.Hint(err))
	_, err = en.GetRule(ctx, "broken")
	assert.True(t, ierr.IsNotFound(err))

	// but may be stored inactive for later repair
	draft := pricingRule("broken", "markup(value)", "", 1)
	draft.Active = false
	require.NoError(t, en.AddRule(ctx, draft))
	assert.False(t, draft.Valid)
	assert.Contains(t, draft.ValidationError, "markup expects 2")

	_, err = en.SetRuleActive(ctx, "broken", true)
	assert.True(t, ierr.IsValidation(err))

	fixed := "markup(value, 0.3)"
	r, err := en.UpdateRule(ctx, "broken", RuleUpdate{Expression: &fixed})
	require.NoError(t, err)
	assert.True(t, r.Valid)
	assert.Empty(t, r.ValidationError)
	assert.False(t, r.Active)

	r, err = en.SetRuleActive(ctx, "broken", true)
	require.NoError(t, err)
	assert.True(t, r.IsEvaluable())
}

func TestEngineRejectsBadFields(t *testing.T) {
	ctx := context.Background()
	en, _ := newTestEngine(t)

	r := pricingRule("r1", "value", "", 0)
	r.Category = CategoryFeeRate
	assert.True(t, ierr.IsValidation(en.AddRule(ctx, r)))

	r = pricingRule("bad code", "value", "", 0)
	assert.True(t, ierr.IsValidation(en.AddRule(ctx, r)))

	require.NoError(t, en.AddRule(ctx, pricingRule("r2", "value", "", 0)))
	neg := -3
	_, err := en.UpdateRule(ctx, "r2", RuleUpdate{Priority: &neg})
	assert.True(t, ierr.IsValidation(err))
	_, err = en.UpdateRule(ctx, "missing", RuleUpdate{Priority: &neg})
	assert.True(t, ierr.IsNotFound(err))
}

func TestEngineDeleteRule(t *testing.T) {
	ctx := context.Background()
	en, _ := newTestEngine(t)
	require.NoError(t, en.AddRule(ctx, pricingRule("r1", "value", "", 0)))
	a := &Assignment{RuleCode: "r1", ScopeType: ScopeMerchant, ScopeID: "M1", Active: true}
	require.NoError(t, en.Assign(ctx, a))

	err := en.DeleteRule(ctx, "r1")
	assert.True(t, ierr.IsInvalidOperation(err))

	// retiring is the supported path
	r, err := en.SetRuleActive(ctx, "r1", false)
	require.NoError(t, err)
	assert.False(t, r.Active)

	require.NoError(t, en.Unassign(ctx, a.ID))
	require.NoError(t, en.DeleteRule(ctx, "r1"))
	_, err = en.GetRule(ctx, "r1")
	assert.True(t, ierr.IsNotFound(err))
}

func TestEngineAssignments(t *testing.T) {
	ctx := context.Background()
	en, _ := newTestEngine(t)
	require.NoError(t, en.AddRule(ctx, pricingRule("r1", "value", "", 2)))

	err := en.Assign(ctx, &Assignment{RuleCode: "missing", ScopeType: ScopeMerchant, ScopeID: "M1", Active: true})
	assert.True(t, ierr.IsNotFound(err))
	err = en.Assign(ctx, &Assignment{RuleCode: "r1", ScopeType: "store", ScopeID: "M1", Active: true})
	assert.True(t, ierr.IsValidation(err))

	a := &Assignment{RuleCode: "r1", ScopeType: ScopeChannelProduct, ScopeID: "CP-9", Active: true}
	require.NoError(t, en.Assign(ctx, a))

	p := 11
	updated, err := en.UpdateAssignment(ctx, a.ID, AssignmentUpdate{PriorityOverride: &p})
	require.NoError(t, err)
	require.NotNil(t, updated.PriorityOverride)
	assert.Equal(t, 11, *updated.PriorityOverride)

	inactive := false
	updated, err = en.UpdateAssignment(ctx, a.ID, AssignmentUpdate{Active: &inactive, ClearPriorityOverride: true})
	require.NoError(t, err)
	assert.Nil(t, updated.PriorityOverride)
	assert.False(t, updated.Active)

	list, err := en.ListAssignments(ctx, AssignmentFilter{ScopeType: ScopeChannelProduct, ScopeID: "CP-9"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, a.ID, list[0].ID)

	neg := -1
	_, err = en.UpdateAssignment(ctx, a.ID, AssignmentUpdate{PriorityOverride: &neg})
	assert.True(t, ierr.IsValidation(err))
	_, err = en.UpdateAssignment(ctx, "nope", AssignmentUpdate{})
	assert.True(t, ierr.IsNotFound(err))
}

func TestEngineRevalidate(t *testing.T) {
	ctx := context.Background()
	en, store := newTestEngine(t)
	require.NoError(t, en.AddRule(ctx, pricingRule("ok", "value", "", 0)))

	// Simulate a rule written by an older build whose contract allowed more.
	stale := pricingRule("stale", "value * legacyFactor", "", 0)
	stale.Valid = true
	require.NoError(t, store.AddRule(ctx, stale))

	changed, err := en.Revalidate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, changed)

	got, err := en.GetRule(ctx, "stale")
	require.NoError(t, err)
	assert.False(t, got.Valid)
	assert.False(t, got.Active)
	assert.Contains(t, got.ValidationError, "legacyFactor")

	changed, err = en.Revalidate(ctx)
	require.NoError(t, err)
	assert.Zero(t, changed)
}

func TestEngineListRules(t *testing.T) {
	ctx := context.Background()
	en, _ := newTestEngine(t)
	require.NoError(t, en.AddRule(ctx, pricingRule("p1", "value", "", 0)))
	require.NoError(t, en.AddRule(ctx, &Rule{Code: "s1", Name: "s1", Type: TypeStockPriority, Category: CategoryPriority,
		Expression: "clamp(value - distance, 0, 100)", Active: true}))

	pricing, err := en.ListRules(ctx, RuleFilter{Type: TypePricing})
	require.NoError(t, err)
	require.Len(t, pricing, 1)
	assert.Equal(t, "p1", pricing[0].Code)

	all, err := en.ListRules(ctx, RuleFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
