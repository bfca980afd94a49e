package rules

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/scau009/dwlite-sub002/expression"
	ierr "github.com/scau009/dwlite-sub002/internal/errors"
	"github.com/scau009/dwlite-sub002/internal/logger"
)

const tracerName = "github.com/scau009/dwlite-sub002/rules"

// DefaultBatchConcurrency bounds ResolveMany when no option is given.
const DefaultBatchConcurrency = 8

// Engine administers rules and assignments and resolves them.
// It is safe for concurrent use.
type Engine struct {
	store            Store
	cache            CandidateCache
	programs         *expression.ProgramCache
	log              *logger.Logger
	tracer           trace.Tracer
	batchConcurrency int

	// generation is bumped before every flush. A fill rechecks it after
	// writing so a lookup that raced with a mutation never leaves stale
	// candidates behind.
	generation atomic.Uint64
}

// Option configures an Engine.
type Option func(*Engine)

// WithCache replaces the default candidate cache.
func WithCache(c CandidateCache) Option {
	return func(en *Engine) { en.cache = c }
}

// WithCacheTTL uses an in-memory candidate cache with the given TTL.
func WithCacheTTL(ttl time.Duration) Option {
	return func(en *Engine) { en.cache = NewInMemoryCandidateCache(CacheConfig{TTL: ttl}) }
}

// WithProgramCache shares a parsed-expression cache.
func WithProgramCache(pc *expression.ProgramCache) Option {
	return func(en *Engine) { en.programs = pc }
}

func WithLogger(l *logger.Logger) Option {
	return func(en *Engine) { en.log = l }
}

func WithTracer(t trace.Tracer) Option {
	return func(en *Engine) { en.tracer = t }
}

// WithBatchConcurrency bounds the goroutines used by ResolveMany.
func WithBatchConcurrency(n int) Option {
	return func(en *Engine) {
		if n > 0 {
			en.batchConcurrency = n
		}
	}
}

// NewEngine creates an engine over store.
func NewEngine(store Store, opts ...Option) *Engine {
	en := &Engine{
		store:            store,
		cache:            NewInMemoryCandidateCache(DefaultCacheConfig()),
		programs:         expression.NewProgramCache(expression.DefaultProgramTTL),
		log:              logger.L,
		tracer:           otel.Tracer(tracerName),
		batchConcurrency: DefaultBatchConcurrency,
	}
	for _, opt := range opts {
		opt(en)
	}
	if en.log == nil {
		en.log = logger.NewNop()
	}
	return en
}

func (en *Engine) invalidate() {
	en.generation.Add(1)
	en.cache.Invalidate()
}

// AddRule validates and stores r. A rule whose expression or condition does
// not validate may only be stored inactive; it is kept with Valid=false and
// the validation message.
func (en *Engine) AddRule(ctx context.Context, r *Rule) error {
	r.ConditionExpression = strings.TrimSpace(r.ConditionExpression)
	if err := validateRuleFields(r); err != nil {
		return err
	}
	checkExpressions(r)
	if r.Active && !r.Valid {
		return ierr.NewErrorf("rule %s is invalid and cannot be active", r.Code).
			WithHint(r.ValidationError).
			Mark(ierr.ErrValidation)
	}
	if err := en.store.AddRule(ctx, r); err != nil {
		return err
	}
	en.invalidate()
	en.log.Infow("rule added", "rule_code", r.Code, "type", r.Type, "active", r.Active, "valid", r.Valid)
	return nil
}

// RuleUpdate lists the mutable fields of a rule. Nil fields are unchanged.
// Code and Type are immutable.
type RuleUpdate struct {
	Name                *string
	Category            *Category
	Expression          *string
	ConditionExpression *string
	Priority            *int
	Active              *bool
}

// UpdateRule applies u to the rule with code and re-validates it.
func (en *Engine) UpdateRule(ctx context.Context, code string, u RuleUpdate) (*Rule, error) {
	r, err := en.store.GetRule(ctx, code)
	if err != nil {
		return nil, err
	}
	if u.Name != nil {
		r.Name = *u.Name
	}
	if u.Category != nil {
		r.Category = *u.Category
	}
	if u.Expression != nil {
		r.Expression = *u.Expression
	}
	if u.ConditionExpression != nil {
		r.ConditionExpression = strings.TrimSpace(*u.ConditionExpression)
	}
	if u.Priority != nil {
		r.Priority = *u.Priority
	}
	if u.Active != nil {
		r.Active = *u.Active
	}
	if err := validateRuleFields(r); err != nil {
		return nil, err
	}
	checkExpressions(r)
	if r.Active && !r.Valid {
		return nil, ierr.NewErrorf("rule %s is invalid and cannot be active", r.Code).
			WithHint(r.ValidationError).
			Mark(ierr.ErrValidation)
	}
	if err := en.store.UpdateRule(ctx, r); err != nil {
		return nil, err
	}
	en.invalidate()
	en.log.Infow("rule updated", "rule_code", r.Code, "active", r.Active, "valid", r.Valid)
	return r, nil
}

// SetRuleActive activates or retires a rule. Activation requires a valid rule.
func (en *Engine) SetRuleActive(ctx context.Context, code string, active bool) (*Rule, error) {
	return en.UpdateRule(ctx, code, RuleUpdate{Active: &active})
}

// DeleteRule removes a rule that has no assignments. Rules still assigned
// anywhere must be retired with SetRuleActive instead.
func (en *Engine) DeleteRule(ctx context.Context, code string) error {
	assigned, err := en.store.ListAssignments(ctx, AssignmentFilter{RuleCode: code})
	if err != nil {
		return err
	}
	if len(assigned) > 0 {
		return ierr.NewErrorf("rule %s has %d assignment(s)", code, len(assigned)).
			WithHint("Remove its assignments or deactivate the rule instead").
			Mark(ierr.ErrInvalidOperation)
	}
	if err := en.store.DeleteRule(ctx, code); err != nil {
		return err
	}
	en.invalidate()
	en.log.Infow("rule deleted", "rule_code", code)
	return nil
}

func (en *Engine) GetRule(ctx context.Context, code string) (*Rule, error) {
	return en.store.GetRule(ctx, code)
}

func (en *Engine) ListRules(ctx context.Context, filter RuleFilter) ([]*Rule, error) {
	return en.store.ListRules(ctx, filter)
}

// Assign binds a rule to a scope. The rule must exist; it does not need to
// be active.
func (en *Engine) Assign(ctx context.Context, a *Assignment) error {
	if err := validateAssignmentFields(a); err != nil {
		return err
	}
	if _, err := en.store.GetRule(ctx, a.RuleCode); err != nil {
		return err
	}
	if err := en.store.AddAssignment(ctx, a); err != nil {
		return err
	}
	en.invalidate()
	en.log.Infow("rule assigned", "rule_code", a.RuleCode, "scope_type", a.ScopeType, "scope_id", a.ScopeID, "assignment_id", a.ID)
	return nil
}

// AssignmentUpdate lists the mutable fields of an assignment.
type AssignmentUpdate struct {
	Active                *bool
	PriorityOverride      *int
	ClearPriorityOverride bool
}

func (en *Engine) UpdateAssignment(ctx context.Context, id string, u AssignmentUpdate) (*Assignment, error) {
	a, err := en.store.GetAssignment(ctx, id)
	if err != nil {
		return nil, err
	}
	if u.Active != nil {
		a.Active = *u.Active
	}
	if u.ClearPriorityOverride {
		a.PriorityOverride = nil
	} else if u.PriorityOverride != nil {
		p := *u.PriorityOverride
		a.PriorityOverride = &p
	}
	if err := validateAssignmentFields(a); err != nil {
		return nil, err
	}
	if err := en.store.UpdateAssignment(ctx, a); err != nil {
		return nil, err
	}
	en.invalidate()
	return a, nil
}

func (en *Engine) Unassign(ctx context.Context, id string) error {
	if err := en.store.DeleteAssignment(ctx, id); err != nil {
		return err
	}
	en.invalidate()
	en.log.Infow("assignment removed", "assignment_id", id)
	return nil
}

func (en *Engine) ListAssignments(ctx context.Context, filter AssignmentFilter) ([]*Assignment, error) {
	return en.store.ListAssignments(ctx, filter)
}

// Revalidate re-checks every stored rule against the current contracts and
// persists changed outcomes. A rule that no longer validates is kept but
// stops being evaluable. It returns the number of rules that changed.
func (en *Engine) Revalidate(ctx context.Context) (int, error) {
	all, err := en.store.ListRules(ctx, RuleFilter{})
	if err != nil {
		return 0, err
	}
	changed := 0
	for _, r := range all {
		wasValid, wasMsg := r.Valid, r.ValidationError
		checkExpressions(r)
		if r.Valid == wasValid && r.ValidationError == wasMsg {
			continue
		}
		if !r.Valid {
			en.log.Warnw("stored rule no longer validates", "rule_code", r.Code, "error", r.ValidationError)
			r.Active = false
		}
		if err := en.store.UpdateRule(ctx, r); err != nil {
			return changed, err
		}
		changed++
	}
	if changed > 0 {
		en.invalidate()
	}
	return changed, nil
}
