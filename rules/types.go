package rules

import (
	"cmp"
	"slices"
	"strings"
	"time"
)

// Type is the business computation a rule feeds.
type Type string

const (
	TypePricing       Type = "pricing"
	TypeStockPriority Type = "stock_priority"
	TypeSettlementFee Type = "settlement_fee"
)

// Types lists every rule type.
func Types() []Type {
	return []Type{TypePricing, TypeStockPriority, TypeSettlementFee}
}

func (t Type) Valid() bool {
	return slices.Contains(Types(), t)
}

// Category refines a rule within its Type.
type Category string

const (
	CategoryMarkup   Category = "markup"
	CategoryDiscount Category = "discount"
	CategoryPriority Category = "priority"
	CategoryFeeRate  Category = "fee_rate"
)

var categoriesByType = map[Type][]Category{
	TypePricing:       {CategoryMarkup, CategoryDiscount},
	TypeStockPriority: {CategoryPriority},
	TypeSettlementFee: {CategoryFeeRate},
}

// Categories returns the categories allowed for t.
func (t Type) Categories() []Category {
	return slices.Clone(categoriesByType[t])
}

// Allows reports whether c belongs to t.
func (t Type) Allows(c Category) bool {
	return slices.Contains(categoriesByType[t], c)
}

// ScopeType is the kind of entity an assignment binds a rule to.
type ScopeType string

const (
	ScopeMerchant       ScopeType = "merchant"
	ScopeChannelProduct ScopeType = "channel_product"
)

func (s ScopeType) Valid() bool {
	return s == ScopeMerchant || s == ScopeChannelProduct
}

// Rule is a stored expression with an optional gating condition.
type Rule struct {
	ID                  int64     `json:"id"`
	Code                string    `json:"code"`
	Name                string    `json:"name"`
	Type                Type      `json:"type"`
	Category            Category  `json:"category"`
	Expression          string    `json:"expression"`
	ConditionExpression string    `json:"conditionExpression,omitempty"`
	Priority            int       `json:"priority"`
	Active              bool      `json:"isActive"`
	Valid               bool      `json:"valid"`
	ValidationError     string    `json:"validationError,omitempty"`
	CreatedAt           time.Time `json:"createdAt"`
	UpdatedAt           time.Time `json:"updatedAt"`
}

// IsEvaluable reports whether the rule may take part in resolution.
func (r *Rule) IsEvaluable() bool {
	return r.Active && r.Valid
}

// HasCondition reports whether the rule is gated by a condition.
func (r *Rule) HasCondition() bool {
	return strings.TrimSpace(r.ConditionExpression) != ""
}

// Clone returns a copy of r.
func (r *Rule) Clone() *Rule {
	c := *r
	return &c
}

// Assignment binds a rule to a scope.
type Assignment struct {
	ID               string    `json:"id"`
	RuleCode         string    `json:"ruleCode"`
	ScopeType        ScopeType `json:"scopeType"`
	ScopeID          string    `json:"scopeId"`
	PriorityOverride *int      `json:"priorityOverride,omitempty"`
	Active           bool      `json:"isActive"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// EffectivePriority is the override when set, else the rule's own priority.
func (a *Assignment) EffectivePriority(r *Rule) int {
	if a.PriorityOverride != nil {
		return *a.PriorityOverride
	}
	return r.Priority
}

// Clone returns a deep copy of a.
func (a *Assignment) Clone() *Assignment {
	c := *a
	if a.PriorityOverride != nil {
		p := *a.PriorityOverride
		c.PriorityOverride = &p
	}
	return &c
}

// Candidate is an assignment joined with its rule.
type Candidate struct {
	Rule       *Rule
	Assignment *Assignment
}

func (c Candidate) EffectivePriority() int {
	return c.Assignment.EffectivePriority(c.Rule)
}

// SortCandidates orders candidates by effective priority descending, then
// by rule creation time and ID ascending.
func SortCandidates(cs []Candidate) {
	slices.SortStableFunc(cs, func(a, b Candidate) int {
		if c := cmp.Compare(b.EffectivePriority(), a.EffectivePriority()); c != 0 {
			return c
		}
		if c := a.Rule.CreatedAt.Compare(b.Rule.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.Rule.ID, b.Rule.ID)
	})
}

// RuleFilter narrows ListRules. Zero values match everything.
type RuleFilter struct {
	Type       Type
	Category   Category
	ActiveOnly bool
}

func (f RuleFilter) Matches(r *Rule) bool {
	if f.Type != "" && r.Type != f.Type {
		return false
	}
	if f.Category != "" && r.Category != f.Category {
		return false
	}
	return !f.ActiveOnly || r.Active
}

// AssignmentFilter narrows ListAssignments. Zero values match everything.
type AssignmentFilter struct {
	RuleCode  string
	ScopeType ScopeType
	ScopeID   string
}

func (f AssignmentFilter) Matches(a *Assignment) bool {
	if f.RuleCode != "" && a.RuleCode != f.RuleCode {
		return false
	}
	if f.ScopeType != "" && a.ScopeType != f.ScopeType {
		return false
	}
	return f.ScopeID == "" || a.ScopeID == f.ScopeID
}
