package main

import (
	"github.com/scau009/dwlite-sub002/expression"
	"github.com/scau009/dwlite-sub002/rules"
)

// API request and response models

// ValidateRequest is the body of POST /rules/validate
type ValidateRequest struct {
	Expression string     `json:"expression" example:"markup(value, 0.2)"`
	Type       rules.Type `json:"type" example:"pricing" validate:"required"`
}

// TestRequest is the body of POST /rules/test
type TestRequest struct {
	Expression          string             `json:"expression" example:"value * 1.1"`
	ConditionExpression string             `json:"conditionExpression,omitempty" example:"value > 100"`
	Type                rules.Type         `json:"type" example:"pricing" validate:"required"`
	TestContext         expression.Context `json:"testContext"`
}

// CreateRuleRequest is the body of POST /rules
type CreateRuleRequest struct {
	Code                string         `json:"code" example:"nike-markup" validate:"required,max=64"`
	Name                string         `json:"name" example:"Nike markup" validate:"required,max=200"`
	Type                rules.Type     `json:"type" example:"pricing" validate:"required"`
	Category            rules.Category `json:"category" example:"markup" validate:"required"`
	Expression          string         `json:"expression" example:"markup(value, 0.2)" validate:"required"`
	ConditionExpression string         `json:"conditionExpression,omitempty" example:"brand == 'Nike'"`
	Priority            *int           `json:"priority,omitempty" example:"5" validate:"omitempty,gte=0"`
	Active              *bool          `json:"isActive,omitempty" example:"true"`
}

// UpdateRuleRequest is the body of PUT /rules/{code}. Omitted fields are unchanged.
type UpdateRuleRequest struct {
	Name                *string         `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Category            *rules.Category `json:"category,omitempty"`
	Expression          *string         `json:"expression,omitempty"`
	ConditionExpression *string         `json:"conditionExpression,omitempty"`
	Priority            *int            `json:"priority,omitempty" validate:"omitempty,gte=0"`
	Active              *bool           `json:"isActive,omitempty"`
}

func (r UpdateRuleRequest) toUpdate() rules.RuleUpdate {
	return rules.RuleUpdate{
		Name:                r.Name,
		Category:            r.Category,
		Expression:          r.Expression,
		ConditionExpression: r.ConditionExpression,
		Priority:            r.Priority,
		Active:              r.Active,
	}
}

// CreateAssignmentRequest is the body of POST /rules/{code}/assignments
type CreateAssignmentRequest struct {
	ScopeType        rules.ScopeType `json:"scopeType" example:"merchant" validate:"required,oneof=merchant channel_product"`
	ScopeID          string          `json:"scopeId" example:"M1" validate:"required"`
	PriorityOverride *int            `json:"priorityOverride,omitempty" validate:"omitempty,gte=0"`
	Active           *bool           `json:"isActive,omitempty"`
}

// UpdateAssignmentRequest is the body of PATCH /assignments/{id}
type UpdateAssignmentRequest struct {
	Active                *bool `json:"isActive,omitempty"`
	PriorityOverride      *int  `json:"priorityOverride,omitempty" validate:"omitempty,gte=0"`
	ClearPriorityOverride bool  `json:"clearPriorityOverride,omitempty"`
}

// RulesListResponse is returned by GET /rules
type RulesListResponse struct {
	Rules []*rules.Rule `json:"rules"`
}

// AssignmentsListResponse is returned by GET /assignments
type AssignmentsListResponse struct {
	Assignments []*rules.Assignment `json:"assignments"`
}

// RevalidateResponse is returned by POST /rules/revalidate
type RevalidateResponse struct {
	Changed int `json:"changed"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string         `json:"error" example:"rule nike-markup not found"`
	Hint    string         `json:"hint,omitempty" example:"Check the rule code"`
	Details map[string]any `json:"details,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status   string           `json:"status" example:"healthy"`
	Storage  string           `json:"storage" example:"memory"`
	Error    string           `json:"error,omitempty"`
	Counters map[string]int64 `json:"counters"`
}
