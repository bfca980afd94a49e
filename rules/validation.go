package rules

import (
	"regexp"
	"strings"

	ierr "github.com/scau009/dwlite-sub002/internal/errors"
)

const (
	maxCodeLength = 64
	maxNameLength = 200
)

var codePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_.-]*$`)

// ValidateCode checks a rule code: 1..64 characters, starting with a letter
// or underscore, followed by letters, digits, '_', '.' or '-'.
func ValidateCode(code string) error {
	if len(code) == 0 {
		return ierr.NewError("rule code cannot be empty").Mark(ierr.ErrValidation)
	}
	if len(code) > maxCodeLength {
		return ierr.NewErrorf("rule code length %d exceeds maximum of %d characters", len(code), maxCodeLength).
			Mark(ierr.ErrValidation)
	}
	if !codePattern.MatchString(code) {
		return ierr.NewErrorf("invalid rule code %q", code).
			WithHint("Rule codes start with a letter or underscore, followed by letters, digits, '_', '.' or '-'").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// validateRuleFields checks everything about a rule except its expressions.
func validateRuleFields(r *Rule) error {
	if err := ValidateCode(r.Code); err != nil {
		return err
	}
	name := strings.TrimSpace(r.Name)
	if name == "" {
		return ierr.NewErrorf("rule %s: name cannot be empty", r.Code).Mark(ierr.ErrValidation)
	}
	if len(name) > maxNameLength {
		return ierr.NewErrorf("rule %s: name length %d exceeds maximum of %d characters", r.Code, len(name), maxNameLength).
			Mark(ierr.ErrValidation)
	}
	if !r.Type.Valid() {
		return ierr.NewErrorf("rule %s: unknown rule type %q", r.Code, r.Type).
			WithHintf("Rule type must be one of %v", Types()).
			Mark(ierr.ErrValidation)
	}
	if !r.Type.Allows(r.Category) {
		return ierr.NewErrorf("rule %s: category %q is not allowed for type %s", r.Code, r.Category, r.Type).
			WithHintf("Allowed categories: %v", r.Type.Categories()).
			Mark(ierr.ErrValidation)
	}
	if r.Priority < 0 {
		return ierr.NewErrorf("rule %s: priority must be >= 0, got %d", r.Code, r.Priority).Mark(ierr.ErrValidation)
	}
	return nil
}

// checkExpressions validates the expression and condition against the
// type's contract and records the outcome on r.
func checkExpressions(r *Rule) {
	r.Valid, r.ValidationError = true, ""
	if res := Validate(r.Expression, r.Type); !res.Valid {
		r.Valid, r.ValidationError = false, "expression: "+res.Error
		return
	}
	if r.HasCondition() {
		if res := ValidateCondition(r.ConditionExpression, r.Type); !res.Valid {
			r.Valid, r.ValidationError = false, "condition: "+res.Error
		}
	}
}

func validateAssignmentFields(a *Assignment) error {
	if err := ValidateCode(a.RuleCode); err != nil {
		return err
	}
	if !a.ScopeType.Valid() {
		return ierr.NewErrorf("unknown scope type %q", a.ScopeType).
			WithHintf("Scope type must be one of %v", []ScopeType{ScopeMerchant, ScopeChannelProduct}).
			Mark(ierr.ErrValidation)
	}
	if strings.TrimSpace(a.ScopeID) == "" {
		return ierr.NewError("scope id cannot be empty").Mark(ierr.ErrValidation)
	}
	if a.PriorityOverride != nil && *a.PriorityOverride < 0 {
		return ierr.NewErrorf("priority override must be >= 0, got %d", *a.PriorityOverride).Mark(ierr.ErrValidation)
	}
	return nil
}
