package rules

import "fmt"

// Phase names the part of a rule that failed.
type Phase string

const (
	PhaseCondition  Phase = "condition"
	PhaseExpression Phase = "expression"
)

// EvaluationFailure reports a rule that was selected, or whose condition was
// consulted, and could not be evaluated. Resolution stops instead of
// falling back to a default.
type EvaluationFailure struct {
	RuleCode string
	Phase    Phase
	Err      error
}

func (e *EvaluationFailure) Error() string {
	return fmt.Sprintf("rule %s: %s evaluation failed: %v", e.RuleCode, e.Phase, e.Err)
}

func (e *EvaluationFailure) Unwrap() error { return e.Err }
