package rules

import (
	"strings"

	"github.com/scau009/dwlite-sub002/expression"
)

// TestRequest is a dry run of an expression against a sample context.
type TestRequest struct {
	Expression          string             `json:"expression"`
	ConditionExpression string             `json:"conditionExpression,omitempty"`
	Type                Type               `json:"type"`
	Context             expression.Context `json:"testContext"`
}

// TestResult reports the condition outcome, if a condition was given, and
// the expression value, if it was reached. Error is set on any failure.
type TestResult struct {
	ConditionResult *bool  `json:"conditionResult"`
	Result          any    `json:"result"`
	Error           string `json:"error,omitempty"`
}

// Tester evaluates ad-hoc expressions for rule authors. It never touches
// stores.
type Tester struct {
	programs *expression.ProgramCache
}

// NewTester creates a Tester. A nil cache disables parse caching.
func NewTester(programs *expression.ProgramCache) *Tester {
	return &Tester{programs: programs}
}

func (t *Tester) parse(source string) (expression.Node, error) {
	if t.programs != nil {
		return t.programs.Parse(source)
	}
	return expression.Parse(source)
}

// Test validates the expression and condition for req.Type, then evaluates
// the condition and, unless it is false, the expression.
func (t *Tester) Test(req TestRequest) TestResult {
	if !req.Type.Valid() {
		return TestResult{Error: "unknown rule type '" + string(req.Type) + "'"}
	}
	if res := Validate(req.Expression, req.Type); !res.Valid {
		return TestResult{Error: "expression: " + res.Error}
	}
	hasCondition := strings.TrimSpace(req.ConditionExpression) != ""
	if hasCondition {
		if res := ValidateCondition(req.ConditionExpression, req.Type); !res.Valid {
			return TestResult{Error: "condition: " + res.Error}
		}
	}

	var out TestResult
	if hasCondition {
		n, err := t.parse(req.ConditionExpression)
		if err != nil {
			return TestResult{Error: "condition: " + err.Error()}
		}
		v, err := expression.Evaluate(n, req.Context)
		if err != nil {
			return TestResult{Error: "condition: " + err.Error()}
		}
		b, ok := v.(expression.Bool)
		if !ok {
			return TestResult{Error: "condition: must evaluate to boolean, got " + v.Kind().String()}
		}
		pass := bool(b)
		out.ConditionResult = &pass
		if !pass {
			return out
		}
	}

	n, err := t.parse(req.Expression)
	if err != nil {
		out.Error = "expression: " + err.Error()
		return out
	}
	v, err := expression.Evaluate(n, req.Context)
	if err != nil {
		out.Error = "expression: " + err.Error()
		return out
	}
	out.Result = v.Interface()
	return out
}
