package rules

import (
	"context"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	ierr "github.com/scau009/dwlite-sub002/internal/errors"
)

// Fixtures is a YAML document of rules and assignments used to seed a store.
//
//	rules:
//	  - code: nike-markup
//	    name: Nike markup
//	    type: pricing
//	    category: markup
//	    expression: markup(value, 0.2)
//	    condition: brand == 'Nike'
//	    priority: 5
//	assignments:
//	  - rule: nike-markup
//	    scopeType: merchant
//	    scopeId: M1
type Fixtures struct {
	Rules       []FixtureRule       `yaml:"rules"`
	Assignments []FixtureAssignment `yaml:"assignments"`
}

type FixtureRule struct {
	Code       string   `yaml:"code"`
	Name       string   `yaml:"name"`
	Type       Type     `yaml:"type"`
	Category   Category `yaml:"category"`
	Expression string   `yaml:"expression"`
	Condition  string   `yaml:"condition"`
	Priority   int      `yaml:"priority"`
	// Active defaults to true.
	Active *bool `yaml:"active"`
}

type FixtureAssignment struct {
	Rule             string    `yaml:"rule"`
	ScopeType        ScopeType `yaml:"scopeType"`
	ScopeID          string    `yaml:"scopeId"`
	PriorityOverride *int      `yaml:"priorityOverride"`
	Active           *bool     `yaml:"active"`
}

// ParseFixtures decodes a fixtures document. Unknown fields are rejected.
func ParseFixtures(r io.Reader) (*Fixtures, error) {
	var f Fixtures
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && err != io.EOF {
		return nil, ierr.WithError(err).
			WithHint("Fixtures must be a YAML document with 'rules' and 'assignments' lists").
			Mark(ierr.ErrValidation)
	}
	return &f, nil
}

// LoadFixturesFile reads a fixtures file and applies it through en.
func LoadFixturesFile(ctx context.Context, en *Engine, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return ierr.WithError(err).WithMessage("failed to open fixtures " + path).Mark(ierr.ErrSystem)
	}
	defer file.Close()
	return LoadFixtures(ctx, en, file)
}

// LoadFixtures decodes fixtures from r and adds every rule and assignment
// through en, so the usual validation applies.
func LoadFixtures(ctx context.Context, en *Engine, r io.Reader) error {
	f, err := ParseFixtures(r)
	if err != nil {
		return err
	}
	return f.Apply(ctx, en)
}

// Apply adds the fixtures' rules, then their assignments.
func (f *Fixtures) Apply(ctx context.Context, en *Engine) error {
	for _, fr := range f.Rules {
		rule := &Rule{
			Code:                fr.Code,
			Name:                fr.Name,
			Type:                fr.Type,
			Category:            fr.Category,
			Expression:          fr.Expression,
			ConditionExpression: fr.Condition,
			Priority:            fr.Priority,
			Active:              fr.Active == nil || *fr.Active,
		}
		if rule.Name == "" {
			rule.Name = rule.Code
		}
		if err := en.AddRule(ctx, rule); err != nil {
			return err
		}
	}
	for _, fa := range f.Assignments {
		a := &Assignment{
			RuleCode:         fa.Rule,
			ScopeType:        fa.ScopeType,
			ScopeID:          fa.ScopeID,
			PriorityOverride: fa.PriorityOverride,
			Active:           fa.Active == nil || *fa.Active,
		}
		if err := en.Assign(ctx, a); err != nil {
			return err
		}
	}
	return nil
}
