package rules

import (
	"github.com/samber/lo"

	"github.com/scau009/dwlite-sub002/expression"
	ierr "github.com/scau009/dwlite-sub002/internal/errors"
)

type VariableDoc struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

type FunctionDoc struct {
	Name        string `json:"name"`
	Signature   string `json:"signature"`
	Description string `json:"description"`
	Example     string `json:"example"`
}

// ReferenceDoc lists what rule authors may use for a rule type.
type ReferenceDoc struct {
	Type       Type          `json:"type"`
	Categories []Category    `json:"categories"`
	Variables  []VariableDoc `json:"variables"`
	Functions  []FunctionDoc `json:"functions"`
}

// Reference documents the variables and functions available to rules of type t.
func Reference(t Type) (*ReferenceDoc, error) {
	c, ok := contracts[t]
	if !ok {
		return nil, ierr.NewErrorf("unknown rule type %q", t).
			WithHintf("Rule type must be one of %v", Types()).
			Mark(ierr.ErrValidation)
	}
	return &ReferenceDoc{
		Type:       t,
		Categories: t.Categories(),
		Variables: lo.Map(c.Variables(), func(v expression.Variable, _ int) VariableDoc {
			return VariableDoc{Name: v.Name, Type: v.Kind.String(), Description: v.Description}
		}),
		Functions: lo.Map(c.Functions(), func(b expression.Builtin, _ int) FunctionDoc {
			sig := b.Signature()
			return FunctionDoc{Name: sig.Name, Signature: sig.String(), Description: sig.Description, Example: sig.Example}
		}),
	}, nil
}
