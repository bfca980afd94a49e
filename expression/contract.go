package expression

import (
	"regexp"

	"github.com/cockroachdb/errors"
)

var identifierPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// IsIdentifier reports whether name is a legal variable name.
func IsIdentifier(name string) bool {
	return identifierPattern.MatchString(name) && name != "true" && name != "false"
}

// Variable is a declared context variable.
type Variable struct {
	Name        string
	Kind        Kind
	Description string
}

// Contract lists the variables and builtins available to an expression.
// It is immutable once built.
type Contract struct {
	vars      []Variable
	byName    map[string]int
	functions []Builtin
	allowed   [builtinCount]bool
}

// NewContract validates and builds a contract. Variable names must be
// identifiers and unique; kinds and builtins must be valid.
func NewContract(vars []Variable, functions []Builtin) (*Contract, error) {
	c := &Contract{byName: make(map[string]int, len(vars))}
	for _, v := range vars {
		if !IsIdentifier(v.Name) {
			return nil, errors.Newf("invalid variable name %q", v.Name)
		}
		if _, dup := c.byName[v.Name]; dup {
			return nil, errors.Newf("duplicate variable %q", v.Name)
		}
		if v.Kind == KindInvalid || v.Kind > KindBool {
			return nil, errors.Newf("variable %q has no valid kind", v.Name)
		}
		c.byName[v.Name] = len(c.vars)
		c.vars = append(c.vars, v)
	}
	for _, b := range functions {
		if !b.Valid() {
			return nil, errors.Newf("invalid builtin %d", b)
		}
		if c.allowed[b] {
			continue
		}
		c.allowed[b] = true
		c.functions = append(c.functions, b)
	}
	return c, nil
}

// MustContract is like NewContract but panics on error.
func MustContract(vars []Variable, functions []Builtin) *Contract {
	c, err := NewContract(vars, functions)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Contract) Variable(name string) (Variable, bool) {
	i, ok := c.byName[name]
	if !ok {
		return Variable{}, false
	}
	return c.vars[i], true
}

// Variables returns the declared variables in declaration order.
func (c *Contract) Variables() []Variable {
	out := make([]Variable, len(c.vars))
	copy(out, c.vars)
	return out
}

func (c *Contract) HasFunction(b Builtin) bool {
	return b.Valid() && c.allowed[b]
}

// Functions returns the allowed builtins in declaration order.
func (c *Contract) Functions() []Builtin {
	out := make([]Builtin, len(c.functions))
	copy(out, c.functions)
	return out
}
