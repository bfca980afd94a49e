package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/scau009/dwlite-sub002/expression"
	"github.com/scau009/dwlite-sub002/rules"
	"github.com/scau009/dwlite-sub002/rules/facts"
)

// contextFlags reads an evaluation context given inline or from a file.
// Both accept YAML, which covers JSON objects.
type contextFlags struct {
	inline string
	file   string
}

func (c *contextFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&c.inline, "context", "c", "", `evaluation context, e.g. '{"value": 100, "brand": "Nike"}'`)
	cmd.Flags().StringVar(&c.file, "context-file", "", "YAML or JSON file holding the evaluation context")
	cmd.MarkFlagsMutuallyExclusive("context", "context-file")
}

func (c *contextFlags) source() (string, error) {
	if c.file == "" {
		return c.inline, nil
	}
	data, err := os.ReadFile(c.file)
	if err != nil {
		return "", fmt.Errorf("failed to read context file: %w", err)
	}
	return string(data), nil
}

func (c *contextFlags) load() (expression.Context, error) {
	src, err := c.source()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(src) == "" {
		return expression.Context{}, nil
	}
	var ctx expression.Context
	if err := yaml.Unmarshal([]byte(src), &ctx); err != nil {
		return nil, fmt.Errorf("context must be a mapping of variable names to values: %w", err)
	}
	if ctx == nil {
		ctx = expression.Context{}
	}
	return ctx, nil
}

// loadTyped decodes the context through the typed facts of t, so only the
// variables of t with their declared kinds are accepted.
func (c *contextFlags) loadTyped(t rules.Type) (expression.Context, error) {
	src, err := c.source()
	if err != nil {
		return nil, err
	}
	f, err := facts.Decode(t, []byte(src))
	if err != nil {
		return nil, err
	}
	return f.Context(), nil
}
