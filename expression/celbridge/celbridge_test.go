package celbridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scau009/dwlite-sub002/expression"
)

func TestTranspile(t *testing.T) {
	tests := []struct {
		source string
		want   string
	}{
		{"markup(value, 0.2)", "markup(value, 0.2)"},
		{"1 + 2 * 3", "(1.0 + (2.0 * 3.0))"},
		{"value % 7", "fmod(value, 7.0)"},
		{"-value", "-(value)"},
		{"brand == 'Nike' && !isNew", `((brand == "Nike") && !(isNew))`},
		{`'say "hi"'`, `"say \"hi\""`},
	}
	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			got, err := TranspileSource(tt.source)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTranspileErrors(t *testing.T) {
	_, err := TranspileSource("in + 1")
	assert.Error(t, err)
	_, err = TranspileSource("sqrt(4)")
	assert.Error(t, err)
	_, err = TranspileSource("(1")
	assert.Error(t, err)
}

func testContract(t *testing.T) *expression.Contract {
	t.Helper()
	c, err := expression.NewContract([]expression.Variable{
		{Name: "value", Kind: expression.KindNumber},
		{Name: "cost", Kind: expression.KindNumber},
		{Name: "brand", Kind: expression.KindString},
		{Name: "isNew", Kind: expression.KindBool},
	}, expression.Builtins())
	require.NoError(t, err)
	return c
}

// The native evaluator and CEL must agree on every expression both accept.
func TestDifferentialAgainstNativeEvaluator(t *testing.T) {
	env, err := NewEnv(testContract(t))
	require.NoError(t, err)

	contexts := []expression.Context{
		{"value": 100.0, "cost": 60.0, "brand": "Nike", "isNew": true},
		{"value": 12.5, "cost": 3, "brand": "Puma", "isNew": false},
		{"value": -40.0, "cost": 0.1, "brand": "", "isNew": true},
	}
	sources := []string{
		"markup(value, 0.2)",
		"discount(value, 0.15) - cost",
		"clamp(value * 1.5, 0, 120)",
		"max(min(value, cost), 1) + abs(value)",
		"round(value / 3, 2)",
		"floor(value / 7) + ceil(cost)",
		"value % 7",
		"ratio(cost, 4)",
		"brand == 'Nike' && value > 50",
		"!isNew || cost >= 1",
		"brand + '-' + brand",
		"brand < 'O'",
		"-(value - cost) * 2",
	}
	for _, src := range sources {
		prg, err := env.Compile(src)
		require.NoError(t, err, src)
		for _, ctx := range contexts {
			want, err := expression.EvaluateSource(src, ctx)
			require.NoError(t, err, src)
			got, err := prg.Eval(ctx)
			require.NoError(t, err, src)
			require.Equal(t, want.Kind(), got.Kind(), src)
			if n, ok := want.(expression.Number); ok {
				assert.InDelta(t, float64(n), float64(got.(expression.Number)), 1e-9, "%s with %v", src, ctx)
				continue
			}
			assert.Equal(t, want, got, src)
		}
	}
}

func TestEnvRejectsUndeclared(t *testing.T) {
	c := expression.MustContract([]expression.Variable{{Name: "value", Kind: expression.KindNumber}},
		[]expression.Builtin{expression.BuiltinMarkup})
	env, err := NewEnv(c)
	require.NoError(t, err)

	_, err = env.Compile("cost + 1")
	assert.Error(t, err)
	_, err = env.Compile("discount(value, 0.1)")
	assert.Error(t, err)

	prg, err := env.Compile("markup(value, 0.5)")
	require.NoError(t, err)
	assert.Equal(t, "markup(value, 0.5)", prg.Source)
}

func TestEvalPropagatesBuiltinErrors(t *testing.T) {
	env, err := NewEnv(testContract(t))
	require.NoError(t, err)
	prg, err := env.Compile("clamp(value, 10, 1)")
	require.NoError(t, err)
	_, err = prg.Eval(expression.Context{"value": 5.0})
	assert.Error(t, err)

	prg, err = env.Compile("value % 0")
	require.NoError(t, err)
	_, err = prg.Eval(expression.Context{"value": 5.0})
	assert.Error(t, err)
}
