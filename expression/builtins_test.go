package expression

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltinApply(t *testing.T) {
	tests := []struct {
		fn   Builtin
		args []float64
		want float64
	}{
		{BuiltinMarkup, []float64{100, 0.2}, 120},
		{BuiltinDiscount, []float64{200, 0.25}, 150},
		{BuiltinRatio, []float64{200, 0.05}, 10},
		{BuiltinClamp, []float64{-3, 0, 10}, 0},
		{BuiltinClamp, []float64{5, 5, 5}, 5},
		{BuiltinMin, []float64{-1, 1}, -1},
		{BuiltinMax, []float64{-1, 1}, 1},
		{BuiltinAbs, []float64{-0.5}, 0.5},
		{BuiltinRound, []float64{2.5, 0}, 3},
		{BuiltinRound, []float64{-2.5, 0}, -3},
		{BuiltinRound, []float64{1.005, 2}, 1.01},
		{BuiltinFloor, []float64{-1.5}, -2},
		{BuiltinCeil, []float64{-1.5}, -1},
	}
	for _, tt := range tests {
		t.Run(tt.fn.String(), func(t *testing.T) {
			args := make([]Value, len(tt.args))
			for i, a := range tt.args {
				args[i] = Number(a)
			}
			got, err := tt.fn.Apply(args)
			require.NoError(t, err)
			assert.Equal(t, Number(tt.want), got)
		})
	}
}

func TestBuiltinApplyErrors(t *testing.T) {
	_, err := BuiltinAbs.Apply([]Value{String("x")})
	kind, _ := EvalErrorKindOf(err)
	assert.Equal(t, ArgumentError, kind)

	_, err = BuiltinMin.Apply([]Value{Number(1)})
	kind, _ = EvalErrorKindOf(err)
	assert.Equal(t, ArgumentError, kind)

	_, err = BuiltinUnknown.Apply(nil)
	kind, _ = EvalErrorKindOf(err)
	assert.Equal(t, UnknownFunction, kind)

	_, err = BuiltinMarkup.Apply([]Value{Number(1e308), Number(10)})
	kind, _ = EvalErrorKindOf(err)
	assert.Equal(t, ArithmeticError, kind)
}

func TestBuiltinRegistry(t *testing.T) {
	all := Builtins()
	require.Len(t, all, 10)
	for _, b := range all {
		got, ok := LookupBuiltin(b.String())
		assert.True(t, ok)
		assert.Equal(t, b, got)
		sig := b.Signature()
		assert.NotEmpty(t, sig.Description)
		assert.NotEmpty(t, sig.Example)
		assert.Equal(t, KindNumber, sig.Returns)
	}
	_, ok := LookupBuiltin("sqrt")
	assert.False(t, ok)

	assert.Equal(t, "markup(value: number, rate: number) -> number", BuiltinMarkup.Signature().String())
	assert.Equal(t, "clamp(value: number, min: number, max: number) -> number", BuiltinClamp.Signature().String())

	sig := BuiltinMarkup.Signature()
	sig.Params[0].Name = "changed"
	assert.Equal(t, "value", BuiltinMarkup.Signature().Params[0].Name)
}
