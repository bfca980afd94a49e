package expression

import (
	"maps"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluate(t *testing.T) {
	ctx := Context{
		"value":    200.0,
		"quantity": 3,
		"brand":    "Nike",
		"isNew":    true,
	}
	tests := []struct {
		source string
		want   Value
	}{
		{"150 * 1.1", Number(165)},
		{"0.1 + 0.2", Number(0.3)},
		{"markup(100, 0.2)", Number(120)},
		{"discount(value, 0.1)", Number(180)},
		{"value * quantity", Number(600)},
		{"7 % 3", Number(1)},
		{"-7 % 3", Number(-1)},
		{"-value + 50", Number(-150)},
		{"1 + 2 * 3", Number(7)},
		{"(1 + 2) * 3", Number(9)},
		{"'Ni' + 'ke' == brand", Bool(true)},
		{"brand + '!'", String("Nike!")},
		{"1 == '1'", Bool(false)},
		{"true != 1", Bool(true)},
		{"'abc' < 'abd'", Bool(true)},
		{"value >= 200 && value <= 200", Bool(true)},
		{"!isNew || brand == 'Adidas'", Bool(false)},
		{"false && missing", Bool(false)},
		{"true || missing > 1", Bool(true)},
		{"round(2.345, 2)", Number(2.35)},
		{"round(-2.345, 2)", Number(-2.35)},
		{"clamp(value, 0, 150)", Number(150)},
		{"max(min(value, 300), 250)", Number(250)},
		{"abs(-4.5) + floor(2.7) + ceil(2.1)", Number(9.5)},
		{"ratio(value, 0.5)", Number(100)},
	}
	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			got, err := EvaluateSource(tt.source, ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluateErrors(t *testing.T) {
	ctx := Context{"value": 10.0, "brand": "Nike", "bad": math.NaN(), "obj": []int{1}}
	tests := []struct {
		source string
		kind   EvalErrorKind
		name   string
		offset int
	}{
		{"missing + 1", UnknownVariable, "missing", 0},
		{"true && missing", UnknownVariable, "missing", 8},
		{"1 / 0", ArithmeticError, "", 2},
		{"value % 0", ArithmeticError, "", 6},
		{"value / (value - value)", ArithmeticError, "", 6},
		{"'a' + 1", TypeError, "", 4},
		{"brand * 2", TypeError, "", 6},
		{"-brand", TypeError, "", 0},
		{"!value", TypeError, "", 0},
		{"value && true", TypeError, "", 6},
		{"true && value", TypeError, "", 5},
		{"brand < 1", TypeError, "", 6},
		{"true < false", TypeError, "", 5},
		{"bad + 1", TypeError, "bad", 0},
		{"obj", TypeError, "obj", 0},
		{"nope(1)", UnknownFunction, "nope", 0},
		{"markup(1)", ArgumentError, "markup", 0},
		{"markup(brand, 1)", ArgumentError, "markup", 0},
		{"clamp(5, 10, 1)", ArgumentError, "clamp", 0},
		{"round(1, 1.5)", ArgumentError, "round", 0},
		{"round(1, 11)", ArgumentError, "round", 0},
		{"1 + round(1, -1)", ArgumentError, "round", 4},
	}
	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			_, err := EvaluateSource(tt.source, ctx)
			require.Error(t, err)
			var ee *EvalError
			require.ErrorAs(t, err, &ee)
			assert.Equal(t, tt.kind, ee.Kind)
			assert.Equal(t, tt.name, ee.Name)
			assert.Equal(t, tt.offset, ee.Offset)
		})
	}
}

func TestEvaluateDoesNotMutateContext(t *testing.T) {
	ctx := Context{"value": 100.0, "brand": "Nike"}
	before := maps.Clone(ctx)
	_, err := EvaluateSource("markup(value, 0.2) + 1", ctx)
	require.NoError(t, err)
	_, err = EvaluateSource("brand == 'Nike' && unknown", ctx)
	require.Error(t, err)
	assert.Equal(t, before, ctx)
}

func TestEvaluateDepthExceeded(t *testing.T) {
	var n Node = &NumberLit{Value: 1}
	for i := 0; i < MaxDepth+10; i++ {
		n = &Unary{Op: OpNeg, X: n}
	}
	_, err := Evaluate(n, nil)
	kind, ok := EvalErrorKindOf(err)
	require.True(t, ok)
	assert.Equal(t, DepthExceeded, kind)
}

func TestEvaluateHandBuiltCall(t *testing.T) {
	n := &Call{Name: "max", Args: []Node{&NumberLit{Value: 1}, &NumberLit{Value: 2}}}
	got, err := Evaluate(n, nil)
	require.NoError(t, err)
	assert.Equal(t, Number(2), got)
}

func TestIsUnknownVariable(t *testing.T) {
	_, err := EvaluateSource("x", Context{})
	assert.True(t, IsUnknownVariable(err))
	_, err = EvaluateSource("1 / 0", Context{})
	assert.False(t, IsUnknownVariable(err))
	assert.False(t, IsUnknownVariable(nil))
}
