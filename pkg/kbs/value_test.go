package kbs

import (
	"errors"
	"math"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/kbs/pkg/kbs/internalerr"
)

func TestApplyNumbers(t *testing.T) {
	tests := []struct {
		name string
		op   Op
		x    Factor
		args []Factor
		want string
	}{
		{"add", OpAdd, Int(2), []Factor{Int(3)}, "5"},
		{"sub", OpSub, Int(2), []Factor{Int(3)}, "-1"},
		{"unary minus", OpSub, Int(7), nil, "-7"},
		{"mul", OpMul, Int(6), []Factor{Int(7)}, "42"},
		{"exact division", OpDiv, Int(1), []Factor{Int(3)}, "1/3"},
		{"decimal division", OpDiv, Int(1), []Factor{Int(4)}, "0.25"},
		{"mod", OpMod, Int(17), []Factor{Int(5)}, "2"},
		{"pow", OpPow, Int(2), []Factor{Int(10)}, "1024"},
		{"negative pow", OpPow, Int(2), []Factor{Int(-2)}, "0.25"},
		{"bit and", OpBitAnd, Int(12), []Factor{Int(10)}, "8"},
		{"bit or", OpBitOr, Int(12), []Factor{Int(10)}, "14"},
		{"less", OpLess, Int(1), []Factor{Int(2)}, "true"},
		{"less or equal", OpLessEq, Int(2), []Factor{Int(2)}, "true"},
		{"greater", OpGreater, Int(1), []Factor{Int(2)}, "false"},
		{"greater or equal", OpGreaterEq, Int(3), []Factor{Int(2)}, "true"},
		{"equal", OpEq, Int(3), []Factor{Rat(big.NewRat(6, 2))}, "true"},
		{"not equal", OpNotEq, Int(3), []Factor{Int(4)}, "true"},
		{"text concat", OpAdd, NewText("a"), []Factor{NewText("b")}, `"ab"`},
		{"text plus number", OpAdd, NewText("n"), []Factor{Int(1)}, `"n1"`},
		{"number plus text", OpAdd, Int(1), []Factor{NewText("n")}, `"1n"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Eval(tt.op, tt.x, tt.args...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestEvalUnsupported(t *testing.T) {
	cases := []struct {
		name string
		op   Op
		x    Factor
		args []Factor
	}{
		{"text times number", OpMul, NewText("a"), []Factor{Int(2)}},
		{"bool plus bool", OpAdd, True, []Factor{False}},
		{"division by zero", OpDiv, Int(1), []Factor{Int(0)}},
		{"fractional mod", OpMod, Rat(big.NewRat(1, 2)), []Factor{Int(2)}},
		{"fractional exponent", OpPow, Int(2), []Factor{Rat(big.NewRat(1, 2))}},
		{"huge exponent", OpPow, Int(2), []Factor{Int(maxExponent + 1)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Eval(tc.op, tc.x, tc.args...)
			require.Error(t, err)
			assert.True(t, errors.Is(err, internalerr.ErrUnsupportedOperation))
			assert.True(t, IsNull(Apply(tc.op, tc.x, tc.args...)))
		})
	}
}

func TestNullAbsorbs(t *testing.T) {
	v, err := Eval(OpAdd, Null, Int(1))
	require.NoError(t, err)
	assert.True(t, IsNull(v))

	assert.True(t, IsNull(Apply(OpEq, Null, Null)), "null is never equal to null")
	assert.True(t, IsNull(Apply(OpMul, Int(2), Null)))
	assert.True(t, IsNull(nil))
}

func TestParseNumber(t *testing.T) {
	n, err := ParseNumber("3/4")
	require.NoError(t, err)
	assert.Equal(t, "0.75", n.String())
	assert.False(t, n.IsInt())

	n, err = ParseNumber(" 12 ")
	require.NoError(t, err)
	assert.True(t, n.IsInt())
	assert.Equal(t, 12.0, n.Float64())

	_, err = ParseNumber("twelve")
	assert.ErrorIs(t, err, internalerr.ErrParse)
}

func TestFloat(t *testing.T) {
	assert.Equal(t, "0.5", Float(0.5).String())
	assert.True(t, IsNull(Float(math.Inf(1))))
	assert.True(t, IsNull(Float(math.NaN())))
}

func TestValuesEqual(t *testing.T) {
	kb := New(Options{})
	x := kb.MustSymbol("x")
	other := New(Options{})
	ox := other.MustSymbol("x")

	assert.True(t, valuesEqual(Int(2), Rat(big.NewRat(4, 2))))
	assert.True(t, valuesEqual(NewText("a"), NewText("a")))
	assert.False(t, valuesEqual(NewText("1"), Int(1)))
	assert.True(t, valuesEqual(x, x))
	assert.False(t, valuesEqual(x, ox), "same name in another kb is a different symbol")
	assert.False(t, valuesEqual(Null, Null))
}
