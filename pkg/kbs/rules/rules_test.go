package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/kbs/pkg/kbs"
	"github.com/cognicore/kbs/pkg/kbs/internalerr"
)

func TestParseExpr(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"and(a, b, c)", "(a and b and c)"},
		{"or(a, not(b))", "(a or ~b)"},
		{"implies(rain, wet)", "(rain -> wet)"},
		{"iff(p, q)", "(p <-> q)"},
		{"disagree(p, q)", "~(p <-> q)"},
		{"eq(add(x, y), 10)", "((x + y) = 10)"},
		{"eq(add(x, y, z), 1/3)", "(((x + y) + z) = 1/3)"},
		{"ge(x, -2.5)", "(x >= -2.5)"},
		{"le(x, 3)", "(3 >= x)"},
		{"eq(sub(x, 1), neg(y))", "((x + -1) = -y)"},
		{`eq(name, "fido \"the dog\"")`, `(name = "fido \"the dog\"")`},
		{"eq(flag, true)", "(flag = true)"},
		{"rel(fido, is, dog)", "fido::is(dog)"},
		{"fido::is(dog)", "fido::is(dog)"},
		{"prop(fido, legs, 4)", "fido has legs : 4"},
		{"prop(is(dog), legs, 4)", "for any is(dog), has legs : 4"},
		{"not(~lit)", "~~lit"},
		{"neural-network", "neural-network"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			kb := kbs.New(kbs.Options{})
			f, err := ParseExpr(kb, tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, f.String())
		})
	}
}

func TestParseExprReusesSymbols(t *testing.T) {
	kb := kbs.New(kbs.Options{})
	f, err := ParseExpr(kb, "rel(fido, is, dog)")
	require.NoError(t, err)

	r, ok := f.(*kbs.SymbolRelation)
	require.True(t, ok)
	assert.Equal(t, kb.Is, r.Class, "is resolves to the kb's classification symbol")

	fido, ok := kb.Lookup("fido")
	require.True(t, ok)
	assert.Equal(t, fido, r.About)

	inv, err := ParseExpr(kb, "~fido")
	require.NoError(t, err)
	assert.True(t, kb.IsInverse(inv.(kbs.SymbolRef)))
}

func TestParseErrors(t *testing.T) {
	bad := []string{
		"",
		"and()",
		"not(a, b)",
		"eq(a)",
		"frobnicate(a)",
		"and(is(dog), a)",
		"rel(a, b, 3)",
		"prop(3, legs, 4)",
		"prop(is(dog, cat), legs, 4)",
		`eq(a, "unterminated)`,
		"eq(a, b",
		"a b",
		"fido:is(dog)",
		"~",
	}
	for _, in := range bad {
		t.Run(in, func(t *testing.T) {
			kb := kbs.New(kbs.Options{})
			_, err := ParseExpr(kb, in)
			assert.ErrorIs(t, err, internalerr.ErrParse)
		})
	}
}

func TestLoadRules(t *testing.T) {
	kb := kbs.New(kbs.Options{})

	rules := `
# arithmetic
eq(add(x, y), 10)
eq(x, 4)   # known

# classification
rel(fido, is, dog)
prop(is(dog), legs, 4)
eq(tag, "#1")
`
	require.NoError(t, LoadRules(kb, rules))
	assert.Len(t, kb.Assertions(), 5)

	y, ok := kb.Lookup("y")
	require.True(t, ok)
	assert.Equal(t, "6", kb.Calculate(y).String())

	tag, _ := kb.Lookup("tag")
	assert.Equal(t, `"#1"`, kb.Calculate(tag).String())

	fido, _ := kb.Lookup("fido")
	legs, _ := kb.Lookup("legs")
	assert.True(t, kb.HasProperty(fido, legs, kbs.Int(4)))
	assert.Nil(t, kb.HasConflict())
}

func TestLoadRulesReportsLine(t *testing.T) {
	kb := kbs.New(kbs.Options{})
	err := LoadRules(kb, "eq(x, 1)\n\nnot(a, b)\n")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 3")
	assert.ErrorIs(t, err, internalerr.ErrParse)
	assert.Empty(t, kb.Assertions(), "nothing is asserted on a parse failure")
}

func TestLoadRulesFailureRegistersNothing(t *testing.T) {
	kb := kbs.New(kbs.Options{})
	before := kb.AllSymbols()

	err := LoadRules(kb, "eq(x, 1)\nrel(fido, is, dog)\nnot(a, b)\n")
	require.Error(t, err)

	for _, name := range []string{"x", "fido", "dog", "a"} {
		_, ok := kb.Lookup(name)
		assert.False(t, ok, "%s registered by a failed load", name)
	}
	assert.Equal(t, before, kb.AllSymbols())

	require.NoError(t, LoadRules(kb, "eq(x, 1)\n"))
	_, ok := kb.Lookup("x")
	assert.True(t, ok)
}
