package kbs

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/cognicore/kbs/pkg/kbs/internalerr"
)

// Op tags an operator for Apply and Eval.
type Op byte

// Operators understood by value factors.
const (
	OpAdd       Op = '+'
	OpSub       Op = '-' // unary when no operand is given
	OpMul       Op = '*'
	OpDiv       Op = '/'
	OpMod       Op = '%'
	OpPow       Op = '^'
	OpBitAnd    Op = '&'
	OpBitOr     Op = '|'
	OpLess      Op = '<'
	OpLessEq    Op = 'L'
	OpGreater   Op = '>'
	OpGreaterEq Op = 'G'
	OpEq        Op = '='
	OpNotEq     Op = '!'
)

// maxExponent bounds OpPow so a single operation cannot allocate without limit.
const maxExponent = 4096

func (o Op) String() string {
	switch o {
	case OpLessEq:
		return "<="
	case OpGreaterEq:
		return ">="
	case OpNotEq:
		return "!="
	}
	return string(o)
}

// Number is an exact rational literal.
type Number struct {
	r *big.Rat
}

// Int returns the number n.
func Int(n int64) Number {
	return Number{r: new(big.Rat).SetInt64(n)}
}

// Rat returns a number holding a copy of r.
func Rat(r *big.Rat) Number {
	return Number{r: new(big.Rat).Set(r)}
}

// Float converts f exactly. Non-finite values have no rational form and yield Null.
func Float(f float64) Factor {
	r := new(big.Rat)
	if r.SetFloat64(f) == nil {
		return Null
	}
	return Number{r: r}
}

// ParseNumber accepts integers, decimals and fractions such as "1/3".
func ParseNumber(s string) (Number, error) {
	r, ok := new(big.Rat).SetString(strings.TrimSpace(s))
	if !ok {
		return Number{}, fmt.Errorf("%w: invalid number %q", internalerr.ErrParse, s)
	}
	return Number{r: r}, nil
}

// Rat returns a copy of the underlying value.
func (n Number) Rat() *big.Rat {
	if n.r == nil {
		return new(big.Rat)
	}
	return new(big.Rat).Set(n.r)
}

// IsInt reports whether the number has no fractional part.
func (n Number) IsInt() bool {
	return n.r == nil || n.r.IsInt()
}

// Float64 returns the nearest float64.
func (n Number) Float64() float64 {
	if n.r == nil {
		return 0
	}
	f, _ := n.r.Float64()
	return f
}

func (n Number) String() string {
	r := n.Rat()
	if r.IsInt() {
		return r.Num().String()
	}
	// Prefer a decimal rendering when it is exact.
	dec := strings.TrimRight(r.FloatString(12), "0")
	if back, ok := new(big.Rat).SetString(dec); ok && back.Cmp(r) == 0 {
		return dec
	}
	return r.RatString()
}

func (Number) factor() {}

// Text is a string literal.
type Text struct {
	s string
}

// NewText returns a string literal.
func NewText(s string) Text { return Text{s: s} }

// Value returns the literal's content.
func (t Text) Value() string { return t.s }

func (t Text) String() string { return strconv.Quote(t.s) }

func (Text) factor() {}

// Bool is a boolean literal.
type Bool struct {
	b bool
}

// Boolean literals.
var (
	True  = Bool{b: true}
	False = Bool{b: false}
)

// BoolOf returns the literal for b.
func BoolOf(b bool) Bool { return Bool{b: b} }

// Value returns the literal's truth value.
func (b Bool) Value() bool { return b.b }

func (b Bool) String() string {
	if b.b {
		return "true"
	}
	return "false"
}

func (Bool) factor() {}

type null struct{}

func (null) String() string { return "null" }

func (null) factor() {}

// Null is the unknown value. It absorbs every operator and is never equal to
// anything, itself included.
var Null Factor = null{}

// IsNull reports whether f is nil or the Null sentinel.
func IsNull(f Factor) bool {
	if f == nil {
		return true
	}
	_, ok := f.(null)
	return ok
}

// Apply evaluates op on x and args, returning Null when the operand kinds do
// not support op.
func Apply(op Op, x Factor, args ...Factor) Factor {
	v, err := Eval(op, x, args...)
	if err != nil {
		return Null
	}
	return v
}

// Eval is Apply with an explicit error for unsupported operator and operand
// combinations. Null operands propagate Null without error.
func Eval(op Op, x Factor, args ...Factor) (Factor, error) {
	if IsNull(x) {
		return Null, nil
	}
	for _, a := range args {
		if IsNull(a) {
			return Null, nil
		}
	}
	if len(args) == 1 {
		switch op {
		case OpEq:
			return BoolOf(valuesEqual(x, args[0])), nil
		case OpNotEq:
			return BoolOf(!valuesEqual(x, args[0])), nil
		}
	}

	switch v := x.(type) {
	case Number:
		return evalNumber(op, v, args)
	case Text:
		if op == OpAdd && len(args) == 1 {
			switch a := args[0].(type) {
			case Text:
				return NewText(v.s + a.s), nil
			case Number:
				return NewText(v.s + a.String()), nil
			}
		}
	}
	return Null, unsupported(op, x, args)
}

func evalNumber(op Op, n Number, args []Factor) (Factor, error) {
	if op == OpSub && len(args) == 0 {
		return Number{r: new(big.Rat).Neg(n.Rat())}, nil
	}
	if len(args) != 1 {
		return Null, unsupported(op, n, args)
	}
	if t, ok := args[0].(Text); ok && op == OpAdd {
		return NewText(n.String() + t.s), nil
	}
	m, ok := args[0].(Number)
	if !ok {
		return Null, unsupported(op, n, args)
	}
	a, b := n.Rat(), m.Rat()

	switch op {
	case OpAdd:
		return Number{r: a.Add(a, b)}, nil
	case OpSub:
		return Number{r: a.Sub(a, b)}, nil
	case OpMul:
		return Number{r: a.Mul(a, b)}, nil
	case OpDiv:
		if b.Sign() == 0 {
			return Null, fmt.Errorf("%w: division by zero", internalerr.ErrUnsupportedOperation)
		}
		return Number{r: a.Quo(a, b)}, nil
	case OpMod:
		if !a.IsInt() || !b.IsInt() || b.Sign() == 0 {
			return Null, unsupported(op, n, args)
		}
		return Number{r: new(big.Rat).SetInt(new(big.Int).Rem(a.Num(), b.Num()))}, nil
	case OpPow:
		return pow(a, b)
	case OpBitAnd:
		if !a.IsInt() || !b.IsInt() {
			return Null, unsupported(op, n, args)
		}
		return Number{r: new(big.Rat).SetInt(new(big.Int).And(a.Num(), b.Num()))}, nil
	case OpBitOr:
		if !a.IsInt() || !b.IsInt() {
			return Null, unsupported(op, n, args)
		}
		return Number{r: new(big.Rat).SetInt(new(big.Int).Or(a.Num(), b.Num()))}, nil
	case OpLess:
		return BoolOf(a.Cmp(b) < 0), nil
	case OpLessEq:
		return BoolOf(a.Cmp(b) <= 0), nil
	case OpGreater:
		return BoolOf(a.Cmp(b) > 0), nil
	case OpGreaterEq:
		return BoolOf(a.Cmp(b) >= 0), nil
	}
	return Null, unsupported(op, n, args)
}

// pow raises base to an integer exponent.
func pow(base, exp *big.Rat) (Factor, error) {
	if !exp.IsInt() || !exp.Num().IsInt64() {
		return Null, fmt.Errorf("%w: non-integer exponent %s", internalerr.ErrUnsupportedOperation, exp.RatString())
	}
	e := exp.Num().Int64()
	if e > maxExponent || e < -maxExponent {
		return Null, fmt.Errorf("%w: exponent %d out of range", internalerr.ErrUnsupportedOperation, e)
	}
	if e < 0 {
		if base.Sign() == 0 {
			return Null, fmt.Errorf("%w: zero to a negative power", internalerr.ErrUnsupportedOperation)
		}
		base = new(big.Rat).Inv(base)
		e = -e
	}
	k := big.NewInt(e)
	num := new(big.Int).Exp(base.Num(), k, nil)
	den := new(big.Int).Exp(base.Denom(), k, nil)
	return Number{r: new(big.Rat).SetFrac(num, den)}, nil
}

func unsupported(op Op, x Factor, args []Factor) error {
	kinds := make([]string, 0, len(args)+1)
	kinds = append(kinds, kindOf(x))
	for _, a := range args {
		kinds = append(kinds, kindOf(a))
	}
	return fmt.Errorf("%w: %s on (%s)", internalerr.ErrUnsupportedOperation, op, strings.Join(kinds, ", "))
}

func kindOf(f Factor) string {
	switch f.(type) {
	case Number:
		return "number"
	case Text:
		return "text"
	case Bool:
		return "bool"
	case SymbolRef:
		return "symbol"
	case null:
		return "null"
	}
	return "expression"
}

// valuesEqual compares resolved values. Null equals nothing.
func valuesEqual(a, b Factor) bool {
	switch x := a.(type) {
	case Number:
		y, ok := b.(Number)
		return ok && x.Rat().Cmp(y.Rat()) == 0
	case Text:
		y, ok := b.(Text)
		return ok && x.s == y.s
	case Bool:
		y, ok := b.(Bool)
		return ok && x.b == y.b
	case SymbolRef:
		y, ok := b.(SymbolRef)
		return ok && x.Valid() && x == y
	}
	return false
}
