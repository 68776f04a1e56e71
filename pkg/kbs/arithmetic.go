package kbs

// Equals holds when both sides calculate to the same value. Asserted true with
// one side known, it assigns that value to the other side.
type Equals struct {
	node
	Left  Factor
	Right Factor
}

func NewEquals(left, right Factor) *Equals { return &Equals{Left: left, Right: right} }

func (e *Equals) String() string { return "(" + str(e.Left) + " = " + str(e.Right) + ")" }

// GreaterOrEqual compares two numeric sides. It checks but never assigns.
type GreaterOrEqual struct {
	node
	Left  Factor
	Right Factor
}

func NewGreaterOrEqual(left, right Factor) *GreaterOrEqual {
	return &GreaterOrEqual{Left: left, Right: right}
}

// NewLessOrEqual is GreaterOrEqual with the sides swapped.
func NewLessOrEqual(left, right Factor) *GreaterOrEqual {
	return &GreaterOrEqual{Left: right, Right: left}
}

func (g *GreaterOrEqual) String() string { return "(" + str(g.Left) + " >= " + str(g.Right) + ")" }

// Add is the sum of its sides. Once its own value is known, either side can be
// isolated from the other.
type Add struct {
	node
	Left  Factor
	Right Factor
}

func NewAdd(left, right Factor) *Add { return &Add{Left: left, Right: right} }

// NewSubtract builds left - right as left + (-right).
func NewSubtract(left, right Factor) *Add { return NewAdd(left, NewNegate(right)) }

func (a *Add) String() string { return "(" + str(a.Left) + " + " + str(a.Right) + ")" }

// Negate is the arithmetic negation of its term.
type Negate struct {
	node
	Term Factor
}

func NewNegate(term Factor) *Negate { return &Negate{Term: term} }

func (n *Negate) String() string { return "-" + str(n.Term) }
