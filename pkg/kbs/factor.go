// Package kbs is a symbolic knowledge base that derives the values of unknowns by
// propagating assertions to a fixpoint.
//
// Assertions are trees of factors: named symbols and literals joined by logical
// connectives (And, Or, Not, Implies, Iff), arithmetic nodes (Equals,
// GreaterOrEqual, Add, Negate) and classification nodes (SymbolRelation,
// PropertyDeclaration). Solve resets every node, then repeatedly lets each
// assertion push what it knows down to its children and up to its parent until a
// full pass changes nothing.
//
//	kb := kbs.New(kbs.Options{})
//	x, y := kb.MustSymbol("x"), kb.MustSymbol("y")
//	kb.Assert(kbs.NewEquals(kbs.NewAdd(x, y), kbs.Int(10)))
//	kb.Assert(kbs.NewEquals(x, kbs.Int(4)))
//	kb.Solve()
//	kb.Calculate(y) // 6
//
// A KB is not safe for concurrent use.
package kbs

// Factor is a node in an assertion tree. The set of implementations is closed to
// this package: symbol references, literals and the connective types declared
// here.
type Factor interface {
	String() string
	factor()
}

// Directive is what a solved parent can tell one of its unsolved children.
type Directive int

const (
	// NoSolution means nothing can be inferred for the child yet.
	NoSolution Directive = iota
	// Other means the parent resolves the child by its own mechanism.
	Other
	// SolveTrue asserts the child true.
	SolveTrue
	// SolveFalse asserts the child false.
	SolveFalse
	// SolveArithmetic assigns the child a concrete value.
	SolveArithmetic
)

func (d Directive) String() string {
	switch d {
	case NoSolution:
		return "no-solution"
	case Other:
		return "other"
	case SolveTrue:
		return "solve-true"
	case SolveFalse:
		return "solve-false"
	case SolveArithmetic:
		return "solve-arithmetic"
	}
	return "unknown"
}

// node is the solved state carried by every non-literal factor.
type node struct {
	solved bool
	value  bool
	alt    Factor
}

func (n *node) state() *node { return n }

func (n *node) reset() {
	n.solved = false
	n.value = false
	n.alt = nil
}

func (*node) factor() {}

type stateful interface {
	state() *node
}

// Solution is a snapshot of a factor's solved state.
type Solution struct {
	Solved bool
	// Value is meaningful when Solved and Alt is nil.
	Value bool
	// Alt holds a Number, Text or Bool when the factor resolved to a value.
	Alt Factor
}

// Holds reports whether the snapshot is solved to true or to a value.
func (s Solution) Holds() bool {
	return s.Solved && (s.Value || s.Alt != nil)
}

func (s Solution) String() string {
	switch {
	case !s.Solved:
		return "?"
	case s.Alt != nil:
		return s.Alt.String()
	case s.Value:
		return "T"
	}
	return "F"
}

// probe is the parent given to query factors: it never pushes anything down, so
// a queried factor only resolves from what its children already know.
type probe struct{}

func (probe) String() string { return "?" }

func (probe) factor() {}

// children returns the direct sub-factors that propagation visits.
func children(f Factor) []Factor {
	switch t := f.(type) {
	case *And:
		return t.Terms
	case *Or:
		return t.Terms
	case *Not:
		return []Factor{t.Term}
	case *Implies:
		return []Factor{t.Cond, t.Then}
	case *Iff:
		return []Factor{t.P, t.Q}
	case *Equals:
		return []Factor{t.Left, t.Right}
	case *GreaterOrEqual:
		return []Factor{t.Left, t.Right}
	case *Add:
		return []Factor{t.Left, t.Right}
	case *Negate:
		return []Factor{t.Term}
	case *PropertyDeclaration:
		return []Factor{t.Value}
	}
	return nil
}

// Children returns the direct sub-factors of f.
func Children(f Factor) []Factor {
	c := children(f)
	out := make([]Factor, len(c))
	copy(out, c)
	return out
}

// Walk calls fn for f and every factor below it, parents first. Returning false
// from fn skips the subtree.
func Walk(f Factor, fn func(Factor) bool) {
	if f == nil || !fn(f) {
		return
	}
	for _, c := range children(f) {
		Walk(c, fn)
	}
}
