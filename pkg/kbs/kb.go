package kbs

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cognicore/kbs/pkg/kbs/internalerr"
)

// Observer receives solve and conflict events from a KB.
type Observer interface {
	SolveFinished(stats SolveStats)
	ConflictDetected(c *Conflict)
}

// Options configures a KB. The zero value is usable.
type Options struct {
	Logger   *zap.Logger
	Observer Observer
}

// SolveStats describes one run of the fixpoint loop.
type SolveStats struct {
	Passes      int
	Transitions int
	// Nodes is the number of distinct stateful factors and symbols reachable
	// from the solved trees. Transitions never exceeds it.
	Nodes      int
	Assertions int
	Queries    int
	Duration   time.Duration
}

// KB holds symbols and assertions and derives what the assertions force.
type KB struct {
	// Is is the conventional outer symbol for classification, as in is(dog).
	Is SymbolRef

	nextID        SymbolID
	symbols       []*symbol
	byName        map[string]SymbolID
	relationProps map[Relation]map[SymbolID]Factor

	// relation properties asserted by the current solve
	derivedRelationProps map[Relation]map[SymbolID]Factor

	assertions      []Factor
	queryAssertions []Factor
	queries         []Factor
	lastQuery       []Factor

	solved    bool
	lastStats SolveStats

	// first conflict of the current solve, once HasConflict has looked
	conflictChecked bool
	conflict        *Conflict

	logger   *zap.Logger
	observer Observer
}

// New returns an empty knowledge base with the "is" symbol registered.
func New(opts Options) *KB {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	kb := &KB{
		byName:        make(map[string]SymbolID),
		relationProps:        make(map[Relation]map[SymbolID]Factor),
		derivedRelationProps: make(map[Relation]map[SymbolID]Factor),
		logger:               logger,
		observer:             opts.Observer,
	}
	kb.Is = kb.MustSymbol("is")
	return kb
}

func (kb *KB) nextSymbolID() SymbolID {
	id := kb.nextID
	kb.nextID++
	return id
}

// Assert adds f as a permanent assertion. The tree is checked for nil nodes,
// empty And/Or nodes and symbols from another KB.
func (kb *KB) Assert(f Factor) error {
	if err := kb.validate(f); err != nil {
		return fmt.Errorf("assert %s: %w", str(f), err)
	}
	kb.markRelational(f)
	kb.assertions = append(kb.assertions, f)
	kb.solved = false
	return nil
}

// AssertAll asserts each factor, stopping at the first failure.
func (kb *KB) AssertAll(fs ...Factor) error {
	for _, f := range fs {
		if err := kb.Assert(f); err != nil {
			return err
		}
	}
	return nil
}

// Assertions returns the permanent assertions in insertion order.
func (kb *KB) Assertions() []Factor {
	out := make([]Factor, len(kb.assertions))
	copy(out, kb.assertions)
	return out
}

func (kb *KB) validate(f Factor) error {
	switch t := f.(type) {
	case nil:
		return fmt.Errorf("%w: nil factor", internalerr.ErrInvalidInput)
	case probe:
		return fmt.Errorf("%w: probe is not assertable", internalerr.ErrInvalidInput)
	case SymbolRef:
		return kb.own(t)
	case *And:
		if t == nil || len(t.Terms) == 0 {
			return fmt.Errorf("%w: empty and", internalerr.ErrInvalidInput)
		}
	case *Or:
		if t == nil || len(t.Terms) == 0 {
			return fmt.Errorf("%w: empty or", internalerr.ErrInvalidInput)
		}
	case *SymbolRelation:
		if t == nil {
			return fmt.Errorf("%w: nil relation", internalerr.ErrInvalidInput)
		}
		for _, s := range []SymbolRef{t.About, t.Class, t.To} {
			if err := kb.own(s); err != nil {
				return err
			}
		}
		return nil
	case *PropertyDeclaration:
		if t == nil || t.Target == nil || t.Value == nil {
			return fmt.Errorf("%w: incomplete property declaration", internalerr.ErrInvalidInput)
		}
		switch target := t.Target.(type) {
		case SymbolRef:
			if err := kb.own(target); err != nil {
				return err
			}
		case Relation:
			if err := kb.ownRelation(target); err != nil {
				return err
			}
		}
		if err := kb.own(t.Property); err != nil {
			return err
		}
	}
	if isNilNode(f) {
		return fmt.Errorf("%w: nil %T", internalerr.ErrInvalidInput, f)
	}
	for _, c := range children(f) {
		if err := kb.validate(c); err != nil {
			return err
		}
	}
	return nil
}

// isNilNode catches typed nil pointers stored in a Factor.
func isNilNode(f Factor) bool {
	switch t := f.(type) {
	case *And:
		return t == nil
	case *Or:
		return t == nil
	case *Not:
		return t == nil
	case *Implies:
		return t == nil
	case *Iff:
		return t == nil
	case *Equals:
		return t == nil
	case *GreaterOrEqual:
		return t == nil
	case *Add:
		return t == nil
	case *Negate:
		return t == nil
	}
	return false
}

// markRelational flags class symbols so rendering can tell them from domain
// symbols.
func (kb *KB) markRelational(f Factor) {
	Walk(f, func(x Factor) bool {
		switch t := x.(type) {
		case *SymbolRelation:
			kb.sym(t.Class).relational = true
		case *PropertyDeclaration:
			if r, ok := t.Target.(Relation); ok {
				kb.sym(r.Outer).relational = true
			}
		}
		return true
	})
}

// Solve resets every factor and symbol, then propagates all assertions to a
// fixpoint. Calling it again without new assertions reproduces the same state.
func (kb *KB) Solve() SolveStats {
	start := time.Now()
	kb.reset()
	kb.simplify()

	stats := SolveStats{
		Assertions: len(kb.assertions) + len(kb.queryAssertions),
		Queries:    len(kb.queries),
		Nodes:      kb.countNodes(),
	}
	for {
		stats.Passes++
		changes := 0
		for _, a := range kb.assertions {
			changes += kb.solveFactor(a, nil)
		}
		for _, a := range kb.queryAssertions {
			changes += kb.solveFactor(a, nil)
		}
		for _, q := range kb.queries {
			changes += kb.solveFactor(q, probe{})
		}
		stats.Transitions += changes
		if changes == 0 {
			break
		}
	}
	kb.simplify()
	stats.Duration = time.Since(start)

	kb.solved = true
	kb.lastStats = stats
	kb.logger.Debug("solve finished",
		zap.Int("passes", stats.Passes),
		zap.Int("transitions", stats.Transitions),
		zap.Int("nodes", stats.Nodes),
		zap.Duration("duration", stats.Duration))
	if kb.observer != nil {
		kb.observer.SolveFinished(stats)
	}
	return stats
}

// simplify unwraps singleton And and Or nodes in the assertions and the
// current query's assumptions.
func (kb *KB) simplify() {
	for i, a := range kb.assertions {
		kb.assertions[i] = Simplify(a)
	}
	for i, a := range kb.queryAssertions {
		kb.queryAssertions[i] = Simplify(a)
	}
}

// Stats returns the statistics of the most recent solve.
func (kb *KB) Stats() SolveStats { return kb.lastStats }

func (kb *KB) ensureSolved() {
	if !kb.solved {
		kb.Solve()
	}
}

func (kb *KB) trees() []Factor {
	out := make([]Factor, 0, len(kb.assertions)+len(kb.queryAssertions)+len(kb.queries))
	out = append(out, kb.assertions...)
	out = append(out, kb.queryAssertions...)
	return append(out, kb.queries...)
}

func (kb *KB) reset() {
	for _, s := range kb.symbols {
		s.resetSolution()
	}
	clear(kb.derivedRelationProps)
	kb.conflictChecked, kb.conflict = false, nil
	for _, t := range kb.trees() {
		Walk(t, func(f Factor) bool {
			if s, ok := f.(stateful); ok {
				s.state().reset()
			}
			return true
		})
	}
}

func (kb *KB) countNodes() int {
	seen := make(map[Factor]struct{})
	for _, t := range kb.trees() {
		Walk(t, func(f Factor) bool {
			if kb.stateOf(f) != nil {
				seen[f] = struct{}{}
			}
			return true
		})
	}
	return len(seen)
}

// Solution returns a snapshot of f's state, solving first if needed.
func (kb *KB) Solution(f Factor) Solution {
	kb.ensureSolved()
	return kb.solutionOf(f)
}

func (kb *KB) solutionOf(f Factor) Solution {
	if !kb.isSolved(f) {
		return Solution{}
	}
	n := kb.stateOf(f)
	if n == nil {
		// Literals are their own value.
		return Solution{Solved: true, Value: kb.truth(f), Alt: f}
	}
	return Solution{Solved: true, Value: n.value, Alt: n.alt}
}

// Calculate returns the value f resolved to, or Null when it is unknown.
func (kb *KB) Calculate(f Factor) Factor {
	kb.ensureSolved()
	return kb.calculate(f)
}

// Holds reports whether f is structurally true in the solved state.
func (kb *KB) Holds(f Factor) bool {
	kb.ensureSolved()
	return kb.holds(f)
}

// Symbols returns the symbols mentioned by the permanent assertions, in id
// order.
func (kb *KB) Symbols() []SymbolRef {
	seen := make(map[SymbolRef]bool)
	var out []SymbolRef
	for _, a := range kb.assertions {
		for _, s := range kb.symbolsIn(a) {
			if !seen[s] {
				seen[s] = true
				out = append(out, s)
			}
		}
	}
	sortSymbols(out)
	return out
}

// Query collects assumptions that hold only for the duration of one query.
type Query struct {
	kb          *KB
	assumptions []Factor
}

// If starts a query under the given transient assumptions.
func (kb *KB) If(assumptions ...Factor) *Query {
	return &Query{kb: kb, assumptions: assumptions}
}

// Ask queries factors with no extra assumptions.
func (kb *KB) Ask(fs ...Factor) ([]Solution, error) {
	return kb.If().Query(fs...)
}

// Query solves with the assumptions in place and returns one Solution per
// factor. Queried factors only resolve bottom-up. The assumptions are dropped
// afterwards together with everything derived from them, so the next solve sees
// only the permanent assertions.
func (q *Query) Query(fs ...Factor) ([]Solution, error) {
	kb := q.kb
	for _, a := range q.assumptions {
		if err := kb.validate(a); err != nil {
			return nil, fmt.Errorf("query assumption %s: %w", str(a), err)
		}
	}
	for _, f := range fs {
		if err := kb.validate(f); err != nil {
			return nil, fmt.Errorf("query %s: %w", str(f), err)
		}
	}
	for _, a := range q.assumptions {
		kb.markRelational(a)
	}

	kb.queryAssertions = append([]Factor(nil), q.assumptions...)
	kb.queries = fs
	kb.Solve()

	out := make([]Solution, len(fs))
	for i, f := range fs {
		out[i] = kb.solutionOf(f)
	}
	kb.reset()
	kb.queryAssertions = nil
	kb.queries = nil
	kb.lastQuery = fs
	kb.solved = false
	return out, nil
}

// LastQuery returns the factors of the most recent query.
func (kb *KB) LastQuery() []Factor {
	out := make([]Factor, len(kb.lastQuery))
	copy(out, kb.lastQuery)
	return out
}
