package kbs

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// Conflict reports an assertion whose solved state contradicts itself.
type Conflict struct {
	// Assertion is the top-level assertion the conflict was found in.
	Assertion Factor
	// Term is the offending factor inside Assertion, possibly Assertion itself.
	Term    Factor
	Message string
}

func (c *Conflict) Error() string { return c.Message }

// HasConflict solves if needed and returns the first conflicting assertion, or
// nil. It does not change the solved state. The result is kept until the next
// solve, so a conflict is logged and reported to the observer once.
func (kb *KB) HasConflict() *Conflict {
	kb.ensureSolved()
	if kb.conflictChecked {
		return kb.conflict
	}
	kb.conflictChecked = true
	for _, a := range kb.assertions {
		if c := kb.assertionConflict(a); c != nil {
			kb.logger.Info("conflict detected",
				zap.Stringer("assertion", a),
				zap.Stringer("term", c.Term))
			if kb.observer != nil {
				kb.observer.ConflictDetected(c)
			}
			kb.conflict = c
			return c
		}
	}
	return nil
}

// Conflicts returns every conflicting assertion.
func (kb *KB) Conflicts() []*Conflict {
	kb.ensureSolved()
	var out []*Conflict
	for _, a := range kb.assertions {
		if c := kb.assertionConflict(a); c != nil {
			out = append(out, c)
		}
	}
	return out
}

func (kb *KB) assertionConflict(a Factor) *Conflict {
	for _, c := range children(a) {
		if kb.isSolved(c) {
			if bad := kb.conflictIn(c); bad != nil {
				return kb.newConflict(a, bad, "contradiction")
			}
			continue
		}
		if _, ok := c.(SymbolRef); ok {
			continue
		}
		syms := kb.symbolsIn(c)
		if len(syms) > 0 && kb.allSymbolsSolved(syms) {
			return kb.newConflict(a, c, "unsolvable")
		}
	}
	if bad := kb.conflictIn(a); bad != nil {
		return kb.newConflict(a, bad, "contradiction")
	}
	return nil
}

// conflictIn returns the first factor in f's subtree whose solved state
// disagrees with what its parts compute.
func (kb *KB) conflictIn(f Factor) Factor {
	for _, c := range children(f) {
		if bad := kb.conflictIn(c); bad != nil {
			return bad
		}
	}
	n := kb.stateOf(f)
	if n == nil || !n.solved {
		return nil
	}

	switch t := f.(type) {
	case *And:
		if n.value {
			for _, c := range t.Terms {
				if kb.isSolved(c) && !kb.holds(c) {
					return f
				}
			}
		} else if kb.allHold(t.Terms) {
			return f
		}
	case *Or:
		if n.value {
			if kb.allSolved(t.Terms) && !kb.anyHolds(t.Terms) {
				return f
			}
		} else {
			for _, c := range t.Terms {
				if kb.isSolved(c) && kb.holds(c) {
					return f
				}
			}
		}
	case *Not:
		if kb.isSolved(t.Term) && kb.holds(t.Term) == n.value {
			return f
		}
	case *Implies:
		if kb.allSolved(children(f)) && kb.holds(f) != n.value {
			return f
		}
	case *Iff:
		if kb.allSolved(children(f)) && kb.holds(f) != n.value {
			return f
		}
	case *Equals:
		l, r := kb.calculate(t.Left), kb.calculate(t.Right)
		if !IsNull(l) && !IsNull(r) && valuesEqual(l, r) != n.value {
			return f
		}
	case *GreaterOrEqual:
		if ge, ok := kb.compare(t); ok && ge != n.value {
			return f
		}
	case *Add:
		l, r := kb.calculate(t.Left), kb.calculate(t.Right)
		if n.alt != nil && !IsNull(l) && !IsNull(r) {
			if sum := Apply(OpAdd, l, r); !IsNull(sum) && !valuesEqual(sum, n.alt) {
				return f
			}
		}
	case *Negate:
		v := kb.calculate(t.Term)
		if n.alt != nil && !IsNull(v) {
			if neg := Apply(OpSub, v); !IsNull(neg) && !valuesEqual(neg, n.alt) {
				return f
			}
		}
	case *SymbolRelation:
		r := t.Relation()
		if !n.value {
			r = r.Negate()
		}
		if !kb.HasRelation(t.About, r) {
			return f
		}
	case *PropertyDeclaration:
		if n.value && !kb.holds(f) {
			return f
		}
	}
	return nil
}

func (kb *KB) allSolved(fs []Factor) bool {
	for _, f := range fs {
		if !kb.isSolved(f) {
			return false
		}
	}
	return true
}

func (kb *KB) allSymbolsSolved(syms []SymbolRef) bool {
	for _, s := range syms {
		if !kb.sym(s).solved {
			return false
		}
	}
	return true
}

func (kb *KB) allHold(fs []Factor) bool {
	for _, f := range fs {
		if !kb.isSolved(f) || !kb.holds(f) {
			return false
		}
	}
	return true
}

func (kb *KB) anyHolds(fs []Factor) bool {
	for _, f := range fs {
		if kb.holds(f) {
			return true
		}
	}
	return false
}

// symbolsIn collects the distinct symbols f refers to, in id order.
func (kb *KB) symbolsIn(f Factor) []SymbolRef {
	seen := make(map[SymbolRef]bool)
	var out []SymbolRef
	add := func(s SymbolRef) {
		if s.Valid() && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	Walk(f, func(x Factor) bool {
		switch t := x.(type) {
		case SymbolRef:
			add(t)
		case *SymbolRelation:
			add(t.About)
			add(t.Class)
			add(t.To)
		case *PropertyDeclaration:
			switch target := t.Target.(type) {
			case SymbolRef:
				add(target)
			case Relation:
				add(target.Outer)
				add(target.Inner)
			}
			add(t.Property)
		}
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

func (kb *KB) newConflict(assertion, term Factor, reason string) *Conflict {
	var b strings.Builder
	fmt.Fprintf(&b, "%s in %s at %s", reason, assertion, term)
	for _, s := range kb.symbolsIn(assertion) {
		b.WriteString("\n  ")
		b.WriteString(kb.describe(s))
	}
	return &Conflict{Assertion: assertion, Term: term, Message: b.String()}
}

// describe renders everything known about s on one line.
func (kb *KB) describe(s SymbolRef) string {
	entry := kb.sym(s)
	var parts []string
	if entry.solved {
		parts = append(parts, fmt.Sprintf("%s = %s", s, kb.solutionOf(s)))
	}
	for _, r := range kb.Relations(s) {
		parts = append(parts, fmt.Sprintf("%s::%s", s, r))
	}
	for _, p := range kb.Properties(s) {
		parts = append(parts, fmt.Sprintf("%s has %s : %s", s, p.Property, p.Value))
	}
	if len(parts) == 0 {
		return s.Name() + " is unsolvable"
	}
	return strings.Join(parts, ", ")
}
