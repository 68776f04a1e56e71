package kbs

import "go.uber.org/zap"

// solveFactor runs one propagation step over f and its subtree and returns the
// number of state transitions it made.
func (kb *KB) solveFactor(f, parent Factor) int {
	changes := 0
	for _, c := range children(f) {
		changes += kb.solveFactor(c, f)
	}
	n := kb.stateOf(f)
	if n == nil || n.solved {
		return changes
	}

	d := SolveTrue
	if parent != nil {
		d = kb.directiveFor(parent, f)
	}
	if (d == SolveTrue || d == SolveFalse) && isArithmetic(f) {
		d = NoSolution
	}

	var alt Factor
	switch d {
	case SolveArithmetic:
		alt = kb.altSolutionFor(parent, f)
	case NoSolution, Other:
		d, alt = kb.infer(f)
	}
	return changes + kb.commit(f, d, alt)
}

func isArithmetic(f Factor) bool {
	switch f.(type) {
	case *Add, *Negate:
		return true
	}
	return false
}

// commit applies d to f and returns the transitions made, including any pushed
// eagerly into f's children.
func (kb *KB) commit(f Factor, d Directive, alt Factor) int {
	n := kb.stateOf(f)
	if n == nil || n.solved {
		return 0
	}
	switch d {
	case SolveTrue:
		if isArithmetic(f) {
			return 0
		}
		return kb.assertTrue(f, n)
	case SolveFalse:
		if isArithmetic(f) {
			return 0
		}
		return kb.assertFalse(f, n)
	case SolveArithmetic:
		return kb.assertValue(f, n, alt)
	}
	return 0
}

// assertValue assigns a concrete value. Booleans become plain truth values;
// numbers and strings only stick to symbols and arithmetic nodes.
func (kb *KB) assertValue(f Factor, n *node, v Factor) int {
	if IsNull(v) {
		return 0
	}
	if b, ok := v.(Bool); ok && !isArithmetic(f) {
		if b.b {
			return kb.assertTrue(f, n)
		}
		return kb.assertFalse(f, n)
	}
	switch f.(type) {
	case SymbolRef, *Add, *Negate:
		n.solved = true
		n.alt = v
		return 1
	}
	return 0
}

func (kb *KB) assertTrue(f Factor, n *node) int {
	n.solved, n.value = true, true
	changes := 1
	switch t := f.(type) {
	case *Not:
		changes += kb.commit(t.Term, SolveFalse, nil)
	case *SymbolRelation:
		kb.classify(t.About, t.Relation())
	case *PropertyDeclaration:
		if v := kb.propertyValue(t.Value); !IsNull(v) {
			if err := kb.deriveProperty(t.Target, t.Property, v); err != nil {
				kb.logger.Debug("property not stored", zap.Stringer("declaration", t), zap.Error(err))
			}
		}
	}
	return changes
}

func (kb *KB) assertFalse(f Factor, n *node) int {
	n.solved, n.value = true, false
	changes := 1
	switch t := f.(type) {
	case *Not:
		changes += kb.commit(t.Term, SolveTrue, nil)
	case *SymbolRelation:
		kb.classify(t.About, t.Relation().Negate())
	}
	return changes
}

// classify records r on about unless the opposite relation is already held.
func (kb *KB) classify(about SymbolRef, r Relation) {
	s := kb.sym(about)
	s.classified = true
	if _, clash := s.relations[r.Negate()]; clash {
		return
	}
	s.relations[r] = struct{}{}
}

// infer derives f's state from its already solved children.
func (kb *KB) infer(f Factor) (Directive, Factor) {
	switch t := f.(type) {
	case SymbolRef:
		// x and ~x are opposites once either is solved to a plain truth value.
		s := kb.sym(t)
		if s.inverse == NoSymbol {
			return NoSolution, nil
		}
		other := kb.symbols[s.inverse].node
		if other.solved && other.alt == nil {
			return truthDirective(!other.value), nil
		}
	case *And:
		all := true
		for _, c := range t.Terms {
			if kb.isFalse(c) {
				return SolveFalse, nil
			}
			all = all && kb.isTrue(c)
		}
		if all {
			return SolveTrue, nil
		}
	case *Or:
		all := true
		for _, c := range t.Terms {
			if kb.isTrue(c) {
				return SolveTrue, nil
			}
			all = all && kb.isFalse(c)
		}
		if all {
			return SolveFalse, nil
		}
	case *Not:
		if kb.isSolved(t.Term) {
			return truthDirective(!kb.truth(t.Term)), nil
		}
	case *Implies:
		switch {
		case kb.isFalse(t.Cond), kb.isTrue(t.Then):
			return SolveTrue, nil
		case kb.isTrue(t.Cond) && kb.isFalse(t.Then):
			return SolveFalse, nil
		}
	case *Iff:
		if kb.isSolved(t.P) && kb.isSolved(t.Q) {
			return truthDirective(kb.truth(t.P) == kb.truth(t.Q)), nil
		}
	case *Equals:
		l, r := kb.calculate(t.Left), kb.calculate(t.Right)
		if !IsNull(l) && !IsNull(r) {
			return truthDirective(valuesEqual(l, r)), nil
		}
	case *GreaterOrEqual:
		if ge, ok := kb.compare(t); ok {
			return truthDirective(ge), nil
		}
	case *Add:
		l, r := kb.calculate(t.Left), kb.calculate(t.Right)
		if !IsNull(l) && !IsNull(r) {
			return SolveArithmetic, kb.eval(f, OpAdd, l, r)
		}
	case *Negate:
		if v := kb.calculate(t.Term); !IsNull(v) {
			return SolveArithmetic, kb.eval(f, OpSub, v)
		}
	case *SymbolRelation:
		r := t.Relation()
		switch {
		case kb.HasRelation(t.About, r):
			return SolveTrue, nil
		case kb.HasRelation(t.About, r.Negate()):
			return SolveFalse, nil
		}
	case *PropertyDeclaration:
		if kb.holds(t) {
			return SolveTrue, nil
		}
	}
	return NoSolution, nil
}

func truthDirective(b bool) Directive {
	if b {
		return SolveTrue
	}
	return SolveFalse
}

// directiveFor is what a parent tells child given the parent's current state.
func (kb *KB) directiveFor(parent, child Factor) Directive {
	switch p := parent.(type) {
	case probe:
		return NoSolution
	case *And:
		if kb.isTrue(p) {
			return SolveTrue
		}
		if kb.isFalse(p) && kb.othersAll(p.Terms, child, kb.isTrue) {
			return SolveFalse
		}
	case *Or:
		if kb.isFalse(p) {
			return SolveFalse
		}
		if kb.isTrue(p) && kb.othersAll(p.Terms, child, kb.isFalse) {
			return SolveTrue
		}
	case *Not:
		if p.solved {
			return truthDirective(!p.value)
		}
	case *Implies:
		if child == p.Then && kb.isTrue(p) && kb.isTrue(p.Cond) {
			return SolveTrue
		}
	case *Iff:
		other := p.Q
		if child == p.Q {
			other = p.P
		}
		if p.solved && kb.isSolved(other) {
			return truthDirective(kb.truth(other) == p.value)
		}
	case *Equals:
		other := p.Right
		if child == p.Right {
			other = p.Left
		}
		if kb.isTrue(p) && !IsNull(kb.calculate(other)) {
			return SolveArithmetic
		}
	case *GreaterOrEqual, *PropertyDeclaration:
		return NoSolution
	case *Add:
		other := p.Right
		if child == p.Right {
			other = p.Left
		}
		if p.solved && p.alt != nil && !IsNull(kb.calculate(other)) {
			return SolveArithmetic
		}
	case *Negate:
		if p.solved && p.alt != nil {
			return SolveArithmetic
		}
	default:
		return Other
	}
	return NoSolution
}

// othersAll reports whether every term except child satisfies pred. Duplicates
// of child count as child.
func (kb *KB) othersAll(terms []Factor, child Factor, pred func(Factor) bool) bool {
	for _, t := range terms {
		if t != child && !pred(t) {
			return false
		}
	}
	return true
}

// altSolutionFor isolates child's value from a parent that issued
// SolveArithmetic.
func (kb *KB) altSolutionFor(parent, child Factor) Factor {
	switch p := parent.(type) {
	case *Equals:
		if child == p.Right {
			return kb.calculate(p.Left)
		}
		return kb.calculate(p.Right)
	case *Add:
		other := p.Right
		if child == p.Right {
			other = p.Left
		}
		return kb.eval(parent, OpSub, p.alt, kb.calculate(other))
	case *Negate:
		return kb.eval(parent, OpSub, p.alt)
	}
	return Null
}

// eval applies op and logs combinations the value types cannot handle.
func (kb *KB) eval(at Factor, op Op, x Factor, args ...Factor) Factor {
	v, err := Eval(op, x, args...)
	if err != nil {
		kb.logger.Debug("arithmetic degraded to null",
			zap.Stringer("factor", at),
			zap.Stringer("op", op),
			zap.Error(err))
		return Null
	}
	return v
}
