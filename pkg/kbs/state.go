package kbs

// stateOf returns the mutable state behind f, or nil for literals.
func (kb *KB) stateOf(f Factor) *node {
	switch t := f.(type) {
	case SymbolRef:
		if !t.Valid() {
			return nil
		}
		return &t.kb.symbols[t.id].node
	case stateful:
		return t.state()
	}
	return nil
}

// isSolved reports whether f has a known state. Literals other than Null are
// always solved.
func (kb *KB) isSolved(f Factor) bool {
	switch f.(type) {
	case Number, Text, Bool:
		return true
	case nil, null, probe:
		return false
	}
	if n := kb.stateOf(f); n != nil {
		return n.solved
	}
	return false
}

// truth is the boolean reading of f's current state, ignoring whether it is
// solved.
func (kb *KB) truth(f Factor) bool {
	switch t := f.(type) {
	case Bool:
		return t.b
	case Number, Text:
		return true
	case nil, null:
		return false
	}
	n := kb.stateOf(f)
	if n == nil {
		return false
	}
	if n.alt != nil {
		return kb.truth(n.alt)
	}
	return n.value
}

func (kb *KB) isTrue(f Factor) bool { return kb.isSolved(f) && kb.truth(f) }

func (kb *KB) isFalse(f Factor) bool { return kb.isSolved(f) && !kb.truth(f) }

// holds computes the structural truth of f from the live state of its parts.
func (kb *KB) holds(f Factor) bool {
	switch t := f.(type) {
	case Number, Text, Bool, nil, null:
		return kb.truth(f)
	case SymbolRef:
		return kb.isTrue(t)
	case *And:
		for _, c := range t.Terms {
			if !kb.holds(c) {
				return false
			}
		}
		return true
	case *Or:
		for _, c := range t.Terms {
			if kb.holds(c) {
				return true
			}
		}
		return false
	case *Not:
		return !kb.holds(t.Term)
	case *Implies:
		return !kb.holds(t.Cond) || kb.holds(t.Then)
	case *Iff:
		return kb.holds(t.P) == kb.holds(t.Q)
	case *Equals:
		l, r := kb.calculate(t.Left), kb.calculate(t.Right)
		if IsNull(l) || IsNull(r) {
			return t.solved && t.value
		}
		return valuesEqual(l, r)
	case *GreaterOrEqual:
		if ge, ok := kb.compare(t); ok {
			return ge
		}
		return t.solved && t.value
	case *Add, *Negate:
		return true
	case *SymbolRelation:
		return kb.HasRelation(t.About, t.Relation())
	case *PropertyDeclaration:
		stored, ok := kb.targetProperty(t.Target, t.Property)
		return ok && valuesEqual(stored, kb.propertyValue(t.Value))
	}
	return false
}

// calculate returns the value f resolved to: its alt when present, otherwise
// the boolean it was solved to. Unsolved factors calculate to Null.
func (kb *KB) calculate(f Factor) Factor {
	switch t := f.(type) {
	case Number, Text, Bool:
		return t
	case nil, null, probe:
		return Null
	}
	n := kb.stateOf(f)
	if n == nil || !n.solved {
		return Null
	}
	if n.alt != nil {
		return n.alt
	}
	return BoolOf(kb.holds(f))
}

// compare evaluates a GreaterOrEqual whose sides are both numbers.
func (kb *KB) compare(g *GreaterOrEqual) (bool, bool) {
	l, lok := kb.calculate(g.Left).(Number)
	r, rok := kb.calculate(g.Right).(Number)
	if !lok || !rok {
		return false, false
	}
	return l.Rat().Cmp(r.Rat()) >= 0, true
}

// propertyValue is what a declaration stores: symbols by reference, anything
// else by its calculated value.
func (kb *KB) propertyValue(v Factor) Factor {
	if s, ok := v.(SymbolRef); ok {
		return s
	}
	return kb.calculate(v)
}

// Simplify unwraps single-term And and Or nodes throughout f and returns the
// replacement root.
func Simplify(f Factor) Factor {
	switch t := f.(type) {
	case *And:
		for i, c := range t.Terms {
			t.Terms[i] = Simplify(c)
		}
		if len(t.Terms) == 1 {
			return t.Terms[0]
		}
	case *Or:
		for i, c := range t.Terms {
			t.Terms[i] = Simplify(c)
		}
		if len(t.Terms) == 1 {
			return t.Terms[0]
		}
	case *Not:
		t.Term = Simplify(t.Term)
	case *Implies:
		t.Cond, t.Then = Simplify(t.Cond), Simplify(t.Then)
	case *Iff:
		t.P, t.Q = Simplify(t.P), Simplify(t.Q)
	case *Equals:
		t.Left, t.Right = Simplify(t.Left), Simplify(t.Right)
	case *GreaterOrEqual:
		t.Left, t.Right = Simplify(t.Left), Simplify(t.Right)
	case *Add:
		t.Left, t.Right = Simplify(t.Left), Simplify(t.Right)
	case *Negate:
		t.Term = Simplify(t.Term)
	case *PropertyDeclaration:
		t.Value = Simplify(t.Value)
	}
	return f
}
