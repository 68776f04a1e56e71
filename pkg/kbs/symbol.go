package kbs

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cognicore/kbs/pkg/kbs/internalerr"
)

// SymbolID is a symbol's position in its knowledge base. IDs are assigned in
// registration order starting at zero.
type SymbolID int

// NoSymbol is the id of the zero SymbolRef.
const NoSymbol SymbolID = -1

// SymbolRef is a handle to a symbol registered in a KB. Two refs are equal iff
// they name the same symbol of the same KB.
type SymbolRef struct {
	kb *KB
	id SymbolID
}

// ID returns the symbol's id, or NoSymbol for the zero ref.
func (s SymbolRef) ID() SymbolID {
	if s.kb == nil {
		return NoSymbol
	}
	return s.id
}

// Valid reports whether s refers to a registered symbol.
func (s SymbolRef) Valid() bool {
	return s.kb != nil && s.id >= 0 && int(s.id) < len(s.kb.symbols)
}

// Name returns the symbol's identifier.
func (s SymbolRef) Name() string {
	if !s.Valid() {
		return "<nil>"
	}
	return s.kb.symbols[s.id].name
}

func (s SymbolRef) String() string { return s.Name() }

func (SymbolRef) factor() {}

// Of builds the relation s(inner), e.g. kb.Is.Of(dog) for is(dog).
func (s SymbolRef) Of(inner SymbolRef) Relation {
	return Relation{Outer: s, Inner: inner}
}

// Relate builds the classification "s is class(to)".
func (s SymbolRef) Relate(class, to SymbolRef) *SymbolRelation {
	return NewSymbolRelation(s, class, to)
}

// Relation is a classification fact such as is(cat). The inverse relation
// ~is(cat) records definite non-membership.
type Relation struct {
	Outer   SymbolRef
	Inner   SymbolRef
	Inverse bool
}

// Negate returns the paired relation with the inverse flag flipped.
func (r Relation) Negate() Relation {
	r.Inverse = !r.Inverse
	return r
}

func (r Relation) String() string {
	prefix := ""
	if r.Inverse {
		prefix = "~"
	}
	return fmt.Sprintf("%s%s(%s)", prefix, r.Outer, r.Inner)
}

// PropertyTarget is something a property can be declared on: a symbol, or a
// relation whose members all receive the property as a default.
type PropertyTarget interface {
	String() string
	propertyTarget()
}

func (SymbolRef) propertyTarget() {}

func (Relation) propertyTarget() {}

// PropertyValue is one entry of a symbol's effective property map.
type PropertyValue struct {
	Property SymbolRef
	Value    Factor
	// From is set when the value is a default inherited from a held relation.
	From *Relation
}

// symbol is an arena entry.
type symbol struct {
	node
	name       string
	classified bool
	relational bool
	relations  map[Relation]struct{}
	properties map[SymbolID]Factor
	derived    map[SymbolID]Factor // asserted during the current solve
	inverse    SymbolID
	isInverse  bool
}

func (s *symbol) resetSolution() {
	s.node.reset()
	s.classified = false
	clear(s.relations)
	clear(s.derived)
}

// NewSymbol registers a symbol named name.
func (kb *KB) NewSymbol(name string) (SymbolRef, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return SymbolRef{}, fmt.Errorf("%w: empty symbol name", internalerr.ErrInvalidInput)
	}
	if _, ok := kb.byName[name]; ok {
		return SymbolRef{}, fmt.Errorf("symbol %q: %w", name, internalerr.ErrDuplicate)
	}
	id := kb.nextSymbolID()
	kb.symbols = append(kb.symbols, &symbol{
		name:       name,
		relations:  make(map[Relation]struct{}),
		properties: make(map[SymbolID]Factor),
		derived:    make(map[SymbolID]Factor),
		inverse:    NoSymbol,
	})
	kb.byName[name] = id
	return SymbolRef{kb: kb, id: id}, nil
}

// MustSymbol is NewSymbol for names known to be fresh. It panics on error.
func (kb *KB) MustSymbol(name string) SymbolRef {
	s, err := kb.NewSymbol(name)
	if err != nil {
		panic(err)
	}
	return s
}

// RegisterAll registers every name, stopping at the first failure.
func (kb *KB) RegisterAll(names ...string) ([]SymbolRef, error) {
	out := make([]SymbolRef, 0, len(names))
	for _, n := range names {
		s, err := kb.NewSymbol(n)
		if err != nil {
			return out, err
		}
		out = append(out, s)
	}
	return out, nil
}

// Lookup returns the symbol registered under name.
func (kb *KB) Lookup(name string) (SymbolRef, bool) {
	id, ok := kb.byName[name]
	if !ok {
		return SymbolRef{}, false
	}
	return SymbolRef{kb: kb, id: id}, true
}

// Intern returns the symbol named name, registering it on first use.
func (kb *KB) Intern(name string) (SymbolRef, error) {
	if s, ok := kb.Lookup(name); ok {
		return s, nil
	}
	return kb.NewSymbol(name)
}

// AllSymbols returns every registered symbol in id order.
func (kb *KB) AllSymbols() []SymbolRef {
	out := make([]SymbolRef, len(kb.symbols))
	for i := range kb.symbols {
		out[i] = SymbolRef{kb: kb, id: SymbolID(i)}
	}
	return out
}

// InverseOf returns the symbol "~name" standing for "not s", creating and
// linking it on first use.
func (kb *KB) InverseOf(s SymbolRef) (SymbolRef, error) {
	if err := kb.own(s); err != nil {
		return SymbolRef{}, err
	}
	entry := kb.symbols[s.id]
	if entry.inverse != NoSymbol {
		return SymbolRef{kb: kb, id: entry.inverse}, nil
	}
	inv, err := kb.NewSymbol("~" + entry.name)
	if err != nil {
		return SymbolRef{}, err
	}
	entry.inverse = inv.id
	invEntry := kb.symbols[inv.id]
	invEntry.inverse = s.id
	invEntry.isInverse = true
	return inv, nil
}

// IsInverse reports whether s was created by InverseOf.
func (kb *KB) IsInverse(s SymbolRef) bool {
	return kb.own(s) == nil && kb.symbols[s.id].isInverse
}

// Relations returns the relations s currently holds, sorted for display.
func (kb *KB) Relations(s SymbolRef) []Relation {
	if kb.own(s) != nil {
		return nil
	}
	out := make([]Relation, 0, len(kb.symbols[s.id].relations))
	for r := range kb.symbols[s.id].relations {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Outer.id != out[j].Outer.id {
			return out[i].Outer.id < out[j].Outer.id
		}
		if out[i].Inner.id != out[j].Inner.id {
			return out[i].Inner.id < out[j].Inner.id
		}
		return !out[i].Inverse && out[j].Inverse
	})
	return out
}

// HasRelation reports whether s currently holds r.
func (kb *KB) HasRelation(s SymbolRef, r Relation) bool {
	if kb.own(s) != nil {
		return false
	}
	_, ok := kb.symbols[s.id].relations[r]
	return ok
}

// SetProperty stores value under prop on target. Properties are not cleared by
// Solve; values asserted by a solve are kept apart and do not outlive it.
func (kb *KB) SetProperty(target PropertyTarget, prop SymbolRef, value Factor) error {
	if err := kb.storeProperty(target, prop, value, false); err != nil {
		return err
	}
	kb.solved = false
	return nil
}

// deriveProperty records a property asserted true by the running solve.
func (kb *KB) deriveProperty(target PropertyTarget, prop SymbolRef, value Factor) error {
	return kb.storeProperty(target, prop, value, true)
}

func (kb *KB) storeProperty(target PropertyTarget, prop SymbolRef, value Factor, derived bool) error {
	if err := kb.own(prop); err != nil {
		return err
	}
	if value == nil {
		return fmt.Errorf("%w: nil value for property %s", internalerr.ErrInvalidInput, prop)
	}
	switch t := target.(type) {
	case SymbolRef:
		if err := kb.own(t); err != nil {
			return err
		}
		s := kb.symbols[t.id]
		if derived {
			s.derived[prop.id] = value
		} else {
			s.properties[prop.id] = value
		}
	case Relation:
		if err := kb.ownRelation(t); err != nil {
			return err
		}
		all := kb.relationProps
		if derived {
			all = kb.derivedRelationProps
		}
		props, ok := all[t]
		if !ok {
			props = make(map[SymbolID]Factor)
			all[t] = props
		}
		props[prop.id] = value
	default:
		return fmt.Errorf("%w: property target %v", internalerr.ErrInvalidInput, target)
	}
	return nil
}

// lookupProperty prefers a declared value over one derived by the last solve.
func lookupProperty(declared, derived map[SymbolID]Factor, prop SymbolID) (Factor, bool) {
	if v, ok := declared[prop]; ok {
		return v, true
	}
	v, ok := derived[prop]
	return v, ok
}

func mergeProperties(declared, derived map[SymbolID]Factor) map[SymbolID]Factor {
	if len(derived) == 0 {
		return declared
	}
	out := make(map[SymbolID]Factor, len(declared)+len(derived))
	for id, v := range derived {
		out[id] = v
	}
	for id, v := range declared {
		out[id] = v
	}
	return out
}

// Property returns the effective value of prop on s: its own value first,
// otherwise a default from one of the relations it holds.
func (kb *KB) Property(s SymbolRef, prop SymbolRef) (Factor, bool) {
	if kb.own(s) != nil || kb.own(prop) != nil {
		return nil, false
	}
	sym := kb.symbols[s.id]
	if v, ok := lookupProperty(sym.properties, sym.derived, prop.id); ok {
		return v, true
	}
	for _, r := range kb.Relations(s) {
		if v, ok := lookupProperty(kb.relationProps[r], kb.derivedRelationProps[r], prop.id); ok {
			return v, true
		}
	}
	return nil, false
}

// HasProperty reports whether the effective value of prop on s equals value.
func (kb *KB) HasProperty(s SymbolRef, prop SymbolRef, value Factor) bool {
	v, ok := kb.Property(s, prop)
	return ok && valuesEqual(v, value)
}

// targetProperty reads prop directly from a symbol or relation target, without
// relation defaults.
func (kb *KB) targetProperty(target PropertyTarget, prop SymbolRef) (Factor, bool) {
	switch t := target.(type) {
	case SymbolRef:
		return kb.Property(t, prop)
	case Relation:
		return lookupProperty(kb.relationProps[t], kb.derivedRelationProps[t], prop.id)
	}
	return nil, false
}

// Properties returns the effective properties of s, own values first.
func (kb *KB) Properties(s SymbolRef) []PropertyValue {
	if kb.own(s) != nil {
		return nil
	}
	seen := make(map[SymbolID]bool)
	var out []PropertyValue
	sym := kb.symbols[s.id]
	own := mergeProperties(sym.properties, sym.derived)
	ids := make([]SymbolID, 0, len(own))
	for id := range own {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		seen[id] = true
		out = append(out, PropertyValue{Property: SymbolRef{kb: kb, id: id}, Value: own[id]})
	}
	for _, r := range kb.Relations(s) {
		props := mergeProperties(kb.relationProps[r], kb.derivedRelationProps[r])
		ids = ids[:0]
		for id := range props {
			if !seen[id] {
				ids = append(ids, id)
			}
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		for _, id := range ids {
			seen[id] = true
			rel := r
			out = append(out, PropertyValue{Property: SymbolRef{kb: kb, id: id}, Value: props[id], From: &rel})
		}
	}
	return out
}

// IsRelational reports whether s has been used as the class of a relation.
func (kb *KB) IsRelational(s SymbolRef) bool {
	return kb.own(s) == nil && kb.symbols[s.id].relational
}

// own checks that s was registered in kb.
func (kb *KB) own(s SymbolRef) error {
	if s.kb != kb || !s.Valid() {
		return fmt.Errorf("%w: %s", internalerr.ErrForeignSymbol, s)
	}
	return nil
}

func (kb *KB) ownRelation(r Relation) error {
	if err := kb.own(r.Outer); err != nil {
		return err
	}
	return kb.own(r.Inner)
}

func (kb *KB) sym(s SymbolRef) *symbol {
	return kb.symbols[s.id]
}
