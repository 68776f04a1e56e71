package kbs

import "fmt"

// SymbolRelation states that About holds Class(To), e.g. fido is(dog). Asserted
// true it records the relation on About; asserted false it records the inverse.
type SymbolRelation struct {
	node
	About SymbolRef
	Class SymbolRef
	To    SymbolRef
}

func NewSymbolRelation(about, class, to SymbolRef) *SymbolRelation {
	return &SymbolRelation{About: about, Class: class, To: to}
}

// Relation returns the positive relation this factor classifies About into.
func (r *SymbolRelation) Relation() Relation {
	return Relation{Outer: r.Class, Inner: r.To}
}

func (r *SymbolRelation) String() string {
	return fmt.Sprintf("%s::%s", r.About, r.Relation())
}

// PropertyDeclaration sets Property to Value on Target when asserted true. A
// Relation target declares a default for every symbol holding that relation.
type PropertyDeclaration struct {
	node
	Target   PropertyTarget
	Property SymbolRef
	Value    Factor
}

func NewPropertyDeclaration(target PropertyTarget, prop SymbolRef, value Factor) *PropertyDeclaration {
	return &PropertyDeclaration{Target: target, Property: prop, Value: value}
}

func (p *PropertyDeclaration) String() string {
	if r, ok := p.Target.(Relation); ok {
		return fmt.Sprintf("for any %s, has %s : %s", r, p.Property, str(p.Value))
	}
	return fmt.Sprintf("%s has %s : %s", p.Target, p.Property, str(p.Value))
}
