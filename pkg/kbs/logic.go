package kbs

import (
	"fmt"
	"strings"

	"github.com/cognicore/kbs/pkg/kbs/internalerr"
)

// And holds when every term holds.
type And struct {
	node
	Terms []Factor
}

// NewAnd joins terms. At least one term is required.
func NewAnd(terms ...Factor) (*And, error) {
	if len(terms) == 0 {
		return nil, fmt.Errorf("%w: and needs at least one term", internalerr.ErrInvalidInput)
	}
	return &And{Terms: terms}, nil
}

// MustAnd is NewAnd that panics on an empty term list.
func MustAnd(terms ...Factor) *And {
	a, err := NewAnd(terms...)
	if err != nil {
		panic(err)
	}
	return a
}

func (a *And) String() string { return joinTerms(a.Terms, " and ") }

// Or holds when any term holds.
type Or struct {
	node
	Terms []Factor
}

// NewOr joins terms. At least one term is required.
func NewOr(terms ...Factor) (*Or, error) {
	if len(terms) == 0 {
		return nil, fmt.Errorf("%w: or needs at least one term", internalerr.ErrInvalidInput)
	}
	return &Or{Terms: terms}, nil
}

// MustOr is NewOr that panics on an empty term list.
func MustOr(terms ...Factor) *Or {
	o, err := NewOr(terms...)
	if err != nil {
		panic(err)
	}
	return o
}

func (o *Or) String() string { return joinTerms(o.Terms, " or ") }

// Not holds when its term does not.
type Not struct {
	node
	Term Factor
}

func NewNot(term Factor) *Not { return &Not{Term: term} }

func (n *Not) String() string { return "~" + str(n.Term) }

// Implies holds unless Cond holds and Then does not.
type Implies struct {
	node
	Cond Factor
	Then Factor
}

func NewImplies(cond, then Factor) *Implies { return &Implies{Cond: cond, Then: then} }

func (i *Implies) String() string { return "(" + str(i.Cond) + " -> " + str(i.Then) + ")" }

// Iff holds when both sides agree.
type Iff struct {
	node
	P Factor
	Q Factor
}

func NewIff(p, q Factor) *Iff { return &Iff{P: p, Q: q} }

// NewDisagree states that p and q have opposite truth values.
func NewDisagree(p, q Factor) *Not { return NewNot(NewIff(p, q)) }

func (i *Iff) String() string { return "(" + str(i.P) + " <-> " + str(i.Q) + ")" }

func joinTerms(terms []Factor, sep string) string {
	parts := make([]string, len(terms))
	for i, t := range terms {
		parts[i] = str(t)
	}
	return "(" + strings.Join(parts, sep) + ")"
}

func str(f Factor) string {
	if f == nil {
		return "<nil>"
	}
	return f.String()
}
