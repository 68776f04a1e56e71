// Package taxonomy derives the transitive closure of a solved knowledge base's
// classification relations.
//
// Every relation a symbol holds after solving becomes a Datalog fact:
//
//	rel(/fido, /is, /dog)       fido::is(dog)
//	notrel(/fido, /is, /cat)    fido::~is(cat)
//
// The facts are evaluated with Mangle against a small closure program, so
// fido::is(dog) and dog::is(animal) give fido::is(animal). Non-membership
// propagates by contraposition: if fido is not a canine and dog is a canine,
// fido is not a dog.
package taxonomy

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/google/mangle/analysis"
	"github.com/google/mangle/ast"
	_ "github.com/google/mangle/builtin"
	"github.com/google/mangle/engine"
	"github.com/google/mangle/factstore"
	"github.com/google/mangle/parse"
	"go.uber.org/zap"

	"github.com/cognicore/kbs/pkg/kbs"
)

const program = `
Decl rel(S, C, O) bound[/name, /name, /name].
Decl notrel(S, C, O) bound[/name, /name, /name].

holds(S, C, O) :- rel(S, C, O).
holds(S, C, O) :- holds(S, C, M), rel(M, C, O).

excluded(S, C, O) :- notrel(S, C, O).
excluded(S, C, O) :- excluded(S, C, M), holds(O, C, M).

contradiction(S, C, O) :- holds(S, C, O), excluded(S, C, O).
`

// Fact is one subject::class(object) triple.
type Fact struct {
	Subject kbs.SymbolRef
	Class   kbs.SymbolRef
	Object  kbs.SymbolRef
}

func (f Fact) String() string {
	return fmt.Sprintf("%s::%s(%s)", f.Subject, f.Class, f.Object)
}

// Step represents one hop in a derivation chain
type Step struct {
	Class kbs.SymbolRef
	From  kbs.SymbolRef
	To    kbs.SymbolRef
	Depth int    // hops from the subject
	Rule  string // the fact applied, e.g. "dog::is(animal)"
}

type key struct {
	subject, class, object kbs.SymbolID
}

// Taxonomy holds the closure computed from one solved KB. It does not follow
// later changes to the KB; build a new one after re-solving.
type Taxonomy struct {
	symbols []kbs.SymbolRef

	direct   map[key]bool
	holds    map[key]bool
	excluded map[key]bool
	conflict []Fact

	// edges[subject] lists direct positive relations in id order
	edges map[kbs.SymbolID][]key
}

// Build re-solves kb and evaluates the closure of its relations.
func Build(kb *kbs.KB, logger *zap.Logger) (*Taxonomy, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	kb.Solve()

	t := &Taxonomy{
		symbols:  kb.AllSymbols(),
		direct:   make(map[key]bool),
		holds:    make(map[key]bool),
		excluded: make(map[key]bool),
		edges:    make(map[kbs.SymbolID][]key),
	}

	var facts []ast.Atom
	for _, s := range t.symbols {
		for _, r := range kb.Relations(s) {
			k := key{s.ID(), r.Outer.ID(), r.Inner.ID()}
			pred := "rel"
			if r.Inverse {
				pred = "notrel"
			} else {
				t.direct[k] = true
				t.edges[k.subject] = append(t.edges[k.subject], k)
			}
			atom, err := t.atom(pred, k)
			if err != nil {
				return nil, err
			}
			facts = append(facts, atom)
		}
	}

	// Nothing to derive
	if len(facts) == 0 {
		return t, nil
	}

	unit, err := parse.Unit(strings.NewReader(program))
	if err != nil {
		return nil, fmt.Errorf("parse closure program: %w", err)
	}
	programInfo, err := analysis.AnalyzeOneUnit(unit, nil)
	if err != nil {
		return nil, fmt.Errorf("analyze closure program: %w", err)
	}

	store := factstore.NewSimpleInMemoryStore()
	for _, atom := range facts {
		store.Add(atom)
	}
	if _, err := engine.EvalProgramWithStats(programInfo, store); err != nil {
		return nil, fmt.Errorf("evaluate closure: %w", err)
	}

	if err := t.collect(store, "holds", func(k key) { t.holds[k] = true }); err != nil {
		return nil, err
	}
	if err := t.collect(store, "excluded", func(k key) { t.excluded[k] = true }); err != nil {
		return nil, err
	}
	if err := t.collect(store, "contradiction", func(k key) { t.conflict = append(t.conflict, t.fact(k)) }); err != nil {
		return nil, err
	}
	sort.Slice(t.conflict, func(i, j int) bool { return less(t.conflict[i], t.conflict[j]) })

	logger.Debug("taxonomy built",
		zap.Int("facts", len(facts)),
		zap.Int("derived", len(t.holds)),
		zap.Int("excluded", len(t.excluded)),
		zap.Int("contradictions", len(t.conflict)))
	return t, nil
}

func (t *Taxonomy) atom(pred string, k key) (ast.Atom, error) {
	args := make([]ast.BaseTerm, 0, 3)
	for _, id := range []kbs.SymbolID{k.subject, k.class, k.object} {
		c, err := ast.Name(constName(id))
		if err != nil {
			return ast.Atom{}, fmt.Errorf("symbol %s: %w", t.symbols[id], err)
		}
		args = append(args, c)
	}
	return ast.NewAtom(pred, args...), nil
}

func (t *Taxonomy) collect(store factstore.FactStore, pred string, fn func(key)) error {
	query := ast.NewQuery(ast.PredicateSym{Symbol: pred, Arity: 3})
	return store.GetFacts(query, func(atom ast.Atom) error {
		var ids [3]kbs.SymbolID
		for i, arg := range atom.Args {
			c, ok := arg.(ast.Constant)
			if !ok || c.Type != ast.NameType {
				return fmt.Errorf("%s: unexpected term %v", pred, arg)
			}
			id, err := parseName(c.Symbol)
			if err != nil || int(id) >= len(t.symbols) {
				return fmt.Errorf("%s: unknown symbol %s", pred, c.Symbol)
			}
			ids[i] = id
		}
		fn(key{ids[0], ids[1], ids[2]})
		return nil
	})
}

// Symbols are encoded by id so arbitrary names survive the round trip.
func constName(id kbs.SymbolID) string {
	return "/s" + strconv.Itoa(int(id))
}

func parseName(name string) (kbs.SymbolID, error) {
	n, err := strconv.Atoi(strings.TrimPrefix(name, "/s"))
	if err != nil || n < 0 {
		return kbs.NoSymbol, fmt.Errorf("bad symbol name %q", name)
	}
	return kbs.SymbolID(n), nil
}

func (t *Taxonomy) fact(k key) Fact {
	return Fact{Subject: t.symbols[k.subject], Class: t.symbols[k.class], Object: t.symbols[k.object]}
}

func less(a, b Fact) bool {
	if a.Subject.ID() != b.Subject.ID() {
		return a.Subject.ID() < b.Subject.ID()
	}
	if a.Class.ID() != b.Class.ID() {
		return a.Class.ID() < b.Class.ID()
	}
	return a.Object.ID() < b.Object.ID()
}

// Query reports whether subject::class(object) is known or derived.
func (t *Taxonomy) Query(class, subject, object kbs.SymbolRef) bool {
	return t.holds[key{subject.ID(), class.ID(), object.ID()}]
}

// Excluded reports whether subject::~class(object) is known or derived.
func (t *Taxonomy) Excluded(class, subject, object kbs.SymbolRef) bool {
	return t.excluded[key{subject.ID(), class.ID(), object.ID()}]
}

// QueryAll returns every object subject relates to through class, in id order.
func (t *Taxonomy) QueryAll(class, subject kbs.SymbolRef) []kbs.SymbolRef {
	var out []kbs.SymbolRef
	for k := range t.holds {
		if k.subject == subject.ID() && k.class == class.ID() {
			out = append(out, t.symbols[k.object])
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Facts returns the derived positive facts, direct ones included.
func (t *Taxonomy) Facts() []Fact {
	out := make([]Fact, 0, len(t.holds))
	for k := range t.holds {
		out = append(out, t.fact(k))
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

// Contradictions returns facts derived both positively and negatively.
func (t *Taxonomy) Contradictions() []Fact {
	return append([]Fact(nil), t.conflict...)
}

// FindPath returns the shortest chain of direct facts leading from subject to
// object under any class, or nil when there is none.
func (t *Taxonomy) FindPath(subject, object kbs.SymbolRef) []Step {
	return t.path(subject, object, func(key) bool { return true })
}

// Explain describes how subject::class(object) was reached.
func (t *Taxonomy) Explain(class, subject, object kbs.SymbolRef) string {
	f := Fact{Subject: subject, Class: class, Object: object}
	k := key{subject.ID(), class.ID(), object.ID()}
	switch {
	case t.direct[k]:
		return fmt.Sprintf("%s is directly known", f)
	case t.holds[k]:
		var b strings.Builder
		fmt.Fprintf(&b, "Inference chain for %s:\n", f)
		within := func(k key) bool { return k.class == class.ID() }
		for i, step := range t.path(subject, object, within) {
			fmt.Fprintf(&b, "  %d. %s\n", i+1, step.Rule)
		}
		return b.String()
	case t.excluded[k]:
		return fmt.Sprintf("%s is excluded", f)
	}
	return fmt.Sprintf("Cannot prove %s", f)
}

// path runs a breadth-first search over the direct facts accepted by follow.
func (t *Taxonomy) path(subject, object kbs.SymbolRef, follow func(key) bool) []Step {
	type visit struct {
		id   kbs.SymbolID
		path []Step
	}
	seen := map[kbs.SymbolID]bool{subject.ID(): true}
	queue := []visit{{id: subject.ID()}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, k := range t.edges[cur.id] {
			if !follow(k) {
				continue
			}
			path := append(append([]Step(nil), cur.path...), Step{
				Class: t.symbols[k.class],
				From:  t.symbols[k.subject],
				To:    t.symbols[k.object],
				Depth: len(cur.path),
				Rule:  t.fact(k).String(),
			})
			if k.object == object.ID() {
				return path
			}
			if !seen[k.object] {
				seen[k.object] = true
				queue = append(queue, visit{id: k.object, path: path})
			}
		}
	}
	return nil
}
