package taxonomy

import (
	"strings"
	"testing"

	"github.com/google/mangle/analysis"
	"github.com/google/mangle/parse"

	"github.com/cognicore/kbs/pkg/kbs"
	"github.com/cognicore/kbs/pkg/kbs/rules"
)

func build(t *testing.T, text string) (*kbs.KB, *Taxonomy) {
	t.Helper()
	kb := kbs.New(kbs.Options{})
	if err := rules.LoadRules(kb, text); err != nil {
		t.Fatalf("LoadRules failed: %v", err)
	}
	tax, err := Build(kb, nil)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return kb, tax
}

func sym(t *testing.T, kb *kbs.KB, name string) kbs.SymbolRef {
	t.Helper()
	s, ok := kb.Lookup(name)
	if !ok {
		t.Fatalf("symbol %s not registered", name)
	}
	return s
}

const chain = `
rel(fido, is, dog)
rel(rex, is, dog)
rel(dog, is, canine)
rel(canine, is, animal)
`

func TestTransitiveClosure(t *testing.T) {
	kb, tax := build(t, chain)
	fido, dog, animal := sym(t, kb, "fido"), sym(t, kb, "dog"), sym(t, kb, "animal")

	if !tax.Query(kb.Is, fido, dog) {
		t.Error("Expected fido::is(dog)")
	}
	if !tax.Query(kb.Is, fido, animal) {
		t.Error("Expected transitive: fido::is(animal)")
	}
	if tax.Query(kb.Is, animal, fido) {
		t.Error("Closure must not run backwards")
	}
	if tax.Query(kb.Is, dog, dog) {
		t.Error("Unexpected reflexive fact")
	}
}

func TestQueryAll(t *testing.T) {
	kb, tax := build(t, chain)

	results := tax.QueryAll(kb.Is, sym(t, kb, "rex"))

	expected := []string{"dog", "canine", "animal"}
	if len(results) != len(expected) {
		t.Fatalf("Expected %d results, got %v", len(expected), results)
	}
	for i, r := range results {
		if r.Name() != expected[i] {
			t.Errorf("Result %d: expected %s, got %s", i, expected[i], r)
		}
	}
}

func TestFindPath(t *testing.T) {
	kb, tax := build(t, chain)

	path := tax.FindPath(sym(t, kb, "fido"), sym(t, kb, "animal"))
	if len(path) != 3 {
		t.Fatalf("Expected 3 steps, got %v", path)
	}
	if path[0].Rule != "fido::is(dog)" || path[2].Rule != "canine::is(animal)" {
		t.Errorf("Unexpected path: %v", path)
	}
	for i, step := range path {
		if step.Depth != i {
			t.Errorf("Step %d has depth %d", i, step.Depth)
		}
	}

	if p := tax.FindPath(sym(t, kb, "animal"), sym(t, kb, "fido")); p != nil {
		t.Errorf("Expected no path, got %v", p)
	}
}

func TestExplain(t *testing.T) {
	kb, tax := build(t, chain)
	fido, dog, animal := sym(t, kb, "fido"), sym(t, kb, "dog"), sym(t, kb, "animal")

	if got := tax.Explain(kb.Is, fido, dog); got != "fido::is(dog) is directly known" {
		t.Errorf("Unexpected explanation: %q", got)
	}

	got := tax.Explain(kb.Is, fido, animal)
	if !strings.HasPrefix(got, "Inference chain for fido::is(animal):") {
		t.Errorf("Unexpected explanation: %q", got)
	}
	if !strings.Contains(got, "2. dog::is(canine)") {
		t.Errorf("Expected the middle step in %q", got)
	}

	if got := tax.Explain(kb.Is, animal, fido); !strings.HasPrefix(got, "Cannot prove") {
		t.Errorf("Unexpected explanation: %q", got)
	}
}

func TestExclusionByContraposition(t *testing.T) {
	kb, tax := build(t, chain+"not(rel(tom, is, canine))\n")
	tom := sym(t, kb, "tom")

	if !tax.Excluded(kb.Is, tom, sym(t, kb, "canine")) {
		t.Error("Expected tom::~is(canine)")
	}
	if !tax.Excluded(kb.Is, tom, sym(t, kb, "dog")) {
		t.Error("Expected tom::~is(dog) because every dog is a canine")
	}
	if tax.Excluded(kb.Is, tom, sym(t, kb, "animal")) {
		t.Error("Not being a canine says nothing about being an animal")
	}
	if got := tax.Explain(kb.Is, tom, sym(t, kb, "dog")); got != "tom::is(dog) is excluded" {
		t.Errorf("Unexpected explanation: %q", got)
	}
	if len(tax.Contradictions()) != 0 {
		t.Errorf("Unexpected contradictions: %v", tax.Contradictions())
	}
}

func TestContradictions(t *testing.T) {
	kb, tax := build(t, chain+"not(rel(fido, is, animal))\n")

	if kb.HasConflict() != nil {
		t.Fatal("The KB itself does not chain relations")
	}

	// Not an animal excludes dog and canine too, and fido holds both.
	var got []string
	for _, f := range tax.Contradictions() {
		got = append(got, f.String())
	}
	expected := []string{"fido::is(dog)", "fido::is(canine)", "fido::is(animal)"}
	if strings.Join(got, " ") != strings.Join(expected, " ") {
		t.Errorf("Expected contradictions %v, got %v", expected, got)
	}
}

func TestClosureProgramParses(t *testing.T) {
	unit, err := parse.Unit(strings.NewReader(program))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if _, err := analysis.AnalyzeOneUnit(unit, nil); err != nil {
		t.Fatalf("analysis failed: %v", err)
	}
}

func TestBuildResolves(t *testing.T) {
	kb, tax := build(t, chain)
	fido, animal := sym(t, kb, "fido"), sym(t, kb, "animal")

	tom, err := kb.Intern("tom")
	if err != nil {
		t.Fatal(err)
	}
	if err := kb.Assert(tom.Relate(kb.Is, sym(t, kb, "dog"))); err != nil {
		t.Fatal(err)
	}
	if tax.Query(kb.Is, tom, animal) {
		t.Error("A built taxonomy must not follow later assertions")
	}

	again, err := Build(kb, nil)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if !again.Query(kb.Is, tom, animal) || !again.Query(kb.Is, fido, animal) {
		t.Errorf("Expected the rebuilt closure to include tom, got %v", again.Facts())
	}
}

func TestEmptyKB(t *testing.T) {
	kb, tax := build(t, "eq(x, 1)\n")
	x := sym(t, kb, "x")

	if tax.Query(kb.Is, x, x) {
		t.Error("Expected no facts")
	}
	if len(tax.Facts()) != 0 {
		t.Errorf("Expected no facts, got %v", tax.Facts())
	}
	if tax.FindPath(x, x) != nil {
		t.Error("Expected no path")
	}
}

func TestFactsSorted(t *testing.T) {
	_, tax := build(t, chain)

	facts := tax.Facts()
	// fido: 3, rex: 3, dog: 2, canine: 1
	if len(facts) != 9 {
		t.Fatalf("Expected 9 facts, got %d: %v", len(facts), facts)
	}
	for i := 1; i < len(facts); i++ {
		if less(facts[i], facts[i-1]) {
			t.Errorf("Facts out of order at %d: %v", i, facts)
		}
	}
}

func TestSymbolNames(t *testing.T) {
	for _, id := range []kbs.SymbolID{0, 7, 1234} {
		got, err := parseName(constName(id))
		if err != nil || got != id {
			t.Errorf("Round trip of %d gave %d, %v", id, got, err)
		}
	}
	if _, err := parseName("/dog"); err == nil {
		t.Error("Expected an error for a non-id name")
	}
}
