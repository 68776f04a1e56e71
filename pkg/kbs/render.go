package kbs

import (
	"sort"
	"strings"
)

// String renders the symbols and assertions without solution values.
func (kb *KB) String() string {
	return kb.Render(false, false)
}

// Render lists the domain symbols and the assertions. With includeSolution each
// symbol shows its value (T, F, a literal or ?) and each assertion its solved
// state; showSolvedOnly then drops unsolved symbols. Class symbols such as "is"
// are omitted from the symbol list.
func (kb *KB) Render(includeSolution, showSolvedOnly bool) string {
	if includeSolution {
		kb.ensureSolved()
	}
	var b strings.Builder
	b.WriteString("[SYMBOLS: ")
	first := true
	for _, s := range kb.Symbols() {
		entry := kb.sym(s)
		if entry.relational {
			continue
		}
		if includeSolution && showSolvedOnly && !entry.solved && len(entry.relations) == 0 {
			continue
		}
		if !first {
			b.WriteString(", ")
		}
		first = false
		b.WriteString(s.Name())
		if includeSolution {
			b.WriteString("=")
			b.WriteString(kb.solutionOf(s).String())
			if rels := kb.Relations(s); len(rels) > 0 {
				parts := make([]string, len(rels))
				for i, r := range rels {
					parts[i] = r.String()
				}
				b.WriteString(" [" + strings.Join(parts, " ") + "]")
			}
		}
	}
	b.WriteString("]\n[ASSERTIONS]\n")
	for _, a := range kb.assertions {
		b.WriteString(a.String())
		if includeSolution {
			b.WriteString("  # ")
			b.WriteString(kb.solutionOf(a).String())
		}
		b.WriteString("\n")
	}
	return b.String()
}

func sortSymbols(syms []SymbolRef) {
	sort.Slice(syms, func(i, j int) bool { return syms[i].id < syms[j].id })
}
