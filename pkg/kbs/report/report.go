// Package report renders a solved knowledge base as a standalone HTML page.
package report

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/cognicore/kbs/pkg/kbs"
	"github.com/cognicore/kbs/pkg/kbs/taxonomy"
)

const style = `body{font-family:sans-serif;margin:2em}
table{border-collapse:collapse}
td,th{border:1px solid #ccc;padding:2px 8px;text-align:left}
.T{color:#070}.F{color:#a00}.unsolved{color:#888}
.conflict{background:#fee;padding:1em}`

// Options controls what the report includes.
type Options struct {
	Title string
	// Taxonomy adds a section listing derived classification facts
	Taxonomy *taxonomy.Taxonomy
}

// Write renders kb to w. The KB is solved first if needed.
func Write(w io.Writer, kb *kbs.KB, opts Options) error {
	return html.Render(w, Document(kb, opts))
}

// Document builds the report as an HTML node tree.
func Document(kb *kbs.KB, opts Options) *html.Node {
	title := opts.Title
	if title == "" {
		title = "Knowledge base"
	}

	head := element(atom.Head,
		element(atom.Meta).attr("charset", "utf-8").Node,
		element(atom.Title, text(title)).Node,
		element(atom.Style, text(style)).Node,
	)
	body := element(atom.Body, element(atom.H1, text(title)).Node)

	if c := kb.HasConflict(); c != nil {
		body.append(conflictSection(c))
	}
	body.append(
		element(atom.H2, text("Symbols")).Node,
		symbolTable(kb),
		element(atom.H2, text("Assertions")).Node,
		assertionList(kb),
	)
	if opts.Taxonomy != nil {
		body.append(taxonomySection(opts.Taxonomy)...)
	}

	doc := &html.Node{Type: html.DocumentNode}
	doc.AppendChild(&html.Node{Type: html.DoctypeNode, Data: "html"})
	doc.AppendChild(element(atom.Html, head.Node, body.Node).attr("lang", "en").Node)
	return doc
}

func conflictSection(c *kbs.Conflict) *html.Node {
	lines := strings.Split(c.Message, "\n")
	div := element(atom.Div, element(atom.H2, text("Conflict")).Node).attr("class", "conflict")
	div.append(element(atom.P, text(lines[0])).Node)
	if len(lines) > 1 {
		ul := element(atom.Ul)
		for _, l := range lines[1:] {
			ul.append(element(atom.Li, text(l)).Node)
		}
		div.append(ul.Node)
	}
	return div.Node
}

func symbolTable(kb *kbs.KB) *html.Node {
	table := element(atom.Table, row(atom.Th, "Symbol", "Value", "Relations", "Properties"))
	for _, s := range kb.Symbols() {
		if kb.IsRelational(s) {
			continue
		}
		sol := kb.Solution(s)

		rels := make([]string, 0)
		for _, r := range kb.Relations(s) {
			rels = append(rels, r.String())
		}
		props := make([]string, 0)
		for _, p := range kb.Properties(s) {
			entry := fmt.Sprintf("%s : %s", p.Property, p.Value)
			if p.From != nil {
				entry += fmt.Sprintf(" (from %s)", p.From)
			}
			props = append(props, entry)
		}

		tr := row(atom.Td, s.Name(), sol.String(), strings.Join(rels, ", "), strings.Join(props, ", "))
		if !sol.Solved {
			tr.Attr = append(tr.Attr, html.Attribute{Key: "class", Val: "unsolved"})
		}
		table.append(tr)
	}
	return table.Node
}

func assertionList(kb *kbs.KB) *html.Node {
	ol := element(atom.Ol)
	for _, a := range kb.Assertions() {
		sol := kb.Solution(a).String()
		class := "unsolved"
		if sol == "T" || sol == "F" {
			class = sol
		}
		ol.append(element(atom.Li,
			element(atom.Code, text(a.String())).Node,
			text(" "),
			element(atom.Span, text(sol)).attr("class", class).Node,
		).Node)
	}
	return ol.Node
}

func taxonomySection(t *taxonomy.Taxonomy) []*html.Node {
	ul := element(atom.Ul)
	for _, f := range t.Facts() {
		ul.append(element(atom.Li, text(f.String())).Node)
	}
	nodes := []*html.Node{element(atom.H2, text("Classification")).Node, ul.Node}
	if cs := t.Contradictions(); len(cs) > 0 {
		bad := element(atom.Ul).attr("class", "conflict")
		for _, f := range cs {
			bad.append(element(atom.Li, text(f.String()+" is both derived and excluded")).Node)
		}
		nodes = append(nodes, bad.Node)
	}
	return nodes
}

// elem wraps a node for chained construction
type elem struct{ *html.Node }

func element(a atom.Atom, children ...*html.Node) elem {
	e := elem{&html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String()}}
	e.append(children...)
	return e
}

func (e elem) attr(key, val string) elem {
	e.Attr = append(e.Attr, html.Attribute{Key: key, Val: val})
	return e
}

func (e elem) append(children ...*html.Node) {
	for _, c := range children {
		e.AppendChild(c)
	}
}

func text(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}

func row(cell atom.Atom, values ...string) *html.Node {
	tr := element(atom.Tr)
	for _, v := range values {
		tr.append(element(cell, text(v)).Node)
	}
	return tr.Node
}
