package report

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/cognicore/kbs/pkg/kbs"
	"github.com/cognicore/kbs/pkg/kbs/rules"
	"github.com/cognicore/kbs/pkg/kbs/taxonomy"
)

// textOf collects the text content of the rendered page
func textOf(t *testing.T, page string) string {
	t.Helper()
	doc, err := html.Parse(strings.NewReader(page))
	require.NoError(t, err)

	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "style" {
			return
		}
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteString("\n")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return b.String()
}

func render(t *testing.T, kb *kbs.KB, opts Options) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, kb, opts))
	return buf.String()
}

func TestWrite(t *testing.T) {
	kb := kbs.New(kbs.Options{})
	require.NoError(t, rules.LoadRules(kb, `
eq(add(x, y), 10)
eq(x, 4)
rel(fido, is, dog)
prop(is(dog), legs, 4)
`))

	page := render(t, kb, Options{Title: "pets"})
	assert.True(t, strings.HasPrefix(page, "<!DOCTYPE html>"))

	body := textOf(t, page)
	assert.Contains(t, body, "pets")
	assert.Contains(t, body, "((x + y) = 10)")
	assert.Contains(t, body, "is(dog)")
	assert.Contains(t, body, "legs : 4 (from is(dog))")
	assert.NotContains(t, body, "Conflict")

	// y was derived
	assert.Contains(t, page, "<td>y</td><td>6</td>")
	assert.Contains(t, page, `<span class="T">T</span>`)
}

func TestWriteConflict(t *testing.T) {
	kb := kbs.New(kbs.Options{})
	require.NoError(t, rules.LoadRules(kb, "eq(x, 1)\neq(x, 2)\n"))

	body := textOf(t, render(t, kb, Options{}))
	assert.Contains(t, body, "Knowledge base")
	assert.Contains(t, body, "Conflict")
	assert.Contains(t, body, "x = 1")
}

func TestWriteEscapesNames(t *testing.T) {
	kb := kbs.New(kbs.Options{})
	tag := kb.MustSymbol("<b>")
	require.NoError(t, kb.Assert(kbs.NewEquals(tag, kbs.NewText("</td>"))))

	page := render(t, kb, Options{})
	assert.Contains(t, page, "&lt;b&gt;")
	assert.NotContains(t, page, "<b>")
	assert.Contains(t, textOf(t, page), `"</td>"`)
}

func TestWriteTaxonomy(t *testing.T) {
	kb := kbs.New(kbs.Options{})
	require.NoError(t, rules.LoadRules(kb, `
rel(fido, is, dog)
rel(dog, is, animal)
not(rel(fido, is, animal))
`))
	tax, err := taxonomy.Build(kb, nil)
	require.NoError(t, err)

	body := textOf(t, render(t, kb, Options{Taxonomy: tax}))
	assert.Contains(t, body, "Classification")
	assert.Contains(t, body, "fido::is(animal) is both derived and excluded")
}
