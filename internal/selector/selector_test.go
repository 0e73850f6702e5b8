package selector

import (
	"slices"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

const nestedDOM = `<div id="parent">
    <div id="middle">
      <div id="middle1"><div id="inside" class="inside"></div></div>
    </div>
    <div id="sibling">
      <div id="tohide">to hide</div>
    </div>
    <div id="sibling2">
      <div id="sibling21"><div id="sibling211" class="inside"></div></div>
    </div>
  </div>`

// loadDOM parses body into a full document and returns the document node
func loadDOM(t *testing.T, body string) *html.Node {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<html><head></head><body>" + body + "</body></html>"))
	require.NoError(t, err)
	return doc.Get(0)
}

func byID(t *testing.T, root *html.Node, id string) *html.Node {
	t.Helper()
	n := QueryFirst(root, "#"+id)
	require.NotNil(t, n, "no element #%s", id)
	return n
}

func idOf(n *html.Node) string {
	for _, a := range n.Attr {
		if a.Key == "id" {
			return a.Val
		}
	}
	return ""
}

func ids(nodes []*html.Node) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, idOf(n))
	}
	return out
}

// fakeStyles serves style text keyed by element id plus pseudo-element
type fakeStyles map[string]string

func (f fakeStyles) StyleText(n *html.Node, pseudo string) string {
	return f[idOf(n)+pseudo]
}

func mustParse(t *testing.T, group string) []Selector {
	t.Helper()
	chain, err := Parse(group)
	require.NoError(t, err)
	return chain
}

func TestPlainSelector(t *testing.T) {
	sel := NewPlainSelector("div > div")

	got := slices.Collect(sel.Selectors("foo > ", nil, nil))
	assert.Equal(t, []string{"foo > div > div"}, got)
	assert.False(t, sel.RequiresHiding())
	assert.Equal(t, "div > div", sel.String())
}

func TestEvaluate(t *testing.T) {
	root := loadDOM(t, nestedDOM)

	tests := []struct {
		name     string
		group    string
		expected []string
	}{
		{
			name:     "plain",
			group:    "div.inside",
			expected: []string{"div.inside"},
		},
		{
			name:  "has with suffix",
			group: "div:-abp-has(> div.inside) > div",
			expected: []string{
				":root > BODY:nth-child(2) > DIV:nth-child(1) > DIV:nth-child(1) > DIV:nth-child(1) > div",
				":root > BODY:nth-child(2) > DIV:nth-child(1) > DIV:nth-child(3) > DIV:nth-child(1) > div",
			},
		},
		{
			name:     "no match yields nothing",
			group:    "span:-abp-has(div)",
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chain := mustParse(t, tt.group)
			got := slices.Collect(Evaluate(chain, "", root, nil))
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestEvaluateIsRestartable(t *testing.T) {
	root := loadDOM(t, nestedDOM)
	seq := Evaluate(mustParse(t, "div:-abp-has(> div.inside)"), "", root, nil)

	first := slices.Collect(seq)
	second := slices.Collect(seq)
	assert.Len(t, first, 2)
	assert.Equal(t, first, second)
}

func TestEvaluateStopsEarly(t *testing.T) {
	root := loadDOM(t, nestedDOM)

	var got []string
	for sel := range Evaluate(mustParse(t, "div:-abp-has(div)"), "", root, nil) {
		got = append(got, sel)
		break
	}
	assert.Len(t, got, 1)
}

func TestRequiresHiding(t *testing.T) {
	assert.False(t, RequiresHiding(mustParse(t, "div > span")))
	assert.False(t, RequiresHiding(mustParse(t, "div > :-abp-properties(color: red)")))
	assert.True(t, RequiresHiding(mustParse(t, "div:-abp-has(span) > a")))
	assert.False(t, RequiresHiding(nil))
}

func TestDependsOnStyle(t *testing.T) {
	tests := []struct {
		selector string
		expected bool
	}{
		{selector: "div > span", expected: false},
		{selector: "div:-abp-has(span) > a", expected: false},
		{selector: ":-abp-properties(color: red) > a", expected: true},
		{selector: "div:-abp-has(> :-abp-properties(color: red))", expected: true},
		{selector: "div:-abp-has(> div:-abp-has(:-abp-properties(color: red)))", expected: true},
	}

	for _, tt := range tests {
		t.Run(tt.selector, func(t *testing.T) {
			assert.Equal(t, tt.expected, DependsOnStyle(mustParse(t, tt.selector)))
		})
	}
	assert.False(t, DependsOnStyle(nil))
}

func TestQueryAll(t *testing.T) {
	root := loadDOM(t, nestedDOM)

	assert.Equal(t, []string{"inside", "sibling211"}, ids(slices.Collect(QueryAll(root, ".inside"))))
	assert.Empty(t, slices.Collect(QueryAll(root, "div:-abp-has(span)")))
	assert.Empty(t, slices.Collect(QueryAll(nil, "div")))

	// combinators may reach outside the subtree, matches may not
	middle := byID(t, root, "middle")
	assert.Equal(t, []string{"middle1"}, ids(slices.Collect(QueryAll(middle, "#parent > #middle > div"))))
	assert.Empty(t, slices.Collect(QueryAll(middle, "#sibling > div")))
}

func TestValid(t *testing.T) {
	assert.True(t, Valid("div > span.ad"))
	assert.True(t, Valid(":root > BODY:nth-child(2)"))
	assert.False(t, Valid("div:-abp-has(span)"))
	assert.False(t, Valid("div >"))
}
