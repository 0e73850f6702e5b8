package selector

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

func TestPositionInParent(t *testing.T) {
	root := loadDOM(t, nestedDOM)

	assert.Equal(t, 1, PositionInParent(byID(t, root, "middle1")))
	assert.Equal(t, 1, PositionInParent(byID(t, root, "inside")))
	assert.Equal(t, 3, PositionInParent(byID(t, root, "sibling2")))
	assert.Equal(t, 0, PositionInParent(root))
	assert.Equal(t, 0, PositionInParent(nil))
}

func TestMakeSelector(t *testing.T) {
	root := loadDOM(t, nestedDOM)

	tests := []struct {
		name     string
		id       string
		suffix   string
		expected string
	}{
		{
			name:     "middle",
			id:       "middle",
			expected: ":root > BODY:nth-child(2) > DIV:nth-child(1) > DIV:nth-child(1)",
		},
		{
			name:     "to hide",
			id:       "tohide",
			expected: ":root > BODY:nth-child(2) > DIV:nth-child(1) > DIV:nth-child(2) > DIV:nth-child(1)",
		},
		{
			name:     "with suffix",
			id:       "sibling2",
			suffix:   "div.inside",
			expected: ":root > BODY:nth-child(2) > DIV:nth-child(1) > DIV:nth-child(3) > div.inside",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, MakeSelector(byID(t, root, tt.id), tt.suffix))
		})
	}
}

func TestMakeSelectorMatchesElement(t *testing.T) {
	root := loadDOM(t, nestedDOM)

	for _, id := range []string{"parent", "middle1", "tohide", "sibling211"} {
		el := byID(t, root, id)
		assert.Same(t, el, QueryFirst(root, MakeSelector(el, "")), id)
	}
}

func TestMakeSelectorEdgeCases(t *testing.T) {
	root := loadDOM(t, nestedDOM)

	htmlEl := QueryFirst(root, "html")
	require.NotNil(t, htmlEl)
	assert.Equal(t, ":root", MakeSelector(htmlEl, ""))

	assert.Empty(t, MakeSelector(nil, ""))
	assert.Empty(t, MakeSelector(root, ""), "document node")
	assert.Empty(t, MakeSelector(&html.Node{Type: html.ElementNode, Data: "div"}, ""), "detached")

	text := byID(t, root, "tohide").FirstChild
	require.Equal(t, html.TextNode, text.Type)
	assert.Empty(t, MakeSelector(text, ""))

	// subtree that was removed from the document
	sibling := byID(t, root, "sibling")
	sibling.Parent.RemoveChild(sibling)
	assert.Empty(t, MakeSelector(byIDIn(sibling, "tohide"), ""))
}

func TestMakeSelectorForeignElements(t *testing.T) {
	root := loadDOM(t, `<svg id="icon"><circle></circle></svg>`)

	circle := QueryFirst(root, "circle")
	require.NotNil(t, circle)
	path := MakeSelector(circle, "")
	assert.True(t, strings.HasSuffix(path, "> svg:nth-child(1) > circle:nth-child(1)"), path)
}

// byIDIn finds an element inside a detached subtree
func byIDIn(n *html.Node, id string) *html.Node {
	if n.Type == html.ElementNode && idOf(n) == id {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := byIDIn(c, id); found != nil {
			return found
		}
	}
	return nil
}
