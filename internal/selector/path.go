package selector

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// PositionInParent returns the 1-based position of n among the element
// children of its parent, or 0 when n has no parent.
func PositionInParent(n *html.Node) int {
	if n == nil || n.Parent == nil {
		return 0
	}
	pos := 0
	for c := n.Parent.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		pos++
		if c == n {
			return pos
		}
	}
	return 0
}

// MakeSelector builds a selector that pins n through its ancestors, e.g.
// ":root > BODY:nth-child(2) > DIV:nth-child(1)". A non-empty suffix is
// appended as a child of n. The path is only valid for the current tree
// shape. Returns "" when n is not an element attached to a document.
func MakeSelector(n *html.Node, suffix string) string {
	if n == nil || n.Type != html.ElementNode {
		return ""
	}

	var steps []string
	for ; n.Parent == nil || n.Parent.Type != html.DocumentNode; n = n.Parent {
		if n.Parent == nil || n.Parent.Type != html.ElementNode {
			return "" // detached, or inside a fragment
		}
		steps = append(steps, tagName(n)+":nth-child("+strconv.Itoa(PositionInParent(n))+")")
	}

	var b strings.Builder
	b.WriteString(":root")
	for i := len(steps) - 1; i >= 0; i-- {
		b.WriteString(" > ")
		b.WriteString(steps[i])
	}
	if suffix != "" {
		b.WriteString(" > ")
		b.WriteString(suffix)
	}
	return b.String()
}

// tagName mirrors Element.tagName: upper case for HTML elements, as written
// for foreign (SVG, MathML) elements.
func tagName(n *html.Node) string {
	if n.Namespace == "" {
		return strings.ToUpper(n.Data)
	}
	return n.Data
}
