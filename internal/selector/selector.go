// Package selector parses and evaluates element hiding selectors that use the
// :-abp-has() and :-abp-properties() extensions.
//
// A selector group parses into a chain of nodes. Evaluating the chain against
// a document turns it into plain CSS selectors: plain fragments are appended
// as they are, extension nodes are replaced by the paths of the elements they
// match.
package selector

import (
	"iter"
	"regexp"
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// Styles gives access to the serialized computed style of an element.
// pseudo is "" for the element itself, or "::before" / "::after".
type Styles interface {
	StyleText(n *html.Node, pseudo string) string
}

// Selector is one node of a selector chain
type Selector interface {
	// Selectors yields the plain CSS selectors this node produces when
	// appended to prefix. Every call returns a fresh sequence.
	Selectors(prefix string, subtree *html.Node, styles Styles) iter.Seq[string]

	// RequiresHiding reports whether matches must be hidden element by element
	// instead of through the produced selectors.
	RequiresHiding() bool

	// String returns the source text of the node
	String() string
}

// Evaluate yields the plain CSS selectors a chain produces, in document order
func Evaluate(chain []Selector, prefix string, subtree *html.Node, styles Styles) iter.Seq[string] {
	return func(yield func(string) bool) {
		evaluate(chain, prefix, subtree, styles, yield)
	}
}

func evaluate(chain []Selector, prefix string, subtree *html.Node, styles Styles, yield func(string) bool) bool {
	if len(chain) == 0 {
		return yield(prefix)
	}
	for sel := range chain[0].Selectors(prefix, subtree, styles) {
		if !evaluate(chain[1:], sel, subtree, styles, yield) {
			return false
		}
	}
	return true
}

// RequiresHiding reports whether any node of the chain requires hiding
func RequiresHiding(chain []Selector) bool {
	for _, s := range chain {
		if s.RequiresHiding() {
			return true
		}
	}
	return false
}

// DependsOnStyle reports whether the chain, or a chain nested in one of its
// :-abp-has() nodes, matches on computed style. Only such chains can change
// result without the document being mutated.
func DependsOnStyle(chain []Selector) bool {
	for _, s := range chain {
		switch s := s.(type) {
		case *PropsSelector:
			return true
		case *HasSelector:
			for _, inner := range s.Inner() {
				if DependsOnStyle(inner) {
					return true
				}
			}
		}
	}
	return false
}

// String reassembles the source text of a chain
func String(chain []Selector) string {
	var b strings.Builder
	for _, s := range chain {
		b.WriteString(s.String())
	}
	return b.String()
}

// incompletePrefix matches prefixes that still need a compound selector,
// e.g. "" or "div > ".
var incompletePrefix = regexp.MustCompile(`[\s>+~]$`)

// candidates completes prefix into the selector for the elements an
// extension node should test.
func candidates(prefix string) string {
	if prefix == "" || incompletePrefix.MatchString(prefix) {
		return prefix + "*"
	}
	return prefix
}

// QueryAll yields the descendants of subtree matching the CSS selector sel, in
// document order. Combinators may reach outside subtree, the matched elements
// may not. An invalid selector matches nothing.
func QueryAll(subtree *html.Node, sel string) iter.Seq[*html.Node] {
	return func(yield func(*html.Node) bool) {
		if subtree == nil {
			return
		}
		group, err := cascadia.ParseGroup(sel)
		if err != nil {
			return
		}
		walk(subtree, group, yield)
	}
}

func walk(n *html.Node, m cascadia.Matcher, yield func(*html.Node) bool) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		if m.Match(c) && !yield(c) {
			return false
		}
		if !walk(c, m, yield) {
			return false
		}
	}
	return true
}

// QueryFirst returns the first descendant of subtree matching sel, or nil
func QueryFirst(subtree *html.Node, sel string) *html.Node {
	for n := range QueryAll(subtree, sel) {
		return n
	}
	return nil
}

// Valid reports whether sel is a selector plain CSS understands
func Valid(sel string) bool {
	_, err := cascadia.ParseGroup(sel)
	return err == nil
}
