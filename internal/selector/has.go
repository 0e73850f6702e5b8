package selector

import (
	"iter"
	"strings"

	"golang.org/x/net/html"
)

// HasSelector implements :-abp-has(). It matches the elements for which at
// least one of the inner groups finds something, relative to the element.
type HasSelector struct {
	inner [][]Selector
}

// NewHasSelector parses the argument of :-abp-has(). Every comma separated
// group must parse.
func NewHasSelector(content string) (*HasSelector, error) {
	groups := Split(content)
	inner := make([][]Selector, 0, len(groups))
	for _, group := range groups {
		chain, err := Parse(group)
		if err != nil {
			return nil, err
		}
		inner = append(inner, chain)
	}
	return &HasSelector{inner: inner}, nil
}

// Inner returns the inner selector groups
func (h *HasSelector) Inner() [][]Selector {
	return h.inner
}

// Selectors yields the path of every matching element
func (h *HasSelector) Selectors(prefix string, subtree *html.Node, styles Styles) iter.Seq[string] {
	return func(yield func(string) bool) {
		for el := range h.Elements(prefix, subtree, styles) {
			if !yield(MakeSelector(el, "")) {
				return
			}
		}
	}
}

// Elements yields the matching elements themselves. Used when the match is
// the end of the chain and can be hidden without going through CSS.
func (h *HasSelector) Elements(prefix string, subtree *html.Node, styles Styles) iter.Seq[*html.Node] {
	return func(yield func(*html.Node) bool) {
		for el := range QueryAll(subtree, candidates(prefix)) {
			if h.matches(el, subtree, styles) && !yield(el) {
				return
			}
		}
	}
}

// matches evaluates the inner groups anchored on el. The space after the
// path is the descendant combinator, or a no-op when the inner group starts
// with its own combinator.
func (h *HasSelector) matches(el, subtree *html.Node, styles Styles) bool {
	path := MakeSelector(el, "")
	if path == "" {
		return false
	}
	for _, group := range h.inner {
		for sel := range Evaluate(group, path+" ", el, styles) {
			if QueryFirst(subtree, sel) != nil {
				return true
			}
		}
	}
	return false
}

func (h *HasSelector) RequiresHiding() bool { return true }

func (h *HasSelector) String() string {
	groups := make([]string, len(h.inner))
	for i, group := range h.inner {
		groups[i] = String(group)
	}
	return ":-abp-has(" + strings.Join(groups, ",") + ")"
}
