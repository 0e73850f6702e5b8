package selector

import (
	"iter"

	"golang.org/x/net/html"
)

// PlainSelector is a literal CSS fragment, combinators included
type PlainSelector struct {
	text string
}

// NewPlainSelector wraps a CSS fragment
func NewPlainSelector(text string) *PlainSelector {
	return &PlainSelector{text: text}
}

// Selectors yields prefix followed by the fragment
func (p *PlainSelector) Selectors(prefix string, _ *html.Node, _ Styles) iter.Seq[string] {
	return func(yield func(string) bool) {
		yield(prefix + p.text)
	}
}

func (p *PlainSelector) RequiresHiding() bool { return false }

func (p *PlainSelector) String() string { return p.text }
