package selector

import (
	"fmt"
	"iter"
	"regexp"
	"strconv"
	"strings"

	"github.com/bnema/elemhide/internal/converter"
	"golang.org/x/net/html"
)

// pseudoElements are checked in addition to the element's own style
var pseudoElements = []string{"::before", "::after"}

// PropsSelector implements :-abp-properties(). It matches elements whose
// computed style text matches a pattern.
type PropsSelector struct {
	raw    string
	regexp *regexp.Regexp
}

// NewPropsSelector compiles a property pattern: /regex/, or a filter pattern
// where * matches anything. Matching is case insensitive.
func NewPropsSelector(expression string) (*PropsSelector, error) {
	re, err := converter.CompilePattern(decodeEscapes(expression), false)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrInvalidPattern, expression, err)
	}

	return &PropsSelector{raw: expression, regexp: re}, nil
}

// Selectors yields the path of every candidate whose style matches
func (p *PropsSelector) Selectors(prefix string, subtree *html.Node, styles Styles) iter.Seq[string] {
	return func(yield func(string) bool) {
		if styles == nil {
			return
		}
		for el := range QueryAll(subtree, candidates(prefix)) {
			if !p.Match(el, styles) {
				continue
			}
			path := MakeSelector(el, "")
			if path == "" {
				continue
			}
			if !yield(path) {
				return
			}
		}
	}
}

// Match tests the pattern against the style of el and of its pseudo-elements
func (p *PropsSelector) Match(el *html.Node, styles Styles) bool {
	if p.regexp.MatchString(styles.StyleText(el, "")) {
		return true
	}
	for _, pseudo := range pseudoElements {
		if text := styles.StyleText(el, pseudo); text != "" && p.regexp.MatchString(text) {
			return true
		}
	}
	return false
}

func (p *PropsSelector) RequiresHiding() bool { return false }

func (p *PropsSelector) String() string {
	return ":-abp-properties(" + p.raw + ")"
}

// decodeEscapes replaces CSS style hex escapes "\xHH " (the trailing space
// ends the escape) with the character they encode, so filters can carry
// braces, e.g. "\x7B 0,6\x7D " for "{0,6}". Anything else is left as it is.
func decodeEscapes(s string) string {
	if !strings.Contains(s, `\x`) {
		return s
	}

	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' {
			b.WriteByte(s[i])
			continue
		}
		if i+4 < len(s) && s[i+1] == 'x' && s[i+4] == ' ' {
			if v, err := strconv.ParseUint(s[i+2:i+4], 16, 8); err == nil {
				b.WriteRune(rune(v))
				i += 4
				continue
			}
		}
		// keep the backslash and the character it escapes
		b.WriteByte(s[i])
		if i+1 < len(s) {
			i++
			b.WriteByte(s[i])
		}
	}
	return b.String()
}
