// Package style computes the style of elements from the stylesheets of a
// document, close enough to getComputedStyle for property pattern matching.
package style

import (
	"cmp"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/andybalholm/cascadia"
	"github.com/aymerick/douceur/css"
	"github.com/aymerick/douceur/parser"
	"golang.org/x/net/html"
)

// UserAgentCSS gives elements the display value browsers report by default
const UserAgentCSS = `
html, body, div, p, section, article, aside, header, footer, nav, main,
ul, ol, li, form, h1, h2, h3, h4, h5, h6, table, figure, blockquote {
	display: block;
}
head, script, style, template, title, meta, link, [hidden] {
	display: none;
}
`

// inherited lists the properties a child takes from its parent when it does
// not declare them
var inherited = map[string]bool{
	"color": true, "cursor": true, "direction": true, "font-family": true,
	"font-size": true, "font-style": true, "font-weight": true, "letter-spacing": true,
	"line-height": true, "list-style-type": true, "text-align": true, "text-transform": true,
	"visibility": true, "white-space": true, "word-spacing": true,
}

// origin orders declarations from different sources
type origin int

const (
	originUserAgent origin = iota
	originAuthor
	originInline
)

// legacyPseudo matches CSS2 pseudo-elements written with a single colon
var legacyPseudo = regexp.MustCompile(`(^|[^:]):(before|after)\s*$`)

type declaration struct {
	property  string
	value     string
	important bool
}

type rule struct {
	sel    cascadia.Sel
	pseudo string // "", "::before" or "::after"
	origin origin
	order  int
	decls  []declaration
}

type cacheKey struct {
	node   *html.Node
	pseudo string
}

// Resolver computes element styles for one snapshot of a document. Results
// are cached, so a Resolver must be rebuilt when the document or its sheets
// change. Not safe for concurrent use.
type Resolver struct {
	rules []rule
	cache map[cacheKey]map[string]string
}

// Compile builds a Resolver from author stylesheets, in document order. A
// sheet that fails to parse is skipped and reported in the returned error,
// together with the selectors cascadia rejects; the Resolver is usable either
// way.
func Compile(sheets ...string) (*Resolver, error) {
	r := &Resolver{cache: make(map[cacheKey]map[string]string)}

	var errs []error
	if err := r.addSheet(UserAgentCSS, originUserAgent); err != nil {
		errs = append(errs, err)
	}
	for i, sheet := range sheets {
		if err := r.addSheet(sheet, originAuthor); err != nil {
			errs = append(errs, fmt.Errorf("stylesheet %d: %w", i, err))
		}
	}

	return r, errors.Join(errs...)
}

func (r *Resolver) addSheet(text string, o origin) error {
	sheet, err := parser.Parse(text)
	if err != nil {
		return err
	}
	return r.addRules(sheet.Rules, o)
}

func (r *Resolver) addRules(rules []*css.Rule, o origin) error {
	var errs []error
	for _, cr := range rules {
		if cr.Kind == css.AtRule {
			if appliesToScreen(cr) {
				if err := r.addRules(cr.Rules, o); err != nil {
					errs = append(errs, err)
				}
			}
			continue
		}

		decls := convertDeclarations(cr.Declarations)
		if len(decls) == 0 {
			continue
		}

		for _, text := range cr.Selectors {
			text = legacyPseudo.ReplaceAllString(text, "$1::$2")
			sel, err := cascadia.ParseWithPseudoElement(text)
			if err != nil {
				errs = append(errs, fmt.Errorf("selector %q: %w", text, err))
				continue
			}
			pseudo := ""
			if pe := strings.TrimLeft(sel.PseudoElement(), ":"); pe != "" {
				if pe != "before" && pe != "after" {
					continue
				}
				pseudo = "::" + pe
			}
			r.rules = append(r.rules, rule{
				sel:    sel,
				pseudo: pseudo,
				origin: o,
				order:  len(r.rules),
				decls:  decls,
			})
		}
	}
	return errors.Join(errs...)
}

// appliesToScreen selects the at-rules whose nested rules apply to a screen
func appliesToScreen(r *css.Rule) bool {
	switch strings.ToLower(r.Name) {
	case "@media":
		prelude := strings.ToLower(strings.TrimSpace(r.Prelude))
		return !strings.HasPrefix(prelude, "print") && !strings.HasPrefix(prelude, "speech")
	case "@supports", "@layer", "@document":
		return true
	}
	return false
}

// convertDeclarations lowercases property names and expands the background
// shorthand, which is how sites usually set a background color
func convertDeclarations(in []*css.Declaration) []declaration {
	out := make([]declaration, 0, len(in))
	for _, d := range in {
		prop := strings.ToLower(strings.TrimSpace(d.Property))
		value := strings.TrimSpace(d.Value)
		if prop == "" || value == "" {
			continue
		}
		out = append(out, declaration{property: prop, value: value, important: d.Important})
		if prop == "background" {
			out = append(out, declaration{
				property:  "background-color",
				value:     backgroundColor(value),
				important: d.Important,
			})
		}
	}
	return out
}

// backgroundColor picks the color layer of a background shorthand, or the
// initial transparent
func backgroundColor(value string) string {
	if v := strings.ToLower(value); v == "inherit" || v == "initial" || v == "unset" {
		return v
	}
	normalized := NormalizeColors(value, true)
	for _, m := range reColorFunc.FindAllString(normalized, -1) {
		if strings.HasPrefix(m, "rgb") {
			return m
		}
	}
	return "rgba(0, 0, 0, 0)"
}

// Compute returns the computed style of n, or of its pseudo-element when
// pseudo is "::before" or "::after". A pseudo-element without any matching
// rule has no style.
func (r *Resolver) Compute(n *html.Node, pseudo string) map[string]string {
	if n == nil || n.Type != html.ElementNode {
		return nil
	}
	key := cacheKey{node: n, pseudo: pseudo}
	if cached, ok := r.cache[key]; ok {
		return cached
	}

	computed := r.compute(n, pseudo)
	r.cache[key] = computed
	return computed
}

type candidate struct {
	decl   declaration
	origin origin
	spec   cascadia.Specificity
	order  int
}

func (r *Resolver) compute(n *html.Node, pseudo string) map[string]string {
	var matched []candidate
	for _, rl := range r.rules {
		if rl.pseudo != pseudo || !rl.sel.Match(n) {
			continue
		}
		for _, d := range rl.decls {
			matched = append(matched, candidate{decl: d, origin: rl.origin, spec: rl.sel.Specificity(), order: rl.order})
		}
	}

	if pseudo != "" && len(matched) == 0 {
		return nil
	}

	if pseudo == "" {
		for _, d := range convertDeclarations(inlineDeclarations(n)) {
			matched = append(matched, candidate{decl: d, origin: originInline, order: len(r.rules)})
		}
	}

	slices.SortStableFunc(matched, compareCascade)

	computed := make(map[string]string, len(matched))
	for _, c := range matched {
		computed[c.decl.property] = c.decl.value
	}

	// pseudo-elements inherit from their element
	var parent map[string]string
	if pseudo != "" {
		parent = r.Compute(n, "")
	} else if n.Parent != nil && n.Parent.Type == html.ElementNode {
		parent = r.Compute(n.Parent, "")
	}

	for prop, value := range computed {
		switch strings.ToLower(value) {
		case "inherit":
			if v, ok := parent[prop]; ok {
				computed[prop] = v
			} else {
				delete(computed, prop)
			}
		case "initial", "unset":
			delete(computed, prop)
		}
	}
	for prop := range inherited {
		if _, ok := computed[prop]; ok {
			continue
		}
		if v, ok := parent[prop]; ok {
			computed[prop] = v
		}
	}

	for prop, value := range computed {
		computed[prop] = NormalizeColors(value, isColorProperty(prop))
	}

	return computed
}

// compareCascade orders declarations from losing to winning: importance,
// origin, specificity, source order.
func compareCascade(a, b candidate) int {
	if a.decl.important != b.decl.important {
		if a.decl.important {
			return 1
		}
		return -1
	}
	if ra, rb := rank(a), rank(b); ra != rb {
		return cmp.Compare(ra, rb)
	}
	if a.spec != b.spec {
		if a.spec.Less(b.spec) {
			return -1
		}
		return 1
	}
	return cmp.Compare(a.order, b.order)
}

// rank orders origins. Important user agent declarations beat every author
// declaration.
func rank(c candidate) int {
	if c.decl.important && c.origin == originUserAgent {
		return int(originInline) + 1
	}
	return int(c.origin)
}

// StyleText serializes the computed style as sorted "property: value;" items
// separated by a space, the form property patterns are matched against.
func (r *Resolver) StyleText(n *html.Node, pseudo string) string {
	return Format(r.Compute(n, pseudo))
}

// Format serializes a style map as sorted "property: value;" items
func Format(style map[string]string) string {
	if len(style) == 0 {
		return ""
	}
	props := make([]string, 0, len(style))
	for prop := range style {
		props = append(props, prop)
	}
	slices.Sort(props)

	var b strings.Builder
	for i, prop := range props {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(prop)
		b.WriteString(": ")
		b.WriteString(style[prop])
		b.WriteByte(';')
	}
	return b.String()
}

func inlineDeclarations(n *html.Node) []*css.Declaration {
	for _, a := range n.Attr {
		if a.Key == "style" && a.Namespace == "" {
			decls, err := parseInline(a.Val)
			if err != nil {
				return nil
			}
			return decls
		}
	}
	return nil
}
