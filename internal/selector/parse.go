package selector

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Parse errors. Any of them invalidates the whole selector group.
var (
	ErrUnbalanced         = errors.New("no closing parenthesis")
	ErrUnknownPseudoClass = errors.New("unknown pseudo-class")
	ErrInvalidPattern     = errors.New("invalid property pattern")
)

// abpPseudoClass finds the next extended pseudo-class call, e.g. ":-abp-has("
var abpPseudoClass = regexp.MustCompile(`(?i):-abp-([\w-]+)\(`)

// Parse turns one selector group into a chain of selector nodes. An empty
// group yields an empty chain.
func Parse(group string) ([]Selector, error) {
	var chain []Selector

	for rest := group; rest != ""; {
		loc := abpPseudoClass.FindStringSubmatchIndex(rest)
		if loc == nil {
			chain = append(chain, NewPlainSelector(rest))
			break
		}
		if loc[0] > 0 {
			chain = append(chain, NewPlainSelector(rest[:loc[0]]))
		}

		content, ok := ParseContent(rest, loc[1])
		if !ok {
			return nil, fmt.Errorf("parse %q: %w", group, ErrUnbalanced)
		}

		name := strings.ToLower(rest[loc[2]:loc[3]])
		switch name {
		case "has":
			has, err := NewHasSelector(content.Text)
			if err != nil {
				return nil, fmt.Errorf("parse %q: %w", group, err)
			}
			chain = append(chain, has)
		case "properties":
			props, err := NewPropsSelector(content.Text)
			if err != nil {
				return nil, fmt.Errorf("parse %q: %w", group, err)
			}
			chain = append(chain, props)
		default:
			return nil, fmt.Errorf("parse %q: %w :-abp-%s()", group, ErrUnknownPseudoClass, name)
		}

		rest = rest[content.Next():]
	}

	return chain, nil
}

// ParseList splits a selector list and parses every group. Failed groups are
// reported in errs and left out of chains; the others are unaffected.
func ParseList(list string) (chains [][]Selector, errs []error) {
	for _, group := range Split(list) {
		group = strings.TrimSpace(group)
		if group == "" {
			continue
		}
		chain, err := Parse(group)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		chains = append(chains, chain)
	}
	return chains, errs
}
