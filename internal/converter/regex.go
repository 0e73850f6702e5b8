package converter

import (
	"regexp"
	"strings"
)

// Regex fragments ported from uBlock's make-rulesets.js
const (
	// Separator matches any character that cannot be part of a host or path token
	restrSeparator = `(?:[^%.0-9a-z_-]|$)`
	// Hostname anchor for patterns starting with ||
	restrHostnameAnchor1 = `^[a-z-]+://(?:[^/?#]+\.)?`
	// Hostname anchor for patterns starting with ||.
	restrHostnameAnchor2 = `^[a-z-]+://(?:[^/?#]+)?`
)

var (
	// Characters to escape in regex (except * and ^)
	rePlainChars = regexp.MustCompile(`[.+?${}()|[\]\\]`)
	// Dangling asterisks at start/end
	reDanglingAsterisks = regexp.MustCompile(`^\*+|\*+$`)
	// Asterisks in pattern
	reAsterisks = regexp.MustCompile(`\*+`)
	// Separator placeholder
	reSeparators = regexp.MustCompile(`\^`)
)

// IsRegexPattern reports whether pattern is a /regex/ literal
func IsRegexPattern(pattern string) bool {
	return len(pattern) > 2 && strings.HasPrefix(pattern, "/") && strings.HasSuffix(pattern, "/")
}

// PatternToRegex converts an ABP filter pattern to a Go regular expression.
// A pattern without anchors matches anywhere, * matches any run of characters
// and ^ matches a separator or the end of the input. A /regex/ pattern is
// returned without its slashes.
func PatternToRegex(pattern string) string {
	if pattern == "" || pattern == "*" {
		return ".*"
	}

	if IsRegexPattern(pattern) {
		return pattern[1 : len(pattern)-1]
	}

	s := pattern
	anchor := 0 // 0b100 = hostname (||), 0b010 = left (|), 0b001 = right (|)

	if strings.HasPrefix(s, "||") {
		anchor = 0b100
		s = s[2:]
	} else if strings.HasPrefix(s, "|") {
		anchor = 0b010
		s = s[1:]
	}

	if strings.HasSuffix(s, "|") {
		anchor |= 0b001
		s = s[:len(s)-1]
	}

	reStr := rePlainChars.ReplaceAllString(s, `\$0`)
	reStr = reSeparators.ReplaceAllString(reStr, restrSeparator)
	reStr = reDanglingAsterisks.ReplaceAllString(reStr, "")
	reStr = reAsterisks.ReplaceAllString(reStr, `.*`)

	if anchor&0b100 != 0 {
		if strings.HasPrefix(reStr, `\.`) {
			reStr = restrHostnameAnchor2 + reStr
		} else {
			reStr = restrHostnameAnchor1 + reStr
		}
	} else if anchor&0b010 != 0 {
		reStr = "^" + reStr
	}

	if anchor&0b001 != 0 {
		reStr = reStr + "$"
	}

	return reStr
}

// CompilePattern converts and compiles pattern, case insensitive unless
// matchCase is set.
func CompilePattern(pattern string, matchCase bool) (*regexp.Regexp, error) {
	reStr := PatternToRegex(pattern)
	if !matchCase {
		reStr = "(?i)" + reStr
	}
	return regexp.Compile(reStr)
}
