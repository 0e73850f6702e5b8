package models

import "strings"

// FilterType represents the type of filter parsed
type FilterType int

const (
	FilterTypeComment FilterType = iota
	FilterTypeCosmetic
	FilterTypeCosmeticException
	FilterTypeEmulation
	FilterTypeUnsupported // network rules, scriptlets, HTML filters, uBO procedural
)

// Filter represents a parsed element hiding filter
type Filter struct {
	Type     FilterType
	Raw      string   // Original filter line
	Selector string   // CSS or extended selector
	Domains  []string // Domains this filter applies to, ~ prefix excludes
}

// AppliesTo reports whether the filter is active on host.
// A filter without domains applies everywhere.
func (f Filter) AppliesTo(host string) bool {
	host = strings.ToLower(strings.TrimSuffix(host, "."))

	included := false
	hasIncludes := false
	for _, d := range f.Domains {
		exclude := strings.HasPrefix(d, "~")
		d = strings.ToLower(strings.TrimPrefix(d, "~"))
		if exclude {
			if matchesDomain(host, d) {
				return false
			}
			continue
		}
		hasIncludes = true
		if matchesDomain(host, d) {
			included = true
		}
	}
	return included || !hasIncludes
}

func matchesDomain(host, domain string) bool {
	return host == domain || strings.HasSuffix(host, "."+domain)
}

// Pattern is one selector record handed to the emulation engine
type Pattern struct {
	Selector string // Extended selector, possibly a comma-separated list
	Text     string // Filter text the selector came from, reported back with matches
}
