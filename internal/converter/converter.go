package converter

import (
	"strings"

	"github.com/bnema/elemhide/internal/models"
)

// Converter turns parsed filters into the patterns the emulation engine runs
// on one host
type Converter struct {
	stats        Stats
	includePlain bool
}

// Stats tracks conversion statistics
type Stats struct {
	Converted   int
	Skipped     int
	SkipReasons map[string]int
}

// Skip reason constants
const (
	SkipEmptySelector     = "empty-selector"
	SkipOtherDomain       = "other-domain"
	SkipCosmeticException = "cosmetic-exception (#@#)"
	SkipPlainCosmetic     = "plain-cosmetic"
	SkipDuplicate         = "duplicate"
)

// Option configures a Converter
type Option func(*Converter)

// WithPlainCosmetic also converts ## filters without extended syntax. They
// evaluate to the selector itself, which lets one run hide everything a list
// describes.
func WithPlainCosmetic() Option {
	return func(c *Converter) {
		c.includePlain = true
	}
}

// New creates a new converter
func New(opts ...Option) *Converter {
	c := &Converter{
		stats: Stats{
			SkipReasons: make(map[string]int),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// skip records a skipped filter with reason
func (c *Converter) skip(reason string) {
	c.stats.Skipped++
	c.stats.SkipReasons[reason]++
}

// Stats returns conversion statistics
func (c *Converter) Stats() Stats {
	return c.stats
}

// Convert selects the filters active on host and returns one pattern per
// distinct selector. An empty host keeps only generic filters. Exception
// filters (#@#) disable the matching selector on the hosts they apply to.
func (c *Converter) Convert(filters []models.Filter, host string) []models.Pattern {
	exceptions := make(map[string]bool)
	for _, f := range filters {
		if f.Type != models.FilterTypeCosmeticException {
			continue
		}
		if appliesTo(f, host) {
			exceptions[strings.TrimSpace(f.Selector)] = true
		}
	}

	var patterns []models.Pattern
	seen := make(map[string]bool)

	for _, f := range filters {
		switch f.Type {
		case models.FilterTypeEmulation:
		case models.FilterTypeCosmetic:
			if !c.includePlain {
				c.skip(SkipPlainCosmetic)
				continue
			}
		default:
			continue
		}

		sel := strings.TrimSpace(f.Selector)
		switch {
		case sel == "":
			c.skip(SkipEmptySelector)
			continue
		case !appliesTo(f, host):
			c.skip(SkipOtherDomain)
			continue
		case exceptions[sel]:
			c.skip(SkipCosmeticException)
			continue
		case seen[sel]:
			c.skip(SkipDuplicate)
			continue
		}

		seen[sel] = true
		c.stats.Converted++
		patterns = append(patterns, models.Pattern{Selector: sel, Text: f.Raw})
	}

	return patterns
}

// appliesTo treats an empty host as "no specific site": only filters without
// included domains are active there.
func appliesTo(f models.Filter, host string) bool {
	if host == "" {
		for _, d := range f.Domains {
			if !strings.HasPrefix(d, "~") {
				return false
			}
		}
		return true
	}
	return f.AppliesTo(normalizeDomain(host))
}

// normalizeDomain lowercases a host and strips a port or leading wildcard
func normalizeDomain(d string) string {
	d = strings.ToLower(strings.TrimSpace(d))
	d = strings.TrimPrefix(d, "*.")
	d = strings.TrimPrefix(d, ".")
	if idx := strings.LastIndex(d, ":"); idx != -1 && !strings.Contains(d, "]") {
		d = d[:idx]
	}
	return d
}
