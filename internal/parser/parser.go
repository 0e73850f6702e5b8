package parser

import (
	"bufio"
	"io"
	"strings"

	"github.com/bnema/elemhide/internal/models"
)

// Parser parses the element hiding part of ABP/uBlock filter lists
type Parser struct {
	stats Stats
}

// Stats tracks parsing statistics
type Stats struct {
	Total       int
	Cosmetic    int
	Emulation   int
	Comments    int
	Unsupported int
	SkipReasons map[string]int // Detailed breakdown of skipped filters
}

// SkipReason constants
const (
	SkipNetwork    = "network"
	SkipScriptlet  = "scriptlet (##+js)"
	SkipHTMLFilter = "html-filter (##^)"
	SkipProcedural = "procedural (:has, :xpath, etc)"
	SkipSnippet    = "snippet (#$#)"
)

// Separators of element hiding filters
const (
	sepCosmetic           = "##"
	sepCosmeticException  = "#@#"
	sepEmulation          = "#?#"
	sepEmulationException = "#@?#"
	sepSnippet            = "#$#"
)

// extendedMarker marks selectors that need emulation even behind ##
const extendedMarker = ":-abp-"

// New creates a new parser
func New() *Parser {
	return &Parser{
		stats: Stats{
			SkipReasons: make(map[string]int),
		},
	}
}

// skip records a skipped filter with reason
func (p *Parser) skip(reason string) models.Filter {
	p.stats.SkipReasons[reason]++
	return models.Filter{Type: models.FilterTypeUnsupported}
}

// Stats returns parsing statistics
func (p *Parser) Stats() Stats {
	return p.stats
}

// Parse reads filter content and returns parsed element hiding filters
func (p *Parser) Parse(r io.Reader) ([]models.Filter, error) {
	var filters []models.Filter
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		filter := p.parseLine(line)
		p.stats.Total++

		switch filter.Type {
		case models.FilterTypeComment:
			p.stats.Comments++
			continue // skip comments
		case models.FilterTypeUnsupported:
			p.stats.Unsupported++
			continue // skip unsupported
		case models.FilterTypeCosmetic, models.FilterTypeCosmeticException:
			p.stats.Cosmetic++
		case models.FilterTypeEmulation:
			p.stats.Emulation++
		}

		filters = append(filters, filter)
	}

	return filters, scanner.Err()
}

// ParseLine parses a single filter line
func (p *Parser) ParseLine(line string) models.Filter {
	return p.parseLine(strings.TrimSpace(line))
}

// parseLine parses a single filter line
func (p *Parser) parseLine(line string) models.Filter {
	// Comments
	if strings.HasPrefix(line, "!") || strings.HasPrefix(line, "[") {
		return models.Filter{Type: models.FilterTypeComment, Raw: line}
	}

	// Scriptlet injection - unsupported
	if strings.Contains(line, "##+js(") || strings.Contains(line, "#@#+js(") {
		return p.skip(SkipScriptlet)
	}

	// HTML filtering - unsupported
	if strings.Contains(line, "##^") || strings.Contains(line, "#@#^") {
		return p.skip(SkipHTMLFilter)
	}

	if strings.Contains(line, sepSnippet) {
		return p.skip(SkipSnippet)
	}

	// Emulation exceptions behave like cosmetic exceptions
	if idx := strings.Index(line, sepEmulationException); idx != -1 {
		return p.parseCosmetic(line, idx, sepEmulationException, models.FilterTypeCosmeticException)
	}

	// Element hiding emulation
	if idx := strings.Index(line, sepEmulation); idx != -1 {
		if !strings.Contains(line[idx:], extendedMarker) && containsProcedural(line[idx:]) {
			return p.skip(SkipProcedural)
		}
		return p.parseCosmetic(line, idx, sepEmulation, models.FilterTypeEmulation)
	}

	// Legacy emulation filters written with ##
	if idx := strings.Index(line, sepCosmetic); idx != -1 && strings.Contains(line[idx:], extendedMarker) {
		return p.parseCosmetic(line, idx, sepCosmetic, models.FilterTypeEmulation)
	}

	// Procedural cosmetic filters - unsupported
	if containsProcedural(line) {
		return p.skip(SkipProcedural)
	}

	// Cosmetic filters
	if idx := strings.Index(line, sepCosmetic); idx != -1 && !strings.Contains(line, sepCosmeticException) {
		return p.parseCosmetic(line, idx, sepCosmetic, models.FilterTypeCosmetic)
	}

	// Cosmetic exception filters
	if idx := strings.Index(line, sepCosmeticException); idx != -1 {
		return p.parseCosmetic(line, idx, sepCosmeticException, models.FilterTypeCosmeticException)
	}

	// Everything else is a network filter, which has no element to hide
	return p.skip(SkipNetwork)
}

// containsProcedural checks for uBO procedural cosmetic filter syntax
func containsProcedural(line string) bool {
	procedural := []string{
		":has(", ":has-text(", ":xpath(", ":matches-css(",
		":matches-attr(", ":min-text-length(", ":not(",
		":upward(", ":remove(", ":style(",
	}
	for _, p := range procedural {
		if strings.Contains(line, p) {
			return true
		}
	}
	return false
}

// parseCosmetic splits an element hiding filter into domains and selector
func (p *Parser) parseCosmetic(line string, sepIdx int, separator string, filterType models.FilterType) models.Filter {
	var domains []string
	if sepIdx > 0 {
		domainPart := line[:sepIdx]
		domains = parseDomainList(domainPart)
	}

	selector := line[sepIdx+len(separator):]

	return models.Filter{
		Type:     filterType,
		Raw:      line,
		Selector: selector,
		Domains:  domains,
	}
}

// parseDomainList parses comma-separated domain list
func parseDomainList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	domains := make([]string, 0, len(parts))
	for _, d := range parts {
		d = strings.TrimSpace(d)
		if d != "" {
			domains = append(domains, d)
		}
	}
	return domains
}
