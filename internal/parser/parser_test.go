package parser

import (
	"strings"
	"testing"

	"github.com/bnema/elemhide/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		name         string
		line         string
		expectType   models.FilterType
		expectSel    string
		expectDomain []string
	}{
		{
			name:       "comment",
			line:       "! Title: test list",
			expectType: models.FilterTypeComment,
		},
		{
			name:       "header",
			line:       "[Adblock Plus 2.0]",
			expectType: models.FilterTypeComment,
		},
		{
			name:       "generic cosmetic",
			line:       "##.ad-banner",
			expectType: models.FilterTypeCosmetic,
			expectSel:  ".ad-banner",
		},
		{
			name:         "domain cosmetic",
			line:         "example.com,~shop.example.com##div.sponsored",
			expectType:   models.FilterTypeCosmetic,
			expectSel:    "div.sponsored",
			expectDomain: []string{"example.com", "~shop.example.com"},
		},
		{
			name:         "cosmetic exception",
			line:         "example.com#@#.ad-banner",
			expectType:   models.FilterTypeCosmeticException,
			expectSel:    ".ad-banner",
			expectDomain: []string{"example.com"},
		},
		{
			name:         "emulation filter",
			line:         "example.com#?#div:-abp-has(> span.ad)",
			expectType:   models.FilterTypeEmulation,
			expectSel:    "div:-abp-has(> span.ad)",
			expectDomain: []string{"example.com"},
		},
		{
			name:       "emulation properties",
			line:       "#?#div:-abp-properties(width: 300px)",
			expectType: models.FilterTypeEmulation,
			expectSel:  "div:-abp-properties(width: 300px)",
		},
		{
			name:       "legacy emulation behind ##",
			line:       "##aside:-abp-has(iframe)",
			expectType: models.FilterTypeEmulation,
			expectSel:  "aside:-abp-has(iframe)",
		},
		{
			name:         "emulation exception",
			line:         "example.com#@?#div:-abp-has(> span.ad)",
			expectType:   models.FilterTypeCosmeticException,
			expectSel:    "div:-abp-has(> span.ad)",
			expectDomain: []string{"example.com"},
		},
		{
			name:       "network filter",
			line:       "||ads.example.com^$script",
			expectType: models.FilterTypeUnsupported,
		},
		{
			name:       "scriptlet",
			line:       "example.com##+js(abort-on-property-read, ads)",
			expectType: models.FilterTypeUnsupported,
		},
		{
			name:       "uBO procedural",
			line:       "example.com##div:has-text(Sponsored)",
			expectType: models.FilterTypeUnsupported,
		},
		{
			name:       "html filter",
			line:       "example.com##^script:has-text(ads)",
			expectType: models.FilterTypeUnsupported,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := New().ParseLine(tt.line)
			assert.Equal(t, tt.expectType, f.Type)
			if tt.expectSel != "" {
				assert.Equal(t, tt.expectSel, f.Selector)
				assert.Equal(t, tt.line, f.Raw)
			}
			assert.Equal(t, tt.expectDomain, f.Domains)
		})
	}
}

func TestParseStats(t *testing.T) {
	list := strings.Join([]string{
		"[Adblock Plus 2.0]",
		"! comment",
		"",
		"##.banner",
		"example.com#?#div:-abp-has(span)",
		"##div:-abp-properties(color: red)",
		"||tracker.example^",
		"@@||cdn.example^",
		"example.com##+js(noeval)",
		"example.com##^script",
	}, "\n")

	p := New()
	filters, err := p.Parse(strings.NewReader(list))
	require.NoError(t, err)
	require.Len(t, filters, 3)

	stats := p.Stats()
	assert.Equal(t, 9, stats.Total)
	assert.Equal(t, 2, stats.Comments)
	assert.Equal(t, 1, stats.Cosmetic)
	assert.Equal(t, 2, stats.Emulation)
	assert.Equal(t, 4, stats.Unsupported)
	assert.Equal(t, 2, stats.SkipReasons[SkipNetwork])
	assert.Equal(t, 1, stats.SkipReasons[SkipScriptlet])
	assert.Equal(t, 1, stats.SkipReasons[SkipHTMLFilter])
}
