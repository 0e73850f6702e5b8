package converter

import (
	"strings"
	"testing"

	"github.com/bnema/elemhide/internal/models"
	"github.com/bnema/elemhide/internal/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testList = `! elemhide test list
##.banner
example.com#?#div:-abp-has(> span.ad)
example.com,~shop.example.com#?#aside:-abp-properties(width: 300px)
other.org#?#section:-abp-has(iframe)
#?#div:-abp-has(> span.ad)
example.com#@#.banner
||tracker.example^
`

func parseList(t *testing.T, list string) []models.Filter {
	t.Helper()
	filters, err := parser.New().Parse(strings.NewReader(list))
	require.NoError(t, err)
	return filters
}

func selectors(patterns []models.Pattern) []string {
	out := make([]string, len(patterns))
	for i, p := range patterns {
		out[i] = p.Selector
	}
	return out
}

func TestParserToConverterFlow(t *testing.T) {
	tests := []struct {
		name          string
		host          string
		opts          []Option
		expected      []string
		expectSkipped map[string]int
	}{
		{
			name: "host specific emulation filters",
			host: "www.example.com",
			expected: []string{
				"div:-abp-has(> span.ad)",
				"aside:-abp-properties(width: 300px)",
			},
			expectSkipped: map[string]int{
				SkipPlainCosmetic: 1,
				SkipOtherDomain:   1,
				SkipDuplicate:     1,
			},
		},
		{
			name: "excluded subdomain",
			host: "shop.example.com",
			expected: []string{
				"div:-abp-has(> span.ad)",
			},
		},
		{
			name: "generic only without host",
			host: "",
			expected: []string{
				"div:-abp-has(> span.ad)",
			},
		},
		{
			name: "plain cosmetic included and excepted",
			host: "example.com",
			opts: []Option{WithPlainCosmetic()},
			expected: []string{
				"div:-abp-has(> span.ad)",
				"aside:-abp-properties(width: 300px)",
			},
			expectSkipped: map[string]int{
				SkipCosmeticException: 1,
			},
		},
		{
			name: "plain cosmetic on other host",
			host: "other.org:8080",
			opts: []Option{WithPlainCosmetic()},
			expected: []string{
				".banner",
				"section:-abp-has(iframe)",
				"div:-abp-has(> span.ad)",
			},
		},
	}

	filters := parseList(t, testList)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(tt.opts...)
			patterns := c.Convert(filters, tt.host)
			assert.Equal(t, tt.expected, selectors(patterns))
			assert.Equal(t, len(tt.expected), c.Stats().Converted)
			for reason, n := range tt.expectSkipped {
				assert.Equal(t, n, c.Stats().SkipReasons[reason], reason)
			}
		})
	}
}

func TestConvertKeepsFilterText(t *testing.T) {
	filters := parseList(t, "example.com#?#div:-abp-has(> span.ad)")

	patterns := New().Convert(filters, "example.com")
	require.Len(t, patterns, 1)
	assert.Equal(t, "example.com#?#div:-abp-has(> span.ad)", patterns[0].Text)
}

func TestConvertEmptySelector(t *testing.T) {
	filters := []models.Filter{{Type: models.FilterTypeEmulation, Raw: "#?#", Selector: "  "}}

	c := New()
	assert.Empty(t, c.Convert(filters, "example.com"))
	assert.Equal(t, 1, c.Stats().SkipReasons[SkipEmptySelector])
}
