package selector

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasSelector(t *testing.T) {
	root := loadDOM(t, nestedDOM)

	has, err := NewHasSelector("> div.inside")
	require.NoError(t, err)
	assert.True(t, has.RequiresHiding())
	assert.Equal(t, ":-abp-has(> div.inside)", has.String())

	paths := slices.Collect(has.Selectors("", root, nil))
	require.NotEmpty(t, paths)
	assert.Equal(t, ":root > BODY:nth-child(2) > DIV:nth-child(1) > DIV:nth-child(1) > DIV:nth-child(1)", paths[0])

	elements := slices.Collect(has.Elements("", root, nil))
	assert.Equal(t, []string{"middle1", "sibling21"}, ids(elements))
}

func TestHasSelectorCombinators(t *testing.T) {
	root := loadDOM(t, nestedDOM)

	tests := []struct {
		name     string
		prefix   string
		inner    string
		expected []string
	}{
		{
			name:     "descendant",
			prefix:   "div",
			inner:    "div.inside",
			expected: []string{"parent", "middle", "middle1", "sibling2", "sibling21"},
		},
		{
			name:     "child",
			prefix:   "div",
			inner:    "> div.inside",
			expected: []string{"middle1", "sibling21"},
		},
		{
			name:     "adjacent sibling",
			prefix:   "div",
			inner:    "+ #sibling",
			expected: []string{"middle"},
		},
		{
			name:     "general sibling",
			prefix:   "div",
			inner:    "~ #sibling2",
			expected: []string{"middle", "sibling"},
		},
		{
			name:     "prefix ending in combinator",
			prefix:   "#parent > ",
			inner:    "div.inside",
			expected: []string{"middle", "sibling2"},
		},
		{
			name:     "any of several groups",
			prefix:   "div",
			inner:    "> #tohide, > #inside",
			expected: []string{"middle1", "sibling"},
		},
		{
			name:     "no candidates",
			prefix:   "span",
			inner:    "div",
			expected: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			has, err := NewHasSelector(tt.inner)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, ids(slices.Collect(has.Elements(tt.prefix, root, nil))))
		})
	}
}

func TestHasSelectorNested(t *testing.T) {
	root := loadDOM(t, nestedDOM)

	for _, group := range []string{
		"div:-abp-has(:-abp-has(div.inside)) + div > div",
		"div:-abp-has(:-abp-has(> div.inside)) + div > div",
	} {
		t.Run(group, func(t *testing.T) {
			var hidden []string
			for sel := range Evaluate(mustParse(t, group), "", root, nil) {
				hidden = append(hidden, ids(slices.Collect(QueryAll(root, sel)))...)
			}
			assert.Equal(t, []string{"tohide"}, hidden)
		})
	}
}

func TestHasSelectorWithProperties(t *testing.T) {
	root := loadDOM(t, `<div id="parent"><div id="child"></div></div>`)
	styles := fakeStyles{"child": "background-color: rgb(0, 0, 0); display: block;"}

	chain := mustParse(t, "div:-abp-has(:-abp-properties(background-color: rgb(0, 0, 0)))")
	has, ok := chain[1].(*HasSelector)
	require.True(t, ok)

	assert.Equal(t, []string{"parent"}, ids(slices.Collect(has.Elements("div", root, styles))))
}

func TestHasSelectorDetachedSubtree(t *testing.T) {
	root := loadDOM(t, nestedDOM)
	sibling := byID(t, root, "sibling2")
	sibling.Parent.RemoveChild(sibling)

	has, err := NewHasSelector("div.inside")
	require.NoError(t, err)
	// elements without a document path never match
	assert.Empty(t, slices.Collect(has.Elements("", sibling, nil)))
}
