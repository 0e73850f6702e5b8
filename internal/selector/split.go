package selector

import "strings"

// Split splits a selector list on commas that are not nested in parentheses,
// quoted or escaped. Groups are returned verbatim, surrounding whitespace included.
func Split(list string) []string {
	if !strings.Contains(list, ",") {
		return []string{list}
	}

	var groups []string
	start, level := 0, 0
	var quote byte

	for i := 0; i < len(list); i++ {
		c := list[i]
		switch {
		case c == '\\':
			i++
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '(':
			level++
		case c == ')':
			level = max(0, level-1)
		case c == ',' && level == 0:
			groups = append(groups, list[start:i])
			start = i + 1
		}
	}

	return append(groups, list[start:])
}
