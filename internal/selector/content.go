package selector

// Content is the argument text of a pseudo-class call
type Content struct {
	Text string // text between the parentheses
	End  int    // index of the closing parenthesis
}

// Next returns the index just past the closing parenthesis
func (c Content) Next() int {
	return c.End + 1
}

// ParseContent extracts the argument of a pseudo-class call. start points just
// after the opening parenthesis. Parentheses inside quotes or escaped with a
// backslash do not count. ok is false when the text ends before the call is
// closed.
func ParseContent(text string, start int) (content Content, ok bool) {
	if start < 0 {
		return Content{}, false
	}

	parens := 1
	var quote byte
	for i := start; i < len(text); i++ {
		c := text[i]
		switch {
		case c == '\\':
			i++ // skip escaped character
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == '(':
			parens++
		case c == ')':
			parens--
			if parens == 0 {
				return Content{Text: text[start:i], End: i}, true
			}
		}
	}

	return Content{}, false
}
