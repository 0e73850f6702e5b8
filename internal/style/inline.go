package style

import (
	"strings"

	"github.com/aymerick/douceur/css"
	"github.com/aymerick/douceur/parser"
)

// parseInline parses the declarations of a style attribute. The last
// declaration of an attribute usually has no trailing semicolon, which the
// declaration parser needs to read its value.
func parseInline(styleAttr string) ([]*css.Declaration, error) {
	text := strings.TrimSpace(styleAttr)
	if text != "" && !strings.HasSuffix(text, ";") {
		text += ";"
	}
	return parser.ParseDeclarations(text)
}

// SetProperty returns the style attribute value styleAttr with prop set to
// value. Other declarations keep their order; a declaration that cannot be
// parsed is dropped.
func SetProperty(styleAttr, prop, value string, important bool) string {
	prop = strings.ToLower(prop)
	decls, _ := parseInline(styleAttr)

	var b strings.Builder
	write := func(p, v string, imp bool) {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(p)
		b.WriteString(": ")
		b.WriteString(v)
		if imp {
			b.WriteString(" !important")
		}
		b.WriteByte(';')
	}

	replaced := false
	for _, d := range decls {
		p := strings.ToLower(strings.TrimSpace(d.Property))
		if p == prop {
			if !replaced {
				write(prop, value, important)
				replaced = true
			}
			continue
		}
		write(p, strings.TrimSpace(d.Value), d.Important)
	}
	if !replaced {
		write(prop, value, important)
	}
	return b.String()
}

// Property returns the value of prop in the style attribute value styleAttr
func Property(styleAttr, prop string) (string, bool) {
	decls, err := parseInline(styleAttr)
	if err != nil {
		return "", false
	}
	value, found := "", false
	for _, d := range decls {
		if strings.EqualFold(strings.TrimSpace(d.Property), prop) {
			value, found = strings.TrimSpace(d.Value), true
		}
	}
	return value, found
}
