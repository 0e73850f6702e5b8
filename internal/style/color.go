package style

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/colornames"
)

var (
	reHexColor  = regexp.MustCompile(`#[0-9a-fA-F]{3,8}\b`)
	reColorFunc = regexp.MustCompile(`(?i)\b(rgba?|hsla?)\(([^()]*)\)`)
	reWord      = regexp.MustCompile(`[A-Za-z]+`)
	reURL       = regexp.MustCompile(`(?i)url\([^)]*\)`)
)

// NormalizeColors rewrites every color in value the way getComputedStyle
// reports it: rgb(r, g, b), or rgba(r, g, b, a) when not opaque. Named colors
// are only recognized when named is set, since words like "tan" are also
// valid in non color properties.
func NormalizeColors(value string, named bool) string {
	value = reColorFunc.ReplaceAllStringFunc(value, func(m string) string {
		sub := reColorFunc.FindStringSubmatch(m)
		if c, ok := parseColorFunc(strings.ToLower(sub[1]), sub[2]); ok {
			return c
		}
		return m
	})

	value = replaceOutsideURLs(value, func(part string) string {
		return reHexColor.ReplaceAllStringFunc(part, func(m string) string {
			if c, ok := parseHex(m); ok {
				return c
			}
			return m
		})
	})

	if named {
		value = replaceOutsideURLs(value, func(part string) string {
			return reWord.ReplaceAllStringFunc(part, func(m string) string {
				if c, ok := parseNamed(m); ok {
					return c
				}
				return m
			})
		})
	}

	return value
}

// replaceOutsideURLs applies fn to the parts of value that are not url() tokens
func replaceOutsideURLs(value string, fn func(string) string) string {
	locs := reURL.FindAllStringIndex(value, -1)
	if locs == nil {
		return fn(value)
	}
	var b strings.Builder
	last := 0
	for _, loc := range locs {
		b.WriteString(fn(value[last:loc[0]]))
		b.WriteString(value[loc[0]:loc[1]])
		last = loc[1]
	}
	b.WriteString(fn(value[last:]))
	return b.String()
}

// isColorProperty reports whether named colors are valid in prop
func isColorProperty(prop string) bool {
	if strings.HasSuffix(prop, "color") {
		return true
	}
	switch prop {
	case "background", "border", "border-top", "border-right", "border-bottom", "border-left",
		"outline", "box-shadow", "text-shadow", "fill", "stroke", "text-decoration":
		return true
	}
	return false
}

func formatRGBA(r, g, b uint8, alpha float64) string {
	if alpha >= 1 {
		return fmt.Sprintf("rgb(%d, %d, %d)", r, g, b)
	}
	alpha = math.Max(0, alpha)
	return fmt.Sprintf("rgba(%d, %d, %d, %s)", r, g, b, strconv.FormatFloat(alpha, 'f', -1, 64))
}

func parseHex(s string) (string, bool) {
	switch len(s) {
	case 4, 7:
		c, err := colorful.Hex(s)
		if err != nil {
			return "", false
		}
		r, g, b := c.RGB255()
		return formatRGBA(r, g, b, 1), true
	case 5, 9:
		// #rgba and #rrggbbaa
		n := (len(s) - 1) / 4
		c, err := colorful.Hex(s[:1+3*n])
		if err != nil {
			return "", false
		}
		a, err := strconv.ParseUint(strings.Repeat(s[1+3*n:], 3-n), 16, 8)
		if err != nil {
			return "", false
		}
		r, g, b := c.RGB255()
		return formatRGBA(r, g, b, math.Round(float64(a)/255*1000)/1000), true
	}
	return "", false
}

func parseNamed(name string) (string, bool) {
	name = strings.ToLower(name)
	if name == "transparent" {
		return formatRGBA(0, 0, 0, 0), true
	}
	c, ok := colornames.Map[name]
	if !ok {
		return "", false
	}
	return formatRGBA(c.R, c.G, c.B, float64(c.A)/255), true
}

// parseColorFunc handles rgb(), rgba(), hsl() and hsla() in both the comma
// and the space separated syntax.
func parseColorFunc(fn, args string) (string, bool) {
	args = strings.NewReplacer(",", " ", "/", " ").Replace(args)
	parts := strings.Fields(args)
	if len(parts) != 3 && len(parts) != 4 {
		return "", false
	}

	alpha := 1.0
	if len(parts) == 4 {
		a, ok := parseNumber(parts[3], 1)
		if !ok {
			return "", false
		}
		alpha = a
	}

	switch fn {
	case "rgb", "rgba":
		var rgb [3]uint8
		for i := range 3 {
			v, ok := parseNumber(parts[i], 255)
			if !ok {
				return "", false
			}
			rgb[i] = uint8(math.Round(math.Min(255, math.Max(0, v))))
		}
		return formatRGBA(rgb[0], rgb[1], rgb[2], alpha), true
	default:
		h, err := strconv.ParseFloat(strings.TrimSuffix(parts[0], "deg"), 64)
		if err != nil {
			return "", false
		}
		s, ok1 := parseNumber(parts[1], 1)
		l, ok2 := parseNumber(parts[2], 1)
		if !ok1 || !ok2 {
			return "", false
		}
		r, g, b := colorful.Hsl(math.Mod(h+360, 360), s, l).Clamped().RGB255()
		return formatRGBA(r, g, b, alpha), true
	}
}

// parseNumber parses a plain number or a percentage of scale
func parseNumber(s string, scale float64) (float64, bool) {
	if p, ok := strings.CutSuffix(s, "%"); ok {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return 0, false
		}
		return v / 100 * scale, true
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
