package render

import (
	"fmt"
	"strconv"
	"strings"
)

// Format fills positional placeholders in tmpl. "{0}" and "{1}" pick an
// argument by index, "{}" takes the next one, and "{{" / "}}" are literal
// braces. Placeholders that name a missing argument are left as written.
func Format(tmpl string, args ...any) string {
	var (
		b    strings.Builder
		auto int
	)
	b.Grow(len(tmpl) + 16)

	for i := 0; i < len(tmpl); i++ {
		c := tmpl[i]
		switch {
		case c == '{' && i+1 < len(tmpl) && tmpl[i+1] == '{':
			b.WriteByte('{')
			i++
		case c == '}' && i+1 < len(tmpl) && tmpl[i+1] == '}':
			b.WriteByte('}')
			i++
		case c == '{':
			end := strings.IndexByte(tmpl[i:], '}')
			if end < 0 {
				b.WriteString(tmpl[i:])
				return b.String()
			}
			inner := tmpl[i+1 : i+end]
			idx := -1
			if inner == "" {
				idx = auto
				auto++
			} else if n, err := strconv.Atoi(inner); err == nil && n >= 0 {
				idx = n
			}
			if idx >= 0 && idx < len(args) {
				fmt.Fprint(&b, args[idx])
			} else {
				b.WriteString(tmpl[i : i+end+1])
			}
			i += end
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
