// internal/util/util.go
// Package util fits log and status text into fixed-width terminal panes.
package util

import (
	"strings"
	"unicode/utf8"
)

// Ellipsis marks a clipped line.
const Ellipsis = "…"

// ClipLine shortens line to at most width runes, ending it with Ellipsis
// when anything was cut. A width below one leaves line untouched.
func ClipLine(line string, width int) string {
	if width < 1 || utf8.RuneCountInString(line) <= width {
		return line
	}
	if width == 1 {
		return Ellipsis
	}
	runes := []rune(line)
	return string(runes[:width-1]) + Ellipsis
}

// ClipLines applies ClipLine to every line and joins them with newlines.
func ClipLines(lines []string, width int) string {
	clipped := make([]string, len(lines))
	for i, line := range lines {
		clipped[i] = ClipLine(line, width)
	}
	return strings.Join(clipped, "\n")
}

// Wrap breaks text on spaces so no line exceeds width runes. Words longer
// than width are split. Existing newlines are kept.
func Wrap(text string, width int) string {
	if width < 1 {
		return text
	}
	var out []string
	for _, para := range strings.Split(text, "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			out = append(out, "")
			continue
		}
		var cur []rune
		flush := func() {
			if len(cur) > 0 {
				out = append(out, string(cur))
				cur = cur[:0]
			}
		}
		for _, w := range words {
			r := []rune(w)
			for len(r) > width {
				flush()
				out = append(out, string(r[:width]))
				r = r[width:]
			}
			if len(r) == 0 {
				continue
			}
			switch {
			case len(cur) == 0:
				cur = append(cur, r...)
			case len(cur)+1+len(r) <= width:
				cur = append(cur, ' ')
				cur = append(cur, r...)
			default:
				flush()
				cur = append(cur, r...)
			}
		}
		flush()
	}
	return strings.Join(out, "\n")
}
