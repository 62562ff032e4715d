package engine

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// TargetColumns returns the rune column where each whitespace-separated
// field of pattern starts.
func TargetColumns(pattern string) []int {
	var cols []int
	inField := false
	col := 0
	for _, r := range pattern {
		if unicode.IsSpace(r) {
			inField = false
		} else if !inField {
			inField = true
			cols = append(cols, col)
		}
		col++
	}
	return cols
}

// AlignColumns lays fields out so that each starts where the matching field
// of pattern would start once prefix is written in front of pattern. A field
// that would collide with its predecessor is pushed right, keeping one space
// between them. Fields beyond those of pattern follow with a single space.
func AlignColumns(prefix, pattern string, fields []string) string {
	cols := TargetColumns(pattern)
	shift := utf8.RuneCountInString(prefix)

	var b strings.Builder
	width := 0
	for i, f := range fields {
		target := 0
		if i < len(cols) && cols[i] > 0 {
			target = cols[i] + shift
		}
		if i > 0 {
			target = max(target, width+1)
		}
		b.WriteString(strings.Repeat(" ", target-width))
		b.WriteString(f)
		width = target + utf8.RuneCountInString(f)
	}
	return b.String()
}
