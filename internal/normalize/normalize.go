package normalize

import (
	"html"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	tagExpr        = regexp.MustCompile(`<[^>]*>`)
	whitespaceExpr = regexp.MustCompile(`\s+`)
)

// Clean strips markup, decodes HTML entities, and collapses runs of
// whitespace into single spaces. Pure function, safe on arbitrary input.
func Clean(s string) string {
	s = tagExpr.ReplaceAllString(s, " ")
	s = html.UnescapeString(s)
	s = whitespaceExpr.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Truncate bounds s to max runes, breaking on a word boundary and
// appending an ellipsis when anything was cut.
func Truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}

	runes := []rune(s)
	cut := runes[:max]
	if idx := lastSpace(cut); idx > 0 {
		cut = cut[:idx]
	}
	return strings.TrimRight(string(cut), " ,;:.") + "…"
}

// CleanAndTruncate applies Clean then Truncate in one pass.
func CleanAndTruncate(s string, max int) string {
	return Truncate(Clean(s), max)
}

func lastSpace(runes []rune) int {
	for i := len(runes) - 1; i >= 0; i-- {
		if runes[i] == ' ' {
			return i
		}
	}
	return -1
}
