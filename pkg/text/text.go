// Package text normalizes extracted fields and applies the article quality gate
package text

import (
	"strings"
	"unicode/utf8"
)

// DefaultMinArticleTextLength is the minimal rune length of article text kept in a record
const DefaultMinArticleTextLength = 200

// Normalize collapses runs of unicode whitespace to a single space and trims the result
func Normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// JoinAuthors normalizes author names, drops empty and repeated ones (case-insensitive)
// and joins the rest with ", "
func JoinAuthors(names []string) string {
	seen := make(map[string]struct{}, len(names))
	res := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.Trim(Normalize(n), ",;")
		n = strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(n, "By "), "by "))
		if n == "" {
			continue
		}
		key := strings.ToLower(n)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		res = append(res, n)
	}
	return strings.Join(res, ", ")
}

// Len returns the length of s in runes
func Len(s string) int {
	return utf8.RuneCountInString(s)
}

// Truncate cuts s to at most n runes without splitting a rune
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// Gate suppresses text shorter than MinLength
type Gate struct {
	MinLength int
}

// Apply returns the text and true if it passes the gate, empty string and false otherwise.
// Text of exactly MinLength runes passes.
func (g Gate) Apply(text string) (string, bool) {
	if text == "" || utf8.RuneCountInString(text) < g.MinLength {
		return "", false
	}
	return text, true
}
