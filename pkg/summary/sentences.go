package summary

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// abbreviations never end a sentence
var abbreviations = map[string]struct{}{
	"mr": {}, "mrs": {}, "ms": {}, "dr": {}, "prof": {}, "st": {}, "jr": {}, "sr": {},
	"gen": {}, "gov": {}, "sen": {}, "rep": {}, "lt": {}, "col": {}, "sgt": {}, "capt": {},
	"inc": {}, "corp": {}, "co": {}, "ltd": {}, "vs": {}, "etc": {}, "no": {}, "jan": {},
	"feb": {}, "mar": {}, "apr": {}, "aug": {}, "sept": {}, "sep": {}, "oct": {}, "nov": {}, "dec": {},
}

// Split breaks normalized text into sentences. A sentence ends with '.', '!', '?' or '…'
// (optionally followed by closing quotes or brackets) before whitespace, unless the
// terminating word is a known abbreviation or a single letter initial.
func Split(s string) []string {
	var res []string
	start := 0
	for i, r := range s {
		if i < start || (r != '.' && r != '!' && r != '?' && r != '…') {
			continue
		}
		end := i + utf8.RuneLen(r)
		for end < len(s) {
			c, size := utf8.DecodeRuneInString(s[end:])
			if !strings.ContainsRune(`.!?"')]”’»`, c) {
				break
			}
			end += size
		}
		if end < len(s) {
			c, _ := utf8.DecodeRuneInString(s[end:])
			if !unicode.IsSpace(c) {
				continue
			}
		}
		if r == '.' && isAbbreviation(s[start:i]) {
			continue
		}
		if sent := strings.TrimSpace(s[start:end]); sent != "" {
			res = append(res, sent)
		}
		start = end
	}
	if tail := strings.TrimSpace(s[start:]); tail != "" {
		res = append(res, tail)
	}
	return res
}

// isAbbreviation checks the last word of the fragment preceding a period
func isAbbreviation(fragment string) bool {
	idx := strings.LastIndexFunc(fragment, unicode.IsSpace)
	word := strings.TrimLeft(fragment[idx+1:], `"'(“‘«`)
	if strings.Contains(word, ".") { // initialism like U.S
		return true
	}
	if utf8.RuneCountInString(word) == 1 {
		r, _ := utf8.DecodeRuneInString(word)
		return unicode.IsUpper(r)
	}
	_, ok := abbreviations[strings.ToLower(word)]
	return ok
}

// stopWords are excluded from term frequencies
var stopWords = func() map[string]struct{} {
	words := strings.Fields(`a about above after again against all also am an and any are as at be
		because been before being below between both but by can could did do does doing down during
		each few for from further had has have having he her here hers herself him himself his how i
		if in into is it its itself just me more most my myself no nor not now of off on once only or
		other our ours ourselves out over own said same says she should so some such than that the
		their theirs them themselves then there these they this those through to too under until up
		very was we were what when where which while who whom why will with would you your yours
		yourself yourselves it's that's there's he's she's they're we're i'm don't doesn't didn't
		isn't wasn't won't can't one two new like told according year years`)
	res := make(map[string]struct{}, len(words))
	for _, w := range words {
		res[w] = struct{}{}
	}
	return res
}()
