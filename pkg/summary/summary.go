// Package summary produces deterministic extractive summaries of article text.
//
// The default "nlp" method scores sentences by normalized term frequency with a bonus for
// title terms and early position, and re-emits the best ones in document order. The "lead"
// method takes the first sentences. Results are truncated at a word boundary with an
// ellipsis when they exceed the configured limit.
package summary

import (
	"math"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/umputun/newscrawl/pkg/text"
)

// Method selects the summarization algorithm
type Method string

// supported methods
const (
	MethodNLP  Method = "nlp"
	MethodLead Method = "lead"
)

// defaults used when Generator fields are zero
const (
	DefaultMaxChars  = 512
	DefaultSentences = 5
)

// Ellipsis marks a truncated summary, counted in the limit
const Ellipsis = "…"

// Result is a produced summary
type Result struct {
	Text      string
	Truncated bool
}

// Generator makes summaries, zero value uses nlp with defaults
type Generator struct {
	MaxChars  int
	Sentences int
	Method    Method
}

// Summarize returns a summary of txt, or of description when txt is empty.
// Same input and settings always give the same result.
func (g Generator) Summarize(title, txt, description string) Result {
	src := text.Normalize(txt)
	if src == "" {
		src = text.Normalize(description)
	}
	if src == "" {
		return Result{}
	}

	sentences := Split(src)
	var picked []string
	if g.method() == MethodNLP {
		picked = rank(sentences, title, g.sentences())
	}
	if len(picked) == 0 {
		picked = lead(sentences, g.sentences())
	}
	if len(picked) == 0 {
		picked = []string{src}
	}
	return Truncate(text.Normalize(strings.Join(picked, " ")), g.maxChars())
}

func (g Generator) method() Method {
	if g.Method == MethodLead {
		return MethodLead
	}
	return MethodNLP
}

func (g Generator) sentences() int {
	if g.Sentences <= 0 {
		return DefaultSentences
	}
	return g.Sentences
}

func (g Generator) maxChars() int {
	if g.MaxChars <= 0 {
		return DefaultMaxChars
	}
	return g.MaxChars
}

// lead returns the first n sentences, n clamped to 3..5
func lead(sentences []string, n int) []string {
	n = min(max(n, 3), 5)
	if len(sentences) <= n {
		return sentences
	}
	return sentences[:n]
}

type scored struct {
	pos   int
	score float64
}

// rank picks up to n best scoring sentences and returns them in document order.
// Returns nil if no sentence has a content term.
func rank(sentences []string, title string, n int) []string {
	if len(sentences) == 0 {
		return nil
	}
	if len(sentences) <= n {
		for _, s := range sentences {
			if len(terms(s)) > 0 {
				return sentences
			}
		}
		return nil
	}

	freq := map[string]float64{}
	sentTerms := make([][]string, len(sentences))
	for i, s := range sentences {
		sentTerms[i] = terms(s)
		for _, w := range sentTerms[i] {
			freq[w]++
		}
	}
	if len(freq) == 0 {
		return nil
	}
	var top float64
	for _, f := range freq {
		top = math.Max(top, f)
	}

	titleTerms := map[string]struct{}{}
	for _, w := range terms(title) {
		titleTerms[w] = struct{}{}
	}

	res := make([]scored, 0, len(sentences))
	for i, ts := range sentTerms {
		if len(ts) == 0 {
			continue
		}
		var sum float64
		hits := 0
		for _, w := range ts {
			sum += freq[w] / top
			if _, ok := titleTerms[w]; ok {
				hits++
			}
		}
		score := sum / float64(len(ts))
		if len(titleTerms) > 0 {
			score += 0.5 * float64(hits) / float64(len(ts))
		}
		score += 0.25 / float64(i+1) // earlier sentences carry the lede
		res = append(res, scored{pos: i, score: score})
	}
	if len(res) == 0 {
		return nil
	}

	sort.SliceStable(res, func(i, j int) bool {
		if res[i].score != res[j].score {
			return res[i].score > res[j].score
		}
		return res[i].pos < res[j].pos
	})
	if len(res) > n {
		res = res[:n]
	}
	sort.Slice(res, func(i, j int) bool { return res[i].pos < res[j].pos })

	out := make([]string, 0, len(res))
	for _, r := range res {
		out = append(out, sentences[r.pos])
	}
	return out
}

// terms returns lowercased content words of s, stop words and one-letter tokens excluded
func terms(s string) []string {
	words := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
	res := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.Trim(w, "'")
		if utf8.RuneCountInString(w) < 2 {
			continue
		}
		if _, stop := stopWords[w]; stop {
			continue
		}
		res = append(res, w)
	}
	return res
}

// Truncate limits s to maxChars runes. Longer strings are cut at the last word boundary
// that leaves room for the ellipsis, trailing punctuation is trimmed and Ellipsis appended.
// A single word longer than the limit is cut hard.
func Truncate(s string, maxChars int) Result {
	if maxChars <= 0 || utf8.RuneCountInString(s) <= maxChars {
		return Result{Text: s}
	}
	budget := maxChars - utf8.RuneCountInString(Ellipsis)
	if budget <= 0 {
		return Result{Text: text.Truncate(Ellipsis, maxChars), Truncated: true}
	}

	head := text.Truncate(s, budget)
	next, _ := utf8.DecodeRuneInString(s[len(head):])
	cut := head
	if !unicode.IsSpace(next) {
		if i := strings.LastIndexFunc(head, unicode.IsSpace); i > 0 {
			cut = head[:i]
		}
	}
	res := strings.TrimRightFunc(cut, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r)
	})
	if res == "" {
		// nothing but punctuation before the boundary, keep it rather than cutting mid-word
		res = strings.TrimRightFunc(cut, unicode.IsSpace)
	}
	if res == "" {
		res = head
	}
	return Result{Text: res + Ellipsis, Truncated: true}
}
