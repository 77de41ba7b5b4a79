package extract

import (
	"errors"
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/umputun/newscrawl/pkg/domain"
	"github.com/umputun/newscrawl/pkg/markup"
)

var (
	strictPolicy = bluemonday.StrictPolicy()
	blockEnd     = regexp.MustCompile(`(?i)(<br\s*/?>|</(p|div|li|h[1-6]|blockquote|tr)>)`)
)

// Feed reads structured metadata: the RSS/Atom entry attached to the page and
// JSON-LD article objects of the document. Entry fields take precedence.
type Feed struct{}

// Method returns the strategy name
func (Feed) Method() domain.ExtractionMethod { return domain.MethodFeed }

// Extract merges feed entry and JSON-LD fields
func (Feed) Extract(page *domain.Page) (*Result, error) {
	res := &Result{AuthorSource: domain.AuthorFromFeed}
	found := false

	if e := page.Feed; e != nil {
		found = true
		res.Title = e.Title
		res.Text = HTMLToText(e.Content)
		res.Description = HTMLToText(e.Description)
		res.Authors = nonEmpty(e.Authors)
		if e.Published != nil {
			res.Published = e.Published.UTC()
		}
	}

	if articles := markup.Articles(page.Doc); len(articles) > 0 {
		found = true
		obj := articles[0]
		fill(&res.Title, markup.String(obj, "headline"), markup.String(obj, "name"))
		fill(&res.Text, markup.String(obj, "articleBody"))
		fill(&res.Description, markup.String(obj, "description"))
		if len(res.Authors) == 0 {
			res.Authors = markup.Names(obj, "author")
		}
		if res.Published.IsZero() {
			res.Published = parseDate(markup.String(obj, "datePublished"))
		}
		if res.Published.IsZero() {
			res.Published = parseDate(markup.String(obj, "dateCreated"))
		}
	}

	if !found {
		return nil, errors.New("no feed entry or json-ld article")
	}
	return res, nil
}

// HTMLToText strips markup with a strict sanitizer policy and unescapes entities,
// block element boundaries become line breaks
func HTMLToText(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	s = blockEnd.ReplaceAllString(s, "$1\n")
	return strings.TrimSpace(html.UnescapeString(strictPolicy.Sanitize(s)))
}

// fill sets *dst to the first non-blank candidate if it is blank
func fill(dst *string, candidates ...string) {
	if strings.TrimSpace(*dst) != "" {
		return
	}
	for _, c := range candidates {
		if strings.TrimSpace(c) != "" {
			*dst = c
			return
		}
	}
}
