package extract

import (
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"

	"github.com/umputun/newscrawl/pkg/domain"
	"github.com/umputun/newscrawl/pkg/markup"
)

// enrich fills author, date and description missing from the winning strategy with
// page meta tags. Meta authors are marked as AuthorFromMeta.
func enrich(page *domain.Page, res *Result) {
	if len(nonEmpty(res.Authors)) == 0 {
		res.Authors = nil
		if authors := metaAuthors(page.Doc); len(authors) > 0 {
			res.Authors = authors
			res.AuthorSource = domain.AuthorFromMeta
		} else {
			res.AuthorSource = domain.AuthorMissing
		}
	}
	if res.Published.IsZero() {
		res.Published = metaPublished(page.Doc)
	}
	if res.Description == "" {
		res.Description = markup.Meta(page.Doc, "og:description", "description", "twitter:description")
	}
}

// metaAuthors reads byline meta tags and rel=author links
func metaAuthors(doc *goquery.Document) []string {
	if doc == nil {
		return nil
	}
	for _, key := range []string{"author", "article:author", "byl", "parsely-author", "sailthru.author"} {
		if v := strings.TrimSpace(markup.Meta(doc, key)); v != "" && !isURL(v) {
			return splitAuthors(v)
		}
	}
	var res []string
	doc.Find(`[rel="author"]`).Each(func(_ int, s *goquery.Selection) {
		if v := strings.TrimSpace(s.Text()); v != "" {
			res = append(res, v)
		}
	})
	return res
}

// metaPublished reads publication time meta tags and the first time[datetime]
func metaPublished(doc *goquery.Document) time.Time {
	if doc == nil {
		return time.Time{}
	}
	v := markup.Meta(doc, "article:published_time", "datePublished", "og:published_time", "pubdate", "date")
	if v == "" {
		v, _ = doc.Find("time[datetime]").First().Attr("datetime")
	}
	return parseDate(v)
}

// parseDate parses a date in any common layout, naive values are taken as UTC.
// Unparsable input gives zero time, a date is never guessed.
func parseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

// splitAuthors splits a byline on common separators
func splitAuthors(s string) []string {
	s = strings.TrimSpace(s)
	for _, prefix := range []string{"By ", "by ", "BY "} {
		s = strings.TrimPrefix(s, prefix)
	}
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ';' || r == '|' })
	var res []string
	for _, p := range parts {
		for _, name := range strings.Split(p, " and ") {
			if name = strings.TrimSpace(name); name != "" {
				res = append(res, name)
			}
		}
	}
	return res
}

func nonEmpty(values []string) []string {
	res := make([]string, 0, len(values))
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			res = append(res, v)
		}
	}
	return res
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
