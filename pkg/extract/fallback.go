package extract

import (
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/umputun/newscrawl/pkg/domain"
	"github.com/umputun/newscrawl/pkg/markup"
)

// minParagraphLength is the rune count a body paragraph must exceed to be kept
const minParagraphLength = 20

// containerSelectors are tried in order for article paragraphs
var containerSelectors = []string{
	"article p",
	"main p",
	`[itemprop="articleBody"] p`,
}

// chromeSelectors are removed before collecting body paragraphs
const chromeSelectors = "header, footer, nav, aside, form, script, style, noscript, " +
	".header, .footer, .navigation, .nav, .sidebar, .menu, .related, .newsletter, .share"

// HTMLFallback is the last resort: title and paragraph heuristics over the DOM
type HTMLFallback struct{}

// Method returns the strategy name
func (HTMLFallback) Method() domain.ExtractionMethod { return domain.MethodHTMLFallback }

// Extract reads title from og:title, <title> or <h1> and text from article paragraphs.
// The page document is not modified.
func (HTMLFallback) Extract(page *domain.Page) (*Result, error) {
	doc := page.Doc
	if doc == nil {
		if page.ParseErr != nil {
			return nil, page.ParseErr
		}
		return nil, errors.New("no document")
	}

	res := &Result{AuthorSource: domain.AuthorFromMeta}
	fill(&res.Title,
		markup.Meta(doc, "og:title", "twitter:title"),
		doc.Find("head title").First().Text(),
		doc.Find("h1").First().Text(),
	)
	res.Text = fallbackText(doc)
	res.Authors = metaAuthors(doc)
	res.Published = metaPublished(doc)
	return res, nil
}

func fallbackText(doc *goquery.Document) string {
	for _, sel := range containerSelectors {
		if txt := paragraphs(doc.Find(sel)); txt != "" {
			return txt
		}
	}
	body := doc.Find("body").First()
	if body.Length() == 0 {
		return ""
	}
	body = body.Clone()
	body.Find(chromeSelectors).Remove()
	return paragraphs(body.Find("p"))
}

// paragraphs joins texts of paragraphs longer than minParagraphLength with blank lines
func paragraphs(sel *goquery.Selection) string {
	var parts []string
	sel.Each(func(_ int, s *goquery.Selection) {
		t := strings.TrimSpace(s.Text())
		if utf8.RuneCountInString(t) > minParagraphLength {
			parts = append(parts, t)
		}
	})
	return strings.Join(parts, "\n\n")
}
