package extract

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"strings"

	readability "github.com/go-shiori/go-readability"
	"github.com/markusmobius/go-trafilatura"

	"github.com/umputun/newscrawl/pkg/domain"
)

// Extractor removes boilerplate with trafilatura and falls back to readability
// when trafilatura yields no text
type Extractor struct{}

// Method returns the strategy name
func (Extractor) Method() domain.ExtractionMethod { return domain.MethodExtractor }

// Extract runs trafilatura then readability over the raw body
func (Extractor) Extract(page *domain.Page) (*Result, error) {
	if len(bytes.TrimSpace(page.Body)) == 0 {
		return nil, errors.New("empty body")
	}
	pageURL, err := url.Parse(page.URL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}

	res, trafErr := fromTrafilatura(page.Body, pageURL)
	if trafErr == nil && strings.TrimSpace(res.Text) != "" {
		return res, nil
	}

	rd, rdErr := fromReadability(page.Body, pageURL)
	if rdErr == nil && rd.Usable() {
		if res != nil { // keep trafilatura metadata readability lacks
			fill(&rd.Title, res.Title)
			fill(&rd.Description, res.Description)
			if len(rd.Authors) == 0 {
				rd.Authors = res.Authors
			}
			if rd.Published.IsZero() {
				rd.Published = res.Published
			}
		}
		return rd, nil
	}
	if res.Usable() {
		return res, nil
	}
	if trafErr == nil {
		trafErr = ErrNoContent
	}
	if rdErr == nil {
		rdErr = ErrNoContent
	}
	return nil, fmt.Errorf("trafilatura: %v, readability: %v", trafErr, rdErr)
}

func fromTrafilatura(body []byte, pageURL *url.URL) (*Result, error) {
	opts := trafilatura.Options{
		EnableFallback:  true,
		ExcludeComments: true,
		ExcludeTables:   false,
		IncludeImages:   false,
		IncludeLinks:    false,
		Deduplicate:     true,
		OriginalURL:     pageURL,
	}
	extracted, err := trafilatura.Extract(bytes.NewReader(body), opts)
	if err != nil {
		return nil, err
	}
	if extracted == nil {
		return nil, ErrNoContent
	}
	return &Result{
		Title:        extracted.Metadata.Title,
		Text:         strings.TrimSpace(extracted.ContentText),
		Description:  extracted.Metadata.Description,
		Authors:      splitAuthors(extracted.Metadata.Author),
		AuthorSource: domain.AuthorFromExtractor,
		Published:    extracted.Metadata.Date.UTC(),
	}, nil
}

func fromReadability(body []byte, pageURL *url.URL) (*Result, error) {
	article, err := readability.FromReader(bytes.NewReader(body), pageURL)
	if err != nil {
		return nil, err
	}
	res := &Result{
		Title:        strings.TrimSpace(article.Title),
		Text:         strings.TrimSpace(article.TextContent),
		Description:  strings.TrimSpace(article.Excerpt),
		Authors:      splitAuthors(article.Byline),
		AuthorSource: domain.AuthorFromExtractor,
	}
	if article.PublishedTime != nil {
		res.Published = article.PublishedTime.UTC()
	}
	return res, nil
}
