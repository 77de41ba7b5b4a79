package domain

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Page is a fetched page handed to the pipeline by the crawling engine
type Page struct {
	URL       string
	Source    string
	Body      []byte
	Doc       *goquery.Document // nil if the body could not be parsed
	ParseErr  error
	Feed      *FeedEntry // optional feed metadata for this URL
	FetchedAt time.Time
}

// NewPage makes a page and parses its body once. Parse failures are kept in ParseErr.
func NewPage(rawURL, source string, body []byte) *Page {
	p := &Page{URL: rawURL, Source: source, Body: body, FetchedAt: time.Now()}
	if len(bytes.TrimSpace(body)) == 0 {
		p.ParseErr = errors.New("empty body")
		return p
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		p.ParseErr = fmt.Errorf("parse html: %w", err)
		return p
	}
	if u, err := url.Parse(rawURL); err == nil {
		doc.Url = u
	}
	p.Doc = doc
	return p
}
