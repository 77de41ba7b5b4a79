// Package feed reads RSS/Atom feeds of news sources. Feed entries seed the crawl and
// are attached to fetched pages as structured metadata.
package feed

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/umputun/newscrawl/pkg/domain"
)

// acceptLanguages contains common browser Accept-Language values
var acceptLanguages = []string{
	"en-US,en;q=0.9",
	"en-GB,en;q=0.9",
	"en-US,en;q=0.9,es;q=0.8",
	"en-US,en;q=0.9,fr;q=0.8",
	"en-US,en;q=0.9,de;q=0.8",
}

// Parser fetches and parses RSS/Atom feeds
type Parser struct {
	client    *http.Client
	userAgent string
}

// NewParser creates a feed parser
func NewParser(timeout time.Duration, userAgent string) *Parser {
	return &Parser{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		userAgent: userAgent,
	}
}

// Parse fetches and parses a feed from the given URL
func (p *Parser) Parse(ctx context.Context, url string) (*domain.ParsedFeed, error) {
	body, err := p.fetch(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}
	defer body.Close()
	return Read(body)
}

// Read parses feed content from r
func Read(r io.Reader) (*domain.ParsedFeed, error) {
	feed, err := gofeed.NewParser().Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	res := &domain.ParsedFeed{
		Title:   feed.Title,
		Link:    feed.Link,
		Entries: make([]domain.FeedEntry, 0, len(feed.Items)),
	}
	for _, item := range feed.Items {
		if strings.TrimSpace(item.Link) == "" {
			continue // nothing to crawl
		}
		entry := domain.FeedEntry{
			Title:       item.Title,
			Link:        strings.TrimSpace(item.Link),
			Description: item.Description,
			Content:     item.Content,
		}

		for _, a := range item.Authors {
			if a != nil && a.Name != "" {
				entry.Authors = append(entry.Authors, a.Name)
			}
		}
		if len(entry.Authors) == 0 && item.Author != nil && item.Author.Name != "" {
			entry.Authors = []string{item.Author.Name}
		}
		if len(entry.Authors) == 0 && item.DublinCoreExt != nil {
			entry.Authors = append(entry.Authors, item.DublinCoreExt.Creator...)
		}

		switch {
		case item.PublishedParsed != nil:
			ts := item.PublishedParsed.UTC()
			entry.Published = &ts
		case item.UpdatedParsed != nil:
			ts := item.UpdatedParsed.UTC()
			entry.Published = &ts
		}

		res.Entries = append(res.Entries, entry)
	}
	return res, nil
}

// fetch retrieves content from a URL
func (p *Parser) fetch(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if p.userAgent != "" {
		req.Header.Set("User-Agent", p.userAgent)
	}
	addFeedHeaders(req)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch URL: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	return resp.Body, nil
}

// addFeedHeaders adds browser-like headers accepting feed content types
func addFeedHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/rss+xml,application/atom+xml,application/xml;q=0.9,text/xml;q=0.8,text/html;q=0.7,*/*;q=0.5")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Accept-Language", acceptLanguages[rand.Intn(len(acceptLanguages))]) //nolint:gosec // header variation only
	req.Header.Set("Connection", "keep-alive")
	if rand.Float32() < 0.3 { //nolint:gosec // non-cryptographic randomness is fine
		req.Header.Set("DNT", "1")
	}
}
