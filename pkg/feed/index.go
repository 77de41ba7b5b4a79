package feed

import (
	"context"
	"sync"

	"github.com/go-pkgz/lgr"
	"golang.org/x/sync/errgroup"

	"github.com/umputun/newscrawl/pkg/domain"
	"github.com/umputun/newscrawl/pkg/fingerprint"
)

// FeedParser fetches one feed
type FeedParser interface {
	Parse(ctx context.Context, url string) (*domain.ParsedFeed, error)
}

// Index keeps feed entries keyed by the url_hash of their link, so a fetched page
// finds its entry regardless of tracking params or trailing slashes
type Index struct {
	canon *fingerprint.Canonicalizer

	mu      sync.RWMutex
	entries map[string]domain.FeedEntry
}

// NewIndex makes an empty index, nil canonicalizer uses default tracking params
func NewIndex(canon *fingerprint.Canonicalizer) *Index {
	if canon == nil {
		canon = fingerprint.NewCanonicalizer(nil)
	}
	return &Index{canon: canon, entries: map[string]domain.FeedEntry{}}
}

// Add stores the entries of a feed and returns the links not indexed before, in feed order.
// The first entry seen for a link wins.
func (ix *Index) Add(feed *domain.ParsedFeed) []string {
	if feed == nil {
		return nil
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	var res []string
	for _, e := range feed.Entries {
		h := ix.canon.URLHash(e.Link)
		if _, ok := ix.entries[h]; ok {
			continue
		}
		ix.entries[h] = e
		res = append(res, e.Link)
	}
	return res
}

// Lookup returns a copy of the entry of url, nil if not indexed
func (ix *Index) Lookup(url string) *domain.FeedEntry {
	h := ix.canon.URLHash(url)
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	e, ok := ix.entries[h]
	if !ok {
		return nil
	}
	e.Authors = append([]string(nil), e.Authors...)
	return &e
}

// Len returns the number of indexed entries
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.entries)
}

// Load fetches feeds concurrently, at most workers at a time, and indexes their entries.
// A failing feed is logged and skipped. Returns the new links in feed order.
func (ix *Index) Load(ctx context.Context, p FeedParser, feeds []string, workers int) []string {
	if workers <= 0 {
		workers = 4
	}
	results := make([][]string, len(feeds))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, url := range feeds {
		g.Go(func() error {
			feed, err := p.Parse(ctx, url)
			if err != nil {
				lgr.Printf("[WARN] failed to read feed %s: %v", url, err)
				return nil
			}
			results[i] = ix.Add(feed)
			lgr.Printf("[DEBUG] feed %s: %d entries, %d new", url, len(feed.Entries), len(results[i]))
			return nil
		})
	}
	_ = g.Wait() // feed errors are logged, never returned

	var res []string
	for _, links := range results {
		res = append(res, links...)
	}
	return res
}
