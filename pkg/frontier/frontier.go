// Package frontier keeps the visited set of a crawl run and decides which outbound links
// of a page are followed. The visited set is keyed by url_hash, check-and-insert is atomic
// so concurrently processed sibling pages never enqueue the same canonical URL twice.
package frontier

import (
	"net/url"
	"strings"
	"sync"

	"golang.org/x/net/publicsuffix"

	"github.com/umputun/newscrawl/pkg/fingerprint"
)

// DefaultMaxFollowPerPage is the default cap of links enqueued from one page
const DefaultMaxFollowPerPage = 100

// Config of a frontier
type Config struct {
	MaxFollowPerPage int
	Canonicalizer    *fingerprint.Canonicalizer
	SameSite         bool // follow only links of the page's registrable domain
}

// Frontier is the shared visited set of one crawl run
type Frontier struct {
	maxFollow int
	canon     *fingerprint.Canonicalizer
	sameSite  bool

	mu      sync.Mutex
	visited map[string]struct{}
}

// Plan is the outcome of link planning for one page
type Plan struct {
	Enqueued   []string // links to fetch, in discovery order
	Rejected   int      // not article links, unresolvable or off-site
	Duplicates int      // already visited
	Capped     int      // new article links dropped by the per-page cap
}

// New makes an empty frontier
func New(cfg Config) *Frontier {
	if cfg.MaxFollowPerPage <= 0 {
		cfg.MaxFollowPerPage = DefaultMaxFollowPerPage
	}
	if cfg.Canonicalizer == nil {
		cfg.Canonicalizer = fingerprint.NewCanonicalizer(nil)
	}
	return &Frontier{
		maxFollow: cfg.MaxFollowPerPage,
		canon:     cfg.Canonicalizer,
		sameSite:  cfg.SameSite,
		visited:   map[string]struct{}{},
	}
}

// Seed marks start urls visited and returns the ones not seen before
func (f *Frontier) Seed(urls ...string) []string {
	res := make([]string, 0, len(urls))
	for _, u := range urls {
		if f.Visit(u) {
			res = append(res, u)
		}
	}
	return res
}

// Visit inserts the url into the visited set, false if it was already there
func (f *Frontier) Visit(rawURL string) bool {
	h := f.canon.URLHash(rawURL)
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.insert(h)
}

// Seen reports whether the url is in the visited set
func (f *Frontier) Seen(rawURL string) bool {
	h := f.canon.URLHash(rawURL)
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.visited[h]
	return ok
}

// Len returns the size of the visited set
func (f *Frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.visited)
}

func (f *Frontier) insert(h string) bool {
	if _, ok := f.visited[h]; ok {
		return false
	}
	f.visited[h] = struct{}{}
	return true
}

// Plan resolves links against pageURL, keeps article links accepted by accept, and inserts
// unseen ones into the visited set until the per-page cap is reached. Links over the cap
// are not marked visited and may be enqueued later from another page.
func (f *Frontier) Plan(pageURL string, links []string, accept func(string) bool) Plan {
	var res Plan
	base, err := url.Parse(pageURL)
	if err != nil {
		res.Rejected = len(links)
		return res
	}
	site := registrable(base.Hostname())

	type candidate struct{ url, hash string }
	candidates := make([]candidate, 0, len(links))
	for _, link := range links {
		abs, ok := resolve(base, link)
		if !ok {
			res.Rejected++
			continue
		}
		if f.sameSite && registrable(abs.Hostname()) != site {
			res.Rejected++
			continue
		}
		s := abs.String()
		if accept != nil && !accept(s) {
			res.Rejected++
			continue
		}
		candidates = append(candidates, candidate{url: s, hash: f.canon.URLHash(s)})
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range candidates {
		if _, ok := f.visited[c.hash]; ok {
			res.Duplicates++
			continue
		}
		if len(res.Enqueued) >= f.maxFollow {
			res.Capped++
			continue
		}
		f.insert(c.hash)
		res.Enqueued = append(res.Enqueued, c.url)
	}
	return res
}

func resolve(base *url.URL, link string) (*url.URL, bool) {
	link = strings.TrimSpace(link)
	if link == "" || strings.HasPrefix(link, "#") {
		return nil, false
	}
	ref, err := url.Parse(link)
	if err != nil {
		return nil, false
	}
	abs := base.ResolveReference(ref)
	if (abs.Scheme != "http" && abs.Scheme != "https") || abs.Host == "" {
		return nil, false
	}
	abs.Fragment = ""
	abs.RawFragment = ""
	return abs, true
}

// registrable returns the eTLD+1 of host, or the lowercased host if it has none
func registrable(host string) string {
	host = strings.ToLower(host)
	if d, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil {
		return d
	}
	return host
}
