// Package classify decides whether URLs and fetched pages are news articles.
// One default classifier carries the shared rejection list and heuristics, sources
// specialize it with configured patterns instead of separate implementations.
package classify

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"

	"github.com/umputun/newscrawl/pkg/domain"
	"github.com/umputun/newscrawl/pkg/markup"
)

// minSlugWordCount is the number of hyphen-separated words that makes a slug article-like
const minSlugWordCount = 4

// rejectSegments are path segments of listing, navigation and media pages
var rejectSegments = map[string]bool{
	"video": true, "videos": true, "gallery": true, "galleries": true,
	"live": true, "live-news": true, "av": true,
	"tag": true, "tags": true, "topic": true, "topics": true,
	"section": true, "sections": true, "author": true, "authors": true,
	"category": true, "categories": true, "page": true, "search": true,
	"newsletters": true, "podcasts": true, "programmes": true,
	"login": true, "account": true, "subscribe": true,
	"sitemap": true, "feed": true, "rss": true,
	"about": true, "contact": true, "privacy": true, "terms": true,
}

// rejectExtensions are file extensions of non-document resources
var rejectExtensions = map[string]bool{
	".pdf": true, ".xml": true, ".json": true, ".css": true, ".js": true,
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".svg": true, ".webp": true,
	".ico": true, ".woff": true, ".zip": true, ".mp3": true, ".mp4": true, ".m3u8": true,
}

// articleSegments suggest an article when followed by another segment
var articleSegments = map[string]bool{
	"article": true, "articles": true, "story": true, "stories": true, "news": true, "post": true,
}

// datePathPattern matches /2026/02/14/headline and /2026/02/headline. The segment after
// the date must hold a non-digit, so day and month archives like /2026/02/14 don't match.
var datePathPattern = regexp.MustCompile(`(^|/)\d{4}/\d{2}(/\d{2})?/[^/]*[^/\d][^/]*`)

// indexDocuments are directory index names, pages like /2026/01/index.html are listings
var indexDocuments = map[string]bool{"index": true, "default": true}

// Rules specialize the default classifier for one source
type Rules struct {
	AllowedDomains  []string // registrable domains or hosts, empty allows any
	ArticlePatterns []string // regexps on the full URL, replace default accept heuristics
	RejectPatterns  []string // regexps on the full URL, added to the rejection list
	PageSelectors   []string // css selectors signalling an article page
}

// Classifier checks URLs and pages against the default rules plus source rules
type Classifier struct {
	allowed   []string
	accept    []*regexp.Regexp
	reject    []*regexp.Regexp
	selectors []string
}

// New makes a classifier, invalid patterns are reported
func New(r Rules) (*Classifier, error) {
	c := &Classifier{selectors: r.PageSelectors}
	for _, d := range r.AllowedDomains {
		if d = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(d)), "www."); d != "" {
			c.allowed = append(c.allowed, d)
		}
	}
	var err error
	if c.accept, err = compile(r.ArticlePatterns); err != nil {
		return nil, fmt.Errorf("article patterns: %w", err)
	}
	if c.reject, err = compile(r.RejectPatterns); err != nil {
		return nil, fmt.Errorf("reject patterns: %w", err)
	}
	for _, sel := range r.PageSelectors {
		if _, err := cascadia.Compile(sel); err != nil {
			return nil, fmt.Errorf("page selector %q: %w", sel, err)
		}
	}
	return c, nil
}

// Default returns a classifier with default rules only
func Default() *Classifier {
	return &Classifier{}
}

func compile(patterns []string) ([]*regexp.Regexp, error) {
	res := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("compile %q: %w", p, err)
		}
		res = append(res, re)
	}
	return res, nil
}

// AllowedDomains returns the configured domain restriction
func (c *Classifier) AllowedDomains() []string {
	return c.allowed
}

// IsArticleURL reports whether rawURL looks like an article. Unknown shapes are rejected.
func (c *Classifier) IsArticleURL(rawURL string) bool {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return false
	}
	if !c.domainAllowed(u.Hostname()) {
		return false
	}

	p := strings.TrimRight(u.Path, "/")
	lower := strings.ToLower(p)
	segments := strings.Split(strings.TrimLeft(lower, "/"), "/")
	for _, seg := range segments {
		if rejectSegments[seg] {
			return false
		}
	}
	if rejectExtensions[path.Ext(lower)] {
		return false
	}
	if last := segments[len(segments)-1]; indexDocuments[strings.TrimSuffix(last, path.Ext(last))] {
		return false
	}
	for _, re := range c.reject {
		if re.MatchString(rawURL) {
			return false
		}
	}

	if len(c.accept) > 0 {
		for _, re := range c.accept {
			if re.MatchString(rawURL) {
				return true
			}
		}
		return false
	}
	return matchesHeuristics(p, segments)
}

// matchesHeuristics applies default accept rules to a path without trailing slash
func matchesHeuristics(p string, segments []string) bool {
	if p == "" {
		return false
	}
	if len(segments) == 1 && !longSlug(segments[0]) {
		return false
	}
	if datePathPattern.MatchString(p) {
		return true
	}
	for i, seg := range segments[:len(segments)-1] {
		if articleSegments[seg] && segments[i+1] != "" {
			return true
		}
	}
	for _, seg := range segments {
		if longSlug(seg) {
			return true
		}
	}
	return false
}

func longSlug(seg string) bool {
	seg = strings.TrimSuffix(seg, path.Ext(seg))
	words := 0
	for _, w := range strings.Split(seg, "-") {
		if w != "" {
			words++
		}
	}
	return words >= minSlugWordCount
}

func (c *Classifier) domainAllowed(host string) bool {
	if len(c.allowed) == 0 {
		return true
	}
	host = strings.ToLower(host)
	for _, d := range c.allowed {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// IsArticlePage reports whether the page carries article structure: JSON-LD article
// objects, og:type article, article microdata, an article page-type marker on body,
// an <article> element or one of the source selectors
func (c *Classifier) IsArticlePage(page *domain.Page) bool {
	if page == nil || page.Doc == nil {
		return false
	}
	doc := page.Doc
	if len(markup.Articles(doc)) > 0 {
		return true
	}
	if strings.EqualFold(strings.TrimSpace(markup.Meta(doc, "og:type")), "article") {
		return true
	}
	for _, sel := range c.selectors {
		if doc.Find(sel).Length() > 0 {
			return true
		}
	}
	found := false
	doc.Find("[itemtype]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		it, _ := s.Attr("itemtype")
		it = strings.TrimRight(strings.TrimSpace(it), "/")
		if i := strings.LastIndex(it, "/"); i >= 0 {
			it = it[i+1:]
		}
		found = markup.ArticleTypes[it]
		return !found
	})
	if found {
		return true
	}
	if doc.Find(`body[data-page-type*="article"]`).Length() > 0 {
		return true
	}
	return doc.Find("article").Length() > 0
}

// Set maps source names to classifiers with a fallback
type Set struct {
	def      *Classifier
	bySource map[string]*Classifier
}

// NewSet makes a set with the given fallback, nil means Default()
func NewSet(def *Classifier) *Set {
	if def == nil {
		def = Default()
	}
	return &Set{def: def, bySource: map[string]*Classifier{}}
}

// Add registers a classifier for a source
func (s *Set) Add(source string, c *Classifier) {
	s.bySource[strings.ToLower(source)] = c
}

// Get returns the classifier of a source or the fallback
func (s *Set) Get(source string) *Classifier {
	if c, ok := s.bySource[strings.ToLower(source)]; ok {
		return c
	}
	return s.def
}
