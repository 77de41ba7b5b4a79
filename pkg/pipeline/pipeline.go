// Package pipeline runs fetched pages through classification, extraction, normalization,
// summarization and fingerprinting, and hands the assembled records to a dispatcher.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-pkgz/lgr"

	"github.com/umputun/newscrawl/pkg/classify"
	"github.com/umputun/newscrawl/pkg/domain"
	"github.com/umputun/newscrawl/pkg/extract"
	"github.com/umputun/newscrawl/pkg/fingerprint"
	"github.com/umputun/newscrawl/pkg/frontier"
	"github.com/umputun/newscrawl/pkg/markup"
	"github.com/umputun/newscrawl/pkg/summary"
	"github.com/umputun/newscrawl/pkg/text"
)

// Extractor runs the extraction cascade over a page
type Extractor interface {
	Extract(page *domain.Page) extract.Outcome
}

// Dispatcher delivers assembled items
type Dispatcher interface {
	Dispatch(ctx context.Context, item *domain.NewsItem) error
}

// Recorder receives pipeline events, used for metrics
type Recorder interface {
	PageHandled(source string, stage domain.Stage)
	ItemAssembled(item *domain.NewsItem)
	ItemDispatched(source string, err error)
	LinksPlanned(source string, plan frontier.Plan)
}

// Config holds pipeline settings, zero values use defaults
type Config struct {
	MinArticleTextLength int
	SummaryMaxChars      int
	SummarySentences     int
	SummaryMethod        summary.Method
	MaxFollowPerPage     int
	TrackingParams       []string
	Recorder             Recorder
}

// Pipeline processes pages of one crawl run. Per-page stages share no state,
// the per-source frontiers are the only mutable state and guard themselves.
type Pipeline struct {
	classifiers *classify.Set
	extractor   Extractor
	dispatcher  Dispatcher
	recorder    Recorder
	canon       *fingerprint.Canonicalizer
	gate        text.Gate
	summarizer  summary.Generator
	maxFollow   int
	now         func() time.Time

	mu        sync.Mutex
	frontiers map[string]*frontier.Frontier

	stats *counters
}

// Result reports the final stage reached by a page
type Result struct {
	Stage domain.Stage
	Item  *domain.NewsItem // nil for dropped pages
	Links []string         // links enqueued from the page
}

// New makes a pipeline. Nil classifiers and extractor fall back to defaults,
// nil dispatcher stops items at the assembled stage.
func New(classifiers *classify.Set, extractor Extractor, dispatcher Dispatcher, cfg Config) *Pipeline {
	if classifiers == nil {
		classifiers = classify.NewSet(nil)
	}
	if extractor == nil {
		extractor = extract.Default()
	}
	if cfg.MinArticleTextLength <= 0 {
		cfg.MinArticleTextLength = text.DefaultMinArticleTextLength
	}
	if cfg.SummaryMaxChars <= 0 {
		cfg.SummaryMaxChars = summary.DefaultMaxChars
	}
	if cfg.SummarySentences <= 0 {
		cfg.SummarySentences = summary.DefaultSentences
	}
	if cfg.SummaryMethod == "" {
		cfg.SummaryMethod = summary.MethodNLP
	}
	if cfg.MaxFollowPerPage <= 0 {
		cfg.MaxFollowPerPage = frontier.DefaultMaxFollowPerPage
	}

	return &Pipeline{
		classifiers: classifiers,
		extractor:   extractor,
		dispatcher:  dispatcher,
		recorder:    cfg.Recorder,
		canon:       fingerprint.NewCanonicalizer(cfg.TrackingParams),
		gate:        text.Gate{MinLength: cfg.MinArticleTextLength},
		summarizer: summary.Generator{
			MaxChars:  cfg.SummaryMaxChars,
			Sentences: cfg.SummarySentences,
			Method:    cfg.SummaryMethod,
		},
		maxFollow: cfg.MaxFollowPerPage,
		now:       time.Now,
		frontiers: map[string]*frontier.Frontier{},
		stats:     newCounters(),
	}
}

// Frontier returns the visited set of the source, created on first use. Links of a source
// without allowed domains are restricted to the page's registrable domain.
func (p *Pipeline) Frontier(source string) *frontier.Frontier {
	key := strings.ToLower(source)
	p.mu.Lock()
	defer p.mu.Unlock()
	if f, ok := p.frontiers[key]; ok {
		return f
	}
	f := frontier.New(frontier.Config{
		MaxFollowPerPage: p.maxFollow,
		Canonicalizer:    p.canon,
		SameSite:         len(p.classifiers.Get(source).AllowedDomains()) == 0,
	})
	p.frontiers[key] = f
	return f
}

// Handle classifies the page, plans its outbound links and, for article pages, processes
// and dispatches the record. Dispatch errors are returned with the item left at the
// assembled stage, nothing is retried.
func (p *Pipeline) Handle(ctx context.Context, page *domain.Page) (Result, error) {
	if page == nil {
		return Result{}, errors.New("nil page")
	}
	p.stats.pages.Add(1)

	c := p.classifiers.Get(page.Source)
	article := c.IsArticleURL(page.URL) && c.IsArticlePage(page)
	links := p.planLinks(page, c)

	if !article {
		p.stats.dropped.Add(1)
		lgr.Printf("[DEBUG] dropped %s, not an article", page.URL)
		p.record(page.Source, domain.StageDropped)
		return Result{Stage: domain.StageDropped, Links: links}, nil
	}

	item := p.Process(page)
	res := Result{Stage: domain.StageAssembled, Item: &item, Links: links}
	if p.dispatcher == nil {
		p.record(page.Source, res.Stage)
		return res, nil
	}

	err := p.dispatcher.Dispatch(ctx, &item)
	if p.recorder != nil {
		p.recorder.ItemDispatched(page.Source, err)
	}
	if err != nil {
		p.stats.dispatchErrors.Add(1)
		p.record(page.Source, res.Stage)
		return res, fmt.Errorf("dispatch %s: %w", page.URL, err)
	}
	p.stats.dispatched.Add(1)
	res.Stage = domain.StageDispatched
	p.record(page.Source, res.Stage)
	return res, nil
}

func (p *Pipeline) planLinks(page *domain.Page, c *classify.Classifier) []string {
	f := p.Frontier(page.Source)
	f.Visit(page.URL)
	if page.Doc == nil {
		return nil
	}
	plan := f.Plan(page.URL, markup.Links(page.Doc, page.URL), c.IsArticleURL)
	p.stats.enqueued.Add(int64(len(plan.Enqueued)))
	if plan.Capped > 0 {
		lgr.Printf("[DEBUG] %s: %d links over the follow cap of %d", page.URL, plan.Capped, p.maxFollow)
	}
	if p.recorder != nil {
		p.recorder.LinksPlanned(page.Source, plan)
	}
	return plan.Enqueued
}

// Process assembles the record of an article page. It never fails: when every extraction
// strategy fails the item carries parse_ok=false with the url, source and scraped_at set.
func (p *Pipeline) Process(page *domain.Page) domain.NewsItem {
	out := p.extractor.Extract(page)
	res := out.Result
	if res == nil {
		res = &extract.Result{}
	}

	item := domain.NewsItem{
		URL:              page.URL,
		Source:           page.Source,
		ScrapedAt:        domain.FormatTimestamp(p.now()),
		URLHash:          p.canon.URLHash(page.URL),
		SummaryMaxChars:  p.summarizer.MaxChars,
		ParseOK:          out.OK,
		ParseError:       out.Error,
		ExtractionMethod: out.Method,
		AuthorSource:     res.AuthorSource,
	}

	// normalize
	item.Title = text.Normalize(res.Title)
	item.Author = text.JoinAuthors(res.Authors)
	if item.Author == "" || item.AuthorSource == "" {
		item.AuthorSource = domain.AuthorMissing
	}
	item.PublishedAt = domain.FormatTimestamp(res.Published)
	body := text.Normalize(res.Text)

	// quality gate, summary is made from the full text so it survives the gate
	item.Text, _ = p.gate.Apply(body)
	item.ContentLengthChars = text.Len(item.Text)
	sum := p.summarizer.Summarize(item.Title, body, res.Description)
	item.Summary, item.SummaryTruncated = sum.Text, sum.Truncated

	item.Fingerprint = fingerprint.Content(item.Title, item.Text, item.PublishedAt, item.Source)

	p.stats.items.Add(1)
	if !item.ParseOK {
		p.stats.parseFailures.Add(1)
		lgr.Printf("[WARN] extraction failed for %s: %s", page.URL, item.ParseError)
	} else if c, ok := p.stats.methods[item.ExtractionMethod]; ok {
		c.Add(1)
	}
	if p.recorder != nil {
		p.recorder.ItemAssembled(&item)
	}
	return item
}

// Stats returns a snapshot of the run counters
func (p *Pipeline) Stats() Stats {
	return p.stats.snapshot()
}

func (p *Pipeline) record(source string, stage domain.Stage) {
	if p.recorder != nil {
		p.recorder.PageHandled(source, stage)
	}
}
