// Package crawl drives a colly collector over the start urls of a source and feeds every
// fetched page into the pipeline. Outbound links come back from the pipeline already
// filtered and deduplicated by the source frontier.
package crawl

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-pkgz/lgr"
	"github.com/gocolly/colly/v2"

	"github.com/umputun/newscrawl/pkg/domain"
	"github.com/umputun/newscrawl/pkg/frontier"
	"github.com/umputun/newscrawl/pkg/pipeline"
)

// defaults of the engine config
const (
	DefaultMaxDepth       = 2
	DefaultParallelism    = 2
	DefaultRequestTimeout = 30 * time.Second
	DefaultUserAgent      = "Mozilla/5.0 (compatible; newscrawl/1.0)"
)

// Handler processes a fetched page, implemented by pipeline.Pipeline
type Handler interface {
	Handle(ctx context.Context, page *domain.Page) (pipeline.Result, error)
	Frontier(source string) *frontier.Frontier
}

// FeedLookup finds feed metadata of a page url
type FeedLookup interface {
	Lookup(url string) *domain.FeedEntry
}

// Config of the engine
type Config struct {
	UserAgent      string
	MaxDepth       int
	Parallelism    int           // concurrent requests per domain
	Delay          time.Duration // delay between requests to the same domain
	RequestTimeout time.Duration
	RespectRobots  bool
	MaxBodySize    int
}

// Source is a crawl target
type Source struct {
	Name      string
	StartURLs []string
}

// Report summarizes a source crawl
type Report struct {
	Source       string `json:"source"`
	Requests     int64  `json:"requests"`
	Responses    int64  `json:"responses"`
	FetchErrors  int64  `json:"fetch_errors"`
	HandleErrors int64  `json:"handle_errors"`
	Skipped      int64  `json:"skipped"` // non-html responses
}

// Engine crawls sources
type Engine struct {
	cfg     Config
	handler Handler
	feeds   FeedLookup
}

// New makes an engine, feeds may be nil
func New(cfg Config, handler Handler, feeds FeedLookup) *Engine {
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = DefaultMaxDepth
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = DefaultParallelism
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	return &Engine{cfg: cfg, handler: handler, feeds: feeds}
}

// Run crawls the source until no links are left or ctx is canceled
func (e *Engine) Run(ctx context.Context, src Source) (Report, error) {
	if e.handler == nil {
		return Report{Source: src.Name}, errors.New("no page handler")
	}
	var requests, responses, fetchErrors, handleErrors, skipped atomic.Int64

	c, err := e.collector(ctx)
	if err != nil {
		return Report{Source: src.Name}, err
	}

	c.OnRequest(func(r *colly.Request) {
		requests.Add(1)
		setBrowserHeaders(r.Headers)
	})

	c.OnError(func(r *colly.Response, err error) {
		fetchErrors.Add(1)
		lgr.Printf("[WARN] fetch %s failed, status %d: %v", r.Request.URL, r.StatusCode, err)
	})

	c.OnResponse(func(r *colly.Response) {
		responses.Add(1)
		if ct := strings.ToLower(r.Headers.Get("Content-Type")); ct != "" && !strings.Contains(ct, "html") {
			skipped.Add(1)
			lgr.Printf("[DEBUG] skip %s, content type %s", r.Request.URL, ct)
			return
		}

		pageURL := r.Request.URL.String()
		page := domain.NewPage(pageURL, src.Name, r.Body)
		if e.feeds != nil {
			page.Feed = e.feeds.Lookup(pageURL)
		}

		res, err := e.handler.Handle(ctx, page)
		if err != nil {
			handleErrors.Add(1)
			lgr.Printf("[WARN] %v", err)
		}
		for _, link := range res.Links {
			if err := r.Request.Visit(link); err != nil {
				lgr.Printf("[DEBUG] not following %s: %v", link, err)
			}
		}
	})

	seeds := e.handler.Frontier(src.Name).Seed(src.StartURLs...)
	lgr.Printf("[INFO] crawling %s from %d start urls, max depth %d", src.Name, len(seeds), e.cfg.MaxDepth)
	for _, u := range seeds {
		if err := c.Visit(u); err != nil {
			lgr.Printf("[WARN] can't visit start url %s: %v", u, err)
		}
	}
	c.Wait()

	rep := Report{
		Source:       src.Name,
		Requests:     requests.Load(),
		Responses:    responses.Load(),
		FetchErrors:  fetchErrors.Load(),
		HandleErrors: handleErrors.Load(),
		Skipped:      skipped.Load(),
	}
	lgr.Printf("[INFO] crawl of %s done, %d requests, %d responses, %d fetch errors",
		src.Name, rep.Requests, rep.Responses, rep.FetchErrors)
	return rep, ctx.Err()
}

func (e *Engine) collector(ctx context.Context) (*colly.Collector, error) {
	opts := []colly.CollectorOption{
		colly.StdlibContext(ctx),
		colly.Async(true),
		colly.UserAgent(e.cfg.UserAgent),
		colly.MaxDepth(e.cfg.MaxDepth),
		colly.AllowURLRevisit(), // the frontier owns the visited set
	}
	if e.cfg.MaxBodySize > 0 {
		opts = append(opts, colly.MaxBodySize(e.cfg.MaxBodySize))
	}

	c := colly.NewCollector(opts...)
	c.IgnoreRobotsTxt = !e.cfg.RespectRobots
	c.SetRequestTimeout(e.cfg.RequestTimeout)
	if err := c.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: e.cfg.Parallelism,
		Delay:       e.cfg.Delay,
	}); err != nil {
		return nil, err
	}
	return c, nil
}
