package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/go-pkgz/lgr"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/umputun/newscrawl/pkg/config"
	"github.com/umputun/newscrawl/pkg/crawl"
	"github.com/umputun/newscrawl/pkg/domain"
	"github.com/umputun/newscrawl/pkg/feed"
	"github.com/umputun/newscrawl/pkg/fingerprint"
	"github.com/umputun/newscrawl/pkg/metrics"
	"github.com/umputun/newscrawl/pkg/pipeline"
	"github.com/umputun/newscrawl/pkg/sink"
	"github.com/umputun/newscrawl/pkg/summary"
	"github.com/umputun/newscrawl/server"
)

// run loads the config, crawls the selected sources and prints the summary to out
func run(ctx context.Context, opts Opts, out io.Writer) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if secrets := cfg.Sink.Settings.Secrets(); len(secrets) > 0 {
		setupLog(opts.Debug, secrets...)
	}
	sources, err := selectSources(cfg, opts.Sources)
	if err != nil {
		return err
	}

	if opts.DryRun {
		return printConfig(out, cfg, sources)
	}

	classifiers, err := cfg.Classifiers()
	if err != nil {
		return fmt.Errorf("failed to build classifiers: %w", err)
	}

	runID := uuid.NewString()
	settings := cfg.Sink.Settings
	if _, ok := settings["run_id"]; !ok {
		settings = settings.Merge(sink.Settings{"run_id": runID})
	}
	snk, sinkName, err := sink.NewRegistry().New(cfg.Sink.Backend, settings)
	if err != nil {
		return fmt.Errorf("failed to make sink: %w", err)
	}
	dispatcher := sink.NewDispatcher(sinkName, snk)
	if err := dispatcher.Start(ctx); err != nil {
		return fmt.Errorf("failed to start sink: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := dispatcher.Stop(stopCtx); err != nil {
			lgr.Printf("[WARN] %v", err)
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	pipe := pipeline.New(classifiers, nil, dispatcher, pipeline.Config{
		MinArticleTextLength: cfg.Pipeline.MinArticleTextLength,
		SummaryMaxChars:      cfg.Pipeline.SummaryMaxChars,
		SummarySentences:     cfg.Pipeline.SummarySentences,
		SummaryMethod:        summary.Method(cfg.Pipeline.SummaryMethod),
		MaxFollowPerPage:     cfg.Pipeline.MaxFollowPerPage,
		TrackingParams:       cfg.Pipeline.TrackingParams,
		Recorder:             metrics.New(reg),
	})

	var srvDone chan error
	srvCtx, srvCancel := context.WithCancel(ctx)
	defer srvCancel()
	if cfg.Server.Enabled {
		var items server.ItemStore
		if sq, ok := snk.(*sink.SQLite); ok && sq.Repositories() != nil {
			items = sq.Repositories().News
		}
		srv := server.New(server.Config{
			Listen:  cfg.Server.Listen,
			Timeout: cfg.Server.Timeout,
			Version: revision,
			Debug:   opts.Debug,
			RunID:   runID,
			Sink:    sinkName,
			Sources: sourceNames(sources),
		}, pipe, items, reg)
		srvDone = make(chan error, 1)
		go func() { srvDone <- srv.Run(srvCtx) }()
	}

	lgr.Printf("[INFO] run %s: %d sources, sink %s", runID, len(sources), sinkName)
	started := time.Now()
	reports := crawlSources(ctx, cfg, pipe, sources)
	printSummary(out, runID, time.Since(started), reports, pipe.Stats(), dispatcher)

	if srvDone != nil {
		if ctx.Err() == nil {
			lgr.Printf("[INFO] crawl finished, serving status on %s until interrupted", cfg.Server.Listen)
		}
		select {
		case err := <-srvDone:
			if err != nil {
				return fmt.Errorf("server failed: %w", err)
			}
		case <-ctx.Done():
			srvCancel()
			if err := <-srvDone; err != nil {
				return fmt.Errorf("server failed: %w", err)
			}
		}
	}
	return ctx.Err()
}

// crawlSources reads feeds and crawls each source, up to Crawl.Concurrency sources at once.
// A failed source is logged and does not stop the others.
func crawlSources(ctx context.Context, cfg *config.Config, pipe *pipeline.Pipeline, sources []config.SourceConfig) []crawl.Report {
	index := feed.NewIndex(fingerprint.NewCanonicalizer(cfg.Pipeline.TrackingParams))
	parser := feed.NewParser(cfg.Crawl.FeedTimeout, cfg.Crawl.UserAgent)
	engine := crawl.New(crawl.Config{
		UserAgent:      cfg.Crawl.UserAgent,
		MaxDepth:       cfg.Crawl.MaxDepth,
		Parallelism:    cfg.Crawl.Parallelism,
		Delay:          cfg.Crawl.Delay,
		RequestTimeout: cfg.Crawl.RequestTimeout,
		RespectRobots:  cfg.Crawl.RespectRobots,
		MaxBodySize:    cfg.Crawl.MaxBodySize,
	}, pipe, index)

	var mu sync.Mutex
	reports := make([]crawl.Report, 0, len(sources))

	var g errgroup.Group
	g.SetLimit(cfg.Crawl.Concurrency)
	for _, src := range sources {
		g.Go(func() error {
			// feed entries seed the crawl ahead of the configured start pages
			starts := index.Load(ctx, parser, src.Feeds, cfg.Crawl.FeedWorkers)
			starts = append(starts, src.StartURLs...)
			rep, err := engine.Run(ctx, crawl.Source{Name: src.Name, StartURLs: starts})
			if err != nil && !errors.Is(err, context.Canceled) {
				lgr.Printf("[WARN] crawl of %s failed: %v", src.Name, err)
			}
			mu.Lock()
			reports = append(reports, rep)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(reports, func(i, j int) bool { return reports[i].Source < reports[j].Source })
	return reports
}

// loadConfig reads the config file (or defaults) and applies CLI overrides
func loadConfig(opts Opts) (*config.Config, error) {
	cfg := config.Default()
	if opts.Config != "" {
		var err error
		if cfg, err = config.Load(opts.Config); err != nil {
			return nil, err
		}
	}

	if opts.Sink != "" {
		cfg.Sink.Backend = opts.Sink
	}
	if len(opts.SinkSettings) > 0 {
		cfg.Sink.Settings = cfg.Sink.Settings.Merge(opts.SinkSettings)
	}
	if opts.Listen != "" {
		cfg.Server.Enabled = true
		cfg.Server.Listen = opts.Listen
	}

	if len(opts.StartURLs) > 0 {
		if len(opts.Sources) != 1 {
			return nil, errors.New("--start-urls requires exactly one --source")
		}
		name := opts.Sources[0]
		idx := slices.IndexFunc(cfg.Sources, func(s config.SourceConfig) bool { return strings.EqualFold(s.Name, name) })
		if idx < 0 {
			// ad-hoc source, links are kept on the start urls' sites
			cfg.Sources = append(cfg.Sources, config.SourceConfig{Name: name, AllowedDomains: hosts(opts.StartURLs)})
			idx = len(cfg.Sources) - 1
		}
		cfg.Sources[idx].StartURLs = opts.StartURLs
		cfg.Sources[idx].Feeds = nil
	}
	return cfg, nil
}

// selectSources returns the named sources in the given order, all configured sources if names is empty
func selectSources(cfg *config.Config, names []string) ([]config.SourceConfig, error) {
	if len(names) == 0 {
		if len(cfg.Sources) == 0 {
			return nil, errors.New("no sources configured")
		}
		return cfg.Sources, nil
	}
	res := make([]config.SourceConfig, 0, len(names))
	seen := map[string]bool{}
	for _, name := range names {
		src, ok := cfg.Source(name)
		if !ok {
			return nil, fmt.Errorf("unknown source %q, known: %s", name, strings.Join(cfg.SourceNames(), ", "))
		}
		if seen[src.Name] {
			continue
		}
		seen[src.Name] = true
		if len(src.StartURLs) == 0 && len(src.Feeds) == 0 {
			return nil, fmt.Errorf("source %q has neither start urls nor feeds", src.Name)
		}
		res = append(res, src)
	}
	return res, nil
}

// printConfig writes the resolved config as YAML, secrets masked
func printConfig(out io.Writer, cfg *config.Config, sources []config.SourceConfig) error {
	resolved := *cfg
	resolved.Sources = sources
	resolved.Sink.Settings = maskSecrets(cfg.Sink.Settings)
	data, err := yaml.Marshal(&resolved)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	_, err = out.Write(data)
	return err
}

func maskSecrets(settings sink.Settings) sink.Settings {
	secrets := settings.Secrets()
	res := make(sink.Settings, len(settings))
	for k, v := range settings {
		if slices.Contains(secrets, fmt.Sprint(v)) {
			res[k] = "****"
			continue
		}
		res[k] = v
	}
	return res
}

// printSummary writes the end-of-run table
func printSummary(out io.Writer, runID string, elapsed time.Duration, reports []crawl.Report, st pipeline.Stats, d *sink.Dispatcher) {
	head := color.New(color.FgCyan, color.Bold)
	good := color.New(color.FgGreen)
	bad := color.New(color.FgRed)

	_, _ = head.Fprintf(out, "\nrun %s finished in %s\n", runID, elapsed.Truncate(time.Millisecond))
	_, _ = fmt.Fprintf(out, "%-16s %9s %9s %9s %9s\n", "source", "requests", "responses", "errors", "skipped")
	for _, r := range reports {
		_, _ = fmt.Fprintf(out, "%-16s %9d %9d %9d %9d\n", r.Source, r.Requests, r.Responses, r.FetchErrors, r.Skipped)
	}

	sent, failed := d.Stats()
	_, _ = fmt.Fprintf(out, "pages: %d, dropped: %d, items: %d, links enqueued: %d\n", st.Pages, st.Dropped, st.Items, st.Enqueued)
	printCount(out, "parse failures", st.ParseFailures, bad, good)
	_, _ = fmt.Fprint(out, "methods:")
	for _, m := range []domain.ExtractionMethod{domain.MethodFeed, domain.MethodExtractor, domain.MethodHTMLFallback} {
		_, _ = fmt.Fprintf(out, " %s=%d", m, st.Methods[m])
	}
	_, _ = fmt.Fprintln(out)
	_, _ = good.Fprintf(out, "sent to %s: %d\n", d.Name(), sent)
	printCount(out, "failed", failed, bad, good)
}

func printCount(out io.Writer, label string, n int64, bad, good *color.Color) {
	c := good
	if n > 0 {
		c = bad
	}
	_, _ = c.Fprintf(out, "%s: %d\n", label, n)
}

func sourceNames(sources []config.SourceConfig) []string {
	res := make([]string, 0, len(sources))
	for _, s := range sources {
		res = append(res, s.Name)
	}
	return res
}

// hosts returns unique hostnames of urls, without the www. prefix
func hosts(urls []string) []string {
	var res []string
	for _, u := range urls {
		parsed, err := url.Parse(u)
		if err != nil || parsed.Hostname() == "" {
			continue
		}
		h := strings.TrimPrefix(strings.ToLower(parsed.Hostname()), "www.")
		if !slices.Contains(res, h) {
			res = append(res, h)
		}
	}
	return res
}
