package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/umputun/newscrawl/pkg/classify"
	"github.com/umputun/newscrawl/pkg/sink"
	"github.com/umputun/newscrawl/pkg/summary"
)

//go:generate go run ../../cmd/schema/main.go schema.json

// Config holds the application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server" json:"server" jsonschema:"description=Status server configuration"`
	Crawl    CrawlConfig    `yaml:"crawl" json:"crawl" jsonschema:"description=Crawl engine configuration"`
	Pipeline PipelineConfig `yaml:"pipeline" json:"pipeline" jsonschema:"description=Page processing configuration"`
	Sink     SinkConfig     `yaml:"sink" json:"sink" jsonschema:"description=Output backend configuration"`
	Sources  []SourceConfig `yaml:"sources" json:"sources" jsonschema:"description=News sources to crawl"`
}

// ServerConfig holds status server settings
type ServerConfig struct {
	Enabled bool          `yaml:"enabled" json:"enabled" jsonschema:"default=false,description=Run the status and metrics server"`
	Listen  string        `yaml:"listen" json:"listen" jsonschema:"default=:8080,description=HTTP server listen address"`
	Timeout time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=30s,description=HTTP server timeout"`
}

// CrawlConfig holds crawl engine settings
type CrawlConfig struct {
	UserAgent      string        `yaml:"user_agent" json:"user_agent" jsonschema:"default=Mozilla/5.0 (compatible; newscrawl/1.0),description=User agent for HTTP requests"`
	MaxDepth       int           `yaml:"max_depth" json:"max_depth" jsonschema:"default=2,minimum=1,description=Maximum link depth from start urls"`
	Parallelism    int           `yaml:"parallelism" json:"parallelism" jsonschema:"default=2,minimum=1,description=Concurrent requests per domain"`
	Delay          time.Duration `yaml:"delay" json:"delay" jsonschema:"default=0s,description=Delay between requests to the same domain"`
	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout" jsonschema:"default=30s,description=Request timeout"`
	RespectRobots  bool          `yaml:"respect_robots" json:"respect_robots" jsonschema:"default=false,description=Obey robots.txt"`
	MaxBodySize    int           `yaml:"max_body_size" json:"max_body_size" jsonschema:"default=0,description=Maximum response body size in bytes (0 keeps the collector default)"`
	Concurrency    int           `yaml:"concurrency" json:"concurrency" jsonschema:"default=4,minimum=1,description=Sources crawled in parallel"`
	FeedWorkers    int           `yaml:"feed_workers" json:"feed_workers" jsonschema:"default=4,minimum=1,description=Feeds fetched in parallel"`
	FeedTimeout    time.Duration `yaml:"feed_timeout" json:"feed_timeout" jsonschema:"default=30s,description=Feed fetch timeout"`
}

// PipelineConfig holds page processing settings
type PipelineConfig struct {
	MinArticleTextLength int      `yaml:"min_article_text_length" json:"min_article_text_length" jsonschema:"default=200,minimum=0,description=Text shorter than this is dropped as low quality"`
	SummaryMaxChars      int      `yaml:"summary_max_chars" json:"summary_max_chars" jsonschema:"default=512,minimum=1,description=Maximum summary length in characters"`
	SummarySentences     int      `yaml:"summary_sentences" json:"summary_sentences" jsonschema:"default=5,minimum=1,description=Sentences picked for a summary"`
	SummaryMethod        string   `yaml:"summary_method" json:"summary_method" jsonschema:"default=nlp,enum=nlp,enum=lead,description=Summary method"`
	MaxFollowPerPage     int      `yaml:"max_follow_per_page" json:"max_follow_per_page" jsonschema:"default=100,minimum=1,description=Maximum links enqueued from one page"`
	TrackingParams       []string `yaml:"tracking_params" json:"tracking_params" jsonschema:"description=Query params removed before hashing urls (prefix* wildcards allowed)"`
}

// SinkConfig selects the output backend
type SinkConfig struct {
	Backend  string        `yaml:"backend" json:"backend" jsonschema:"default=jsonl,description=Backend identifier or class path"`
	Settings sink.Settings `yaml:"settings" json:"settings" jsonschema:"description=Backend settings as mapping or k=v string"`
}

// SourceConfig describes one news source
type SourceConfig struct {
	Name            string   `yaml:"name" json:"name" jsonschema:"required,description=Source tag stored with items"`
	StartURLs       []string `yaml:"start_urls" json:"start_urls" jsonschema:"description=Crawl entry points"`
	Feeds           []string `yaml:"feeds" json:"feeds" jsonschema:"description=RSS/Atom feeds seeding the crawl"`
	AllowedDomains  []string `yaml:"allowed_domains" json:"allowed_domains" jsonschema:"description=Domains the source may crawl"`
	ArticlePatterns []string `yaml:"article_patterns" json:"article_patterns" jsonschema:"description=Regexps of article urls replacing default heuristics"`
	RejectPatterns  []string `yaml:"reject_patterns" json:"reject_patterns" jsonschema:"description=Regexps of urls never treated as articles"`
	PageSelectors   []string `yaml:"page_selectors" json:"page_selectors" jsonschema:"description=CSS selectors marking article pages"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // file path comes from CLI flag
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// expand environment variables
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.SetDefaults()

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	// verify against embedded schema
	if err := VerifyAgainstEmbeddedSchema(&cfg); err != nil {
		// log warning but don't fail - schema validation is supplementary
		fmt.Printf("warning: schema validation failed: %v\n", err)
	}

	return &cfg, nil
}

// Default returns a config with all defaults set and no sources
func Default() *Config {
	cfg := &Config{}
	cfg.SetDefaults()
	return cfg
}

// SetDefaults fills unset values
func (c *Config) SetDefaults() {
	// server
	if c.Server.Listen == "" {
		c.Server.Listen = ":8080"
	}
	if c.Server.Timeout == 0 {
		c.Server.Timeout = 30 * time.Second
	}

	// crawl
	if c.Crawl.UserAgent == "" {
		c.Crawl.UserAgent = "Mozilla/5.0 (compatible; newscrawl/1.0)"
	}
	if c.Crawl.MaxDepth == 0 {
		c.Crawl.MaxDepth = 2
	}
	if c.Crawl.Parallelism == 0 {
		c.Crawl.Parallelism = 2
	}
	if c.Crawl.RequestTimeout == 0 {
		c.Crawl.RequestTimeout = 30 * time.Second
	}
	if c.Crawl.Concurrency == 0 {
		c.Crawl.Concurrency = 4
	}
	if c.Crawl.FeedWorkers == 0 {
		c.Crawl.FeedWorkers = 4
	}
	if c.Crawl.FeedTimeout == 0 {
		c.Crawl.FeedTimeout = 30 * time.Second
	}

	// pipeline
	if c.Pipeline.MinArticleTextLength == 0 {
		c.Pipeline.MinArticleTextLength = 200
	}
	if c.Pipeline.SummaryMaxChars == 0 {
		c.Pipeline.SummaryMaxChars = summary.DefaultMaxChars
	}
	if c.Pipeline.SummarySentences == 0 {
		c.Pipeline.SummarySentences = summary.DefaultSentences
	}
	if c.Pipeline.SummaryMethod == "" {
		c.Pipeline.SummaryMethod = string(summary.MethodNLP)
	}
	if c.Pipeline.MaxFollowPerPage == 0 {
		c.Pipeline.MaxFollowPerPage = 100
	}

	// sink
	if c.Sink.Backend == "" {
		c.Sink.Backend = "jsonl"
	}
	if c.Sink.Settings == nil {
		c.Sink.Settings = sink.Settings{}
	}
}

// validate checks configuration for correctness
func validate(cfg *Config) error {
	if cfg.Server.Enabled && cfg.Server.Timeout < time.Second {
		return fmt.Errorf("server timeout must be at least 1 second")
	}

	if cfg.Crawl.MaxDepth < 1 {
		return fmt.Errorf("crawl.max_depth must be at least 1")
	}
	if cfg.Crawl.Parallelism < 1 || cfg.Crawl.Concurrency < 1 || cfg.Crawl.FeedWorkers < 1 {
		return fmt.Errorf("crawl parallelism, concurrency and feed_workers must be positive")
	}
	if cfg.Crawl.Delay < 0 {
		return fmt.Errorf("crawl.delay must be non-negative")
	}

	if cfg.Pipeline.MinArticleTextLength < 0 {
		return fmt.Errorf("pipeline.min_article_text_length must be non-negative")
	}
	if cfg.Pipeline.SummaryMaxChars < 1 {
		return fmt.Errorf("pipeline.summary_max_chars must be positive")
	}
	if cfg.Pipeline.SummarySentences < 1 {
		return fmt.Errorf("pipeline.summary_sentences must be positive")
	}
	switch summary.Method(cfg.Pipeline.SummaryMethod) {
	case summary.MethodNLP, summary.MethodLead:
	default:
		return fmt.Errorf("pipeline.summary_method must be nlp or lead, got %q", cfg.Pipeline.SummaryMethod)
	}
	if cfg.Pipeline.MaxFollowPerPage < 1 {
		return fmt.Errorf("pipeline.max_follow_per_page must be positive")
	}

	seen := map[string]bool{}
	for i, src := range cfg.Sources {
		name := strings.ToLower(strings.TrimSpace(src.Name))
		if name == "" {
			return fmt.Errorf("sources[%d].name is required", i)
		}
		if seen[name] {
			return fmt.Errorf("duplicate source %q", src.Name)
		}
		seen[name] = true
		if _, err := classify.New(src.Rules()); err != nil {
			return fmt.Errorf("source %s: %w", src.Name, err)
		}
	}
	return nil
}

// Source returns the source with the given name, case-insensitive
func (c *Config) Source(name string) (SourceConfig, bool) {
	for _, src := range c.Sources {
		if strings.EqualFold(src.Name, name) {
			return src, true
		}
	}
	return SourceConfig{}, false
}

// SourceNames returns the names of configured sources
func (c *Config) SourceNames() []string {
	res := make([]string, 0, len(c.Sources))
	for _, src := range c.Sources {
		res = append(res, src.Name)
	}
	return res
}

// Rules returns the classifier rules of the source
func (s SourceConfig) Rules() classify.Rules {
	return classify.Rules{
		AllowedDomains:  s.AllowedDomains,
		ArticlePatterns: s.ArticlePatterns,
		RejectPatterns:  s.RejectPatterns,
		PageSelectors:   s.PageSelectors,
	}
}

// Classifiers builds a classifier per source with the default one as fallback
func (c *Config) Classifiers() (*classify.Set, error) {
	set := classify.NewSet(nil)
	for _, src := range c.Sources {
		cl, err := classify.New(src.Rules())
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", src.Name, err)
		}
		set.Add(src.Name, cl)
	}
	return set, nil
}
