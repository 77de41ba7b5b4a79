package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umputun/newscrawl/pkg/classify"
	"github.com/umputun/newscrawl/pkg/domain"
	"github.com/umputun/newscrawl/pkg/extract"
	"github.com/umputun/newscrawl/pkg/fingerprint"
	"github.com/umputun/newscrawl/pkg/frontier"
	"github.com/umputun/newscrawl/pkg/text"
)

var articleBody = strings.Repeat("The city council approved the new transit plan on Tuesday after a long debate. ", 5)

const articlePage = `<html><head><title>Transit plan approved</title>
<script type="application/ld+json">{"@context":"https://schema.org","@type":"NewsArticle",
"headline":"Transit plan  approved","author":{"@type":"Person","name":"Jane Doe"},
"datePublished":"2026-01-29T08:00:00Z","articleBody":"%s"}</script>
</head><body><article><h1>Transit plan approved</h1><p>%s</p></article>
<a href="/2026/01/29/second-story">next</a>
<a href="https://example.com/2026/01/28/third-story?utm_source=x">third</a>
<a href="/2026/01/28/third-story">third again</a>
<a href="/video/clip">video</a>
<a href="https://other.com/2026/01/29/offsite-story">offsite</a>
<a href="/2026/01/29/story">self</a>
</body></html>`

type mockDispatcher struct {
	mu    sync.Mutex
	items []domain.NewsItem
	err   error
}

func (m *mockDispatcher) Dispatch(_ context.Context, item *domain.NewsItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.items = append(m.items, *item)
	return nil
}

type stubExtractor struct{ out extract.Outcome }

func (s stubExtractor) Extract(*domain.Page) extract.Outcome { return s.out }

func fixedNow(p *Pipeline) {
	p.now = func() time.Time { return time.Date(2026, 1, 29, 10, 0, 0, 0, time.FixedZone("EST", -5*3600)) }
}

func TestPipeline_HandleArticle(t *testing.T) {
	disp := &mockDispatcher{}
	p := New(nil, nil, disp, Config{})
	fixedNow(p)

	page := domain.NewPage("https://example.com/2026/01/29/story", "example",
		[]byte(fmt.Sprintf(articlePage, articleBody, articleBody)))
	res, err := p.Handle(context.Background(), page)
	require.NoError(t, err)

	assert.Equal(t, domain.StageDispatched, res.Stage)
	assert.Equal(t, []string{
		"https://example.com/2026/01/29/second-story",
		"https://example.com/2026/01/28/third-story?utm_source=x",
	}, res.Links)

	require.Len(t, disp.items, 1)
	item := disp.items[0]
	assert.Equal(t, *res.Item, item)
	assert.Equal(t, "Transit plan approved", item.Title)
	assert.Equal(t, "Jane Doe", item.Author)
	assert.Equal(t, domain.AuthorFromFeed, item.AuthorSource)
	assert.Equal(t, domain.MethodFeed, item.ExtractionMethod)
	assert.Equal(t, "2026-01-29T08:00:00Z", item.PublishedAt)
	assert.Equal(t, "2026-01-29T15:00:00Z", item.ScrapedAt)
	assert.Equal(t, strings.TrimSpace(articleBody), item.Text)
	assert.Equal(t, utf8.RuneCountInString(item.Text), item.ContentLengthChars)
	assert.True(t, item.ParseOK)
	assert.Empty(t, item.ParseError)
	assert.Equal(t, 512, item.SummaryMaxChars)
	assert.NotEmpty(t, item.Summary)
	assert.False(t, item.SummaryTruncated)
	assert.Equal(t, fingerprint.NewCanonicalizer(nil).URLHash(page.URL), item.URLHash)
	assert.Len(t, item.URLHash, 64)
	assert.Equal(t, fingerprint.Content(item.Title, item.Text, item.PublishedAt, "example"), item.Fingerprint)
	assert.Empty(t, item.Category)
	assert.Empty(t, item.Sentiment)

	st := p.Stats()
	assert.Equal(t, int64(1), st.Pages)
	assert.Equal(t, int64(1), st.Items)
	assert.Equal(t, int64(1), st.Dispatched)
	assert.Equal(t, int64(2), st.Enqueued)
	assert.Equal(t, int64(1), st.Methods[domain.MethodFeed])
	assert.Equal(t, int64(0), st.Methods[domain.MethodExtractor])
}

func TestPipeline_HandleDropped(t *testing.T) {
	disp := &mockDispatcher{}
	p := New(nil, nil, disp, Config{})

	body := `<html><body><h2>Videos</h2>
	<a href="/2026/01/29/first-story">a</a><a href="/2026/01/29/second-story">b</a><a href="/about">c</a>
	</body></html>`
	res, err := p.Handle(context.Background(), domain.NewPage("https://example.com/video/clips", "example", []byte(body)))
	require.NoError(t, err)
	assert.Equal(t, domain.StageDropped, res.Stage)
	assert.Nil(t, res.Item)
	assert.Len(t, res.Links, 2, "links of dropped pages are still followed")
	assert.Empty(t, disp.items)

	// article url without article markup is dropped too
	res, err = p.Handle(context.Background(), domain.NewPage("https://example.com/2026/01/29/first-story", "example",
		[]byte(`<html><body><p>just a list</p></body></html>`)))
	require.NoError(t, err)
	assert.Equal(t, domain.StageDropped, res.Stage)

	st := p.Stats()
	assert.Equal(t, int64(2), st.Pages)
	assert.Equal(t, int64(2), st.Dropped)
	assert.Equal(t, int64(0), st.Items)
}

func TestPipeline_HandleDateArchive(t *testing.T) {
	disp := &mockDispatcher{}
	p := New(nil, nil, disp, Config{})

	var b strings.Builder
	b.WriteString(`<html><head><title>January 29, 2026</title></head><body><h1>January 29, 2026</h1>`)
	for i := 1; i <= 5; i++ {
		fmt.Fprintf(&b, `<article class="card"><h2><a href="/2026/01/29/story-number-%d">Story %d</a></h2>`+
			`<p>A teaser paragraph long enough to look like article text for story %d.</p></article>`, i, i, i)
	}
	b.WriteString(`</body></html>`)

	for _, u := range []string{"https://example.com/2026/01/29/", "https://example.com/2026/01/29", "https://example.com/2026/01/index.html"} {
		res, err := p.Handle(context.Background(), domain.NewPage(u, "example", []byte(b.String())))
		require.NoError(t, err)
		assert.Equal(t, domain.StageDropped, res.Stage, u)
		assert.Nil(t, res.Item, u)
	}
	assert.Empty(t, disp.items, "archive pages are never emitted")
	assert.Equal(t, int64(3), p.Stats().Dropped)
	assert.Equal(t, int64(5), p.Stats().Enqueued, "cards of the archive are followed once")
}

func TestPipeline_HandleDispatchError(t *testing.T) {
	disp := &mockDispatcher{err: errors.New("backend down")}
	p := New(nil, nil, disp, Config{})

	page := domain.NewPage("https://example.com/2026/01/29/story", "example",
		[]byte(fmt.Sprintf(articlePage, articleBody, articleBody)))
	res, err := p.Handle(context.Background(), page)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backend down")
	assert.Equal(t, domain.StageAssembled, res.Stage)
	require.NotNil(t, res.Item)
	assert.True(t, res.Item.ParseOK)
	assert.Equal(t, int64(1), p.Stats().DispatchErrors)
	assert.Equal(t, int64(0), p.Stats().Dispatched)
}

func TestPipeline_HandleNoDispatcher(t *testing.T) {
	p := New(nil, nil, nil, Config{})
	page := domain.NewPage("https://example.com/2026/01/29/story", "example",
		[]byte(fmt.Sprintf(articlePage, articleBody, articleBody)))
	res, err := p.Handle(context.Background(), page)
	require.NoError(t, err)
	assert.Equal(t, domain.StageAssembled, res.Stage)

	_, err = p.Handle(context.Background(), nil)
	assert.Error(t, err)
}

func TestPipeline_ProcessTotalFailure(t *testing.T) {
	p := New(nil, extract.NewCascade(), nil, Config{})
	fixedNow(p)

	item := p.Process(domain.NewPage("https://example.com/2026/01/29/story", "cnn", nil))
	assert.False(t, item.ParseOK)
	assert.NotEmpty(t, item.ParseError)
	assert.LessOrEqual(t, utf8.RuneCountInString(item.ParseError), domain.MaxParseErrorLen)
	assert.Equal(t, "https://example.com/2026/01/29/story", item.URL)
	assert.Equal(t, "cnn", item.Source)
	assert.Equal(t, "2026-01-29T15:00:00Z", item.ScrapedAt)
	assert.Empty(t, item.ExtractionMethod)
	assert.Equal(t, domain.AuthorMissing, item.AuthorSource)
	assert.Empty(t, item.Text)
	assert.Zero(t, item.ContentLengthChars)
	assert.Len(t, item.URLHash, 64)
	assert.Equal(t, fingerprint.Content("", "", "", "cnn"), item.Fingerprint)
	assert.Equal(t, int64(1), p.Stats().ParseFailures)
}

func TestPipeline_ProcessFailingStrategies(t *testing.T) {
	p := New(nil, nil, nil, Config{})
	item := p.Process(domain.NewPage("https://example.com/2026/01/29/story", "cnn", []byte("<html><body></body></html>")))
	assert.False(t, item.ParseOK)
	assert.True(t, strings.HasPrefix(item.ParseError, "feed: "), item.ParseError)
}

func TestPipeline_QualityGate(t *testing.T) {
	const minLen = 50
	below := strings.Repeat("a", minLen-2) + ".\n"
	exact := "  " + strings.Repeat("b", minLen-1) + "."

	tests := []struct {
		name    string
		text    string
		want    string
		summary bool
	}{
		{"below threshold", below, "", true},
		{"at threshold", exact, strings.TrimSpace(exact), true},
		{"empty", "", "", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ext := stubExtractor{out: extract.Outcome{
				Result: &extract.Result{Title: "Title", Text: tc.text, AuthorSource: domain.AuthorFromExtractor},
				Method: domain.MethodExtractor, OK: true,
			}}
			p := New(nil, ext, nil, Config{MinArticleTextLength: minLen})
			item := p.Process(domain.NewPage("https://example.com/a", "s", []byte("<p>x</p>")))
			assert.Equal(t, tc.want, item.Text)
			assert.Equal(t, text.Len(tc.want), item.ContentLengthChars)
			assert.Equal(t, tc.summary, item.Summary != "", "summary is kept for short text")
			assert.Equal(t, domain.AuthorMissing, item.AuthorSource, "no authors")
			assert.Equal(t, fingerprint.Content("Title", tc.want, "", "s"), item.Fingerprint)
		})
	}
}

func TestPipeline_ProcessSummary(t *testing.T) {
	ext := stubExtractor{out: extract.Outcome{
		Result: &extract.Result{
			Title:        "Bridge reopens",
			Text:         strings.Repeat("The old bridge reopened to traffic this morning after repairs. ", 10),
			Authors:      []string{" By Ann Lee ", "ann lee", "Bob\tStone"},
			AuthorSource: domain.AuthorFromExtractor,
			Published:    time.Date(2026, 1, 29, 0, 0, 0, 0, time.UTC),
		},
		Method: domain.MethodExtractor, OK: true,
	}}
	p := New(nil, ext, nil, Config{SummaryMaxChars: 40, MinArticleTextLength: 10})
	item := p.Process(domain.NewPage("https://example.com/a", "s", nil))

	assert.Equal(t, "Ann Lee, Bob Stone", item.Author)
	assert.Equal(t, domain.AuthorFromExtractor, item.AuthorSource)
	assert.Equal(t, "2026-01-29T00:00:00Z", item.PublishedAt)
	assert.Equal(t, 40, item.SummaryMaxChars)
	assert.True(t, item.SummaryTruncated)
	assert.LessOrEqual(t, utf8.RuneCountInString(item.Summary), 40)
	assert.True(t, strings.HasSuffix(item.Summary, "…"))
	assert.Equal(t, int64(1), p.Stats().Methods[domain.MethodExtractor])
}

func TestPipeline_FrontierPerSource(t *testing.T) {
	set := classify.NewSet(nil)
	scoped, err := classify.New(classify.Rules{AllowedDomains: []string{"example.com", "example.org"}})
	require.NoError(t, err)
	set.Add("scoped", scoped)
	p := New(set, nil, nil, Config{})

	assert.Same(t, p.Frontier("a"), p.Frontier("A"))
	assert.NotSame(t, p.Frontier("a"), p.Frontier("b"))

	assert.Equal(t, []string{"https://example.com/x"}, p.Frontier("a").Seed("https://example.com/x"))
	assert.True(t, p.Frontier("b").Visit("https://example.com/x"), "sources have separate visited sets")

	links := []string{"https://example.org/2026/01/29/cross-story"}
	plan := p.Frontier("scoped").Plan("https://example.com/2026/01/29/story", links, scoped.IsArticleURL)
	assert.Len(t, plan.Enqueued, 1, "allowed domains lift the same-site restriction")
	plan = p.Frontier("a").Plan("https://example.com/2026/01/29/story", links, nil)
	assert.Empty(t, plan.Enqueued)
}

func TestPipeline_ConcurrentHandle(t *testing.T) {
	disp := &mockDispatcher{}
	p := New(nil, nil, disp, Config{MaxFollowPerPage: 3})

	var links strings.Builder
	for i := range 20 {
		fmt.Fprintf(&links, `<a href="/2026/01/29/story-number-%d">s</a>`, i)
	}
	body := []byte(fmt.Sprintf(articlePage, articleBody, articleBody+links.String()))

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		enqueued = map[string]int{}
	)
	for i := range 10 {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			page := domain.NewPage(fmt.Sprintf("https://example.com/2026/01/30/page-%d", n), "example", body)
			res, err := p.Handle(context.Background(), page)
			assert.NoError(t, err)
			assert.LessOrEqual(t, len(res.Links), 3)
			mu.Lock()
			for _, l := range res.Links {
				enqueued[l]++
			}
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	for l, n := range enqueued {
		assert.Equal(t, 1, n, "link %s enqueued more than once", l)
	}
	assert.Len(t, disp.items, 10)
	assert.Equal(t, int64(len(enqueued)), p.Stats().Enqueued)
}

type mockRecorder struct {
	mu         sync.Mutex
	stages     []domain.Stage
	items      int
	dispatched []error
	plans      []frontier.Plan
}

func (m *mockRecorder) PageHandled(_ string, stage domain.Stage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stages = append(m.stages, stage)
}

func (m *mockRecorder) ItemAssembled(*domain.NewsItem) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items++
}

func (m *mockRecorder) ItemDispatched(_ string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dispatched = append(m.dispatched, err)
}

func (m *mockRecorder) LinksPlanned(_ string, plan frontier.Plan) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.plans = append(m.plans, plan)
}

func TestPipeline_Recorder(t *testing.T) {
	rec := &mockRecorder{}
	p := New(nil, nil, &mockDispatcher{}, Config{Recorder: rec})

	page := domain.NewPage("https://example.com/2026/01/29/story", "example",
		[]byte(fmt.Sprintf(articlePage, articleBody, articleBody)))
	_, err := p.Handle(context.Background(), page)
	require.NoError(t, err)
	_, err = p.Handle(context.Background(), domain.NewPage("https://example.com/tag/x", "example", []byte("<p>x</p>")))
	require.NoError(t, err)

	assert.Equal(t, []domain.Stage{domain.StageDispatched, domain.StageDropped}, rec.stages)
	assert.Equal(t, 1, rec.items)
	assert.Equal(t, []error{nil}, rec.dispatched)
	require.Len(t, rec.plans, 2)
	assert.Len(t, rec.plans[0].Enqueued, 2)
	assert.Equal(t, 2, rec.plans[0].Duplicates, "canonical duplicate and the page itself")
}

func TestStats_Add(t *testing.T) {
	a := Stats{Pages: 2, Items: 1, Methods: map[domain.ExtractionMethod]int64{domain.MethodFeed: 1}}
	b := Stats{Pages: 3, Dropped: 1, Methods: map[domain.ExtractionMethod]int64{domain.MethodFeed: 2, domain.MethodExtractor: 1}}
	sum := a.Add(b)
	assert.Equal(t, int64(5), sum.Pages)
	assert.Equal(t, int64(1), sum.Dropped)
	assert.Equal(t, int64(1), sum.Items)
	assert.Equal(t, int64(3), sum.Methods[domain.MethodFeed])
	assert.Equal(t, int64(1), sum.Methods[domain.MethodExtractor])
}
