package crawl

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umputun/newscrawl/pkg/domain"
	"github.com/umputun/newscrawl/pkg/feed"
	"github.com/umputun/newscrawl/pkg/pipeline"
)

var storyBody = strings.Repeat("Officials confirmed the new bridge will open to traffic next month after inspections. ", 4)

func storyPage(title string, links ...string) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<html><head><title>%s</title><script type="application/ld+json">`, title)
	fmt.Fprintf(&b, `{"@type":"NewsArticle","headline":%q,"articleBody":%q}</script></head><body><article>`, title, storyBody)
	for _, l := range links {
		fmt.Fprintf(&b, `<a href="%s">link</a>`, l)
	}
	b.WriteString(`</article></body></html>`)
	return b.String()
}

type collectDispatcher struct {
	mu    sync.Mutex
	items []domain.NewsItem
}

func (d *collectDispatcher) Dispatch(_ context.Context, item *domain.NewsItem) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.items = append(d.items, *item)
	return nil
}

func (d *collectDispatcher) titles() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	res := make([]string, 0, len(d.items))
	for _, it := range d.items {
		res = append(res, it.Title)
	}
	sort.Strings(res)
	return res
}

func newSite(t *testing.T) (*httptest.Server, *sync.Map) {
	hits := &sync.Map{}
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		n, _ := hits.LoadOrStore(r.URL.Path, new(atomic.Int64))
		n.(*atomic.Int64).Add(1)
		switch r.URL.Path {
		case "/":
			w.Header().Set("Content-Type", "text/html")
			_, _ = fmt.Fprint(w, `<html><body><h1>Home</h1>
				<a href="/2026/01/29/first-story">1</a>
				<a href="/2026/01/29/second-story?utm_source=home">2</a>
				<a href="/about">about</a>
				<a href="/2026/01/29/report.pdf">pdf</a>
				</body></html>`)
		case "/2026/01/29/first-story":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = fmt.Fprint(w, storyPage("First story", "/2026/01/29/second-story", "/2026/01/29/missing-story", "/"))
		case "/2026/01/29/second-story":
			w.Header().Set("Content-Type", "text/html")
			_, _ = fmt.Fprint(w, storyPage("Second story", "/2026/01/29/first-story"))
		case "/feed.json":
			w.Header().Set("Content-Type", "application/json")
			_, _ = fmt.Fprint(w, `{}`)
		default:
			http.NotFound(w, r)
		}
	})
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts, hits
}

func TestEngine_Run(t *testing.T) {
	ts, hits := newSite(t)
	disp := &collectDispatcher{}
	p := pipeline.New(nil, nil, disp, pipeline.Config{})

	ix := feed.NewIndex(nil)
	ix.Add(&domain.ParsedFeed{Entries: []domain.FeedEntry{
		{Title: "First story from feed", Link: ts.URL + "/2026/01/29/first-story", Authors: []string{"Feed Author"}},
	}})

	e := New(Config{MaxDepth: 3, RequestTimeout: 5 * time.Second}, p, ix)
	rep, err := e.Run(context.Background(), Source{Name: "test", StartURLs: []string{ts.URL + "/", ts.URL + "/"}})
	require.NoError(t, err)

	assert.Equal(t, "test", rep.Source)
	assert.Equal(t, int64(4), rep.Requests, "home, two stories and the missing one")
	assert.Equal(t, int64(3), rep.Responses)
	assert.Equal(t, int64(1), rep.FetchErrors)
	assert.Zero(t, rep.HandleErrors)

	assert.Equal(t, []string{"First story from feed", "Second story"}, disp.titles())
	for _, it := range disp.items {
		if it.Title == "First story from feed" {
			assert.Equal(t, "Feed Author", it.Author)
			assert.Equal(t, domain.AuthorFromFeed, it.AuthorSource)
		}
		assert.NotEmpty(t, it.Text)
	}

	// every page fetched once
	hits.Range(func(k, v any) bool {
		assert.Equal(t, int64(1), v.(*atomic.Int64).Load(), "path %v", k)
		return true
	})

	st := p.Stats()
	assert.Equal(t, int64(3), st.Pages)
	assert.Equal(t, int64(1), st.Dropped)
	assert.Equal(t, int64(2), st.Dispatched)
}

func TestEngine_MaxDepth(t *testing.T) {
	ts, hits := newSite(t)
	disp := &collectDispatcher{}
	p := pipeline.New(nil, nil, disp, pipeline.Config{})

	rep, err := New(Config{MaxDepth: 1}, p, nil).Run(context.Background(),
		Source{Name: "test", StartURLs: []string{ts.URL + "/"}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), rep.Requests)
	assert.Empty(t, disp.titles())
	_, ok := hits.Load("/2026/01/29/first-story")
	assert.False(t, ok)
}

func TestEngine_SkipsNonHTML(t *testing.T) {
	ts, _ := newSite(t)
	p := pipeline.New(nil, nil, nil, pipeline.Config{})
	rep, err := New(Config{}, p, nil).Run(context.Background(),
		Source{Name: "test", StartURLs: []string{ts.URL + "/feed.json"}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), rep.Skipped)
	assert.Zero(t, p.Stats().Pages)
}

func TestEngine_Canceled(t *testing.T) {
	ts, _ := newSite(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := pipeline.New(nil, nil, nil, pipeline.Config{})
	_, err := New(Config{}, p, nil).Run(ctx, Source{Name: "test", StartURLs: []string{ts.URL + "/"}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEngine_NoHandler(t *testing.T) {
	_, err := New(Config{}, nil, nil).Run(context.Background(), Source{Name: "x"})
	assert.Error(t, err)
}

func TestSetBrowserHeaders(t *testing.T) {
	h := http.Header{}
	setBrowserHeaders(&h)
	assert.Contains(t, h.Get("Accept"), "text/html")
	assert.Contains(t, acceptLanguages, h.Get("Accept-Language"))
	assert.Contains(t, secFetchModes, h.Get("Sec-Fetch-Mode"))
	assert.Empty(t, h.Get("Accept-Encoding"))
}
