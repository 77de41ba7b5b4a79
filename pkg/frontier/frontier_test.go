package frontier

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umputun/newscrawl/pkg/fingerprint"
)

func articleLinks(n int) []string {
	res := make([]string, 0, n)
	for i := range n {
		res = append(res, fmt.Sprintf("https://example.com/2026/01/29/story-%03d", i))
	}
	return res
}

func isStory(u string) bool { return strings.Contains(u, "/story-") }

func TestFrontier_PlanCap(t *testing.T) {
	f := New(Config{})
	links := articleLinks(250)

	// pre-visit a few links in the first hundred
	assert.True(t, f.Visit(links[3]))
	assert.True(t, f.Visit(links[10]+"?utm_source=home"))

	plan := f.Plan("https://example.com/section", links, isStory)
	require.Len(t, plan.Enqueued, DefaultMaxFollowPerPage)
	assert.Equal(t, 2, plan.Duplicates)
	assert.Equal(t, 248-DefaultMaxFollowPerPage, plan.Capped)
	assert.Zero(t, plan.Rejected)

	// discovery order without visited links
	expected := make([]string, 0, 100)
	for i, l := range links {
		if i == 3 || i == 10 {
			continue
		}
		if len(expected) == 100 {
			break
		}
		expected = append(expected, l)
	}
	assert.Equal(t, expected, plan.Enqueued)
	assert.Equal(t, 102, f.Len())

	// capped links were not marked visited and show up on the next page
	next := f.Plan("https://example.com/other", links, isStory)
	assert.Len(t, next.Enqueued, 100)
	assert.Equal(t, links[102], next.Enqueued[0])
	assert.Equal(t, 102, next.Duplicates)
}

func TestFrontier_PlanFilters(t *testing.T) {
	f := New(Config{MaxFollowPerPage: 10, SameSite: true})
	links := []string{
		"/2026/01/29/story-a",
		"https://www.example.com/2026/01/29/story-a/?gclid=x", // same canonical url
		"#top",
		"mailto:x@example.com",
		"https://news.example.com/2026/01/29/story-b#frag",
		"https://other.org/2026/01/29/story-c",
		"https://example.com/tag/politics",
		"",
	}
	plan := f.Plan("https://www.example.com/section/", links, isStory)
	assert.Equal(t, []string{
		"https://www.example.com/2026/01/29/story-a",
		"https://news.example.com/2026/01/29/story-b",
	}, plan.Enqueued)
	assert.Equal(t, 1, plan.Duplicates)
	assert.Equal(t, 5, plan.Rejected)
	assert.Zero(t, plan.Capped)
}

func TestFrontier_CrossSiteAllowed(t *testing.T) {
	f := New(Config{})
	plan := f.Plan("https://example.com/", []string{"https://other.org/2026/01/29/story-x"}, isStory)
	assert.Equal(t, []string{"https://other.org/2026/01/29/story-x"}, plan.Enqueued)
}

func TestFrontier_BadPageURL(t *testing.T) {
	f := New(Config{})
	plan := f.Plan("http://%zz", []string{"/a", "/b"}, isStory)
	assert.Empty(t, plan.Enqueued)
	assert.Equal(t, 2, plan.Rejected)
}

func TestFrontier_SeedAndVisit(t *testing.T) {
	f := New(Config{Canonicalizer: fingerprint.NewCanonicalizer(nil)})
	added := f.Seed("https://example.com/news", "https://EXAMPLE.com/news/", "https://example.com/world")
	assert.Equal(t, []string{"https://example.com/news", "https://example.com/world"}, added)
	assert.False(t, f.Visit("https://example.com/news?utm_campaign=x"))
	assert.True(t, f.Seen("https://example.com/world#x"))
	assert.False(t, f.Seen("https://example.com/else"))
	assert.Equal(t, 2, f.Len())
}

func TestFrontier_ConcurrentPlans(t *testing.T) {
	f := New(Config{MaxFollowPerPage: 1000})
	links := articleLinks(300)

	var wg sync.WaitGroup
	results := make([]Plan, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = f.Plan(fmt.Sprintf("https://example.com/page-%d", i), links, isStory)
		}(i)
	}
	wg.Wait()

	seen := map[string]int{}
	for _, r := range results {
		for _, u := range r.Enqueued {
			seen[u]++
		}
	}
	assert.Len(t, seen, 300)
	for u, n := range seen {
		assert.Equal(t, 1, n, "%s enqueued more than once", u)
	}
}
