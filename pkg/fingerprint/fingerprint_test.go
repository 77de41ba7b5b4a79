package fingerprint

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalizer_Canonicalize(t *testing.T) {
	c := NewCanonicalizer(nil)
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercase scheme and host", "HTTPS://Example.COM/Path", "https://example.com/Path"},
		{"default https port", "https://example.com:443/a", "https://example.com/a"},
		{"default http port", "http://example.com:80/a", "http://example.com/a"},
		{"custom port kept", "http://example.com:8080/a/", "http://example.com:8080/a"},
		{"fragment dropped", "https://example.com/a#comments", "https://example.com/a"},
		{"trailing slash", "https://example.com/a/b/", "https://example.com/a/b"},
		{"root keeps slash", "https://example.com", "https://example.com/"},
		{"tracking removed", "https://example.com/a?utm_source=x&utm_medium=y&fbclid=1&id=5", "https://example.com/a?id=5"},
		{"query sorted", "https://example.com/a?b=2&a=1&c=3", "https://example.com/a?a=1&b=2&c=3"},
		{"repeated key order kept", "https://example.com/a?x=2&x=1", "https://example.com/a?x=2&x=1"},
		{"only tracking", "https://example.com/a?gclid=abc&ref=home", "https://example.com/a"},
		{"userinfo dropped", "https://user:pw@example.com/a", "https://example.com/a"},
		{"semicolon in value kept", "https://example.com/a?id=1;2", "https://example.com/a?id=1%3B2"},
		{"bad escape kept verbatim", "https://example.com/a?q=%zz&id=7&utm_source=x", "https://example.com/a?id=7&q=%zz"},
		{"bad escape in key kept verbatim", "https://example.com/a?%zz=1&b=2", "https://example.com/a?%zz=1&b=2"},
		{"encoded tracking key removed", "https://example.com/a?utm%5Fsource=x&id=5", "https://example.com/a?id=5"},
		{"key without value", "https://example.com/a?flag&b=2", "https://example.com/a?b=2&flag="},
		{"empty pairs skipped", "https://example.com/a?&&b=2&", "https://example.com/a?b=2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Canonicalize(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCanonicalizer_Idempotent(t *testing.T) {
	c := NewCanonicalizer(nil)
	urls := []string{
		"https://Example.com/2026/01/29/story/?utm_source=x&b=2&a=1#top",
		"http://example.com:8080/a%20b/?q=hello+world&z=%2F",
		"https://example.com/path/with%2Fslash",
		"https://[::1]:443/x?y=1",
		"https://example.com/a?id=1;2&q=%zz&%zz=3",
	}
	for _, u := range urls {
		once, err := c.Canonicalize(u)
		require.NoError(t, err, u)
		twice, err := c.Canonicalize(once)
		require.NoError(t, err, once)
		assert.Equal(t, once, twice, u)
	}
}

func TestCanonicalizer_Invalid(t *testing.T) {
	c := NewCanonicalizer(nil)
	for _, u := range []string{"", "   ", "/relative/path", "example.com/no-scheme", "http://%zz"} {
		_, err := c.Canonicalize(u)
		assert.Error(t, err, u)
	}
	_, err := c.Canonicalize("example.com/x")
	assert.ErrorIs(t, err, ErrInvalidURL)
}

func TestCanonicalizer_CustomParams(t *testing.T) {
	c := NewCanonicalizer([]string{"sid", "track_*"})
	assert.True(t, c.IsTracking("SID"))
	assert.True(t, c.IsTracking("track_campaign"))
	assert.False(t, c.IsTracking("utm_source"), "defaults replaced by custom list")

	got, err := c.Canonicalize("https://example.com/a?utm_source=x&sid=1&track_me=2")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/a?utm_source=x", got)
}

func TestURLHash(t *testing.T) {
	c := NewCanonicalizer(nil)

	t.Run("tracking and trailing slash insensitive", func(t *testing.T) {
		h1 := c.URLHash("https://example.com/2026/01/29/story?utm_source=x&ref=y")
		h2 := c.URLHash("https://example.com/2026/01/29/story/?gclid=z")
		assert.Equal(t, h1, h2)
		assert.Len(t, h1, 64)
	})

	t.Run("param order insensitive", func(t *testing.T) {
		assert.Equal(t, c.URLHash("https://example.com/a?x=1&y=2"), c.URLHash("https://example.com/a?y=2&x=1"))
	})

	t.Run("undecodable params keep urls apart", func(t *testing.T) {
		assert.NotEqual(t, c.URLHash("https://example.com/a?id=1;2"), c.URLHash("https://example.com/a?id=3;4"))
		assert.NotEqual(t, c.URLHash("https://example.com/a?q=%zz&id=7"), c.URLHash("https://example.com/a?id=7"))
	})

	t.Run("different paths differ", func(t *testing.T) {
		assert.NotEqual(t, c.URLHash("https://example.com/a"), c.URLHash("https://example.com/b"))
	})

	t.Run("invalid url still hashed", func(t *testing.T) {
		h := c.URLHash("not a url \xff")
		assert.Len(t, h, 64)
		assert.Equal(t, h, c.URLHash("  not a url \xff  "))
	})
}

func TestContent(t *testing.T) {
	text := strings.Repeat("word ", 1000)

	t.Run("text basis is deterministic", func(t *testing.T) {
		a := Content("Title", text, "2026-01-29T00:00:00Z", "cnn")
		b := Content("Title", text, "", "bbc")
		assert.Equal(t, a, b, "published_at and source are ignored when text is present")
		assert.Len(t, a, 64)
	})

	t.Run("only first 2000 runes count", func(t *testing.T) {
		long := strings.Repeat("ж", ContentPrefixLen)
		assert.Equal(t, Content("T", long, "", ""), Content("T", long+"tail differs", "", ""))
		assert.NotEqual(t, Content("T", long[:len(long)-2]+"x", "", ""), Content("T", long, "", ""))
	})

	t.Run("text-less basis", func(t *testing.T) {
		a := Content("Title", "", "2026-01-29T00:00:00Z", "cnn")
		assert.Equal(t, a, Content("Title", "", "2026-01-29T00:00:00Z", "cnn"))
		assert.NotEqual(t, a, Content("Title", "", "2026-01-29T00:00:00Z", "bbc"))
		assert.NotEqual(t, a, Content("Title", "", "", "cnn"))
	})

	t.Run("nfc equivalent input", func(t *testing.T) {
		composed := "Caf\u00e9"
		decomposed := "Cafe\u0301"
		assert.Equal(t, Content(composed, "", "", "x"), Content(decomposed, "", "", "x"))
	})

	t.Run("invalid utf8 does not break hashing", func(t *testing.T) {
		assert.Len(t, Content("bad \xc3\x28", "", "", "x"), 64)
	})
}
