package domain

import (
	"database/sql/driver"
	"time"
)

// AuthorSource tells where the author field of a NewsItem came from
type AuthorSource string

// author provenance values
const (
	AuthorFromFeed      AuthorSource = "feed"
	AuthorFromExtractor AuthorSource = "extractor"
	AuthorFromMeta      AuthorSource = "meta"
	AuthorMissing       AuthorSource = "missing"
)

// ExtractionMethod names the extraction strategy that produced a record
type ExtractionMethod string

// extraction strategies, in cascade order
const (
	MethodFeed         ExtractionMethod = "feed"
	MethodExtractor    ExtractionMethod = "extractor"
	MethodHTMLFallback ExtractionMethod = "html_fallback"
)

// Value stores author source as plain text
func (a AuthorSource) Value() (driver.Value, error) { return string(a), nil }

// Value stores extraction method as plain text
func (m ExtractionMethod) Value() (driver.Value, error) { return string(m), nil }

// MaxParseErrorLen is the rune limit of NewsItem.ParseError
const MaxParseErrorLen = 200

// NewsItem is the canonical output record for one processed page.
// JSON field names are shared by every sink backend.
type NewsItem struct {
	Title   string `json:"title" db:"title"`
	Author  string `json:"author" db:"author"`
	Text    string `json:"text" db:"text"`
	Summary string `json:"summary" db:"summary"`
	URL     string `json:"url" db:"url"`
	Source  string `json:"source" db:"source"`

	PublishedAt string `json:"published_at" db:"published_at"`
	ScrapedAt   string `json:"scraped_at" db:"scraped_at"`

	URLHash     string `json:"url_hash" db:"url_hash"`
	Fingerprint string `json:"fingerprint" db:"fingerprint"`

	AuthorSource AuthorSource `json:"author_source" db:"author_source"`

	SummaryMaxChars  int  `json:"summary_max_chars" db:"summary_max_chars"`
	SummaryTruncated bool `json:"summary_truncated" db:"summary_truncated"`

	ParseOK            bool             `json:"parse_ok" db:"parse_ok"`
	ParseError         string           `json:"parse_error" db:"parse_error"`
	ExtractionMethod   ExtractionMethod `json:"extraction_method" db:"extraction_method"`
	ContentLengthChars int              `json:"content_length_chars" db:"content_length_chars"`

	// reserved, filled by downstream consumers
	Category  string `json:"category,omitempty" db:"category"`
	Sentiment string `json:"sentiment,omitempty" db:"sentiment"`
}

// KeyField selects the identity used by document-store upserts
type KeyField string

// supported upsert keys
const (
	KeyFingerprint KeyField = "fingerprint"
	KeyURLHash     KeyField = "url_hash"
)

// Key returns the value of the given identity field, fingerprint by default
func (n *NewsItem) Key(field KeyField) string {
	if field == KeyURLHash {
		return n.URLHash
	}
	return n.Fingerprint
}

// FormatTimestamp renders t as an ISO-8601 UTC timestamp, empty for zero time
func FormatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
