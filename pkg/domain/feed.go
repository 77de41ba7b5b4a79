package domain

import "time"

// FeedEntry is RSS/Atom metadata attached to a fetched page
type FeedEntry struct {
	Title       string
	Link        string
	Description string
	Content     string // raw, may contain HTML
	Authors     []string
	Published   *time.Time
}

// ParsedFeed represents a parsed RSS/Atom feed
type ParsedFeed struct {
	Title   string
	Link    string
	Entries []FeedEntry
}
