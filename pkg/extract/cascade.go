// Package extract pulls article fields out of fetched pages with an ordered cascade of
// strategies: feed metadata, a boilerplate-removal extractor and a plain HTML fallback.
// The cascade never fails, a page where every strategy failed yields an Outcome with
// OK=false and the collected attempt errors.
package extract

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/umputun/newscrawl/pkg/domain"
	"github.com/umputun/newscrawl/pkg/text"
)

// ErrNoContent is returned by a strategy that found nothing usable
var ErrNoContent = errors.New("no content")

// Strategy is one extraction attempt
type Strategy interface {
	Method() domain.ExtractionMethod
	Extract(page *domain.Page) (*Result, error)
}

// Result is a partial record produced by a strategy
type Result struct {
	Title        string
	Text         string
	Description  string
	Authors      []string
	AuthorSource domain.AuthorSource
	Published    time.Time
}

// Usable reports whether the result has a title or text
func (r *Result) Usable() bool {
	return r != nil && (strings.TrimSpace(r.Title) != "" || strings.TrimSpace(r.Text) != "")
}

// Outcome is the cascade result for one page
type Outcome struct {
	Result *Result // never nil, empty on failure
	Method domain.ExtractionMethod
	OK     bool
	Error  string // attempt errors, set iff OK is false
}

// Cascade runs strategies in order and stops at the first usable result
type Cascade struct {
	strategies []Strategy
}

// NewCascade makes a cascade of the given strategies
func NewCascade(strategies ...Strategy) *Cascade {
	return &Cascade{strategies: strategies}
}

// Default returns the feed, extractor, html_fallback cascade
func Default() *Cascade {
	return NewCascade(Feed{}, Extractor{}, HTMLFallback{})
}

// Extract runs the cascade. Strategy errors and panics are recorded and never returned.
func (c *Cascade) Extract(page *domain.Page) Outcome {
	errs := make([]string, 0, len(c.strategies))
	for _, s := range c.strategies {
		res, err := attempt(s, page)
		if err == nil && !res.Usable() {
			err = ErrNoContent
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", s.Method(), err))
			continue
		}
		enrich(page, res)
		return Outcome{Result: res, Method: s.Method(), OK: true}
	}
	if len(errs) == 0 {
		errs = append(errs, "no strategies")
	}
	return Outcome{
		Result: &Result{AuthorSource: domain.AuthorMissing},
		OK:     false,
		Error:  text.Truncate(strings.Join(errs, "; "), domain.MaxParseErrorLen),
	}
}

// attempt calls the strategy and turns a panic into an error
func attempt(s Strategy, page *domain.Page) (res *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()
	if page == nil {
		return nil, errors.New("nil page")
	}
	return s.Extract(page)
}
