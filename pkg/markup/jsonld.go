// Package markup reads structured metadata out of parsed HTML documents:
// JSON-LD blocks, meta tags and outbound links.
package markup

import (
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ArticleTypes are the JSON-LD @type values treated as news articles
var ArticleTypes = map[string]bool{
	"NewsArticle":           true,
	"Article":               true,
	"ReportageNewsArticle":  true,
	"AnalysisNewsArticle":   true,
	"OpinionNewsArticle":    true,
	"BackgroundNewsArticle": true,
	"BlogPosting":           true,
	"Report":                true,
}

// JSONLD returns every JSON object found in application/ld+json scripts.
// Arrays and @graph containers are flattened, invalid blocks are skipped.
func JSONLD(doc *goquery.Document) []map[string]any {
	if doc == nil {
		return nil
	}
	var res []map[string]any
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		raw := strings.TrimSpace(s.Text())
		if raw == "" {
			return
		}
		var data any
		if err := json.Unmarshal([]byte(raw), &data); err != nil {
			return
		}
		res = flatten(data, res)
	})
	return res
}

func flatten(data any, acc []map[string]any) []map[string]any {
	switch v := data.(type) {
	case []any:
		for _, el := range v {
			acc = flatten(el, acc)
		}
	case map[string]any:
		acc = append(acc, v)
		if graph, ok := v["@graph"]; ok {
			acc = flatten(graph, acc)
		}
	}
	return acc
}

// Types returns the @type values of a JSON-LD object, string or array form
func Types(obj map[string]any) []string {
	switch v := obj["@type"].(type) {
	case string:
		return []string{v}
	case []any:
		res := make([]string, 0, len(v))
		for _, t := range v {
			if s, ok := t.(string); ok {
				res = append(res, s)
			}
		}
		return res
	}
	return nil
}

// IsArticle reports whether the object has one of the article types
func IsArticle(obj map[string]any) bool {
	for _, t := range Types(obj) {
		if ArticleTypes[t] {
			return true
		}
	}
	return false
}

// Articles returns the JSON-LD objects typed as articles, in document order
func Articles(doc *goquery.Document) []map[string]any {
	var res []map[string]any
	for _, obj := range JSONLD(doc) {
		if IsArticle(obj) {
			res = append(res, obj)
		}
	}
	return res
}

// String reads a string field, joining arrays with ", "
func String(obj map[string]any, key string) string {
	switch v := obj[key].(type) {
	case string:
		return v
	case []any:
		parts := make([]string, 0, len(v))
		for _, el := range v {
			if s, ok := el.(string); ok && strings.TrimSpace(s) != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	case map[string]any:
		if s, ok := v["@value"].(string); ok {
			return s
		}
	}
	return ""
}

// Names reads person-like fields: a string, an object with name, or an array of either
func Names(obj map[string]any, key string) []string {
	var res []string
	var collect func(v any)
	collect = func(v any) {
		switch t := v.(type) {
		case string:
			if strings.TrimSpace(t) != "" {
				res = append(res, t)
			}
		case map[string]any:
			if name, ok := t["name"].(string); ok && strings.TrimSpace(name) != "" {
				res = append(res, name)
			}
		case []any:
			for _, el := range t {
				collect(el)
			}
		}
	}
	collect(obj[key])
	return res
}
