package markup

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Meta returns the first non-empty content of meta tags matching any of the keys
// through property, name or itemprop attributes
func Meta(doc *goquery.Document, keys ...string) string {
	if doc == nil {
		return ""
	}
	for _, key := range keys {
		for _, attr := range []string{"property", "name", "itemprop"} {
			var val string
			doc.Find(`meta[` + attr + `="` + key + `"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
				if c, ok := s.Attr("content"); ok && strings.TrimSpace(c) != "" {
					val = c
					return false
				}
				return true
			})
			if val != "" {
				return val
			}
		}
	}
	return ""
}

// Links returns absolute http(s) links of the document in the order they appear.
// Relative hrefs are resolved against base, fragments are dropped.
func Links(doc *goquery.Document, base string) []string {
	if doc == nil {
		return nil
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil
	}
	var res []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		abs := baseURL.ResolveReference(ref)
		if abs.Scheme != "http" && abs.Scheme != "https" {
			return
		}
		abs.Fragment = ""
		res = append(res, abs.String())
	})
	return res
}
