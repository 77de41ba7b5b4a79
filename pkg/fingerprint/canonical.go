// Package fingerprint builds the two deduplication keys of a NewsItem:
// url_hash over the canonical URL and a content fingerprint.
// URLs that differ only in case, default port, fragment, trailing slash,
// tracking parameters or parameter order canonicalize to the same string.
package fingerprint

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// DefaultTrackingParams lists query parameters removed during canonicalization.
// Entries ending with "*" match by prefix.
var DefaultTrackingParams = []string{
	"utm_*", "gclid", "gclsrc", "dclid", "fbclid", "msclkid",
	"mc_cid", "mc_eid", "ref", "ref_src", "_ga", "_gl",
	"igshid", "yclid", "cmpid", "ocid",
}

// ErrInvalidURL is returned for URLs without scheme or host
var ErrInvalidURL = errors.New("invalid url")

var defaultPorts = map[string]string{"http": "80", "https": "443"}

// Canonicalizer normalizes URLs with a configured tracking parameter set
type Canonicalizer struct {
	exact    map[string]struct{}
	prefixes []string
}

// NewCanonicalizer makes a canonicalizer, empty params means DefaultTrackingParams
func NewCanonicalizer(params []string) *Canonicalizer {
	if len(params) == 0 {
		params = DefaultTrackingParams
	}
	c := &Canonicalizer{exact: make(map[string]struct{}, len(params))}
	for _, p := range params {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		if strings.HasSuffix(p, "*") {
			c.prefixes = append(c.prefixes, strings.TrimSuffix(p, "*"))
			continue
		}
		c.exact[p] = struct{}{}
	}
	return c
}

// IsTracking reports whether the query key is a tracking parameter
func (c *Canonicalizer) IsTracking(key string) bool {
	key = strings.ToLower(key)
	if _, ok := c.exact[key]; ok {
		return true
	}
	for _, p := range c.prefixes {
		if strings.HasPrefix(key, p) {
			return true
		}
	}
	return false
}

// Canonicalize lowercases scheme and host, drops default ports, fragments,
// trailing slashes and tracking parameters, and sorts the remaining query keys.
// Applying it to its own output returns the same string.
func (c *Canonicalizer) Canonicalize(rawURL string) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", fmt.Errorf("canonicalize: %w: empty", ErrInvalidURL)
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("canonicalize %q: %w", rawURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("canonicalize %q: %w", rawURL, ErrInvalidURL)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = canonicalHost(u)
	u.User = nil
	u.Fragment = ""
	u.RawFragment = ""
	u.RawQuery = c.cleanQuery(u.RawQuery)
	u.ForceQuery = false
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawPath = ""
	if u.Path == "" {
		u.Path = "/"
	}
	return u.String(), nil
}

func canonicalHost(u *url.URL) string {
	host := strings.ToLower(u.Hostname())
	port := u.Port()
	if port == "" || defaultPorts[u.Scheme] == port {
		if strings.Contains(host, ":") { // ipv6 literal
			return "[" + host + "]"
		}
		return host
	}
	if strings.Contains(host, ":") {
		return "[" + host + "]:" + port
	}
	return host + ":" + port
}

// cleanQuery removes tracking keys and encodes the rest sorted by key,
// values of a repeated key keep their original order. Pairs that don't decode
// are kept verbatim, so no real parameter is lost.
func (c *Canonicalizer) cleanQuery(rawQuery string) string {
	type pair struct{ key, encoded string }
	var pairs []pair
	for _, raw := range strings.Split(rawQuery, "&") {
		if raw == "" {
			continue
		}
		rawKey, rawValue, _ := strings.Cut(raw, "=")
		key, kerr := url.QueryUnescape(rawKey)
		if kerr != nil {
			pairs = append(pairs, pair{key: rawKey, encoded: raw})
			continue
		}
		if c.IsTracking(key) {
			continue
		}
		value, verr := url.QueryUnescape(rawValue)
		if verr != nil {
			pairs = append(pairs, pair{key: key, encoded: raw})
			continue
		}
		pairs = append(pairs, pair{key: key, encoded: url.QueryEscape(key) + "=" + url.QueryEscape(value)})
	}
	sort.SliceStable(pairs, func(i, j int) bool { return pairs[i].key < pairs[j].key })

	encoded := make([]string, 0, len(pairs))
	for _, p := range pairs {
		encoded = append(encoded, p.encoded)
	}
	return strings.Join(encoded, "&")
}
