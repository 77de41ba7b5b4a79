package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/umputun/newscrawl/pkg/text"
)

// ContentPrefixLen is the number of text runes included in the content fingerprint
const ContentPrefixLen = 2000

// URLHash returns the SHA-256 hex digest of the canonical URL.
// If the URL can't be canonicalized the trimmed raw string is hashed, so it never fails.
func (c *Canonicalizer) URLHash(rawURL string) string {
	canonical, err := c.Canonicalize(rawURL)
	if err != nil {
		canonical = strings.TrimSpace(rawURL)
	}
	return digest(canonical)
}

// Content returns the content fingerprint. With text present it covers the title
// and the first ContentPrefixLen runes of text, otherwise title, publishedAt and source.
func Content(title, txt, publishedAt, source string) string {
	if txt != "" {
		return digest(title + "\n" + text.Truncate(txt, ContentPrefixLen))
	}
	return digest(title + "|" + publishedAt + "|" + source)
}

// digest sanitizes s to valid NFC UTF-8 and returns its SHA-256 hex encoding
func digest(s string) string {
	s = norm.NFC.String(strings.ToValidUTF8(s, "�"))
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
