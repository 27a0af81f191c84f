package llm

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// NormalizeText applies NFKC, drops control characters and collapses
// whitespace, so equivalent answers share an embedding and a cache key.
func NormalizeText(s string) string {
	s = norm.NFKC.String(s)
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && !unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

// CacheKey identifies text embedded by a particular model.
func CacheKey(model, text string) string {
	h := sha1.Sum([]byte(model + "|" + text))
	return hex.EncodeToString(h[:])
}
