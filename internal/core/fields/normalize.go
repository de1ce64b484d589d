package fields

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Normalize folds a column header or template label into a comparable key:
// NFKC (full-width forms become half-width), lower case, no whitespace and
// no punctuation. "摘　要：" and "摘要" normalize to the same key.
func Normalize(label string) string {
	folded := norm.NFKC.String(label)
	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		if unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsControl(r) {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}
