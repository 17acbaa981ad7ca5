package catalog

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizeKey builds the match key of a declared product name: NFC form,
// lowercase, inner whitespace collapsed to a single space, trimmed.
// Accents are kept: in Cyrillic names "й" and "и" are different letters.
func NormalizeKey(s string) string {
	s = norm.NFC.String(s)
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
