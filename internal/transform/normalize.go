package transform

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	texttransform "golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fold lower-cases s, strips diacritics and collapses internal whitespace:
// "  Fecha   de Antigüedad " -> "fecha de antiguedad".
func Fold(s string) string {
	t := texttransform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := texttransform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.Join(strings.Fields(strings.ToLower(folded)), " ")
}

// headerMatches compares two folded header names. A '?' or U+FFFD in either name stands for
// the single character a mis-encoded export replaced: "n?mero" matches "numero".
func headerMatches(a, b string) bool {
	if a == b {
		return true
	}
	ra, rb := []rune(a), []rune(b)
	if len(ra) != len(rb) {
		return false
	}
	for i := range ra {
		if ra[i] == rb[i] || isPlaceholder(ra[i]) || isPlaceholder(rb[i]) {
			continue
		}
		return false
	}
	return true
}

func isPlaceholder(r rune) bool {
	return r == '?' || r == unicode.ReplacementChar
}
