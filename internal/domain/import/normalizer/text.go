// Package normalizer converts raw statement cells into typed values: calendar dates,
// unsigned decimal amounts with an explicit sign flag, and normalized description text.
package normalizer

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// NormalizeText lowercases s, strips diacritics, drops every character that is not a
// letter, digit or space, and collapses runs of whitespace.
//
//	"Devolución  AMAZON.es" -> "devolucion amazones"
func NormalizeText(s string) string {
	if s == "" {
		return ""
	}

	stripped := stripDiacritics(s)

	var b strings.Builder
	b.Grow(len(stripped))
	for _, r := range stripped {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(unicode.ToLower(r))
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}

	return strings.Join(strings.Fields(b.String()), " ")
}

// stripDiacritics decomposes s (NFD), removes combining marks and recomposes it.
func stripDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// CleanDescription trims a raw description cell and collapses internal whitespace,
// keeping the original casing for display.
func CleanDescription(s string) string {
	s = strings.Trim(strings.TrimSpace(s), `"`)
	return strings.Join(strings.Fields(s), " ")
}

// ShortKeywordLength is the keyword length below which a keyword must start a token
// to count, so "meo" does not hit "romeo".
const ShortKeywordLength = 6

// ContainsKeyword reports whether normalized text contains a normalized keyword.
// Keywords shorter than ShortKeywordLength runes must begin at a token boundary; they
// may still end inside one ("pago" hits "pagos").
func ContainsKeyword(text, keyword string) bool {
	if keyword == "" {
		return false
	}
	if utf8.RuneCountInString(keyword) >= ShortKeywordLength {
		return strings.Contains(text, keyword)
	}
	for off := 0; off < len(text); {
		i := strings.Index(text[off:], keyword)
		if i < 0 {
			return false
		}
		i += off
		if i == 0 || text[i-1] == ' ' {
			return true
		}
		off = i + 1
	}
	return false
}
