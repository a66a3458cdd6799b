package parser

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// header markers compared after case folding.
var headerMarkers = []string{"épreuve", "nage"}

// Normalize replaces non-breaking spaces with regular spaces, collapses
// whitespace runs to a single space and trims the result. Text is composed
// to NFC first so that decomposed accents compare equal to precomposed ones.
func Normalize(s string) string {
	s = norm.NFC.String(s)
	s = strings.Map(func(r rune) rune {
		switch r {
		case '\u00a0', '\u202f', '\u2007':
			return ' '
		}
		return r
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

// cellText turns the inner markup of a table cell into normalized text.
// Tags and comments are dropped, entities decoded, script and style bodies
// skipped.
func cellText(inner string) string {
	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(inner))
	skip := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			return Normalize(b.String())
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		case html.StartTagToken:
			if name, _ := z.TagName(); isRawTextTag(name) {
				skip++
			}
		case html.EndTagToken:
			if name, _ := z.TagName(); isRawTextTag(name) && skip > 0 {
				skip--
			}
		}
	}
}

func isRawTextTag(name []byte) bool {
	switch string(name) {
	case "script", "style":
		return true
	}
	return false
}

// fold returns a caseless form of s for substring comparisons.
// A Caser is stateful, so one is built per call.
func fold(s string) string {
	return cases.Fold().String(Normalize(s))
}

// IsHeaderCell reports whether a first cell looks like a table header
// ("Épreuve", "Nage", ...) rather than an event label.
func IsHeaderCell(s string) bool {
	folded := fold(s)
	for _, marker := range headerMarkers {
		if strings.Contains(folded, marker) {
			return true
		}
	}
	return false
}
