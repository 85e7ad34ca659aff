// Package textfix repairs text that was decoded with the wrong charset and
// tidies whitespace in scraped fields.
package textfix

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

// Normalize undoes UTF-8 text that was read as Latin-1 ("cafÃ©" becomes
// "café"). The text is re-encoded as Latin-1 and the bytes re-read as UTF-8.
// If any rune has no Latin-1 form, or the bytes are not valid UTF-8, s is
// returned unchanged, which makes Normalize idempotent on clean text.
func Normalize(s string) string {
	if isASCII(s) {
		return s
	}
	raw, err := charmap.ISO8859_1.NewEncoder().String(s)
	if err != nil || !utf8.ValidString(raw) {
		return s
	}
	return raw
}

// CollapseSpace trims s and folds every whitespace run into one space
func CollapseSpace(s string) string {
	s = strings.TrimFunc(s, unicode.IsSpace)
	return whitespaceRegex.ReplaceAllString(s, " ")
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
