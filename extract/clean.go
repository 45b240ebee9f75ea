package extract

import (
	"regexp"
	"strings"
)

// CleanText normalizes extracted text before fingerprinting.
// It removes zero-width characters, collapses all whitespace runs to a
// single space, and trims. Markup reflows and indentation changes therefore
// never show up as content modifications.
func CleanText(text string) string {
	text = strings.Map(func(r rune) rune {
		switch r {
		case '\u200b', '\u200c', '\u200d', '\ufeff', '\u00ad':
			return -1
		}
		return r
	}, text)

	return strings.TrimSpace(collapseWhitespace(text))
}

// StripPatterns removes every match of the given expressions from text and
// re-normalizes. Used for volatile fragments that change on every render
// ("Last updated 3 days ago") and would otherwise report a modification on
// every run.
func StripPatterns(text string, patterns []*regexp.Regexp) string {
	for _, p := range patterns {
		text = p.ReplaceAllString(text, " ")
	}
	return CleanText(text)
}

var multiSpaceRe = regexp.MustCompile(`\s+`)

func collapseWhitespace(s string) string {
	return multiSpaceRe.ReplaceAllString(s, " ")
}
