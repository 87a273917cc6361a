package utils

import "unicode/utf8"

// charsPerToken is the usual rough ratio for English text and code.
const charsPerToken = 4

// CountTokens estimates the tokens in text, rounding up so any non-empty text counts.
func CountTokens(text string) int {
	n := utf8.RuneCountInString(text)
	return (n + charsPerToken - 1) / charsPerToken
}

// TailToTokenLimit keeps the tail of text that fits in limit tokens. Console
// output is read from the bottom, so this is what panels use.
func TailToTokenLimit(text string, limit int) string {
	if limit <= 0 {
		return ""
	}
	max := limit * charsPerToken
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[len(runes)-max:])
}

// TokenBreakdown estimates tokens per labelled section.
func TokenBreakdown(sections map[string]string) map[string]int {
	out := make(map[string]int, len(sections))
	for k, v := range sections {
		out[k] = CountTokens(v)
	}
	return out
}
