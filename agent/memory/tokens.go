package memory

import (
	"strings"
	"unicode/utf8"
)

// EstimateTokens approximates the token count of s as one token per four
// characters, rounded up. It does not depend on any model tokenizer.
func EstimateTokens(s string) int {
	return tokensForRunes(utf8.RuneCountInString(s))
}

func tokensForRunes(n int) int {
	return (n + 3) / 4
}

const clipMarker = "..."

// ClipToTokens shortens s so that EstimateTokens(result) <= maxTokens,
// preferring to cut at a word boundary.
func ClipToTokens(s string, maxTokens int) string {
	if maxTokens <= 0 {
		return ""
	}
	if EstimateTokens(s) <= maxTokens {
		return s
	}

	limit := maxTokens*4 - utf8.RuneCountInString(clipMarker)
	cut := string([]rune(s)[:limit])
	if i := strings.LastIndexAny(cut, " \n\t"); i > len(cut)/2 {
		cut = cut[:i]
	}
	return strings.TrimSpace(cut) + clipMarker
}
