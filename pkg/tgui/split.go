package tgui

import (
	"strings"
	"unicode/utf8"
)

// MaxMessageLen is Telegram's hard limit on a single message's characters.
const MaxMessageLen = 4096

// SplitMessage breaks text into chunks of at most limit runes, preferring
// newline boundaries so a split never lands mid-paragraph when avoidable.
// limit <= 0 uses MaxMessageLen.
func SplitMessage(text string, limit int) []string {
	if limit <= 0 {
		limit = MaxMessageLen
	}
	if utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}

	var chunks []string
	start := 0
	for start < len(text) {
		runes := 0
		end := start
		lastNL := -1
		lastNLRunes := 0
		for end < len(text) && runes < limit {
			r, size := utf8.DecodeRuneInString(text[end:])
			if r == '\n' {
				lastNL = end + size
				lastNLRunes = runes + 1
			}
			runes++
			end += size
		}
		// Prefer a newline boundary unless it sits too early in the window.
		if end < len(text) && lastNL != -1 && lastNLRunes >= limit/3 {
			end = lastNL
		}
		chunk := strings.TrimRight(text[start:end], "\n")
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		start = end
		for start < len(text) {
			r, size := utf8.DecodeRuneInString(text[start:])
			if r != '\n' {
				break
			}
			start += size
		}
	}
	return chunks
}
