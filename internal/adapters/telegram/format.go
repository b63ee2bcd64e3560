package telegram

import "strings"

const messageLimit = 4096

// SplitMessage cuts text into chunks within Telegram's message size limit,
// preferring paragraph and line boundaries over hard cuts.
func SplitMessage(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var parts []string
	remaining := []rune(text)
	for len(remaining) > 0 {
		if len(remaining) <= messageLimit {
			parts = appendChunk(parts, string(remaining))
			break
		}
		cut := boundaryBefore(remaining, messageLimit)
		parts = appendChunk(parts, string(remaining[:cut]))
		remaining = remaining[cut:]
		for len(remaining) > 0 && remaining[0] == '\n' {
			remaining = remaining[1:]
		}
	}
	return parts
}

// boundaryBefore finds the latest newline at or before limit, falling back
// to a hard cut when one long line fills the whole window.
func boundaryBefore(runes []rune, limit int) int {
	for i := limit; i > 0; i-- {
		if runes[i-1] == '\n' {
			return i
		}
	}
	return limit
}

func appendChunk(parts []string, chunk string) []string {
	chunk = strings.Trim(chunk, "\n")
	if chunk == "" {
		return parts
	}
	return append(parts, chunk)
}
