package search

import (
	"strings"
	"unicode/utf8"
)

// DefaultSnippetLength is the target snippet size in bytes.
const DefaultSnippetLength = 150

// GenerateSnippet extracts a bounded excerpt of content around the first
// case-insensitive occurrence of query. The excerpt is expanded to the
// nearest word boundaries and wrapped in ellipses where content was cut.
//
// When the query does not occur in the content, the snippet is a plain
// prefix of the content. The function is pure; identical inputs always
// produce identical output, which matters because the result is shown
// verbatim in search result listings.
func GenerateSnippet(content, query string, maxLength int) string {
	if maxLength <= 0 {
		maxLength = DefaultSnippetLength
	}

	index := strings.Index(strings.ToLower(content), strings.ToLower(query))
	if index == -1 {
		if len(content) <= maxLength {
			return content
		}
		// Back up to a rune boundary so the cut never splits a multi-byte
		// character.
		cut := maxLength
		for cut > 0 && !utf8.RuneStart(content[cut]) {
			cut--
		}
		return strings.TrimSpace(content[:cut]) + "..."
	}

	// Start roughly 50 bytes before the match, then walk back to the
	// preceding space so the snippet does not open mid-word. When the walk
	// reaches the beginning of the content the snippet starts at 0, not
	// one past a space.
	start := index - 50
	if start < 0 {
		start = 0
	}
	for start > 0 && content[start] != ' ' {
		start--
	}
	if start > 0 {
		start++
	}

	// Extend the end to the next space so the snippet does not close
	// mid-word either.
	end := start + maxLength
	if end > len(content) {
		end = len(content)
	}
	for end < len(content) && content[end] != ' ' {
		end++
	}

	snippet := strings.TrimSpace(content[start:end])
	if start > 0 {
		snippet = "..." + snippet
	}
	if end < len(content) {
		snippet = snippet + "..."
	}
	return snippet
}
