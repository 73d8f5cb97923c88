// Package snippet extracts a query-relevant excerpt from document text.
package snippet

import "strings"

const (
	// minTokenLength discards short query tokens that match too eagerly.
	minTokenLength = 3

	// fallbackLength is the excerpt length when no token matches.
	fallbackLength = 160

	windowBefore = 60
	windowAfter  = 100
)

// Generate returns an excerpt of content centered on the earliest occurrence
// of any query token. Tokens shorter than three characters are ignored. When
// nothing matches, the leading 160 characters are returned with a trailing
// ellipsis. The match window spans 60 characters before to 100 after the
// match, widened to word boundaries, with ellipses marking truncated sides.
func Generate(content, query string) string {
	if content == "" {
		return ""
	}

	lower := strings.ToLower(content)
	offset := -1
	for _, token := range strings.Fields(query) {
		if len(token) < minTokenLength {
			continue
		}
		if i := strings.Index(lower, strings.ToLower(token)); i >= 0 && (offset < 0 || i < offset) {
			offset = i
		}
	}

	if offset < 0 {
		if len(content) <= fallbackLength {
			return content + "..."
		}
		return content[:fallbackLength] + "..."
	}

	start := offset - windowBefore
	if start < 0 {
		start = 0
	}
	end := offset + windowAfter
	if end > len(content) {
		end = len(content)
	}

	// Widen to word boundaries so no word is cut mid-token.
	for start > 0 && content[start-1] != ' ' {
		start--
	}
	for end < len(content) && content[end] != ' ' {
		end++
	}

	excerpt := strings.TrimSpace(content[start:end])
	if start > 0 {
		excerpt = "..." + excerpt
	}
	if end < len(content) {
		excerpt += "..."
	}
	return excerpt
}
