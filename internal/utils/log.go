package utils

import "strings"

// TruncateForLog renders s as a single line of at most limit runes, appending an ellipsis when truncated.
// Chat text is multi-line, so runs of whitespace collapse into one space.
func TruncateForLog(s string, limit int) string {
	if limit <= 0 {
		return ""
	}

	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
