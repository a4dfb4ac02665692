package llm

import (
	"strings"
)

// StripCodeFences removes a surrounding markdown fence such as ```json ... ```.
// Text without fences is returned trimmed.
func StripCodeFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// drop the info string ("json", "JSON", ...) up to the first newline or brace
	if i := strings.IndexAny(s, "\n{["); i >= 0 {
		if s[i] == '\n' {
			s = s[i+1:]
		} else {
			s = s[i:]
		}
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
