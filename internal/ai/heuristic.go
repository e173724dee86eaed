package ai

import (
	"regexp"
	"strings"
	"unicode"
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// Heuristic summarizes without a remote service: the first non-blank line that is
// not quoted, whitespace collapsed, cut to maxLen runes.
func Heuristic(body string, maxLen int) string {
	for _, line := range strings.Split(body, "\n") {
		s := strings.TrimSpace(line)
		if s == "" || strings.HasPrefix(s, ">") {
			continue
		}
		s = whitespaceRun.ReplaceAllString(s, " ")
		return strings.TrimRightFunc(truncateRunes(s, maxLen), unicode.IsSpace)
	}
	flat := strings.ReplaceAll(strings.TrimSpace(body), "\r\n", " ")
	flat = strings.ReplaceAll(flat, "\n", " ")
	return strings.TrimRightFunc(truncateRunes(flat, maxLen), unicode.IsSpace)
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
