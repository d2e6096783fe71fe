package util

import (
	"regexp"
	"strings"
)

var controlChars = regexp.MustCompile(`[\x00-\x1F\x7F]+`)

// SanitizeForLog removes control characters and newlines from user content before logging.
func SanitizeForLog(s string) string {
	if s == "" {
		return s
	}
	s = strings.ReplaceAll(s, "\r\n", " ")
	return controlChars.ReplaceAllString(s, " ")
}

// TruncateForLog sanitizes s and cuts it to at most limit bytes.
func TruncateForLog(s string, limit int) string {
	s = SanitizeForLog(s)
	if limit >= 0 && len(s) > limit {
		s = s[:limit]
	}
	return s
}
