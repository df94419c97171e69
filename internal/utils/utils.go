// Package utils holds small helpers shared by the review pipeline.
package utils

import "strings"

// TruncateForLog returns a single-line preview of s, at most limit runes
// long plus an ellipsis when it was cut. Essays and model replies are
// multi-line, so runs of whitespace collapse to one space.
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
