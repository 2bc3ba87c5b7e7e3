package checker

import "strings"

// Normalize prepares program output for comparison: every line ending
// style becomes "\n" and surrounding whitespace is trimmed. Normalize is
// idempotent.
func Normalize(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return strings.TrimSpace(s)
}

// displayText renders empty strings visibly in mismatch messages.
func displayText(s string) string {
	if s == "" {
		return "(empty)"
	}
	return s
}
