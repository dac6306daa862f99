package utils

import (
	"strings"
)

// SanitizeString removes null bytes and surrounding whitespace
func SanitizeString(input string) string {
	input = strings.ReplaceAll(input, "\x00", "")
	return strings.TrimSpace(input)
}

// CopyList returns items unchanged in order, never nil, so it serializes as [] rather than null.
func CopyList(items []string) []string {
	out := make([]string, len(items))
	copy(out, items)
	return out
}
