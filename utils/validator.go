package utils

import (
	"strconv"
	"strings"
)

// SanitizeInput trims spaces and removes null bytes.
func SanitizeInput(input string) string {
	input = strings.TrimSpace(input)
	return strings.ReplaceAll(input, "\x00", "")
}

// ParseLimit parses a positive page size, falling back to def when raw is
// empty or invalid and capping at max.
func ParseLimit(raw string, def, max int) int {
	n, err := strconv.Atoi(SanitizeInput(raw))
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}
