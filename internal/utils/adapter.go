package utils

import (
	"fmt"
	"strconv"
	"strings"
)

func StringToUint(s string) (uint, error) {
	if s == "" {
		return 0, fmt.Errorf("empty string cannot be converted to uint")
	}

	val, err := strconv.ParseUint(s, 10, 0)
	if err != nil {
		return 0, fmt.Errorf("failed to convert '%s' to uint: %w", s, err)
	}

	return uint(val), nil
}

// ParsePage reads a page query value. Anything that is not an integer is
// page 1; range clamping is left to the paginator.
func ParsePage(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 1
	}
	return n
}

// SafeNext returns next when it is a local absolute path, otherwise fallback.
func SafeNext(next, fallback string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return fallback
	}
	return next
}
