package scene

import (
	"strconv"
	"strings"
)

// containsAny reports whether s contains any of substrs.
func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// parseFloat parses s as a float64, returning ok=false rather than 0 on
// failure or on an empty string — an empty attr is absence, not zero.
func parseFloat(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	return v, err == nil
}
