package utils

import "strings"

// ParseCSV splits a comma-separated string and returns trimmed, lower-cased,
// non-empty values. Returns nil for empty/whitespace-only input.
// Used for strategy name lists in configuration and query strings.
func ParseCSV(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}

	var result []string
	for _, v := range strings.Split(s, ",") {
		trimmed := strings.ToLower(strings.TrimSpace(v))
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
