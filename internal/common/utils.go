package common

import "strings"

// HasAny returns true if s contains any of the substrings.
func HasAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// NormalizeCity trims s and collapses inner runs of whitespace, so that
// "  New   York " and "New York" are the same search.
func NormalizeCity(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
