package domain

import "strings"

// NormalizeTitle lower-cases a task title and trims surrounding whitespace.
// Two titles collide when their normalized forms are equal.
func NormalizeTitle(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}
