// Package strings provides string-set helpers shared by request parsing.
package strings

import (
	"slices"
	"strings"
)

// NormalizeSet lowercases, trims, dedupes and sorts values, dropping blanks.
// The result is never nil, so an empty set encodes as [] rather than null.
//
// Example:
//
//	NormalizeSet([]string{" Rust", "go", "GO", ""})
//	// Returns: []string{"go", "rust"}
func NormalizeSet(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if c := strings.ToLower(strings.TrimSpace(v)); c != "" {
			out = append(out, c)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
