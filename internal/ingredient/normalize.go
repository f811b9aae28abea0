// Package ingredient normalizes ingredient names so that lookups and pairing are
// case-insensitive and whitespace-insensitive.
package ingredient

import (
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var folder = cases.Fold()

// Normalize trims, collapses inner whitespace, applies NFKC and case-folds name
func Normalize(name string) string {
	name = norm.NFKC.String(name)
	name = strings.Join(strings.Fields(name), " ")
	return folder.String(name)
}

// NormalizeSet normalizes names, drops empties and duplicates, and returns them sorted
func NormalizeSet(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		key := Normalize(n)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

// ContainsAny reports whether name contains any of the patterns as a substring.
// Both sides are expected to be normalized already.
func ContainsAny(name string, patterns []string) bool {
	return MatchFirst(name, patterns) != ""
}

// MatchFirst returns the first pattern contained in name, or "" if none matches
func MatchFirst(name string, patterns []string) string {
	for _, p := range patterns {
		if p != "" && strings.Contains(name, p) {
			return p
		}
	}
	return ""
}

// CountMatches returns how many names contain at least one of the patterns
func CountMatches(names []string, patterns []string) int {
	n := 0
	for _, name := range names {
		if ContainsAny(name, patterns) {
			n++
		}
	}
	return n
}
