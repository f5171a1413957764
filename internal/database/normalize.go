package database

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var folder = cases.Fold()

// RemoveDiacritics removes diacritical marks from a string (e.g., "Jiří" -> "Jiri").
func RemoveDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, s)
	return result
}

// CleanName trims a display name and collapses inner whitespace.
func CleanName(s string) string {
	return strings.Join(strings.Fields(norm.NFC.String(s)), " ")
}

// FoldKey returns the comparison key of a name: cleaned, case-folded, no diacritics.
// "Computer  Science" and "computer science" share a key.
func FoldKey(s string) string {
	return folder.String(RemoveDiacritics(CleanName(s)))
}

// DepartmentFilterKey converts a department query parameter into a filter key.
// Empty and "all" disable the filter.
func DepartmentFilterKey(department string) string {
	key := FoldKey(department)
	if key == "all" {
		return ""
	}
	return key
}
