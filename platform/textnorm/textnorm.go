// Package textnorm provides text canonicalization utilities.
// This is part of the platform layer and contains no business logic.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Email canonicalizes an email address for matching: trimmed, lower-cased,
// diacritics removed.
func Email(input string) string {
	return Fold(strings.ToLower(strings.TrimSpace(input)))
}

// Fold removes diacritical marks from the input. If the transform fails the
// input is returned unchanged.
func Fold(input string) string {
	out, _, err := transform.String(stripMarks, input)
	if err != nil {
		return input
	}
	return out
}

// SearchText builds the free-text search index value from identity fields.
// Empty fields are skipped; the result is lower-cased and diacritic-free so
// admin searches match regardless of accents.
func SearchText(fields ...string) string {
	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		trimmed := strings.TrimSpace(field)
		if trimmed == "" {
			continue
		}
		parts = append(parts, Fold(strings.ToLower(trimmed)))
	}
	return strings.Join(parts, " ")
}
