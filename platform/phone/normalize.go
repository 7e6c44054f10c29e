// Package phone provides phone number utilities.
// This is part of the platform layer and contains no business logic.
package phone

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

const defaultRegion = "FR"

// NormalizeKey canonicalizes a phone number into the client deduplication key.
// Valid numbers are formatted to E.164. Anything the parser rejects falls back
// to stripping every character outside [+0-9] and forcing a leading '+', so
// the same raw input always maps to the same key.
func NormalizeKey(input string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return ""
	}

	number, err := phonenumbers.Parse(trimmed, defaultRegion)
	if err == nil && phonenumbers.IsValidNumber(number) {
		return phonenumbers.Format(number, phonenumbers.E164)
	}

	return fallbackKey(trimmed)
}

func fallbackKey(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if digits == "" {
		return ""
	}
	return "+" + digits
}
