package phone

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/nyaruka/phonenumbers"
)

// DefaultRegion is the region assumed for numbers written without a country code.
const DefaultRegion = "IN"

// Length is the number of digits a normalized lead phone carries.
const Length = 10

// Normalize reduces a raw phone string to its 10-digit national number.
// Punctuation and spaces are stripped and exactly 10 digits must remain.
// Input written with an explicit country prefix ("+91 98765-43210") is parsed
// instead and must belong to DefaultRegion.
func Normalize(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("phone number cannot be empty")
	}

	if strings.HasPrefix(raw, "+") {
		return normalizeInternational(raw)
	}

	digits := StripNonDigits(raw)
	if len(digits) != Length {
		return "", fmt.Errorf("phone number must be exactly %d digits, got %d", Length, len(digits))
	}
	return digits, nil
}

func normalizeInternational(raw string) (string, error) {
	parsed, err := phonenumbers.Parse(raw, DefaultRegion)
	if err != nil {
		return "", fmt.Errorf("failed to parse phone number: %w", err)
	}
	if region := phonenumbers.GetRegionCodeForNumber(parsed); region != DefaultRegion {
		return "", fmt.Errorf("phone number must be an %s number, got region %q", DefaultRegion, region)
	}
	national := phonenumbers.GetNationalSignificantNumber(parsed)
	if len(national) != Length || !isDigits(national) {
		return "", fmt.Errorf("phone number must be exactly %d digits, got %d", Length, len(national))
	}
	return national, nil
}

// IsValid reports whether raw normalizes to a 10-digit number.
func IsValid(raw string) bool {
	_, err := Normalize(raw)
	return err == nil
}

// StripNonDigits removes every character that is not a decimal digit.
func StripNonDigits(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isDigits(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
