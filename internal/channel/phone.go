package channel

import "strings"

// DefaultCountryCode is prefixed to 8-digit local numbers.
const DefaultCountryCode = "45"

// NormalizePhone converts a provider phone representation to E.164-like
// "+<digits>" form: non-digits are stripped, an international "00" prefix
// is dropped, and an 8-digit local number gets countryCode prepended.
// Input that already starts with "+" only loses its separators, so
// normalization is idempotent. Input without digits yields "".
func NormalizePhone(raw, countryCode string) string {
	if countryCode == "" {
		countryCode = DefaultCountryCode
	}
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
	if strings.HasPrefix(strings.TrimSpace(raw), "+") {
		return "+" + digits
	}
	digits = strings.TrimPrefix(digits, "00")
	if len(digits) == 8 {
		digits = countryCode + digits
	}
	return "+" + digits
}

// looksLikePhone reports whether s is plausibly a phone number rather than
// an alphanumeric sender id or page id.
func looksLikePhone(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	digits := 0
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '+' || r == ' ' || r == '-' || r == '(' || r == ')':
		default:
			return false
		}
	}
	return digits >= 4
}

// NormalizeAddress normalizes receiving addresses: phone-like values via
// NormalizePhone, anything else (short codes with letters, page ids) trimmed.
func NormalizeAddress(raw, countryCode string) string {
	if looksLikePhone(raw) {
		return NormalizePhone(raw, countryCode)
	}
	return strings.TrimSpace(raw)
}
