// Package phone normalizes South African phone numbers to the
// canonical +27XXXXXXXXX form used for lead deduplication.
package phone

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

const region = "ZA"

// Normalize reduces free-form input to a canonical +27 number.
// Returns "" when the input does not carry enough digits to be a
// usable phone number.
func Normalize(raw string) string {
	digits := keepDigits(raw)
	if len(digits) < 10 {
		return ""
	}

	switch {
	case strings.HasPrefix(digits, "0"):
		return "+27" + digits[1:]
	case strings.HasPrefix(digits, "27"):
		return "+" + digits
	case len(digits) == 10:
		return "+27" + digits
	}
	return ""
}

// IsValid reports whether a normalized number parses as a valid
// South African number.
func IsValid(normalized string) bool {
	num, err := phonenumbers.Parse(normalized, region)
	if err != nil {
		return false
	}
	return phonenumbers.IsValidNumber(num)
}

// Describe returns a short line-type annotation ("mobile",
// "fixed line") for operator notifications, or "" when the number
// cannot be classified.
func Describe(normalized string) string {
	num, err := phonenumbers.Parse(normalized, region)
	if err != nil {
		return ""
	}
	switch phonenumbers.GetNumberType(num) {
	case phonenumbers.MOBILE:
		return "mobile"
	case phonenumbers.FIXED_LINE:
		return "fixed line"
	case phonenumbers.FIXED_LINE_OR_MOBILE:
		return "fixed line or mobile"
	}
	return ""
}

func keepDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
