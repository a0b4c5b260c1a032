// Package phone provides phone number utilities.
// This is part of the platform layer and contains no business logic.
package phone

import (
	"regexp"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

var nonDigitRe = regexp.MustCompile(`[^0-9]`)

// Digits strips every non-digit character from the input. The result is the
// canonical outbound form of a referral phone number. Idempotent.
func Digits(input string) string {
	return nonDigitRe.ReplaceAllString(input, "")
}

// NormalizeE164 formats a phone number to E.164 using the given default
// region. If parsing fails, it returns the trimmed input.
func NormalizeE164(input, region string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return trimmed
	}

	number, err := phonenumbers.Parse(trimmed, region)
	if err != nil {
		return trimmed
	}

	if !phonenumbers.IsValidNumber(number) {
		return trimmed
	}

	return phonenumbers.Format(number, phonenumbers.E164)
}
