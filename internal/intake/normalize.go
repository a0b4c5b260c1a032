package intake

import (
	"strings"
	"time"

	"referral_backend/internal/referral"
	"referral_backend/platform/apperr"
	"referral_backend/platform/config"
	"referral_backend/platform/phone"
)

// NormalizeForm maps raw form fields onto a referral using the configured
// field names. Name and phone are required; everything else degrades to
// empty strings.
func NormalizeForm(fields map[string]string, mapping config.FormMapping, refType referral.Type, now time.Time) (referral.Referral, error) {
	name := strings.TrimSpace(fields[mapping.Name])
	rawPhone := strings.TrimSpace(fields[mapping.Phone])

	if name == "" {
		return referral.Referral{}, apperr.New(apperr.KindValidation, "name is required")
	}
	digits := phone.Digits(rawPhone)
	if digits == "" {
		return referral.Referral{}, apperr.New(apperr.KindValidation, "phone is required")
	}

	address := composeAddress(
		fields[mapping.Road],
		fields[mapping.HouseNumber],
		fields[mapping.City],
		fields[mapping.State],
		fields[mapping.Zip],
	)

	return referral.Referral{
		Name:        name,
		Phone:       rawPhone,
		PhoneDigits: digits,
		Email:       strings.TrimSpace(fields[mapping.Email]),
		Address:     address,
		UTM:         strings.TrimSpace(fields[mapping.UTM]),
		Type:        refType,
		SubmittedAt: now.Format(referral.SubmissionTimeLayout),
	}, nil
}

// composeAddress joins the address parts as "road number, city, state zip",
// skipping pieces that are missing.
func composeAddress(road, houseNumber, city, state, zip string) string {
	street := strings.TrimSpace(strings.TrimSpace(road) + " " + strings.TrimSpace(houseNumber))

	var parts []string
	if street != "" {
		parts = append(parts, street)
	}
	if c := strings.TrimSpace(city); c != "" {
		parts = append(parts, c)
	}
	region := strings.TrimSpace(strings.TrimSpace(state) + " " + strings.TrimSpace(zip))
	if region != "" {
		parts = append(parts, region)
	}

	return strings.Join(parts, ", ")
}
