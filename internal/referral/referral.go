// Package referral defines the canonical intake record shared by the intake,
// CRM, and notification modules.
package referral

import (
	"referral_backend/platform/apperr"
)

// Type identifies the kind of offer a referral asks for. Values are the
// offer item ids the referral service expects.
type Type int

const (
	// BookOfMormon requests a Book of Mormon delivery.
	BookOfMormon Type = 23
	// MissionaryVisit requests a visit from the missionaries.
	MissionaryVisit Type = 134
)

// ParseType validates a raw offer item code. Unknown codes are rejected with
// a validation error rather than passed through.
func ParseType(code int) (Type, error) {
	switch Type(code) {
	case BookOfMormon, MissionaryVisit:
		return Type(code), nil
	default:
		return 0, apperr.Newf(apperr.KindValidation, "unknown referral type code %d", code)
	}
}

// OfferItemID returns the offer item id submitted to the referral service.
func (t Type) OfferItemID() int { return int(t) }

// SubmissionTimeLayout is the fixed format referral timestamps are rendered
// in for messages and webhook payloads.
const SubmissionTimeLayout = "02/01/2006 15:04:05"

// Referral is the canonical intake record. It is built once per intake event,
// immutable afterwards, and travels by value inside task payloads.
type Referral struct {
	Name        string `json:"name"`
	Phone       string `json:"phone"`
	PhoneDigits string `json:"phoneDigits"`
	Email       string `json:"email"`
	Address     string `json:"address"`
	UTM         string `json:"utm"`
	Type        Type   `json:"referralType"`
	SubmittedAt string `json:"submittedAt"`
	FromLeadAd  bool   `json:"fromLeadAd"`
}

// AdInfo carries the ad metadata attached to a referral. The zero value is
// the documented shape when ad lookup is disabled or the URL is unset.
type AdInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	URL         string `json:"url"`
}
