// Package notify fans a resolved referral out to messaging channels and the
// outbound webhook.
package notify

import (
	"context"

	"referral_backend/internal/crm"
	"referral_backend/internal/referral"
	"referral_backend/platform/config"
	"referral_backend/platform/logger"
)

// Channel is a messaging provider able to deliver the two referral messages.
// Exactly one channel is active per dispatch, chosen by SelectChannel.
type Channel interface {
	Name() string
	// ConfirmReferrer reports whether the referrer-side confirmation message
	// is enabled for this channel.
	ConfirmReferrer() bool
	// SendReferrerConfirmation sends the registration confirmation to the
	// person who submitted the referral.
	SendReferrerConfirmation(ctx context.Context, ref referral.Referral, area crm.AreaInfo) error
	// SendMissionaryAlert notifies every missionary phone in the area about
	// the new referral.
	SendMissionaryAlert(ctx context.Context, ref referral.Referral, area crm.AreaInfo, ad referral.AdInfo) error
}

// SelectChannel picks the active messaging channel by a deterministic
// priority rule: the WhatsApp template provider when configured, else the
// SMS provider, else none (nil).
func SelectChannel(cfg config.NotifyConfig, log *logger.Logger) Channel {
	if wa := NewWhatsAppChannel(cfg, log); wa != nil {
		return wa
	}
	if sms := NewSMSChannel(cfg, log); sms != nil {
		return sms
	}
	return nil
}

// adLink returns the ad call-to-action URL, or the literal placeholder used
// in message bodies when no ad link exists.
func adLink(ad referral.AdInfo) string {
	if ad.URL == "" {
		return "Sem Link"
	}
	return ad.URL
}

// missionaryPair renders the first two missionary names for the referrer
// confirmation ("Elder Silva e Elder Souza").
func missionaryPair(missionaries []string) string {
	switch len(missionaries) {
	case 0:
		return ""
	case 1:
		return missionaries[0]
	default:
		return missionaries[0] + " e " + missionaries[1]
	}
}

// primaryPhone is the phone of the primary contact (index 0).
func primaryPhone(area crm.AreaInfo) string {
	if len(area.Phones) == 0 {
		return ""
	}
	return area.Phones[0]
}
