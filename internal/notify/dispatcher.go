package notify

import (
	"context"
	"errors"

	"referral_backend/internal/crm"
	"referral_backend/internal/referral"
	"referral_backend/platform/config"
	"referral_backend/platform/logger"
)

// Dispatcher fans one resolved referral out to the active messaging channel
// and the outbound webhook. Both sides tolerate a missing area: messaging is
// suppressed, the webhook posts placeholders.
type Dispatcher struct {
	channel Channel
	webhook *WebhookSink
	log     *logger.Logger
}

// NewDispatcher selects the messaging channel and webhook sink from
// configuration once; dispatches reuse that selection.
func NewDispatcher(cfg config.NotifyConfig, log *logger.Logger) *Dispatcher {
	return &Dispatcher{
		channel: SelectChannel(cfg, log),
		webhook: NewWebhookSink(cfg.GetOutboundWebhookURL(), cfg.GetSiteHost(), log),
		log:     log,
	}
}

// NewDispatcherWith wires explicit collaborators; used by tests.
func NewDispatcherWith(channel Channel, webhook *WebhookSink, log *logger.Logger) *Dispatcher {
	return &Dispatcher{channel: channel, webhook: webhook, log: log}
}

// Dispatch sends the notifications for one referral. Messaging failures are
// logged and never prevent the webhook post. The returned error aggregates
// failures for observability; callers decide whether it fails their task.
func (d *Dispatcher) Dispatch(ctx context.Context, ref referral.Referral, area *crm.AreaInfo, ad referral.AdInfo) error {
	var errs []error

	if area != nil && d.channel != nil {
		if d.channel.ConfirmReferrer() {
			if err := d.channel.SendReferrerConfirmation(ctx, ref, *area); err != nil {
				d.log.Warn("referrer confirmation failed", "channel", d.channel.Name(), "error", err)
				errs = append(errs, err)
			}
		}
		if err := d.channel.SendMissionaryAlert(ctx, ref, *area, ad); err != nil {
			d.log.Warn("missionary alert failed", "channel", d.channel.Name(), "error", err)
			errs = append(errs, err)
		}
	}

	if d.webhook != nil {
		if err := d.webhook.Post(ctx, ref, area, ad); err != nil {
			d.log.Warn("webhook post failed", "error", err)
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
