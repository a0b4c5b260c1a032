package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"referral_backend/internal/crm"
	"referral_backend/internal/referral"
	"referral_backend/platform/config"
	"referral_backend/platform/logger"
	"referral_backend/platform/phone"
)

// SMSChannel is the fallback provider: one freeform text line per recipient
// through a Twilio-style messages API.
type SMSChannel struct {
	accountSID      string
	authToken       string
	from            string
	baseURL         string
	region          string
	confirmReferrer bool
	http            *http.Client
	log             *logger.Logger
}

// NewSMSChannel creates the SMS channel, or nil when the account id, auth
// token, or sender number is not configured.
func NewSMSChannel(cfg config.SMSConfig, log *logger.Logger) *SMSChannel {
	if !cfg.IsSMSEnabled() {
		return nil
	}

	return &SMSChannel{
		accountSID:      cfg.GetSMSAccountSID(),
		authToken:       cfg.GetSMSAuthToken(),
		from:            cfg.GetSMSFromNumber(),
		baseURL:         strings.TrimRight(cfg.GetSMSAPIBaseURL(), "/"),
		region:          cfg.GetSMSRegion(),
		confirmReferrer: cfg.GetSMSConfirmReferrer(),
		http:            &http.Client{Timeout: 10 * time.Second},
		log:             log,
	}
}

// Name identifies the channel in logs.
func (c *SMSChannel) Name() string { return "sms" }

// ConfirmReferrer reports whether the referrer confirmation is enabled.
// Off by default for SMS.
func (c *SMSChannel) ConfirmReferrer() bool { return c.confirmReferrer }

// SendReferrerConfirmation texts the registration confirmation to the
// referrer.
func (c *SMSChannel) SendReferrerConfirmation(ctx context.Context, ref referral.Referral, area crm.AreaInfo) error {
	body := fmt.Sprintf(
		"Ola %s! Seu cadastro foi recebido. Os missionarios %s entrarao em contato. Telefone: %s",
		ref.Name, missionaryPair(area.Missionaries), primaryPhone(area),
	)
	return c.sendText(ctx, ref.PhoneDigits, body)
}

// SendMissionaryAlert texts the referral details to each missionary phone.
func (c *SMSChannel) SendMissionaryAlert(ctx context.Context, ref referral.Referral, area crm.AreaInfo, ad referral.AdInfo) error {
	body := fmt.Sprintf(
		"Nova referencia (%s): %s, tel %s, %s, %s. Link: %s",
		area.Name, ref.Name, ref.PhoneDigits, ref.Address, ref.SubmittedAt, adLink(ad),
	)

	var errs []error
	for _, number := range area.Phones {
		if err := c.sendText(ctx, number, body); err != nil {
			c.log.Warn("sms alert failed", "to", number, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *SMSChannel) sendText(ctx context.Context, to, body string) error {
	form := url.Values{}
	form.Set("To", phone.NormalizeE164(to, c.region))
	form.Set("From", c.from)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", c.baseURL, c.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.accountSID, c.authToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("sms request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("sms api returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	c.log.Info("sms sent", "to", to)
	return nil
}
