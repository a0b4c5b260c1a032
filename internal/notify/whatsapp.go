package notify

import (
	"bytes"
	"context"
	"encoding/json"
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
)

// WhatsAppChannel sends templated messages through the WhatsApp Cloud API.
type WhatsAppChannel struct {
	baseURL         string
	accessToken     string
	phoneNumberID   string
	confirmTemplate string
	alertTemplate   string
	locale          string
	confirmReferrer bool
	http            *http.Client
	log             *logger.Logger
}

// NewWhatsAppChannel creates the WhatsApp channel, or nil when the access
// token or sender id is not configured.
func NewWhatsAppChannel(cfg config.WhatsAppConfig, log *logger.Logger) *WhatsAppChannel {
	if !cfg.IsWhatsAppEnabled() {
		return nil
	}

	return &WhatsAppChannel{
		baseURL:         strings.TrimRight(cfg.GetWhatsAppGraphBaseURL(), "/"),
		accessToken:     cfg.GetWhatsAppAccessToken(),
		phoneNumberID:   cfg.GetWhatsAppPhoneNumberID(),
		confirmTemplate: cfg.GetWhatsAppConfirmTemplate(),
		alertTemplate:   cfg.GetWhatsAppAlertTemplate(),
		locale:          cfg.GetWhatsAppLocale(),
		confirmReferrer: cfg.GetWhatsAppConfirmReferrer(),
		http:            &http.Client{Timeout: 10 * time.Second},
		log:             log,
	}
}

// Name identifies the channel in logs.
func (c *WhatsAppChannel) Name() string { return "whatsapp" }

// ConfirmReferrer reports whether the referrer confirmation is enabled.
func (c *WhatsAppChannel) ConfirmReferrer() bool { return c.confirmReferrer }

// SendReferrerConfirmation sends the registration confirmation template to
// the referrer, naming the first two missionaries and the primary phone.
func (c *WhatsAppChannel) SendReferrerConfirmation(ctx context.Context, ref referral.Referral, area crm.AreaInfo) error {
	body := []string{ref.Name, missionaryPair(area.Missionaries), primaryPhone(area)}
	return c.sendTemplate(ctx, ref.PhoneDigits, c.confirmTemplate, body, "")
}

// SendMissionaryAlert sends the referral-received template to each
// missionary phone number, with a clickable-address URL button.
func (c *WhatsAppChannel) SendMissionaryAlert(ctx context.Context, ref referral.Referral, area crm.AreaInfo, ad referral.AdInfo) error {
	body := []string{
		area.Name,
		ref.Name,
		ref.PhoneDigits,
		ref.Address,
		ref.SubmittedAt,
		adLink(ad),
	}
	button := url.QueryEscape(ref.Address)

	var errs []error
	for _, number := range area.Phones {
		if err := c.sendTemplate(ctx, number, c.alertTemplate, body, button); err != nil {
			c.log.Warn("whatsapp alert failed", "to", number, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type templateRequest struct {
	MessagingProduct string          `json:"messaging_product"`
	To               string          `json:"to"`
	Type             string          `json:"type"`
	Template         templatePayload `json:"template"`
}

type templatePayload struct {
	Name       string              `json:"name"`
	Language   templateLanguage    `json:"language"`
	Components []templateComponent `json:"components"`
}

type templateLanguage struct {
	Code string `json:"code"`
}

type templateComponent struct {
	Type       string              `json:"type"`
	SubType    string              `json:"sub_type,omitempty"`
	Index      string              `json:"index,omitempty"`
	Parameters []templateParameter `json:"parameters"`
}

type templateParameter struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func (c *WhatsAppChannel) sendTemplate(ctx context.Context, to, template string, bodyParams []string, buttonParam string) error {
	params := make([]templateParameter, 0, len(bodyParams))
	for _, text := range bodyParams {
		params = append(params, templateParameter{Type: "text", Text: text})
	}

	components := []templateComponent{
		{Type: "body", Parameters: params},
	}
	if buttonParam != "" {
		components = append(components, templateComponent{
			Type:    "button",
			SubType: "url",
			Index:   "0",
			Parameters: []templateParameter{
				{Type: "text", Text: buttonParam},
			},
		})
	}

	payload := templateRequest{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             "template",
		Template: templatePayload{
			Name:       template,
			Language:   templateLanguage{Code: c.locale},
			Components: components,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal whatsapp payload: %w", err)
	}

	endpoint := fmt.Sprintf("%s/%s/messages", c.baseURL, c.phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("whatsapp request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("whatsapp api returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	c.log.Info("whatsapp template sent", "template", template, "to", to)
	return nil
}
