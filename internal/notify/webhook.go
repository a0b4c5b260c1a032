package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"referral_backend/internal/crm"
	"referral_backend/internal/referral"
	"referral_backend/platform/logger"
)

const (
	// placeholder used for area and missionary phone when no area resolved
	missingFieldPlaceholder = "-"
	// source tag for referrals that arrived through a lead ad
	leadAdSourceTag = "Facebook/Instagram"
)

// WebhookSink posts each resolved referral to the configured external
// webhook. All fields travel as URL query parameters on an empty-bodied
// POST, which is what the receiving side expects.
type WebhookSink struct {
	url      string
	siteHost string
	http     *http.Client
	log      *logger.Logger
}

// NewWebhookSink creates the sink, or nil when no webhook URL is configured.
func NewWebhookSink(webhookURL, siteHost string, log *logger.Logger) *WebhookSink {
	if strings.TrimSpace(webhookURL) == "" {
		return nil
	}
	return &WebhookSink{
		url:      webhookURL,
		siteHost: siteHost,
		http:     &http.Client{Timeout: 10 * time.Second},
		log:      log,
	}
}

// Post sends the referral to the webhook. A nil area produces placeholder
// values for the area and missionary phone fields; the call still happens.
func (w *WebhookSink) Post(ctx context.Context, ref referral.Referral, area *crm.AreaInfo, ad referral.AdInfo) error {
	areaName := missingFieldPlaceholder
	missionaryPhone := missingFieldPlaceholder
	if area != nil {
		areaName = area.Name
		if p := primaryPhone(*area); p != "" {
			missionaryPhone = p
		}
	}

	source := w.siteHost
	if ref.FromLeadAd {
		source = leadAdSourceTag
	}

	query := url.Values{}
	query.Set("name", ref.Name)
	query.Set("email", ref.Email)
	query.Set("phone", ref.PhoneDigits)
	query.Set("address", ref.Address)
	query.Set("utm", ref.UTM)
	query.Set("description", ad.Description)
	query.Set("area", areaName)
	query.Set("missionaryPhone", missionaryPhone)
	query.Set("time", ref.SubmittedAt)
	query.Set("source", source)

	endpoint := w.url + "?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return err
	}

	resp, err := w.http.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("webhook returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	w.log.Info("webhook posted", "area", areaName)
	return nil
}
