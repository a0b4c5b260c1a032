// Package adinfo looks up the ad metadata behind a referral's utm tag.
package adinfo

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"referral_backend/internal/referral"
	"referral_backend/platform/config"
	"referral_backend/platform/logger"
)

// Client fetches ad information from the configured lookup service.
type Client struct {
	enabled bool
	url     string
	http    *http.Client
	log     *logger.Logger
}

// NewClient builds the lookup client. A disabled or unset configuration
// yields a client whose lookups always return the empty AdInfo.
func NewClient(cfg config.AdInfoConfig, log *logger.Logger) *Client {
	return &Client{
		enabled: cfg.IsAdInfoEnabled(),
		url:     cfg.GetAdInfoURL(),
		http:    &http.Client{Timeout: 10 * time.Second},
		log:     log,
	}
}

// Lookup resolves ad metadata for a utm tag. Lookup failures are logged and
// degrade to the empty AdInfo; ad metadata is never worth failing a referral.
func (c *Client) Lookup(ctx context.Context, utm string) referral.AdInfo {
	if !c.enabled {
		return referral.AdInfo{}
	}

	query := url.Values{}
	query.Set("utm", utm)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url+"?"+query.Encode(), nil)
	if err != nil {
		return referral.AdInfo{}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn("ad info lookup failed", "utm", utm, "error", err)
		return referral.AdInfo{}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		c.log.Warn("ad info lookup returned error status", "utm", utm, "status", resp.StatusCode)
		return referral.AdInfo{}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return referral.AdInfo{}
	}

	var info referral.AdInfo
	if err := json.Unmarshal(data, &info); err != nil {
		c.log.Warn("ad info response malformed", "utm", utm, "error", err)
		return referral.AdInfo{}
	}
	return info
}
