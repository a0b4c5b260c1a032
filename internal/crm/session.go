// Package crm implements the client for the referral-manager service:
// the browser-emulating login session, area resolution, and referral
// submission.
package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"regexp"
	"strings"
	"time"

	"referral_backend/platform/apperr"
	"referral_backend/platform/config"
	"referral_backend/platform/logger"

	"golang.org/x/net/publicsuffix"
)

const (
	userAgent      = "referral-manager"
	authCookieName = "oauth_id_token"

	loginPagePath       = "/services/platform/v4/login"
	introspectPath      = "/idp/idx/introspect"
	identifyPath        = "/idp/idx/identify"
	challengeAnswerPath = "/idp/idx/challenge/answer"
)

// The login page embeds the state token in inline javascript, with dashes
// escaped as \x2D.
var stateTokenRe = regexp.MustCompile(`"stateToken":"([^"]+)"`)

// Session holds the authenticated cookie state for one client. Sessions are
// never shared or pooled: each workflow invocation authenticates fresh.
type Session struct {
	cfg       config.CRMConfig
	http      *http.Client
	log       *logger.Logger
	expiresAt time.Time
}

// NewSession creates an unauthenticated session with a fresh cookie jar.
func NewSession(cfg config.CRMConfig, log *logger.Logger) (*Session, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, err
	}

	timeout := cfg.GetCRMTimeout()
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	s := &Session{cfg: cfg, log: log}
	s.http = &http.Client{
		Jar:     jar,
		Timeout: timeout,
		// The login finalization follows redirects; the auth cookie may be
		// set on an intermediate response, so capture it along the chain.
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return fmt.Errorf("stopped after 10 redirects")
			}
			if req.Response != nil {
				s.captureAuthCookie(req.Response)
			}
			return nil
		},
	}
	return s, nil
}

// Authenticate runs the multi-step login sequence against the identity
// provider and records the auth cookie expiry. Any missing field at any step
// is fatal; there is no partial-success retry within a session.
func (s *Session) Authenticate(ctx context.Context) error {
	loginHTML, _, err := s.get(ctx, s.cfg.GetCRMLoginBaseURL()+loginPagePath)
	if err != nil {
		return apperr.Wrap(apperr.KindUnauthorized, "crm.authenticate", err)
	}

	match := stateTokenRe.FindSubmatch(loginHTML)
	if match == nil {
		return authError("state token not present in login page")
	}
	stateToken := strings.ReplaceAll(string(match[1]), `\x2D`, "-")

	idBase := s.cfg.GetCRMIdentityBaseURL()

	if _, _, err := s.postJSON(ctx, idBase+introspectPath, map[string]string{
		"stateToken": stateToken,
	}); err != nil {
		return apperr.Wrap(apperr.KindUnauthorized, "crm.authenticate: introspect", err)
	}

	identifyBody, _, err := s.postJSON(ctx, idBase+identifyPath, map[string]string{
		"identifier":  s.cfg.GetCRMUsername(),
		"stateHandle": stateToken,
	})
	if err != nil {
		return apperr.Wrap(apperr.KindUnauthorized, "crm.authenticate: identify", err)
	}
	var identify struct {
		StateHandle string `json:"stateHandle"`
	}
	if err := json.Unmarshal(identifyBody, &identify); err != nil || identify.StateHandle == "" {
		return authError("identify step returned no state handle")
	}

	challengeBody, _, err := s.postJSON(ctx, idBase+challengeAnswerPath, map[string]interface{}{
		"credentials": map[string]string{"passcode": s.cfg.GetCRMPassword()},
		"stateHandle": identify.StateHandle,
	})
	if err != nil {
		return apperr.Wrap(apperr.KindUnauthorized, "crm.authenticate: challenge", err)
	}
	var challenge struct {
		Success struct {
			Href string `json:"href"`
		} `json:"success"`
	}
	if err := json.Unmarshal(challengeBody, &challenge); err != nil || challenge.Success.Href == "" {
		return authError("challenge step returned no success redirect")
	}

	if _, _, err := s.get(ctx, challenge.Success.Href); err != nil {
		return apperr.Wrap(apperr.KindUnauthorized, "crm.authenticate: finalize", err)
	}

	if s.expiresAt.IsZero() {
		return authError("auth cookie missing from login response")
	}
	return nil
}

// Expired reports whether the auth cookie's recorded lifetime has passed.
// Informational only; nothing re-authenticates mid-session.
func (s *Session) Expired() bool {
	return time.Now().After(s.expiresAt)
}

// ExpiresAt returns the recorded auth cookie expiry.
func (s *Session) ExpiresAt() time.Time {
	return s.expiresAt
}

func (s *Session) captureAuthCookie(resp *http.Response) {
	for _, ck := range resp.Cookies() {
		if ck.Name == authCookieName && ck.MaxAge > 0 {
			s.expiresAt = time.Now().Add(time.Duration(ck.MaxAge) * time.Second)
		}
	}
}

func authError(message string) error {
	return &apperr.Error{Kind: apperr.KindUnauthorized, Op: "crm.authenticate", Message: message}
}

// ---- shared HTTP plumbing ----

func (s *Session) get(ctx context.Context, url string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, err
	}
	return s.do(req)
}

func (s *Session) postJSON(ctx context.Context, url string, payload interface{}) ([]byte, int, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	return s.do(req)
}

func (s *Session) do(req *http.Request) ([]byte, int, error) {
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	s.captureAuthCookie(resp)

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return data, resp.StatusCode, nil
}

// getJSON fetches a URL and decodes the response body, treating error
// statuses as failures.
func (s *Session) getJSON(ctx context.Context, url string, out interface{}) error {
	body, status, err := s.get(ctx, url)
	if err != nil {
		return err
	}
	if status >= http.StatusBadRequest {
		return apperr.Newf(apperr.KindInternal, "crm request to %s returned status %d", url, status)
	}
	return json.Unmarshal(body, out)
}

// postJSONStatus posts a JSON payload and returns the response status.
// Transport errors are returned as-is so callers can apply the
// assume-success policy to them.
func (s *Session) postJSONStatus(ctx context.Context, url string, payload interface{}) (int, error) {
	_, status, err := s.postJSON(ctx, url, payload)
	return status, err
}
