package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"referral_backend/internal/referral"
	"referral_backend/platform/logger"
)

type testSMSConfig struct {
	sid     string
	baseURL string
	confirm bool
}

func (c testSMSConfig) GetSMSAccountSID() string    { return c.sid }
func (c testSMSConfig) GetSMSAuthToken() string     { return "sms-token" }
func (c testSMSConfig) GetSMSFromNumber() string    { return "+5511000000000" }
func (c testSMSConfig) GetSMSAPIBaseURL() string    { return c.baseURL }
func (c testSMSConfig) GetSMSRegion() string        { return "BR" }
func (c testSMSConfig) GetSMSConfirmReferrer() bool { return c.confirm }
func (c testSMSConfig) IsSMSEnabled() bool          { return c.sid != "" }

func TestNewSMSChannel_DisabledWithoutCredentials(t *testing.T) {
	if ch := NewSMSChannel(testSMSConfig{}, logger.New("test")); ch != nil {
		t.Fatal("expected nil channel without account sid")
	}
}

func TestSendMissionaryAlert_TwilioFormPost(t *testing.T) {
	var forms []url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/2010-04-01/Accounts/AC123/Messages.json" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		sid, token, ok := r.BasicAuth()
		if !ok || sid != "AC123" || token != "sms-token" {
			t.Errorf("unexpected basic auth %q/%q", sid, token)
		}
		if got := r.Header.Get("Content-Type"); got != "application/x-www-form-urlencoded" {
			t.Errorf("unexpected content type %q", got)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("bad form body: %v", err)
		}
		forms = append(forms, r.PostForm)
		w.WriteHeader(http.StatusCreated)
	}))
	t.Cleanup(server.Close)

	channel := NewSMSChannel(testSMSConfig{sid: "AC123", baseURL: server.URL}, logger.New("test"))
	if channel == nil {
		t.Fatal("expected enabled channel")
	}

	area := *resolvedArea()
	area.Phones = []string{"5511912345678", "5511987650000"}

	err := channel.SendMissionaryAlert(context.Background(), mariaReferral(), area, referral.AdInfo{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(forms) != 2 {
		t.Fatalf("expected one text per missionary phone, got %d", len(forms))
	}

	first := forms[0]
	if first.Get("To") != "+5511912345678" {
		t.Fatalf("expected E.164 recipient, got %q", first.Get("To"))
	}
	if first.Get("From") != "+5511000000000" {
		t.Fatalf("unexpected sender %q", first.Get("From"))
	}

	body := first.Get("Body")
	if !strings.Contains(body, "Vila Mariana") || !strings.Contains(body, "Maria Santos") {
		t.Fatalf("body missing area or referral name: %q", body)
	}
	if !strings.Contains(body, "11987654321") || !strings.Contains(body, "25/08/2026 14:30:00") {
		t.Fatalf("body missing phone or submission time: %q", body)
	}
	if !strings.Contains(body, "Sem Link") {
		t.Fatalf("expected link placeholder without ad url, got %q", body)
	}

	if forms[1].Get("To") != "+5511987650000" {
		t.Fatalf("expected second phone as recipient, got %q", forms[1].Get("To"))
	}
}

func TestSendReferrerConfirmation_SMSBody(t *testing.T) {
	var form url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("bad form body: %v", err)
		}
		form = r.PostForm
		w.WriteHeader(http.StatusCreated)
	}))
	t.Cleanup(server.Close)

	channel := NewSMSChannel(testSMSConfig{sid: "AC123", baseURL: server.URL, confirm: true}, logger.New("test"))
	if !channel.ConfirmReferrer() {
		t.Fatal("expected confirmation enabled")
	}

	if err := channel.SendReferrerConfirmation(context.Background(), mariaReferral(), *resolvedArea()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if form.Get("To") != "+5511987654321" {
		t.Fatalf("confirmation must go to the referrer, got %q", form.Get("To"))
	}
	body := form.Get("Body")
	if !strings.Contains(body, "Maria Santos") || !strings.Contains(body, "Elder Silva e Elder Souza") {
		t.Fatalf("body missing name or missionary pair: %q", body)
	}
	if !strings.Contains(body, "5511912345678") {
		t.Fatalf("body missing primary phone: %q", body)
	}
}

func TestSendMissionaryAlert_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(server.Close)

	channel := NewSMSChannel(testSMSConfig{sid: "AC123", baseURL: server.URL}, logger.New("test"))
	err := channel.SendMissionaryAlert(context.Background(), mariaReferral(), *resolvedArea(), referral.AdInfo{})
	if err == nil {
		t.Fatal("expected error for rejected send")
	}
}
