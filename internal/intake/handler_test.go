package intake

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"referral_backend/internal/referral"
	"referral_backend/internal/scheduler"
	"referral_backend/platform/config"
	"referral_backend/platform/logger"
	"referral_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

type testFormConfig struct{}

func (testFormConfig) GetFormMapping() config.FormMapping { return testMapping }
func (testFormConfig) GetDefaultReferralType() int        { return 23 }

type fakeEnqueuer struct {
	payloads []scheduler.CreatePayload
	err      error
}

func (f *fakeEnqueuer) EnqueueReferralCreate(ctx context.Context, payload scheduler.CreatePayload) error {
	if f.err != nil {
		return f.err
	}
	f.payloads = append(f.payloads, payload)
	return nil
}

func newFormRouter(t *testing.T, enqueuer *fakeEnqueuer) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	handler := NewHandler(testFormConfig{}, validator.New(), enqueuer, nil, logger.New("test"))
	router := gin.New()
	router.POST("/api/v1/intake/forms", handler.SubmitForm)
	return router
}

func postForm(t *testing.T, router *gin.Engine, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/intake/forms", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestSubmitForm_AcceptedAndEnqueued(t *testing.T) {
	enqueuer := &fakeEnqueuer{}
	router := newFormRouter(t, enqueuer)

	rec := postForm(t, router, FormSubmissionRequest{
		Fields: map[string]string{
			"your-name":  "Maria Santos",
			"your-phone": "(11) 98765-4321",
			"your-city":  "Cidade",
		},
	})

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(enqueuer.payloads) != 1 {
		t.Fatalf("expected 1 enqueued payload, got %d", len(enqueuer.payloads))
	}
	payload := enqueuer.payloads[0]
	if payload.SubmissionID == "" {
		t.Fatal("expected a submission id")
	}
	if payload.Referral.Name != "Maria Santos" || payload.Referral.PhoneDigits != "11987654321" {
		t.Fatalf("unexpected referral: %+v", payload.Referral)
	}

	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if resp["submissionId"] != payload.SubmissionID {
		t.Fatalf("response submission id %q does not match enqueued %q", resp["submissionId"], payload.SubmissionID)
	}
}

func TestSubmitForm_TypeOverride(t *testing.T) {
	enqueuer := &fakeEnqueuer{}
	router := newFormRouter(t, enqueuer)

	visit := 134
	rec := postForm(t, router, FormSubmissionRequest{
		Fields: map[string]string{
			"your-name":  "Maria",
			"your-phone": "11987654321",
		},
		ReferralType: &visit,
	})

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
	if got := enqueuer.payloads[0].Referral.Type; got != referral.MissionaryVisit {
		t.Fatalf("expected missionary visit type, got %v", got)
	}
}

func TestSubmitForm_UnknownTypeRejected(t *testing.T) {
	enqueuer := &fakeEnqueuer{}
	router := newFormRouter(t, enqueuer)

	unknown := 99
	rec := postForm(t, router, FormSubmissionRequest{
		Fields: map[string]string{
			"your-name":  "Maria",
			"your-phone": "11987654321",
		},
		ReferralType: &unknown,
	})

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown type, got %d", rec.Code)
	}
	if len(enqueuer.payloads) != 0 {
		t.Fatal("rejected submissions must not be enqueued")
	}
}

func TestSubmitForm_MissingPhoneRejected(t *testing.T) {
	enqueuer := &fakeEnqueuer{}
	router := newFormRouter(t, enqueuer)

	rec := postForm(t, router, FormSubmissionRequest{
		Fields: map[string]string{"your-name": "Maria"},
	})

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing phone, got %d", rec.Code)
	}
}
