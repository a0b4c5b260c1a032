package intake

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"referral_backend/internal/referral"
	"referral_backend/internal/scheduler"
	"referral_backend/platform/config"
	"referral_backend/platform/logger"
	"referral_backend/platform/phone"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// GraphClient fetches a single lead's field data from the Graph API.
type GraphClient struct {
	cfg  config.LeadAdsConfig
	http *http.Client
}

func NewGraphClient(cfg config.LeadAdsConfig) *GraphClient {
	return &GraphClient{
		cfg:  cfg,
		http: &http.Client{Timeout: 15 * time.Second},
	}
}

type leadField struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

type leadResponse struct {
	ID        string      `json:"id"`
	FieldData []leadField `json:"field_data"`
}

// FetchLead returns the lead's field data keyed by lowercased field name.
func (g *GraphClient) FetchLead(ctx context.Context, leadID string) (map[string]string, error) {
	endpoint := fmt.Sprintf("%s/%s?access_token=%s",
		strings.TrimSuffix(g.cfg.GetGraphBaseURL(), "/"),
		url.PathEscape(leadID),
		url.QueryEscape(g.cfg.GetLeadAdsAccessToken()),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := g.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("lead fetch returned status %d", resp.StatusCode)
	}

	var lead leadResponse
	if err := json.Unmarshal(body, &lead); err != nil {
		return nil, err
	}

	fields := make(map[string]string, len(lead.FieldData))
	for _, f := range lead.FieldData {
		if len(f.Values) == 0 {
			continue
		}
		fields[strings.ToLower(f.Name)] = f.Values[0]
	}
	return fields, nil
}

type LeadAdsHandler struct {
	cfg      config.LeadAdsConfig
	form     config.FormConfig
	graph    *GraphClient
	enqueuer scheduler.Enqueuer
	repo     *Repository
	log      *logger.Logger
}

func NewLeadAdsHandler(cfg config.LeadAdsConfig, form config.FormConfig, graph *GraphClient, enqueuer scheduler.Enqueuer, repo *Repository, log *logger.Logger) *LeadAdsHandler {
	return &LeadAdsHandler{
		cfg:      cfg,
		form:     form,
		graph:    graph,
		enqueuer: enqueuer,
		repo:     repo,
		log:      log,
	}
}

// Verify answers the webhook subscription handshake. The challenge is echoed
// back as an integer, which is what the platform expects.
func (h *LeadAdsHandler) Verify(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode != "subscribe" || token == "" || token != h.cfg.GetLeadAdsVerifyToken() {
		c.String(http.StatusUnauthorized, "verification failed")
		return
	}

	n, err := strconv.Atoi(challenge)
	if err != nil {
		c.String(http.StatusBadRequest, "bad challenge")
		return
	}
	c.String(http.StatusOK, strconv.Itoa(n))
}

type leadChange struct {
	Value struct {
		LeadgenID string `json:"leadgen_id"`
	} `json:"value"`
}

type leadEntry struct {
	Changes []leadChange `json:"changes"`
}

type leadEvent struct {
	Entry []leadEntry `json:"entry"`
}

// Receive handles lead creation events. Each leadgen id is fetched from the
// Graph API and enqueued as a referral. The webhook always gets a 200 so the
// platform does not keep redelivering.
func (h *LeadAdsHandler) Receive(c *gin.Context) {
	var event leadEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		c.String(http.StatusOK, "EVENT_RECEIVED")
		return
	}

	ctx := c.Request.Context()
	for _, entry := range event.Entry {
		for _, change := range entry.Changes {
			if change.Value.LeadgenID == "" {
				continue
			}
			if err := h.processLead(ctx, change.Value.LeadgenID); err != nil {
				h.log.Error("lead processing failed", "leadId", change.Value.LeadgenID, "error", err)
			}
		}
	}

	c.String(http.StatusOK, "EVENT_RECEIVED")
}

func (h *LeadAdsHandler) processLead(ctx context.Context, leadID string) error {
	fields, err := h.graph.FetchLead(ctx, leadID)
	if err != nil {
		return err
	}

	refType, err := referral.ParseType(h.form.GetDefaultReferralType())
	if err != nil {
		return err
	}

	ref, err := leadToReferral(fields, refType, time.Now())
	if err != nil {
		return err
	}

	submissionID := uuid.NewString()
	h.repo.RecordSubmission(ctx, submissionID, ref)

	return h.enqueuer.EnqueueReferralCreate(ctx, scheduler.CreatePayload{
		SubmissionID: submissionID,
		Referral:     ref,
	})
}

// leadToReferral maps Graph field data onto a referral. Lead forms vary in
// how they name fields, so each slot tries the common spellings.
func leadToReferral(fields map[string]string, refType referral.Type, now time.Time) (referral.Referral, error) {
	name := firstOf(fields, "full_name", "name", "nome")
	rawPhone := firstOf(fields, "phone_number", "phone", "telefone")

	if name == "" {
		return referral.Referral{}, fmt.Errorf("lead has no name field")
	}
	digits := phone.Digits(rawPhone)
	if digits == "" {
		return referral.Referral{}, fmt.Errorf("lead has no phone field")
	}

	address := composeAddress(
		firstOf(fields, "street_address", "address", "rua", "endereco"),
		firstOf(fields, "house_number", "numero"),
		firstOf(fields, "city", "cidade"),
		firstOf(fields, "state", "estado"),
		firstOf(fields, "zip_code", "post_code", "cep"),
	)

	return referral.Referral{
		Name:        name,
		Phone:       rawPhone,
		PhoneDigits: digits,
		Email:       firstOf(fields, "email", "e-mail"),
		Address:     address,
		UTM:         firstOf(fields, "utm", "utm_source", "ad_id"),
		Type:        refType,
		SubmittedAt: now.Format(referral.SubmissionTimeLayout),
		FromLeadAd:  true,
	}, nil
}

func firstOf(fields map[string]string, keys ...string) string {
	for _, key := range keys {
		if v := strings.TrimSpace(fields[key]); v != "" {
			return v
		}
	}
	return ""
}
