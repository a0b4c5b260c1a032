package intake

import (
	"net/http"
	"time"

	"referral_backend/internal/referral"
	"referral_backend/internal/scheduler"
	"referral_backend/platform/config"
	"referral_backend/platform/httpkit"
	"referral_backend/platform/logger"
	"referral_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type FormSubmissionRequest struct {
	Fields       map[string]string `json:"fields" validate:"required"`
	ReferralType *int              `json:"referralType"`
}

type Handler struct {
	cfg       config.FormConfig
	validator *validator.Validator
	enqueuer  scheduler.Enqueuer
	repo      *Repository
	log       *logger.Logger
}

func NewHandler(cfg config.FormConfig, v *validator.Validator, enqueuer scheduler.Enqueuer, repo *Repository, log *logger.Logger) *Handler {
	return &Handler{
		cfg:       cfg,
		validator: v,
		enqueuer:  enqueuer,
		repo:      repo,
		log:       log,
	}
}

// SubmitForm accepts a referral form and hands it to the pipeline. The
// response is 202 regardless of what happens downstream; the submitter
// never waits on the external system.
func (h *Handler) SubmitForm(c *gin.Context) {
	var req FormSubmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	typeCode := h.cfg.GetDefaultReferralType()
	if req.ReferralType != nil {
		typeCode = *req.ReferralType
	}
	refType, err := referral.ParseType(typeCode)
	if httpkit.HandleError(c, err) {
		return
	}

	ref, err := NormalizeForm(req.Fields, h.cfg.GetFormMapping(), refType, time.Now())
	if httpkit.HandleError(c, err) {
		return
	}

	submissionID := uuid.NewString()
	h.repo.RecordSubmission(c.Request.Context(), submissionID, ref)

	if err := h.enqueuer.EnqueueReferralCreate(c.Request.Context(), scheduler.CreatePayload{
		SubmissionID: submissionID,
		Referral:     ref,
	}); err != nil {
		h.log.Error("referral enqueue failed", "submissionId", submissionID, "error", err)
		httpkit.Error(c, http.StatusInternalServerError, "could not accept submission", nil)
		return
	}

	httpkit.Accepted(c, gin.H{"submissionId": submissionID})
}
