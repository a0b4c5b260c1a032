package scheduler

import (
	"context"
	"fmt"
	"strings"

	"referral_backend/internal/adinfo"
	"referral_backend/internal/crm"
	"referral_backend/internal/notify"
	"referral_backend/internal/referral"
	"referral_backend/platform/config"
	"referral_backend/platform/logger"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/semaphore"
)

// CRMFactory opens a freshly authenticated client. Each task invocation gets
// its own session so a retry never reuses an expired login.
type CRMFactory func(ctx context.Context) (*crm.Client, error)

// StatusRecorder is the audit hook for submission state transitions. A nil
// recorder disables auditing.
type StatusRecorder interface {
	UpdateStatus(ctx context.Context, submissionID, status, note string) error
}

type Worker struct {
	server     *asynq.Server
	mux        *asynq.ServeMux
	newCRM     CRMFactory
	dispatcher *notify.Dispatcher
	ads        *adinfo.Client
	client     *Client
	recorder   StatusRecorder
	sweepGuard *semaphore.Weighted
	log        *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, newCRM CRMFactory, dispatcher *notify.Dispatcher, ads *adinfo.Client, client *Client, recorder StatusRecorder, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:     server,
		mux:        mux,
		newCRM:     newCRM,
		dispatcher: dispatcher,
		ads:        ads,
		client:     client,
		recorder:   recorder,
		sweepGuard: semaphore.NewWeighted(1),
		log:        log,
	}

	mux.HandleFunc(TaskReferralCreate, w.handleReferralCreate)
	mux.HandleFunc(TaskReferralNotify, w.handleReferralNotify)
	mux.HandleFunc(TaskReferralSweep, w.handleReferralSweep)

	return w, nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

func (w *Worker) handleReferralCreate(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseReferralCreatePayload(task)
	if err != nil {
		return err
	}

	client, err := w.newCRM(ctx)
	if err != nil {
		w.log.TaskError(TaskReferralCreate, err)
		return err
	}

	// The ad description is the referral note, so the lookup happens
	// before the submit.
	ad := w.lookupAd(ctx, payload.Referral)

	firstName, lastName := splitName(payload.Referral.Name)
	area, err := client.CreateAndSendReference(ctx, crm.ReferenceInput{
		FirstName: firstName,
		LastName:  lastName,
		Address:   payload.Referral.Address,
		Phone:     payload.Referral.PhoneDigits,
		Email:     payload.Referral.Email,
		Type:      payload.Referral.Type,
		Note:      ad.Description,
	})
	if err != nil {
		w.recordStatus(ctx, payload.SubmissionID, "failed", err.Error())
		return err
	}

	w.recordStatus(ctx, payload.SubmissionID, "created", "")

	// The referral is already submitted at this point. Failing the task now
	// would retry it into a duplicate, so a lost notification is the lesser
	// harm.
	if err := w.client.EnqueueReferralNotify(ctx, NotifyPayload{
		SubmissionID: payload.SubmissionID,
		Referral:     payload.Referral,
		Area:         area,
		Ad:           ad,
	}); err != nil {
		w.log.TaskError(TaskReferralCreate, err)
		w.recordStatus(ctx, payload.SubmissionID, "failed", err.Error())
	}
	return nil
}

func (w *Worker) handleReferralNotify(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseReferralNotifyPayload(task)
	if err != nil {
		w.log.TaskError(TaskReferralNotify, err)
		return nil
	}

	// Message sends are not idempotent; failures are recorded but the task
	// is never retried.
	if err := w.dispatcher.Dispatch(ctx, payload.Referral, payload.Area, payload.Ad); err != nil {
		w.log.TaskError(TaskReferralNotify, err)
		w.recordStatus(ctx, payload.SubmissionID, "failed", err.Error())
		return nil
	}

	w.recordStatus(ctx, payload.SubmissionID, "notified", "")
	return nil
}

func (w *Worker) handleReferralSweep(ctx context.Context, task *asynq.Task) error {
	if !w.sweepGuard.TryAcquire(1) {
		w.log.Info("sweep already running, skipping")
		return nil
	}
	defer w.sweepGuard.Release(1)

	client, err := w.newCRM(ctx)
	if err != nil {
		w.log.TaskError(TaskReferralSweep, err)
		return err
	}

	_, _, err = client.AssignReferrals(ctx)
	if err != nil {
		w.log.TaskError(TaskReferralSweep, err)
	}
	return err
}

func (w *Worker) lookupAd(ctx context.Context, ref referral.Referral) referral.AdInfo {
	if w.ads == nil || ref.UTM == "" {
		return referral.AdInfo{}
	}
	return w.ads.Lookup(ctx, ref.UTM)
}

func (w *Worker) recordStatus(ctx context.Context, submissionID, status, note string) {
	if w.recorder == nil || submissionID == "" {
		return
	}
	if err := w.recorder.UpdateStatus(ctx, submissionID, status, note); err != nil {
		w.log.Warn("submission status update failed", "submissionId", submissionID, "status", status, "error", err)
	}
}

func splitName(full string) (string, string) {
	parts := strings.Fields(strings.TrimSpace(full))
	if len(parts) == 0 {
		return "", ""
	}
	if len(parts) == 1 {
		return parts[0], ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}
