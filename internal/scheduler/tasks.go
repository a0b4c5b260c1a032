package scheduler

import (
	"encoding/json"

	"referral_backend/internal/crm"
	"referral_backend/internal/referral"

	"github.com/hibiken/asynq"
)

const TaskReferralCreate = "referral:create"

const TaskReferralNotify = "referral:notify"

const TaskReferralSweep = "referral:sweep"

// CreatePayload carries everything the create/resolve stage needs. Tasks are
// stateless between enqueue and execution; nothing is re-fetched.
type CreatePayload struct {
	SubmissionID string            `json:"submissionId"`
	Referral     referral.Referral `json:"referral"`
}

// NotifyPayload carries the resolved output of the create stage into the
// notify stage. Area is nil when the address did not resolve.
type NotifyPayload struct {
	SubmissionID string            `json:"submissionId"`
	Referral     referral.Referral `json:"referral"`
	Area         *crm.AreaInfo     `json:"area"`
	Ad           referral.AdInfo   `json:"ad"`
}

func NewReferralCreateTask(payload CreatePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReferralCreate, data), nil
}

func ParseReferralCreatePayload(task *asynq.Task) (CreatePayload, error) {
	var payload CreatePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return CreatePayload{}, err
	}
	return payload, nil
}

func NewReferralNotifyTask(payload NotifyPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReferralNotify, data), nil
}

func ParseReferralNotifyPayload(task *asynq.Task) (NotifyPayload, error) {
	var payload NotifyPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return NotifyPayload{}, err
	}
	return payload, nil
}

func NewReferralSweepTask() *asynq.Task {
	return asynq.NewTask(TaskReferralSweep, nil)
}
