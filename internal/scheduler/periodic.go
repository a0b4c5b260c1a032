package scheduler

import (
	"fmt"
	"time"

	"referral_backend/platform/config"
	"referral_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// Periodic enqueues the sweep task on a fixed interval.
type Periodic struct {
	scheduler *asynq.Scheduler
	log       *logger.Logger
}

func NewPeriodic(cfg config.SchedulerConfig, log *logger.Logger) (*Periodic, error) {
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

	interval := cfg.GetSweepInterval()
	if interval < time.Minute {
		interval = 30 * time.Minute
	}

	sched := asynq.NewScheduler(opt, &asynq.SchedulerOpts{})

	if _, err := sched.Register(
		fmt.Sprintf("@every %s", interval),
		NewReferralSweepTask(),
		asynq.Queue(queue),
		asynq.MaxRetry(0),
	); err != nil {
		return nil, err
	}

	return &Periodic{scheduler: sched, log: log}, nil
}

func (p *Periodic) Run() {
	if p == nil || p.scheduler == nil {
		return
	}
	if err := p.scheduler.Run(); err != nil {
		p.log.Error("periodic scheduler stopped", "error", err)
	}
}

func (p *Periodic) Shutdown() {
	if p == nil || p.scheduler == nil {
		return
	}
	p.scheduler.Shutdown()
}
