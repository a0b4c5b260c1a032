package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"referral_backend/internal/adinfo"
	"referral_backend/internal/crm"
	"referral_backend/internal/intake"
	"referral_backend/internal/notify"
	"referral_backend/internal/scheduler"
	"referral_backend/platform/config"
	"referral_backend/platform/db"
	"referral_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting worker", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pool *pgxpool.Pool
	if cfg.DatabaseURL != "" {
		if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
			p, err := db.NewPool(ctx, cfg)
			if err != nil {
				return err
			}
			pool = p
			return nil
		}); err != nil {
			log.Error("failed to connect to database", "error", err)
			panic("failed to connect to database: " + err.Error())
		}
		defer pool.Close()
	}

	queueClient, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize queue client", "error", err)
		panic("failed to initialize queue client: " + err.Error())
	}
	defer func() { _ = queueClient.Close() }()

	dispatcher := notify.NewDispatcher(cfg, log)
	ads := adinfo.NewClient(cfg, log)
	repo := intake.NewRepository(pool, log)

	newCRM := func(ctx context.Context) (*crm.Client, error) {
		return crm.NewClient(ctx, cfg, log)
	}

	worker, err := scheduler.NewWorker(cfg, newCRM, dispatcher, ads, queueClient, repo, log)
	if err != nil {
		log.Error("failed to initialize worker", "error", err)
		panic("failed to initialize worker: " + err.Error())
	}

	periodic, err := scheduler.NewPeriodic(cfg, log)
	if err != nil {
		log.Error("failed to initialize periodic scheduler", "error", err)
		panic("failed to initialize periodic scheduler: " + err.Error())
	}
	go periodic.Run()
	defer periodic.Shutdown()

	worker.Run(ctx)
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
