// Package logger provides structured logging infrastructure for the application.
// This is part of the platform layer and contains no business logic.
package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

// Context key types for storing values in context
type contextKey string

const (
	// RequestIDKey is the context key for request ID
	RequestIDKey contextKey = "request_id"
	// SubmissionIDKey is the context key for the intake submission ID
	SubmissionIDKey contextKey = "submission_id"
)

// Logger wraps slog.Logger for structured logging
type Logger struct {
	*slog.Logger
}

// New creates a new logger based on environment
func New(env string) *Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	if strings.EqualFold(env, "development") {
		opts.Level = slog.LevelDebug
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithContext returns a logger with context values extracted.
// Supports request_id and submission_id from context.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if ctx == nil {
		return l
	}

	newLogger := l

	if requestID, ok := ctx.Value(RequestIDKey).(string); ok && requestID != "" {
		newLogger = &Logger{
			Logger: newLogger.With(slog.String("request_id", requestID)),
		}
	}

	if submissionID, ok := ctx.Value(SubmissionIDKey).(string); ok && submissionID != "" {
		newLogger = &Logger{
			Logger: newLogger.With(slog.String("submission_id", submissionID)),
		}
	}

	return newLogger
}

// HTTPRequest logs an HTTP request
func (l *Logger) HTTPRequest(method, path string, status int, latencyMs float64, clientIP string) {
	l.Info("http_request",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", status),
		slog.Float64("latency_ms", latencyMs),
		slog.String("client_ip", clientIP),
	)
}

// CRMAuth logs authentication attempts against the referral service.
func (l *Logger) CRMAuth(username string, success bool, reason string) {
	if success {
		l.Info("crm_auth",
			slog.String("username", username),
			slog.Bool("success", success),
		)
	} else {
		l.Warn("crm_auth",
			slog.String("username", username),
			slog.Bool("success", success),
			slog.String("reason", reason),
		)
	}
}

// TaskError logs a failed background task.
func (l *Logger) TaskError(taskType string, err error) {
	l.Error("task_error",
		slog.String("task", taskType),
		slog.String("error", err.Error()),
	)
}

// SweepResult logs the outcome of a re-assignment sweep.
func (l *Logger) SweepResult(assigned, skipped int) {
	l.Info("sweep_complete",
		slog.Int("assigned", assigned),
		slog.Int("skipped", skipped),
	)
}

// RateLimitExceeded logs rate limit events
func (l *Logger) RateLimitExceeded(clientIP, path string) {
	l.Warn("rate_limit_exceeded",
		slog.String("client_ip", clientIP),
		slog.String("path", path),
	)
}
