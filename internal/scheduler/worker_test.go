package scheduler

import (
	"context"
	"errors"
	"testing"

	"referral_backend/internal/crm"
	"referral_backend/internal/referral"
	"referral_backend/platform/logger"

	"golang.org/x/sync/semaphore"
)

func TestSplitName(t *testing.T) {
	first, last := splitName("Maria da Silva Santos")
	if first != "Maria" || last != "da Silva Santos" {
		t.Fatalf("unexpected split: %q / %q", first, last)
	}

	first, last = splitName("Maria")
	if first != "Maria" || last != "" {
		t.Fatalf("unexpected single-name split: %q / %q", first, last)
	}

	first, last = splitName("   ")
	if first != "" || last != "" {
		t.Fatalf("unexpected blank split: %q / %q", first, last)
	}
}

func TestReferralCreateTask_RoundTrip(t *testing.T) {
	in := CreatePayload{
		SubmissionID: "sub-1",
		Referral: referral.Referral{
			Name:        "Maria Santos",
			PhoneDigits: "11987654321",
			Type:        referral.BookOfMormon,
			SubmittedAt: "25/08/2026 14:30:00",
		},
	}

	task, err := NewReferralCreateTask(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if task.Type() != TaskReferralCreate {
		t.Fatalf("unexpected task type %q", task.Type())
	}

	out, err := ParseReferralCreatePayload(task)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.SubmissionID != "sub-1" || out.Referral.Name != "Maria Santos" || out.Referral.Type != referral.BookOfMormon {
		t.Fatalf("payload did not survive round trip: %+v", out)
	}
}

func TestReferralNotifyTask_CarriesNilArea(t *testing.T) {
	task, err := NewReferralNotifyTask(NotifyPayload{SubmissionID: "sub-2", Area: nil})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out, err := ParseReferralNotifyPayload(task)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Area != nil {
		t.Fatalf("expected nil area after round trip, got %+v", out.Area)
	}
}

func TestHandleReferralSweep_SkipsWhileRunning(t *testing.T) {
	calls := 0
	w := &Worker{
		sweepGuard: semaphore.NewWeighted(1),
		log:        logger.New("test"),
		newCRM: func(ctx context.Context) (*crm.Client, error) {
			calls++
			return nil, errors.New("unavailable")
		},
	}

	// Simulate a sweep in flight.
	if !w.sweepGuard.TryAcquire(1) {
		t.Fatal("guard should be free initially")
	}
	if err := w.handleReferralSweep(context.Background(), NewReferralSweepTask()); err != nil {
		t.Fatalf("overlapping sweep must be skipped, got %v", err)
	}
	if calls != 0 {
		t.Fatal("overlapping sweep must not open a session")
	}
	w.sweepGuard.Release(1)

	if err := w.handleReferralSweep(context.Background(), NewReferralSweepTask()); err == nil {
		t.Fatal("expected the session error to propagate")
	}
	if calls != 1 {
		t.Fatalf("expected one session attempt, got %d", calls)
	}

	// The guard must be released after a failed sweep.
	if !w.sweepGuard.TryAcquire(1) {
		t.Fatal("guard leaked after failed sweep")
	}
	w.sweepGuard.Release(1)
}
