package outbox_test

import (
	"errors"
	"testing"
	"time"

	"clinic/internal/domain/outbox"
)

var now = time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)

func TestEntry_Validate(t *testing.T) {
	tests := []struct {
		name    string
		entry   outbox.Entry
		wantErr error
	}{
		{"valid", outbox.Entry{ActionType: outbox.ActionSendEmail, Payload: "{}", CreatedAt: now}, nil},
		{"missing action", outbox.Entry{Payload: "{}", CreatedAt: now}, outbox.ErrEmptyActionType},
		{"missing payload", outbox.Entry{ActionType: outbox.ActionSendEmail, CreatedAt: now}, outbox.ErrEmptyPayload},
		{"missing created", outbox.Entry{ActionType: outbox.ActionSendEmail, Payload: "{}"}, outbox.ErrEmptyCreatedAt},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.entry.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestEntry_ValidateDefaults(t *testing.T) {
	e := outbox.Entry{ActionType: outbox.ActionReminder, Payload: "{}", CreatedAt: now}
	if err := e.Validate(); err != nil {
		t.Fatal(err)
	}
	if e.MaxAttempts != outbox.DefaultMaxAttempts || e.Status != outbox.StatusPending {
		t.Errorf("defaults not applied: %+v", e)
	}
}

func TestEntry_RetryLifecycle(t *testing.T) {
	e := outbox.Entry{ActionType: outbox.ActionSendEmail, Payload: "{}", CreatedAt: now, MaxAttempts: 2}
	_ = e.Validate()

	e.MarkAttempt(now)
	e.MarkFailed(errors.New("timeout"), now, time.Minute, time.Hour)
	if e.Status != outbox.StatusRetrying {
		t.Fatalf("status = %s, want retrying", e.Status)
	}
	if e.IsDue(now) {
		t.Error("entry due before backoff elapsed")
	}
	if !e.IsDue(now.Add(2 * time.Minute)) {
		t.Error("entry not due after backoff")
	}

	e.MarkAttempt(now.Add(2 * time.Minute))
	e.MarkFailed(errors.New("timeout"), now.Add(2*time.Minute), time.Minute, time.Hour)
	if e.Status != outbox.StatusFailed || !e.IsTerminal() || e.CanRetry() {
		t.Fatalf("exhausted entry = %+v", e)
	}

	if err := e.ResetForRetry(); err != nil {
		t.Fatalf("ResetForRetry() error = %v", err)
	}
	if !e.CanRetry() || e.Attempts != 0 {
		t.Errorf("after reset = %+v", e)
	}

	e.MarkAttempt(now)
	e.MarkSuccess("msg-1")
	if e.Status != outbox.StatusDone || e.ExternalID != "msg-1" || e.ErrorMessage != "" {
		t.Errorf("after success = %+v", e)
	}
	if err := e.ResetForRetry(); !errors.Is(err, outbox.ErrNotRetryable) {
		t.Errorf("ResetForRetry(done) error = %v", err)
	}
}

func TestEntry_NextRetryDelay(t *testing.T) {
	tests := []struct {
		attempts int
		want     time.Duration
	}{
		{0, time.Minute},
		{1, 2 * time.Minute},
		{3, 8 * time.Minute},
		{10, time.Hour},
		{40, time.Hour},
	}
	for _, tt := range tests {
		e := outbox.Entry{Attempts: tt.attempts}
		if got := e.NextRetryDelay(time.Minute, time.Hour); got != tt.want {
			t.Errorf("NextRetryDelay(attempts=%d) = %v, want %v", tt.attempts, got, tt.want)
		}
	}
}
