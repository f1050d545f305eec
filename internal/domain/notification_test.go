package domain

import (
	"errors"
	"testing"
	"time"
	"unicode/utf8"
)

func TestParseStatusFromString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    Status
		wantErr bool
	}{
		{name: "valid uppercase", input: "SENT", want: StatusSent},
		{name: "valid lowercase with spaces", input: " processing ", want: StatusProcessing},
		{name: "invalid", input: "queued", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseStatusFromString(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Fatalf("ParseStatusFromString() error = %v, want ErrValidation", err)
				}
				return
			}

			if err != nil {
				t.Fatalf("ParseStatusFromString() unexpected error = %v", err)
			}
			if got != tt.want {
				t.Fatalf("ParseStatusFromString() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestParseChannelFromString(t *testing.T) {
	t.Parallel()

	got, err := ParseChannelFromString(" telegram ")
	if err != nil {
		t.Fatalf("ParseChannelFromString() unexpected error = %v", err)
	}
	if got != ChannelTelegram {
		t.Fatalf("ParseChannelFromString() = %s, want %s", got, ChannelTelegram)
	}

	_, err = ParseChannelFromString("fax")
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("ParseChannelFromString() error = %v, want ErrValidation", err)
	}
}

func TestNotificationRecipientFor(t *testing.T) {
	t.Parallel()

	userID := "42"
	n := Notification{
		UserID:     &userID,
		Recipients: map[Channel]string{ChannelEmail: " user@example.com "},
	}

	if got := n.RecipientFor(ChannelEmail); got != "user@example.com" {
		t.Fatalf("RecipientFor(EMAIL) = %q, want user@example.com", got)
	}
	if got := n.RecipientFor(ChannelSMS); got != "42" {
		t.Fatalf("RecipientFor(SMS) = %q, want user id fallback", got)
	}
	if got := (Notification{}).RecipientFor(ChannelSMS); got != "" {
		t.Fatalf("RecipientFor() on empty notification = %q, want empty", got)
	}
}

func TestDeliveryAttemptRecordOutcome(t *testing.T) {
	t.Parallel()

	at := time.Unix(1_700_000_000, 0).UTC()
	attempt := DeliveryAttempt{Channel: ChannelSMS, Status: DeliveryStatusPending}

	attempt.RecordFailure(at, errors.New("gateway down"))
	if attempt.Status != DeliveryStatusFailed || attempt.Attempts != 1 {
		t.Fatalf("after failure status=%s attempts=%d, want FAILED/1", attempt.Status, attempt.Attempts)
	}
	if attempt.ErrorMessage != "gateway down" {
		t.Fatalf("ErrorMessage = %q, want gateway down", attempt.ErrorMessage)
	}
	if attempt.LastAttemptAt == nil || !attempt.LastAttemptAt.Equal(at) {
		t.Fatalf("LastAttemptAt = %v, want %v", attempt.LastAttemptAt, at)
	}

	later := at.Add(time.Minute)
	attempt.RecordSuccess(later)
	if attempt.Status != DeliveryStatusSuccess || attempt.Attempts != 2 {
		t.Fatalf("after success status=%s attempts=%d, want SUCCESS/2", attempt.Status, attempt.Attempts)
	}
	if attempt.ErrorMessage != "" {
		t.Fatalf("ErrorMessage = %q, want cleared", attempt.ErrorMessage)
	}
	if !attempt.IsDelivered() {
		t.Fatal("IsDelivered() = false, want true")
	}
}

func TestDeliveryAttemptRecordFailureSanitizesMessage(t *testing.T) {
	t.Parallel()

	attempt := DeliveryAttempt{Channel: ChannelSMS}
	attempt.RecordFailure(time.Now(), errors.New("gateway: \xd8 broken \xff"))

	if !utf8.ValidString(attempt.ErrorMessage) {
		t.Fatalf("ErrorMessage = %q, want valid UTF-8", attempt.ErrorMessage)
	}
	if want := "gateway: \uFFFD broken \uFFFD"; attempt.ErrorMessage != want {
		t.Fatalf("ErrorMessage = %q, want %q", attempt.ErrorMessage, want)
	}
	if attempt.Attempts != 1 {
		t.Fatalf("Attempts = %d, want 1", attempt.Attempts)
	}
}

func TestNewDeliveryAttempts(t *testing.T) {
	t.Parallel()

	seq := 0
	attempts := NewDeliveryAttempts("n1", []Channel{ChannelSMS, ChannelEmail, ChannelTelegram}, func() string {
		seq++
		return string(rune('a' + seq - 1))
	})

	if len(attempts) != 3 {
		t.Fatalf("len = %d, want 3", len(attempts))
	}
	for _, a := range attempts {
		if a.NotificationID != "n1" || a.Status != DeliveryStatusPending || a.Attempts != 0 {
			t.Fatalf("unexpected attempt %+v", a)
		}
	}
	if attempts[2].ID != "c" {
		t.Fatalf("attempts[2].ID = %q, want c", attempts[2].ID)
	}
}

func TestAggregateStatus(t *testing.T) {
	t.Parallel()

	success := DeliveryAttempt{Status: DeliveryStatusSuccess}
	failed := DeliveryAttempt{Status: DeliveryStatusFailed}
	pending := DeliveryAttempt{Status: DeliveryStatusPending}

	tests := []struct {
		name     string
		attempts []DeliveryAttempt
		want     Status
	}{
		{name: "no attempts", attempts: nil, want: StatusFailed},
		{name: "all success", attempts: []DeliveryAttempt{success, success}, want: StatusSent},
		{name: "partial success", attempts: []DeliveryAttempt{success, failed}, want: StatusFailed},
		{name: "pending left", attempts: []DeliveryAttempt{success, pending}, want: StatusFailed},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := AggregateStatus(tt.attempts); got != tt.want {
				t.Fatalf("AggregateStatus() = %s, want %s", got, tt.want)
			}
		})
	}
}
