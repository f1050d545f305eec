package domain

import (
	"strings"
	"time"
)

// DeliveryStatus represents the state of one channel delivery.
type DeliveryStatus string

const (
	DeliveryStatusPending DeliveryStatus = "PENDING"
	DeliveryStatusSuccess DeliveryStatus = "SUCCESS"
	DeliveryStatusFailed  DeliveryStatus = "FAILED"
)

func (s DeliveryStatus) String() string { return string(s) }

func (s DeliveryStatus) IsValid() bool {
	switch s {
	case DeliveryStatusPending, DeliveryStatusSuccess, DeliveryStatusFailed:
		return true
	}
	return false
}

// DeliveryAttempt tracks delivery of a notification over a single channel.
type DeliveryAttempt struct {
	ID             string
	NotificationID string
	Channel        Channel
	Status         DeliveryStatus
	Attempts       int
	LastAttemptAt  *time.Time
	ErrorMessage   string
	CreatedAt      time.Time
}

// IsDelivered reports whether the channel already succeeded and must not be sent again.
func (a *DeliveryAttempt) IsDelivered() bool {
	return a.Status == DeliveryStatusSuccess
}

func (a *DeliveryAttempt) RecordSuccess(at time.Time) {
	a.Attempts++
	a.Status = DeliveryStatusSuccess
	a.LastAttemptAt = &at
	a.ErrorMessage = ""
}

// RecordFailure stores cause as valid UTF-8 so the message is always persistable.
func (a *DeliveryAttempt) RecordFailure(at time.Time, cause error) {
	a.Attempts++
	a.Status = DeliveryStatusFailed
	a.LastAttemptAt = &at
	a.ErrorMessage = ""
	if cause != nil {
		a.ErrorMessage = strings.ToValidUTF8(cause.Error(), "\uFFFD")
	}
}

// NewDeliveryAttempts builds one pending attempt per channel.
func NewDeliveryAttempts(notificationID string, channels []Channel, newID func() string) []DeliveryAttempt {
	attempts := make([]DeliveryAttempt, 0, len(channels))
	for _, channel := range channels {
		attempts = append(attempts, DeliveryAttempt{
			ID:             newID(),
			NotificationID: notificationID,
			Channel:        channel,
			Status:         DeliveryStatusPending,
		})
	}
	return attempts
}

// AggregateStatus derives the notification status from its attempts.
// There is no partial-success state: anything short of all SUCCESS is FAILED.
func AggregateStatus(attempts []DeliveryAttempt) Status {
	if len(attempts) == 0 {
		return StatusFailed
	}
	for i := range attempts {
		if attempts[i].Status != DeliveryStatusSuccess {
			return StatusFailed
		}
	}
	return StatusSent
}
