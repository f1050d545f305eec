package queue

import (
	"fmt"
	"strings"
)

// DispatchMessage is the broker payload asking a worker to run the dispatch
// procedure for one notification.
type DispatchMessage struct {
	NotificationID string `json:"notificationId"`
	CorrelationID  string `json:"correlationId,omitempty"`
	// Attempt counts retries already spent; the first run is 0.
	Attempt int `json:"attempt"`
}

func (m DispatchMessage) Validate() error {
	if strings.TrimSpace(m.NotificationID) == "" {
		return fmt.Errorf("notificationId is required")
	}
	if m.Attempt < 0 {
		return fmt.Errorf("attempt must be >= 0, got %d", m.Attempt)
	}
	return nil
}

// Next returns the message for the following retry.
func (m DispatchMessage) Next() DispatchMessage {
	m.Attempt++
	return m
}
