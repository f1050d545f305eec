package domain

import (
	"fmt"
	"strings"
	"time"
)

// Status represents the aggregate lifecycle state of a notification.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusSent       Status = "SENT"
	StatusFailed     Status = "FAILED"
)

func (s Status) String() string { return string(s) }

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusSent, StatusFailed:
		return true
	}
	return false
}

func ParseStatusFromString(s string) (Status, error) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid status %q", ErrValidation, s)
	}
	return st, nil
}

// Channel identifies a delivery medium. Unknown values are representable so that
// attempts created for them can be recorded as unsupported.
type Channel string

const (
	ChannelSMS      Channel = "SMS"
	ChannelEmail    Channel = "EMAIL"
	ChannelTelegram Channel = "TELEGRAM"
)

// KnownChannels lists the statically supported channels.
var KnownChannels = []Channel{ChannelSMS, ChannelEmail, ChannelTelegram}

func (c Channel) String() string { return string(c) }

func (c Channel) IsValid() bool {
	switch c {
	case ChannelSMS, ChannelEmail, ChannelTelegram:
		return true
	}
	return false
}

func ParseChannelFromString(s string) (Channel, error) {
	ch := Channel(strings.ToUpper(strings.TrimSpace(s)))
	if !ch.IsValid() {
		return "", fmt.Errorf("%w: invalid channel %q", ErrValidation, s)
	}
	return ch, nil
}

// Notification is a logical message fanned out to one or more channels.
type Notification struct {
	ID     string
	UserID *string
	Title  string
	Body   string
	// Channels is the set requested at creation; it never changes afterwards.
	Channels []Channel
	// Recipients optionally overrides the per-channel address (phone, e-mail, chat id).
	Recipients map[Channel]string
	Status     Status
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// RecipientFor returns the address used for channel, falling back to the user id.
func (n Notification) RecipientFor(channel Channel) string {
	if v := strings.TrimSpace(n.Recipients[channel]); v != "" {
		return v
	}
	if n.UserID != nil {
		return strings.TrimSpace(*n.UserID)
	}
	return ""
}
