package repository

import (
	"time"

	"github.com/kursadbilgin/notification-fanout/internal/domain"
)

// NotificationModel is the persistence model for the notifications table.
type NotificationModel struct {
	ID         string                    `gorm:"type:uuid;primaryKey"`
	UserID     *string                   `gorm:"type:varchar(255);index"`
	Title      string                    `gorm:"type:varchar(255);not null"`
	Body       string                    `gorm:"type:text;not null"`
	Channels   []domain.Channel          `gorm:"type:jsonb;serializer:json;not null"`
	Recipients map[domain.Channel]string `gorm:"type:jsonb;serializer:json"`
	Status     domain.Status             `gorm:"type:varchar(20);not null"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
	// LastEnqueuedAt is sweeper bookkeeping and is not part of the notification.
	LastEnqueuedAt *time.Time `gorm:"type:timestamptz"`
}

func (NotificationModel) TableName() string {
	return "notifications"
}

// DeliveryAttemptModel is the persistence model for delivery_attempts.
type DeliveryAttemptModel struct {
	ID             string                `gorm:"type:uuid;primaryKey"`
	NotificationID string                `gorm:"type:uuid;not null"`
	Channel        domain.Channel        `gorm:"type:varchar(32);not null"`
	Status         domain.DeliveryStatus `gorm:"type:varchar(20);not null"`
	Attempts       int                   `gorm:"not null;default:0"`
	LastAttemptAt  *time.Time            `gorm:"type:timestamptz"`
	ErrorMessage   string                `gorm:"type:text;not null;default:''"`
	CreatedAt      time.Time
}

func (DeliveryAttemptModel) TableName() string {
	return "delivery_attempts"
}

func notificationModelFromDomain(n *domain.Notification) *NotificationModel {
	if n == nil {
		return nil
	}

	return &NotificationModel{
		ID:         n.ID,
		UserID:     n.UserID,
		Title:      n.Title,
		Body:       n.Body,
		Channels:   n.Channels,
		Recipients: n.Recipients,
		Status:     n.Status,
		CreatedAt:  n.CreatedAt,
		UpdatedAt:  n.UpdatedAt,
	}
}

func notificationModelToDomain(m *NotificationModel) *domain.Notification {
	if m == nil {
		return nil
	}

	return &domain.Notification{
		ID:         m.ID,
		UserID:     m.UserID,
		Title:      m.Title,
		Body:       m.Body,
		Channels:   m.Channels,
		Recipients: m.Recipients,
		Status:     m.Status,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}

func deliveryModelFromDomain(a *domain.DeliveryAttempt) *DeliveryAttemptModel {
	if a == nil {
		return nil
	}

	return &DeliveryAttemptModel{
		ID:             a.ID,
		NotificationID: a.NotificationID,
		Channel:        a.Channel,
		Status:         a.Status,
		Attempts:       a.Attempts,
		LastAttemptAt:  a.LastAttemptAt,
		ErrorMessage:   a.ErrorMessage,
		CreatedAt:      a.CreatedAt,
	}
}

func deliveryModelToDomain(m *DeliveryAttemptModel) *domain.DeliveryAttempt {
	if m == nil {
		return nil
	}

	return &domain.DeliveryAttempt{
		ID:             m.ID,
		NotificationID: m.NotificationID,
		Channel:        m.Channel,
		Status:         m.Status,
		Attempts:       m.Attempts,
		LastAttemptAt:  m.LastAttemptAt,
		ErrorMessage:   m.ErrorMessage,
		CreatedAt:      m.CreatedAt,
	}
}
