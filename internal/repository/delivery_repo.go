package repository

import (
	"context"
	"fmt"

	"github.com/kursadbilgin/notification-fanout/internal/domain"
	"gorm.io/gorm"
)

type DeliveryRepository interface {
	ListByNotificationID(ctx context.Context, notificationID string) ([]domain.DeliveryAttempt, error)
	// RecordOutcome persists status, error message and last attempt time, and
	// increments the attempt counter by one. Other columns are untouched.
	RecordOutcome(ctx context.Context, attempt *domain.DeliveryAttempt) error
}

type GormDeliveryRepo struct {
	db *gorm.DB
}

func NewGormDeliveryRepo(db *gorm.DB) *GormDeliveryRepo {
	return &GormDeliveryRepo{db: db}
}

func (r *GormDeliveryRepo) ListByNotificationID(ctx context.Context, notificationID string) ([]domain.DeliveryAttempt, error) {
	var models []DeliveryAttemptModel
	err := r.db.WithContext(ctx).
		Where("notification_id = ?", notificationID).
		Order("created_at ASC, id ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	attempts := make([]domain.DeliveryAttempt, 0, len(models))
	for i := range models {
		attempts = append(attempts, *deliveryModelToDomain(&models[i]))
	}
	return attempts, nil
}

func (r *GormDeliveryRepo) RecordOutcome(ctx context.Context, attempt *domain.DeliveryAttempt) error {
	if attempt == nil {
		return fmt.Errorf("%w: attempt is nil", domain.ErrValidation)
	}

	result := r.db.WithContext(ctx).
		Model(&DeliveryAttemptModel{}).
		Where("id = ?", attempt.ID).
		UpdateColumns(map[string]any{
			"status":          attempt.Status,
			"error_message":   attempt.ErrorMessage,
			"last_attempt_at": attempt.LastAttemptAt,
			"attempts":        gorm.Expr("attempts + 1"),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
