package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kursadbilgin/notification-fanout/internal/domain"
	"gorm.io/gorm"
)

type ListParams struct {
	Status   *domain.Status
	UserID   *string
	From     *time.Time
	To       *time.Time
	Page     int
	PageSize int
}

const (
	defaultPageSize = 50
	maxPageSize     = 100
)

func (p ListParams) normalized() (page, pageSize int) {
	page = max(p.Page, 1)
	pageSize = p.PageSize
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	return page, min(pageSize, maxPageSize)
}

type NotificationRepository interface {
	// CreateWithDeliveries persists the notification and its attempts in one unit.
	// Either everything is stored or nothing is.
	CreateWithDeliveries(ctx context.Context, n *domain.Notification, attempts []domain.DeliveryAttempt) error
	GetByID(ctx context.Context, id string) (*domain.Notification, error)
	List(ctx context.Context, params ListParams) ([]domain.Notification, int64, error)
	// UpdateStatus writes the status column only.
	UpdateStatus(ctx context.Context, id string, status domain.Status) error
	UpdateAggregateStatus(ctx context.Context, id string, status domain.Status, updatedAt time.Time) error
	// GetStalePending returns PENDING notifications created, or last re-enqueued,
	// no later than before, oldest first.
	GetStalePending(ctx context.Context, before time.Time, limit int) ([]domain.Notification, error)
	// MarkEnqueued records a re-enqueue without changing the notification itself.
	MarkEnqueued(ctx context.Context, id string, at time.Time) error
}

type GormNotificationRepo struct {
	db *gorm.DB
}

func NewGormNotificationRepo(db *gorm.DB) *GormNotificationRepo {
	return &GormNotificationRepo{db: db}
}

func (r *GormNotificationRepo) CreateWithDeliveries(ctx context.Context, n *domain.Notification, attempts []domain.DeliveryAttempt) error {
	if n == nil {
		return fmt.Errorf("%w: notification is nil", domain.ErrValidation)
	}

	model := notificationModelFromDomain(n)
	deliveries := make([]DeliveryAttemptModel, 0, len(attempts))
	for i := range attempts {
		deliveries = append(deliveries, *deliveryModelFromDomain(&attempts[i]))
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(model).Error; err != nil {
			return err
		}
		if len(deliveries) == 0 {
			return nil
		}
		return tx.Create(&deliveries).Error
	})
	if err != nil {
		if isUniqueViolationError(err) {
			return fmt.Errorf("%w: %v", domain.ErrConflict, err)
		}
		return err
	}

	*n = *notificationModelToDomain(model)
	for i := range deliveries {
		attempts[i] = *deliveryModelToDomain(&deliveries[i])
	}
	return nil
}

func (r *GormNotificationRepo) GetByID(ctx context.Context, id string) (*domain.Notification, error) {
	var model NotificationModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return notificationModelToDomain(&model), nil
}

func (r *GormNotificationRepo) List(ctx context.Context, params ListParams) ([]domain.Notification, int64, error) {
	query := r.db.WithContext(ctx).Model(&NotificationModel{})

	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.UserID != nil {
		query = query.Where("user_id = ?", *params.UserID)
	}
	if params.From != nil {
		query = query.Where("created_at >= ?", *params.From)
	}
	if params.To != nil {
		query = query.Where("created_at <= ?", *params.To)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page, pageSize := params.normalized()

	var models []NotificationModel
	err := query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&models).Error
	if err != nil {
		return nil, 0, err
	}

	notifications := make([]domain.Notification, 0, len(models))
	for i := range models {
		notifications = append(notifications, *notificationModelToDomain(&models[i]))
	}

	return notifications, total, nil
}

func (r *GormNotificationRepo) UpdateStatus(ctx context.Context, id string, status domain.Status) error {
	result := r.db.WithContext(ctx).
		Model(&NotificationModel{}).
		Where("id = ?", id).
		UpdateColumn("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *GormNotificationRepo) UpdateAggregateStatus(ctx context.Context, id string, status domain.Status, updatedAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&NotificationModel{}).
		Where("id = ?", id).
		UpdateColumns(map[string]any{
			"status":     status,
			"updated_at": updatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *GormNotificationRepo) GetStalePending(ctx context.Context, before time.Time, limit int) ([]domain.Notification, error) {
	var models []NotificationModel
	err := r.db.WithContext(ctx).
		Where("status = ? AND "+staleSinceExpr+" <= ?", domain.StatusPending, before).
		Order(staleSinceExpr + " ASC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	notifications := make([]domain.Notification, 0, len(models))
	for i := range models {
		notifications = append(notifications, *notificationModelToDomain(&models[i]))
	}
	return notifications, nil
}

const staleSinceExpr = "COALESCE(last_enqueued_at, created_at)"

func (r *GormNotificationRepo) MarkEnqueued(ctx context.Context, id string, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&NotificationModel{}).
		Where("id = ?", id).
		UpdateColumn("last_enqueued_at", at)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
