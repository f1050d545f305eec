package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kursadbilgin/notification-fanout/internal/domain"
)

// MemoryStore keeps notifications and delivery attempts in process memory.
// It implements both NotificationRepository and DeliveryRepository with the
// same atomicity and uniqueness rules as the Postgres schema, and backs the
// service tests in place of a database.
type MemoryStore struct {
	mu            sync.RWMutex
	notifications map[string]domain.Notification
	deliveries    map[string]domain.DeliveryAttempt
	// order of attempt ids per notification, in insertion order
	byNotification map[string][]string
	enqueuedAt     map[string]time.Time
	now            func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		notifications:  make(map[string]domain.Notification),
		deliveries:     make(map[string]domain.DeliveryAttempt),
		byNotification: make(map[string][]string),
		enqueuedAt:     make(map[string]time.Time),
		now:            time.Now,
	}
}

func (s *MemoryStore) CreateWithDeliveries(ctx context.Context, n *domain.Notification, attempts []domain.DeliveryAttempt) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if n == nil {
		return fmt.Errorf("%w: notification is nil", domain.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.notifications[n.ID]; exists {
		return fmt.Errorf("%w: notification %s already exists", domain.ErrConflict, n.ID)
	}

	// Validate everything before writing anything.
	seenChannels := make(map[domain.Channel]struct{}, len(attempts))
	seenIDs := make(map[string]struct{}, len(attempts))
	for i := range attempts {
		a := attempts[i]
		if a.NotificationID != n.ID {
			return fmt.Errorf("%w: attempt %s references notification %s", domain.ErrValidation, a.ID, a.NotificationID)
		}
		if _, dup := seenChannels[a.Channel]; dup {
			return fmt.Errorf("%w: duplicate delivery for channel %s", domain.ErrConflict, a.Channel)
		}
		if _, dup := seenIDs[a.ID]; dup {
			return fmt.Errorf("%w: duplicate delivery id %s", domain.ErrConflict, a.ID)
		}
		if _, exists := s.deliveries[a.ID]; exists {
			return fmt.Errorf("%w: delivery %s already exists", domain.ErrConflict, a.ID)
		}
		seenChannels[a.Channel] = struct{}{}
		seenIDs[a.ID] = struct{}{}
	}

	now := s.now()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = now
	}
	if n.UpdatedAt.IsZero() {
		n.UpdatedAt = now
	}
	s.notifications[n.ID] = cloneNotification(*n)

	ids := make([]string, 0, len(attempts))
	for i := range attempts {
		if attempts[i].CreatedAt.IsZero() {
			attempts[i].CreatedAt = now
		}
		s.deliveries[attempts[i].ID] = attempts[i]
		ids = append(ids, attempts[i].ID)
	}
	s.byNotification[n.ID] = ids

	return nil
}

func (s *MemoryStore) GetByID(ctx context.Context, id string) (*domain.Notification, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.notifications[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := cloneNotification(n)
	return &out, nil
}

func (s *MemoryStore) List(ctx context.Context, params ListParams) ([]domain.Notification, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	s.mu.RLock()
	matched := make([]domain.Notification, 0, len(s.notifications))
	for _, n := range s.notifications {
		if params.Status != nil && n.Status != *params.Status {
			continue
		}
		if params.UserID != nil && (n.UserID == nil || *n.UserID != *params.UserID) {
			continue
		}
		if params.From != nil && n.CreatedAt.Before(*params.From) {
			continue
		}
		if params.To != nil && n.CreatedAt.After(*params.To) {
			continue
		}
		matched = append(matched, cloneNotification(n))
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	page, pageSize := params.normalized()
	start := (page - 1) * pageSize
	if start >= len(matched) {
		return []domain.Notification{}, total, nil
	}
	end := min(start+pageSize, len(matched))
	return matched[start:end], total, nil
}

func (s *MemoryStore) UpdateStatus(ctx context.Context, id string, status domain.Status) error {
	return s.updateNotification(ctx, id, func(n *domain.Notification) {
		n.Status = status
	})
}

func (s *MemoryStore) UpdateAggregateStatus(ctx context.Context, id string, status domain.Status, updatedAt time.Time) error {
	return s.updateNotification(ctx, id, func(n *domain.Notification) {
		n.Status = status
		n.UpdatedAt = updatedAt
	})
}

func (s *MemoryStore) MarkEnqueued(ctx context.Context, id string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.notifications[id]; !ok {
		return domain.ErrNotFound
	}
	s.enqueuedAt[id] = at
	return nil
}

func (s *MemoryStore) staleSince(n domain.Notification) time.Time {
	if at, ok := s.enqueuedAt[n.ID]; ok {
		return at
	}
	return n.CreatedAt
}

func (s *MemoryStore) GetStalePending(ctx context.Context, before time.Time, limit int) ([]domain.Notification, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	stale := make([]domain.Notification, 0)
	since := make(map[string]time.Time)
	for _, n := range s.notifications {
		if at := s.staleSince(n); n.Status == domain.StatusPending && !at.After(before) {
			stale = append(stale, cloneNotification(n))
			since[n.ID] = at
		}
	}
	s.mu.RUnlock()

	sort.Slice(stale, func(i, j int) bool { return since[stale[i].ID].Before(since[stale[j].ID]) })
	if limit > 0 && len(stale) > limit {
		stale = stale[:limit]
	}
	return stale, nil
}

func (s *MemoryStore) ListByNotificationID(ctx context.Context, notificationID string) ([]domain.DeliveryAttempt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byNotification[notificationID]
	attempts := make([]domain.DeliveryAttempt, 0, len(ids))
	for _, id := range ids {
		attempts = append(attempts, s.deliveries[id])
	}
	return attempts, nil
}

func (s *MemoryStore) RecordOutcome(ctx context.Context, attempt *domain.DeliveryAttempt) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if attempt == nil {
		return fmt.Errorf("%w: attempt is nil", domain.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.deliveries[attempt.ID]
	if !ok {
		return domain.ErrNotFound
	}
	stored.Status = attempt.Status
	stored.ErrorMessage = attempt.ErrorMessage
	stored.LastAttemptAt = attempt.LastAttemptAt
	stored.Attempts++
	s.deliveries[attempt.ID] = stored
	return nil
}

func (s *MemoryStore) updateNotification(ctx context.Context, id string, mutate func(*domain.Notification)) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.notifications[id]
	if !ok {
		return domain.ErrNotFound
	}
	mutate(&n)
	s.notifications[id] = n
	return nil
}

func cloneNotification(n domain.Notification) domain.Notification {
	if n.Channels != nil {
		n.Channels = append([]domain.Channel(nil), n.Channels...)
	}
	if n.Recipients != nil {
		recipients := make(map[domain.Channel]string, len(n.Recipients))
		for k, v := range n.Recipients {
			recipients[k] = v
		}
		n.Recipients = recipients
	}
	if n.UserID != nil {
		userID := *n.UserID
		n.UserID = &userID
	}
	return n
}
