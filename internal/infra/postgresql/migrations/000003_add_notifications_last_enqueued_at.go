package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

func addNotificationsLastEnqueuedAtColumn() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000003_add_notifications_last_enqueued_at",
		Migrate: func(tx *gorm.DB) error {
			statements := []string{
				`ALTER TABLE notifications ADD COLUMN IF NOT EXISTS last_enqueued_at TIMESTAMPTZ`,
				`DROP INDEX IF EXISTS idx_notifications_pending_updated`,
				`CREATE INDEX IF NOT EXISTS idx_notifications_pending_enqueued ON notifications ((COALESCE(last_enqueued_at, created_at))) WHERE status = 'PENDING'`,
			}
			for _, sql := range statements {
				if err := tx.Exec(sql).Error; err != nil {
					return err
				}
			}
			return nil
		},
		Rollback: func(tx *gorm.DB) error {
			statements := []string{
				`DROP INDEX IF EXISTS idx_notifications_pending_enqueued`,
				`ALTER TABLE notifications DROP COLUMN IF EXISTS last_enqueued_at`,
			}
			for _, sql := range statements {
				if err := tx.Exec(sql).Error; err != nil {
					return err
				}
			}
			return nil
		},
	}
}
