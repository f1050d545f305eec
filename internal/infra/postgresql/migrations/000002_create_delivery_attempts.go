package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/notification-fanout/internal/repository"
	"gorm.io/gorm"
)

func createDeliveryAttemptsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000002_create_delivery_attempts",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.DeliveryAttemptModel{}); err != nil {
				return err
			}
			statements := []string{
				`CREATE UNIQUE INDEX IF NOT EXISTS uq_delivery_attempts_notification_channel ON delivery_attempts (notification_id, channel)`,
				`ALTER TABLE delivery_attempts DROP CONSTRAINT IF EXISTS fk_delivery_attempts_notification`,
				`ALTER TABLE delivery_attempts ADD CONSTRAINT fk_delivery_attempts_notification FOREIGN KEY (notification_id) REFERENCES notifications (id) ON DELETE CASCADE`,
			}
			for _, sql := range statements {
				if err := tx.Exec(sql).Error; err != nil {
					return err
				}
			}
			return nil
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.DeliveryAttemptModel{})
		},
	}
}
