package repository

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

func TestIsUniqueViolationError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "gorm duplicated key", err: fmt.Errorf("insert: %w", gorm.ErrDuplicatedKey), want: true},
		{name: "pg unique violation", err: &pgconn.PgError{Code: "23505"}, want: true},
		{name: "pg fk violation", err: &pgconn.PgError{Code: "23503"}, want: false},
		{name: "message fallback", err: errors.New(`ERROR: duplicate key value violates unique constraint "uq_delivery_attempts_notification_channel"`), want: true},
		{name: "other", err: errors.New("connection refused"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isUniqueViolationError(tt.err); got != tt.want {
				t.Fatalf("isUniqueViolationError() = %v, want %v", got, tt.want)
			}
		})
	}
}
