package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Repository interface {
	// Ensure inserts the counter row at zero if it does not exist yet.
	Ensure(ctx context.Context, db *gorm.DB, key string, now time.Time) error
	// Lock reads the counter row holding a row lock until db commits.
	Lock(ctx context.Context, db *gorm.DB, key string) (*Counter, error)
	Save(ctx context.Context, db *gorm.DB, key string, value uint64, now time.Time) error
	Get(ctx context.Context, db *gorm.DB, key string) (*Counter, error)
}
