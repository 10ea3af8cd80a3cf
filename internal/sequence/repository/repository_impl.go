package repository

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/smallbiznis/docflow/internal/sequence/domain"
	"github.com/smallbiznis/docflow/pkg/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Ensure(ctx context.Context, tx *gorm.DB, key string, now time.Time) error {
	return tx.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "counter_key"}}, DoNothing: true}).
		Create(&domain.Counter{CounterKey: key, CurrentValue: 0, UpdatedAt: now}).
		Error
}

func (r *repo) Lock(ctx context.Context, tx *gorm.DB, key string) (*domain.Counter, error) {
	var counter domain.Counter
	err := db.LockForUpdate(tx.WithContext(ctx)).
		Where("counter_key = ?", key).
		Take(&counter).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &counter, nil
}

func (r *repo) Save(ctx context.Context, tx *gorm.DB, key string, value uint64, now time.Time) error {
	return tx.WithContext(ctx).
		Model(&domain.Counter{}).
		Where("counter_key = ?", key).
		Updates(map[string]any{
			"current_value": value,
			"updated_at":    now,
		}).Error
}

func (r *repo) Get(ctx context.Context, conn *gorm.DB, key string) (*domain.Counter, error) {
	var counter domain.Counter
	err := conn.WithContext(ctx).Where("counter_key = ?", key).Take(&counter).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &counter, nil
}
