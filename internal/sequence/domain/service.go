package domain

import (
	"context"

	"github.com/cockroachdb/errors"
	"gorm.io/gorm"
)

// Generator issues human readable sequential identifiers. Every call runs in
// the caller's transaction so the counter increment commits or rolls back
// together with the document it identifies.
type Generator interface {
	Next(ctx context.Context, tx *gorm.DB, key string) (string, error)
	// Assign returns current unchanged when it is already set and only
	// draws from the counter otherwise.
	Assign(ctx context.Context, tx *gorm.DB, key, current string) (string, error)
	Current(ctx context.Context, db *gorm.DB, key string) (uint64, error)
}

var (
	ErrEmptyKey          = errors.New("empty_counter_key")
	ErrUnknownKey        = errors.New("unknown_counter_key")
	ErrTransactionNeeded = errors.New("transaction_required")
	// ErrCounterContention is transient; the whole operation may be retried.
	ErrCounterContention = errors.New("counter_contention")
)
